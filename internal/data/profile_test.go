package data

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/reward-relay/internal/biz/domain"
)

func newProfileServer(t *testing.T, roomInfo, userStats string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/room-info", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "12345678", r.URL.Query().Get("room_id"))
		_, _ = w.Write([]byte(roomInfo))
	})
	mux.HandleFunc("/user-stats", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "42", r.URL.Query().Get("uid"))
		_, _ = w.Write([]byte(userStats))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestProfileRepo_Lookup(t *testing.T) {
	srv := newProfileServer(t, `{"code":0,"data":{"uid":42}}`, `{"code":0,"data":{"video":500}}`)

	p, err := NewProfileRepo(srv.URL, 0, nil).Lookup(context.Background(), "12345678")

	require.NoError(t, err)
	assert.Equal(t, int64(42), p.UID)
	assert.Equal(t, int64(500), p.VideoCount)
	assert.Equal(t, "12345678", p.RoomID)
}

func TestProfileRepo_ZeroVideosIsValid(t *testing.T) {
	srv := newProfileServer(t, `{"code":0,"data":{"uid":42}}`, `{"code":0,"data":{"video":0}}`)

	p, err := NewProfileRepo(srv.URL, 0, nil).Lookup(context.Background(), "12345678")

	require.NoError(t, err)
	assert.Equal(t, int64(0), p.VideoCount)
}

func TestProfileRepo_Failures(t *testing.T) {
	tests := []struct {
		name      string
		roomInfo  string
		userStats string
	}{
		{"room code non-zero", `{"code":-400,"message":"bad room"}`, `{"code":0,"data":{"video":1}}`},
		{"missing uid", `{"code":0,"data":{}}`, `{"code":0,"data":{"video":1}}`},
		{"missing room data", `{"code":0}`, `{"code":0,"data":{"video":1}}`},
		{"stats code non-zero", `{"code":0,"data":{"uid":42}}`, `{"code":1}`},
		{"missing video", `{"code":0,"data":{"uid":42}}`, `{"code":0,"data":{}}`},
		{"malformed json", `{"code":0,`, `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newProfileServer(t, tt.roomInfo, tt.userStats)

			_, err := NewProfileRepo(srv.URL, 0, nil).Lookup(context.Background(), "12345678")

			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrEnrichment)
		})
	}
}

func TestProfileRepo_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewProfileRepo(srv.URL, 5, nil).Lookup(context.Background(), "12345678")
	assert.ErrorIs(t, err, domain.ErrEnrichment)
}
