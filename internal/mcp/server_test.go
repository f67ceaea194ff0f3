package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/reward-relay/internal/biz"
	"github.com/DevRickLin/reward-relay/internal/biz/domain"
	"github.com/DevRickLin/reward-relay/internal/biz/usecase"
)

func newTestServer(relay *Client) *Server {
	uc := biz.NewUsecases(
		[]domain.MonitorTarget{{ChannelID: "oc_watch"}},
		usecase.DefaultAdmissionRules(),
		func() time.Time { return time.Date(2025, 11, 20, 12, 0, 0, 0, time.Local) },
	)
	return NewServer(uc.Admission, relay, "test")
}

func connect(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverT, clientT := mcp.NewInMemoryTransports()

	ss, err := s.MCP().Connect(ctx, serverT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	var out T
	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func toolNames(t *testing.T, cs *mcp.ClientSession) []string {
	t.Helper()
	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	return names
}

func TestParseRewardMessage_Admitted(t *testing.T) {
	cs := connect(t, newTestServer(nil))

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "parse_reward_message",
		Arguments: map[string]any{"text": "房间号12345678\n11月28日\n14级灯牌发2w"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	out := decode[ParseOutput](t, res)
	assert.True(t, out.Admitted)
	assert.Equal(t, "12345678", out.RoomID)
	assert.Equal(t, "11月28日", out.DateTime)
	assert.Equal(t, []domain.Reward{{Amount: 20000, Condition: "14级灯牌"}}, out.Rewards)
}

func TestParseRewardMessage_Rejected(t *testing.T) {
	cs := connect(t, newTestServer(nil))

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "parse_reward_message",
		Arguments: map[string]any{"text": "今日签到 110+", "channel_id": "oc_watch"},
	})
	require.NoError(t, err)

	out := decode[ParseOutput](t, res)
	assert.False(t, out.Admitted)
	assert.Equal(t, string(usecase.GateCheckIn), out.Gate)
}

func TestParseRewardMessage_EmptyText(t *testing.T) {
	cs := connect(t, newTestServer(nil))

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "parse_reward_message",
		Arguments: map[string]any{"text": ""},
	})
	assert.True(t, err != nil || res.IsError)
}

func TestRelayToolsOnlyWithClient(t *testing.T) {
	assert.Equal(t, []string{"parse_reward_message"}, toolNames(t, connect(t, newTestServer(nil))))

	names := toolNames(t, connect(t, newTestServer(NewClient("http://127.0.0.1:1"))))
	assert.ElementsMatch(t, []string{"parse_reward_message", "list_forwarded_events", "recent_archived_events"}, names)
}

func TestListForwardedEvents(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/ledger", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"count":1,"entries":[{"source_message_id":"om_1","forwarded_message_id":"om_f1","room_id":"12345678","date_time":"11月28日","created_at":"2025-11-20T12:00:00Z"}]}`))
	}))
	defer api.Close()

	cs := connect(t, newTestServer(NewClient(api.URL)))
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: "list_forwarded_events"})
	require.NoError(t, err)
	require.False(t, res.IsError)

	out := decode[LedgerOutput](t, res)
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "om_f1", out.Entries[0].ForwardedMessageID)
	assert.Equal(t, "2025-11-20T12:00:00Z", out.Entries[0].CreatedAt)
}

func TestRecentArchivedEvents_Disabled(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"archive disabled"}`))
	}))
	defer api.Close()

	client := NewClient(api.URL)
	_, err := client.Archive(context.Background(), 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive disabled")

	cs := connect(t, newTestServer(client))
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "recent_archived_events",
		Arguments: map[string]any{"limit": 3},
	})
	assert.True(t, err != nil || res.IsError)
}
