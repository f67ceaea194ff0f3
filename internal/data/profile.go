package data

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/DevRickLin/reward-relay/internal/biz/domain"
	"github.com/DevRickLin/reward-relay/internal/biz/repo"
)

// roomInfoResponse is the /room-info contract; Data and UID are required
type roomInfoResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *struct {
		UID *int64 `json:"uid"`
	} `json:"data"`
}

// userStatsResponse is the /user-stats contract; Data and Video are required
type userStatsResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *struct {
		Video *int64 `json:"video"`
	} `json:"data"`
}

// profileRepo looks up the room owner and their video count
type profileRepo struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewProfileRepo creates a profile client.
// ratePerSec <= 0 disables pacing.
func NewProfileRepo(baseURL string, ratePerSec float64, logger *zap.Logger) repo.ProfileRepo {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}
	return &profileRepo{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named("profile"),
	}
}

// Lookup resolves room -> uid -> video count
func (r *profileRepo) Lookup(ctx context.Context, roomID string) (*domain.Profile, error) {
	var room roomInfoResponse
	if err := r.getJSON(ctx, "/room-info", url.Values{"room_id": {roomID}}, &room); err != nil {
		return nil, fmt.Errorf("%w: room-info: %v", domain.ErrEnrichment, err)
	}
	if room.Code != 0 {
		return nil, fmt.Errorf("%w: room-info code=%d msg=%s", domain.ErrEnrichment, room.Code, room.Message)
	}
	if room.Data == nil || room.Data.UID == nil {
		return nil, fmt.Errorf("%w: room-info: missing data.uid", domain.ErrEnrichment)
	}
	uid := *room.Data.UID

	var stats userStatsResponse
	if err := r.getJSON(ctx, "/user-stats", url.Values{"uid": {strconv.FormatInt(uid, 10)}}, &stats); err != nil {
		return nil, fmt.Errorf("%w: user-stats: %v", domain.ErrEnrichment, err)
	}
	if stats.Code != 0 {
		return nil, fmt.Errorf("%w: user-stats code=%d msg=%s", domain.ErrEnrichment, stats.Code, stats.Message)
	}
	if stats.Data == nil || stats.Data.Video == nil {
		return nil, fmt.Errorf("%w: user-stats: missing data.video", domain.ErrEnrichment)
	}

	r.logger.Debug("profile resolved",
		zap.String("room_id", roomID),
		zap.Int64("uid", uid),
		zap.Int64("video", *stats.Data.Video),
	)

	return &domain.Profile{
		RoomID:     roomID,
		UID:        uid,
		VideoCount: *stats.Data.Video,
	}, nil
}

func (r *profileRepo) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("http %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
