package data

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DevRickLin/reward-relay/internal/biz/domain"
	"github.com/DevRickLin/reward-relay/internal/biz/repo"
	"github.com/DevRickLin/reward-relay/internal/metrics"
)

const (
	danmakuMaxRetries = 4
	danmakuTimeout    = 2 * time.Minute
)

var rateLimitPhrases = []string{"频率", "too fast"}

type danmakuResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Msg     string `json:"msg"`
}

// danmakuRepo posts acknowledgments to every configured target concurrently
type danmakuRepo struct {
	baseURL    string
	targets    []domain.NotifyTarget
	retryDelay time.Duration
	client     *http.Client
	metrics    *metrics.Metrics
	logger     *zap.Logger
	wg         sync.WaitGroup
	now        func() time.Time
}

// NewDanmakuRepo creates the notification fan-out
func NewDanmakuRepo(
	baseURL string,
	targets []domain.NotifyTarget,
	retryDelay time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) repo.NotifierRepo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &danmakuRepo{
		baseURL:    baseURL,
		targets:    targets,
		retryDelay: retryDelay,
		client:     &http.Client{Timeout: 10 * time.Second},
		metrics:    m,
		logger:     logger.Named("danmaku"),
		now:        time.Now,
	}
}

// Notify starts one delivery per target and returns immediately
func (r *danmakuRepo) Notify(ctx context.Context, text string) {
	// Detached from the caller: outcomes never affect the forward
	base := context.WithoutCancel(ctx)

	for _, target := range r.targets {
		r.wg.Add(1)
		go func(target domain.NotifyTarget) {
			defer r.wg.Done()

			ctx, cancel := context.WithTimeout(base, danmakuTimeout)
			defer cancel()

			result := "sent"
			if err := r.deliver(ctx, target, text); err != nil {
				result = "failed"
				if errors.Is(err, domain.ErrRateLimited) {
					result = "rate_limited"
				}
				r.logger.Warn("danmaku not delivered", zap.String("target", target.Name()), zap.Error(err))
			}
			if r.metrics != nil {
				r.metrics.DanmakuTotal.WithLabelValues(result).Inc()
			}
		}(target)
	}
}

// Wait blocks until in-flight deliveries finish
func (r *danmakuRepo) Wait() {
	r.wg.Wait()
}

// deliver retries only while the target reports a rate limit
func (r *danmakuRepo) deliver(ctx context.Context, target domain.NotifyTarget, text string) error {
	var err error
	for attempt := 0; attempt <= danmakuMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.retryDelay):
			}
			r.logger.Debug("retrying danmaku", zap.String("target", target.Name()), zap.Int("attempt", attempt))
		}

		err = r.send(ctx, target, text)
		if err == nil || !errors.Is(err, domain.ErrRateLimited) {
			return err
		}
	}
	return fmt.Errorf("gave up after %d retries: %w", danmakuMaxRetries, err)
}

func (r *danmakuRepo) send(ctx context.Context, target domain.NotifyTarget, text string) error {
	form := url.Values{
		"access_key": {target.AccessKey},
		"appkey":     {target.AppKey},
		"roomid":     {target.RoomID},
		"msg":        {text},
		"ts":         {strconv.FormatInt(r.now().Unix(), 10)},
		"color":      {"16777215"},
		"fontsize":   {"25"},
		"mode":       {"1"},
		"rnd":        {strconv.FormatInt(rand.Int64N(1_000_000_000), 10)},
	}
	form.Set("sign", SignForm(form, target.AppSecret))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/send-danmaku", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("post danmaku: %w", err)
	}
	defer resp.Body.Close()

	var result danmakuResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode response (http %d): %w", resp.StatusCode, err)
	}
	if result.Code == 0 {
		return nil
	}

	message := result.Message
	if message == "" {
		message = result.Msg
	}
	for _, phrase := range rateLimitPhrases {
		if strings.Contains(message, phrase) {
			return fmt.Errorf("%w: %s", domain.ErrRateLimited, message)
		}
	}
	return fmt.Errorf("danmaku rejected: code=%d msg=%s", result.Code, message)
}

// SignForm computes lowercase hex md5 of the sorted query string followed by secret.
// form must not contain the sign field yet.
func SignForm(form url.Values, secret string) string {
	sum := md5.Sum([]byte(form.Encode() + secret))
	return hex.EncodeToString(sum[:])
}
