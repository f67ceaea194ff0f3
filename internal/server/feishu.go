package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DevRickLin/reward-relay/internal/biz/domain"
	"github.com/DevRickLin/reward-relay/internal/infra/feishu"
	"github.com/DevRickLin/reward-relay/internal/service"
)

const seenTTL = 5 * time.Minute

// EventSource delivers Feishu events; implemented by *feishu.Client
type EventSource interface {
	OnMessage(handler feishu.MessageHandler)
	OnRecall(handler feishu.RecallHandler)
	Start(ctx context.Context) error
	Stop()
}

// FeishuServer binds Feishu events to the relay service
type FeishuServer struct {
	source EventSource
	relay  *service.RelayService
	logger *zap.Logger
	seen   *seenCache
	ctx    context.Context
}

// NewFeishuServer creates a new Feishu server
func NewFeishuServer(source EventSource, relay *service.RelayService, logger *zap.Logger) *FeishuServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeishuServer{
		source: source,
		relay:  relay,
		logger: logger.Named("server"),
		seen:   newSeenCache(seenTTL, time.Now),
		ctx:    context.Background(),
	}
}

// Start registers the handlers and blocks until ctx is done
func (s *FeishuServer) Start(ctx context.Context) error {
	s.ctx = ctx
	s.source.OnMessage(s.handleMessage)
	s.source.OnRecall(s.handleRecall)
	return s.source.Start(ctx)
}

// Stop stops the server
func (s *FeishuServer) Stop() {
	s.source.Stop()
}

// handleMessage runs on its own goroutine per event
func (s *FeishuServer) handleMessage(msg *feishu.Message) {
	defer s.recoverEvent("message", msg.MsgID)

	// Feishu redelivers events it thinks were not acknowledged
	if !s.seen.markFirst(msg.MsgID) {
		s.logger.Debug("duplicate delivery ignored", zap.String("msg_id", msg.MsgID))
		return
	}

	result := s.relay.HandleMessage(s.ctx, ToInbound(msg))
	s.logger.Debug("message handled", zap.String("msg_id", msg.MsgID), zap.String("result", string(result)))
}

func (s *FeishuServer) handleRecall(r *feishu.Recall) {
	defer s.recoverEvent("recall", r.MsgID)

	result := s.relay.HandleRecall(s.ctx, domain.RecallEvent{MessageID: r.MsgID, ChannelID: r.ChatID})
	s.logger.Debug("recall handled", zap.String("msg_id", r.MsgID), zap.String("result", string(result)))
}

func (s *FeishuServer) recoverEvent(kind, msgID string) {
	if r := recover(); r != nil {
		s.logger.Error("event handler panicked",
			zap.String("kind", kind),
			zap.String("msg_id", msgID),
			zap.Any("panic", r),
			zap.Stack("stack"),
		)
	}
}

// ToInbound converts a Feishu message to the domain message
func ToInbound(msg *feishu.Message) *domain.InboundMessage {
	chatType := domain.ChatTypeP2P
	if msg.ChatType == "group" {
		chatType = domain.ChatTypeGroup
	}

	createTime := time.Now()
	if msg.CreateTime > 0 {
		createTime = time.UnixMilli(msg.CreateTime)
	}

	return &domain.InboundMessage{
		ID:         msg.MsgID,
		ChannelID:  msg.ChatID,
		ChatType:   chatType,
		MsgType:    msg.MsgType,
		RawContent: msg.RawContent,
		Text:       msg.Content,
		Elements:   msg.Elements,
		SenderID:   msg.SenderID,
		SenderType: msg.SenderType,
		CreateTime: createTime,
	}
}

// seenCache remembers message ids for a while
type seenCache struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seen map[string]time.Time
}

func newSeenCache(ttl time.Duration, now func() time.Time) *seenCache {
	return &seenCache{
		ttl:  ttl,
		now:  now,
		seen: make(map[string]time.Time),
	}
}

// markFirst records id and reports whether it was new
func (c *seenCache) markFirst(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	// Expire old ids on every insert to bound memory
	cutoff := now.Add(-c.ttl)
	for k, ts := range c.seen {
		if ts.Before(cutoff) {
			delete(c.seen, k)
		}
	}

	if _, exists := c.seen[id]; exists {
		return false
	}
	c.seen[id] = now
	return true
}
