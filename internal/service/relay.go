package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DevRickLin/reward-relay/internal/biz/domain"
	"github.com/DevRickLin/reward-relay/internal/biz/repo"
	"github.com/DevRickLin/reward-relay/internal/biz/usecase"
	"github.com/DevRickLin/reward-relay/internal/metrics"
)

const (
	duplicateNotice = "看到啦"
	failureApology  = "转发失败了，请稍后重试"
)

// EnrichPolicy decides what happens when the profile lookup fails
type EnrichPolicy string

const (
	EnrichAbort       EnrichPolicy = "abort"
	EnrichForwardBare EnrichPolicy = "forward_bare"
)

// Result describes what the relay did with one event
type Result string

const (
	ResultSelf             Result = "self"
	ResultForwarded        Result = "forwarded"
	ResultDuplicate        Result = "duplicate"
	ResultEnrichFailed     Result = "enrich_failed"
	ResultSendFailed       Result = "send_failed"
	ResultRetracted        Result = "retracted"
	ResultWarningRetracted Result = "warning_retracted"
	ResultNoop             Result = "noop"
)

// RelayConfig is the static dispatch configuration
type RelayConfig struct {
	Destination  domain.Target
	EnrichPolicy EnrichPolicy
	Timeout      time.Duration // Per message; zero means none
}

// RelayService forwards reward announcements and mirrors their recalls
type RelayService struct {
	cfg       RelayConfig
	admission *usecase.AdmissionUsecase
	messenger repo.MessengerRepo
	profiles  repo.ProfileRepo
	ledger    repo.LedgerRepo

	// Optional collaborators
	notifier repo.NotifierRepo
	archive  repo.ArchiveRepo
	screen   repo.ScreenRepo
	metrics  *metrics.Metrics

	logger *zap.Logger
	now    func() time.Time
}

// NewRelayService creates a new relay service
func NewRelayService(
	cfg RelayConfig,
	admission *usecase.AdmissionUsecase,
	messenger repo.MessengerRepo,
	profiles repo.ProfileRepo,
	ledger repo.LedgerRepo,
	logger *zap.Logger,
) *RelayService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.EnrichPolicy == "" {
		cfg.EnrichPolicy = EnrichAbort
	}
	return &RelayService{
		cfg:       cfg,
		admission: admission,
		messenger: messenger,
		profiles:  profiles,
		ledger:    ledger,
		logger:    logger.Named("relay"),
		now:       time.Now,
	}
}

// SetNotifier enables the danmaku fan-out after each forward
func (s *RelayService) SetNotifier(n repo.NotifierRepo) { s.notifier = n }

// SetArchive enables the forward archive
func (s *RelayService) SetArchive(a repo.ArchiveRepo) { s.archive = a }

// SetScreen enables the LLM screen after admission
func (s *RelayService) SetScreen(sc repo.ScreenRepo) { s.screen = sc }

// SetMetrics enables Prometheus counters
func (s *RelayService) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// HandleMessage runs one inbound message through admission, dedupe and dispatch.
// Failures are logged and reported through the result, never returned.
func (s *RelayService) HandleMessage(ctx context.Context, msg *domain.InboundMessage) Result {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	log := s.logger.With(zap.String("msg_id", msg.ID), zap.String("chat_id", msg.ChannelID))

	if msg.IsFromApp() {
		s.countMessage(string(ResultSelf))
		return ResultSelf
	}

	decision := s.admission.Evaluate(msg)
	if !decision.Admitted() {
		if decision.Gate == usecase.GateRoomID && len(decision.RoomIDs) > 1 {
			log.Info("ambiguous room id", zap.Strings("candidates", decision.RoomIDs))
		} else {
			log.Debug("message ignored", zap.String("gate", string(decision.Gate)))
		}
		s.countMessage(string(decision.Gate))
		return Result(decision.Gate)
	}

	if s.screen != nil {
		ok, err := s.screen.IsRewardAnnouncement(ctx, msg.Text)
		if err != nil {
			log.Warn("screen failed, admitting", zap.Error(err))
		} else if !ok {
			log.Debug("message ignored", zap.String("gate", string(usecase.GateScreen)))
			s.countMessage(string(usecase.GateScreen))
			return Result(usecase.GateScreen)
		}
	}
	s.countMessage(string(usecase.GateAdmitted))

	event := decision.Event
	log = log.With(zap.String("room_id", decision.RoomID), zap.String("date_time", event.DateTime))
	monitor, _ := s.admission.Monitor(msg.ChannelID)
	source := domain.ChannelTarget(msg.ChannelID)

	key := domain.EventKey{RoomID: decision.RoomID, DateTime: event.DateTime}
	if !s.ledger.Reserve(key) {
		log.Info("duplicate event suppressed")
		s.countForward(ResultDuplicate)
		if monitor.SendHelperMessages {
			s.warnDuplicate(ctx, log, msg, source)
		}
		return ResultDuplicate
	}
	committed := false
	defer func() {
		if !committed {
			s.ledger.Release(key)
		}
	}()

	videoCount := int64(-1)
	profile, err := s.profiles.Lookup(ctx, decision.RoomID)
	if err != nil {
		if s.cfg.EnrichPolicy != EnrichForwardBare {
			log.Warn("enrichment failed, not forwarding", zap.Error(err))
			s.countForward(ResultEnrichFailed)
			return ResultEnrichFailed
		}
		log.Warn("enrichment failed, forwarding bare message", zap.Error(err))
	} else {
		videoCount = profile.VideoCount
	}

	var helperID string
	if monitor.SendHelperMessages && profile != nil {
		ids, err := s.messenger.SendText(ctx, source, HelperNote(decision.RoomID, profile.VideoCount))
		if err != nil {
			log.Warn("helper note not sent", zap.Error(err))
		} else if len(ids) > 0 {
			helperID = ids[0]
		}
	}

	ids, err := s.messenger.SendText(ctx, s.cfg.Destination, ForwardPayload(msg.Text, profile))
	if err == nil && len(ids) == 0 {
		err = fmt.Errorf("%w: no message id returned", domain.ErrDispatch)
	}
	if err != nil {
		log.Error("forward failed", zap.Error(err))
		s.countForward(ResultSendFailed)
		if helperID != "" {
			s.retract(ctx, log, "helper", source, helperID)
		}
		if _, err := s.messenger.SendText(ctx, source, failureApology); err != nil {
			log.Warn("failure notice not sent", zap.Error(err))
		}
		return ResultSendFailed
	}

	entry := domain.ForwardedEntry{
		SourceMessageID:    msg.ID,
		ChannelID:          msg.ChannelID,
		ForwardedMessageID: ids[0],
		HelperMessageID:    helperID,
		RoomID:             decision.RoomID,
		DateTime:           event.DateTime,
		CreatedAt:          s.now(),
	}
	s.ledger.Commit(entry)
	committed = true
	s.countForward(ResultForwarded)
	log.Info("event forwarded", zap.String("forwarded_msg_id", entry.ForwardedMessageID), zap.Int64("video", videoCount))

	if s.archive != nil {
		if err := s.archive.Record(ctx, entry, event, videoCount); err != nil {
			log.Warn("archive record failed", zap.Error(err))
		}
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, event.Summary())
	}

	return ResultForwarded
}

// HandleRecall retracts everything the relay sent because of a recalled message.
// The ledger entry is dropped before any retraction is attempted.
func (s *RelayService) HandleRecall(ctx context.Context, ev domain.RecallEvent) Result {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	log := s.logger.With(zap.String("msg_id", ev.MessageID))

	if entry, ok := s.ledger.TakeBySource(ev.MessageID); ok {
		if entry.HelperMessageID != "" {
			s.retract(ctx, log, "helper", domain.ChannelTarget(entry.ChannelID), entry.HelperMessageID)
		}
		s.retract(ctx, log, "forward", s.cfg.Destination, entry.ForwardedMessageID)

		if s.archive != nil {
			if err := s.archive.MarkRetracted(ctx, ev.MessageID); err != nil {
				log.Warn("archive update failed", zap.Error(err))
			}
		}
		log.Info("forward retracted", zap.String("room_id", entry.RoomID))
		return ResultRetracted
	}

	if w, ok := s.ledger.TakeWarning(ev.MessageID); ok {
		s.retract(ctx, log, "warning", domain.ChannelTarget(w.ChannelID), w.WarningMessageID)
		return ResultWarningRetracted
	}

	return ResultNoop
}

func (s *RelayService) warnDuplicate(ctx context.Context, log *zap.Logger, msg *domain.InboundMessage, source domain.Target) {
	ids, err := s.messenger.SendText(ctx, source, duplicateNotice)
	if err != nil {
		log.Warn("duplicate notice not sent", zap.Error(err))
		return
	}
	if len(ids) == 0 {
		return
	}
	s.ledger.PutWarning(domain.PendingWarning{
		SourceMessageID:  msg.ID,
		WarningMessageID: ids[0],
		ChannelID:        msg.ChannelID,
	})
}

func (s *RelayService) retract(ctx context.Context, log *zap.Logger, kind string, target domain.Target, msgID string) {
	result := "ok"
	if err := s.messenger.Recall(ctx, target, msgID); err != nil {
		result = "failed"
		log.Warn("recall failed", zap.String("kind", kind), zap.String("target_msg_id", msgID), zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.RetractionsTotal.WithLabelValues(kind, result).Inc()
	}
}

func (s *RelayService) countMessage(result string) {
	if s.metrics != nil {
		s.metrics.MessagesTotal.WithLabelValues(result).Inc()
	}
}

func (s *RelayService) countForward(result Result) {
	if s.metrics != nil {
		s.metrics.ForwardsTotal.WithLabelValues(string(result)).Inc()
	}
}

// HelperNote is the note sent back to the source channel
func HelperNote(roomID string, videoCount int64) string {
	return fmt.Sprintf("房间号 %s\n用户投稿数: %d", roomID, videoCount)
}

// ForwardPayload decorates the original text with the fetched statistic.
// Without a profile the text is forwarded unchanged.
func ForwardPayload(text string, profile *domain.Profile) string {
	if profile == nil {
		return text
	}
	return fmt.Sprintf("%s\n——\n用户投稿数: %d", text, profile.VideoCount)
}

