package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/reward-relay/internal/biz/domain"
	"github.com/DevRickLin/reward-relay/internal/biz/repo"
	"github.com/DevRickLin/reward-relay/internal/biz/usecase"
	"github.com/DevRickLin/reward-relay/internal/data"
)

// Mock implementations

type sentMessage struct {
	target domain.Target
	text   string
	id     string
}

type mockMessenger struct {
	mu       sync.Mutex
	seq      int
	sent     []sentMessage
	recalled []string
	failTo   map[string]bool // target ids that reject sends
	failDel  bool
}

func (m *mockMessenger) SendText(ctx context.Context, target domain.Target, text string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTo[target.ID] {
		return nil, fmt.Errorf("%w: target unavailable", domain.ErrDispatch)
	}
	m.seq++
	id := fmt.Sprintf("om_out_%d", m.seq)
	m.sent = append(m.sent, sentMessage{target: target, text: text, id: id})
	return []string{id}, nil
}

func (m *mockMessenger) Recall(ctx context.Context, target domain.Target, msgID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recalled = append(m.recalled, msgID)
	if m.failDel {
		return errors.New("message already deleted")
	}
	return nil
}

func (m *mockMessenger) sentTo(targetID string) []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sentMessage
	for _, s := range m.sent {
		if s.target.ID == targetID {
			out = append(out, s)
		}
	}
	return out
}

type mockProfileRepo struct {
	videos int64
	err    error
	calls  int
}

func (m *mockProfileRepo) Lookup(ctx context.Context, roomID string) (*domain.Profile, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Profile{RoomID: roomID, UID: 1, VideoCount: m.videos}, nil
}

type mockNotifier struct {
	texts []string
}

func (m *mockNotifier) Notify(ctx context.Context, text string) { m.texts = append(m.texts, text) }
func (m *mockNotifier) Wait()                                   {}

type mockScreen struct {
	verdict bool
	err     error
}

func (m *mockScreen) IsRewardAnnouncement(ctx context.Context, text string) (bool, error) {
	return m.verdict, m.err
}

type mockArchive struct {
	recorded  []string
	retracted []string
}

func (m *mockArchive) Record(ctx context.Context, entry domain.ForwardedEntry, event *domain.ParsedEvent, videoCount int64) error {
	m.recorded = append(m.recorded, entry.SourceMessageID)
	return nil
}

func (m *mockArchive) MarkRetracted(ctx context.Context, sourceMessageID string) error {
	m.retracted = append(m.retracted, sourceMessageID)
	return nil
}

func (m *mockArchive) Recent(ctx context.Context, limit int) ([]*repo.ArchivedEvent, error) {
	return nil, nil
}

func (m *mockArchive) Close() error { return nil }

// Fixture

const (
	watchedChat = "oc_watch"
	quietChat   = "oc_quiet"
	destChat    = "oc_dest"
	announce    = "房间号12345678\n11月28日\n14级灯牌发2w"
)

type fixture struct {
	svc       *RelayService
	messenger *mockMessenger
	profiles  *mockProfileRepo
	ledger    repo.LedgerRepo
}

func newFixture(t *testing.T, policy EnrichPolicy) *fixture {
	t.Helper()

	rewards := usecase.NewRewardExtractor()
	admission := usecase.NewAdmissionUsecase(
		[]domain.MonitorTarget{
			{ChannelID: watchedChat, SendHelperMessages: true},
			{ChannelID: quietChat, SendHelperMessages: false},
		},
		usecase.DefaultAdmissionRules(),
		usecase.NewRoomIDExtractor(rewards),
		usecase.NewEventParser(usecase.NewTimeExtractor(nil), rewards),
	)

	f := &fixture{
		messenger: &mockMessenger{failTo: map[string]bool{}},
		profiles:  &mockProfileRepo{videos: 500},
		ledger:    data.NewLedgerRepo(30, nil, nil),
	}
	f.svc = NewRelayService(
		RelayConfig{Destination: domain.ChannelTarget(destChat), EnrichPolicy: policy},
		admission, f.messenger, f.profiles, f.ledger, nil,
	)
	return f
}

func msg(id, chat, text string) *domain.InboundMessage {
	return &domain.InboundMessage{ID: id, ChannelID: chat, Text: text, MsgType: "text", SenderType: "user"}
}

// Tests

func TestHandleMessage_ForwardsAndSuppressesDuplicate(t *testing.T) {
	f := newFixture(t, EnrichAbort)
	ctx := context.Background()

	require.Equal(t, ResultForwarded, f.svc.HandleMessage(ctx, msg("om_1", watchedChat, announce)))

	forwards := f.messenger.sentTo(destChat)
	require.Len(t, forwards, 1)
	assert.Equal(t, announce+"\n——\n用户投稿数: 500", forwards[0].text)

	helpers := f.messenger.sentTo(watchedChat)
	require.Len(t, helpers, 1)
	assert.Equal(t, "房间号 12345678\n用户投稿数: 500", helpers[0].text)

	entries := f.ledger.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "12345678", entries[0].RoomID)
	assert.Equal(t, "11月28日", entries[0].DateTime)
	assert.Equal(t, "om_1", entries[0].SourceMessageID)
	assert.Equal(t, forwards[0].id, entries[0].ForwardedMessageID)
	assert.Equal(t, helpers[0].id, entries[0].HelperMessageID)

	// Same event again
	assert.Equal(t, ResultDuplicate, f.svc.HandleMessage(ctx, msg("om_2", watchedChat, announce)))
	assert.Len(t, f.messenger.sentTo(destChat), 1)
	assert.Len(t, f.ledger.Entries(), 1)

	notices := f.messenger.sentTo(watchedChat)
	require.Len(t, notices, 2)
	assert.Equal(t, "看到啦", notices[1].text)
	assert.Equal(t, 1, f.profiles.calls)
}

func TestHandleMessage_NoHelperMessagesWhenDisabled(t *testing.T) {
	f := newFixture(t, EnrichAbort)
	ctx := context.Background()

	require.Equal(t, ResultForwarded, f.svc.HandleMessage(ctx, msg("om_1", quietChat, announce)))
	require.Equal(t, ResultDuplicate, f.svc.HandleMessage(ctx, msg("om_2", quietChat, announce)))

	assert.Empty(t, f.messenger.sentTo(quietChat))
	assert.Empty(t, f.ledger.Entries()[0].HelperMessageID)
}

func TestHandleMessage_AmbiguousRoomDropped(t *testing.T) {
	f := newFixture(t, EnrichAbort)

	got := f.svc.HandleMessage(context.Background(), msg("om_1", watchedChat, "123456789 和 987654321 今晚发2w"))

	assert.Equal(t, Result(usecase.GateRoomID), got)
	assert.Empty(t, f.messenger.sent)
	assert.Empty(t, f.ledger.Entries())
}

func TestHandleMessage_CheckInDropped(t *testing.T) {
	f := newFixture(t, EnrichAbort)

	got := f.svc.HandleMessage(context.Background(), msg("om_1", watchedChat, "签到110+"))

	assert.Equal(t, Result(usecase.GateCheckIn), got)
	assert.Empty(t, f.messenger.sent)
	assert.Empty(t, f.ledger.Entries())
}

func TestHandleMessage_IgnoresOwnMessages(t *testing.T) {
	f := newFixture(t, EnrichAbort)
	m := msg("om_1", watchedChat, announce)
	m.SenderType = "app"

	assert.Equal(t, ResultSelf, f.svc.HandleMessage(context.Background(), m))
	assert.Empty(t, f.messenger.sent)
}

func TestHandleMessage_EnrichmentFailureAborts(t *testing.T) {
	f := newFixture(t, EnrichAbort)
	f.profiles.err = fmt.Errorf("%w: room-info code=-1", domain.ErrEnrichment)
	ctx := context.Background()

	assert.Equal(t, ResultEnrichFailed, f.svc.HandleMessage(ctx, msg("om_1", watchedChat, announce)))
	assert.Empty(t, f.messenger.sent, "nothing is surfaced to chat")
	assert.Empty(t, f.ledger.Entries())

	// The reservation was released, so a retry can go through
	f.profiles.err = nil
	assert.Equal(t, ResultForwarded, f.svc.HandleMessage(ctx, msg("om_2", watchedChat, announce)))
}

func TestHandleMessage_EnrichmentFailureForwardsBare(t *testing.T) {
	f := newFixture(t, EnrichForwardBare)
	f.profiles.err = fmt.Errorf("%w: timeout", domain.ErrEnrichment)

	require.Equal(t, ResultForwarded, f.svc.HandleMessage(context.Background(), msg("om_1", watchedChat, announce)))

	forwards := f.messenger.sentTo(destChat)
	require.Len(t, forwards, 1)
	assert.Equal(t, announce, forwards[0].text)
	assert.Empty(t, f.messenger.sentTo(watchedChat), "no helper note without a profile")
	assert.Len(t, f.ledger.Entries(), 1)
}

func TestHandleMessage_DispatchFailure(t *testing.T) {
	f := newFixture(t, EnrichAbort)
	f.messenger.failTo[destChat] = true

	assert.Equal(t, ResultSendFailed, f.svc.HandleMessage(context.Background(), msg("om_1", watchedChat, announce)))
	assert.Empty(t, f.ledger.Entries())

	source := f.messenger.sentTo(watchedChat)
	require.Len(t, source, 2)
	assert.Equal(t, "转发失败了，请稍后重试", source[1].text)
	assert.Equal(t, []string{source[0].id}, f.messenger.recalled, "orphaned helper note is recalled")
}

func TestHandleMessage_ScreenRejects(t *testing.T) {
	f := newFixture(t, EnrichAbort)
	f.svc.SetScreen(&mockScreen{verdict: false})

	assert.Equal(t, Result(usecase.GateScreen), f.svc.HandleMessage(context.Background(), msg("om_1", watchedChat, announce)))
	assert.Empty(t, f.messenger.sent)
}

func TestHandleMessage_ScreenFailsOpen(t *testing.T) {
	f := newFixture(t, EnrichAbort)
	f.svc.SetScreen(&mockScreen{err: errors.New("quota exceeded")})

	assert.Equal(t, ResultForwarded, f.svc.HandleMessage(context.Background(), msg("om_1", watchedChat, announce)))
}

func TestHandleMessage_NotifiesAndArchives(t *testing.T) {
	f := newFixture(t, EnrichAbort)
	notifier := &mockNotifier{}
	archive := &mockArchive{}
	f.svc.SetNotifier(notifier)
	f.svc.SetArchive(archive)
	ctx := context.Background()

	require.Equal(t, ResultForwarded, f.svc.HandleMessage(ctx, msg("om_1", watchedChat, announce)))
	require.Len(t, notifier.texts, 1)
	assert.True(t, strings.HasPrefix(notifier.texts[0], "11月28日"))
	assert.Equal(t, []string{"om_1"}, archive.recorded)

	require.Equal(t, ResultRetracted, f.svc.HandleRecall(ctx, domain.RecallEvent{MessageID: "om_1", ChannelID: watchedChat}))
	assert.Equal(t, []string{"om_1"}, archive.retracted)
}

func TestHandleRecall_RetractsForwardAndHelper(t *testing.T) {
	f := newFixture(t, EnrichAbort)
	ctx := context.Background()
	require.Equal(t, ResultForwarded, f.svc.HandleMessage(ctx, msg("om_1", watchedChat, announce)))
	entry := f.ledger.Entries()[0]

	assert.Equal(t, ResultRetracted, f.svc.HandleRecall(ctx, domain.RecallEvent{MessageID: "om_1", ChannelID: watchedChat}))
	assert.ElementsMatch(t, []string{entry.HelperMessageID, entry.ForwardedMessageID}, f.messenger.recalled)
	assert.Empty(t, f.ledger.Entries())

	// Second recall of the same source is a no-op
	assert.Equal(t, ResultNoop, f.svc.HandleRecall(ctx, domain.RecallEvent{MessageID: "om_1", ChannelID: watchedChat}))
	assert.Len(t, f.messenger.recalled, 2)

	// The event can be forwarded again once retracted
	assert.Equal(t, ResultForwarded, f.svc.HandleMessage(ctx, msg("om_3", watchedChat, announce)))
}

func TestHandleRecall_FailuresStillRemoveEntry(t *testing.T) {
	f := newFixture(t, EnrichAbort)
	f.messenger.failDel = true
	ctx := context.Background()
	require.Equal(t, ResultForwarded, f.svc.HandleMessage(ctx, msg("om_1", watchedChat, announce)))

	assert.Equal(t, ResultRetracted, f.svc.HandleRecall(ctx, domain.RecallEvent{MessageID: "om_1"}))
	assert.Len(t, f.messenger.recalled, 2, "both recalls attempted")
	assert.Empty(t, f.ledger.Entries())
}

func TestHandleRecall_RetractsDuplicateNotice(t *testing.T) {
	f := newFixture(t, EnrichAbort)
	ctx := context.Background()
	require.Equal(t, ResultForwarded, f.svc.HandleMessage(ctx, msg("om_1", watchedChat, announce)))
	require.Equal(t, ResultDuplicate, f.svc.HandleMessage(ctx, msg("om_2", watchedChat, announce)))
	notice := f.messenger.sentTo(watchedChat)[1]

	assert.Equal(t, ResultWarningRetracted, f.svc.HandleRecall(ctx, domain.RecallEvent{MessageID: "om_2"}))
	assert.Equal(t, []string{notice.id}, f.messenger.recalled)
	assert.Len(t, f.ledger.Entries(), 1, "original forward untouched")

	assert.Equal(t, ResultNoop, f.svc.HandleRecall(ctx, domain.RecallEvent{MessageID: "om_2"}))
}

func TestHandleRecall_UnknownMessage(t *testing.T) {
	f := newFixture(t, EnrichAbort)

	assert.Equal(t, ResultNoop, f.svc.HandleRecall(context.Background(), domain.RecallEvent{MessageID: "om_x"}))
	assert.Empty(t, f.messenger.recalled)
}

func TestHandleMessage_ConcurrentDuplicatesForwardOnce(t *testing.T) {
	f := newFixture(t, EnrichAbort)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.svc.HandleMessage(ctx, msg(fmt.Sprintf("om_%d", i), quietChat, announce))
		}(i)
	}
	wg.Wait()

	forwarded := 0
	for _, r := range results {
		if r == ResultForwarded {
			forwarded++
		}
	}
	assert.Equal(t, 1, forwarded)
	assert.Len(t, f.messenger.sentTo(destChat), 1)
	assert.Len(t, f.ledger.Entries(), 1)
}

func TestForwardPayload(t *testing.T) {
	assert.Equal(t, "text\n——\n用户投稿数: 7", ForwardPayload("text", &domain.Profile{VideoCount: 7}))
	assert.Equal(t, "text", ForwardPayload("text", nil))
}
