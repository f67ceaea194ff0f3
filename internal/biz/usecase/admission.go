package usecase

import (
	"regexp"
	"strings"

	"github.com/DevRickLin/reward-relay/internal/biz/domain"
)

// Gate names the admission step that rejected a message
type Gate string

const (
	GateAdmitted    Gate = "admitted"
	GateChannel     Gate = "channel"
	GateEmpty       Gate = "empty"
	GateHardReject  Gate = "hard_reject"
	GateCheckIn     Gate = "check_in"
	GateTrigger     Gate = "no_trigger"
	GateRoomID      Gate = "room_id"
	GateSoftReject  Gate = "soft_reject"
	GateNoEvent     Gate = "no_event"
	GateWeakContext Gate = "weak_context"
	GateScreen      Gate = "screen"
)

// AdmissionRules holds the phrase lists used by the keyword gates
type AdmissionRules struct {
	HardReject []string // Never forwarded (leaderboards, reports)
	SoftReject []string // Check-in chatter, forwarded only with an override
	Currency   []string // Reward unit keywords
	GiveVerbs  []string // "give" / "drop"
}

// DefaultAdmissionRules returns the built-in phrase lists
func DefaultAdmissionRules() AdmissionRules {
	return AdmissionRules{
		HardReject: []string{"排行榜", "榜单", "战报"},
		SoftReject: []string{"签到", "打卡", "出勤"},
		Currency:   []string{"神金", "金瓜子", "金", "钻石", "钻", "电池"},
		GiveVerbs:  []string{"发", "掉落"},
	}
}

var (
	checkInTallyRe   = regexp.MustCompile(`(?:^|\D)\d{2,3}\+`)
	tenThousandRe    = regexp.MustCompile(`\d\s*[wW万]`)
	bareAmountRe     = regexp.MustCompile(`(?:^|\D)\d{3,5}(?:\D|$)`)
	chineseNumeralRe = regexp.MustCompile(`[零〇一二两三四五六七八九十百千万亿]`)
)

// Decision is the outcome of running a message through the admission gates
type Decision struct {
	Gate       Gate
	RoomIDs    []string // Candidates found by the room id gate
	RoomID     string   // Set once exactly one candidate was found
	Normalized string
	Event      *domain.ParsedEvent
}

// Admitted checks if every gate passed
func (d *Decision) Admitted() bool {
	return d.Gate == GateAdmitted
}

// AdmissionUsecase decides whether a message announces a reward event
type AdmissionUsecase struct {
	monitors map[string]domain.MonitorTarget
	rules    AdmissionRules
	rooms    *RoomIDExtractor
	parser   *EventParser
}

// NewAdmissionUsecase creates a new admission usecase
func NewAdmissionUsecase(
	monitors []domain.MonitorTarget,
	rules AdmissionRules,
	rooms *RoomIDExtractor,
	parser *EventParser,
) *AdmissionUsecase {
	m := make(map[string]domain.MonitorTarget, len(monitors))
	for _, t := range monitors {
		m[t.ChannelID] = t
	}
	return &AdmissionUsecase{
		monitors: m,
		rules:    rules,
		rooms:    rooms,
		parser:   parser,
	}
}

// Monitor returns the configuration of a monitored channel
func (uc *AdmissionUsecase) Monitor(channelID string) (domain.MonitorTarget, bool) {
	t, ok := uc.monitors[channelID]
	return t, ok
}

// Evaluate runs every gate, starting with the channel allow-list
func (uc *AdmissionUsecase) Evaluate(msg *domain.InboundMessage) *Decision {
	if _, ok := uc.monitors[msg.ChannelID]; !ok {
		return &Decision{Gate: GateChannel}
	}
	if !msg.HasText() {
		return &Decision{Gate: GateEmpty}
	}
	return uc.EvaluateText(msg.Text)
}

// EvaluateText runs the content gates on plain text.
// Used directly by the dry-run tools, which have no channel.
func (uc *AdmissionUsecase) EvaluateText(text string) *Decision {
	if strings.TrimSpace(text) == "" {
		return &Decision{Gate: GateEmpty}
	}
	if containsAny(text, uc.rules.HardReject) {
		return &Decision{Gate: GateHardReject}
	}
	// "110+" is an attendance tally, not an amount
	if checkInTallyRe.MatchString(text) {
		return &Decision{Gate: GateCheckIn}
	}
	if !uc.hasTrigger(text) {
		return &Decision{Gate: GateTrigger}
	}

	d := &Decision{RoomIDs: uc.rooms.Extract(text)}
	if len(d.RoomIDs) != 1 {
		d.Gate = GateRoomID
		return d
	}
	d.RoomID = d.RoomIDs[0]

	if containsAny(text, uc.rules.SoftReject) && !uc.hasOverride(text) {
		d.Gate = GateSoftReject
		return d
	}

	d.Normalized = NormalizeNumerals(text)
	d.Event = uc.parser.Parse(d.Normalized)
	if d.Event == nil {
		d.Gate = GateNoEvent
		return d
	}

	if !uc.hasStrongCue(d.Normalized) && !d.Event.HasKnownTime() {
		d.Gate = GateWeakContext
		return d
	}

	d.Gate = GateAdmitted
	return d
}

func (uc *AdmissionUsecase) hasTrigger(text string) bool {
	return uc.hasStrongCue(text) ||
		bareAmountRe.MatchString(text) ||
		chineseNumeralRe.MatchString(text)
}

func (uc *AdmissionUsecase) hasOverride(text string) bool {
	return containsAny(text, uc.rules.Currency) || containsAny(text, uc.rules.GiveVerbs)
}

func (uc *AdmissionUsecase) hasStrongCue(text string) bool {
	return uc.hasOverride(text) || tenThousandRe.MatchString(text)
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(text, p) {
			return true
		}
	}
	return false
}
