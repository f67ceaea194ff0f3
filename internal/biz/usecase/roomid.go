package usecase

import (
	"regexp"
	"sort"

	"github.com/DevRickLin/reward-relay/internal/biz/domain"
)

var (
	markupRe = regexp.MustCompile(`<[^>]*>`)

	explicitRoomRes = []*regexp.Regexp{
		regexp.MustCompile(`(?:房间号|直播间号|直播间|房间|频道号|频道|直播)[\s:：#]*(\d{3,15})(?:\D|$)`),
		regexp.MustCompile(`live\.bilibili\.com/(?:h5/)?(\d{3,15})(?:\D|$)`),
	}

	genericRoomRe = regexp.MustCompile(`\b\d{6,15}\b`)
)

// RoomIDExtractor finds the room id a message refers to.
// Callers treat anything but exactly one result as "do not process".
type RoomIDExtractor struct {
	rewards *RewardExtractor
}

// NewRoomIDExtractor creates a room id extractor.
// rewards is used to rule out numbers already explained as amounts.
func NewRoomIDExtractor(rewards *RewardExtractor) *RoomIDExtractor {
	return &RoomIDExtractor{rewards: rewards}
}

// Extract returns the candidate room ids found in text
func (e *RoomIDExtractor) Extract(text string) []string {
	text = markupRe.ReplaceAllString(text, "")

	// Explicit labels win outright
	var explicit []string
	for _, re := range explicitRoomRes {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			explicit = appendDistinct(explicit, m[1])
		}
	}
	if len(explicit) > 0 {
		return explicit
	}

	var candidates []string
	for _, c := range genericRoomRe.FindAllString(text, -1) {
		candidates = appendDistinct(candidates, c)
	}
	if len(candidates) <= 1 {
		return candidates
	}

	// A number already read as a reward amount is not a room id
	amounts := make(map[string]bool)
	for _, r := range e.rewards.Extract(nonBlankLines(NormalizeNumerals(text))) {
		amounts[domain.FormatAmount(r.Amount)] = true
	}
	remaining := candidates[:0:0]
	for _, c := range candidates {
		if !amounts[c] {
			remaining = append(remaining, c)
		}
	}
	if len(remaining) <= 1 {
		return remaining
	}

	// Longer ids are more likely to be complete. Several candidates sharing
	// the longest length stay ambiguous and are all returned.
	sort.SliceStable(remaining, func(i, j int) bool {
		return len(remaining[i]) > len(remaining[j])
	})
	longest := len(remaining[0])
	n := 1
	for n < len(remaining) && len(remaining[n]) == longest {
		n++
	}
	return remaining[:n]
}

func appendDistinct(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
