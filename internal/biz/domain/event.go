package domain

import (
	"strconv"
	"strings"
)

const (
	// UnknownTime is the date/time label used when no time expression was found
	UnknownTime = "时间未知"

	// NoRestriction is the reward condition used when no level requirement was found
	NoRestriction = "无限制"
)

// Reward represents an announced giveaway amount and its eligibility condition
type Reward struct {
	Amount    float64 `json:"amount"`
	Condition string  `json:"condition"`
}

// AmountString formats the amount the way it is written in chat (no trailing zeros)
func (r Reward) AmountString() string {
	return FormatAmount(r.Amount)
}

// FormatAmount formats an amount without exponent or trailing zeros
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

// LevelCondition builds the normalized tier-badge condition label
func LevelCondition(level int) string {
	return strconv.Itoa(level) + "级灯牌"
}

// ParsedEvent is the structured result of parsing one message.
// A ParsedEvent always carries at least one reward.
type ParsedEvent struct {
	DateTime string   `json:"date_time"`
	Rewards  []Reward `json:"rewards"`
}

// HasKnownTime checks if a time expression was found
func (e *ParsedEvent) HasKnownTime() bool {
	return e.DateTime != "" && e.DateTime != UnknownTime
}

// Summary renders the rewards as a short single-line description
func (e *ParsedEvent) Summary() string {
	parts := make([]string, 0, len(e.Rewards))
	for _, r := range e.Rewards {
		parts = append(parts, r.Condition+" "+r.AmountString())
	}
	return e.DateTime + " " + strings.Join(parts, ", ")
}

// Profile is the enrichment data fetched for a room
type Profile struct {
	RoomID     string
	UID        int64
	VideoCount int64
}
