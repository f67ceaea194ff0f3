package usecase

import (
	"strings"

	"github.com/DevRickLin/reward-relay/internal/biz/domain"
)

// EventParser combines the time and reward extractors over a whole message
type EventParser struct {
	times   *TimeExtractor
	rewards *RewardExtractor
}

// NewEventParser creates a new event parser
func NewEventParser(times *TimeExtractor, rewards *RewardExtractor) *EventParser {
	return &EventParser{
		times:   times,
		rewards: rewards,
	}
}

// Parse returns nil when the text carries no reward.
// The first line with a recognizable time decides the event time.
func (p *EventParser) Parse(text string) *domain.ParsedEvent {
	lines := nonBlankLines(text)

	dateTime := domain.UnknownTime
	for _, line := range lines {
		if label, ok := p.times.Extract(line); ok {
			dateTime = label
			break
		}
	}

	rewards := p.rewards.Extract(lines)
	if len(rewards) == 0 {
		return nil
	}

	return &domain.ParsedEvent{
		DateTime: dateTime,
		Rewards:  rewards,
	}
}

func nonBlankLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
