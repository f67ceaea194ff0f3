package repo

import "context"

// ScreenRepo is the LLM screening interface
type ScreenRepo interface {
	// IsRewardAnnouncement asks the model whether text announces a live reward
	IsRewardAnnouncement(ctx context.Context, text string) (bool, error)
}
