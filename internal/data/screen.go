package data

import (
	"context"

	"github.com/DevRickLin/reward-relay/internal/biz/repo"
	"github.com/DevRickLin/reward-relay/internal/infra/moonshot"
)

// moonshotRepo implements the LLM screen
type moonshotRepo struct {
	client *moonshot.Client
	prompt string
}

// NewMoonshotRepo creates a screen backed by Moonshot.
// An empty prompt uses the built-in one.
func NewMoonshotRepo(client *moonshot.Client, prompt string) repo.ScreenRepo {
	if prompt == "" {
		prompt = moonshot.RewardScreenPrompt
	}
	return &moonshotRepo{client: client, prompt: prompt}
}

// IsRewardAnnouncement asks the model for a verdict
func (r *moonshotRepo) IsRewardAnnouncement(ctx context.Context, text string) (bool, error) {
	return r.client.Classify(ctx, r.prompt, text)
}
