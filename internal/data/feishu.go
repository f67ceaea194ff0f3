package data

import (
	"context"
	"fmt"

	"github.com/DevRickLin/reward-relay/internal/biz/domain"
	"github.com/DevRickLin/reward-relay/internal/biz/repo"
	"github.com/DevRickLin/reward-relay/internal/infra/feishu"
)

// feishuRepo implements the messenger repository over the Feishu client
type feishuRepo struct {
	client *feishu.Client
}

// NewFeishuRepo creates a new Feishu repository
func NewFeishuRepo(client *feishu.Client) repo.MessengerRepo {
	return &feishuRepo{client: client}
}

// SendText sends a text message to a chat or user
func (r *feishuRepo) SendText(ctx context.Context, target domain.Target, text string) ([]string, error) {
	msgID, err := r.client.SendText(ctx, target.ID, target.IsGroup, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDispatch, err)
	}
	return []string{msgID}, nil
}

// Recall deletes a message the bot sent; Feishu only needs the message id
func (r *feishuRepo) Recall(ctx context.Context, _ domain.Target, msgID string) error {
	return r.client.DeleteMessage(ctx, msgID)
}
