package repo

import (
	"context"

	"github.com/DevRickLin/reward-relay/internal/biz/domain"
)

// MessengerRepo is the host messaging interface
// Responsible for sending and recalling messages through Feishu
type MessengerRepo interface {
	// SendText sends a text message and returns the ids of the created messages
	SendText(ctx context.Context, target domain.Target, text string) ([]string, error)

	// Recall deletes a previously sent message
	// May fail if the message is already gone
	Recall(ctx context.Context, target domain.Target, msgID string) error
}
