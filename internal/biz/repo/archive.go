package repo

import (
	"context"
	"time"

	"github.com/DevRickLin/reward-relay/internal/biz/domain"
)

// ArchivedEvent is a forwarded event as stored in the archive
type ArchivedEvent struct {
	ID              int64           `json:"id"`
	SourceMessageID string          `json:"source_message_id"`
	RoomID          string          `json:"room_id"`
	DateTime        string          `json:"date_time"`
	Rewards         []domain.Reward `json:"rewards"`
	VideoCount      int64           `json:"video_count"` // -1 when enrichment was skipped
	CreatedAt       time.Time       `json:"created_at"`
	RetractedAt     *time.Time      `json:"retracted_at,omitempty"`
}

// ArchiveRepo is the write-only history of forwarded events
// It is never read back into the ledger
type ArchiveRepo interface {
	Record(ctx context.Context, entry domain.ForwardedEntry, event *domain.ParsedEvent, videoCount int64) error
	MarkRetracted(ctx context.Context, sourceMessageID string) error
	Recent(ctx context.Context, limit int) ([]*ArchivedEvent, error)
	Close() error
}
