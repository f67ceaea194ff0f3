package repo

import (
	"context"

	"github.com/DevRickLin/reward-relay/internal/biz/domain"
)

// ProfileRepo is the enrichment lookup interface
type ProfileRepo interface {
	// Lookup resolves room -> owner -> video count
	// Any failure wraps domain.ErrEnrichment
	Lookup(ctx context.Context, roomID string) (*domain.Profile, error)
}
