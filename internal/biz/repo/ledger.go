package repo

import "github.com/DevRickLin/reward-relay/internal/biz/domain"

// LedgerRepo is the duplicate tracker and retraction ledger.
// Implementations must be safe for concurrent use.
type LedgerRepo interface {
	// Reserve claims (room, time) for a forward in progress
	Reserve(key domain.EventKey) bool
	Release(key domain.EventKey)
	Commit(entry domain.ForwardedEntry)
	TakeBySource(sourceMessageID string) (domain.ForwardedEntry, bool)
	Entries() []domain.ForwardedEntry

	// Duplicate notices
	PutWarning(w domain.PendingWarning)
	TakeWarning(sourceMessageID string) (domain.PendingWarning, bool)
}
