package data

import (
	"sync"

	"go.uber.org/zap"

	"github.com/DevRickLin/reward-relay/internal/biz/domain"
	"github.com/DevRickLin/reward-relay/internal/biz/repo"
	"github.com/DevRickLin/reward-relay/internal/metrics"
)

// ledgerRepo guards the in-memory ledger and warning book with one mutex
type ledgerRepo struct {
	mu       sync.Mutex
	ledger   *domain.Ledger
	warnings *domain.WarningBook
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewLedgerRepo creates a ledger holding at most capacity forwards and as many warnings
func NewLedgerRepo(capacity int, m *metrics.Metrics, logger *zap.Logger) repo.LedgerRepo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ledgerRepo{
		ledger:   domain.NewLedger(capacity),
		warnings: domain.NewWarningBook(capacity),
		metrics:  m,
		logger:   logger.Named("ledger"),
	}
}

func (r *ledgerRepo) Reserve(key domain.EventKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ledger.Reserve(key)
}

func (r *ledgerRepo) Release(key domain.EventKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ledger.Release(key)
}

func (r *ledgerRepo) Commit(entry domain.ForwardedEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.ledger.Commit(entry) {
		r.logger.Debug("evicted oldest entry",
			zap.String("source_msg_id", e.SourceMessageID),
			zap.String("room_id", e.RoomID),
		)
	}
	r.observe()
}

func (r *ledgerRepo) TakeBySource(sourceMessageID string) (domain.ForwardedEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.ledger.TakeBySource(sourceMessageID)
	if ok {
		r.observe()
	}
	return entry, ok
}

func (r *ledgerRepo) Entries() []domain.ForwardedEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ledger.Entries()
}

func (r *ledgerRepo) PutWarning(w domain.PendingWarning) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings.Put(w)
}

func (r *ledgerRepo) TakeWarning(sourceMessageID string) (domain.PendingWarning, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.warnings.Take(sourceMessageID)
}

// observe must be called with mu held
func (r *ledgerRepo) observe() {
	if r.metrics != nil {
		r.metrics.LedgerEntries.Set(float64(r.ledger.Len()))
	}
}
