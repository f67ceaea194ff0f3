package data

import (
	"time"

	"go.uber.org/zap"

	"github.com/DevRickLin/reward-relay/internal/biz/domain"
	"github.com/DevRickLin/reward-relay/internal/biz/repo"
	"github.com/DevRickLin/reward-relay/internal/infra/feishu"
	"github.com/DevRickLin/reward-relay/internal/infra/moonshot"
	"github.com/DevRickLin/reward-relay/internal/metrics"
)

// Options carries what the repositories need beyond the clients
type Options struct {
	HistorySize       int
	ProfileBaseURL    string
	ProfileRatePerSec float64
	DanmakuBaseURL    string
	DanmakuTargets    []domain.NotifyTarget
	DanmakuRetryDelay time.Duration
	ArchiveDBPath     string // Empty disables the archive
	ScreenPrompt      string
}

// Repositories contains all repositories
type Repositories struct {
	Messenger repo.MessengerRepo
	Profile   repo.ProfileRepo
	Notifier  repo.NotifierRepo // nil when no targets are configured
	Ledger    repo.LedgerRepo
	Archive   repo.ArchiveRepo // nil when disabled
	Screen    repo.ScreenRepo  // nil when disabled
}

// NewRepositories creates all repositories
func NewRepositories(
	feishuClient *feishu.Client,
	moonshotClient *moonshot.Client,
	opts Options,
	m *metrics.Metrics,
	logger *zap.Logger,
) (*Repositories, error) {
	repos := &Repositories{
		Messenger: NewFeishuRepo(feishuClient),
		Profile:   NewProfileRepo(opts.ProfileBaseURL, opts.ProfileRatePerSec, logger),
		Ledger:    NewLedgerRepo(opts.HistorySize, m, logger),
	}

	if len(opts.DanmakuTargets) > 0 {
		repos.Notifier = NewDanmakuRepo(opts.DanmakuBaseURL, opts.DanmakuTargets, opts.DanmakuRetryDelay, m, logger)
	}

	if opts.ArchiveDBPath != "" {
		archive, err := NewArchiveRepo(opts.ArchiveDBPath)
		if err != nil {
			return nil, err
		}
		repos.Archive = archive
	}

	if moonshotClient != nil {
		repos.Screen = NewMoonshotRepo(moonshotClient, opts.ScreenPrompt)
	}

	return repos, nil
}

// Close releases resources held by the repositories
func (r *Repositories) Close() error {
	if r.Notifier != nil {
		r.Notifier.Wait()
	}
	if r.Archive != nil {
		return r.Archive.Close()
	}
	return nil
}
