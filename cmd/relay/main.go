package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/DevRickLin/reward-relay/internal/api"
	"github.com/DevRickLin/reward-relay/internal/biz"
	"github.com/DevRickLin/reward-relay/internal/conf"
	"github.com/DevRickLin/reward-relay/internal/data"
	"github.com/DevRickLin/reward-relay/internal/infra/feishu"
	"github.com/DevRickLin/reward-relay/internal/infra/moonshot"
	"github.com/DevRickLin/reward-relay/internal/metrics"
	"github.com/DevRickLin/reward-relay/internal/server"
	"github.com/DevRickLin/reward-relay/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := conf.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if cfg.FilePath != "" {
		logger.Info("config file loaded", zap.String("path", cfg.FilePath))
	}

	m := metrics.New()

	// Initialize clients
	feishuClient := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret, logger)

	var moonshotClient *moonshot.Client
	if cfg.Moonshot.APIKey != "" {
		moonshotClient = moonshot.NewClient(cfg.Moonshot.APIKey, cfg.Moonshot.Model)
		logger.Info("moonshot screen enabled")
	}

	// Initialize repository layer
	repos, err := data.NewRepositories(feishuClient, moonshotClient, data.Options{
		HistorySize:       cfg.Relay.HistorySize,
		ProfileBaseURL:    cfg.Profile.BaseURL,
		ProfileRatePerSec: cfg.Profile.RatePerSec,
		DanmakuBaseURL:    cfg.Danmaku.BaseURL,
		DanmakuTargets:    cfg.ToNotifyTargets(),
		DanmakuRetryDelay: cfg.Danmaku.RetryDelay,
		ArchiveDBPath:     cfg.Archive.DBPath,
		ScreenPrompt:      cfg.Moonshot.ScreenPrompt,
	}, m, logger)
	if err != nil {
		logger.Fatal("failed to create repositories", zap.Error(err))
	}

	// Initialize usecase layer
	uc := biz.NewUsecases(cfg.ToMonitors(), cfg.ToAdmissionRules(), time.Now)

	// Initialize service layer
	relaySvc := service.NewRelayService(cfg.ToRelayConfig(), uc.Admission, repos.Messenger, repos.Profile, repos.Ledger, logger)
	relaySvc.SetMetrics(m)
	if repos.Notifier != nil {
		relaySvc.SetNotifier(repos.Notifier)
	}
	if repos.Archive != nil {
		relaySvc.SetArchive(repos.Archive)
	}
	if repos.Screen != nil {
		relaySvc.SetScreen(repos.Screen)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize admin API
	var apiServer *api.Server
	if cfg.APIPort > 0 {
		apiServer = api.NewServer(uc.Admission, repos.Ledger, repos.Archive, cfg.APIPort, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("API server error", zap.Error(err))
			}
		}()
	}

	srv := server.NewFeishuServer(feishuClient, relaySvc, logger)
	go func() {
		if err := srv.Start(ctx); err != nil {
			logger.Error("feishu server error", zap.Error(err))
			stop()
		}
	}()

	logger.Info("reward relay started",
		zap.Int("monitors", len(cfg.Relay.Monitors)),
		zap.String("destination", cfg.Relay.DestID),
		zap.Int("history_size", cfg.Relay.HistorySize),
		zap.String("enrich_policy", cfg.Relay.EnrichPolicy),
	)

	<-ctx.Done()
	logger.Info("shutting down")

	srv.Stop()
	if apiServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := apiServer.Stop(shutdownCtx); err != nil {
			logger.Warn("API server shutdown", zap.Error(err))
		}
		cancel()
	}
	if err := repos.Close(); err != nil {
		logger.Warn("closing repositories", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}
