package main

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hamed0406/sourcewatch/internal/config"
	"github.com/hamed0406/sourcewatch/internal/domain"
	"github.com/hamed0406/sourcewatch/internal/fetch"
	"github.com/hamed0406/sourcewatch/internal/logging"
	"github.com/hamed0406/sourcewatch/internal/notify"
	"github.com/hamed0406/sourcewatch/internal/policy"
	"github.com/hamed0406/sourcewatch/internal/probe"
	"github.com/hamed0406/sourcewatch/internal/repo"
	"github.com/hamed0406/sourcewatch/internal/repo/file"
	"github.com/hamed0406/sourcewatch/internal/repo/memory"
	"github.com/hamed0406/sourcewatch/internal/repo/postgres"
	"github.com/hamed0406/sourcewatch/internal/repo/sqlite"
	"github.com/hamed0406/sourcewatch/internal/scheduler"
)

// app is everything a tick needs, built once per process.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	sources  []domain.MonitoredSource
	store    repo.StateStore
	state    *repo.Guarded
	router   *notify.Router
	fetchers *fetch.Registry
	checker  probe.Checker
}

func loadConfig() (config.Config, []domain.MonitoredSource, error) {
	cfg := config.FromEnv()
	if sourcesPath != "" {
		cfg.SourcesFile = sourcesPath
	}
	sources, err := config.LoadSources(cfg.SourcesFile, cfg)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, sources, nil
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, sources, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(logging.Options{Dir: cfg.LogDir, Level: cfg.LogLevel, Console: cfg.LogConsole})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var tg *notify.Telegram
	if cfg.TelegramToken != "" {
		if tg, err = notify.NewTelegram(cfg.TelegramToken, cfg.TelegramAPIURL); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("telegram: %w", err)
		}
	}
	router := notify.NewRouter(notify.RouterConfig{
		Slack:          cfg.SlackWebhooks,
		Telegram:       cfg.TelegramChats,
		DefaultChannel: cfg.DefaultChannel,
		DedupWindow:    cfg.DedupWindow,
	}, tg, logger)

	checker := probe.NewDNSAnnotator(&probe.RetryChecker{
		Inner:    probe.NewHTTPChecker(cfg.APITimeout),
		Attempts: cfg.RetryAttempts,
		Backoff:  cfg.RetryBackoff,
	})

	return &app{
		cfg:      cfg,
		logger:   logger,
		sources:  sources,
		store:    store,
		state:    repo.NewGuarded(store, logger),
		router:   router,
		fetchers: fetch.NewRegistry(fetch.NewClient(cfg.HTTPTimeout)),
		checker:  checker,
	}, nil
}

// openStore picks the state backend named by STATE_BACKEND.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repo.StateStore, error) {
	switch cfg.StateBackend {
	case "file":
		return file.New(cfg.StateDir)
	case "sqlite":
		return sqlite.Open(ctx, filepath.Clean(cfg.SQLitePath))
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("STATE_BACKEND=postgres requires DATABASE_URL")
		}
		return postgres.New(ctx, cfg.DatabaseURL, logger)
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown STATE_BACKEND %q", cfg.StateBackend)
	}
}

func (a *app) healthFlags() policy.HealthFlags {
	return policy.HealthFlags{
		OnError:   a.cfg.NotifyOnError,
		OnSuccess: a.cfg.NotifyOnSuccess,
		OnSlow:    a.cfg.NotifyOnSlow,
	}
}

// taskFor builds the per-source task. Healthchecks in summary mode are not
// handled here; they share one HealthMonitor.
func (a *app) taskFor(src domain.MonitoredSource, d *scheduler.Dispatcher, dryRun bool) (scheduler.Task, error) {
	switch src.Kind {
	case domain.KindItemFeed:
		return &scheduler.FeedTask{Source: src, Fetcher: a.fetchers, State: a.state, Dispatch: d, Logger: a.logger, DryRun: dryRun}, nil
	case domain.KindScalarRate:
		return &scheduler.ScalarTask{Source: src, Fetcher: a.fetchers, State: a.state, Dispatch: d, Logger: a.logger, DryRun: dryRun}, nil
	case domain.KindRESTHealthcheck:
		return &scheduler.HealthTask{
			Source:    src,
			Checker:   a.checker,
			Dispatch:  d,
			Logger:    a.logger,
			Timeout:   a.cfg.APITimeout,
			Threshold: a.cfg.ResponseThreshold,
			Flags:     a.healthFlags(),
		}, nil
	}
	return nil, fmt.Errorf("source %s: unknown kind %q", src.ID, src.Kind)
}

func (a *app) source(id string) (domain.MonitoredSource, bool) {
	for _, src := range a.sources {
		if src.ID == id {
			return src, true
		}
	}
	return domain.MonitoredSource{}, false
}
