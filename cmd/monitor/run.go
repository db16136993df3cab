package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/sourcewatch/internal/config"
	"github.com/hamed0406/sourcewatch/internal/domain"
	"github.com/hamed0406/sourcewatch/internal/httpapi"
	apimw "github.com/hamed0406/sourcewatch/internal/httpapi/middleware"
	"github.com/hamed0406/sourcewatch/internal/scheduler"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll every enabled source until interrupted (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx)
		},
	}
}

func run(ctx context.Context) (err error) {
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.logger.Sync()
	defer func() { err = multierr.Append(err, a.store.Close()) }()

	sched := scheduler.New(a.logger)
	if err := a.schedule(sched); err != nil {
		return err
	}
	a.logger.Info("monitor_starting",
		zap.Int("sources", len(a.sources)),
		zap.String("state_backend", a.cfg.StateBackend),
		zap.Strings("channels", a.router.Channels()),
	)
	sched.Start(ctx)

	var srv *http.Server
	if a.cfg.StatusAddr != "" {
		api := httpapi.NewServer(a.logger, a.sources, a.store, sched)
		keys := apimw.Keys{Public: a.cfg.PublicAPIKeys, Admin: a.cfg.AdminAPIKeys}
		srv = &http.Server{
			Addr:              a.cfg.StatusAddr,
			Handler:           api.Router(keys, a.cfg.AllowedOrigins, a.cfg.PublicRPM, a.cfg.PublicBurst),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.logger.Info("api_listen", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("api_listen_failed", zap.Error(err))
			}
		}()
	}

	if ok, nerr := daemon.SdNotify(false, daemon.SdNotifyReady); nerr != nil {
		a.logger.Warn("sd_notify_failed", zap.Error(nerr))
	} else if ok {
		a.logger.Debug("sd_notify_ready")
	}

	<-ctx.Done()
	a.logger.Info("monitor_stopping")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = multierr.Append(err, srv.Shutdown(shutdownCtx))
		cancel()
	}
	sched.Stop()
	a.logger.Info("monitor_stopped")
	return err
}

// schedule registers one task per enabled source. In summary mode every
// healthcheck joins a single HealthMonitor ticking at the shortest interval.
func (a *app) schedule(sched *scheduler.Scheduler) error {
	d := &scheduler.Dispatcher{Notifier: a.router, Logger: a.logger, Delay: a.cfg.NotifyDelay}

	var health []domain.MonitoredSource
	for _, src := range a.sources {
		if !src.Enabled {
			a.logger.Info("source_disabled", zap.String("source_id", src.ID))
			continue
		}
		if src.Kind == domain.KindRESTHealthcheck && a.cfg.SendSummary {
			health = append(health, src)
			continue
		}
		task, err := a.taskFor(src, d, false)
		if err != nil {
			return err
		}
		schedule, err := config.ParseSchedule(src.Schedule)
		if err != nil {
			return fmt.Errorf("source %s: %w", src.ID, err)
		}
		if err := sched.Add(task, src.Interval, schedule); err != nil {
			return err
		}
	}

	if len(health) > 0 {
		m := scheduler.NewHealthMonitor(a.logger, health, a.checker, d, a.cfg.APITimeout, a.cfg.MaxConcurrentChecks)
		m.Threshold = a.cfg.ResponseThreshold
		m.Flags = a.healthFlags()
		if err := sched.Add(m, m.Interval(a.cfg.CheckInterval), nil); err != nil {
			return err
		}
	}
	return nil
}
