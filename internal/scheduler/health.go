package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sourcewatch/internal/detect"
	"github.com/hamed0406/sourcewatch/internal/domain"
	"github.com/hamed0406/sourcewatch/internal/policy"
	"github.com/hamed0406/sourcewatch/internal/probe"
)

// HealthMonitorID is the task id of the shared summary-mode monitor.
const HealthMonitorID = "api-health"

// HealthMonitor checks every enabled rest-healthcheck target on one shared
// timer and sends one summary per channel.
type HealthMonitor struct {
	Logger      *zap.Logger
	Targets     []domain.MonitoredSource
	Checker     probe.Checker
	Dispatch    *Dispatcher
	Timeout     time.Duration // per target when the target sets none
	Concurrency int
	Threshold   time.Duration // slow threshold when the target sets none
	Flags       policy.HealthFlags
	Now         func() time.Time

	lastStats detect.HealthStats // most recent cycle
}

func NewHealthMonitor(
	logger *zap.Logger,
	targets []domain.MonitoredSource,
	checker probe.Checker,
	dispatch *Dispatcher,
	timeout time.Duration,
	concurrency int,
) *HealthMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthMonitor{
		Logger:      logger,
		Targets:     targets,
		Checker:     checker,
		Dispatch:    dispatch,
		Timeout:     timeout,
		Concurrency: concurrency,
		Threshold:   detect.DefaultThreshold,
	}
}

func (m *HealthMonitor) ID() string { return HealthMonitorID }

// Interval is the smallest per-target interval, else fallback.
func (m *HealthMonitor) Interval(fallback time.Duration) time.Duration {
	return SharedInterval(m.Targets, fallback)
}

func SharedInterval(targets []domain.MonitoredSource, fallback time.Duration) time.Duration {
	var out time.Duration
	for _, t := range targets {
		if t.Interval > 0 && (out == 0 || t.Interval < out) {
			out = t.Interval
		}
	}
	if out == 0 {
		return fallback
	}
	return out
}

// Tick fans out over every target and waits for all of them. One target's
// failure never affects another's result.
func (m *HealthMonitor) Tick(ctx context.Context) error {
	log := m.Logger.With(zap.String("tick_id", TickID(ctx)))
	if len(m.Targets) == 0 {
		return nil
	}

	checks := make([]domain.HealthCheck, len(m.Targets))
	for i, t := range m.Targets {
		checks[i] = t.Check
	}
	outs := probe.CheckAll(ctx, m.Checker, checks, m.Concurrency, m.Timeout)

	at := now(m.Now)
	results := make([]domain.HealthResult, len(outs))
	for i, out := range outs {
		results[i] = HealthResultFor(m.Targets[i], out, at)
		log.Debug("health_checked",
			zap.String("source_id", m.Targets[i].ID),
			zap.String("url", results[i].URL),
			zap.Int("status", out.StatusCode),
			zap.Bool("up", out.Success),
			zap.Float64("latency_ms", out.LatencyMS),
			zap.String("reason", out.Message),
		)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	stats := detect.Health(results, m.Threshold)
	m.lastStats = stats
	log.Info("health_stats",
		zap.Int("total", stats.Total),
		zap.Int("success", stats.Success),
		zap.Int("error", stats.Error),
		zap.Int("slow", stats.Slow),
		zap.String("overall", stats.Overall()),
	)
	m.Dispatch.Send(ctx, log, policy.HealthSummary(results, m.Threshold, m.Flags, at))
	return nil
}

// HealthTask checks a single target on its own timer and notifies per the
// individual-mode flags.
type HealthTask struct {
	Source    domain.MonitoredSource
	Checker   probe.Checker
	Dispatch  *Dispatcher
	Logger    *zap.Logger
	Timeout   time.Duration
	Threshold time.Duration
	Flags     policy.HealthFlags // process defaults; the source may override
	Now       func() time.Time
}

func (t *HealthTask) ID() string { return t.Source.ID }

func (t *HealthTask) Tick(ctx context.Context) error {
	log := tickLogger(ctx, t.Logger, t.Source)

	hc := t.Source.Check
	if hc.Timeout <= 0 {
		hc.Timeout = t.Timeout
	}
	if hc.Timeout <= 0 {
		hc.Timeout = 5 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, hc.Timeout)
	out := t.Checker.Check(cctx, hc)
	cancel()
	if ctx.Err() != nil {
		return ctx.Err()
	}

	r := HealthResultFor(t.Source, out, now(t.Now))
	status := detect.ClassifyHealth(r, t.Threshold)
	log.Info("health_checked",
		zap.String("status", string(status)),
		zap.Int("http_status", out.StatusCode),
		zap.Float64("latency_ms", out.LatencyMS),
		zap.String("reason", out.Message),
	)
	if ev := policy.HealthIndividual(r, t.Threshold, policy.FlagsFor(t.Source, t.Flags), r.CheckedAt); ev != nil {
		t.Dispatch.Send(ctx, log, []policy.Event{*ev})
	}
	return nil
}

// HealthResultFor converts a probe outcome into the classified form.
func HealthResultFor(src domain.MonitoredSource, out probe.CheckResult, at time.Time) domain.HealthResult {
	method := src.Check.Method
	if method == "" {
		method = "GET"
	}
	return domain.HealthResult{
		SourceID:     src.ID,
		Name:         src.DisplayName(),
		Channel:      src.Channel,
		URL:          src.Check.URL,
		Method:       method,
		Success:      out.Success,
		StatusCode:   out.StatusCode,
		ResponseTime: time.Duration(out.LatencyMS * float64(time.Millisecond)),
		Threshold:    src.Threshold,
		Message:      out.Message,
		CheckedAt:    at,
		OnError:      src.OnError,
		OnSuccess:    src.OnSuccess,
		OnSlow:       src.OnSlow,
	}
}
