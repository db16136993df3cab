package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sourcewatch/internal/detect"
	"github.com/hamed0406/sourcewatch/internal/domain"
	"github.com/hamed0406/sourcewatch/internal/fetch"
	"github.com/hamed0406/sourcewatch/internal/policy"
)

// ScalarTask watches a group of related values; one message covers every
// value that changed in a tick.
type ScalarTask struct {
	Source   domain.MonitoredSource
	Fetcher  fetch.Fetcher
	State    StateAccess
	Dispatch *Dispatcher
	Logger   *zap.Logger

	DryRun bool
	Now    func() time.Time
}

func (t *ScalarTask) ID() string { return t.Source.ID }

func (t *ScalarTask) Tick(ctx context.Context) error {
	src := t.Source
	log := tickLogger(ctx, t.Logger, src)

	if err := sleepJitter(ctx, src.Jitter); err != nil {
		return err
	}

	var readings []domain.Reading
	switch obs := t.Fetcher.Fetch(ctx, src).(type) {
	case domain.ScalarObservation:
		readings = obs.Readings
	case *domain.FetchFailure:
		return failTick(ctx, log, t.Dispatch, src, obs, now(t.Now))
	default:
		f := domain.Fail(domain.FailureParse, nil, "unexpected observation %T", obs)
		return failTick(ctx, log, t.Dispatch, src, f, now(t.Now))
	}

	// Past the fetch the tick runs to completion: what gets saved as seen
	// must also get sent.
	ctx = context.WithoutCancel(ctx)

	at := now(t.Now)
	prior := t.State.Load(ctx, src.ID)
	d := detect.Scalars(readings, prior, at)
	for _, r := range d.Failed {
		log.Warn("scalar_target_failed", zap.String("target_id", r.TargetID), zap.String("detail", r.Err))
	}
	if d.Classification == detect.FetchError {
		f := domain.Fail(domain.FailureParse, nil, "all %d targets failed", len(readings))
		return failTick(ctx, log, t.Dispatch, src, f, at)
	}

	res := t.Dispatch.Send(ctx, log, policy.ScalarEvents(src, d, at))

	saved := false
	if d.Persist && !t.DryRun {
		saved = t.State.Save(ctx, src.ID, d.Next) == nil
	}

	fields := []zap.Field{
		zap.String("classification", string(d.Classification)),
		zap.Int("targets", len(readings)),
		zap.Int("changed", len(d.Changed)),
		zap.Int("failed", len(d.Failed)),
		zap.Int("sent", res.Sent),
		zap.Bool("saved", saved),
	}
	for _, c := range d.Changed {
		fields = append(fields, zap.String(c.Reading.TargetID, c.Previous+" -> "+c.Reading.Value))
	}
	log.Info("scalar_checked", fields...)
	return nil
}
