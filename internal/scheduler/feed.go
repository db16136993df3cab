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

// FeedTask watches an item-feed source for items it has not seen before.
type FeedTask struct {
	Source   domain.MonitoredSource
	Fetcher  fetch.Fetcher
	State    StateAccess
	Dispatch *Dispatcher
	Logger   *zap.Logger

	// DryRun skips the persist step.
	DryRun bool
	Now    func() time.Time
}

func (t *FeedTask) ID() string { return t.Source.ID }

func (t *FeedTask) Tick(ctx context.Context) error {
	src := t.Source
	log := tickLogger(ctx, t.Logger, src)

	if err := sleepJitter(ctx, src.Jitter); err != nil {
		return err
	}

	var items []domain.Item
	switch obs := t.Fetcher.Fetch(ctx, src).(type) {
	case domain.FeedObservation:
		items = obs.Items
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
	d := detect.Feed(items, prior, detect.FeedOptions{
		Cap:     src.SeenCap,
		Blocked: src.BlockedKeywords,
		Now:     at,
	})
	if d.Total == 0 {
		log.Warn("feed_zero_items", zap.String("url", src.Fetch.URL))
		return nil
	}

	plan := policy.FeedEvents(src, d, at)
	for _, it := range d.Excluded {
		log.Info("feed_item_excluded", zap.String("item_id", it.ID), zap.String("title", it.Title))
	}
	for _, it := range plan.Suppressed {
		log.Info("feed_item_suppressed",
			zap.String("item_id", it.ID),
			zap.String("title", it.Title),
			zap.String("link", it.Link),
		)
	}

	events := append(plan.Items, plan.Extra...)
	res := t.Dispatch.Send(ctx, log, events)

	// Persist regardless of delivery.
	saved := false
	if d.Persist && !t.DryRun {
		saved = t.State.Save(ctx, src.ID, d.Next) == nil
	}

	log.Info("feed_checked",
		zap.String("classification", string(d.Classification)),
		zap.Int("total", d.Total),
		zap.Int("new", len(d.NewItems)),
		zap.Int("excluded", len(d.Excluded)),
		zap.Int("suppressed", len(plan.Suppressed)),
		zap.Int("sent", res.Sent),
		zap.Int("send_failed", res.Failed),
		zap.Bool("saved", saved),
	)
	return nil
}

// failTick routes a fetch failure to its alert and leaves state untouched.
// The failure is returned so the scheduler backs off.
func failTick(ctx context.Context, log *zap.Logger, disp *Dispatcher, src domain.MonitoredSource, f *domain.FetchFailure, at time.Time) error {
	if f.Kind == domain.FailureBlocked {
		log.Error("source_blocked", zap.String("detail", f.Message), zap.Error(f.Err))
	} else {
		log.Warn("fetch_failed",
			zap.String("kind", string(f.Kind)),
			zap.String("detail", f.Message),
			zap.Error(f.Err),
		)
	}
	if ev := policy.FailureEvent(src, f, at); ev != nil {
		disp.Send(ctx, log, []policy.Event{*ev})
	}
	return f
}

func tickLogger(ctx context.Context, base *zap.Logger, src domain.MonitoredSource) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return base.With(
		zap.String("source_id", src.ID),
		zap.String("kind", string(src.Kind)),
		zap.String("tick_id", TickID(ctx)),
	)
}

func now(f func() time.Time) time.Time {
	if f != nil {
		return f()
	}
	return time.Now()
}
