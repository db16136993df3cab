package scheduler

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hamed0406/sourcewatch/internal/domain"
	"github.com/hamed0406/sourcewatch/internal/notify"
	"github.com/hamed0406/sourcewatch/internal/policy"
)

// StateAccess is the never-failing view of the state store a task needs.
type StateAccess interface {
	Load(ctx context.Context, sourceID string) domain.SourceState
	Save(ctx context.Context, sourceID string, st domain.SourceState) error
}

// Dispatcher sends one tick's events in order, pacing consecutive sends.
// Delivery failures are logged and counted; they never abort the tick.
// Once a tick reaches dispatch its state is about to be saved, so shutdown
// does not cut the batch short. Each send is bounded by the notifier's own
// timeout.
type Dispatcher struct {
	Notifier notify.Notifier
	Logger   *zap.Logger
	// Delay is the minimum gap between two sends of the same batch.
	Delay time.Duration
}

type DispatchResult struct {
	Sent   int
	Failed int
}

func (d *Dispatcher) Send(ctx context.Context, log *zap.Logger, events []policy.Event) DispatchResult {
	var res DispatchResult
	if len(events) == 0 {
		return res
	}
	if log == nil {
		log = d.Logger
	}
	if log == nil {
		log = zap.NewNop()
	}

	if ctx.Err() != nil {
		log.Info("notify_after_cancel", zap.Int("events", len(events)))
	}
	ctx = context.WithoutCancel(ctx)

	lim := rate.NewLimiter(rate.Inf, 1)
	if d.Delay > 0 {
		lim = rate.NewLimiter(rate.Every(d.Delay), 1)
	}
	for _, ev := range events {
		_ = lim.Wait(ctx)
		if err := d.Notifier.Send(ctx, ev.Channel, ev.Message); err != nil {
			res.Failed++
			level := log.Warn
			if errors.Is(err, domain.ErrNoEndpoint) {
				level = log.Error
			}
			level("notify_failed",
				zap.String("event", string(ev.Kind)),
				zap.String("channel", ev.Channel),
				zap.String("headline", ev.Message.Headline),
				zap.Error(err),
			)
			continue
		}
		res.Sent++
	}
	return res
}

// sleepJitter waits a random duration in [j.Min, j.Max]. It returns
// ctx.Err() when cancelled first.
func sleepJitter(ctx context.Context, j domain.Jitter) error {
	if j.Max <= 0 {
		return ctx.Err()
	}
	d := j.Min
	if span := j.Max - j.Min; span > 0 {
		d += rand.N(span + 1)
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
