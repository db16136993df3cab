package probe

import (
	"context"
	"time"

	"github.com/hamed0406/sourcewatch/internal/domain"
)

type RetryChecker struct {
	Inner    Checker
	Attempts int
	Backoff  time.Duration
}

func (r *RetryChecker) Check(ctx context.Context, hc domain.HealthCheck) CheckResult {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var last CheckResult
	for i := 0; i < attempts; i++ {
		last = r.Inner.Check(ctx, hc)
		if last.Success {
			return last
		}
		if i < attempts-1 && !sleep(ctx, r.Backoff) {
			break
		}
	}
	if attempts > 1 {
		// annotate message so you can see it was a retry series
		last.Message = last.Message + " (after retries)"
	}
	return last
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
