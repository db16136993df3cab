package probe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hamed0406/sourcewatch/internal/domain"
)

// CheckAll runs every check concurrently, at most concurrency at a time, and
// waits for all of them. out[i] belongs to checks[i]. Each check gets its own
// timeout (its Timeout, else defaultTimeout); a failure or panic in one never
// touches the others.
func CheckAll(ctx context.Context, c Checker, checks []domain.HealthCheck, concurrency int, defaultTimeout time.Duration) []CheckResult {
	if concurrency < 1 {
		concurrency = 1
	}
	if defaultTimeout <= 0 {
		defaultTimeout = 5 * time.Second
	}
	out := make([]CheckResult, len(checks))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, hc := range checks {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem }()
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					out[i] = CheckResult{Name: "HTTP", Success: false, Message: fmt.Sprintf("panic: %v", p)}
				}
			}()

			timeout := hc.Timeout
			if timeout <= 0 {
				timeout = defaultTimeout
			}
			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			out[i] = c.Check(cctx, hc)
		}()
	}

	wg.Wait()
	return out
}
