package notify

import (
	"sync"
	"time"
)

// Dedup remembers delivered idempotency keys for a fixed window.
// A zero window disables it.
type Dedup struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewDedup(window time.Duration) *Dedup {
	return &Dedup{window: window, now: time.Now, seen: make(map[string]time.Time)}
}

func (d *Dedup) Seen(key string) bool {
	if d == nil || d.window <= 0 || key == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	until, ok := d.seen[key]
	return ok && d.now().Before(until)
}

func (d *Dedup) Mark(key string) {
	if d == nil || d.window <= 0 || key == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	d.seen[key] = now.Add(d.window)
	if len(d.seen) > 1024 {
		for k, until := range d.seen {
			if !now.Before(until) {
				delete(d.seen, k)
			}
		}
	}
}
