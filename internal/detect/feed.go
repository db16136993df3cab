// Package detect compares one observation against the prior persisted state.
// Everything here is pure: no I/O, no clocks except the ones passed in.
package detect

import (
	"strings"
	"time"

	"github.com/hamed0406/sourcewatch/internal/domain"
)

type Classification string

const (
	FirstRun     Classification = "first-run"
	NewItems     Classification = "new-items"
	ValueChanged Classification = "value-changed"
	Unchanged    Classification = "unchanged"
	Blocked      Classification = "blocked"
	FetchError   Classification = "fetch-error"
)

// DefaultSeenCap bounds the seen set when a source does not set one.
const DefaultSeenCap = 100

type FeedOptions struct {
	Cap     int
	Blocked []string
	Now     time.Time
}

type FeedDelta struct {
	Classification Classification
	Total          int
	NewItems       []domain.Item // newest-first, exclusions removed
	Excluded       []domain.Item
	Next           domain.SourceState
	// Persist is false only when nothing was observed.
	Persist bool
}

// Feed classifies items (newest-first) against prior.
func Feed(items []domain.Item, prior domain.SourceState, opts FeedOptions) FeedDelta {
	if opts.Cap <= 0 {
		opts.Cap = DefaultSeenCap
	}
	d := FeedDelta{Total: len(items), Next: prior}

	if len(items) == 0 {
		d.Classification = Unchanged
		return d
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}

	seen := NewSeenSet(opts.Cap, prior.SeenPostIDs)

	if prior.FirstRun() {
		d.Classification = FirstRun
	} else {
		picked := make(map[string]struct{}, len(items))
		for _, it := range items {
			if seen.Has(it.ID) {
				continue
			}
			if _, dup := picked[it.ID]; dup {
				continue
			}
			picked[it.ID] = struct{}{}
			if Excluded(it, opts.Blocked) {
				d.Excluded = append(d.Excluded, it)
				continue
			}
			d.NewItems = append(d.NewItems, it)
		}
		d.Classification = Unchanged
		if len(d.NewItems) > 0 {
			d.Classification = NewItems
		}
	}

	seen.Merge(ids)
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	d.Next = domain.SourceState{
		LastPostID:    items[0].ID,
		LastCheckTime: &now,
		SeenPostIDs:   seen.IDs(),
		LastValues:    prior.LastValues,
	}
	d.Persist = true
	return d
}

// Excluded reports whether the item's title or description contains any
// blocked keyword, ignoring case.
func Excluded(it domain.Item, blocked []string) bool {
	if len(blocked) == 0 {
		return false
	}
	title := strings.ToLower(it.Title)
	desc := strings.ToLower(it.Description)
	for _, kw := range blocked {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(title, kw) || strings.Contains(desc, kw) {
			return true
		}
	}
	return false
}
