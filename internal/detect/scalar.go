package detect

import (
	"strings"
	"time"

	"github.com/hamed0406/sourcewatch/internal/domain"
)

type ScalarChange struct {
	Reading  domain.Reading
	Previous string
}

type ScalarDelta struct {
	Classification Classification
	Changed        []ScalarChange
	FirstSeen      []domain.Reading // targets with no recorded value yet
	Failed         []domain.Reading
	Current        []domain.Reading // every successful reading
	Next           domain.SourceState
	Persist        bool
}

// NormalizeValue trims surrounding whitespace; separators such as commas are kept.
func NormalizeValue(v string) string {
	return strings.TrimSpace(v)
}

// Scalars compares every target individually. A failed target keeps its prior value.
func Scalars(readings []domain.Reading, prior domain.SourceState, now time.Time) ScalarDelta {
	if now.IsZero() {
		now = time.Now()
	}
	d := ScalarDelta{Next: prior}

	next := make(map[string]string, len(prior.LastValues)+len(readings))
	for k, v := range prior.LastValues {
		next[k] = v
	}

	for _, r := range readings {
		if !r.OK() {
			d.Failed = append(d.Failed, r)
			continue
		}
		r.Value = NormalizeValue(r.Value)
		d.Current = append(d.Current, r)

		prev, had := prior.LastValues[r.TargetID]
		switch {
		case !had:
			d.FirstSeen = append(d.FirstSeen, r)
		case NormalizeValue(prev) != r.Value:
			d.Changed = append(d.Changed, ScalarChange{Reading: r, Previous: prev})
		}
		next[r.TargetID] = r.Value
	}

	if len(d.Current) == 0 {
		d.Classification = FetchError
		return d
	}

	switch {
	case len(prior.LastValues) == 0:
		d.Classification = FirstRun
	case len(d.Changed) > 0:
		d.Classification = ValueChanged
	default:
		d.Classification = Unchanged
	}

	d.Next = domain.SourceState{
		LastPostID:    prior.LastPostID,
		LastCheckTime: &now,
		SeenPostIDs:   prior.SeenPostIDs,
		LastValues:    next,
	}
	d.Persist = true
	return d
}
