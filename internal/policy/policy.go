// Package policy turns a classified delta into the notifications that should fire.
package policy

import (
	"github.com/hamed0406/sourcewatch/internal/detect"
	"github.com/hamed0406/sourcewatch/internal/domain"
	"github.com/hamed0406/sourcewatch/internal/notify"
)

type EventKind string

const (
	KindNewItem          EventKind = "new-item"
	KindStatus           EventKind = "status"
	KindFirstRun         EventKind = "first-run"
	KindValueChanged     EventKind = "value-changed"
	KindBlocked          EventKind = "blocked"
	KindFetchError       EventKind = "fetch-error"
	KindHealthSummary    EventKind = "health-summary"
	KindHealthIndividual EventKind = "health-individual"
)

// DefaultMaxItemAlerts caps per-item notifications per tick.
const DefaultMaxItemAlerts = 5

// Event is one notification to send. It is never persisted.
type Event struct {
	Kind           EventKind
	Classification detect.Classification
	Channel        string
	Message        notify.Message
}

// FeedPlan is the outcome of one feed tick.
type FeedPlan struct {
	Items      []Event       // newest-first, at most MaxItemAlerts
	Suppressed []domain.Item // new items beyond the cap, log-only
	Extra      []Event       // status and first-run announcements
}

func (p FeedPlan) Len() int { return len(p.Items) + len(p.Extra) }

// HealthFlags gate health-check notifications.
type HealthFlags struct {
	OnError   bool
	OnSuccess bool
	OnSlow    bool
}

// FlagsFor applies a source's overrides on top of defaults.
func FlagsFor(src domain.MonitoredSource, defaults HealthFlags) HealthFlags {
	f := defaults
	if src.OnError != nil {
		f.OnError = *src.OnError
	}
	if src.OnSuccess != nil {
		f.OnSuccess = *src.OnSuccess
	}
	if src.OnSlow != nil {
		f.OnSlow = *src.OnSlow
	}
	return f
}

// resultFlags is FlagsFor for a result that has already left its source.
func resultFlags(r domain.HealthResult, defaults HealthFlags) HealthFlags {
	return FlagsFor(domain.MonitoredSource{OnError: r.OnError, OnSuccess: r.OnSuccess, OnSlow: r.OnSlow}, defaults)
}
