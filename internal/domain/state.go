package domain

import "time"

// SourceState is the persisted record owned by one source.
// The zero value is the default state of a source that has never been observed.
type SourceState struct {
	LastPostID    string            `json:"lastPostId,omitempty"`
	LastCheckTime *time.Time        `json:"lastCheckTime,omitempty"`
	SeenPostIDs   []string          `json:"seenPostIds,omitempty"`
	LastValues    map[string]string `json:"lastValues,omitempty"`
}

// FirstRun reports whether nothing was ever recorded for a feed source.
func (s SourceState) FirstRun() bool {
	return s.LastPostID == ""
}

// HealthResult is one classified health-check outcome. It is never persisted.
type HealthResult struct {
	SourceID     string        `json:"source_id"`
	Name         string        `json:"name"`
	Channel      string        `json:"channel"`
	URL          string        `json:"url"`
	Method       string        `json:"method"`
	Success      bool          `json:"success"`
	StatusCode   int           `json:"status_code,omitempty"`
	ResponseTime time.Duration `json:"response_time"`
	Threshold    time.Duration `json:"threshold"`
	Message      string        `json:"message,omitempty"`
	CheckedAt    time.Time     `json:"checked_at"`

	// Notify overrides carried over from the source; nil means the
	// process default applies.
	OnError   *bool `json:"-"`
	OnSuccess *bool `json:"-"`
	OnSlow    *bool `json:"-"`
}
