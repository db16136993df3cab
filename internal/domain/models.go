package domain

import "time"

type SourceKind string

const (
	KindScalarRate      SourceKind = "scalar-rate"
	KindItemFeed        SourceKind = "item-feed"
	KindRESTHealthcheck SourceKind = "rest-healthcheck"
)

func (k SourceKind) Valid() bool {
	switch k {
	case KindScalarRate, KindItemFeed, KindRESTHealthcheck:
		return true
	}
	return false
}

// MonitoredSource is loaded once at startup and never mutated afterwards.
type MonitoredSource struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Kind     SourceKind    `json:"kind"`
	Keyword  string        `json:"keyword,omitempty"`
	Channel  string        `json:"channel"`
	Enabled  bool          `json:"enabled"`
	Interval time.Duration `json:"interval"`
	Schedule string        `json:"schedule,omitempty"` // cron expression, overrides Interval

	Threshold       time.Duration `json:"threshold,omitempty"` // slow threshold for health checks
	BlockedKeywords []string      `json:"blocked_keywords,omitempty"`
	SeenCap         int           `json:"seen_cap,omitempty"`
	MaxItemAlerts   int           `json:"max_item_alerts,omitempty"`

	StatusAlerts     bool `json:"status_alerts,omitempty"`
	ErrorAlerts      bool `json:"error_alerts,omitempty"`
	AnnounceFirstRun bool `json:"announce_first_run,omitempty"`

	// nil means "use the process default"
	OnError   *bool `json:"on_error,omitempty"`
	OnSuccess *bool `json:"on_success,omitempty"`
	OnSlow    *bool `json:"on_slow,omitempty"`

	Jitter  Jitter         `json:"jitter"`
	Fetch   FetchSpec      `json:"fetch"`
	Targets []ScalarTarget `json:"targets,omitempty"`
	Check   HealthCheck    `json:"check"`
}

// Jitter is a random pre-fetch delay drawn from [Min, Max].
type Jitter struct {
	Min time.Duration `json:"min,omitempty"`
	Max time.Duration `json:"max,omitempty"`
}

type FetchType string

const (
	FetchHTML      FetchType = "html"
	FetchSearchAPI FetchType = "search-api"
)

// FetchSpec describes how a scraped or searched source is retrieved.
// URL may contain {keyword}, replaced by the query-escaped Keyword.
type FetchSpec struct {
	Type           FetchType         `json:"type"`
	URL            string            `json:"url"`
	BaseURL        string            `json:"base_url,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	Encoding       string            `json:"encoding,omitempty"`
	Timeout        time.Duration     `json:"timeout,omitempty"`
	CaptchaMarkers []string          `json:"captcha_markers,omitempty"`

	ItemSelector   string `json:"item_selector,omitempty"`
	TitleSelector  string `json:"title_selector,omitempty"`
	LinkSelector   string `json:"link_selector,omitempty"`
	DescSelector   string `json:"desc_selector,omitempty"`
	DateSelector   string `json:"date_selector,omitempty"`
	ImageSelector  string `json:"image_selector,omitempty"`
	AuthorSelector string `json:"author_selector,omitempty"`
	IDPattern      string `json:"id_pattern,omitempty"`

	// search-api field mapping
	ItemsPath  string `json:"items_path,omitempty"`
	IDField    string `json:"id_field,omitempty"`
	TitleField string `json:"title_field,omitempty"`
	LinkField  string `json:"link_field,omitempty"`
	DescField  string `json:"desc_field,omitempty"`
	DateField  string `json:"date_field,omitempty"`
}

// ScalarTarget is one value read off a rate board page.
type ScalarTarget struct {
	ID            string   `json:"id" yaml:"id"`
	Name          string   `json:"name" yaml:"name"`
	Unit          string   `json:"unit,omitempty" yaml:"unit"`
	Link          string   `json:"link,omitempty" yaml:"link"`
	ItemSelector  string   `json:"item_selector,omitempty" yaml:"item_selector"`
	LabelSelector string   `json:"label_selector,omitempty" yaml:"label_selector"`
	Match         []string `json:"match,omitempty" yaml:"match"`
	ValueSelector string   `json:"value_selector" yaml:"value_selector"`
}

// HealthCheck is the request a rest-healthcheck source issues.
type HealthCheck struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    any               `json:"body,omitempty"`
	Timeout time.Duration     `json:"timeout,omitempty"`
}

// DisplayName falls back to the id when no name is configured.
func (s MonitoredSource) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}
