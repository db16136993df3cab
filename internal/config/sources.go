package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/hamed0406/sourcewatch/internal/domain"
)

// SourcesFile is the on-disk shape of the sources list.
type SourcesFile struct {
	Defaults SourceDefaults `yaml:"defaults"`
	Sources  []SourceRecord `yaml:"sources"`
}

type SourceDefaults struct {
	Channel   string `yaml:"channel"`
	Interval  string `yaml:"interval"`
	Threshold string `yaml:"threshold"`
	Timeout   string `yaml:"timeout"`
}

// SourceRecord mirrors domain.MonitoredSource with durations as strings.
// A bare number is read as milliseconds.
type SourceRecord struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	Keyword  string `yaml:"keyword"`
	Channel  string `yaml:"channel"`
	Enabled  *bool  `yaml:"enabled"`
	Interval string `yaml:"interval"`
	Schedule string `yaml:"schedule"`

	Threshold       string   `yaml:"threshold"`
	BlockedKeywords []string `yaml:"blocked_keywords"`
	SeenCap         int      `yaml:"seen_cap"`
	MaxItemAlerts   int      `yaml:"max_item_alerts"`

	StatusAlerts     bool `yaml:"status_alerts"`
	ErrorAlerts      bool `yaml:"error_alerts"`
	AnnounceFirstRun bool `yaml:"announce_first_run"`

	OnError   *bool `yaml:"on_error"`
	OnSuccess *bool `yaml:"on_success"`
	OnSlow    *bool `yaml:"on_slow"`

	Jitter struct {
		Min string `yaml:"min"`
		Max string `yaml:"max"`
	} `yaml:"jitter"`

	Fetch   FetchRecord           `yaml:"fetch"`
	Targets []domain.ScalarTarget `yaml:"targets"`
	Check   CheckRecord           `yaml:"check"`
}

type FetchRecord struct {
	Type           string            `yaml:"type"`
	URL            string            `yaml:"url"`
	BaseURL        string            `yaml:"base_url"`
	Headers        map[string]string `yaml:"headers"`
	Encoding       string            `yaml:"encoding"`
	Timeout        string            `yaml:"timeout"`
	CaptchaMarkers []string          `yaml:"captcha_markers"`

	ItemSelector   string `yaml:"item_selector"`
	TitleSelector  string `yaml:"title_selector"`
	LinkSelector   string `yaml:"link_selector"`
	DescSelector   string `yaml:"desc_selector"`
	DateSelector   string `yaml:"date_selector"`
	ImageSelector  string `yaml:"image_selector"`
	AuthorSelector string `yaml:"author_selector"`
	IDPattern      string `yaml:"id_pattern"`

	ItemsPath  string `yaml:"items_path"`
	IDField    string `yaml:"id_field"`
	TitleField string `yaml:"title_field"`
	LinkField  string `yaml:"link_field"`
	DescField  string `yaml:"desc_field"`
	DateField  string `yaml:"date_field"`
}

type CheckRecord struct {
	URL     string            `yaml:"url"`
	Method  string            `yaml:"method"`
	Headers map[string]string `yaml:"headers"`
	Body    any               `yaml:"body"`
	Timeout string            `yaml:"timeout"`
}

// expandHeaders substitutes ${VAR} references so credentials can stay in
// the environment.
func expandHeaders(in map[string]string) map[string]string {
	if len(in) == 0 {
		return in
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = os.ExpandEnv(v)
	}
	return out
}

// ScheduleParser accepts five-field cron, an optional seconds field, and
// descriptors such as "@every 10m".
var ScheduleParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule returns nil for an empty expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}
	return ScheduleParser.Parse(expr)
}

// LoadSources reads and validates the sources file at path.
func LoadSources(path string, cfg Config) ([]domain.MonitoredSource, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	return ParseSources(b, cfg)
}

// ParseSources converts a YAML document into sources, applying cfg's
// defaults. Every problem is reported, not just the first.
func ParseSources(b []byte, cfg Config) ([]domain.MonitoredSource, error) {
	var f SourcesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode sources: %w", err)
	}
	if len(f.Sources) == 0 {
		return nil, errors.New("no sources defined")
	}

	var errs error
	fieldErr := func(id, field string, err error) {
		errs = multierr.Append(errs, fmt.Errorf("source %q: %s: %w", id, field, err))
	}
	dur := func(id, field, v string, def time.Duration) time.Duration {
		d, err := parseDuration(v, def)
		if err != nil {
			fieldErr(id, field, err)
		}
		return d
	}

	defInterval := dur("defaults", "interval", f.Defaults.Interval, cfg.CheckInterval)
	defThreshold := dur("defaults", "threshold", f.Defaults.Threshold, cfg.ResponseThreshold)
	defTimeout := dur("defaults", "timeout", f.Defaults.Timeout, 0)
	defChannel := f.Defaults.Channel
	if defChannel == "" {
		defChannel = cfg.DefaultChannel
	}

	seen := map[string]bool{}
	out := make([]domain.MonitoredSource, 0, len(f.Sources))
	for i, r := range f.Sources {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			errs = multierr.Append(errs, fmt.Errorf("source #%d: id is required", i+1))
			id = fmt.Sprintf("#%d", i+1)
		} else if seen[id] {
			fieldErr(id, "id", errors.New("duplicate"))
		}
		seen[id] = true

		src := domain.MonitoredSource{
			ID:               id,
			Name:             r.Name,
			Kind:             domain.SourceKind(r.Kind),
			Keyword:          r.Keyword,
			Channel:          r.Channel,
			Enabled:          r.Enabled == nil || *r.Enabled,
			Interval:         dur(id, "interval", r.Interval, defInterval),
			Schedule:         strings.TrimSpace(r.Schedule),
			Threshold:        dur(id, "threshold", r.Threshold, defThreshold),
			BlockedKeywords:  r.BlockedKeywords,
			SeenCap:          r.SeenCap,
			MaxItemAlerts:    r.MaxItemAlerts,
			StatusAlerts:     r.StatusAlerts,
			ErrorAlerts:      r.ErrorAlerts,
			AnnounceFirstRun: r.AnnounceFirstRun,
			OnError:          r.OnError,
			OnSuccess:        r.OnSuccess,
			OnSlow:           r.OnSlow,
			Jitter: domain.Jitter{
				Min: dur(id, "jitter.min", r.Jitter.Min, 0),
				Max: dur(id, "jitter.max", r.Jitter.Max, 0),
			},
			Targets: r.Targets,
			Check: domain.HealthCheck{
				URL:     r.Check.URL,
				Method:  strings.ToUpper(r.Check.Method),
				Headers: expandHeaders(r.Check.Headers),
				Body:    r.Check.Body,
				Timeout: dur(id, "check.timeout", r.Check.Timeout, firstPositive(defTimeout, cfg.APITimeout)),
			},
		}
		if src.Channel == "" {
			src.Channel = defChannel
		}
		if src.SeenCap <= 0 {
			src.SeenCap = cfg.SeenCap
		}
		if src.MaxItemAlerts <= 0 {
			src.MaxItemAlerts = cfg.MaxItemAlerts
		}
		if src.Kind == domain.KindRESTHealthcheck && src.Check.Method == "" {
			src.Check.Method = "GET"
		}
		src.Fetch = domain.FetchSpec{
			Type:           domain.FetchType(r.Fetch.Type),
			URL:            r.Fetch.URL,
			BaseURL:        r.Fetch.BaseURL,
			Headers:        expandHeaders(r.Fetch.Headers),
			Encoding:       r.Fetch.Encoding,
			Timeout:        dur(id, "fetch.timeout", r.Fetch.Timeout, firstPositive(defTimeout, cfg.HTTPTimeout)),
			CaptchaMarkers: r.Fetch.CaptchaMarkers,
			ItemSelector:   r.Fetch.ItemSelector,
			TitleSelector:  r.Fetch.TitleSelector,
			LinkSelector:   r.Fetch.LinkSelector,
			DescSelector:   r.Fetch.DescSelector,
			DateSelector:   r.Fetch.DateSelector,
			ImageSelector:  r.Fetch.ImageSelector,
			AuthorSelector: r.Fetch.AuthorSelector,
			IDPattern:      r.Fetch.IDPattern,
			ItemsPath:      r.Fetch.ItemsPath,
			IDField:        r.Fetch.IDField,
			TitleField:     r.Fetch.TitleField,
			LinkField:      r.Fetch.LinkField,
			DescField:      r.Fetch.DescField,
			DateField:      r.Fetch.DateField,
		}
		if src.Fetch.Type == "" {
			src.Fetch.Type = domain.FetchHTML
		}

		errs = multierr.Append(errs, Validate(src))
		out = append(out, src)
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}

// Validate checks one source in isolation.
func Validate(src domain.MonitoredSource) error {
	var errs error
	bad := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf("source %q: "+format, append([]any{src.ID}, args...)...))
	}

	if !src.Kind.Valid() {
		bad("unknown kind %q", src.Kind)
	}
	if src.Interval <= 0 && src.Schedule == "" {
		bad("interval must be positive")
	}
	if _, err := ParseSchedule(src.Schedule); err != nil {
		bad("schedule: %v", err)
	}
	if src.Jitter.Max < src.Jitter.Min {
		bad("jitter.max is below jitter.min")
	}

	switch src.Kind {
	case domain.KindRESTHealthcheck:
		if src.Check.URL == "" {
			bad("check.url is required")
		}
	case domain.KindItemFeed, domain.KindScalarRate:
		if src.Fetch.URL == "" {
			bad("fetch.url is required")
		}
		if src.Fetch.Type != domain.FetchHTML && src.Fetch.Type != domain.FetchSearchAPI {
			bad("unknown fetch.type %q", src.Fetch.Type)
		}
		if src.Fetch.IDPattern != "" {
			if _, err := regexp.Compile(src.Fetch.IDPattern); err != nil {
				bad("fetch.id_pattern: %v", err)
			}
		}
	}
	if src.Kind == domain.KindItemFeed && src.Fetch.Type == domain.FetchHTML && src.Fetch.ItemSelector == "" {
		bad("fetch.item_selector is required for html feeds")
	}
	if src.Kind == domain.KindScalarRate {
		if len(src.Targets) == 0 {
			bad("at least one target is required")
		}
		ids := map[string]bool{}
		for i, t := range src.Targets {
			if t.ID == "" {
				bad("target #%d: id is required", i+1)
			} else if ids[t.ID] {
				bad("target %q: duplicate id", t.ID)
			}
			ids[t.ID] = true
		}
	}
	return errs
}

func parseDuration(v string, def time.Duration) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return def, nil
	}
	if ms, err := strconv.Atoi(v); err == nil {
		if ms < 0 {
			return def, fmt.Errorf("negative duration %q", v)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, err
	}
	if d < 0 {
		return def, fmt.Errorf("negative duration %q", v)
	}
	return d, nil
}

func firstPositive(ds ...time.Duration) time.Duration {
	for _, d := range ds {
		if d > 0 {
			return d
		}
	}
	return 0
}
