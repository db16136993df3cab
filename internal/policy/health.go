package policy

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/hamed0406/sourcewatch/internal/detect"
	"github.com/hamed0406/sourcewatch/internal/domain"
	"github.com/hamed0406/sourcewatch/internal/notify"
)

// HealthSummary groups one cycle's results by channel and returns one event
// per channel that passes the gate.
func HealthSummary(results []domain.HealthResult, fallback time.Duration, flags HealthFlags, now time.Time) []Event {
	groups := map[string][]domain.HealthResult{}
	for _, r := range results {
		groups[r.Channel] = append(groups[r.Channel], r)
	}
	channels := make([]string, 0, len(groups))
	for ch := range groups {
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	var out []Event
	for _, ch := range channels {
		group := groups[ch]
		st := detect.Health(group, fallback)
		if !summaryWanted(group, fallback, flags) {
			continue
		}
		out = append(out, Event{
			Kind:    KindHealthSummary,
			Channel: ch,
			Message: summaryMessage(group, st, fallback, flags, now),
		})
	}
	return out
}

// summaryWanted is the per-channel gate: any error, a slow target whose
// source wants slow alerts, or any target whose source wants success alerts.
// Errors always count unless the target itself sets on_error: false.
func summaryWanted(group []domain.HealthResult, fallback time.Duration, flags HealthFlags) bool {
	for _, r := range group {
		f := resultFlags(r, flags)
		switch detect.ClassifyHealth(r, fallback) {
		case detect.HealthError:
			if r.OnError == nil || *r.OnError {
				return true
			}
		case detect.HealthSlow:
			if f.OnSlow {
				return true
			}
		}
		if f.OnSuccess {
			return true
		}
	}
	return false
}

func overallColor(overall string) string {
	switch overall {
	case detect.OverallSuccess:
		return notify.ColorGood
	case detect.OverallCritical:
		return notify.ColorDanger
	default:
		return notify.ColorWarning
	}
}

func summaryMessage(group []domain.HealthResult, st detect.HealthStats, fallback time.Duration, flags HealthFlags, now time.Time) notify.Message {
	fields := []notify.Field{
		{Title: "Total", Value: strconv.Itoa(st.Total), Inline: true},
		{Title: "Success", Value: strconv.Itoa(st.Success), Inline: true},
		{Title: "Error", Value: strconv.Itoa(st.Error), Inline: true, Emphasized: st.Error > 0},
		{Title: "Slow", Value: strconv.Itoa(st.Slow), Inline: true, Emphasized: st.Slow > 0},
	}
	for _, r := range group {
		switch detect.ClassifyHealth(r, fallback) {
		case detect.HealthError:
			fields = append(fields, notify.Field{Title: "❌ " + r.Name, Value: errorText(r), Emphasized: true})
		case detect.HealthSlow:
			fields = append(fields, notify.Field{Title: "🐢 " + r.Name, Value: slowText(r, fallback)})
		default:
			if resultFlags(r, flags).OnSuccess {
				fields = append(fields, notify.Field{Title: "✅ " + r.Name, Value: ms(r.ResponseTime), Inline: true})
			}
		}
	}
	overall := st.Overall()
	return notify.Message{
		Headline:  fmt.Sprintf("API health check: %s", overall),
		Fields:    fields,
		Color:     overallColor(overall),
		Footer:    fmt.Sprintf("%d targets checked", st.Total),
		Timestamp: now,
	}
}

// HealthIndividual returns the event for one target, or nil when the flags
// say this outcome is silent.
func HealthIndividual(r domain.HealthResult, fallback time.Duration, flags HealthFlags, now time.Time) *Event {
	status := detect.ClassifyHealth(r, fallback)
	var (
		headline string
		color    string
		fields   []notify.Field
	)
	switch status {
	case detect.HealthError:
		if !flags.OnError {
			return nil
		}
		headline, color = "❌ "+r.Name+" failed", notify.ColorDanger
		fields = []notify.Field{{Title: "Error", Value: errorText(r), Emphasized: true}}
	case detect.HealthSlow:
		if !flags.OnSlow && !flags.OnSuccess {
			return nil
		}
		headline, color = "🐢 "+r.Name+" is slow", notify.ColorWarning
		fields = []notify.Field{{Title: "Response time", Value: slowText(r, fallback), Emphasized: true}}
	default:
		if !flags.OnSuccess {
			return nil
		}
		headline, color = "✅ "+r.Name+" is healthy", notify.ColorGood
		fields = []notify.Field{{Title: "Response time", Value: ms(r.ResponseTime), Inline: true}}
	}
	fields = append(fields,
		notify.Field{Title: "Endpoint", Value: r.Method + " " + r.URL},
	)
	if r.StatusCode != 0 {
		fields = append(fields, notify.Field{Title: "Status", Value: strconv.Itoa(r.StatusCode), Inline: true})
	}
	return &Event{
		Kind:    KindHealthIndividual,
		Channel: r.Channel,
		Message: notify.Message{
			Headline:  headline,
			Fields:    fields,
			Color:     color,
			Footer:    r.Name,
			Timestamp: now,
		},
	}
}

func errorText(r domain.HealthResult) string {
	if r.StatusCode != 0 {
		return fmt.Sprintf("HTTP %d %s", r.StatusCode, r.Message)
	}
	if r.Message == "" {
		return "request failed"
	}
	return r.Message
}

func slowText(r domain.HealthResult, fallback time.Duration) string {
	return fmt.Sprintf("%s (threshold %s)", ms(r.ResponseTime), ms(detect.ThresholdFor(r, fallback)))
}

func ms(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
}
