package policy

import (
	"fmt"
	"time"

	"github.com/hamed0406/sourcewatch/internal/detect"
	"github.com/hamed0406/sourcewatch/internal/domain"
	"github.com/hamed0406/sourcewatch/internal/notify"
)

// FailureEvent returns the alert for a failed fetch, or nil when the
// failure is log-only for this source. Blocked always alerts.
func FailureEvent(src domain.MonitoredSource, f *domain.FetchFailure, now time.Time) *Event {
	if f == nil {
		return nil
	}
	fields := keywordFields(src,
		notify.Field{Title: "Source", Value: src.DisplayName(), Inline: true},
		notify.Field{Title: "Kind", Value: string(f.Kind), Inline: true},
	)
	if f.Message != "" {
		fields = append(fields, notify.Field{Title: "Detail", Value: truncate(f.Message, descLimit)})
	}

	if f.Kind == domain.FailureBlocked {
		fields = append(fields, notify.Field{
			Title:      "Action",
			Value:      "Source returned a challenge page. Polling continues with backoff.",
			Emphasized: true,
		})
		return &Event{
			Kind:           KindBlocked,
			Classification: detect.Blocked,
			Channel:        src.Channel,
			Message: notify.Message{
				Headline:  fmt.Sprintf("🚫 %s blocked by anti-bot check", src.DisplayName()),
				Link:      src.Fetch.URL,
				Fields:    fields,
				Color:     notify.ColorBlocked,
				Footer:    src.DisplayName(),
				Timestamp: now,
			},
		}
	}
	if !src.ErrorAlerts {
		return nil
	}
	return &Event{
		Kind:           KindFetchError,
		Classification: detect.FetchError,
		Channel:        src.Channel,
		Message: notify.Message{
			Headline:  fmt.Sprintf("⚠️ %s fetch failed", src.DisplayName()),
			Fields:    fields,
			Color:     notify.ColorDanger,
			Footer:    src.DisplayName(),
			Timestamp: now,
		},
	}
}
