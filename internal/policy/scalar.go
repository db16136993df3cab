package policy

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/hamed0406/sourcewatch/internal/detect"
	"github.com/hamed0406/sourcewatch/internal/domain"
	"github.com/hamed0406/sourcewatch/internal/notify"
)

// ScalarEvents returns at most one event: a batch of every changed value, or
// an informational first read when the source asks for one.
func ScalarEvents(src domain.MonitoredSource, d detect.ScalarDelta, now time.Time) []Event {
	switch d.Classification {
	case detect.ValueChanged:
		fields := make([]notify.Field, 0, len(d.Changed))
		for _, c := range d.Changed {
			fields = append(fields, notify.Field{
				Title:      c.Reading.Name,
				Value:      changeText(c),
				Emphasized: true,
			})
		}
		return []Event{{
			Kind:           KindValueChanged,
			Classification: d.Classification,
			Channel:        src.Channel,
			Message: notify.Message{
				Headline:  fmt.Sprintf("💱 %s changed", src.DisplayName()),
				Link:      firstLink(d.Changed),
				Fields:    fields,
				Color:     notify.ColorScalar,
				Footer:    src.DisplayName(),
				Timestamp: now,
			},
		}}
	case detect.FirstRun:
		if !src.AnnounceFirstRun {
			return nil
		}
		fields := make([]notify.Field, 0, len(d.Current))
		for _, r := range d.Current {
			fields = append(fields, notify.Field{Title: r.Name, Value: withUnit(r.Value, r.Unit), Inline: true})
		}
		return []Event{{
			Kind:           KindFirstRun,
			Classification: d.Classification,
			Channel:        src.Channel,
			Message: notify.Message{
				Headline:  fmt.Sprintf("👀 Now watching %s", src.DisplayName()),
				Fields:    fields,
				Color:     notify.ColorStatus,
				Footer:    "first run (initialized)",
				Timestamp: now,
			},
		}}
	}
	return nil
}

func changeText(c detect.ScalarChange) string {
	cur := withUnit(c.Reading.Value, c.Reading.Unit)
	prev := withUnit(c.Previous, c.Reading.Unit)
	a, errA := parseNumber(c.Previous)
	b, errB := parseNumber(c.Reading.Value)
	if errA != nil || errB != nil {
		return fmt.Sprintf("%s → %s", prev, cur)
	}
	arrow := "▲"
	if b < a {
		arrow = "▼"
	}
	return fmt.Sprintf("%s → %s (%s %s)", prev, cur, arrow, strconv.FormatFloat(math.Round(math.Abs(b-a)*100)/100, 'f', -1, 64))
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
}

func withUnit(v, unit string) string {
	if unit == "" {
		return v
	}
	return v + " " + unit
}

func firstLink(changes []detect.ScalarChange) string {
	for _, c := range changes {
		if c.Reading.Link != "" {
			return c.Reading.Link
		}
	}
	return ""
}
