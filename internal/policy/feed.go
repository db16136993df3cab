package policy

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hamed0406/sourcewatch/internal/detect"
	"github.com/hamed0406/sourcewatch/internal/domain"
	"github.com/hamed0406/sourcewatch/internal/notify"
)

const descLimit = 200

// FeedEvents plans the notifications for one classified feed tick.
func FeedEvents(src domain.MonitoredSource, d detect.FeedDelta, now time.Time) FeedPlan {
	var p FeedPlan

	limit := src.MaxItemAlerts
	if limit <= 0 {
		limit = DefaultMaxItemAlerts
	}
	if d.Classification == detect.NewItems {
		for i, it := range d.NewItems {
			if i >= limit {
				p.Suppressed = d.NewItems[i:]
				break
			}
			p.Items = append(p.Items, Event{
				Kind:           KindNewItem,
				Classification: d.Classification,
				Channel:        src.Channel,
				Message:        itemMessage(src, it, now),
			})
		}
	}

	firstRun := d.Classification == detect.FirstRun
	if src.StatusAlerts && (firstRun || d.Classification == detect.NewItems) {
		p.Extra = append(p.Extra, Event{
			Kind:           KindStatus,
			Classification: d.Classification,
			Channel:        src.Channel,
			Message:        statusMessage(src, d, now),
		})
	} else if src.AnnounceFirstRun && firstRun {
		p.Extra = append(p.Extra, Event{
			Kind:           KindFirstRun,
			Classification: d.Classification,
			Channel:        src.Channel,
			Message: notify.Message{
				Headline:  fmt.Sprintf("👀 Now watching %s", src.DisplayName()),
				Color:     notify.ColorStatus,
				Fields:    keywordFields(src, notify.Field{Title: "Items recorded", Value: strconv.Itoa(d.Total), Inline: true}),
				Footer:    "first run (initialized)",
				Timestamp: now,
			},
		})
	}
	return p
}

// ItemKey identifies one item notification across restarts.
func ItemKey(sourceID, itemID string) string {
	return sourceID + ":" + itemID
}

func itemMessage(src domain.MonitoredSource, it domain.Item, now time.Time) notify.Message {
	fields := keywordFields(src)
	fields = append(fields, notify.Field{Title: "Title", Value: it.Title, Emphasized: true})
	if it.Author != "" {
		fields = append(fields, notify.Field{Title: "Author", Value: it.Author, Inline: true})
	}
	if it.Date != "" {
		fields = append(fields, notify.Field{Title: "Date", Value: it.Date, Inline: true})
	}
	if it.Description != "" {
		fields = append(fields, notify.Field{Title: "Summary", Value: truncate(it.Description, descLimit)})
	}
	return notify.Message{
		Headline:       fmt.Sprintf("🆕 New on %s", src.DisplayName()),
		Link:           it.Link,
		Fields:         fields,
		Color:          notify.ColorNewItem,
		Footer:         src.DisplayName(),
		Timestamp:      now,
		Thumbnail:      it.Image,
		IdempotencyKey: ItemKey(src.ID, it.ID),
	}
}

func statusMessage(src domain.MonitoredSource, d detect.FeedDelta, now time.Time) notify.Message {
	footer := "monitoring"
	newCount := len(d.NewItems)
	if d.Classification == detect.FirstRun {
		footer = "first run (initialized)"
		newCount = d.Total
	}
	fields := keywordFields(src,
		notify.Field{Title: "Fetched", Value: strconv.Itoa(d.Total), Inline: true},
		notify.Field{Title: "New", Value: strconv.Itoa(newCount), Inline: true, Emphasized: newCount > 0},
	)
	if n := len(d.Excluded); n > 0 {
		fields = append(fields, notify.Field{Title: "Excluded", Value: strconv.Itoa(n), Inline: true})
	}
	return notify.Message{
		Headline:  fmt.Sprintf("📊 %s status", src.DisplayName()),
		Fields:    fields,
		Color:     notify.ColorStatus,
		Footer:    footer,
		Timestamp: now,
	}
}

func keywordFields(src domain.MonitoredSource, extra ...notify.Field) []notify.Field {
	var out []notify.Field
	if src.Keyword != "" {
		out = append(out, notify.Field{Title: "Keyword", Value: src.Keyword, Inline: true})
	}
	return append(out, extra...)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
