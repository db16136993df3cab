package policy

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/hamed0406/sourcewatch/internal/detect"
	"github.com/hamed0406/sourcewatch/internal/domain"
	"github.com/hamed0406/sourcewatch/internal/notify"
)

var now = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func feedSource() domain.MonitoredSource {
	return domain.MonitoredSource{ID: "ppomppu-monimo", Name: "Ppomppu", Keyword: "모니모", Channel: "ppomppu", MaxItemAlerts: 2}
}

func newItems(n int) []domain.Item {
	out := make([]domain.Item, n)
	for i := range out {
		out[i] = domain.Item{ID: string(rune('a' + i)), Title: "t", Link: "https://x/" + string(rune('a'+i))}
	}
	return out
}

func TestFeedEvents_CapsAndKeepsOrder(t *testing.T) {
	d := detect.FeedDelta{Classification: detect.NewItems, NewItems: newItems(4), Total: 10}
	p := FeedEvents(feedSource(), d, now)

	if len(p.Items) != 2 || len(p.Suppressed) != 2 {
		t.Fatalf("items=%d suppressed=%d", len(p.Items), len(p.Suppressed))
	}
	if p.Items[0].Message.Link != "https://x/a" || p.Items[1].Message.Link != "https://x/b" {
		t.Fatalf("order lost: %+v", p.Items)
	}
	if p.Suppressed[0].ID != "c" {
		t.Fatalf("suppressed = %+v", p.Suppressed)
	}
	if p.Items[0].Message.IdempotencyKey != "ppomppu-monimo:a" {
		t.Fatalf("key = %q", p.Items[0].Message.IdempotencyKey)
	}
	if p.Items[0].Message.Color != notify.ColorNewItem || p.Items[0].Channel != "ppomppu" {
		t.Fatalf("unexpected event %+v", p.Items[0])
	}
	if len(p.Extra) != 0 {
		t.Fatalf("no status requested, got %+v", p.Extra)
	}
}

func TestFeedEvents_FirstRunIsSilentByDefault(t *testing.T) {
	d := detect.FeedDelta{Classification: detect.FirstRun, Total: 20}
	if p := FeedEvents(feedSource(), d, now); p.Len() != 0 {
		t.Fatalf("first run must be silent, got %+v", p)
	}
}

func TestFeedEvents_StatusOnFirstRun(t *testing.T) {
	src := feedSource()
	src.StatusAlerts = true
	d := detect.FeedDelta{Classification: detect.FirstRun, Total: 20}
	p := FeedEvents(src, d, now)
	if len(p.Items) != 0 || len(p.Extra) != 1 {
		t.Fatalf("plan = %+v", p)
	}
	st := p.Extra[0].Message
	if st.Footer != "first run (initialized)" || st.Color != notify.ColorStatus {
		t.Fatalf("status = %+v", st)
	}
	if n := fieldValue(st, "New"); n != "20" {
		t.Fatalf("first run new count = %q", n)
	}
}

func TestFeedEvents_UnchangedIsSilent(t *testing.T) {
	src := feedSource()
	src.StatusAlerts = true
	if p := FeedEvents(src, detect.FeedDelta{Classification: detect.Unchanged, Total: 3}, now); p.Len() != 0 {
		t.Fatalf("unchanged must be silent: %+v", p)
	}
}

func TestScalarEvents_BatchesChanges(t *testing.T) {
	src := domain.MonitoredSource{ID: "currency", Name: "Rates", Channel: "currency"}
	d := detect.ScalarDelta{
		Classification: detect.ValueChanged,
		Changed: []detect.ScalarChange{
			{Reading: domain.Reading{TargetID: "USD", Name: "USD/KRW", Value: "1,471.50", Unit: "KRW"}, Previous: "1,470.00"},
			{Reading: domain.Reading{TargetID: "JPY", Name: "JPY/KRW", Value: "949.00"}, Previous: "950.00"},
		},
	}
	ev := ScalarEvents(src, d, now)
	if len(ev) != 1 {
		t.Fatalf("want one batched event, got %d", len(ev))
	}
	m := ev[0].Message
	if len(m.Fields) != 2 || m.Color != notify.ColorScalar {
		t.Fatalf("message = %+v", m)
	}
	if m.Fields[0].Value != "1,470.00 KRW → 1,471.50 KRW (▲ 1.5)" {
		t.Fatalf("usd = %q", m.Fields[0].Value)
	}
	if !strings.Contains(m.Fields[1].Value, "▼ 1") {
		t.Fatalf("jpy = %q", m.Fields[1].Value)
	}
}

func TestScalarEvents_SilentWhenUnchanged(t *testing.T) {
	src := domain.MonitoredSource{ID: "gold", AnnounceFirstRun: true}
	if ev := ScalarEvents(src, detect.ScalarDelta{Classification: detect.Unchanged}, now); len(ev) != 0 {
		t.Fatalf("got %+v", ev)
	}
	d := detect.ScalarDelta{Classification: detect.FirstRun, Current: []domain.Reading{{Name: "Gold", Value: "150,000"}}}
	if ev := ScalarEvents(src, d, now); len(ev) != 1 || ev[0].Kind != KindFirstRun {
		t.Fatalf("first read = %+v", ev)
	}
	src.AnnounceFirstRun = false
	if ev := ScalarEvents(src, d, now); len(ev) != 0 {
		t.Fatalf("first read without announce = %+v", ev)
	}
}

func TestFailureEvent_BlockedAlwaysAlerts(t *testing.T) {
	src := feedSource()
	ev := FailureEvent(src, domain.Fail(domain.FailureBlocked, nil, "captcha marker %q", "captcha"), now)
	if ev == nil || ev.Kind != KindBlocked || ev.Message.Color != notify.ColorBlocked {
		t.Fatalf("blocked event = %+v", ev)
	}
	if FailureEvent(src, domain.Fail(domain.FailureTimeout, nil, "deadline"), now) != nil {
		t.Fatalf("error alerts are opt-in")
	}
	src.ErrorAlerts = true
	if ev := FailureEvent(src, domain.Fail(domain.FailureHTTP, nil, "503"), now); ev == nil || ev.Kind != KindFetchError {
		t.Fatalf("error alert = %+v", ev)
	}
}

func hr(name, ch string, ok bool, rt time.Duration) domain.HealthResult {
	return domain.HealthResult{Name: name, Channel: ch, Success: ok, ResponseTime: rt, Method: "GET", URL: "https://" + name}
}

func TestHealthSummary_GatesPerChannel(t *testing.T) {
	results := []domain.HealthResult{
		hr("a", "health", true, 100*time.Millisecond),
		hr("b", "health", false, 0),
		hr("c", "ops", true, 50*time.Millisecond),
		hr("d", "slow", true, 3*time.Second),
	}
	flags := HealthFlags{OnError: true, OnSlow: true}
	ev := HealthSummary(results, time.Second, flags, now)
	if len(ev) != 2 {
		t.Fatalf("want health+slow summaries, got %d: %+v", len(ev), ev)
	}
	if ev[0].Channel != "health" || ev[1].Channel != "slow" {
		t.Fatalf("channels = %s, %s", ev[0].Channel, ev[1].Channel)
	}
	if ev[0].Message.Headline != "API health check: WARNING" || ev[0].Message.Color != notify.ColorWarning {
		t.Fatalf("health summary = %+v", ev[0].Message)
	}

	flags.OnSlow = false
	if ev := HealthSummary(results, time.Second, flags, now); len(ev) != 1 {
		t.Fatalf("slow alerts disabled, want 1 got %d", len(ev))
	}
	flags.OnSuccess = true
	if ev := HealthSummary(results, time.Second, flags, now); len(ev) != 3 {
		t.Fatalf("success alerts enabled, want 3 got %d", len(ev))
	}
}

func TestHealthSummary_SourceOverridesBeatDefaults(t *testing.T) {
	off, on := false, true
	quiet := hr("quiet", "ops", true, 100*time.Millisecond)
	quiet.OnSuccess = &off
	loud := hr("loud", "health", true, 100*time.Millisecond)
	slow := hr("slow", "perf", true, 3*time.Second)
	slow.OnSlow = &on
	muted := hr("muted", "muted", false, 0)
	muted.OnError = &off
	muted.OnSuccess = &off

	flags := HealthFlags{OnError: true, OnSuccess: true}
	ev := HealthSummary([]domain.HealthResult{quiet, loud, slow, muted}, time.Second, flags, now)
	var channels []string
	for _, e := range ev {
		channels = append(channels, e.Channel)
	}
	if !reflect.DeepEqual(channels, []string{"health", "perf"}) {
		t.Fatalf("channels = %v", channels)
	}

	// A quiet target sharing a channel is not listed as healthy.
	quiet.Channel = "health"
	ev = HealthSummary([]domain.HealthResult{quiet, loud}, time.Second, flags, now)
	if len(ev) != 1 {
		t.Fatalf("want 1 summary, got %d", len(ev))
	}
	for _, f := range ev[0].Message.Fields {
		if strings.Contains(f.Title, "quiet") {
			t.Fatalf("quiet target listed: %+v", f)
		}
	}
}

func TestHealthSummary_CriticalWhenAllFail(t *testing.T) {
	results := []domain.HealthResult{hr("a", "h", false, 0), hr("b", "h", false, 0)}
	ev := HealthSummary(results, time.Second, HealthFlags{}, now)
	if len(ev) != 1 || ev[0].Message.Color != notify.ColorDanger || !strings.HasSuffix(ev[0].Message.Headline, "CRITICAL") {
		t.Fatalf("got %+v", ev)
	}
}

func TestHealthIndividual_Flags(t *testing.T) {
	flags := HealthFlags{OnError: true, OnSlow: true}
	if HealthIndividual(hr("a", "h", true, 10*time.Millisecond), time.Second, flags, now) != nil {
		t.Fatalf("success is silent by default")
	}
	if ev := HealthIndividual(hr("a", "h", false, 0), time.Second, flags, now); ev == nil || ev.Message.Color != notify.ColorDanger {
		t.Fatalf("error event = %+v", ev)
	}
	if ev := HealthIndividual(hr("a", "h", true, 2*time.Second), time.Second, flags, now); ev == nil || ev.Message.Color != notify.ColorWarning {
		t.Fatalf("slow event = %+v", ev)
	}
	flags = HealthFlags{}
	if HealthIndividual(hr("a", "h", false, 0), time.Second, flags, now) != nil {
		t.Fatalf("on_error disabled")
	}
}

func TestFlagsFor_Overrides(t *testing.T) {
	off := false
	src := domain.MonitoredSource{OnSlow: &off}
	f := FlagsFor(src, HealthFlags{OnError: true, OnSlow: true})
	if !f.OnError || f.OnSlow || f.OnSuccess {
		t.Fatalf("flags = %+v", f)
	}
}

func fieldValue(m notify.Message, title string) string {
	for _, f := range m.Fields {
		if f.Title == title {
			return f.Value
		}
	}
	return ""
}
