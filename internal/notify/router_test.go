package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hamed0406/sourcewatch/internal/domain"
)

type memTransport struct {
	mu   sync.Mutex
	url  string
	msgs []Message
	err  error
}

func (m *memTransport) Deliver(ctx context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msg)
	return nil
}

// newTestRouter records which transports the router builds, keyed by webhook.
func newTestRouter(cfg RouterConfig) (*Router, map[string]*memTransport, *int) {
	built := map[string]*memTransport{}
	n := 0
	r := NewRouter(cfg, nil, nil)
	r.newSlack = func(webhook string) Transport {
		n++
		mt := &memTransport{url: webhook}
		built[webhook] = mt
		return mt
	}
	return r, built, &n
}

func TestRouter_ResolvesChannelAndStripsHash(t *testing.T) {
	r, built, _ := newTestRouter(RouterConfig{
		Slack:          map[string]string{"#ppomppu": "https://hooks/ppomppu", "health": "https://hooks/health"},
		DefaultChannel: "health",
	})

	if err := r.Send(context.Background(), "#ppomppu", Message{Headline: "a"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := len(built["https://hooks/ppomppu"].msgs); got != 1 {
		t.Fatalf("ppomppu got %d", got)
	}
}

func TestRouter_FallsBackToDefault(t *testing.T) {
	r, built, _ := newTestRouter(RouterConfig{
		Slack:          map[string]string{"health": "https://hooks/health"},
		DefaultChannel: "#health",
	})
	if err := r.Send(context.Background(), "unknown", Message{Headline: "a"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := len(built["https://hooks/health"].msgs); got != 1 {
		t.Fatalf("default got %d", got)
	}
}

func TestRouter_NoEndpointIsHardFailure(t *testing.T) {
	r, _, _ := newTestRouter(RouterConfig{
		Slack:          map[string]string{"a": "https://hooks/a"},
		DefaultChannel: "missing",
	})
	err := r.Send(context.Background(), "b", Message{Headline: "x"})
	if !errors.Is(err, domain.ErrNoEndpoint) {
		t.Fatalf("want ErrNoEndpoint, got %v", err)
	}
}

func TestRouter_CachesTransportPerChannel(t *testing.T) {
	r, _, n := newTestRouter(RouterConfig{Slack: map[string]string{"a": "https://hooks/a"}})
	for i := 0; i < 5; i++ {
		if err := r.Send(context.Background(), "a", Message{Headline: "x"}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	if *n != 1 {
		t.Fatalf("transport built %d times, want 1", *n)
	}
}

func TestRouter_DeliveryErrorIsWrapped(t *testing.T) {
	r := NewRouter(RouterConfig{Slack: map[string]string{"a": "x"}}, nil, nil)
	r.newSlack = func(string) Transport { return &memTransport{err: errors.New("boom")} }
	err := r.Send(context.Background(), "a", Message{})
	if !errors.Is(err, domain.ErrDelivery) || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("got %v", err)
	}
}

func TestRouter_IdempotencyKeySuppressesRepeat(t *testing.T) {
	r, built, _ := newTestRouter(RouterConfig{
		Slack:       map[string]string{"a": "https://hooks/a"},
		DedupWindow: time.Hour,
	})
	msg := Message{Headline: "x", IdempotencyKey: "feed:123"}
	for i := 0; i < 3; i++ {
		if err := r.Send(context.Background(), "a", msg); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	if got := len(built["https://hooks/a"].msgs); got != 1 {
		t.Fatalf("delivered %d, want 1", got)
	}
}

func TestMulti_AggregatesErrors(t *testing.T) {
	ok := &memTransport{}
	m := Multi{&memTransport{err: errors.New("one")}, nil, ok, &memTransport{err: errors.New("two")}}
	err := m.Deliver(context.Background(), Message{Headline: "x"})
	if err == nil || !strings.Contains(err.Error(), "one") || !strings.Contains(err.Error(), "two") {
		t.Fatalf("want both errors, got %v", err)
	}
	if len(ok.msgs) != 1 {
		t.Fatalf("healthy transport skipped")
	}
}

func TestDedup_WindowExpires(t *testing.T) {
	d := NewDedup(time.Minute)
	now := time.Unix(0, 0)
	d.now = func() time.Time { return now }
	d.Mark("k")
	if !d.Seen("k") {
		t.Fatalf("expected seen")
	}
	now = now.Add(2 * time.Minute)
	if d.Seen("k") {
		t.Fatalf("expected expiry")
	}
	if NewDedup(0).Seen("k") {
		t.Fatalf("disabled dedup must never report seen")
	}
}
