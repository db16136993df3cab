package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hamed0406/sourcewatch/internal/domain"
)

func TestCheckAll_OneTimeoutDoesNotAffectOthers(t *testing.T) {
	var served atomic.Int32
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served.Add(1)
		w.WriteHeader(200)
	}))
	defer fast.Close()
	hang := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer hang.Close()

	checks := []domain.HealthCheck{
		{URL: fast.URL + "/one"},
		{URL: hang.URL, Timeout: 50 * time.Millisecond},
		{URL: fast.URL + "/three"},
	}
	out := CheckAll(context.Background(), NewHTTPChecker(5*time.Second), checks, 3, time.Second)

	if len(out) != 3 {
		t.Fatalf("want 3 results, got %d", len(out))
	}
	if !out[0].Success || out[1].Success || !out[2].Success {
		t.Fatalf("results = %+v", out)
	}
	if out[1].StatusCode != 0 {
		t.Fatalf("timed out target should have no status, got %d", out[1].StatusCode)
	}
	if served.Load() != 2 {
		t.Fatalf("targets 1 and 3 should both complete, served=%d", served.Load())
	}
}

type panicky struct{}

func (panicky) Check(ctx context.Context, hc domain.HealthCheck) CheckResult {
	if hc.URL == "boom" {
		panic("bad target")
	}
	return CheckResult{Success: true}
}

func TestCheckAll_PanicIsolated(t *testing.T) {
	out := CheckAll(context.Background(), panicky{}, []domain.HealthCheck{{URL: "ok"}, {URL: "boom"}, {URL: "ok"}}, 1, 0)
	if !out[0].Success || out[1].Success || !out[2].Success {
		t.Fatalf("results = %+v", out)
	}
}

func TestDNSAnnotator_OnlyOnTransportErrors(t *testing.T) {
	calls := 0
	a := &DNSAnnotator{
		Inner: &fakeChecker{results: []CheckResult{{Message: "dial tcp: no such host"}, {StatusCode: 503, Message: "503"}}},
		Lookup: func(ctx context.Context, host string) DNSStatus {
			calls++
			if host != "down.invalid" {
				t.Errorf("host = %q", host)
			}
			return DNSStatus{Domain: host, Class: "NXDOMAIN"}
		},
	}
	hc := domain.HealthCheck{URL: "https://down.invalid/health"}
	out := a.Check(context.Background(), hc)
	if out.DNSClass != "NXDOMAIN" || out.Message != "dial tcp: no such host dns=NXDOMAIN" {
		t.Fatalf("got %+v", out)
	}
	out = a.Check(context.Background(), hc)
	if out.DNSClass != "" || calls != 1 {
		t.Fatalf("HTTP errors must not trigger DNS lookups: %+v calls=%d", out, calls)
	}
}
