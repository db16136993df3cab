package probe

import (
	"context"
	"net/url"

	"github.com/hamed0406/sourcewatch/internal/domain"
)

// DNSAnnotator runs a DNS check when the inner checker got no HTTP status,
// and records the class on the result.
type DNSAnnotator struct {
	Inner  Checker
	Lookup func(ctx context.Context, host string) DNSStatus
}

func NewDNSAnnotator(inner Checker) *DNSAnnotator {
	return &DNSAnnotator{Inner: inner, Lookup: CheckDNS}
}

func (d *DNSAnnotator) Check(ctx context.Context, hc domain.HealthCheck) CheckResult {
	out := d.Inner.Check(ctx, hc)
	if out.Success || out.StatusCode != 0 {
		return out
	}
	dns := d.Lookup(context.WithoutCancel(ctx), extractHost(hc.URL))
	out.DNSClass = dns.Class
	if dns.Class != "" && dns.Class != DNSResolves {
		out.Message = out.Message + " dns=" + dns.Class
	}
	return out
}

func extractHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
