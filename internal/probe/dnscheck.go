package probe

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// DNS classes attached to healthcheck results that never got an HTTP status.
const (
	DNSResolves    = "RESOLVES"
	DNSNoARecord   = "NO_A_RECORD"
	DNSNXDomain    = "NXDOMAIN"
	DNSServfail    = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName = "INVALID_NAME"
)

// Resolver is the part of *net.Resolver the classifier needs.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
	LookupNS(ctx context.Context, name string) ([]*net.NS, error)
}

type DNSStatus struct {
	Domain        string
	Addrs         []string
	Nameservers   []string
	Class         string
	ResolverError string
}

var dnsTimeout = 3 * time.Second

// CheckDNS classifies host resolution with the OS resolver.
func CheckDNS(ctx context.Context, host string) DNSStatus {
	return ClassifyDNS(ctx, net.DefaultResolver, host)
}

// ClassifyDNS explains why a request produced no HTTP status: the name does
// not exist, exists without addresses, resolves, or the resolver failed.
func ClassifyDNS(ctx context.Context, r Resolver, host string) DNSStatus {
	s := DNSStatus{Domain: strings.TrimSuffix(strings.TrimSpace(host), ".")}
	if s.Domain == "" || strings.ContainsAny(s.Domain, "/: ") {
		s.Class = DNSInvalidName
		return s
	}

	ctx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()

	addrs, err := r.LookupIPAddr(ctx, s.Domain)
	if err == nil && len(addrs) > 0 {
		for _, a := range addrs {
			s.Addrs = append(s.Addrs, a.String())
		}
		s.Class = DNSResolves
		return s
	}
	if err != nil {
		s.ResolverError = err.Error()
	}

	// A zone with nameservers but no address records still exists.
	if ns, nsErr := r.LookupNS(ctx, s.Domain); nsErr == nil && len(ns) > 0 {
		for _, n := range ns {
			s.Nameservers = append(s.Nameservers, strings.TrimSuffix(n.Host, "."))
		}
		s.Class = DNSNoARecord
		return s
	}

	var de *net.DNSError
	switch {
	case err == nil:
		s.Class = DNSNoARecord
	case errors.As(err, &de) && de.IsNotFound:
		s.Class = DNSNXDomain
	default:
		s.Class = DNSServfail
	}
	return s
}
