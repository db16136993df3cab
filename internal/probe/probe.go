package probe

import (
	"context"

	"github.com/hamed0406/sourcewatch/internal/domain"
)

// CheckResult is the unified result of a single probe.
//
// Fields:
//   - StatusCode: HTTP status code when available; 0 for transport/DNS errors.
//   - DNSClass: set by DNSAnnotator when the request never reached the server.
type CheckResult struct {
	Name       string
	Success    bool
	LatencyMS  float64
	Message    string
	StatusCode int
	DNSClass   string
}

// Checker performs a single health-check request.
type Checker interface {
	Check(ctx context.Context, hc domain.HealthCheck) CheckResult
}
