package detect

import (
	"time"

	"github.com/hamed0406/sourcewatch/internal/domain"
)

type HealthStatus string

const (
	HealthSuccess HealthStatus = "success"
	HealthSlow    HealthStatus = "slow"
	HealthError   HealthStatus = "error"
)

// DefaultThreshold is used when neither the target nor the environment sets one.
const DefaultThreshold = time.Second

// ThresholdFor returns the target's own threshold, else fallback.
func ThresholdFor(r domain.HealthResult, fallback time.Duration) time.Duration {
	if r.Threshold > 0 {
		return r.Threshold
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultThreshold
}

func ClassifyHealth(r domain.HealthResult, fallback time.Duration) HealthStatus {
	if !r.Success {
		return HealthError
	}
	if r.ResponseTime > ThresholdFor(r, fallback) {
		return HealthSlow
	}
	return HealthSuccess
}

// HealthStats counts one cycle. Success includes slow targets.
type HealthStats struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Error   int `json:"error"`
	Slow    int `json:"slow"`
}

const (
	OverallSuccess  = "SUCCESS"
	OverallWarning  = "WARNING"
	OverallCritical = "CRITICAL"
)

// Overall is SUCCESS with no errors and nothing slow, CRITICAL when every
// target errored, WARNING otherwise.
func (s HealthStats) Overall() string {
	switch {
	case s.Error == 0 && s.Slow == 0:
		return OverallSuccess
	case s.Error == s.Total:
		return OverallCritical
	default:
		return OverallWarning
	}
}

func Health(results []domain.HealthResult, fallback time.Duration) HealthStats {
	st := HealthStats{Total: len(results)}
	for _, r := range results {
		switch ClassifyHealth(r, fallback) {
		case HealthError:
			st.Error++
		case HealthSlow:
			st.Success++
			st.Slow++
		default:
			st.Success++
		}
	}
	return st
}
