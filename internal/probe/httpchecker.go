package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hamed0406/sourcewatch/internal/domain"
)

type HTTPChecker struct {
	Client *http.Client
}

func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	return &HTTPChecker{
		Client: &http.Client{Timeout: timeout},
	}
}

func requestBody(body any) (io.Reader, bool, error) {
	switch b := body.(type) {
	case nil:
		return nil, false, nil
	case string:
		return strings.NewReader(b), false, nil
	case []byte:
		return bytes.NewReader(b), false, nil
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, false, err
		}
		return bytes.NewReader(raw), true, nil
	}
}

func (h *HTTPChecker) Check(ctx context.Context, hc domain.HealthCheck) CheckResult {
	if hc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, hc.Timeout)
		defer cancel()
	}
	method := strings.ToUpper(hc.Method)
	if method == "" {
		method = http.MethodGet
	}

	body, isJSON, err := requestBody(hc.Body)
	if err != nil {
		return CheckResult{Name: "HTTP", Success: false, Message: "encode body: " + err.Error()}
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, method, hc.URL, body)
	if err != nil {
		return CheckResult{Name: "HTTP", Success: false, Message: err.Error()}
	}
	if isJSON {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hc.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.Client.Do(req)
	latency := time.Since(start).Seconds() * 1000 // ms
	if err != nil {
		return CheckResult{Name: "HTTP", Success: false, Message: err.Error(), LatencyMS: latency}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	success := resp.StatusCode >= 200 && resp.StatusCode < 400
	return CheckResult{
		Name:       "HTTP",
		Success:    success,
		Message:    resp.Status,
		StatusCode: resp.StatusCode,
		LatencyMS:  latency,
	}
}
