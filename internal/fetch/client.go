package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/hamed0406/sourcewatch/internal/domain"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	defaultMaxBody   = 5 << 20
	maxRedirects     = 5
)

type Client struct {
	HTTP           *http.Client
	UserAgent      string
	MaxBody        int64
	DefaultTimeout time.Duration
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		HTTP: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		UserAgent:      defaultUserAgent,
		MaxBody:        defaultMaxBody,
		DefaultTimeout: timeout,
	}
}

// ExpandURL substitutes {keyword} with the query-escaped keyword.
func ExpandURL(raw, keyword string) string {
	return strings.ReplaceAll(raw, "{keyword}", url.QueryEscape(keyword))
}

// Get fetches rawURL and returns the body decoded to UTF-8. Every failure is
// classified; a page carrying one of the source's captcha markers is
// reported as blocked.
func (c *Client) Get(ctx context.Context, spec domain.FetchSpec, rawURL string) (string, *domain.FetchFailure) {
	return c.get(ctx, spec, rawURL, true)
}

// GetAPI is Get for structured API responses. Challenge markers are not
// searched for, since result text may legitimately contain them.
func (c *Client) GetAPI(ctx context.Context, spec domain.FetchSpec, rawURL string) (string, *domain.FetchFailure) {
	return c.get(ctx, spec, rawURL, false)
}

func (c *Client) get(ctx context.Context, spec domain.FetchSpec, rawURL string, checkMarkers bool) (string, *domain.FetchFailure) {
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = c.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", domain.Fail(domain.FailureNetwork, err, "build request")
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en;q=0.8")
	for k, v := range spec.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", classifyTransport(err, rawURL)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return "", domain.Fail(domain.FailureBlocked, nil, "GET %s: %s", rawURL, resp.Status)
	case resp.StatusCode >= 400:
		return "", domain.Fail(domain.FailureHTTP, nil, "GET %s: %s", rawURL, resp.Status)
	}

	var r io.Reader = io.LimitReader(resp.Body, c.MaxBody)
	if spec.Encoding != "" {
		r, err = charset.NewReaderLabel(spec.Encoding, r)
	} else {
		r, err = charset.NewReader(r, resp.Header.Get("Content-Type"))
	}
	if err != nil {
		return "", domain.Fail(domain.FailureParse, err, "decode %s", rawURL)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", classifyTransport(err, rawURL)
	}
	body := string(b)

	if !checkMarkers {
		return body, nil
	}
	if m := BlockedMarker(body, spec.CaptchaMarkers); m != "" {
		return "", domain.Fail(domain.FailureBlocked, nil, "challenge marker %q in %s", m, rawURL)
	}
	return body, nil
}

func classifyTransport(err error, rawURL string) *domain.FetchFailure {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return domain.Fail(domain.FailureTimeout, err, "GET %s", rawURL)
	}
	return domain.Fail(domain.FailureNetwork, err, "GET %s", rawURL)
}

// BlockedMarker returns the first of markers found in body, or "". Matching
// is case-sensitive; a source with no markers is never treated as blocked
// by content.
func BlockedMarker(body string, markers []string) string {
	for _, m := range markers {
		if m != "" && strings.Contains(body, m) {
			return m
		}
	}
	return ""
}
