package fetch

import (
	"context"
	"strings"

	"golang.org/x/net/html"

	"github.com/hamed0406/sourcewatch/internal/domain"
)

// ScalarBoard reads several values (exchange rates, gold or oil prices)
// off a single page.
type ScalarBoard struct {
	Client *Client
}

func (b *ScalarBoard) Fetch(ctx context.Context, src domain.MonitoredSource) domain.Observation {
	if len(src.Targets) == 0 {
		return domain.Fail(domain.FailureParse, nil, "source %s has no targets", src.ID)
	}
	rawURL := ExpandURL(src.Fetch.URL, src.Keyword)
	body, failure := b.Client.Get(ctx, src.Fetch, rawURL)
	if failure != nil {
		return failure
	}
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return domain.Fail(domain.FailureParse, err, "parse %s", rawURL)
	}

	readings := ReadTargets(doc, src.Targets, rawURL)
	for _, r := range readings {
		if r.OK() {
			return domain.ScalarObservation{Readings: readings}
		}
	}
	return domain.Fail(domain.FailureParse, nil, "no target found on %s", rawURL)
}

// ReadTargets reads each target independently; a target that cannot be
// located gets Err set and does not affect the others.
func ReadTargets(doc *html.Node, targets []domain.ScalarTarget, pageURL string) []domain.Reading {
	out := make([]domain.Reading, 0, len(targets))
	for _, t := range targets {
		r := domain.Reading{TargetID: t.ID, Name: t.Name, Unit: t.Unit, Link: t.Link}
		if r.Name == "" {
			r.Name = t.ID
		}
		if r.Link == "" {
			r.Link = pageURL
		}

		n := locate(doc, t)
		if n == nil {
			r.Err = "label not found"
			out = append(out, r)
			continue
		}
		r.Value = collectText(queryFirst(n, t.ValueSelector))
		if r.Value == "" {
			r.Err = "empty value"
		}
		out = append(out, r)
	}
	return out
}

// locate returns the first candidate whose label matches one of t.Match.
// With no match strings the first candidate wins.
func locate(doc *html.Node, t domain.ScalarTarget) *html.Node {
	candidates := []*html.Node{doc}
	if strings.TrimSpace(t.ItemSelector) != "" {
		candidates = querySelectorAll(doc, t.ItemSelector)
	}
	for _, c := range candidates {
		if len(t.Match) == 0 {
			return c
		}
		label := strings.ToLower(collectText(queryFirst(c, t.LabelSelector)))
		for _, m := range t.Match {
			if m != "" && strings.Contains(label, strings.ToLower(m)) {
				return c
			}
		}
	}
	return nil
}
