package fetch

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/hamed0406/sourcewatch/internal/domain"
)

// HTMLFeed scrapes a listing page into items using the source's selectors.
type HTMLFeed struct {
	Client *Client
}

func (f *HTMLFeed) Fetch(ctx context.Context, src domain.MonitoredSource) domain.Observation {
	spec := src.Fetch
	if strings.TrimSpace(spec.ItemSelector) == "" {
		return domain.Fail(domain.FailureParse, nil, "source %s has no item selector", src.ID)
	}
	pattern, err := compilePattern(spec.IDPattern)
	if err != nil {
		return domain.Fail(domain.FailureParse, err, "id pattern")
	}

	rawURL := ExpandURL(spec.URL, src.Keyword)
	body, failure := f.Client.Get(ctx, spec, rawURL)
	if failure != nil {
		return failure
	}
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return domain.Fail(domain.FailureParse, err, "parse %s", rawURL)
	}

	base := spec.BaseURL
	if base == "" {
		base = rawURL
	}
	return domain.FeedObservation{Items: ParseItems(doc, spec, base, pattern)}
}

// ParseItems extracts items in document order, which listing pages use for
// newest-first. Entries with neither title nor link are skipped; ids are
// unique within the result.
func ParseItems(doc *html.Node, spec domain.FetchSpec, base string, pattern *regexp.Regexp) []domain.Item {
	baseURL, _ := url.Parse(base)
	seen := map[string]bool{}
	var out []domain.Item

	for _, n := range querySelectorAll(doc, spec.ItemSelector) {
		it := domain.Item{
			Title:       collectText(queryFirst(n, spec.TitleSelector)),
			Description: optionalText(n, spec.DescSelector),
			Date:        optionalText(n, spec.DateSelector),
			Author:      optionalText(n, spec.AuthorSelector),
		}
		it.Link = resolve(baseURL, linkOf(queryFirst(n, spec.LinkSelector)))
		if spec.ImageSelector != "" {
			if img := queryFirst(n, spec.ImageSelector); img != nil {
				src := getAttr(img, "src")
				if src == "" {
					src = getAttr(img, "data-src")
				}
				it.Image = resolve(baseURL, src)
			}
		}
		if it.Title == "" && it.Link == "" {
			continue
		}

		it.ID = ItemID(it.Link, pattern)
		if it.ID == "" {
			it.ID = HashID(it.Title)
		}
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
	}
	return out
}

func optionalText(n *html.Node, selector string) string {
	if strings.TrimSpace(selector) == "" {
		return ""
	}
	return collectText(queryFirst(n, selector))
}

// linkOf returns the node's href, or the first anchor's href below it.
func linkOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	if href := getAttr(n, "href"); href != "" {
		return href
	}
	return getAttr(queryFirst(n, "a[href]"), "href")
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "javascript:") {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if base == nil || u.IsAbs() {
		return u.String()
	}
	return base.ResolveReference(u).String()
}

func compilePattern(p string) (*regexp.Regexp, error) {
	if strings.TrimSpace(p) == "" {
		return nil, nil
	}
	return regexp.Compile(p)
}
