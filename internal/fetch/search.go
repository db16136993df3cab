package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hamed0406/sourcewatch/internal/domain"
)

// SearchAPI reads a JSON search response such as the Naver blog/cafe search.
// Result text carries highlight markup (<b>keyword</b>) that is stripped.
type SearchAPI struct {
	Client *Client
}

var strict = bluemonday.StrictPolicy()

func (s *SearchAPI) Fetch(ctx context.Context, src domain.MonitoredSource) domain.Observation {
	spec := src.Fetch
	pattern, err := compilePattern(spec.IDPattern)
	if err != nil {
		return domain.Fail(domain.FailureParse, err, "id pattern")
	}

	rawURL := ExpandURL(spec.URL, src.Keyword)
	body, failure := s.Client.GetAPI(ctx, spec, rawURL)
	if failure != nil {
		return failure
	}
	items, err := ParseSearch([]byte(body), spec, pattern)
	if err != nil {
		return domain.Fail(domain.FailureParse, err, "search response from %s", rawURL)
	}
	return domain.FeedObservation{Items: items}
}

// ParseSearch maps the array at spec.ItemsPath (dot separated, default
// "items") onto items.
func ParseSearch(body []byte, spec domain.FetchSpec, pattern *regexp.Regexp) ([]domain.Item, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	path := spec.ItemsPath
	if path == "" {
		path = "items"
	}
	node := doc
	for _, key := range strings.Split(path, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("path %q: %q is not an object", path, key)
		}
		node, ok = m[key]
		if !ok {
			return nil, fmt.Errorf("path %q: missing %q", path, key)
		}
	}
	list, ok := node.([]any)
	if !ok {
		return nil, fmt.Errorf("path %q is not an array", path)
	}

	field := func(m map[string]any, name, fallback string) string {
		if name == "" {
			name = fallback
		}
		switch v := m[name].(type) {
		case string:
			return clean(v)
		case float64, bool:
			return fmt.Sprint(v)
		}
		return ""
	}

	seen := map[string]bool{}
	out := make([]domain.Item, 0, len(list))
	for _, raw := range list {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		it := domain.Item{
			Title:       field(m, spec.TitleField, "title"),
			Link:        field(m, spec.LinkField, "link"),
			Description: field(m, spec.DescField, "description"),
			Date:        field(m, spec.DateField, "postdate"),
			Author:      field(m, "", "bloggername"),
		}
		if it.Author == "" {
			it.Author = field(m, "", "cafename")
		}
		if spec.IDField != "" {
			it.ID = field(m, spec.IDField, "")
		}
		if it.ID == "" {
			it.ID = ItemID(it.Link, pattern)
		}
		if it.ID == "" {
			it.ID = HashID(it.Title)
		}
		if it.Title == "" && it.Link == "" {
			continue
		}
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
	}
	return out, nil
}

func clean(s string) string {
	s = html.UnescapeString(strict.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}
