// Package fetch retrieves the current observable content of a source.
//
// Fetchers never return errors or panic for ordinary network and parse
// problems: every outcome is a domain.Observation, failures included.
package fetch

import (
	"context"
	"fmt"

	"github.com/hamed0406/sourcewatch/internal/domain"
)

type Fetcher interface {
	Fetch(ctx context.Context, src domain.MonitoredSource) domain.Observation
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, src domain.MonitoredSource) domain.Observation

func (f FetcherFunc) Fetch(ctx context.Context, src domain.MonitoredSource) domain.Observation {
	return f(ctx, src)
}

// Registry picks the fetcher for a source by kind and fetch type.
type Registry struct {
	Feed   Fetcher
	Search Fetcher
	Scalar Fetcher
}

func NewRegistry(c *Client) *Registry {
	return &Registry{
		Feed:   &HTMLFeed{Client: c},
		Search: &SearchAPI{Client: c},
		Scalar: &ScalarBoard{Client: c},
	}
}

func (r *Registry) Fetch(ctx context.Context, src domain.MonitoredSource) (obs domain.Observation) {
	defer func() {
		if p := recover(); p != nil {
			obs = domain.Fail(domain.FailureParse, nil, "fetcher panic: %v", p)
		}
	}()

	f, err := r.pick(src)
	if err != nil {
		return domain.Fail(domain.FailureParse, err, "source %s", src.ID)
	}
	return f.Fetch(ctx, src)
}

func (r *Registry) pick(src domain.MonitoredSource) (Fetcher, error) {
	var f Fetcher
	switch src.Kind {
	case domain.KindItemFeed:
		f = r.Feed
		if src.Fetch.Type == domain.FetchSearchAPI {
			f = r.Search
		}
	case domain.KindScalarRate:
		f = r.Scalar
	}
	if f == nil {
		return nil, fmt.Errorf("no fetcher for kind %q type %q", src.Kind, src.Fetch.Type)
	}
	return f, nil
}
