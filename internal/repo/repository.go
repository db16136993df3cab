package repo

import (
	"context"

	"github.com/hamed0406/sourcewatch/internal/domain"
)

// StateStore persists one SourceState record per source id.
type StateStore interface {
	// Get returns nil, nil if there's no record yet.
	Get(ctx context.Context, sourceID string) (*domain.SourceState, error)
	// Put replaces the record for sourceID.
	Put(ctx context.Context, sourceID string, st domain.SourceState) error
	Close() error
}
