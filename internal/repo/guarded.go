package repo

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/sourcewatch/internal/domain"
)

// Guarded wraps a StateStore so that reads never fail the caller.
// A read error is logged and treated as "no prior state".
type Guarded struct {
	Store  StateStore
	Logger *zap.Logger
}

func NewGuarded(store StateStore, logger *zap.Logger) *Guarded {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guarded{Store: store, Logger: logger}
}

func (g *Guarded) Load(ctx context.Context, sourceID string) domain.SourceState {
	st, err := g.Store.Get(ctx, sourceID)
	if err != nil {
		g.Logger.Warn("state_load_error",
			zap.String("source_id", sourceID),
			zap.Error(err),
		)
		return domain.SourceState{}
	}
	if st == nil {
		return domain.SourceState{}
	}
	return *st
}

// Save logs and returns a wrapped ErrPersistence on failure. Callers are
// expected to carry on; the next tick re-detects against the older record.
func (g *Guarded) Save(ctx context.Context, sourceID string, st domain.SourceState) error {
	if err := g.Store.Put(ctx, sourceID, st); err != nil {
		g.Logger.Error("state_save_error",
			zap.String("source_id", sourceID),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	return nil
}
