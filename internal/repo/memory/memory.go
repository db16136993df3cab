package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/hamed0406/sourcewatch/internal/domain"
	"github.com/hamed0406/sourcewatch/internal/repo"
)

var _ repo.StateStore = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	states map[string]domain.SourceState
}

func New() *Store {
	return &Store{states: make(map[string]domain.SourceState)}
}

func (m *Store) Get(ctx context.Context, sourceID string) (*domain.SourceState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[sourceID]
	if !ok {
		return nil, nil
	}
	cp := clone(st)
	return &cp, nil
}

func (m *Store) Put(ctx context.Context, sourceID string, st domain.SourceState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[sourceID] = clone(st)
	return nil
}

func (m *Store) Close() error { return nil }

// clone keeps callers from aliasing slices and maps held by the store.
func clone(st domain.SourceState) domain.SourceState {
	out := st
	out.SeenPostIDs = slices.Clone(st.SeenPostIDs)
	if st.LastCheckTime != nil {
		t := *st.LastCheckTime
		out.LastCheckTime = &t
	}
	if st.LastValues != nil {
		out.LastValues = make(map[string]string, len(st.LastValues))
		for k, v := range st.LastValues {
			out.LastValues[k] = v
		}
	}
	return out
}
