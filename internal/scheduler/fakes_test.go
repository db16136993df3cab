package scheduler

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/hamed0406/sourcewatch/internal/domain"
	"github.com/hamed0406/sourcewatch/internal/notify"
	"github.com/hamed0406/sourcewatch/internal/repo"
	"github.com/hamed0406/sourcewatch/internal/repo/memory"
)

// --- fakes ---

type sent struct {
	Channel string
	Msg     notify.Message
}

type memNotifier struct {
	mu   sync.Mutex
	msgs []sent
	err  error
}

func (m *memNotifier) Send(ctx context.Context, channel string, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, sent{Channel: channel, Msg: msg})
	return nil
}

func (m *memNotifier) all() []sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sent(nil), m.msgs...)
}

func (m *memNotifier) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = nil
}

// fakeFetcher returns queued observations in order, repeating the last one.
type fakeFetcher struct {
	mu    sync.Mutex
	queue []domain.Observation
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, src domain.MonitoredSource) domain.Observation {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.queue) == 0 {
		return domain.Fail(domain.FailureNetwork, errors.New("nothing queued"), "fake")
	}
	obs := f.queue[0]
	if len(f.queue) > 1 {
		f.queue = f.queue[1:]
	}
	return obs
}

func feedOf(ids ...string) domain.FeedObservation {
	items := make([]domain.Item, 0, len(ids))
	for _, id := range ids {
		items = append(items, domain.Item{ID: id, Title: "post " + id, Link: "https://example.com/?no=" + id})
	}
	return domain.FeedObservation{Items: items}
}

type failingStore struct{ repo.StateStore }

func (failingStore) Put(context.Context, string, domain.SourceState) error {
	return errors.New("disk full")
}

func newState() (*repo.Guarded, *memory.Store) {
	st := memory.New()
	return repo.NewGuarded(st, zap.NewNop()), st
}
