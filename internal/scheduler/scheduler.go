package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Task is one source's fetch → detect → notify → persist cycle.
// A returned error marks the tick as failed and lengthens the next delay;
// it never stops the loop.
type Task interface {
	ID() string
	Tick(ctx context.Context) error
}

var (
	ErrUnknownTask = errors.New("unknown task")
	ErrNotRunning  = errors.New("task is not running")
	ErrStopped     = errors.New("scheduler stopped")
)

// maxBackoffShift caps the failure backoff at 8x the interval.
const maxBackoffShift = 3

// Snapshot is a point-in-time view of one task.
type Snapshot struct {
	ID          string        `json:"id"`
	Running     bool          `json:"running"`
	Interval    time.Duration `json:"interval"`
	Ticks       int           `json:"ticks"`
	Failures    int           `json:"consecutive_failures"`
	LastTickAt  *time.Time    `json:"last_tick_at,omitempty"`
	LastTickID  string        `json:"last_tick_id,omitempty"`
	LastError   string        `json:"last_error,omitempty"`
	NextRunAt   *time.Time    `json:"next_run_at,omitempty"`
	LastElapsed time.Duration `json:"last_elapsed"`
}

type entry struct {
	task     Task
	interval time.Duration
	schedule cron.Schedule

	cancel   context.CancelFunc
	done     chan struct{}
	trigger  chan struct{}
	stopping bool // cancel called, loop not yet returned

	snap Snapshot
}

// Scheduler runs one goroutine per task. Within a task ticks never overlap:
// the next timer is armed only after the current tick returns.
type Scheduler struct {
	logger *zap.Logger

	mu       sync.Mutex
	entries  map[string]*entry
	base     context.Context
	stopped  bool
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{logger: logger, entries: make(map[string]*entry)}
}

// Add registers a task. A non-nil schedule takes precedence over interval.
// Tasks added after Start begin running immediately.
func (s *Scheduler) Add(t Task, interval time.Duration, schedule cron.Schedule) error {
	if interval <= 0 && schedule == nil {
		return fmt.Errorf("task %s: interval must be positive", t.ID())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if _, dup := s.entries[t.ID()]; dup {
		return fmt.Errorf("task %s already registered", t.ID())
	}
	e := &entry{
		task:     t,
		interval: interval,
		schedule: schedule,
		snap:     Snapshot{ID: t.ID(), Interval: interval},
	}
	s.entries[t.ID()] = e
	if s.base != nil {
		s.startLocked(e)
	}
	return nil
}

// Start launches every registered task. Each fires once immediately.
// Cancelling ctx has the same effect as Stop without the wait.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.base != nil {
		return
	}
	s.base = ctx
	for _, e := range s.entries {
		s.startLocked(e)
	}
	s.logger.Info("scheduler_started", zap.Int("tasks", len(s.entries)))
}

// StartTask restarts a task previously stopped with StopTask. If a stop is
// still waiting on an in-flight tick, StartTask waits for it first so two
// loops never run for one task.
func (s *Scheduler) StartTask(id string) error {
	for {
		s.mu.Lock()
		e, ok := s.entries[id]
		if !ok {
			s.mu.Unlock()
			return ErrUnknownTask
		}
		if s.stopped || s.base == nil {
			s.mu.Unlock()
			return ErrStopped
		}
		if e.stopping {
			done := e.done
			s.mu.Unlock()
			<-done
			s.mu.Lock()
			s.stoppedLocked(e, done)
			s.mu.Unlock()
			continue
		}
		if e.cancel == nil {
			s.startLocked(e)
		}
		s.mu.Unlock()
		return nil
	}
}

// StopTask cancels one task's timer and waits for an in-flight tick.
func (s *Scheduler) StopTask(id string) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownTask
	}
	cancel, done := e.cancel, e.done
	if cancel == nil {
		s.mu.Unlock()
		return nil
	}
	e.stopping = true
	e.snap.Running = false
	e.snap.NextRunAt = nil
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	s.stoppedLocked(e, done)
	s.mu.Unlock()
	return nil
}

// stoppedLocked marks e idle once the loop that owned done has returned.
// A loop started since then is left alone.
func (s *Scheduler) stoppedLocked(e *entry, done chan struct{}) {
	if e.done == done {
		e.cancel = nil
		e.stopping = false
	}
}

// Trigger asks a running task to tick now. A request made while a tick is
// in flight is coalesced into one follow-up tick.
func (s *Scheduler) Trigger(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return ErrUnknownTask
	}
	if e.cancel == nil || e.stopping {
		return ErrNotRunning
	}
	select {
	case e.trigger <- struct{}{}:
	default:
	}
	return nil
}

// Stop cancels every task and waits for in-flight ticks to return.
// No tick starts after Stop is called.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		for _, e := range s.entries {
			if e.cancel != nil {
				e.cancel()
				e.cancel = nil
			}
			e.snap.Running = false
			e.snap.NextRunAt = nil
		}
		s.mu.Unlock()

		s.wg.Wait()
		s.logger.Info("scheduler_stopped")
	})
}

// Snapshots returns every task's state ordered by id.
func (s *Scheduler) Snapshots() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Snapshot, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Scheduler) Snapshot(id string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return Snapshot{}, false
	}
	return e.snap, true
}

func (s *Scheduler) startLocked(e *entry) {
	ctx, cancel := context.WithCancel(s.base)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.trigger = make(chan struct{}, 1)
	e.snap.Running = true

	s.wg.Add(1)
	go s.loop(ctx, e, e.done, e.trigger)
}

func (s *Scheduler) loop(ctx context.Context, e *entry, done chan struct{}, trigger chan struct{}) {
	defer s.wg.Done()
	defer close(done)
	id := e.task.ID()
	s.logger.Info("task_started", zap.String("source_id", id), zap.Duration("interval", e.interval))

	for {
		if ctx.Err() != nil {
			s.logger.Info("task_stopped", zap.String("source_id", id))
			return
		}
		failures := s.runTick(ctx, e)

		delay := e.delay(time.Now(), failures)
		next := time.Now().Add(delay)
		s.mu.Lock()
		if e.snap.Running {
			e.snap.NextRunAt = &next
		}
		s.mu.Unlock()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("task_stopped", zap.String("source_id", id))
			return
		case <-trigger:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// runTick executes one tick, recovering panics, and returns the number of
// consecutive failures so far.
func (s *Scheduler) runTick(ctx context.Context, e *entry) int {
	tickID := newTickID()
	start := time.Now()

	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("tick panic: %v", p)
			}
		}()
		return e.task.Tick(WithTickID(ctx, tickID))
	}()

	elapsed := time.Since(start)
	s.mu.Lock()
	defer s.mu.Unlock()
	e.snap.Ticks++
	e.snap.LastTickAt = &start
	e.snap.LastTickID = tickID
	e.snap.LastElapsed = elapsed
	if err != nil && !errors.Is(err, context.Canceled) {
		e.snap.Failures++
		e.snap.LastError = err.Error()
		s.logger.Warn("tick_failed",
			zap.String("source_id", e.task.ID()),
			zap.String("tick_id", tickID),
			zap.Int("consecutive_failures", e.snap.Failures),
			zap.Error(err),
		)
	} else if err == nil {
		e.snap.Failures = 0
		e.snap.LastError = ""
	}
	return e.snap.Failures
}

func (e *entry) delay(now time.Time, failures int) time.Duration {
	if e.schedule != nil {
		if d := e.schedule.Next(now).Sub(now); d > 0 {
			return d
		}
		return time.Second
	}
	shift := min(failures, maxBackoffShift)
	return e.interval << shift
}

type tickKey struct{}

// WithTickID tags ctx with the id used to correlate one tick's log lines.
func WithTickID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, tickKey{}, id)
}

// TickID returns the tick id carried by ctx, or "".
func TickID(ctx context.Context) string {
	id, _ := ctx.Value(tickKey{}).(string)
	return id
}

func newTickID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
