// Package planner is the mutation service: the one place that changes
// tasks. Every operation validates against a snapshot, applies its writes
// through a single conditional commit, and appends to the task's audit log
// inside that same commit, so either everything lands or nothing does.
//
// The service never retries a version conflict; it surfaces
// ConcurrentModificationError and leaves the retry policy to the caller.
package planner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/wadevries/sps/internal/contexts"
	"github.com/wadevries/sps/internal/metrics"
	"github.com/wadevries/sps/internal/store"
	"github.com/wadevries/sps/internal/task"
)

// defaultStatuses is used when no status source is configured.
var defaultStatuses = func() *task.StatusSet {
	ss, err := task.NewStatusSet([]string{"todo", "in-progress", "done"}, "todo")
	if err != nil {
		panic(err)
	}
	return ss
}()

// Service exposes the operation surface over one store.
type Service struct {
	store    store.Store
	contexts *contexts.Directory
	statuses func() *task.StatusSet
	logger   *log.Logger
	events   chan<- Event
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a logger. When nil the service operates silently.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithStatusSource supplies the live status set. The function is called on
// every status validation, so a config watcher can swap the set at runtime.
func WithStatusSource(src func() *task.StatusSet) Option {
	return func(s *Service) { s.statuses = src }
}

// WithEventChannel sets the channel on which the service broadcasts
// mutation events. Sends are non-blocking.
func WithEventChannel(ch chan<- Event) Option {
	return func(s *Service) { s.events = ch }
}

// WithMetrics attaches Prometheus instruments.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source. Useful in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the mutation service over a store and a context
// directory.
func NewService(st store.Store, dir *contexts.Directory, opts ...Option) *Service {
	s := &Service{
		store:    st,
		contexts: dir,
		statuses: func() *task.StatusSet { return defaultStatuses },
		// Microsecond resolution survives every backend round trip, so
		// checksums stay stable.
		now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Contexts exposes the context directory for administrative callers.
func (s *Service) Contexts() *contexts.Directory {
	return s.contexts
}

// ---- working set -----------------------------------------------------------

// working is the snapshot one operation reads and mutates. Records are
// fetched once and then shared: graph walks, recomputation, and the
// operation itself all see the same copies, so earlier edits shadow the
// store. Dirty records are staged in ascending id order, giving concurrent
// transactions one global write order.
type working struct {
	store store.Store
	cache map[string]*task.Task
	dirty map[string]bool
}

func (s *Service) newWorking() *working {
	return &working{
		store: s.store,
		cache: map[string]*task.Task{},
		dirty: map[string]bool{},
	}
}

// Task resolves a record, read-through. Satisfies the graph and aggregate
// resolver interfaces.
func (w *working) Task(ctx context.Context, id string) (*task.Task, error) {
	if tk, ok := w.cache[id]; ok {
		return tk, nil
	}
	tk, err := w.store.GetTask(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Kind: "task", ID: id}
	}
	if err != nil {
		return nil, err
	}
	w.cache[id] = tk
	return tk, nil
}

// markDirty flags records for staging.
func (w *working) markDirty(tks ...*task.Task) {
	for _, tk := range tks {
		w.cache[tk.ID] = tk
		w.dirty[tk.ID] = true
	}
}

// stage adds every dirty record to the transaction, stamping updatedAt, in
// ascending id order.
func (w *working) stage(txn *store.Txn, at time.Time) {
	ids := make([]string, 0, len(w.dirty))
	for id := range w.dirty {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		tk := w.cache[id]
		tk.UpdatedAt = at
		txn.PutTask(tk)
	}
}

// ---- shared helpers ----------------------------------------------------------

// commit applies the transaction, translating a version conflict into the
// typed error callers retry on.
func (s *Service) commit(ctx context.Context, txn *store.Txn) error {
	err := s.store.Commit(ctx, txn)
	if errors.Is(err, store.ErrVersionConflict) {
		s.metrics.Conflict()
		return &ConcurrentModificationError{Err: err}
	}
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// lastLog fetches the tail of a task's audit chain for sequence assignment.
func (s *Service) lastLog(ctx context.Context, taskID string) (*task.LogEntry, error) {
	prev, err := s.store.LastLog(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("reading log tail of %s: %w", taskID, err)
	}
	return prev, nil
}

// finish records metrics and logs one mutation outcome.
func (s *Service) finish(op string, err error) error {
	switch {
	case err == nil:
		s.metrics.Mutation(op, metrics.OutcomeOK)
	case errors.As(err, new(*ConcurrentModificationError)):
		s.metrics.Mutation(op, metrics.OutcomeConflict)
	case isRejection(err):
		s.metrics.Mutation(op, metrics.OutcomeRejected)
	default:
		s.metrics.Mutation(op, metrics.OutcomeError)
		if s.logger != nil {
			s.logger.Error("mutation failed", "op", op, "err", err)
		}
	}
	return err
}

// isRejection reports whether err is one of the typed validation errors, as
// opposed to an infrastructure failure.
func isRejection(err error) bool {
	return errors.As(err, new(*NotFoundError)) ||
		errors.As(err, new(*CycleError)) ||
		errors.As(err, new(*InvalidOperationError)) ||
		errors.As(err, new(*UnmetDependencyError)) ||
		errors.As(err, new(*InvalidStatusError)) ||
		errors.As(err, new(*DependentsExistError)) ||
		errors.As(err, new(*HasChildrenError))
}
