package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/wadevries/sps/internal/task"
)

// Memory is an in-process Store backed by maps. It is safe for concurrent
// use and is the default backend for tests and throwaway projects.
type Memory struct {
	mu       sync.RWMutex
	tasks    map[string]*task.Task
	contexts map[string]*task.Context
	logs     map[string][]*task.LogEntry
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		tasks:    make(map[string]*task.Task),
		contexts: make(map[string]*task.Context),
		logs:     make(map[string][]*task.LogEntry),
	}
}

func (m *Memory) GetTask(_ context.Context, id string) (*task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tk, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return tk.Clone(), nil
}

func (m *Memory) GetTasks(_ context.Context, ids []string) (map[string]*task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]*task.Task, len(ids))
	for _, id := range ids {
		tk, ok := m.tasks[id]
		if !ok {
			return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		out[id] = tk.Clone()
	}
	return out, nil
}

func (m *Memory) ListTasks(_ context.Context) ([]*task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.collectTasks(func(*task.Task) bool { return true }), nil
}

func (m *Memory) ListByContext(_ context.Context, contextID string) ([]*task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.collectTasks(func(tk *task.Task) bool { return tk.ContextID == contextID }), nil
}

func (m *Memory) ListDependents(_ context.Context, id string) ([]*task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.collectTasks(func(tk *task.Task) bool { return tk.DependsOn(id) }), nil
}

func (m *Memory) ListRoots(_ context.Context) ([]*task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.collectTasks(func(tk *task.Task) bool { return tk.ParentID == "" }), nil
}

// collectTasks gathers clones of every task passing the filter, ordered by
// creation time then id. Callers must hold at least the read lock.
func (m *Memory) collectTasks(keep func(*task.Task) bool) []*task.Task {
	out := make([]*task.Task, 0, len(m.tasks))
	for _, tk := range m.tasks {
		if keep(tk) {
			out = append(out, tk.Clone())
		}
	}
	SortTasks(out)
	return out
}

func (m *Memory) GetContext(_ context.Context, id string) (*task.Context, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.contexts[id]
	if !ok {
		return nil, fmt.Errorf("context %s: %w", id, ErrNotFound)
	}
	return c.Clone(), nil
}

func (m *Memory) ListContexts(_ context.Context) ([]*task.Context, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*task.Context, 0, len(m.contexts))
	for _, c := range m.contexts {
		out = append(out, c.Clone())
	}
	SortContexts(out)
	return out, nil
}

func (m *Memory) ListLog(_ context.Context, taskID string) ([]*task.LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.logs[taskID]
	out := make([]*task.LogEntry, len(entries))
	for i, e := range entries {
		cp := *e
		out[i] = &cp
	}
	return out, nil
}

func (m *Memory) LastLog(_ context.Context, taskID string) (*task.LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.logs[taskID]
	if len(entries) == 0 {
		return nil, nil
	}
	cp := *entries[len(entries)-1]
	return &cp, nil
}

func (m *Memory) LogTaskIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.logs))
	for id, entries := range m.logs {
		if len(entries) > 0 {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (m *Memory) Commit(_ context.Context, txn *Txn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate every precondition before touching anything, so a conflict
	// midway through cannot leave a partial write behind.
	for _, o := range txn.Ops() {
		switch o.Kind {
		case OpPutTask:
			if err := checkVersion("task", o.ID, o.Expected, taskVersion(m.tasks, o.ID)); err != nil {
				return err
			}
		case OpDeleteTask:
			if err := checkVersion("task", o.ID, o.Expected, taskVersion(m.tasks, o.ID)); err != nil {
				return err
			}
		case OpPutContext:
			if err := checkVersion("context", o.ID, o.Expected, contextVersion(m.contexts, o.ID)); err != nil {
				return err
			}
		case OpAppendLog:
			// Appends carry no precondition of their own; they ride on the
			// version checks of the records mutated alongside them.
		}
	}

	for _, o := range txn.Ops() {
		switch o.Kind {
		case OpPutTask:
			o.Task.Version = o.Expected + 1
			m.tasks[o.ID] = o.Task.Clone()
		case OpDeleteTask:
			delete(m.tasks, o.ID)
		case OpPutContext:
			o.Context.Version = o.Expected + 1
			m.contexts[o.ID] = o.Context.Clone()
		case OpAppendLog:
			cp := *o.Entry
			m.logs[o.ID] = append(m.logs[o.ID], &cp)
		}
	}
	return nil
}

func (m *Memory) Close() error {
	return nil
}

func taskVersion(tasks map[string]*task.Task, id string) uint64 {
	if tk, ok := tasks[id]; ok {
		return tk.Version
	}
	return 0
}

func contextVersion(contexts map[string]*task.Context, id string) uint64 {
	if c, ok := contexts[id]; ok {
		return c.Version
	}
	return 0
}

// checkVersion compares the version a transaction expects against the version
// currently stored. Zero means "absent", for both sides.
func checkVersion(kind, id string, expected, current uint64) error {
	if expected != current {
		return fmt.Errorf("%s %s: expected version %d, found %d: %w",
			kind, id, expected, current, ErrVersionConflict)
	}
	return nil
}

// SortTasks orders tasks by creation time, breaking ties by id.
func SortTasks(tasks []*task.Task) {
	slices.SortFunc(tasks, func(a, b *task.Task) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// SortContexts orders contexts by creation time, breaking ties by id.
func SortContexts(contexts []*task.Context) {
	slices.SortFunc(contexts, func(a, b *task.Context) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
