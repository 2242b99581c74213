package planner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wadevries/sps/internal/contexts"
	"github.com/wadevries/sps/internal/store"
	"github.com/wadevries/sps/internal/task"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// testClock returns a deterministic time source that advances one second per
// call, starting at a fixed instant.
func testClock() func() time.Time {
	var mu sync.Mutex
	cur := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Second)
		return cur
	}
}

// newTestService wires a Service over a fresh in-memory store with a
// deterministic clock. The returned store allows direct inspection and, in
// the verify tests, deliberate corruption.
func newTestService(t *testing.T, opts ...Option) (*Service, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	clock := testClock()
	dir := contexts.NewDirectory(st, contexts.WithClock(clock))
	svc := NewService(st, dir, append([]Option{WithClock(clock)}, opts...)...)
	return svc, st
}

// mustContext creates a root context or fails the test.
func mustContext(t *testing.T, svc *Service, name string) *task.Context {
	t.Helper()
	c, err := svc.CreateContext(context.Background(), name, "")
	require.NoError(t, err)
	return c
}

// mustCreate creates a task or fails the test.
func mustCreate(t *testing.T, svc *Service, req CreateTaskRequest) *task.Task {
	t.Helper()
	tk, err := svc.CreateTask(context.Background(), req)
	require.NoError(t, err)
	return tk
}

// reload fetches the current stored state of a task.
func reload(t *testing.T, svc *Service, id string) *task.Task {
	t.Helper()
	tk, err := svc.Task(context.Background(), id)
	require.NoError(t, err)
	return tk
}

// dumpTasks snapshots every stored task. Used to prove rejected mutations
// leave the store untouched.
func dumpTasks(t *testing.T, st *store.Memory) []*task.Task {
	t.Helper()
	tasks, err := st.ListTasks(context.Background())
	require.NoError(t, err)
	return tasks
}

// treeFixture builds the standard two-level tree used across tests:
//
//	root
//	├── a  (assignee alice)
//	└── b  (assignee bob, complete)
type treeFixture struct {
	ctx  *task.Context
	root *task.Task
	a    *task.Task
	b    *task.Task
}

func newTreeFixture(t *testing.T, svc *Service) treeFixture {
	t.Helper()
	c := mustContext(t, svc, "work")
	root := mustCreate(t, svc, CreateTaskRequest{Title: "root", ContextID: c.ID, Actor: "test"})
	a := mustCreate(t, svc, CreateTaskRequest{
		Title: "a", ParentID: root.ID, ContextID: c.ID, Assignee: "alice", Actor: "test",
	})
	b := mustCreate(t, svc, CreateTaskRequest{
		Title: "b", ParentID: root.ID, ContextID: c.ID, Assignee: "bob", Actor: "test",
	})
	_, err := svc.SetComplete(context.Background(), b.ID, true, "test")
	require.NoError(t, err)
	return treeFixture{ctx: c, root: root, a: a, b: b}
}
