package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadevries/sps/internal/task"
)

func newTask(id string, created time.Time) *task.Task {
	return &task.Task{
		ID:        id,
		Title:     "task " + id,
		ContextID: "ctx-default",
		Status:    "todo",
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func mustCommit(t *testing.T, s Store, txn *Txn) {
	t.Helper()
	require.NoError(t, s.Commit(context.Background(), txn))
}

// ---- versioned writes ----------------------------------------------------------

func TestMemory_PutAndGet(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	tk := newTask("a", time.Now())

	mustCommit(t, s, NewTxn().PutTask(tk))
	assert.Equal(t, uint64(1), tk.Version, "commit advances the caller's version")

	got, err := s.GetTask(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "task a", got.Title)
	assert.Equal(t, uint64(1), got.Version)
}

func TestMemory_GetTask_NotFound(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	_, err := s.GetTask(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "missing")
}

func TestMemory_CreateConflict(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	mustCommit(t, s, NewTxn().PutTask(newTask("a", time.Now())))

	dup := newTask("a", time.Now()) // Version 0 claims "must not exist"
	err := s.Commit(context.Background(), NewTxn().PutTask(dup))
	require.ErrorIs(t, err, ErrVersionConflict)
}

func TestMemory_StaleWriteConflict(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	ctx := context.Background()
	mustCommit(t, s, NewTxn().PutTask(newTask("a", time.Now())))

	first, err := s.GetTask(ctx, "a")
	require.NoError(t, err)
	second, err := s.GetTask(ctx, "a")
	require.NoError(t, err)

	first.Title = "first writer"
	mustCommit(t, s, NewTxn().PutTask(first))

	second.Title = "second writer"
	err = s.Commit(ctx, NewTxn().PutTask(second))
	require.ErrorIs(t, err, ErrVersionConflict)

	got, err := s.GetTask(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "first writer", got.Title, "loser must not clobber the winner")
	assert.Equal(t, uint64(2), got.Version)
}

func TestMemory_ConflictAbortsWholeTxn(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	ctx := context.Background()
	mustCommit(t, s, NewTxn().PutTask(newTask("a", time.Now())))

	fresh := newTask("b", time.Now())
	stale := newTask("a", time.Now()) // wrong version: store holds 1, this claims 0
	err := s.Commit(ctx, NewTxn().PutTask(fresh).PutTask(stale))
	require.ErrorIs(t, err, ErrVersionConflict)

	_, err = s.GetTask(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound, "no write from a failed txn may land")
}

func TestMemory_DeleteTask(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	ctx := context.Background()
	tk := newTask("a", time.Now())
	mustCommit(t, s, NewTxn().PutTask(tk))

	mustCommit(t, s, NewTxn().DeleteTask("a", tk.Version))

	_, err := s.GetTask(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	// A second conditional delete sees version 0 and conflicts.
	err = s.Commit(ctx, NewTxn().DeleteTask("a", tk.Version))
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestMemory_StoredCopyIsIsolated(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	ctx := context.Background()
	tk := newTask("a", time.Now())
	tk.AppendChild("b")
	mustCommit(t, s, NewTxn().PutTask(tk))

	// Mutating the committed struct afterwards must not leak into the store.
	tk.Title = "mutated"
	tk.AppendChild("c")

	got, err := s.GetTask(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "task a", got.Title)
	assert.Equal(t, []string{"b"}, got.ChildIDs)

	// Nor may mutating a read result.
	got.Title = "drive-by"
	again, err := s.GetTask(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "task a", again.Title)
}

// ---- reads and listings --------------------------------------------------------

func TestMemory_GetTasks(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	ctx := context.Background()
	mustCommit(t, s, NewTxn().
		PutTask(newTask("a", time.Now())).
		PutTask(newTask("b", time.Now())))

	got, err := s.GetTasks(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "task a", got["a"].Title)

	_, err = s.GetTasks(ctx, []string{"a", "missing"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_Listings(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	root := newTask("root", base)
	child := newTask("child", base.Add(time.Minute))
	child.ParentID = "root"
	child.ContextID = "ctx-other"
	dep := newTask("dep", base.Add(2 * time.Minute))
	dep.AddDependency("root")
	mustCommit(t, s, NewTxn().PutTask(root).PutTask(child).PutTask(dep))

	all, err := s.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"root", "child", "dep"},
		[]string{all[0].ID, all[1].ID, all[2].ID}, "creation order")

	roots, err := s.ListRoots(ctx)
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, "root", roots[0].ID)
	assert.Equal(t, "dep", roots[1].ID)

	inCtx, err := s.ListByContext(ctx, "ctx-other")
	require.NoError(t, err)
	require.Len(t, inCtx, 1)
	assert.Equal(t, "child", inCtx[0].ID)

	dependents, err := s.ListDependents(ctx, "root")
	require.NoError(t, err)
	require.Len(t, dependents, 1)
	assert.Equal(t, "dep", dependents[0].ID)

	none, err := s.ListDependents(ctx, "child")
	require.NoError(t, err)
	assert.Empty(t, none)
}

// ---- contexts ------------------------------------------------------------------

func TestMemory_Contexts(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	ctx := context.Background()
	now := time.Now()

	c := &task.Context{ID: "ctx-eng", Name: "engineering", CreatedAt: now, UpdatedAt: now}
	mustCommit(t, s, NewTxn().PutContext(c))
	assert.Equal(t, uint64(1), c.Version)

	got, err := s.GetContext(ctx, "ctx-eng")
	require.NoError(t, err)
	assert.Equal(t, "engineering", got.Name)

	_, err = s.GetContext(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := s.ListContexts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	// Stale context writes conflict like task writes do.
	stale := got.Clone()
	stale.Version = 99
	err = s.Commit(ctx, NewTxn().PutContext(stale))
	assert.ErrorIs(t, err, ErrVersionConflict)
}

// ---- audit log -----------------------------------------------------------------

func TestMemory_Log(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	ctx := context.Background()
	now := time.Now()

	tk := newTask("a", now)
	e1 := &task.LogEntry{ID: "e1", TaskID: "a", Seq: 1, Author: "alice", Timestamp: now, Kind: task.KindChange}
	e2 := &task.LogEntry{ID: "e2", TaskID: "a", Seq: 2, Author: "bob", Timestamp: now, Kind: task.KindComment, Text: "hi"}
	mustCommit(t, s, NewTxn().PutTask(tk).AppendLog(e1).AppendLog(e2))

	entries, err := s.ListLog(ctx, "a")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(1), entries[0].Seq)
	assert.Equal(t, uint64(2), entries[1].Seq)

	last, err := s.LastLog(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "e2", last.ID)

	// Unknown tasks have an empty log, not an error.
	empty, err := s.ListLog(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, empty)
	last, err = s.LastLog(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestMemory_LogSurvivesTaskDeletion(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	ctx := context.Background()
	now := time.Now()

	tk := newTask("a", now)
	e := &task.LogEntry{ID: "e1", TaskID: "a", Seq: 1, Author: "alice", Timestamp: now, Kind: task.KindChange}
	mustCommit(t, s, NewTxn().PutTask(tk).AppendLog(e))
	mustCommit(t, s, NewTxn().DeleteTask("a", tk.Version))

	entries, err := s.ListLog(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "audit history outlives the task record")
}
