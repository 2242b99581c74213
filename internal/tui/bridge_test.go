package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadevries/sps/internal/contexts"
	"github.com/wadevries/sps/internal/planner"
	"github.com/wadevries/sps/internal/store"
	"github.com/wadevries/sps/internal/task"
)

// newTestEngine wires an Engine over a real planner service with an
// in-memory store and one root context.
func newTestEngine(t *testing.T) (Engine, *planner.Service, *task.Context) {
	t.Helper()

	st := store.NewMemory()
	dir := contexts.NewDirectory(st)
	events := make(chan planner.Event, 16)
	svc := planner.NewService(st, dir, planner.WithEventChannel(events))

	root, err := svc.CreateContext(context.Background(), "inbox", "")
	require.NoError(t, err)

	engine := Engine{Service: svc, Events: events, Actor: "tester"}
	return engine, svc, root
}

// runCmd executes a tea.Cmd synchronously and returns its message.
func runCmd(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	require.NotNil(t, cmd, "expected a command")
	return cmd()
}

// ---------------------------------------------------------------------------
// NextEvent
// ---------------------------------------------------------------------------

func TestNextEvent_DeliversEngineEvent(t *testing.T) {
	t.Parallel()

	engine, svc, root := newTestEngine(t)

	_, err := svc.CreateTask(context.Background(), planner.CreateTaskRequest{
		Title:     "First task",
		ContextID: root.ID,
		Actor:     "alice",
	})
	require.NoError(t, err)

	msg := runCmd(t, engine.NextEvent(context.Background()))
	evMsg, ok := msg.(EngineEventMsg)
	require.True(t, ok, "expected EngineEventMsg, got %T", msg)
	assert.Equal(t, planner.EventTaskCreated, evMsg.Event.Kind)
	assert.Equal(t, "alice", evMsg.Event.Actor)
}

func TestNextEvent_NilChannel(t *testing.T) {
	t.Parallel()

	engine := Engine{}
	assert.Nil(t, engine.NextEvent(context.Background()), "a nil channel must disable the pump")
}

func TestNextEvent_ClosedChannel(t *testing.T) {
	t.Parallel()

	events := make(chan planner.Event)
	close(events)
	engine := Engine{Events: events}

	msg := runCmd(t, engine.NextEvent(context.Background()))
	assert.Nil(t, msg, "a closed channel must end the pump with a nil message")
}

func TestNextEvent_ContextCancelled(t *testing.T) {
	t.Parallel()

	events := make(chan planner.Event)
	engine := Engine{Events: events}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan tea.Msg, 1)
	go func() { done <- engine.NextEvent(ctx)() }()

	select {
	case msg := <-done:
		assert.Nil(t, msg)
	case <-time.After(time.Second):
		t.Fatal("NextEvent must return promptly once the context is done")
	}
}

// ---------------------------------------------------------------------------
// LoadSnapshot
// ---------------------------------------------------------------------------

func TestLoadSnapshot_ReturnsTasksAndPaths(t *testing.T) {
	t.Parallel()

	engine, svc, root := newTestEngine(t)

	sub, err := svc.CreateContext(context.Background(), "backend", root.ID)
	require.NoError(t, err)

	_, err = svc.CreateTask(context.Background(), planner.CreateTaskRequest{
		Title:     "Snapshot me",
		ContextID: sub.ID,
		Actor:     "alice",
	})
	require.NoError(t, err)

	msg := runCmd(t, engine.LoadSnapshot(context.Background()))
	snap, ok := msg.(SnapshotMsg)
	require.True(t, ok, "expected SnapshotMsg, got %T", msg)
	require.NoError(t, snap.Err)

	require.Len(t, snap.Tasks, 1)
	assert.Equal(t, "Snapshot me", snap.Tasks[0].Title)
	assert.Equal(t, "inbox/backend", snap.ContextPaths[sub.ID], "context paths must be slash-joined")
	assert.False(t, snap.At.IsZero())
}

func TestLoadSnapshot_EmptyStore(t *testing.T) {
	t.Parallel()

	engine, _, _ := newTestEngine(t)

	msg := runCmd(t, engine.LoadSnapshot(context.Background()))
	snap, ok := msg.(SnapshotMsg)
	require.True(t, ok)
	require.NoError(t, snap.Err)
	assert.Empty(t, snap.Tasks)
}

// ---------------------------------------------------------------------------
// LoadLog
// ---------------------------------------------------------------------------

func TestLoadLog_ReturnsEntries(t *testing.T) {
	t.Parallel()

	engine, svc, root := newTestEngine(t)

	tk, err := svc.CreateTask(context.Background(), planner.CreateTaskRequest{
		Title:     "Logged task",
		ContextID: root.ID,
		Actor:     "alice",
	})
	require.NoError(t, err)

	_, err = svc.AddComment(context.Background(), tk.ID, "bob", "on it")
	require.NoError(t, err)

	msg := runCmd(t, engine.LoadLog(context.Background(), tk.ID))
	logMsg, ok := msg.(TaskLogMsg)
	require.True(t, ok, "expected TaskLogMsg, got %T", msg)
	require.NoError(t, logMsg.Err)

	assert.Equal(t, tk.ID, logMsg.TaskID)
	require.NotEmpty(t, logMsg.Entries)
	last := logMsg.Entries[len(logMsg.Entries)-1]
	assert.Equal(t, task.KindComment, last.Kind)
	assert.Equal(t, "on it", last.Text)
}

// ---------------------------------------------------------------------------
// ToggleComplete
// ---------------------------------------------------------------------------

func TestToggleComplete_RoundTrip(t *testing.T) {
	t.Parallel()

	engine, svc, root := newTestEngine(t)

	tk, err := svc.CreateTask(context.Background(), planner.CreateTaskRequest{
		Title:     "Flip me",
		ContextID: root.ID,
		Actor:     "alice",
	})
	require.NoError(t, err)

	msg := runCmd(t, engine.ToggleComplete(context.Background(), tk))
	done, ok := msg.(MutationDoneMsg)
	require.True(t, ok, "expected MutationDoneMsg, got %T", msg)
	require.NoError(t, done.Err)
	assert.Equal(t, tk.ID, done.TaskID)

	reloaded, err := svc.Task(context.Background(), tk.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Complete, "the toggle must be attributed and committed")

	// Toggling again clears the flag.
	msg = runCmd(t, engine.ToggleComplete(context.Background(), reloaded))
	done = msg.(MutationDoneMsg)
	require.NoError(t, done.Err)

	reloaded, err = svc.Task(context.Background(), tk.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.Complete)
}

func TestToggleComplete_EngineRejectionSurfaces(t *testing.T) {
	t.Parallel()

	engine, svc, root := newTestEngine(t)

	// A task with an incomplete dependency cannot be completed.
	blocked, err := svc.CreateTask(context.Background(), planner.CreateTaskRequest{
		Title:     "Blocked",
		ContextID: root.ID,
		Actor:     "alice",
	})
	require.NoError(t, err)
	dep, err := svc.CreateTask(context.Background(), planner.CreateTaskRequest{
		Title:     "Prerequisite",
		ContextID: root.ID,
		Actor:     "alice",
	})
	require.NoError(t, err)
	_, err = svc.AddDependency(context.Background(), blocked.ID, dep.ID, "alice")
	require.NoError(t, err)

	blocked, err = svc.Task(context.Background(), blocked.ID)
	require.NoError(t, err)

	msg := runCmd(t, engine.ToggleComplete(context.Background(), blocked))
	done, ok := msg.(MutationDoneMsg)
	require.True(t, ok)

	var unmet *planner.UnmetDependencyError
	require.ErrorAs(t, done.Err, &unmet, "the engine rejection must come back typed")
}
