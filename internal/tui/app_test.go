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

// newTestApp builds an App over a real in-memory planner service.
func newTestApp(t *testing.T) (App, *planner.Service, *task.Context) {
	t.Helper()

	st := store.NewMemory()
	dir := contexts.NewDirectory(st)
	events := make(chan planner.Event, 16)
	svc := planner.NewService(st, dir, planner.WithEventChannel(events))

	root, err := svc.CreateContext(context.Background(), "inbox", "")
	require.NoError(t, err)

	app := NewApp(Config{
		Version:     "1.0.0-test",
		ProjectName: "testproj",
		Ctx:         context.Background(),
		Service:     svc,
		Events:      events,
		Actor:       "tester",
	})
	return app, svc, root
}

// resized returns the app after the initial WindowSizeMsg.
func resized(t *testing.T, a App) App {
	t.Helper()
	model, _ := a.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return model.(App)
}

// withSnapshot pushes a fresh store snapshot through the app, the way the
// LoadSnapshot command would.
func withSnapshot(t *testing.T, a App, svc *planner.Service) App {
	t.Helper()

	snap := Engine{Service: svc}.LoadSnapshot(context.Background())()
	model, _ := a.Update(snap)
	return model.(App)
}

// mustTask creates an atomic task in the given context.
func mustTask(t *testing.T, svc *planner.Service, ctxID, title string) *task.Task {
	t.Helper()
	tk, err := svc.CreateTask(context.Background(), planner.CreateTaskRequest{
		Title:     title,
		ContextID: ctxID,
		Actor:     "tester",
	})
	require.NoError(t, err)
	return tk
}

// ---------------------------------------------------------------------------
// Construction / Init
// ---------------------------------------------------------------------------

func TestNewApp_Defaults(t *testing.T) {
	t.Parallel()

	app, _, _ := newTestApp(t)

	assert.Equal(t, FocusTree, app.focus, "focus must start on the task tree")
	assert.False(t, app.ready)
	assert.False(t, app.quitting)
}

func TestInit_LoadsSnapshotAndArmsPump(t *testing.T) {
	t.Parallel()

	app, _, _ := newTestApp(t)
	assert.NotNil(t, app.Init(), "Init must schedule the initial snapshot load")
}

// ---------------------------------------------------------------------------
// View states
// ---------------------------------------------------------------------------

func TestView_BeforeFirstResize(t *testing.T) {
	t.Parallel()

	app, _, _ := newTestApp(t)
	assert.Contains(t, app.View(), "Loading", "pre-resize view must show the loading message")
}

func TestView_TooSmall(t *testing.T) {
	t.Parallel()

	app, _, _ := newTestApp(t)
	model, _ := app.Update(tea.WindowSizeMsg{Width: 40, Height: 10})
	app = model.(App)

	assert.Contains(t, app.View(), "Terminal too small")
}

func TestView_FullDashboard(t *testing.T) {
	t.Parallel()

	app, svc, root := newTestApp(t)
	mustTask(t, svc, root.ID, "Render me")

	app = resized(t, app)
	app = withSnapshot(t, app, svc)

	out := app.View()
	assert.Contains(t, out, "sps")
	assert.Contains(t, out, "1.0.0-test")
	assert.Contains(t, out, "TASKS")
	assert.Contains(t, out, "Render me")
	assert.Contains(t, out, "DETAIL")
	assert.Contains(t, out, "EVENTS")
	assert.Contains(t, out, "[testproj]")
}

func TestView_AfterQuit(t *testing.T) {
	t.Parallel()

	app, _, _ := newTestApp(t)
	app = resized(t, app)

	model, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	app = model.(App)

	assert.NotNil(t, cmd, "quit must produce the tea.Quit command")
	assert.Empty(t, app.View(), "the final frame must be empty so the terminal restores cleanly")
}

// ---------------------------------------------------------------------------
// Snapshot handling
// ---------------------------------------------------------------------------

func TestSnapshot_PopulatesTreeAndDetail(t *testing.T) {
	t.Parallel()

	app, svc, root := newTestApp(t)
	tk := mustTask(t, svc, root.ID, "Selected by default")

	app = resized(t, app)
	app = withSnapshot(t, app, svc)

	require.NotNil(t, app.tree.Selected())
	assert.Equal(t, tk.ID, app.tree.Selected().ID)
	assert.Equal(t, tk.ID, app.detail.TaskID(), "the detail panel must follow the initial selection")
}

func TestSnapshot_ErrorGoesToEventFeed(t *testing.T) {
	t.Parallel()

	app, _, _ := newTestApp(t)
	app = resized(t, app)

	model, _ := app.Update(SnapshotMsg{At: time.Now(), Err: assert.AnError})
	app = model.(App)

	entries := app.eventLog.Entries()
	require.NotEmpty(t, entries)
	assert.Equal(t, EventError, entries[len(entries)-1].Category)
}

func TestSnapshot_RelationsFromIndex(t *testing.T) {
	t.Parallel()

	app, svc, root := newTestApp(t)
	parent := mustTask(t, svc, root.ID, "Parent")
	child := mustTask(t, svc, root.ID, "Child")
	dep := mustTask(t, svc, root.ID, "Dependency")

	_, err := svc.AttachSubtask(context.Background(), parent.ID, child.ID, "tester")
	require.NoError(t, err)
	_, err = svc.AddDependency(context.Background(), child.ID, dep.ID, "tester")
	require.NoError(t, err)

	app = resized(t, app)
	app = withSnapshot(t, app, svc)

	childNow, err := svc.Task(context.Background(), child.ID)
	require.NoError(t, err)

	rel := app.relations(childNow)
	require.NotNil(t, rel.Parent)
	assert.Equal(t, parent.ID, rel.Parent.ID)
	require.Len(t, rel.Dependencies, 1)
	assert.Equal(t, dep.ID, rel.Dependencies[0].ID)

	depNow, err := svc.Task(context.Background(), dep.ID)
	require.NoError(t, err)
	rel = app.relations(depNow)
	require.Len(t, rel.Dependents, 1)
	assert.Equal(t, child.ID, rel.Dependents[0].ID, "reverse dependency edges come from the index scan")
}

// ---------------------------------------------------------------------------
// Key handling
// ---------------------------------------------------------------------------

func TestKeys_FocusCycling(t *testing.T) {
	t.Parallel()

	app, svc, _ := newTestApp(t)
	app = resized(t, app)
	app = withSnapshot(t, app, svc)

	model, _ := app.Update(tea.KeyMsg{Type: tea.KeyTab})
	app = model.(App)
	assert.Equal(t, FocusDetail, app.focus)

	model, _ = app.Update(tea.KeyMsg{Type: tea.KeyTab})
	app = model.(App)
	assert.Equal(t, FocusEventLog, app.focus)

	model, _ = app.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	app = model.(App)
	assert.Equal(t, FocusDetail, app.focus)
}

func TestKeys_HelpOverlayCapturesInput(t *testing.T) {
	t.Parallel()

	app, svc, root := newTestApp(t)
	mustTask(t, svc, root.ID, "One")
	mustTask(t, svc, root.ID, "Two")

	app = resized(t, app)
	app = withSnapshot(t, app, svc)
	selectedBefore := app.tree.Selected().ID

	model, _ := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	app = model.(App)
	require.True(t, app.help.IsVisible())
	assert.Contains(t, app.View(), "Keyboard Shortcuts")

	// Navigation keys go to the overlay, not the tree.
	model, _ = app.Update(tea.KeyMsg{Type: tea.KeyDown})
	app = model.(App)
	assert.Equal(t, selectedBefore, app.tree.Selected().ID)

	model, _ = app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	app = model.(App)
	assert.False(t, app.help.IsVisible())
}

func TestKeys_SelectionChangeLoadsLog(t *testing.T) {
	t.Parallel()

	app, svc, root := newTestApp(t)
	mustTask(t, svc, root.ID, "First")
	second := mustTask(t, svc, root.ID, "Second")

	app = resized(t, app)
	app = withSnapshot(t, app, svc)

	model, cmd := app.Update(tea.KeyMsg{Type: tea.KeyDown})
	app = model.(App)

	assert.Equal(t, second.ID, app.tree.Selected().ID)
	assert.Equal(t, second.ID, app.detail.TaskID(), "detail must track the cursor")
	assert.NotNil(t, cmd, "a selection change must request the task's log")
}

func TestKeys_ToggleDoneIssuesMutation(t *testing.T) {
	t.Parallel()

	app, svc, root := newTestApp(t)
	tk := mustTask(t, svc, root.ID, "Toggle target")

	app = resized(t, app)
	app = withSnapshot(t, app, svc)

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	require.NotNil(t, cmd)

	msg := cmd()
	done, ok := msg.(MutationDoneMsg)
	require.True(t, ok, "expected MutationDoneMsg, got %T", msg)
	require.NoError(t, done.Err)

	reloaded, err := svc.Task(context.Background(), tk.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Complete)
}

// ---------------------------------------------------------------------------
// Engine events
// ---------------------------------------------------------------------------

func TestEngineEvent_FeedsEventLogAndReloads(t *testing.T) {
	t.Parallel()

	app, _, _ := newTestApp(t)
	app = resized(t, app)

	model, cmd := app.Update(EngineEventMsg{Event: planner.Event{
		Kind:   planner.EventTaskCreated,
		TaskID: "11112222-3333",
		Actor:  "alice",
		Time:   time.Now(),
	}})
	app = model.(App)

	entries := app.eventLog.Entries()
	require.NotEmpty(t, entries)
	assert.Contains(t, entries[len(entries)-1].Message, "alice created task 11112222")
	assert.NotNil(t, cmd, "an engine event must re-arm the pump and schedule a reload")
}

func TestMutationDone_ErrorSurfacesInFeed(t *testing.T) {
	t.Parallel()

	app, _, _ := newTestApp(t)
	app = resized(t, app)

	model, _ := app.Update(MutationDoneMsg{TaskID: "x", Err: assert.AnError})
	app = model.(App)

	entries := app.eventLog.Entries()
	require.NotEmpty(t, entries)
	assert.Equal(t, EventError, entries[len(entries)-1].Category)
}
