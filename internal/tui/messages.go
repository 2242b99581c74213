package tui

import (
	"time"

	"github.com/wadevries/sps/internal/planner"
	"github.com/wadevries/sps/internal/task"
)

// Everything the dashboard learns about the engine arrives as one of the
// messages below; the panel models never call the planner service directly.
// Commands that produce these messages live in bridge.go.

// EngineEventMsg wraps one mutation event published by the planner service.
// Receiving it re-arms the event pump and schedules a snapshot reload, so the
// dashboard tracks changes made by concurrent CLI or API clients.
type EngineEventMsg struct {
	// Event is the planner notification: kind, task id, actor, time.
	Event planner.Event
}

// SnapshotMsg carries a full reload of the task forest.
type SnapshotMsg struct {
	// Tasks is every live task in the store, unordered.
	Tasks []*task.Task
	// ContextPaths maps context id to its slash-joined name path, so the
	// detail panel can label tasks with "work/backend" instead of a UUID.
	ContextPaths map[string]string
	// At records when the snapshot was taken, for the status bar.
	At time.Time
	// Err is non-nil when the reload failed; Tasks is then nil.
	Err error
}

// TaskLogMsg carries the audit log of a single task. It is requested when
// the tree selection changes and again whenever the selected task mutates.
type TaskLogMsg struct {
	// TaskID identifies the task the entries belong to. Stale responses for
	// a task that is no longer selected are dropped.
	TaskID string
	// Entries is the append-only log, oldest first.
	Entries []*task.LogEntry
	// Err is non-nil when loading failed.
	Err error
}

// MutationDoneMsg reports the outcome of a mutation issued from the
// dashboard, such as toggling a task's completion.
type MutationDoneMsg struct {
	// TaskID is the task the mutation targeted.
	TaskID string
	// Err is non-nil when the engine rejected the mutation, for example a
	// completion blocked by open dependencies.
	Err error
}

// ErrorMsg surfaces a recoverable failure in the event feed without
// interrupting the UI. Fatal errors should quit via tea.Quit instead.
type ErrorMsg struct {
	// Source identifies the component that generated the error (e.g.
	// "snapshot", "mutation").
	Source string
	// Detail is the human-readable error description.
	Detail string
	// Timestamp records when the error was observed.
	Timestamp time.Time
}

// FocusChangedMsg signals that keyboard focus moved to a different panel.
// The app dispatches it whenever the user cycles between the task tree, the
// detail panel, and the event feed.
type FocusChangedMsg struct {
	Panel FocusPanel
}
