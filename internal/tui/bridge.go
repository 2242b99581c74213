package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wadevries/sps/internal/planner"
	"github.com/wadevries/sps/internal/task"
)

// Engine bridges the planner service into Bubble Tea commands. The panel
// models stay pure; every store read and mutation goes through one of these
// tea.Cmd producers, and results come back as the messages in messages.go.
//
// All commands respect the provided context for cancellation, which is the
// same context the dashboard command wires into Config.Ctx.
type Engine struct {
	// Service executes queries and mutations against the store.
	Service *planner.Service
	// Events is the service's notification channel; nil disables the pump.
	Events <-chan planner.Event
	// Actor is recorded as the author of mutations issued from the dashboard.
	Actor string
}

// NextEvent returns a tea.Cmd that reads a single planner event from the
// notification channel and wraps it in an EngineEventMsg. The command sends
// nil when the channel is closed, the channel is nil, or ctx is done.
//
// Call it again inside App.Update after handling each EngineEventMsg to keep
// draining the channel:
//
//	case EngineEventMsg:
//	    // handle...
//	    return a, a.engine.NextEvent(ctx)
func (e Engine) NextEvent(ctx context.Context) tea.Cmd {
	if e.Events == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-e.Events:
			if !ok {
				return nil
			}
			return EngineEventMsg{Event: ev}
		}
	}
}

// LoadSnapshot returns a tea.Cmd that reads every live task from the store,
// resolves context paths for labeling, and reports both as a SnapshotMsg.
func (e Engine) LoadSnapshot(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		tasks, err := e.Service.AllTasks(ctx)
		if err != nil {
			return SnapshotMsg{At: time.Now(), Err: err}
		}

		paths := make(map[string]string)
		dir := e.Service.Contexts()
		if all, listErr := dir.List(ctx); listErr == nil {
			for _, c := range all {
				if p, pathErr := dir.Path(ctx, c.ID); pathErr == nil {
					paths[c.ID] = p
				}
			}
		}

		return SnapshotMsg{Tasks: tasks, ContextPaths: paths, At: time.Now()}
	}
}

// LoadLog returns a tea.Cmd that reads the audit log of taskID and reports
// it as a TaskLogMsg.
func (e Engine) LoadLog(ctx context.Context, taskID string) tea.Cmd {
	return func() tea.Msg {
		entries, err := e.Service.Log(ctx, taskID)
		return TaskLogMsg{TaskID: taskID, Entries: entries, Err: err}
	}
}

// ToggleComplete returns a tea.Cmd that flips the completion state of the
// given task, attributed to the engine's actor. The engine enforces its own
// rules, so a toggle blocked by open subtasks or dependencies comes back as
// MutationDoneMsg.Err rather than a panic or a silent no-op.
func (e Engine) ToggleComplete(ctx context.Context, tk *task.Task) tea.Cmd {
	id := tk.ID
	next := !tk.Complete
	return func() tea.Msg {
		_, err := e.Service.SetComplete(ctx, id, next, e.Actor)
		return MutationDoneMsg{TaskID: id, Err: err}
	}
}
