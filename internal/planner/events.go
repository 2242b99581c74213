package planner

import "time"

// EventKind labels one committed mutation.
type EventKind string

const (
	EventTaskCreated   EventKind = "task_created"
	EventTaskUpdated   EventKind = "task_updated"
	EventTaskDeleted   EventKind = "task_deleted"
	EventTaskCommented EventKind = "task_commented"
)

// Event is broadcast after a mutation commits, so a dashboard can refresh
// without polling. Events are advisory: delivery uses a non-blocking send
// and a slow consumer misses events rather than stalling mutations.
type Event struct {
	Kind   EventKind
	TaskID string
	Actor  string
	Time   time.Time
}

// emit sends on the configured channel without blocking.
func (s *Service) emit(kind EventKind, taskID, actor string, at time.Time) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- Event{Kind: kind, TaskID: taskID, Actor: actor, Time: at}:
	default:
	}
}
