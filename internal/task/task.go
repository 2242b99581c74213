// Package task defines the records the planner engine operates on: tasks,
// contexts, and audit log entries, plus the runtime-configurable status set.
//
// A Task is either atomic (no children; completion and assignee are stored
// directly) or composite (has children; completion and assignee set are
// derived caches maintained by the aggregate recomputation engine). The
// package holds data and invariant-free helpers only — all invariant
// enforcement lives in internal/planner.
package task

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Task is a single node in the planning forest. Tasks participate in two
// independent edge sets over the same identifier space: the hierarchy
// (ParentID/ChildIDs, a forest) and the dependency graph (DependencyIDs,
// a DAG).
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// ParentID is empty for a root task.
	ParentID string `json:"parent_id,omitempty"`
	// ChildIDs preserves attachment order. Empty means the task is atomic.
	ChildIDs []string `json:"child_ids,omitempty"`
	// DependencyIDs lists tasks that must complete before this one may.
	// Kept sorted for deterministic iteration and comparison.
	DependencyIDs []string `json:"dependency_ids,omitempty"`

	// ContextID is required; every task lives in exactly one context.
	ContextID string `json:"context_id"`

	// Status is a value from the configured status set. It is independent
	// of Complete.
	Status string `json:"status"`

	// Complete is authoritative for atomic tasks and a derived cache for
	// composite tasks (the AND over children).
	Complete bool `json:"complete"`

	// Assignee is meaningful only while the task is atomic.
	Assignee string `json:"assignee,omitempty"`
	// AssigneeSet is meaningful only while the task is composite: the
	// sorted union of assignees over all atomic descendants.
	AssigneeSet []string `json:"assignee_set,omitempty"`

	// EstimatedMinutes is stored verbatim; zero means no estimate.
	EstimatedMinutes int64 `json:"estimated_minutes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version counts committed writes to this record and backs the store's
	// compare-and-set protocol.
	Version uint64 `json:"version"`
}

// IsAtomic reports whether the task has no children.
func (t *Task) IsAtomic() bool {
	return len(t.ChildIDs) == 0
}

// IsComposite reports whether the task has at least one child.
func (t *Task) IsComposite() bool {
	return len(t.ChildIDs) > 0
}

// HasChild reports whether id is a direct child of the task.
func (t *Task) HasChild(id string) bool {
	return slices.Contains(t.ChildIDs, id)
}

// DependsOn reports whether id is a direct dependency of the task.
func (t *Task) DependsOn(id string) bool {
	_, found := slices.BinarySearch(t.DependencyIDs, id)
	return found
}

// AddDependency inserts id keeping DependencyIDs sorted. Adding an existing
// dependency is a no-op.
func (t *Task) AddDependency(id string) {
	at, found := slices.BinarySearch(t.DependencyIDs, id)
	if found {
		return
	}
	t.DependencyIDs = slices.Insert(t.DependencyIDs, at, id)
}

// RemoveDependency removes id from DependencyIDs. Reports whether the edge
// existed.
func (t *Task) RemoveDependency(id string) bool {
	at, found := slices.BinarySearch(t.DependencyIDs, id)
	if !found {
		return false
	}
	t.DependencyIDs = slices.Delete(t.DependencyIDs, at, at+1)
	return true
}

// AppendChild appends id to ChildIDs. Appending an existing child is a no-op.
func (t *Task) AppendChild(id string) {
	if t.HasChild(id) {
		return
	}
	t.ChildIDs = append(t.ChildIDs, id)
}

// RemoveChild removes id from ChildIDs, preserving the order of the rest.
// Reports whether the child was present.
func (t *Task) RemoveChild(id string) bool {
	i := slices.Index(t.ChildIDs, id)
	if i < 0 {
		return false
	}
	t.ChildIDs = slices.Delete(t.ChildIDs, i, i+1)
	return true
}

// Assignees returns the task's effective assignee contribution: the single
// stored assignee for an atomic task (empty slice when unassigned), or the
// cached assignee set for a composite task.
func (t *Task) Assignees() []string {
	if t.IsAtomic() {
		if t.Assignee == "" {
			return nil
		}
		return []string{t.Assignee}
	}
	return t.AssigneeSet
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// mutate a committed record in place.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.ChildIDs = slices.Clone(t.ChildIDs)
	c.DependencyIDs = slices.Clone(t.DependencyIDs)
	c.AssigneeSet = slices.Clone(t.AssigneeSet)
	return &c
}

// NewID returns a time-ordered unique identifier. UUIDv7 keeps identifiers
// sortable by creation time, which the log ordering relies on as the final
// tie-break.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// DeriveTitle returns the first line of description, trimmed. Used when a
// task is created without an explicit title.
func DeriveTitle(description string) string {
	line := description
	if i := strings.IndexAny(line, "\r\n"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}
