package planner

import (
	"fmt"
	"strings"
)

// The mutation service reports every rejection through one of the typed
// errors below so callers can switch on the failure class with errors.As.
// Anything else coming out of an operation is an infrastructure or
// invariant failure, not a user error.

// NotFoundError reports a reference to a task, context, or dependency edge
// that does not exist.
type NotFoundError struct {
	Kind string // "task", "context", or "dependency"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// CycleError reports an edge that would close a cycle. Witness lists the
// would-be cycle, starting and ending at the same id.
type CycleError struct {
	Edge    string // "hierarchy", "dependency", or "context"
	From    string
	To      string
	Witness []string
}

func (e *CycleError) Error() string {
	if len(e.Witness) == 0 {
		return fmt.Sprintf("%s edge %s -> %s would create a cycle", e.Edge, e.From, e.To)
	}
	return fmt.Sprintf("%s edge %s -> %s would create a cycle: %s",
		e.Edge, e.From, e.To, strings.Join(e.Witness, " -> "))
}

// InvalidOperationError reports an operation that is meaningless for the
// task's current shape, like completing a composite directly.
type InvalidOperationError struct {
	TaskID string
	Reason string
}

func (e *InvalidOperationError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("invalid operation: %s", e.Reason)
	}
	return fmt.Sprintf("invalid operation on task %s: %s", e.TaskID, e.Reason)
}

// UnmetDependencyError reports an attempt to complete a task whose
// dependency has not completed yet.
type UnmetDependencyError struct {
	TaskID       string
	DependencyID string
}

func (e *UnmetDependencyError) Error() string {
	return fmt.Sprintf("task %s cannot complete: dependency %s is not complete", e.TaskID, e.DependencyID)
}

// InvalidStatusError reports a status value outside the configured set.
type InvalidStatusError struct {
	Status  string
	Allowed []string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("status %q is not one of [%s]", e.Status, strings.Join(e.Allowed, ", "))
}

// DependentsExistError reports a deletion blocked by tasks that still
// depend on the target.
type DependentsExistError struct {
	TaskID       string
	DependentIDs []string
}

func (e *DependentsExistError) Error() string {
	return fmt.Sprintf("task %s still has dependents: %s", e.TaskID, strings.Join(e.DependentIDs, ", "))
}

// HasChildrenError reports a deletion blocked by subtasks.
type HasChildrenError struct {
	TaskID   string
	ChildIDs []string
}

func (e *HasChildrenError) Error() string {
	return fmt.Sprintf("task %s still has subtasks: %s", e.TaskID, strings.Join(e.ChildIDs, ", "))
}

// ConcurrentModificationError reports that a record changed between the
// operation's read and its commit. The operation was not applied; the
// caller decides whether to retry.
type ConcurrentModificationError struct {
	Err error
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("concurrent modification: %v", e.Err)
}

func (e *ConcurrentModificationError) Unwrap() error {
	return e.Err
}
