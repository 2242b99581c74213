// Package store defines the persistence contract for tasks, contexts, and
// audit log entries, plus the transaction type used to apply multi-record
// mutations atomically.
//
// Every stored record carries a version counter. A transaction names the
// version each record had when the caller read it; Commit applies all of the
// transaction's writes only if every named version still matches, and fails
// with ErrVersionConflict otherwise. The engine never retries conflicts
// itself, so callers decide their own retry policy.
package store

import (
	"context"
	"errors"

	"github.com/wadevries/sps/internal/task"
)

var (
	// ErrNotFound reports that a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict reports that a record changed between the caller's
	// read and Commit. The transaction was not applied.
	ErrVersionConflict = errors.New("version conflict")
)

// Store is the persistence boundary. Implementations must make Commit
// all-or-nothing: either every write in the transaction lands, or none do.
type Store interface {
	// GetTask returns the task with the given id, or ErrNotFound.
	GetTask(ctx context.Context, id string) (*task.Task, error)

	// GetTasks returns the named tasks keyed by id. Any missing id fails the
	// whole call with ErrNotFound.
	GetTasks(ctx context.Context, ids []string) (map[string]*task.Task, error)

	// ListTasks returns every task, ordered by creation time then id.
	ListTasks(ctx context.Context) ([]*task.Task, error)

	// ListByContext returns the tasks filed under the given context id,
	// ordered by creation time then id.
	ListByContext(ctx context.Context, contextID string) ([]*task.Task, error)

	// ListDependents returns the tasks whose dependency set contains id,
	// ordered by creation time then id.
	ListDependents(ctx context.Context, id string) ([]*task.Task, error)

	// ListRoots returns the tasks with no parent, ordered by creation time
	// then id.
	ListRoots(ctx context.Context) ([]*task.Task, error)

	// GetContext returns the context with the given id, or ErrNotFound.
	GetContext(ctx context.Context, id string) (*task.Context, error)

	// ListContexts returns every context, ordered by creation time then id.
	ListContexts(ctx context.Context) ([]*task.Context, error)

	// ListLog returns a task's audit log in ascending sequence order. A task
	// with no entries yields an empty slice, not an error; the log survives
	// task deletion.
	ListLog(ctx context.Context, taskID string) ([]*task.LogEntry, error)

	// LastLog returns the most recent log entry for a task, or nil when the
	// task has no entries yet.
	LastLog(ctx context.Context, taskID string) (*task.LogEntry, error)

	// LogTaskIDs returns every task id that has at least one log entry,
	// sorted, including ids of deleted tasks.
	LogTaskIDs(ctx context.Context) ([]string, error)

	// Commit applies the transaction atomically. On success the Version field
	// of every record passed to PutTask or PutContext is advanced in place to
	// the newly stored version.
	Commit(ctx context.Context, txn *Txn) error

	// Close releases the store's resources.
	Close() error
}

// OpKind discriminates the write operations a transaction can carry.
type OpKind int

const (
	OpPutTask OpKind = iota
	OpDeleteTask
	OpPutContext
	OpAppendLog
)

// Op is one staged write. Which fields are set depends on Kind: PutTask uses
// Task, PutContext uses Context, AppendLog uses Entry, and DeleteTask uses
// only ID and Expected.
type Op struct {
	Kind     OpKind
	ID       string
	Expected uint64
	Task     *task.Task
	Context  *task.Context
	Entry    *task.LogEntry
}

// Txn accumulates writes for one atomic Commit. The zero value is ready to
// use. A Txn must not be reused after Commit.
type Txn struct {
	ops []Op
}

// NewTxn returns an empty transaction.
func NewTxn() *Txn {
	return &Txn{}
}

// PutTask stages a task write. The record's Version field names the version
// the caller read: zero means the task must not exist yet, any other value
// must match the stored version exactly.
func (t *Txn) PutTask(tk *task.Task) *Txn {
	t.ops = append(t.ops, Op{Kind: OpPutTask, ID: tk.ID, Expected: tk.Version, Task: tk})
	return t
}

// DeleteTask stages a task deletion conditional on the given version.
func (t *Txn) DeleteTask(id string, expected uint64) *Txn {
	t.ops = append(t.ops, Op{Kind: OpDeleteTask, ID: id, Expected: expected})
	return t
}

// PutContext stages a context write with the same version semantics as
// PutTask.
func (t *Txn) PutContext(c *task.Context) *Txn {
	t.ops = append(t.ops, Op{Kind: OpPutContext, ID: c.ID, Expected: c.Version, Context: c})
	return t
}

// AppendLog stages an audit log append. Entries are applied in the order
// staged; sequence numbers and checksum chaining are the caller's concern.
func (t *Txn) AppendLog(e *task.LogEntry) *Txn {
	t.ops = append(t.ops, Op{Kind: OpAppendLog, ID: e.TaskID, Entry: e})
	return t
}

// Empty reports whether the transaction carries no writes.
func (t *Txn) Empty() bool {
	return len(t.ops) == 0
}

// Ops exposes the staged operations to store implementations.
func (t *Txn) Ops() []Op {
	return t.ops
}
