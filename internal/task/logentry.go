package task

import "time"

// EntryKind distinguishes human comments from structured field changes in a
// task's audit log.
type EntryKind string

const (
	// KindComment is a free-text entry written by a person.
	KindComment EntryKind = "comment"

	// KindChange is a structured record of a single field mutation.
	KindChange EntryKind = "change"
)

// LogEntry is one record in a task's append-only audit log. Entries are
// totally ordered per task by (Timestamp, Seq); Seq is assigned by the store
// at append time and never reused. Committed entries are immutable.
type LogEntry struct {
	ID     string `json:"id"`
	TaskID string `json:"task_id"`
	// Seq is a per-task monotonic sequence number starting at 1.
	Seq       uint64    `json:"seq"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Kind      EntryKind `json:"kind"`

	// Text carries the payload of a KindComment entry.
	Text string `json:"text,omitempty"`

	// Field, OldValue, and NewValue carry the payload of a KindChange entry.
	Field    string `json:"field,omitempty"`
	OldValue string `json:"old_value,omitempty"`
	NewValue string `json:"new_value,omitempty"`

	// Checksum chains this entry to its predecessor: it hashes the entry
	// fields together with PrevChecksum, so any in-place edit or removal of
	// an earlier entry is detectable.
	Checksum     uint64 `json:"checksum"`
	PrevChecksum uint64 `json:"prev_checksum"`
}

// IsComment reports whether the entry is a human comment.
func (e *LogEntry) IsComment() bool {
	return e.Kind == KindComment
}

// IsChange reports whether the entry is a structured field change.
func (e *LogEntry) IsChange() bool {
	return e.Kind == KindChange
}
