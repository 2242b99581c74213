// Package auditlog builds and verifies the append-only history kept per
// task. Entries are chained: each one carries the checksum of its
// predecessor plus a checksum over its own content, so truncation,
// reordering, and edits after the fact are all detectable.
//
// The package only constructs and checks entries. Persisting them, and
// making the append atomic with the mutation it describes, is the mutation
// service's job.
package auditlog

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/wadevries/sps/internal/task"
)

// NewComment builds a human-comment entry following prev. A nil prev starts
// the chain at sequence 1.
func NewComment(taskID, author, text string, at time.Time, prev *task.LogEntry) *task.LogEntry {
	e := &task.LogEntry{
		ID:        task.NewID(),
		TaskID:    taskID,
		Seq:       nextSeq(prev),
		Author:    author,
		Timestamp: at,
		Kind:      task.KindComment,
		Text:      text,
	}
	seal(e, prev)
	return e
}

// NewChange builds a field-change entry following prev. A nil prev starts
// the chain at sequence 1.
func NewChange(taskID, author, field, oldValue, newValue string, at time.Time, prev *task.LogEntry) *task.LogEntry {
	e := &task.LogEntry{
		ID:        task.NewID(),
		TaskID:    taskID,
		Seq:       nextSeq(prev),
		Author:    author,
		Timestamp: at,
		Kind:      task.KindChange,
		Field:     field,
		OldValue:  oldValue,
		NewValue:  newValue,
	}
	seal(e, prev)
	return e
}

func nextSeq(prev *task.LogEntry) uint64 {
	if prev == nil {
		return 1
	}
	return prev.Seq + 1
}

func seal(e *task.LogEntry, prev *task.LogEntry) {
	if prev != nil {
		e.PrevChecksum = prev.Checksum
	}
	e.Checksum = Checksum(e)
}

// Checksum hashes an entry's content, including its link to the
// predecessor. The stored Checksum field itself is not part of the input.
func Checksum(e *task.LogEntry) uint64 {
	h := xxhash.New()

	writeString := func(s string) {
		_, _ = h.WriteString(s)
		_, _ = h.Write([]byte{0})
	}
	writeUint := func(v uint64) {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}

	writeString(e.ID)
	writeString(e.TaskID)
	writeUint(e.Seq)
	writeString(e.Author)
	writeUint(uint64(e.Timestamp.UTC().UnixNano()))
	writeString(string(e.Kind))
	writeString(e.Text)
	writeString(e.Field)
	writeString(e.OldValue)
	writeString(e.NewValue)
	writeUint(e.PrevChecksum)

	return h.Sum64()
}

// VerifyChain checks one task's log, in the order the store returned it:
// sequence numbers must start at 1 and increase by exactly one, timestamps
// must not go backwards, every entry must link to its predecessor's
// checksum, and every checksum must match the entry's content. Findings
// are returned as human-readable strings; an empty result means the chain
// is intact.
func VerifyChain(entries []*task.LogEntry) []string {
	var problems []string

	var prev *task.LogEntry
	for i, e := range entries {
		want := nextSeq(prev)
		if e.Seq != want {
			problems = append(problems, fmt.Sprintf("entry %d: sequence %d, expected %d", i, e.Seq, want))
		}

		wantPrev := uint64(0)
		if prev != nil {
			wantPrev = prev.Checksum
			if e.Timestamp.Before(prev.Timestamp) {
				problems = append(problems, fmt.Sprintf("entry %d: timestamp precedes entry %d", i, i-1))
			}
		}
		if e.PrevChecksum != wantPrev {
			problems = append(problems, fmt.Sprintf("entry %d: broken link to predecessor (have %x, want %x)", i, e.PrevChecksum, wantPrev))
		}

		if got := Checksum(e); got != e.Checksum {
			problems = append(problems, fmt.Sprintf("entry %d: checksum mismatch (stored %x, computed %x)", i, e.Checksum, got))
		}
		prev = e
	}
	return problems
}
