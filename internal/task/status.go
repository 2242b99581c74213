package task

import (
	"fmt"
	"strings"
)

// StatusSet is the ordered set of status values tasks may carry. The set is
// supplied by configuration and may be swapped at runtime; the engine only
// checks membership at mutation time, so a shrinking set never invalidates
// statuses already stored.
//
// A StatusSet is immutable after construction and safe for concurrent reads.
type StatusSet struct {
	values  []string
	members map[string]bool
	def     string
}

// NewStatusSet builds a StatusSet from values, preserving first-seen order
// and dropping duplicates and blank entries. def is the status assigned to
// new tasks; when empty it falls back to the first value. An error is
// returned when no usable values remain or when def is not a member.
func NewStatusSet(values []string, def string) (*StatusSet, error) {
	set := &StatusSet{members: make(map[string]bool, len(values))}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || set.members[v] {
			continue
		}
		set.members[v] = true
		set.values = append(set.values, v)
	}
	if len(set.values) == 0 {
		return nil, fmt.Errorf("building status set: no status values configured")
	}
	if def == "" {
		def = set.values[0]
	}
	if !set.members[def] {
		return nil, fmt.Errorf("building status set: default status %q is not in the configured set", def)
	}
	set.def = def
	return set, nil
}

// Contains reports whether s is a member of the set.
func (ss *StatusSet) Contains(s string) bool {
	return ss.members[s]
}

// Values returns the statuses in configured order. The slice is a copy.
func (ss *StatusSet) Values() []string {
	out := make([]string, len(ss.values))
	copy(out, ss.values)
	return out
}

// Default returns the status assigned to newly created tasks.
func (ss *StatusSet) Default() string {
	return ss.def
}

// Len returns the number of statuses in the set.
func (ss *StatusSet) Len() int {
	return len(ss.values)
}
