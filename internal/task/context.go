package task

import (
	"slices"
	"time"
)

// Context is a grouping container for tasks. Contexts form their own forest,
// independent of the task hierarchy; every task references exactly one
// context. Contexts are administered outside the mutation service — the
// engine only reads them when validating task mutations.
type Context struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// ParentID is empty for a top-level context.
	ParentID string `json:"parent_id,omitempty"`
	// ChildIDs preserves creation order.
	ChildIDs []string `json:"child_ids,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version backs the store's compare-and-set protocol, same as Task.
	Version uint64 `json:"version"`
}

// HasChild reports whether id is a direct child context.
func (c *Context) HasChild(id string) bool {
	return slices.Contains(c.ChildIDs, id)
}

// AppendChild appends id to ChildIDs. Appending an existing child is a no-op.
func (c *Context) AppendChild(id string) {
	if c.HasChild(id) {
		return
	}
	c.ChildIDs = append(c.ChildIDs, id)
}

// RemoveChild removes id from ChildIDs, preserving order. Reports whether the
// child was present.
func (c *Context) RemoveChild(id string) bool {
	i := slices.Index(c.ChildIDs, id)
	if i < 0 {
		return false
	}
	c.ChildIDs = slices.Delete(c.ChildIDs, i, i+1)
	return true
}

// Clone returns a deep copy.
func (c *Context) Clone() *Context {
	if c == nil {
		return nil
	}
	cp := *c
	cp.ChildIDs = slices.Clone(c.ChildIDs)
	return &cp
}
