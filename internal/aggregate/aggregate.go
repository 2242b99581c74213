// Package aggregate maintains the derived fields of composite tasks: a
// composite's completion is the AND of its children's completion, and its
// assignee set is the union of what each child contributes (the stored
// assignee of an atomic child, the cached set of a composite one).
//
// Recomputation runs bottom-up along one ancestor chain per call and reads
// only direct children at each step, so a mutation costs the depth of the
// chain, not the size of the subtree. The walk stops as soon as one
// ancestor's derived values come out unchanged, because nothing above it
// can change either.
package aggregate

import (
	"context"
	"fmt"
	"slices"

	"github.com/wadevries/sps/internal/task"
)

// Resolver returns the freshest copy of a task. During a mutation this is
// backed by the operation's working set, so records edited earlier in the
// same transaction shadow what the store holds.
type Resolver interface {
	Task(ctx context.Context, id string) (*task.Task, error)
}

// Derive recomputes the derived fields of a composite task from its
// children and reports whether either field changed. The caller guarantees
// children matches parent.ChildIDs.
func Derive(parent *task.Task, children []*task.Task) bool {
	complete := true
	for _, c := range children {
		if !c.Complete {
			complete = false
			break
		}
	}
	set := Union(children)

	changed := parent.Complete != complete || !slices.Equal(parent.AssigneeSet, set)
	parent.Complete = complete
	parent.AssigneeSet = set
	return changed
}

// Union collects the effective assignees of the given tasks, sorted and
// deduplicated. An empty union is nil.
func Union(tasks []*task.Task) []string {
	seen := map[string]bool{}
	var out []string
	for _, tk := range tasks {
		for _, a := range tk.Assignees() {
			if a == "" || seen[a] {
				continue
			}
			seen[a] = true
			out = append(out, a)
		}
	}
	slices.Sort(out)
	return out
}

// RecomputeChain rederives every ancestor from fromID up to the root and
// returns the tasks whose derived values actually changed, in bottom-up
// order. fromID names the lowest ancestor whose inputs changed; an empty
// fromID is a no-op.
//
// Every task on an ancestor chain has children by construction, so meeting
// a childless one means the stored hierarchy is broken; that is reported as
// an error rather than a recompute result.
func RecomputeChain(ctx context.Context, r Resolver, fromID string) ([]*task.Task, error) {
	var changed []*task.Task

	curID := fromID
	for curID != "" {
		cur, err := r.Task(ctx, curID)
		if err != nil {
			return nil, fmt.Errorf("resolving ancestor %s: %w", curID, err)
		}
		if cur.IsAtomic() {
			return nil, fmt.Errorf("recompute reached childless task %s: hierarchy corrupt", curID)
		}

		children := make([]*task.Task, 0, len(cur.ChildIDs))
		for _, childID := range cur.ChildIDs {
			child, err := r.Task(ctx, childID)
			if err != nil {
				return nil, fmt.Errorf("resolving child %s of %s: %w", childID, curID, err)
			}
			children = append(children, child)
		}

		if !Derive(cur, children) {
			break
		}
		changed = append(changed, cur)
		curID = cur.ParentID
	}
	return changed, nil
}
