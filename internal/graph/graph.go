// Package graph holds the traversals over the two edge sets tasks
// participate in: the parent/child hierarchy, which must stay a forest, and
// the dependency edges, which must stay acyclic. The two never mix; a
// hierarchy walk follows only parent pointers and a dependency walk follows
// only dependency ids.
//
// Cycle checks are incremental: they answer whether adding one proposed edge
// would close a cycle, and return a deterministic witness path when it
// would. Whole-snapshot validation for the verify command lives here too.
package graph

import (
	"context"
	"fmt"
	"slices"

	"github.com/wadevries/sps/internal/task"
)

// Resolver fetches task records during a traversal. Stores satisfy it
// through a thin adapter; tests use a map.
type Resolver interface {
	Task(ctx context.Context, id string) (*task.Task, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, id string) (*task.Task, error)

func (f ResolverFunc) Task(ctx context.Context, id string) (*task.Task, error) {
	return f(ctx, id)
}

// AncestorChain returns the tasks above id, bottom-up: the task's parent
// first, the root last. A task at the root yields an empty chain. The walk
// fails if stored parent pointers form a cycle, which only happens when the
// data itself is corrupt.
func AncestorChain(ctx context.Context, r Resolver, id string) ([]*task.Task, error) {
	start, err := r.Task(ctx, id)
	if err != nil {
		return nil, err
	}

	var chain []*task.Task
	seen := map[string]bool{id: true}
	cur := start
	for cur.ParentID != "" {
		if seen[cur.ParentID] {
			return nil, fmt.Errorf("hierarchy corrupt: %s appears twice on the ancestor path of %s", cur.ParentID, id)
		}
		seen[cur.ParentID] = true

		parent, err := r.Task(ctx, cur.ParentID)
		if err != nil {
			return nil, fmt.Errorf("resolving ancestor of %s: %w", cur.ID, err)
		}
		chain = append(chain, parent)
		cur = parent
	}
	return chain, nil
}

// HierarchyCycle reports whether attaching childID under parentID would close
// a hierarchy cycle. A non-nil witness lists the would-be cycle, starting and
// ending at childID; nil means the edge is safe.
func HierarchyCycle(ctx context.Context, r Resolver, parentID, childID string) ([]string, error) {
	if parentID == childID {
		return []string{childID, childID}, nil
	}

	// The edge closes a cycle exactly when childID already sits above
	// parentID. Walk parentID's ancestors looking for it.
	path := []string{parentID}
	seen := map[string]bool{parentID: true}
	cur, err := r.Task(ctx, parentID)
	if err != nil {
		return nil, err
	}
	for cur.ParentID != "" {
		if seen[cur.ParentID] {
			return nil, fmt.Errorf("hierarchy corrupt: %s appears twice on the ancestor path of %s", cur.ParentID, parentID)
		}
		seen[cur.ParentID] = true
		path = append(path, cur.ParentID)

		if cur.ParentID == childID {
			// path is bottom-up [parent .. child]; the witness reads
			// top-down along child edges, closed by the proposed edge.
			slices.Reverse(path)
			return append(path, childID), nil
		}
		cur, err = r.Task(ctx, cur.ParentID)
		if err != nil {
			return nil, fmt.Errorf("resolving ancestor of %s: %w", parentID, err)
		}
	}
	return nil, nil
}

// DependencyCycle reports whether adding the dependency edge fromID -> toID
// would close a dependency cycle. A non-nil witness lists the would-be
// cycle, starting and ending at fromID; nil means the edge is safe.
//
// The search is breadth-first from toID with neighbors visited in sorted
// order, so the witness is stable for a given graph.
func DependencyCycle(ctx context.Context, r Resolver, fromID, toID string) ([]string, error) {
	if fromID == toID {
		return []string{fromID, fromID}, nil
	}

	// A cycle appears exactly when fromID is reachable from toID over
	// existing dependency edges.
	pred := map[string]string{}
	queue := []string{toID}
	visited := map[string]bool{toID: true}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		cur, err := r.Task(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolving dependency %s: %w", id, err)
		}
		for _, next := range cur.DependencyIDs {
			if visited[next] {
				continue
			}
			visited[next] = true
			pred[next] = id

			if next == fromID {
				// Rebuild toID .. fromID, then prepend the proposed edge.
				rev := []string{fromID}
				for cur := id; ; cur = pred[cur] {
					rev = append(rev, cur)
					if cur == toID {
						break
					}
				}
				slices.Reverse(rev)
				return append([]string{fromID}, rev...), nil
			}
			queue = append(queue, next)
		}
	}
	return nil, nil
}

// ---- whole-snapshot validation ------------------------------------------

// Problem is one finding from a snapshot check.
type Problem struct {
	TaskID string
	Detail string
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %s", p.TaskID, p.Detail)
}

// ForestProblems checks the parent/child relationships of a full snapshot:
// every parent pointer must name a live task that lists the child back,
// every child entry must point at a live task that points back, and parent
// pointers must not form a cycle.
func ForestProblems(tasks map[string]*task.Task) []Problem {
	var out []Problem
	for _, id := range sortedIDs(tasks) {
		tk := tasks[id]

		if tk.ParentID != "" {
			parent, ok := tasks[tk.ParentID]
			switch {
			case !ok:
				out = append(out, Problem{id, fmt.Sprintf("parent %s does not exist", tk.ParentID)})
			case !parent.HasChild(id):
				out = append(out, Problem{id, fmt.Sprintf("parent %s does not list it as a child", tk.ParentID)})
			}
		}

		seen := map[string]bool{}
		for _, childID := range tk.ChildIDs {
			if seen[childID] {
				out = append(out, Problem{id, fmt.Sprintf("child %s listed twice", childID)})
				continue
			}
			seen[childID] = true

			child, ok := tasks[childID]
			switch {
			case !ok:
				out = append(out, Problem{id, fmt.Sprintf("child %s does not exist", childID)})
			case child.ParentID != id:
				out = append(out, Problem{id, fmt.Sprintf("child %s names %q as parent", childID, child.ParentID)})
			}
		}
	}

	out = append(out, parentCycles(tasks)...)
	return out
}

// parentCycles walks parent pointers with the classic three colors. Each
// node has at most one parent, so any cycle is a simple loop at the end of
// a chain.
func parentCycles(tasks map[string]*task.Task) []Problem {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var out []Problem

	for _, id := range sortedIDs(tasks) {
		if color[id] != white {
			continue
		}
		var path []string
		cur := id
		for {
			if color[cur] == gray {
				// Closed a loop within this walk; trim the tail leading in.
				at := slices.Index(path, cur)
				out = append(out, Problem{cur, fmt.Sprintf("parent pointers form a cycle: %v", append(path[at:], cur))})
				break
			}
			if color[cur] == black {
				break
			}
			color[cur] = gray
			path = append(path, cur)

			tk, ok := tasks[cur]
			if !ok || tk.ParentID == "" {
				break
			}
			cur = tk.ParentID
		}
		for _, p := range path {
			color[p] = black
		}
	}
	return out
}

// DAGProblems checks the dependency edges of a full snapshot: every
// dependency id must name a live task, must not repeat, must not point at
// the task itself, and the edges as a whole must stay acyclic.
func DAGProblems(tasks map[string]*task.Task) []Problem {
	var out []Problem
	for _, id := range sortedIDs(tasks) {
		tk := tasks[id]

		seen := map[string]bool{}
		for _, depID := range tk.DependencyIDs {
			switch {
			case depID == id:
				out = append(out, Problem{id, "depends on itself"})
			case seen[depID]:
				out = append(out, Problem{id, fmt.Sprintf("dependency %s listed twice", depID)})
			default:
				if _, ok := tasks[depID]; !ok {
					out = append(out, Problem{id, fmt.Sprintf("dependency %s does not exist", depID)})
				}
			}
			seen[depID] = true
		}
	}

	if witness := dependencyCycleWitness(tasks); witness != nil {
		out = append(out, Problem{witness[0], fmt.Sprintf("dependency edges form a cycle: %v", witness)})
	}
	return out
}

// dependencyCycleWitness extracts one stable cycle from the dependency
// edges, or nil when the graph is acyclic. Depth-first over sorted ids, so
// the same snapshot always yields the same witness.
func dependencyCycleWitness(tasks map[string]*task.Task) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	parent := map[string]string{}
	var cycle []string

	var dfs func(u string) bool
	dfs = func(u string) bool {
		color[u] = gray
		tk := tasks[u]
		if tk != nil {
			for _, v := range tk.DependencyIDs {
				if _, ok := tasks[v]; !ok {
					continue // dangling edges are reported separately
				}
				switch color[v] {
				case white:
					parent[v] = u
					if dfs(v) {
						return true
					}
				case gray:
					// Back edge u -> v: reconstruct v .. u -> v.
					cycle = append(cycle, v)
					for cur := u; cur != v; cur = parent[cur] {
						cycle = append(cycle, cur)
					}
					cycle = append(cycle, v)
					slices.Reverse(cycle)
					return true
				}
			}
		}
		color[u] = black
		return false
	}

	for _, id := range sortedIDs(tasks) {
		if color[id] == white && dfs(id) {
			break
		}
	}
	return cycle
}

func sortedIDs(tasks map[string]*task.Task) []string {
	ids := make([]string, 0, len(tasks))
	for id := range tasks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
