package planner

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wadevries/sps/internal/aggregate"
	"github.com/wadevries/sps/internal/auditlog"
	"github.com/wadevries/sps/internal/graph"
	"github.com/wadevries/sps/internal/task"
)

// Finding is one consistency problem discovered by Verify.
type Finding struct {
	// Area names the invariant family: hierarchy, dependency, aggregate,
	// context, status, or log.
	Area string

	// TaskID is the offending record, when the finding concerns one.
	TaskID string

	Detail string
}

func (f Finding) String() string {
	if f.TaskID == "" {
		return fmt.Sprintf("[%s] %s", f.Area, f.Detail)
	}
	return fmt.Sprintf("[%s] %s: %s", f.Area, f.TaskID, f.Detail)
}

// Report summarizes a Verify run.
type Report struct {
	Findings     []Finding
	TasksChecked int
	LogsChecked  int
}

// OK reports whether the run found nothing wrong.
func (r *Report) OK() bool {
	return len(r.Findings) == 0
}

// Verify checks the whole store against the engine's invariants: the
// hierarchy is a forest, dependencies form a DAG, derived aggregates match
// their children, every task's context exists, statuses are members of the
// configured set, and every audit log chain is intact.
//
// A complete task waiting on an incomplete dependency is reported too. That
// state can arise legitimately, because un-completing a task never cascades
// to its dependents, but it is worth a human look.
func (s *Service) Verify(ctx context.Context) (*Report, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}
	snapshot := make(map[string]*task.Task, len(tasks))
	for _, tk := range tasks {
		snapshot[tk.ID] = tk
	}

	contextList, err := s.contexts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading contexts: %w", err)
	}
	contextsByID := make(map[string]*task.Context, len(contextList))
	for _, c := range contextList {
		contextsByID[c.ID] = c
	}

	report := &Report{TasksChecked: len(tasks)}
	var mu sync.Mutex
	add := func(fs ...Finding) {
		if len(fs) == 0 {
			return
		}
		mu.Lock()
		report.Findings = append(report.Findings, fs...)
		mu.Unlock()
	}

	set := s.statuses()
	logsChecked := 0

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		add(structureFindings(snapshot)...)
		return nil
	})
	g.Go(func() error {
		add(recordFindings(tasks, snapshot, contextsByID, set)...)
		return nil
	})
	g.Go(func() error {
		add(contextFindings(contextsByID)...)
		return nil
	})
	g.Go(func() error {
		n, findings, err := s.logFindings(gctx)
		if err != nil {
			return err
		}
		logsChecked = n
		add(findings...)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.LogsChecked = logsChecked
	slices.SortFunc(report.Findings, func(a, b Finding) int {
		if c := strings.Compare(a.Area, b.Area); c != 0 {
			return c
		}
		if c := strings.Compare(a.TaskID, b.TaskID); c != 0 {
			return c
		}
		return strings.Compare(a.Detail, b.Detail)
	})
	if s.logger != nil {
		s.logger.Debug("verify finished",
			"tasks", report.TasksChecked, "logs", report.LogsChecked, "findings", len(report.Findings))
	}
	return report, nil
}

// structureFindings covers the two edge structures: parent/child links must
// form a forest, dependency edges a DAG.
func structureFindings(snapshot map[string]*task.Task) []Finding {
	var out []Finding
	for _, p := range graph.ForestProblems(snapshot) {
		out = append(out, Finding{Area: "hierarchy", TaskID: p.TaskID, Detail: p.Detail})
	}
	for _, p := range graph.DAGProblems(snapshot) {
		out = append(out, Finding{Area: "dependency", TaskID: p.TaskID, Detail: p.Detail})
	}
	return out
}

// recordFindings checks each task record on its own: derived fields against
// children, completion against dependencies, context reference, status
// membership.
func recordFindings(tasks []*task.Task, snapshot map[string]*task.Task, contextsByID map[string]*task.Context, set *task.StatusSet) []Finding {
	var out []Finding
	for _, tk := range tasks {
		if tk.IsComposite() {
			out = append(out, aggregateFindings(tk, snapshot)...)
		} else {
			if len(tk.AssigneeSet) > 0 {
				out = append(out, Finding{
					Area: "aggregate", TaskID: tk.ID,
					Detail: "atomic task carries a derived assignee set",
				})
			}
			if tk.Complete {
				for _, depID := range tk.DependencyIDs {
					dep, ok := snapshot[depID]
					if ok && !dep.Complete {
						out = append(out, Finding{
							Area: "dependency", TaskID: tk.ID,
							Detail: fmt.Sprintf("complete but dependency %s is not", depID),
						})
					}
				}
			}
		}

		if tk.ContextID == "" {
			out = append(out, Finding{Area: "context", TaskID: tk.ID, Detail: "no context"})
		} else if _, ok := contextsByID[tk.ContextID]; !ok {
			out = append(out, Finding{
				Area: "context", TaskID: tk.ID,
				Detail: fmt.Sprintf("context %s does not exist", tk.ContextID),
			})
		}

		if !set.Contains(tk.Status) {
			out = append(out, Finding{
				Area: "status", TaskID: tk.ID,
				Detail: fmt.Sprintf("status %q is not in the configured set", tk.Status),
			})
		}
	}
	return out
}

// aggregateFindings rederives a composite task's cached fields and reports
// any drift. Dangling child ids are left to the hierarchy check.
func aggregateFindings(tk *task.Task, snapshot map[string]*task.Task) []Finding {
	children := make([]*task.Task, 0, len(tk.ChildIDs))
	for _, id := range tk.ChildIDs {
		child, ok := snapshot[id]
		if !ok {
			return nil
		}
		children = append(children, child)
	}

	fresh := tk.Clone()
	if !aggregate.Derive(fresh, children) {
		return nil
	}
	var out []Finding
	if fresh.Complete != tk.Complete {
		out = append(out, Finding{
			Area: "aggregate", TaskID: tk.ID,
			Detail: fmt.Sprintf("cached complete=%v, derived %v", tk.Complete, fresh.Complete),
		})
	}
	if !slices.Equal(fresh.AssigneeSet, tk.AssigneeSet) {
		out = append(out, Finding{
			Area: "aggregate", TaskID: tk.ID,
			Detail: fmt.Sprintf("cached assignees %v, derived %v", tk.AssigneeSet, fresh.AssigneeSet),
		})
	}
	return out
}

// contextFindings checks the context forest: parents exist and no context
// is its own ancestor.
func contextFindings(contextsByID map[string]*task.Context) []Finding {
	var out []Finding
	ids := make([]string, 0, len(contextsByID))
	for id := range contextsByID {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		c := contextsByID[id]
		if c.ParentID == "" {
			continue
		}
		if _, ok := contextsByID[c.ParentID]; !ok {
			out = append(out, Finding{
				Area: "context", TaskID: id,
				Detail: fmt.Sprintf("context parent %s does not exist", c.ParentID),
			})
			continue
		}
		seen := map[string]bool{id: true}
		for cur := c.ParentID; cur != ""; {
			if seen[cur] {
				out = append(out, Finding{
					Area: "context", TaskID: id,
					Detail: fmt.Sprintf("context ancestry loops at %s", cur),
				})
				break
			}
			seen[cur] = true
			next, ok := contextsByID[cur]
			if !ok {
				break
			}
			cur = next.ParentID
		}
	}
	return out
}

// logFindings replays every task's audit chain, deleted tasks included.
func (s *Service) logFindings(ctx context.Context) (int, []Finding, error) {
	ids, err := s.store.LogTaskIDs(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("listing logged tasks: %w", err)
	}
	var out []Finding
	for _, id := range ids {
		entries, err := s.store.ListLog(ctx, id)
		if err != nil {
			return 0, nil, fmt.Errorf("loading log for %s: %w", id, err)
		}
		for _, detail := range auditlog.VerifyChain(entries) {
			out = append(out, Finding{Area: "log", TaskID: id, Detail: detail})
		}
	}
	return len(ids), out, nil
}
