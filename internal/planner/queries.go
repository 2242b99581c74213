package planner

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/wadevries/sps/internal/graph"
	"github.com/wadevries/sps/internal/store"
	"github.com/wadevries/sps/internal/task"
)

// Task returns a single task by id.
func (s *Service) Task(ctx context.Context, id string) (*task.Task, error) {
	tk, err := s.store.GetTask(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Kind: "task", ID: id}
	}
	return tk, err
}

// Children returns a task's direct subtasks in their stored order.
func (s *Service) Children(ctx context.Context, id string) ([]*task.Task, error) {
	tk, err := s.Task(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(tk.ChildIDs) == 0 {
		return nil, nil
	}
	byID, err := s.store.GetTasks(ctx, tk.ChildIDs)
	if err != nil {
		return nil, fmt.Errorf("loading children of %s: %w", id, err)
	}
	children := make([]*task.Task, 0, len(tk.ChildIDs))
	for _, cid := range tk.ChildIDs {
		children = append(children, byID[cid])
	}
	return children, nil
}

// AncestorChain returns the parents of a task from its direct parent up to
// the root. A root task yields an empty chain.
func (s *Service) AncestorChain(ctx context.Context, id string) ([]*task.Task, error) {
	w := s.newWorking()
	if _, err := w.Task(ctx, id); err != nil {
		return nil, err
	}
	chain, err := graph.AncestorChain(ctx, w, id)
	if err != nil {
		return nil, fmt.Errorf("walking ancestors of %s: %w", id, err)
	}
	return chain, nil
}

// Roots returns every task without a parent, oldest first.
func (s *Service) Roots(ctx context.Context) ([]*task.Task, error) {
	return s.store.ListRoots(ctx)
}

// AllTasks returns every task, oldest first.
func (s *Service) AllTasks(ctx context.Context) ([]*task.Task, error) {
	return s.store.ListTasks(ctx)
}

// TasksInContext returns the tasks filed under a context. With recursive
// set, tasks of every descendant context are included too.
func (s *Service) TasksInContext(ctx context.Context, contextID string, recursive bool) ([]*task.Task, error) {
	if err := s.requireContext(ctx, contextID); err != nil {
		return nil, err
	}
	ids := []string{contextID}
	if recursive {
		subtree, err := s.contexts.Subtree(ctx, contextID)
		if err != nil {
			return nil, fmt.Errorf("expanding context %s: %w", contextID, err)
		}
		ids = subtree
	}

	var out []*task.Task
	for _, id := range ids {
		tasks, err := s.store.ListByContext(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("listing tasks in context %s: %w", id, err)
		}
		out = append(out, tasks...)
	}
	store.SortTasks(out)
	return out, nil
}

// OpenTasks returns atomic tasks that are incomplete and unassigned, newest
// first: the pool of work nobody has picked up. A limit of zero or less
// returns everything.
func (s *Service) OpenTasks(ctx context.Context, limit int) ([]*task.Task, error) {
	all, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	var out []*task.Task
	for _, tk := range all {
		if tk.IsAtomic() && !tk.Complete && tk.Assignee == "" {
			out = append(out, tk)
		}
	}
	return capNewestFirst(out, limit), nil
}

// AssignedTasks returns the incomplete atomic tasks assigned to a person,
// newest first.
func (s *Service) AssignedTasks(ctx context.Context, person string, limit int) ([]*task.Task, error) {
	all, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	var out []*task.Task
	for _, tk := range all {
		if tk.IsAtomic() && !tk.Complete && tk.Assignee == person {
			out = append(out, tk)
		}
	}
	return capNewestFirst(out, limit), nil
}

// Dependencies returns the tasks a task waits on, in stored order.
func (s *Service) Dependencies(ctx context.Context, id string) ([]*task.Task, error) {
	tk, err := s.Task(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(tk.DependencyIDs) == 0 {
		return nil, nil
	}
	byID, err := s.store.GetTasks(ctx, tk.DependencyIDs)
	if err != nil {
		return nil, fmt.Errorf("loading dependencies of %s: %w", id, err)
	}
	deps := make([]*task.Task, 0, len(tk.DependencyIDs))
	for _, did := range tk.DependencyIDs {
		deps = append(deps, byID[did])
	}
	return deps, nil
}

// Dependents returns the tasks that wait on a task, oldest first.
func (s *Service) Dependents(ctx context.Context, id string) ([]*task.Task, error) {
	if _, err := s.Task(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListDependents(ctx, id)
}

// Log returns a task's audit trail in sequence order. It works for deleted
// tasks too: the log outlives the record.
func (s *Service) Log(ctx context.Context, taskID string) ([]*task.LogEntry, error) {
	return s.store.ListLog(ctx, taskID)
}

func capNewestFirst(tasks []*task.Task, limit int) []*task.Task {
	store.SortTasks(tasks)
	slices.Reverse(tasks)
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks
}
