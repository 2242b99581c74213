package planner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/wadevries/sps/internal/aggregate"
	"github.com/wadevries/sps/internal/auditlog"
	"github.com/wadevries/sps/internal/contexts"
	"github.com/wadevries/sps/internal/graph"
	"github.com/wadevries/sps/internal/store"
	"github.com/wadevries/sps/internal/task"
)

// CreateTaskRequest carries everything needed to create one atomic task.
// Title falls back to the first line of Description when empty.
type CreateTaskRequest struct {
	Title            string
	Description      string
	ParentID         string
	ContextID        string
	Status           string
	Assignee         string
	EstimatedMinutes int64
	Actor            string
}

// CreateTask adds a new atomic task. With a parent given, the task is
// appended to the parent's children; a previously atomic parent becomes
// composite and its stored completion and assignee give way to derived
// values.
func (s *Service) CreateTask(ctx context.Context, req CreateTaskRequest) (*task.Task, error) {
	tk, err := s.createTask(ctx, req)
	return tk, s.finish("create_task", err)
}

func (s *Service) createTask(ctx context.Context, req CreateTaskRequest) (*task.Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = task.DeriveTitle(req.Description)
	}
	if title == "" {
		return nil, &InvalidOperationError{Reason: "a task needs a title or a description"}
	}

	set := s.statuses()
	status := req.Status
	if status == "" {
		status = set.Default()
	} else if !set.Contains(status) {
		return nil, &InvalidStatusError{Status: status, Allowed: set.Values()}
	}

	if req.ContextID == "" {
		return nil, &InvalidOperationError{Reason: "a task needs a context"}
	}
	ok, err := s.contexts.Exists(ctx, req.ContextID)
	if err != nil {
		return nil, fmt.Errorf("checking context %s: %w", req.ContextID, err)
	}
	if !ok {
		return nil, &NotFoundError{Kind: "context", ID: req.ContextID}
	}

	w := s.newWorking()
	now := s.now()
	tk := &task.Task{
		ID:               task.NewID(),
		Title:            title,
		Description:      req.Description,
		ContextID:        req.ContextID,
		Status:           status,
		Assignee:         strings.TrimSpace(req.Assignee),
		EstimatedMinutes: req.EstimatedMinutes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	w.markDirty(tk)

	depth := 0
	if req.ParentID != "" {
		parent, err := w.Task(ctx, req.ParentID)
		if err != nil {
			return nil, err
		}
		wasAtomic := parent.IsAtomic()
		parent.AppendChild(tk.ID)
		if wasAtomic {
			// First child: the stored assignee is discarded, completion
			// becomes derived below.
			parent.Assignee = ""
		}
		tk.ParentID = parent.ID
		w.markDirty(parent)

		changed, err := aggregate.RecomputeChain(ctx, w, parent.ID)
		if err != nil {
			return nil, fmt.Errorf("recomputing ancestors of %s: %w", parent.ID, err)
		}
		w.markDirty(changed...)
		depth = len(changed)
	}

	txn := store.NewTxn()
	w.stage(txn, now)
	txn.AppendLog(auditlog.NewChange(tk.ID, req.Actor, "created", "", title, now, nil))

	if err := s.commit(ctx, txn); err != nil {
		return nil, err
	}
	s.metrics.RecomputeDepth(depth)
	s.emit(EventTaskCreated, tk.ID, req.Actor, now)
	if s.logger != nil {
		s.logger.Debug("task created", "id", tk.ID, "title", title, "parent", req.ParentID)
	}
	return tk, nil
}

// AttachSubtask puts childID under parentID, detaching it from its current
// parent first when it has one. Both the old and the new ancestor chains
// are rederived in the same commit.
func (s *Service) AttachSubtask(ctx context.Context, parentID, childID, actor string) (*task.Task, error) {
	tk, err := s.attachSubtask(ctx, parentID, childID, actor)
	return tk, s.finish("attach_subtask", err)
}

func (s *Service) attachSubtask(ctx context.Context, parentID, childID, actor string) (*task.Task, error) {
	w := s.newWorking()
	child, err := w.Task(ctx, childID)
	if err != nil {
		return nil, err
	}
	if child.ParentID == parentID {
		return child, nil
	}
	parent, err := w.Task(ctx, parentID)
	if err != nil {
		return nil, err
	}

	witness, err := graph.HierarchyCycle(ctx, w, parentID, childID)
	if err != nil {
		return nil, fmt.Errorf("checking hierarchy: %w", err)
	}
	if witness != nil {
		return nil, &CycleError{Edge: "hierarchy", From: parentID, To: childID, Witness: witness}
	}

	now := s.now()
	oldParentID := child.ParentID

	oldChainStart := ""
	if oldParentID != "" {
		start, err := s.removeFromParent(ctx, w, child)
		if err != nil {
			return nil, err
		}
		oldChainStart = start
	}

	wasAtomic := parent.IsAtomic()
	parent.AppendChild(childID)
	if wasAtomic {
		parent.Assignee = ""
	}
	child.ParentID = parentID
	w.markDirty(parent, child)

	depth := 0
	if oldChainStart != "" {
		changed, err := aggregate.RecomputeChain(ctx, w, oldChainStart)
		if err != nil {
			return nil, fmt.Errorf("recomputing former ancestors: %w", err)
		}
		w.markDirty(changed...)
		depth += len(changed)
	}
	changed, err := aggregate.RecomputeChain(ctx, w, parentID)
	if err != nil {
		return nil, fmt.Errorf("recomputing new ancestors: %w", err)
	}
	w.markDirty(changed...)
	depth += len(changed)

	prev, err := s.lastLog(ctx, childID)
	if err != nil {
		return nil, err
	}
	txn := store.NewTxn()
	w.stage(txn, now)
	txn.AppendLog(auditlog.NewChange(childID, actor, "parent", oldParentID, parentID, now, prev))

	if err := s.commit(ctx, txn); err != nil {
		return nil, err
	}
	s.metrics.RecomputeDepth(depth)
	s.emit(EventTaskUpdated, childID, actor, now)
	return child, nil
}

// DetachSubtask removes a task from its parent, making it a root. The
// former ancestor chain is rederived.
func (s *Service) DetachSubtask(ctx context.Context, taskID, actor string) (*task.Task, error) {
	tk, err := s.detachSubtask(ctx, taskID, actor)
	return tk, s.finish("detach_subtask", err)
}

func (s *Service) detachSubtask(ctx context.Context, taskID, actor string) (*task.Task, error) {
	w := s.newWorking()
	child, err := w.Task(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if child.ParentID == "" {
		return nil, &InvalidOperationError{TaskID: taskID, Reason: "task is already a root"}
	}

	now := s.now()
	oldParentID := child.ParentID
	chainStart, err := s.removeFromParent(ctx, w, child)
	if err != nil {
		return nil, err
	}
	child.ParentID = ""
	w.markDirty(child)

	depth := 0
	if chainStart != "" {
		changed, err := aggregate.RecomputeChain(ctx, w, chainStart)
		if err != nil {
			return nil, fmt.Errorf("recomputing former ancestors: %w", err)
		}
		w.markDirty(changed...)
		depth = len(changed)
	}

	prev, err := s.lastLog(ctx, taskID)
	if err != nil {
		return nil, err
	}
	txn := store.NewTxn()
	w.stage(txn, now)
	txn.AppendLog(auditlog.NewChange(taskID, actor, "parent", oldParentID, "", now, prev))

	if err := s.commit(ctx, txn); err != nil {
		return nil, err
	}
	s.metrics.RecomputeDepth(depth)
	s.emit(EventTaskUpdated, taskID, actor, now)
	return child, nil
}

// removeFromParent takes child out of its parent's child list and returns
// where the former chain's recompute should start: the parent itself while
// it still has children, otherwise the parent's own parent, because a
// parent left childless reverts to a plain atomic task.
func (s *Service) removeFromParent(ctx context.Context, w *working, child *task.Task) (string, error) {
	parent, err := w.Task(ctx, child.ParentID)
	if err != nil {
		return "", err
	}
	parent.RemoveChild(child.ID)

	chainStart := parent.ID
	if parent.IsAtomic() {
		// Composite -> atomic: the derived values no longer exist and the
		// task starts over as unassigned and incomplete.
		parent.Complete = false
		parent.Assignee = ""
		parent.AssigneeSet = nil
		chainStart = parent.ParentID
	}
	w.markDirty(parent)
	return chainStart, nil
}

// AddDependency records that fromID must wait for toID. Self-edges and
// edges that would close a loop are rejected; an edge that already exists
// is a no-op.
func (s *Service) AddDependency(ctx context.Context, fromID, toID, actor string) (*task.Task, error) {
	tk, err := s.addDependency(ctx, fromID, toID, actor)
	return tk, s.finish("add_dependency", err)
}

func (s *Service) addDependency(ctx context.Context, fromID, toID, actor string) (*task.Task, error) {
	w := s.newWorking()
	from, err := w.Task(ctx, fromID)
	if err != nil {
		return nil, err
	}
	if _, err := w.Task(ctx, toID); err != nil {
		return nil, err
	}
	if from.DependsOn(toID) {
		return from, nil
	}

	witness, err := graph.DependencyCycle(ctx, w, fromID, toID)
	if err != nil {
		return nil, fmt.Errorf("checking dependencies: %w", err)
	}
	if witness != nil {
		return nil, &CycleError{Edge: "dependency", From: fromID, To: toID, Witness: witness}
	}

	now := s.now()
	from.AddDependency(toID)
	w.markDirty(from)

	prev, err := s.lastLog(ctx, fromID)
	if err != nil {
		return nil, err
	}
	txn := store.NewTxn()
	w.stage(txn, now)
	txn.AppendLog(auditlog.NewChange(fromID, actor, "dependency", "", toID, now, prev))

	if err := s.commit(ctx, txn); err != nil {
		return nil, err
	}
	s.emit(EventTaskUpdated, fromID, actor, now)
	return from, nil
}

// RemoveDependency drops the fromID -> toID edge. Nothing is recomputed:
// removing a constraint never un-completes anything.
func (s *Service) RemoveDependency(ctx context.Context, fromID, toID, actor string) (*task.Task, error) {
	tk, err := s.removeDependency(ctx, fromID, toID, actor)
	return tk, s.finish("remove_dependency", err)
}

func (s *Service) removeDependency(ctx context.Context, fromID, toID, actor string) (*task.Task, error) {
	w := s.newWorking()
	from, err := w.Task(ctx, fromID)
	if err != nil {
		return nil, err
	}
	if !from.DependsOn(toID) {
		return nil, &NotFoundError{Kind: "dependency", ID: fromID + " -> " + toID}
	}

	now := s.now()
	from.RemoveDependency(toID)
	w.markDirty(from)

	prev, err := s.lastLog(ctx, fromID)
	if err != nil {
		return nil, err
	}
	txn := store.NewTxn()
	w.stage(txn, now)
	txn.AppendLog(auditlog.NewChange(fromID, actor, "dependency", toID, "", now, prev))

	if err := s.commit(ctx, txn); err != nil {
		return nil, err
	}
	s.emit(EventTaskUpdated, fromID, actor, now)
	return from, nil
}

// SetComplete stores the completion flag of an atomic task. Completing
// requires every dependency to be complete already; un-completing is always
// allowed. The ancestor chain is rederived either way.
func (s *Service) SetComplete(ctx context.Context, taskID string, value bool, actor string) (*task.Task, error) {
	tk, err := s.setComplete(ctx, taskID, value, actor)
	return tk, s.finish("set_complete", err)
}

func (s *Service) setComplete(ctx context.Context, taskID string, value bool, actor string) (*task.Task, error) {
	w := s.newWorking()
	tk, err := w.Task(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if tk.IsComposite() {
		return nil, &InvalidOperationError{TaskID: taskID, Reason: "completion of a composite task is derived from its subtasks"}
	}
	if value {
		for _, depID := range tk.DependencyIDs {
			dep, err := w.Task(ctx, depID)
			if err != nil {
				return nil, err
			}
			if !dep.Complete {
				return nil, &UnmetDependencyError{TaskID: taskID, DependencyID: depID}
			}
		}
	}
	if tk.Complete == value {
		return tk, nil
	}

	now := s.now()
	old := strconv.FormatBool(tk.Complete)
	tk.Complete = value
	w.markDirty(tk)

	changed, err := aggregate.RecomputeChain(ctx, w, tk.ParentID)
	if err != nil {
		return nil, fmt.Errorf("recomputing ancestors of %s: %w", taskID, err)
	}
	w.markDirty(changed...)

	prev, err := s.lastLog(ctx, taskID)
	if err != nil {
		return nil, err
	}
	txn := store.NewTxn()
	w.stage(txn, now)
	txn.AppendLog(auditlog.NewChange(taskID, actor, "complete", old, strconv.FormatBool(value), now, prev))

	if err := s.commit(ctx, txn); err != nil {
		return nil, err
	}
	s.metrics.RecomputeDepth(len(changed))
	s.emit(EventTaskUpdated, taskID, actor, now)
	return tk, nil
}

// SetAssignee stores the assignee of an atomic task. An empty person
// unassigns it. The ancestor chain's assignee sets are rederived.
func (s *Service) SetAssignee(ctx context.Context, taskID, person, actor string) (*task.Task, error) {
	tk, err := s.setAssignee(ctx, taskID, person, actor)
	return tk, s.finish("set_assignee", err)
}

func (s *Service) setAssignee(ctx context.Context, taskID, person, actor string) (*task.Task, error) {
	w := s.newWorking()
	tk, err := w.Task(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if tk.IsComposite() {
		return nil, &InvalidOperationError{TaskID: taskID, Reason: "assignee of a composite task is derived from its subtasks"}
	}
	person = strings.TrimSpace(person)
	if tk.Assignee == person {
		return tk, nil
	}

	now := s.now()
	old := tk.Assignee
	tk.Assignee = person
	w.markDirty(tk)

	changed, err := aggregate.RecomputeChain(ctx, w, tk.ParentID)
	if err != nil {
		return nil, fmt.Errorf("recomputing ancestors of %s: %w", taskID, err)
	}
	w.markDirty(changed...)

	prev, err := s.lastLog(ctx, taskID)
	if err != nil {
		return nil, err
	}
	txn := store.NewTxn()
	w.stage(txn, now)
	txn.AppendLog(auditlog.NewChange(taskID, actor, "assignee", old, person, now, prev))

	if err := s.commit(ctx, txn); err != nil {
		return nil, err
	}
	s.metrics.RecomputeDepth(len(changed))
	s.emit(EventTaskUpdated, taskID, actor, now)
	return tk, nil
}

// SetStatus stores a status value from the configured set. Status is
// workflow color: it never touches completion or any derived value.
func (s *Service) SetStatus(ctx context.Context, taskID, value, actor string) (*task.Task, error) {
	tk, err := s.setStatus(ctx, taskID, value, actor)
	return tk, s.finish("set_status", err)
}

func (s *Service) setStatus(ctx context.Context, taskID, value, actor string) (*task.Task, error) {
	set := s.statuses()
	if !set.Contains(value) {
		return nil, &InvalidStatusError{Status: value, Allowed: set.Values()}
	}

	w := s.newWorking()
	tk, err := w.Task(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if tk.Status == value {
		return tk, nil
	}

	now := s.now()
	old := tk.Status
	tk.Status = value
	w.markDirty(tk)

	prev, err := s.lastLog(ctx, taskID)
	if err != nil {
		return nil, err
	}
	txn := store.NewTxn()
	w.stage(txn, now)
	txn.AppendLog(auditlog.NewChange(taskID, actor, "status", old, value, now, prev))

	if err := s.commit(ctx, txn); err != nil {
		return nil, err
	}
	s.emit(EventTaskUpdated, taskID, actor, now)
	return tk, nil
}

// AddComment appends a human comment to a task's log. The task record gets
// a version bump in the same commit, which serializes concurrent appends
// onto distinct sequence numbers.
func (s *Service) AddComment(ctx context.Context, taskID, author, text string) (*task.LogEntry, error) {
	e, err := s.addComment(ctx, taskID, author, text)
	return e, s.finish("add_comment", err)
}

func (s *Service) addComment(ctx context.Context, taskID, author, text string) (*task.LogEntry, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &InvalidOperationError{TaskID: taskID, Reason: "comment text is empty"}
	}

	w := s.newWorking()
	tk, err := w.Task(ctx, taskID)
	if err != nil {
		return nil, err
	}
	w.markDirty(tk)

	now := s.now()
	prev, err := s.lastLog(ctx, taskID)
	if err != nil {
		return nil, err
	}
	entry := auditlog.NewComment(taskID, author, text, now, prev)

	txn := store.NewTxn()
	w.stage(txn, now)
	txn.AppendLog(entry)

	if err := s.commit(ctx, txn); err != nil {
		return nil, err
	}
	s.emit(EventTaskCommented, taskID, author, now)
	return entry, nil
}

// DeleteTask removes a task that nothing references: no subtasks, no
// dependents. Its audit log stays readable afterwards, closed by a final
// deletion entry.
func (s *Service) DeleteTask(ctx context.Context, taskID, actor string) error {
	return s.finish("delete_task", s.deleteTask(ctx, taskID, actor))
}

func (s *Service) deleteTask(ctx context.Context, taskID, actor string) error {
	w := s.newWorking()
	tk, err := w.Task(ctx, taskID)
	if err != nil {
		return err
	}
	if len(tk.ChildIDs) > 0 {
		return &HasChildrenError{TaskID: taskID, ChildIDs: slices.Clone(tk.ChildIDs)}
	}
	dependents, err := s.store.ListDependents(ctx, taskID)
	if err != nil {
		return fmt.Errorf("listing dependents of %s: %w", taskID, err)
	}
	if len(dependents) > 0 {
		ids := make([]string, len(dependents))
		for i, d := range dependents {
			ids[i] = d.ID
		}
		return &DependentsExistError{TaskID: taskID, DependentIDs: ids}
	}

	now := s.now()
	depth := 0
	if tk.ParentID != "" {
		chainStart, err := s.removeFromParent(ctx, w, tk)
		if err != nil {
			return err
		}
		// The record is going away; only the former ancestors recompute.
		tk.ParentID = ""
		if chainStart != "" {
			changed, err := aggregate.RecomputeChain(ctx, w, chainStart)
			if err != nil {
				return fmt.Errorf("recomputing former ancestors: %w", err)
			}
			w.markDirty(changed...)
			depth = len(changed)
		}
	}

	prev, err := s.lastLog(ctx, taskID)
	if err != nil {
		return err
	}
	txn := store.NewTxn()
	w.stage(txn, now)
	txn.DeleteTask(taskID, tk.Version)
	txn.AppendLog(auditlog.NewChange(taskID, actor, "deleted", "false", "true", now, prev))

	if err := s.commit(ctx, txn); err != nil {
		return err
	}
	s.metrics.RecomputeDepth(depth)
	s.emit(EventTaskDeleted, taskID, actor, now)
	if s.logger != nil {
		s.logger.Debug("task deleted", "id", taskID)
	}
	return nil
}

// ---- context administration ---------------------------------------------------

// CreateContext adds a context, optionally under a parent.
func (s *Service) CreateContext(ctx context.Context, name, parentID string) (*task.Context, error) {
	c, err := s.createContext(ctx, name, parentID)
	return c, s.finish("create_context", err)
}

func (s *Service) createContext(ctx context.Context, name, parentID string) (*task.Context, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &InvalidOperationError{Reason: "a context needs a name"}
	}
	if parentID != "" {
		if err := s.requireContext(ctx, parentID); err != nil {
			return nil, err
		}
	}
	c, err := s.contexts.Create(ctx, name, parentID)
	return c, s.translateContextErr(err, parentID)
}

// RenameContext changes a context's display name.
func (s *Service) RenameContext(ctx context.Context, id, name string) (*task.Context, error) {
	c, err := s.renameContext(ctx, id, name)
	return c, s.finish("rename_context", err)
}

func (s *Service) renameContext(ctx context.Context, id, name string) (*task.Context, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &InvalidOperationError{Reason: "a context needs a name"}
	}
	if err := s.requireContext(ctx, id); err != nil {
		return nil, err
	}
	c, err := s.contexts.Rename(ctx, id, name)
	return c, s.translateContextErr(err, id)
}

// ReparentContext moves a context within the forest. Moves that would make
// it its own ancestor fail with CycleError.
func (s *Service) ReparentContext(ctx context.Context, id, newParentID string) (*task.Context, error) {
	c, err := s.reparentContext(ctx, id, newParentID)
	return c, s.finish("reparent_context", err)
}

func (s *Service) reparentContext(ctx context.Context, id, newParentID string) (*task.Context, error) {
	if err := s.requireContext(ctx, id); err != nil {
		return nil, err
	}
	if newParentID != "" {
		if err := s.requireContext(ctx, newParentID); err != nil {
			return nil, err
		}
	}
	c, err := s.contexts.Reparent(ctx, id, newParentID)
	if errors.Is(err, contexts.ErrCycle) {
		return nil, &CycleError{Edge: "context", From: newParentID, To: id}
	}
	return c, s.translateContextErr(err, id)
}

func (s *Service) requireContext(ctx context.Context, id string) error {
	ok, err := s.contexts.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("checking context %s: %w", id, err)
	}
	if !ok {
		return &NotFoundError{Kind: "context", ID: id}
	}
	return nil
}

// translateContextErr maps directory failures onto the service's error
// taxonomy.
func (s *Service) translateContextErr(err error, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrVersionConflict):
		return &ConcurrentModificationError{Err: err}
	case errors.Is(err, store.ErrNotFound):
		return &NotFoundError{Kind: "context", ID: id}
	default:
		return err
	}
}
