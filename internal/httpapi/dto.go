package httpapi

import (
	"github.com/wadevries/sps/internal/planner"
	"github.com/wadevries/sps/internal/task"
)

// Request bodies. Validation beyond shape (status membership, cycle checks,
// dependency gating) belongs to the planner; binding tags only reject
// requests that could never be valid.

type createTaskRequest struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	ParentID         string `json:"parent_id"`
	ContextID        string `json:"context_id"`
	Status           string `json:"status"`
	Assignee         string `json:"assignee"`
	EstimatedMinutes int64  `json:"estimated_minutes" binding:"omitempty,min=0"`
	Actor            string `json:"actor"`
}

type completeRequest struct {
	// Complete is a pointer so that an explicit false binds as present.
	Complete *bool  `json:"complete" binding:"required"`
	Actor    string `json:"actor"`
}

type assignRequest struct {
	// Assignee empty means unassign.
	Assignee string `json:"assignee"`
	Actor    string `json:"actor"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
	Actor  string `json:"actor"`
}

type commentRequest struct {
	Text   string `json:"text" binding:"required"`
	Author string `json:"author"`
}

type dependencyRequest struct {
	DependsOn string `json:"depends_on" binding:"required"`
	Actor     string `json:"actor"`
}

type parentRequest struct {
	ParentID string `json:"parent_id" binding:"required"`
	Actor    string `json:"actor"`
}

type createContextRequest struct {
	Name     string `json:"name" binding:"required"`
	ParentID string `json:"parent_id"`
}

// listTasksQuery selects one view of the task set. Open and assignee are
// mutually exclusive: open means unassigned by definition.
type listTasksQuery struct {
	Open     bool   `form:"open"`
	Assignee string `form:"assignee"`
	Roots    bool   `form:"roots"`
	Limit    int    `form:"limit" binding:"omitempty,min=1"`
}

type contextTasksQuery struct {
	Recursive bool `form:"recursive"`
}

// Response bodies. Task and context records marshal via their own JSON
// tags; list responses always carry an array, never null.

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type taskListResponse struct {
	Tasks []*task.Task `json:"tasks"`
}

func newTaskListResponse(tasks []*task.Task) taskListResponse {
	if tasks == nil {
		tasks = []*task.Task{}
	}
	return taskListResponse{Tasks: tasks}
}

type contextListResponse struct {
	Contexts []*task.Context `json:"contexts"`
}

func newContextListResponse(contexts []*task.Context) contextListResponse {
	if contexts == nil {
		contexts = []*task.Context{}
	}
	return contextListResponse{Contexts: contexts}
}

type logResponse struct {
	Entries []*task.LogEntry `json:"entries"`
}

func newLogResponse(entries []*task.LogEntry) logResponse {
	if entries == nil {
		entries = []*task.LogEntry{}
	}
	return logResponse{Entries: entries}
}

type verifyFinding struct {
	Area   string `json:"area"`
	TaskID string `json:"task_id,omitempty"`
	Detail string `json:"detail"`
}

type verifyResponse struct {
	OK           bool            `json:"ok"`
	TasksChecked int             `json:"tasks_checked"`
	LogsChecked  int             `json:"logs_checked"`
	Findings     []verifyFinding `json:"findings"`
}

func newVerifyResponse(r *planner.Report) verifyResponse {
	findings := make([]verifyFinding, len(r.Findings))
	for i, f := range r.Findings {
		findings[i] = verifyFinding{Area: f.Area, TaskID: f.TaskID, Detail: f.Detail}
	}
	return verifyResponse{
		OK:           r.OK(),
		TasksChecked: r.TasksChecked,
		LogsChecked:  r.LogsChecked,
		Findings:     findings,
	}
}
