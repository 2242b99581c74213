package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wadevries/sps/internal/buildinfo"
	"github.com/wadevries/sps/internal/planner"
	"github.com/wadevries/sps/internal/task"
)

// health reports liveness and the running version.
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{Status: "ok", Version: buildinfo.Version})
}

// ---- tasks ---------------------------------------------------------------

func (s *Server) createTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	contextID := req.ContextID
	if contextID == "" {
		contextID = s.defaultContext
	}

	tk, err := s.svc.CreateTask(c.Request.Context(), planner.CreateTaskRequest{
		Title:            req.Title,
		Description:      req.Description,
		ParentID:         req.ParentID,
		ContextID:        contextID,
		Status:           req.Status,
		Assignee:         req.Assignee,
		EstimatedMinutes: req.EstimatedMinutes,
		Actor:            s.actorOf(req.Actor),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tk)
}

func (s *Server) listTasks(c *gin.Context) {
	var q listTasksQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	if q.Open && q.Assignee != "" {
		badRequest(c, errors.New("open and assignee filters are mutually exclusive"))
		return
	}

	ctx := c.Request.Context()
	var (
		tasks []*task.Task
		err   error
	)
	switch {
	case q.Open:
		tasks, err = s.svc.OpenTasks(ctx, q.Limit)
	case q.Assignee != "":
		tasks, err = s.svc.AssignedTasks(ctx, q.Assignee, q.Limit)
	case q.Roots:
		tasks, err = s.svc.Roots(ctx)
	default:
		tasks, err = s.svc.AllTasks(ctx)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskListResponse(tasks))
}

func (s *Server) getTask(c *gin.Context) {
	tk, err := s.svc.Task(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tk)
}

func (s *Server) deleteTask(c *gin.Context) {
	actor := s.actorOf(c.Query("actor"))
	if err := s.svc.DeleteTask(c.Request.Context(), c.Param("id"), actor); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) taskLog(c *gin.Context) {
	entries, err := s.svc.Log(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLogResponse(entries))
}

func (s *Server) taskChildren(c *gin.Context) {
	children, err := s.svc.Children(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskListResponse(children))
}

func (s *Server) taskAncestors(c *gin.Context) {
	chain, err := s.svc.AncestorChain(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskListResponse(chain))
}

func (s *Server) setComplete(c *gin.Context) {
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	tk, err := s.svc.SetComplete(c.Request.Context(), c.Param("id"), *req.Complete, s.actorOf(req.Actor))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tk)
}

func (s *Server) setAssignee(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	tk, err := s.svc.SetAssignee(c.Request.Context(), c.Param("id"), req.Assignee, s.actorOf(req.Actor))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tk)
}

func (s *Server) setStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	tk, err := s.svc.SetStatus(c.Request.Context(), c.Param("id"), req.Status, s.actorOf(req.Actor))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tk)
}

func (s *Server) addComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	entry, err := s.svc.AddComment(c.Request.Context(), c.Param("id"), s.actorOf(req.Author), req.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// ---- dependencies ---------------------------------------------------------

func (s *Server) listDependencies(c *gin.Context) {
	deps, err := s.svc.Dependencies(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskListResponse(deps))
}

func (s *Server) addDependency(c *gin.Context) {
	var req dependencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	tk, err := s.svc.AddDependency(c.Request.Context(), c.Param("id"), req.DependsOn, s.actorOf(req.Actor))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tk)
}

func (s *Server) removeDependency(c *gin.Context) {
	actor := s.actorOf(c.Query("actor"))
	tk, err := s.svc.RemoveDependency(c.Request.Context(), c.Param("id"), c.Param("dep"), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tk)
}

func (s *Server) listDependents(c *gin.Context) {
	dependents, err := s.svc.Dependents(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskListResponse(dependents))
}

// ---- hierarchy -------------------------------------------------------------

func (s *Server) attachParent(c *gin.Context) {
	var req parentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	tk, err := s.svc.AttachSubtask(c.Request.Context(), req.ParentID, c.Param("id"), s.actorOf(req.Actor))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tk)
}

func (s *Server) detachParent(c *gin.Context) {
	actor := s.actorOf(c.Query("actor"))
	tk, err := s.svc.DetachSubtask(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tk)
}

// ---- contexts --------------------------------------------------------------

func (s *Server) listContexts(c *gin.Context) {
	contexts, err := s.svc.Contexts().List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newContextListResponse(contexts))
}

func (s *Server) createContext(c *gin.Context) {
	var req createContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	created, err := s.svc.CreateContext(c.Request.Context(), req.Name, req.ParentID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) getContext(c *gin.Context) {
	found, err := s.svc.Contexts().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

func (s *Server) tasksInContext(c *gin.Context) {
	var q contextTasksQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	tasks, err := s.svc.TasksInContext(c.Request.Context(), c.Param("id"), q.Recursive)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskListResponse(tasks))
}

// ---- verify ----------------------------------------------------------------

func (s *Server) verify(c *gin.Context) {
	report, err := s.svc.Verify(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newVerifyResponse(report))
}
