// Package httpapi exposes the planner's operation surface over HTTP. Every
// mutation and query the engine offers maps to one route under /v1; the
// error taxonomy maps onto status codes in errors.go. The server carries no
// authentication: the actor on a mutation is attribution, not identity.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wadevries/sps/internal/planner"
)

// readHeaderTimeout bounds how long a client may dribble request headers.
const readHeaderTimeout = 5 * time.Second

// Server is the HTTP front end over one planner service.
type Server struct {
	svc            *planner.Service
	logger         *log.Logger
	gatherer       prometheus.Gatherer
	defaultContext string
	defaultActor   string

	engine *gin.Engine
	srv    *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger attaches a logger. When nil the server logs nothing of its own;
// gin's recovery middleware still guards handlers.
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics mounts /metrics over the given gatherer.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithDefaultContext sets the context id used when task creation omits one.
func WithDefaultContext(id string) Option {
	return func(s *Server) { s.defaultContext = id }
}

// WithDefaultActor sets the actor recorded when a mutation omits one.
func WithDefaultActor(actor string) Option {
	return func(s *Server) { s.defaultActor = actor }
}

// New builds a Server listening on addr once Start is called.
func New(addr string, svc *planner.Service, opts ...Option) *Server {
	s := &Server{svc: svc}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	if s.logger != nil {
		engine.Use(s.requestLogger())
	}
	s.engine = engine
	s.routes()

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Handler returns the underlying handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Start serves until Shutdown is called. A clean shutdown returns nil.
func (s *Server) Start() error {
	if s.logger != nil {
		s.logger.Info("http server listening", "addr", s.srv.Addr)
	}
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.logger != nil {
		s.logger.Info("http server shutting down")
	}
	return s.srv.Shutdown(ctx)
}

// routes wires the operation surface. Reads are GETs, mutations are POSTs
// on the owning resource, and both detachment flavors are DELETEs.
func (s *Server) routes() {
	s.engine.GET("/healthz", s.health)
	if s.gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.engine.Group("/v1")
	{
		tasks := v1.Group("/tasks")
		{
			tasks.POST("", s.createTask)
			tasks.GET("", s.listTasks)
			tasks.GET("/:id", s.getTask)
			tasks.DELETE("/:id", s.deleteTask)
			tasks.GET("/:id/log", s.taskLog)
			tasks.GET("/:id/children", s.taskChildren)
			tasks.GET("/:id/ancestors", s.taskAncestors)
			tasks.POST("/:id/complete", s.setComplete)
			tasks.POST("/:id/assign", s.setAssignee)
			tasks.POST("/:id/status", s.setStatus)
			tasks.POST("/:id/comments", s.addComment)
			tasks.GET("/:id/deps", s.listDependencies)
			tasks.POST("/:id/deps", s.addDependency)
			tasks.DELETE("/:id/deps/:dep", s.removeDependency)
			tasks.GET("/:id/dependents", s.listDependents)
			tasks.POST("/:id/parent", s.attachParent)
			tasks.DELETE("/:id/parent", s.detachParent)
		}

		contexts := v1.Group("/contexts")
		{
			contexts.GET("", s.listContexts)
			contexts.POST("", s.createContext)
			contexts.GET("/:id", s.getContext)
			contexts.GET("/:id/tasks", s.tasksInContext)
		}

		v1.GET("/verify", s.verify)
	}
}

// requestLogger emits one debug line per request after it completes.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// actorOf resolves a mutation's actor: the explicit value when given,
// otherwise the server-wide default.
func (s *Server) actorOf(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return s.defaultActor
}
