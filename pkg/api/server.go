// Package api provides the HTTP surface for the keyword-research
// pipeline: submitting Runs, inspecting their state and artifacts, and
// streaming progress over WebSocket. It is a thin adapter over
// pkg/orchestrator and pkg/store — every invariant enforced here is
// already enforced by those packages; this layer only translates HTTP
// requests into typed calls and typed errors into status codes.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kwforge/pipeline/pkg/config"
	"github.com/kwforge/pipeline/pkg/events"
	"github.com/kwforge/pipeline/pkg/metrics"
	"github.com/kwforge/pipeline/pkg/orchestrator"
	"github.com/kwforge/pipeline/pkg/store"
	"github.com/kwforge/pipeline/pkg/version"
)

// Server is the HTTP API server wrapping a gin.Engine.
type Server struct {
	engine *gin.Engine

	store        store.RunStore
	orchestrator *orchestrator.Orchestrator
	connManager  *events.ConnectionManager
	defaults     config.Settings

	// runCancels tracks the cancellation func for every Run currently
	// executing in this process, so POST /runs/:id/cancel can reach an
	// in-flight Execute call. Entries are removed once the run reaches a
	// terminal status.
	runCancels   map[string]context.CancelFunc
	runCancelsMu sync.Mutex
}

// NewServer wires a Server over an already-constructed RunStore,
// Orchestrator, and WebSocket ConnectionManager, and registers every route.
func NewServer(st store.RunStore, orch *orchestrator.Orchestrator, connManager *events.ConnectionManager, defaults config.Settings) *Server {
	e := gin.New()
	e.Use(gin.Recovery())
	e.Use(requestLogger())
	e.Use(securityHeaders())

	s := &Server{
		engine:       e,
		store:        st,
		orchestrator: orch,
		connManager:  connManager,
		defaults:     defaults,
		runCancels:   make(map[string]context.CancelFunc),
	}
	s.setupRoutes()
	return s
}

// Engine exposes the underlying gin.Engine, e.g. for ListenAndServe or
// httptest.NewServer in tests.
func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthHandler)
	s.engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := s.engine.Group("/api/v1")
	v1.POST("/runs", s.createRunHandler)
	v1.GET("/runs", s.listRunsHandler)
	v1.GET("/runs/:id", s.getRunHandler)
	v1.POST("/runs/:id/cancel", s.cancelRunHandler)
	v1.POST("/runs/:id/resume", s.resumeRunHandler)
	v1.GET("/runs/:id/keywords", s.getKeywordsHandler)
	v1.GET("/runs/:id/clusters", s.getClustersHandler)
	v1.GET("/runs/:id/roadmap", s.getRoadmapHandler)
	v1.GET("/runs/:id/ws", s.wsHandler)
}

// healthHandler handles GET /health. It reports this process's own
// liveness; external provider health is surfaced per-run via api_usage,
// not here, since one unhealthy vendor shouldn't make the service itself
// look down.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   version.Full(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// trackRun registers a cancellation func for runID, removing it
// automatically once run execution returns.
func (s *Server) trackRun(runID string, cancel context.CancelFunc) {
	s.runCancelsMu.Lock()
	s.runCancels[runID] = cancel
	s.runCancelsMu.Unlock()
}

func (s *Server) untrackRun(runID string) {
	s.runCancelsMu.Lock()
	delete(s.runCancels, runID)
	s.runCancelsMu.Unlock()
}

func (s *Server) cancelFuncFor(runID string) (context.CancelFunc, bool) {
	s.runCancelsMu.Lock()
	defer s.runCancelsMu.Unlock()
	cancel, ok := s.runCancels[runID]
	return cancel, ok
}

// watchRunCompletion polls the store until runID reaches a terminal
// status, then stops tracking its cancellation func. Submit/Resume
// dispatch execution on an internal goroutine with no completion
// callback, so this is how the server learns a run is done without
// blocking the request that created it.
func (s *Server) watchRunCompletion(runID string) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		run, err := s.store.GetRun(context.Background(), runID)
		if err != nil {
			continue
		}
		if run.Status.IsTerminal() {
			s.untrackRun(runID)
			return
		}
	}
}

// newRunID generates a Run ID. Broken out so it's the one place that
// would need to change to swap ID generation strategy.
func newRunID() string {
	return uuid.New().String()
}
