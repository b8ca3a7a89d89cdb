package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kwforge/pipeline/pkg/config"
	"github.com/kwforge/pipeline/pkg/models"
)

// createRunHandler handles POST /api/v1/runs: validates the request,
// builds a Run and its Settings, persists the Run as Pending, and submits
// it to the orchestrator's pool. Returns immediately — the caller polls
// GET /runs/:id or subscribes over WebSocket for progress.
func (s *Server) createRunHandler(c *gin.Context) {
	var req CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	settings := s.defaults
	if req.Market != "" {
		settings.Market = req.Market
	}
	if req.Language != "" {
		settings.Language = req.Language
	}
	if req.MaxTotalKeywords != nil {
		settings.MaxTotalKeywords = *req.MaxTotalKeywords
	}
	if req.PostsPerMonth != nil {
		settings.PostsPerMonth = *req.PostsPerMonth
	}
	if req.DurationMonths != nil {
		settings.DurationMonths = *req.DurationMonths
	}
	if req.BudgetLimit != nil {
		settings.BudgetLimit = *req.BudgetLimit
	}

	if err := config.NewValidator(&settings).ValidateAll(); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	now := time.Now()
	run := models.NewRun(newRunID(), req.OwnerID, req.Seeds, settings.Market, settings.Language, settings.BudgetLimit, now)

	if err := s.store.CreateRun(c.Request.Context(), run); err != nil {
		respondError(c, err)
		return
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.trackRun(run.ID, cancel)
	s.orchestrator.Submit(runCtx, run, settings)
	go s.watchRunCompletion(run.ID)

	c.JSON(http.StatusAccepted, RunCreatedResponse{RunID: run.ID, Status: string(run.Status)})
}

// listRunsHandler handles GET /api/v1/runs?owner_id=....
func (s *Server) listRunsHandler(c *gin.Context) {
	ownerID := c.Query("owner_id")
	runs, err := s.store.ListRuns(c.Request.Context(), ownerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, runs)
}

// getRunHandler handles GET /api/v1/runs/:id.
func (s *Server) getRunHandler(c *gin.Context) {
	run, err := s.store.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// cancelRunHandler handles POST /api/v1/runs/:id/cancel. Only runs still
// executing in this process can be cancelled this way: once its Execute
// call returns (terminal status reached), the cancellation func is no
// longer tracked and the run has already left Processing.
func (s *Server) cancelRunHandler(c *gin.Context) {
	runID := c.Param("id")
	cancel, ok := s.cancelFuncFor(runID)
	if !ok {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "run is not actively executing in this process"})
		return
	}
	cancel()
	c.JSON(http.StatusOK, ActionResponse{RunID: runID, Message: "cancellation requested"})
}

// resumeRunHandler handles POST /api/v1/runs/:id/resume: re-dispatches a
// terminal (Failed or Cancelled) run as a fresh, lineage-linked Run.
func (s *Server) resumeRunHandler(c *gin.Context) {
	parent, err := s.store.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	settings := s.defaults
	settings.Market = parent.Market
	settings.Language = parent.Language
	settings.BudgetLimit = parent.BudgetLimit

	newID := newRunID()
	runCtx, cancel := context.WithCancel(context.Background())
	s.trackRun(newID, cancel)

	next, err := s.orchestrator.Resume(runCtx, parent, newID, settings, time.Now())
	if err != nil {
		s.untrackRun(newID)
		respondError(c, err)
		return
	}
	go s.watchRunCompletion(newID)

	c.JSON(http.StatusAccepted, RunCreatedResponse{RunID: next.ID, Status: string(next.Status)})
}

// getKeywordsHandler handles GET /api/v1/runs/:id/keywords.
func (s *Server) getKeywordsHandler(c *gin.Context) {
	keywords, err := s.store.GetKeywords(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, keywords)
}

// getClustersHandler handles GET /api/v1/runs/:id/clusters.
func (s *Server) getClustersHandler(c *gin.Context) {
	clusters, err := s.store.GetClusters(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, clusters)
}

// getRoadmapHandler handles GET /api/v1/runs/:id/roadmap.
func (s *Server) getRoadmapHandler(c *gin.Context) {
	roadmap, err := s.store.GetRoadmap(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, roadmap)
}
