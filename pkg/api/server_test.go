package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwforge/pipeline/pkg/batcher"
	"github.com/kwforge/pipeline/pkg/cache"
	"github.com/kwforge/pipeline/pkg/config"
	"github.com/kwforge/pipeline/pkg/events"
	"github.com/kwforge/pipeline/pkg/models"
	"github.com/kwforge/pipeline/pkg/orchestrator"
	"github.com/kwforge/pipeline/pkg/providers"
	"github.com/kwforge/pipeline/pkg/store"
)

func testServer(t *testing.T) (*Server, store.RunStore) {
	t.Helper()
	st := store.NewMemoryStore()
	connManager := events.NewConnectionManager(5 * time.Second)
	pub := events.NewPublisher(connManager)

	embedCache, err := cache.New(1000, nil, nil)
	require.NoError(t, err)

	deps := orchestrator.Dependencies{
		LLM:           providers.NewMockLLMProvider(),
		Embedder:      providers.NewMockEmbeddingProvider(8),
		Metrics:       providers.NewMockProvider(),
		EmbedCache:    embedCache,
		EnrichBatcher: batcher.New(batcher.Config{Component: "provider.metrics", MaxInFlight: 4}, nil),
	}
	orch := orchestrator.New(st, pub, deps, 2, 1, nil)

	defaults := config.Defaults()
	defaults.MaxDream100 = 10
	defaults.MaxTier2PerDream = 5
	defaults.MaxTier3PerTier2 = 5
	defaults.BudgetLimit = 1000

	return NewServer(st, orch, connManager, defaults), st
}

func TestHealthHandlerReportsHealthy(t *testing.T) {
	s, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	s.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestCreateRunRejectsMissingSeeds(t *testing.T) {
	s, _ := testServer(t)
	body, _ := json.Marshal(CreateRunRequest{OwnerID: "owner-1"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRunAcceptsValidRequestAndRunsToCompletion(t *testing.T) {
	s, st := testServer(t)
	body, _ := json.Marshal(CreateRunRequest{
		OwnerID: "owner-1",
		Seeds:   []string{"content marketing"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.Engine().ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var created RunCreatedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.RunID)

	require.Eventually(t, func() bool {
		run, err := st.GetRun(context.Background(), created.RunID)
		return err == nil && run.Status.IsTerminal()
	}, 5*time.Second, 20*time.Millisecond)

	run, err := st.GetRun(context.Background(), created.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+created.RunID, nil)
	getRec := httptest.NewRecorder()
	s.Engine().ServeHTTP(getRec, getReq)
	assert.Equal(t, http.StatusOK, getRec.Code)

	kwReq := httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+created.RunID+"/keywords", nil)
	kwRec := httptest.NewRecorder()
	s.Engine().ServeHTTP(kwRec, kwReq)
	assert.Equal(t, http.StatusOK, kwRec.Code)

	roadmapReq := httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+created.RunID+"/roadmap", nil)
	roadmapRec := httptest.NewRecorder()
	s.Engine().ServeHTTP(roadmapRec, roadmapReq)
	assert.Equal(t, http.StatusOK, roadmapRec.Code)
}

func TestGetRunNotFoundReturns404(t *testing.T) {
	s, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/does-not-exist", nil)
	rec := httptest.NewRecorder()

	s.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelRunConflictsWhenNotTracked(t *testing.T) {
	s, _ := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs/untracked-run/cancel", nil)
	rec := httptest.NewRecorder()

	s.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestResumeDispatchesLineageLinkedRun(t *testing.T) {
	s, st := testServer(t)
	parent := models.NewRun("parent-run", "owner-1", []string{"marketing"}, "us", "en", 1000, time.Now())
	parent.Transition(models.RunStatusProcessing, time.Now())
	parent.Transition(models.RunStatusFailed, time.Now())
	require.NoError(t, st.CreateRun(context.Background(), parent))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs/parent-run/resume", nil)
	rec := httptest.NewRecorder()

	s.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resumed RunCreatedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resumed))
	assert.NotEqual(t, parent.ID, resumed.RunID)
}
