package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwforge/pipeline/pkg/batcher"
	"github.com/kwforge/pipeline/pkg/cache"
	"github.com/kwforge/pipeline/pkg/config"
	"github.com/kwforge/pipeline/pkg/events"
	"github.com/kwforge/pipeline/pkg/models"
	"github.com/kwforge/pipeline/pkg/providers"
	"github.com/kwforge/pipeline/pkg/store"
)

type fakeLLM struct {
	dreamPhrases []string
}

func (f *fakeLLM) Model() string { return "fake-llm" }

func (f *fakeLLM) Chat(ctx context.Context, req providers.ChatRequest) (providers.ChatResponse, error) {
	switch req.SchemaName {
	case "dream100":
		type item struct {
			Phrase     string  `json:"phrase"`
			Confidence float64 `json:"confidence"`
		}
		items := make([]item, len(f.dreamPhrases))
		for i, p := range f.dreamPhrases {
			items[i] = item{Phrase: p, Confidence: 0.9}
		}
		raw, _ := json.Marshal(map[string]any{"phrases": items})
		return providers.ChatResponse{RawJSON: raw}, nil
	default:
		raw, _ := json.Marshal(map[string]any{})
		return providers.ChatResponse{RawJSON: raw}, nil
	}
}

type fakeEmbedder struct{}

func (f *fakeEmbedder) Dimensions() int { return 3 }
func (f *fakeEmbedder) GetEmbeddings(ctx context.Context, phrases []string) ([][]float32, error) {
	out := make([][]float32, len(phrases))
	for i := range phrases {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type fakeMetrics struct{}

func (f *fakeMetrics) Name() string { return "fake-metrics" }
func (f *fakeMetrics) GetKeywordMetrics(ctx context.Context, phrase string, opts providers.MetricsOpts) (providers.MetricsRecord, error) {
	vol, diff := int64(2000), 35.0
	return providers.MetricsRecord{Phrase: phrase, Volume: &vol, Difficulty: &diff, Confidence: 0.9}, nil
}
func (f *fakeMetrics) GetBulkKeywordMetrics(ctx context.Context, phrases []string, opts providers.MetricsOpts) ([]providers.MetricsRecord, error) {
	out := make([]providers.MetricsRecord, len(phrases))
	for i, p := range phrases {
		vol, diff := int64(2000), 35.0
		out[i] = providers.MetricsRecord{Phrase: p, Volume: &vol, Difficulty: &diff, Confidence: 0.9}
	}
	return out, nil
}
func (f *fakeMetrics) GetKeywordSuggestions(ctx context.Context, seed string, limit int, opts providers.MetricsOpts) ([]providers.SuggestionResult, error) {
	return nil, nil
}
func (f *fakeMetrics) Health(ctx context.Context) (providers.ProviderHealth, error) {
	return providers.ProviderHealth{Provider: "fake-metrics", Healthy: true, QuotaLimit: 1000, QuotaRemaining: 1000}, nil
}

func testSettings() config.Settings {
	return config.Settings{
		Market:              "us",
		Language:            "en",
		MaxTotalKeywords:    500,
		MaxDream100:         5,
		MaxTier2PerDream:    3,
		MaxTier3PerTier2:    2,
		SimilarityThreshold: 0.5,
		MinClusterSize:      2,
		MaxClusters:         50,
		IntentWeight:        0.4,
		SemanticWeight:      0.6,
		QuickWinThreshold:   0.5,
		QualityThreshold:    0.0,
		ScoringWeights: config.ScoringWeights{
			Dream100: config.ScoringComponentWeights{Volume: 0.3, Intent: 0.2, Relevance: 0.2, Trend: 0.1, Ease: 0.2},
			Tier2:    config.ScoringComponentWeights{Volume: 0.3, Intent: 0.2, Relevance: 0.2, Trend: 0.1, Ease: 0.2},
			Tier3:    config.ScoringComponentWeights{Volume: 0.3, Intent: 0.2, Relevance: 0.2, Trend: 0.1, Ease: 0.2},
		},
		PostsPerMonth:  10,
		DurationMonths: 3,
		PillarRatio:    0.3,
		BudgetLimit:    100,
	}
}

func newTestOrchestrator(t *testing.T, maxRetries int) (*Orchestrator, store.RunStore) {
	st := store.NewMemoryStore()
	pub := events.NewPublisher(events.NewConnectionManager(5 * time.Second))
	embedCache, err := cache.New(1000, nil, nil)
	require.NoError(t, err)
	deps := Dependencies{
		LLM:           &fakeLLM{dreamPhrases: []string{"content marketing", "email marketing", "seo basics"}},
		Embedder:      &fakeEmbedder{},
		Metrics:       &fakeMetrics{},
		EmbedCache:    embedCache,
		EnrichBatcher: batcher.New(batcher.Config{Component: "provider.metrics", MaxInFlight: 4}, nil),
	}
	return New(st, pub, deps, 2, maxRetries, nil), st
}

func TestExecuteRunsFullDAGToCompletion(t *testing.T) {
	o, st := newTestOrchestrator(t, 2)
	run := models.NewRun("run-1", "owner-1", []string{"marketing"}, "us", "en", 100, time.Now())
	require.NoError(t, st.CreateRun(context.Background(), run))

	err := o.Execute(context.Background(), run, testSettings())
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, float64(100), run.Progress)
	assert.Len(t, run.CompletedStages, len(models.Stages))

	keywords, err := st.GetKeywords(context.Background(), run.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, keywords)

	roadmap, err := st.GetRoadmap(context.Background(), run.ID)
	require.NoError(t, err)
	assert.NotNil(t, roadmap)
}

func TestExecuteFailsWhenBudgetAlreadyExhausted(t *testing.T) {
	o, st := newTestOrchestrator(t, 1)
	run := models.NewRun("run-2", "owner-1", []string{"marketing"}, "us", "en", 100, time.Now())
	run.APIUsage.Record("fake-metrics", 1, 100, 500, false) // exceeds BudgetLimit of 100
	require.NoError(t, st.CreateRun(context.Background(), run))

	err := o.Execute(context.Background(), run, testSettings())
	require.Error(t, err)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	require.NotEmpty(t, run.ErrorLog)
}

func TestExecuteRejectsInvalidSeedCount(t *testing.T) {
	o, _ := newTestOrchestrator(t, 1)
	run := models.NewRun("run-3", "owner-1", nil, "us", "en", 100, time.Now())

	err := o.Execute(context.Background(), run, testSettings())
	require.Error(t, err)
	assert.Equal(t, models.RunStatusFailed, run.Status)
}

func TestExecuteHonorsCancellation(t *testing.T) {
	o, st := newTestOrchestrator(t, 1)
	run := models.NewRun("run-4", "owner-1", []string{"marketing"}, "us", "en", 100, time.Now())
	require.NoError(t, st.CreateRun(context.Background(), run))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := o.Execute(ctx, run, testSettings())
	require.Error(t, err)
	assert.Equal(t, models.RunStatusCancelled, run.Status)
}

func TestExecuteStrictQualityGateFailsRun(t *testing.T) {
	o, st := newTestOrchestrator(t, 1)
	run := models.NewRun("run-5", "owner-1", []string{"marketing"}, "us", "en", 100, time.Now())
	require.NoError(t, st.CreateRun(context.Background(), run))

	settings := testSettings()
	settings.MaxDream100 = 1
	settings.MaxTier2PerDream = 1
	settings.MaxTier3PerTier2 = 1
	settings.QualityGates = config.QualityGateConfig{Enabled: true, Strict: true}

	err := o.Execute(context.Background(), run, settings)
	require.Error(t, err)
	assert.Equal(t, models.RunStatusFailed, run.Status)
}

func TestResumeCreatesNewLineageLinkedRun(t *testing.T) {
	o, st := newTestOrchestrator(t, 1)
	parent := models.NewRun("run-6", "owner-1", []string{"marketing"}, "us", "en", 100, time.Now())
	parent.Transition(models.RunStatusProcessing, time.Now())
	parent.Transition(models.RunStatusFailed, time.Now())
	require.NoError(t, st.CreateRun(context.Background(), parent))

	next, err := o.Resume(context.Background(), parent, "run-6-resumed", testSettings(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, parent.LineageID, next.LineageID)
	require.NotNil(t, next.ParentRunID)
	assert.Equal(t, parent.ID, *next.ParentRunID)

	assert.Eventually(t, func() bool {
		got, err := st.GetRun(context.Background(), next.ID)
		return err == nil && got.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)
}

func TestExecuteFailsRunWhenStageTimeoutExceeded(t *testing.T) {
	o, st := newTestOrchestrator(t, 1)
	run := models.NewRun("run-7", "owner-1", []string{"marketing"}, "us", "en", 100, time.Now())
	require.NoError(t, st.CreateRun(context.Background(), run))

	settings := testSettings()
	settings.StageTimeouts = config.StageTimeouts{Universe: time.Nanosecond}

	err := o.Execute(context.Background(), run, settings)
	require.Error(t, err)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	require.NotEmpty(t, run.ErrorLog)
	assert.Equal(t, "timeout", run.ErrorLog[len(run.ErrorLog)-1].Kind)
}
