// Package e2e runs the full pipeline against an in-process Orchestrator —
// no HTTP, no network — covering the literal end-to-end scenarios named
// in the roadmap/scoring/clustering specification.
package e2e

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kwforge/pipeline/pkg/batcher"
	"github.com/kwforge/pipeline/pkg/cache"
	"github.com/kwforge/pipeline/pkg/config"
	"github.com/kwforge/pipeline/pkg/events"
	"github.com/kwforge/pipeline/pkg/orchestrator"
	"github.com/kwforge/pipeline/pkg/providers"
	"github.com/kwforge/pipeline/pkg/store"
)

// TestApp wires a complete, in-process pipeline over an in-memory store and
// deterministic mock providers, for tests that drive full runs through
// Orchestrator.Execute without standing up HTTP or a real database.
type TestApp struct {
	Store        store.RunStore
	Orchestrator *orchestrator.Orchestrator
	Publisher    *events.Publisher
	ConnManager  *events.ConnectionManager

	t *testing.T
}

// newTestApp boots a TestApp around the given metrics provider.
// maxRetries controls the orchestrator's per-stage retry budget.
func newTestApp(t *testing.T, metrics providers.MetricsProvider, maxRetries int) *TestApp {
	t.Helper()

	st := store.NewMemoryStore()
	connManager := events.NewConnectionManager(5 * time.Second)
	pub := events.NewPublisher(connManager)

	embedCache, err := cache.New(5000, nil, nil)
	require.NoError(t, err)

	deps := orchestrator.Dependencies{
		LLM:           providers.NewMockLLMProvider(),
		Embedder:      providers.NewMockEmbeddingProvider(16),
		Metrics:       metrics,
		EmbedCache:    embedCache,
		EnrichBatcher: batcher.New(batcher.Config{Component: "provider.metrics", MaxInFlight: 8, MaxRetries: 1}, nil),
	}

	orch := orchestrator.New(st, pub, deps, 4, maxRetries, nil)

	return &TestApp{Store: st, Orchestrator: orch, Publisher: pub, ConnManager: connManager, t: t}
}

// baseSettings returns a Settings value representative of a small
// production run: modest caps, a conservative budget, and a balanced
// scoring profile across all three tiers.
func baseSettings() config.Settings {
	equalWeights := config.ScoringComponentWeights{Volume: 0.3, Intent: 0.2, Relevance: 0.2, Trend: 0.1, Ease: 0.2}
	return config.Settings{
		Market:              "us",
		Language:            "en",
		MaxTotalKeywords:    200,
		MaxDream100:         20,
		MaxTier2PerDream:    5,
		MaxTier3PerTier2:    3,
		SimilarityThreshold: 0.45,
		MinClusterSize:      2,
		MaxClusters:         20,
		IntentWeight:        0.4,
		SemanticWeight:      0.6,
		QuickWinThreshold:   0.6,
		QualityThreshold:    0.0,
		ScoringWeights: config.ScoringWeights{
			Dream100: equalWeights,
			Tier2:    equalWeights,
			Tier3:    equalWeights,
		},
		PostsPerMonth:      4,
		DurationMonths:     3,
		PillarRatio:        0.3,
		BudgetLimit:        1000,
		EmbeddingBatchSize: 50,
	}
}
