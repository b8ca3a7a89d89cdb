package e2e

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwforge/pipeline/pkg/config"
	"github.com/kwforge/pipeline/pkg/errtax"
	"github.com/kwforge/pipeline/pkg/models"
	"github.com/kwforge/pipeline/pkg/providers"
	"github.com/kwforge/pipeline/pkg/store"
)

// failingMetrics is a MetricsProvider that always errors, used to exercise
// the health-aware failover half of the Provider Abstraction (S2) without
// reaching out to anything real.
type failingMetrics struct{}

func (failingMetrics) Name() string { return "primary" }
func (failingMetrics) GetKeywordMetrics(ctx context.Context, phrase string, opts providers.MetricsOpts) (providers.MetricsRecord, error) {
	return providers.MetricsRecord{}, errors.New("upstream 503")
}
func (failingMetrics) GetBulkKeywordMetrics(ctx context.Context, phrases []string, opts providers.MetricsOpts) ([]providers.MetricsRecord, error) {
	return nil, errors.New("upstream 503")
}
func (failingMetrics) GetKeywordSuggestions(ctx context.Context, seed string, limit int, opts providers.MetricsOpts) ([]providers.SuggestionResult, error) {
	return nil, errors.New("upstream 503")
}
func (failingMetrics) Health(ctx context.Context) (providers.ProviderHealth, error) {
	return providers.ProviderHealth{Provider: "primary", Healthy: false}, nil
}

// TestS1MinimalRun exercises a minimal end-to-end run: one seed, mock
// providers, a small total-keyword cap, and a short roadmap window.
func TestS1MinimalRun(t *testing.T) {
	app := newTestApp(t, providers.NewMockProvider(), 2)
	ctx := context.Background()

	run := models.NewRun("run-s1", "owner-1", []string{"social selling"}, "us", "en", 1000, time.Now())
	require.NoError(t, app.Store.CreateRun(ctx, run))

	settings := baseSettings()
	settings.MaxTotalKeywords = 200
	settings.PostsPerMonth = 4
	settings.DurationMonths = 3

	err := app.Orchestrator.Execute(ctx, run, settings)
	require.NoError(t, err)

	got, err := app.Store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, got.Status)

	keywords, err := app.Store.GetKeywords(ctx, run.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(keywords), 200)

	dream100 := 0
	for _, k := range keywords {
		if k.Tier == models.TierDream100 {
			dream100++
		}
	}
	assert.Greater(t, dream100, 0, "expected at least some Dream100 keywords")

	clusters, err := app.Store.GetClusters(ctx, run.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(clusters), 1)

	roadmap, err := app.Store.GetRoadmap(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, roadmap)
	for _, item := range roadmap.Items {
		assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, item.DueDate)
	}
}

// TestS2ProviderFailover exercises the Provider Abstraction's health-aware
// failover: a failing primary metrics provider with a healthy secondary
// still yields a Completed run, a transient-failure warning, and
// recorded errors against the primary in the API usage ledger.
func TestS2ProviderFailover(t *testing.T) {
	failover := providers.NewFailoverMetricsProvider(failingMetrics{}, providers.NewMockProvider())
	app := newTestApp(t, failover, 2)
	ctx := context.Background()

	run := models.NewRun("run-s2", "owner-1", []string{"email marketing"}, "us", "en", 1000, time.Now())
	require.NoError(t, app.Store.CreateRun(ctx, run))

	settings := baseSettings()
	err := app.Orchestrator.Execute(ctx, run, settings)
	require.NoError(t, err)

	got, err := app.Store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, got.Status)

	// The Universe stage drains the failover wrapper's ledger and warnings
	// into the run, so the run itself is where the failover trail lands.
	primary, ok := got.APIUsage.ByProvider["primary"]
	require.True(t, ok, "primary provider usage should be recorded on the run")
	assert.Greater(t, primary.Errors, 0)

	foundTransientWarning := false
	for _, w := range got.Warnings {
		if w.Kind == models.WarningProviderTransient {
			foundTransientWarning = true
		}
	}
	assert.True(t, foundTransientWarning, "expected at least one ProviderTransient warning recorded on the run")
}

// TestS3BudgetExceeded exercises budget enforcement: a run whose API usage
// ledger already exceeds its budget limit before a stage dispatch ends
// Failed with BudgetExceeded, and that stage's work is never dispatched.
//
// The spec's literal S3 scenario sets budget_limit=0.01, which the
// orchestrator's own input validation rejects (budget_limit must be >=10,
// per §4.H and §6). We instead use the minimum legal budget_limit and seed
// the usage ledger with a cost already over it, which exercises the same
// pre-dispatch budget check (testable property 13) without contradicting
// the orchestrator's own validation rule.
func TestS3BudgetExceeded(t *testing.T) {
	app := newTestApp(t, providers.NewMockProvider(), 2)
	ctx := context.Background()

	run := models.NewRun("run-s3", "owner-1", []string{"content marketing"}, "us", "en", 10, time.Now())
	run.APIUsage.Record("mock", 1, 0, 11, false) // already over the 10 budget_limit
	require.NoError(t, app.Store.CreateRun(ctx, run))

	settings := baseSettings()
	settings.BudgetLimit = 10

	err := app.Orchestrator.Execute(ctx, run, settings)
	require.Error(t, err)
	assert.Equal(t, errtax.KindBudgetExceeded, errtax.KindOf(err))

	got, err := app.Store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, got.Status)
	require.NotEmpty(t, got.ErrorLog)
	assert.Equal(t, string(errtax.KindBudgetExceeded), got.ErrorLog[len(got.ErrorLog)-1].Kind)

	keywords, err := app.Store.GetKeywords(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, keywords, "expansion must never dispatch once the budget is already exceeded")
}

// cancellingMetrics wraps a MetricsProvider and fires cancel on its first
// bulk call, simulating a user cancelling the run while the Universe
// stage's enrichment batches are in flight.
type cancellingMetrics struct {
	providers.MetricsProvider
	cancel context.CancelFunc
	once   sync.Once
}

func (c *cancellingMetrics) GetBulkKeywordMetrics(ctx context.Context, phrases []string, opts providers.MetricsOpts) ([]providers.MetricsRecord, error) {
	c.once.Do(c.cancel)
	return c.MetricsProvider.GetBulkKeywordMetrics(ctx, phrases, opts)
}

// TestS4CancellationMidUniverse exercises cancellation during the Universe
// stage: the run's context is cancelled while enrichment batches are in
// flight. The run must end Cancelled with no keywords, clusters, or
// roadmap rows persisted.
func TestS4CancellationMidUniverse(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	metrics := &cancellingMetrics{MetricsProvider: providers.NewMockProvider(), cancel: cancel}
	app := newTestApp(t, metrics, 2)

	run := models.NewRun("run-s4", "owner-1", []string{"link building"}, "us", "en", 1000, time.Now())
	require.NoError(t, app.Store.CreateRun(context.Background(), run))

	settings := baseSettings()
	err := app.Orchestrator.Execute(ctx, run, settings)
	require.Error(t, err)

	got, gerr := app.Store.GetRun(context.Background(), run.ID)
	require.NoError(t, gerr)
	assert.Equal(t, models.RunStatusCancelled, got.Status)

	keywords, kerr := app.Store.GetKeywords(context.Background(), run.ID)
	require.NoError(t, kerr)
	assert.Empty(t, keywords, "cancelled universe stage must not persist keywords")

	clusters, cerr := app.Store.GetClusters(context.Background(), run.ID)
	require.NoError(t, cerr)
	assert.Empty(t, clusters)

	roadmap, rerr := app.Store.GetRoadmap(context.Background(), run.ID)
	assert.ErrorIs(t, rerr, store.ErrNotFound)
	assert.Nil(t, roadmap)
}

// TestS5WeightTuningAffectsQuickWins exercises scoring weight sensitivity:
// the same inputs scored under a profile with a heavier ease weight
// produce at least as many quick wins as a profile that de-emphasizes
// ease, while cluster formation (which is independent of scoring weights)
// stays unchanged.
func TestS5WeightTuningAffectsQuickWins(t *testing.T) {
	baseline := baseSettings()
	baseline.ScoringWeights = config.ScoringWeights{
		Dream100: config.ScoringComponentWeights{Volume: 0.5, Intent: 0.2, Relevance: 0.2, Trend: 0.05, Ease: 0.05},
		Tier2:    config.ScoringComponentWeights{Volume: 0.5, Intent: 0.2, Relevance: 0.2, Trend: 0.05, Ease: 0.05},
		Tier3:    config.ScoringComponentWeights{Volume: 0.5, Intent: 0.2, Relevance: 0.2, Trend: 0.05, Ease: 0.05},
	}

	easeHeavy := baseSettings()
	easeHeavy.ScoringWeights = config.ScoringWeights{
		Dream100: config.ScoringComponentWeights{Volume: 0.15, Intent: 0.15, Relevance: 0.1, Trend: 0.1, Ease: 0.5},
		Tier2:    config.ScoringComponentWeights{Volume: 0.15, Intent: 0.15, Relevance: 0.1, Trend: 0.1, Ease: 0.5},
		Tier3:    config.ScoringComponentWeights{Volume: 0.15, Intent: 0.15, Relevance: 0.1, Trend: 0.1, Ease: 0.5},
	}

	runWith := func(id string, settings config.Settings) ([]models.Keyword, []models.Cluster) {
		app := newTestApp(t, providers.NewMockProvider(), 2)
		ctx := context.Background()
		run := models.NewRun(id, "owner-1", []string{"project management"}, "us", "en", 1000, time.Now())
		require.NoError(t, app.Store.CreateRun(ctx, run))
		require.NoError(t, app.Orchestrator.Execute(ctx, run, settings))
		keywords, err := app.Store.GetKeywords(ctx, run.ID)
		require.NoError(t, err)
		clusters, err := app.Store.GetClusters(ctx, run.ID)
		require.NoError(t, err)
		return keywords, clusters
	}

	baselineKeywords, baselineClusters := runWith("run-s5-baseline", baseline)
	easeKeywords, easeClusters := runWith("run-s5-ease", easeHeavy)

	assert.Equal(t, len(baselineClusters), len(easeClusters), "clustering is independent of scoring weights")

	countQuickWins := func(keywords []models.Keyword) int {
		n := 0
		for _, k := range keywords {
			if k.QuickWin {
				n++
			}
		}
		return n
	}
	assert.GreaterOrEqual(t, countQuickWins(easeKeywords), countQuickWins(baselineKeywords),
		"a profile weighting ease more heavily should flag at least as many quick wins")
}

// TestS6Determinism exercises reproducibility: two runs with identical
// seeds, settings, and deterministic mock provider outputs yield
// identical ordered keyword phrase lists, identical cluster assignments,
// and identical blended scores.
func TestS6Determinism(t *testing.T) {
	settings := baseSettings()

	runOnce := func(id string) ([]models.Keyword, []models.Cluster) {
		app := newTestApp(t, providers.NewMockProvider(), 2)
		ctx := context.Background()
		run := models.NewRun(id, "owner-1", []string{"keyword research"}, "us", "en", 1000, time.Now())
		require.NoError(t, app.Store.CreateRun(ctx, run))
		require.NoError(t, app.Orchestrator.Execute(ctx, run, settings))
		keywords, err := app.Store.GetKeywords(ctx, run.ID)
		require.NoError(t, err)
		clusters, err := app.Store.GetClusters(ctx, run.ID)
		require.NoError(t, err)
		return keywords, clusters
	}

	kw1, cl1 := runOnce("run-s6-a")
	kw2, cl2 := runOnce("run-s6-b")

	require.Equal(t, len(kw1), len(kw2))
	for i := range kw1 {
		assert.Equal(t, kw1[i].Phrase, kw2[i].Phrase)
		assert.Equal(t, kw1[i].Tier, kw2[i].Tier)
		assert.InDelta(t, kw1[i].BlendedScore, kw2[i].BlendedScore, 1e-9)
		assert.Equal(t, kw1[i].ClusterID, kw2[i].ClusterID)
	}

	require.Equal(t, len(cl1), len(cl2))
	for i := range cl1 {
		assert.Equal(t, cl1[i].ID, cl2[i].ID)
		assert.Equal(t, cl1[i].Label, cl2[i].Label)
		assert.InDelta(t, cl1[i].Score, cl2[i].Score, 1e-9)
	}
}
