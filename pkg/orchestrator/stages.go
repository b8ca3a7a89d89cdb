package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kwforge/pipeline/pkg/clustering"
	"github.com/kwforge/pipeline/pkg/config"
	"github.com/kwforge/pipeline/pkg/events"
	"github.com/kwforge/pipeline/pkg/expansion"
	"github.com/kwforge/pipeline/pkg/models"
	"github.com/kwforge/pipeline/pkg/roadmap"
	"github.com/kwforge/pipeline/pkg/scoring"
)

// stageFunc executes one DAG stage against the in-flight run state,
// updating st in place and emitting progress through agg.
type stageFunc func(ctx context.Context, o *Orchestrator, run *models.Run, settings config.Settings, st *runState, agg *events.Aggregator) error

// stageRunners maps every non-Initialization stage to its implementation.
// Expansion and Universe split the Universe Expansion Engine's pipeline in
// two: Expansion generates the Dream100 candidate set, and Universe fans
// it out to Tier2/Tier3, enriches, classifies intent, filters, and caps.
var stageRunners = map[models.Stage]stageFunc{
	models.StageExpansion:  runExpansion,
	models.StageUniverse:   runUniverse,
	models.StageClustering: runClustering,
	models.StageScoring:    runScoring,
	models.StageRoadmap:    runRoadmap,
	models.StageExport:     runExport,
	models.StageCleanup:    runCleanupStage,
}

// expansionParams translates the run's settings into the expansion
// engine's Params; shared by the Expansion and Universe stage runners.
func expansionParams(run *models.Run, settings config.Settings) expansion.Params {
	enrichBatchSize := settings.EmbeddingBatchSize
	return expansion.Params{
		Seeds:              run.Seeds,
		Market:             run.Market,
		Language:           run.Language,
		MaxDream100:        settings.MaxDream100,
		MaxTier2PerDream:   settings.MaxTier2PerDream,
		MaxTier3PerTier2:   settings.MaxTier3PerTier2,
		EnableSERPAnalysis: settings.EnableSERPAnalysis,
		QualityThreshold:   settings.QualityThreshold,
		TargetTotalCount:   settings.MaxTotalKeywords,
		IntentBatchSize:    enrichBatchSize,
		EnrichBatchSize:    enrichBatchSize,
		Year:               run.CreatedAt.Year(),
	}
}

func runExpansion(ctx context.Context, o *Orchestrator, run *models.Run, settings config.Settings, st *runState, agg *events.Aggregator) error {
	agg.UpdateStage(models.StageExpansion, 0, events.StatusStarted, "expansion started", time.Now())

	engine := expansion.New(o.deps.LLM, o.deps.Embedder, o.deps.Metrics, o.deps.EnrichBatcher, nil)
	dream, err := engine.Dream100(ctx, expansionParams(run, settings))
	if err != nil {
		return err
	}

	st.mu.Lock()
	st.dream = dream
	st.mu.Unlock()

	agg.UpdateStage(models.StageExpansion, 1.0, events.StatusCompleted, fmt.Sprintf("generated %d dream100 candidates", len(dream)), time.Now())
	return nil
}

func runUniverse(ctx context.Context, o *Orchestrator, run *models.Run, settings config.Settings, st *runState, agg *events.Aggregator) error {
	agg.UpdateStage(models.StageUniverse, 0, events.StatusStarted, "universe expansion started", time.Now())

	st.mu.Lock()
	dream := st.dream
	st.mu.Unlock()

	engine := expansion.New(o.deps.LLM, o.deps.Embedder, o.deps.Metrics, o.deps.EnrichBatcher, nil)
	result, err := engine.Universe(ctx, expansionParams(run, settings), dream, run.ID, time.Now())
	if err != nil {
		return err
	}

	st.mu.Lock()
	var all []models.Keyword
	for _, tier := range []models.Tier{models.TierDream100, models.TierTier2, models.TierTier3} {
		all = append(all, result.KeywordsByTier[tier]...)
	}
	st.keywords = all
	st.mu.Unlock()

	for _, w := range result.Warnings {
		run.AddWarning(w.Kind, w.Stage, w.Message, time.Now())
	}
	if result.CostBreakdown != nil {
		for provider, usage := range result.CostBreakdown.ByProvider {
			run.APIUsage.Record(provider, usage.Requests, usage.Tokens, usage.CostUSD, usage.Errors > 0)
		}
	}

	if err := o.store.SaveKeywords(ctx, run.ID, all); err != nil {
		return fmt.Errorf("persist keywords: %w", err)
	}

	agg.UpdateStage(models.StageUniverse, 1.0, events.StatusCompleted, fmt.Sprintf("expanded universe to %d keywords", len(all)), time.Now())
	return nil
}

// clusterGate serializes clustering stages across concurrent runs: the
// clustering engine admits one operation per process and rejects the rest
// with ErrBusy, so runs queue here instead of failing.
var clusterGate sync.Mutex

func runClustering(ctx context.Context, o *Orchestrator, run *models.Run, settings config.Settings, st *runState, agg *events.Aggregator) error {
	clusterGate.Lock()
	defer clusterGate.Unlock()

	agg.UpdateStage(models.StageClustering, 0, events.StatusStarted, "clustering started", time.Now())

	st.mu.Lock()
	keywords := st.keywords
	st.mu.Unlock()

	if len(keywords) == 0 {
		agg.UpdateStage(models.StageClustering, 1.0, events.StatusCompleted, "no keywords to cluster", time.Now())
		return nil
	}

	members := make([]clustering.Member, len(keywords))
	for i, k := range keywords {
		members[i] = clustering.Member{
			Phrase: k.Phrase,
			Intent: k.Intent,
			Volume: int64(k.Volume),
		}
	}

	engine := clustering.New(o.deps.Embedder, o.deps.EmbedCache, o.deps.LLM, nil)
	params := clustering.Params{
		SimilarityThreshold: settings.SimilarityThreshold,
		MinClusterSize:      settings.MinClusterSize,
		MaxClusterSize:      maxClusterSize(settings),
		MaxClusters:         settings.MaxClusters,
		IntentWeight:        settings.IntentWeight,
		SemanticWeight:      settings.SemanticWeight,
		EmbeddingBatchSize:  settings.EmbeddingBatchSize,
		EnableLabelLLM:      o.deps.LLM != nil,
	}

	result, err := engine.Run(ctx, members, params)
	if err != nil {
		return err
	}

	now := time.Now()
	clusters := result.Clusters
	for i := range clusters {
		clusters[i].RunID = run.ID
	}

	st.mu.Lock()
	for i, k := range st.keywords {
		if cid, ok := result.MemberClusterID[k.Phrase]; ok {
			id := cid
			st.keywords[i].ClusterID = &id
		}
	}
	st.clusters = clusters
	st.mu.Unlock()

	for _, w := range result.Warnings {
		run.AddWarning(models.WarningQualityGate, models.StageClustering, w, now)
	}

	if err := o.store.SaveClusters(ctx, run.ID, clusters); err != nil {
		return fmt.Errorf("persist clusters: %w", err)
	}
	if err := o.store.SaveKeywords(ctx, run.ID, st.keywords); err != nil {
		return fmt.Errorf("persist clustered keywords: %w", err)
	}

	agg.UpdateStage(models.StageClustering, 1.0, events.StatusCompleted, fmt.Sprintf("formed %d clusters", len(clusters)), now)
	return nil
}

func maxClusterSize(settings config.Settings) int {
	size := settings.MaxTotalKeywords
	if size <= settings.MinClusterSize {
		size = settings.MinClusterSize + 1
	}
	return size
}

func runScoring(ctx context.Context, o *Orchestrator, run *models.Run, settings config.Settings, st *runState, agg *events.Aggregator) error {
	agg.UpdateStage(models.StageScoring, 0, events.StatusStarted, "scoring started", time.Now())

	st.mu.Lock()
	keywords := st.keywords
	st.mu.Unlock()

	inputs := make([]scoring.Input, len(keywords))
	for i, k := range keywords {
		clusterID := ""
		if k.ClusterID != nil {
			clusterID = *k.ClusterID
		}
		inputs[i] = scoring.Input{
			Phrase:     k.Phrase,
			ClusterID:  clusterID,
			Tier:       k.Tier,
			Volume:     int64(k.Volume),
			Difficulty: k.Difficulty,
			Intent:     k.Intent,
			Relevance:  k.Relevance,
			Trend:      k.Trend,
		}
	}

	results := scoring.ScoreBatch(inputs, settings.ScoringWeights, scoring.NormalizationMinMax, settings.QuickWinThreshold, settings.SeasonalFactors, time.Now())

	byPhrase := make(map[string]scoring.Result, len(results))
	for _, r := range results {
		byPhrase[r.Phrase] = r
	}

	st.mu.Lock()
	for i, k := range st.keywords {
		r, ok := byPhrase[k.Phrase]
		if !ok {
			continue
		}
		st.keywords[i].BlendedScore = r.BlendedScore
		st.keywords[i].QuickWin = r.QuickWin
		st.keywords[i].OverallRank = r.OverallRank
		st.keywords[i].TierRank = r.TierRank
		st.keywords[i].ClusterRank = r.ClusterRank
	}
	recomputeClusterScores(st)
	clusters := st.clusters
	keywordsOut := st.keywords
	st.mu.Unlock()

	if err := o.store.SaveKeywords(ctx, run.ID, keywordsOut); err != nil {
		return fmt.Errorf("persist scored keywords: %w", err)
	}
	if err := o.store.SaveClusters(ctx, run.ID, clusters); err != nil {
		return fmt.Errorf("persist cluster scores: %w", err)
	}

	agg.UpdateStage(models.StageScoring, 1.0, events.StatusCompleted, fmt.Sprintf("scored %d keywords", len(results)), time.Now())
	return nil
}

// recomputeClusterScores sets each Cluster.Score to the mean blended score
// of its member keywords. Must be called with st.mu held.
func recomputeClusterScores(st *runState) {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, k := range st.keywords {
		if k.ClusterID == nil {
			continue
		}
		sums[*k.ClusterID] += k.BlendedScore
		counts[*k.ClusterID]++
	}
	for i := range st.clusters {
		id := st.clusters[i].ID
		if counts[id] > 0 {
			st.clusters[i].Score = sums[id] / float64(counts[id])
		}
	}
}

func runRoadmap(ctx context.Context, o *Orchestrator, run *models.Run, settings config.Settings, st *runState, agg *events.Aggregator) error {
	agg.UpdateStage(models.StageRoadmap, 0, events.StatusStarted, "roadmap generation started", time.Now())

	st.mu.Lock()
	keywords := st.keywords
	labelByID := make(map[string]string, len(st.clusters))
	for _, c := range st.clusters {
		labelByID[c.ID] = c.Label
	}
	st.mu.Unlock()

	var inputs []roadmap.Input
	for _, k := range keywords {
		if k.ClusterID == nil {
			continue
		}
		inputs = append(inputs, roadmap.Input{
			Phrase:       k.Phrase,
			ClusterID:    *k.ClusterID,
			ClusterLabel: labelByID[*k.ClusterID],
			Intent:       k.Intent,
			Volume:       k.Volume,
			Difficulty:   k.Difficulty,
			BlendedScore: k.BlendedScore,
			QuickWin:     k.QuickWin,
			TopSERPURLs:  k.TopSERPURLs,
		})
	}

	params := roadmap.Params{
		RunID:            run.ID,
		PostsPerMonth:    settings.PostsPerMonth,
		DurationMonths:   settings.DurationMonths,
		PillarRatio:      settings.PillarRatio,
		QuickWinPriority: settings.QuickWinPriority,
		TeamMembers:      settings.TeamMembers,
		StartDate:        time.Now(),
	}

	rm, warnings := roadmap.Generate(inputs, params)
	for _, w := range warnings {
		run.AddWarning(models.WarningCapExceeded, models.StageRoadmap, w, time.Now())
	}

	st.mu.Lock()
	st.roadmap = rm
	st.mu.Unlock()

	if err := o.store.SaveRoadmap(ctx, rm); err != nil {
		return fmt.Errorf("persist roadmap: %w", err)
	}

	agg.UpdateStage(models.StageRoadmap, 1.0, events.StatusCompleted, fmt.Sprintf("scheduled %d roadmap items", len(rm.Items)), time.Now())
	return nil
}

// runExport is a deliberate no-op: byte-level serialization of the final
// roadmap (CSV/Excel/JSON export) is explicitly out of scope. The stage
// still exists in the DAG so its 2% progress share and job bookkeeping
// are visible to observers.
func runExport(ctx context.Context, o *Orchestrator, run *models.Run, settings config.Settings, st *runState, agg *events.Aggregator) error {
	agg.UpdateStage(models.StageExport, 1.0, events.StatusCompleted, "export artifacts left to caller", time.Now())
	return nil
}

// runCleanupStage is the DAG-visible half of Cleanup; the actual
// best-effort, delayed work happens in Orchestrator.scheduleCleanup after
// the run reaches Completed, so a slow cleanup task never blocks it.
func runCleanupStage(ctx context.Context, o *Orchestrator, run *models.Run, settings config.Settings, st *runState, agg *events.Aggregator) error {
	agg.UpdateStage(models.StageCleanup, 1.0, events.StatusCompleted, "cleanup scheduled", time.Now())
	return nil
}
