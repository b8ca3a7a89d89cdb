package expansion

import (
	"context"
	"log/slog"
	"time"

	"github.com/kwforge/pipeline/pkg/batcher"
	"github.com/kwforge/pipeline/pkg/errtax"
	"github.com/kwforge/pipeline/pkg/models"
	"github.com/kwforge/pipeline/pkg/providers"
)

// Params configures one Universe Expansion Engine run.
type Params struct {
	Seeds    []string
	Market   string
	Language string

	MaxDream100      int
	MaxTier2PerDream int
	MaxTier3PerTier2 int

	EnableSERPAnalysis bool
	QualityThreshold   float64
	TargetTotalCount   int
	IntentBatchSize    int
	EnrichBatchSize    int

	// Year is injected rather than read from the clock so a run is
	// reproducible; the orchestrator passes the run's creation year.
	Year int
}

// ProcessingStats counts candidates by tier and by terminal outcome.
type ProcessingStats struct {
	ProposedByTier  map[models.Tier]int
	AcceptedByTier  map[models.Tier]int
	DroppedByReason map[DropReason]int
}

// QualitySummary reports aggregate quality-filter and synthesis statistics
// for the run.
type QualitySummary struct {
	AverageQualityScore  float64
	AcceptanceRate       float64 // accepted / proposed
	SynthesizedFraction  float64 // accepted candidates whose metrics were synthesized, not live
}

// Result is the Universe Expansion Engine's output ( Output).
type Result struct {
	KeywordsByTier  map[models.Tier][]models.Keyword
	CostBreakdown   *models.UsageLedger
	ProcessingStats ProcessingStats
	QualityMetrics  QualitySummary
	Warnings        []models.Warning
	NextStageSeeds  []string
}

// Engine runs the Universe Expansion Engine end to end.
type Engine struct {
	llm      providers.LLMProvider
	embedder providers.EmbeddingProvider
	metrics  providers.MetricsProvider
	enrich   *batcher.Batcher
	log      *slog.Logger
}

// New constructs an Engine. enrich is the Batcher the metrics provider's
// bulk calls are submitted through (rate limit, circuit breaker, retry);
// callers typically construct one Batcher per run per metrics provider.
func New(llm providers.LLMProvider, embedder providers.EmbeddingProvider, metrics providers.MetricsProvider, enrich *batcher.Batcher, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{llm: llm, embedder: embedder, metrics: metrics, enrich: enrich, log: log.With("component", "expansion")}
}

// Run executes the full expansion pipeline: Dream100 → Tier2 → Tier3 →
// cross-tier dedup → enrichment → intent classification → quality filter →
// smart capping. The two halves are also exposed separately as Dream100
// and Universe so the orchestrator can run them as distinct DAG stages.
func (e *Engine) Run(ctx context.Context, p Params, runID string, now time.Time) (*Result, error) {
	dream, err := e.Dream100(ctx, p)
	if err != nil {
		return nil, err
	}
	return e.Universe(ctx, p, dream, runID, now)
}

// Dream100 generates the Dream100 candidate set from the run's seeds via
// LLM semantic expansion ranked by confidence × seed-similarity.
func (e *Engine) Dream100(ctx context.Context, p Params) ([]*Candidate, error) {
	return generateDream100(ctx, e.llm, e.embedder, p.Seeds, p.MaxDream100)
}

// Universe fans each Dream100 candidate out to Tier2 and Tier3, then runs
// the cross-tier dedup, enrichment, intent classification, quality filter,
// and smart cap over the combined candidate set.
func (e *Engine) Universe(ctx context.Context, p Params, dream []*Candidate, runID string, now time.Time) (*Result, error) {
	all := make([]*Candidate, 0, len(dream)*50)
	all = append(all, dream...)

	// Cancellation is checked at every batch boundary: once per Dream100
	// parent during Tier2 fan-out, once per Tier2 parent during Tier3
	// fan-out, and before/after enrichment.
	var tier2All []*Candidate
	for _, d := range dream {
		if err := ctx.Err(); err != nil {
			return nil, errtax.Wrap(errtax.KindCancelled, "expansion", "tier2 fan-out cancelled", err)
		}
		tier2All = append(tier2All, generateTier2(ctx, e.llm, e.metrics, d, p.Year, p.EnableSERPAnalysis, p.MaxTier2PerDream, e.log)...)
	}
	all = append(all, tier2All...)

	var tier3All []*Candidate
	for _, t2 := range tier2All {
		if err := ctx.Err(); err != nil {
			return nil, errtax.Wrap(errtax.KindCancelled, "expansion", "tier3 fan-out cancelled", err)
		}
		tier3All = append(tier3All, generateTier3(ctx, e.metrics, t2, p.EnableSERPAnalysis, p.MaxTier3PerTier2, e.log)...)
	}
	all = append(all, tier3All...)

	proposedByTier := countByTier(all)

	all = dedupeCrossTier(all)

	ledger := models.NewUsageLedger()
	var enrichWarnings []models.Warning
	if e.metrics != nil && e.enrich != nil {
		enrichWarnings = enrichCandidates(ctx, e.metrics, e.enrich, all, p.EnrichBatchSize, ledger, e.log)
		if err := ctx.Err(); err != nil {
			return nil, errtax.Wrap(errtax.KindCancelled, "expansion", "enrichment cancelled", err)
		}
		if reporter, ok := e.metrics.(providers.UsageReporter); ok {
			delta, warnings := reporter.DrainUsage()
			for name, u := range delta.ByProvider {
				ledger.Record(name, u.Requests, u.Tokens, u.CostUSD, u.Errors > 0)
			}
			enrichWarnings = append(enrichWarnings, warnings...)
		}
	} else {
		for _, c := range liveCandidates(all) {
			applySynthesizedMetrics(c)
			c.advance(StateEnriched)
		}
	}

	if e.llm != nil {
		classifyIntent(ctx, e.llm, all, p.IntentBatchSize, e.log)
	} else {
		for _, c := range liveCandidates(all) {
			c.Intent = models.IntentInformational
			c.advance(StateIntentClassified)
		}
	}

	applyQualityFilter(all, p.QualityThreshold)
	applySmartCap(all, p.TargetTotalCount)

	result := buildResult(all, proposedByTier, runID, now)
	result.CostBreakdown = ledger
	result.Warnings = append(result.Warnings, enrichWarnings...)
	return result, nil
}

func countByTier(candidates []*Candidate) map[models.Tier]int {
	out := map[models.Tier]int{}
	for _, c := range candidates {
		out[c.Tier]++
	}
	return out
}

func buildResult(all []*Candidate, proposedByTier map[models.Tier]int, runID string, now time.Time) *Result {
	keywordsByTier := map[models.Tier][]models.Keyword{}
	acceptedByTier := map[models.Tier]int{}
	droppedByReason := map[DropReason]int{}

	var totalQuality float64
	var qualityCount int
	var acceptedCount, synthesizedCount int
	var warnings []models.Warning
	var seeds []string

	for _, c := range all {
		if c.QualityScore > 0 {
			totalQuality += c.QualityScore
			qualityCount++
		}
		if c.State == StateAccepted {
			acceptedCount++
			acceptedByTier[c.Tier]++
			keywordsByTier[c.Tier] = append(keywordsByTier[c.Tier], c.toKeyword(runID, now))
			if c.Synthesized {
				synthesizedCount++
			}
			if c.Tier == models.TierDream100 {
				seeds = append(seeds, c.Phrase)
			}
		} else if c.State == StateDropped {
			droppedByReason[c.DropReason]++
		}
	}

	proposedTotal := 0
	for _, n := range proposedByTier {
		proposedTotal += n
	}

	summary := QualitySummary{}
	if qualityCount > 0 {
		summary.AverageQualityScore = totalQuality / float64(qualityCount)
	}
	if proposedTotal > 0 {
		summary.AcceptanceRate = float64(acceptedCount) / float64(proposedTotal)
	}
	if acceptedCount > 0 {
		summary.SynthesizedFraction = float64(synthesizedCount) / float64(acceptedCount)
	}
	if synthesizedCount > 0 {
		warnings = append(warnings, models.Warning{Kind: models.WarningBatchSkipped, Stage: models.StageUniverse, Message: "one or more enrichment batches fell back to synthesized metrics", At: now})
	}
	if droppedByReason[DropReasonCapped] > 0 {
		warnings = append(warnings, models.Warning{Kind: models.WarningCapExceeded, Stage: models.StageUniverse, Message: "candidate universe exceeded the target cap and was trimmed", At: now})
	}

	return &Result{
		KeywordsByTier: keywordsByTier,
		CostBreakdown:  models.NewUsageLedger(),
		ProcessingStats: ProcessingStats{
			ProposedByTier:  proposedByTier,
			AcceptedByTier:  acceptedByTier,
			DroppedByReason: droppedByReason,
		},
		QualityMetrics: summary,
		Warnings:       warnings,
		NextStageSeeds: seeds,
	}
}

// toKeyword converts an accepted candidate into the shared Keyword model
// consumed by Clustering and Scoring.
func (c *Candidate) toKeyword(runID string, now time.Time) models.Keyword {
	return models.Keyword{
		RunID:        runID,
		Phrase:       c.Phrase,
		Tier:         c.Tier,
		ParentPhrase: c.ParentPhrase,
		Volume:       c.Volume,
		Difficulty:   c.Difficulty,
		Intent:       c.Intent,
		Relevance:    c.Relevance,
		Trend:        c.Trend,
		Source:       c.Source,
		Confidence:   c.Confidence,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
