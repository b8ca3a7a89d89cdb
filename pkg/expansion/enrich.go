package expansion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kwforge/pipeline/pkg/batcher"
	"github.com/kwforge/pipeline/pkg/models"
	"github.com/kwforge/pipeline/pkg/providers"
)

// enrichCandidates batches candidates through GetBulkKeywordMetrics,
// submitting each batch through b so the call inherits
// rate limiting, bounded concurrency, the circuit breaker, and
// retry-with-backoff. A batch that still fails after the Batcher exhausts
// its retries gets synthesized metrics for every candidate in it instead of
// failing the run. Every batch's request/error count is recorded against
// metrics.Name() in ledger, and a failed batch appends a ProviderTransient
// warning — the run-visible trail the failover/budget logic inspects.
func enrichCandidates(ctx context.Context, metrics providers.MetricsProvider, b *batcher.Batcher, candidates []*Candidate, batchSize int, ledger *models.UsageLedger, log *slog.Logger) []models.Warning {
	if batchSize <= 0 {
		batchSize = 100
	}
	log = orDefaultLog(log)
	live := liveCandidates(candidates)

	var warnings []models.Warning

	futures := make([]*batcher.Future, 0, (len(live)+batchSize-1)/batchSize)
	batches := make([][]*Candidate, 0, cap(futures))
	for i := 0; i < len(live); i += batchSize {
		end := i + batchSize
		if end > len(live) {
			end = len(live)
		}
		batch := live[i:end]
		batches = append(batches, batch)

		phrases := make([]string, len(batch))
		for j, c := range batch {
			phrases[j] = c.Phrase
		}
		futures = append(futures, b.Submit(ctx, func(ctx context.Context) (any, error) {
			return metrics.GetBulkKeywordMetrics(ctx, phrases, providers.MetricsOpts{})
		}))
	}

	for i, f := range futures {
		batch := batches[i]
		val, err := f.Wait(ctx)
		if err != nil {
			log.Warn("bulk enrichment batch failed after retries, synthesizing metrics", "batch_size", len(batch), "err", err)
			if ledger != nil {
				ledger.Record(metrics.Name(), len(batch), 0, 0, true)
			}
			warnings = append(warnings, models.Warning{
				Kind:    models.WarningProviderTransient,
				Stage:   models.StageUniverse,
				Message: fmt.Sprintf("metrics provider %s: batch of %d failed after retries: %v", metrics.Name(), len(batch), err),
				At:      time.Now(),
			})
			for _, c := range batch {
				applySynthesizedMetrics(c)
				c.advance(StateEnriched)
			}
			continue
		}
		if ledger != nil {
			ledger.Record(metrics.Name(), len(batch), 0, 0, false)
		}
		records, _ := val.([]providers.MetricsRecord)
		byPhrase := make(map[string]providers.MetricsRecord, len(records))
		for _, r := range records {
			byPhrase[r.Phrase] = r
		}
		for _, c := range batch {
			r, ok := byPhrase[c.Phrase]
			if !ok || r.Err != nil {
				applySynthesizedMetrics(c)
				c.advance(StateEnriched)
				continue
			}
			applyMetricsRecord(c, r)
			c.advance(StateEnriched)
		}
	}

	return warnings
}

func applyMetricsRecord(c *Candidate, r providers.MetricsRecord) {
	if r.Volume != nil {
		c.Volume = uint32(*r.Volume)
	}
	if r.Difficulty != nil {
		c.Difficulty = *r.Difficulty
	}
	if r.Trend != nil {
		c.Trend = *r.Trend
	}
	c.Source = r.Source
	c.Confidence = r.Confidence
}

// tierBaseline is the rough expected-volume baseline per tier used only to
// synthesize a plausible estimate when a bulk enrichment call can't be
// completed; it is not a scoring input once real metrics are available.
var tierBaseline = map[models.Tier]float64{
	models.TierDream100: 5000,
	models.TierTier2:    800,
	models.TierTier3:    150,
}

// applySynthesizedMetrics fills in volume/difficulty/confidence from the
// candidate's tier and phrase length, its "volume = round(
// estimated_from_tier_and_length)" rule. Longer phrases are assumed lower
// volume and lower difficulty (more specific, less contested).
func applySynthesizedMetrics(c *Candidate) {
	base := tierBaseline[c.Tier]
	if base == 0 {
		base = 100
	}
	tokens := lengthTokens(c.Phrase)
	lengthFactor := 1.0
	if tokens > 2 {
		lengthFactor = 1.0 / float64(tokens-1)
	}
	c.Volume = uint32(base * lengthFactor)
	if c.Volume == 0 {
		c.Volume = 10
	}

	difficulty := 70.0 - float64(tokens)*5
	if difficulty < 5 {
		difficulty = 5
	}
	if difficulty > 90 {
		difficulty = 90
	}
	c.Difficulty = difficulty
	c.Trend = 0
	c.Source = models.ProviderSourceSynthesized
	c.Confidence = 0.3
	c.Synthesized = true
}

func liveCandidates(candidates []*Candidate) []*Candidate {
	out := make([]*Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.isDropped() {
			out = append(out, c)
		}
	}
	return out
}
