// Package scoring implements the Scoring Engine: a pure
// function of a batch of keyword inputs, tier-conditioned weights, and a
// normalization mode, producing blended 0..1 scores, tier buckets,
// quick-win flags, and three independent rankings.
package scoring

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/kwforge/pipeline/pkg/config"
	"github.com/kwforge/pipeline/pkg/mathx"
	"github.com/kwforge/pipeline/pkg/models"
)

// NormalizationMode selects how the volume and trend components are
// normalized across the batch.
type NormalizationMode string

const (
	NormalizationMinMax     NormalizationMode = "minmax"
	NormalizationZScore     NormalizationMode = "zscore"
	NormalizationPercentile NormalizationMode = "percentile"
)

// Input is one item submitted to ScoreBatch.
type Input struct {
	Phrase     string
	ClusterID  string
	Tier       models.Tier
	Volume     int64
	Difficulty float64 // 0..100
	Intent     models.Intent
	Relevance  float64 // 0..1, clamped
	Trend      float64 // -1..1
}

// Result is one scored item, in the same order as the input slice.
type Result struct {
	Phrase        string
	ClusterID     string
	Tier          models.Tier
	BlendedScore  float64
	ScoreTier     string // "high" | "medium" | "low"
	QuickWin      bool
	OverallRank   int
	TierRank      int
	ClusterRank   int
	Components    Components
}

// Components exposes each normalized 0..1 component for explainability.
type Components struct {
	Ease      float64
	Volume    float64
	Intent    float64
	Relevance float64
	Trend     float64
}

// ScoreBatch is the Scoring Engine's sole public entry point: a pure
// function of inputs, weights, and normalization mode (plus "today" when
// seasonal adjustment is enabled). Output order matches input order.
func ScoreBatch(inputs []Input, weights config.ScoringWeights, mode NormalizationMode, quickWinThreshold float64, seasonal []config.SeasonalFactor, today time.Time) []Result {
	if len(inputs) == 0 {
		return nil
	}
	if quickWinThreshold <= 0 {
		quickWinThreshold = 0.7
	}

	volumes := make([]float64, len(inputs))
	trends := make([]float64, len(inputs))
	for i, in := range inputs {
		volumes[i] = float64(in.Volume)
		trends[i] = in.Trend
	}

	clusterVolumes := medianVolumeByCluster(inputs)

	results := make([]Result, len(inputs))
	for i, in := range inputs {
		w := weightsFor(weights, in.Tier)
		comp := Components{
			Ease:      ease(in.Difficulty),
			Volume:    normalizeVolume(float64(in.Volume), volumes, mode),
			Intent:    in.Intent.ComponentScore(),
			Relevance: mathx.Clamp01(in.Relevance),
			Trend:     normalizeTrend(in.Trend, trends, mode),
		}
		blended := mathx.Clamp01(
			w.Volume*comp.Volume +
				w.Intent*comp.Intent +
				w.Relevance*comp.Relevance +
				w.Trend*comp.Trend +
				w.Ease*comp.Ease,
		)

		blended = applySeasonal(blended, in.Phrase, seasonal, today)

		quickWin := comp.Ease >= quickWinThreshold && in.Volume >= 1000 && blended >= 0.6
		if median, ok := clusterVolumes[in.ClusterID]; ok && in.ClusterID != "" {
			quickWin = quickWin && float64(in.Volume) >= median
		}

		results[i] = Result{
			Phrase:       in.Phrase,
			ClusterID:    in.ClusterID,
			Tier:         in.Tier,
			BlendedScore: blended,
			ScoreTier:    scoreTier(blended),
			QuickWin:     quickWin,
			Components:   comp,
		}
	}

	assignRanks(results, inputs)
	return results
}

func ease(difficulty float64) float64 {
	return mathx.Clamp01((100 - difficulty) / 100)
}

func scoreTier(blended float64) string {
	switch {
	case blended >= 0.7:
		return "high"
	case blended >= 0.4:
		return "medium"
	default:
		return "low"
	}
}

func weightsFor(w config.ScoringWeights, tier models.Tier) config.ScoringComponentWeights {
	switch tier {
	case models.TierDream100:
		return w.Dream100
	case models.TierTier2:
		return w.Tier2
	default:
		return w.Tier3
	}
}

// normalizeVolume applies the configured mode, falling back to the
// log10-based formula on a degenerate or single-item batch here
func normalizeVolume(v float64, batch []float64, mode NormalizationMode) float64 {
	if n, ok := tryNormalize(v, batch, mode); ok {
		return n
	}
	return logFallback(v)
}

func normalizeTrend(v float64, batch []float64, mode NormalizationMode) float64 {
	if mode == NormalizationZScore {
		if n, ok := mathx.ZScoreNormalize(v, batch); ok {
			return n
		}
	}
	return mathx.Clamp01((v + 1) / 2)
}

func tryNormalize(v float64, batch []float64, mode NormalizationMode) (float64, bool) {
	switch mode {
	case NormalizationZScore:
		return mathx.ZScoreNormalize(v, batch)
	case NormalizationPercentile:
		if len(batch) <= 1 {
			return 0, false
		}
		return mathx.PercentileRank(v, batch), true
	default:
		return mathx.MinMaxNormalize(v, batch)
	}
}

func logFallback(v float64) float64 {
	return mathx.Clamp01(math.Log10(v+1) / 6)
}

func medianVolumeByCluster(inputs []Input) map[string]float64 {
	byCluster := make(map[string][]float64)
	for _, in := range inputs {
		if in.ClusterID == "" {
			continue
		}
		byCluster[in.ClusterID] = append(byCluster[in.ClusterID], float64(in.Volume))
	}
	medians := make(map[string]float64, len(byCluster))
	for id, vols := range byCluster {
		sorted := append([]float64(nil), vols...)
		sort.Float64s(sorted)
		medians[id] = median(sorted)
	}
	return medians
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func applySeasonal(score float64, phrase string, factors []config.SeasonalFactor, today time.Time) float64 {
	if today.IsZero() {
		return score
	}
	mmdd := today.Format("01-02")
	lowerPhrase := strings.ToLower(phrase)
	for _, f := range factors {
		if !inWindow(mmdd, f.StartMMDD, f.EndMMDD) {
			continue
		}
		for _, p := range f.Phrases {
			if strings.ToLower(p) == lowerPhrase {
				return mathx.Clamp01(score * f.Multiplier)
			}
		}
	}
	return score
}

// inWindow reports whether mmdd falls in [start, end] (inclusive), treating
// start > end as wrapping the end of the MM-DD namespace is NOT supported;
// the window match is literal on start/end.
func inWindow(mmdd, start, end string) bool {
	if start == "" || end == "" {
		return false
	}
	return mmdd >= start && mmdd <= end
}

// assignRanks sets OverallRank (desc by score, tie by volume desc then
// phrase asc), TierRank (within tier), and ClusterRank (within cluster_id).
func assignRanks(results []Result, inputs []Input) {
	volumeByPhrase := make(map[string]int64, len(inputs))
	for _, in := range inputs {
		volumeByPhrase[in.Phrase] = in.Volume
	}

	less := func(a, b Result) bool {
		if a.BlendedScore != b.BlendedScore {
			return a.BlendedScore > b.BlendedScore
		}
		va, vb := volumeByPhrase[a.Phrase], volumeByPhrase[b.Phrase]
		if va != vb {
			return va > vb
		}
		return a.Phrase < b.Phrase
	}

	overall := append([]Result(nil), results...)
	sort.SliceStable(overall, func(i, j int) bool { return less(overall[i], overall[j]) })
	overallRank := make(map[string]int, len(overall))
	for i, r := range overall {
		overallRank[r.Phrase] = i + 1
	}

	byTier := make(map[models.Tier][]Result)
	byCluster := make(map[string][]Result)
	for _, r := range results {
		byTier[r.Tier] = append(byTier[r.Tier], r)
		if r.ClusterID != "" {
			byCluster[r.ClusterID] = append(byCluster[r.ClusterID], r)
		}
	}

	tierRank := make(map[string]int, len(results))
	for _, group := range byTier {
		sort.SliceStable(group, func(i, j int) bool { return less(group[i], group[j]) })
		for i, r := range group {
			tierRank[r.Phrase] = i + 1
		}
	}

	clusterRank := make(map[string]int, len(results))
	for _, group := range byCluster {
		sort.SliceStable(group, func(i, j int) bool { return less(group[i], group[j]) })
		for i, r := range group {
			clusterRank[r.Phrase] = i + 1
		}
	}

	for i := range results {
		results[i].OverallRank = overallRank[results[i].Phrase]
		results[i].TierRank = tierRank[results[i].Phrase]
		if rank, ok := clusterRank[results[i].Phrase]; ok {
			results[i].ClusterRank = rank
		}
	}
}
