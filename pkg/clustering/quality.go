package clustering

import (
	"github.com/kwforge/pipeline/pkg/mathx"
	"github.com/kwforge/pipeline/pkg/models"
)

// QualityMetrics reports the clustering run's aggregate health (
// step 7).
type QualityMetrics struct {
	WithinClusterSimilarity  float64 // coherence
	BetweenClusterSeparation float64
	Coverage                 float64
	Balance                  float64
	Overall                  float64
}

func computeQuality(members []Member, clusters []models.Cluster, memberClusterID map[string]string, edges []edge, density float64) QualityMetrics {
	coherence := withinClusterSimilarity(members, memberClusterID, edges)
	separation := betweenClusterSeparation(clusters)
	coverage := 0.0
	if len(members) > 0 {
		coverage = float64(len(memberClusterID)) / float64(len(members))
	}
	balance := balanceMetric(clusters)

	overall := 0.30*coherence + 0.25*separation + 0.25*coverage + 0.20*balance

	return QualityMetrics{
		WithinClusterSimilarity:  coherence,
		BetweenClusterSeparation: separation,
		Coverage:                 coverage,
		Balance:                  balance,
		Overall:                  overall,
	}
}

// withinClusterSimilarity is the mean edge weight among edges whose
// endpoints landed in the same final cluster.
func withinClusterSimilarity(members []Member, memberClusterID map[string]string, edges []edge) float64 {
	var sum float64
	var count int
	for _, e := range edges {
		ca, okA := memberClusterID[members[e.a].Phrase]
		cb, okB := memberClusterID[members[e.b].Phrase]
		if okA && okB && ca == cb {
			sum += e.similarity
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// betweenClusterSeparation is 1 minus the mean cosine similarity of
// cluster centroids across all unordered cluster pairs.
func betweenClusterSeparation(clusters []models.Cluster) float64 {
	if len(clusters) < 2 {
		return 1
	}
	var sum float64
	var count int
	for i := 0; i < len(clusters); i++ {
		for j := i + 1; j < len(clusters); j++ {
			sum += mathx.CosineSimilarity(toFloat64From32(clusters[i].Centroid), toFloat64From32(clusters[j].Centroid))
			count++
		}
	}
	if count == 0 {
		return 1
	}
	return mathx.Clamp01(1 - sum/float64(count))
}

// balanceMetric is 1 - stddev(sizes)/mean(sizes), clamped to >= 0.
func balanceMetric(clusters []models.Cluster) float64 {
	if len(clusters) == 0 {
		return 0
	}
	sizes := make([]float64, len(clusters))
	for i, c := range clusters {
		sizes[i] = float64(c.Size)
	}
	mean := mathx.Mean(sizes)
	if mean == 0 {
		return 0
	}
	balance := 1 - mathx.StandardDeviation(sizes)/mean
	if balance < 0 {
		return 0
	}
	return balance
}

func toFloat64From32(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
