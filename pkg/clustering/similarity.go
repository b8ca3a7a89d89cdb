package clustering

import (
	"context"

	"github.com/kwforge/pipeline/pkg/mathx"
)

// edge is one retained similarity pair between two input member indices.
// Only pairs with similarity >= threshold are kept, bounding memory to the
// sparse graph per the design notes ("bound memory by storing only edges
// >= threshold").
type edge struct {
	a, b       int
	similarity float64
}

// buildSimilarityEdges computes cosine similarity for every unordered pair
// of members and retains only those at or above threshold. Returns the edge
// list and the density (retained pairs / possible pairs). Cancellation is
// checked every 10,000 comparisons.
func buildSimilarityEdges(ctx context.Context, members []Member, threshold float64) ([]edge, float64, error) {
	n := len(members)
	if n < 2 {
		return nil, 0, nil
	}

	vectors := make([][]float64, n)
	for i, m := range members {
		vectors[i] = toFloat64(m.Embedding)
	}

	var edges []edge
	possible := n * (n - 1) / 2
	comparisons := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if comparisons%10000 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, 0, err
				}
			}
			comparisons++
			sim := mathx.CosineSimilarity(vectors[i], vectors[j])
			if sim >= threshold {
				edges = append(edges, edge{a: i, b: j, similarity: sim})
			}
		}
	}

	density := 0.0
	if possible > 0 {
		density = float64(len(edges)) / float64(possible)
	}
	return edges, density, nil
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
