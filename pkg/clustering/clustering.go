// Package clustering implements the Clustering Engine: embedding
// acquisition, sparse cosine-similarity edges, average-linkage agglomerative
// merging via a max-heap (per the design notes' redesign of the naive O(N²)
// recursive merge), cluster finalization and labeling, optional LLM label
// enhancement, and quality metrics.
//
// Single-producer, single-run semantics: only one clustering operation may
// be in flight per process; a second concurrent Run returns ErrBusy.
// Callers that need to cluster several runs serialize them (the
// orchestrator holds a process-wide gate around its clustering stage).
package clustering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/kwforge/pipeline/pkg/cache"
	"github.com/kwforge/pipeline/pkg/errtax"
	"github.com/kwforge/pipeline/pkg/models"
	"github.com/kwforge/pipeline/pkg/providers"
)

// ErrBusy is returned when a second clustering operation is attempted
// while one is already in flight in this process.
var ErrBusy = errors.New("clustering: operation already in progress")

// inFlight enforces the one-clustering-operation-per-process rule.
var inFlight atomic.Bool

// Params configures one clustering run ( step 1's validated inputs).
type Params struct {
	SimilarityThreshold float64 // [0.1, 0.9]
	MinClusterSize      int     // >= 2
	MaxClusterSize      int     // > MinClusterSize
	MaxClusters         int
	IntentWeight        float64
	SemanticWeight      float64 // IntentWeight + SemanticWeight ~= 1.0
	EmbeddingBatchSize  int     // default 100
	EnableLabelLLM      bool
}

// Validate enforces this engine's parameter rules.
func (p Params) Validate(n int) error {
	if n < 1 || n > 10000 {
		return errtax.New(errtax.KindInputValidation, "clustering", fmt.Sprintf("input size %d outside [1,10000]", n))
	}
	if p.SimilarityThreshold < 0.1 || p.SimilarityThreshold > 0.9 {
		return errtax.New(errtax.KindInputValidation, "clustering", "similarity_threshold must be in [0.1,0.9]")
	}
	if p.MinClusterSize < 2 {
		return errtax.New(errtax.KindInputValidation, "clustering", "min_cluster_size must be >= 2")
	}
	if p.MaxClusterSize <= p.MinClusterSize {
		return errtax.New(errtax.KindInputValidation, "clustering", "max_cluster_size must exceed min_cluster_size")
	}
	sum := p.IntentWeight + p.SemanticWeight
	if sum < 0.99 || sum > 1.01 {
		return errtax.New(errtax.KindInputValidation, "clustering", "intent_weight + semantic_weight must be ~= 1.0")
	}
	return nil
}

// Member is one keyword entered into clustering.
type Member struct {
	Phrase    string
	Intent    models.Intent
	Volume    int64
	Score     *float64 // blended score, if scoring already ran; nil otherwise
	Embedding []float32
}

// Result is the clustering run's output.
type Result struct {
	Clusters []models.Cluster
	// MemberClusterID maps each input member's phrase to the cluster id it
	// landed in; members omitted from this map are outliers (dropped for
	// falling under MinClusterSize after the merge stops).
	MemberClusterID map[string]string
	Quality         QualityMetrics
	Density         float64 // fraction of possible pairs retained as edges
	Warnings        []string
}

// Engine runs one clustering operation end to end.
type Engine struct {
	embedder providers.EmbeddingProvider
	cache    *cache.Cache
	llm      providers.LLMProvider
	log      *slog.Logger
}

// New constructs an Engine. llm may be nil to skip label enhancement.
func New(embedder providers.EmbeddingProvider, embedCache *cache.Cache, llm providers.LLMProvider, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{embedder: embedder, cache: embedCache, llm: llm, log: log}
}

// Run executes the full pipeline: embedding acquisition, sparse similarity,
// agglomerative merge, finalize, optional label enhancement, quality metrics.
func (e *Engine) Run(ctx context.Context, members []Member, p Params) (Result, error) {
	if !inFlight.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer inFlight.Store(false)

	if err := p.Validate(len(members)); err != nil {
		return Result{}, err
	}

	members, warnings, err := e.acquireEmbeddings(ctx, members, p)
	if err != nil {
		return Result{}, err
	}
	if len(members) == 0 {
		return Result{Quality: QualityMetrics{}, MemberClusterID: map[string]string{}}, nil
	}

	edges, density, err := buildSimilarityEdges(ctx, members, p.SimilarityThreshold)
	if err != nil {
		return Result{}, errtax.Wrap(errtax.KindCancelled, "clustering", "similarity computation cancelled", err)
	}
	nodes := mergeAgglomerative(members, edges, p)

	clusters, memberClusterID := finalize(members, nodes, p)

	if p.EnableLabelLLM && e.llm != nil {
		enhanceLabels(ctx, e.llm, clusters, members, memberClusterID, e.log)
	}

	for i := range clusters {
		var phrases []string
		for _, m := range members {
			if memberClusterID[m.Phrase] == clusters[i].ID {
				phrases = append(phrases, m.Phrase)
			}
		}
		for _, issue := range models.ValidateCluster(&clusters[i], phrases) {
			warnings = append(warnings, fmt.Sprintf("cluster %s %s (%s): %s", issue.ClusterID, issue.Severity, issue.Rule, issue.Detail))
		}
	}

	quality := computeQuality(members, clusters, memberClusterID, edges, density)

	return Result{
		Clusters:        clusters,
		MemberClusterID: memberClusterID,
		Quality:         quality,
		Density:         density,
		Warnings:        warnings,
	}, nil
}
