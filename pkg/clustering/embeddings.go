package clustering

import (
	"context"
	"fmt"

	"github.com/kwforge/pipeline/pkg/metrics"
	"github.com/kwforge/pipeline/pkg/models"
)

// acquireEmbeddings fills in Member.Embedding for every member, checking the
// cache first and batching cache misses through the embedding provider in
// groups of at most EmbeddingBatchSize (default 100). A batch that still
// fails after the provider's own Batcher-level retries is skipped (its
// members dropped) and logged as a warning rather than failing the whole
// run.
func (e *Engine) acquireEmbeddings(ctx context.Context, members []Member, p Params) ([]Member, []string, error) {
	batchSize := p.EmbeddingBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	out := make([]Member, 0, len(members))
	var warnings []string
	var misses []Member

	for _, m := range members {
		if len(m.Embedding) > 0 {
			out = append(out, m)
			continue
		}
		normalized := models.NormalizePhrase(m.Phrase)
		if vec, ok := e.cache.Peek(ctx, normalized); ok {
			metrics.RecordCacheHit(false)
			m.Embedding = vec
			out = append(out, m)
			continue
		}
		metrics.RecordCacheMiss()
		misses = append(misses, m)
	}

	for start := 0; start < len(misses); start += batchSize {
		end := start + batchSize
		if end > len(misses) {
			end = len(misses)
		}
		batch := misses[start:end]
		phrases := make([]string, len(batch))
		for i, m := range batch {
			phrases[i] = m.Phrase
		}

		vectors, err := e.embedder.GetEmbeddings(ctx, phrases)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("embedding batch of %d phrases skipped after retries: %v", len(batch), err))
			continue
		}
		for i, m := range batch {
			if i >= len(vectors) {
				continue
			}
			m.Embedding = vectors[i]
			e.cache.Store(ctx, models.NormalizePhrase(m.Phrase), vectors[i])
			out = append(out, m)
		}
	}

	return out, warnings, nil
}
