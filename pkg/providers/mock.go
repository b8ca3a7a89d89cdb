package providers

import (
	"context"
	"hash/fnv"
	"math"
	"time"

	"github.com/kwforge/pipeline/pkg/models"
)

// MockProvider synthesizes deterministic metrics when no real vendor is
// healthy and fallback is enabled. It never claims to be a real vendor:
// every record it returns carries Source = mock and a fixed confidence, so
// downstream consumers can always tell a synthesized result from a real one.
type MockProvider struct{}

// NewMockProvider constructs a MockProvider.
func NewMockProvider() *MockProvider { return &MockProvider{} }

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) GetKeywordMetrics(ctx context.Context, phrase string, opts MetricsOpts) (MetricsRecord, error) {
	return synthesize(phrase), nil
}

func (m *MockProvider) GetBulkKeywordMetrics(ctx context.Context, phrases []string, opts MetricsOpts) ([]MetricsRecord, error) {
	out := make([]MetricsRecord, len(phrases))
	for i, p := range phrases {
		out[i] = synthesize(p)
	}
	return out, nil
}

func (m *MockProvider) GetKeywordSuggestions(ctx context.Context, seed string, limit int, opts MetricsOpts) ([]SuggestionResult, error) {
	suffixes := []string{"guide", "tips", "examples", "best practices", "for beginners", "vs alternatives", "checklist", "tools", "strategy", "case study"}
	if limit <= 0 || limit > len(suffixes) {
		limit = len(suffixes)
	}
	out := make([]SuggestionResult, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, SuggestionResult{Phrase: seed + " " + suffixes[i]})
	}
	return out, nil
}

func (m *MockProvider) Health(ctx context.Context) (ProviderHealth, error) {
	return ProviderHealth{
		Provider:       m.Name(),
		Healthy:        true,
		QuotaLimit:     math.MaxInt64,
		QuotaRemaining: math.MaxInt64,
		ResetAt:        time.Now().Add(24 * time.Hour),
	}, nil
}

// synthesize derives stable pseudo-metrics from a phrase's hash so repeated
// calls for the same phrase in the same run are consistent, satisfying the
// pipeline's determinism property even when backed entirely by the mock.
func synthesize(phrase string) MetricsRecord {
	h := fnv.New32a()
	_, _ = h.Write([]byte(phrase))
	seed := h.Sum32()

	volume := int64(100 + seed%9900)
	difficulty := float64(seed%100) * 0.6 // biased toward easier, 0..60
	competition := float64((seed / 7) % 100)
	trend := float64((seed%200)-100) / 100 // -1..1

	return MetricsRecord{
		Phrase:      phrase,
		Volume:      &volume,
		Difficulty:  &difficulty,
		Competition: &competition,
		Trend:       &trend,
		Source:      models.ProviderSourceMock,
		Confidence:  0.5,
	}
}
