// Package providers implements the Provider Abstraction: one
// interface over keyword-metrics, LLM, and embedding vendors, with
// health-aware selection of an "auto" provider and an explicit mock
// fallback so a degraded run is visible rather than silently wrong.
package providers

import (
	"context"
	"time"

	"github.com/kwforge/pipeline/pkg/models"
)

// MetricsOpts carries per-call options for a metrics request.
type MetricsOpts struct {
	Market   string
	Language string
	Fallback bool // requests mock metrics in place of an error; no provider in this package reads it, so failures are returned as errors
}

// MetricsRecord is the normalized result of a keyword-metrics lookup.
// Fields the vendor didn't return are left nil, never zeroed, so callers
// can distinguish "no data" from "zero volume".
type MetricsRecord struct {
	Phrase      string
	Volume      *int64
	Difficulty  *float64 // normalized 0..100 regardless of vendor scale
	Competition *float64 // normalized 0..100
	Trend       *float64 // -1..1
	Source      models.ProviderSource
	Confidence  float64
	Err         error // set on a per-item failure inside a bulk call
}

// SuggestionResult is one phrase suggestion in the provider's native order.
type SuggestionResult struct {
	Phrase string
}

// ProviderHealth reports the health and quota state of one provider instance.
type ProviderHealth struct {
	Provider       string
	Healthy        bool
	QuotaUsed      int64
	QuotaLimit     int64
	QuotaRemaining int64
	ResetAt        time.Time
	LastLatency    time.Duration
}

// HeadroomFraction is the fraction of quota remaining, used by the auto
// selection policy. Returns 0 when QuotaLimit is 0 to avoid division by zero.
func (h ProviderHealth) HeadroomFraction() float64 {
	if h.QuotaLimit <= 0 {
		return 0
	}
	return float64(h.QuotaRemaining) / float64(h.QuotaLimit)
}

// MetricsProvider is the capability set every keyword-metrics vendor
// implements: no class-inheritance vendor hierarchy, just this flat
// interface plus tagged-variant selection.
type MetricsProvider interface {
	Name() string
	GetKeywordMetrics(ctx context.Context, phrase string, opts MetricsOpts) (MetricsRecord, error)
	GetBulkKeywordMetrics(ctx context.Context, phrases []string, opts MetricsOpts) ([]MetricsRecord, error)
	GetKeywordSuggestions(ctx context.Context, seed string, limit int, opts MetricsOpts) ([]SuggestionResult, error)
	Health(ctx context.Context) (ProviderHealth, error)
}
