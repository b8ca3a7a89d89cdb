package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/kwforge/pipeline/pkg/models"
)

// UsageReporter is implemented by providers that accumulate their own
// per-vendor usage/error counts and transient-failure warnings outside the
// normal MetricsRecord return path — FailoverMetricsProvider is the only
// current implementer. Callers that want that detail reflected on the Run
// (rather than only on the outer provider's own name) type-assert for it
// after a call completes.
type UsageReporter interface {
	DrainUsage() (*models.UsageLedger, []models.Warning)
}

// FailoverMetricsProvider wraps an ordered list of metrics vendors and
// implements MetricsProvider itself: every call is tried against each
// candidate in order until one succeeds, implementing the "health-aware
// failover" half of the Provider Abstraction (Select in selector.go
// implements the other half — picking the best candidate up front from
// Health() alone; this implements falling over mid-call when a selected
// candidate's request itself fails).
type FailoverMetricsProvider struct {
	candidates []MetricsProvider

	mu       sync.Mutex
	usage    *models.UsageLedger
	warnings []models.Warning
}

// NewFailoverMetricsProvider constructs a FailoverMetricsProvider trying
// candidates in the given order on every call.
func NewFailoverMetricsProvider(candidates ...MetricsProvider) *FailoverMetricsProvider {
	return &FailoverMetricsProvider{candidates: candidates, usage: models.NewUsageLedger()}
}

func (f *FailoverMetricsProvider) Name() string { return "failover" }

func (f *FailoverMetricsProvider) record(provider string, requests int, errored bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usage.Record(provider, requests, 0, 0, errored)
}

func (f *FailoverMetricsProvider) warn(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warnings = append(f.warnings, models.Warning{
		Kind:    models.WarningProviderTransient,
		Stage:   models.StageUniverse,
		Message: message,
	})
}

// DrainUsage returns and clears every per-vendor usage record and
// transient-failure warning accumulated since the last drain.
func (f *FailoverMetricsProvider) DrainUsage() (*models.UsageLedger, []models.Warning) {
	f.mu.Lock()
	defer f.mu.Unlock()
	usage := f.usage
	warnings := f.warnings
	f.usage = models.NewUsageLedger()
	f.warnings = nil
	return usage, warnings
}

func (f *FailoverMetricsProvider) GetKeywordMetrics(ctx context.Context, phrase string, opts MetricsOpts) (MetricsRecord, error) {
	var lastErr error
	for _, c := range f.candidates {
		rec, err := c.GetKeywordMetrics(ctx, phrase, opts)
		if err != nil {
			f.record(c.Name(), 1, true)
			f.warn(fmt.Sprintf("metrics provider %s failed, failing over: %v", c.Name(), err))
			lastErr = err
			continue
		}
		f.record(c.Name(), 1, false)
		return rec, nil
	}
	return MetricsRecord{}, fmt.Errorf("all metrics providers failed: %w", lastErr)
}

func (f *FailoverMetricsProvider) GetBulkKeywordMetrics(ctx context.Context, phrases []string, opts MetricsOpts) ([]MetricsRecord, error) {
	var lastErr error
	for _, c := range f.candidates {
		recs, err := c.GetBulkKeywordMetrics(ctx, phrases, opts)
		if err != nil {
			f.record(c.Name(), len(phrases), true)
			f.warn(fmt.Sprintf("metrics provider %s failed for a batch of %d, failing over: %v", c.Name(), len(phrases), err))
			lastErr = err
			continue
		}
		f.record(c.Name(), len(phrases), false)
		return recs, nil
	}
	return nil, fmt.Errorf("all metrics providers failed: %w", lastErr)
}

func (f *FailoverMetricsProvider) GetKeywordSuggestions(ctx context.Context, seed string, limit int, opts MetricsOpts) ([]SuggestionResult, error) {
	var lastErr error
	for _, c := range f.candidates {
		res, err := c.GetKeywordSuggestions(ctx, seed, limit, opts)
		if err != nil {
			lastErr = err
			continue
		}
		return res, nil
	}
	return nil, lastErr
}

// Health reports the first healthy candidate's health, or the first
// candidate's (unhealthy) health if none qualify — giving callers something
// concrete to show rather than a synthesized "failover" pseudo-provider.
func (f *FailoverMetricsProvider) Health(ctx context.Context) (ProviderHealth, error) {
	var first ProviderHealth
	for i, c := range f.candidates {
		h, err := c.Health(ctx)
		if i == 0 {
			first = h
		}
		if err == nil && h.Healthy {
			return h, nil
		}
	}
	if len(f.candidates) == 0 {
		return ProviderHealth{Provider: "failover", Healthy: false}, nil
	}
	return first, nil
}
