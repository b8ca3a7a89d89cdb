package providers

import (
	"context"
	"fmt"
	"sort"

	"github.com/kwforge/pipeline/pkg/errtax"
)

// Registry holds the set of configured metrics providers and implements the
// "auto" selection policy from : among healthy providers with
// quota remaining, pick the one maximizing quota headroom, breaking ties by
// lowest observed latency; fall back to mock if none are healthy and mock
// fallback is enabled.
type Registry struct {
	providers    []MetricsProvider
	mock         MetricsProvider
	mockEnabled  bool
}

// NewRegistry constructs a Registry. mock may be nil if mockFallback is false.
func NewRegistry(providers []MetricsProvider, mock MetricsProvider, mockFallback bool) *Registry {
	return &Registry{providers: providers, mock: mock, mockEnabled: mockFallback}
}

// Select runs Health() against every registered provider and returns the
// one the auto policy prefers, or the mock provider if none qualify.
func (r *Registry) Select(ctx context.Context) (MetricsProvider, error) {
	type candidate struct {
		provider MetricsProvider
		health   ProviderHealth
	}

	var candidates []candidate
	for _, p := range r.providers {
		h, err := p.Health(ctx)
		if err != nil || !h.Healthy || h.QuotaRemaining <= 0 {
			continue
		}
		candidates = append(candidates, candidate{provider: p, health: h})
	}

	if len(candidates) == 0 {
		if r.mockEnabled && r.mock != nil {
			return r.mock, nil
		}
		return nil, errtax.New(errtax.KindProviderTransient, "provider.registry", "no healthy metrics provider available")
	}

	sort.Slice(candidates, func(i, j int) bool {
		fi, fj := candidates[i].health.HeadroomFraction(), candidates[j].health.HeadroomFraction()
		if fi != fj {
			return fi > fj
		}
		return candidates[i].health.LastLatency < candidates[j].health.LastLatency
	})

	return candidates[0].provider, nil
}

// HealthAll returns the health of every registered provider, for the
// Health() operation's "[{provider, healthy, ...}]" surface.
func (r *Registry) HealthAll(ctx context.Context) ([]ProviderHealth, error) {
	out := make([]ProviderHealth, 0, len(r.providers))
	for _, p := range r.providers {
		h, err := p.Health(ctx)
		if err != nil {
			out = append(out, ProviderHealth{Provider: p.Name(), Healthy: false})
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

// Named returns the provider with the given name, or an error if absent —
// used when the caller requests an explicit vendor rather than "auto".
func (r *Registry) Named(name string) (MetricsProvider, error) {
	for _, p := range r.providers {
		if p.Name() == name {
			return p, nil
		}
	}
	if name == "mock" && r.mock != nil {
		return r.mock, nil
	}
	return nil, fmt.Errorf("unknown provider %q", name)
}
