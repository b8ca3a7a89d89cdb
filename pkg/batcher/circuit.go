package batcher

import (
	"time"

	"github.com/sony/gobreaker"

	"github.com/kwforge/pipeline/pkg/errtax"
)

// CircuitConfig configures the per-provider circuit breaker:
// after ConsecutiveFailures in a row the circuit opens for Cooldown; a
// single probe request is allowed through in the half-open state.
type CircuitConfig struct {
	Name                string
	ConsecutiveFailures uint32
	Cooldown            time.Duration
}

// Circuit wraps gobreaker.CircuitBreaker so callers interact with it in
// terms of the taxonomy: Execute returns errtax.KindCircuitOpen while the
// breaker is open instead of gobreaker's own sentinel.
type Circuit struct {
	cb *gobreaker.CircuitBreaker
}

// NewCircuit builds a Circuit from the given configuration.
func NewCircuit(cfg CircuitConfig) *Circuit {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1, // single probe allowed through while half-open
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
	}
	return &Circuit{cb: gobreaker.NewCircuitBreaker(st)}
}

// Execute runs fn through the breaker. If the breaker is open, fn is never
// called and a KindCircuitOpen taxonomy error is returned.
func (c *Circuit) Execute(component string, fn func() (any, error)) (any, error) {
	result, err := c.cb.Execute(fn)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, errtax.Wrap(errtax.KindCircuitOpen, component, "circuit open", err)
	}
	return result, err
}

// State returns the breaker's current state for observability.
func (c *Circuit) State() gobreaker.State {
	return c.cb.State()
}
