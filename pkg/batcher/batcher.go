package batcher

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kwforge/pipeline/pkg/errtax"
	"github.com/kwforge/pipeline/pkg/metrics"
)

// Backoff constants for retrying a transient provider failure:
// first retry waits InitialBackoff, doubling each subsequent attempt up to
// MaxBackoff, jittered by ±JitterFraction to avoid synchronized retries
// across concurrent batch items.
const (
	InitialBackoff  = time.Second
	MaxBackoff      = 30 * time.Second
	BackoffFactor   = 2.0
	JitterFraction  = 0.20
	DefaultMaxRetry = 3
)

// Config configures a Batcher for one provider.
type Config struct {
	Component     string // e.g. "provider.metrics", used in taxonomy errors
	Limiter       LimiterConfig
	Circuit       CircuitConfig
	MaxInFlight   int // bounded concurrency across outstanding Submit calls
	MaxRetries    int
}

// Result is what a submitted call resolves to: either a value or an error.
type Result struct {
	Value any
	Err   error
}

// Future is returned by Submit; Wait blocks until the call completes or ctx
// is done.
type Future struct {
	done chan Result
}

// Wait blocks for the result, or returns ctx.Err() if ctx completes first.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case r := <-f.done:
		return r.Value, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Batcher serializes calls to a provider through a rate limiter, a bounded
// concurrency semaphore, a circuit breaker, and a retry-with-backoff policy
// classified via errtax.Kind.Retryable(). One Batcher is constructed per
// provider instance; the Orchestrator and Provider Abstraction layer submit
// individual requests to it and await their Futures.
type Batcher struct {
	cfg     Config
	limiter *Limiter
	circuit *Circuit
	sem     chan struct{}
	log     *slog.Logger
}

// New constructs a Batcher.
func New(cfg Config, log *slog.Logger) *Batcher {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetry
	}
	if log == nil {
		log = slog.Default()
	}
	return &Batcher{
		cfg:     cfg,
		limiter: NewLimiter(cfg.Limiter),
		circuit: NewCircuit(cfg.Circuit),
		sem:     make(chan struct{}, cfg.MaxInFlight),
		log:     log.With("component", cfg.Component),
	}
}

// Component returns the name this Batcher was configured with, for
// attaching to metrics and log lines recorded by callers.
func (b *Batcher) Component() string {
	return b.cfg.Component
}

// InFlight returns the number of calls currently occupying this
// Batcher's concurrency semaphore.
func (b *Batcher) InFlight() int {
	return len(b.sem)
}

// CircuitOpen reports whether this Batcher's circuit breaker is
// currently open (rejecting calls without invoking fn).
func (b *Batcher) CircuitOpen() bool {
	return b.circuit.State() == gobreaker.StateOpen
}

// Submit enqueues fn for execution under this Batcher's rate limit,
// concurrency bound, circuit breaker, and retry policy. It returns
// immediately with a Future; fn runs on its own goroutine.
func (b *Batcher) Submit(ctx context.Context, fn func(ctx context.Context) (any, error)) *Future {
	f := &Future{done: make(chan Result, 1)}
	go func() {
		f.done <- b.run(ctx, fn)
	}()
	return f
}

func (b *Batcher) run(ctx context.Context, fn func(ctx context.Context) (any, error)) Result {
	select {
	case b.sem <- struct{}{}:
		defer func() { <-b.sem }()
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	}

	var lastErr error
	for attempt := 0; attempt <= b.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := backoffDuration(attempt)
			b.log.Debug("retrying after backoff", "attempt", attempt, "wait", wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return Result{Err: ctx.Err()}
			}
		}

		if err := b.limiter.Wait(ctx); err != nil {
			return Result{Err: err}
		}

		callStart := time.Now()
		val, err := b.circuit.Execute(b.cfg.Component, func() (any, error) {
			return fn(ctx)
		})
		metrics.RecordProviderCall(b.cfg.Component, err, time.Since(callStart), 0)
		metrics.RecordBatcherState(b.cfg.Component, b.InFlight(), b.CircuitOpen())
		if err == nil {
			return Result{Value: val}
		}

		lastErr = err
		kind := errtax.KindOf(err)
		if kind == errtax.KindCircuitOpen || !kind.Retryable() {
			return Result{Err: err}
		}
		b.log.Warn("provider call failed, will retry", "attempt", attempt, "kind", kind, "err", err)
	}
	return Result{Err: errtax.Wrap(errtax.KindProviderPermanent, b.cfg.Component, "retries exhausted", lastErr)}
}

// backoffDuration returns the jittered exponential backoff for the given
// retry attempt (1-indexed: attempt 1 is the first retry).
func backoffDuration(attempt int) time.Duration {
	base := float64(InitialBackoff) * pow(BackoffFactor, attempt-1)
	if base > float64(MaxBackoff) {
		base = float64(MaxBackoff)
	}
	jitter := base * JitterFraction * (2*rand.Float64() - 1)
	d := time.Duration(base + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}
