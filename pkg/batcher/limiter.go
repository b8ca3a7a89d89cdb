// Package batcher implements the Rate-Limited Batcher: every
// external provider call is submitted through a per-provider Batcher that
// enforces a token-bucket rate limit, bounds in-flight concurrency, retries
// transient failures with jittered exponential backoff, and trips a
// circuit breaker under sustained failure.
package batcher

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// LimiterConfig configures the token-bucket rate limiter for one provider.
type LimiterConfig struct {
	MaxPerWindow  int           // token-bucket steady rate, in requests per Window
	Window        time.Duration
	BurstCapacity int
}

// Limiter wraps golang.org/x/time/rate to express its
// "max_per_window over window, bursts up to burst_capacity" contract in
// terms of the standard token-bucket primitive: a steady rate of
// MaxPerWindow/Window with a bucket size of BurstCapacity.
type Limiter struct {
	rl  *rate.Limiter
	cfg LimiterConfig
}

// NewLimiter constructs a Limiter from the given configuration.
func NewLimiter(cfg LimiterConfig) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	if cfg.MaxPerWindow <= 0 {
		cfg.MaxPerWindow = 1
	}
	if cfg.BurstCapacity <= 0 {
		cfg.BurstCapacity = cfg.MaxPerWindow
	}
	perSecond := float64(cfg.MaxPerWindow) / cfg.Window.Seconds()
	return &Limiter{
		rl:  rate.NewLimiter(rate.Limit(perSecond), cfg.BurstCapacity),
		cfg: cfg,
	}
}

// Wait blocks until a token is available or ctx is done, whichever comes first.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.rl.Wait(ctx)
}

// Allow reports whether a token is immediately available, consuming one if so.
func (l *Limiter) Allow() bool {
	return l.rl.Allow()
}
