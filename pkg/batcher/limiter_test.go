package batcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterAllowsBurstThenThrottles(t *testing.T) {
	l := NewLimiter(LimiterConfig{MaxPerWindow: 2, Window: time.Second, BurstCapacity: 2})
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow(), "burst capacity exhausted, third immediate call should be denied")
}

func TestLimiterWaitRespectsContextCancellation(t *testing.T) {
	l := NewLimiter(LimiterConfig{MaxPerWindow: 1, Window: time.Minute, BurstCapacity: 1})
	assert.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)
	assert.Error(t, err)
}

func TestLimiterObservedRateStaysWithinBudget(t *testing.T) {
	// Testable property: over any window, observed requests <= max_per_window + burst_capacity.
	const maxPerWindow = 5
	const burst = 2
	l := NewLimiter(LimiterConfig{MaxPerWindow: maxPerWindow, Window: time.Second, BurstCapacity: burst})

	allowed := 0
	for i := 0; i < maxPerWindow+burst+10; i++ {
		if l.Allow() {
			allowed++
		}
	}
	assert.LessOrEqual(t, allowed, maxPerWindow+burst)
}
