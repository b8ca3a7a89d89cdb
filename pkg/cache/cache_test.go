package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyIsStableAndContentAddressed(t *testing.T) {
	assert.Equal(t, Key("social selling"), Key("social selling"))
	assert.NotEqual(t, Key("social selling"), Key("cold outreach"))
}

func TestGetOrComputeCachesAfterFirstCall(t *testing.T) {
	c, err := New(10, nil, nil)
	require.NoError(t, err)

	var calls int32
	compute := func(ctx context.Context) ([]float32, error) {
		atomic.AddInt32(&calls, 1)
		return []float32{1, 2, 3}, nil
	}

	vec1, err := c.GetOrCompute(context.Background(), "social selling", compute)
	require.NoError(t, err)
	vec2, err := c.GetOrCompute(context.Background(), "social selling", compute)
	require.NoError(t, err)

	assert.Equal(t, vec1, vec2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Hits)
}

func TestGetOrComputeDedupesConcurrentCallsForSameKey(t *testing.T) {
	c, err := New(10, nil, nil)
	require.NoError(t, err)

	var calls int32
	release := make(chan struct{})
	compute := func(ctx context.Context) ([]float32, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []float32{9}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetOrCompute(context.Background(), "dup phrase", compute)
			assert.NoError(t, err)
		}()
	}

	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrComputePropagatesComputeError(t *testing.T) {
	c, err := New(10, nil, nil)
	require.NoError(t, err)

	wantErr := errors.New("provider down")
	_, err = c.GetOrCompute(context.Background(), "broken phrase", func(ctx context.Context) ([]float32, error) {
		return nil, wantErr
	})
	require.ErrorIs(t, err, wantErr)

	// A failed compute must not poison the cache — a later retry should run compute again.
	var calls int32
	vec, err := c.GetOrCompute(context.Background(), "broken phrase", func(ctx context.Context) ([]float32, error) {
		atomic.AddInt32(&calls, 1)
		return []float32{5}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{5}, vec)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

type fakeDurable struct {
	mu    sync.Mutex
	store map[string][]float32
}

func newFakeDurable() *fakeDurable {
	return &fakeDurable{store: make(map[string][]float32)}
}

func (f *fakeDurable) Get(ctx context.Context, key string) ([]float32, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.store[key]
	return v, ok, nil
}

func (f *fakeDurable) Set(ctx context.Context, key string, embedding []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store[key] = embedding
	return nil
}

func TestGetOrComputeFallsBackToDurableLayer(t *testing.T) {
	durable := newFakeDurable()
	c, err := New(10, durable, nil)
	require.NoError(t, err)

	_, err = c.GetOrCompute(context.Background(), "warm phrase", func(ctx context.Context) ([]float32, error) {
		return []float32{7, 8}, nil
	})
	require.NoError(t, err)

	c2, err := New(10, durable, nil)
	require.NoError(t, err)
	var calls int32
	vec, err := c2.GetOrCompute(context.Background(), "warm phrase", func(ctx context.Context) ([]float32, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("should not be called")
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{7, 8}, vec)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestStatsHitRatio(t *testing.T) {
	s := Stats{Hits: 3, Misses: 1}
	assert.InDelta(t, 0.75, s.HitRatio(), 0.0001)
	assert.Equal(t, 0.0, Stats{}.HitRatio())
}
