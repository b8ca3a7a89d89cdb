// Package cache implements the Embedding Cache: a
// content-addressed cache keyed by the SHA-256 of a normalized phrase, with
// an in-process LRU as the fast layer and an optional Redis-backed durable
// layer behind it. Concurrent requests for the same not-yet-cached key are
// deduplicated so only one computation is ever in flight per key.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kwforge/pipeline/pkg/metrics"
)

// Key returns the content-addressed cache key for a normalized phrase:
// the hex-encoded SHA-256 digest, so equal phrases always map to the same
// key regardless of when or where they were normalized.
func Key(normalizedPhrase string) string {
	sum := sha256.Sum256([]byte(normalizedPhrase))
	return hex.EncodeToString(sum[:])
}

// Stats reports cache effectiveness for the run summary and metrics export.
type Stats struct {
	Hits       int64
	Misses     int64
	DurableHit int64 // hits served from the Redis layer, not the in-process LRU
}

// HitRatio returns Hits / (Hits + Misses), or 0 if nothing has been looked up yet.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Durable is the optional second cache layer behind the in-process LRU.
// A Redis-backed implementation is provided below; callers that don't
// configure Redis simply pass a nil Durable and the cache degrades to
// LRU-only.
type Durable interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, embedding []float32) error
}

// RedisDurable implements Durable on top of github.com/redis/go-redis/v9.
type RedisDurable struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisDurable constructs a RedisDurable. ttl of 0 means entries never expire.
func NewRedisDurable(client *redis.Client, ttl time.Duration) *RedisDurable {
	return &RedisDurable{client: client, ttl: ttl, prefix: "kwpipeline:embed:"}
}

// Get fetches an embedding from Redis, decoding it from its JSON encoding.
func (r *RedisDurable) Get(ctx context.Context, key string) ([]float32, bool, error) {
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, false, fmt.Errorf("decode cached embedding: %w", err)
	}
	return vec, true, nil
}

// Set stores an embedding in Redis, JSON-encoded.
func (r *RedisDurable) Set(ctx context.Context, key string, embedding []float32) error {
	raw, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("encode embedding for cache: %w", err)
	}
	return r.client.Set(ctx, r.prefix+key, raw, r.ttl).Err()
}

// pendingEntry lets concurrent Get-or-compute calls for the same key share
// a single in-flight computation instead of each calling compute().
type pendingEntry struct {
	done chan struct{}
	vec  []float32
	err  error
}

// Cache is the content-addressed embedding cache described above.
type Cache struct {
	mu      sync.Mutex
	lru     *lru.Cache[string, []float32]
	durable Durable
	pending map[string]*pendingEntry
	stats   Stats
	log     *slog.Logger
}

// New constructs a Cache with the given in-process LRU capacity. durable
// may be nil.
func New(capacity int, durable Durable, log *slog.Logger) (*Cache, error) {
	if capacity <= 0 {
		capacity = 10000
	}
	l, err := lru.New[string, []float32](capacity)
	if err != nil {
		return nil, fmt.Errorf("construct lru: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		lru:     l,
		durable: durable,
		pending: make(map[string]*pendingEntry),
		log:     log,
	}, nil
}

// GetOrCompute returns the cached embedding for normalizedPhrase, computing
// it via compute if absent from both cache layers. Concurrent callers for
// the same phrase block on one another's computation rather than each
// calling compute independently.
func (c *Cache) GetOrCompute(ctx context.Context, normalizedPhrase string, compute func(ctx context.Context) ([]float32, error)) ([]float32, error) {
	key := Key(normalizedPhrase)

	if vec, ok := c.lru.Get(key); ok {
		c.recordHit(false)
		return vec, nil
	}

	if c.durable != nil {
		if vec, ok, err := c.durable.Get(ctx, key); err == nil && ok {
			c.recordHit(true)
			c.lru.Add(key, vec)
			return vec, nil
		} else if err != nil {
			c.log.Warn("durable cache read failed, falling back to compute", "err", err)
		}
	}

	entry, owner := c.claimPending(key)
	if !owner {
		<-entry.done
		if entry.err != nil {
			return nil, entry.err
		}
		c.recordHit(false)
		return entry.vec, nil
	}

	c.recordMiss()
	vec, err := compute(ctx)
	if err == nil {
		// Publish to the LRU before clearing the pending entry so a caller
		// arriving in between finds the vector instead of computing again.
		c.lru.Add(key, vec)
	}
	c.resolvePending(key, entry, vec, err)
	if err != nil {
		return nil, err
	}

	if c.durable != nil {
		if err := c.durable.Set(ctx, key, vec); err != nil {
			c.log.Warn("durable cache write failed", "err", err)
		}
	}
	return vec, nil
}

// Peek returns the cached embedding for normalizedPhrase without triggering
// any computation, checking the LRU then the durable layer. It does not
// update hit/miss statistics — callers doing their own batching (as the
// Clustering Engine does) account for hits/misses themselves.
func (c *Cache) Peek(ctx context.Context, normalizedPhrase string) ([]float32, bool) {
	key := Key(normalizedPhrase)
	if vec, ok := c.lru.Get(key); ok {
		return vec, true
	}
	if c.durable == nil {
		return nil, false
	}
	vec, ok, err := c.durable.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	c.lru.Add(key, vec)
	return vec, true
}

// Store writes an embedding directly into both cache layers without going
// through GetOrCompute's pending-computation bookkeeping.
func (c *Cache) Store(ctx context.Context, normalizedPhrase string, embedding []float32) {
	key := Key(normalizedPhrase)
	c.lru.Add(key, embedding)
	if c.durable != nil {
		if err := c.durable.Set(ctx, key, embedding); err != nil {
			c.log.Warn("durable cache write failed", "err", err)
		}
	}
}

// Stats returns a snapshot of cache hit/miss counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Cache) claimPending(key string) (*pendingEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.pending[key]; ok {
		return entry, false
	}
	entry := &pendingEntry{done: make(chan struct{})}
	c.pending[key] = entry
	return entry, true
}

func (c *Cache) resolvePending(key string, entry *pendingEntry, vec []float32, err error) {
	entry.vec = vec
	entry.err = err
	c.mu.Lock()
	delete(c.pending, key)
	c.mu.Unlock()
	close(entry.done)
}

func (c *Cache) recordHit(durable bool) {
	c.mu.Lock()
	c.stats.Hits++
	if durable {
		c.stats.DurableHit++
	}
	stats := c.stats
	c.mu.Unlock()
	metrics.RecordCacheHit(durable)
	metrics.RecordCacheSnapshot(stats.Hits, stats.Misses)
}

func (c *Cache) recordMiss() {
	c.mu.Lock()
	c.stats.Misses++
	stats := c.stats
	c.mu.Unlock()
	metrics.RecordCacheMiss()
	metrics.RecordCacheSnapshot(stats.Hits, stats.Misses)
}
