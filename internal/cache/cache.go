// Package cache provides a read-through, TTL-bounded in-process cache used in
// front of the leaf stores.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/kailas-cloud/discovery/internal/metrics"
)

// Config sizes one cache instance.
type Config struct {
	// MaxEntries bounds the number of cached entries (each entry costs 1).
	MaxEntries int64
	TTL        time.Duration
}

// ReadThrough caches values of one entity kind by string key.
type ReadThrough[V any] struct {
	entity string
	ttl    time.Duration
	store  *ristretto.Cache[string, V]
}

// New creates a read-through cache. entity labels metrics ("content", "profile").
func New[V any](entity string, cfg Config) (*ReadThrough[V], error) {
	if cfg.MaxEntries <= 0 {
		return nil, fmt.Errorf("cache %s: max_entries must be positive", entity)
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("cache %s: ttl must be positive", entity)
	}

	store, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters: cfg.MaxEntries * 10,
		MaxCost:     cfg.MaxEntries,
		BufferItems: 64,
		// cost is an entry count, not bytes
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s cache: %w", entity, err)
	}

	return &ReadThrough[V]{entity: entity, ttl: cfg.TTL, store: store}, nil
}

// Get returns the cached value for key or loads, caches and returns it.
// Load errors are returned as-is and never cached.
func (c *ReadThrough[V]) Get(ctx context.Context, key string, load func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.store.Get(key); ok {
		metrics.CacheRequestsTotal.WithLabelValues(c.entity, "hit").Inc()
		return v, nil
	}

	v, err := load(ctx)
	if err != nil {
		metrics.CacheRequestsTotal.WithLabelValues(c.entity, "error").Inc()
		return v, err
	}
	metrics.CacheRequestsTotal.WithLabelValues(c.entity, "miss").Inc()

	c.store.SetWithTTL(key, v, 1, c.ttl)
	return v, nil
}

// Peek returns the cached value without loading. Misses are counted so
// batch callers can load the remainder themselves.
func (c *ReadThrough[V]) Peek(key string) (V, bool) {
	v, ok := c.store.Get(key)
	if ok {
		metrics.CacheRequestsTotal.WithLabelValues(c.entity, "hit").Inc()
	} else {
		metrics.CacheRequestsTotal.WithLabelValues(c.entity, "miss").Inc()
	}
	return v, ok
}

// Put stores a freshly committed value.
func (c *ReadThrough[V]) Put(key string, v V) {
	c.store.SetWithTTL(key, v, 1, c.ttl)
}

// Invalidate drops key so the next Get reloads it.
func (c *ReadThrough[V]) Invalidate(key string) {
	c.store.Del(key)
}

// Close releases the cache's background goroutines.
func (c *ReadThrough[V]) Close() {
	c.store.Close()
}

// Wait blocks until buffered writes are visible to Get.
func (c *ReadThrough[V]) Wait() {
	c.store.Wait()
}
