package content

import (
	"context"

	"github.com/kailas-cloud/discovery/internal/cache"
	domcontent "github.com/kailas-cloud/discovery/internal/domain/content"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
)

// Cached fronts a Repo with a read-through item cache.
type Cached struct {
	*Repo
	cache *cache.ReadThrough[domcontent.Item]
}

// NewCached wraps repo with c.
func NewCached(repo *Repo, c *cache.ReadThrough[domcontent.Item]) *Cached {
	return &Cached{Repo: repo, cache: c}
}

// Upsert writes the item and refreshes its cache entry.
func (c *Cached) Upsert(ctx context.Context, it *domcontent.Item) error {
	if err := c.Repo.Upsert(ctx, it); err != nil {
		// a stale write means the cached copy may be older than the store
		c.cache.Invalidate(it.ID())
		return err
	}
	c.cache.Put(it.ID(), *it)
	return nil
}

// Get serves an item from cache, loading it on miss.
func (c *Cached) Get(ctx context.Context, id string) (domcontent.Item, error) {
	return c.cache.Get(ctx, id, func(ctx context.Context) (domcontent.Item, error) {
		return c.Repo.Get(ctx, id)
	})
}

// GetMany serves cached items and loads the rest in one round of pipelined reads.
func (c *Cached) GetMany(ctx context.Context, ids []string) (map[string]domcontent.Item, error) {
	out := make(map[string]domcontent.Item, len(ids))
	var missing []string
	for _, id := range ids {
		if it, ok := c.cache.Peek(id); ok {
			out[id] = it
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := c.Repo.GetMany(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, it := range loaded {
		c.cache.Put(id, it)
		out[id] = it
	}
	return out, nil
}

// ListFiltered bypasses the cache.
func (c *Cached) ListFiltered(ctx context.Context, f filter.Filters) ([]domcontent.Item, error) {
	return c.Repo.ListFiltered(ctx, f)
}
