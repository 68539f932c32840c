package content

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/discovery/internal/cache"
	"github.com/kailas-cloud/discovery/internal/domain"
	domcontent "github.com/kailas-cloud/discovery/internal/domain/content"
)

func newTestCached(t *testing.T, ms *mockStore) (*Cached, *cache.ReadThrough[domcontent.Item]) {
	t.Helper()
	c, err := cache.New[domcontent.Item]("content-test", cache.Config{MaxEntries: 100, TTL: time.Minute})
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	t.Cleanup(c.Close)
	return NewCached(New(ms), c), c
}

func TestCached_GetAfterUpsertServedFromCache(t *testing.T) {
	ms := newMockStore()
	r, c := newTestCached(t, ms)
	ctx := context.Background()

	it := newTestItem(t, "c1", "art", "ar", 1, 1)
	if err := r.Upsert(ctx, &it); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	c.Wait()

	got, err := r.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID() != "c1" {
		t.Errorf("id = %q", got.ID())
	}
	if ms.calls["HGetAll"] != 0 {
		t.Errorf("expected cache hit, store was read %d times", ms.calls["HGetAll"])
	}
}

func TestCached_StaleUpsertInvalidates(t *testing.T) {
	ms := newMockStore()
	r, c := newTestCached(t, ms)
	ctx := context.Background()

	v2 := newTestItem(t, "c1", "art", "ar", 1, 2)
	_ = r.Upsert(ctx, &v2)
	c.Wait()

	v1 := newTestItem(t, "c1", "music", "ar", 1, 1)
	if err := r.Upsert(ctx, &v1); !errors.Is(err, domain.ErrStaleVersion) {
		t.Fatalf("expected ErrStaleVersion, got %v", err)
	}
	c.Wait()

	got, err := r.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Category() != "art" {
		t.Errorf("category = %q, want art", got.Category())
	}
}

func TestCached_GetManyLoadsOnlyMissing(t *testing.T) {
	ms := newMockStore()
	r, c := newTestCached(t, ms)
	ctx := context.Background()

	a := newTestItem(t, "a", "art", "ar", 1, 1)
	b := newTestItem(t, "b", "art", "ar", 1, 1)
	_ = r.Upsert(ctx, &a)
	_ = r.Repo.Upsert(ctx, &b) // store only
	c.Wait()

	var requested []string
	ms.hgetAllMultiFn = func(_ context.Context, keys []string) ([]map[string]string, error) {
		requested = keys
		out := make([]map[string]string, len(keys))
		for i, k := range keys {
			out[i] = ms.hashes[k]
		}
		return out, nil
	}

	got, err := r.GetMany(ctx, []string{"a", "b", "missing"})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	if len(requested) != 2 {
		t.Errorf("expected store lookup for b and missing only, got %v", requested)
	}
}
