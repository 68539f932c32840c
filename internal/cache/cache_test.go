package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/discovery/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterCacheMetrics()
	os.Exit(m.Run())
}

func newTestCache(t *testing.T, entity string) *ReadThrough[string] {
	t.Helper()
	c, err := New[string](entity, Config{MaxEntries: 100, TTL: time.Minute})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestReadThrough_LoadsOnceThenHits(t *testing.T) {
	c := newTestCache(t, "test-hit")
	loads := 0
	load := func(context.Context) (string, error) {
		loads++
		return "value", nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.Get(context.Background(), "k", load)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if v != "value" {
			t.Errorf("got %q", v)
		}
		c.Wait()
	}

	if loads != 1 {
		t.Errorf("loads = %d, want 1", loads)
	}
	if hits := testutil.ToFloat64(metrics.CacheRequestsTotal.WithLabelValues("test-hit", "hit")); hits != 2 {
		t.Errorf("hits = %f, want 2", hits)
	}
}

func TestReadThrough_ErrorsNotCached(t *testing.T) {
	c := newTestCache(t, "test-err")
	errLoad := errors.New("store down")

	_, err := c.Get(context.Background(), "k", func(context.Context) (string, error) { return "", errLoad })
	if !errors.Is(err, errLoad) {
		t.Fatalf("expected load error, got %v", err)
	}
	c.Wait()

	v, err := c.Get(context.Background(), "k", func(context.Context) (string, error) { return "ok", nil })
	if err != nil || v != "ok" {
		t.Errorf("expected reload after error, got %q, %v", v, err)
	}
}

func TestReadThrough_Invalidate(t *testing.T) {
	c := newTestCache(t, "test-inv")
	c.Put("k", "old")
	c.Wait()
	c.Invalidate("k")
	c.Wait()

	v, err := c.Get(context.Background(), "k", func(context.Context) (string, error) { return "new", nil })
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "new" {
		t.Errorf("got %q, want reloaded value", v)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New[int]("x", Config{MaxEntries: 0, TTL: time.Second}); err == nil {
		t.Error("expected error for zero max entries")
	}
	if _, err := New[int]("x", Config{MaxEntries: 10}); err == nil {
		t.Error("expected error for zero ttl")
	}
}

func TestReadThrough_Peek(t *testing.T) {
	c := newTestCache(t, "test-peek")

	if _, ok := c.Peek("k"); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Put("k", "v")
	c.Wait()

	v, ok := c.Peek("k")
	if !ok || v != "v" {
		t.Fatalf("Peek = %q, %v", v, ok)
	}
	if misses := testutil.ToFloat64(metrics.CacheRequestsTotal.WithLabelValues("test-peek", "miss")); misses != 1 {
		t.Errorf("misses = %f, want 1", misses)
	}
}
