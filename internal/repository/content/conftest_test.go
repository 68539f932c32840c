package content

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/discovery/internal/db"
	domcontent "github.com/kailas-cloud/discovery/internal/domain/content"
)

// mockStore keeps hashes in memory; fn fields override individual calls.
type mockStore struct {
	hashes map[string]map[string]string
	calls  map[string]int

	hgetAllMultiFn func(ctx context.Context, keys []string) ([]map[string]string, error)
	scanFn         func(ctx context.Context, pattern string) ([]string, error)
	createIndexFn  func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn  func(ctx context.Context, name string) (bool, error)
}

func newMockStore() *mockStore {
	return &mockStore{hashes: map[string]map[string]string{}, calls: map[string]int{}}
}

func (m *mockStore) HSetIfNewer(
	_ context.Context, key, versionField string, version int64, fields map[string]string,
) (bool, error) {
	m.calls["HSetIfNewer"]++
	if cur, ok := m.hashes[key]; ok {
		if v, _ := strconv.ParseInt(cur[versionField], 10, 64); v >= version {
			return false, nil
		}
	}
	cp := make(map[string]string, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	m.hashes[key] = cp
	return true, nil
}

func (m *mockStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.calls["HGetAll"]++
	return m.hashes[key], nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	m.calls["HGetAllMulti"]++
	if m.hgetAllMultiFn != nil {
		return m.hgetAllMultiFn(ctx, keys)
	}
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		out[i] = m.hashes[k]
	}
	return out, nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range m.hashes {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	m.calls["CreateIndex"]++
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func newTestItem(t *testing.T, id, category, language string, popularity float64, version int64) domcontent.Item {
	t.Helper()
	it, err := domcontent.New(domcontent.Params{
		ID:         id,
		Title:      "title " + id,
		Body:       "body " + id,
		Language:   language,
		Category:   category,
		Popularity: popularity,
		Embedding:  []float32{0.6, 0.8},
		Version:    version,
		UpdatedAt:  time.UnixMilli(1_700_000_000_000).UTC(),
	}, 2)
	if err != nil {
		t.Fatalf("content.New: %v", err)
	}
	return it
}
