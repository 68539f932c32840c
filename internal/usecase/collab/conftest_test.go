package collab

import (
	"context"
	"sync"
	"testing"
	"time"

	domcontent "github.com/kailas-cloud/discovery/internal/domain/content"
	domprofile "github.com/kailas-cloud/discovery/internal/domain/profile"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
	"github.com/kailas-cloud/discovery/internal/usecase/vectorsearch"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// mockLog serves fixed user→items and item→users adjacency.
type mockLog struct {
	mu        sync.Mutex
	userItems map[string][]string
	itemUsers map[string][]string
	err       error
}

func (m *mockLog) RecentItems(_ context.Context, userID string, _ time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	items := m.userItems[userID]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *mockLog) RecentUsers(_ context.Context, contentID string, _ time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := m.itemUsers[contentID]
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

type mockVectors struct {
	matches []vectorsearch.Match
	err     error
}

func (m *mockVectors) Search(context.Context, []float32, filter.Filters, int) ([]vectorsearch.Match, error) {
	return m.matches, m.err
}

type mockItems struct {
	items map[string]domcontent.Item
	asked []string
}

func (m *mockItems) GetMany(_ context.Context, ids []string) (map[string]domcontent.Item, error) {
	m.asked = append(m.asked, ids...)
	out := make(map[string]domcontent.Item)
	for _, id := range ids {
		if it, ok := m.items[id]; ok {
			out[id] = it
		}
	}
	return out, nil
}

func testItem(id, category string, emb ...float32) domcontent.Item {
	return domcontent.Reconstruct(domcontent.Params{
		ID: id, Title: id, Language: "en", Category: category, Embedding: emb, Version: 1,
	})
}

func testProfile(t *testing.T, userID string, vec ...float32) *domprofile.Profile {
	t.Helper()
	p, err := domprofile.Apply(nil, userID, domprofile.Update{Centroid: vec, Events: 1, LastAt: now}, 0.8, now)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return &p
}

func testConfig() Config {
	return Config{
		Lambda: 0.3, MaxSeeds: 20, NeighboursPerSeed: 50, ItemsPerNeighbour: 50,
		MinInteractions: 4, Parallelism: 4,
	}
}
