package interaction

import (
	"context"
	"sort"
	"time"

	"github.com/kailas-cloud/discovery/internal/db"
)

// mockStore keeps sorted sets and plain keys in memory.
type mockStore struct {
	zsets   map[string]map[string]float64
	keys    map[string]time.Duration
	expires map[string]time.Duration

	zaddFn func(ctx context.Context, key string, members []db.ScoredMember) error
}

func newMockStore() *mockStore {
	return &mockStore{
		zsets:   map[string]map[string]float64{},
		keys:    map[string]time.Duration{},
		expires: map[string]time.Duration{},
	}
}

func (m *mockStore) ZAddGreater(ctx context.Context, key string, members []db.ScoredMember) error {
	if m.zaddFn != nil {
		return m.zaddFn(ctx, key, members)
	}
	z, ok := m.zsets[key]
	if !ok {
		z = map[string]float64{}
		m.zsets[key] = z
	}
	for _, sm := range members {
		if cur, ok := z[sm.Member]; !ok || sm.Score > cur {
			z[sm.Member] = sm.Score
		}
	}
	return nil
}

func (m *mockStore) ZRevRangeByScore(
	_ context.Context, key string, minScore, maxScore float64, limit int,
) ([]db.ScoredMember, error) {
	var out []db.ScoredMember
	for member, score := range m.zsets[key] {
		if score >= minScore && score <= maxScore {
			out = append(out, db.ScoredMember{Member: member, Score: score})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) ZRemRangeByScore(_ context.Context, key string, minScore, maxScore float64) error {
	for member, score := range m.zsets[key] {
		if score >= minScore && score <= maxScore {
			delete(m.zsets[key], member)
		}
	}
	return nil
}

func (m *mockStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.expires[key] = ttl
	return nil
}

func (m *mockStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.keys[key]
	return ok, nil
}

func (m *mockStore) SetNX(_ context.Context, key string, _ []byte, ttl time.Duration) (bool, error) {
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = ttl
	return true, nil
}
