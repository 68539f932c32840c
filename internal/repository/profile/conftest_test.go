package profile

import (
	"context"
	"strconv"
)

type mockStore struct {
	hashes map[string]map[string]string
	reads  int

	hgetAllFn func(ctx context.Context, key string) (map[string]string, error)
	hsetFn    func(ctx context.Context, key string, fields map[string]string) (bool, error)
}

func newMockStore() *mockStore {
	return &mockStore{hashes: map[string]map[string]string{}}
}

func (m *mockStore) HSetIfNewer(
	ctx context.Context, key, versionField string, version int64, fields map[string]string,
) (bool, error) {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	if cur, ok := m.hashes[key]; ok {
		if v, _ := strconv.ParseInt(cur[versionField], 10, 64); v >= version {
			return false, nil
		}
	}
	m.hashes[key] = fields
	return true, nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m.reads++
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return m.hashes[key], nil
}
