package search

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/discovery/internal/db"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
	"github.com/kailas-cloud/discovery/internal/repository/content"
)

func TestSearchKNN(t *testing.T) {
	r, ms := newTestRepo(t)

	var got *db.KNNQuery
	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		got = q
		return &db.SearchResult{Total: 2, Entries: []db.SearchEntry{
			{Key: content.KeyPrefix + "a", Score: 0.9, Fields: map[string]string{
				filter.FieldCategory: "art", filter.FieldLanguage: "ar", filter.FieldPopularity: "12.5",
			}},
			{Key: content.KeyPrefix + "b", Score: 0.4, Fields: map[string]string{}},
		}}, nil
	}

	f, _ := filter.New("art", "", nil)
	hits, err := r.SearchKNN(context.Background(), []float32{1, 0}, f, 10)
	if err != nil {
		t.Fatalf("SearchKNN: %v", err)
	}
	if got.IndexName != content.IndexName || got.K != 10 || got.VectorField != content.VectorField() {
		t.Errorf("unexpected query: %+v", got)
	}
	if got.Filters.Category() != "art" {
		t.Errorf("filters not forwarded: %+v", got.Filters)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ContentID != "a" || hits[0].Score != 0.9 || hits[0].Popularity != 12.5 || hits[0].Category != "art" {
		t.Errorf("hit[0] = %+v", hits[0])
	}
	if hits[1].ContentID != "b" || hits[1].Popularity != 0 {
		t.Errorf("hit[1] = %+v", hits[1])
	}
}

func TestSearchKNN_Error(t *testing.T) {
	r, ms := newTestRepo(t)
	ms.searchKNNFn = func(context.Context, *db.KNNQuery) (*db.SearchResult, error) {
		return nil, &db.Error{Op: db.OpSearch, Err: db.ErrIndexNotFound}
	}
	_, err := r.SearchKNN(context.Background(), []float32{1}, filter.Filters{}, 5)
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestSearchBM25(t *testing.T) {
	r, ms := newTestRepo(t)

	var got *db.TextQuery
	ms.searchBM25Fn = func(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
		got = q
		return &db.SearchResult{Total: 1, Entries: []db.SearchEntry{
			{Key: content.KeyPrefix + "a", Score: 7.25, Fields: map[string]string{}},
		}}, nil
	}

	hits, err := r.SearchBM25(context.Background(), []string{"فن", "art"}, filter.Filters{}, 20)
	if err != nil {
		t.Fatalf("SearchBM25: %v", err)
	}
	if len(got.Terms) != 2 || len(got.Fields) != 2 || got.TopK != 20 {
		t.Errorf("unexpected query: %+v", got)
	}
	if len(hits) != 1 || hits[0].Score != 7.25 {
		t.Errorf("hits = %+v", hits)
	}
}

func TestSearchBM25_NoTerms(t *testing.T) {
	r, ms := newTestRepo(t)
	called := false
	ms.searchBM25Fn = func(context.Context, *db.TextQuery) (*db.SearchResult, error) {
		called = true
		return nil, nil
	}

	hits, err := r.SearchBM25(context.Background(), nil, filter.Filters{}, 20)
	if err != nil || hits != nil || called {
		t.Fatalf("expected short-circuit, got %v %v called=%v", hits, err, called)
	}
}

func TestSupportsTextSearch(t *testing.T) {
	r, ms := newTestRepo(t)
	if r.SupportsTextSearch(context.Background()) {
		t.Error("expected false by default")
	}
	ms.supportsTextSearchFn = func(context.Context) bool { return true }
	if !r.SupportsTextSearch(context.Background()) {
		t.Error("expected true")
	}
}
