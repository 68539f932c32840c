package vectorsearch

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kailas-cloud/discovery/internal/domain"
	domcontent "github.com/kailas-cloud/discovery/internal/domain/content"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
	"github.com/kailas-cloud/discovery/internal/repository/search"
)

type mockIndex struct {
	hits    []search.Hit
	err     error
	calls   int
	filters filter.Filters
}

func (m *mockIndex) SearchKNN(_ context.Context, _ []float32, f filter.Filters, _ int) ([]search.Hit, error) {
	m.calls++
	m.filters = f
	return m.hits, m.err
}

type mockLister struct {
	items []domcontent.Item
	calls int
}

func (m *mockLister) ListFiltered(_ context.Context, _ filter.Filters) ([]domcontent.Item, error) {
	m.calls++
	return m.items, nil
}

func item(id string, emb ...float32) domcontent.Item {
	return domcontent.Reconstruct(domcontent.Params{
		ID: id, Title: id, Language: "en", Category: "art", Embedding: emb, Version: 1,
	})
}

func artFilter(t *testing.T) filter.Filters {
	t.Helper()
	f, err := filter.New("art", "", nil)
	if err != nil {
		t.Fatalf("filter.New: %v", err)
	}
	return f
}

func TestSearch_DimensionMismatch(t *testing.T) {
	s := New(&mockIndex{}, &mockLister{}, 3, true)
	_, err := s.Search(context.Background(), []float32{1, 0}, filter.Filters{}, 5)
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestSearch_IndexScoresNormalized(t *testing.T) {
	idx := &mockIndex{hits: []search.Hit{
		{ContentID: "a", Score: 1},
		{ContentID: "b", Score: 0},
		{ContentID: "c", Score: -1},
	}}
	s := New(idx, &mockLister{}, 2, true)

	got, err := s.Search(context.Background(), []float32{1, 0}, artFilter(t), 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []float64{1, 0.5, 0}
	for i, m := range got {
		if math.Abs(m.Score-want[i]) > 1e-9 {
			t.Errorf("%s score = %v, want %v", m.ContentID, m.Score, want[i])
		}
	}
	if idx.filters.Category() != "art" {
		t.Error("expected filters pushed down to the index")
	}
}

func TestSearch_BruteForceWhenIndexCannotPrefilter(t *testing.T) {
	idx := &mockIndex{}
	lister := &mockLister{items: []domcontent.Item{
		item("far", -1, 0),
		item("near", 1, 0),
		item("mid", 0, 1),
		item("tie", 0, 1),
		item("other-gen", 1, 0, 0),
	}}
	s := New(idx, lister, 2, false)

	got, err := s.Search(context.Background(), []float32{1, 0}, artFilter(t), 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if idx.calls != 0 || lister.calls != 1 {
		t.Fatalf("index calls = %d, lister calls = %d", idx.calls, lister.calls)
	}
	ids := []string{got[0].ContentID, got[1].ContentID, got[2].ContentID}
	if ids[0] != "near" || ids[1] != "mid" || ids[2] != "tie" {
		t.Errorf("order = %v, want [near mid tie]", ids)
	}
}

func TestSearch_UnfilteredAlwaysUsesIndex(t *testing.T) {
	idx := &mockIndex{}
	lister := &mockLister{}
	s := New(idx, lister, 2, false)

	if _, err := s.Search(context.Background(), []float32{1, 0}, filter.Filters{}, 3); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if idx.calls != 1 || lister.calls != 0 {
		t.Errorf("index calls = %d, lister calls = %d", idx.calls, lister.calls)
	}
}

func TestSearch_IndexError(t *testing.T) {
	s := New(&mockIndex{err: errors.New("boom")}, &mockLister{}, 2, true)
	if _, err := s.Search(context.Background(), []float32{1, 0}, filter.Filters{}, 3); err == nil {
		t.Fatal("expected error")
	}
}
