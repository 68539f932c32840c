package collab

import (
	"context"
	"errors"
	"math"
	"testing"

	domcontent "github.com/kailas-cloud/discovery/internal/domain/content"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
	"github.com/kailas-cloud/discovery/internal/usecase/vectorsearch"
)

func TestRecommend_ColdStart(t *testing.T) {
	s := New(&mockLog{}, &mockVectors{}, &mockItems{}, testConfig())

	res, err := s.Recommend(context.Background(), nil, filter.Filters{}, 10, now)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if !res.ColdStart || len(res.Candidates) != 0 || res.Confidence != 0 {
		t.Errorf("expected empty cold start, got %+v", res)
	}
}

func TestRecommend_SimilarityOnly(t *testing.T) {
	vectors := &mockVectors{matches: []vectorsearch.Match{
		{ContentID: "a", Score: 0.9},
		{ContentID: "b", Score: 0.7},
	}}
	s := New(&mockLog{}, vectors, &mockItems{}, testConfig())

	res, err := s.Recommend(context.Background(), testProfile(t, "u1", 1, 0), filter.Filters{}, 10, now)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if res.ColdStart {
		t.Fatal("did not expect cold start")
	}
	if len(res.Candidates) != 2 || res.Candidates[0].ContentID != "a" {
		t.Fatalf("candidates = %+v", res.Candidates)
	}
	if math.Abs(res.Candidates[0].Score-0.7*0.9) > 1e-9 {
		t.Errorf("score = %v, want %v", res.Candidates[0].Score, 0.7*0.9)
	}
	if res.Confidence != 0 {
		t.Errorf("confidence = %v, want 0 without recent interactions", res.Confidence)
	}
}

func TestRecommend_BlendsCoVisitation(t *testing.T) {
	// u1 touched s1,s2. Neighbours u2,u3 touched s1; u3 also s2.
	// u2 → x; u3 → x, y. co(x)=2, co(y)=1.
	log := &mockLog{
		userItems: map[string][]string{
			"u1": {"s1", "s2"},
			"u2": {"s1", "x"},
			"u3": {"s1", "s2", "x", "y"},
		},
		itemUsers: map[string][]string{
			"s1": {"u1", "u2", "u3"},
			"s2": {"u1", "u3"},
		},
	}
	vectors := &mockVectors{matches: []vectorsearch.Match{{ContentID: "x", Score: 0.5}}}
	items := &mockItems{items: map[string]domcontent.Item{
		"y": testItem("y", "art", 1, 0),
	}}
	s := New(log, vectors, items, testConfig())

	res, err := s.Recommend(context.Background(), testProfile(t, "u1", 1, 0), filter.Filters{}, 10, now)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}

	byID := map[string]Candidate{}
	for _, c := range res.Candidates {
		byID[c.ContentID] = c
	}
	if len(byID) != 2 {
		t.Fatalf("candidates = %+v", res.Candidates)
	}
	if _, ok := byID["s1"]; ok {
		t.Error("own seed must not be recommended via co-visitation")
	}

	x := byID["x"]
	if x.CoVisitation != 1 || math.Abs(x.Score-(0.7*0.5+0.3*1)) > 1e-9 {
		t.Errorf("x = %+v", x)
	}
	y := byID["y"]
	if y.CoVisitation != 0.5 || math.Abs(y.Similarity-1) > 1e-6 {
		t.Errorf("y = %+v", y)
	}
	if len(items.asked) != 1 || items.asked[0] != "y" {
		t.Errorf("hydrated %v, want only y", items.asked)
	}
	if res.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5 (2 of 4)", res.Confidence)
	}
}

func TestRecommend_CoVisitedItemsHonorFilters(t *testing.T) {
	log := &mockLog{
		userItems: map[string][]string{"u1": {"s1"}, "u2": {"s1", "music-item", "art-item"}},
		itemUsers: map[string][]string{"s1": {"u1", "u2"}},
	}
	items := &mockItems{items: map[string]domcontent.Item{
		"music-item": testItem("music-item", "music", 1, 0),
		"art-item":   testItem("art-item", "art", 1, 0),
	}}
	f, _ := filter.New("art", "", nil)
	s := New(log, &mockVectors{}, items, testConfig())

	res, err := s.Recommend(context.Background(), testProfile(t, "u1", 1, 0), f, 10, now)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(res.Candidates) != 1 || res.Candidates[0].ContentID != "art-item" {
		t.Fatalf("candidates = %+v", res.Candidates)
	}
}

func TestRecommend_DeterministicOrderAndLimit(t *testing.T) {
	vectors := &mockVectors{matches: []vectorsearch.Match{
		{ContentID: "c", Score: 0.5},
		{ContentID: "a", Score: 0.5},
		{ContentID: "b", Score: 0.5},
	}}
	s := New(&mockLog{}, vectors, &mockItems{}, testConfig())

	for i := 0; i < 5; i++ {
		res, err := s.Recommend(context.Background(), testProfile(t, "u1", 1, 0), filter.Filters{}, 2, now)
		if err != nil {
			t.Fatalf("Recommend: %v", err)
		}
		if len(res.Candidates) != 2 || res.Candidates[0].ContentID != "a" || res.Candidates[1].ContentID != "b" {
			t.Fatalf("run %d: candidates = %+v", i, res.Candidates)
		}
	}
}

func TestRecommend_LogError(t *testing.T) {
	s := New(&mockLog{err: errors.New("down")}, &mockVectors{}, &mockItems{}, testConfig())
	if _, err := s.Recommend(context.Background(), testProfile(t, "u1", 1, 0), filter.Filters{}, 5, now); err == nil {
		t.Fatal("expected error")
	}
}
