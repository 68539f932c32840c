// Package vectorsearch answers top-K cosine similarity queries, optionally
// restricted to a filtered subset of the catalogue.
package vectorsearch

import (
	"context"
	"fmt"
	"sort"

	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
	"github.com/kailas-cloud/discovery/internal/domain/vector"
)

// Match is one nearest neighbour. Score is (cos+1)/2 in [0,1].
type Match struct {
	ContentID  string
	Score      float64
	Cosine     float64
	Category   string
	Language   string
	Popularity float64
}

// Service implements vector index access.
type Service struct {
	index       Index
	items       ItemLister
	dims        int
	filteredKNN bool
}

// New creates the service. filteredKNN reports whether the index applies
// filters before the k-NN search; when false, filtered queries fall back to
// brute force over the filtered subset.
func New(index Index, items ItemLister, dims int, filteredKNN bool) *Service {
	return &Service{index: index, items: items, dims: dims, filteredKNN: filteredKNN}
}

// Dimensions returns the index generation's embedding size.
func (s *Service) Dimensions() int { return s.dims }

// Search returns up to k items nearest to vec, best first.
func (s *Service) Search(ctx context.Context, vec []float32, filters filter.Filters, k int) ([]Match, error) {
	if len(vec) != s.dims {
		return nil, fmt.Errorf("%w: index %d, query %d", domain.ErrVectorDimMismatch, s.dims, len(vec))
	}
	if k <= 0 {
		return nil, nil
	}
	if filters.IsEmpty() || s.filteredKNN {
		return s.searchIndex(ctx, vec, filters, k)
	}
	return s.searchBruteForce(ctx, vec, filters, k)
}

func (s *Service) searchIndex(ctx context.Context, vec []float32, filters filter.Filters, k int) ([]Match, error) {
	hits, err := s.index.SearchKNN(ctx, vec, filters, k)
	if err != nil {
		return nil, fmt.Errorf("knn: %w", err)
	}
	out := make([]Match, len(hits))
	for i, h := range hits {
		out[i] = Match{
			ContentID:  h.ContentID,
			Score:      vector.SimilarityScore(h.Score),
			Cosine:     h.Score,
			Category:   h.Category,
			Language:   h.Language,
			Popularity: h.Popularity,
		}
	}
	return out, nil
}

// searchBruteForce scores every item in the filtered subset: O(n·d) in the
// subset size, against the index's sub-linear HNSW walk.
func (s *Service) searchBruteForce(ctx context.Context, vec []float32, filters filter.Filters, k int) ([]Match, error) {
	items, err := s.items.ListFiltered(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("list filtered: %w", err)
	}

	out := make([]Match, 0, len(items))
	for i := range items {
		it := &items[i]
		if len(it.Embedding()) != s.dims {
			continue // written by another index generation
		}
		cos := vector.Cosine(vec, it.Embedding())
		out = append(out, Match{
			ContentID:  it.ID(),
			Score:      vector.SimilarityScore(cos),
			Cosine:     cos,
			Category:   it.Category(),
			Language:   it.Language(),
			Popularity: it.Popularity(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ContentID < out[j].ContentID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}
