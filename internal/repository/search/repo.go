// Package search runs keyword and vector queries against the content index.
package search

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/discovery/internal/db"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
	"github.com/kailas-cloud/discovery/internal/repository/content"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	SupportsTextSearch(ctx context.Context) bool
}

// Hit is one indexed item matched by a query.
type Hit struct {
	ContentID  string
	Score      float64
	Category   string
	Language   string
	Popularity float64
}

var hitFields = []string{filter.FieldCategory, filter.FieldLanguage, filter.FieldPopularity}

// Repo queries the content index.
type Repo struct {
	store store
}

// New creates a search repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// SupportsTextSearch proxies the capability check from the store.
func (r *Repo) SupportsTextSearch(ctx context.Context) bool {
	return r.store.SupportsTextSearch(ctx)
}

// SearchKNN returns the k items nearest to vec that satisfy filters.
// Hit.Score is cosine similarity in [-1, 1].
func (r *Repo) SearchKNN(ctx context.Context, vec []float32, filters filter.Filters, k int) ([]Hit, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    content.IndexName,
		VectorField:  content.VectorField(),
		Filters:      filters,
		Vector:       vec,
		K:            k,
		ReturnFields: hitFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}
	return toHits(sr), nil
}

// SearchBM25 returns up to k items matching any of terms. Hit.Score is the
// raw BM25 score.
func (r *Repo) SearchBM25(ctx context.Context, terms []string, filters filter.Filters, k int) ([]Hit, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	sr, err := r.store.SearchBM25(ctx, &db.TextQuery{
		IndexName:    content.IndexName,
		Fields:       content.TextFields(),
		Terms:        terms,
		Filters:      filters,
		TopK:         k,
		ReturnFields: hitFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search bm25: %w", err)
	}
	return toHits(sr), nil
}

func toHits(sr *db.SearchResult) []Hit {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}
	hits := make([]Hit, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		popularity, _ := strconv.ParseFloat(e.Fields[filter.FieldPopularity], 64)
		hits = append(hits, Hit{
			ContentID:  content.IDFromKey(e.Key),
			Score:      e.Score,
			Category:   e.Fields[filter.FieldCategory],
			Language:   e.Fields[filter.FieldLanguage],
			Popularity: popularity,
		})
	}
	return hits
}
