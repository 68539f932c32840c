package db

import "github.com/kailas-cloud/discovery/internal/domain/search/filter"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	VectorField  string
	Filters      filter.Filters
	Vector       []float32
	K            int
	ReturnFields []string
}

// TextQuery is the input for BM25 text search. Terms are OR-ed over Fields.
type TextQuery struct {
	IndexName    string
	Fields       []string
	Terms        []string
	Filters      filter.Filters
	TopK         int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
// Score is cosine similarity in [-1,1] for KNN and the raw BM25 score for text search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
