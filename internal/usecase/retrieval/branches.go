package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/discovery/internal/domain"
	domprofile "github.com/kailas-cloud/discovery/internal/domain/profile"
	"github.com/kailas-cloud/discovery/internal/domain/search/branch"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
	"github.com/kailas-cloud/discovery/internal/repository/search"
	"github.com/kailas-cloud/discovery/internal/usecase/collab"
	"github.com/kailas-cloud/discovery/internal/usecase/vectorsearch"
)

// TextIndex serves BM25 queries.
type TextIndex interface {
	SupportsTextSearch(ctx context.Context) bool
	SearchBM25(ctx context.Context, terms []string, filters filter.Filters, k int) ([]search.Hit, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// VectorSearcher serves k-NN queries.
type VectorSearcher interface {
	Search(ctx context.Context, vec []float32, filters filter.Filters, k int) ([]vectorsearch.Match, error)
}

// Recommender serves collaborative filtering.
type Recommender interface {
	Recommend(ctx context.Context, p *domprofile.Profile, filters filter.Filters, k int, now time.Time) (collab.Result, error)
}

func depth(in *Input, topK int) int {
	return max(topK, in.Request.Depth())
}

// KeywordBranch retrieves by BM25 over query terms and their expansions.
type KeywordBranch struct {
	index TextIndex
	topK  int
}

// NewKeywordBranch creates the keyword branch.
func NewKeywordBranch(index TextIndex, topK int) *KeywordBranch {
	return &KeywordBranch{index: index, topK: topK}
}

// Name implements Branch.
func (b *KeywordBranch) Name() branch.Branch { return branch.Keyword }

// Available reports whether the backend supports full-text search.
func (b *KeywordBranch) Available(ctx context.Context) bool {
	return b.index.SupportsTextSearch(ctx)
}

// Retrieve implements Branch. Scores are raw BM25.
func (b *KeywordBranch) Retrieve(ctx context.Context, in *Input) (Output, error) {
	terms := in.Query.AllTerms()
	if len(terms) == 0 {
		return Output{}, nil
	}
	hits, err := b.index.SearchBM25(ctx, terms, in.Request.Filters(), depth(in, b.topK))
	if err != nil {
		return Output{}, fmt.Errorf("keyword: %w", err)
	}
	out := Output{Hits: make([]Hit, len(hits))}
	for i, h := range hits {
		out.Hits[i] = Hit{ContentID: h.ContentID, Score: h.Score, Category: h.Category, Popularity: h.Popularity}
	}
	return out, nil
}

// VectorBranch embeds the query and retrieves its nearest items.
type VectorBranch struct {
	embed   Embedder
	vectors VectorSearcher
	topK    int
}

// NewVectorBranch creates the vector branch.
func NewVectorBranch(embed Embedder, vectors VectorSearcher, topK int) *VectorBranch {
	return &VectorBranch{embed: embed, vectors: vectors, topK: topK}
}

// Name implements Branch.
func (b *VectorBranch) Name() branch.Branch { return branch.Vector }

// Retrieve implements Branch. Scores are (cos+1)/2.
func (b *VectorBranch) Retrieve(ctx context.Context, in *Input) (Output, error) {
	text := in.Query.Text()
	if text == "" {
		return Output{}, nil
	}
	emb, err := b.embed.Embed(ctx, text)
	if err != nil {
		return Output{}, fmt.Errorf("vectorize query: %w", err)
	}
	matches, err := b.vectors.Search(ctx, emb.Embedding, in.Request.Filters(), depth(in, b.topK))
	if err != nil {
		return Output{}, fmt.Errorf("vector: %w", err)
	}
	out := Output{Hits: make([]Hit, len(matches))}
	for i, m := range matches {
		out.Hits[i] = Hit{ContentID: m.ContentID, Score: m.Score, Category: m.Category, Popularity: m.Popularity}
	}
	return out, nil
}

// CollabBranch retrieves items recommended for the requesting user.
type CollabBranch struct {
	rec  Recommender
	topK int
}

// NewCollabBranch creates the collaborative branch.
func NewCollabBranch(rec Recommender, topK int) *CollabBranch {
	return &CollabBranch{rec: rec, topK: topK}
}

// Name implements Branch.
func (b *CollabBranch) Name() branch.Branch { return branch.Collab }

// Retrieve implements Branch. Anonymous and cold-start users yield an empty
// cold-start answer.
func (b *CollabBranch) Retrieve(ctx context.Context, in *Input) (Output, error) {
	if in.ProfileErr != nil {
		return Output{}, fmt.Errorf("collab: %w", in.ProfileErr)
	}
	res, err := b.rec.Recommend(ctx, in.Profile, in.Request.Filters(), depth(in, b.topK), in.Now)
	if err != nil {
		return Output{}, fmt.Errorf("collab: %w", err)
	}
	out := Output{Hits: make([]Hit, len(res.Candidates)), Confidence: res.Confidence, ColdStart: res.ColdStart}
	for i, c := range res.Candidates {
		out.Hits[i] = Hit{ContentID: c.ContentID, Score: c.Score, Category: c.Category, Popularity: c.Popularity}
	}
	return out, nil
}
