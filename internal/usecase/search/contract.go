package search

import (
	"context"

	domcontent "github.com/kailas-cloud/discovery/internal/domain/content"
	domprofile "github.com/kailas-cloud/discovery/internal/domain/profile"
	domquery "github.com/kailas-cloud/discovery/internal/domain/search/query"
	"github.com/kailas-cloud/discovery/internal/usecase/fusion"
	"github.com/kailas-cloud/discovery/internal/usecase/retrieval"
)

// Analyzer turns raw query text into a structured query.
type Analyzer interface {
	Understand(raw, locale string) domquery.Query
}

// Retriever fans a request out to the retrieval branches.
type Retriever interface {
	Retrieve(ctx context.Context, in *retrieval.Input) (retrieval.Pool, error)
}

// Fuser ranks a candidate pool.
type Fuser interface {
	Fuse(in fusion.Input) fusion.Output
}

// ProfileReader reads committed user profiles.
type ProfileReader interface {
	Get(ctx context.Context, userID string) (domprofile.Profile, error)
}

// ItemReader hydrates candidate embeddings for personalization.
type ItemReader interface {
	GetMany(ctx context.Context, ids []string) (map[string]domcontent.Item, error)
}
