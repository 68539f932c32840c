package content

import (
	"context"

	"github.com/kailas-cloud/discovery/internal/domain"
	domcontent "github.com/kailas-cloud/discovery/internal/domain/content"
	contentrepo "github.com/kailas-cloud/discovery/internal/repository/content"
)

// Repository defines the storage contract for content items.
type Repository interface {
	Upsert(ctx context.Context, item *domcontent.Item) error
	Get(ctx context.Context, id string) (domcontent.Item, error)
	EnsureIndex(ctx context.Context, opts contentrepo.IndexOptions) (created bool, err error)
}

// Embedder vectorizes item text when the caller sends no embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
