package collab

import (
	"context"
	"time"

	domcontent "github.com/kailas-cloud/discovery/internal/domain/content"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
	"github.com/kailas-cloud/discovery/internal/usecase/vectorsearch"
)

// InteractionLog reads the rolling co-interaction log.
type InteractionLog interface {
	RecentItems(ctx context.Context, userID string, now time.Time, limit int) ([]string, error)
	RecentUsers(ctx context.Context, contentID string, now time.Time, limit int) ([]string, error)
}

// VectorSearcher finds items near a vector.
type VectorSearcher interface {
	Search(ctx context.Context, vec []float32, filters filter.Filters, k int) ([]vectorsearch.Match, error)
}

// ItemReader hydrates items surfaced only by co-visitation.
type ItemReader interface {
	GetMany(ctx context.Context, ids []string) (map[string]domcontent.Item, error)
}
