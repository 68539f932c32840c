package vectorsearch

import (
	"context"

	domcontent "github.com/kailas-cloud/discovery/internal/domain/content"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
	"github.com/kailas-cloud/discovery/internal/repository/search"
)

// Index runs k-NN queries against the vector index.
type Index interface {
	SearchKNN(ctx context.Context, vec []float32, filters filter.Filters, k int) ([]search.Hit, error)
}

// ItemLister enumerates items matching a filter.
type ItemLister interface {
	ListFiltered(ctx context.Context, f filter.Filters) ([]domcontent.Item, error)
}
