// Package content handles catalogue upserts from the content intelligence
// pipeline and bootstraps the content index.
package content

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/discovery/internal/domain"
	domcontent "github.com/kailas-cloud/discovery/internal/domain/content"
	contentrepo "github.com/kailas-cloud/discovery/internal/repository/content"
)

// Service handles content items.
type Service struct {
	repo     Repository
	embedder Embedder
	index    contentrepo.IndexOptions
}

// New creates a content service. embedder may be nil, in which case every
// upsert must carry its embedding.
func New(repo Repository, embedder Embedder, index contentrepo.IndexOptions) *Service {
	return &Service{repo: repo, embedder: embedder, index: index}
}

// Dimensions returns the embedding dimensionality items must match.
func (s *Service) Dimensions() int { return s.index.Dimensions }

// Upsert validates and stores an item. Items without an embedding are
// vectorized from title and body. A version not newer than the stored one
// fails with domain.ErrStaleVersion.
func (s *Service) Upsert(ctx context.Context, p domcontent.Params) (domcontent.Item, error) {
	if len(p.Embedding) == 0 && s.embedder != nil && (p.Title != "" || p.Body != "") {
		res, err := s.embedder.Embed(ctx, strings.TrimSpace(p.Title+"\n"+p.Body))
		if err != nil {
			return domcontent.Item{}, fmt.Errorf("vectorize content: %w", err)
		}
		domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)
		p.Embedding = res.Embedding
	}

	item, err := domcontent.New(p, s.index.Dimensions)
	if err != nil {
		return domcontent.Item{}, err
	}
	if err := s.repo.Upsert(ctx, &item); err != nil {
		return domcontent.Item{}, fmt.Errorf("upsert content: %w", err)
	}
	return item, nil
}

// Get returns a stored item.
func (s *Service) Get(ctx context.Context, id string) (domcontent.Item, error) {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return domcontent.Item{}, fmt.Errorf("get content: %w", err)
	}
	return item, nil
}

// EnsureIndex creates the content index if it does not exist yet.
func (s *Service) EnsureIndex(ctx context.Context) (bool, error) {
	created, err := s.repo.EnsureIndex(ctx, s.index)
	if err != nil {
		return false, fmt.Errorf("ensure content index: %w", err)
	}
	return created, nil
}
