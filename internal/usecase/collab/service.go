// Package collab scores candidates by blending preference-vector similarity
// with item-item co-visitation over the rolling interaction window.
package collab

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	domprofile "github.com/kailas-cloud/discovery/internal/domain/profile"
	"github.com/kailas-cloud/discovery/internal/domain/search/filter"
	"github.com/kailas-cloud/discovery/internal/domain/vector"
)

// Config tunes the blend and bounds the co-visitation walk.
type Config struct {
	// Lambda weighs co-visitation against similarity.
	Lambda            float64
	MaxSeeds          int
	NeighboursPerSeed int
	ItemsPerNeighbour int
	// MinInteractions recent interactions give full confidence.
	MinInteractions int
	// Parallelism bounds concurrent log reads per request.
	Parallelism int
}

// Candidate is one recommended item.
type Candidate struct {
	ContentID    string
	Score        float64
	Similarity   float64
	CoVisitation float64
	Category     string
	Language     string
	Popularity   float64
}

// Result is the output of Recommend.
type Result struct {
	Candidates []Candidate
	// Confidence in [0,1] grows with the user's recent activity.
	Confidence float64
	// ColdStart marks a user without a preference vector.
	ColdStart bool
}

// Service implements collaborative filtering.
type Service struct {
	log     InteractionLog
	vectors VectorSearcher
	items   ItemReader
	cfg     Config
}

// New creates the service.
func New(log InteractionLog, vectors VectorSearcher, items ItemReader, cfg Config) *Service {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 8
	}
	return &Service{log: log, vectors: vectors, items: items, cfg: cfg}
}

// Recommend returns up to k candidates for the user. A nil or vectorless
// profile is a cold start: an empty result, not an error.
func (s *Service) Recommend(
	ctx context.Context, p *domprofile.Profile, filters filter.Filters, k int, now time.Time,
) (Result, error) {
	if p == nil || len(p.Vector()) == 0 || k <= 0 {
		return Result{ColdStart: true}, nil
	}

	var (
		matches []Candidate
		seeds   []string
		co      map[string]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ms, err := s.vectors.Search(gctx, p.Vector(), filters, k)
		if err != nil {
			return fmt.Errorf("preference knn: %w", err)
		}
		matches = make([]Candidate, len(ms))
		for i, m := range ms {
			matches[i] = Candidate{
				ContentID: m.ContentID, Similarity: m.Score,
				Category: m.Category, Language: m.Language, Popularity: m.Popularity,
			}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		seeds, co, err = s.coVisitation(gctx, p.UserID(), now)
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	byID := make(map[string]*Candidate, len(matches)+len(co))
	for i := range matches {
		byID[matches[i].ContentID] = &matches[i]
	}
	if err := s.hydrate(ctx, p, filters, co, byID); err != nil {
		return Result{}, err
	}

	maxCo := 0
	for _, n := range co {
		maxCo = max(maxCo, n)
	}
	out := make([]Candidate, 0, len(byID))
	for id, c := range byID {
		if maxCo > 0 {
			c.CoVisitation = float64(co[id]) / float64(maxCo)
		}
		c.Score = (1-s.cfg.Lambda)*c.Similarity + s.cfg.Lambda*c.CoVisitation
		out = append(out, *c)
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

	return Result{Candidates: out, Confidence: s.confidence(len(seeds))}, nil
}

func (s *Service) confidence(recent int) float64 {
	if s.cfg.MinInteractions <= 0 {
		return 1
	}
	return min(1, float64(recent)/float64(s.cfg.MinInteractions))
}

// coVisitation counts, per item, the neighbours that touched it in the
// window. Neighbours are users who touched any of the user's recent seeds.
// The user's own seeds are not counted.
func (s *Service) coVisitation(ctx context.Context, userID string, now time.Time) ([]string, map[string]int, error) {
	seeds, err := s.log.RecentItems(ctx, userID, now, s.cfg.MaxSeeds)
	if err != nil {
		return nil, nil, fmt.Errorf("seed items: %w", err)
	}
	if len(seeds) == 0 {
		return nil, nil, nil
	}

	var mu sync.Mutex
	neighbours := make(map[string]struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for _, seed := range seeds {
		seed := seed
		g.Go(func() error {
			users, err := s.log.RecentUsers(gctx, seed, now, s.cfg.NeighboursPerSeed)
			if err != nil {
				return fmt.Errorf("neighbours of %s: %w", seed, err)
			}
			mu.Lock()
			for _, u := range users {
				if u != userID {
					neighbours[u] = struct{}{}
				}
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	own := make(map[string]struct{}, len(seeds))
	for _, id := range seeds {
		own[id] = struct{}{}
	}

	counts := make(map[string]int)
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for u := range neighbours {
		u := u
		g.Go(func() error {
			items, err := s.log.RecentItems(gctx, u, now, s.cfg.ItemsPerNeighbour)
			if err != nil {
				return fmt.Errorf("items of %s: %w", u, err)
			}
			mu.Lock()
			for _, id := range items {
				if _, skip := own[id]; !skip {
					counts[id]++
				}
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return seeds, counts, nil
}

// hydrate loads items surfaced only by co-visitation, computes their
// similarity to the profile and drops those outside filters. Dropped ids are
// removed from co so they do not skew normalization.
func (s *Service) hydrate(
	ctx context.Context, p *domprofile.Profile, filters filter.Filters,
	co map[string]int, byID map[string]*Candidate,
) error {
	var missing []string
	for id := range co {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)

	items, err := s.items.GetMany(ctx, missing)
	if err != nil {
		return fmt.Errorf("hydrate co-visited items: %w", err)
	}
	for _, id := range missing {
		it, ok := items[id]
		if !ok || !filters.Matches(it.Category(), it.Language(), it.Popularity()) {
			delete(co, id)
			continue
		}
		byID[id] = &Candidate{
			ContentID:  id,
			Similarity: vector.SimilarityScore(vector.Cosine(p.Vector(), it.Embedding())),
			Category:   it.Category(),
			Language:   it.Language(),
			Popularity: it.Popularity(),
		}
	}
	return nil
}
