// Package search serves hybrid discovery requests: query understanding,
// parallel retrieval, weighted fusion and paging.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/discovery/internal/domain"
	domprofile "github.com/kailas-cloud/discovery/internal/domain/profile"
	"github.com/kailas-cloud/discovery/internal/domain/search/branch"
	"github.com/kailas-cloud/discovery/internal/domain/search/request"
	"github.com/kailas-cloud/discovery/internal/domain/search/result"
	"github.com/kailas-cloud/discovery/internal/domain/vector"
	"github.com/kailas-cloud/discovery/internal/logger"
	"github.com/kailas-cloud/discovery/internal/metrics"
	"github.com/kailas-cloud/discovery/internal/usecase/fusion"
	"github.com/kailas-cloud/discovery/internal/usecase/retrieval"
)

// Config bounds the lookups made outside the retrieval deadline.
type Config struct {
	// ProfileTimeout bounds the profile read.
	ProfileTimeout time.Duration
	// HydrateTimeout bounds loading candidate embeddings for personalization.
	HydrateTimeout time.Duration
}

// Service handles search requests.
type Service struct {
	cfg       Config
	analyzer  Analyzer
	retriever Retriever
	fuser     Fuser
	profiles  ProfileReader
	items     ItemReader
	now       func() time.Time
}

// New creates a search service.
func New(
	cfg Config, analyzer Analyzer, retriever Retriever, fuser Fuser, profiles ProfileReader, items ItemReader,
) *Service {
	if cfg.ProfileTimeout <= 0 {
		cfg.ProfileTimeout = 50 * time.Millisecond
	}
	if cfg.HydrateTimeout <= 0 {
		cfg.HydrateTimeout = 50 * time.Millisecond
	}
	return &Service{
		cfg:       cfg,
		analyzer:  analyzer,
		retriever: retriever,
		fuser:     fuser,
		profiles:  profiles,
		items:     items,
		now:       time.Now,
	}
}

// Search returns one page of the fused ranking. Branch failures degrade the
// ranking; only the failure of every branch is returned as an error.
func (s *Service) Search(ctx context.Context, req *request.Request) (result.Page, error) {
	start := time.Now()
	defer func() { metrics.SearchDuration.Observe(time.Since(start).Seconds()) }()

	log := logger.FromContext(ctx)
	requestID := uuid.NewString()

	q := s.analyzer.Understand(req.Query(), req.Session().Locale)
	in := &retrieval.Input{Request: req, Query: q, Now: s.now()}
	in.Profile, in.ProfileErr = s.loadProfile(ctx, req)
	if in.ProfileErr != nil {
		log.Warn("Profile unavailable, searching without personalization",
			zap.String("user_id", req.Session().UserID),
			zap.Error(in.ProfileErr),
		)
	}

	pool, err := s.retriever.Retrieve(ctx, in)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("failed").Inc()
		return result.Page{}, fmt.Errorf("retrieve: %w", err)
	}

	boosts := s.boosts(ctx, in.Profile, pool.Candidates)
	out := s.fuser.Fuse(fusion.Input{
		Candidates: pool.Candidates,
		Reports:    pool.Reports,
		Boosts:     boosts,
	})

	status := "ok"
	if out.Redistributed || degraded(pool.Reports) {
		status = "degraded"
	}
	metrics.SearchRequestsTotal.WithLabelValues(status).Inc()

	return result.Page{
		Results:  paginate(out.Results, req.Offset(), req.PageSize()),
		Total:    len(out.Results),
		Page:     req.Page(),
		PageSize: req.PageSize(),
		Meta: result.Meta{
			RequestID:     requestID,
			Branches:      pool.Reports,
			Weights:       out.Weights,
			Redistributed: out.Redistributed,
			Personalized:  boosts != nil,
		},
	}, nil
}

// loadProfile returns nil for anonymous users and users without a profile.
func (s *Service) loadProfile(ctx context.Context, req *request.Request) (*domprofile.Profile, error) {
	if req.Anonymous() {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProfileTimeout)
	defer cancel()

	p, err := s.profiles.Get(ctx, req.Session().UserID)
	switch {
	case err == nil:
		return &p, nil
	case errors.Is(err, domain.ErrNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %w", domain.ErrProfileStoreUnavailable, err)
	}
}

// boosts maps candidate ids to (cos(profile, item)+1)/2. It returns nil,
// marking personalization unavailable, when there is no profile vector or
// the embeddings cannot be loaded in time.
func (s *Service) boosts(
	ctx context.Context, p *domprofile.Profile, candidates []retrieval.Candidate,
) map[string]float64 {
	if p == nil || len(p.Vector()) == 0 || len(candidates) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.HydrateTimeout)
	defer cancel()

	ids := make([]string, len(candidates))
	for i := range candidates {
		ids[i] = candidates[i].ContentID
	}
	items, err := s.items.GetMany(ctx, ids)
	if err != nil {
		logger.FromContext(ctx).Warn("Candidate hydration failed, skipping personalization", zap.Error(err))
		return nil
	}

	out := make(map[string]float64, len(items))
	for id, it := range items {
		emb := it.Embedding()
		if len(emb) != len(p.Vector()) {
			continue
		}
		out[id] = vector.SimilarityScore(vector.Cosine(p.Vector(), emb))
	}
	return out
}

func paginate(results []result.Ranked, offset, size int) []result.Ranked {
	if offset >= len(results) {
		return []result.Ranked{}
	}
	return results[offset:min(offset+size, len(results))]
}

func degraded(reports map[branch.Branch]result.BranchReport) bool {
	for _, b := range branch.Retrieval {
		if rep, ok := reports[b]; ok && !rep.Status.Answered() {
			return true
		}
	}
	return false
}
