// Package retrieval fans a search out to the keyword, vector and
// collaborative branches under one deadline and merges their candidates.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/discovery/internal/domain"
	"github.com/kailas-cloud/discovery/internal/domain/search/branch"
	"github.com/kailas-cloud/discovery/internal/domain/search/result"
	"github.com/kailas-cloud/discovery/internal/metrics"
	"github.com/kailas-cloud/discovery/internal/resilience"
)

// Candidate is one item of the merged pool.
type Candidate struct {
	ContentID string
	// Scores holds the raw score from each branch that surfaced the item.
	Scores     map[branch.Branch]float64
	Provenance []branch.Branch
	Category   string
	Popularity float64
}

// Pool is the merged, deduplicated candidate set of one request.
type Pool struct {
	// Candidates are ordered by content id.
	Candidates []Candidate
	Reports    map[branch.Branch]result.BranchReport
}

type guarded struct {
	branch  Branch
	breaker *resilience.Breaker[Output]
}

type branchResult struct {
	name    branch.Branch
	out     Output
	err     error
	latency time.Duration
}

// Orchestrator runs branches concurrently, each behind its own breaker.
type Orchestrator struct {
	branches []guarded
	deadline time.Duration
	logger   *zap.Logger
}

// New creates an orchestrator. Every branch gets a breaker built from its
// policy; branches without an entry in policies use fallback.
func New(
	deadline time.Duration,
	policies map[branch.Branch]resilience.Policy,
	fallback resilience.Policy,
	logger *zap.Logger,
	branches ...Branch,
) *Orchestrator {
	gs := make([]guarded, 0, len(branches))
	for _, b := range branches {
		p, ok := policies[b.Name()]
		if !ok {
			p = fallback
		}
		gs = append(gs, guarded{
			branch:  b,
			breaker: resilience.NewBreaker[Output]("branch_"+b.Name().String(), p, logger),
		})
	}
	return &Orchestrator{branches: gs, deadline: deadline, logger: logger}
}

// BreakerStates returns each branch breaker's state by branch name.
func (o *Orchestrator) BreakerStates() map[string]string {
	out := make(map[string]string, len(o.branches))
	for _, g := range o.branches {
		out[g.branch.Name().String()] = g.breaker.State()
	}
	return out
}

// Retrieve fans out to every branch and joins whatever completes before the
// deadline. Branches that time out, fail or are short-circuited are reported
// and skipped. A cold-start answer counts as an answer. If no branch answers,
// an *domain.AllBranchesFailedError is returned alongside the reports.
func (o *Orchestrator) Retrieve(ctx context.Context, in *Input) (Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	start := time.Now()
	results := make(chan branchResult, len(o.branches))
	for _, g := range o.branches {
		go o.run(ctx, g, in, results)
	}

	reports := make(map[branch.Branch]result.BranchReport, len(o.branches))
	outputs := make(map[branch.Branch]Output, len(o.branches))
	pending := len(o.branches)

collect:
	for pending > 0 {
		select {
		case r := <-results:
			pending--
			reports[r.name] = o.report(r)
			if r.err == nil {
				outputs[r.name] = r.out
			}
		case <-ctx.Done():
			break collect
		}
	}

	for _, g := range o.branches {
		name := g.branch.Name()
		if _, ok := reports[name]; ok {
			continue
		}
		reports[name] = o.report(branchResult{
			name:    name,
			err:     fmt.Errorf("%s: %w", name, domain.ErrBranchTimeout),
			latency: time.Since(start),
		})
	}

	pool := Pool{Candidates: merge(outputs), Reports: reports}

	causes := make(map[string]error)
	for name, rep := range reports {
		if rep.Status.Answered() {
			return pool, nil
		}
		if rep.Err != nil {
			causes[name.String()] = rep.Err
		}
	}
	return pool, domain.NewAllBranchesFailed(causes)
}

func (o *Orchestrator) run(ctx context.Context, g guarded, in *Input, results chan<- branchResult) {
	start := time.Now()
	name := g.branch.Name()

	if a, ok := g.branch.(availability); ok && !a.Available(ctx) {
		results <- branchResult{name: name, err: fmt.Errorf("%s: %w", name, domain.ErrBranchUnavailable)}
		return
	}

	out, err := g.breaker.Execute(ctx, func(ctx context.Context) (Output, error) {
		return g.branch.Retrieve(ctx, in)
	})
	results <- branchResult{name: name, out: out, err: err, latency: time.Since(start)}
}

func (o *Orchestrator) report(r branchResult) result.BranchReport {
	status := classify(r)
	metrics.BranchRequestsTotal.WithLabelValues(r.name.String(), string(status)).Inc()
	metrics.BranchDuration.WithLabelValues(r.name.String()).Observe(r.latency.Seconds())

	if r.err != nil {
		o.logger.Warn("retrieval branch skipped",
			zap.String("branch", r.name.String()),
			zap.String("status", string(status)),
			zap.Duration("latency", r.latency),
			zap.Error(r.err),
		)
	}

	return result.BranchReport{
		Status:     status,
		Latency:    r.latency,
		Candidates: len(r.out.Hits),
		Confidence: r.out.Confidence,
		Err:        r.err,
	}
}

func classify(r branchResult) branch.Status {
	switch {
	case r.err == nil && r.out.ColdStart:
		return branch.StatusColdStart
	case r.err == nil:
		return branch.StatusOK
	case errors.Is(r.err, domain.ErrBranchTimeout):
		return branch.StatusTimeout
	case errors.Is(r.err, domain.ErrBranchUnavailable):
		return branch.StatusUnavailable
	default:
		return branch.StatusError
	}
}

// merge folds branch outputs into one candidate per content id.
func merge(outputs map[branch.Branch]Output) []Candidate {
	byID := make(map[string]*Candidate)
	for _, name := range branch.Retrieval {
		out, ok := outputs[name]
		if !ok {
			continue
		}
		for _, h := range out.Hits {
			c, seen := byID[h.ContentID]
			if !seen {
				c = &Candidate{ContentID: h.ContentID, Scores: make(map[branch.Branch]float64, 1)}
				byID[h.ContentID] = c
			}
			if _, dup := c.Scores[name]; dup {
				continue
			}
			c.Scores[name] = h.Score
			c.Provenance = append(c.Provenance, name)
			if c.Category == "" {
				c.Category = h.Category
			}
			c.Popularity = max(c.Popularity, h.Popularity)
		}
	}

	out := make([]Candidate, 0, len(byID))
	for _, c := range byID {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContentID < out[j].ContentID })
	return out
}
