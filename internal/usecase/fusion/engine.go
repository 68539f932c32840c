// Package fusion merges the candidate pool into one weighted, deduplicated,
// explainable ranking.
package fusion

import (
	"sort"

	"github.com/kailas-cloud/discovery/internal/domain/search/branch"
	"github.com/kailas-cloud/discovery/internal/domain/search/result"
	"github.com/kailas-cloud/discovery/internal/metrics"
	"github.com/kailas-cloud/discovery/internal/usecase/retrieval"
)

// Config holds the fusion weights and the diversity rule.
type Config struct {
	// Weights per component; non-negative, summing to 1.
	Weights map[branch.Branch]float64
	// DiversityMaxRun caps consecutive same-category results; 0 disables.
	DiversityMaxRun int
	// DiversityWindow limits the pass to the first N results.
	DiversityWindow int
}

// NeutralBoost is the personalization score of a candidate whose embedding
// could not be loaded: the similarity of an orthogonal item.
const NeutralBoost = 0.5

// Input is one request's pool plus personalization boosts.
type Input struct {
	Candidates []retrieval.Candidate
	Reports    map[branch.Branch]result.BranchReport
	// Boosts maps content id to (cos(profile, item)+1)/2. A nil map marks
	// personalization unavailable; a candidate missing from a non-nil map
	// scores NeutralBoost.
	Boosts map[string]float64
}

// Output is the fused ranking.
type Output struct {
	Results []result.Ranked
	// Weights are the effective weights of the available components.
	Weights       map[branch.Branch]float64
	Redistributed bool
}

// Engine fuses candidate pools. It is stateless and safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine creates a fusion engine.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Fuse scores, orders and diversifies the pool. Weights of unavailable
// components are redistributed proportionally over the available ones.
func (e *Engine) Fuse(in Input) Output {
	weights, redistributed := e.effectiveWeights(in)
	if len(weights) == 0 {
		return Output{Redistributed: redistributed}
	}

	var maxKeyword float64
	for _, c := range in.Candidates {
		maxKeyword = max(maxKeyword, c.Scores[branch.Keyword])
	}

	ranked := make([]result.Ranked, 0, len(in.Candidates))
	for _, c := range in.Candidates {
		breakdown := make(map[branch.Branch]result.Contribution, len(weights))
		var fused float64
		for _, b := range branch.Components {
			w, ok := weights[b]
			if !ok {
				continue
			}
			raw, norm, present := componentScore(b, c, in.Boosts, maxKeyword)
			if !present {
				continue
			}
			contribution := w * norm
			fused += contribution
			breakdown[b] = result.Contribution{Raw: raw, Weight: w, Contribution: contribution}
		}
		ranked = append(ranked, result.NewRanked(
			c.ContentID, min(fused, 1), breakdown, c.Provenance, c.Category, c.Popularity,
		))
	}

	sort.Slice(ranked, func(i, j int) bool { return less(&ranked[i], &ranked[j]) })
	if e.cfg.DiversityMaxRun > 0 {
		ranked = diversify(ranked, e.cfg.DiversityMaxRun, e.cfg.DiversityWindow)
	}

	return Output{Results: ranked, Weights: weights, Redistributed: redistributed}
}

func (e *Engine) effectiveWeights(in Input) (map[branch.Branch]float64, bool) {
	available := func(b branch.Branch) bool {
		if b == branch.Personalization {
			return in.Boosts != nil
		}
		return in.Reports[b].Status == branch.StatusOK
	}

	var total float64
	redistributed := false
	for _, b := range branch.Components {
		w := e.cfg.Weights[b]
		if w <= 0 {
			continue
		}
		if available(b) {
			total += w
			continue
		}
		redistributed = true
		metrics.WeightRedistributionsTotal.WithLabelValues(b.String()).Inc()
	}
	if total == 0 {
		return nil, redistributed
	}

	out := make(map[branch.Branch]float64, len(branch.Components))
	for _, b := range branch.Components {
		if w := e.cfg.Weights[b]; w > 0 && available(b) {
			out[b] = w / total
		}
	}
	return out, redistributed
}

// componentScore returns the raw score and its [0,1] normalization.
// BM25 is divided by the request's best keyword score.
func componentScore(
	b branch.Branch, c retrieval.Candidate, boosts map[string]float64, maxKeyword float64,
) (raw, norm float64, ok bool) {
	if b == branch.Personalization {
		if raw, ok = boosts[c.ContentID]; !ok {
			raw = NeutralBoost
		}
		return raw, clamp01(raw), true
	}
	raw, ok = c.Scores[b]
	if !ok {
		return 0, 0, false
	}
	if b == branch.Keyword {
		if maxKeyword <= 0 {
			return raw, 0, true
		}
		return raw, clamp01(raw / maxKeyword), true
	}
	return raw, clamp01(raw), true
}

// less orders by fused score desc, popularity desc, content id asc.
func less(a, b *result.Ranked) bool {
	if a.Score() != b.Score() {
		return a.Score() > b.Score()
	}
	if a.Popularity() != b.Popularity() {
		return a.Popularity() > b.Popularity()
	}
	return a.ContentID() < b.ContentID()
}

func clamp01(x float64) float64 {
	return min(max(x, 0), 1)
}
