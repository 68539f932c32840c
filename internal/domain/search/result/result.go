// Package result holds the fused, explainable ranking returned by search.
package result

import (
	"time"

	"github.com/kailas-cloud/discovery/internal/domain/search/branch"
)

// Contribution explains one component of a fused score.
type Contribution struct {
	Raw          float64 `json:"raw"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// Ranked is one fused search hit (immutable value object).
type Ranked struct {
	contentID     string
	score         float64
	originalScore float64
	breakdown     map[branch.Branch]Contribution
	provenance    []branch.Branch
	category      string
	popularity    float64
}

// NewRanked creates a ranked result. provenance lists the retrieval branches
// that surfaced the item.
func NewRanked(
	contentID string, score float64,
	breakdown map[branch.Branch]Contribution, provenance []branch.Branch,
	category string, popularity float64,
) Ranked {
	b := make(map[branch.Branch]Contribution, len(breakdown))
	for k, v := range breakdown {
		b[k] = v
	}
	return Ranked{
		contentID:     contentID,
		score:         score,
		originalScore: score,
		breakdown:     b,
		provenance:    append([]branch.Branch(nil), provenance...),
		category:      category,
		popularity:    popularity,
	}
}

// WithClampedScore returns a copy whose fused score is lowered to score.
// The original fused score stays available for explanation.
func (r Ranked) WithClampedScore(score float64) Ranked {
	if score < r.score {
		r.score = score
	}
	return r
}

// ContentID returns the content identifier.
func (r *Ranked) ContentID() string { return r.contentID }

// Score returns the fused score.
func (r *Ranked) Score() float64 { return r.score }

// OriginalScore returns the fused score before any diversity adjustment.
func (r *Ranked) OriginalScore() float64 { return r.originalScore }

// Adjusted reports whether the diversity pass lowered the score.
func (r *Ranked) Adjusted() bool { return r.score != r.originalScore }

// Breakdown returns a copy of the per-component explanation.
func (r *Ranked) Breakdown() map[branch.Branch]Contribution {
	out := make(map[branch.Branch]Contribution, len(r.breakdown))
	for k, v := range r.breakdown {
		out[k] = v
	}
	return out
}

// Provenance returns the contributing retrieval branches.
func (r *Ranked) Provenance() []branch.Branch {
	return append([]branch.Branch(nil), r.provenance...)
}

// Category returns the item category used by the diversity pass.
func (r *Ranked) Category() string { return r.category }

// Popularity returns the item popularity used for tie-breaks.
func (r *Ranked) Popularity() float64 { return r.popularity }

// BranchReport describes how one branch fared for a request.
type BranchReport struct {
	Status     branch.Status
	Latency    time.Duration
	Candidates int
	// Confidence is set by the collaborative branch (0 for cold start).
	Confidence float64
	Err        error
}

// Meta carries request-level ranking metadata.
type Meta struct {
	RequestID string
	Branches  map[branch.Branch]BranchReport
	// Weights holds the effective (renormalized) weight per available component.
	Weights map[branch.Branch]float64
	// Redistributed reports whether any configured weight was moved to other components.
	Redistributed bool
	// Personalized reports whether personalization boosts were computed.
	Personalized bool
}

// Unavailable reports whether a component had no signal for this request:
// a retrieval branch that did not answer ok, or personalization without boosts.
// It is independent of the configured weight.
func (m Meta) Unavailable(b branch.Branch) bool {
	if b == branch.Personalization {
		return !m.Personalized
	}
	return m.Branches[b].Status != branch.StatusOK
}

// Page is one page of the fused list.
type Page struct {
	Results  []Ranked
	Total    int
	Page     int
	PageSize int
	Meta     Meta
}
