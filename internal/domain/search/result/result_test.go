package result

import (
	"testing"

	"github.com/kailas-cloud/discovery/internal/domain/search/branch"
)

func TestNewRanked_CopiesInputs(t *testing.T) {
	bd := map[branch.Branch]Contribution{branch.Keyword: {Raw: 1, Weight: 0.5, Contribution: 0.5}}
	prov := []branch.Branch{branch.Keyword}

	r := NewRanked("c1", 0.5, bd, prov, "art", 3)
	bd[branch.Vector] = Contribution{}
	prov[0] = branch.Collab

	if len(r.Breakdown()) != 1 {
		t.Error("breakdown must not alias the caller's map")
	}
	if r.Provenance()[0] != branch.Keyword {
		t.Error("provenance must not alias the caller's slice")
	}
}

func TestWithClampedScore(t *testing.T) {
	r := NewRanked("c1", 0.8, nil, nil, "art", 0)

	clamped := r.WithClampedScore(0.6)
	if clamped.Score() != 0.6 || clamped.OriginalScore() != 0.8 || !clamped.Adjusted() {
		t.Errorf("unexpected clamp: score=%f original=%f", clamped.Score(), clamped.OriginalScore())
	}
	if r.Score() != 0.8 {
		t.Error("clamp must not mutate the receiver")
	}

	raised := r.WithClampedScore(0.9)
	if raised.Score() != 0.8 || raised.Adjusted() {
		t.Error("clamp must never raise a score")
	}
}

func TestMeta_Unavailable(t *testing.T) {
	m := Meta{
		Branches: map[branch.Branch]BranchReport{
			branch.Keyword: {Status: branch.StatusOK},
			branch.Vector:  {Status: branch.StatusTimeout},
			branch.Collab:  {Status: branch.StatusColdStart},
		},
		// a zero-weight keyword branch has no effective weight but still answered
		Weights: map[branch.Branch]float64{branch.Collab: 1},
	}
	tests := []struct {
		b    branch.Branch
		want bool
	}{
		{branch.Keyword, false},
		{branch.Vector, true},
		{branch.Collab, true},
		{branch.Personalization, true},
	}
	for _, tt := range tests {
		if got := m.Unavailable(tt.b); got != tt.want {
			t.Errorf("Unavailable(%s) = %v, want %v", tt.b, got, tt.want)
		}
	}

	m.Personalized = true
	if m.Unavailable(branch.Personalization) {
		t.Error("personalization with boosts is available")
	}
	if !(Meta{}).Unavailable(branch.Vector) {
		t.Error("an unregistered branch is unavailable")
	}
}
