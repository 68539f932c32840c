package fusion

import "github.com/kailas-cloud/discovery/internal/domain/search/result"

// diversify limits runs of the same category to maxRun within the first
// window results (all results when window <= 0). A result that would extend
// a run is deferred behind the next result of another category. Deferred
// results take their new predecessor's score when it is lower, so scores
// stay non-increasing; the original score is kept for explanation.
func diversify(in []result.Ranked, maxRun, window int) []result.Ranked {
	out := make([]result.Ranked, len(in))
	copy(out, in)

	limit := len(out)
	if window > 0 && window < limit {
		limit = window
	}

	for i := 1; i < limit; i++ {
		if out[i].Category() == "" || runLength(out, i) <= maxRun {
			continue
		}
		j := i + 1
		for j < len(out) && out[j].Category() == out[i].Category() {
			j++
		}
		if j == len(out) {
			break // nothing left to interleave
		}
		promoted := out[j]
		copy(out[i+1:j+1], out[i:j])
		out[i] = promoted
	}

	for i := 1; i < len(out); i++ {
		if prev := out[i-1].Score(); out[i].Score() > prev {
			out[i] = out[i].WithClampedScore(prev)
		}
	}
	return out
}

// runLength counts consecutive results ending at i that share out[i]'s category.
func runLength(out []result.Ranked, i int) int {
	n := 1
	for k := i - 1; k >= 0 && out[k].Category() == out[i].Category(); k-- {
		n++
	}
	return n
}
