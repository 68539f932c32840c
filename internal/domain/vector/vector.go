// Package vector holds the embedding-space arithmetic shared by retrieval,
// collaborative filtering and the personalization feed.
package vector

import (
	"errors"
	"math"
)

// ErrZeroVector is returned when normalizing a vector with zero magnitude.
var ErrZeroVector = errors.New("zero vector")

// unitTolerance bounds the accepted deviation of |v| from 1.
const unitTolerance = 1e-3

// Norm returns the Euclidean length of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of v.
func Normalize(v []float32) ([]float32, error) {
	n := Norm(v)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, ErrZeroVector
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out, nil
}

// IsUnit reports whether v has unit length within tolerance.
func IsUnit(v []float32) bool {
	return math.Abs(Norm(v)-1) <= unitTolerance
}

// Cosine returns the cosine similarity of a and b in [-1, 1].
// Vectors of different length or zero magnitude have similarity 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return clamp(dot/(math.Sqrt(na)*math.Sqrt(nb)), -1, 1)
}

// SimilarityScore maps a cosine similarity from [-1, 1] onto [0, 1] so it can be
// fused with the other branches' normalized scores.
func SimilarityScore(cosine float64) float64 {
	return clamp((cosine+1)/2, 0, 1)
}

// Blend returns decay*old + (1-decay)*update, element-wise.
func Blend(old, update []float32, decay float64) []float32 {
	out := make([]float32, len(update))
	for i := range update {
		var o float64
		if i < len(old) {
			o = float64(old[i])
		}
		out[i] = float32(decay*o + (1-decay)*float64(update[i]))
	}
	return out
}

// WeightedAverage returns sum(w_i * v_i) / sum(w_i). All vectors must share dims.
func WeightedAverage(vectors [][]float32, weights []float64, dims int) ([]float32, error) {
	if len(vectors) == 0 || len(vectors) != len(weights) {
		return nil, errors.New("weighted average: vectors and weights must be non-empty and aligned")
	}
	acc := make([]float64, dims)
	var total float64
	for i, v := range vectors {
		if len(v) != dims {
			return nil, errors.New("weighted average: dimension mismatch")
		}
		w := weights[i]
		if w <= 0 {
			continue
		}
		for j, x := range v {
			acc[j] += w * float64(x)
		}
		total += w
	}
	if total == 0 {
		return nil, errors.New("weighted average: total weight is zero")
	}
	out := make([]float32, dims)
	for j := range acc {
		out[j] = float32(acc[j] / total)
	}
	return out, nil
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
