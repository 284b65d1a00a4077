// Package similarity provides the pure numeric scoring functions used by the
// linear fallback backend and by clustering.
//
// All functions accumulate in float64 over float32 input and assume both
// vectors have the same length. Callers validate dimensions first.
package similarity

import "math"

// Metric names a scoring function. The values match vector.Metric so the
// two can be converted directly.
type Metric string

const (
	Cosine     Metric = "cosine"
	Euclidean  Metric = "euclidean"
	DotProduct Metric = "dotproduct"
)

// Dot returns Σ aᵢbᵢ.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Magnitude returns the L2 norm of v.
func Magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// CosineSimilarity returns dot(a,b) / (‖a‖‖b‖), or 0 when either magnitude is 0.
func CosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// EuclideanDistance returns ‖a - b‖.
func EuclideanDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// EuclideanSimilarity maps a distance in [0, ∞) onto a similarity in (0, 1].
// Strictly decreasing in distance.
func EuclideanSimilarity(a, b []float32) float64 {
	return DistanceToSimilarity(EuclideanDistance(a, b))
}

// DistanceToSimilarity is the 1/(1+d) mapping shared by every backend that
// ranks euclidean collections, so scores agree across backends.
func DistanceToSimilarity(d float64) float64 {
	return 1 / (1 + d)
}

// Score computes the similarity of a and b under metric. Larger is always
// more similar. Unknown metrics score as cosine.
func Score(metric Metric, a, b []float32) float64 {
	switch metric {
	case Euclidean:
		return EuclideanSimilarity(a, b)
	case DotProduct:
		return Dot(a, b)
	default:
		return CosineSimilarity(a, b)
	}
}

// Normalize returns a unit-length copy of v. A zero vector is returned as a
// zero-filled copy.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	norm := Magnitude(v)
	if norm == 0 {
		return out
	}

	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Centroid returns the component-wise mean of vectors. Returns nil for an
// empty input.
func Centroid(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}

	dim := len(vectors[0])
	sums := make([]float64, dim)
	for _, v := range vectors {
		for i := 0; i < dim && i < len(v); i++ {
			sums[i] += float64(v[i])
		}
	}

	out := make([]float32, dim)
	n := float64(len(vectors))
	for i, s := range sums {
		out[i] = float32(s / n)
	}
	return out
}
