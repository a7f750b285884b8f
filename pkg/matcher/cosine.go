package matcher

import "math"

// denomEpsilon keeps the division defined when either vector has zero
// magnitude, so degenerate embeddings score as unrelated instead of NaN.
const denomEpsilon = 1e-10

// CosineDistance returns 1 minus the cosine similarity of a and b.
// Accumulation runs in float64 regardless of the stored precision.
// Identical directions score 0, orthogonal vectors 1, opposite 2.
// Both vectors must have the same length.
func CosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB)+denomEpsilon)
}
