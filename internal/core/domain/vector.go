package domain

import "math"

// NormalizeVector returns v scaled to unit length.
// A zero vector is returned unchanged.
func NormalizeVector(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)

	result := make([]float32, len(v))
	if norm == 0 {
		copy(result, v)
		return result
	}
	for i, x := range v {
		result[i] = float32(float64(x) / norm)
	}
	return result
}

// CosineSimilarity calculates the cosine similarity between two vectors.
// Returns a value between -1 and 1, or 0 for mismatched or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

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
