package core

import "math"

// SimilarityFunc defines a function that calculates similarity between two vectors.
// Higher return values mean more similar.
type SimilarityFunc func(a, b []float32) float64

// Predefined similarity functions
var (
	// CosineSimilarity calculates cosine similarity between two vectors.
	// This is the pinned default for meaning queries: embedding similarity is
	// magnitude-invariant, so only the angle between vectors matters.
	CosineSimilarity = cosineSimilarity

	// DotProduct calculates dot product between two vectors
	DotProduct = dotProduct

	// EuclideanDist calculates negative Euclidean distance (higher = more similar)
	EuclideanDist = euclideanDistance
)

// cosineSimilarity calculates cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical direction.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64

	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	// Zero vectors have no direction
	if normA == 0.0 || normB == 0.0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// dotProduct calculates the dot product between two vectors.
func dotProduct(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var result float64
	for i := 0; i < len(a); i++ {
		result += float64(a[i]) * float64(b[i])
	}

	return result
}

// euclideanDistance calculates negative Euclidean distance for similarity ranking.
// Returns negative distance so higher values indicate more similarity.
func euclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return -math.Inf(1)
	}

	var sum float64
	for i := 0; i < len(a); i++ {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}

	return -math.Sqrt(sum)
}
