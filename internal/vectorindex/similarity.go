// Euphonia - Emotion-Aware Music Recommendation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/euphonia

package vectorindex

import "math"

// vectorNorm returns the Euclidean norm of v.
func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosineSimilarity computes the clamped cosine similarity between a and b
// given their precomputed norms. Zero-norm vectors score 0 against
// everything: there is no direction to compare.
func cosineSimilarity(a, b []float32, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}

	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}

	cos := dot / (normA * normB)
	// Clamp: float rounding can push slightly past 1, anti-correlation
	// maps to 0 so scores stay in [0,1].
	if cos > 1 {
		return 1
	}
	if cos < 0 {
		return 0
	}
	return cos
}

// lessResult orders results by non-increasing similarity, ties broken by
// ascending ID for determinism.
func lessResult(a, b Result) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	return a.ID < b.ID
}
