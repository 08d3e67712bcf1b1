// Package facematch provides face matching utilities shared between the
// attendance engine, enrollment and the CLI: identity matching, head pose
// classification and reference vector averaging.
package facematch

import (
	"github.com/kozaktomas/face-attendance/internal/database"
)

// DefaultThreshold is the maximum cosine distance (exclusive) for a match.
const DefaultThreshold = 0.68

// Match returns the candidate nearest to probe and its cosine distance. The
// identity is nil when the nearest distance is not strictly below threshold.
// Candidates are scanned in order and the first minimum wins. An empty
// candidate set yields (nil, 1.0).
func Match(probe []float32, candidates []database.Identity, threshold float64) (*database.Identity, float64) {
	best := -1
	bestDist := 1.0
	for i := range candidates {
		if !candidates[i].Enrolled() {
			continue
		}
		d := database.CosineDistance(probe, candidates[i].Embedding)
		if best < 0 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	if best < 0 || bestDist >= threshold {
		return nil, bestDist
	}
	return &candidates[best], bestDist
}
