package domain

import (
	"math"
	"time"
)

// ComputationMethod names how a similarity score was produced.
type ComputationMethod string

const (
	MethodJaccardWeighted ComputationMethod = "jaccard_weighted"
	MethodCosine          ComputationMethod = "cosine"
	MethodTFIDF           ComputationMethod = "tfidf"
	MethodManual          ComputationMethod = "manual"
)

// DefaultMethod is used when a caller does not pick one.
const DefaultMethod = MethodJaccardWeighted

// Valid reports whether m is a known method.
func (m ComputationMethod) Valid() bool {
	switch m {
	case MethodJaccardWeighted, MethodCosine, MethodTFIDF, MethodManual:
		return true
	}
	return false
}

// NodeSimilarity is the stored score for an unordered node pair.
// NodeAID is always the lexicographically smaller id.
type NodeSimilarity struct {
	ID                string            `json:"id"`
	NodeAID           string            `json:"nodeAId"`
	NodeBID           string            `json:"nodeBId"`
	SimilarityScore   float64           `json:"similarityScore"`
	ComputationMethod ComputationMethod `json:"computationMethod"`
	ComputedAt        time.Time         `json:"computedAt"`
}

// Other returns the id on the opposite side of the pair from nodeID.
func (s *NodeSimilarity) Other(nodeID string) string {
	if s.NodeAID == nodeID {
		return s.NodeBID
	}
	return s.NodeAID
}

// CanonicalPair orders two ids so the smaller comes first.
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// ValidScore reports whether s is a finite value in [0,1].
func ValidScore(s float64) bool {
	return !math.IsNaN(s) && s >= 0 && s <= 1
}

// ClampScore forces s into [0,1]; NaN becomes 0.
func ClampScore(s float64) float64 {
	switch {
	case math.IsNaN(s), s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}

// Strength converts a [0,1] score into the 0-100 display scale.
func Strength(score float64) int {
	return int(math.Round(ClampScore(score) * 100))
}
