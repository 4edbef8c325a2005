package port

import (
	"context"
	"sort"

	"github.com/RBarbieri13/Decant-sub001/internal/domain"
)

// SimilarityStrategy is a pluggable scoring method (Strategy Pattern).
type SimilarityStrategy interface {
	// Method returns the computation method this strategy implements.
	Method() domain.ComputationMethod

	// Description returns a human-readable description of the method.
	Description() string

	// Prepare builds a scorer for one run over corpus. Strategies that need
	// corpus-wide statistics (document frequencies, embeddings) gather them here.
	Prepare(ctx context.Context, corpus []*domain.Node) (Scorer, error)
}

// Scorer scores node pairs within one prepared run. Implementations must be
// safe for concurrent use and return values in [0,1].
type Scorer interface {
	Score(ctx context.Context, a, b *domain.Node) (float64, error)
}

// SimilarityEngine orchestrates the registered strategies.
type SimilarityEngine struct {
	strategies map[domain.ComputationMethod]SimilarityStrategy
}

// NewSimilarityEngine creates a new engine with the given strategies.
func NewSimilarityEngine(strategies ...SimilarityStrategy) *SimilarityEngine {
	m := make(map[domain.ComputationMethod]SimilarityStrategy, len(strategies))
	for _, s := range strategies {
		m[s.Method()] = s
	}
	return &SimilarityEngine{strategies: m}
}

// Prepare returns a scorer for method over corpus.
func (e *SimilarityEngine) Prepare(ctx context.Context, method domain.ComputationMethod, corpus []*domain.Node) (Scorer, error) {
	s, ok := e.strategies[method]
	if !ok {
		return nil, ErrStrategyNotFound
	}
	return s.Prepare(ctx, corpus)
}

// Score computes a single pair, using the pair itself as the corpus.
func (e *SimilarityEngine) Score(ctx context.Context, method domain.ComputationMethod, a, b *domain.Node) (float64, error) {
	sc, err := e.Prepare(ctx, method, []*domain.Node{a, b})
	if err != nil {
		return 0, err
	}
	return sc.Score(ctx, a, b)
}

// Has reports whether method is registered.
func (e *SimilarityEngine) Has(method domain.ComputationMethod) bool {
	_, ok := e.strategies[method]
	return ok
}

// AvailableMethods returns the registered methods, sorted.
func (e *SimilarityEngine) AvailableMethods() []domain.ComputationMethod {
	names := make([]domain.ComputationMethod, 0, len(e.strategies))
	for name := range e.strategies {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
