package similarity

import (
	"context"
	"fmt"
	"sync"

	"github.com/RBarbieri13/Decant-sub001/internal/domain"
	"github.com/RBarbieri13/Decant-sub001/internal/port"
)

const embedBatchSize = 32

// CosineStrategy scores the cosine of embedding vectors when an embedder is
// configured, and of raw term-frequency vectors otherwise.
type CosineStrategy struct {
	embedder port.Embedder
}

// NewCosineStrategy creates the strategy. embedder may be nil.
func NewCosineStrategy(embedder port.Embedder) *CosineStrategy {
	return &CosineStrategy{embedder: embedder}
}

func (s *CosineStrategy) Method() domain.ComputationMethod { return domain.MethodCosine }
func (s *CosineStrategy) Description() string {
	if s.embedder != nil {
		return "Cosine similarity of " + s.embedder.ModelName() + " embeddings"
	}
	return "Cosine similarity of term-frequency vectors"
}

func (s *CosineStrategy) Prepare(ctx context.Context, corpus []*domain.Node) (port.Scorer, error) {
	if s.embedder == nil {
		return termCosine{}, nil
	}

	sc := &embeddingScorer{embedder: s.embedder, vectors: make(map[string][]float32, len(corpus))}
	for start := 0; start < len(corpus); start += embedBatchSize {
		end := min(start+embedBatchSize, len(corpus))
		texts := make([]string, 0, end-start)
		for _, n := range corpus[start:end] {
			texts = append(texts, nodeText(n))
		}
		vecs, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed corpus: %w", err)
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("embed corpus: got %d vectors for %d texts", len(vecs), len(texts))
		}
		for i, n := range corpus[start:end] {
			sc.vectors[n.ID] = vecs[i]
		}
	}
	return sc, nil
}

type termCosine struct{}

func (termCosine) Score(_ context.Context, a, b *domain.Node) (float64, error) {
	return sparseCosine(termFrequencies(a), termFrequencies(b)), nil
}

type embeddingScorer struct {
	embedder port.Embedder
	mu       sync.RWMutex
	vectors  map[string][]float32
}

func (e *embeddingScorer) vector(ctx context.Context, n *domain.Node) ([]float32, error) {
	e.mu.RLock()
	v, ok := e.vectors[n.ID]
	e.mu.RUnlock()
	if ok {
		return v, nil
	}
	v, err := e.embedder.Embed(ctx, nodeText(n))
	if err != nil {
		return nil, fmt.Errorf("embed node %s: %w", n.ID, err)
	}
	e.mu.Lock()
	e.vectors[n.ID] = v
	e.mu.Unlock()
	return v, nil
}

func (e *embeddingScorer) Score(ctx context.Context, a, b *domain.Node) (float64, error) {
	va, err := e.vector(ctx, a)
	if err != nil {
		return 0, err
	}
	vb, err := e.vector(ctx, b)
	if err != nil {
		return 0, err
	}
	return CosineSimilarity(va, vb), nil
}
