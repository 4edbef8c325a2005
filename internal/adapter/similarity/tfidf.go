package similarity

import (
	"context"
	"math"

	"github.com/RBarbieri13/Decant-sub001/internal/domain"
	"github.com/RBarbieri13/Decant-sub001/internal/port"
)

// TFIDFStrategy scores the cosine of TF-IDF vectors, with document
// frequencies taken from the run's corpus.
type TFIDFStrategy struct{}

func NewTFIDFStrategy() *TFIDFStrategy { return &TFIDFStrategy{} }

func (s *TFIDFStrategy) Method() domain.ComputationMethod { return domain.MethodTFIDF }
func (s *TFIDFStrategy) Description() string {
	return "Cosine similarity of TF-IDF vectors over title, description and tags"
}

func (s *TFIDFStrategy) Prepare(ctx context.Context, corpus []*domain.Node) (port.Scorer, error) {
	sc := &tfidfScorer{
		df:      map[string]int{},
		vectors: make(map[string]map[string]float64, len(corpus)),
		n:       len(corpus),
	}
	tfs := make(map[string]map[string]float64, len(corpus))
	for _, node := range corpus {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tf := termFrequencies(node)
		tfs[node.ID] = tf
		for term := range tf {
			sc.df[term]++
		}
	}
	for id, tf := range tfs {
		sc.vectors[id] = sc.weigh(tf)
	}
	return sc, nil
}

type tfidfScorer struct {
	df      map[string]int
	vectors map[string]map[string]float64
	n       int
}

// idf is the smoothed inverse document frequency ln((1+N)/(1+df)) + 1.
func (t *tfidfScorer) idf(term string) float64 {
	return math.Log(float64(1+t.n)/float64(1+t.df[term])) + 1
}

func (t *tfidfScorer) weigh(tf map[string]float64) map[string]float64 {
	v := make(map[string]float64, len(tf))
	for term, f := range tf {
		v[term] = f * t.idf(term)
	}
	return v
}

func (t *tfidfScorer) vector(n *domain.Node) map[string]float64 {
	if v, ok := t.vectors[n.ID]; ok {
		return v
	}
	return t.weigh(termFrequencies(n))
}

func (t *tfidfScorer) Score(_ context.Context, a, b *domain.Node) (float64, error) {
	return sparseCosine(t.vector(a), t.vector(b)), nil
}
