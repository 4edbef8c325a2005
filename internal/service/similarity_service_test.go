package service

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RBarbieri13/Decant-sub001/internal/adapter/similarity"
	"github.com/RBarbieri13/Decant-sub001/internal/domain"
	"github.com/RBarbieri13/Decant-sub001/internal/port"
)

func seedCorpus(t *testing.T, s port.Store) {
	seed(t, s,
		&domain.Node{ID: "p", Title: "AI tools", FunctionCode: "1"},
		&domain.Node{ID: "a", Title: "Vector databases for retrieval", Tags: []string{"rag", "db"}, SegmentCode: "T", CategoryCode: "DB", FunctionParentID: "p", FunctionCode: "1.1"},
		&domain.Node{ID: "b", Title: "Retrieval augmented generation", Tags: []string{"rag", "llm"}, SegmentCode: "T", CategoryCode: "LLM", FunctionParentID: "p", FunctionCode: "1.2"},
		&domain.Node{ID: "c", Title: "Sourdough baking schedule", Tags: []string{"bread"}, SegmentCode: "L", CategoryCode: "FOOD"},
	)
}

func newSimilarity(s port.Store, opts SimilarityOptions) *SimilarityService {
	engine := port.NewSimilarityEngine(
		similarity.NewJaccardStrategy(similarity.DefaultWeights),
		similarity.NewTFIDFStrategy(),
		similarity.NewCosineStrategy(nil),
	)
	return NewSimilarityService(s, engine, opts)
}

func snapshot(t *testing.T, s port.Store, ids ...string) map[[2]string]domain.NodeSimilarity {
	t.Helper()
	out := map[[2]string]domain.NodeSimilarity{}
	for _, id := range ids {
		rows, err := s.ListSimilarities(context.Background(), id)
		require.NoError(t, err)
		for _, r := range rows {
			out[[2]string{r.NodeAID, r.NodeBID}] = r
		}
	}
	return out
}

func TestStoreSimilarityValidation(t *testing.T) {
	s := setupStore(t)
	seedCorpus(t, s)
	svc := newSimilarity(s, SimilarityOptions{})
	ctx := context.Background()

	_, err := svc.StoreSimilarity(ctx, "a", "b", 1.5, domain.MethodManual)
	assert.ErrorIs(t, err, port.ErrValidationFailed)

	_, err = svc.StoreSimilarity(ctx, "a", "b", -0.1, "")
	assert.ErrorIs(t, err, port.ErrValidationFailed)

	_, err = svc.StoreSimilarity(ctx, "a", "a", 0.5, "")
	assert.ErrorIs(t, err, port.ErrValidationFailed)

	_, err = svc.StoreSimilarity(ctx, "a", "b", 0.5, "euclid")
	assert.ErrorIs(t, err, port.ErrValidationFailed)

	_, err = svc.StoreSimilarity(ctx, "a", "ghost", 0.5, "")
	assert.ErrorIs(t, err, port.ErrNotFound)

	row, err := svc.StoreSimilarity(ctx, "b", "a", 0.75, domain.MethodManual)
	require.NoError(t, err)
	assert.Equal(t, "a", row.NodeAID)
	assert.Equal(t, "b", row.NodeBID)
	assert.InDelta(t, 0.75, row.SimilarityScore, 1e-9)

	got, err := svc.GetSimilarity(ctx, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, row.ID, got.ID)
}

func TestComputeSimilarity(t *testing.T) {
	s := setupStore(t)
	seedCorpus(t, s)
	svc := newSimilarity(s, SimilarityOptions{})
	ctx := context.Background()

	ab, err := svc.ComputeSimilarity(ctx, "a", "b", "", nil)
	require.NoError(t, err)
	ac, err := svc.ComputeSimilarity(ctx, "a", "c", domain.MethodJaccardWeighted, nil)
	require.NoError(t, err)
	assert.Greater(t, ab, ac)

	_, err = svc.ComputeSimilarity(ctx, "a", "b", domain.MethodManual, nil)
	assert.ErrorIs(t, err, port.ErrValidationFailed)

	score := 0.4
	got, err := svc.ComputeSimilarity(ctx, "a", "b", domain.MethodManual, &score)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, got, 1e-9)
}

func TestRecomputeCorpusIsIdempotent(t *testing.T) {
	s := setupStore(t)
	seedCorpus(t, s)
	svc := newSimilarity(s, SimilarityOptions{Workers: 2})
	ctx := context.Background()
	ids := []string{"p", "a", "b", "c"}

	first, err := svc.RecomputeCorpus(ctx, RecomputeRequest{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, first.Corpus)
	assert.Equal(t, 6, first.Candidates)
	assert.EqualValues(t, 6, first.Processed)
	assert.Zero(t, first.Failed)
	assert.False(t, first.Cancelled)
	before := snapshot(t, s, ids...)
	require.NotEmpty(t, before)

	_, err = svc.RecomputeCorpus(ctx, RecomputeRequest{}, nil)
	require.NoError(t, err)
	after := snapshot(t, s, ids...)

	require.Equal(t, len(before), len(after))
	for k, v := range before {
		w, ok := after[k]
		require.True(t, ok, "pair %v", k)
		assert.Equal(t, v.ID, w.ID)
		assert.InDelta(t, v.SimilarityScore, w.SimilarityScore, 1e-12)
	}
}

func TestRecomputeCorpusKeepsManualScores(t *testing.T) {
	s := setupStore(t)
	seedCorpus(t, s)
	svc := newSimilarity(s, SimilarityOptions{})
	ctx := context.Background()

	_, err := svc.StoreSimilarity(ctx, "a", "c", 0.9, domain.MethodManual)
	require.NoError(t, err)

	rep, err := svc.RecomputeCorpus(ctx, RecomputeRequest{NodeIDs: []string{"c"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Candidates)
	assert.EqualValues(t, 1, rep.Skipped)

	row, err := svc.GetSimilarity(ctx, "a", "c")
	require.NoError(t, err)
	assert.Equal(t, domain.MethodManual, row.ComputationMethod)
	assert.InDelta(t, 0.9, row.SimilarityScore, 1e-9)
}

func TestRecomputeCorpusPrunesWeakScores(t *testing.T) {
	s := setupStore(t)
	seedCorpus(t, s)
	ctx := context.Background()

	_, err := newSimilarity(s, SimilarityOptions{}).StoreSimilarity(ctx, "b", "c", 0.3, domain.MethodTFIDF)
	require.NoError(t, err)

	svc := newSimilarity(s, SimilarityOptions{MinScore: 0.05})
	rep, err := svc.RecomputeCorpus(ctx, RecomputeRequest{Method: domain.MethodJaccardWeighted}, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rep.Pruned, int64(1))

	_, err = svc.GetSimilarity(ctx, "b", "c")
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestRecomputeCorpusStopsOnCancel(t *testing.T) {
	s := setupStore(t)
	seedCorpus(t, s)
	svc := newSimilarity(s, SimilarityOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := svc.RecomputeCorpus(ctx, RecomputeRequest{}, nil)
	if err != nil {
		// The corpus read itself may observe the cancellation.
		assert.ErrorIs(t, err, context.Canceled)
		return
	}
	assert.True(t, rep.Cancelled)
	assert.Zero(t, rep.Stored)
	assert.Empty(t, snapshot(t, s, "a", "b", "c"))
}

func TestRecomputeCorpusReportsProgress(t *testing.T) {
	s := setupStore(t)
	seedCorpus(t, s)
	svc := newSimilarity(s, SimilarityOptions{Workers: 3})

	var calls, last atomic.Int64
	rep, err := svc.RecomputeCorpus(context.Background(), RecomputeRequest{Method: domain.MethodTFIDF}, func(done, total int) {
		calls.Add(1)
		assert.Equal(t, 6, total)
		if int64(done) > last.Load() {
			last.Store(int64(done))
		}
	})
	require.NoError(t, err)
	assert.EqualValues(t, 6, calls.Load())
	assert.EqualValues(t, 6, last.Load())
	assert.Equal(t, domain.MethodTFIDF, rep.Method)
}

func TestRecomputeCorpusRejectsManual(t *testing.T) {
	s := setupStore(t)
	svc := newSimilarity(s, SimilarityOptions{})

	_, err := svc.RecomputeCorpus(context.Background(), RecomputeRequest{Method: domain.MethodManual}, nil)
	assert.ErrorIs(t, err, port.ErrValidationFailed)

	assert.Equal(t, []domain.ComputationMethod{domain.MethodCosine, domain.MethodJaccardWeighted, domain.MethodTFIDF}, svc.Methods())
}

// cancellingStrategy scores the first pair and cancels the run while
// scoring the second, the way a remote embedder aborts on cancellation.
type cancellingStrategy struct {
	cancel context.CancelFunc
	calls  atomic.Int64
}

func (s *cancellingStrategy) Method() domain.ComputationMethod { return domain.MethodCosine }
func (s *cancellingStrategy) Description() string              { return "cancels mid-run" }
func (s *cancellingStrategy) Prepare(context.Context, []*domain.Node) (port.Scorer, error) {
	return s, nil
}

func (s *cancellingStrategy) Score(ctx context.Context, _, _ *domain.Node) (float64, error) {
	if s.calls.Add(1) == 1 {
		return 0.5, nil
	}
	s.cancel()
	return 0, ctx.Err()
}

func TestRecomputeCorpusTreatsCancelledPairsAsSkipped(t *testing.T) {
	s := setupStore(t)
	seedCorpus(t, s)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	strategy := &cancellingStrategy{cancel: cancel}
	svc := NewSimilarityService(s, port.NewSimilarityEngine(strategy), SimilarityOptions{Workers: 1})

	var progressed atomic.Int64
	rep, err := svc.RecomputeCorpus(ctx, RecomputeRequest{Method: domain.MethodCosine}, func(done, _ int) {
		progressed.Store(int64(done))
	})
	require.NoError(t, err)
	assert.True(t, rep.Cancelled)
	assert.EqualValues(t, 1, rep.Processed)
	assert.EqualValues(t, 1, rep.Stored)
	assert.Zero(t, rep.Failed)
	assert.Empty(t, rep.Failures)
	assert.EqualValues(t, 1, progressed.Load())
	assert.EqualValues(t, 2, strategy.calls.Load())
}
