package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RBarbieri13/Decant-sub001/internal/domain"
	"github.com/RBarbieri13/Decant-sub001/internal/port"
)

// SimilarityOptions tunes recompute runs.
type SimilarityOptions struct {
	DefaultMethod domain.ComputationMethod
	// MinScore is the lowest computed score worth storing; weaker computed
	// rows are pruned during recompute.
	MinScore float64
	Workers  int
}

// SimilarityService computes and stores pairwise node similarity.
type SimilarityService struct {
	store  port.Store
	engine *port.SimilarityEngine
	opts   SimilarityOptions
}

// NewSimilarityService creates a new similarity service.
func NewSimilarityService(s port.Store, engine *port.SimilarityEngine, opts SimilarityOptions) *SimilarityService {
	if opts.DefaultMethod == "" {
		opts.DefaultMethod = domain.DefaultMethod
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &SimilarityService{store: s, engine: engine, opts: opts}
}

// RecomputeRequest selects the pairs of a recompute run. With NodeIDs set,
// only pairs touching those nodes are scored.
type RecomputeRequest struct {
	NodeIDs []string                 `json:"nodeIds,omitempty"`
	Method  domain.ComputationMethod `json:"method,omitempty"`
	Workers int                      `json:"workers,omitempty"`
}

// PairFailure records a pair that could not be scored or stored.
type PairFailure struct {
	NodeAID string `json:"nodeAId"`
	NodeBID string `json:"nodeBId"`
	Error   string `json:"error"`
}

// RecomputeReport summarises a recompute run.
type RecomputeReport struct {
	Method     domain.ComputationMethod `json:"method"`
	Corpus     int                      `json:"corpus"`
	Candidates int                      `json:"candidates"`
	Processed  int64                    `json:"processed"`
	Stored     int64                    `json:"stored"`
	Pruned     int64                    `json:"pruned"`
	Skipped    int64                    `json:"skipped"`
	Failed     int64                    `json:"failed"`
	Failures   []PairFailure            `json:"failures,omitempty"`
	Cancelled  bool                     `json:"cancelled"`
	StartedAt  time.Time                `json:"startedAt"`
	FinishedAt time.Time                `json:"finishedAt"`
}

// ProgressFunc receives the number of processed pairs out of total.
type ProgressFunc func(processed, total int)

const maxReportedFailures = 50

// ComputeSimilarity scores a pair with method. manualScore is required for
// the manual method and ignored otherwise.
func (s *SimilarityService) ComputeSimilarity(ctx context.Context, a, b string, method domain.ComputationMethod, manualScore *float64) (float64, error) {
	if method == "" {
		method = s.opts.DefaultMethod
	}
	if !method.Valid() {
		return 0, port.ValidationFailed("unknown computation method %q", method)
	}
	if a == b {
		return 0, port.ValidationFailed("a node is not compared with itself")
	}
	if method == domain.MethodManual {
		if manualScore == nil {
			return 0, port.ValidationFailed("manual method requires a score")
		}
		if !domain.ValidScore(*manualScore) {
			return 0, port.ValidationFailed("score %v is outside [0,1]", *manualScore)
		}
		return *manualScore, nil
	}

	nodes, err := s.store.GetNodes(ctx, []string{a, b})
	if err != nil {
		return 0, err
	}
	for _, id := range []string{a, b} {
		if _, ok := nodes[id]; !ok {
			return 0, port.NotFound("node %s does not exist", id)
		}
	}
	score, err := s.engine.Score(ctx, method, nodes[a], nodes[b])
	if errors.Is(err, port.ErrStrategyNotFound) {
		return 0, port.ValidationFailed("computation method %q is not available", method)
	}
	if err != nil {
		return 0, fmt.Errorf("compute similarity: %w", err)
	}
	return domain.ClampScore(score), nil
}

// StoreSimilarity validates and upserts the score for the canonical pair.
func (s *SimilarityService) StoreSimilarity(ctx context.Context, a, b string, score float64, method domain.ComputationMethod) (*domain.NodeSimilarity, error) {
	if method == "" {
		method = s.opts.DefaultMethod
	}
	switch {
	case a == "" || b == "":
		return nil, port.ValidationFailed("both node ids are required")
	case a == b:
		return nil, port.ValidationFailed("a node is not compared with itself")
	case !domain.ValidScore(score):
		return nil, port.ValidationFailed("score %v is outside [0,1]", score)
	case !method.Valid():
		return nil, port.ValidationFailed("unknown computation method %q", method)
	}

	nodes, err := s.store.GetNodes(ctx, []string{a, b})
	if err != nil {
		return nil, err
	}
	for _, id := range []string{a, b} {
		if _, ok := nodes[id]; !ok {
			return nil, port.NotFound("node %s does not exist", id)
		}
	}

	row := &domain.NodeSimilarity{NodeAID: a, NodeBID: b, SimilarityScore: score, ComputationMethod: method}
	if _, err := s.store.UpsertSimilarity(ctx, row); err != nil {
		return nil, err
	}
	return s.store.GetSimilarity(ctx, a, b)
}

// GetSimilarity returns the stored row for a pair in either order.
func (s *SimilarityService) GetSimilarity(ctx context.Context, a, b string) (*domain.NodeSimilarity, error) {
	if a == b {
		return nil, port.ValidationFailed("a node is not compared with itself")
	}
	return s.store.GetSimilarity(ctx, a, b)
}

type pair struct{ a, b *domain.Node }

// candidatePairs lists each unordered pair once. With subset set, only pairs
// with at least one endpoint in subset are kept.
func candidatePairs(corpus []*domain.Node, subset map[string]bool) []pair {
	var pairs []pair
	for i := 0; i < len(corpus); i++ {
		for j := i + 1; j < len(corpus); j++ {
			if subset != nil && !subset[corpus[i].ID] && !subset[corpus[j].ID] {
				continue
			}
			pairs = append(pairs, pair{corpus[i], corpus[j]})
		}
	}
	return pairs
}

func (s *SimilarityService) recomputeMethod(req RecomputeRequest) domain.ComputationMethod {
	if req.Method == "" {
		return s.opts.DefaultMethod
	}
	return req.Method
}

// ValidateRecompute checks a request without running it.
func (s *SimilarityService) ValidateRecompute(req RecomputeRequest) error {
	method := s.recomputeMethod(req)
	if method == domain.MethodManual {
		return port.ValidationFailed("manual scores cannot be recomputed")
	}
	if !method.Valid() || !s.engine.Has(method) {
		return port.ValidationFailed("computation method %q is not available", method)
	}
	if req.Workers < 0 {
		return port.ValidationFailed("workers must not be negative")
	}
	return nil
}

// RecomputeCorpus scores candidate pairs against a point-in-time corpus read
// and upserts the results. It stops taking new pairs once ctx is cancelled;
// pairs already being written finish. Processed counts only pairs that were
// scored. Per-pair failures are reported, not returned.
func (s *SimilarityService) RecomputeCorpus(ctx context.Context, req RecomputeRequest, progress ProgressFunc) (*RecomputeReport, error) {
	if err := s.ValidateRecompute(req); err != nil {
		return nil, err
	}
	method := s.recomputeMethod(req)
	workers := req.Workers
	if workers <= 0 {
		workers = s.opts.Workers
	}

	report := &RecomputeReport{Method: method, StartedAt: time.Now().UTC()}

	corpus, err := s.store.ListNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	report.Corpus = len(corpus)

	var subset map[string]bool
	if len(req.NodeIDs) > 0 {
		subset = make(map[string]bool, len(req.NodeIDs))
		for _, id := range req.NodeIDs {
			subset[id] = true
		}
	}
	pairs := candidatePairs(corpus, subset)
	report.Candidates = len(pairs)

	scorer, err := s.engine.Prepare(ctx, method, corpus)
	if err != nil {
		return nil, fmt.Errorf("prepare %s: %w", method, err)
	}

	var (
		processed, stored, pruned, skipped, failed atomic.Int64
		mu                                         sync.Mutex
	)
	fail := func(p pair, err error) {
		failed.Add(1)
		slog.Warn("similarity pair failed", "node_a", p.a.ID, "node_b", p.b.ID, "error", err)
		mu.Lock()
		if len(report.Failures) < maxReportedFailures {
			a, b := domain.CanonicalPair(p.a.ID, p.b.ID)
			report.Failures = append(report.Failures, PairFailure{NodeAID: a, NodeBID: b, Error: err.Error()})
		}
		mu.Unlock()
	}

	// Writes ignore cancellation; a started pair always completes.
	writeCtx := context.WithoutCancel(ctx)

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for _, p := range pairs {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			ran := true
			defer func() {
				if !ran {
					return
				}
				n := processed.Add(1)
				if progress != nil {
					progress(int(n), len(pairs))
				}
			}()

			score, err := scorer.Score(ctx, p.a, p.b)
			if err != nil {
				// A scorer interrupted by cancellation did not run the pair.
				if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
					ran = false
					return nil
				}
				fail(p, err)
				return nil
			}
			score = domain.ClampScore(score)

			if score < s.opts.MinScore {
				removed, err := s.store.DeleteComputedSimilarity(writeCtx, p.a.ID, p.b.ID)
				if err != nil {
					fail(p, err)
				} else if removed {
					pruned.Add(1)
				}
				return nil
			}

			row := &domain.NodeSimilarity{NodeAID: p.a.ID, NodeBID: p.b.ID, SimilarityScore: score, ComputationMethod: method}
			ok, err := s.store.UpsertSimilarity(writeCtx, row)
			switch {
			case err != nil:
				fail(p, err)
			case ok:
				stored.Add(1)
			default:
				skipped.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		report.Cancelled = true
	}
	report.Processed = processed.Load()
	report.Stored = stored.Load()
	report.Pruned = pruned.Load()
	report.Skipped = skipped.Load()
	report.Failed = failed.Load()
	report.FinishedAt = time.Now().UTC()

	slog.Info("similarity recompute finished",
		"method", method, "candidates", report.Candidates, "stored", report.Stored,
		"pruned", report.Pruned, "failed", report.Failed, "cancelled", report.Cancelled,
		"duration", report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

// Methods lists the computation methods available for recompute.
func (s *SimilarityService) Methods() []domain.ComputationMethod {
	return s.engine.AvailableMethods()
}

// DefaultMethod is the method used when a request names none.
func (s *SimilarityService) DefaultMethod() domain.ComputationMethod {
	return s.opts.DefaultMethod
}
