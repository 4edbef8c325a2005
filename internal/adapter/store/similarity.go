package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/RBarbieri13/Decant-sub001/internal/domain"
	"github.com/RBarbieri13/Decant-sub001/internal/port"
)

const similarityColumns = `id, node_a_id, node_b_id, similarity_score, computation_method, computed_at`

func scanSimilarity(row rowScanner) (domain.NodeSimilarity, error) {
	var (
		s          domain.NodeSimilarity
		method     string
		computedAt int64
	)
	if err := row.Scan(&s.ID, &s.NodeAID, &s.NodeBID, &s.SimilarityScore, &method, &computedAt); err != nil {
		return s, err
	}
	s.ComputationMethod = domain.ComputationMethod(method)
	s.ComputedAt = fromUnix(computedAt)
	return s, nil
}

// UpsertSimilarity writes the score for the canonical pair. On conflict the
// existing row keeps its id; a manual row is only replaced by another manual score.
func (q *queries) UpsertSimilarity(ctx context.Context, s *domain.NodeSimilarity) (bool, error) {
	s.NodeAID, s.NodeBID = domain.CanonicalPair(s.NodeAID, s.NodeBID)
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.ComputationMethod == "" {
		s.ComputationMethod = domain.DefaultMethod
	}
	s.ComputedAt = q.now()

	res, err := q.exec(ctx, `
		INSERT INTO node_similarity (`+similarityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (node_a_id, node_b_id) DO UPDATE SET
			similarity_score = excluded.similarity_score,
			computation_method = excluded.computation_method,
			computed_at = excluded.computed_at
		WHERE node_similarity.computation_method <> 'manual' OR excluded.computation_method = 'manual'`,
		s.ID, s.NodeAID, s.NodeBID, s.SimilarityScore, string(s.ComputationMethod), toUnix(s.ComputedAt),
	)
	if err != nil {
		return false, fmt.Errorf("upsert similarity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// GetSimilarity returns the row for a pair given in either order.
func (q *queries) GetSimilarity(ctx context.Context, a, b string) (*domain.NodeSimilarity, error) {
	a, b = domain.CanonicalPair(a, b)
	s, err := scanSimilarity(q.queryRow(ctx,
		`SELECT `+similarityColumns+` FROM node_similarity WHERE node_a_id = ? AND node_b_id = ?`, a, b))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.NotFound("no similarity for %s and %s", a, b)
	}
	if err != nil {
		return nil, fmt.Errorf("get similarity: %w", err)
	}
	return &s, nil
}

// ListSimilarities returns every row touching nodeID, highest score first.
func (q *queries) ListSimilarities(ctx context.Context, nodeID string) ([]domain.NodeSimilarity, error) {
	rows, err := q.query(ctx, `
		SELECT `+similarityColumns+` FROM node_similarity
		WHERE node_a_id = ? OR node_b_id = ?
		ORDER BY similarity_score DESC, node_a_id, node_b_id`, nodeID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("list similarities: %w", err)
	}
	defer rows.Close()

	var out []domain.NodeSimilarity
	for rows.Next() {
		s, err := scanSimilarity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan similarity: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteComputedSimilarity removes a non-manual row for the pair.
func (q *queries) DeleteComputedSimilarity(ctx context.Context, a, b string) (bool, error) {
	a, b = domain.CanonicalPair(a, b)
	res, err := q.exec(ctx, `
		DELETE FROM node_similarity
		WHERE node_a_id = ? AND node_b_id = ? AND computation_method <> 'manual'`, a, b)
	if err != nil {
		return false, fmt.Errorf("delete similarity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteSimilaritiesForNode removes every row touching nodeID.
func (q *queries) DeleteSimilaritiesForNode(ctx context.Context, nodeID string) error {
	if _, err := q.exec(ctx, `DELETE FROM node_similarity WHERE node_a_id = ? OR node_b_id = ?`, nodeID, nodeID); err != nil {
		return fmt.Errorf("delete similarities for node: %w", err)
	}
	return nil
}
