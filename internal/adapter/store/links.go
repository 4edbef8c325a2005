package store

import (
	"context"
	"fmt"

	"github.com/RBarbieri13/Decant-sub001/internal/domain"
)

// AddLink stores a manual link, replacing the label of an existing one.
func (q *queries) AddLink(ctx context.Context, l *domain.ManualLink) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = q.now()
	}
	_, err := q.exec(ctx, `
		INSERT INTO node_links (source_id, target_id, label, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (source_id, target_id) DO UPDATE SET label = excluded.label`,
		l.SourceID, l.TargetID, l.Label, toUnix(l.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("add link: %w", err)
	}
	return nil
}

// ListLinks returns links in either direction touching nodeID.
func (q *queries) ListLinks(ctx context.Context, nodeID string) ([]domain.ManualLink, error) {
	rows, err := q.query(ctx, `
		SELECT source_id, target_id, label, created_at FROM node_links
		WHERE source_id = ? OR target_id = ?
		ORDER BY created_at, source_id, target_id`, nodeID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	var out []domain.ManualLink
	for rows.Next() {
		var (
			l         domain.ManualLink
			createdAt int64
		)
		if err := rows.Scan(&l.SourceID, &l.TargetID, &l.Label, &createdAt); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		l.CreatedAt = fromUnix(createdAt)
		out = append(out, l)
	}
	return out, rows.Err()
}

// RepointLinks moves every link of fromID onto toID. Links that would become
// self-links are dropped and duplicates collapse onto the existing row.
func (q *queries) RepointLinks(ctx context.Context, fromID, toID string) error {
	links, err := q.ListLinks(ctx, fromID)
	if err != nil {
		return err
	}
	if _, err := q.exec(ctx, `DELETE FROM node_links WHERE source_id = ? OR target_id = ?`, fromID, fromID); err != nil {
		return fmt.Errorf("repoint links: %w", err)
	}
	for _, l := range links {
		if l.SourceID == fromID {
			l.SourceID = toID
		}
		if l.TargetID == fromID {
			l.TargetID = toID
		}
		if l.SourceID == l.TargetID {
			continue
		}
		_, err := q.exec(ctx, `
			INSERT INTO node_links (source_id, target_id, label, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (source_id, target_id) DO NOTHING`,
			l.SourceID, l.TargetID, l.Label, toUnix(l.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("repoint links: %w", err)
		}
	}
	return nil
}
