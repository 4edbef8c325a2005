package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/RBarbieri13/Decant-sub001/internal/domain"
	"github.com/RBarbieri13/Decant-sub001/internal/port"
)

const changeColumns = `id, node_id, hierarchy_type, old_code, new_code, change_type, reason,
	changed_at, triggered_by, related_node_ids, batch_id, metadata`

// AppendChange inserts one ledger row. The id is generated when empty and
// changed_at always comes from the store clock.
func (t *tx) AppendChange(ctx context.Context, c *domain.HierarchyCodeChange) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.ChangedAt = t.now()

	var related, meta sql.NullString
	if len(c.RelatedNodeIDs) > 0 {
		b, err := json.Marshal(c.RelatedNodeIDs)
		if err != nil {
			return fmt.Errorf("encode related node ids: %w", err)
		}
		related = sql.NullString{String: string(b), Valid: true}
	}
	if len(c.Metadata) > 0 {
		b, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		meta = sql.NullString{String: string(b), Valid: true}
	}
	var oldCode sql.NullString
	if c.OldCode != nil {
		oldCode = sql.NullString{String: *c.OldCode, Valid: true}
	}

	_, err := t.exec(ctx, `
		INSERT INTO hierarchy_code_changes (`+changeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.NodeID, string(c.HierarchyType), oldCode, c.NewCode, string(c.ChangeType), c.Reason,
		toUnix(c.ChangedAt), string(c.TriggeredBy), related, nullString(c.BatchID), meta,
	)
	if err != nil {
		return fmt.Errorf("append code change: %w", err)
	}
	return nil
}

func scanChange(row rowScanner) (domain.HierarchyCodeChange, error) {
	var (
		c                     domain.HierarchyCodeChange
		hierarchy, changeType string
		trigger               string
		oldCode, batchID      sql.NullString
		related, meta         sql.NullString
		changedAt             int64
	)
	if err := row.Scan(
		&c.ID, &c.NodeID, &hierarchy, &oldCode, &c.NewCode, &changeType, &c.Reason,
		&changedAt, &trigger, &related, &batchID, &meta,
	); err != nil {
		return c, err
	}
	c.HierarchyType = domain.HierarchyType(hierarchy)
	c.ChangeType = domain.ChangeType(changeType)
	c.TriggeredBy = domain.TriggeredBy(trigger)
	c.ChangedAt = fromUnix(changedAt)
	c.BatchID = batchID.String
	if oldCode.Valid {
		s := oldCode.String
		c.OldCode = &s
	}
	if related.Valid {
		if err := json.Unmarshal([]byte(related.String), &c.RelatedNodeIDs); err != nil {
			return c, fmt.Errorf("decode related node ids: %w", err)
		}
	}
	if meta.Valid {
		if err := json.Unmarshal([]byte(meta.String), &c.Metadata); err != nil {
			return c, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return c, nil
}

// auditWhere builds the WHERE clause shared by ListChanges and CountChanges.
func auditWhere(q port.AuditQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		conds = append(conds, cond)
		args = append(args, v)
	}
	if q.NodeID != "" {
		add("node_id = ?", q.NodeID)
	}
	if q.HierarchyType != "" {
		add("hierarchy_type = ?", string(q.HierarchyType))
	}
	if q.ChangeType != "" {
		add("change_type = ?", string(q.ChangeType))
	}
	if q.TriggeredBy != "" {
		add("triggered_by = ?", string(q.TriggeredBy))
	}
	if q.BatchID != "" {
		add("batch_id = ?", q.BatchID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListChanges returns ledger rows matching q. Rows sharing a changed_at are
// ordered by insertion sequence in the same direction.
func (q *queries) ListChanges(ctx context.Context, aq port.AuditQuery) ([]domain.HierarchyCodeChange, error) {
	where, args := auditWhere(aq)
	query := `SELECT ` + changeColumns + ` FROM hierarchy_code_changes` + where

	if aq.Ascending {
		query += " ORDER BY changed_at ASC, seq ASC"
	} else {
		query += " ORDER BY changed_at DESC, seq DESC"
	}

	if aq.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, aq.Limit, aq.Offset)
	}

	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list code changes: %w", err)
	}
	defer rows.Close()

	changes := []domain.HierarchyCodeChange{}
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, fmt.Errorf("scan code change: %w", err)
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// CountChanges counts ledger rows matching q, ignoring limit and offset.
func (q *queries) CountChanges(ctx context.Context, aq port.AuditQuery) (int64, error) {
	where, args := auditWhere(aq)
	var n int64
	if err := q.queryRow(ctx, `SELECT COUNT(*) FROM hierarchy_code_changes`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count code changes: %w", err)
	}
	return n, nil
}

// ChangeStatistics aggregates the ledger by type, trigger and hierarchy.
func (q *queries) ChangeStatistics(ctx context.Context) (*domain.ChangeStatistics, error) {
	stats := &domain.ChangeStatistics{
		ByType:      map[domain.ChangeType]int64{},
		ByTrigger:   map[domain.TriggeredBy]int64{},
		ByHierarchy: map[domain.HierarchyType]int64{},
	}

	if err := q.queryRow(ctx, `SELECT COUNT(*) FROM hierarchy_code_changes`).Scan(&stats.TotalChanges); err != nil {
		return nil, fmt.Errorf("count code changes: %w", err)
	}

	groups := []struct {
		column string
		put    func(key string, n int64)
	}{
		{"change_type", func(k string, n int64) { stats.ByType[domain.ChangeType(k)] = n }},
		{"triggered_by", func(k string, n int64) { stats.ByTrigger[domain.TriggeredBy(k)] = n }},
		{"hierarchy_type", func(k string, n int64) { stats.ByHierarchy[domain.HierarchyType(k)] = n }},
	}
	for _, g := range groups {
		if err := q.groupCount(ctx, g.column, g.put); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

func (q *queries) groupCount(ctx context.Context, column string, put func(string, int64)) error {
	rows, err := q.query(ctx, fmt.Sprintf(
		`SELECT %[1]s, COUNT(*) FROM hierarchy_code_changes GROUP BY %[1]s`, column))
	if err != nil {
		return fmt.Errorf("group code changes by %s: %w", column, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key string
			n   int64
		)
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan %s count: %w", column, err)
		}
		put(key, n)
	}
	return rows.Err()
}
