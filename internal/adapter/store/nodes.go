package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/RBarbieri13/Decant-sub001/internal/domain"
	"github.com/RBarbieri13/Decant-sub001/internal/port"
)

var nodeFields = []string{
	"id", "title", "description", "function_parent_id", "organization_parent_id",
	"function_code", "organization_code", "segment_code", "category_code",
	"content_type_code", "tags", "created_at", "updated_at",
}

// nodeColumns renders the node column list, optionally qualified by alias.
func nodeColumns(alias string) string {
	if alias == "" {
		return strings.Join(nodeFields, ", ")
	}
	cols := make([]string, len(nodeFields))
	for i, f := range nodeFields {
		cols[i] = alias + "." + f
	}
	return strings.Join(cols, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*domain.Node, error) {
	var (
		n                  domain.Node
		fParent, oParent   sql.NullString
		fCode, oCode       sql.NullString
		tags               string
		createdAt, updated int64
	)
	if err := row.Scan(
		&n.ID, &n.Title, &n.Description, &fParent, &oParent,
		&fCode, &oCode, &n.SegmentCode, &n.CategoryCode,
		&n.ContentTypeCode, &tags, &createdAt, &updated,
	); err != nil {
		return nil, err
	}
	n.FunctionParentID = fParent.String
	n.OrganizationParentID = oParent.String
	n.FunctionCode = fCode.String
	n.OrganizationCode = oCode.String
	n.CreatedAt = fromUnix(createdAt)
	n.UpdatedAt = fromUnix(updated)
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for %s: %w", n.ID, err)
		}
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	return &n, nil
}

func (q *queries) scanNodes(ctx context.Context, query string, args ...any) ([]*domain.Node, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

// GetNode returns a node by id.
func (q *queries) GetNode(ctx context.Context, id string) (*domain.Node, error) {
	n, err := scanNode(q.queryRow(ctx, `SELECT `+nodeColumns("")+` FROM nodes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.NotFound("node %s does not exist", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get node: %w", err)
	}
	return n, nil
}

// GetNodes returns the existing nodes among ids, keyed by id.
func (q *queries) GetNodes(ctx context.Context, ids []string) (map[string]*domain.Node, error) {
	out := make(map[string]*domain.Node, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	nodes, err := q.scanNodes(ctx,
		`SELECT `+nodeColumns("")+` FROM nodes WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("get nodes: %w", err)
	}
	for _, n := range nodes {
		out[n.ID] = n
	}
	return out, nil
}

// ListNodes returns every node ordered by id.
func (q *queries) ListNodes(ctx context.Context) ([]*domain.Node, error) {
	nodes, err := q.scanNodes(ctx, `SELECT `+nodeColumns("")+` FROM nodes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	return nodes, nil
}

// ListChildren returns direct children of parentID in h. An empty parentID
// lists the coded roots of h.
func (q *queries) ListChildren(ctx context.Context, h domain.HierarchyType, parentID string) ([]*domain.Node, error) {
	var (
		nodes []*domain.Node
		err   error
	)
	if parentID == "" {
		nodes, err = q.scanNodes(ctx, fmt.Sprintf(
			`SELECT %s FROM nodes WHERE %s IS NULL AND %s IS NOT NULL ORDER BY %s, id`,
			nodeColumns(""), parentColumn(h), codeColumn(h), codeColumn(h)))
	} else {
		nodes, err = q.scanNodes(ctx, fmt.Sprintf(
			`SELECT %s FROM nodes WHERE %s = ? ORDER BY %s, id`,
			nodeColumns(""), parentColumn(h), codeColumn(h)), parentID)
	}
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return nodes, nil
}

// ListDescendants walks the subtree below rootID with a recursive CTE.
// Results are ordered by depth so parents precede their children.
func (q *queries) ListDescendants(ctx context.Context, h domain.HierarchyType, rootID string) ([]*domain.Node, error) {
	pc := parentColumn(h)
	query := fmt.Sprintf(`
		WITH RECURSIVE subtree(id, depth) AS (
			SELECT id, 1 FROM nodes WHERE %[1]s = ?
			UNION
			SELECT n.id, s.depth + 1 FROM nodes n JOIN subtree s ON n.%[1]s = s.id
			WHERE s.depth < 1000
		)
		SELECT %[2]s FROM nodes n JOIN subtree s ON n.id = s.id
		ORDER BY s.depth, n.%[3]s, n.id`, pc, nodeColumns("n"), codeColumn(h))

	nodes, err := q.scanNodes(ctx, query, rootID)
	if err != nil {
		return nil, fmt.Errorf("list descendants: %w", err)
	}
	return nodes, nil
}

// IsDescendant reports whether candidateID lies anywhere below ancestorID in h.
func (q *queries) IsDescendant(ctx context.Context, h domain.HierarchyType, ancestorID, candidateID string) (bool, error) {
	query := fmt.Sprintf(`
		WITH RECURSIVE subtree(id) AS (
			SELECT id FROM nodes WHERE %[1]s = ?
			UNION
			SELECT n.id FROM nodes n JOIN subtree s ON n.%[1]s = s.id
		)
		SELECT COUNT(*) FROM subtree WHERE id = ?`, parentColumn(h))

	var count int
	if err := q.queryRow(ctx, query, ancestorID, candidateID).Scan(&count); err != nil {
		return false, fmt.Errorf("descendant check: %w", err)
	}
	return count > 0, nil
}

// InsertNode stores a new node. Missing ids and timestamps are filled in.
func (q *queries) InsertNode(ctx context.Context, n *domain.Node) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = q.now()
	}
	n.UpdatedAt = n.CreatedAt
	if n.Tags == nil {
		n.Tags = []string{}
	}
	tags, err := encodeTags(n.Tags)
	if err != nil {
		return err
	}

	_, err = q.exec(ctx, `
		INSERT INTO nodes (`+nodeColumns("")+`)
		VALUES (`+placeholders(len(nodeFields))+`)`,
		n.ID, n.Title, n.Description, nullString(n.FunctionParentID), nullString(n.OrganizationParentID),
		nullString(n.FunctionCode), nullString(n.OrganizationCode), n.SegmentCode, n.CategoryCode,
		n.ContentTypeCode, tags, toUnix(n.CreatedAt), toUnix(n.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert node: %w", err)
	}
	return nil
}

// UpdatePosition sets the parent and code of a node in one hierarchy.
func (q *queries) UpdatePosition(ctx context.Context, id string, h domain.HierarchyType, parentID, code string) error {
	query := fmt.Sprintf(`UPDATE nodes SET %s = ?, %s = ?, updated_at = ? WHERE id = ?`, parentColumn(h), codeColumn(h))
	res, err := q.exec(ctx, query, nullString(parentID), nullString(code), toUnix(q.now()), id)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	return requireAffected(res, id)
}

// UpdateMetadata rewrites the descriptive fields of a node.
func (q *queries) UpdateMetadata(ctx context.Context, n *domain.Node) error {
	tags, err := encodeTags(n.Tags)
	if err != nil {
		return err
	}
	n.UpdatedAt = q.now()
	res, err := q.exec(ctx, `
		UPDATE nodes SET title = ?, description = ?, segment_code = ?, category_code = ?,
			content_type_code = ?, tags = ?, updated_at = ?
		WHERE id = ?`,
		n.Title, n.Description, n.SegmentCode, n.CategoryCode, n.ContentTypeCode, tags, toUnix(n.UpdatedAt), n.ID,
	)
	if err != nil {
		return fmt.Errorf("update metadata: %w", err)
	}
	return requireAffected(res, n.ID)
}

// DeleteNode removes a node. Similarity rows and links cascade.
func (q *queries) DeleteNode(ctx context.Context, id string) error {
	res, err := q.exec(ctx, `DELETE FROM nodes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete node: %w", err)
	}
	return requireAffected(res, id)
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return port.NotFound("node %s does not exist", id)
	}
	return nil
}
