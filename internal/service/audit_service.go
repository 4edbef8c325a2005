package service

import (
	"context"
	"fmt"
	"maps"

	"github.com/RBarbieri13/Decant-sub001/internal/domain"
	"github.com/RBarbieri13/Decant-sub001/internal/port"
)

// Feed limits for ledger queries.
const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 500
)

// AuditService is the only writer of the hierarchy code ledger and serves
// its history, feed and statistics queries.
type AuditService struct {
	store port.Store
}

// NewAuditService creates a new audit service.
func NewAuditService(s port.Store) *AuditService {
	return &AuditService{store: s}
}

// ChangeParams describes one code change to record.
type ChangeParams struct {
	NodeID         string
	HierarchyType  domain.HierarchyType
	OldCode        *string
	NewCode        string
	ChangeType     domain.ChangeType
	TriggeredBy    domain.TriggeredBy
	Reason         string
	RelatedNodeIDs []string
	BatchID        string
	Metadata       map[string]any
}

// HistoryFilter narrows GetNodeHistory.
type HistoryFilter struct {
	HierarchyType domain.HierarchyType
	Limit         int
	Offset        int
}

func validateChange(p ChangeParams) error {
	switch {
	case p.NodeID == "":
		return port.ValidationFailed("nodeId is required")
	case !p.HierarchyType.Valid():
		return port.ValidationFailed("unknown hierarchy type %q", p.HierarchyType)
	case !domain.ValidCode(p.NewCode):
		return port.ValidationFailed("malformed new code %q", p.NewCode)
	case p.OldCode != nil && !domain.ValidCode(*p.OldCode):
		return port.ValidationFailed("malformed old code %q", *p.OldCode)
	case !p.ChangeType.Valid():
		return port.ValidationFailed("unknown change type %q", p.ChangeType)
	case !p.TriggeredBy.Valid():
		return port.ValidationFailed("unknown trigger %q", p.TriggeredBy)
	case p.ChangeType == domain.ChangeCreated && p.OldCode != nil:
		return port.ValidationFailed("a created change has no old code")
	}
	return nil
}

// LogCodeChange validates and appends one row in its own transaction.
func (s *AuditService) LogCodeChange(ctx context.Context, p ChangeParams) (string, error) {
	if err := validateChange(p); err != nil {
		return "", err
	}
	var id string
	err := s.store.InTx(ctx, func(tx port.Tx) error {
		c, err := s.Append(ctx, tx, p)
		if err != nil {
			return err
		}
		id = c.ID
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Append writes one row through the caller's transaction.
func (s *AuditService) Append(ctx context.Context, tx port.AuditAppender, p ChangeParams) (*domain.HierarchyCodeChange, error) {
	if err := validateChange(p); err != nil {
		return nil, err
	}

	var meta map[string]any
	if len(p.Metadata) > 0 || p.BatchID != "" {
		meta = make(map[string]any, len(p.Metadata)+1)
		maps.Copy(meta, p.Metadata)
		if p.BatchID != "" {
			meta[domain.MetaBatchID] = p.BatchID
		}
	}

	c := &domain.HierarchyCodeChange{
		NodeID:         p.NodeID,
		HierarchyType:  p.HierarchyType,
		OldCode:        p.OldCode,
		NewCode:        p.NewCode,
		ChangeType:     p.ChangeType,
		Reason:         p.Reason,
		TriggeredBy:    p.TriggeredBy,
		RelatedNodeIDs: p.RelatedNodeIDs,
		BatchID:        p.BatchID,
		Metadata:       meta,
	}
	if err := tx.AppendChange(ctx, c); err != nil {
		return nil, fmt.Errorf("log code change: %w", err)
	}
	return c, nil
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultAuditLimit
	case limit > MaxAuditLimit:
		return MaxAuditLimit
	}
	return limit
}

// GetNodeHistory returns a node's changes, newest first.
func (s *AuditService) GetNodeHistory(ctx context.Context, nodeID string, f HistoryFilter) ([]domain.HierarchyCodeChange, error) {
	if nodeID == "" {
		return nil, port.ValidationFailed("nodeId is required")
	}
	if f.HierarchyType != "" && !f.HierarchyType.Valid() {
		return nil, port.ValidationFailed("unknown hierarchy type %q", f.HierarchyType)
	}
	if f.Offset < 0 {
		return nil, port.ValidationFailed("offset must not be negative")
	}
	return s.store.ListChanges(ctx, port.AuditQuery{
		NodeID:        nodeID,
		HierarchyType: f.HierarchyType,
		Limit:         normalizeLimit(f.Limit),
		Offset:        f.Offset,
	})
}

// GetRecentChanges returns the newest changes across all nodes together with
// the ledger size.
func (s *AuditService) GetRecentChanges(ctx context.Context, limit int) ([]domain.HierarchyCodeChange, int64, error) {
	changes, err := s.store.ListChanges(ctx, port.AuditQuery{Limit: normalizeLimit(limit)})
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountChanges(ctx, port.AuditQuery{})
	if err != nil {
		return nil, 0, err
	}
	return changes, total, nil
}

// GetChangesByType returns the newest changes of one type.
func (s *AuditService) GetChangesByType(ctx context.Context, t domain.ChangeType, limit int) ([]domain.HierarchyCodeChange, error) {
	if !t.Valid() {
		return nil, port.ValidationFailed("unknown change type %q", t)
	}
	return s.store.ListChanges(ctx, port.AuditQuery{ChangeType: t, Limit: normalizeLimit(limit)})
}

// GetChangesByTrigger returns the newest changes with one trigger.
func (s *AuditService) GetChangesByTrigger(ctx context.Context, t domain.TriggeredBy, limit int) ([]domain.HierarchyCodeChange, error) {
	if !t.Valid() {
		return nil, port.ValidationFailed("unknown trigger %q", t)
	}
	return s.store.ListChanges(ctx, port.AuditQuery{TriggeredBy: t, Limit: normalizeLimit(limit)})
}

// GetBatchChanges returns every change of a batch in the order it was written.
func (s *AuditService) GetBatchChanges(ctx context.Context, batchID string) ([]domain.HierarchyCodeChange, error) {
	if batchID == "" {
		return nil, port.ValidationFailed("batchId is required")
	}
	return s.store.ListChanges(ctx, port.AuditQuery{BatchID: batchID, Ascending: true})
}

// GetChangeStatistics aggregates the whole ledger on every call.
func (s *AuditService) GetChangeStatistics(ctx context.Context) (*domain.ChangeStatistics, error) {
	return s.store.ChangeStatistics(ctx)
}
