package service

import (
	"context"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/RBarbieri13/Decant-sub001/internal/domain"
	"github.com/RBarbieri13/Decant-sub001/internal/port"
)

// HierarchyService validates and applies hierarchy mutations. Every mutation
// and its ledger rows commit in one transaction.
type HierarchyService struct {
	store port.Store
	audit *AuditService
}

// NewHierarchyService creates a new hierarchy service.
func NewHierarchyService(s port.Store, audit *AuditService) *HierarchyService {
	return &HierarchyService{store: s, audit: audit}
}

// MoveRequest moves a node under a new parent. An empty TargetParentID moves
// the node to the root level.
type MoveRequest struct {
	NodeID         string
	TargetParentID string
	HierarchyType  domain.HierarchyType
	Reason         string
	Actor          string
}

// RestructureRequest recomputes codes for a set of nodes as one batch.
// Placements optionally reparent listed nodes first ("" places at the root).
type RestructureRequest struct {
	NodeIDs       []string
	Reason        string
	HierarchyType domain.HierarchyType
	Placements    map[string]string
	Actor         string
}

// RestructureResult is the outcome of a batch.
type RestructureResult struct {
	BatchID string                       `json:"batchId"`
	Changes []domain.HierarchyCodeChange `json:"changes"`
}

// MergeOptions controls MergeNodes.
type MergeOptions struct {
	HierarchyType domain.HierarchyType `json:"hierarchyType,omitempty"`
	AdoptPosition bool                 `json:"adoptPosition,omitempty"`
	KeepSecondary bool                 `json:"keepSecondary,omitempty"`
	Reason        string               `json:"reason,omitempty"`
	Actor         string               `json:"-"`
}

// CreationRequest records the first code of a node in a hierarchy.
type CreationRequest struct {
	NodeID        string
	HierarchyType domain.HierarchyType
	Code          string
	TriggeredBy   domain.TriggeredBy
	Reason        string
	Actor         string
}

// cascade describes the rows written for descendants whose codes follow a
// rebased ancestor.
type cascade struct {
	changeType domain.ChangeType
	trigger    domain.TriggeredBy
	reason     string
	batchID    string
	actor      string
}

func lockAll(ctx context.Context, tx port.Tx, hs ...domain.HierarchyType) error {
	for _, h := range domain.HierarchyTypes {
		if slices.Contains(hs, h) {
			if err := tx.LockHierarchy(ctx, h); err != nil {
				return err
			}
		}
	}
	return nil
}

func actorMeta(actor string, kv ...any) map[string]any {
	m := map[string]any{}
	if actor != "" {
		m[domain.MetaActor] = actor
	}
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i].(string)] = kv[i+1]
	}
	return m
}

func codePtr(code string) *string {
	if code == "" {
		return nil
	}
	return &code
}

// parentCode returns the code of parentID in h, "" for the root level.
func parentCode(ctx context.Context, tx port.Tx, h domain.HierarchyType, parentID string) (string, error) {
	if parentID == "" {
		return "", nil
	}
	p, err := tx.GetNode(ctx, parentID)
	if err != nil {
		return "", err
	}
	code := p.Code(h)
	if code == "" {
		return "", port.ValidationFailed("node %s has no %s code", parentID, h)
	}
	return code, nil
}

// nextOrdinal returns the next free ordinal under parentID, ignoring exclude.
func nextOrdinal(ctx context.Context, tx port.Tx, h domain.HierarchyType, parentID string, exclude ...string) (int, []string, error) {
	children, err := tx.ListChildren(ctx, h, parentID)
	if err != nil {
		return 0, nil, err
	}
	codes := make([]string, 0, len(children))
	for _, c := range children {
		if !slices.Contains(exclude, c.ID) {
			codes = append(codes, c.Code(h))
		}
	}
	return domain.NextOrdinal(codes), codes, nil
}

// checkPlacement rejects moving nodeID under targetID when that would form a cycle.
func checkPlacement(ctx context.Context, tx port.Tx, h domain.HierarchyType, nodeID, targetID string) error {
	if targetID == "" {
		return nil
	}
	if targetID == nodeID {
		return port.InvalidMove("node %s cannot be its own parent", nodeID)
	}
	below, err := tx.IsDescendant(ctx, h, nodeID, targetID)
	if err != nil {
		return err
	}
	if below {
		return port.InvalidMove("target %s is a descendant of %s", targetID, nodeID)
	}
	return nil
}

// rebase rewrites the codes below rootID so they follow rootCode, writing one
// row per descendant whose code changed.
func (s *HierarchyService) rebase(ctx context.Context, tx port.Tx, h domain.HierarchyType, rootID, rootCode string, c cascade) ([]domain.HierarchyCodeChange, error) {
	desc, err := tx.ListDescendants(ctx, h, rootID)
	if err != nil {
		return nil, err
	}

	maxOrd := map[string]int{}
	for _, d := range desc {
		if o := domain.LastOrdinal(d.Code(h)); o > maxOrd[d.ParentID(h)] {
			maxOrd[d.ParentID(h)] = o
		}
	}

	newCodes := map[string]string{rootID: rootCode}
	var changes []domain.HierarchyCodeChange
	for _, d := range desc {
		pc, ok := newCodes[d.ParentID(h)]
		if !ok {
			continue
		}
		old := d.Code(h)
		ord := domain.LastOrdinal(old)
		if ord == 0 {
			maxOrd[d.ParentID(h)]++
			ord = maxOrd[d.ParentID(h)]
		}
		code := domain.ChildCode(pc, ord)
		newCodes[d.ID] = code
		if code == old {
			continue
		}

		if err := tx.UpdatePosition(ctx, d.ID, h, d.ParentID(h), code); err != nil {
			return nil, err
		}
		row, err := s.audit.Append(ctx, tx, ChangeParams{
			NodeID:         d.ID,
			HierarchyType:  h,
			OldCode:        codePtr(old),
			NewCode:        code,
			ChangeType:     c.changeType,
			TriggeredBy:    c.trigger,
			Reason:         c.reason,
			RelatedNodeIDs: []string{rootID},
			BatchID:        c.batchID,
			Metadata:       actorMeta(c.actor, domain.MetaCascadeFrom, rootID),
		})
		if err != nil {
			return nil, err
		}
		changes = append(changes, *row)
	}
	return changes, nil
}

// MoveNode reparents a node within one hierarchy and rebases its subtree.
// Moving a node under its current parent is a no-op and writes nothing.
func (s *HierarchyService) MoveNode(ctx context.Context, req MoveRequest) (*domain.Node, error) {
	h := req.HierarchyType
	switch {
	case req.NodeID == "":
		return nil, port.ValidationFailed("nodeId is required")
	case !h.Valid():
		return nil, port.ValidationFailed("unknown hierarchy type %q", h)
	case req.TargetParentID == req.NodeID:
		return nil, port.InvalidMove("node %s cannot be moved under itself", req.NodeID)
	}

	var moved *domain.Node
	var cascaded int
	err := s.store.InTx(ctx, func(tx port.Tx) error {
		if err := lockAll(ctx, tx, h); err != nil {
			return err
		}
		node, err := tx.GetNode(ctx, req.NodeID)
		if err != nil {
			return err
		}
		oldCode := node.Code(h)
		if oldCode == "" {
			return port.ValidationFailed("node %s has no %s code", node.ID, h)
		}

		targetCode, err := parentCode(ctx, tx, h, req.TargetParentID)
		if err != nil {
			return err
		}
		if err := checkPlacement(ctx, tx, h, node.ID, req.TargetParentID); err != nil {
			return err
		}

		oldParent := node.ParentID(h)
		if oldParent == req.TargetParentID {
			moved = node
			return nil
		}

		ord, _, err := nextOrdinal(ctx, tx, h, req.TargetParentID, node.ID)
		if err != nil {
			return err
		}
		newCode := domain.ChildCode(targetCode, ord)

		if err := tx.UpdatePosition(ctx, node.ID, h, req.TargetParentID, newCode); err != nil {
			return err
		}
		if _, err := s.audit.Append(ctx, tx, ChangeParams{
			NodeID:        node.ID,
			HierarchyType: h,
			OldCode:       &oldCode,
			NewCode:       newCode,
			ChangeType:    domain.ChangeMoved,
			TriggeredBy:   domain.TriggerUserMove,
			Reason:        req.Reason,
			Metadata: actorMeta(req.Actor,
				domain.MetaOldParentID, oldParent, domain.MetaNewParentID, req.TargetParentID),
		}); err != nil {
			return err
		}

		rows, err := s.rebase(ctx, tx, h, node.ID, newCode, cascade{
			changeType: domain.ChangeUpdated,
			trigger:    domain.TriggerUserMove,
			reason:     req.Reason,
			actor:      req.Actor,
		})
		if err != nil {
			return err
		}
		cascaded = len(rows)

		moved, err = tx.GetNode(ctx, node.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("node moved", "node_id", req.NodeID, "hierarchy", h, "target", req.TargetParentID, "cascaded", cascaded)
	return moved, nil
}

// RestructureBatch recomputes codes for a set of nodes under one batch id.
// Nodes are processed parents first; each listed node keeps its ordinal when
// it is still free under its parent.
func (s *HierarchyService) RestructureBatch(ctx context.Context, req RestructureRequest) (*RestructureResult, error) {
	if len(req.NodeIDs) == 0 {
		return nil, port.ValidationFailed("nodeIds must not be empty")
	}
	if req.HierarchyType != "" && !req.HierarchyType.Valid() {
		return nil, port.ValidationFailed("unknown hierarchy type %q", req.HierarchyType)
	}
	if len(req.Placements) > 0 && req.HierarchyType == "" {
		return nil, port.ValidationFailed("placements require a hierarchy type")
	}

	ids := make([]string, 0, len(req.NodeIDs))
	for _, id := range req.NodeIDs {
		if id == "" {
			return nil, port.ValidationFailed("nodeIds must not contain empty ids")
		}
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	for id := range req.Placements {
		if !slices.Contains(ids, id) {
			return nil, port.ValidationFailed("placement for %s which is not in the batch", id)
		}
	}

	hs := domain.HierarchyTypes
	if req.HierarchyType != "" {
		hs = []domain.HierarchyType{req.HierarchyType}
	}

	result := &RestructureResult{BatchID: uuid.NewString(), Changes: []domain.HierarchyCodeChange{}}
	c := cascade{
		changeType: domain.ChangeRestructured,
		trigger:    domain.TriggerRestructure,
		reason:     req.Reason,
		batchID:    result.BatchID,
		actor:      req.Actor,
	}

	err := s.store.InTx(ctx, func(tx port.Tx) error {
		if err := lockAll(ctx, tx, hs...); err != nil {
			return err
		}
		nodes, err := tx.GetNodes(ctx, ids)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if _, ok := nodes[id]; !ok {
				return port.NotFound("node %s does not exist", id)
			}
		}

		for _, h := range hs {
			order := make([]string, 0, len(ids))
			for _, id := range ids {
				if nodes[id].Code(h) != "" {
					order = append(order, id)
				} else if req.HierarchyType != "" {
					return port.ValidationFailed("node %s has no %s code", id, h)
				}
			}
			slices.SortStableFunc(order, func(a, b string) int {
				return domain.Depth(nodes[a].Code(h)) - domain.Depth(nodes[b].Code(h))
			})

			for _, id := range order {
				rows, err := s.restructureOne(ctx, tx, h, id, req.Placements, c)
				if err != nil {
					return err
				}
				result.Changes = append(result.Changes, rows...)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("restructure batch applied", "batch_id", result.BatchID, "nodes", len(ids), "changes", len(result.Changes))
	return result, nil
}

func (s *HierarchyService) restructureOne(ctx context.Context, tx port.Tx, h domain.HierarchyType, id string, placements map[string]string, c cascade) ([]domain.HierarchyCodeChange, error) {
	// Re-read: an earlier node in the batch may have rebased this one.
	node, err := tx.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	oldCode, oldParent := node.Code(h), node.ParentID(h)

	parentID := oldParent
	if target, ok := placements[id]; ok {
		if err := checkPlacement(ctx, tx, h, id, target); err != nil {
			return nil, err
		}
		parentID = target
	}
	pc, err := parentCode(ctx, tx, h, parentID)
	if err != nil {
		return nil, err
	}

	next, siblings, err := nextOrdinal(ctx, tx, h, parentID, id)
	if err != nil {
		return nil, err
	}
	ord := domain.LastOrdinal(oldCode)
	for _, sc := range siblings {
		if domain.LastOrdinal(sc) == ord {
			ord = 0
			break
		}
	}
	if ord == 0 {
		ord = next
	}
	newCode := domain.ChildCode(pc, ord)
	if newCode == oldCode && parentID == oldParent {
		return nil, nil
	}

	if err := tx.UpdatePosition(ctx, id, h, parentID, newCode); err != nil {
		return nil, err
	}
	meta := actorMeta(c.actor)
	if parentID != oldParent {
		meta[domain.MetaOldParentID] = oldParent
		meta[domain.MetaNewParentID] = parentID
	}
	row, err := s.audit.Append(ctx, tx, ChangeParams{
		NodeID:        id,
		HierarchyType: h,
		OldCode:       codePtr(oldCode),
		NewCode:       newCode,
		ChangeType:    c.changeType,
		TriggeredBy:   c.trigger,
		Reason:        c.reason,
		BatchID:       c.batchID,
		Metadata:      meta,
	})
	if err != nil {
		return nil, err
	}

	rows, err := s.rebase(ctx, tx, h, id, newCode, c)
	if err != nil {
		return nil, err
	}
	return append([]domain.HierarchyCodeChange{*row}, rows...), nil
}

// RecordCreation writes the first ledger row for a node in a hierarchy and
// sets its code. The code must sit directly below the node's parent.
func (s *HierarchyService) RecordCreation(ctx context.Context, req CreationRequest) (*domain.HierarchyCodeChange, error) {
	if req.TriggeredBy == "" {
		req.TriggeredBy = domain.TriggerImport
	}
	switch {
	case req.NodeID == "":
		return nil, port.ValidationFailed("nodeId is required")
	case !req.HierarchyType.Valid():
		return nil, port.ValidationFailed("unknown hierarchy type %q", req.HierarchyType)
	case !domain.ValidCode(req.Code):
		return nil, port.ValidationFailed("malformed code %q", req.Code)
	case !req.TriggeredBy.Valid():
		return nil, port.ValidationFailed("unknown trigger %q", req.TriggeredBy)
	}

	var row *domain.HierarchyCodeChange
	err := s.store.InTx(ctx, func(tx port.Tx) error {
		if err := lockAll(ctx, tx, req.HierarchyType); err != nil {
			return err
		}
		node, err := tx.GetNode(ctx, req.NodeID)
		if err != nil {
			return err
		}
		n, err := tx.CountChanges(ctx, port.AuditQuery{NodeID: req.NodeID, HierarchyType: req.HierarchyType})
		if err != nil {
			return err
		}
		if n > 0 {
			return port.ValidationFailed("node %s already has %s history", req.NodeID, req.HierarchyType)
		}
		row, err = s.place(ctx, tx, node, req.HierarchyType, req.Code, req.TriggeredBy, req.Reason, req.Actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// place validates code against the node's parent, stores it and logs creation.
func (s *HierarchyService) place(ctx context.Context, tx port.Tx, node *domain.Node, h domain.HierarchyType, code string, trigger domain.TriggeredBy, reason, actor string) (*domain.HierarchyCodeChange, error) {
	parentID := node.ParentID(h)
	pc, err := parentCode(ctx, tx, h, parentID)
	if err != nil {
		return nil, err
	}
	if code == "" {
		ord, _, err := nextOrdinal(ctx, tx, h, parentID, node.ID)
		if err != nil {
			return nil, err
		}
		code = domain.ChildCode(pc, ord)
	}
	if domain.Depth(code) != domain.Depth(pc)+1 || (pc != "" && !domain.IsWithin(code, pc)) {
		return nil, port.ValidationFailed("code %q does not sit below parent code %q", code, pc)
	}
	_, siblings, err := nextOrdinal(ctx, tx, h, parentID, node.ID)
	if err != nil {
		return nil, err
	}
	for _, sc := range siblings {
		if sc != "" && domain.LastOrdinal(sc) == domain.LastOrdinal(code) {
			return nil, port.ValidationFailed("code %q is already taken under %q", code, pc)
		}
	}

	if err := tx.UpdatePosition(ctx, node.ID, h, parentID, code); err != nil {
		return nil, err
	}
	return s.audit.Append(ctx, tx, ChangeParams{
		NodeID:        node.ID,
		HierarchyType: h,
		NewCode:       code,
		ChangeType:    domain.ChangeCreated,
		TriggeredBy:   trigger,
		Reason:        reason,
		Metadata:      actorMeta(actor),
	})
}

// RegisterNode stores a newly imported node and records its creation in every
// hierarchy it is placed in. A node with a parent but no code gets the next
// free ordinal under that parent.
func (s *HierarchyService) RegisterNode(ctx context.Context, n *domain.Node, actor string) (*domain.Node, error) {
	for _, h := range domain.HierarchyTypes {
		if c := n.Code(h); c != "" && !domain.ValidCode(c) {
			return nil, port.ValidationFailed("malformed %s code %q", h, c)
		}
		if n.ParentID(h) != "" && n.ParentID(h) == n.ID {
			return nil, port.InvalidMove("node %s cannot be its own parent", n.ID)
		}
	}

	var created *domain.Node
	err := s.store.InTx(ctx, func(tx port.Tx) error {
		if err := lockAll(ctx, tx, domain.HierarchyTypes...); err != nil {
			return err
		}
		if n.ID != "" {
			if _, err := tx.GetNode(ctx, n.ID); err == nil {
				return port.ValidationFailed("node %s already exists", n.ID)
			}
		}
		for _, h := range domain.HierarchyTypes {
			if p := n.ParentID(h); p != "" {
				if _, err := tx.GetNode(ctx, p); err != nil {
					return err
				}
			}
		}

		// Insert unplaced, then place each hierarchy so codes are validated
		// and logged through one path.
		pending := *n
		for _, h := range domain.HierarchyTypes {
			pending.SetPosition(h, "", "")
		}
		if err := tx.InsertNode(ctx, &pending); err != nil {
			return err
		}
		for _, h := range domain.HierarchyTypes {
			if n.Code(h) == "" && n.ParentID(h) == "" {
				continue
			}
			pending.SetPosition(h, n.ParentID(h), "")
			if _, err := s.place(ctx, tx, &pending, h, n.Code(h), domain.TriggerImport, "imported", actor); err != nil {
				return err
			}
		}

		var err error
		created, err = tx.GetNode(ctx, pending.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("node registered", "node_id", created.ID, "function_code", created.FunctionCode, "organization_code", created.OrganizationCode)
	return created, nil
}

// GetNode returns a node by id.
func (s *HierarchyService) GetNode(ctx context.Context, id string) (*domain.Node, error) {
	return s.store.GetNode(ctx, id)
}
