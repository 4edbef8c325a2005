package service

import (
	"cmp"
	"context"
	"slices"

	"github.com/RBarbieri13/Decant-sub001/internal/domain"
	"github.com/RBarbieri13/Decant-sub001/internal/port"
)

// Default result sizes for derivation reads.
const (
	DefaultRelatedLimit  = 5
	DefaultBacklinkLimit = 10
	maxRelationLimit     = 100
)

// RelationOptions tunes backlink classification.
type RelationOptions struct {
	// SimilarThreshold splits similar (>=) from related (<) similarity rows.
	SimilarThreshold float64
	// SiblingStrength is used for siblings without a similarity row, in [0,1].
	SiblingStrength float64
}

// RelationService derives related items and backlinks on read.
type RelationService struct {
	store port.Store
	opts  RelationOptions
}

// NewRelationService creates a new relation service.
func NewRelationService(s port.Store, opts RelationOptions) *RelationService {
	if opts.SimilarThreshold <= 0 {
		opts.SimilarThreshold = 0.5
	}
	if opts.SiblingStrength <= 0 {
		opts.SiblingStrength = 0.5
	}
	return &RelationService{store: s, opts: opts}
}

func clampLimit(limit, def int) int {
	switch {
	case limit <= 0:
		return def
	case limit > maxRelationLimit:
		return maxRelationLimit
	}
	return limit
}

// GetRelated ranks the nodes sharing a similarity row with nodeID by score,
// then by newest creation time.
func (s *RelationService) GetRelated(ctx context.Context, nodeID string, limit int) ([]domain.RelatedItem, error) {
	limit = clampLimit(limit, DefaultRelatedLimit)
	node, err := s.store.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	sims, err := s.store.ListSimilarities(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(sims))
	for _, sim := range sims {
		ids = append(ids, sim.Other(nodeID))
	}
	others, err := s.store.GetNodes(ctx, ids)
	if err != nil {
		return nil, err
	}

	type scored struct {
		item  domain.RelatedItem
		score float64
	}
	var rows []scored
	for _, sim := range sims {
		other, ok := others[sim.Other(nodeID)]
		if !ok {
			continue
		}
		rows = append(rows, scored{
			item: domain.RelatedItem{
				Node:             other,
				SimilarityScore:  domain.Strength(sim.SimilarityScore),
				SharedAttributes: domain.SharedAttributes(node, other),
			},
			score: sim.SimilarityScore,
		})
	}
	slices.SortFunc(rows, func(a, b scored) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		if c := b.item.Node.CreatedAt.Compare(a.item.Node.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.item.Node.ID, b.item.Node.ID)
	})

	out := make([]domain.RelatedItem, 0, min(limit, len(rows)))
	for _, r := range rows[:min(limit, len(rows))] {
		out = append(out, r.item)
	}
	return out, nil
}

type candidate struct {
	node  *domain.Node
	ref   domain.ReferenceType
	score float64
}

// GetBacklinks classifies every node linked to nodeID and keeps the strongest
// reference per node (manual > similar > sibling > related).
func (s *RelationService) GetBacklinks(ctx context.Context, nodeID string, limit int) (*domain.BacklinkSet, error) {
	limit = clampLimit(limit, DefaultBacklinkLimit)
	node, err := s.store.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	best := map[string]candidate{}
	scores := map[string]float64{}
	offer := func(c candidate) {
		cur, ok := best[c.node.ID]
		if !ok || c.ref.Rank() < cur.ref.Rank() ||
			(c.ref == cur.ref && c.score > cur.score) {
			best[c.node.ID] = c
		}
	}

	sims, err := s.store.ListSimilarities(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	links, err := s.store.ListLinks(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, sim := range sims {
		ids = append(ids, sim.Other(nodeID))
	}
	for _, l := range links {
		if l.SourceID == nodeID {
			ids = append(ids, l.TargetID)
		} else {
			ids = append(ids, l.SourceID)
		}
	}
	others, err := s.store.GetNodes(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, sim := range sims {
		other, ok := others[sim.Other(nodeID)]
		if !ok {
			continue
		}
		scores[other.ID] = sim.SimilarityScore
		ref := domain.RefRelated
		switch {
		case sim.ComputationMethod == domain.MethodManual:
			ref = domain.RefManual
		case sim.SimilarityScore >= s.opts.SimilarThreshold:
			ref = domain.RefSimilar
		}
		offer(candidate{node: other, ref: ref, score: sim.SimilarityScore})
	}

	for _, l := range links {
		otherID := l.SourceID
		if otherID == nodeID {
			otherID = l.TargetID
		}
		if other, ok := others[otherID]; ok {
			offer(candidate{node: other, ref: domain.RefManual, score: 1})
		}
	}

	for _, h := range domain.HierarchyTypes {
		parentID := node.ParentID(h)
		if parentID == "" {
			continue
		}
		siblings, err := s.store.ListChildren(ctx, h, parentID)
		if err != nil {
			return nil, err
		}
		for _, sib := range siblings {
			if sib.ID == nodeID {
				continue
			}
			score, ok := scores[sib.ID]
			if !ok {
				score = s.opts.SiblingStrength
			}
			offer(candidate{node: sib, ref: domain.RefSibling, score: score})
		}
	}

	ranked := make([]candidate, 0, len(best))
	for _, c := range best {
		ranked = append(ranked, c)
	}
	slices.SortFunc(ranked, func(a, b candidate) int {
		if c := cmp.Compare(a.ref.Rank(), b.ref.Rank()); c != 0 {
			return c
		}
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		if c := b.node.CreatedAt.Compare(a.node.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.node.ID, b.node.ID)
	})

	set := &domain.BacklinkSet{
		NodeID:    nodeID,
		Backlinks: []domain.Backlink{},
		Grouped:   make(map[domain.ReferenceType][]domain.Backlink, len(domain.ReferenceTypes)),
		Total:     len(ranked),
	}
	for _, t := range domain.ReferenceTypes {
		set.Grouped[t] = []domain.Backlink{}
	}
	for _, c := range ranked[:min(limit, len(ranked))] {
		bl := domain.Backlink{
			Node:             c.node,
			ReferenceType:    c.ref,
			Strength:         domain.Strength(c.score),
			SharedAttributes: domain.SharedAttributes(node, c.node),
		}
		set.Backlinks = append(set.Backlinks, bl)
		set.Grouped[c.ref] = append(set.Grouped[c.ref], bl)
	}
	return set, nil
}

// AddManualLink declares a link between two existing nodes.
func (s *RelationService) AddManualLink(ctx context.Context, sourceID, targetID, label string) (*domain.ManualLink, error) {
	if sourceID == "" || targetID == "" {
		return nil, port.ValidationFailed("source and target ids are required")
	}
	if sourceID == targetID {
		return nil, port.ValidationFailed("a node cannot link to itself")
	}
	nodes, err := s.store.GetNodes(ctx, []string{sourceID, targetID})
	if err != nil {
		return nil, err
	}
	for _, id := range []string{sourceID, targetID} {
		if _, ok := nodes[id]; !ok {
			return nil, port.NotFound("node %s does not exist", id)
		}
	}
	l := &domain.ManualLink{SourceID: sourceID, TargetID: targetID, Label: label}
	if err := s.store.AddLink(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}
