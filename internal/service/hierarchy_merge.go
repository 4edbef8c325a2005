package service

import (
	"context"
	"log/slog"
	"slices"

	"github.com/RBarbieri13/Decant-sub001/internal/domain"
	"github.com/RBarbieri13/Decant-sub001/internal/port"
)

const metaMergedFrom = "mergedFrom"

// MergeNodes folds secondary into primary. In the chosen hierarchy the
// primary may take the secondary's position (forced when the primary sits in
// the secondary's subtree or has no code) and adopts its children. Unless
// KeepSecondary is set, the other hierarchy is folded the same way, links are
// re-pointed and the secondary is deleted.
func (s *HierarchyService) MergeNodes(ctx context.Context, primaryID, secondaryID string, opts MergeOptions) (*domain.Node, error) {
	if opts.HierarchyType == "" {
		opts.HierarchyType = domain.HierarchyFunction
	}
	switch {
	case primaryID == "" || secondaryID == "":
		return nil, port.ValidationFailed("primary and secondary ids are required")
	case primaryID == secondaryID:
		return nil, port.ValidationFailed("cannot merge node %s into itself", primaryID)
	case !opts.HierarchyType.Valid():
		return nil, port.ValidationFailed("unknown hierarchy type %q", opts.HierarchyType)
	}

	var merged *domain.Node
	err := s.store.InTx(ctx, func(tx port.Tx) error {
		if err := lockAll(ctx, tx, domain.HierarchyTypes...); err != nil {
			return err
		}
		primary, err := tx.GetNode(ctx, primaryID)
		if err != nil {
			return err
		}
		secondary, err := tx.GetNode(ctx, secondaryID)
		if err != nil {
			return err
		}

		h := opts.HierarchyType
		if primary.Code(h) == "" && secondary.Code(h) == "" {
			return port.ValidationFailed("neither %s nor %s has a %s code", primaryID, secondaryID, h)
		}
		if err := s.foldHierarchy(ctx, tx, h, primary, secondary, opts, true); err != nil {
			return err
		}
		if !opts.KeepSecondary {
			if err := s.foldHierarchy(ctx, tx, h.Other(), primary, secondary, opts, false); err != nil {
				return err
			}
		}

		if changed := foldMetadata(primary, secondary); changed {
			if err := tx.UpdateMetadata(ctx, primary); err != nil {
				return err
			}
		}

		if !opts.KeepSecondary {
			if err := tx.RepointLinks(ctx, secondaryID, primaryID); err != nil {
				return err
			}
			if err := tx.DeleteSimilaritiesForNode(ctx, secondaryID); err != nil {
				return err
			}
			if err := tx.DeleteNode(ctx, secondaryID); err != nil {
				return err
			}
		}

		merged, err = tx.GetNode(ctx, primaryID)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("nodes merged", "primary_id", primaryID, "secondary_id", secondaryID,
		"hierarchy", opts.HierarchyType, "kept_secondary", opts.KeepSecondary)
	return merged, nil
}

// foldHierarchy merges the secondary's position and children into the primary
// within h. primary is updated in place. The chosen hierarchy always gets a
// primary row; the other one only when the primary's code changes.
func (s *HierarchyService) foldHierarchy(ctx context.Context, tx port.Tx, h domain.HierarchyType, primary, secondary *domain.Node, opts MergeOptions, chosen bool) error {
	sCode, sParent := secondary.Code(h), secondary.ParentID(h)
	pCode, pParent := primary.Code(h), primary.ParentID(h)
	if sCode == "" {
		if chosen {
			return s.logPrimary(ctx, tx, h, primary, secondary.ID, pCode, pCode, false, opts)
		}
		return nil
	}

	inside, err := tx.IsDescendant(ctx, h, secondary.ID, primary.ID)
	if err != nil {
		return err
	}
	adopt := pCode == "" || inside || (chosen && opts.AdoptPosition)

	newCode, newParent := pCode, pParent
	if adopt {
		if sParent == primary.ID {
			return port.InvalidMove("%s is the %s parent of %s", primary.ID, h, secondary.ID)
		}
		if sParent != "" {
			below, err := tx.IsDescendant(ctx, h, primary.ID, sParent)
			if err != nil {
				return err
			}
			if below {
				return port.InvalidMove("%s sits below %s in %s", sParent, primary.ID, h)
			}
		}
		newParent = sParent
		if opts.KeepSecondary {
			pc, err := parentCode(ctx, tx, h, newParent)
			if err != nil {
				return err
			}
			// The kept secondary still holds its code under newParent.
			ord, _, err := nextOrdinal(ctx, tx, h, newParent, primary.ID)
			if err != nil {
				return err
			}
			newCode = domain.ChildCode(pc, ord)
		} else {
			newCode = sCode
		}
		if err := tx.UpdatePosition(ctx, primary.ID, h, newParent, newCode); err != nil {
			return err
		}
		primary.SetPosition(h, newParent, newCode)
	}

	if chosen || newCode != pCode {
		if err := s.logPrimary(ctx, tx, h, primary, secondary.ID, pCode, newCode, adopt, opts); err != nil {
			return err
		}
	}

	c := cascade{
		changeType: domain.ChangeUpdated,
		trigger:    domain.TriggerMerge,
		reason:     opts.Reason,
		actor:      opts.Actor,
	}
	if adopt && newCode != pCode && pCode != "" {
		if _, err := s.rebase(ctx, tx, h, primary.ID, newCode, c); err != nil {
			return err
		}
	}

	return s.adoptChildren(ctx, tx, h, primary, secondary, c)
}

// adoptChildren moves the secondary's remaining children under the primary.
func (s *HierarchyService) adoptChildren(ctx context.Context, tx port.Tx, h domain.HierarchyType, primary, secondary *domain.Node, c cascade) error {
	children, err := tx.ListChildren(ctx, h, secondary.ID)
	if err != nil {
		return err
	}
	children = slices.DeleteFunc(children, func(n *domain.Node) bool { return n.ID == primary.ID })
	if len(children) == 0 {
		return nil
	}

	ord, _, err := nextOrdinal(ctx, tx, h, primary.ID)
	if err != nil {
		return err
	}
	pc := primary.Code(h)
	for _, child := range children {
		old := child.Code(h)
		code := domain.ChildCode(pc, ord)
		ord++

		if err := tx.UpdatePosition(ctx, child.ID, h, primary.ID, code); err != nil {
			return err
		}
		if _, err := s.audit.Append(ctx, tx, ChangeParams{
			NodeID:         child.ID,
			HierarchyType:  h,
			OldCode:        codePtr(old),
			NewCode:        code,
			ChangeType:     domain.ChangeMoved,
			TriggeredBy:    domain.TriggerMerge,
			Reason:         c.reason,
			RelatedNodeIDs: []string{primary.ID, secondary.ID},
			Metadata: actorMeta(c.actor,
				domain.MetaOldParentID, secondary.ID, domain.MetaNewParentID, primary.ID),
		}); err != nil {
			return err
		}
		if _, err := s.rebase(ctx, tx, h, child.ID, code, c); err != nil {
			return err
		}
	}
	return nil
}

func (s *HierarchyService) logPrimary(ctx context.Context, tx port.Tx, h domain.HierarchyType, primary *domain.Node, secondaryID, oldCode, newCode string, adopted bool, opts MergeOptions) error {
	ct := domain.ChangeUpdated
	if adopted {
		ct = domain.ChangeMoved
	}
	_, err := s.audit.Append(ctx, tx, ChangeParams{
		NodeID:         primary.ID,
		HierarchyType:  h,
		OldCode:        codePtr(oldCode),
		NewCode:        newCode,
		ChangeType:     ct,
		TriggeredBy:    domain.TriggerMerge,
		Reason:         opts.Reason,
		RelatedNodeIDs: []string{secondaryID},
		Metadata:       actorMeta(opts.Actor, metaMergedFrom, secondaryID, "adoptedPosition", adopted),
	})
	return err
}

// foldMetadata unions tags and fills the primary's empty descriptive fields
// from the secondary. It reports whether anything changed.
func foldMetadata(primary, secondary *domain.Node) bool {
	changed := false
	fill := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
			changed = true
		}
	}
	fill(&primary.Title, secondary.Title)
	fill(&primary.Description, secondary.Description)
	fill(&primary.SegmentCode, secondary.SegmentCode)
	fill(&primary.CategoryCode, secondary.CategoryCode)
	fill(&primary.ContentTypeCode, secondary.ContentTypeCode)

	for _, t := range secondary.Tags {
		if !slices.Contains(primary.Tags, t) {
			primary.Tags = append(primary.Tags, t)
			changed = true
		}
	}
	return changed
}
