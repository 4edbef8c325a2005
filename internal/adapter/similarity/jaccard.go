package similarity

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/RBarbieri13/Decant-sub001/internal/domain"
	"github.com/RBarbieri13/Decant-sub001/internal/port"
)

// Weights sets how much each feature kind counts in the weighted Jaccard index.
type Weights struct {
	Tag         float64
	Segment     float64
	Category    float64
	ContentType float64
	Parent      float64
}

// DefaultWeights favours category and hierarchy placement over single tags.
var DefaultWeights = Weights{Tag: 1, Segment: 1.5, Category: 2, ContentType: 0.5, Parent: 1.5}

// JaccardStrategy scores Σ shared feature weights / Σ union feature weights.
type JaccardStrategy struct {
	w Weights
}

func NewJaccardStrategy(w Weights) *JaccardStrategy {
	return &JaccardStrategy{w: w}
}

func (s *JaccardStrategy) Method() domain.ComputationMethod { return domain.MethodJaccardWeighted }
func (s *JaccardStrategy) Description() string {
	return "Weighted Jaccard over tags, classification codes and hierarchy parents"
}

func (s *JaccardStrategy) Prepare(_ context.Context, _ []*domain.Node) (port.Scorer, error) {
	return s, nil
}

func (s *JaccardStrategy) Score(_ context.Context, a, b *domain.Node) (float64, error) {
	fa, fb := s.features(a), s.features(b)
	keys := make([]string, 0, len(fa)+len(fb))
	keys = append(keys, slices.Collect(maps.Keys(fa))...)
	keys = append(keys, slices.Collect(maps.Keys(fb))...)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	// Summed in key order so repeated runs produce identical bits.
	var shared, union float64
	for _, k := range keys {
		wa, inA := fa[k]
		wb, inB := fb[k]
		switch {
		case inA && inB:
			shared += wa
			union += wa
		case inA:
			union += wa
		default:
			union += wb
		}
	}
	if union == 0 {
		return 0, nil
	}
	return domain.ClampScore(shared / union), nil
}

func (s *JaccardStrategy) features(n *domain.Node) map[string]float64 {
	f := map[string]float64{}
	put := func(key string, w float64) {
		if w > 0 {
			f[key] = w
		}
	}
	for _, t := range n.Tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			put("tag:"+t, s.w.Tag)
		}
	}
	if n.SegmentCode != "" {
		put("segment:"+n.SegmentCode, s.w.Segment)
	}
	if n.CategoryCode != "" {
		put("category:"+n.CategoryCode, s.w.Category)
	}
	if n.ContentTypeCode != "" {
		put("content_type:"+n.ContentTypeCode, s.w.ContentType)
	}
	if n.FunctionParentID != "" {
		put("function_parent:"+n.FunctionParentID, s.w.Parent)
	}
	if n.OrganizationParentID != "" {
		put("organization_parent:"+n.OrganizationParentID, s.w.Parent)
	}
	return f
}
