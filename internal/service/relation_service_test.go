package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RBarbieri13/Decant-sub001/internal/domain"
	"github.com/RBarbieri13/Decant-sub001/internal/port"
)

// seedRelations builds a node "a" with one neighbour per reference type.
func seedRelations(t *testing.T, s port.Store) {
	ctx := context.Background()
	seed(t, s,
		&domain.Node{ID: "p", FunctionCode: "1"},
		&domain.Node{ID: "a", FunctionParentID: "p", FunctionCode: "1.1", Tags: []string{"go", "db"}, SegmentCode: "T", CategoryCode: "DB"},
		&domain.Node{ID: "b", FunctionParentID: "p", FunctionCode: "1.2", Tags: []string{"go"}, SegmentCode: "T"},
		&domain.Node{ID: "c", FunctionParentID: "p", FunctionCode: "1.3"},
		&domain.Node{ID: "d", Tags: []string{"db"}, CategoryCode: "DB"},
		&domain.Node{ID: "e"},
	)
	for _, row := range []domain.NodeSimilarity{
		{NodeAID: "a", NodeBID: "b", SimilarityScore: 0.8, ComputationMethod: domain.MethodJaccardWeighted},
		{NodeAID: "a", NodeBID: "d", SimilarityScore: 0.2, ComputationMethod: domain.MethodTFIDF},
	} {
		_, err := s.UpsertSimilarity(ctx, &row)
		require.NoError(t, err)
	}
	require.NoError(t, s.AddLink(ctx, &domain.ManualLink{SourceID: "e", TargetID: "a", Label: "see also"}))
}

func TestGetRelated(t *testing.T) {
	s := setupStore(t)
	seedRelations(t, s)
	svc := NewRelationService(s, RelationOptions{})
	ctx := context.Background()

	items, err := svc.GetRelated(ctx, "a", 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].Node.ID)
	assert.Equal(t, 80, items[0].SimilarityScore)
	assert.Equal(t, []string{"tag:go", "segment:T"}, items[0].SharedAttributes)
	assert.Equal(t, "d", items[1].Node.ID)
	assert.Equal(t, []string{"tag:db", "category:DB"}, items[1].SharedAttributes)

	items, err = svc.GetRelated(ctx, "a", 1)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = svc.GetRelated(ctx, "ghost", 0)
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestGetBacklinksClassifiesAndGroups(t *testing.T) {
	s := setupStore(t)
	seedRelations(t, s)
	svc := NewRelationService(s, RelationOptions{})

	set, err := svc.GetBacklinks(context.Background(), "a", 0)
	require.NoError(t, err)
	assert.Equal(t, 4, set.Total)
	require.Len(t, set.Backlinks, 4)

	want := []struct {
		id       string
		ref      domain.ReferenceType
		strength int
	}{
		{"e", domain.RefManual, 100},
		{"b", domain.RefSimilar, 80},
		{"c", domain.RefSibling, 50},
		{"d", domain.RefRelated, 20},
	}
	for i, w := range want {
		bl := set.Backlinks[i]
		assert.Equal(t, w.id, bl.Node.ID)
		assert.Equal(t, w.ref, bl.ReferenceType)
		assert.Equal(t, w.strength, bl.Strength)
		require.Len(t, set.Grouped[w.ref], 1)
		assert.Equal(t, w.id, set.Grouped[w.ref][0].Node.ID)
	}
}

func TestGetBacklinksTruncatesAfterCounting(t *testing.T) {
	s := setupStore(t)
	seedRelations(t, s)
	svc := NewRelationService(s, RelationOptions{})

	set, err := svc.GetBacklinks(context.Background(), "a", 2)
	require.NoError(t, err)
	assert.Equal(t, 4, set.Total)
	assert.Len(t, set.Backlinks, 2)
	for _, ref := range domain.ReferenceTypes {
		assert.NotNil(t, set.Grouped[ref], "group %s present", ref)
	}
	assert.Empty(t, set.Grouped[domain.RefRelated])
}

func TestGetBacklinksManualSimilarityWins(t *testing.T) {
	s := setupStore(t)
	seedRelations(t, s)
	ctx := context.Background()
	_, err := s.UpsertSimilarity(ctx, &domain.NodeSimilarity{
		NodeAID: "a", NodeBID: "c", SimilarityScore: 0.3, ComputationMethod: domain.MethodManual,
	})
	require.NoError(t, err)
	svc := NewRelationService(s, RelationOptions{})

	set, err := svc.GetBacklinks(ctx, "a", 0)
	require.NoError(t, err)
	assert.Empty(t, set.Grouped[domain.RefSibling])
	require.Len(t, set.Grouped[domain.RefManual], 2)
}

func TestAddManualLink(t *testing.T) {
	s := setupStore(t)
	seedRelations(t, s)
	svc := NewRelationService(s, RelationOptions{})
	ctx := context.Background()

	_, err := svc.AddManualLink(ctx, "a", "a", "")
	assert.ErrorIs(t, err, port.ErrValidationFailed)

	_, err = svc.AddManualLink(ctx, "a", "ghost", "")
	assert.ErrorIs(t, err, port.ErrNotFound)

	l, err := svc.AddManualLink(ctx, "c", "d", "cites")
	require.NoError(t, err)
	assert.Equal(t, "cites", l.Label)

	set, err := svc.GetBacklinks(ctx, "d", 0)
	require.NoError(t, err)
	require.NotEmpty(t, set.Backlinks)
	assert.Equal(t, "c", set.Backlinks[0].Node.ID)
	assert.Equal(t, domain.RefManual, set.Backlinks[0].ReferenceType)
}
