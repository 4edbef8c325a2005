package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RBarbieri13/Decant-sub001/internal/adapter/store"
	"github.com/RBarbieri13/Decant-sub001/internal/domain"
	"github.com/RBarbieri13/Decant-sub001/internal/port"
)

func setupStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, s.Close()) })

	_, err = s.Migrate(ctx)
	require.NoError(t, err)
	return s
}

func seed(t *testing.T, s port.Store, nodes ...*domain.Node) {
	t.Helper()
	for _, n := range nodes {
		require.NoError(t, s.InsertNode(context.Background(), n))
	}
}

func mustNode(t *testing.T, s port.Store, id string) *domain.Node {
	t.Helper()
	n, err := s.GetNode(context.Background(), id)
	require.NoError(t, err)
	return n
}

func ledgerSize(t *testing.T, s port.Store) int64 {
	t.Helper()
	n, err := s.CountChanges(context.Background(), port.AuditQuery{})
	require.NoError(t, err)
	return n
}

// faultStore fails every ledger append made through its transactions.
type faultStore struct{ *store.Store }

func (f faultStore) InTx(ctx context.Context, fn func(tx port.Tx) error) error {
	return f.Store.InTx(ctx, func(tx port.Tx) error { return fn(faultTx{tx}) })
}

type faultTx struct{ port.Tx }

func (faultTx) AppendChange(context.Context, *domain.HierarchyCodeChange) error {
	return errors.New("ledger unavailable")
}

func TestLogCodeChangeValidation(t *testing.T) {
	s := setupStore(t)
	svc := NewAuditService(s)
	ctx := context.Background()
	old := "1.1"

	tests := []struct {
		name string
		p    ChangeParams
	}{
		{"missing node", ChangeParams{HierarchyType: domain.HierarchyFunction, NewCode: "1", ChangeType: domain.ChangeCreated, TriggeredBy: domain.TriggerImport}},
		{"bad hierarchy", ChangeParams{NodeID: "n", HierarchyType: "galaxy", NewCode: "1", ChangeType: domain.ChangeCreated, TriggeredBy: domain.TriggerImport}},
		{"malformed code", ChangeParams{NodeID: "n", HierarchyType: domain.HierarchyFunction, NewCode: "1..2", ChangeType: domain.ChangeCreated, TriggeredBy: domain.TriggerImport}},
		{"created with old code", ChangeParams{NodeID: "n", HierarchyType: domain.HierarchyFunction, OldCode: &old, NewCode: "1", ChangeType: domain.ChangeCreated, TriggeredBy: domain.TriggerImport}},
		{"bad trigger", ChangeParams{NodeID: "n", HierarchyType: domain.HierarchyFunction, NewCode: "1", ChangeType: domain.ChangeCreated, TriggeredBy: "cron"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.LogCodeChange(ctx, tt.p)
			assert.ErrorIs(t, err, port.ErrValidationFailed)
		})
	}
	assert.Zero(t, ledgerSize(t, s))
}

func TestLogCodeChangeMirrorsBatchID(t *testing.T) {
	s := setupStore(t)
	svc := NewAuditService(s)
	ctx := context.Background()

	id, err := svc.LogCodeChange(ctx, ChangeParams{
		NodeID: "n", HierarchyType: domain.HierarchyOrganization, NewCode: "3",
		ChangeType: domain.ChangeCreated, TriggeredBy: domain.TriggerImport,
		BatchID: "b-1", Metadata: map[string]any{domain.MetaActor: "ops"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	rows, err := svc.GetBatchChanges(ctx, "b-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, id, rows[0].ID)
	assert.Equal(t, "b-1", rows[0].Metadata[domain.MetaBatchID])
	assert.Equal(t, "ops", rows[0].Metadata[domain.MetaActor])
}

func TestRecentChangesAndStatistics(t *testing.T) {
	s := setupStore(t)
	svc := NewAuditService(s)
	ctx := context.Background()
	old := "1"

	for i := 0; i < 3; i++ {
		_, err := svc.LogCodeChange(ctx, ChangeParams{
			NodeID: "n", HierarchyType: domain.HierarchyFunction, OldCode: &old, NewCode: "2",
			ChangeType: domain.ChangeMoved, TriggeredBy: domain.TriggerUserMove,
		})
		require.NoError(t, err)
	}
	_, err := svc.LogCodeChange(ctx, ChangeParams{
		NodeID: "m", HierarchyType: domain.HierarchyOrganization, NewCode: "1",
		ChangeType: domain.ChangeCreated, TriggeredBy: domain.TriggerImport,
	})
	require.NoError(t, err)

	recent, total, err := svc.GetRecentChanges(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
	assert.EqualValues(t, 4, total)
	assert.Equal(t, "m", recent[0].NodeID, "newest first")

	moved, err := svc.GetChangesByType(ctx, domain.ChangeMoved, 0)
	require.NoError(t, err)
	assert.Len(t, moved, 3)

	imports, err := svc.GetChangesByTrigger(ctx, domain.TriggerImport, 0)
	require.NoError(t, err)
	assert.Len(t, imports, 1)

	_, err = svc.GetChangesByType(ctx, "deleted", 0)
	assert.ErrorIs(t, err, port.ErrValidationFailed)

	stats, err := svc.GetChangeStatistics(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, stats.TotalChanges)
	assert.EqualValues(t, 3, stats.ByType[domain.ChangeMoved])
	assert.EqualValues(t, 1, stats.ByTrigger[domain.TriggerImport])
	assert.EqualValues(t, 3, stats.ByHierarchy[domain.HierarchyFunction])
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultAuditLimit, normalizeLimit(0))
	assert.Equal(t, DefaultAuditLimit, normalizeLimit(-3))
	assert.Equal(t, 7, normalizeLimit(7))
	assert.Equal(t, MaxAuditLimit, normalizeLimit(10_000))
}
