package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RBarbieri13/Decant-sub001/internal/app"
	"github.com/RBarbieri13/Decant-sub001/internal/domain"
	"github.com/RBarbieri13/Decant-sub001/internal/middleware"
	"github.com/RBarbieri13/Decant-sub001/internal/service"
	"github.com/RBarbieri13/Decant-sub001/pkg/config"
)

func useTempDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cli.db")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", path)
	t.Setenv("JWT_SECRET", "")
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append([]string{"--env", filepath.Join(t.TempDir(), "missing.env")}, args...))
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersionCmd(t *testing.T) {
	useTempDB(t)
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "decantctl version dev\n", out)
}

func TestMigrateAndStats(t *testing.T) {
	useTempDB(t)

	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "schema version "), out)

	out, err = run(t, "stats")
	require.NoError(t, err)
	var stats domain.ChangeStatistics
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Zero(t, stats.TotalChanges)
}

func TestHistoryCmd(t *testing.T) {
	useTempDB(t)
	ctx := context.Background()

	c, err := config.Load()
	require.NoError(t, err)
	a, err := app.Build(ctx, c)
	require.NoError(t, err)
	_, err = a.Hierarchy.RegisterNode(ctx, &domain.Node{ID: "r", Title: "Root", FunctionCode: "1"}, "seed")
	require.NoError(t, err)
	_, err = a.Hierarchy.RegisterNode(ctx, &domain.Node{ID: "n", Title: "Leaf", FunctionParentID: "r"}, "seed")
	require.NoError(t, err)
	require.NoError(t, a.Close())

	out, err := run(t, "history", "n", "--hierarchy", "function")
	require.NoError(t, err)
	var changes []domain.HierarchyCodeChange
	require.NoError(t, json.Unmarshal([]byte(out), &changes))
	require.Len(t, changes, 1)
	assert.Equal(t, domain.ChangeCreated, changes[0].ChangeType)
	assert.Equal(t, "1.1", changes[0].NewCode)
}

func TestHistoryCmdRejectsUnknownHierarchy(t *testing.T) {
	useTempDB(t)
	_, err := run(t, "history", "n", "--hierarchy", "team")
	assert.Error(t, err)
}

func TestRecomputeCmdRejectsManual(t *testing.T) {
	useTempDB(t)
	_, err := run(t, "recompute", "--method", string(domain.MethodManual))
	assert.Error(t, err)
}

func TestRecomputeCmdPrintsReport(t *testing.T) {
	useTempDB(t)
	out, err := run(t, "recompute", "--method", string(domain.MethodTFIDF))
	require.NoError(t, err)

	var report service.RecomputeReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, domain.MethodTFIDF, report.Method)
	assert.Zero(t, report.Candidates)
}

func TestTokenCmd(t *testing.T) {
	useTempDB(t)
	_, err := run(t, "token", "alice")
	require.Error(t, err)

	t.Setenv("JWT_SECRET", "s3cret")
	out, err := run(t, "token", "alice")
	require.NoError(t, err)

	subject, err := middleware.ValidateToken(strings.TrimSpace(out), middleware.ActorConfig{
		Secret: "s3cret",
		Issuer: "decant",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)
}
