package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "jaccard_weighted", cfg.Similarity.Method)
	assert.Equal(t, 0.5, cfg.Similarity.SimilarThreshold)
	assert.Equal(t, 4, cfg.Similarity.Workers)
	assert.Zero(t, cfg.RecomputeInterval)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://decant:hunter2@db:5432/decant?sslmode=disable")
	t.Setenv("SIMILARITY_MIN_SCORE", "0.1")
	t.Setenv("SIMILARITY_WORKERS", "not-a-number")
	t.Setenv("SIMILARITY_RECOMPUTE_INTERVAL", "15m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, 0.1, cfg.Similarity.MinScore)
	assert.Equal(t, 4, cfg.Similarity.Workers, "unparsable values fall back")
	assert.Equal(t, 15*time.Minute, cfg.RecomputeInterval)
	assert.NotContains(t, cfg.DSN(), "hunter2")
}

func TestTuningFileOverridesEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
method: tfidf
similar_threshold: 0.7
weights:
  category: 3
`), 0o600))
	t.Setenv("SIMILARITY_TUNING_FILE", path)
	t.Setenv("SIMILARITY_THRESHOLD", "0.2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "tfidf", cfg.Similarity.Method)
	assert.Equal(t, 0.7, cfg.Similarity.SimilarThreshold)
	assert.Equal(t, 3.0, cfg.Similarity.Weights.Category)
	assert.Equal(t, 1.5, cfg.Similarity.Weights.Segment, "absent keys keep their defaults")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("SIMILARITY_THRESHOLD", "1.5")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "oracle")
	_, err := Load()
	assert.Error(t, err)
}

func TestTuningFileMissing(t *testing.T) {
	t.Setenv("SIMILARITY_TUNING_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	assert.Error(t, err)
}
