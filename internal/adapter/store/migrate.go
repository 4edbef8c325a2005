package store

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/RBarbieri13/Decant-sub001/internal/adapter/store/migrations"
)

// Migrate applies every pending migration for the store's dialect.
// It returns the schema version after the run.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	createTable := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at BIGINT NOT NULL
		)`
	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return 0, fmt.Errorf("create schema_migrations table: %w", err)
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return 0, err
	}

	dir := s.dialect.migrationDir()
	entries, err := fs.ReadDir(migrations.FS, dir)
	if err != nil {
		return 0, fmt.Errorf("read migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_init.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}

		content, err := fs.ReadFile(migrations.FS, path.Join(dir, name))
		if err != nil {
			return current, fmt.Errorf("read migration %s: %w", name, err)
		}

		sqlTx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return current, fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := sqlTx.ExecContext(ctx, string(content)); err != nil {
			_ = sqlTx.Rollback()
			return current, fmt.Errorf("execute migration %s: %w", name, err)
		}
		record := s.dialect.rebind(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`)
		if _, err := sqlTx.ExecContext(ctx, record, version, toUnix(s.now())); err != nil {
			_ = sqlTx.Rollback()
			return current, fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := sqlTx.Commit(); err != nil {
			return current, fmt.Errorf("commit migration %s: %w", name, err)
		}

		slog.Info("Applied migration", "version", version, "file", name, "driver", s.Driver())
		current = version
	}

	return current, nil
}

// SchemaVersion returns the highest applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&v); err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}
	return v, nil
}
