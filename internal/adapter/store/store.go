package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/RBarbieri13/Decant-sub001/internal/domain"
	"github.com/RBarbieri13/Decant-sub001/internal/port"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver
)

// Store handles all relational database operations for PostgreSQL and SQLite.
// Statements are written with ? placeholders and rebound per dialect.
type Store struct {
	*queries
	db      *sql.DB
	dialect dialect
}

var _ port.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for changed_at and computed_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.queries.now = now }
}

// Open connects to driver ("postgres" or "sqlite") and returns a store instance.
// For sqlite, dsn is a file path; WAL, busy timeout, foreign keys and
// immediate transactions are enabled unless the dsn already carries options.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	d, err := parseDialect(driver)
	if err != nil {
		return nil, err
	}

	if d == dialectSQLite && !strings.Contains(dsn, "?") {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"
	}

	db, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if d == dialectPostgres {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{
		queries: &queries{db: db, dialect: d, now: func() time.Time { return time.Now().UTC() }},
		db:      db,
		dialect: d,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the driver name the store was opened with.
func (s *Store) Driver() string {
	return s.dialect.driverName()
}

// InTx runs fn inside a transaction. fn's error rolls everything back.
func (s *Store) InTx(ctx context.Context, fn func(tx port.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	t := &tx{
		queries: &queries{db: sqlTx, dialect: s.dialect, now: s.queries.now},
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(t); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// tx is the transactional view handed to InTx callbacks.
type tx struct {
	*queries
}

var _ port.Tx = (*tx)(nil)

// LockHierarchy takes a transaction-scoped advisory lock on PostgreSQL.
// SQLite transactions already hold the database write lock from BEGIN IMMEDIATE.
func (t *tx) LockHierarchy(ctx context.Context, h domain.HierarchyType) error {
	if t.dialect != dialectPostgres {
		return nil
	}
	if _, err := t.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "decant.hierarchy."+string(h)); err != nil {
		return fmt.Errorf("lock hierarchy %s: %w", h, err)
	}
	return nil
}

// dbtx is the subset of *sql.DB and *sql.Tx used by queries.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements every read and write against a dbtx.
type queries struct {
	db      dbtx
	dialect dialect
	now     func() time.Time
}

func (q *queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.db.ExecContext(ctx, q.dialect.rebind(query), args...)
}

func (q *queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, q.dialect.rebind(query), args...)
}

func (q *queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.dialect.rebind(query), args...)
}

// nullString converts empty strings to NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func toUnix(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
