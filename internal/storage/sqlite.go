package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"pickem/internal/ledger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Store is a ledger.Store backed by SQLite.
type Store struct {
	db *sqlx.DB
}

var _ ledger.Store = (*Store)(nil)

// Open opens the SQLite database with WAL mode and applies pending migrations.
// ":memory:" gives a private in-memory database.
func Open(dbPath string) (*Store, error) {
	dsn := dbPath
	memory := dbPath == ":memory:"
	if !memory {
		absPath, err := filepath.Abs(dbPath)
		if err != nil {
			return nil, err
		}
		dsn = absPath
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite has a single writer anyway, and an in-memory
	// database only exists on the connection that created it.
	db.SetMaxOpenConns(1)

	pragmas := []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"}
	if !memory {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if err := Migrate(db.DB); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Migrate applies every embedded migration that has not run yet.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	// m.Close would also close db, which the caller owns.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the handle for health checks.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) GetSeries(ctx context.Context, key string) (*ledger.Series, error) {
	return queries{s.db}.GetSeries(ctx, key)
}

func (s *Store) ListSeriesKeys(ctx context.Context) ([]string, error) {
	return queries{s.db}.ListSeriesKeys(ctx)
}

func (s *Store) GetEntry(ctx context.Context, key string, participant ledger.Address) (*ledger.Entry, error) {
	return queries{s.db}.GetEntry(ctx, key, participant)
}

func (s *Store) ListEntrants(ctx context.Context, key string) ([]ledger.Address, error) {
	return queries{s.db}.ListEntrants(ctx, key)
}

func (s *Store) ListUserSeries(ctx context.Context, participant ledger.Address) ([]string, error) {
	return queries{s.db}.ListUserSeries(ctx, participant)
}

func (s *Store) ListJournal(ctx context.Context, participant ledger.Address) ([]ledger.JournalEntry, error) {
	return queries{s.db}.ListJournal(ctx, participant)
}

// ListLockedOpen returns series whose deadline is at or before now and that
// are neither settled nor cancelled, oldest deadline first.
func (s *Store) ListLockedOpen(ctx context.Context, now int64) ([]*ledger.Series, error) {
	var rows []seriesRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+seriesColumns+`
		FROM series
		WHERE settled = 0 AND cancelled = 0 AND lock_deadline <= ?
		ORDER BY lock_deadline, seq
	`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list locked series: %w", err)
	}
	out := make([]*ledger.Series, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toSeries())
	}
	return out, nil
}

// Update runs fn inside a database transaction.
// The transaction is detached from ctx cancellation: once fn has returned nil
// (and so may have moved funds), the commit must not be abandoned.
func (s *Store) Update(ctx context.Context, fn func(tx ledger.Tx) error) error {
	tx, err := s.db.BeginTxx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{queries: queries{tx}, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
