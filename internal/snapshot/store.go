// Package snapshot manages the SQLite snapshot database: raw IPEDS tables
// copied from the yearly survey releases, the variable titles lookup and a
// small log of import and report runs.
package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

// DefaultPath is the snapshot database file used when none is configured.
const DefaultPath = "bcla_library.sqlite"

var (
	// ErrNotOpen is returned by operations on a closed store.
	ErrNotOpen = errors.New("database not opened")
	// ErrTableNotFound is returned when a named table does not exist.
	ErrTableNotFound = errors.New("table not found")
	// ErrNoDatabase is returned by OpenExisting when there is no database file.
	ErrNoDatabase = errors.New("snapshot database not found")
)

// internalTables are bookkeeping tables hidden from Tables.
var internalTables = map[string]bool{
	"goose_db_version": true,
	"libstats_runs":    true,
}

// Store is a handle on the snapshot database.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens (creating if needed) the snapshot database at path and applies
// pending migrations. Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	return open(ctx, path, logger, false)
}

// OpenReadOnly opens an existing snapshot database for reading. No migrations
// are applied and writes fail.
func OpenReadOnly(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if !Exists(path) {
		return nil, fmt.Errorf("%w: %s", ErrNoDatabase, path)
	}
	return open(ctx, path, logger, true)
}

func open(ctx context.Context, path string, logger *slog.Logger, readOnly bool) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	if readOnly {
		pragmas = append(pragmas, "PRAGMA query_only = ON")
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	s := &Store{db: db, path: path, logger: logger}
	if !readOnly {
		if err := s.Migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
		if version, err := s.MigrationVersion(); err == nil {
			logger.Debug("snapshot schema", slog.Int64("version", version))
		}
	}

	logger.Debug("opened snapshot database", slog.String("path", path), slog.Bool("read_only", readOnly))
	return s, nil
}

// OpenExisting opens the snapshot database at path, failing with
// ErrNoDatabase instead of creating a new file.
func OpenExisting(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if path != ":memory:" && !Exists(path) {
		return nil, fmt.Errorf("%w: %s (run 'libstats import' first)", ErrNoDatabase, path)
	}
	return Open(ctx, path, logger)
}

// Exists reports whether a snapshot database file exists at path.
func Exists(path string) bool {
	if path == "" || path == ":memory:" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// Close closes the database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Tables returns the user tables in name order, excluding bookkeeping tables.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		if internalTables[name] {
			continue
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	return tables, nil
}

// HasTable reports whether a table or view called name exists.
func (s *Store) HasTable(ctx context.Context, name string) (bool, error) {
	if s.db == nil {
		return false, ErrNotOpen
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?`, name,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", name, err)
	}
	return n > 0, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
