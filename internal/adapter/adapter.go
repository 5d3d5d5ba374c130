// Package adapter loads flat file exports into an embedded analytical
// database so that they can be read back as frames with inferred column types.
package adapter

import (
	"context"
	"database/sql"

	"github.com/aca-libraries/libstats/internal/frame"
)

// Config holds the configuration for the embedded database.
type Config struct {
	// Path is the database file. Use ":memory:" (or leave empty) for a
	// throwaway in-memory database.
	Path string
}

// Column represents a column of a loaded table.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Position int
}

// Metadata holds metadata about a loaded table.
type Metadata struct {
	Name     string
	Columns  []Column
	RowCount int64
}

// Rows wraps sql.Rows to provide a consistent interface across adapters.
type Rows struct {
	*sql.Rows
}

// Adapter is the interface used by pipelines that ingest CSV exports.
type Adapter interface {
	// Connect opens the database described by cfg.
	Connect(ctx context.Context, cfg Config) error

	// Close releases the connection.
	Close() error

	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, sql string) error

	// Query runs a statement that returns rows.
	Query(ctx context.Context, sql string) (*Rows, error)

	// GetTableMetadata describes a loaded table.
	GetTableMetadata(ctx context.Context, table string) (*Metadata, error)

	// LoadCSV loads a CSV file with a header row into table, replacing it.
	LoadCSV(ctx context.Context, table string, path string) error

	// ReadFrame runs a query and collects its result as a frame.
	ReadFrame(ctx context.Context, sql string) (*frame.Frame, error)

	// ReadTable returns every row of a loaded table.
	ReadTable(ctx context.Context, table string) (*frame.Frame, error)

	// ReadCSV loads a CSV file and returns its rows with inferred types.
	ReadCSV(ctx context.Context, path string) (*frame.Frame, error)
}
