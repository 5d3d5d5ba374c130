package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/marcboeker/go-duckdb"

	"github.com/aca-libraries/libstats/internal/frame"
)

// DuckDBAdapter implements the Adapter interface for DuckDB.
type DuckDBAdapter struct {
	db     *sql.DB
	config Config
	logger *slog.Logger
}

// NewDuckDBAdapter creates a new DuckDB adapter instance.
func NewDuckDBAdapter(logger *slog.Logger) *DuckDBAdapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DuckDBAdapter{logger: logger}
}

// Open connects a new in-memory adapter.
func Open(ctx context.Context, logger *slog.Logger) (*DuckDBAdapter, error) {
	a := NewDuckDBAdapter(logger)
	if err := a.Connect(ctx, Config{Path: ":memory:"}); err != nil {
		return nil, err
	}
	return a, nil
}

// Connect establishes a connection to DuckDB.
// Use ":memory:" as the path for an in-memory database.
func (a *DuckDBAdapter) Connect(ctx context.Context, cfg Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	a.db = db
	a.config = cfg
	return nil
}

// Close closes the DuckDB connection.
func (a *DuckDBAdapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (a *DuckDBAdapter) Exec(ctx context.Context, sqlStr string) error {
	if a.db == nil {
		return fmt.Errorf("database connection not established")
	}

	if _, err := a.db.ExecContext(ctx, sqlStr); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query executes a SQL statement that returns rows.
func (a *DuckDBAdapter) Query(ctx context.Context, sqlStr string) (*Rows, error) {
	if a.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	rows, err := a.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &Rows{Rows: rows}, nil
}

// GetTableMetadata retrieves the columns and row count of a table.
func (a *DuckDBAdapter) GetTableMetadata(ctx context.Context, table string) (*Metadata, error) {
	if a.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = 'main' AND table_name = ?
		ORDER BY ordinal_position
	`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []Column
	for rows.Next() {
		var col Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}

	var rowCount int64
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(table)).Scan(&rowCount); err != nil {
		return nil, fmt.Errorf("failed to count rows of %s: %w", table, err)
	}

	return &Metadata{Name: table, Columns: columns, RowCount: rowCount}, nil
}

// LoadCSV loads data from a CSV file into a table.
// DuckDB infers the column types from the file.
func (a *DuckDBAdapter) LoadCSV(ctx context.Context, table string, filePath string) error {
	if a.db == nil {
		return fmt.Errorf("database connection not established")
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	query := fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv_auto(%s, header=true, sample_size=-1)",
		quoteIdent(table),
		quoteLiteral(absPath),
	)
	if err := a.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to load CSV %s: %w", filepath.Base(filePath), err)
	}

	a.logger.Debug("loaded csv", slog.String("table", table), slog.String("file", absPath))
	return nil
}

// ReadFrame runs query and returns its result as a frame.
func (a *DuckDBAdapter) ReadFrame(ctx context.Context, query string) (*frame.Frame, error) {
	rows, err := a.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	f := frame.New(cols...)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			values[i] = plainValue(v)
		}
		if err := f.Append(values...); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return f, nil
}

// ReadTable returns every row of a loaded table.
func (a *DuckDBAdapter) ReadTable(ctx context.Context, table string) (*frame.Frame, error) {
	return a.ReadFrame(ctx, "SELECT * FROM "+quoteIdent(table))
}

// ReadCSV loads a CSV file and returns its rows.
func (a *DuckDBAdapter) ReadCSV(ctx context.Context, path string) (*frame.Frame, error) {
	const scratch = "csv_import"
	if err := a.LoadCSV(ctx, scratch, path); err != nil {
		return nil, err
	}
	defer func() { _ = a.Exec(ctx, "DROP TABLE IF EXISTS "+scratch) }()

	meta, err := a.GetTableMetadata(ctx, scratch)
	if err != nil {
		return nil, err
	}
	types := make([]string, len(meta.Columns))
	for i, c := range meta.Columns {
		types[i] = c.Name + ":" + c.Type
	}
	a.logger.Debug("inferred csv schema",
		slog.String("file", filepath.Base(path)),
		slog.Int64("rows", meta.RowCount),
		slog.String("columns", strings.Join(types, ",")))
	return a.ReadTable(ctx, scratch)
}

// plainValue converts DuckDB-specific scan results into frame values.
func plainValue(v any) any {
	switch x := v.(type) {
	case duckdb.Decimal:
		return x.Float64()
	case *duckdb.Decimal:
		if x == nil {
			return nil
		}
		return x.Float64()
	default:
		return v
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Ensure DuckDBAdapter implements Adapter interface
var _ Adapter = (*DuckDBAdapter)(nil)
