package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aca-libraries/libstats/internal/frame"
)

// TableInfo describes one table for the verification listing.
type TableInfo struct {
	Name    string   `json:"name"`
	Rows    int64    `json:"rows"`
	Columns []string `json:"columns"`
}

// ReadTable loads every row of table.
func (s *Store) ReadTable(ctx context.Context, table string) (*frame.Frame, error) {
	return s.query(ctx, table, "SELECT * FROM "+quoteIdent(table))
}

// ReadColumns loads the named columns of table, in the given order.
func (s *Store) ReadColumns(ctx context.Context, table string, cols ...string) (*frame.Frame, error) {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	return s.query(ctx, table, fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), quoteIdent(table)))
}

// ReadDistinct loads the distinct values of col in table as a one-column frame.
func (s *Store) ReadDistinct(ctx context.Context, table, col string) (*frame.Frame, error) {
	return s.query(ctx, table, fmt.Sprintf("SELECT DISTINCT %s FROM %s", quoteIdent(col), quoteIdent(table)))
}

func (s *Store) query(ctx context.Context, table, q string) (*frame.Frame, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	ok, err := s.HasTable(ctx, table)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	f, err := ScanFrame(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	return f, nil
}

// ScanFrame drains rows into a frame. The caller closes rows.
func ScanFrame(rows *sql.Rows) (*frame.Frame, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	f := frame.New(cols...)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		if err := f.Append(values...); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return f, nil
}

// WriteTable replaces table with the contents of f. Column types are inferred
// from the values: INTEGER, REAL or TEXT.
func (s *Store) WriteTable(ctx context.Context, table string, f *frame.Frame) error {
	if s.db == nil {
		return ErrNotOpen
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := writeTable(ctx, tx, table, f); err != nil {
			return err
		}
		s.logger.Info("saved table", slog.String("table", table), slog.Int("rows", f.Len()))
		return nil
	})
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func writeTable(ctx context.Context, tx *sql.Tx, table string, f *frame.Frame) error {
	cols := f.Columns()
	if len(cols) == 0 {
		return fmt.Errorf("table %s has no columns", table)
	}

	defs := make([]string, len(cols))
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
		values, _ := f.Column(c)
		defs[i] = quoted[i] + " " + columnType(values)
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return fmt.Errorf("failed to drop %s: %w", table, err)
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create %s: %w", table, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), placeholders))
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range f.Records() {
		args := make([]any, len(rec))
		for i, v := range rec {
			args[i] = sqlValue(v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}
	return nil
}

// CountDistinct counts the distinct non-null values of col in table.
func (s *Store) CountDistinct(ctx context.Context, table, col string) (int64, error) {
	if s.db == nil {
		return 0, ErrNotOpen
	}
	var n int64
	q := fmt.Sprintf("SELECT COUNT(DISTINCT %s) FROM %s", quoteIdent(col), quoteIdent(table))
	if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s.%s: %w", table, col, err)
	}
	return n, nil
}

// Describe lists every user table with its row count and columns.
func (s *Store) Describe(ctx context.Context) ([]TableInfo, error) {
	tables, err := s.Tables(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]TableInfo, 0, len(tables))
	for _, t := range tables {
		info := TableInfo{Name: t}
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(t)).Scan(&info.Rows); err != nil {
			return nil, fmt.Errorf("failed to count rows of %s: %w", t, err)
		}
		if info.Columns, err = s.columns(ctx, t); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (s *Store) columns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func columnType(values []any) string {
	typ := "INTEGER"
	seen := false
	for _, v := range values {
		switch v.(type) {
		case nil:
			continue
		case int64, bool:
		case float64:
			typ = "REAL"
		default:
			return "TEXT"
		}
		seen = true
	}
	if !seen {
		return "TEXT"
	}
	return typ
}

func sqlValue(v any) any {
	switch x := v.(type) {
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return v
	}
}
