package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/aca-libraries/libstats/internal/frame"
)

// Variable titles table layout.
const (
	TitlesTable      = "variable_titles"
	TitlesLookupView = "variable_titles_lookup"

	ColVarName       = "varName"
	ColID            = "id"
	ColHasVariations = "has_variations"
	ColCurrentTitle  = "current_varTitle"
)

// TitleColumn is the per-year title column, e.g. varTitle_2019.
func TitleColumn(year string) string {
	return "varTitle_" + year
}

// WriteVariableTitles replaces the variable titles table with f and rebuilds
// its indexes and lookup view. The unique varName index is only created when
// the names are unique.
func (s *Store) WriteVariableTitles(ctx context.Context, f *frame.Frame) error {
	for _, c := range []string{ColVarName, ColID, ColCurrentTitle} {
		if !f.HasColumn(c) {
			return fmt.Errorf("variable titles: %w: %s", frame.ErrUnknownColumn, c)
		}
	}

	if s.db == nil {
		return ErrNotOpen
	}

	stmts := []string{
		fmt.Sprintf("CREATE UNIQUE INDEX idx_variable_titles_id ON %s (%s)",
			quoteIdent(TitlesTable), quoteIdent(ColID)),
	}
	if uniqueNames(f) {
		stmts = append(stmts, fmt.Sprintf("CREATE UNIQUE INDEX idx_variable_titles_varname ON %s (%s)",
			quoteIdent(TitlesTable), quoteIdent(ColVarName)))
	} else {
		s.logger.Warn("duplicate variable names, skipping unique varName index")
	}
	stmts = append(stmts, fmt.Sprintf("CREATE VIEW %s AS SELECT %s, %s FROM %s",
		quoteIdent(TitlesLookupView), quoteIdent(ColVarName), quoteIdent(ColCurrentTitle), quoteIdent(TitlesTable)))

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DROP VIEW IF EXISTS "+quoteIdent(TitlesLookupView)); err != nil {
			return fmt.Errorf("failed to drop %s: %w", TitlesLookupView, err)
		}
		if err := writeTable(ctx, tx, TitlesTable, f); err != nil {
			return err
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to index %s: %w", TitlesTable, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("saved variable titles", slog.Int("variables", f.Len()))
	return nil
}

// TitleLookup maps variable names to their current titles.
type TitleLookup map[string]string

// Title returns the current title of varName, or varName itself when unknown.
func (l TitleLookup) Title(varName string) string {
	if t, ok := l[varName]; ok && t != "" {
		return t
	}
	return varName
}

// Titles loads the variable titles lookup. A database without the titles
// table yields an empty lookup, so every variable is titled by its name.
func (s *Store) Titles(ctx context.Context) (TitleLookup, error) {
	lookup := TitleLookup{}
	ok, err := s.HasTable(ctx, TitlesTable)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Debug("no variable titles table, using variable names")
		return lookup, nil
	}

	f, err := s.ReadColumns(ctx, TitlesTable, ColVarName, ColCurrentTitle)
	if err != nil {
		return nil, err
	}
	for i := 0; i < f.Len(); i++ {
		name := frame.Text(f.Value(i, ColVarName))
		if name == "" {
			continue
		}
		if _, seen := lookup[name]; seen {
			continue
		}
		lookup[name] = frame.Text(f.Value(i, ColCurrentTitle))
	}
	return lookup, nil
}

// TitleStats summarizes the stored variable titles.
type TitleStats struct {
	Total      int64
	Variations int64
}

// VariableTitleStats counts stored variables and those whose title changed across years.
func (s *Store) VariableTitleStats(ctx context.Context) (TitleStats, error) {
	var st TitleStats
	q := fmt.Sprintf("SELECT COUNT(*), COALESCE(SUM(%s), 0) FROM %s",
		quoteIdent(ColHasVariations), quoteIdent(TitlesTable))
	if err := s.db.QueryRowContext(ctx, q).Scan(&st.Total, &st.Variations); err != nil {
		return st, fmt.Errorf("failed to read title stats: %w", err)
	}
	return st, nil
}

// SampleTitles returns up to limit rows of the lookup view in id order.
func (s *Store) SampleTitles(ctx context.Context, limit int) (*frame.Frame, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	q := fmt.Sprintf("SELECT v.%[1]s, v.%[2]s FROM %[3]s v JOIN %[4]s t ON t.%[1]s = v.%[1]s ORDER BY t.%[5]s LIMIT ?",
		quoteIdent(ColVarName), quoteIdent(ColCurrentTitle), quoteIdent(TitlesLookupView),
		quoteIdent(TitlesTable), quoteIdent(ColID))
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to sample titles: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return ScanFrame(rows)
}

func uniqueNames(f *frame.Frame) bool {
	seen := make(map[string]bool, f.Len())
	for i := 0; i < f.Len(); i++ {
		n := frame.Text(f.Value(i, ColVarName))
		if seen[n] {
			return false
		}
		seen[n] = true
	}
	return true
}
