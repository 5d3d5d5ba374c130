// Package fte builds the member FTE enrollment and total expenses report from
// the snapshot database and IPEDS Data Center CSV exports.
package fte

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/aca-libraries/libstats/internal/adapter"
	"github.com/aca-libraries/libstats/internal/frame"
	"github.com/aca-libraries/libstats/internal/ipeds"
	"github.com/aca-libraries/libstats/internal/snapshot"
)

// DefaultCSVPattern matches the Data Center exports, one per year.
const DefaultCSVPattern = "aca-ipeds-fte-f2e131-*.csv"

// Report column names.
const (
	ColUnitID = "UNITID"
	ColName   = "Institution Name"
)

var (
	// ErrNoSources is returned when neither the database nor a CSV export has data.
	ErrNoSources = errors.New("no data sources found")
	// ErrMissingColumns is returned when a CSV export lacks a required column.
	ErrMissingColumns = errors.New("required columns not found")
)

// FTEColumn names the FTE enrollment column of year.
func FTEColumn(year string) string {
	return year + " - DRVEF - Full-time equivalent fall enrollment"
}

// ExpensesColumn names the total expenses column of year.
func ExpensesColumn(year string) string {
	return year + " - F - Total expenses-Total amount"
}

// FindCSV maps years to the exports in dir matching pattern. The year is the
// last dash-separated part of the file name and must be four digits.
func FindCSV(dir, pattern string) (map[string]string, error) {
	if pattern == "" {
		pattern = DefaultCSVPattern
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid csv pattern %q: %w", pattern, err)
	}
	sort.Strings(matches)

	out := make(map[string]string)
	for _, path := range matches {
		parts := strings.Split(filepath.Base(path), "-")
		if len(parts) < 4 {
			continue
		}
		year := strings.TrimSuffix(parts[len(parts)-1], filepath.Ext(path))
		if len(year) == 4 && isDigits(year) {
			out[year] = path
		}
	}
	return out, nil
}

// DBYears returns the years that have an FTE or finance table, ascending.
func DBYears(tables []string) []string {
	var keep []string
	for _, t := range tables {
		lower := strings.ToLower(t)
		switch {
		case strings.HasPrefix(lower, ipeds.TypeDRVEF):
			keep = append(keep, t)
		case strings.HasPrefix(lower, ipeds.TypeF) && strings.Contains(lower, "_f2"):
			keep = append(keep, t)
		}
	}
	return ipeds.Years(keep)
}

// Sources combines the database and CSV exports. Either side may be empty.
type Sources struct {
	store   *snapshot.Store
	tables  []string
	dbYears []string
	csv     map[string]string
	reader  adapter.Adapter
	logger  *slog.Logger
}

// NewSources inspects store (which may be nil) and the CSV exports.
func NewSources(ctx context.Context, store *snapshot.Store, csv map[string]string, reader adapter.Adapter, logger *slog.Logger) (*Sources, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Sources{store: store, csv: csv, reader: reader, logger: logger}
	if store != nil {
		tables, err := store.Tables(ctx)
		if err != nil {
			return nil, err
		}
		s.tables = tables
		s.dbYears = DBYears(tables)
	}
	if len(s.dbYears) == 0 && len(s.csv) == 0 {
		return nil, ErrNoSources
	}
	return s, nil
}

// DBYears returns the years found in the database.
func (s *Sources) DBYears() []string { return slices.Clone(s.dbYears) }

// Years returns every year from either source, ascending.
func (s *Sources) Years() []string {
	years := slices.Clone(s.dbYears)
	for y := range s.csv {
		if !slices.Contains(years, y) {
			years = append(years, y)
		}
	}
	sort.Strings(years)
	return years
}

// YearFrame returns the data of one year. A CSV export takes precedence over
// the database. The result is sorted by institution name.
func (s *Sources) YearFrame(ctx context.Context, year string) (*frame.Frame, error) {
	if path, ok := s.csv[year]; ok {
		s.logger.Info("reading year from csv", slog.String("year", year), slog.String("file", filepath.Base(path)))
		return s.fromCSV(ctx, path, year)
	}
	if slices.Contains(s.dbYears, year) {
		s.logger.Info("reading year from database", slog.String("year", year))
		return s.fromDB(ctx, year)
	}
	return nil, fmt.Errorf("%w for %s", ErrNoSources, year)
}

// fromDB reads FTE and expenses of year. The institution list comes from the
// most recent directory table; ids only present in the data get no name.
func (s *Sources) fromDB(ctx context.Context, year string) (*frame.Frame, error) {
	out := frame.New(ColUnitID, ColName)
	rows := make(map[int64]int)

	add := func(id int64) int {
		if i, ok := rows[id]; ok {
			return i
		}
		out.AppendRow(frame.Row{ColUnitID: id})
		rows[id] = out.Len() - 1
		return rows[id]
	}

	var hd string
	for _, t := range s.tables {
		if ipeds.IsDirectoryTable(t) && t > hd {
			hd = t
		}
	}
	if hd != "" {
		f, err := s.store.ReadColumns(ctx, hd, "UNITID", "INSTNM")
		if err != nil {
			return nil, err
		}
		for i := 0; i < f.Len(); i++ {
			id, ok := frame.NormalizeKey(f.Value(i, "UNITID"))
			if !ok {
				continue
			}
			out.Set(add(id), ColName, f.Value(i, "INSTNM"))
		}
	}

	finance, err := ipeds.FinanceTable(year)
	if err != nil {
		return nil, err
	}
	sources := []struct {
		table, variable, column string
	}{
		{ipeds.YearTable(ipeds.TypeDRVEF, year), "FTE", FTEColumn(year)},
		{finance, "F2E131", ExpensesColumn(year)},
	}
	for _, src := range sources {
		if !slices.Contains(s.tables, src.table) {
			continue
		}
		f, err := s.store.ReadColumns(ctx, src.table, "UNITID", src.variable)
		if err != nil {
			return nil, err
		}
		out.AddColumn(src.column)
		for i := 0; i < f.Len(); i++ {
			id, ok := frame.NormalizeKey(f.Value(i, "UNITID"))
			if !ok {
				continue
			}
			out.Set(add(id), src.column, f.Value(i, src.variable))
		}
	}
	return out.SortBy(ColName)
}

// fromCSV reads one Data Center export.
func (s *Sources) fromCSV(ctx context.Context, path, year string) (*frame.Frame, error) {
	if s.reader == nil {
		return nil, errors.New("csv reader not configured")
	}
	raw, err := s.reader.ReadCSV(ctx, path)
	if err != nil {
		return nil, err
	}
	return FromExport(raw, year, filepath.Base(path))
}

// FromExport maps the columns of a Data Center export onto the report columns.
// Headers are matched case-insensitively: "unitid", "institution name",
// "total expenses" or "f2e", and "full-time equivalent" or "drvef".
func FromExport(raw *frame.Frame, year, name string) (*frame.Frame, error) {
	var unitID, instName, expenses, fte string
	for _, col := range raw.Columns() {
		lower := strings.ToLower(col)
		switch {
		case strings.Contains(lower, "unitid"):
			unitID = col
		case strings.Contains(lower, "institution name"):
			instName = col
		case strings.Contains(lower, "total expenses") || strings.Contains(lower, "f2e"):
			expenses = col
		case strings.Contains(lower, "full-time equivalent") || strings.Contains(lower, "drvef"):
			fte = col
		}
	}
	var missing []string
	for role, col := range map[string]string{"unitid": unitID, "total expenses": expenses, "full-time equivalent": fte} {
		if col == "" {
			missing = append(missing, role)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w in %s: %s", ErrMissingColumns, name, strings.Join(missing, ", "))
	}

	out := frame.New(ColUnitID, ColName, ExpensesColumn(year), FTEColumn(year))
	for i := 0; i < raw.Len(); i++ {
		row := frame.Row{
			ColUnitID:            raw.Value(i, unitID),
			ExpensesColumn(year): raw.Value(i, expenses),
			FTEColumn(year):      raw.Value(i, fte),
		}
		if instName != "" {
			row[ColName] = raw.Value(i, instName)
		}
		out.AppendRow(row)
	}
	return out.SortBy(ColName)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
