// Package report assembles the wide library reports from the snapshot
// database: one row per institution, one column per reported variable.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/aca-libraries/libstats/internal/frame"
	"github.com/aca-libraries/libstats/internal/ipeds"
	"github.com/aca-libraries/libstats/internal/snapshot"
)

// Report column names.
const (
	ColUnitID = "UNITID"
	ColName   = "Institution Name"
)

// ErrNoData is returned when the database holds no table to report on.
var ErrNoData = errors.New("no report data")

// Generator builds reports from one snapshot database.
type Generator struct {
	store   *snapshot.Store
	filters Filters
	titles  snapshot.TitleLookup
	tables  []string
	logger  *slog.Logger
}

// NewGenerator lists the tables of store and loads the variable titles.
func NewGenerator(ctx context.Context, store *snapshot.Store, filters Filters, logger *slog.Logger) (*Generator, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if filters == nil {
		filters = DefaultFilters()
	}
	tables, err := store.Tables(ctx)
	if err != nil {
		return nil, err
	}
	titles, err := store.Titles(ctx)
	if err != nil {
		return nil, err
	}
	return &Generator{store: store, filters: filters, titles: titles, tables: tables, logger: logger}, nil
}

// Years returns every survey year present in the database, ascending.
func (g *Generator) Years() []string {
	return ipeds.Years(g.tables)
}

// Combined builds the multi-year report. Columns are named
// "{year} - {TYPE} - {title}".
func (g *Generator) Combined(ctx context.Context) (*frame.Frame, error) {
	data := g.dataTables(func(string) bool { return true })

	var hd []string
	for _, t := range g.tables {
		if ipeds.IsDirectoryTable(t) {
			hd = append(hd, t)
		}
	}
	directory := ""
	if len(hd) > 0 {
		directory = hd[len(hd)-1]
	}

	out, err := g.institutions(ctx, directory, data)
	if err != nil {
		return nil, err
	}

	for _, t := range data {
		year := ipeds.TableYear(t)
		if year == "" {
			g.logger.Warn("skipping table without a survey year", slog.String("table", t))
			continue
		}
		prefix := fmt.Sprintf("%s - %s - ", year, strings.ToUpper(ipeds.TableType(t)))
		if out, err = g.attach(ctx, out, t, prefix); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Year builds the report of one survey year. Columns are named "{TYPE} - {title}".
func (g *Generator) Year(ctx context.Context, year string) (*frame.Frame, error) {
	data := g.dataTables(func(t string) bool { return ipeds.TableYear(t) == year })

	directory := ipeds.YearTable(ipeds.TypeHD, year)
	if !slices.Contains(g.tables, directory) {
		directory = ""
	}
	if directory == "" && len(data) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoData, year)
	}

	out, err := g.institutions(ctx, directory, data)
	if err != nil {
		return nil, err
	}
	for _, t := range data {
		prefix := strings.ToUpper(ipeds.TableType(t)) + " - "
		if out, err = g.attach(ctx, out, t, prefix); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// YearReport is the report of a single year.
type YearReport struct {
	Year  string
	Frame *frame.Frame
}

// YearReports builds one report per available year, in year order.
func (g *Generator) YearReports(ctx context.Context) ([]YearReport, error) {
	var out []YearReport
	for _, y := range g.Years() {
		f, err := g.Year(ctx, y)
		if errors.Is(err, ErrNoData) {
			g.logger.Warn("no tables for year", slog.String("year", y))
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, YearReport{Year: y, Frame: f})
	}
	return out, nil
}

// dataTables returns the variable tables accepted by keep, sorted by name.
func (g *Generator) dataTables(keep func(string) bool) []string {
	var out []string
	for _, t := range g.tables {
		if ipeds.IsDataTable(t) && keep(t) {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// institutions builds the UNITID/name base of a report, sorted by UNITID.
// Without a directory table the ids of the first data table are used and
// names are left empty.
func (g *Generator) institutions(ctx context.Context, directory string, data []string) (*frame.Frame, error) {
	var base *frame.Frame
	switch {
	case directory != "":
		f, err := g.store.ReadColumns(ctx, directory, "UNITID", "INSTNM")
		if err != nil {
			return nil, err
		}
		base = f.Rename(map[string]string{"UNITID": ColUnitID, "INSTNM": ColName})
	case len(data) > 0:
		f, err := g.store.ReadDistinct(ctx, data[0], "UNITID")
		if err != nil {
			return nil, err
		}
		base = f.Rename(map[string]string{"UNITID": ColUnitID})
		base.AddColumn(ColName)
		g.logger.Warn("no directory table, institution names unavailable", slog.String("table", data[0]))
	default:
		return nil, ErrNoData
	}
	return base.SortBy(ColUnitID)
}

// attach left-joins the reported variables of table onto out, naming each
// column prefix + title.
func (g *Generator) attach(ctx context.Context, out *frame.Frame, table, prefix string) (*frame.Frame, error) {
	t, err := g.store.ReadTable(ctx, table)
	if err != nil {
		return nil, err
	}
	if !t.HasColumn("UNITID") {
		g.logger.Warn("table has no UNITID column", slog.String("table", table))
		return out, nil
	}

	keep := []string{"UNITID"}
	names := map[string]string{"UNITID": ColUnitID}
	for _, col := range t.Columns() {
		if col == "UNITID" || !g.filters.Include(table, col) {
			continue
		}
		name := prefix + g.titles.Title(col)
		if out.HasColumn(name) || taken(names, name) {
			// Two variables can share a title; keep both apart.
			name = fmt.Sprintf("%s (%s)", name, col)
		}
		keep = append(keep, col)
		names[col] = name
	}
	if len(keep) == 1 {
		return out, nil
	}

	right, err := t.Select(keep...)
	if err != nil {
		return nil, err
	}
	joined, stats, err := frame.LeftJoin(out, right.Rename(names), ColUnitID)
	if err != nil {
		return nil, fmt.Errorf("join %s: %w", table, err)
	}
	if stats.DroppedRight > 0 {
		g.logger.Debug("rows with unusable UNITID", slog.String("table", table), slog.Int("rows", stats.DroppedRight))
	}
	g.logger.Debug("attached table", slog.String("table", table), slog.Int("variables", len(keep)-1))
	return joined, nil
}

func taken(names map[string]string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
