// Package importer builds the snapshot database from the yearly IPEDS
// releases, keeping only the rows of consortium members.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aca-libraries/libstats/internal/access"
	"github.com/aca-libraries/libstats/internal/adapter"
	"github.com/aca-libraries/libstats/internal/consortium"
	"github.com/aca-libraries/libstats/internal/frame"
	"github.com/aca-libraries/libstats/internal/ipeds"
	"github.com/aca-libraries/libstats/internal/snapshot"
)

// RunKind identifies import runs in the snapshot bookkeeping.
const RunKind = "import"

var (
	// ErrDatabaseExists is returned when the target database exists and Force is not set.
	ErrDatabaseExists = errors.New("database already exists")
	// ErrNoData is returned when no table could be read for any year.
	ErrNoData = errors.New("no data was imported")
)

// DefaultTables are the tables extracted for every year. The finance table of
// a release covers the fiscal year ending in that survey year.
var DefaultTables = []string{"DRVEF{year}", "AL{year}", "DRVAL{year}", "HD{year}", "F{prev_yy}{yy}_F2"}

// Config configures an import.
type Config struct {
	InputDir string
	Database string
	Years    []int
	// Tables are name templates expanded per year; see ipeds.ExpandTable.
	Tables []string
	Roster *consortium.Roster
	// Force replaces an existing database.
	Force  bool
	Access access.Reader
	Logger *slog.Logger
}

// Result describes a finished import.
type Result struct {
	Database string
	Years    []int
	Missing  []string
	Tables   []snapshot.TableInfo
}

// Importer copies IPEDS tables into the snapshot database.
type Importer struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an importer, filling defaults for unset fields.
func New(cfg Config) *Importer {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Database == "" {
		cfg.Database = snapshot.DefaultPath
	}
	if len(cfg.Tables) == 0 {
		cfg.Tables = DefaultTables
	}
	if cfg.Roster == nil {
		cfg.Roster = consortium.Default()
	}
	if cfg.Access == nil {
		cfg.Access = access.New()
	}
	return &Importer{cfg: cfg, logger: cfg.Logger}
}

// Run reads every configured year and writes the collected tables.
func (im *Importer) Run(ctx context.Context) (*Result, error) {
	if snapshot.Exists(im.cfg.Database) {
		if !im.cfg.Force {
			return nil, fmt.Errorf("%w: %s (use --force to overwrite)", ErrDatabaseExists, im.cfg.Database)
		}
		if err := os.Remove(im.cfg.Database); err != nil {
			return nil, fmt.Errorf("failed to remove existing database: %w", err)
		}
		im.logger.Info("removed existing database", slog.String("path", im.cfg.Database))
	}

	im.logger.Info("starting import",
		slog.Any("years", im.cfg.Years),
		slog.Int("institutions", im.cfg.Roster.Len()),
		slog.String("database", im.cfg.Database))

	csv, err := adapter.Open(ctx, im.logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = csv.Close() }()

	result := &Result{Database: im.cfg.Database}
	tables := make(map[string]*frame.Frame)
	for _, year := range im.cfg.Years {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, err := im.source(year)
		if err != nil {
			im.logger.Warn("no source for year", slog.Int("year", year), slog.String("error", err.Error()))
			result.Missing = append(result.Missing, fmt.Sprintf("%d: %s", year, err))
			continue
		}

		found, err := im.readYear(ctx, csv, src, year)
		if err != nil {
			return nil, err
		}
		for name, f := range found {
			tables[name] = f
		}
		result.Years = append(result.Years, year)
	}

	if len(tables) == 0 {
		return nil, fmt.Errorf("%w: check that the IPEDS files exist in %s", ErrNoData, im.cfg.InputDir)
	}

	store, err := snapshot.Open(ctx, im.cfg.Database, im.logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	run, err := store.CreateRun(ctx, RunKind)
	if err != nil {
		return nil, err
	}
	writeErr := im.write(ctx, store, tables)
	detail := fmt.Sprintf("%d tables from %d years", len(tables), len(result.Years))
	if err := store.CompleteRun(ctx, run.ID, writeErr, detail); err != nil {
		im.logger.Warn("failed to record run", slog.String("error", err.Error()))
	}
	if writeErr != nil {
		return nil, writeErr
	}

	if result.Tables, err = store.Describe(ctx); err != nil {
		return nil, err
	}
	im.logger.Info("import complete", slog.Int("tables", len(tables)))
	return result, nil
}

func (im *Importer) write(ctx context.Context, store *snapshot.Store, tables map[string]*frame.Frame) error {
	names := make([]string, 0, len(tables))
	for n := range tables {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if err := store.WriteTable(ctx, n, tables[n]); err != nil {
			return err
		}
	}
	return nil
}

// readYear extracts the configured tables of one year, keyed by lowercase name.
func (im *Importer) readYear(ctx context.Context, csv adapter.Adapter, src source, year int) (map[string]*frame.Frame, error) {
	logger := im.logger.With(slog.Int("year", year), slog.String("source", filepath.Base(src.path())))
	logger.Info("processing year")

	available, err := src.tables(ctx)
	if err != nil {
		logger.Warn("failed to list tables", slog.String("error", err.Error()))
		return nil, nil
	}

	out := make(map[string]*frame.Frame)
	for _, tmpl := range im.cfg.Tables {
		want := ipeds.ExpandTable(tmpl, year)
		name, ok := access.FindTable(available, want)
		if !ok {
			logger.Warn("table not found", slog.String("table", want))
			continue
		}

		f, err := src.read(ctx, csv, name)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("failed to read table", slog.String("table", name), slog.String("error", err.Error()))
			continue
		}
		read := f.Len()

		if ipeds.IsDirectoryTable(name) {
			f = im.directory(f)
		} else {
			f = im.members(f)
		}
		logger.Info("extracted table", slog.String("table", name), slog.Int("rows", read), slog.Int("kept", f.Len()))
		out[strings.ToLower(name)] = f
	}
	return out, nil
}

// members keeps the rows of roster institutions. Tables without a UNITID
// column are kept whole.
func (im *Importer) members(f *frame.Frame) *frame.Frame {
	col, ok := unitIDColumn(f)
	if !ok {
		return f
	}
	return f.Filter(func(r frame.Row) bool {
		id, ok := frame.NormalizeKey(r[col])
		return ok && im.cfg.Roster.Contains(id)
	})
}

// directory filters an HD table to members and trims it to UNITID and INSTNM.
func (im *Importer) directory(f *frame.Frame) *frame.Frame {
	f = im.members(f)
	id, okID := unitIDColumn(f)
	name, okName := findColumn(f, "INSTNM")
	if !okID || !okName {
		return f
	}
	trimmed, err := f.Select(id, name)
	if err != nil {
		return f
	}
	return trimmed.Rename(map[string]string{id: "UNITID", name: "INSTNM"})
}

func unitIDColumn(f *frame.Frame) (string, bool) {
	return findColumn(f, "UNITID")
}

func findColumn(f *frame.Frame, name string) (string, bool) {
	for _, c := range f.Columns() {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	return "", false
}
