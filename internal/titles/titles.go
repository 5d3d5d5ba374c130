// Package titles builds the variable titles lookup from the IPEDS
// documentation workbooks.
package titles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/aca-libraries/libstats/internal/frame"
	"github.com/aca-libraries/libstats/internal/ipeds"
	"github.com/aca-libraries/libstats/internal/snapshot"
)

// RunKind identifies title imports in the snapshot bookkeeping.
const RunKind = "titles"

// ErrNoMappings is returned when no documentation workbook could be read.
var ErrNoMappings = errors.New("no variable mappings were loaded")

// sampleSize is the number of mappings shown after an import.
const sampleSize = 10

// Source names one documentation workbook.
type Source struct {
	File  string
	Sheet string
	Year  string
}

// DefaultSources returns the standard workbook and sheet names for years.
func DefaultSources(years []int) []Source {
	out := make([]Source, len(years))
	for i, y := range years {
		out[i] = Source{File: ipeds.DocFileName(y), Sheet: ipeds.DocSheet(y), Year: strconv.Itoa(y)}
	}
	return out
}

// Config configures a titles import.
type Config struct {
	// Dir is where relative workbook paths are resolved.
	Dir      string
	Sources  []Source
	Database string
	Logger   *slog.Logger
}

// Result describes a finished titles import.
type Result struct {
	Years     []string
	Skipped   []string
	Variables int64
	Changed   int64
	Sample    *frame.Frame
}

// Consolidate merges per-year sheets into the variable titles table. years
// fixes the title columns; a year without a sheet leaves its column empty.
// Variable ids follow first appearance across sheets in the given order.
func Consolidate(years []string, sheets []*Sheet) *frame.Frame {
	cols := []string{snapshot.ColVarName, snapshot.ColID}
	for _, y := range years {
		cols = append(cols, snapshot.TitleColumn(y))
	}
	cols = append(cols, snapshot.ColHasVariations, snapshot.ColCurrentTitle)
	out := frame.New(cols...)

	byYear := make(map[string]*Sheet, len(sheets))
	var names []string
	seen := make(map[string]bool)
	for _, s := range sheets {
		if _, ok := byYear[s.Year]; !ok {
			byYear[s.Year] = s
		}
		for _, n := range s.Names {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}

	newest := append([]string(nil), years...)
	sort.Sort(sort.Reverse(sort.StringSlice(newest)))

	for i, name := range names {
		row := frame.Row{snapshot.ColVarName: name, snapshot.ColID: int64(i + 1)}
		distinct := make(map[string]bool)
		for _, y := range years {
			s, ok := byYear[y]
			if !ok {
				continue
			}
			if t, ok := s.Titles[name]; ok && t != "" {
				row[snapshot.TitleColumn(y)] = t
				distinct[t] = true
			}
		}
		row[snapshot.ColHasVariations] = len(distinct) > 1
		for _, y := range newest {
			if t, ok := row[snapshot.TitleColumn(y)]; ok && t != nil {
				row[snapshot.ColCurrentTitle] = t
				break
			}
		}
		out.AppendRow(row)
	}
	return out
}

// Run reads the documentation workbooks and replaces the titles table of an
// existing snapshot database.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	store, err := snapshot.OpenExisting(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	sheets, err := readAll(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	var loaded []*Sheet
	years := make([]string, 0, len(cfg.Sources))
	for i, src := range cfg.Sources {
		years = append(years, src.Year)
		if sheets[i] == nil {
			result.Skipped = append(result.Skipped, src.Year)
			continue
		}
		loaded = append(loaded, sheets[i])
		result.Years = append(result.Years, src.Year)
	}
	if len(loaded) == 0 {
		return nil, fmt.Errorf("%w: check the documentation workbooks in %s", ErrNoMappings, cfg.Dir)
	}

	table := Consolidate(years, loaded)
	logger.Info("consolidated variable titles", slog.Int("variables", table.Len()))

	run, err := store.CreateRun(ctx, RunKind)
	if err != nil {
		return nil, err
	}
	writeErr := store.WriteVariableTitles(ctx, table)
	if err := store.CompleteRun(ctx, run.ID, writeErr, fmt.Sprintf("%d variables", table.Len())); err != nil {
		logger.Warn("failed to record run", slog.String("error", err.Error()))
	}
	if writeErr != nil {
		return nil, writeErr
	}

	stats, err := store.VariableTitleStats(ctx)
	if err != nil {
		return nil, err
	}
	result.Variables, result.Changed = stats.Total, stats.Variations
	if result.Sample, err = store.SampleTitles(ctx, sampleSize); err != nil {
		return nil, err
	}
	return result, nil
}

// readAll reads every source concurrently. Unreadable sources are logged and
// left nil; results keep the order of cfg.Sources.
func readAll(ctx context.Context, cfg Config, logger *slog.Logger) ([]*Sheet, error) {
	sheets := make([]*Sheet, len(cfg.Sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, src := range cfg.Sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path := src.File
			if !filepath.IsAbs(path) && cfg.Dir != "" {
				path = filepath.Join(cfg.Dir, path)
			}
			s, err := ReadSheet(path, src.Sheet, src.Year)
			if err != nil {
				logger.Warn("skipping year", slog.String("year", src.Year), slog.String("error", err.Error()))
				return nil
			}
			if s.Duplicates > 0 {
				logger.Info("dropped duplicate variable names", slog.String("year", src.Year), slog.Int("duplicates", s.Duplicates))
			}
			logger.Info("loaded variable mappings", slog.String("year", src.Year), slog.Int("variables", len(s.Names)))
			sheets[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sheets, nil
}
