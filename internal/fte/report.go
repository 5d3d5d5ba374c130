package fte

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/aca-libraries/libstats/internal/adapter"
	"github.com/aca-libraries/libstats/internal/export"
	"github.com/aca-libraries/libstats/internal/frame"
	"github.com/aca-libraries/libstats/internal/report"
	"github.com/aca-libraries/libstats/internal/snapshot"
)

// DefaultPrefix starts every FTE report file name.
const DefaultPrefix = "ACA_Member_FTE_Expenses"

// Combined outer-joins every year on UNITID, filling missing institution
// names from later years. Columns are UNITID, Institution Name, then each
// year's columns in year order; rows are sorted by name.
func (s *Sources) Combined(ctx context.Context) (*frame.Frame, error) {
	var out *frame.Frame
	years := s.Years()
	for _, year := range years {
		f, err := s.YearFrame(ctx, year)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = f
			continue
		}
		var stats frame.JoinStats
		if out, stats, err = frame.OuterJoin(out, f, ColUnitID, ColName); err != nil {
			return nil, fmt.Errorf("join %s: %w", year, err)
		}
		if n := stats.DroppedLeft + stats.DroppedRight; n > 0 {
			s.logger.Warn("dropped rows without a usable UNITID", slog.String("year", year), slog.Int("rows", n))
		}
	}
	if out == nil {
		return nil, ErrNoSources
	}

	cols := []string{ColUnitID, ColName}
	for _, year := range years {
		for _, c := range out.Columns() {
			if strings.HasPrefix(c, year) && !slices.Contains(cols, c) {
				cols = append(cols, c)
			}
		}
	}
	ordered, err := out.Reorder(cols)
	if err != nil {
		return nil, err
	}
	return ordered.SortBy(ColName)
}

// YearReport is the report of a single year.
type YearReport struct {
	Year  string
	Frame *frame.Frame
}

// YearReports returns one report per year with the "{year} - " column prefix removed.
func (s *Sources) YearReports(ctx context.Context) ([]YearReport, error) {
	var out []YearReport
	for _, year := range s.Years() {
		f, err := s.YearFrame(ctx, year)
		if err != nil {
			return nil, err
		}
		rename := make(map[string]string)
		for _, c := range f.Columns() {
			if strings.HasPrefix(c, year+" - ") {
				rename[c] = strings.TrimPrefix(c, year+" - ")
			}
		}
		out = append(out, YearReport{Year: year, Frame: f.Rename(rename)})
	}
	return out, nil
}

// Config configures an FTE report run.
type Config struct {
	// Database may not exist; CSV exports alone are enough.
	Database   string
	InputDir   string
	CSVPattern string
	OutputDir  string
	Prefix     string
	Mode       report.Mode
	Now        func() time.Time
	Logger     *slog.Logger
}

// Result lists the written files and the sources that were used.
type Result struct {
	Files    []string
	DBYears  []string
	CSVFiles map[string]string
}

// Run writes the selected FTE reports.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.Mode == "" {
		cfg.Mode = report.ModeBoth
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	var store *snapshot.Store
	if snapshot.Exists(cfg.Database) {
		var err error
		if store, err = snapshot.OpenReadOnly(ctx, cfg.Database, logger); err != nil {
			return nil, err
		}
		defer func() { _ = store.Close() }()
	} else {
		logger.Warn("database not found, using csv exports only", slog.String("database", cfg.Database))
	}

	csvFiles, err := FindCSV(cfg.InputDir, cfg.CSVPattern)
	if err != nil {
		return nil, err
	}

	reader, err := adapter.Open(ctx, logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	src, err := NewSources(ctx, store, csvFiles, reader, logger)
	if err != nil {
		return nil, err
	}
	result := &Result{DBYears: src.DBYears(), CSVFiles: csvFiles}
	logger.Info("fte sources", slog.Any("db_years", result.DBYears), slog.Int("csv_files", len(csvFiles)))

	ts := export.Timestamp(cfg.Now())
	if cfg.Mode == report.ModeCombined || cfg.Mode == report.ModeBoth {
		f, err := src.Combined(ctx)
		if err != nil {
			return nil, err
		}
		path := export.ReportPath(cfg.OutputDir, cfg.Prefix, "Combined", ts)
		if err := export.WriteXLSX(path, f, ""); err != nil {
			return nil, err
		}
		logger.Info("saved combined report", slog.String("path", path), slog.Int("institutions", f.Len()))
		result.Files = append(result.Files, path)
	}
	if cfg.Mode == report.ModeYears || cfg.Mode == report.ModeBoth {
		reports, err := src.YearReports(ctx)
		if err != nil {
			return nil, err
		}
		for _, r := range reports {
			path := export.ReportPath(cfg.OutputDir, cfg.Prefix, r.Year, ts)
			if err := export.WriteXLSX(path, r.Frame, ""); err != nil {
				return nil, err
			}
			logger.Info("saved year report", slog.String("year", r.Year), slog.String("path", path))
			result.Files = append(result.Files, path)
		}
	}
	return result, nil
}
