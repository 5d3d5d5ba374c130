package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aca-libraries/libstats/internal/export"
	"github.com/aca-libraries/libstats/internal/frame"
	"github.com/aca-libraries/libstats/internal/snapshot"
)

// DefaultPrefix starts every library report file name.
const DefaultPrefix = "BCLA_Library"

// RunKind identifies report runs in the snapshot bookkeeping.
const RunKind = "report"

// Mode selects which reports are written.
type Mode string

// Report modes.
const (
	ModeCombined Mode = "combined"
	ModeYears    Mode = "years"
	ModeBoth     Mode = "both"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeCombined, ModeYears, ModeBoth:
		return m, nil
	default:
		return "", fmt.Errorf("invalid report mode %q (want combined, years or both)", s)
	}
}

// Config configures a report run.
type Config struct {
	Database  string
	OutputDir string
	Prefix    string
	Mode      Mode
	Filters   Filters
	// Now stamps the file names; defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Result lists the written files and the availability summary.
type Result struct {
	Files   []string
	Summary *frame.Frame
}

// Run generates the selected reports and writes them as workbooks.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeBoth
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	store, err := snapshot.OpenExisting(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	gen, err := NewGenerator(ctx, store, cfg.Filters, logger)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	if result.Summary, err = gen.Summary(ctx); err != nil {
		return nil, err
	}

	run, err := store.CreateRun(ctx, RunKind)
	if err != nil {
		return nil, err
	}
	runErr := write(ctx, gen, cfg, result, logger)
	detail := fmt.Sprintf("%s: %d files", cfg.Mode, len(result.Files))
	if err := store.CompleteRun(ctx, run.ID, runErr, detail); err != nil {
		logger.Warn("failed to record run", slog.String("error", err.Error()))
	}
	if runErr != nil {
		return nil, runErr
	}
	return result, nil
}

func write(ctx context.Context, gen *Generator, cfg Config, result *Result, logger *slog.Logger) error {
	ts := export.Timestamp(cfg.Now())

	if cfg.Mode == ModeCombined || cfg.Mode == ModeBoth {
		f, err := gen.Combined(ctx)
		if err != nil {
			return err
		}
		path := export.ReportPath(cfg.OutputDir, cfg.Prefix, "Combined", ts)
		if err := export.WriteXLSX(path, f, ""); err != nil {
			return err
		}
		logger.Info("saved combined report", slog.String("path", path),
			slog.Int("institutions", f.Len()), slog.Int("columns", len(f.Columns())))
		result.Files = append(result.Files, path)
	}

	if cfg.Mode == ModeYears || cfg.Mode == ModeBoth {
		reports, err := gen.YearReports(ctx)
		if err != nil {
			return err
		}
		for _, r := range reports {
			path := export.ReportPath(cfg.OutputDir, cfg.Prefix, r.Year, ts)
			if err := export.WriteXLSX(path, r.Frame, ""); err != nil {
				return err
			}
			logger.Info("saved year report", slog.String("year", r.Year), slog.String("path", path),
				slog.Int("institutions", r.Frame.Len()))
			result.Files = append(result.Files, path)
		}
	}
	return nil
}
