package edapi

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aca-libraries/libstats/internal/export"
	"github.com/aca-libraries/libstats/internal/frame"
)

// Collected columns, in output order.
const (
	ColUnitID        = "unitid"
	ColYear          = "year"
	ColTotalExpenses = "total_expenses"
	ColDatabaseCount = "database_count"
	ColAcadLibRaw    = "acad_lib_raw"
	ColFTE           = "fte"
	ColFallEnrollRaw = "fall_enroll_raw"
)

// ValueColumns are the collected measures reported by the summary.
var ValueColumns = []string{ColTotalExpenses, ColDatabaseCount, ColFTE}

// Field fallbacks: the first present field wins.
var (
	totalExpensesFields = []string{"total_expenses", "ltotexpn"}
	databaseCountFields = []string{"database_count", "ldbs"}
	fteFields           = []string{"fte", "fte_total", "efytotlt"}
)

// DefaultYears are the survey years collected when none are configured.
func DefaultYears() []int {
	years := make([]int, 0, 12)
	for y := 2013; y <= 2024; y++ {
		years = append(years, y)
	}
	return years
}

// Fetcher retrieves single portal records.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string, unitID int64, year int) (Record, error)
}

// Collector walks institutions and years sequentially.
type Collector struct {
	fetcher Fetcher
	ids     []int64
	years   []int
	logger  *slog.Logger
}

// NewCollector creates a collector over ids × years.
func NewCollector(fetcher Fetcher, ids []int64, years []int, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Collector{fetcher: fetcher, ids: ids, years: years, logger: logger}
}

// Collect fetches every institution and year, one row per pair. Failed or
// empty lookups leave the row's values missing.
func (c *Collector) Collect(ctx context.Context) (*frame.Frame, error) {
	out := frame.New(ColUnitID, ColYear, ColTotalExpenses, ColDatabaseCount, ColAcadLibRaw, ColFTE, ColFallEnrollRaw)
	total := len(c.ids) * len(c.years)
	done := 0

	for _, id := range c.ids {
		for _, year := range c.years {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			done++
			c.logger.Debug("collecting", slog.Int64("unitid", id), slog.Int("year", year),
				slog.String("progress", fmt.Sprintf("%.1f%%", float64(done)/float64(total)*100)))

			row := frame.Row{ColUnitID: id, ColYear: int64(year)}
			if rec := c.fetch(ctx, EndpointAcademicLibraries, id, year); rec != nil {
				row[ColTotalExpenses] = rec.First(totalExpensesFields...)
				row[ColDatabaseCount] = rec.First(databaseCountFields...)
				row[ColAcadLibRaw] = rec.JSON()
			}
			if rec := c.fetch(ctx, EndpointFallEnrollment, id, year); rec != nil {
				row[ColFTE] = rec.First(fteFields...)
				row[ColFallEnrollRaw] = rec.JSON()
			}
			out.AppendRow(row)
		}
		c.logger.Info("collected institution", slog.Int64("unitid", id), slog.Int("done", done), slog.Int("total", total))
	}
	return out, nil
}

func (c *Collector) fetch(ctx context.Context, endpoint string, id int64, year int) Record {
	rec, err := c.fetcher.Fetch(ctx, endpoint, id, year)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("lookup failed", slog.String("endpoint", endpoint),
				slog.Int64("unitid", id), slog.Int("year", year), slog.String("error", err.Error()))
		}
		return nil
	}
	if rec == nil {
		c.logger.Debug("no data", slog.String("endpoint", endpoint), slog.Int64("unitid", id), slog.Int("year", year))
	}
	return rec
}

// Config configures a collection run.
type Config struct {
	Client *ClientConfig
	IDs    []int64
	Years  []int
	// OutputDir receives bcla_ipeds_data_{ts}.csv unless Output is set.
	OutputDir string
	Output    string
	Now       func() time.Time
	Logger    *slog.Logger
}

// Result is a finished collection.
type Result struct {
	File    string
	Data    *frame.Frame
	Summary *Summary
}

// Run collects the configured institutions and years and writes them as CSV.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if len(cfg.Years) == 0 {
		cfg.Years = DefaultYears()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	logger.Info("starting collection", slog.Int("institutions", len(cfg.IDs)), slog.Int("years", len(cfg.Years)))
	data, err := NewCollector(NewClient(cfg.Client), cfg.IDs, cfg.Years, logger).Collect(ctx)
	if err != nil {
		return nil, err
	}

	path := cfg.Output
	if path == "" {
		path = OutputPath(cfg.OutputDir, cfg.Now())
	}
	if err := export.WriteCSV(path, data); err != nil {
		return nil, err
	}
	logger.Info("saved collected data", slog.String("path", path), slog.Int("rows", data.Len()))

	return &Result{File: path, Data: data, Summary: Summarize(data)}, nil
}

// OutputPath is the default CSV location for a collection started at now.
func OutputPath(dir string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("bcla_ipeds_data_%s.csv", export.Timestamp(now)))
}
