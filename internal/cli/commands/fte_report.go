package commands

import (
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aca-libraries/libstats/internal/fte"
	"github.com/aca-libraries/libstats/internal/report"
)

// NewFTEReportCommand creates the fte-report command.
func NewFTEReportCommand() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "fte-report",
		Short: "Write the FTE enrollment and total expenses workbooks",
		Long: `Combine FTE enrollment and total expenses per member and year. Historical
years come from the snapshot database; Data Center CSV exports matching
fte.csv_pattern in the input directory add or replace years.`,
		Example: `  libstats fte-report
  libstats fte-report --mode years`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := report.ParseMode(mode)
			if err != nil {
				return err
			}
			c := NewCommandContext(cmd)

			res, err := fte.Run(cmd.Context(), fte.Config{
				Database:   c.Cfg.Database,
				InputDir:   c.Cfg.InputDir,
				CSVPattern: c.Cfg.FTE.CSVPattern,
				OutputDir:  c.Cfg.OutputDir,
				Prefix:     c.Cfg.FTE.Prefix,
				Mode:       m,
				Logger:     c.Logger,
			})
			if err != nil {
				return err
			}

			if c.JSON() {
				return c.Renderer.JSON(res)
			}
			r := c.Renderer
			r.Header(1, "FTE and Expenses")
			r.KeyValue("Database years", orNone(res.DBYears))
			csvYears := make([]string, 0, len(res.CSVFiles))
			for y := range res.CSVFiles {
				csvYears = append(csvYears, y)
			}
			sort.Strings(csvYears)
			r.KeyValue("CSV years", orNone(csvYears))
			r.Header(2, "Files")
			for _, f := range res.Files {
				r.StatusLine(f, "success", "")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(report.ModeBoth), "Reports to write (combined|years|both)")
	_ = cmd.RegisterFlagCompletionFunc("mode", modeCompletion)
	return cmd
}

func orNone(s []string) string {
	if len(s) == 0 {
		return "none"
	}
	return strings.Join(s, ", ")
}
