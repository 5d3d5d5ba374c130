package commands

import (
	"github.com/spf13/cobra"

	"github.com/aca-libraries/libstats/internal/report"
)

// NewReportCommand creates the report command.
func NewReportCommand() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write the library statistics workbooks",
		Long: `Write Excel reports from the snapshot database: one combined workbook with
every year side by side and one workbook per year. Columns are named after
the current variable titles and limited by report.variable_filters.`,
		Example: `  libstats report
  libstats report --mode combined --output-dir out`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := report.ParseMode(mode)
			if err != nil {
				return err
			}
			c := NewCommandContext(cmd)
			filters := c.Cfg.Filters()

			res, err := report.Run(cmd.Context(), report.Config{
				Database:  c.Cfg.Database,
				OutputDir: c.Cfg.OutputDir,
				Prefix:    c.Cfg.Report.Prefix,
				Mode:      m,
				Filters:   filters,
				Logger:    c.Logger,
			})
			if err != nil {
				return err
			}

			if c.JSON() {
				return c.Renderer.JSON(map[string]any{
					"files":   res.Files,
					"summary": res.Summary.Rows(),
				})
			}
			r := c.Renderer
			r.Header(1, "Data Availability")
			r.Frame(res.Summary)
			r.Header(2, "Variable Filters")
			for _, line := range filters.FilterDescription() {
				r.Println(line)
			}
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

func modeCompletion(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{string(report.ModeCombined), string(report.ModeYears), string(report.ModeBoth)}, cobra.ShellCompDirectiveNoFileComp
}
