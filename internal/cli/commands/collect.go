package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aca-libraries/libstats/internal/edapi"
)

// NewCollectCommand creates the collect command.
func NewCollectCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect library expenses and FTE from the Education Data Portal",
		Long: `Query the Urban Institute Education Data Portal for every member and year
(minus collect.exclude) and write one CSV row per institution and year with
total library expenses, database count and FTE enrollment. Requests are rate
limited and retried on server errors.`,
		Example: `  libstats collect
  libstats collect --years 2020-2022 --out portal.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := NewCommandContext(cmd)
			years, err := yearsFlag(cmd, c.Cfg.Collect.Years.Years())
			if err != nil {
				return err
			}
			roster, err := c.Cfg.CollectRoster()
			if err != nil {
				return err
			}

			res, err := edapi.Run(cmd.Context(), edapi.Config{
				Client:    c.Cfg.ClientConfig(),
				IDs:       roster.IDs(),
				Years:     years,
				OutputDir: c.Cfg.OutputDir,
				Output:    out,
				Logger:    c.Logger,
			})
			if err != nil {
				return err
			}

			if c.JSON() {
				return c.Renderer.JSON(map[string]any{
					"file":    res.File,
					"summary": res.Summary,
					"sample":  res.Summary.Sample.Rows(),
				})
			}
			renderCollectSummary(c, res)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "CSV file to write (default: bcla_ipeds_data_{timestamp}.csv in the output directory)")
	cmd.Flags().String("years", "", "Years to collect, e.g. 2013-2024")
	return cmd
}

func renderCollectSummary(c *CommandContext, res *edapi.Result) {
	r := c.Renderer
	s := res.Summary

	r.Header(1, "Collection Summary")
	r.KeyValue("Records", s.Records)
	r.KeyValue("Institutions", s.Institutions)

	r.Header(2, "Records per Year")
	years := make([][]string, len(s.Years))
	for i, y := range s.Years {
		years[i] = []string{strconv.FormatInt(y.Year, 10), strconv.Itoa(y.Count)}
	}
	r.Table([]string{"Year", "Records"}, years)

	r.Header(2, "Missing Values")
	missing := make([][]string, len(s.Missing))
	for i, m := range s.Missing {
		missing[i] = []string{m.Column, strconv.Itoa(m.Count), fmt.Sprintf("%.1f%%", m.Percent)}
	}
	r.Table([]string{"Column", "Missing", "Percent"}, missing)

	r.Header(2, "Sample")
	r.Frame(s.Sample)
	r.Success("Saved " + res.File)
}
