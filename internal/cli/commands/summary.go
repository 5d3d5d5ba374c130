package commands

import (
	"github.com/spf13/cobra"

	"github.com/aca-libraries/libstats/internal/report"
	"github.com/aca-libraries/libstats/internal/snapshot"
)

// NewSummaryCommand creates the summary command.
func NewSummaryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show which survey components are available per year",
		Long: `Count the members reported in the DRVEF, AL, DRVAL and F tables of every
year in the snapshot database. N/A marks a table missing for that year.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := NewCommandContext(cmd)
			ctx := cmd.Context()

			store, err := snapshot.OpenExisting(ctx, c.Cfg.Database, c.Logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			gen, err := report.NewGenerator(ctx, store, c.Cfg.Filters(), c.Logger)
			if err != nil {
				return err
			}
			summary, err := gen.Summary(ctx)
			if err != nil {
				return err
			}

			if c.JSON() {
				return c.Renderer.JSON(summary.Rows())
			}
			c.Renderer.Header(1, "Data Availability")
			c.Renderer.Frame(summary)
			return nil
		},
	}
}
