package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/aca-libraries/libstats/internal/importer"
	"github.com/aca-libraries/libstats/internal/report"
	"github.com/aca-libraries/libstats/internal/snapshot"
	"github.com/aca-libraries/libstats/internal/titles"
)

// runKinds are the pipelines whose last run verify reports.
var runKinds = []string{importer.RunKind, titles.RunKind, report.RunKind}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Describe the snapshot database",
		Long:  `List every table in the snapshot database with its row and column counts, and the last import, titles and report runs.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := NewCommandContext(cmd)
			ctx := cmd.Context()

			store, err := snapshot.OpenExisting(ctx, c.Cfg.Database, c.Logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			infos, err := store.Describe(ctx)
			if err != nil {
				return err
			}
			runs := make([]*snapshot.Run, 0, len(runKinds))
			for _, kind := range runKinds {
				run, err := store.LatestRun(ctx, kind)
				if err != nil {
					return err
				}
				if run != nil {
					runs = append(runs, run)
				}
			}

			if c.JSON() {
				return c.Renderer.JSON(map[string]any{"database": store.Path(), "tables": infos, "runs": runs})
			}
			r := c.Renderer
			r.Header(1, "Snapshot Database")
			r.KeyValue("Path", store.Path())
			renderTableInfos(c, infos)

			r.Header(2, "Last Runs")
			rows := make([][]string, len(runs))
			for i, run := range runs {
				finished := "-"
				if run.CompletedAt != nil {
					finished = run.CompletedAt.Local().Format(time.DateTime)
				}
				detail := run.Detail
				if run.Error != "" {
					detail = run.Error
				}
				rows[i] = []string{run.Kind, string(run.Status), finished, detail}
			}
			r.Table([]string{"Kind", "Status", "Finished", "Detail"}, rows)
			return nil
		},
	}
}
