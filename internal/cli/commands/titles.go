package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aca-libraries/libstats/internal/titles"
)

// NewTitlesCommand creates the titles command.
func NewTitlesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "titles",
		Short: "Load variable titles from the IPEDS documentation workbooks",
		Long: `Read the vartable sheet of each configured TablesDoc workbook and store a
consolidated variable titles table in the snapshot database. Reports use the
most recent title of each variable as its column name.`,
		Example: `  libstats titles
  libstats titles --input-dir ~/ipeds/docs`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := NewCommandContext(cmd)
			res, err := titles.Run(cmd.Context(), titles.Config{
				Dir:      c.Cfg.InputDir,
				Sources:  c.Cfg.TitleSources(),
				Database: c.Cfg.Database,
				Logger:   c.Logger,
			})
			if err != nil {
				return err
			}

			if c.JSON() {
				return c.Renderer.JSON(map[string]any{
					"years":      res.Years,
					"skipped":    res.Skipped,
					"variables":  res.Variables,
					"variations": res.Changed,
					"sample":     res.Sample.Rows(),
				})
			}
			r := c.Renderer
			if len(res.Skipped) > 0 {
				r.Warning("no titles loaded for " + strings.Join(res.Skipped, ", "))
			}
			r.Header(1, "Variable Titles")
			r.KeyValue("Years", strings.Join(res.Years, ", "))
			r.KeyValue("Variables", res.Variables)
			r.KeyValue("Titles changed across years", res.Changed)
			r.Header(2, "Sample")
			r.Frame(res.Sample)
			r.Success(fmt.Sprintf("Saved %d variable titles", res.Variables))
			return nil
		},
	}
}
