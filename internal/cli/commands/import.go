package commands

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aca-libraries/libstats/internal/access"
	"github.com/aca-libraries/libstats/internal/importer"
	"github.com/aca-libraries/libstats/internal/snapshot"
)

// NewImportCommand creates the import command.
func NewImportCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import IPEDS releases into the snapshot database",
		Long: `Import the configured tables of each IPEDS release into the SQLite snapshot,
keeping consortium members only.

Each year is read from IPEDS{year}{yy}.accdb in the input directory through
mdbtools, or from a directory IPEDS{year}{yy}/ of CSV exports when no Access
file is present.`,
		Example: `  # Import the configured years
  libstats import

  # Rebuild the snapshot for two releases
  libstats import --force --years 2022-2023`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := NewCommandContext(cmd)
			cfg := c.Cfg

			years, err := yearsFlag(cmd, cfg.Import.Years.Years())
			if err != nil {
				return err
			}
			roster, err := cfg.Roster()
			if err != nil {
				return err
			}

			reader := access.New(access.WithBinaries(cfg.Import.MDBTables, cfg.Import.MDBExport))
			if err := reader.Available(); err != nil {
				c.Logger.Warn("Access databases cannot be read, only CSV export directories", slog.String("error", err.Error()))
			}

			res, err := importer.New(importer.Config{
				InputDir: cfg.InputDir,
				Database: cfg.Database,
				Years:    years,
				Tables:   cfg.Import.Tables,
				Roster:   roster,
				Force:    force,
				Access:   reader,
				Logger:   c.Logger,
			}).Run(cmd.Context())
			if err != nil {
				return err
			}

			if c.JSON() {
				return c.Renderer.JSON(res)
			}
			r := c.Renderer
			for _, m := range res.Missing {
				r.Warning(m)
			}
			r.Header(1, "Snapshot Tables")
			renderTableInfos(c, res.Tables)
			r.Success(fmt.Sprintf("Imported %d tables from %d years into %s", len(res.Tables), len(res.Years), res.Database))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing snapshot database")
	cmd.Flags().String("years", "", "Years to import, e.g. 2019-2023 or 2021,2023")
	return cmd
}

func renderTableInfos(c *CommandContext, infos []snapshot.TableInfo) {
	rows := make([][]string, len(infos))
	for i, info := range infos {
		rows[i] = []string{info.Name, strconv.FormatInt(info.Rows, 10), strconv.Itoa(len(info.Columns))}
	}
	c.Renderer.Table([]string{"Table", "Rows", "Columns"}, rows)
}
