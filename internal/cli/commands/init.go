package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aca-libraries/libstats/internal/cli/config"
	"github.com/aca-libraries/libstats/internal/consortium"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a starter libstats.yaml",
		Long: `Write a libstats.yaml holding the default configuration and the built-in
member roster, ready to edit.`,
		Example: `  # Initialize in current directory
  libstats init

  # Initialize in a new directory
  libstats init bcla-2024

  # Overwrite an existing config
  libstats init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			c := NewCommandContext(cmd)
			path, err := writeStarterConfig(dir, force)
			if err != nil {
				return err
			}
			c.Renderer.StatusLine(path, "success", "")
			c.Renderer.Success("libstats project initialized")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	return cmd
}

// starterConfig is the rendered starter file; paths stay relative.
func starterConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Database = filepath.Base(cfg.Database)
	cfg.Institutions = consortium.Default().Members()
	return cfg
}

func writeStarterConfig(dir string, force bool) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, config.ConfigFileNames[0])
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("%s already exists. Use --force to overwrite", path)
	}

	data, err := yaml.Marshal(starterConfig())
	if err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	header := "# libstats configuration. Relative paths resolve against this directory.\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0o600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
