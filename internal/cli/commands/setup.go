package commands

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aca-libraries/libstats/internal/cli/config"
	"github.com/aca-libraries/libstats/internal/cli/output"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Loaded
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext collects the config, logger and renderer stored by the
// root command.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := config.GetConfig(cmd.Context())
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}
}

// JSON reports whether results should be emitted as JSON.
func (c *CommandContext) JSON() bool {
	return c.Renderer.EffectiveMode() == output.ModeJSON
}

// parseYears parses a --years value: a single year, an inclusive range
// "2019-2023", or a comma-separated list of either.
func parseYears(s string) ([]int, error) {
	var years []int
	seen := make(map[int]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		from, to, isRange := strings.Cut(part, "-")
		lo, err := parseYear(from)
		if err != nil {
			return nil, err
		}
		hi := lo
		if isRange {
			if hi, err = parseYear(to); err != nil {
				return nil, err
			}
			if hi < lo {
				return nil, fmt.Errorf("invalid year range %q: end before start", part)
			}
		}
		for y := lo; y <= hi; y++ {
			if !seen[y] {
				seen[y] = true
				years = append(years, y)
			}
		}
	}
	if len(years) == 0 {
		return nil, fmt.Errorf("no years in %q", s)
	}
	return years, nil
}

func parseYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	y, err := strconv.Atoi(s)
	if err != nil || len(s) != 4 {
		return 0, fmt.Errorf("invalid year %q", s)
	}
	return y, nil
}

// yearsFlag returns the --years flag value, or fallback when unset.
func yearsFlag(cmd *cobra.Command, fallback []int) ([]int, error) {
	if !cmd.Flags().Changed("years") {
		return fallback, nil
	}
	v, err := cmd.Flags().GetString("years")
	if err != nil {
		return nil, err
	}
	return parseYears(v)
}
