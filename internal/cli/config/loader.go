package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store the logger in context.
type loggerKey struct{}

// EnvPrefix prefixes environment overrides. A double underscore separates
// nested keys: LIBSTATS_COLLECT__RATE sets collect.rate.
const EnvPrefix = "LIBSTATS_"

// ConfigFileNames are searched, in order, in the project root.
var ConfigFileNames = []string{"libstats.yaml", "libstats.yml"}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// pathFlags are flags holding paths; explicit values resolve against the CWD.
var pathFlags = map[string]string{
	"database":   "database",
	"input-dir":  "input_dir",
	"output-dir": "output_dir",
}

// Loaded is the result of LoadConfig.
type Loaded struct {
	*Config
	// File is the config file that was read, if any.
	File string
}

// configExistsIn returns the config file in dir, or "".
func configExistsIn(dir string) string {
	for _, name := range ConfigFileNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// findProjectRootUpward searches upward from startDir for a libstats config file.
// Returns empty strings if not found within maxUpwardSearchLevels.
func findProjectRootUpward(startDir string) (root, cfgFile string) {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if f := configExistsIn(dir); f != "" {
			return dir, f
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty, in-memory or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// LoadConfig loads configuration from defaults, the config file, environment
// variables and flags, in increasing precedence. An explicit cfgFile anchors
// the project root at its directory; otherwise the root is the nearest
// directory above the CWD holding libstats.yaml, or the CWD itself.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Loaded, error) {
	k := koanf.New(".")

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	projectRoot := cwd
	if cfgFile != "" {
		abs, err := filepath.Abs(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("invalid config path %s: %w", cfgFile, err)
		}
		cfgFile = abs
		projectRoot = filepath.Dir(abs)
	} else if root, found := findProjectRootUpward(cwd); root != "" {
		projectRoot, cfgFile = root, found
	}

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaultsMap(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// 3. Environment variables
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Explicitly set flags
	explicit := make(map[string]string)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			if _, ok := pathFlags[f.Name]; ok {
				explicit[key] = f.Value.String()
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = projectRoot

	// Flag paths are relative to where the command was run; everything else
	// is relative to the project root.
	resolve := func(key, value string) string {
		if _, ok := explicit[key]; ok {
			return resolvePathRelativeTo(value, cwd)
		}
		return resolvePathRelativeTo(value, projectRoot)
	}
	cfg.Database = resolve("database", cfg.Database)
	cfg.InputDir = resolve("input_dir", cfg.InputDir)
	cfg.OutputDir = resolve("output_dir", cfg.OutputDir)

	if cfg.Verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Loaded{Config: &cfg, File: cfgFile}, nil
}

// defaultsMap flattens Defaults into koanf keys.
func defaultsMap() map[string]interface{} {
	d := Defaults()

	files := make([]interface{}, len(d.Titles.Files))
	for i, f := range d.Titles.Files {
		files[i] = map[string]interface{}{"file": f.File, "sheet": f.Sheet, "year": f.Year}
	}
	filters := make(map[string]interface{}, len(d.Report.VariableFilters))
	for typ, vars := range d.Report.VariableFilters {
		filters[typ] = vars
	}

	return map[string]interface{}{
		"database":                d.Database,
		"input_dir":               d.InputDir,
		"output_dir":              d.OutputDir,
		"verbose":                 false,
		"log_level":               d.LogLevel,
		"log_format":              d.LogFormat,
		"output":                  d.OutputFormat,
		"import.years.from":       d.Import.Years.From,
		"import.years.to":         d.Import.Years.To,
		"import.tables":           d.Import.Tables,
		"import.mdb_tables":       d.Import.MDBTables,
		"import.mdb_export":       d.Import.MDBExport,
		"titles.files":            files,
		"report.prefix":           d.Report.Prefix,
		"report.variable_filters": filters,
		"fte.csv_pattern":         d.FTE.CSVPattern,
		"fte.prefix":              d.FTE.Prefix,
		"collect.base_url":        d.Collect.BaseURL,
		"collect.years.from":      d.Collect.Years.From,
		"collect.years.to":        d.Collect.Years.To,
		"collect.rate":            d.Collect.Rate,
		"collect.timeout":         d.Collect.Timeout.String(),
		"collect.max_retries":     d.Collect.MaxRetries,
		"collect.exclude":         d.Collect.Exclude,
	}
}

// WithLogger stores the logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

type configKey struct{}

// WithConfig stores the loaded configuration in ctx.
func WithConfig(ctx context.Context, cfg *Loaded) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// GetConfig retrieves the configuration from the command context, falling
// back to the defaults anchored at the CWD.
func GetConfig(ctx context.Context) *Loaded {
	if c, ok := ctx.Value(configKey{}).(*Loaded); ok {
		return c
	}
	cfg := Defaults()
	if cwd, err := os.Getwd(); err == nil {
		cfg.ProjectRoot = cwd
	}
	return &Loaded{Config: cfg}
}
