// Package config loads the libstats configuration from defaults, the project
// config file, LIBSTATS_ environment variables and command-line flags.
package config

import (
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aca-libraries/libstats/internal/consortium"
	"github.com/aca-libraries/libstats/internal/edapi"
	"github.com/aca-libraries/libstats/internal/fte"
	"github.com/aca-libraries/libstats/internal/importer"
	"github.com/aca-libraries/libstats/internal/ipeds"
	"github.com/aca-libraries/libstats/internal/report"
	"github.com/aca-libraries/libstats/internal/snapshot"
	"github.com/aca-libraries/libstats/internal/titles"
)

// Config holds all CLI configuration options.
type Config struct {
	// ProjectRoot is the directory relative paths resolve against.
	ProjectRoot string `koanf:"-" yaml:"-"`

	Database     string `koanf:"database" yaml:"database" validate:"required"`
	InputDir     string `koanf:"input_dir" yaml:"input_dir" validate:"required"`
	OutputDir    string `koanf:"output_dir" yaml:"output_dir" validate:"required"`
	Verbose      bool   `koanf:"verbose" yaml:"verbose"`
	LogLevel     string `koanf:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat    string `koanf:"log_format" yaml:"log_format" validate:"oneof=text json"`
	OutputFormat string `koanf:"output" yaml:"output" validate:"oneof=auto text markdown json"`

	Import       ImportConfig             `koanf:"import" yaml:"import"`
	Titles       TitlesConfig             `koanf:"titles" yaml:"titles"`
	Report       ReportConfig             `koanf:"report" yaml:"report"`
	FTE          FTEConfig                `koanf:"fte" yaml:"fte"`
	Collect      CollectConfig            `koanf:"collect" yaml:"collect"`
	Institutions []consortium.Institution `koanf:"institutions" yaml:"institutions,omitempty" validate:"dive"`
}

// YearRange is an inclusive span of survey years.
type YearRange struct {
	From int `koanf:"from" yaml:"from" validate:"gte=1980,lte=2100"`
	To   int `koanf:"to" yaml:"to" validate:"gtefield=From,lte=2100"`
}

// Years expands the range.
func (r YearRange) Years() []int {
	if r.To < r.From {
		return nil
	}
	out := make([]int, 0, r.To-r.From+1)
	for y := r.From; y <= r.To; y++ {
		out = append(out, y)
	}
	return out
}

// ImportConfig configures the snapshot import.
type ImportConfig struct {
	Years     YearRange `koanf:"years" yaml:"years"`
	Tables    []string  `koanf:"tables" yaml:"tables" validate:"min=1,dive,required"`
	MDBTables string    `koanf:"mdb_tables" yaml:"mdb_tables" validate:"required"`
	MDBExport string    `koanf:"mdb_export" yaml:"mdb_export" validate:"required"`
}

// TitleFile locates one year's variable sheet.
type TitleFile struct {
	File  string `koanf:"file" yaml:"file" validate:"required"`
	Sheet string `koanf:"sheet" yaml:"sheet" validate:"required"`
	Year  string `koanf:"year" yaml:"year" validate:"required,len=4,numeric"`
}

// TitlesConfig configures the variable titles import.
type TitlesConfig struct {
	Files []TitleFile `koanf:"files" yaml:"files" validate:"min=1,dive"`
}

// ReportConfig configures the library reports.
type ReportConfig struct {
	Prefix          string              `koanf:"prefix" yaml:"prefix" validate:"required"`
	VariableFilters map[string][]string `koanf:"variable_filters" yaml:"variable_filters"`
}

// FTEConfig configures the FTE and expenses report.
type FTEConfig struct {
	CSVPattern string `koanf:"csv_pattern" yaml:"csv_pattern" validate:"required"`
	Prefix     string `koanf:"prefix" yaml:"prefix" validate:"required"`
}

// CollectConfig configures the Education Data Portal collector.
type CollectConfig struct {
	BaseURL    string        `koanf:"base_url" yaml:"base_url" validate:"required,url"`
	Years      YearRange     `koanf:"years" yaml:"years"`
	Rate       float64       `koanf:"rate" yaml:"rate" validate:"gt=0"`
	Timeout    time.Duration `koanf:"timeout" yaml:"timeout" validate:"gt=0"`
	MaxRetries int           `koanf:"max_retries" yaml:"max_retries" validate:"gte=0,lte=10"`
	Exclude    []int64       `koanf:"exclude" yaml:"exclude"`
}

// MarshalYAML writes the timeout as a duration string.
func (c CollectConfig) MarshalYAML() (interface{}, error) {
	type plain CollectConfig
	var n yaml.Node
	if err := n.Encode(plain(c)); err != nil {
		return nil, err
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == "timeout" {
			n.Content[i+1] = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: c.Timeout.String()}
		}
	}
	return &n, nil
}

// Default configuration values.
const (
	DefaultInputDir  = "."
	DefaultOutputDir = "."
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultMDBTables = "mdb-tables"
	DefaultMDBExport = "mdb-export"
)

// importYears are the releases the consortium snapshot covers.
var importYears = YearRange{From: 2019, To: 2023}

// defaultExclude lists institutions the portal collector skips.
var defaultExclude = []int64{132879}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	filters := report.DefaultFilters()
	vf := make(map[string][]string, len(filters))
	for k, v := range filters {
		if v == nil {
			v = []string{}
		}
		vf[k] = v
	}

	files := make([]TitleFile, 0, len(importYears.Years()))
	for _, src := range titles.DefaultSources(importYears.Years()) {
		files = append(files, TitleFile{File: src.File, Sheet: src.Sheet, Year: src.Year})
	}

	years := edapi.DefaultYears()
	client := edapi.DefaultClientConfig()

	return &Config{
		Database:     snapshot.DefaultPath,
		InputDir:     DefaultInputDir,
		OutputDir:    DefaultOutputDir,
		LogLevel:     DefaultLogLevel,
		LogFormat:    DefaultLogFormat,
		OutputFormat: DefaultOutput,
		Import: ImportConfig{
			Years:     importYears,
			Tables:    slices.Clone(importer.DefaultTables),
			MDBTables: DefaultMDBTables,
			MDBExport: DefaultMDBExport,
		},
		Titles: TitlesConfig{Files: files},
		Report: ReportConfig{Prefix: report.DefaultPrefix, VariableFilters: vf},
		FTE:    FTEConfig{CSVPattern: fte.DefaultCSVPattern, Prefix: fte.DefaultPrefix},
		Collect: CollectConfig{
			BaseURL:    client.BaseURL,
			Years:      YearRange{From: years[0], To: years[len(years)-1]},
			Rate:       client.RateLimit,
			Timeout:    client.Timeout,
			MaxRetries: client.MaxRetries,
			Exclude:    slices.Clone(defaultExclude),
		},
	}
}

// Roster returns the configured institutions, or the built-in roster.
func (c *Config) Roster() (*consortium.Roster, error) {
	return consortium.FromConfig(c.Institutions)
}

// CollectRoster is the roster minus collect.exclude.
func (c *Config) CollectRoster() (*consortium.Roster, error) {
	r, err := c.Roster()
	if err != nil {
		return nil, err
	}
	return r.Without(c.Collect.Exclude...), nil
}

// Filters returns the report variable filters keyed by lowercase table type.
func (c *Config) Filters() report.Filters {
	f := make(report.Filters, len(c.Report.VariableFilters))
	for k, v := range c.Report.VariableFilters {
		f[ipeds.TableType(k)] = v
	}
	return f
}

// TitleSources converts titles.files to titles sources.
func (c *Config) TitleSources() []titles.Source {
	out := make([]titles.Source, len(c.Titles.Files))
	for i, f := range c.Titles.Files {
		out[i] = titles.Source{File: f.File, Sheet: f.Sheet, Year: f.Year}
	}
	return out
}

// ClientConfig builds the portal client settings.
func (c *Config) ClientConfig() *edapi.ClientConfig {
	cc := edapi.DefaultClientConfig()
	cc.BaseURL = c.Collect.BaseURL
	cc.RateLimit = c.Collect.Rate
	cc.Timeout = c.Collect.Timeout
	cc.MaxRetries = c.Collect.MaxRetries
	return cc
}
