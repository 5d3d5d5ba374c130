package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aca-libraries/libstats/internal/cli/config"
	"github.com/aca-libraries/libstats/internal/consortium"
	"github.com/aca-libraries/libstats/internal/testutil"
)

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewInitCommand(), "init [directory]", []string{"force"}},
		{NewImportCommand(), "import", []string{"force", "years"}},
		{NewTitlesCommand(), "titles", nil},
		{NewReportCommand(), "report", []string{"mode"}},
		{NewFTEReportCommand(), "fte-report", []string{"mode"}},
		{NewCollectCommand(), "collect", []string{"out", "years"}},
		{NewSummaryCommand(), "summary", nil},
		{NewVerifyCommand(), "verify", nil},
		{NewVersionCommand("1.0.0", "abc", "today"), "version", nil},
	}
	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			for _, f := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(f), "flag %q should exist", f)
			}
		})
	}
}

func TestNewVersionCommand(t *testing.T) {
	cmd := NewVersionCommand("1.2.3", "abc123", "2024-01-01")
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "libstats v1.2.3")
	assert.Contains(t, buf.String(), "commit abc123, built 2024-01-01")
}

func TestParseYears(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr string
	}{
		{in: "2021", want: []int{2021}},
		{in: "2019-2021", want: []int{2019, 2020, 2021}},
		{in: "2021,2023", want: []int{2021, 2023}},
		{in: "2019-2020, 2020,2023", want: []int{2019, 2020, 2023}},
		{in: "2023-2021", wantErr: "end before start"},
		{in: "21", wantErr: "invalid year"},
		{in: "20x1", wantErr: "invalid year"},
		{in: " , ", wantErr: "no years"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseYears(tt.in)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteStarterConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "project")

	path, err := writeStarterConfig(dir, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "libstats.yaml"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# libstats configuration"))
	assert.Contains(t, string(data), "timeout: 30s")

	cfg, err := config.LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(dir, "bcla_library.sqlite"), cfg.Database)
	assert.Equal(t, 30*time.Second, cfg.Collect.Timeout)
	roster, err := cfg.Roster()
	require.NoError(t, err)
	assert.Equal(t, consortium.Default().Len(), roster.Len())

	_, err = writeStarterConfig(dir, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	_, err = writeStarterConfig(dir, true)
	assert.NoError(t, err)
}

// pipeline is a project with one CSV-exported release and its
// documentation workbook.
type pipeline struct {
	dir string
	cfg *config.Config
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	dir := t.TempDir()

	release := filepath.Join(dir, "IPEDS201920")
	testutil.WriteFile(t, filepath.Join(release, "DRVEF2019.csv"), "UNITID,FTE\n219790,1500\n999999,10\n")
	testutil.WriteFile(t, filepath.Join(release, "AL2019.csv"), "UNITID,LEXPTOT\n219790,250000\n")
	testutil.WriteFile(t, filepath.Join(release, "HD2019.csv"), "UNITID,INSTNM\n219790,Bryan College-Dayton\n")
	testutil.WriteWorkbook(t, filepath.Join(dir, "IPEDS201920TablesDoc.xlsx"), "vartable19", [][]any{
		{"varName", "varTitle"},
		{"FTE", "Full-time equivalent fall enrollment"},
		{"LEXPTOT", "Total library expenditures"},
	})

	cfg := config.Defaults()
	cfg.ProjectRoot = dir
	cfg.Database = filepath.Join(dir, "snapshot.db")
	cfg.InputDir = dir
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.OutputFormat = "json"
	cfg.Import.Years = config.YearRange{From: 2019, To: 2019}
	cfg.Titles.Files = []config.TitleFile{{File: "IPEDS201920TablesDoc.xlsx", Sheet: "vartable19", Year: "2019"}}
	cfg.Institutions = []consortium.Institution{{UnitID: 219790, Name: "Bryan College"}}
	return &pipeline{dir: dir, cfg: cfg}
}

func (p *pipeline) run(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{}, args...))

	ctx := config.WithConfig(context.Background(), &config.Loaded{Config: p.cfg})
	ctx = config.WithLogger(ctx, testutil.NewTestLogger(t))
	require.NoError(t, cmd.ExecuteContext(ctx))
	return out.String()
}

func TestPipeline(t *testing.T) {
	p := newPipeline(t)

	out := p.run(t, NewImportCommand())
	var imported struct {
		Years  []int
		Tables []struct {
			Name string `json:"name"`
			Rows int64  `json:"rows"`
		}
	}
	require.NoError(t, json.Unmarshal([]byte(out), &imported))
	assert.Equal(t, []int{2019}, imported.Years)
	rows := make(map[string]int64)
	for _, tbl := range imported.Tables {
		rows[tbl.Name] = tbl.Rows
	}
	assert.Equal(t, int64(1), rows["drvef2019"])
	assert.Equal(t, int64(1), rows["hd2019"])

	out = p.run(t, NewTitlesCommand())
	assert.Contains(t, out, `"variables": 2`)

	out = p.run(t, NewSummaryCommand())
	assert.Contains(t, out, `"DRVAL": "N/A"`)
	assert.Contains(t, out, `"Year": "2019"`)

	out = p.run(t, NewReportCommand(), "--mode", "combined")
	var reported struct {
		Files []string `json:"files"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &reported))
	require.Len(t, reported.Files, 1)
	assert.FileExists(t, reported.Files[0])
	assert.Contains(t, filepath.Base(reported.Files[0]), "Combined")

	out = p.run(t, NewVerifyCommand())
	assert.Contains(t, out, `"Kind": "import"`)
	assert.Contains(t, out, `"Kind": "titles"`)
	assert.Contains(t, out, `"Kind": "report"`)

	out = p.run(t, NewFTEReportCommand(), "--mode", "years")
	assert.Contains(t, out, "2019")
}

func TestImport_ExistingDatabase(t *testing.T) {
	p := newPipeline(t)
	p.run(t, NewImportCommand())

	cmd := NewImportCommand()
	cmd.SetArgs([]string{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	ctx := config.WithConfig(context.Background(), &config.Loaded{Config: p.cfg})
	err := cmd.ExecuteContext(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	p.run(t, NewImportCommand(), "--force", "--years", "2019")
}

func TestImport_TextOutput(t *testing.T) {
	p := newPipeline(t)
	p.cfg.OutputFormat = "markdown"

	out := p.run(t, NewImportCommand(), "--years", "2019")
	assert.Contains(t, out, "# Snapshot Tables")
	assert.Contains(t, out, "| al2019 |")
}

func TestReport_InvalidMode(t *testing.T) {
	p := newPipeline(t)
	cmd := NewReportCommand()
	cmd.SetArgs([]string{"--mode", "weekly"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.ExecuteContext(config.WithConfig(context.Background(), &config.Loaded{Config: p.cfg}))
	assert.Error(t, err)
}
