// Package access reads Microsoft Access databases through the mdbtools
// command line programs.
package access

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// Default mdbtools binaries.
const (
	DefaultTablesBinary = "mdb-tables"
	DefaultExportBinary = "mdb-export"
)

// ErrToolMissing is returned when an mdbtools binary cannot be found.
var ErrToolMissing = errors.New("mdbtools not installed")

// Reader lists and exports the tables of an Access database.
type Reader interface {
	Tables(ctx context.Context, dbPath string) ([]string, error)
	ExportCSV(ctx context.Context, dbPath, table, dest string) error
}

// Executor abstracts command execution for testability.
type Executor interface {
	Output(ctx context.Context, binary string, args []string) ([]byte, error)
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithBinaries overrides the mdbtools binaries.
func WithBinaries(tables, export string) Option {
	return func(c *Client) {
		if tables = strings.TrimSpace(tables); tables != "" {
			c.tablesBinary = tables
		}
		if export = strings.TrimSpace(export); export != "" {
			c.exportBinary = export
		}
	}
}

// Client wraps mdbtools CLI interactions.
type Client struct {
	tablesBinary string
	exportBinary string
	exec         Executor
}

// New constructs an mdbtools client.
func New(opts ...Option) *Client {
	c := &Client{
		tablesBinary: DefaultTablesBinary,
		exportBinary: DefaultExportBinary,
		exec:         commandExecutor{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Available reports whether both binaries are on PATH.
func (c *Client) Available() error {
	for _, bin := range []string{c.tablesBinary, c.exportBinary} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%w: %s", ErrToolMissing, bin)
		}
	}
	return nil
}

// Tables lists the user tables of the database, sorted by name.
func (c *Client) Tables(ctx context.Context, dbPath string) ([]string, error) {
	out, err := c.exec.Output(ctx, c.tablesBinary, []string{"-1", dbPath})
	if err != nil {
		return nil, fmt.Errorf("list tables of %s: %w", filepath.Base(dbPath), err)
	}

	var tables []string
	for _, line := range strings.Split(string(out), "\n") {
		if name := strings.TrimSpace(line); name != "" {
			tables = append(tables, name)
		}
	}
	sort.Strings(tables)
	return tables, nil
}

// ExportCSV writes table as CSV with a header row to dest.
func (c *Client) ExportCSV(ctx context.Context, dbPath, table, dest string) error {
	out, err := c.exec.Output(ctx, c.exportBinary, []string{"-D", "%Y-%m-%d %H:%M:%S", dbPath, table})
	if err != nil {
		return fmt.Errorf("export %s from %s: %w", table, filepath.Base(dbPath), err)
	}
	if err := os.WriteFile(dest, out, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}

// FindTable returns the entry of tables matching name case-insensitively.
func FindTable(tables []string, name string) (string, bool) {
	for _, t := range tables {
		if strings.EqualFold(t, name) {
			return t, true
		}
	}
	return "", false
}

type commandExecutor struct{}

func (commandExecutor) Output(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec // binaries come from configuration
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrToolMissing, binary)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", binary, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", binary, err)
	}
	return out, nil
}

var _ Reader = (*Client)(nil)
