package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aca-libraries/libstats/internal/access"
	"github.com/aca-libraries/libstats/internal/adapter"
	"github.com/aca-libraries/libstats/internal/frame"
	"github.com/aca-libraries/libstats/internal/ipeds"
)

// errNoSource is returned when neither an Access file nor an export directory exists for a year.
var errNoSource = errors.New("no Access database or CSV export directory")

// source is one year's IPEDS release.
type source interface {
	path() string
	tables(ctx context.Context) ([]string, error)
	read(ctx context.Context, csv adapter.Adapter, table string) (*frame.Frame, error)
}

// source prefers the Access database and falls back to a directory of CSV exports.
func (im *Importer) source(year int) (source, error) {
	file := filepath.Join(im.cfg.InputDir, ipeds.AccessFileName(year))
	if info, err := os.Stat(file); err == nil && !info.IsDir() {
		return &accessSource{file: file, reader: im.cfg.Access}, nil
	}
	dir := filepath.Join(im.cfg.InputDir, ipeds.ExportDirName(year))
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return &dirSource{dir: dir}, nil
	}
	return nil, fmt.Errorf("%w: %s", errNoSource, ipeds.AccessFileName(year))
}

type accessSource struct {
	file   string
	reader access.Reader
}

func (s *accessSource) path() string { return s.file }

func (s *accessSource) tables(ctx context.Context) ([]string, error) {
	return s.reader.Tables(ctx, s.file)
}

func (s *accessSource) read(ctx context.Context, csv adapter.Adapter, table string) (*frame.Frame, error) {
	tmp, err := os.MkdirTemp("", "libstats-export-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	dest := filepath.Join(tmp, table+".csv")
	if err := s.reader.ExportCSV(ctx, s.file, table, dest); err != nil {
		return nil, err
	}
	return csv.ReadCSV(ctx, dest)
}

type dirSource struct {
	dir string
}

func (s *dirSource) path() string { return s.dir }

func (s *dirSource) tables(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	sort.Strings(names)
	return names, nil
}

func (s *dirSource) read(ctx context.Context, csv adapter.Adapter, table string) (*frame.Frame, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.dir, err)
	}
	for _, e := range entries {
		if strings.EqualFold(e.Name(), table+".csv") {
			return csv.ReadCSV(ctx, filepath.Join(s.dir, e.Name()))
		}
	}
	return nil, fmt.Errorf("%s.csv not found in %s", table, s.dir)
}
