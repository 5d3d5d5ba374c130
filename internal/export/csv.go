package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aca-libraries/libstats/internal/frame"
)

// WriteCSV writes f to path with a header row. Missing values are written as
// empty fields.
func WriteCSV(path string, f *frame.Frame) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() { _ = file.Close() }()

	w := csv.NewWriter(file)
	if err := w.Write(f.Columns()); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for i, rec := range f.Records() {
		fields := make([]string, len(rec))
		for j, v := range rec {
			fields[j] = frame.Text(v)
		}
		if err := w.Write(fields); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}

	return file.Close()
}
