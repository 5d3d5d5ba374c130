// Package export writes frames to spreadsheet and CSV files.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/aca-libraries/libstats/internal/frame"
)

// DefaultSheet is the worksheet name used when none is given.
const DefaultSheet = "Sheet1"

// maxColWidth caps the automatic column width, in characters.
const maxColWidth = 50

// TimestampLayout is the suffix format of generated report files.
const TimestampLayout = "20060102_150405"

// Timestamp formats t as a report file suffix.
func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ReportPath builds dir/{prefix}_{label}_{ts}.xlsx.
func ReportPath(dir, prefix, label, ts string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s_%s.xlsx", prefix, label, ts))
}

// WriteXLSX writes f to a new workbook at path. The header row is bold and
// frozen, and missing values are left as empty cells.
func WriteXLSX(path string, f *frame.Frame, sheet string) error {
	if sheet == "" {
		sheet = DefaultSheet
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	book := excelize.NewFile()
	defer func() { _ = book.Close() }()

	if sheet != DefaultSheet {
		if err := book.SetSheetName(DefaultSheet, sheet); err != nil {
			return fmt.Errorf("failed to name sheet: %w", err)
		}
	}

	bold, err := book.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	cols := f.Columns()
	widths := make([]int, len(cols))
	for j, c := range cols {
		cell, _ := excelize.CoordinatesToCellName(j+1, 1)
		if err := book.SetCellValue(sheet, cell, c); err != nil {
			return fmt.Errorf("failed to write header %q: %w", c, err)
		}
		widths[j] = utf8.RuneCountInString(c)
	}
	if len(cols) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(cols), 1)
		if err := book.SetCellStyle(sheet, "A1", last, bold); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
	}

	for i, rec := range f.Records() {
		for j, v := range rec {
			if frame.IsMissing(v) {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			if err := book.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("failed to write %s: %w", cell, err)
			}
			if n := utf8.RuneCountInString(frame.Text(v)); n > widths[j] {
				widths[j] = n
			}
		}
	}

	for j, w := range widths {
		name, _ := excelize.ColumnNumberToName(j + 1)
		if err := book.SetColWidth(sheet, name, name, float64(min(w+2, maxColWidth))); err != nil {
			return fmt.Errorf("failed to size column %s: %w", name, err)
		}
	}

	if err := book.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if err := book.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}

	return nil
}
