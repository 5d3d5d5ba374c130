package titles

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Header names of the documentation variable sheets.
const (
	headerVarName  = "varName"
	headerVarTitle = "varTitle"
)

// ErrMissingHeaders is returned when a sheet lacks the varName or varTitle column.
var ErrMissingHeaders = errors.New("required columns not found")

// Sheet is the variable list of one documentation workbook.
type Sheet struct {
	Year string
	// Names holds variable names in sheet order without duplicates.
	Names  []string
	Titles map[string]string
	// Duplicates counts repeated names that were dropped.
	Duplicates int
}

// ReadSheet loads the varName/varTitle pairs of sheet in the workbook at path.
// Repeated variable names keep their first title.
func ReadSheet(path, sheet, year string) (*Sheet, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("workbook %s: %w", path, err)
	}

	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = book.Close() }()

	rows, err := book.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %s is empty", ErrMissingHeaders, sheet)
	}

	nameCol, titleCol := -1, -1
	for i, h := range rows[0] {
		switch strings.TrimSpace(h) {
		case headerVarName:
			if nameCol < 0 {
				nameCol = i
			}
		case headerVarTitle:
			if titleCol < 0 {
				titleCol = i
			}
		}
	}
	if nameCol < 0 || titleCol < 0 {
		return nil, fmt.Errorf("%w in %s (available: %s)", ErrMissingHeaders, sheet, strings.Join(rows[0], ", "))
	}

	out := &Sheet{Year: year, Titles: make(map[string]string)}
	for _, row := range rows[1:] {
		name := strings.TrimSpace(cell(row, nameCol))
		if name == "" {
			continue
		}
		if _, seen := out.Titles[name]; seen {
			out.Duplicates++
			continue
		}
		out.Names = append(out.Names, name)
		out.Titles[name] = strings.TrimSpace(cell(row, titleCol))
	}
	return out, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
