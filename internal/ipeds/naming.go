// Package ipeds knows the naming conventions of IPEDS survey tables and files.
//
// Yearly tables carry their survey year as four digits (drvef2019, al2020).
// Finance tables carry a two-year span instead (f2223_f2 is fiscal 2022-23)
// and are reported under the span's end year.
package ipeds

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Table type prefixes.
const (
	TypeDRVEF = "drvef" // derived fall enrollment (FTE)
	TypeDRVAL = "drval" // derived academic library variables
	TypeAL    = "al"    // academic libraries
	TypeHD    = "hd"    // institutional directory
	TypeF     = "f"     // finance
)

// knownTypes is checked in order, so longer prefixes must precede prefixes
// they extend.
var knownTypes = []string{TypeDRVEF, TypeDRVAL, TypeAL, TypeHD, TypeF}

// dataTypes are the table types whose columns become report variables.
var dataTypes = []string{TypeDRVEF, TypeAL, TypeDRVAL, TypeF}

// SummaryTypes is the column order of the availability summary.
var SummaryTypes = []string{TypeDRVEF, TypeAL, TypeDRVAL, TypeF}

// TableType returns the type prefix of a table name. Names without a known
// prefix yield their letters, lowercased.
func TableType(name string) string {
	lower := strings.ToLower(name)
	for _, t := range knownTypes {
		if strings.HasPrefix(lower, t) {
			return t
		}
	}
	var b strings.Builder
	for _, r := range lower {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TableYear returns the survey year of a table as four digits, or "" when the
// name does not carry one.
func TableYear(name string) string {
	digits := digitsOf(name)
	if TableType(name) == TypeF {
		if len(digits) < 4 {
			return ""
		}
		return "20" + digits[2:4]
	}
	if len(digits) != 4 {
		return ""
	}
	return digits
}

// IsDataTable reports whether name holds report variables.
func IsDataTable(name string) bool {
	lower := strings.ToLower(name)
	for _, t := range dataTypes {
		if strings.HasPrefix(lower, t) {
			return true
		}
	}
	return false
}

// IsDirectoryTable reports whether name is an HD (institution directory) table.
func IsDirectoryTable(name string) bool {
	return strings.HasPrefix(strings.ToLower(name), TypeHD)
}

// YearTable returns the name of a yearly table, e.g. YearTable("DRVEF", "2019") is "drvef2019".
func YearTable(tableType, year string) string {
	return strings.ToLower(tableType) + year
}

// FinanceTable returns the F2 finance table reported under year, e.g. "f2223_f2" for 2023.
func FinanceTable(year string) (string, error) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return "", fmt.Errorf("invalid year %q: %w", year, err)
	}
	return fmt.Sprintf("f%02d%02d_f2", (y-1)%100, y%100), nil
}

// Years returns the distinct four-digit years carried by tables, ascending.
func Years(tables []string) []string {
	seen := make(map[string]bool)
	var years []string
	for _, t := range tables {
		y := TableYear(t)
		if y == "" || seen[y] {
			continue
		}
		seen[y] = true
		years = append(years, y)
	}
	sort.Strings(years)
	return years
}

// AccessFileName is the IPEDS Access database distributed for a survey year,
// e.g. IPEDS201920.accdb for 2019.
func AccessFileName(year int) string {
	return fmt.Sprintf("IPEDS%d%02d.accdb", year, (year+1)%100)
}

// ExportDirName is the directory holding CSV exports of one year's Access database.
func ExportDirName(year int) string {
	return fmt.Sprintf("IPEDS%d%02d", year, (year+1)%100)
}

// DocFileName is the documentation workbook shipped next to AccessFileName.
func DocFileName(year int) string {
	return fmt.Sprintf("IPEDS%d%02dTablesDoc.xlsx", year, (year+1)%100)
}

// DocSheet is the variable sheet inside DocFileName.
func DocSheet(year int) string {
	return fmt.Sprintf("vartable%02d", year%100)
}

// ExpandTable fills a table name template. Supported placeholders are
// {year} (2019), {yy} (19) and {prev_yy} (18).
func ExpandTable(template string, year int) string {
	r := strings.NewReplacer(
		"{year}", strconv.Itoa(year),
		"{yy}", fmt.Sprintf("%02d", year%100),
		"{prev_yy}", fmt.Sprintf("%02d", (year-1)%100),
	)
	return r.Replace(template)
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
