package report

import (
	"slices"

	"github.com/aca-libraries/libstats/internal/ipeds"
)

// Filters limits the variables reported per table type. A type without an
// entry, or with an empty list, reports every variable.
type Filters map[string][]string

// DefaultFilters keeps FTE from fall enrollment, total expenses from finance
// and every library variable.
func DefaultFilters() Filters {
	return Filters{
		ipeds.TypeDRVEF: {"FTE"},
		ipeds.TypeF:     {"F2E131"},
		ipeds.TypeAL:    nil,
		ipeds.TypeDRVAL: nil,
	}
}

// Include reports whether variable of table belongs in a report.
func (f Filters) Include(table, variable string) bool {
	allowed := f[ipeds.TableType(table)]
	if len(allowed) == 0 {
		return true
	}
	return slices.Contains(allowed, variable)
}
