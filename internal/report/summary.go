package report

import (
	"context"
	"slices"
	"strings"

	"github.com/aca-libraries/libstats/internal/frame"
	"github.com/aca-libraries/libstats/internal/ipeds"
)

// NotAvailable marks a year without the corresponding table.
const NotAvailable = "N/A"

// Summary counts, per year, the institutions present in each variable table.
func (g *Generator) Summary(ctx context.Context) (*frame.Frame, error) {
	cols := []string{"Year"}
	for _, t := range ipeds.SummaryTypes {
		cols = append(cols, strings.ToUpper(t))
	}
	out := frame.New(cols...)

	for _, year := range g.Years() {
		row := frame.Row{"Year": year}
		for _, typ := range ipeds.SummaryTypes {
			table := ipeds.YearTable(typ, year)
			if typ == ipeds.TypeF {
				var err error
				if table, err = ipeds.FinanceTable(year); err != nil {
					return nil, err
				}
			}
			col := strings.ToUpper(typ)
			if !slices.Contains(g.tables, table) {
				row[col] = NotAvailable
				continue
			}
			n, err := g.store.CountDistinct(ctx, table, "UNITID")
			if err != nil {
				return nil, err
			}
			row[col] = n
		}
		out.AppendRow(row)
	}
	return out, nil
}

// FilterDescription renders the active variable filters, one line per table type.
func (f Filters) FilterDescription() []string {
	var lines []string
	for _, typ := range ipeds.SummaryTypes {
		allowed, ok := f[typ]
		switch {
		case !ok || len(allowed) == 0:
			lines = append(lines, strings.ToUpper(typ)+": all variables")
		default:
			lines = append(lines, strings.ToUpper(typ)+": "+strings.Join(allowed, ", "))
		}
	}
	return lines
}
