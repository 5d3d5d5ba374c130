package edapi

import (
	"sort"

	"github.com/aca-libraries/libstats/internal/frame"
)

// sampleRows is the number of rows kept for the summary preview.
const sampleRows = 5

// YearCount is the number of collected rows for one year.
type YearCount struct {
	Year  int64 `json:"year"`
	Count int   `json:"count"`
}

// Missing counts the rows without a value in one column.
type Missing struct {
	Column  string  `json:"column"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// Summary describes a collection.
type Summary struct {
	Records      int          `json:"records"`
	Institutions int          `json:"institutions"`
	Years        []YearCount  `json:"years"`
	Missing      []Missing    `json:"missing"`
	Sample       *frame.Frame `json:"-"`
}

// Summarize counts rows per year and missing values per measure.
func Summarize(f *frame.Frame) *Summary {
	s := &Summary{Records: f.Len()}

	ids := make(map[int64]bool)
	perYear := make(map[int64]int)
	for i := 0; i < f.Len(); i++ {
		if id, ok := frame.NormalizeKey(f.Value(i, ColUnitID)); ok {
			ids[id] = true
		}
		if y, ok := frame.NormalizeKey(f.Value(i, ColYear)); ok {
			perYear[y]++
		}
	}
	s.Institutions = len(ids)
	for y, n := range perYear {
		s.Years = append(s.Years, YearCount{Year: y, Count: n})
	}
	sort.Slice(s.Years, func(i, j int) bool { return s.Years[i].Year < s.Years[j].Year })

	for _, col := range ValueColumns {
		if !f.HasColumn(col) {
			continue
		}
		m := Missing{Column: col}
		for i := 0; i < f.Len(); i++ {
			if frame.IsMissing(f.Value(i, col)) {
				m.Count++
			}
		}
		if f.Len() > 0 {
			m.Percent = float64(m.Count) / float64(f.Len()) * 100
		}
		s.Missing = append(s.Missing, m)
	}

	// Raw payload columns are too wide to preview.
	s.Sample = frame.New(append([]string{ColUnitID, ColYear}, ValueColumns...)...)
	for i := 0; i < sampleRows && i < f.Len(); i++ {
		s.Sample.AppendRow(f.Row(i))
	}
	return s
}
