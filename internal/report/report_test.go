package report

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/aca-libraries/libstats/internal/frame"
	"github.com/aca-libraries/libstats/internal/snapshot"
	"github.com/aca-libraries/libstats/internal/testutil"
)

func table(t *testing.T, cols []string, rows ...[]any) *frame.Frame {
	t.Helper()
	f := frame.New(cols...)
	for _, r := range rows {
		require.NoError(t, f.Append(r...))
	}
	return f
}

// seed writes a small two-year snapshot into store.
func seed(t *testing.T, store *snapshot.Store) {
	t.Helper()
	ctx := context.Background()
	tables := map[string]*frame.Frame{
		"hd2019": table(t, []string{"UNITID", "INSTNM"},
			[]any{int64(220473), "Johnson University"}, []any{int64(132879), "Johnson University Florida"}),
		"hd2020": table(t, []string{"UNITID", "INSTNM"},
			[]any{int64(220473), "Johnson University TN"}, []any{int64(132879), "Johnson University Florida"}),
		"drvef2019": table(t, []string{"UNITID", "FTE", "EFTEUG"},
			[]any{int64(132879), int64(800), int64(700)}),
		"al2019": table(t, []string{"UNITID", "LEXPTOT", "LSALWAG"},
			[]any{int64(220473), 250000.5, int64(1000)}, []any{int64(132879), nil, int64(20)}),
		"f1920_f2": table(t, []string{"UNITID", "F2E131", "F2E132"},
			[]any{int64(220473), int64(9000000), int64(1)}),
	}
	for name, f := range tables {
		require.NoError(t, store.WriteTable(ctx, name, f))
	}

	titles := table(t, []string{snapshot.ColVarName, snapshot.ColID, snapshot.ColHasVariations, snapshot.ColCurrentTitle},
		[]any{"FTE", int64(1), false, "Full-time equivalent fall enrollment"},
		[]any{"LEXPTOT", int64(2), false, "Total expenditures"},
		[]any{"LSALWAG", int64(3), false, "Total expenditures"},
		[]any{"F2E131", int64(4), false, "Total expenses-Total amount"},
	)
	require.NoError(t, store.WriteVariableTitles(ctx, titles))
}

func newGenerator(t *testing.T) *Generator {
	t.Helper()
	ctx := context.Background()
	store, err := snapshot.Open(ctx, ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	seed(t, store)

	g, err := NewGenerator(ctx, store, nil, testutil.NewTestLogger(t))
	require.NoError(t, err)
	return g
}

func TestFilters_Include(t *testing.T) {
	f := DefaultFilters()
	assert.True(t, f.Include("drvef2019", "FTE"))
	assert.False(t, f.Include("drvef2019", "EFTEUG"))
	assert.True(t, f.Include("f1920_f2", "F2E131"))
	assert.False(t, f.Include("f1920_f2", "F2E132"))
	assert.True(t, f.Include("al2019", "ANYTHING"))
	assert.True(t, f.Include("ic2019", "ANYTHING"), "unlisted types keep everything")
}

func TestGenerator_Years(t *testing.T) {
	assert.Equal(t, []string{"2019", "2020"}, newGenerator(t).Years())
}

func TestGenerator_Combined(t *testing.T) {
	g := newGenerator(t)
	f, err := g.Combined(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"UNITID",
		"Institution Name",
		"2019 - AL - Total expenditures",
		"2019 - AL - Total expenditures (LSALWAG)",
		"2019 - DRVEF - Full-time equivalent fall enrollment",
		"2020 - F - Total expenses-Total amount",
	}, f.Columns())

	require.Equal(t, 2, f.Len())
	assert.Equal(t, int64(132879), f.Value(0, "UNITID"), "sorted by UNITID")
	assert.Equal(t, "Johnson University TN", f.Value(1, "Institution Name"), "latest directory table")
	assert.Nil(t, f.Value(0, "2019 - AL - Total expenditures"))
	assert.Equal(t, int64(800), f.Value(0, "2019 - DRVEF - Full-time equivalent fall enrollment"))
	assert.Nil(t, f.Value(1, "2019 - DRVEF - Full-time equivalent fall enrollment"))
	assert.Equal(t, int64(9000000), f.Value(1, "2020 - F - Total expenses-Total amount"))
}

func TestGenerator_Year(t *testing.T) {
	g := newGenerator(t)
	ctx := context.Background()

	f, err := g.Year(ctx, "2020")
	require.NoError(t, err)
	assert.Equal(t, []string{"UNITID", "Institution Name", "F - Total expenses-Total amount"}, f.Columns())

	f, err = g.Year(ctx, "2019")
	require.NoError(t, err)
	assert.Equal(t, "Johnson University", f.Value(1, "Institution Name"))

	_, err = g.Year(ctx, "2030")
	assert.ErrorIs(t, err, ErrNoData)

	reports, err := g.YearReports(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "2019", reports[0].Year)
}

func TestGenerator_WithoutDirectory(t *testing.T) {
	ctx := context.Background()
	store, err := snapshot.Open(ctx, ":memory:", nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.WriteTable(ctx, "al2021", table(t, []string{"UNITID", "LEXPTOT"},
		[]any{int64(2), int64(5)}, []any{int64(1), int64(6)}, []any{int64(1), int64(7)})))

	g, err := NewGenerator(ctx, store, nil, nil)
	require.NoError(t, err)
	f, err := g.Combined(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"UNITID", "Institution Name", "2021 - AL - LEXPTOT"}, f.Columns())
	require.Equal(t, 2, f.Len())
	assert.Equal(t, int64(1), f.Value(0, "UNITID"))
	assert.Nil(t, f.Value(0, "Institution Name"))
	assert.Equal(t, int64(6), f.Value(0, "2021 - AL - LEXPTOT"), "first duplicate wins")
}

func TestGenerator_EmptyDatabase(t *testing.T) {
	ctx := context.Background()
	store, err := snapshot.Open(ctx, ":memory:", nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	g, err := NewGenerator(ctx, store, nil, nil)
	require.NoError(t, err)
	_, err = g.Combined(ctx)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestGenerator_Summary(t *testing.T) {
	g := newGenerator(t)
	s, err := g.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Year", "DRVEF", "AL", "DRVAL", "F"}, s.Columns())
	require.Equal(t, 2, s.Len())
	assert.Equal(t, frame.Row{"Year": "2019", "DRVEF": int64(1), "AL": int64(2), "DRVAL": NotAvailable, "F": NotAvailable}, s.Row(0))
	assert.Equal(t, int64(1), s.Value(1, "F"))
}

func TestFilterDescription(t *testing.T) {
	assert.Equal(t, []string{
		"DRVEF: FTE",
		"AL: all variables",
		"DRVAL: all variables",
		"F: F2E131",
	}, DefaultFilters().FilterDescription())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("years")
	require.NoError(t, err)
	assert.Equal(t, ModeYears, m)
	_, err = ParseMode("3")
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db := filepath.Join(dir, "snap.sqlite")
	store, err := snapshot.Open(ctx, db, nil)
	require.NoError(t, err)
	seed(t, store)
	require.NoError(t, store.Close())

	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	res, err := Run(ctx, Config{
		Database:  db,
		OutputDir: filepath.Join(dir, "out"),
		Now:       func() time.Time { return now },
		Logger:    testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "out", "BCLA_Library_Combined_20250102_030405.xlsx"),
		filepath.Join(dir, "out", "BCLA_Library_2019_20250102_030405.xlsx"),
		filepath.Join(dir, "out", "BCLA_Library_2020_20250102_030405.xlsx"),
	}, res.Files)
	assert.Equal(t, 2, res.Summary.Len())

	book, err := excelize.OpenFile(res.Files[0])
	require.NoError(t, err)
	defer func() { _ = book.Close() }()
	rows, err := book.GetRows(book.GetSheetList()[0])
	require.NoError(t, err)
	assert.Equal(t, "Institution Name", rows[0][1])
	assert.Len(t, rows, 3)
}

func TestRun_MissingDatabase(t *testing.T) {
	_, err := Run(context.Background(), Config{Database: filepath.Join(t.TempDir(), "x.sqlite")})
	assert.ErrorIs(t, err, snapshot.ErrNoDatabase)
}
