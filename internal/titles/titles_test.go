package titles

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aca-libraries/libstats/internal/snapshot"
	"github.com/aca-libraries/libstats/internal/testutil"
)

func TestReadSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.xlsx")
	testutil.WriteWorkbook(t, path, "vartable19", [][]any{
		{"varNumber", "varName", "varTitle"},
		{1, "FTE", "Full-time equivalent fall enrollment"},
		{2, "LEXPTOT", "Total expenditures"},
		{3, "FTE", "Duplicate title"},
		{4, "", "No name"},
	})

	s, err := ReadSheet(path, "vartable19", "2019")
	require.NoError(t, err)
	assert.Equal(t, []string{"FTE", "LEXPTOT"}, s.Names)
	assert.Equal(t, "Full-time equivalent fall enrollment", s.Titles["FTE"])
	assert.Equal(t, 1, s.Duplicates)
}

func TestReadSheet_MissingHeaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.xlsx")
	testutil.WriteWorkbook(t, path, "vartable19", [][]any{{"name", "title"}, {"FTE", "x"}})

	_, err := ReadSheet(path, "vartable19", "2019")
	assert.ErrorIs(t, err, ErrMissingHeaders)

	_, err = ReadSheet(path, "vartable20", "2020")
	assert.Error(t, err)
}

func TestConsolidate(t *testing.T) {
	sheets := []*Sheet{
		{Year: "2019", Names: []string{"FTE", "OLD"}, Titles: map[string]string{"FTE": "FTE enrollment", "OLD": "Retired"}},
		{Year: "2021", Names: []string{"FTE", "NEW"}, Titles: map[string]string{"FTE": "Full-time equivalent", "NEW": ""}},
	}

	f := Consolidate([]string{"2019", "2020", "2021"}, sheets)
	assert.Equal(t, []string{
		"varName", "id", "varTitle_2019", "varTitle_2020", "varTitle_2021", "has_variations", "current_varTitle",
	}, f.Columns())
	require.Equal(t, 3, f.Len())

	assert.Equal(t, "FTE", f.Value(0, "varName"))
	assert.Equal(t, int64(1), f.Value(0, "id"))
	assert.Nil(t, f.Value(0, "varTitle_2020"))
	assert.Equal(t, true, f.Value(0, "has_variations"))
	assert.Equal(t, "Full-time equivalent", f.Value(0, "current_varTitle"))

	assert.Equal(t, "OLD", f.Value(1, "varName"))
	assert.Equal(t, false, f.Value(1, "has_variations"))
	assert.Equal(t, "Retired", f.Value(1, "current_varTitle"))

	assert.Equal(t, "NEW", f.Value(2, "varName"))
	assert.Nil(t, f.Value(2, "current_varTitle"))
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db := filepath.Join(dir, "snap.sqlite")
	store, err := snapshot.Open(ctx, db, nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	testutil.WriteWorkbook(t, filepath.Join(dir, "IPEDS201920TablesDoc.xlsx"), "vartable19", [][]any{
		{"varName", "varTitle"},
		{"FTE", "FTE enrollment"},
	})
	testutil.WriteWorkbook(t, filepath.Join(dir, "IPEDS202021TablesDoc.xlsx"), "vartable20", [][]any{
		{"varName", "varTitle"},
		{"FTE", "Full-time equivalent fall enrollment"},
		{"F2E131", "Total expenses-Total amount"},
	})

	res, err := Run(ctx, Config{
		Dir:      dir,
		Sources:  DefaultSources([]int{2019, 2020, 2021}),
		Database: db,
		Logger:   testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2019", "2020"}, res.Years)
	assert.Equal(t, []string{"2021"}, res.Skipped)
	assert.Equal(t, int64(2), res.Variables)
	assert.Equal(t, int64(1), res.Changed)
	assert.Equal(t, 2, res.Sample.Len())

	store, err = snapshot.OpenExisting(ctx, db, nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	lookup, err := store.Titles(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Full-time equivalent fall enrollment", lookup.Title("FTE"))
}

func TestRun_RequiresDatabase(t *testing.T) {
	_, err := Run(context.Background(), Config{Database: filepath.Join(t.TempDir(), "none.sqlite")})
	assert.ErrorIs(t, err, snapshot.ErrNoDatabase)
}

func TestRun_NoMappings(t *testing.T) {
	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "snap.sqlite")
	store, err := snapshot.Open(ctx, db, nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = Run(ctx, Config{Dir: t.TempDir(), Sources: DefaultSources([]int{2019}), Database: db})
	assert.ErrorIs(t, err, ErrNoMappings)
}
