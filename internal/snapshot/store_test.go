package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aca-libraries/libstats/internal/frame"
	"github.com/aca-libraries/libstats/internal/testutil"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleFrame(t *testing.T) *frame.Frame {
	t.Helper()
	f := frame.New("UNITID", "FTE", "Name")
	require.NoError(t, f.Append(int64(221908), 1234.5, "Bryan College"))
	require.NoError(t, f.Append(int64(100000), nil, "Other"))
	return f
}

func TestOpen_CreatesFileAndMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.sqlite")
	assert.False(t, Exists(path))

	s, err := Open(context.Background(), path, nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	assert.True(t, Exists(path))
	assert.Equal(t, path, s.Path())

	version, err := s.MigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	tables, err := s.Tables(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tables, "bookkeeping tables are hidden")
}

func TestExists_Memory(t *testing.T) {
	assert.False(t, Exists(":memory:"))
	assert.False(t, Exists(""))
	assert.False(t, Exists(t.TempDir()))
}

func TestWriteAndReadTable(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.WriteTable(ctx, "drvef2019", sampleFrame(t)))

	ok, err := s.HasTable(ctx, "drvef2019")
	require.NoError(t, err)
	assert.True(t, ok)

	f, err := s.ReadTable(ctx, "drvef2019")
	require.NoError(t, err)
	assert.Equal(t, []string{"UNITID", "FTE", "Name"}, f.Columns())
	require.Equal(t, 2, f.Len())
	assert.Equal(t, int64(221908), f.Value(0, "UNITID"))
	assert.Equal(t, 1234.5, f.Value(0, "FTE"))
	assert.Nil(t, f.Value(1, "FTE"))
	assert.Equal(t, "Bryan College", f.Value(0, "Name"))

	cols, err := s.ReadColumns(ctx, "drvef2019", "Name", "UNITID")
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "UNITID"}, cols.Columns())
}

func TestWriteTable_Replaces(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.WriteTable(ctx, "hd2020", sampleFrame(t)))

	f := frame.New("UNITID", "INSTNM")
	require.NoError(t, f.Append(int64(1), "Only"))
	require.NoError(t, s.WriteTable(ctx, "hd2020", f))

	got, err := s.ReadTable(ctx, "hd2020")
	require.NoError(t, err)
	assert.Equal(t, []string{"UNITID", "INSTNM"}, got.Columns())
	assert.Equal(t, 1, got.Len())
}

func TestReadTable_Missing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.ReadTable(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrTableNotFound))
}

func TestCountDistinctAndDescribe(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	f := sampleFrame(t)
	require.NoError(t, f.Append(int64(221908), 1.0, "Bryan College"))
	require.NoError(t, s.WriteTable(ctx, "al2019", f))
	require.NoError(t, s.WriteTable(ctx, "drvef2019", sampleFrame(t)))

	n, err := s.CountDistinct(ctx, "al2019", "UNITID")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	infos, err := s.Describe(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "al2019", infos[0].Name)
	assert.Equal(t, int64(3), infos[0].Rows)
	assert.Equal(t, []string{"UNITID", "FTE", "Name"}, infos[0].Columns)
	assert.Equal(t, "drvef2019", infos[1].Name)
}

func TestColumnType(t *testing.T) {
	assert.Equal(t, "INTEGER", columnType([]any{int64(1), nil, true}))
	assert.Equal(t, "REAL", columnType([]any{int64(1), 2.5}))
	assert.Equal(t, "TEXT", columnType([]any{int64(1), "x"}))
	assert.Equal(t, "TEXT", columnType([]any{nil, nil}))
}

func TestRuns(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	latest, err := s.LatestRun(ctx, "import")
	require.NoError(t, err)
	assert.Nil(t, latest)

	run, err := s.CreateRun(ctx, "import")
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, run.Status)

	require.NoError(t, s.CompleteRun(ctx, run.ID, errors.New("boom"), "2 tables"))

	latest, err = s.LatestRun(ctx, "import")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, run.ID, latest.ID)
	assert.Equal(t, RunStatusFailed, latest.Status)
	assert.Equal(t, "boom", latest.Error)
	assert.Equal(t, "2 tables", latest.Detail)
	require.NotNil(t, latest.CompletedAt)

	assert.Error(t, s.CompleteRun(ctx, "missing", nil, ""))
}

func TestTables_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT name FROM sqlite_master").WillReturnError(errors.New("disk I/O error"))

	s := &Store{db: db, logger: testutil.NewTestLogger(t)}
	_, err = s.Tables(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list tables")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteTable_RollsBackOnInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec("DROP TABLE IF EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectPrepare("INSERT INTO").
		ExpectExec().WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	s := &Store{db: db, logger: testutil.NewTestLogger(t)}
	err = s.WriteTable(context.Background(), "al2019", sampleFrame(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert into al2019")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClosedStore(t *testing.T) {
	s := &Store{}
	_, err := s.Tables(context.Background())
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.NoError(t, s.Close())
}

func TestOpenExisting(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "missing.sqlite")

	_, err := OpenExisting(ctx, path, nil)
	assert.ErrorIs(t, err, ErrNoDatabase)

	s, err := Open(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenExisting(ctx, path, nil)
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}

func TestOpenReadOnly_SkipsMigrations(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "legacy.sqlite")

	_, err := OpenReadOnly(ctx, path, nil)
	assert.ErrorIs(t, err, ErrNoDatabase)

	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = raw.ExecContext(ctx, `CREATE TABLE drvef2019 (UNITID INTEGER, FTE REAL)`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	s, err := OpenReadOnly(ctx, path, testutil.NewTestLogger(t))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	tables, err := s.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"drvef2019"}, tables)

	var bookkeeping int
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE name IN ('goose_db_version', 'libstats_runs')`).Scan(&bookkeeping))
	assert.Zero(t, bookkeeping)

	assert.Error(t, s.WriteTable(ctx, "al2019", sampleFrame(t)))
}
