package edapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aca-libraries/libstats/internal/frame"
	"github.com/aca-libraries/libstats/internal/testutil"
)

func testClient(url string) *Client {
	return NewClient(&ClientConfig{
		BaseURL:    url,
		RateLimit:  1000,
		RateBurst:  10,
		MaxRetries: 2,
		Backoff:    time.Millisecond,
	})
}

func TestFetch(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		_, _ = w.Write([]byte(`{"count":1,"results":[{"unitid":219790,"year":2019,"ltotexpn":123456.5,"ldbs":null}]}`))
	}))
	defer srv.Close()

	rec, err := testClient(srv.URL+"/ipeds").Fetch(context.Background(), EndpointAcademicLibraries, 219790, 2019)
	require.NoError(t, err)
	assert.Equal(t, "/ipeds/academic-libraries", gotPath)
	assert.Equal(t, "unitid=219790&year=2019", gotQuery)

	assert.Equal(t, 123456.5, frame.Normalize(rec.First(totalExpensesFields...)))
	assert.Nil(t, rec.First(databaseCountFields...))
	assert.Contains(t, rec.JSON(), `"ltotexpn":123456.5`)
}

func TestFetch_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	rec, err := testClient(srv.URL).Fetch(context.Background(), EndpointFallEnrollment, 1, 2020)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"fte":10}]}`))
	}))
	defer srv.Close()

	rec, err := testClient(srv.URL).Fetch(context.Background(), EndpointFallEnrollment, 1, 2020)
	require.NoError(t, err)
	assert.Equal(t, int64(10), frame.Normalize(rec.First(fteFields...)))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Get(context.Background(), "x", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.NotFound(w, nil)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Get(context.Background(), "x", nil)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGet_TransportErrorIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&TransportError{Err: errors.New("connection reset")}))
	assert.True(t, isRetryable(fmt.Errorf("wrapped: %w", &HTTPError{StatusCode: 502})))
	assert.False(t, isRetryable(errors.New("other")))
}

func TestGet_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testClient("http://127.0.0.1:1").Get(ctx, "x", nil)
	assert.Error(t, err)
}

type stubFetcher struct {
	records map[string]Record
	fail    map[string]bool
}

func (s stubFetcher) Fetch(_ context.Context, endpoint string, id int64, year int) (Record, error) {
	key := fmt.Sprintf("%s/%d/%d", endpoint, id, year)
	if s.fail[key] {
		return nil, &HTTPError{StatusCode: 404}
	}
	return s.records[key], nil
}

func TestCollector(t *testing.T) {
	fetcher := stubFetcher{
		records: map[string]Record{
			"academic-libraries/1/2019": {"total_expenses": nil, "ltotexpn": 5.5, "database_count": 0},
			"fall-enrollment/1/2019":    {"fte_total": 300},
			"fall-enrollment/2/2020":    {"fte": "", "efytotlt": 40},
		},
		fail: map[string]bool{"academic-libraries/2/2020": true},
	}

	f, err := NewCollector(fetcher, []int64{1, 2}, []int{2019, 2020}, testutil.NewTestLogger(t)).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"unitid", "year", "total_expenses", "database_count", "acad_lib_raw", "fte", "fall_enroll_raw"}, f.Columns())
	require.Equal(t, 4, f.Len())

	assert.Equal(t, 5.5, f.Value(0, ColTotalExpenses))
	assert.Equal(t, int64(0), f.Value(0, ColDatabaseCount), "zero is a value")
	assert.Equal(t, int64(300), f.Value(0, ColFTE))
	assert.Nil(t, f.Value(1, ColAcadLibRaw))
	assert.Equal(t, int64(40), f.Value(3, ColFTE))
	assert.Nil(t, f.Value(3, ColTotalExpenses))

	s := Summarize(f)
	assert.Equal(t, 4, s.Records)
	assert.Equal(t, 2, s.Institutions)
	assert.Equal(t, []YearCount{{Year: 2019, Count: 2}, {Year: 2020, Count: 2}}, s.Years)
	assert.Equal(t, Missing{Column: ColTotalExpenses, Count: 3, Percent: 75}, s.Missing[0])
	assert.Equal(t, Missing{Column: ColFTE, Count: 2, Percent: 50}, s.Missing[2])
	assert.Equal(t, []string{"unitid", "year", "total_expenses", "database_count", "fte"}, s.Sample.Columns())
}

func TestRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, EndpointFallEnrollment) {
			_, _ = w.Write([]byte(`{"results":[{"fte":12}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	res, err := Run(context.Background(), Config{
		Client:    &ClientConfig{BaseURL: srv.URL, RateLimit: 1000, RateBurst: 10},
		IDs:       []int64{219790},
		Years:     []int{2022},
		OutputDir: dir,
		Now:       func() time.Time { return time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC) },
		Logger:    testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bcla_ipeds_data_20240101_090000.csv"), res.File)

	data, err := os.ReadFile(res.File)
	require.NoError(t, err)
	assert.Equal(t,
		"unitid,year,total_expenses,database_count,acad_lib_raw,fte,fall_enroll_raw\n"+
			"219790,2022,,,,12,\"{\"\"fte\"\":12}\"\n",
		string(data))
	assert.Equal(t, 1, res.Summary.Records)
}

func TestDefaultYears(t *testing.T) {
	years := DefaultYears()
	assert.Equal(t, 2013, years[0])
	assert.Equal(t, 2024, years[len(years)-1])
}
