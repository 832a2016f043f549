package dashboard_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/KaramelBytes/riskdash/internal/backend"
	"github.com/KaramelBytes/riskdash/internal/backend/backendtest"
	"github.com/KaramelBytes/riskdash/internal/dashboard"
	"github.com/KaramelBytes/riskdash/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI answers from canned results and counts calls.
type fakeAPI struct {
	mu          sync.Mutex
	upload      *backend.UploadResult
	uploadErr   error
	chunk       func(page int) (*backend.ChunkResult, error)
	uploadCalls int
	chunkCalls  int
}

func (f *fakeAPI) UploadCSV(_ context.Context, _ string, r io.Reader) (*backend.UploadResult, error) {
	_, _ = io.Copy(io.Discard, r)
	f.mu.Lock()
	f.uploadCalls++
	f.mu.Unlock()
	return f.upload, f.uploadErr
}

func (f *fakeAPI) GetChunk(_ context.Context, page int) (*backend.ChunkResult, error) {
	f.mu.Lock()
	f.chunkCalls++
	fn := f.chunk
	f.mu.Unlock()
	return fn(page)
}

func rows(from, n int) []backend.Record {
	out := make([]backend.Record, 0, n)
	for i := from; i < from+n; i++ {
		out = append(out, backend.NewRecord("RecordID", backendtest.RowID(i), "ClaimProbability", 0.5))
	}
	return out
}

func handle(t *testing.T) *dataset.Handle {
	t.Helper()
	h, err := dataset.FromBytes("policies.csv", backendtest.CSV(3), 0)
	require.NoError(t, err)
	return h
}

func intPtr(n int) *int { return &n }

type recordingObserver struct {
	mu  sync.Mutex
	got []string
}

func (o *recordingObserver) ObserveFlow(flow, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.got = append(o.got, flow+":"+outcome)
}

func TestPaginationControls(t *testing.T) {
	cases := []struct {
		page, total      int
		wantPrev, wantNx bool
	}{
		{0, 25, false, true},
		{1, 25, true, true},
		{2, 25, true, false},
		{0, 10, false, false},
		{0, 11, false, true},
		{0, 0, false, false},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("page%d_total%d", tc.page, tc.total), func(t *testing.T) {
			assert.Equal(t, tc.wantPrev, dashboard.HasPrev(tc.page))
			assert.Equal(t, tc.wantNx, dashboard.HasNext(tc.page, tc.total))
		})
	}
	assert.Equal(t, 3, dashboard.PageCount(25))
	assert.Equal(t, 0, dashboard.PageCount(0))
	assert.False(t, dashboard.InRange(3, 25))
	assert.True(t, dashboard.InRange(2, 25))
}

func TestUploadReplacesViewAndResetsPage(t *testing.T) {
	api := &fakeAPI{upload: &backend.UploadResult{Preview: rows(0, 10), TotalRows: intPtr(25)}}
	obs := &recordingObserver{}
	d := dashboard.New(api, dashboard.View{Loaded: true, Page: 4, TotalRows: 99, Rows: rows(40, 2)}, dashboard.WithFlowObserver(obs))

	v, err := d.Upload(context.Background(), handle(t))
	require.NoError(t, err)
	assert.Equal(t, 0, v.Page)
	assert.Equal(t, 25, v.TotalRows)
	assert.Equal(t, 3, v.PageCount())
	assert.Equal(t, "policies.csv", v.Source)
	assert.Equal(t, backendtest.RowID(0), v.Rows[0].Text("RecordID"))
	assert.Equal(t, dashboard.StatusSucceeded, d.UploadFlow().Status())
	assert.Equal(t, []string{"upload:succeeded"}, obs.got)
}

func TestUploadFallsBackToPreviewLength(t *testing.T) {
	api := &fakeAPI{upload: &backend.UploadResult{Preview: rows(0, 7)}}
	d := dashboard.New(api, dashboard.View{})
	v, err := d.Upload(context.Background(), handle(t))
	require.NoError(t, err)
	assert.Equal(t, 7, v.TotalRows)
	assert.False(t, v.HasNext())
}

func TestUploadFailureKeepsPreviousView(t *testing.T) {
	prev := dashboard.View{Loaded: true, Page: 1, TotalRows: 25, Rows: rows(10, 10)}
	api := &fakeAPI{uploadErr: &backend.ServerError{APIError: &backend.APIError{StatusCode: 500, Message: "boom"}}}
	d := dashboard.New(api, prev)

	v, err := d.Upload(context.Background(), handle(t))
	var ue *dashboard.UploadError
	require.ErrorAs(t, err, &ue)
	var se *backend.ServerError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, prev.Page, v.Page)
	assert.Equal(t, prev.Rows, d.View().Rows)
	assert.Equal(t, dashboard.StatusFailed, d.UploadFlow().Status())
	assert.Equal(t, err, d.UploadFlow().Err())
	assert.False(t, d.UploadFlow().Busy())
}

func TestUploadWithoutFileSendsNothing(t *testing.T) {
	api := &fakeAPI{}
	d := dashboard.New(api, dashboard.View{})
	_, err := d.Upload(context.Background(), nil)
	require.ErrorIs(t, err, dashboard.ErrNoFile)
	var ue *dashboard.UploadError
	assert.ErrorAs(t, err, &ue)
	assert.Zero(t, api.uploadCalls)
}

func TestLoadPageUsesServerEchoedPage(t *testing.T) {
	api := &fakeAPI{chunk: func(page int) (*backend.ChunkResult, error) {
		return &backend.ChunkResult{Rows: rows(10, 10), Page: 1}, nil
	}}
	d := dashboard.New(api, dashboard.View{Loaded: true, TotalRows: 25, Rows: rows(0, 10)})

	v, err := d.LoadPage(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Page)
	assert.Equal(t, backendtest.RowID(10), v.Rows[0].Text("RecordID"))
	assert.Equal(t, 25, v.TotalRows)
}

func TestLoadPageRejectsEchoedPageOutOfRange(t *testing.T) {
	api := &fakeAPI{chunk: func(int) (*backend.ChunkResult, error) {
		return &backend.ChunkResult{Rows: rows(70, 10), Page: 7}, nil
	}}
	prev := dashboard.View{Loaded: true, TotalRows: 25, Rows: rows(0, 10)}
	d := dashboard.New(api, prev)

	v, err := d.LoadPage(context.Background(), 1)
	var fe *dashboard.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 1, fe.Page)
	var de *backend.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, backend.EndpointGetChunk, de.Endpoint)
	assert.Equal(t, prev, v)
	assert.Equal(t, prev, d.View())
	assert.False(t, d.View().HasPrev())
	assert.Equal(t, dashboard.StatusFailed, d.PageFlow().Status())
}

func TestLoadPageRefusesOutOfRange(t *testing.T) {
	api := &fakeAPI{chunk: func(int) (*backend.ChunkResult, error) {
		t.Fatal("GetChunk must not be called")
		return nil, nil
	}}
	d := dashboard.New(api, dashboard.View{Loaded: true, TotalRows: 25})
	for _, idx := range []int{-1, 3, 100} {
		_, err := d.LoadPage(context.Background(), idx)
		assert.ErrorIs(t, err, dashboard.ErrPageOutOfRange, "index %d", idx)
	}
	_, err := d.Prev(context.Background())
	assert.ErrorIs(t, err, dashboard.ErrPageOutOfRange)

	empty := dashboard.New(api, dashboard.View{})
	_, err = empty.Next(context.Background())
	assert.ErrorIs(t, err, dashboard.ErrPageOutOfRange)
}

func TestLoadPageFailureKeepsView(t *testing.T) {
	api := &fakeAPI{chunk: func(int) (*backend.ChunkResult, error) {
		return nil, &backend.UnreachableError{Host: "127.0.0.1:5000", Err: errors.New("connection refused")}
	}}
	prev := dashboard.View{Loaded: true, TotalRows: 25, Rows: rows(0, 10)}
	d := dashboard.New(api, prev)
	_, err := d.Next(context.Background())
	var fe *dashboard.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 1, fe.Page)
	assert.Contains(t, err.Error(), "loading page 2 failed")
	assert.Equal(t, 0, d.View().Page)
	assert.Equal(t, dashboard.StatusFailed, d.PageFlow().Status())
	// upload flow is independent
	assert.Equal(t, dashboard.StatusIdle, d.UploadFlow().Status())
}

func TestLoadPageIsSingleFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	api := &fakeAPI{chunk: func(page int) (*backend.ChunkResult, error) {
		close(entered)
		<-release
		return &backend.ChunkResult{Rows: rows(page*10, 10), Page: page}, nil
	}}
	d := dashboard.New(api, dashboard.View{Loaded: true, TotalRows: 25})

	done := make(chan error, 1)
	go func() {
		_, err := d.LoadPage(context.Background(), 1)
		done <- err
	}()
	<-entered
	assert.True(t, d.PageFlow().Busy())
	_, err := d.LoadPage(context.Background(), 2)
	assert.ErrorIs(t, err, dashboard.ErrInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, d.View().Page)
	assert.Equal(t, 1, api.chunkCalls)
}

func TestPageResponseForReplacedDatasetIsDropped(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	api := &fakeAPI{
		upload: &backend.UploadResult{Preview: rows(100, 10), TotalRows: intPtr(40)},
		chunk: func(page int) (*backend.ChunkResult, error) {
			close(entered)
			<-release
			return &backend.ChunkResult{Rows: rows(10, 10), Page: page}, nil
		},
	}
	d := dashboard.New(api, dashboard.View{Loaded: true, TotalRows: 25, Rows: rows(0, 10)})

	done := make(chan error, 1)
	go func() {
		_, err := d.LoadPage(context.Background(), 1)
		done <- err
	}()
	<-entered
	_, err := d.Upload(context.Background(), handle(t))
	require.NoError(t, err)
	close(release)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, dashboard.ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("page fetch did not return")
	}
	v := d.View()
	assert.Equal(t, 0, v.Page)
	assert.Equal(t, 40, v.TotalRows)
	assert.Equal(t, backendtest.RowID(100), v.Rows[0].Text("RecordID"))
	assert.False(t, d.PageFlow().Busy())
	assert.NoError(t, d.PageFlow().Err())
}

func TestScenarioNextNextPrevAgainstBackend(t *testing.T) {
	srv := backendtest.New(t)
	client := backend.NewClient(srv.URL, 2*time.Second)
	d := dashboard.New(client, dashboard.View{})
	ctx := context.Background()

	h, err := dataset.FromBytes("policies.csv", backendtest.CSV(25), 0)
	require.NoError(t, err)
	v, err := d.Upload(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, 0, v.Page)
	assert.Equal(t, 3, v.PageCount())
	assert.False(t, v.HasPrev())

	_, err = d.Next(ctx)
	require.NoError(t, err)
	v, err = d.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Page)
	assert.False(t, v.HasNext())
	_, err = d.Next(ctx)
	assert.ErrorIs(t, err, dashboard.ErrPageOutOfRange)

	v, err = d.Prev(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Page)
	require.Len(t, v.Rows, 10)
	assert.Equal(t, backendtest.RowID(10), v.Rows[0].Text("RecordID"))
	assert.Equal(t, 3, srv.Calls(backend.EndpointGetChunk))
	require.NotEmpty(t, v.Summary.Numeric)
	assert.Equal(t, 10.0, *v.Summary.Numeric[0].Min)
}

func TestFailedUploadAgainstBackendSurfacesMessage(t *testing.T) {
	srv := backendtest.New(t)
	srv.Fail(backend.EndpointPredictCSV, backendtest.Failure{Status: 400, Message: "No selected file"})
	d := dashboard.New(backend.NewClient(srv.URL, 2*time.Second), dashboard.View{})
	h, err := dataset.FromBytes("p.csv", bytes.Repeat([]byte("a,b\n"), 2), 0)
	require.NoError(t, err)
	_, err = d.Upload(context.Background(), h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No selected file")
	assert.False(t, d.View().Loaded)
}

func TestUploadClearsPreviousPageError(t *testing.T) {
	api := &fakeAPI{
		upload: &backend.UploadResult{Preview: rows(0, 10), TotalRows: intPtr(12)},
		chunk: func(int) (*backend.ChunkResult, error) {
			return nil, &backend.UnreachableError{Host: "127.0.0.1:5000", Err: errors.New("connection refused")}
		},
	}
	d := dashboard.New(api, dashboard.View{Loaded: true, TotalRows: 25, Rows: rows(0, 10)})

	_, err := d.LoadPage(context.Background(), 1)
	require.Error(t, err)
	require.Equal(t, dashboard.StatusFailed, d.PageFlow().Status())

	_, err = d.Upload(context.Background(), handle(t))
	require.NoError(t, err)
	assert.Equal(t, dashboard.StatusIdle, d.PageFlow().Status())
	assert.NoError(t, d.PageFlow().Err())
}
