package backend_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/riskdash/internal/backend"
	"github.com/KaramelBytes/riskdash/internal/backend/backendtest"
)

type countingObserver struct {
	outcomes map[string]int
}

func (o *countingObserver) ObserveRequest(endpoint, outcome string, _ time.Duration) {
	if o.outcomes == nil {
		o.outcomes = map[string]int{}
	}
	o.outcomes[endpoint+" "+outcome]++
}

func TestUploadCSVReturnsPreviewSummaryAndTotal(t *testing.T) {
	srv := backendtest.New(t)
	obs := &countingObserver{}
	c := backend.NewClient(srv.URL, 2*time.Second, backend.WithObserver(obs))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := c.UploadCSV(ctx, "policies.csv", bytes.NewReader(backendtest.CSV(25)))
	if err != nil {
		t.Fatalf("UploadCSV returned error: %v", err)
	}
	if res.TotalRows == nil || *res.TotalRows != 25 {
		t.Fatalf("expected total_rows 25, got %v", res.TotalRows)
	}
	if len(res.Preview) != 10 {
		t.Fatalf("expected 10 preview rows, got %d", len(res.Preview))
	}
	first := res.Preview[0]
	wantCols := []string{"RecordID", "Row", "ClaimProbability", "PremiumPrediction"}
	if strings.Join(first.Columns, ",") != strings.Join(wantCols, ",") {
		t.Fatalf("column order not preserved: %v", first.Columns)
	}
	if first.Text("RecordID") != "R001" {
		t.Fatalf("unexpected first record: %v", first.Values)
	}
	if v, ok := first.Get("PremiumPrediction"); !ok || v != nil {
		t.Fatalf("expected explicit null PremiumPrediction, got %v (present=%v)", v, ok)
	}
	if len(res.Summary.Numeric) != 2 || res.Summary.Numeric[0].Column != "TotalPremium" {
		t.Fatalf("unexpected numeric summary: %+v", res.Summary.Numeric)
	}
	if res.Summary.Numeric[1].Min != nil {
		t.Fatalf("expected null min to stay nil")
	}
	cats := res.Summary.Categorical
	if len(cats) != 2 || cats[0].Column != "Province" || cats[0].Top[0].Category != "Western Cape" {
		t.Fatalf("categorical order not preserved: %+v", cats)
	}
	if obs.outcomes[backend.EndpointPredictCSV+" "+backend.OutcomeOK] != 1 {
		t.Fatalf("expected one ok observation, got %v", obs.outcomes)
	}
}

func TestUploadCSVMissingTotalLeavesNil(t *testing.T) {
	srv := backendtest.New(t)
	srv.OmitTotal = true
	c := backend.NewClient(srv.URL, 2*time.Second)
	res, err := c.UploadCSV(context.Background(), "p.csv", bytes.NewReader(backendtest.CSV(3)))
	if err != nil {
		t.Fatalf("UploadCSV returned error: %v", err)
	}
	if res.TotalRows != nil {
		t.Fatalf("expected nil TotalRows, got %d", *res.TotalRows)
	}
}

func TestGetChunkReportsEchoedPage(t *testing.T) {
	srv := backendtest.New(t)
	srv.EchoPage = func(int) int { return 1 }
	c := backend.NewClient(srv.URL, 2*time.Second)
	ctx := context.Background()
	if _, err := c.UploadCSV(ctx, "p.csv", bytes.NewReader(backendtest.CSV(25))); err != nil {
		t.Fatalf("upload: %v", err)
	}
	res, err := c.GetChunk(ctx, 2)
	if err != nil {
		t.Fatalf("GetChunk returned error: %v", err)
	}
	if res.Page != 1 {
		t.Fatalf("expected echoed page 1, got %d", res.Page)
	}
	if res.Rows[0].Text("RecordID") != backendtest.RowID(10) {
		t.Fatalf("unexpected first row: %v", res.Rows[0].Values)
	}
}

func TestBackendErrorsAreClassified(t *testing.T) {
	srv := backendtest.New(t)
	c := backend.NewClient(srv.URL, 2*time.Second)
	ctx := context.Background()

	// no upload yet: backend answers 400 "No CSV uploaded"
	_, err := c.GetChunk(ctx, 0)
	var bad *backend.BadRequestError
	if !errors.As(err, &bad) {
		t.Fatalf("expected BadRequestError, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "No CSV uploaded") {
		t.Fatalf("expected backend message in error, got: %v", err)
	}

	srv.Fail(backend.EndpointPredictCSV, backendtest.Failure{Status: http.StatusInternalServerError, Message: "model exploded"})
	_, err = c.UploadCSV(ctx, "p.csv", bytes.NewReader(backendtest.CSV(1)))
	var se *backend.ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServerError, got %T: %v", err, err)
	}
	var apiErr *backend.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 500 || apiErr.RequestID == "" {
		t.Fatalf("expected APIError with status and request id, got %+v", apiErr)
	}
}

func TestUnreachableBackend(t *testing.T) {
	srv := backendtest.New(t)
	url := srv.URL
	srv.Close()
	c := backend.NewClient(url, time.Second)
	_, err := c.DatasetInfo(context.Background())
	var ue *backend.UnreachableError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnreachableError, got %T: %v", err, err)
	}
}

func TestPredictReturnsRawJSON(t *testing.T) {
	srv := backendtest.New(t)
	c := backend.NewClient(srv.URL, 2*time.Second)
	out, err := c.Predict(context.Background(), map[string]any{"make": "TOYOTA", "cubiccapacity": "1600"})
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("result is not json: %v", err)
	}
	if m["features"] != float64(2) {
		t.Fatalf("unexpected result: %s", out)
	}
	if _, err := c.Predict(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty features")
	}
}

func TestDatasetInfo(t *testing.T) {
	srv := backendtest.New(t)
	c := backend.NewClient(srv.URL, 2*time.Second)
	info, err := c.DatasetInfo(context.Background())
	if err != nil {
		t.Fatalf("DatasetInfo returned error: %v", err)
	}
	if info.Columns != 3 || len(info.ColumnNames) != 3 {
		t.Fatalf("unexpected info: %+v", info)
	}
}
