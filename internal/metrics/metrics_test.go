package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KaramelBytes/riskdash/internal/backend"
	"github.com/KaramelBytes/riskdash/internal/dashboard"
	"github.com/KaramelBytes/riskdash/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ backend.Observer       = (*metrics.Metrics)(nil)
	_ dashboard.FlowObserver = (*metrics.Metrics)(nil)
)

func TestObserveRequestAndFlow(t *testing.T) {
	m := metrics.New()
	m.ObserveRequest(backend.EndpointGetChunk, backend.OutcomeOK, 30*time.Millisecond)
	m.ObserveRequest(backend.EndpointGetChunk, backend.OutcomeOK, 10*time.Millisecond)
	m.ObserveRequest(backend.EndpointPredictCSV, backend.OutcomeHTTPError, time.Second)
	m.ObserveFlow(dashboard.FlowPage, dashboard.OutcomeSuperseded)

	n, err := testutil.GatherAndCount(m.Registry(), "riskdash_backend_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = testutil.GatherAndCount(m.Registry(), "riskdash_flow_outcomes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `riskdash_backend_requests_total{endpoint="/api/get_chunk",outcome="ok"} 2`)
	assert.Contains(t, string(body), `riskdash_flow_outcomes_total{flow="page",outcome="superseded"} 1`)
	assert.Contains(t, string(body), "riskdash_backend_request_duration_seconds_bucket")
}
