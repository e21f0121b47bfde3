package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/shopdesk/internal/metrics"
)

func TestNilMetricsIsSafe(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.OrderCreated()
		m.ObserveDraw("ok")
		m.RealtimeMessage("changes")
		m.JobRun("invoices", true)
	})

	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	assert.NotNil(t, m.Middleware(next))
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/orders/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/"+id, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	expected := `
# HELP shopdesk_http_requests_total Total number of HTTP requests handled.
# TYPE shopdesk_http_requests_total counter
shopdesk_http_requests_total{method="GET",route="/orders/{id}",status="418"} 3
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "shopdesk_http_requests_total"))
}

func TestBusinessCounters(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.OrderCreated()
	m.OrderCreated()
	m.ObserveDraw("ok")
	m.ObserveDraw("error")
	m.ObserveDraw("ok")
	m.RealtimeMessage("couriers")
	m.JobRun("giveaway_draws", false)

	expected := `
# HELP shopdesk_giveaway_draws_total Giveaway draws by result.
# TYPE shopdesk_giveaway_draws_total counter
shopdesk_giveaway_draws_total{result="error"} 1
shopdesk_giveaway_draws_total{result="ok"} 2
# HELP shopdesk_orders_created_total Total number of orders placed.
# TYPE shopdesk_orders_created_total counter
shopdesk_orders_created_total 2
# HELP shopdesk_jobs_runs_total Scheduled job runs by job and outcome.
# TYPE shopdesk_jobs_runs_total counter
shopdesk_jobs_runs_total{job="giveaway_draws",success="false"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"shopdesk_giveaway_draws_total", "shopdesk_orders_created_total", "shopdesk_jobs_runs_total"))
}

func TestHandlerServesExposition(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.RealtimeMessage("changes")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `shopdesk_realtime_messages_total{stream="changes"} 1`)
}
