package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNew_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "mailevents")

	m.EventsProcessed.WithLabelValues("open", OutcomeOK).Inc()
	m.Compensations.WithLabelValues(OutcomeFailed).Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsProcessed.WithLabelValues("open", OutcomeOK)))
	n, err := testutil.GatherAndCount(reg, "mailevents_events_processed_total", "mailevents_shortlink_compensations_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, n)

	// A second set on a fresh registry must not panic on duplicate registration.
	_ = New(prometheus.NewRegistry(), "mailevents")
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := NewNop()
	r := chi.NewRouter()
	r.Use(Middleware(m))
	r.Get("/sg-reports/{number}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sg-reports/7", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/sg-reports/{number}", "404")))
}
