package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/requests/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/requests/{id}", "404"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/requests/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/requests/def", nil))

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/requests/{id}", "404"))
	assert.Equal(t, before+2, after)
}

func TestAuthEvent(t *testing.T) {
	c := authEventsTotal.WithLabelValues("login", "invalid_credentials")
	before := testutil.ToFloat64(c)
	AuthEvent("login", "invalid_credentials")
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestMiddlewareUnmatchedRoute(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {})

	c := httpRequestsTotal.WithLabelValues("GET", unmatchedRoute, "404")
	before := testutil.ToFloat64(c)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/wp-admin/setup.php", nil))
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestRateLimited(t *testing.T) {
	c := rateLimitedTotal.WithLabelValues("login")
	before := testutil.ToFloat64(c)
	RateLimited("login")
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}
