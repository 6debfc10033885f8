package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jw6ventures/volunteerportal/internal/auth"
	"github.com/jw6ventures/volunteerportal/internal/config"
	"github.com/jw6ventures/volunteerportal/internal/store"
)

type healthFunc func(context.Context) error

func (f healthFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func testRouter(health HealthChecker, prometheus bool) http.Handler {
	cfg := &config.Config{BaseURL: "http://localhost:8080", PrometheusEnabled: prometheus}
	cfg.Session.Secret = strings.Repeat("r", 32)
	authService := auth.NewService(cfg, nil, nil, auth.NewSessionManager(cfg), nil, nil)
	return newRouter(cfg, &store.Store{}, health, authService)
}

func TestHealthEndpoints(t *testing.T) {
	ok := testRouter(healthFunc(func(context.Context) error { return nil }), false)

	rec := httptest.NewRecorder()
	ok.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	ok.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	down := testRouter(healthFunc(func(context.Context) error { return errors.New("db down") }), false)
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpointToggle(t *testing.T) {
	healthy := healthFunc(func(context.Context) error { return nil })

	rec := httptest.NewRecorder()
	testRouter(healthy, false).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.NotEqual(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	testRouter(healthy, true).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIRequiresAuth(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(healthFunc(func(context.Context) error { return nil }), false).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/individual-events", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUIRedirectsToLogin(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(healthFunc(func(context.Context) error { return nil }), false).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/individual-events", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/auth/login")
}

func TestOverrideMethod(t *testing.T) {
	var got string
	h := overrideMethod(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { got = r.Method }))

	req := httptest.NewRequest(http.MethodPost, "/individual-events/3", strings.NewReader("_method=delete"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, http.MethodDelete, got)

	req = httptest.NewRequest(http.MethodPost, "/api/individual-events?_method=DELETE", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, http.MethodPost, got)
}
