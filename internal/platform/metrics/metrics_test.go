package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_AssistantCounters(t *testing.T) {
	c := New()
	c.AssistantExchange(OutcomeCompleted)
	c.AssistantExchange(OutcomeFailed)
	c.AssistantExchange(OutcomeFailed)
	c.AssistantFragment()
	c.AssistantStale()

	if got := testutil.ToFloat64(c.assistantRequests.WithLabelValues(OutcomeFailed)); got != 2 {
		t.Errorf("expected 2 failed exchanges, got %v", got)
	}
	if got := testutil.ToFloat64(c.assistantFragments); got != 1 {
		t.Errorf("expected 1 fragment, got %v", got)
	}
	if got := testutil.ToFloat64(c.assistantStaleFragments); got != 1 {
		t.Errorf("expected 1 stale, got %v", got)
	}
}

func TestCollector_SessionGauge(t *testing.T) {
	c := New()
	c.AssistantSessionOpened()
	c.AssistantSessionOpened()
	c.AssistantSessionClosed()
	if got := testutil.ToFloat64(c.assistantSessions); got != 1 {
		t.Errorf("expected 1 open session, got %v", got)
	}
}

func TestCollector_IndependentRegistries(t *testing.T) {
	// Building two collectors must not panic on duplicate registration.
	a := New()
	b := New()
	a.PatientRegistered("tenant-123", "OPD")
	if got := testutil.ToFloat64(b.patientRegistrations.WithLabelValues("tenant-123", "OPD")); got != 0 {
		t.Errorf("expected collectors to be independent, got %v", got)
	}
}

func TestCollector_Middleware(t *testing.T) {
	c := New()
	e := echo.New()
	e.Use(c.Middleware())
	e.GET("/api/v1/patients/:id", func(ctx echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/p-1", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	got := testutil.ToFloat64(c.httpRequests.WithLabelValues(http.MethodGet, "/api/v1/patients/:id", "404"))
	if got != 1 {
		t.Errorf("expected one 404 sample on route pattern, got %v", got)
	}
}

func TestCollector_Middleware_PassesError(t *testing.T) {
	c := New()
	e := echo.New()
	want := errors.New("boom")
	h := c.Middleware()(func(ctx echo.Context) error { return want })

	ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if err := h(ctx); err != want {
		t.Errorf("expected error passed through, got %v", err)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := New()
	c.RateLimited("assistant")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `hms_rate_limited_total{limiter="assistant"} 1`) {
		t.Errorf("expected rate limit sample in output")
	}
}
