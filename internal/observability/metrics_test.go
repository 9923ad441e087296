package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsHandlerExposesPrometheusMetrics(t *testing.T) {
	body := scrape(t, NewMetrics())
	if !strings.Contains(body, "go_goroutines") {
		t.Fatalf("expected runtime collectors, got: %s", body)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, `roleboard_http_requests_total{code="418",route="/test"} 1`) {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	if !strings.Contains(body, `roleboard_http_request_duration_seconds_bucket{route="/test"`) {
		t.Fatalf("expected duration histogram to be present, got: %s", body)
	}
}

func TestGateDecisionsAndUpstreamDurations(t *testing.T) {
	metrics := NewMetrics()
	metrics.RecordGateDecision("admin_protected", "redirect")
	metrics.RecordGateDecision("admin_protected", "redirect")
	metrics.ObserveUpstream("login", http.StatusOK, 20*time.Millisecond)
	metrics.ObserveUpstream("login", 0, time.Second)

	body := scrape(t, metrics)
	if !strings.Contains(body, `roleboard_gate_decisions_total{category="admin_protected",outcome="redirect"} 2`) {
		t.Fatalf("expected gate decisions, got: %s", body)
	}
	if !strings.Contains(body, `roleboard_upstream_request_duration_seconds_count{code="200",operation="login"} 1`) {
		t.Fatalf("expected upstream histogram, got: %s", body)
	}
	if !strings.Contains(body, `roleboard_upstream_request_duration_seconds_count{code="error",operation="login"} 1`) {
		t.Fatalf("expected transport failures under code=error, got: %s", body)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordGateDecision("root", "redirect")
	m.ObserveUpstream("login", 200, time.Millisecond)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from nil metrics, got %d", rr.Code)
	}
}

func TestMetricsMiddlewareUnroutedRequest(t *testing.T) {
	metrics := NewMetrics()
	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	body := scrape(t, metrics)
	if !strings.Contains(body, `roleboard_http_requests_total{code="200",route="unmatched"} 1`) {
		t.Fatalf("expected implicit 200 under route=unmatched, got: %s", body)
	}
}
