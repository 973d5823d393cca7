package observe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/keybeam/keybeam/internal/health"
)

// newDiagnosticsHandler builds the diagnostics mux the way main does: health
// routes registered on a ServeMux, wrapped in the middleware. probe backs the
// single "history" readiness check. These tests swap the global tracer
// provider, so none of them run in parallel.
func newDiagnosticsHandler(t *testing.T, probe func(context.Context) error) (http.Handler, *sdkmetric.ManualReader, *tracetest.SpanRecorder) {
	t.Helper()

	m, reader := newTestMetrics(t)
	rec := withTestTracer(t)

	mux := http.NewServeMux()
	health.New(health.Check{Name: "history", Probe: probe}).Register(mux)

	return Middleware(m)(mux), reader, rec
}

func healthyProbe(context.Context) error { return nil }

func TestMiddleware_HealthzCarriesCorrelationID(t *testing.T) {
	handler, _, _ := newDiagnosticsHandler(t, healthyProbe)

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", w.Code)
	}
	cid := w.Header().Get("X-Correlation-ID")
	if len(cid) != 32 || strings.Trim(cid, "0123456789abcdef") != "" {
		t.Errorf("X-Correlation-ID = %q, want 32 hex chars", cid)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("healthz body = %q, want status ok", w.Body.String())
	}
}

func TestMiddleware_RecordsHealthzDuration(t *testing.T) {
	handler, reader, _ := newDiagnosticsHandler(t, healthyProbe)

	req := httptest.NewRequest("GET", "/healthz", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	rm := collect(t, reader)
	met := findMetric(rm, "keybeam.http.request.duration")
	if met == nil {
		t.Fatal("request duration metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("request duration metric is not a histogram")
	}
	if len(hist.DataPoints) != 1 {
		t.Fatalf("data points = %d, want 1", len(hist.DataPoints))
	}

	dp := hist.DataPoints[0]
	if dp.Count != 1 {
		t.Errorf("sample count = %d, want 1", dp.Count)
	}
	gotMethod, gotPath := "", ""
	for _, kv := range dp.Attributes.ToSlice() {
		switch string(kv.Key) {
		case "method":
			gotMethod = kv.Value.AsString()
		case "path":
			gotPath = kv.Value.AsString()
		}
	}
	if gotMethod != "GET" || gotPath != "/healthz" {
		t.Errorf("attributes = (%q, %q), want (GET, /healthz)", gotMethod, gotPath)
	}
}

func TestMiddleware_ReadinessFailureOnSpan(t *testing.T) {
	handler, _, rec := newDiagnosticsHandler(t, func(context.Context) error {
		return errors.New("connection refused")
	})

	req := httptest.NewRequest("GET", "/readyz", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d, want 503", w.Code)
	}
	if !strings.Contains(w.Body.String(), "connection refused") {
		t.Errorf("readyz body = %q, want the probe error", w.Body.String())
	}

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if got := spans[0].Name(); got != "HTTP GET /readyz" {
		t.Errorf("span name = %q, want %q", got, "HTTP GET /readyz")
	}
	found := false
	for _, a := range spans[0].Attributes() {
		if string(a.Key) == "http.response.status_code" && a.Value.AsInt64() == 503 {
			found = true
		}
	}
	if !found {
		t.Error("span missing http.response.status_code=503")
	}
}

func TestMiddleware_PropagatesTraceparent(t *testing.T) {
	handler, _, rec := newDiagnosticsHandler(t, healthyProbe)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("X-Correlation-ID"); got != traceID {
		t.Errorf("X-Correlation-ID = %q, want the incoming trace ID %q", got, traceID)
	}
	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if got := spans[0].SpanContext().TraceID().String(); got != traceID {
		t.Errorf("span trace ID = %q, want %q", got, traceID)
	}
}
