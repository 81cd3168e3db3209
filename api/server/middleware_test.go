package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/VictoriaMetrics/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/veridian-dash/veridian/api/common"
)

func staticRoute(pattern string) routeFunc {
	return func(*http.Request) string { return pattern }
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	do(t, ts, http.MethodGet, "/api/users", "")
	do(t, ts, http.MethodGet, "/api/metrics/Dogecoin", "")
	do(t, ts, http.MethodGet, "/api/nope", "")

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `veridian_http_requests_total{method="GET",route="GET /api/users",status="200"} 1`)
	assert.Contains(t, text, `veridian_http_requests_total{method="GET",route="GET /api/metrics/{platform}",status="400"} 1`)
	assert.Contains(t, text, `veridian_http_requests_total{method="GET",route="unmatched",status="404"} 1`)
	assert.Contains(t, text, `veridian_http_request_duration_seconds_bucket`)
	assert.Contains(t, text, `process_`)
}

func TestMetricsFoldUnknownMethods(t *testing.T) {
	_, ts := newTestServer(t)

	do(t, ts, "BREW", "/api/users", "")
	do(t, ts, "PROPFIND-X", "/api/users", "")

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `veridian_http_requests_total{method="other",route="unmatched",status="404"} 2`)
	assert.NotContains(t, text, `method="BREW"`)
	assert.NotContains(t, text, `method="PROPFIND-X"`)
	assert.Equal(t, "DELETE", methodLabel(http.MethodDelete))
}

func TestRecoverMiddleware(t *testing.T) {
	h := recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"internal server error"}`, rec.Body.String())
}

func TestRecoverAfterWrite(t *testing.T) {
	h := recoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeOk(w, "partial")
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":"partial"}`, rec.Body.String())
}

func TestResponseWriterKeepsFirstStatus(t *testing.T) {
	set := metrics.NewSet()
	h := metricsMiddleware(set, staticRoute("GET /x"), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, uint64(1), set.GetOrCreateCounter(`veridian_http_requests_total{method="GET",route="GET /x",status="418"}`).Get())
}

func newRecordingTracer(t *testing.T) (*tracetest.SpanRecorder, trace.Tracer) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(t.Context()) })
	return recorder, provider.Tracer("test")
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) attribute.Value {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}

func TestTracingMiddleware(t *testing.T) {
	recorder, tracer := newRecordingTracer(t)

	var handlerSpan trace.SpanContext
	h := tracingMiddleware(tracer, staticRoute("GET /api/users/{id}"), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerSpan = trace.SpanContextFromContext(r.Context())
		writeFail(w, http.StatusInternalServerError, "boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users/u1", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	h.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.Equal(t, "GET /api/users/{id}", span.Name())
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", span.SpanContext().TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", span.Parent().SpanID().String())
	assert.Equal(t, span.SpanContext().SpanID(), handlerSpan.SpanID())

	assert.Equal(t, "GET /api/users/{id}", spanAttr(span, "http.route").AsString())
	assert.Equal(t, int64(500), spanAttr(span, "http.response.status_code").AsInt64())
	assert.Equal(t, codes.Error, span.Status().Code)
}

func TestServerWithTracing(t *testing.T) {
	recorder, tracer := newRecordingTracer(t)

	srv, err := New(common.ServerConfig{PageSize: 20, LogLevel: "debug"}, newTestStore(t))
	require.NoError(t, err)
	srv.tracer = tracer
	srv.handler = srv.routes()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /api/chats", spans[0].Name())
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)
}
