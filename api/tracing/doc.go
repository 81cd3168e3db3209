// Package tracing configures OpenTelemetry from the standard OTEL_* environment
// variables (OTEL_EXPORTER_OTLP_ENDPOINT, _PROTOCOL grpc|http, _HEADERS, _TIMEOUT,
// _COMPRESSION, _INSECURE, OTEL_SERVICE_NAME, OTEL_SDK_DISABLED).
//
// The server wraps every request in a span named after its route pattern. Without an
// endpoint the provider is a no-op and the middleware costs next to nothing.
package tracing
