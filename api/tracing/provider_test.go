package tracing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoEndpointIsNoOp(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_SDK_DISABLED", "")

	p, err := NewProviderFromEnv(context.Background())
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NotNil(t, p.Tracer("test"))
	assert.NotNil(t, p.TracerProvider())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestDisabled(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	t.Setenv("OTEL_SDK_DISABLED", "TRUE")

	p, err := NewProviderFromEnv(context.Background())
	require.NoError(t, err)
	assert.False(t, p.Enabled())
}

func TestHTTPExporter(t *testing.T) {
	t.Setenv("OTEL_SDK_DISABLED", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "http/protobuf")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")

	// the http exporter connects lazily, creating it needs no collector
	p, err := NewProviderFromEnv(context.Background())
	require.NoError(t, err)
	assert.True(t, p.Enabled())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = p.Shutdown(ctx)
}

func TestUnsupportedProtocol(t *testing.T) {
	t.Setenv("OTEL_SDK_DISABLED", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "carrier-pigeon")

	_, err := NewProviderFromEnv(context.Background())
	assert.Error(t, err)
}

func TestParseHelpers(t *testing.T) {
	assert.Equal(t, map[string]string{"a": "1", "b": "x=y"}, parseHeaders(" a = 1 ,b=x=y,,=skip"))
	assert.Equal(t, 1500*time.Millisecond, parseTimeout("1500", time.Second))
	assert.Equal(t, 2*time.Second, parseTimeout("2s", time.Second))
	assert.Equal(t, time.Second, parseTimeout("soon", time.Second))
	assert.True(t, isInsecure("", " TRUE "))
	assert.False(t, isInsecure("false"))
}
