package telemetry

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewExportsSpans(t *testing.T) {
	ctx := context.Background()
	exporter := tracetest.NewInMemoryExporter()

	p, err := New(ctx, Options{
		ServiceName:    "netreaper-test",
		ServiceVersion: "0.0.1",
		Exporter:       exporter,
		Logger:         quietLogger(),
	})
	require.NoError(t, err)

	_, span := p.Tracer("test").Start(ctx, "probe")
	span.End()

	require.NoError(t, p.Shutdown(ctx))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "probe", spans[0].Name)

	attrs := spans[0].Resource.Attributes()
	names := map[string]string{}
	for _, attr := range attrs {
		names[string(attr.Key)] = attr.Value.AsString()
	}
	assert.Equal(t, "netreaper-test", names[string(semconv.ServiceNameKey)])
	assert.Equal(t, "0.0.1", names[string(semconv.ServiceVersionKey)])
}

func TestNewImmediateExport(t *testing.T) {
	ctx := context.Background()
	exporter := tracetest.NewInMemoryExporter()

	p, err := New(ctx, Options{
		Exporter:  exporter,
		Immediate: true,
		Logger:    quietLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(ctx) })

	_, span := p.Tracer("test").Start(ctx, "instant")
	span.End()

	// SimpleSpanProcessor exports on End, no flush needed.
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "instant", spans[0].Name)
}

func TestNewDefaults(t *testing.T) {
	ctx := context.Background()

	p, err := New(ctx, Options{Logger: quietLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(ctx) })

	assert.NotNil(t, p.Tracer("test"))
	assert.NotNil(t, p.Meter("test"))

	// No exporter configured: spans record without error and go nowhere.
	_, span := p.Tracer("test").Start(ctx, "noop")
	span.End()
}

func TestRegisterInstallsGlobal(t *testing.T) {
	ctx := context.Background()
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	p, err := New(ctx, Options{Logger: quietLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(ctx) })

	p.Register()
	assert.Same(t, p.tracerProvider, otel.GetTracerProvider())
}
