// Package telemetry assembles the OpenTelemetry providers the SDK
// instruments against.
//
// The job manager spans every execution and counts outcomes through
// the OTel API, which is a no-op until someone installs real
// providers. This package is that someone: it builds a trace provider
// around a caller-supplied span exporter and hands out tracers and
// meters for the manager options. Embedders that already run their own
// OTel setup can skip this package entirely and pass their tracer and
// meter straight to the job manager.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// DefaultServiceName identifies this SDK in exported telemetry when no
// name is configured.
const DefaultServiceName = "netreaper"

// shutdownTimeout bounds how long Shutdown waits for span export to
// flush.
const shutdownTimeout = 5 * time.Second

// Options configures the providers.
type Options struct {
	// ServiceName and ServiceVersion label the telemetry resource.
	// ServiceName defaults to DefaultServiceName.
	ServiceName    string
	ServiceVersion string

	// Exporter receives finished spans. Without one the provider
	// still creates real spans but exports nothing.
	Exporter sdktrace.SpanExporter

	// Immediate exports each span as it ends instead of batching.
	// Diagnostics sessions use this so spans survive abrupt exits.
	Immediate bool

	// Sampler decides which spans are recorded. Defaults to sampling
	// everything.
	Sampler sdktrace.Sampler

	// MeterProvider supplies meters. Defaults to the global provider,
	// which is a no-op unless the embedder installed one.
	MeterProvider metric.MeterProvider

	// Logger receives setup diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Provider owns the configured tracer provider and the meter source.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  metric.MeterProvider
}

// New builds a provider from the options.
func New(ctx context.Context, opts Options) (*Provider, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	serviceName := opts.ServiceName
	if serviceName == "" {
		serviceName = DefaultServiceName
	}
	sampler := opts.Sampler
	if sampler == nil {
		sampler = sdktrace.AlwaysSample()
	}

	attrs := []attribute.KeyValue{semconv.ServiceName(serviceName)}
	if opts.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(opts.ServiceVersion))
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		logger.Warn("failed to create resource, using default", "error", err)
		res = resource.Default()
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	}
	if opts.Exporter != nil {
		if opts.Immediate {
			tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(opts.Exporter)))
		} else {
			tpOpts = append(tpOpts, sdktrace.WithBatcher(opts.Exporter))
		}
	}

	meterProvider := opts.MeterProvider
	if meterProvider == nil {
		meterProvider = otel.GetMeterProvider()
	}

	return &Provider{
		tracerProvider: sdktrace.NewTracerProvider(tpOpts...),
		meterProvider:  meterProvider,
	}, nil
}

// Tracer returns a named tracer from the configured trace provider.
func (p *Provider) Tracer(name string) trace.Tracer {
	return p.tracerProvider.Tracer(name)
}

// Meter returns a named meter from the configured meter provider.
func (p *Provider) Meter(name string) metric.Meter {
	return p.meterProvider.Meter(name)
}

// Register installs the trace provider as the process-global OTel
// provider, so libraries that trace through the global API land in the
// same export pipeline.
func (p *Provider) Register() {
	otel.SetTracerProvider(p.tracerProvider)
}

// Shutdown flushes pending spans and releases the trace provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down tracer provider: %w", err)
	}
	return nil
}
