package sdk

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/netreaper/sdk/feature"
	"github.com/netreaper/sdk/job"
	"github.com/netreaper/sdk/relay"
)

// Option configures the Core.
type Option func(*coreConfig)

// coreConfig holds configuration for the Core instance.
type coreConfig struct {
	configPath   string
	logger       *slog.Logger
	tracer       trace.Tracer
	meter        metric.Meter
	matrix       *feature.Matrix
	overlayDefs  []feature.Definition
	deliverer    job.Deliverer
	historyLimit *int
	relay        *relay.Relay
}

// WithConfig sets the configuration file path for the core.
// The path may name a reaper.yaml file directly or a directory
// containing one. Settings from the file supply defaults for the
// logger level, job history, feature overlays, and the event relay.
func WithConfig(path string) Option {
	return func(c *coreConfig) {
		c.configPath = path
	}
}

// WithLogger sets a custom logger for the core.
// If not provided, a default JSON logger writing to stderr is created
// at the level named by the configuration file.
func WithLogger(logger *slog.Logger) Option {
	return func(c *coreConfig) {
		c.logger = logger
	}
}

// WithTracer sets an OpenTelemetry tracer for job execution spans.
// If not provided, spans are not recorded.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *coreConfig) {
		c.tracer = tracer
	}
}

// WithMeter sets an OpenTelemetry meter for job outcome metrics.
// If not provided, metrics are not recorded.
func WithMeter(meter metric.Meter) Option {
	return func(c *coreConfig) {
		c.meter = meter
	}
}

// WithMatrix replaces the built-in feature matrix entirely.
// Overlays from the configuration file and WithFeatureOverlay still
// merge on top of the provided matrix.
func WithMatrix(matrix *feature.Matrix) Option {
	return func(c *coreConfig) {
		c.matrix = matrix
	}
}

// WithFeatureOverlay merges the given definitions over the feature
// matrix. Definitions with a key already present replace the built-in
// entry; new keys extend the matrix.
func WithFeatureOverlay(defs ...feature.Definition) Option {
	return func(c *coreConfig) {
		c.overlayDefs = append(c.overlayDefs, defs...)
	}
}

// WithHistoryLimit caps the job history at the given number of
// results. Takes precedence over the configuration file. Zero means
// unbounded.
func WithHistoryLimit(limit int) Option {
	return func(c *coreConfig) {
		c.historyLimit = &limit
	}
}

// WithDeliverer routes job parse and UI update callbacks through the
// given delivery function, typically a UI main-thread dispatcher.
// If not provided, callbacks run inline on the job worker goroutine.
func WithDeliverer(deliver job.Deliverer) Option {
	return func(c *coreConfig) {
		c.deliverer = deliver
	}
}

// WithRelay attaches a pre-built event relay to the core. The relay
// starts mirroring job traffic when Start is called. The caller
// retains ownership and must close the relay itself; Shutdown only
// detaches it.
func WithRelay(r *relay.Relay) Option {
	return func(c *coreConfig) {
		c.relay = r
	}
}
