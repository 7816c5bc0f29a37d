package job

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// jobMetrics holds the OpenTelemetry instruments for the manager.
// Created once in NewManager and reused for every job.
type jobMetrics struct {
	// jobsTotal counts terminal job outcomes
	jobsTotal metric.Int64Counter

	// jobDuration records execution wall time in seconds
	jobDuration metric.Float64Histogram
}

func newJobMetrics(meter metric.Meter) (jobMetrics, error) {
	var metrics jobMetrics
	var err error

	metrics.jobsTotal, err = meter.Int64Counter(
		"netreaper.jobs.total",
		metric.WithDescription("Terminal job outcomes by status and category"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return jobMetrics{}, fmt.Errorf("create jobs counter: %w", err)
	}

	metrics.jobDuration, err = meter.Float64Histogram(
		"netreaper.jobs.duration",
		metric.WithDescription("Job execution wall time in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return jobMetrics{}, fmt.Errorf("create duration histogram: %w", err)
	}

	return metrics, nil
}

// startJobSpan opens the span covering a job's execute step.
func (m *Manager) startJobSpan(ctx context.Context, jobID string, spec Spec) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("job.id", jobID),
		attribute.String("job.name", spec.Name),
		attribute.String("job.category", spec.Category),
	}
	if spec.FeatureKey != "" {
		attrs = append(attrs, attribute.String("job.feature_key", spec.FeatureKey))
	}
	return m.tracer.Start(ctx, "job.execute", trace.WithAttributes(attrs...))
}

// endJobSpan closes the execute span with the terminal outcome.
func (m *Manager) endJobSpan(span trace.Span, result Result) {
	span.SetAttributes(
		attribute.String("job.status", string(result.Status)),
		attribute.Int("job.returncode", result.Returncode),
		attribute.Float64("job.elapsed_s", result.Elapsed),
	)
	if result.Status == StatusSuccess {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, result.Error)
		if result.Error != "" {
			span.RecordError(fmt.Errorf("%s", result.Error))
		}
	}
	span.End()
}

// recordOutcome records the metrics for one terminal result. Skips
// silently when instruments were not created.
func (m *Manager) recordOutcome(ctx context.Context, result Result) {
	if m.metrics.jobsTotal == nil || m.metrics.jobDuration == nil {
		return
	}
	opts := metric.WithAttributes(
		attribute.String("status", string(result.Status)),
		attribute.String("category", result.Category),
	)
	m.metrics.jobsTotal.Add(ctx, 1, opts)
	m.metrics.jobDuration.Record(ctx, result.Elapsed, opts)
}
