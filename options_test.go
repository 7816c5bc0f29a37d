package sdk

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/netreaper/sdk/job"
	"github.com/netreaper/sdk/relay"
)

func TestWithHistoryLimit(t *testing.T) {
	core := startedCore(t, WithMatrix(testMatrix()), WithHistoryLimit(2))

	results := make(chan job.Result, 3)
	off := core.OnResult(func(res job.Result) { results <- res })
	defer off()

	for i := 1; i <= 3; i++ {
		jobID, err := core.Run(noopSpec(fmt.Sprintf("job %d", i)))
		if err != nil {
			t.Fatalf("failed to run job %d: %v", i, err)
		}
		awaitResult(t, results, jobID)
	}

	history := core.History()
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Name != "job 2" || history[1].Name != "job 3" {
		t.Errorf("history = [%s, %s], want the newest two oldest first", history[0].Name, history[1].Name)
	}
}

func TestWithDeliverer(t *testing.T) {
	var deliveries atomic.Int32
	core := startedCore(t,
		WithMatrix(testMatrix()),
		WithDeliverer(func(fn func()) {
			deliveries.Add(1)
			fn()
		}),
	)

	results := make(chan job.Result, 1)
	off := core.OnResult(func(res job.Result) { results <- res })
	defer off()

	jobID, err := core.Run(noopSpec("delivered job"))
	if err != nil {
		t.Fatalf("failed to run job: %v", err)
	}
	res := awaitResult(t, results, jobID)

	if res.Status != job.StatusSuccess {
		t.Fatalf("job status = %s, want success", res.Status)
	}
	if deliveries.Load() == 0 {
		t.Error("deliverer was never invoked")
	}
}

func TestWithRelayOwnership(t *testing.T) {
	mr := miniredis.RunT(t)

	r, err := relay.New(relay.Options{URL: "redis://" + mr.Addr(), Logger: quietLogger()})
	if err != nil {
		t.Fatalf("failed to create relay: %v", err)
	}
	defer r.Close()

	core := newTestCore(t, WithMatrix(testMatrix()), WithRelay(r))
	ctx := context.Background()
	if err := core.Start(ctx); err != nil {
		t.Fatalf("failed to start core: %v", err)
	}
	if core.Relay() != r {
		t.Fatal("expected the provided relay to be attached")
	}

	results := make(chan job.Result, 1)
	off := core.OnResult(func(res job.Result) { results <- res })
	jobID, err := core.Run(noopSpec("mirrored job"))
	if err != nil {
		t.Fatalf("failed to run job: %v", err)
	}
	awaitResult(t, results, jobID)
	off()

	deadline := time.Now().Add(4 * time.Second)
	for {
		if items, err := mr.List(relay.DefaultResultList); err == nil && len(items) >= 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job result never reached the relay")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := core.Shutdown(ctx); err != nil {
		t.Fatalf("failed to shut down: %v", err)
	}

	// The caller owns the relay; Shutdown must leave it usable.
	if err := r.PublishResult(ctx, job.Result{JobID: "AFTER"}); err != nil {
		t.Errorf("caller-owned relay unusable after Shutdown: %v", err)
	}
}

func TestWithTracer(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
	)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	core := startedCore(t,
		WithMatrix(testMatrix()),
		WithTracer(provider.Tracer("netreaper-test")),
	)

	results := make(chan job.Result, 1)
	off := core.OnResult(func(res job.Result) { results <- res })
	defer off()

	jobID, err := core.Run(noopSpec("traced job"))
	if err != nil {
		t.Fatalf("failed to run job: %v", err)
	}
	awaitResult(t, results, jobID)

	var found bool
	for _, span := range exporter.GetSpans() {
		if span.Name == "job.execute" {
			found = true
		}
	}
	if !found {
		t.Error("no job.execute span was recorded")
	}
}

func TestWithMeter(t *testing.T) {
	core := startedCore(t,
		WithMatrix(testMatrix()),
		WithMeter(noop.NewMeterProvider().Meter("netreaper-test")),
	)

	results := make(chan job.Result, 1)
	off := core.OnResult(func(res job.Result) { results <- res })
	defer off()

	jobID, err := core.Run(noopSpec("metered job"))
	if err != nil {
		t.Fatalf("failed to run job: %v", err)
	}
	res := awaitResult(t, results, jobID)
	if res.Status != job.StatusSuccess {
		t.Errorf("job status = %s, want success", res.Status)
	}
}
