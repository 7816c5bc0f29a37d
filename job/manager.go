package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

var (
	// ErrInvalidSpec is returned when a submitted spec is missing a
	// required function or reuses a live job ID.
	ErrInvalidSpec = errors.New("invalid job spec")

	// ErrClosed is returned when work is submitted to a closed
	// manager.
	ErrClosed = errors.New("job manager closed")

	// ErrNotFound is returned when no result exists for a job ID.
	ErrNotFound = errors.New("job not found")
)

// blockedReturncode marks results synthesized without running the
// execute step.
const blockedReturncode = -1

// closeTimeout bounds how long Close waits for workers to drain after
// cancelling them.
const closeTimeout = 10 * time.Second

// Deliverer schedules completion work onto the context that owns UI
// state. The manager hands it one closure per executed job; the
// deliverer must run the closure exactly once. The default deliverer
// runs closures inline on the worker goroutine, which suits headless
// and test use; GUI hosts install one that posts to their event loop.
type Deliverer func(fn func())

// Manager accepts job specs, gates them against feature capabilities,
// runs their execute steps asynchronously, and emits lifecycle events
// plus exactly one terminal result per job. The zero value is not
// usable; construct with NewManager.
type Manager struct {
	mu           sync.RWMutex
	closed       bool
	pending      map[string]struct{}
	live         map[string]context.CancelFunc
	history      []Result
	byID         map[string]Result
	historyLimit int

	eventSubs  map[int]func(Event)
	resultSubs map[int]func(Result)
	nextSub    int

	gate    Gate
	deliver Deliverer
	logger  *slog.Logger
	tracer  trace.Tracer
	meter   metric.Meter
	metrics jobMetrics

	wg sync.WaitGroup
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithGate installs the feature gate consulted for specs that carry a
// FeatureKey. Without a gate, feature keys are not checked.
func WithGate(gate Gate) ManagerOption {
	return func(m *Manager) {
		m.gate = gate
	}
}

// WithLogger sets the manager's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithDeliverer sets the delivery context for parse and UI update
// steps.
func WithDeliverer(deliver Deliverer) ManagerOption {
	return func(m *Manager) {
		m.deliver = deliver
	}
}

// WithHistoryLimit caps the job history at the given number of
// results, evicting the oldest once exceeded. Zero means unbounded.
func WithHistoryLimit(limit int) ManagerOption {
	return func(m *Manager) {
		m.historyLimit = limit
	}
}

// WithTracer sets the tracer used to span job executions. Defaults to
// a no-op tracer.
func WithTracer(tracer trace.Tracer) ManagerOption {
	return func(m *Manager) {
		m.tracer = tracer
	}
}

// WithMeter sets the meter used for job outcome metrics. Defaults to a
// no-op meter.
func WithMeter(meter metric.Meter) ManagerOption {
	return func(m *Manager) {
		m.meter = meter
	}
}

// NewManager creates a job manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		pending:    make(map[string]struct{}),
		live:       make(map[string]context.CancelFunc),
		byID:       make(map[string]Result),
		eventSubs:  make(map[int]func(Event)),
		resultSubs: make(map[int]func(Result)),
		deliver:    func(fn func()) { fn() },
		logger:     slog.Default(),
		tracer:     tracenoop.NewTracerProvider().Tracer("netreaper/job"),
		meter:      metricnoop.NewMeterProvider().Meter("netreaper/job"),
	}
	for _, opt := range opts {
		opt(m)
	}

	var err error
	m.metrics, err = newJobMetrics(m.meter)
	if err != nil {
		m.logger.Warn("job metrics unavailable", "error", err)
	}
	return m
}

// NewJobID returns a short uppercase job identifier derived from a
// random UUID.
func NewJobID() string {
	return strings.ToUpper(uuid.NewString()[:8])
}

// Run submits a spec and returns its job ID immediately; the work runs
// on its own goroutine. The returned ID is either spec.JobID or a
// generated one.
//
// The lifecycle is: JOB_START always fires first. A spec whose
// FeatureKey resolves to disabled stops with BLOCKED_BY_CAPABILITY and
// a blocked result; a failing precheck stops with PRECHECK_FAIL and a
// blocked result. In both cases the execute step is never invoked.
// Otherwise EXEC_START fires, the execute step runs on a worker, and
// the job finishes with JOB_END or JOB_FAIL plus an emitted result.
// Every submitted job lands in the history exactly once.
func (m *Manager) Run(spec Spec) (string, error) {
	if err := validateSpec(spec); err != nil {
		return "", err
	}

	jobID := spec.JobID
	if jobID == "" {
		jobID = NewJobID()
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrClosed
	}
	if _, dup := m.pending[jobID]; dup {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: job id %q already submitted", ErrInvalidSpec, jobID)
	}
	if _, dup := m.byID[jobID]; dup {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: job id %q already in history", ErrInvalidSpec, jobID)
	}
	m.pending[jobID] = struct{}{}
	m.mu.Unlock()

	m.emitEvent(Event{JobID: jobID, Type: EventJobStart, Detail: map[string]any{
		"name":     spec.Name,
		"category": spec.Category,
	}})

	if spec.FeatureKey != "" && m.gate != nil {
		enabled, reason, guidance := m.gate.Status(spec.FeatureKey)
		if !enabled {
			m.emitEvent(Event{JobID: jobID, Type: EventBlockedByCapability, Detail: map[string]any{
				"feature_key": spec.FeatureKey,
				"reason":      reason,
				"guidance":    guidance,
			}})
			m.finishBlocked(jobID, spec, reason)
			return jobID, nil
		}
	}

	if spec.Precheck != nil {
		ok, reason, guidance := spec.Precheck()
		if !ok {
			m.emitEvent(Event{JobID: jobID, Type: EventPrecheckFail, Detail: map[string]any{
				"reason":   reason,
				"guidance": guidance,
			}})
			m.finishBlocked(jobID, spec, reason)
			return jobID, nil
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.live[jobID] = cancel
	m.mu.Unlock()

	m.emitEvent(Event{JobID: jobID, Type: EventExecStart, Detail: map[string]any{}})

	m.wg.Add(1)
	go m.work(ctx, cancel, jobID, spec)
	return jobID, nil
}

// work runs the execute step and hands completion to the deliverer.
func (m *Manager) work(ctx context.Context, cancel context.CancelFunc, jobID string, spec Spec) {
	defer m.wg.Done()
	defer cancel()

	ctx, span := m.startJobSpan(ctx, jobID, spec)

	start := time.Now()
	execResult := m.runExecute(ctx, spec)

	m.deliver(func() {
		m.complete(ctx, span, jobID, spec, execResult, start)
	})
}

// complete interprets the execution result, notifies the UI, and
// records the terminal outcome. It runs on the delivery context.
func (m *Manager) complete(ctx context.Context, span trace.Span, jobID string, spec Spec, execResult ExecutionResult, start time.Time) {
	payload, parseErr := m.runParse(spec, execResult)

	// parse output must carry a summary map
	var summary map[string]any
	if parseErr == nil {
		var ok bool
		summary, ok = payload["summary"].(map[string]any)
		if !ok {
			parseErr = errors.New("parse result missing summary key")
			m.logger.Error("job parse contract violated", "job_name", spec.Name, "error", parseErr)
		}
	}
	if summary == nil {
		summary = map[string]any{}
	}

	var uiErr error
	if parseErr == nil {
		uiErr = m.runUIUpdate(spec, payload)
	}

	elapsed := execResult.Elapsed
	if elapsed <= 0 {
		elapsed = time.Since(start).Seconds()
	}

	result := Result{
		JobID:      jobID,
		Name:       spec.Name,
		Category:   spec.Category,
		Returncode: execResult.Returncode,
		Elapsed:    elapsed,
		Summary:    summary,
		Raw:        rawOutput(execResult),
	}
	switch {
	case parseErr != nil:
		result.Status = StatusFailed
		result.Error = parseErr.Error()
	case uiErr != nil:
		result.Status = StatusFailed
		result.Error = uiErr.Error()
	case execResult.Returncode != 0 || execResult.Error != "":
		result.Status = StatusFailed
		result.Error = failureMessage(execResult)
	default:
		result.Status = StatusSuccess
	}

	eventType := EventJobEnd
	if result.Status != StatusSuccess {
		eventType = EventJobFail
	}

	m.endJobSpan(span, result)
	m.emitEvent(Event{JobID: jobID, Type: eventType, Detail: map[string]any{"result": result}})
	m.recordOutcome(ctx, result)
	m.appendResult(result)
	m.emitResult(result)
}

// runExecute invokes the execute step, converting a panic into a
// failed execution result.
func (m *Manager) runExecute(ctx context.Context, spec Spec) (result ExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("job execute panicked", "job_name", spec.Name, "panic", r)
			result = ExecutionResult{
				Returncode: -1,
				Error:      fmt.Sprintf("execute panicked: %v", r),
			}
		}
	}()
	return spec.Execute(ctx)
}

// runParse invokes the parse step, converting a panic into an error.
func (m *Manager) runParse(spec Spec, execResult ExecutionResult) (payload map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("job parse panicked", "job_name", spec.Name, "panic", r)
			payload = nil
			err = fmt.Errorf("parse panicked: %v", r)
		}
	}()
	return spec.Parse(execResult), nil
}

// runUIUpdate invokes the UI update step, converting a panic into an
// error.
func (m *Manager) runUIUpdate(spec Spec, payload map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("job ui update panicked", "job_name", spec.Name, "panic", r)
			err = fmt.Errorf("ui update panicked: %v", r)
		}
	}()
	spec.UIUpdate(payload)
	return nil
}

// finishBlocked records the terminal result for a job stopped before
// its execute step.
func (m *Manager) finishBlocked(jobID string, spec Spec, reason string) {
	result := Result{
		JobID:      jobID,
		Name:       spec.Name,
		Category:   spec.Category,
		Status:     StatusBlocked,
		Returncode: blockedReturncode,
		Summary:    map[string]any{},
		Raw:        RawOutput{Stdout: []string{}, Stderr: []string{}},
		Error:      reason,
	}
	m.recordOutcome(context.Background(), result)
	m.appendResult(result)
	m.emitResult(result)
}

// appendResult retires the job from the live set and appends its
// result to history, evicting the oldest entry past the history limit.
func (m *Manager) appendResult(result Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.live, result.JobID)
	delete(m.pending, result.JobID)
	m.history = append(m.history, result)
	if m.historyLimit > 0 && len(m.history) > m.historyLimit {
		evicted := m.history[0]
		m.history = append([]Result(nil), m.history[1:]...)
		delete(m.byID, evicted.JobID)
	}
	m.byID[result.JobID] = result
}

// OnEvent registers a handler for lifecycle events and returns a
// function that unregisters it. Handlers run on whatever goroutine
// emits the event, so they must be fast and must not block.
func (m *Manager) OnEvent(handler func(Event)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.eventSubs[id] = handler
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.eventSubs, id)
		m.mu.Unlock()
	}
}

// OnResult registers a handler for terminal results and returns a
// function that unregisters it. The same delivery caveats as OnEvent
// apply.
func (m *Manager) OnResult(handler func(Result)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.resultSubs[id] = handler
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.resultSubs, id)
		m.mu.Unlock()
	}
}

func (m *Manager) emitEvent(event Event) {
	m.mu.RLock()
	handlers := make([]func(Event), 0, len(m.eventSubs))
	for _, handler := range m.eventSubs {
		handlers = append(handlers, handler)
	}
	m.mu.RUnlock()

	m.logger.Debug("job event", "job_id", event.JobID, "type", string(event.Type))
	for _, handler := range handlers {
		handler(event)
	}
}

func (m *Manager) emitResult(result Result) {
	m.mu.RLock()
	handlers := make([]func(Result), 0, len(m.resultSubs))
	for _, handler := range m.resultSubs {
		handlers = append(handlers, handler)
	}
	m.mu.RUnlock()

	m.logger.Debug("job result", "job_id", result.JobID, "status", string(result.Status))
	for _, handler := range handlers {
		handler(result)
	}
}

// History returns a copy of the job history, oldest first.
func (m *Manager) History() []Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Result(nil), m.history...)
}

// ResultByID returns the terminal result recorded for a job. Returns
// ErrNotFound for unknown IDs and for jobs still in flight.
func (m *Manager) ResultByID(jobID string) (Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result, ok := m.byID[jobID]
	if !ok {
		return Result{}, fmt.Errorf("job %q: %w", jobID, ErrNotFound)
	}
	return result, nil
}

// ActiveJobs returns the IDs of jobs whose execute step is currently
// running, sorted.
func (m *Manager) ActiveJobs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.live))
	for id := range m.live {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StopAll cancels every in-flight execute step and clears the live-job
// bookkeeping, so no job is considered active afterwards. Cancelled
// executions that shell out get the two-phase termination sequence
// from the exec layer: a graceful signal first, then a forced kill
// after the grace period. Each cancelled job still resolves to a
// terminal JOB_FAIL result; StopAll never leaves a job dangling.
func (m *Manager) StopAll() {
	m.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(m.live))
	for _, cancel := range m.live {
		cancels = append(cancels, cancel)
	}
	m.live = make(map[string]context.CancelFunc)
	m.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	if len(cancels) > 0 {
		m.logger.Info("stopped active jobs", "count", len(cancels))
	}
}

// Close stops accepting new jobs, cancels in-flight ones, and waits
// for workers to drain. Returns an error if workers are still running
// after the drain timeout.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.StopAll()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(closeTimeout):
		return fmt.Errorf("jobs still running after %v", closeTimeout)
	}
}

func validateSpec(spec Spec) error {
	var missing []string
	if spec.Execute == nil {
		missing = append(missing, "execute")
	}
	if spec.Parse == nil {
		missing = append(missing, "parse")
	}
	if spec.UIUpdate == nil {
		missing = append(missing, "ui update")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidSpec, strings.Join(missing, ", "))
	}
	return nil
}

// rawOutput copies captured output into the result, normalizing nil
// slices so serialized results always show both fields.
func rawOutput(execResult ExecutionResult) RawOutput {
	raw := RawOutput{Stdout: execResult.Stdout, Stderr: execResult.Stderr}
	if raw.Stdout == nil {
		raw.Stdout = []string{}
	}
	if raw.Stderr == nil {
		raw.Stderr = []string{}
	}
	return raw
}

func failureMessage(execResult ExecutionResult) string {
	if execResult.Error != "" {
		return execResult.Error
	}
	return fmt.Sprintf("exit code %d", execResult.Returncode)
}
