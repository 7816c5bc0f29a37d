// Package job runs units of work asynchronously and turns every
// outcome, success, failure, or precondition rejection, into an ordered
// stream of lifecycle events plus one terminal result.
//
// Callers describe work as a Spec: an optional precheck, a required
// execute step, a required parse step, and a required UI update step.
// The Manager gates specs against feature capabilities, runs the
// execute step off the submitting goroutine, and guarantees that every
// submitted job reaches exactly one terminal outcome that is recorded
// in history. Nothing a spec's functions do, including panicking, can
// escape the Manager or leave a job dangling.
package job

import "context"

// EventType identifies one job lifecycle transition.
type EventType string

const (
	// EventJobStart is emitted once when a job is submitted.
	EventJobStart EventType = "JOB_START"

	// EventPrecheckFail is emitted when a job's precheck rejects it.
	EventPrecheckFail EventType = "PRECHECK_FAIL"

	// EventBlockedByCapability is emitted when the feature gate
	// rejects a job before it runs.
	EventBlockedByCapability EventType = "BLOCKED_BY_CAPABILITY"

	// EventExecStart is emitted immediately before the execute step
	// is handed to a worker.
	EventExecStart EventType = "EXEC_START"

	// EventJobEnd is the terminal event for a job whose execute step
	// returned code zero.
	EventJobEnd EventType = "JOB_END"

	// EventJobFail is the terminal event for a job that returned a
	// non-zero code, errored, or panicked.
	EventJobFail EventType = "JOB_FAIL"
)

// Status classifies a job's terminal outcome.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusBlocked Status = "blocked"
)

// PrecheckFunc validates that a job may run. It executes synchronously
// on the submitting goroutine, so it must be fast and must not block.
// When ok is false, reason says what failed and guidance tells the
// user what to do about it.
type PrecheckFunc func() (ok bool, reason, guidance string)

// ExecuteFunc performs the job's work. It runs on its own worker
// goroutine and is the only step allowed to block. The context is
// cancelled when the job is stopped; implementations that shell out
// should pass it through so the subprocess dies with the job.
type ExecuteFunc func(ctx context.Context) ExecutionResult

// ParseFunc interprets a raw execution result into the payload handed
// to the UI update step. The returned map should carry a "summary"
// entry (itself a map) that becomes the job result's summary.
type ParseFunc func(ExecutionResult) map[string]any

// UIUpdateFunc receives the parsed payload after a job executes. It is
// invoked exactly once per executed job, on the delivery context the
// Manager was configured with.
type UIUpdateFunc func(map[string]any)

// Spec describes one unit of work. A Spec is immutable once submitted;
// submit a fresh Spec to run the same work again.
type Spec struct {
	// JobID uniquely identifies the submission. Leave empty to have
	// the Manager generate one.
	JobID string

	// Name is the human-readable job title shown in logs and results.
	Name string

	// Category groups related jobs, for example "wireless" or "recon".
	Category string

	// FeatureKey, when set, names the feature this job exercises. The
	// Manager resolves it through its gate before running and blocks
	// the job when the feature is disabled.
	FeatureKey string

	// Precheck optionally rejects the job before any work starts.
	Precheck PrecheckFunc

	// Execute performs the work. Required.
	Execute ExecuteFunc

	// Parse interprets the execution result. Required.
	Parse ParseFunc

	// UIUpdate consumes the parsed payload. Required.
	UIUpdate UIUpdateFunc
}

// ExecutionResult is the raw outcome of a Spec's execute step.
type ExecutionResult struct {
	// Returncode is the process exit code, or a negative sentinel for
	// work that never produced one.
	Returncode int `json:"returncode"`

	// Stdout and Stderr hold captured output split into lines.
	Stdout []string `json:"stdout"`
	Stderr []string `json:"stderr"`

	// Payload carries arbitrary execution-specific data for the parse
	// step.
	Payload map[string]any `json:"payload"`

	// Error describes an execution-level failure such as a timeout.
	// Empty on success.
	Error string `json:"error"`

	// Elapsed is the execution wall time in seconds.
	Elapsed float64 `json:"elapsed"`
}

// Event is one lifecycle transition of one job. Events for a single
// job are totally ordered; events of different jobs may interleave.
type Event struct {
	// JobID names the job the event belongs to.
	JobID string `json:"job_id"`

	// Type is the lifecycle transition.
	Type EventType `json:"type"`

	// Detail carries transition-specific fields, for example reason
	// and guidance on a block, or the full result on a terminal event.
	Detail map[string]any `json:"detail"`
}

// Result is the terminal record of one job. Exactly one Result exists
// per submitted job and it never changes once recorded.
type Result struct {
	JobID      string         `json:"job_id"`
	Name       string         `json:"name"`
	Category   string         `json:"category"`
	Status     Status         `json:"status"`
	Returncode int            `json:"returncode"`
	Elapsed    float64        `json:"elapsed"`
	Summary    map[string]any `json:"summary"`
	Raw        RawOutput      `json:"raw"`

	// Error holds the failure message for failed jobs and the block
	// reason for blocked ones. Empty on success.
	Error string `json:"error"`
}

// RawOutput preserves the captured process output of a job.
type RawOutput struct {
	Stdout []string `json:"stdout"`
	Stderr []string `json:"stderr"`
}

// Gate answers whether the feature a job is bound to may run right
// now. Status returns the decision plus a reason and remediation
// guidance when the feature is disabled.
type Gate interface {
	Status(featureKey string) (enabled bool, reason, guidance string)
}

// GateFunc adapts a plain function into a Gate.
type GateFunc func(featureKey string) (enabled bool, reason, guidance string)

// Status implements Gate.
func (f GateFunc) Status(featureKey string) (bool, string, string) {
	return f(featureKey)
}
