// Package diag provides the self-test harness and the diagnostics
// export. The harness proves the negative paths of the capability
// gate: for every feature resolved disabled it submits a probe job
// that must be blocked before its execute step, and it cross-checks
// that presented UI states match the resolved support. Failures are
// collected into a report, never raised.
package diag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/netreaper/sdk/feature"
	"github.com/netreaper/sdk/job"
)

// DefaultProbeTimeout bounds the wait for all probe jobs to resolve.
const DefaultProbeTimeout = 4 * time.Second

// Check statuses for the missing-tool messaging check.
const (
	CheckPass    = "pass"
	CheckFail    = "fail"
	CheckSkipped = "skipped"
)

// JobRunner is the slice of the job manager the harness needs.
type JobRunner interface {
	Run(spec job.Spec) (string, error)
	OnEvent(handler func(job.Event)) (unsubscribe func())
	OnResult(handler func(job.Result)) (unsubscribe func())
}

// ProbeResult records what one blocked-feature probe observed.
type ProbeResult struct {
	FeatureKey      string   `json:"feature_key"`
	JobID           string   `json:"job_id"`
	EventTypes      []string `json:"event_types"`
	BlockedEvent    bool     `json:"blocked_event"`
	BlockedReason   string   `json:"blocked_reason"`
	BlockedGuidance string   `json:"blocked_guidance"`
	ExecStarted     bool     `json:"exec_started"`
	TimedOut        bool     `json:"timed_out"`
}

// Affordance is the presented UI state for one feature key: whether
// its control is enabled, the tooltip shown, and the visible label.
type Affordance struct {
	FeatureKey string `json:"feature_key"`
	Label      string `json:"control_text"`
	Enabled    bool   `json:"enabled"`
	Tooltip    string `json:"tooltip"`
}

// CheckStatus is a pass/fail/skipped verdict with detail.
type CheckStatus struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// AffordanceReport holds the outcome of the affordance cross-check.
type AffordanceReport struct {
	Checked          []Affordance `json:"checked"`
	Errors           []string     `json:"errors"`
	MissingToolCheck CheckStatus  `json:"missing_tool_check"`
}

// Report is the full self-test outcome.
type Report struct {
	DisabledFeatures []string      `json:"disabled_features"`
	UIChecks         []Affordance  `json:"ui_checks"`
	UIErrors         []string      `json:"ui_errors"`
	ProbeResults     []ProbeResult `json:"probe_results"`
	ProbeErrors      []string      `json:"probe_errors"`
	MissingToolCheck CheckStatus   `json:"missing_tool_check"`
}

// Passed reports whether the self-test found no defects.
func (r *Report) Passed() bool {
	return len(r.UIErrors) == 0 &&
		len(r.ProbeErrors) == 0 &&
		r.MissingToolCheck.Status != CheckFail
}

// Harness drives blocked-feature probes and affordance checks against
// a job manager and a resolved feature-support table.
type Harness struct {
	runner  JobRunner
	support map[string]feature.Resolution
	timeout time.Duration
	logger  *slog.Logger
}

// HarnessOption configures a Harness.
type HarnessOption func(*Harness)

// WithTimeout bounds the wait for probe jobs. Defaults to
// DefaultProbeTimeout.
func WithTimeout(timeout time.Duration) HarnessOption {
	return func(h *Harness) {
		h.timeout = timeout
	}
}

// WithLogger sets the harness logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) HarnessOption {
	return func(h *Harness) {
		h.logger = logger
	}
}

// NewHarness creates a harness. The runner must be gated by the same
// resolutions passed in support, otherwise the probes prove nothing.
func NewHarness(runner JobRunner, support map[string]feature.Resolution, opts ...HarnessOption) *Harness {
	h := &Harness{
		runner:  runner,
		support: support,
		timeout: DefaultProbeTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// DisabledFeatures returns the sorted keys of features resolved
// disabled.
func (h *Harness) DisabledFeatures() []string {
	keys := make([]string, 0, len(h.support))
	for key, status := range h.support {
		if !status.Enabled {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// RunProbes submits one probe job per disabled feature and waits for
// all of them to resolve, bounded by the harness timeout. Each probe's
// execute step would report a failure if it ever ran; a correct gate
// blocks it first.
func (h *Harness) RunProbes(ctx context.Context) []ProbeResult {
	keys := h.DisabledFeatures()
	if len(keys) == 0 {
		return []ProbeResult{}
	}

	var mu sync.Mutex
	events := make(map[string][]job.Event)
	pending := make(map[string]struct{})
	jobFeature := make(map[string]string)
	var order []string
	done := make(chan struct{}, len(keys))

	offEvent := h.runner.OnEvent(func(event job.Event) {
		mu.Lock()
		defer mu.Unlock()
		if _, ours := jobFeature[event.JobID]; ours {
			events[event.JobID] = append(events[event.JobID], event)
		}
	})
	defer offEvent()

	offResult := h.runner.OnResult(func(result job.Result) {
		mu.Lock()
		_, ours := pending[result.JobID]
		delete(pending, result.JobID)
		mu.Unlock()
		if ours {
			done <- struct{}{}
		}
	})
	defer offResult()

	for _, key := range keys {
		status := h.support[key]
		reason := status.Reason
		if reason == "" {
			reason = "Feature unavailable"
		}
		guidance := status.RecommendedPath

		jobID := job.NewJobID()
		mu.Lock()
		jobFeature[jobID] = key
		pending[jobID] = struct{}{}
		order = append(order, jobID)
		mu.Unlock()

		spec := job.Spec{
			JobID:      jobID,
			Name:       "Self-test probe: " + key,
			Category:   "diagnostics",
			FeatureKey: key,
			Precheck: func() (bool, string, string) {
				return false, reason, guidance
			},
			Execute: func(ctx context.Context) job.ExecutionResult {
				return job.ExecutionResult{Returncode: 1, Error: "Probe executed unexpectedly"}
			},
			Parse: func(res job.ExecutionResult) map[string]any {
				return map[string]any{
					"summary": map[string]any{"probe": true},
					"counts":  map[string]any{},
					"items":   []any{},
				}
			},
			UIUpdate: func(map[string]any) {},
		}

		if _, err := h.runner.Run(spec); err != nil {
			h.logger.Error("self-test probe submit failed", "feature_key", key, "error", err)
			mu.Lock()
			delete(pending, jobID)
			mu.Unlock()
			done <- struct{}{}
		}
	}

	timer := time.NewTimer(h.timeout)
	defer timer.Stop()
	remaining := len(keys)
wait:
	for remaining > 0 {
		select {
		case <-done:
			remaining--
		case <-timer.C:
			break wait
		case <-ctx.Done():
			break wait
		}
	}

	mu.Lock()
	defer mu.Unlock()
	results := make([]ProbeResult, 0, len(order))
	for _, jobID := range order {
		eventList := events[jobID]
		types := make([]string, 0, len(eventList))
		execStarted := false
		var blocked *job.Event
		for i := range eventList {
			types = append(types, string(eventList[i].Type))
			switch eventList[i].Type {
			case job.EventExecStart:
				execStarted = true
			case job.EventBlockedByCapability:
				if blocked == nil {
					blocked = &eventList[i]
				}
			}
		}
		_, stillPending := pending[jobID]

		probe := ProbeResult{
			FeatureKey:   jobFeature[jobID],
			JobID:        jobID,
			EventTypes:   types,
			BlockedEvent: blocked != nil,
			ExecStarted:  execStarted,
			TimedOut:     stillPending,
		}
		if blocked != nil {
			probe.BlockedReason, _ = blocked.Detail["reason"].(string)
			probe.BlockedGuidance, _ = blocked.Detail["guidance"].(string)
		}
		results = append(results, probe)
	}
	return results
}

// ProbeErrors derives defect messages from probe results.
func ProbeErrors(probes []ProbeResult) []string {
	errs := []string{}
	for _, probe := range probes {
		if !probe.BlockedEvent {
			errs = append(errs, probe.FeatureKey+" missing BLOCKED_BY_CAPABILITY event")
		}
		if probe.ExecStarted {
			errs = append(errs, probe.FeatureKey+" executed despite being blocked")
		}
		if probe.TimedOut {
			errs = append(errs, probe.FeatureKey+" probe timed out")
		}
	}
	return errs
}

// CheckAffordances verifies that every presented state for a disabled
// feature is actually disabled, carries the resolved reason and
// recommended path in its tooltip, and shows the badge in its label.
// States for enabled or unknown features are skipped.
func (h *Harness) CheckAffordances(states []Affordance) AffordanceReport {
	report := AffordanceReport{
		Checked: []Affordance{},
		Errors:  []string{},
	}
	var missingToolHits []string
	var missingToolErrors []string

	for _, state := range states {
		status, known := h.support[state.FeatureKey]
		if !known || status.Enabled {
			continue
		}
		reason := strings.TrimSpace(status.Reason)
		recommended := strings.TrimSpace(status.RecommendedPath)
		badge := strings.TrimSpace(status.Badge)

		report.Checked = append(report.Checked, state)

		if state.Enabled {
			report.Errors = append(report.Errors,
				fmt.Sprintf("%s control still enabled: %s", state.FeatureKey, state.Label))
		}
		if reason != "" && !strings.Contains(state.Tooltip, reason) {
			report.Errors = append(report.Errors,
				fmt.Sprintf("%s tooltip missing reason: %s", state.FeatureKey, state.Label))
		}
		if recommended != "" && !strings.Contains(state.Tooltip, recommended) {
			report.Errors = append(report.Errors,
				fmt.Sprintf("%s tooltip missing recommendation: %s", state.FeatureKey, state.Label))
		}
		if badge != "" && !strings.Contains(state.Label, badge) {
			report.Errors = append(report.Errors,
				fmt.Sprintf("%s badge missing: %s", state.FeatureKey, state.Label))
		}
		if strings.Contains(reason, "Missing tool") {
			if strings.Contains(state.Tooltip, "Missing tool") {
				missingToolHits = append(missingToolHits, state.FeatureKey)
			} else {
				missingToolErrors = append(missingToolErrors, state.FeatureKey+" tooltip missing missing-tool reason.")
			}
		}
	}

	switch {
	case len(missingToolErrors) > 0:
		report.MissingToolCheck = CheckStatus{Status: CheckFail, Detail: strings.Join(missingToolErrors, "; ")}
	case len(missingToolHits) > 0:
		report.MissingToolCheck = CheckStatus{Status: CheckPass, Detail: "Missing-tool messaging present."}
	default:
		report.MissingToolCheck = CheckStatus{Status: CheckSkipped, Detail: "No missing-tool features detected."}
	}
	return report
}

// SelfTest runs the affordance cross-check and the blocked-feature
// probes and folds both into one report.
func (h *Harness) SelfTest(ctx context.Context, states []Affordance) *Report {
	affordances := h.CheckAffordances(states)
	probes := h.RunProbes(ctx)

	report := &Report{
		DisabledFeatures: h.DisabledFeatures(),
		UIChecks:         affordances.Checked,
		UIErrors:         affordances.Errors,
		ProbeResults:     probes,
		ProbeErrors:      ProbeErrors(probes),
		MissingToolCheck: affordances.MissingToolCheck,
	}
	h.logger.Info("self-test complete",
		"disabled_features", len(report.DisabledFeatures),
		"ui_errors", len(report.UIErrors),
		"probe_errors", len(report.ProbeErrors),
		"passed", report.Passed(),
	)
	return report
}
