package diag

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/netreaper/sdk/capability"
	"github.com/netreaper/sdk/feature"
	"github.com/netreaper/sdk/job"
)

// Export is the diagnostics document. Every field is always present in
// the serialized form, empty collections included, so downstream
// tooling can rely on the shape. SelfTest is null when no self-test
// ran.
type Export struct {
	GeneratedAt time.Time `json:"generated_at"`

	Platform  string            `json:"platform"`
	IsWindows bool              `json:"is_windows"`
	IsLinux   bool              `json:"is_linux"`
	IsWSL     bool              `json:"is_wsl"`
	IsAdmin   bool              `json:"is_admin"`
	Tools     map[string]bool   `json:"tools"`
	Features  map[string]bool   `json:"features"`
	Reasons   map[string]string `json:"reasons"`

	CPUFlags  []string `json:"cpu_flags"`
	LegacyCPU bool     `json:"legacy_cpu"`

	FeatureMatrix  []feature.Definition          `json:"feature_matrix"`
	FeatureSupport map[string]feature.Resolution `json:"feature_support"`
	JobHistory     []job.Result                  `json:"job_history"`

	SelfTest *Report `json:"self_test"`
}

// NewExport assembles the diagnostics document from a capability
// snapshot, the feature matrix, resolved per-feature support, and the
// job history. The CPU probe runs here since its result is only used
// for diagnostics.
func NewExport(ctx context.Context, snap *capability.Snapshot, matrix *feature.Matrix, support map[string]feature.Resolution, history []job.Result) *Export {
	export := &Export{
		GeneratedAt:    time.Now().UTC(),
		Tools:          map[string]bool{},
		Features:       map[string]bool{},
		Reasons:        map[string]string{},
		CPUFlags:       []string{},
		FeatureMatrix:  []feature.Definition{},
		FeatureSupport: map[string]feature.Resolution{},
		JobHistory:     []job.Result{},
	}

	if snap != nil {
		export.Platform = snap.Platform
		export.IsWindows = snap.IsWindows
		export.IsLinux = snap.IsLinux
		export.IsWSL = snap.IsWSL
		export.IsAdmin = snap.IsAdmin
		for tool, available := range snap.Tools {
			export.Tools[tool] = available
		}
		for flag, value := range snap.Flags {
			export.Features[flag] = value
		}
		for flag, reason := range snap.Reasons {
			export.Reasons[flag] = reason
		}
	}

	for flag, set := range capability.CPUFlags(ctx) {
		if set {
			export.CPUFlags = append(export.CPUFlags, flag)
		}
	}
	sort.Strings(export.CPUFlags)
	export.LegacyCPU = capability.IsLegacyCPU(ctx)

	if matrix != nil {
		export.FeatureMatrix = matrix.ToSerializable()
	}
	for key, resolution := range support {
		export.FeatureSupport[key] = resolution
	}
	export.JobHistory = append(export.JobHistory, history...)

	return export
}

// WriteJSON writes the document as indented JSON.
func (e *Export) WriteJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(e); err != nil {
		return fmt.Errorf("failed to encode diagnostics: %w", err)
	}
	return nil
}

// WriteFile writes the document as indented JSON to the given path.
func (e *Export) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create diagnostics file: %w", err)
	}
	defer f.Close()

	if err := e.WriteJSON(f); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write diagnostics file: %w", err)
	}
	return nil
}
