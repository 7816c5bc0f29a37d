package feature

import (
	"errors"
	"fmt"
	"strings"

	"github.com/netreaper/sdk/capability"
	"github.com/netreaper/sdk/exec"
)

// ErrNotFound is returned when a feature key has no matrix entry.
var ErrNotFound = errors.New("feature not found")

// BadgeExternalRequired is the UI badge shown for features whose base
// support level needs a bridge environment.
const BadgeExternalRequired = "External/Bridge Required"

// Reason fragments reported by the resolver. Fragments are joined with
// "; " in the order support level, privileges, tools.
const (
	reasonAdmin             = "Requires administrator/root privileges"
	reasonUnsupportedFmt    = "Unsupported on %s"
	reasonExternalFmt       = "External/bridge environment required on %s"
	reasonMissingToolPrefix = "Missing tool: "
)

// Resolution is the outcome of checking one feature against a host
// snapshot. It carries everything a caller needs to gate the feature
// and to explain the gate to a user.
type Resolution struct {
	// BaseSupport is the declared support level for the host OS.
	BaseSupport SupportLevel `json:"base_support"`

	// EffectiveSupport is the support level after accounting for the
	// live host. A natively supported feature with missing tools or
	// privileges demotes to unsupported here.
	EffectiveSupport SupportLevel `json:"effective_support"`

	// Enabled reports whether the feature can run right now.
	Enabled bool `json:"enabled"`

	// Reason explains why the feature is gated, as "; " joined
	// fragments. Empty when Enabled is true.
	Reason string `json:"reason"`

	// MissingTools lists the required tools that were not found, in
	// definition order. Empty when every tool is present.
	MissingTools []string `json:"missing_tools"`

	// RequiresAdmin mirrors the definition field.
	RequiresAdmin bool `json:"requires_admin"`

	// RequiredTools mirrors the definition field.
	RequiredTools []string `json:"requires_tools"`

	// Notes is the per-OS guidance from the definition.
	Notes string `json:"notes"`

	// RecommendedPath mirrors the definition field.
	RecommendedPath string `json:"recommended_path"`

	// Badge is BadgeExternalRequired for bridge features, otherwise
	// empty.
	Badge string `json:"badge"`
}

// Resolver evaluates matrix entries against capability snapshots.
type Resolver struct {
	matrix   *Matrix
	lookPath func(string) bool
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithToolLookup replaces the live PATH lookup used as a fallback when
// a required tool is not in the snapshot. Tests use this to pin tool
// availability.
func WithToolLookup(fn func(string) bool) ResolverOption {
	return func(r *Resolver) {
		r.lookPath = fn
	}
}

// NewResolver creates a resolver over the given matrix.
func NewResolver(matrix *Matrix, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		matrix:   matrix,
		lookPath: exec.BinaryExists,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve evaluates the feature with the given key against a snapshot.
// Returns ErrNotFound when the key has no matrix entry.
func (r *Resolver) Resolve(key string, snap *capability.Snapshot) (Resolution, error) {
	def, ok := r.matrix.Lookup(key)
	if !ok {
		return Resolution{}, fmt.Errorf("resolving feature %q: %w", key, ErrNotFound)
	}
	return r.ResolveDefinition(def, snap), nil
}

// ResolveDefinition evaluates a definition against a snapshot for the
// snapshot's own operating system.
func (r *Resolver) ResolveDefinition(def Definition, snap *capability.Snapshot) Resolution {
	return r.ResolveFor(def, OSKey(snap.OSKey()), snap)
}

// ResolveFor evaluates a definition against a snapshot for an explicit
// operating system key.
//
// The checks run in a fixed order and each failed check appends one
// reason fragment: support level first, then privileges, then required
// tools. A required tool counts as present when the snapshot recorded
// it or a live PATH lookup finds it, so features keep working when a
// tool was installed after the snapshot was taken.
func (r *Resolver) ResolveFor(def Definition, osKey OSKey, snap *capability.Snapshot) Resolution {
	base := def.SupportFor(osKey)

	var reasons []string
	switch base {
	case SupportUnsupported:
		reasons = append(reasons, fmt.Sprintf(reasonUnsupportedFmt, osKey))
	case SupportExternalRequired:
		reasons = append(reasons, fmt.Sprintf(reasonExternalFmt, osKey))
	}

	if def.RequiresAdmin && !snap.IsAdmin {
		reasons = append(reasons, reasonAdmin)
	}

	var missing []string
	for _, tool := range def.RequiredTools {
		if snap.HasTool(tool) || r.lookPath(tool) {
			continue
		}
		missing = append(missing, tool)
	}
	if len(missing) > 0 {
		reasons = append(reasons, reasonMissingToolPrefix+strings.Join(missing, ", "))
	}

	enabled := len(reasons) == 0
	if base == SupportUnsupported || base == SupportExternalRequired {
		enabled = false
	}

	effective := base
	if !enabled && base != SupportUnsupported && base != SupportExternalRequired {
		effective = SupportUnsupported
	}

	badge := ""
	if base == SupportExternalRequired {
		badge = BadgeExternalRequired
	}

	return Resolution{
		BaseSupport:      base,
		EffectiveSupport: effective,
		Enabled:          enabled,
		Reason:           strings.Join(reasons, "; "),
		MissingTools:     missing,
		RequiresAdmin:    def.RequiresAdmin,
		RequiredTools:    append([]string(nil), def.RequiredTools...),
		Notes:            def.NotesFor(osKey),
		RecommendedPath:  def.RecommendedPath,
		Badge:            badge,
	}
}

// ResolveAll evaluates every matrix entry against a snapshot and
// returns the resolutions keyed by feature key.
func (r *Resolver) ResolveAll(snap *capability.Snapshot) map[string]Resolution {
	out := make(map[string]Resolution, r.matrix.Len())
	for _, def := range r.matrix.All() {
		out[def.Key] = r.ResolveDefinition(def, snap)
	}
	return out
}
