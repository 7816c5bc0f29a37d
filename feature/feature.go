// Package feature defines the cross-platform support matrix for
// netreaper operations and resolves matrix entries against a host
// capability snapshot.
//
// A Definition declares how one operation behaves per operating system:
// whether it runs natively, needs a bridge environment such as WSL, or
// is unsupported, plus the tools and privileges it needs. The Resolver
// combines a Definition with a capability.Snapshot into a Resolution
// that says whether the operation can run right now and, when it
// cannot, exactly why.
package feature

// SupportLevel classifies how well an operation works on a given
// operating system.
type SupportLevel string

const (
	// SupportNative means the operation runs directly on the host.
	SupportNative SupportLevel = "native"

	// SupportLimited means the operation runs with reduced fidelity,
	// for example passive-only wireless observation.
	SupportLimited SupportLevel = "limited"

	// SupportUnsupported means the operation cannot run on the host
	// operating system at all.
	SupportUnsupported SupportLevel = "unsupported"

	// SupportExternalRequired means the operation needs a bridge
	// environment such as WSL with Linux tooling installed.
	SupportExternalRequired SupportLevel = "external_required"
)

// IsValid reports whether the value is one of the declared support
// levels.
func (s SupportLevel) IsValid() bool {
	switch s {
	case SupportNative, SupportLimited, SupportUnsupported, SupportExternalRequired:
		return true
	}
	return false
}

// OSKey identifies an operating system in support tables.
type OSKey string

const (
	OSWindows OSKey = "windows"
	OSLinux   OSKey = "linux"
)

// IsValid reports whether the value is one of the declared OS keys.
func (k OSKey) IsValid() bool {
	return k == OSWindows || k == OSLinux
}

// Definition declares the platform support contract for one operation.
// Definitions are static data; resolving one against a live host is the
// Resolver's job.
type Definition struct {
	// Key is the stable feature identifier, for example
	// "wireless.monitor_mode".
	Key string `json:"key" yaml:"key"`

	// Support maps each operating system to its support level.
	// An OS absent from the map is unsupported there.
	Support map[OSKey]SupportLevel `json:"support_by_os" yaml:"support_by_os"`

	// RequiresAdmin indicates the operation needs administrator or
	// root privileges.
	RequiresAdmin bool `json:"requires_admin" yaml:"requires_admin"`

	// RequiredTools lists the external tools the operation invokes,
	// in the order they are checked and reported.
	RequiredTools []string `json:"requires_tools" yaml:"requires_tools"`

	// Notes holds per-OS guidance shown alongside the feature.
	Notes map[OSKey]string `json:"notes_by_os" yaml:"notes_by_os"`

	// RecommendedPath tells the user how to make the feature work
	// when it is unavailable on their setup.
	RecommendedPath string `json:"recommended_path" yaml:"recommended_path"`
}

// SupportFor returns the support level for an operating system.
// Operating systems the definition does not mention are unsupported.
func (d Definition) SupportFor(os OSKey) SupportLevel {
	if level, ok := d.Support[os]; ok {
		return level
	}
	return SupportUnsupported
}

// NotesFor returns the guidance notes for an operating system, or the
// empty string when none were written.
func (d Definition) NotesFor(os OSKey) string {
	return d.Notes[os]
}
