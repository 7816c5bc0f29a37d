// Package capability probes the host operating system and reports which
// networking tools, privileges, and derived capabilities are available to
// the current process.
//
// The package produces an immutable Snapshot via Detect. Higher layers
// combine a Snapshot with a feature support matrix to decide which
// operations can run on this host, which need elevation, and which need a
// bridge environment such as WSL.
//
// All probes are best-effort: a probe that fails or times out records the
// capability as absent rather than returning an error. Probes that launch
// helper processes are bounded by short timeouts so detection stays fast
// even on hosts where a tool hangs.
package capability

// Snapshot describes the probed state of the host at a single point in
// time. Construct one with Detect, or populate the fields directly in
// tests. A Snapshot is treated as read-only after construction; call
// Detect again to observe environment changes.
type Snapshot struct {
	// Platform is the human-readable operating system name,
	// for example "Windows" or "Linux".
	Platform string `json:"platform"`

	// IsWindows indicates the process is running on Windows.
	IsWindows bool `json:"is_windows"`

	// IsLinux indicates the process is running on Linux, including
	// inside a WSL distribution.
	IsLinux bool `json:"is_linux"`

	// IsWSL indicates the process is running inside Windows Subsystem
	// for Linux, detected through the WSL interop environment.
	IsWSL bool `json:"is_wsl"`

	// IsAdmin indicates the process has administrator or root
	// privileges.
	IsAdmin bool `json:"is_admin"`

	// Tools maps probed tool names to their availability.
	// Keys are binary names such as "nmap", or PowerShell cmdlet
	// names such as "Get-NetAdapter" on Windows.
	Tools map[string]bool `json:"tools"`

	// Flags contains derived capability flags computed from the tool
	// set, such as "can_scan_wifi". Keys are the Flag* constants.
	Flags map[string]bool `json:"feature_flags"`

	// Reasons explains unavailable or degraded flags. A flag that is
	// false carries the missing prerequisite; a flag that is true may
	// still carry an advisory, for example when elevation would
	// improve results.
	Reasons map[string]string `json:"reasons"`
}

// NewSnapshot creates a Snapshot with empty collections initialized.
// This prevents nil map writes when populating a snapshot by hand.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Tools:   make(map[string]bool),
		Flags:   make(map[string]bool),
		Reasons: make(map[string]string),
	}
}

// Flag reports whether a derived capability flag is set.
// Returns false for unknown flags.
func (s *Snapshot) Flag(name string) bool {
	if s.Flags == nil {
		return false
	}
	return s.Flags[name]
}

// Reason returns the explanation recorded for a flag, or the empty
// string when none was recorded.
func (s *Snapshot) Reason(name string) string {
	if s.Reasons == nil {
		return ""
	}
	return s.Reasons[name]
}

// HasTool reports whether a probed tool was found on the host.
// Returns false for tools that were never probed.
func (s *Snapshot) HasTool(name string) bool {
	if s.Tools == nil {
		return false
	}
	return s.Tools[name]
}

// OSKey returns the operating system key used by feature support
// tables: "windows" when the snapshot was taken on Windows, "linux"
// otherwise. WSL sessions report "linux".
func (s *Snapshot) OSKey() string {
	if s.IsWindows {
		return "windows"
	}
	return "linux"
}
