package bridge

import (
	"fmt"
	"sort"
	"strings"
)

// Report holds the outcome of a WSL bridge diagnostic run. Checks are
// staged; once a stage fails, later fields keep their zero values and
// Errors explains why.
type Report struct {
	WSLInstalled  bool     `json:"wsl_installed"`
	WSLVersion    string   `json:"wsl_version"`
	Distros       []string `json:"distros"`
	DefaultDistro string   `json:"default_distro"`

	SelectedDistroExists    bool `json:"selected_distro_exists"`
	SelectedDistroReachable bool `json:"selected_distro_reachable"`

	// ToolsAvailable maps each required tool to its presence inside
	// the distribution.
	ToolsAvailable map[string]bool `json:"tools_available"`

	WirelessInterfaces []string `json:"wireless_interfaces"`
	WirelessCapable    bool     `json:"wireless_capable"`

	Errors          []string `json:"errors"`
	Warnings        []string `json:"warnings"`
	Recommendations []string `json:"recommendations"`
}

// IsReady reports whether WSL can back basic network operations.
func (r Report) IsReady() bool {
	return r.WSLInstalled &&
		r.SelectedDistroExists &&
		r.SelectedDistroReachable &&
		len(r.Errors) == 0
}

// IsWirelessReady reports whether WSL can back wireless operations.
func (r Report) IsWirelessReady() bool {
	return r.IsReady() && r.WirelessCapable
}

// Format renders the report as a human-readable text block.
func (r Report) Format() string {
	var lines []string
	lines = append(lines, "=== WSL Bridge Mode Diagnostics ===\n")

	lines = append(lines, fmt.Sprintf("WSL Installed: %s", mark(r.WSLInstalled)))
	if r.WSLVersion != "" {
		lines = append(lines, fmt.Sprintf("WSL Version: %s", r.WSLVersion))
	}

	if len(r.Distros) > 0 {
		lines = append(lines, fmt.Sprintf("\nInstalled Distributions: %s", strings.Join(r.Distros, ", ")))
		if r.DefaultDistro != "" {
			lines = append(lines, fmt.Sprintf("Default Distro: %s", r.DefaultDistro))
		}
	}

	if r.SelectedDistroExists {
		lines = append(lines, fmt.Sprintf("\nSelected Distro Reachable: %s", mark(r.SelectedDistroReachable)))
	}

	if len(r.ToolsAvailable) > 0 {
		lines = append(lines, "\nTool Availability:")
		tools := make([]string, 0, len(r.ToolsAvailable))
		for tool := range r.ToolsAvailable {
			tools = append(tools, tool)
		}
		sort.Strings(tools)
		for _, tool := range tools {
			lines = append(lines, fmt.Sprintf("  %s %s", mark(r.ToolsAvailable[tool]), tool))
		}
	}

	if len(r.WirelessInterfaces) > 0 {
		lines = append(lines, fmt.Sprintf("\nWireless Interfaces: %s", strings.Join(r.WirelessInterfaces, ", ")))
	} else {
		lines = append(lines, "\nWireless Interfaces: None detected")
	}

	if len(r.Errors) > 0 {
		lines = append(lines, "\n❌ Errors:")
		for _, msg := range r.Errors {
			lines = append(lines, "  • "+msg)
		}
	}

	if len(r.Warnings) > 0 {
		lines = append(lines, "\n⚠️  Warnings:")
		for _, msg := range r.Warnings {
			lines = append(lines, "  • "+msg)
		}
	}

	if len(r.Recommendations) > 0 {
		lines = append(lines, "\n💡 Recommendations:")
		for _, msg := range r.Recommendations {
			lines = append(lines, "  • "+msg)
		}
	}

	if r.IsReady() {
		lines = append(lines, "\nOverall Status: ✓ Ready")
	} else {
		lines = append(lines, "\nOverall Status: ✗ Not Ready")
	}
	if r.IsWirelessReady() {
		lines = append(lines, "Wireless Ready: ✓ Yes")
	} else {
		lines = append(lines, "Wireless Ready: ✗ No")
	}

	return strings.Join(lines, "\n")
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
