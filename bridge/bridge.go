// Package bridge diagnoses whether a WSL distribution can serve as the
// Linux-side backend for network operations launched from a Windows
// host. Checks run in stages: WSL presence, installed distributions,
// distro selection, reachability, in-distro tooling, and wireless
// interface availability. Each stage that fails short-circuits the
// rest and leaves an actionable recommendation in the report.
package bridge

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/netreaper/sdk/exec"
)

// requiredTools are checked inside the selected distribution, in this
// order.
var requiredTools = []string{"ip", "iw", "nmcli", "nmap", "ss", "ping"}

const (
	// probeTimeout bounds every wsl.exe helper invocation except the
	// reachability echo.
	probeTimeout = 3 * time.Second

	// reachTimeout bounds the reachability echo, which may cold-start
	// the distribution.
	reachTimeout = 5 * time.Second
)

// Runner executes one helper command. Tests substitute a fake.
type Runner func(ctx context.Context, cfg exec.Config) (*exec.Result, error)

// Checker runs WSL bridge diagnostics.
type Checker struct {
	run    Runner
	logger *slog.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithLogger sets the checker's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		c.logger = logger
	}
}

// WithRunner replaces the command runner used for wsl.exe probes.
func WithRunner(run Runner) Option {
	return func(c *Checker) {
		c.run = run
	}
}

// NewChecker creates a diagnostics checker.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		run:    exec.Run,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Diagnose runs the staged WSL checks against the named distribution,
// or against the default distribution when distro is empty. It never
// returns an error; failures land in the report.
func Diagnose(ctx context.Context, distro string, opts ...Option) *Report {
	return NewChecker(opts...).Diagnose(ctx, distro)
}

// Diagnose runs the staged WSL checks. See the package-level Diagnose.
func (c *Checker) Diagnose(ctx context.Context, distro string) *Report {
	report := &Report{
		Distros:            []string{},
		ToolsAvailable:     map[string]bool{},
		WirelessInterfaces: []string{},
		Errors:             []string{},
		Warnings:           []string{},
		Recommendations:    []string{},
	}

	report.WSLInstalled = c.checkInstalled(ctx)
	if !report.WSLInstalled {
		report.Errors = append(report.Errors, "WSL is not installed or not in PATH")
		report.Recommendations = append(report.Recommendations, "Install WSL2: wsl --install")
		return report
	}

	report.WSLVersion = c.version(ctx)

	report.Distros = c.listDistros(ctx)
	if len(report.Distros) == 0 {
		report.Errors = append(report.Errors, "No WSL distributions installed")
		report.Recommendations = append(report.Recommendations, "Install a Linux distribution: wsl --install -d Ubuntu")
		return report
	}

	report.DefaultDistro = c.defaultDistro(ctx)

	target := distro
	if target == "" {
		target = report.DefaultDistro
	}

	for _, name := range report.Distros {
		if name == target {
			report.SelectedDistroExists = true
			break
		}
	}
	if !report.SelectedDistroExists {
		report.Errors = append(report.Errors, "Selected distro '"+target+"' not found")
		report.Recommendations = append(report.Recommendations, "Available distros: "+strings.Join(report.Distros, ", "))
		return report
	}

	report.SelectedDistroReachable = c.reachable(ctx, target)
	if !report.SelectedDistroReachable {
		report.Errors = append(report.Errors, "Cannot reach distro '"+target+"'")
		report.Recommendations = append(report.Recommendations, "Try: wsl -d "+target+" -- echo test")
		return report
	}

	var missing []string
	for _, tool := range requiredTools {
		available := c.toolAvailable(ctx, target, tool)
		report.ToolsAvailable[tool] = available
		if !available {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		report.Warnings = append(report.Warnings, "Missing tools in WSL: "+strings.Join(missing, ", "))
		report.Recommendations = append(report.Recommendations,
			"Install missing tools: wsl -d "+target+" -- sudo apt update && sudo apt install -y iproute2 wireless-tools network-manager nmap")
	}

	report.WirelessInterfaces = c.wirelessInterfaces(ctx, target)
	report.WirelessCapable = len(report.WirelessInterfaces) > 0
	if !report.WirelessCapable {
		report.Warnings = append(report.Warnings, "No wireless interfaces detected in WSL")
		report.Recommendations = append(report.Recommendations,
			"For wireless attacks, attach a USB Wi-Fi adapter to WSL using usbipd-win")
		report.Recommendations = append(report.Recommendations,
			"Guide: https://learn.microsoft.com/en-us/windows/wsl/connect-usb")
	}

	c.logger.Debug("wsl diagnostics complete",
		"distro", target,
		"ready", report.IsReady(),
		"wireless_ready", report.IsWirelessReady(),
	)
	return report
}

func (c *Checker) checkInstalled(ctx context.Context) bool {
	result, err := c.run(ctx, exec.Config{
		Command: "wsl",
		Args:    []string{"--version"},
		Timeout: probeTimeout,
	})
	return err == nil && result.ExitCode == 0
}

func (c *Checker) version(ctx context.Context) string {
	result, err := c.run(ctx, exec.Config{
		Command: "wsl",
		Args:    []string{"--version"},
		Timeout: probeTimeout,
	})
	if err != nil || result.ExitCode != 0 {
		return "unknown"
	}
	lines := result.StdoutLines()
	if len(lines) == 0 {
		return "unknown"
	}
	return strings.TrimSpace(stripNUL(lines[0]))
}

func (c *Checker) listDistros(ctx context.Context) []string {
	result, err := c.run(ctx, exec.Config{
		Command: "wsl",
		Args:    []string{"-l", "-q"},
		Timeout: probeTimeout,
	})
	if err != nil || result.ExitCode != 0 {
		return []string{}
	}
	distros := []string{}
	for _, raw := range result.StdoutLines() {
		name := strings.TrimSpace(stripNUL(raw))
		if name != "" {
			distros = append(distros, name)
		}
	}
	return distros
}

func (c *Checker) defaultDistro(ctx context.Context) string {
	result, err := c.run(ctx, exec.Config{
		Command: "wsl",
		Args:    []string{"-l", "-v"},
		Timeout: probeTimeout,
	})
	if err != nil || result.ExitCode != 0 {
		return ""
	}
	// the default distro line is marked with an asterisk
	for _, raw := range result.StdoutLines() {
		line := stripNUL(raw)
		if !strings.Contains(line, "*") {
			continue
		}
		fields := strings.Fields(strings.ReplaceAll(line, "*", ""))
		if len(fields) > 0 {
			return fields[0]
		}
	}
	return ""
}

func (c *Checker) reachable(ctx context.Context, distro string) bool {
	result, err := c.run(ctx, exec.Config{
		Command: "wsl",
		Args:    distroArgs(distro, "echo", "test"),
		Timeout: reachTimeout,
	})
	return err == nil && result.ExitCode == 0 && strings.Contains(stripNUL(string(result.Stdout)), "test")
}

func (c *Checker) toolAvailable(ctx context.Context, distro, tool string) bool {
	result, err := c.run(ctx, exec.Config{
		Command: "wsl",
		Args:    distroArgs(distro, "which", tool),
		Timeout: probeTimeout,
	})
	return err == nil && result.ExitCode == 0
}

func (c *Checker) wirelessInterfaces(ctx context.Context, distro string) []string {
	result, err := c.run(ctx, exec.Config{
		Command: "wsl",
		Args:    distroArgs(distro, "iw", "dev"),
		Timeout: probeTimeout,
	})
	if err != nil || result.ExitCode != 0 {
		return []string{}
	}
	interfaces := []string{}
	for _, raw := range result.StdoutLines() {
		line := strings.TrimSpace(stripNUL(raw))
		if !strings.HasPrefix(line, "Interface ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			interfaces = append(interfaces, fields[1])
		}
	}
	return interfaces
}

func distroArgs(distro string, args ...string) []string {
	argv := make([]string, 0, len(args)+3)
	if distro != "" {
		argv = append(argv, "-d", distro)
	}
	argv = append(argv, "--")
	argv = append(argv, args...)
	return argv
}

// stripNUL removes the NUL bytes that wsl.exe's UTF-16 output leaves
// behind when read as UTF-8.
func stripNUL(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}
