// Package exec provides command execution utilities with timeout support.
// It wraps os/exec with a simple, context-aware API for launching external
// security tools, capturing their output, and terminating them cleanly.
//
// Commands can be routed through an interpreter: directly, through PowerShell
// (-NoProfile -Command), or into a WSL distribution (wsl -e). Routing keeps
// callers free of per-platform argv assembly.
package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"syscall"
	"time"
)

// Route selects how a command is launched.
type Route string

const (
	// RouteDirect runs the command binary as-is.
	RouteDirect Route = "direct"

	// RoutePowerShell runs the command line through
	// "powershell -NoProfile -Command".
	RoutePowerShell Route = "powershell"

	// RouteWSL runs the command inside a WSL distribution via "wsl -e".
	RouteWSL Route = "wsl"
)

// DefaultGracePeriod is the time a terminated process is given to exit
// before it is force-killed.
const DefaultGracePeriod = 1 * time.Second

// Config holds the configuration for command execution.
type Config struct {
	// Command is the name or path of the command to execute (required)
	Command string

	// Args are the command-line arguments (optional)
	Args []string

	// Route selects the launch path (optional, defaults to RouteDirect)
	Route Route

	// Distro is the WSL distribution for RouteWSL (optional)
	// If empty, the default distribution is used.
	Distro string

	// WorkDir is the working directory for the command (optional)
	WorkDir string

	// Env specifies the environment variables in "KEY=value" format (optional)
	// If nil, the command inherits the parent process environment
	Env []string

	// Timeout specifies the maximum execution duration (optional)
	// If zero, no timeout is enforced (uses parent context)
	Timeout time.Duration

	// GracePeriod is how long a cancelled process may run after the
	// termination signal before it is force-killed (optional)
	// If zero, DefaultGracePeriod is used.
	GracePeriod time.Duration

	// StdinData is the data to send to the command's stdin (optional)
	StdinData []byte
}

// Result holds the result of command execution.
type Result struct {
	// Stdout contains the captured stdout
	Stdout []byte

	// Stderr contains the captured stderr
	Stderr []byte

	// ExitCode is the process exit code
	// 0 indicates success, non-zero indicates an error
	ExitCode int

	// Duration is the actual execution time
	Duration time.Duration
}

// StdoutLines returns stdout split into lines with carriage returns
// stripped. Empty trailing lines are dropped.
func (r *Result) StdoutLines() []string {
	return splitLines(r.Stdout)
}

// StderrLines returns stderr split into lines with carriage returns
// stripped. Empty trailing lines are dropped.
func (r *Result) StderrLines() []string {
	return splitLines(r.Stderr)
}

func splitLines(data []byte) []string {
	text := strings.TrimRight(string(data), "\r\n")
	if text == "" {
		return nil
	}
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		lines = append(lines, strings.TrimRight(line, "\r"))
	}
	return lines
}

// resolveArgv translates the configured route into the actual command and
// argument vector handed to the OS.
func resolveArgv(cfg Config) (string, []string) {
	switch cfg.Route {
	case RoutePowerShell:
		// PowerShell takes the full command line as a single string.
		line := cfg.Command
		if len(cfg.Args) > 0 {
			line += " " + strings.Join(cfg.Args, " ")
		}
		return "powershell", []string{"-NoProfile", "-Command", line}
	case RouteWSL:
		args := make([]string, 0, len(cfg.Args)+4)
		if cfg.Distro != "" {
			args = append(args, "-d", cfg.Distro)
		}
		args = append(args, "-e", cfg.Command)
		args = append(args, cfg.Args...)
		return "wsl", args
	default:
		return cfg.Command, cfg.Args
	}
}

// Run executes a command with the given configuration.
// It returns a Result containing stdout, stderr, exit code, and duration.
//
// The function respects context cancellation and the configured timeout.
// When the command is cancelled or times out, the process first receives a
// termination signal; if it is still alive after the grace period it is
// force-killed. On Windows the process is killed immediately since there is
// no portable termination signal.
//
// A non-zero exit code is not treated as an error - the Result is returned
// with the exit code populated. This allows the caller to decide how to
// handle non-zero exits. Only actual execution failures (binary not found,
// permission denied, etc.) return an error.
//
// Example:
//
//	ctx := context.Background()
//	cfg := Config{
//		Command: "nmap",
//		Args:    []string{"-sn", "192.168.1.0/24"},
//		Timeout: 30 * time.Second,
//	}
//	result, err := Run(ctx, cfg)
//	if err != nil {
//		// Execution failed (binary not found, etc.)
//		return err
//	}
//	if result.ExitCode != 0 {
//		// Command ran but failed
//		return fmt.Errorf("scan failed: %s", result.Stderr)
//	}
//	fmt.Println(string(result.Stdout))
func Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.Command == "" {
		return nil, errors.New("command is required")
	}

	// Create context with timeout if specified
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	name, args := resolveArgv(cfg)
	cmd := exec.CommandContext(ctx, name, args...)

	// Two-phase termination: signal first, kill after the grace period.
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	cmd.Cancel = func() error {
		if runtime.GOOS == "windows" {
			return cmd.Process.Kill()
		}
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = grace

	// Set working directory if specified
	if cfg.WorkDir != "" {
		cmd.Dir = cfg.WorkDir
	}

	// Set environment if specified
	if cfg.Env != nil {
		cmd.Env = cfg.Env
	}

	// Set up stdout and stderr capture
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Set up stdin if provided
	if len(cfg.StdinData) > 0 {
		cmd.Stdin = bytes.NewReader(cfg.StdinData)
	}

	// Record start time
	start := time.Now()

	// Execute command
	err := cmd.Run()
	duration := time.Since(start)

	// Build result
	result := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: 0,
		Duration: duration,
	}

	// Extract exit code if available
	if err != nil {
		// Check for context errors first (timeout/cancellation)
		if ctx.Err() == context.DeadlineExceeded {
			return result, fmt.Errorf("command timed out after %v", cfg.Timeout)
		}

		if ctx.Err() == context.Canceled {
			return result, fmt.Errorf("command cancelled")
		}

		// Check for normal exit with non-zero code
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Command ran but exited with non-zero code
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}

		// Other execution error (binary not found, permission denied, etc.)
		return result, fmt.Errorf("command execution failed: %w", err)
	}

	return result, nil
}

// BinaryExists checks if a binary exists in the system PATH.
// It returns true if the binary is found and executable, false otherwise.
//
// Example:
//
//	if !BinaryExists("nmap") {
//		return errors.New("nmap is not installed")
//	}
func BinaryExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// BinaryPath returns the full path to a binary in the system PATH.
// It returns an error if the binary is not found.
//
// Example:
//
//	path, err := BinaryPath("nmap")
//	if err != nil {
//		return fmt.Errorf("nmap not found: %w", err)
//	}
//	fmt.Printf("nmap is at: %s\n", path)
func BinaryPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("binary %q not found in PATH: %w", name, err)
	}
	return path, nil
}
