package exec

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestRun_Success(t *testing.T) {
	tests := []struct {
		name           string
		cfg            Config
		expectedStdout string
		expectedCode   int
	}{
		{
			name: "simple echo",
			cfg: Config{
				Command: "echo",
				Args:    []string{"hello", "world"},
			},
			expectedStdout: "hello world\n",
			expectedCode:   0,
		},
		{
			name: "echo without args",
			cfg: Config{
				Command: "echo",
			},
			expectedStdout: "\n",
			expectedCode:   0,
		},
		{
			name: "explicit direct route",
			cfg: Config{
				Command: "echo",
				Args:    []string{"-n", "routed"},
				Route:   RouteDirect,
			},
			expectedStdout: "routed",
			expectedCode:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			result, err := Run(ctx, tt.cfg)

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if result == nil {
				t.Fatal("expected result, got nil")
			}

			if result.ExitCode != tt.expectedCode {
				t.Errorf("expected exit code %d, got %d", tt.expectedCode, result.ExitCode)
			}

			stdout := string(result.Stdout)
			if stdout != tt.expectedStdout {
				t.Errorf("expected stdout %q, got %q", tt.expectedStdout, stdout)
			}

			if result.Duration <= 0 {
				t.Error("expected positive duration")
			}
		})
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	// Use sh with exit command to guarantee non-zero exit
	cfg := Config{
		Command: "sh",
		Args:    []string{"-c", "echo error message >&2; exit 42"},
	}

	ctx := context.Background()
	result, err := Run(ctx, cfg)

	// Non-zero exit should NOT return an error
	if err != nil {
		t.Fatalf("unexpected error for non-zero exit: %v", err)
	}

	if result.ExitCode != 42 {
		t.Errorf("expected exit code 42, got %d", result.ExitCode)
	}

	stderr := string(result.Stderr)
	if !strings.Contains(stderr, "error message") {
		t.Errorf("expected stderr to contain 'error message', got %q", stderr)
	}
}

func TestRun_Timeout(t *testing.T) {
	cfg := Config{
		Command: "sleep",
		Args:    []string{"10"},
		Timeout: 100 * time.Millisecond,
	}

	ctx := context.Background()
	start := time.Now()
	result, err := Run(ctx, cfg)
	duration := time.Since(start)

	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}

	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected timeout error message, got: %v", err)
	}

	// Termination signal plus grace period, not the full sleep
	if duration > 3*time.Second {
		t.Errorf("timeout took too long: %v", duration)
	}

	if result == nil {
		t.Error("expected result even on timeout")
	}
}

func TestRun_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := Config{
		Command: "sleep",
		Args:    []string{"10"},
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	result, err := Run(ctx, cfg)
	duration := time.Since(start)

	if err == nil {
		t.Fatal("expected cancellation error, got nil")
	}

	if !strings.Contains(err.Error(), "cancelled") {
		t.Errorf("expected cancelled error message, got: %v", err)
	}

	if duration > 3*time.Second {
		t.Errorf("cancellation took too long: %v", duration)
	}

	if result == nil {
		t.Error("expected result even on cancellation")
	}
}

func TestRun_GracePeriodIgnoringTerm(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("termination signals are not used on windows")
	}

	// The child traps SIGTERM, so only the force-kill after the grace
	// period can end it.
	cfg := Config{
		Command:     "sh",
		Args:        []string{"-c", "trap '' TERM; sleep 10"},
		Timeout:     200 * time.Millisecond,
		GracePeriod: 300 * time.Millisecond,
	}

	ctx := context.Background()
	start := time.Now()
	_, err := Run(ctx, cfg)
	duration := time.Since(start)

	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}

	if duration < 400*time.Millisecond {
		t.Errorf("expected run to last at least timeout+grace, got %v", duration)
	}
	if duration > 3*time.Second {
		t.Errorf("force kill did not fire, run took %v", duration)
	}
}

func TestRun_WithWorkDir(t *testing.T) {
	tmpDir := t.TempDir()

	var cmd string
	if runtime.GOOS == "windows" {
		cmd = "cd"
	} else {
		cmd = "pwd"
	}

	cfg := Config{
		Command: cmd,
		WorkDir: tmpDir,
	}

	ctx := context.Background()
	result, err := Run(ctx, cfg)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.ExitCode != 0 {
		t.Fatalf("command failed with exit code %d: %s", result.ExitCode, result.Stderr)
	}

	stdout := strings.TrimSpace(string(result.Stdout))
	if !strings.Contains(stdout, tmpDir) {
		t.Errorf("expected working dir %q in output, got %q", tmpDir, stdout)
	}
}

func TestRun_WithEnv(t *testing.T) {
	cfg := Config{
		Command: "sh",
		Args:    []string{"-c", "echo $TEST_VAR"},
		Env:     []string{"TEST_VAR=test_value"},
	}

	ctx := context.Background()
	result, err := Run(ctx, cfg)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stdout := strings.TrimSpace(string(result.Stdout))
	if stdout != "test_value" {
		t.Errorf("expected 'test_value', got %q", stdout)
	}
}

func TestRun_WithStdin(t *testing.T) {
	cfg := Config{
		Command:   "cat",
		StdinData: []byte("hello from stdin"),
	}

	ctx := context.Background()
	result, err := Run(ctx, cfg)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stdout := string(result.Stdout)
	if stdout != "hello from stdin" {
		t.Errorf("expected 'hello from stdin', got %q", stdout)
	}
}

func TestRun_BinaryNotFound(t *testing.T) {
	cfg := Config{
		Command: "this-binary-does-not-exist-12345",
	}

	ctx := context.Background()
	result, err := Run(ctx, cfg)

	if err == nil {
		t.Fatal("expected error for missing binary, got nil")
	}

	if !strings.Contains(err.Error(), "execution failed") {
		t.Errorf("expected 'execution failed' in error, got: %v", err)
	}

	if result == nil {
		t.Error("expected result even on error")
	}
}

func TestRun_EmptyCommand(t *testing.T) {
	cfg := Config{
		Command: "",
	}

	ctx := context.Background()
	result, err := Run(ctx, cfg)

	if err == nil {
		t.Fatal("expected error for empty command, got nil")
	}

	if !strings.Contains(err.Error(), "command is required") {
		t.Errorf("expected 'command is required' in error, got: %v", err)
	}

	if result != nil {
		t.Error("expected nil result for empty command")
	}
}

func TestResolveArgv(t *testing.T) {
	tests := []struct {
		name         string
		cfg          Config
		expectedName string
		expectedArgs []string
	}{
		{
			name:         "direct passthrough",
			cfg:          Config{Command: "nmap", Args: []string{"-sn", "10.0.0.0/24"}},
			expectedName: "nmap",
			expectedArgs: []string{"-sn", "10.0.0.0/24"},
		},
		{
			name:         "powershell joins command line",
			cfg:          Config{Command: "Get-NetAdapter", Args: []string{"|", "Format-List"}, Route: RoutePowerShell},
			expectedName: "powershell",
			expectedArgs: []string{"-NoProfile", "-Command", "Get-NetAdapter | Format-List"},
		},
		{
			name:         "wsl without distro",
			cfg:          Config{Command: "ip", Args: []string{"addr"}, Route: RouteWSL},
			expectedName: "wsl",
			expectedArgs: []string{"-e", "ip", "addr"},
		},
		{
			name:         "wsl with distro",
			cfg:          Config{Command: "iw", Args: []string{"dev"}, Route: RouteWSL, Distro: "Ubuntu"},
			expectedName: "wsl",
			expectedArgs: []string{"-d", "Ubuntu", "-e", "iw", "dev"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, args := resolveArgv(tt.cfg)
			if name != tt.expectedName {
				t.Errorf("expected command %q, got %q", tt.expectedName, name)
			}
			if len(args) != len(tt.expectedArgs) {
				t.Fatalf("expected args %v, got %v", tt.expectedArgs, args)
			}
			for i := range args {
				if args[i] != tt.expectedArgs[i] {
					t.Errorf("arg %d: expected %q, got %q", i, tt.expectedArgs[i], args[i])
				}
			}
		})
	}
}

func TestResultLines(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected []string
	}{
		{
			name:     "empty output",
			data:     nil,
			expected: nil,
		},
		{
			name:     "single line with newline",
			data:     []byte("eth0\n"),
			expected: []string{"eth0"},
		},
		{
			name:     "multiple lines",
			data:     []byte("eth0\nwlan0\nlo\n"),
			expected: []string{"eth0", "wlan0", "lo"},
		},
		{
			name:     "windows line endings",
			data:     []byte("Ethernet\r\nWi-Fi\r\n"),
			expected: []string{"Ethernet", "Wi-Fi"},
		},
		{
			name:     "interior blank lines preserved",
			data:     []byte("a\n\nb\n"),
			expected: []string{"a", "", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Result{Stdout: tt.data}
			lines := r.StdoutLines()
			if len(lines) != len(tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, lines)
			}
			for i := range lines {
				if lines[i] != tt.expected[i] {
					t.Errorf("line %d: expected %q, got %q", i, tt.expected[i], lines[i])
				}
			}
		})
	}
}

func TestBinaryExists(t *testing.T) {
	tests := []struct {
		name     string
		binary   string
		expected bool
	}{
		{
			name:     "echo exists",
			binary:   "echo",
			expected: true,
		},
		{
			name:     "sh exists",
			binary:   "sh",
			expected: runtime.GOOS != "windows",
		},
		{
			name:     "nonexistent binary",
			binary:   "this-binary-does-not-exist-12345",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exists := BinaryExists(tt.binary)
			if exists != tt.expected {
				t.Errorf("BinaryExists(%q) = %v, expected %v", tt.binary, exists, tt.expected)
			}
		})
	}
}

func TestBinaryPath(t *testing.T) {
	path, err := BinaryPath("echo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path == "" {
		t.Error("expected non-empty path")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("path %q does not exist: %v", path, err)
	}

	if _, err := BinaryPath("this-binary-does-not-exist-12345"); err == nil {
		t.Fatal("expected error for nonexistent binary")
	} else if !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected 'not found' in error, got: %v", err)
	}
}

// Benchmark tests
func BenchmarkRun_SimpleEcho(b *testing.B) {
	cfg := Config{
		Command: "echo",
		Args:    []string{"hello"},
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := Run(ctx, cfg)
		if err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
	}
}

func BenchmarkBinaryExists(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = BinaryExists("echo")
	}
}

// Example tests (shown in godoc)
func ExampleRun() {
	ctx := context.Background()
	cfg := Config{
		Command: "echo",
		Args:    []string{"hello", "world"},
		Timeout: 5 * time.Second,
	}

	result, err := Run(ctx, cfg)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("Exit code: %d\n", result.ExitCode)
	fmt.Printf("Output: %s", result.Stdout)
	// Output:
	// Exit code: 0
	// Output: hello world
}

func ExampleBinaryExists() {
	if BinaryExists("echo") {
		fmt.Println("echo is available")
	} else {
		fmt.Println("echo is not available")
	}
	// Output: echo is available
}
