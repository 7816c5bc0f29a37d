package job

import (
	"context"

	"github.com/netreaper/sdk/exec"
)

// Command adapts an exec configuration into an ExecuteFunc, so a spec
// can shell out to an external tool without writing the plumbing by
// hand. Captured output is split into lines and the wall time is
// carried into the execution result.
//
// Launch failures (binary not found, timeout, cancellation) surface as
// a result with a non-zero return code and the error message set; they
// never panic.
//
// Example:
//
//	spec := job.Spec{
//		Name:     "Quick Scan",
//		Category: "discovery",
//		Execute: job.Command(exec.Config{
//			Command: "nmap",
//			Args:    []string{"-sn", "192.168.1.0/24"},
//			Timeout: 30 * time.Second,
//		}),
//		Parse:    parseScan,
//		UIUpdate: updateScanView,
//	}
func Command(cfg exec.Config) ExecuteFunc {
	return func(ctx context.Context) ExecutionResult {
		result, err := exec.Run(ctx, cfg)
		if result == nil {
			out := ExecutionResult{Returncode: -1}
			if err != nil {
				out.Error = err.Error()
			}
			return out
		}

		execResult := ExecutionResult{
			Returncode: result.ExitCode,
			Stdout:     result.StdoutLines(),
			Stderr:     result.StderrLines(),
			Elapsed:    result.Duration.Seconds(),
		}
		if err != nil {
			execResult.Error = err.Error()
			if execResult.Returncode == 0 {
				execResult.Returncode = -1
			}
		}
		return execResult
	}
}
