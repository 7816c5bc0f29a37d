package capability

import (
	"context"
	"os"
	"runtime"
	"strings"

	"github.com/netreaper/sdk/exec"
)

// CPUFlags returns the instruction set flags reported by the host CPU.
//
// On Linux the flags come from the "flags" line of /proc/cpuinfo. On
// Windows the flag set is not exposed, so a successful CPU query records
// the single marker "windows_generic" instead. Hosts where the probe
// fails return an empty set.
func CPUFlags(ctx context.Context) map[string]bool {
	flags := make(map[string]bool)

	switch runtime.GOOS {
	case "linux":
		data, err := os.ReadFile("/proc/cpuinfo")
		if err != nil {
			return flags
		}
		for _, line := range strings.Split(string(data), "\n") {
			if !strings.HasPrefix(strings.ToLower(line), "flags") {
				continue
			}
			_, rest, found := strings.Cut(line, ":")
			if found {
				for _, flag := range strings.Fields(rest) {
					flags[flag] = true
				}
			}
			break
		}
	case "windows":
		// wmic works even on stripped Windows builds.
		result, err := exec.Run(ctx, exec.Config{
			Command: "wmic",
			Args:    []string{"cpu", "get", "Name,Architecture"},
			Timeout: serviceProbeTimeout,
		})
		if err == nil && result.ExitCode == 0 {
			flags["windows_generic"] = true
		}
	}
	return flags
}

// IsLegacyCPU reports whether the host CPU should be treated as legacy
// hardware. Callers use this to disable expensive rendering or fall
// back to conservative scan defaults.
func IsLegacyCPU(ctx context.Context) bool {
	return legacyFromFlags(CPUFlags(ctx))
}

// legacyFromFlags classifies a flag set. Anything without guaranteed
// SSE4.2 is legacy, and the Windows generic marker always is because
// the real flag set is unknown there.
func legacyFromFlags(flags map[string]bool) bool {
	if !flags["sse4_2"] {
		return true
	}
	if flags["windows_generic"] {
		return true
	}
	return false
}
