package capability

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/netreaper/sdk/exec"
)

// Probe timeouts. Every helper process a probe launches is bounded so
// detection completes quickly even when a tool hangs.
const (
	cmdletProbeTimeout  = 3 * time.Second
	serviceProbeTimeout = 2 * time.Second
	adminProbeTimeout   = 2 * time.Second
)

// Tool sets probed per operating system. Windows additionally probes
// WSL, the npcap service, and the PowerShell networking cmdlets.
var (
	linuxTools = []string{"ip", "iw", "nmcli", "ss", "nmap", "arp-scan", "ethtool", "ping"}

	windowsTools = []string{"ipconfig", "getmac", "route", "netsh", "arp", "netstat", "ping", "powershell", "nmap"}

	windowsCmdlets = []string{
		"Get-NetAdapter",
		"Get-NetIPAddress",
		"Get-NetRoute",
		"Get-NetTCPConnection",
		"Get-NetUDPEndpoint",
		"Get-NetNeighbor",
	}
)

type options struct {
	logger *slog.Logger
}

// Option configures Detect.
type Option func(*options)

// WithLogger sets the logger Detect uses to report probe activity.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Detect probes the host and returns a capability snapshot.
//
// Detection never fails: probes that error or time out record their
// capability as absent and detection continues. The returned snapshot
// reflects the host at the time of the call and does not update
// afterwards.
//
// Example:
//
//	snap := capability.Detect(ctx)
//	if snap.Flag(capability.FlagScanWifi) {
//		// host can enumerate nearby wireless networks
//	}
func Detect(ctx context.Context, opts ...Option) *Snapshot {
	cfg := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	snap := NewSnapshot()
	snap.Platform = platformName()
	snap.IsWindows = runtime.GOOS == "windows"
	snap.IsLinux = runtime.GOOS == "linux"
	snap.IsWSL = insideWSL()
	if snap.IsWindows {
		snap.IsAdmin = probeAdminWindows(ctx)
	} else {
		snap.IsAdmin = probeAdminUnix()
	}

	switch {
	case snap.IsLinux:
		for _, tool := range linuxTools {
			snap.Tools[tool] = exec.BinaryExists(tool)
		}
	case snap.IsWindows:
		for _, tool := range windowsTools {
			snap.Tools[tool] = exec.BinaryExists(tool)
		}
		snap.Tools["wsl"] = exec.BinaryExists("wsl")
		snap.Tools["npcap"] = probeNpcapService(ctx)
		for _, cmdlet := range windowsCmdlets {
			snap.Tools[cmdlet] = probeCmdlet(ctx, cmdlet)
		}
	}

	flags, reasons, err := evalFlagRules(flagRulesFor(runtime.GOOS), snap.Tools)
	if err != nil {
		cfg.logger.Warn("capability rule evaluation degraded", "error", err)
	}
	snap.Flags = flags
	snap.Reasons = reasons
	applyAdminAdvisories(snap)

	cfg.logger.Debug("capability snapshot ready",
		"platform", snap.Platform,
		"is_wsl", snap.IsWSL,
		"is_admin", snap.IsAdmin,
		"tools_probed", len(snap.Tools),
	)
	return snap
}

// platformName maps runtime.GOOS to the display name reported in
// snapshots.
func platformName() string {
	switch runtime.GOOS {
	case "windows":
		return "Windows"
	case "linux":
		return "Linux"
	case "darwin":
		return "Darwin"
	default:
		return runtime.GOOS
	}
}

// insideWSL reports whether the process is running inside a WSL
// distribution, detected through the interop environment variables the
// WSL init process sets.
func insideWSL() bool {
	return os.Getenv("WSL_INTEROP") != "" || os.Getenv("WSL_DISTRO_NAME") != ""
}

// probeAdminUnix reports whether the process runs as root. The check
// uses the effective user ID, so setuid binaries report true.
func probeAdminUnix() bool {
	return os.Geteuid() == 0
}

// probeAdminWindows reports whether the process runs elevated.
// `net session` requires an elevated token and exits non-zero without
// one, which makes it a reliable check on stock installs.
func probeAdminWindows(ctx context.Context) bool {
	result, err := exec.Run(ctx, exec.Config{
		Command: "net",
		Args:    []string{"session"},
		Timeout: adminProbeTimeout,
	})
	return err == nil && result.ExitCode == 0
}

// probeCmdlet reports whether a PowerShell cmdlet resolves on this
// host. Get-Command exits non-zero for unknown cmdlets.
func probeCmdlet(ctx context.Context, cmdlet string) bool {
	result, err := exec.Run(ctx, exec.Config{
		Command: "Get-Command",
		Args:    []string{cmdlet},
		Route:   exec.RoutePowerShell,
		Timeout: cmdletProbeTimeout,
	})
	return err == nil && result.ExitCode == 0
}

// probeNpcapService reports whether the npcap packet capture service is
// installed and running.
func probeNpcapService(ctx context.Context) bool {
	result, err := exec.Run(ctx, exec.Config{
		Command: "sc",
		Args:    []string{"query", "npcap"},
		Timeout: serviceProbeTimeout,
	})
	if err != nil || result.ExitCode != 0 {
		return false
	}
	return strings.Contains(strings.ToUpper(string(result.Stdout)), "RUNNING")
}
