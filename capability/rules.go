package capability

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// Derived capability flags computed by Detect. Each flag answers one
// question about what the host can do with the tools it has.
const (
	FlagListInterfaces     = "can_list_interfaces"
	FlagShowRoutes         = "can_show_routes"
	FlagListSockets        = "can_list_sockets"
	FlagReadNeighbors      = "can_read_neighbors"
	FlagScanWifi           = "can_scan_wifi"
	FlagHostDiscoveryQuick = "can_host_discovery_quick"
	FlagHostDiscoveryFull  = "can_host_discovery_full"
)

// adminAdvisoryReason is attached to elevation-sensitive flags that are
// available but running without administrator privileges.
const adminAdvisoryReason = "Admin privileges recommended for full results"

// adminSensitiveFlags produce better results when the process is
// elevated, even though they work without it.
var adminSensitiveFlags = []string{FlagScanWifi, FlagHostDiscoveryFull}

// flagRule derives one capability flag from the probed tool set.
// Expr is a CEL expression over the tool(name) helper, which reports
// whether the named tool was found. Reason is recorded when the
// expression evaluates to false.
type flagRule struct {
	Flag   string
	Expr   string
	Reason string
}

var linuxFlagRules = []flagRule{
	{FlagListInterfaces, `tool("ip")`, "Missing tool: ip"},
	{FlagShowRoutes, `tool("ip")`, "Missing tool: ip"},
	{FlagListSockets, `tool("ss")`, "Missing tool: ss"},
	{FlagReadNeighbors, `tool("ip")`, "Missing tool: ip"},
	{FlagScanWifi, `tool("nmcli") || tool("iw")`, "Missing tool: nmcli or iw"},
	{FlagHostDiscoveryQuick, `tool("ip") || tool("ping")`, "Missing tool: ip or ping"},
	{FlagHostDiscoveryFull, `tool("nmap")`, "Missing tool: nmap"},
}

var windowsFlagRules = []flagRule{
	{FlagListInterfaces, `tool("Get-NetAdapter") || tool("ipconfig")`, "Missing PowerShell Get-NetAdapter or ipconfig"},
	{FlagShowRoutes, `tool("Get-NetRoute") || tool("route")`, "Missing PowerShell Get-NetRoute or route"},
	{FlagListSockets, `tool("Get-NetTCPConnection") || tool("netstat")`, "Missing PowerShell Get-NetTCPConnection or netstat"},
	{FlagReadNeighbors, `tool("Get-NetNeighbor") || tool("arp")`, "Missing PowerShell Get-NetNeighbor or arp"},
	{FlagScanWifi, `tool("netsh")`, "Missing tool: netsh"},
	{FlagHostDiscoveryQuick, `tool("arp") || tool("ping")`, "Missing tool: arp or ping"},
	{FlagHostDiscoveryFull, `tool("nmap") || tool("wsl")`, "Missing tool: nmap"},
}

// flagRulesFor returns the rule set for an operating system identified
// by its runtime.GOOS value. Unknown systems have no rules.
func flagRulesFor(goos string) []flagRule {
	switch goos {
	case "windows":
		return windowsFlagRules
	case "linux":
		return linuxFlagRules
	default:
		return nil
	}
}

// evalFlagRules evaluates each rule against the probed tool set and
// returns the resulting flags and reasons. A rule that fails to compile
// or evaluate leaves its flag false; the combined error is returned so
// the caller can log it.
func evalFlagRules(rules []flagRule, tools map[string]bool) (map[string]bool, map[string]string, error) {
	flags := make(map[string]bool, len(rules))
	reasons := make(map[string]string)
	if len(rules) == 0 {
		return flags, reasons, nil
	}

	env, err := cel.NewEnv(
		cel.Function("tool",
			cel.Overload("tool_string", []*cel.Type{cel.StringType}, cel.BoolType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					name, ok := val.Value().(string)
					if !ok {
						return types.Bool(false)
					}
					return types.Bool(tools[name])
				}),
			),
		),
	)
	if err != nil {
		return flags, reasons, fmt.Errorf("building rule environment: %w", err)
	}

	var errs []error
	for _, rule := range rules {
		enabled, err := evalBoolExpr(env, rule.Expr)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %s: %w", rule.Flag, err))
		}
		flags[rule.Flag] = enabled
		if !enabled {
			reasons[rule.Flag] = rule.Reason
		}
	}
	return flags, reasons, errors.Join(errs...)
}

// evalBoolExpr compiles and runs a single CEL expression that must
// produce a boolean.
func evalBoolExpr(env *cel.Env, expr string) (bool, error) {
	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return false, fmt.Errorf("compiling %q: %w", expr, iss.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return false, fmt.Errorf("building program for %q: %w", expr, err)
	}
	out, _, err := prg.Eval(cel.NoVars())
	if err != nil {
		return false, fmt.Errorf("evaluating %q: %w", expr, err)
	}
	enabled, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression %q did not produce a bool", expr)
	}
	return enabled, nil
}

// applyAdminAdvisories records the elevation advisory on sensitive
// flags that are available while the process is unprivileged. Existing
// reasons are kept.
func applyAdminAdvisories(snap *Snapshot) {
	if snap.IsAdmin {
		return
	}
	for _, flag := range adminSensitiveFlags {
		if !snap.Flags[flag] {
			continue
		}
		if _, ok := snap.Reasons[flag]; !ok {
			snap.Reasons[flag] = adminAdvisoryReason
		}
	}
}
