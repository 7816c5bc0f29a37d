package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allPresent(names ...string) map[string]bool {
	tools := make(map[string]bool, len(names))
	for _, name := range names {
		tools[name] = true
	}
	return tools
}

func TestEvalFlagRules_LinuxFullToolset(t *testing.T) {
	tools := allPresent("ip", "iw", "nmcli", "ss", "nmap", "arp-scan", "ethtool", "ping")

	flags, reasons, err := evalFlagRules(linuxFlagRules, tools)
	require.NoError(t, err)

	for _, rule := range linuxFlagRules {
		assert.True(t, flags[rule.Flag], "flag %s should be set", rule.Flag)
	}
	assert.Empty(t, reasons)
}

func TestEvalFlagRules_LinuxMissingTools(t *testing.T) {
	tests := []struct {
		name            string
		tools           map[string]bool
		expectedFlags   map[string]bool
		expectedReasons map[string]string
	}{
		{
			name:  "missing ip degrades interface flags but ping keeps quick discovery",
			tools: allPresent("iw", "nmcli", "ss", "nmap", "ping"),
			expectedFlags: map[string]bool{
				FlagListInterfaces:     false,
				FlagShowRoutes:         false,
				FlagListSockets:        true,
				FlagReadNeighbors:      false,
				FlagScanWifi:           true,
				FlagHostDiscoveryQuick: true,
				FlagHostDiscoveryFull:  true,
			},
			expectedReasons: map[string]string{
				FlagListInterfaces: "Missing tool: ip",
				FlagShowRoutes:     "Missing tool: ip",
				FlagReadNeighbors:  "Missing tool: ip",
			},
		},
		{
			name:  "iw alone still enables wifi scanning",
			tools: allPresent("ip", "iw", "ss", "nmap", "ping"),
			expectedFlags: map[string]bool{
				FlagListInterfaces:     true,
				FlagShowRoutes:         true,
				FlagListSockets:        true,
				FlagReadNeighbors:      true,
				FlagScanWifi:           true,
				FlagHostDiscoveryQuick: true,
				FlagHostDiscoveryFull:  true,
			},
			expectedReasons: map[string]string{},
		},
		{
			name:  "no wifi tools",
			tools: allPresent("ip", "ss", "nmap", "ping"),
			expectedFlags: map[string]bool{
				FlagListInterfaces:     true,
				FlagShowRoutes:         true,
				FlagListSockets:        true,
				FlagReadNeighbors:      true,
				FlagScanWifi:           false,
				FlagHostDiscoveryQuick: true,
				FlagHostDiscoveryFull:  true,
			},
			expectedReasons: map[string]string{
				FlagScanWifi: "Missing tool: nmcli or iw",
			},
		},
		{
			name:  "empty toolset disables everything",
			tools: map[string]bool{},
			expectedFlags: map[string]bool{
				FlagListInterfaces:     false,
				FlagShowRoutes:         false,
				FlagListSockets:        false,
				FlagReadNeighbors:      false,
				FlagScanWifi:           false,
				FlagHostDiscoveryQuick: false,
				FlagHostDiscoveryFull:  false,
			},
			expectedReasons: map[string]string{
				FlagListInterfaces:     "Missing tool: ip",
				FlagShowRoutes:         "Missing tool: ip",
				FlagListSockets:        "Missing tool: ss",
				FlagReadNeighbors:      "Missing tool: ip",
				FlagScanWifi:           "Missing tool: nmcli or iw",
				FlagHostDiscoveryQuick: "Missing tool: ip or ping",
				FlagHostDiscoveryFull:  "Missing tool: nmap",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags, reasons, err := evalFlagRules(linuxFlagRules, tt.tools)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedFlags, flags)
			assert.Equal(t, tt.expectedReasons, reasons)
		})
	}
}

func TestEvalFlagRules_WindowsFallbacks(t *testing.T) {
	tests := []struct {
		name            string
		tools           map[string]bool
		expectedFlags   map[string]bool
		expectedReasons map[string]string
	}{
		{
			name:  "classic tools cover for missing cmdlets",
			tools: allPresent("ipconfig", "route", "netstat", "arp", "netsh", "ping", "nmap"),
			expectedFlags: map[string]bool{
				FlagListInterfaces:     true,
				FlagShowRoutes:         true,
				FlagListSockets:        true,
				FlagReadNeighbors:      true,
				FlagScanWifi:           true,
				FlagHostDiscoveryQuick: true,
				FlagHostDiscoveryFull:  true,
			},
			expectedReasons: map[string]string{},
		},
		{
			name:  "wsl substitutes for nmap in full discovery",
			tools: allPresent("ipconfig", "route", "netstat", "arp", "netsh", "ping", "wsl"),
			expectedFlags: map[string]bool{
				FlagListInterfaces:     true,
				FlagShowRoutes:         true,
				FlagListSockets:        true,
				FlagReadNeighbors:      true,
				FlagScanWifi:           true,
				FlagHostDiscoveryQuick: true,
				FlagHostDiscoveryFull:  true,
			},
			expectedReasons: map[string]string{},
		},
		{
			name:  "bare host reports the powershell fallbacks",
			tools: map[string]bool{},
			expectedFlags: map[string]bool{
				FlagListInterfaces:     false,
				FlagShowRoutes:         false,
				FlagListSockets:        false,
				FlagReadNeighbors:      false,
				FlagScanWifi:           false,
				FlagHostDiscoveryQuick: false,
				FlagHostDiscoveryFull:  false,
			},
			expectedReasons: map[string]string{
				FlagListInterfaces:     "Missing PowerShell Get-NetAdapter or ipconfig",
				FlagShowRoutes:         "Missing PowerShell Get-NetRoute or route",
				FlagListSockets:        "Missing PowerShell Get-NetTCPConnection or netstat",
				FlagReadNeighbors:      "Missing PowerShell Get-NetNeighbor or arp",
				FlagScanWifi:           "Missing tool: netsh",
				FlagHostDiscoveryQuick: "Missing tool: arp or ping",
				FlagHostDiscoveryFull:  "Missing tool: nmap",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags, reasons, err := evalFlagRules(windowsFlagRules, tt.tools)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedFlags, flags)
			assert.Equal(t, tt.expectedReasons, reasons)
		})
	}
}

func TestEvalFlagRules_NoRules(t *testing.T) {
	flags, reasons, err := evalFlagRules(nil, map[string]bool{"ip": true})
	require.NoError(t, err)
	assert.Empty(t, flags)
	assert.Empty(t, reasons)
}

func TestEvalFlagRules_BrokenExpression(t *testing.T) {
	rules := []flagRule{
		{Flag: "broken", Expr: `tool(`, Reason: "unused"},
		{Flag: "working", Expr: `tool("ip")`, Reason: "Missing tool: ip"},
	}

	flags, _, err := evalFlagRules(rules, map[string]bool{"ip": true})
	require.Error(t, err)
	assert.False(t, flags["broken"])
	assert.True(t, flags["working"], "later rules still evaluate")
}

func TestFlagRulesFor(t *testing.T) {
	assert.Equal(t, windowsFlagRules, flagRulesFor("windows"))
	assert.Equal(t, linuxFlagRules, flagRulesFor("linux"))
	assert.Nil(t, flagRulesFor("darwin"))
}

func TestApplyAdminAdvisories(t *testing.T) {
	tests := []struct {
		name            string
		snap            *Snapshot
		expectedReasons map[string]string
	}{
		{
			name: "unprivileged host gets advisories on available flags",
			snap: &Snapshot{
				IsAdmin: false,
				Flags:   map[string]bool{FlagScanWifi: true, FlagHostDiscoveryFull: true},
				Reasons: map[string]string{},
			},
			expectedReasons: map[string]string{
				FlagScanWifi:          adminAdvisoryReason,
				FlagHostDiscoveryFull: adminAdvisoryReason,
			},
		},
		{
			name: "admin host gets no advisories",
			snap: &Snapshot{
				IsAdmin: true,
				Flags:   map[string]bool{FlagScanWifi: true, FlagHostDiscoveryFull: true},
				Reasons: map[string]string{},
			},
			expectedReasons: map[string]string{},
		},
		{
			name: "unavailable flags keep their missing tool reason",
			snap: &Snapshot{
				IsAdmin: false,
				Flags:   map[string]bool{FlagScanWifi: false, FlagHostDiscoveryFull: true},
				Reasons: map[string]string{FlagScanWifi: "Missing tool: netsh"},
			},
			expectedReasons: map[string]string{
				FlagScanWifi:          "Missing tool: netsh",
				FlagHostDiscoveryFull: adminAdvisoryReason,
			},
		},
		{
			name: "existing reason is not overwritten",
			snap: &Snapshot{
				IsAdmin: false,
				Flags:   map[string]bool{FlagHostDiscoveryFull: true},
				Reasons: map[string]string{FlagHostDiscoveryFull: "already explained"},
			},
			expectedReasons: map[string]string{
				FlagHostDiscoveryFull: "already explained",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applyAdminAdvisories(tt.snap)
			assert.Equal(t, tt.expectedReasons, tt.snap.Reasons)
		})
	}
}
