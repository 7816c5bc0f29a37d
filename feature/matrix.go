package feature

import "sort"

// Matrix is an indexed collection of feature definitions. The zero
// value is not usable; construct one with NewMatrix or DefaultMatrix.
type Matrix struct {
	defs map[string]Definition
}

// NewMatrix builds a matrix from the given definitions. Later
// definitions replace earlier ones with the same key.
func NewMatrix(defs ...Definition) *Matrix {
	m := &Matrix{defs: make(map[string]Definition, len(defs))}
	m.Merge(defs...)
	return m
}

// Merge adds definitions to the matrix, replacing any existing entry
// with the same key. This is how configuration overlays extend or
// override the built-in matrix.
func (m *Matrix) Merge(defs ...Definition) {
	for _, def := range defs {
		m.defs[def.Key] = def
	}
}

// Lookup returns the definition for a feature key.
func (m *Matrix) Lookup(key string) (Definition, bool) {
	def, ok := m.defs[key]
	return def, ok
}

// Keys returns all feature keys in lexicographic order.
func (m *Matrix) Keys() []string {
	keys := make([]string, 0, len(m.defs))
	for key := range m.defs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// All returns every definition ordered by feature key.
func (m *Matrix) All() []Definition {
	keys := m.Keys()
	defs := make([]Definition, 0, len(keys))
	for _, key := range keys {
		defs = append(defs, m.defs[key])
	}
	return defs
}

// Len returns the number of definitions in the matrix.
func (m *Matrix) Len() int {
	return len(m.defs)
}

// ToSerializable returns the definitions ordered by key with nil
// collections normalized to empty ones, so a serialized matrix always
// shows every field of every definition, empty or not.
func (m *Matrix) ToSerializable() []Definition {
	defs := m.All()
	for i := range defs {
		if defs[i].Support == nil {
			defs[i].Support = map[OSKey]SupportLevel{}
		}
		if defs[i].RequiredTools == nil {
			defs[i].RequiredTools = []string{}
		}
		if defs[i].Notes == nil {
			defs[i].Notes = map[OSKey]string{}
		}
	}
	return defs
}

// DefaultMatrix returns the built-in support matrix covering the
// wireless, web, discovery, recon, and wizard feature families.
func DefaultMatrix() *Matrix {
	return NewMatrix(defaultDefinitions...)
}

var defaultDefinitions = []Definition{
	{
		Key:           "wireless.monitor_mode",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportExternalRequired, OSLinux: SupportNative},
		RequiresAdmin: true,
		RequiredTools: []string{"airmon-ng"},
		Notes: map[OSKey]string{
			OSWindows: "Monitor mode requires external Linux tooling.",
			OSLinux:   "Uses airmon-ng to toggle monitor mode.",
		},
		RecommendedPath: "Use WSL2 + USB Wi-Fi adapter with monitor mode support.",
	},
	{
		Key:           "wireless.packet_injection",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportExternalRequired, OSLinux: SupportNative},
		RequiresAdmin: true,
		RequiredTools: []string{"aireplay-ng"},
		Notes: map[OSKey]string{
			OSWindows: "Packet injection requires external Linux tooling.",
			OSLinux:   "Uses aireplay-ng for injection.",
		},
		RecommendedPath: "Use WSL2 + USB Wi-Fi adapter with injection support.",
	},
	{
		Key:           "wireless.wps_attack",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportExternalRequired, OSLinux: SupportNative},
		RequiresAdmin: true,
		RequiredTools: []string{"reaver"},
		Notes: map[OSKey]string{
			OSWindows: "WPS attacks require external Linux tooling.",
			OSLinux:   "Uses reaver for WPS attacks.",
		},
		RecommendedPath: "Use WSL2 + USB Wi-Fi adapter with monitor mode.",
	},
	{
		Key:           "wireless.handshake_capture",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportExternalRequired, OSLinux: SupportNative},
		RequiresAdmin: true,
		RequiredTools: []string{"airodump-ng"},
		Notes: map[OSKey]string{
			OSWindows: "Handshake capture requires external Linux tooling.",
			OSLinux:   "Uses airodump-ng for capture.",
		},
		RecommendedPath: "Use WSL2 + USB Wi-Fi adapter with monitor mode.",
	},
	{
		Key:           "wireless.airodump",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportExternalRequired, OSLinux: SupportNative},
		RequiresAdmin: true,
		RequiredTools: []string{"airodump-ng"},
		Notes: map[OSKey]string{
			OSWindows: "Wi-Fi capture requires external Linux tooling.",
			OSLinux:   "Uses airodump-ng for capture.",
		},
		RecommendedPath: "Use WSL2 + USB Wi-Fi adapter with monitor mode.",
	},
	{
		Key:           "wireless.bettercap",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportExternalRequired, OSLinux: SupportNative},
		RequiresAdmin: true,
		RequiredTools: []string{"bettercap"},
		Notes: map[OSKey]string{
			OSWindows: "Bettercap is Linux-first; Windows requires external tooling.",
			OSLinux:   "Uses bettercap for capture.",
		},
		RecommendedPath: "Use WSL2 + USB Wi-Fi adapter with monitor mode.",
	},
	{
		Key:           "wireless.wifite",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportExternalRequired, OSLinux: SupportNative},
		RequiresAdmin: true,
		RequiredTools: []string{"wifite"},
		Notes: map[OSKey]string{
			OSWindows: "Wifite requires external Linux tooling.",
			OSLinux:   "Uses wifite for automated attacks.",
		},
		RecommendedPath: "Use WSL2 + USB Wi-Fi adapter with monitor mode.",
	},
	{
		Key:           "wireless.aircrack",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportExternalRequired, OSLinux: SupportNative},
		RequiresAdmin: false,
		RequiredTools: []string{"aircrack-ng"},
		Notes: map[OSKey]string{
			OSWindows: "Aircrack-ng is Linux-first; use external tooling on Windows.",
			OSLinux:   "Uses aircrack-ng for cracking.",
		},
		RecommendedPath: "Use WSL2 with aircrack-ng installed.",
	},
	{
		Key:           "wireless.hashcat",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportNative, OSLinux: SupportNative},
		RequiresAdmin: false,
		RequiredTools: []string{"hashcat"},
		Notes: map[OSKey]string{
			OSWindows: "Hashcat requires GPU drivers if available.",
			OSLinux:   "Hashcat requires GPU drivers if available.",
		},
		RecommendedPath: "Install hashcat for your platform.",
	},
	{
		Key:           "wireless.convert_handshake",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportExternalRequired, OSLinux: SupportNative},
		RequiresAdmin: false,
		RequiredTools: []string{"hcxpcapngtool"},
		Notes: map[OSKey]string{
			OSWindows: "Conversion tool requires external Linux tooling.",
			OSLinux:   "Uses hcxpcapngtool for conversion.",
		},
		RecommendedPath: "Use WSL2 with hcxpcapngtool installed.",
	},
	{
		Key:           "web.sqlmap",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportExternalRequired, OSLinux: SupportNative},
		RequiresAdmin: false,
		RequiredTools: []string{"sqlmap"},
		Notes: map[OSKey]string{
			OSWindows: "SQLmap is Linux-first; use external tooling on Windows.",
			OSLinux:   "Uses sqlmap for SQL injection testing.",
		},
		RecommendedPath: "Use WSL2 with sqlmap installed.",
	},
	{
		Key:           "web.nikto",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportExternalRequired, OSLinux: SupportNative},
		RequiresAdmin: false,
		RequiredTools: []string{"nikto"},
		Notes: map[OSKey]string{
			OSWindows: "Nikto is Linux-first; use external tooling on Windows.",
			OSLinux:   "Uses nikto for web scanning.",
		},
		RecommendedPath: "Use WSL2 with nikto installed.",
	},
	{
		Key:           "web.nuclei",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportExternalRequired, OSLinux: SupportNative},
		RequiresAdmin: false,
		RequiredTools: []string{"nuclei"},
		Notes: map[OSKey]string{
			OSWindows: "Nuclei is Linux-first; use external tooling on Windows.",
			OSLinux:   "Uses nuclei for template scanning.",
		},
		RecommendedPath: "Use WSL2 with nuclei installed.",
	},
	{
		Key:           "web.xsstrike",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportExternalRequired, OSLinux: SupportNative},
		RequiresAdmin: false,
		RequiredTools: []string{"xsstrike"},
		Notes: map[OSKey]string{
			OSWindows: "XSStrike is Linux-first; use external tooling on Windows.",
			OSLinux:   "Uses XSStrike for XSS testing.",
		},
		RecommendedPath: "Use WSL2 with xsstrike installed.",
	},
	{
		Key:           "web.commix",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportExternalRequired, OSLinux: SupportNative},
		RequiresAdmin: false,
		RequiredTools: []string{"commix"},
		Notes: map[OSKey]string{
			OSWindows: "Commix is Linux-first; use external tooling on Windows.",
			OSLinux:   "Uses commix for command injection testing.",
		},
		RecommendedPath: "Use WSL2 with commix installed.",
	},
	{
		Key:           "web.gobuster",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportExternalRequired, OSLinux: SupportNative},
		RequiresAdmin: false,
		RequiredTools: []string{"gobuster"},
		Notes: map[OSKey]string{
			OSWindows: "Gobuster is Linux-first; use external tooling on Windows.",
			OSLinux:   "Uses gobuster for directory fuzzing.",
		},
		RecommendedPath: "Use WSL2 with gobuster installed.",
	},
	{
		Key:           "web.dirb",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportExternalRequired, OSLinux: SupportNative},
		RequiresAdmin: false,
		RequiredTools: []string{"dirb"},
		Notes: map[OSKey]string{
			OSWindows: "Dirb is Linux-first; use external tooling on Windows.",
			OSLinux:   "Uses dirb for directory fuzzing.",
		},
		RecommendedPath: "Use WSL2 with dirb installed.",
	},
	{
		Key:           "web.feroxbuster",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportExternalRequired, OSLinux: SupportNative},
		RequiresAdmin: false,
		RequiredTools: []string{"feroxbuster"},
		Notes: map[OSKey]string{
			OSWindows: "Feroxbuster is Linux-first; use external tooling on Windows.",
			OSLinux:   "Uses feroxbuster for directory fuzzing.",
		},
		RecommendedPath: "Use WSL2 with feroxbuster installed.",
	},
	{
		Key:           "discovery.nmap_full",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportNative, OSLinux: SupportNative},
		RequiresAdmin: true,
		RequiredTools: []string{"nmap"},
		Notes: map[OSKey]string{
			OSWindows: "Full scans require admin privileges.",
			OSLinux:   "Full scans require root privileges.",
		},
		RecommendedPath: "Install nmap and run the GUI as admin/root.",
	},
	{
		Key:           "discovery.nmap_standard",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportNative, OSLinux: SupportNative},
		RequiresAdmin: false,
		RequiredTools: []string{"nmap"},
		Notes: map[OSKey]string{
			OSWindows: "Requires nmap installed.",
			OSLinux:   "Requires nmap installed.",
		},
		RecommendedPath: "Install nmap for your platform.",
	},
	{
		Key:           "recon.netdiscover",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportExternalRequired, OSLinux: SupportNative},
		RequiresAdmin: true,
		RequiredTools: []string{"netdiscover"},
		Notes: map[OSKey]string{
			OSWindows: "Netdiscover is Linux-first; use external tooling on Windows.",
			OSLinux:   "Uses netdiscover for LAN discovery.",
		},
		RecommendedPath: "Use WSL2 with netdiscover installed.",
	},
	{
		Key:           "recon.arp_scan",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportExternalRequired, OSLinux: SupportNative},
		RequiresAdmin: true,
		RequiredTools: []string{"arp-scan"},
		Notes: map[OSKey]string{
			OSWindows: "ARP scan tool is Linux-first; use external tooling on Windows.",
			OSLinux:   "Uses arp-scan for LAN discovery.",
		},
		RecommendedPath: "Use WSL2 with arp-scan installed.",
	},
	{
		Key:           "recon.nmap_ping",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportNative, OSLinux: SupportNative},
		RequiresAdmin: false,
		RequiredTools: []string{"nmap"},
		Notes: map[OSKey]string{
			OSWindows: "Requires nmap installed.",
			OSLinux:   "Requires nmap installed.",
		},
		RecommendedPath: "Install nmap for your platform.",
	},
	{
		Key:           "recon.dnsenum",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportExternalRequired, OSLinux: SupportNative},
		RequiresAdmin: false,
		RequiredTools: []string{"dnsenum"},
		Notes: map[OSKey]string{
			OSWindows: "dnsenum is Linux-first; use external tooling on Windows.",
			OSLinux:   "Uses dnsenum for DNS enumeration.",
		},
		RecommendedPath: "Use WSL2 with dnsenum installed.",
	},
	{
		Key:           "recon.dnsrecon",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportExternalRequired, OSLinux: SupportNative},
		RequiresAdmin: false,
		RequiredTools: []string{"dnsrecon"},
		Notes: map[OSKey]string{
			OSWindows: "dnsrecon is Linux-first; use external tooling on Windows.",
			OSLinux:   "Uses dnsrecon for DNS enumeration.",
		},
		RecommendedPath: "Use WSL2 with dnsrecon installed.",
	},
	{
		Key:           "recon.sslscan",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportExternalRequired, OSLinux: SupportNative},
		RequiresAdmin: false,
		RequiredTools: []string{"sslscan"},
		Notes: map[OSKey]string{
			OSWindows: "sslscan is Linux-first; use external tooling on Windows.",
			OSLinux:   "Uses sslscan for TLS inspection.",
		},
		RecommendedPath: "Use WSL2 with sslscan installed.",
	},
	{
		Key:           "recon.sslyze",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportExternalRequired, OSLinux: SupportNative},
		RequiresAdmin: false,
		RequiredTools: []string{"sslyze"},
		Notes: map[OSKey]string{
			OSWindows: "sslyze is Linux-first; use external tooling on Windows.",
			OSLinux:   "Uses sslyze for TLS inspection.",
		},
		RecommendedPath: "Use WSL2 with sslyze installed.",
	},
	{
		Key:           "recon.onesixtyone",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportExternalRequired, OSLinux: SupportNative},
		RequiresAdmin: false,
		RequiredTools: []string{"onesixtyone"},
		Notes: map[OSKey]string{
			OSWindows: "onesixtyone is Linux-first; use external tooling on Windows.",
			OSLinux:   "Uses onesixtyone for SNMP sweep.",
		},
		RecommendedPath: "Use WSL2 with onesixtyone installed.",
	},
	{
		Key:           "recon.enum4linux",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportExternalRequired, OSLinux: SupportNative},
		RequiresAdmin: false,
		RequiredTools: []string{"enum4linux"},
		Notes: map[OSKey]string{
			OSWindows: "enum4linux is Linux-first; use external tooling on Windows.",
			OSLinux:   "Uses enum4linux for SMB enumeration.",
		},
		RecommendedPath: "Use WSL2 with enum4linux installed.",
	},
	{
		Key:           "wizard.reaper_mode",
		Support:       map[OSKey]SupportLevel{OSWindows: SupportExternalRequired, OSLinux: SupportNative},
		RequiresAdmin: false,
		RequiredTools: []string{"netreaper"},
		Notes: map[OSKey]string{
			OSWindows: "Wizard flows rely on Linux CLI tooling.",
			OSLinux:   "Uses netreaper CLI wizard flows.",
		},
		RecommendedPath: "Use WSL2 and run the netreaper CLI there.",
	},
}
