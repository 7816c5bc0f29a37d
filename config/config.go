// Package config provides loading and parsing of reaper.yaml configuration files.
// A reaper.yaml tunes a netreaper deployment without code changes: logging,
// job history retention, feature matrix overlays, the optional Redis event
// relay, and diagnostics probing.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents a reaper.yaml configuration file.
type Config struct {
	// Identity
	Name    string `yaml:"name,omitempty"`
	Version string `yaml:"version,omitempty"`

	// LogLevel is the minimum level emitted by the SDK logger:
	// "debug", "info", "warn" or "error".
	// Default: info
	LogLevel string `yaml:"log_level,omitempty"`

	// Jobs configures the job manager.
	Jobs *JobsConfig `yaml:"jobs,omitempty"`

	// Features configures the support matrix.
	Features *FeaturesConfig `yaml:"features,omitempty"`

	// Relay configures the optional Redis event relay.
	Relay *RelayConfig `yaml:"relay,omitempty"`

	// Diagnostics configures the self-test harness and export.
	Diagnostics *DiagnosticsConfig `yaml:"diagnostics,omitempty"`
}

// GetLogLevel parses the configured log level.
// Returns slog.LevelInfo if not set or invalid.
func (c *Config) GetLogLevel() slog.Level {
	if c == nil {
		return slog.LevelInfo
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "", "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// JobsConfig configures the job manager.
type JobsConfig struct {
	// HistoryLimit caps the number of retained job results, evicting
	// the oldest once exceeded.
	// Default: 0 (unbounded)
	HistoryLimit int `yaml:"history_limit,omitempty"`

	// StopGrace is how long a terminated job subprocess may run after
	// the graceful stop signal before it is force-killed.
	// Format: Go duration string (e.g., "1s", "500ms")
	// Default: 1s
	StopGrace string `yaml:"stop_grace,omitempty"`
}

// GetHistoryLimit returns the configured history limit, or zero for
// unbounded when not set or negative.
func (j *JobsConfig) GetHistoryLimit() int {
	if j == nil || j.HistoryLimit <= 0 {
		return 0
	}
	return j.HistoryLimit
}

// GetStopGrace parses the stop grace string and returns a duration.
// Returns the default value if not set or invalid.
func (j *JobsConfig) GetStopGrace() time.Duration {
	if j == nil || j.StopGrace == "" {
		return time.Second
	}
	d, err := time.ParseDuration(j.StopGrace)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// FeaturesConfig configures the support matrix.
type FeaturesConfig struct {
	// Overlay is the path to a YAML file of feature definitions merged
	// over the built-in matrix at startup. Relative paths resolve
	// against the process working directory.
	Overlay string `yaml:"overlay,omitempty"`
}

// GetOverlay returns the overlay path, or empty when none is
// configured.
func (f *FeaturesConfig) GetOverlay() string {
	if f == nil {
		return ""
	}
	return f.Overlay
}

// RelayConfig configures the optional Redis event relay.
type RelayConfig struct {
	// Enabled turns the relay on. All other fields are ignored while
	// false.
	Enabled bool `yaml:"enabled,omitempty"`

	// URL is the Redis connection string.
	// Default: redis://localhost:6379
	URL string `yaml:"url,omitempty"`

	// EventList and ResultList are the Redis lists that retain the
	// most recent job events and results.
	// Defaults: netreaper:events, netreaper:results
	EventList  string `yaml:"event_list,omitempty"`
	ResultList string `yaml:"result_list,omitempty"`

	// EventChannel and ResultChannel are the pub/sub channels live
	// observers subscribe to.
	// Defaults: netreaper:events:live, netreaper:results:live
	EventChannel  string `yaml:"event_channel,omitempty"`
	ResultChannel string `yaml:"result_channel,omitempty"`

	// MaxListLength bounds the retained lists; older entries are
	// trimmed away.
	// Default: 1000
	MaxListLength int64 `yaml:"max_list_length,omitempty"`
}

// IsEnabled reports whether the relay is configured and turned on.
func (r *RelayConfig) IsEnabled() bool {
	return r != nil && r.Enabled
}

// GetURL returns the Redis URL or the default value.
func (r *RelayConfig) GetURL() string {
	if r == nil || r.URL == "" {
		return "redis://localhost:6379"
	}
	return r.URL
}

// GetEventList returns the event list key or the default value.
func (r *RelayConfig) GetEventList() string {
	if r == nil || r.EventList == "" {
		return "netreaper:events"
	}
	return r.EventList
}

// GetResultList returns the result list key or the default value.
func (r *RelayConfig) GetResultList() string {
	if r == nil || r.ResultList == "" {
		return "netreaper:results"
	}
	return r.ResultList
}

// GetEventChannel returns the event channel name or the default value.
func (r *RelayConfig) GetEventChannel() string {
	if r == nil || r.EventChannel == "" {
		return "netreaper:events:live"
	}
	return r.EventChannel
}

// GetResultChannel returns the result channel name or the default
// value.
func (r *RelayConfig) GetResultChannel() string {
	if r == nil || r.ResultChannel == "" {
		return "netreaper:results:live"
	}
	return r.ResultChannel
}

// GetMaxListLength returns the list bound or the default value.
func (r *RelayConfig) GetMaxListLength() int64 {
	if r == nil || r.MaxListLength <= 0 {
		return 1000
	}
	return r.MaxListLength
}

// DiagnosticsConfig configures the self-test harness and export.
type DiagnosticsConfig struct {
	// ProbeTimeout bounds how long each self-test probe waits for its
	// block to be observed.
	// Format: Go duration string (e.g., "4s")
	// Default: 4s
	ProbeTimeout string `yaml:"probe_timeout,omitempty"`

	// ExportPath is where the diagnostics JSON document is written.
	// Default: netreaper-diagnostics.json
	ExportPath string `yaml:"export_path,omitempty"`
}

// GetProbeTimeout parses the probe timeout string and returns a
// duration. Returns the default value if not set or invalid.
func (d *DiagnosticsConfig) GetProbeTimeout() time.Duration {
	if d == nil || d.ProbeTimeout == "" {
		return 4 * time.Second
	}
	t, err := time.ParseDuration(d.ProbeTimeout)
	if err != nil || t <= 0 {
		return 4 * time.Second
	}
	return t
}

// GetExportPath returns the export path or the default value.
func (d *DiagnosticsConfig) GetExportPath() string {
	if d == nil || d.ExportPath == "" {
		return "netreaper-diagnostics.json"
	}
	return d.ExportPath
}

// Load reads and parses a reaper.yaml file from the given path.
// If the path is a directory, it looks for reaper.yaml or reaper.yml in that directory.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	var configPath string
	if info.IsDir() {
		// Try reaper.yaml first, then reaper.yml
		yamlPath := filepath.Join(path, "reaper.yaml")
		if _, err := os.Stat(yamlPath); err == nil {
			configPath = yamlPath
		} else {
			ymlPath := filepath.Join(path, "reaper.yml")
			if _, err := os.Stat(ymlPath); err == nil {
				configPath = ymlPath
			} else {
				return nil, fmt.Errorf("no reaper.yaml or reaper.yml found in %s", path)
			}
		}
	} else {
		configPath = path
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// LoadFromDir searches for reaper.yaml starting from the given directory
// and walking up to parent directories until found or root is reached.
func LoadFromDir(dir string) (*Config, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	for {
		config, err := Load(absDir)
		if err == nil {
			return config, nil
		}

		// Move to parent directory
		parent := filepath.Dir(absDir)
		if parent == absDir {
			// Reached root
			return nil, fmt.Errorf("no reaper.yaml found in %s or parent directories", dir)
		}
		absDir = parent
	}
}

// LoadFromCurrentDir loads reaper.yaml from the current working directory.
func LoadFromCurrentDir() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	return LoadFromDir(cwd)
}
