package feature

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// overlayFile is the on-disk shape of a feature overlay. Overlays let
// deployments extend or replace built-in matrix entries without a
// rebuild.
type overlayFile struct {
	Features []Definition `yaml:"features"`
}

// LoadOverlay reads feature definitions from a YAML overlay file.
// The file holds a top-level "features" list of definitions:
//
//	features:
//	  - key: recon.masscan
//	    support_by_os:
//	      windows: external_required
//	      linux: native
//	    requires_admin: true
//	    requires_tools: [masscan]
//	    recommended_path: Use WSL2 with masscan installed.
func LoadOverlay(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feature overlay: %w", err)
	}
	return ParseOverlay(data)
}

// ParseOverlay parses and validates feature definitions from YAML.
func ParseOverlay(data []byte) ([]Definition, error) {
	var file overlayFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse feature overlay: %w", err)
	}
	for i, def := range file.Features {
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("feature overlay entry %d: %w", i, err)
		}
	}
	return file.Features, nil
}

// Validate checks that a definition is internally consistent: the key
// is set and every OS key and support level is a declared value.
func (d Definition) Validate() error {
	if d.Key == "" {
		return fmt.Errorf("feature key is required")
	}
	for osKey, level := range d.Support {
		if !osKey.IsValid() {
			return fmt.Errorf("feature %q: unknown os key %q", d.Key, osKey)
		}
		if !level.IsValid() {
			return fmt.Errorf("feature %q: unknown support level %q for %s", d.Key, level, osKey)
		}
	}
	for osKey := range d.Notes {
		if !osKey.IsValid() {
			return fmt.Errorf("feature %q: unknown os key %q in notes", d.Key, osKey)
		}
	}
	return nil
}
