// Package config loads the similarity index's configuration knobs
// from a YAML file, overlaying them on the orchestrator's defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/simdex/simdex/internal/orchestrator"
)

// Load reads path as YAML into a copy of orchestrator.DefaultConfig.
// A missing path is not an error: Load simply returns the defaults.
// Fields absent from the YAML document keep their default value.
func Load(path string) (orchestrator.Config, error) {
	cfg := orchestrator.DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}
