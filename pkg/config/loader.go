package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// load reads the YAML file (if present), expands environment variables, and
// merges built-in defaults underneath the user-supplied values.
func load(configPath string) (*Config, error) {
	cfg := &Config{}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// No file: run on defaults alone.
		case err != nil:
			return nil, fmt.Errorf("read %s: %w", configPath, err)
		default:
			expanded := ExpandEnv(data)
			if err := yaml.Unmarshal(expanded, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", configPath, err)
			}
		}
	}

	if err := applyDefaults(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return cfg, nil
}

// applyDefaults fills unset fields from the built-in defaults. User values
// always win over defaults.
func applyDefaults(cfg *Config) error {
	if cfg.System == nil {
		cfg.System = &SystemConfig{}
	}
	if err := mergo.Merge(cfg.System, DefaultSystemConfig()); err != nil {
		return fmt.Errorf("merge system defaults: %w", err)
	}

	if cfg.Poller == nil {
		cfg.Poller = &PollerConfig{}
	}
	if err := mergo.Merge(cfg.Poller, DefaultPollerConfig()); err != nil {
		return fmt.Errorf("merge poller defaults: %w", err)
	}

	if cfg.Workflow != nil {
		if err := mergo.Merge(&cfg.Workflow.StatusNames, DefaultStatusNames()); err != nil {
			return fmt.Errorf("merge status name defaults: %w", err)
		}
	}
	return nil
}
