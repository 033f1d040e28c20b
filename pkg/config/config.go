// Package config loads and validates orchestrator configuration: system
// settings, poller knobs, and the bootstrap per-project workflow
// configuration. Per-project configs created at runtime live in the
// settings store, not here.
package config

import (
	"fmt"
	"log/slog"
)

// Config is the fully loaded and validated configuration.
type Config struct {
	System   *SystemConfig          `yaml:"system"`
	Poller   *PollerConfig          `yaml:"poller"`
	Workflow *WorkflowConfiguration `yaml:"workflow"`
}

// Initialize loads, merges defaults into, and validates configuration from
// configPath. A missing file yields pure defaults (workflow unset).
func Initialize(configPath string) (*Config, error) {
	log := slog.With("config_path", configPath)
	log.Info("Initializing configuration")

	cfg, err := load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized",
		"http_port", cfg.System.HTTPPort,
		"poll_interval", cfg.Poller.Interval,
		"has_workflow", cfg.Workflow != nil)
	return cfg, nil
}

func validate(cfg *Config) error {
	if err := validateSystem(cfg.System); err != nil {
		return fmt.Errorf("system validation failed: %w", err)
	}
	if err := ValidatePoller(cfg.Poller); err != nil {
		return fmt.Errorf("poller validation failed: %w", err)
	}
	if cfg.Workflow != nil {
		if err := cfg.Workflow.Validate(); err != nil {
			return fmt.Errorf("workflow validation failed: %w", err)
		}
	}
	return nil
}
