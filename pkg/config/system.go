package config

import "fmt"

// SystemConfig groups process-wide infrastructure settings.
type SystemConfig struct {
	// HTTPPort is the listen port for the API surface.
	HTTPPort int `yaml:"http_port"`

	// DatabasePath is the SQLite file backing the settings store.
	DatabasePath string `yaml:"database_path"`

	// GitHubTokenEnv names the environment variable holding the bearer
	// token for platform calls. The token itself is never stored in config.
	GitHubTokenEnv string `yaml:"github_token_env"`
}

// DefaultSystemConfig returns the built-in system defaults.
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		HTTPPort:       8080,
		DatabasePath:   "./data/workflows.db",
		GitHubTokenEnv: "GITHUB_TOKEN",
	}
}

func validateSystem(cfg *SystemConfig) error {
	if cfg == nil {
		return fmt.Errorf("system configuration is nil")
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 1 and 65535, got %d", cfg.HTTPPort)
	}
	if cfg.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}
	if cfg.GitHubTokenEnv == "" {
		return fmt.Errorf("github_token_env is required")
	}
	return nil
}
