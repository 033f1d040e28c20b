package config

import (
	"fmt"
	"time"
)

// PollerConfig controls the reconciliation poller and the assignment
// idempotency guards.
type PollerConfig struct {
	// Interval between reconciliation ticks.
	Interval time.Duration `yaml:"interval"`

	// AssignmentGracePeriod suppresses duplicate agent assignments for the
	// same (issue, slug) pair: a pending assignment younger than this is
	// treated as already in flight.
	AssignmentGracePeriod time.Duration `yaml:"assignment_grace_period"`

	// RecoveryCooldown suppresses recovery-driven reassignment of the same
	// issue within the window.
	RecoveryCooldown time.Duration `yaml:"recovery_cooldown"`

	// MaxAssignmentRetries is the attempt cap for one assignment call.
	MaxAssignmentRetries int `yaml:"max_assignment_retries"`

	// AssignmentRetryBaseDelay is the first backoff delay; subsequent
	// attempts double it.
	AssignmentRetryBaseDelay time.Duration `yaml:"assignment_retry_base_delay"`

	// ProcessedCacheSize caps the poller's processed issue/PR caches.
	ProcessedCacheSize int `yaml:"processed_cache_size"`
}

// DefaultPollerConfig returns the built-in poller defaults.
func DefaultPollerConfig() *PollerConfig {
	return &PollerConfig{
		Interval:                 15 * time.Second,
		AssignmentGracePeriod:    60 * time.Second,
		RecoveryCooldown:         60 * time.Second,
		MaxAssignmentRetries:     3,
		AssignmentRetryBaseDelay: 3 * time.Second,
		ProcessedCacheSize:       500,
	}
}

// ValidatePoller range-checks the poller knobs.
func ValidatePoller(cfg *PollerConfig) error {
	if cfg == nil {
		return fmt.Errorf("poller configuration is nil")
	}
	if cfg.Interval < time.Second {
		return fmt.Errorf("interval must be at least 1s, got %v", cfg.Interval)
	}
	if cfg.AssignmentGracePeriod <= 0 {
		return fmt.Errorf("assignment_grace_period must be positive, got %v", cfg.AssignmentGracePeriod)
	}
	if cfg.RecoveryCooldown <= 0 {
		return fmt.Errorf("recovery_cooldown must be positive, got %v", cfg.RecoveryCooldown)
	}
	if cfg.MaxAssignmentRetries < 1 || cfg.MaxAssignmentRetries > 10 {
		return fmt.Errorf("max_assignment_retries must be between 1 and 10, got %d", cfg.MaxAssignmentRetries)
	}
	if cfg.AssignmentRetryBaseDelay <= 0 {
		return fmt.Errorf("assignment_retry_base_delay must be positive, got %v", cfg.AssignmentRetryBaseDelay)
	}
	if cfg.ProcessedCacheSize < 10 {
		return fmt.Errorf("processed_cache_size must be at least 10, got %d", cfg.ProcessedCacheSize)
	}
	return nil
}
