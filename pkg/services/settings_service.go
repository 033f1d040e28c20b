// Package services holds the persistence-backed services used by the
// orchestrator: the workflow settings store and the transition audit log.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Boykai/github-workflows/pkg/config"
	"github.com/Boykai/github-workflows/pkg/database"
)

// CanonicalUser is the user id that workflow-owned configurations are stored
// under. Per-user rows take precedence over it on reads.
const CanonicalUser = "__workflow__"

// SettingsService is the two-tier workflow configuration store: an in-memory
// cache in front of the project_settings table. Writes go through to SQLite
// and update the cache; reads hit the cache first.
type SettingsService struct {
	db     *database.Client
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*config.WorkflowConfiguration
}

// NewSettingsService creates a new SettingsService.
func NewSettingsService(db *database.Client) *SettingsService {
	if db == nil {
		panic("NewSettingsService: db must not be nil")
	}
	return &SettingsService{
		db:     db,
		logger: slog.Default().With("component", "settings-service"),
		cache:  make(map[string]*config.WorkflowConfiguration),
	}
}

// cacheKey builds the case-insensitive cache key for a (user, project) pair.
func cacheKey(userID, projectID string) string {
	return strings.ToLower(userID) + "|" + strings.ToLower(projectID)
}

// legacyMappings is the retired storage shape: status name to agent slugs,
// without status names or repo coordinates.
type legacyMappings map[string][]string

// GetWorkflowConfig returns the workflow configuration stored for a user and
// project. When the user has no row, the canonical workflow user's row is
// consulted. Returns ErrNotFound when neither exists.
func (s *SettingsService) GetWorkflowConfig(ctx context.Context, userID, projectID string) (*config.WorkflowConfiguration, error) {
	if projectID == "" {
		return nil, NewValidationError("project_id", "project id is required")
	}
	if userID == "" {
		userID = CanonicalUser
	}

	s.mu.RLock()
	if cfg, ok := s.cache[cacheKey(userID, projectID)]; ok {
		clone := *cfg
		s.mu.RUnlock()
		return &clone, nil
	}
	s.mu.RUnlock()

	cfg, err := s.loadConfig(ctx, userID, projectID)
	if errors.Is(err, ErrNotFound) && userID != CanonicalUser {
		cfg, err = s.loadConfig(ctx, CanonicalUser, projectID)
	}
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[cacheKey(userID, projectID)] = cfg
	s.mu.Unlock()

	clone := *cfg
	return &clone, nil
}

// loadConfig reads one row and decodes whichever configuration column is
// populated, preferring the current workflow_config shape.
func (s *SettingsService) loadConfig(ctx context.Context, userID, projectID string) (*config.WorkflowConfiguration, error) {
	var workflowJSON, legacyJSON sql.NullString
	row := s.db.DB().QueryRowContext(ctx, `
		SELECT workflow_config, agent_pipeline_mappings
		FROM project_settings
		WHERE lower(github_user_id) = lower(?) AND lower(project_id) = lower(?)`,
		userID, projectID)
	if err := row.Scan(&workflowJSON, &legacyJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no settings for project %s: %w", projectID, ErrNotFound)
		}
		return nil, fmt.Errorf("load settings for project %s: %w", projectID, err)
	}

	if workflowJSON.Valid && workflowJSON.String != "" {
		var cfg config.WorkflowConfiguration
		if err := json.Unmarshal([]byte(workflowJSON.String), &cfg); err != nil {
			return nil, fmt.Errorf("decode workflow config for project %s: %w", projectID, err)
		}
		return &cfg, nil
	}

	if legacyJSON.Valid && legacyJSON.String != "" {
		return s.upgradeLegacy(projectID, legacyJSON.String)
	}

	return nil, fmt.Errorf("empty settings row for project %s: %w", projectID, ErrNotFound)
}

// upgradeLegacy converts a retired agent_pipeline_mappings payload into the
// current configuration shape with default status names. Repo coordinates are
// absent in the legacy shape and must be resolved by the caller.
func (s *SettingsService) upgradeLegacy(projectID, raw string) (*config.WorkflowConfiguration, error) {
	var legacy legacyMappings
	if err := json.Unmarshal([]byte(raw), &legacy); err != nil {
		return nil, fmt.Errorf("decode legacy mappings for project %s: %w", projectID, err)
	}

	cfg := &config.WorkflowConfiguration{
		ProjectID:     projectID,
		StatusNames:   config.DefaultStatusNames(),
		AgentMappings: make(map[string][]config.AgentAssignment, len(legacy)),
	}
	for status, slugs := range legacy {
		agents := make([]config.AgentAssignment, 0, len(slugs))
		for _, slug := range slugs {
			agents = append(agents, config.AgentAssignment{Slug: slug})
		}
		cfg.AgentMappings[status] = agents
	}
	s.logger.Info("Upgraded legacy pipeline mappings", "project_id", projectID)
	return cfg, nil
}

// SaveWorkflowConfig validates and persists a configuration, writing through
// to the cache. The empty user id saves under the canonical workflow user.
func (s *SettingsService) SaveWorkflowConfig(ctx context.Context, userID string, cfg *config.WorkflowConfiguration) error {
	if cfg == nil {
		return NewValidationError("config", "configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return NewValidationError("config", err.Error())
	}
	if userID == "" {
		userID = CanonicalUser
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode workflow config: %w", err)
	}

	_, err = s.db.DB().ExecContext(ctx, `
		INSERT INTO project_settings (github_user_id, project_id, workflow_config, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(github_user_id, project_id)
		DO UPDATE SET workflow_config = excluded.workflow_config, updated_at = excluded.updated_at`,
		userID, cfg.ProjectID, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save settings for project %s: %w", cfg.ProjectID, err)
	}

	s.mu.Lock()
	clone := *cfg
	s.cache[cacheKey(userID, cfg.ProjectID)] = &clone
	s.mu.Unlock()

	s.logger.Info("Workflow configuration saved",
		"user_id", userID, "project_id", cfg.ProjectID)
	return nil
}

// DeleteWorkflowConfig removes a stored configuration and invalidates the
// cache entry. Deleting a missing row is not an error.
func (s *SettingsService) DeleteWorkflowConfig(ctx context.Context, userID, projectID string) error {
	if userID == "" {
		userID = CanonicalUser
	}
	_, err := s.db.DB().ExecContext(ctx, `
		DELETE FROM project_settings
		WHERE lower(github_user_id) = lower(?) AND lower(project_id) = lower(?)`,
		userID, projectID)
	if err != nil {
		return fmt.Errorf("delete settings for project %s: %w", projectID, err)
	}

	s.mu.Lock()
	delete(s.cache, cacheKey(userID, projectID))
	s.mu.Unlock()
	return nil
}

// ListProjectIDs returns the project ids with a stored configuration for a
// user, canonical rows included. Used to seed pollers at startup.
func (s *SettingsService) ListProjectIDs(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		userID = CanonicalUser
	}
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT DISTINCT project_id FROM project_settings
		WHERE lower(github_user_id) IN (lower(?), lower(?))
		ORDER BY project_id`,
		userID, CanonicalUser)
	if err != nil {
		return nil, fmt.Errorf("list project ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan project id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InvalidateCache drops every cached configuration. Intended for tests and
// for admin-triggered reloads.
func (s *SettingsService) InvalidateCache() {
	s.mu.Lock()
	s.cache = make(map[string]*config.WorkflowConfiguration)
	s.mu.Unlock()
}
