package config

import (
	"fmt"
	"strings"
)

// Default project-board status names. Projects may rename them; the four
// names always form the pipeline's ordered backbone.
const (
	DefaultStatusBacklog    = "Backlog"
	DefaultStatusReady      = "Ready"
	DefaultStatusInProgress = "In Progress"
	DefaultStatusInReview   = "In Review"
	DefaultStatusDone       = "Done"
)

// AgentAssignment names one AI agent by slug, e.g. "speckit.specify".
type AgentAssignment struct {
	Slug string `json:"slug" yaml:"slug"`
}

// StatusNames holds the per-project names of the four pipeline statuses.
type StatusNames struct {
	Backlog    string `json:"backlog" yaml:"backlog"`
	Ready      string `json:"ready" yaml:"ready"`
	InProgress string `json:"in_progress" yaml:"in_progress"`
	InReview   string `json:"in_review" yaml:"in_review"`
}

// DefaultStatusNames returns the built-in status names.
func DefaultStatusNames() StatusNames {
	return StatusNames{
		Backlog:    DefaultStatusBacklog,
		Ready:      DefaultStatusReady,
		InProgress: DefaultStatusInProgress,
		InReview:   DefaultStatusInReview,
	}
}

// WorkflowConfiguration is the per-project workflow configuration: status
// backbone, status → agent mappings, and fallback assignees. All status
// lookups are case-insensitive.
type WorkflowConfiguration struct {
	ProjectID       string                       `json:"project_id" yaml:"project_id"`
	RepoOwner       string                       `json:"repo_owner" yaml:"repo_owner"`
	RepoName        string                       `json:"repo_name" yaml:"repo_name"`
	CopilotAssignee string                       `json:"copilot_assignee,omitempty" yaml:"copilot_assignee"`
	ReviewAssignee  string                       `json:"review_assignee,omitempty" yaml:"review_assignee"`
	StatusNames     StatusNames                  `json:"status_names" yaml:"status_names"`
	AgentMappings   map[string][]AgentAssignment `json:"agent_mappings" yaml:"agent_mappings"`
}

// StatusOrder returns the four pipeline statuses in pipeline order.
func (c *WorkflowConfiguration) StatusOrder() []string {
	return []string{
		c.StatusNames.Backlog,
		c.StatusNames.Ready,
		c.StatusNames.InProgress,
		c.StatusNames.InReview,
	}
}

// CanonicalStatus resolves a status name case-insensitively to its
// configured spelling. Returns false for names outside the backbone.
func (c *WorkflowConfiguration) CanonicalStatus(name string) (string, bool) {
	for _, s := range c.StatusOrder() {
		if strings.EqualFold(s, name) {
			return s, true
		}
	}
	return "", false
}

// StatusIndex returns the position of a status in the pipeline backbone, or
// -1 if the name is not part of it.
func (c *WorkflowConfiguration) StatusIndex(name string) int {
	for i, s := range c.StatusOrder() {
		if strings.EqualFold(s, name) {
			return i
		}
	}
	return -1
}

// NextStatus returns the status after the given one in pipeline order.
func (c *WorkflowConfiguration) NextStatus(name string) (string, bool) {
	order := c.StatusOrder()
	idx := c.StatusIndex(name)
	if idx < 0 || idx+1 >= len(order) {
		return "", false
	}
	return order[idx+1], true
}

// AgentsForStatus returns the ordered agents mapped to a status,
// case-insensitively. A status with no mapping has no agents.
func (c *WorkflowConfiguration) AgentsForStatus(name string) []AgentAssignment {
	for key, agents := range c.AgentMappings {
		if strings.EqualFold(key, name) {
			return agents
		}
	}
	return nil
}

// AgentSlugsForStatus is AgentsForStatus flattened to slugs.
func (c *WorkflowConfiguration) AgentSlugsForStatus(name string) []string {
	agents := c.AgentsForStatus(name)
	slugs := make([]string, 0, len(agents))
	for _, a := range agents {
		slugs = append(slugs, a.Slug)
	}
	return slugs
}

// AllAgentSlugs returns the unique agent slugs across the full ordered
// status pipeline, preserving first-occurrence order.
func (c *WorkflowConfiguration) AllAgentSlugs() []string {
	seen := make(map[string]bool)
	var slugs []string
	for _, status := range c.StatusOrder() {
		for _, a := range c.AgentsForStatus(status) {
			if !seen[a.Slug] {
				seen[a.Slug] = true
				slugs = append(slugs, a.Slug)
			}
		}
	}
	return slugs
}

// Validate checks the configuration invariants: repo coordinates present,
// the four status names non-empty and distinct, and every agent-mapping key
// resolving to one of them.
func (c *WorkflowConfiguration) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	if c.RepoOwner == "" || c.RepoName == "" {
		return fmt.Errorf("repo_owner and repo_name are required")
	}
	order := c.StatusOrder()
	seen := make(map[string]bool, len(order))
	for _, s := range order {
		if s == "" {
			return fmt.Errorf("all four status names must be set")
		}
		lower := strings.ToLower(s)
		if seen[lower] {
			return fmt.Errorf("duplicate status name %q", s)
		}
		seen[lower] = true
	}
	for key, agents := range c.AgentMappings {
		if _, ok := c.CanonicalStatus(key); !ok {
			return fmt.Errorf("agent mapping key %q is not a configured status", key)
		}
		for i, a := range agents {
			if a.Slug == "" {
				return fmt.Errorf("agent mapping %q has empty slug at index %d", key, i)
			}
		}
	}
	return nil
}
