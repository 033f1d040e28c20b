package orchestrator

import (
	"github.com/Boykai/github-workflows/pkg/config"
	"github.com/Boykai/github-workflows/pkg/models"
)

// WorkflowContext carries the identifiers accumulated while a workflow runs
// for one issue. Fields are filled in as the steps complete.
type WorkflowContext struct {
	Config    *config.WorkflowConfiguration
	SessionID string

	Recommendation *models.IssueRecommendation

	IssueID       string // issue node id
	IssueNumber   int
	IssueURL      string
	ProjectItemID string
}

// RepoOwner returns the configured repository owner.
func (c *WorkflowContext) RepoOwner() string { return c.Config.RepoOwner }

// RepoName returns the configured repository name.
func (c *WorkflowContext) RepoName() string { return c.Config.RepoName }

// ProjectID returns the configured project id.
func (c *WorkflowContext) ProjectID() string { return c.Config.ProjectID }
