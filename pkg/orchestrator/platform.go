// Package orchestrator implements the workflow policy layer: issue creation
// from recommendations, agent assignment with idempotency guards, pipeline
// advancement, and child-PR merging. It composes platform calls but holds no
// wire-level knowledge.
package orchestrator

import (
	"context"

	"github.com/Boykai/github-workflows/pkg/github"
)

// Platform is the slice of the platform client the orchestrator depends on.
// *github.Client satisfies it; tests substitute a fake.
type Platform interface {
	CreateIssue(ctx context.Context, token, owner, repo, title, body string, labels []string) (*github.Issue, error)
	GetIssueWithComments(ctx context.Context, token, owner, repo string, number int) (*github.IssueWithComments, error)
	UpdateIssueBody(ctx context.Context, token, owner, repo string, number int, body string) error
	CreateIssueComment(ctx context.Context, token, owner, repo string, number int, body string) error
	CreateSubIssue(ctx context.Context, token, owner, repo string, parentNumber int, title, body string, labels []string) (*github.Issue, error)
	GetIssueState(ctx context.Context, token, owner, repo string, number int) (string, []string, error)
	UpdateIssueState(ctx context.Context, token, owner, repo string, number int, issueState string, addLabels []string) error
	AddIssueLabels(ctx context.Context, token, owner, repo string, number int, labels []string) error
	AssignIssue(ctx context.Context, token, owner, repo string, number int, assignee string) error
	ValidateAssignee(ctx context.Context, token, owner, repo, login string) (bool, error)
	GetRepositoryOwner(ctx context.Context, token, owner, repo string) (string, error)

	AddIssueToProject(ctx context.Context, token, projectID, issueNodeID string) (string, error)
	UpdateItemStatusByName(ctx context.Context, token, projectID, itemID, statusName string) error
	SetIssueMetadata(ctx context.Context, token, projectID, itemID string, meta github.IssueMetadata) error
	GetProjectItems(ctx context.Context, token, projectID string) ([]github.ProjectItem, error)
	GetProjectRepository(ctx context.Context, token, projectID string) (owner, repo string, err error)

	GetPullRequest(ctx context.Context, token, owner, repo string, number int) (*github.PullRequest, error)
	ListLinkedPRs(ctx context.Context, token, owner, repo string, issueNumber int) ([]*github.PullRequest, error)
	FindExistingPRForIssue(ctx context.Context, token, owner, repo string, issueNumber int) (*github.PRRef, error)
	GetPRChangedFiles(ctx context.Context, token, owner, repo string, number int) ([]github.ChangedFile, error)
	GetFileContentFromRef(ctx context.Context, token, owner, repo, filePath, ref string) (string, error)
	MarkPRReadyForReview(ctx context.Context, token, prNodeID string) error
	MergePullRequest(ctx context.Context, token, prNodeID, method, headline string) (*github.MergeResult, error)
	DeleteBranch(ctx context.Context, token, owner, repo, branch string) error
	LinkPullRequestToIssue(ctx context.Context, token, owner, repo string, prNumber, issueNumber int) error

	AssignCopilotToIssue(ctx context.Context, token, owner, repo, issueNodeID string, issueNumber int, baseRef, customAgent, customInstructions string) (bool, error)
	CheckCopilotPRCompletion(ctx context.Context, token, owner, repo string, issueNumber int) (*github.CopilotPRStatus, error)
	RequestCopilotReview(ctx context.Context, token, owner, repo string, prNumber int) error
	HasCopilotReviewedPR(ctx context.Context, token, owner, repo string, prNumber int) (bool, error)
}

// TokenFunc supplies the bearer token for platform calls. Tokens are fetched
// per call and never cached by the orchestrator.
type TokenFunc func(ctx context.Context) (string, error)

// StaticToken wraps a fixed token as a TokenFunc.
func StaticToken(token string) TokenFunc {
	return func(context.Context) (string, error) { return token, nil }
}
