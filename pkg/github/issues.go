package github

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// CreateIssue opens a new issue and returns its identifiers.
func (c *Client) CreateIssue(ctx context.Context, token, owner, repo, title, body string, labels []string) (*Issue, error) {
	payload := map[string]any{"title": title, "body": body}
	if len(labels) > 0 {
		payload["labels"] = labels
	}
	var issue Issue
	path := fmt.Sprintf("/repos/%s/%s/issues", owner, repo)
	if err := c.doREST(ctx, token, http.MethodPost, path, payload, &issue); err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}
	c.logger.Info("Issue created", "owner", owner, "repo", repo, "number", issue.Number)
	return &issue, nil
}

type restComment struct {
	Body string `json:"body"`
	User struct {
		Login string `json:"login"`
	} `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

// GetIssueWithComments fetches an issue body plus its full comment stream,
// oldest first.
func (c *Client) GetIssueWithComments(ctx context.Context, token, owner, repo string, number int) (*IssueWithComments, error) {
	var issue Issue
	path := fmt.Sprintf("/repos/%s/%s/issues/%d", owner, repo, number)
	if err := c.doREST(ctx, token, http.MethodGet, path, nil, &issue); err != nil {
		return nil, fmt.Errorf("get issue %d: %w", number, err)
	}

	var raw []restComment
	commentsPath := fmt.Sprintf("/repos/%s/%s/issues/%d/comments?per_page=100", owner, repo, number)
	if err := c.doREST(ctx, token, http.MethodGet, commentsPath, nil, &raw); err != nil {
		return nil, fmt.Errorf("get issue %d comments: %w", number, err)
	}

	result := &IssueWithComments{Title: issue.Title, Body: issue.Body}
	for _, rc := range raw {
		result.Comments = append(result.Comments, Comment{
			Author:    rc.User.Login,
			Body:      rc.Body,
			CreatedAt: rc.CreatedAt,
		})
	}
	return result, nil
}

// GetIssueState fetches an issue's open/closed state and label names.
func (c *Client) GetIssueState(ctx context.Context, token, owner, repo string, number int) (string, []string, error) {
	var out struct {
		State  string `json:"state"`
		Labels []struct {
			Name string `json:"name"`
		} `json:"labels"`
	}
	path := fmt.Sprintf("/repos/%s/%s/issues/%d", owner, repo, number)
	if err := c.doREST(ctx, token, http.MethodGet, path, nil, &out); err != nil {
		return "", nil, fmt.Errorf("get issue %d state: %w", number, err)
	}
	labels := make([]string, 0, len(out.Labels))
	for _, l := range out.Labels {
		labels = append(labels, l.Name)
	}
	return out.State, labels, nil
}

// UpdateIssueBody replaces the body of an issue.
func (c *Client) UpdateIssueBody(ctx context.Context, token, owner, repo string, number int, body string) error {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d", owner, repo, number)
	if err := c.doREST(ctx, token, http.MethodPatch, path, map[string]any{"body": body}, nil); err != nil {
		return fmt.Errorf("update issue %d body: %w", number, err)
	}
	return nil
}

// CreateIssueComment posts a comment on an issue.
func (c *Client) CreateIssueComment(ctx context.Context, token, owner, repo string, number int, body string) error {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", owner, repo, number)
	if err := c.doREST(ctx, token, http.MethodPost, path, map[string]any{"body": body}, nil); err != nil {
		return fmt.Errorf("comment on issue %d: %w", number, err)
	}
	return nil
}

// CreateSubIssue creates an issue and attaches it as a sub-issue of parent.
// The attach step uses the sub-issues REST surface; if it fails the issue
// still exists, so the caller gets both the issue and the error.
func (c *Client) CreateSubIssue(ctx context.Context, token, owner, repo string, parentNumber int, title, body string, labels []string) (*Issue, error) {
	issue, err := c.CreateIssue(ctx, token, owner, repo, title, body, labels)
	if err != nil {
		return nil, err
	}

	// Attaching needs the numeric issue id, not the node id.
	var created struct {
		ID int64 `json:"id"`
	}
	path := fmt.Sprintf("/repos/%s/%s/issues/%d", owner, repo, issue.Number)
	if err := c.doREST(ctx, token, http.MethodGet, path, nil, &created); err != nil {
		return issue, fmt.Errorf("resolve sub-issue id: %w", err)
	}

	attachPath := fmt.Sprintf("/repos/%s/%s/issues/%d/sub_issues", owner, repo, parentNumber)
	if err := c.doREST(ctx, token, http.MethodPost, attachPath, map[string]any{"sub_issue_id": created.ID}, nil); err != nil {
		return issue, fmt.Errorf("attach sub-issue %d to %d: %w", issue.Number, parentNumber, err)
	}
	return issue, nil
}

// UpdateIssueState opens or closes an issue, optionally adding labels.
func (c *Client) UpdateIssueState(ctx context.Context, token, owner, repo string, number int, issueState string, addLabels []string) error {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d", owner, repo, number)
	if err := c.doREST(ctx, token, http.MethodPatch, path, map[string]any{"state": issueState}, nil); err != nil {
		return fmt.Errorf("update issue %d state: %w", number, err)
	}
	if len(addLabels) > 0 {
		labelsPath := fmt.Sprintf("/repos/%s/%s/issues/%d/labels", owner, repo, number)
		if err := c.doREST(ctx, token, http.MethodPost, labelsPath, map[string]any{"labels": addLabels}, nil); err != nil {
			return fmt.Errorf("add labels to issue %d: %w", number, err)
		}
	}
	return nil
}

// AddIssueLabels adds labels to an issue without touching its state.
func (c *Client) AddIssueLabels(ctx context.Context, token, owner, repo string, number int, labels []string) error {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/labels", owner, repo, number)
	if err := c.doREST(ctx, token, http.MethodPost, path, map[string]any{"labels": labels}, nil); err != nil {
		return fmt.Errorf("add labels to issue %d: %w", number, err)
	}
	return nil
}

// AssignIssue assigns a user to an issue.
func (c *Client) AssignIssue(ctx context.Context, token, owner, repo string, number int, assignee string) error {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/assignees", owner, repo, number)
	if err := c.doREST(ctx, token, http.MethodPost, path, map[string]any{"assignees": []string{assignee}}, nil); err != nil {
		return fmt.Errorf("assign %s to issue %d: %w", assignee, number, err)
	}
	return nil
}

// ValidateAssignee reports whether a login can be assigned issues in the
// repository.
func (c *Client) ValidateAssignee(ctx context.Context, token, owner, repo, login string) (bool, error) {
	path := fmt.Sprintf("/repos/%s/%s/assignees/%s", owner, repo, login)
	err := c.doREST(ctx, token, http.MethodGet, path, nil, nil)
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("validate assignee %s: %w", login, err)
}

// GetRepositoryOwner returns the owner login of a repository, used as the
// fallback reviewer.
func (c *Client) GetRepositoryOwner(ctx context.Context, token, owner, repo string) (string, error) {
	var out struct {
		Owner struct {
			Login string `json:"login"`
		} `json:"owner"`
	}
	path := fmt.Sprintf("/repos/%s/%s", owner, repo)
	if err := c.doREST(ctx, token, http.MethodGet, path, nil, &out); err != nil {
		return "", fmt.Errorf("get repository owner: %w", err)
	}
	return out.Owner.Login, nil
}
