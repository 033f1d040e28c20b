package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// copilotReviewerLogin is the reviewer bot requested on finished PRs.
const copilotReviewerLogin = "copilot-pull-request-reviewer[bot]"

// IsCopilotAuthor reports whether a PR author login belongs to the Copilot
// coding agent.
func IsCopilotAuthor(login string) bool {
	return strings.Contains(strings.ToLower(login), "copilot")
}

// GetCopilotBotID resolves the assignable bot id for the Copilot coding
// agent in a repository, required by the GraphQL assignment fallback.
func (c *Client) GetCopilotBotID(ctx context.Context, token, owner, repo string) (repoID, botID string, err error) {
	query := `
query($owner: String!, $repo: String!) {
  repository(owner: $owner, name: $repo) {
    id
    suggestedActors(capabilities: [CAN_BE_ASSIGNED], first: 50) {
      nodes {
        login
        ... on Bot { id }
        ... on User { id }
      }
    }
  }
}`
	var resp struct {
		Repository struct {
			ID              string `json:"id"`
			SuggestedActors struct {
				Nodes []struct {
					Login string `json:"login"`
					ID    string `json:"id"`
				} `json:"nodes"`
			} `json:"suggestedActors"`
		} `json:"repository"`
	}
	vars := map[string]any{"owner": owner, "repo": repo}
	if err := c.doGraphQL(ctx, token, query, vars, &resp); err != nil {
		return "", "", fmt.Errorf("get copilot bot id: %w", err)
	}
	for _, actor := range resp.Repository.SuggestedActors.Nodes {
		if IsCopilotAuthor(actor.Login) {
			return resp.Repository.ID, actor.ID, nil
		}
	}
	return "", "", fmt.Errorf("copilot is not assignable in %s/%s: %w", owner, repo, ErrNotFound)
}

// AssignCopilotToIssue hands an issue to the Copilot coding agent.
//
// baseRef is a branch name (the target for the branch Copilot creates),
// never a commit SHA. The REST agent-assignment surface carries the base
// ref, agent slug, and instructions; when unavailable the GraphQL actor
// mutation is used as a fallback (which drops the extras, so the agent
// works from the issue content alone).
func (c *Client) AssignCopilotToIssue(ctx context.Context, token, owner, repo, issueNodeID string, issueNumber int, baseRef, customAgent, customInstructions string) (bool, error) {
	payload := map[string]any{
		"base_ref": baseRef,
	}
	if customAgent != "" {
		payload["custom_agent"] = customAgent
	}
	if customInstructions != "" {
		payload["custom_instructions"] = customInstructions
	}

	path := fmt.Sprintf("/repos/%s/%s/issues/%d/agent_assignment", owner, repo, issueNumber)
	err := c.doREST(ctx, token, http.MethodPost, path, payload, nil)
	if err == nil {
		c.logger.Info("Copilot assigned via REST",
			"issue", issueNumber, "base_ref", baseRef, "agent", customAgent)
		return true, nil
	}
	c.logger.Warn("REST agent assignment unavailable, falling back to GraphQL",
		"issue", issueNumber, "error", err)

	repoID, botID, err := c.GetCopilotBotID(ctx, token, owner, repo)
	if err != nil {
		return false, err
	}
	_ = repoID // resolved together with the bot id; the mutation keys on the assignable

	mutation := `
mutation($assignableId: ID!, $actorIds: [ID!]!) {
  replaceActorsForAssignable(input: {assignableId: $assignableId, actorIds: $actorIds}) {
    assignable {
      ... on Issue { id }
    }
  }
}`
	vars := map[string]any{"assignableId": issueNodeID, "actorIds": []string{botID}}
	if err := c.doGraphQL(ctx, token, mutation, vars, nil); err != nil {
		return false, fmt.Errorf("assign copilot via graphql: %w", err)
	}
	c.logger.Info("Copilot assigned via GraphQL fallback", "issue", issueNumber)
	return true, nil
}

// CheckCopilotPRCompletion finds the first open Copilot-authored PR linked
// to an issue and reports whether the agent has finished working on it.
// A non-draft PR counts as finished; a draft counts once its timeline shows
// a copilot_work_finished event or a review request made by Copilot.
// Returns ErrNotFound when no such PR exists.
func (c *Client) CheckCopilotPRCompletion(ctx context.Context, token, owner, repo string, issueNumber int) (*CopilotPRStatus, error) {
	prs, err := c.ListLinkedPRs(ctx, token, owner, repo, issueNumber)
	if err != nil {
		return nil, err
	}

	for _, pr := range prs {
		if pr.State != "OPEN" || !IsCopilotAuthor(pr.Author) {
			continue
		}
		prStatus := &CopilotPRStatus{
			NodeID:        pr.NodeID,
			Number:        pr.Number,
			IsDraft:       pr.IsDraft,
			HeadRef:       pr.HeadRef,
			BaseRef:       pr.BaseRef,
			LastCommitSHA: pr.LastCommitSHA,
		}
		if !pr.IsDraft {
			prStatus.CopilotFinished = true
			return prStatus, nil
		}

		events, err := c.GetPRTimelineEvents(ctx, token, owner, repo, pr.Number)
		if err != nil {
			return nil, fmt.Errorf("check PR %d completion: %w", pr.Number, err)
		}
		prStatus.CopilotFinished = copilotFinished(events)
		return prStatus, nil
	}
	return nil, fmt.Errorf("no open copilot PR for issue %d: %w", issueNumber, ErrNotFound)
}

// copilotFinished applies the completion-event rule to a PR timeline.
// The forge's event naming has drifted; anything from the Copilot actor
// that signals finished work is accepted.
func copilotFinished(events []TimelineEvent) bool {
	for _, e := range events {
		if strings.HasPrefix(e.Type, EventCopilotWorkFinished) {
			return true
		}
		if e.Type == EventReviewRequested && strings.EqualFold(e.Requester, CopilotActorLogin) {
			return true
		}
	}
	return false
}

// RequestCopilotReview requests a Copilot code review on a PR.
func (c *Client) RequestCopilotReview(ctx context.Context, token, owner, repo string, prNumber int) error {
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/requested_reviewers", owner, repo, prNumber)
	payload := map[string]any{"reviewers": []string{copilotReviewerLogin}}
	if err := c.doREST(ctx, token, http.MethodPost, path, payload, nil); err != nil {
		return fmt.Errorf("request copilot review on PR %d: %w", prNumber, err)
	}
	return nil
}

// HasCopilotReviewedPR reports whether Copilot already reviewed the PR or
// has a pending review request on it.
func (c *Client) HasCopilotReviewedPR(ctx context.Context, token, owner, repo string, prNumber int) (bool, error) {
	var reviews []struct {
		User struct {
			Login string `json:"login"`
		} `json:"user"`
	}
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/reviews", owner, repo, prNumber)
	if err := c.doREST(ctx, token, http.MethodGet, path, nil, &reviews); err != nil {
		return false, fmt.Errorf("get PR %d reviews: %w", prNumber, err)
	}
	for _, r := range reviews {
		if IsCopilotAuthor(r.User.Login) {
			return true, nil
		}
	}

	pr, err := c.GetPullRequest(ctx, token, owner, repo, prNumber)
	if err != nil {
		return false, err
	}
	for _, reviewer := range pr.Reviewers {
		if IsCopilotAuthor(reviewer) {
			return true, nil
		}
	}
	return false, nil
}
