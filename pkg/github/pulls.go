package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

type restPull struct {
	NodeID string `json:"node_id"`
	Number int    `json:"number"`
	State  string `json:"state"`
	Draft  bool   `json:"draft"`
	Body   string `json:"body"`
	User   struct {
		Login string `json:"login"`
	} `json:"user"`
	Head struct {
		Ref string `json:"ref"`
		SHA string `json:"sha"`
	} `json:"head"`
	Base struct {
		Ref string `json:"ref"`
	} `json:"base"`
	RequestedReviewers []struct {
		Login string `json:"login"`
	} `json:"requested_reviewers"`
}

func (p *restPull) toPullRequest() *PullRequest {
	pr := &PullRequest{
		NodeID:        p.NodeID,
		Number:        p.Number,
		State:         strings.ToUpper(p.State),
		IsDraft:       p.Draft,
		Author:        p.User.Login,
		HeadRef:       p.Head.Ref,
		BaseRef:       p.Base.Ref,
		LastCommitSHA: p.Head.SHA,
	}
	for _, r := range p.RequestedReviewers {
		pr.Reviewers = append(pr.Reviewers, r.Login)
	}
	return pr
}

// GetPullRequest fetches one PR with the fields the orchestrator inspects.
func (c *Client) GetPullRequest(ctx context.Context, token, owner, repo string, number int) (*PullRequest, error) {
	var raw restPull
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, number)
	if err := c.doREST(ctx, token, http.MethodGet, path, nil, &raw); err != nil {
		return nil, fmt.Errorf("get pull request %d: %w", number, err)
	}
	return raw.toPullRequest(), nil
}

const linkedPRsQuery = `
query($owner: String!, $repo: String!, $number: Int!) {
  repository(owner: $owner, name: $repo) {
    issue(number: $number) {
      timelineItems(itemTypes: [CROSS_REFERENCED_EVENT], first: 50) {
        nodes {
          ... on CrossReferencedEvent {
            source {
              ... on PullRequest {
                id
                number
                state
                isDraft
                author { login }
                headRefName
                baseRefName
                commits(last: 1) { nodes { commit { oid } } }
              }
            }
          }
        }
      }
    }
  }
}`

type linkedPRsResponse struct {
	Repository struct {
		Issue struct {
			TimelineItems struct {
				Nodes []struct {
					Source struct {
						ID      string `json:"id"`
						Number  int    `json:"number"`
						State   string `json:"state"`
						IsDraft bool   `json:"isDraft"`
						Author  struct {
							Login string `json:"login"`
						} `json:"author"`
						HeadRefName string `json:"headRefName"`
						BaseRefName string `json:"baseRefName"`
						Commits     struct {
							Nodes []struct {
								Commit struct {
									Oid string `json:"oid"`
								} `json:"commit"`
							} `json:"nodes"`
						} `json:"commits"`
					} `json:"source"`
				} `json:"nodes"`
			} `json:"timelineItems"`
		} `json:"issue"`
	} `json:"repository"`
}

// ListLinkedPRs enumerates the PRs cross-referenced from an issue, in
// timeline order.
func (c *Client) ListLinkedPRs(ctx context.Context, token, owner, repo string, issueNumber int) ([]*PullRequest, error) {
	var resp linkedPRsResponse
	vars := map[string]any{"owner": owner, "repo": repo, "number": issueNumber}
	if err := c.doGraphQL(ctx, token, linkedPRsQuery, vars, &resp); err != nil {
		return nil, fmt.Errorf("list linked PRs for issue %d: %w", issueNumber, err)
	}

	var prs []*PullRequest
	for _, node := range resp.Repository.Issue.TimelineItems.Nodes {
		src := node.Source
		if src.Number == 0 {
			// Cross-reference from something other than a PR.
			continue
		}
		pr := &PullRequest{
			NodeID:  src.ID,
			Number:  src.Number,
			State:   strings.ToUpper(src.State),
			IsDraft: src.IsDraft,
			Author:  src.Author.Login,
			HeadRef: src.HeadRefName,
			BaseRef: src.BaseRefName,
		}
		if len(src.Commits.Nodes) > 0 {
			pr.LastCommitSHA = src.Commits.Nodes[0].Commit.Oid
		}
		prs = append(prs, pr)
	}
	return prs, nil
}

// FindExistingPRForIssue returns the first open PR linked to an issue, or
// ErrNotFound if none exists yet.
func (c *Client) FindExistingPRForIssue(ctx context.Context, token, owner, repo string, issueNumber int) (*PRRef, error) {
	prs, err := c.ListLinkedPRs(ctx, token, owner, repo, issueNumber)
	if err != nil {
		return nil, err
	}
	for _, pr := range prs {
		if pr.State == "OPEN" {
			return &PRRef{Number: pr.Number, HeadRef: pr.HeadRef}, nil
		}
	}
	return nil, fmt.Errorf("no open PR for issue %d: %w", issueNumber, ErrNotFound)
}

// GetPRChangedFiles lists the files touched by a PR.
func (c *Client) GetPRChangedFiles(ctx context.Context, token, owner, repo string, number int) ([]ChangedFile, error) {
	var files []ChangedFile
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/files?per_page=100", owner, repo, number)
	if err := c.doREST(ctx, token, http.MethodGet, path, nil, &files); err != nil {
		return nil, fmt.Errorf("get PR %d files: %w", number, err)
	}
	return files, nil
}

// GetFileContentFromRef fetches one file's content at a ref.
func (c *Client) GetFileContentFromRef(ctx context.Context, token, owner, repo, filePath, ref string) (string, error) {
	var out struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	path := fmt.Sprintf("/repos/%s/%s/contents/%s?ref=%s", owner, repo, filePath, ref)
	if err := c.doREST(ctx, token, http.MethodGet, path, nil, &out); err != nil {
		return "", fmt.Errorf("get %s@%s: %w", filePath, ref, err)
	}
	if out.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(out.Content, "\n", ""))
		if err != nil {
			return "", fmt.Errorf("decode %s content: %w", filePath, err)
		}
		return string(decoded), nil
	}
	return out.Content, nil
}

const timelineQuery = `
query($owner: String!, $repo: String!, $number: Int!) {
  repository(owner: $owner, name: $repo) {
    pullRequest(number: $number) {
      timelineItems(last: 100) {
        nodes {
          __typename
          ... on ReviewRequestedEvent {
            actor { login }
          }
        }
      }
    }
  }
}`

type timelineResponse struct {
	Repository struct {
		PullRequest struct {
			TimelineItems struct {
				Nodes []struct {
					Typename string `json:"__typename"`
					Actor    struct {
						Login string `json:"login"`
					} `json:"actor"`
				} `json:"nodes"`
			} `json:"timelineItems"`
		} `json:"pullRequest"`
	} `json:"repository"`
}

// typenameToEvent normalizes GraphQL typenames to the event names the
// reconciliation logic matches on.
func typenameToEvent(typename string) string {
	switch typename {
	case "ReviewRequestedEvent":
		return EventReviewRequested
	case "CopilotWorkFinishedEvent":
		return EventCopilotWorkFinished
	default:
		// Snake-case fallback keeps unknown forge spellings matchable.
		return toSnakeCase(strings.TrimSuffix(typename, "Event"))
	}
}

func toSnakeCase(s string) string {
	var sb strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				sb.WriteByte('_')
			}
			sb.WriteRune(r - 'A' + 'a')
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// GetPRTimelineEvents fetches the recent timeline events of a PR.
func (c *Client) GetPRTimelineEvents(ctx context.Context, token, owner, repo string, number int) ([]TimelineEvent, error) {
	var resp timelineResponse
	vars := map[string]any{"owner": owner, "repo": repo, "number": number}
	if err := c.doGraphQL(ctx, token, timelineQuery, vars, &resp); err != nil {
		return nil, fmt.Errorf("get PR %d timeline: %w", number, err)
	}

	var events []TimelineEvent
	for _, node := range resp.Repository.PullRequest.TimelineItems.Nodes {
		event := TimelineEvent{
			Type:  typenameToEvent(node.Typename),
			Actor: node.Actor.Login,
		}
		if event.Type == EventReviewRequested {
			event.Requester = node.Actor.Login
		}
		events = append(events, event)
	}
	return events, nil
}

// MarkPRReadyForReview flips a draft PR to ready.
func (c *Client) MarkPRReadyForReview(ctx context.Context, token, prNodeID string) error {
	mutation := `
mutation($prId: ID!) {
  markPullRequestReadyForReview(input: {pullRequestId: $prId}) {
    pullRequest { isDraft }
  }
}`
	if err := c.doGraphQL(ctx, token, mutation, map[string]any{"prId": prNodeID}, nil); err != nil {
		return fmt.Errorf("mark PR ready for review: %w", err)
	}
	return nil
}

// MergePullRequest merges a PR with the given method and commit headline.
func (c *Client) MergePullRequest(ctx context.Context, token, prNodeID, method, headline string) (*MergeResult, error) {
	mutation := `
mutation($prId: ID!, $method: PullRequestMergeMethod!, $headline: String!) {
  mergePullRequest(input: {pullRequestId: $prId, mergeMethod: $method, commitHeadline: $headline}) {
    pullRequest {
      mergeCommit { oid }
    }
  }
}`
	var resp struct {
		MergePullRequest struct {
			PullRequest struct {
				MergeCommit struct {
					Oid string `json:"oid"`
				} `json:"mergeCommit"`
			} `json:"pullRequest"`
		} `json:"mergePullRequest"`
	}
	vars := map[string]any{"prId": prNodeID, "method": method, "headline": headline}
	if err := c.doGraphQL(ctx, token, mutation, vars, &resp); err != nil {
		return nil, fmt.Errorf("merge PR: %w", err)
	}
	return &MergeResult{MergeCommitSHA: resp.MergePullRequest.PullRequest.MergeCommit.Oid}, nil
}

// DeleteBranch removes a branch ref. Missing branches are tolerated: the
// platform may have pruned the ref on merge.
func (c *Client) DeleteBranch(ctx context.Context, token, owner, repo, branch string) error {
	path := fmt.Sprintf("/repos/%s/%s/git/refs/heads/%s", owner, repo, branch)
	err := c.doREST(ctx, token, http.MethodDelete, path, nil, nil)
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("delete branch %s: %w", branch, err)
	}
	return nil
}

// LinkPullRequestToIssue makes the PR close its parent issue on merge by
// appending a closing reference to the PR body, unless one is present.
func (c *Client) LinkPullRequestToIssue(ctx context.Context, token, owner, repo string, prNumber, issueNumber int) error {
	var raw restPull
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, prNumber)
	if err := c.doREST(ctx, token, http.MethodGet, path, nil, &raw); err != nil {
		return fmt.Errorf("get PR %d for linking: %w", prNumber, err)
	}

	ref := fmt.Sprintf("#%d", issueNumber)
	if strings.Contains(raw.Body, ref) {
		return nil
	}
	body := strings.TrimRight(raw.Body, "\n") + fmt.Sprintf("\n\nCloses %s", ref)
	if err := c.doREST(ctx, token, http.MethodPatch, path, map[string]any{"body": body}, nil); err != nil {
		return fmt.Errorf("link PR %d to issue %d: %w", prNumber, issueNumber, err)
	}
	return nil
}
