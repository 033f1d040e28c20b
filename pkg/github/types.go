package github

import "time"

// Issue is a created or fetched issue.
type Issue struct {
	NodeID string `json:"node_id"`
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	URL    string `json:"html_url"`
	State  string `json:"state"`
}

// Comment is one issue comment.
type Comment struct {
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// IssueWithComments bundles an issue with its full comment stream, oldest
// first.
type IssueWithComments struct {
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	Comments []Comment `json:"comments"`
}

// Bodies returns just the comment bodies, in order.
func (i *IssueWithComments) Bodies() []string {
	bodies := make([]string, len(i.Comments))
	for n, c := range i.Comments {
		bodies[n] = c.Body
	}
	return bodies
}

// PRRef is the minimal reference to an existing PR.
type PRRef struct {
	Number  int    `json:"number"`
	HeadRef string `json:"head_ref"`
}

// PullRequest is the parsed shape of a fetched PR.
type PullRequest struct {
	NodeID        string   `json:"node_id"`
	Number        int      `json:"number"`
	State         string   `json:"state"` // OPEN, CLOSED, MERGED
	IsDraft       bool     `json:"is_draft"`
	Author        string   `json:"author"`
	HeadRef       string   `json:"head_ref"`
	BaseRef       string   `json:"base_ref"`
	LastCommitSHA string   `json:"last_commit_sha"`
	Reviewers     []string `json:"reviewers"`
}

// ChangedFile is one file touched by a PR.
type ChangedFile struct {
	Filename string `json:"filename"`
	Status   string `json:"status"` // added, modified, removed, renamed
}

// TimelineEvent is one event from a PR timeline. Only the fields the
// reconciliation logic inspects are parsed.
type TimelineEvent struct {
	Type      string `json:"type"`
	Actor     string `json:"actor"`
	Requester string `json:"requester"` // login of the review requester, if any
}

// Timeline event types the poller reacts to.
const (
	EventCopilotWorkFinished = "copilot_work_finished"
	EventReviewRequested     = "review_requested"
)

// CopilotActorLogin is the login the platform uses for its coding agent.
const CopilotActorLogin = "Copilot"

// CopilotPRStatus describes the Copilot-authored PR linked to an issue.
type CopilotPRStatus struct {
	NodeID          string `json:"node_id"`
	Number          int    `json:"number"`
	IsDraft         bool   `json:"is_draft"`
	HeadRef         string `json:"head_ref"`
	BaseRef         string `json:"base_ref"`
	LastCommitSHA   string `json:"last_commit_sha"`
	CopilotFinished bool   `json:"copilot_finished"`
}

// ProjectItem is one item of a project board, with its resolved status.
type ProjectItem struct {
	ItemID      string `json:"item_id"`
	IssueNumber int    `json:"issue_number"`
	IssueNodeID string `json:"issue_node_id"`
	Title       string `json:"title"`
	Status      string `json:"status"`
}

// MergeResult is the outcome of a successful PR merge.
type MergeResult struct {
	MergeCommitSHA string `json:"merge_commit_sha"`
}

// IssueMetadata carries the project-field values set on a board item.
type IssueMetadata struct {
	Priority      string
	Size          string
	EstimateHours float64
	StartDate     string
	TargetDate    string
}

// Merge strategies for MergePullRequest.
const (
	MergeMethodSquash = "SQUASH"
	MergeMethodMerge  = "MERGE"
	MergeMethodRebase = "REBASE"
)
