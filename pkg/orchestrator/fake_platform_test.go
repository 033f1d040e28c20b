package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/Boykai/github-workflows/pkg/github"
)

// assignCall records one AssignCopilotToIssue invocation.
type assignCall struct {
	IssueNumber int
	BaseRef     string
	CustomAgent string
}

// fakePlatform is an in-memory Platform used by orchestrator and poller
// tests. Behavior knobs are plain fields; call history is recorded.
type fakePlatform struct {
	mu sync.Mutex

	nextIssueNumber int
	issueBodies     map[int]string
	issueTitles     map[int]string
	comments        map[int][]github.Comment
	issueStates     map[int]string
	issueLabels     map[int][]string

	linkedPRs     []*github.PullRequest
	pullRequests  map[int]*github.PullRequest
	copilotStatus *github.CopilotPRStatus
	copilotErr    error
	projectItems  []github.ProjectItem
	changedFiles  []github.ChangedFile
	fileContents  map[string]string
	repoOwner     string

	assignFailures int // fail this many assignment attempts before succeeding
	assignErr      error

	assignCalls     []assignCall
	statusUpdates   []string // "itemID→status"
	mergedPRs       []string // "number:headline"
	readiedPRs      []string
	deletedBranches []string
	reviewRequests  []int
	assignedUsers   []string
	postedComments  map[int][]string
	subIssueParents map[int]int // sub-issue number → parent number
	metadataSet     int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		nextIssueNumber: 100,
		issueBodies:     make(map[int]string),
		issueTitles:     make(map[int]string),
		comments:        make(map[int][]github.Comment),
		issueStates:     make(map[int]string),
		issueLabels:     make(map[int][]string),
		pullRequests:    make(map[int]*github.PullRequest),
		fileContents:    make(map[string]string),
		postedComments:  make(map[int][]string),
		subIssueParents: make(map[int]int),
		repoOwner:       "acme-owner",
	}
}

func (f *fakePlatform) newIssue(title, body string) *github.Issue {
	f.nextIssueNumber++
	n := f.nextIssueNumber
	f.issueBodies[n] = body
	f.issueTitles[n] = title
	f.issueStates[n] = "open"
	return &github.Issue{
		NodeID: fmt.Sprintf("I_%d", n),
		Number: n,
		Title:  title,
		Body:   body,
		URL:    fmt.Sprintf("https://example.test/issues/%d", n),
	}
}

func (f *fakePlatform) CreateIssue(_ context.Context, _, _, _, title, body string, _ []string) (*github.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.newIssue(title, body), nil
}

func (f *fakePlatform) GetIssueWithComments(_ context.Context, _, _, _ string, number int) (*github.IssueWithComments, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &github.IssueWithComments{
		Title:    f.issueTitles[number],
		Body:     f.issueBodies[number],
		Comments: append([]github.Comment(nil), f.comments[number]...),
	}, nil
}

func (f *fakePlatform) UpdateIssueBody(_ context.Context, _, _, _ string, number int, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issueBodies[number] = body
	return nil
}

func (f *fakePlatform) CreateIssueComment(_ context.Context, _, _, _ string, number int, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.postedComments[number] = append(f.postedComments[number], body)
	f.comments[number] = append(f.comments[number], github.Comment{Author: "workflow", Body: body})
	return nil
}

func (f *fakePlatform) CreateSubIssue(_ context.Context, _, _, _ string, parentNumber int, title, body string, _ []string) (*github.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	issue := f.newIssue(title, body)
	f.subIssueParents[issue.Number] = parentNumber
	return issue, nil
}

func (f *fakePlatform) GetIssueState(_ context.Context, _, _, _ string, number int) (string, []string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issueStates[number], f.issueLabels[number], nil
}

func (f *fakePlatform) UpdateIssueState(_ context.Context, _, _, _ string, number int, issueState string, addLabels []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issueStates[number] = issueState
	f.issueLabels[number] = append(f.issueLabels[number], addLabels...)
	return nil
}

func (f *fakePlatform) AddIssueLabels(_ context.Context, _, _, _ string, number int, labels []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issueLabels[number] = append(f.issueLabels[number], labels...)
	return nil
}

func (f *fakePlatform) AssignIssue(_ context.Context, _, _, _ string, _ int, assignee string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assignedUsers = append(f.assignedUsers, assignee)
	return nil
}

func (f *fakePlatform) ValidateAssignee(_ context.Context, _, _, _, _ string) (bool, error) {
	return true, nil
}

func (f *fakePlatform) GetRepositoryOwner(_ context.Context, _, _, _ string) (string, error) {
	return f.repoOwner, nil
}

func (f *fakePlatform) AddIssueToProject(_ context.Context, _, _, issueNodeID string) (string, error) {
	return "ITEM_" + issueNodeID, nil
}

func (f *fakePlatform) UpdateItemStatusByName(_ context.Context, _, _, itemID, statusName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusUpdates = append(f.statusUpdates, itemID+"→"+statusName)
	return nil
}

func (f *fakePlatform) SetIssueMetadata(_ context.Context, _, _, _ string, _ github.IssueMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metadataSet++
	return nil
}

func (f *fakePlatform) GetProjectItems(_ context.Context, _, _ string) ([]github.ProjectItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]github.ProjectItem(nil), f.projectItems...), nil
}

func (f *fakePlatform) GetProjectRepository(_ context.Context, _, _ string) (string, string, error) {
	return "acme", "widgets", nil
}

func (f *fakePlatform) GetPullRequest(_ context.Context, _, _, _ string, number int) (*github.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pr, ok := f.pullRequests[number]; ok {
		cp := *pr
		return &cp, nil
	}
	return nil, fmt.Errorf("PR %d: %w", number, github.ErrNotFound)
}

func (f *fakePlatform) ListLinkedPRs(_ context.Context, _, _, _ string, _ int) ([]*github.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*github.PullRequest(nil), f.linkedPRs...), nil
}

func (f *fakePlatform) FindExistingPRForIssue(_ context.Context, _, _, _ string, issueNumber int) (*github.PRRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, pr := range f.linkedPRs {
		if pr.State == "OPEN" {
			return &github.PRRef{Number: pr.Number, HeadRef: pr.HeadRef}, nil
		}
	}
	return nil, fmt.Errorf("no open PR for issue %d: %w", issueNumber, github.ErrNotFound)
}

func (f *fakePlatform) GetPRChangedFiles(_ context.Context, _, _, _ string, _ int) ([]github.ChangedFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]github.ChangedFile(nil), f.changedFiles...), nil
}

func (f *fakePlatform) GetFileContentFromRef(_ context.Context, _, _, _, filePath, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.fileContents[filePath]
	if !ok {
		return "", fmt.Errorf("%s: %w", filePath, github.ErrNotFound)
	}
	return content, nil
}

func (f *fakePlatform) MarkPRReadyForReview(_ context.Context, _, prNodeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readiedPRs = append(f.readiedPRs, prNodeID)
	return nil
}

func (f *fakePlatform) MergePullRequest(_ context.Context, _, prNodeID, _, headline string) (*github.MergeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mergedPRs = append(f.mergedPRs, prNodeID+":"+headline)
	return &github.MergeResult{MergeCommitSHA: "merge-sha-" + prNodeID}, nil
}

func (f *fakePlatform) DeleteBranch(_ context.Context, _, _, _, branch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedBranches = append(f.deletedBranches, branch)
	return nil
}

func (f *fakePlatform) LinkPullRequestToIssue(_ context.Context, _, _, _ string, _, _ int) error {
	return nil
}

func (f *fakePlatform) AssignCopilotToIssue(_ context.Context, _, _, _, _ string, issueNumber int, baseRef, customAgent, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assignCalls = append(f.assignCalls, assignCall{
		IssueNumber: issueNumber,
		BaseRef:     baseRef,
		CustomAgent: customAgent,
	})
	if f.assignErr != nil {
		return false, f.assignErr
	}
	if f.assignFailures > 0 {
		f.assignFailures--
		return false, fmt.Errorf("transient assignment failure")
	}
	return true, nil
}

func (f *fakePlatform) CheckCopilotPRCompletion(_ context.Context, _, _, _ string, _ int) (*github.CopilotPRStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.copilotErr != nil {
		return nil, f.copilotErr
	}
	if f.copilotStatus == nil {
		return nil, fmt.Errorf("no copilot PR: %w", github.ErrNotFound)
	}
	cp := *f.copilotStatus
	return &cp, nil
}

func (f *fakePlatform) RequestCopilotReview(_ context.Context, _, _, _ string, prNumber int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviewRequests = append(f.reviewRequests, prNumber)
	return nil
}

func (f *fakePlatform) HasCopilotReviewedPR(_ context.Context, _, _, _ string, prNumber int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.reviewRequests {
		if n == prNumber {
			return true, nil
		}
	}
	return false, nil
}

// snapshotAssignCalls returns a copy of the recorded assignment calls.
func (f *fakePlatform) snapshotAssignCalls() []assignCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]assignCall(nil), f.assignCalls...)
}
