package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Boykai/github-workflows/pkg/config"
	"github.com/Boykai/github-workflows/pkg/github"
	"github.com/Boykai/github-workflows/pkg/models"
	"github.com/Boykai/github-workflows/pkg/services"
	"github.com/Boykai/github-workflows/pkg/state"
	"github.com/Boykai/github-workflows/pkg/tracking"
)

// defaultBaseBranch is the repository default branch the first agent works
// from, before an issue's branch lineage is established.
const defaultBaseBranch = "main"

// Labels the orchestrator attaches along the pipeline.
const (
	labelInProgress      = "in-progress"
	labelCopilotComplete = "copilot-complete"
)

// Orchestrator composes platform calls into the workflow policy. It owns no
// remote state; every decision is re-derivable from the forge plus the
// in-process stores.
type Orchestrator struct {
	platform    Platform
	stores      *state.Stores
	transitions *services.TransitionLog
	guards      *Guards
	pollerCfg   *config.PollerConfig
	token       TokenFunc
	notifier    Notifier
	logger      *slog.Logger

	// sleep is swapped out in tests so retry backoff does not wall-wait.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Orchestrator.
func New(platform Platform, stores *state.Stores, transitions *services.TransitionLog, guards *Guards, pollerCfg *config.PollerConfig, token TokenFunc) *Orchestrator {
	if platform == nil {
		panic("orchestrator.New: platform must not be nil")
	}
	if stores == nil {
		panic("orchestrator.New: stores must not be nil")
	}
	if pollerCfg == nil {
		pollerCfg = config.DefaultPollerConfig()
	}
	if transitions == nil {
		transitions = services.NewTransitionLog()
	}
	if guards == nil {
		guards = NewGuards()
	}
	return &Orchestrator{
		platform:    platform,
		stores:      stores,
		transitions: transitions,
		guards:      guards,
		pollerCfg:   pollerCfg,
		token:       token,
		logger:      slog.Default().With("component", "orchestrator"),
		sleep:       sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Stores exposes the state stores for the poller and the API layer.
func (o *Orchestrator) Stores() *state.Stores { return o.stores }

// Transitions exposes the audit log.
func (o *Orchestrator) Transitions() *services.TransitionLog { return o.transitions }

// Guards exposes the shared idempotency guards.
func (o *Orchestrator) Guards() *Guards { return o.guards }

// CreateIssueFromRecommendation validates the recommendation, renders its
// body with the full pipeline tracked as pending, and creates the issue.
func (o *Orchestrator) CreateIssueFromRecommendation(ctx context.Context, wctx *WorkflowContext) error {
	rec := wctx.Recommendation
	if rec == nil {
		return services.NewValidationError("recommendation", "recommendation is required")
	}
	if err := rec.Validate(); err != nil {
		return services.NewValidationError("recommendation", err.Error())
	}

	cfg := wctx.Config
	mappings := make(map[string][]string, len(cfg.AgentMappings))
	for _, status := range cfg.StatusOrder() {
		if slugs := cfg.AgentSlugsForStatus(status); len(slugs) > 0 {
			mappings[status] = slugs
		}
	}
	body := tracking.Append(FormatIssueBody(rec), tracking.BuildSteps(cfg.StatusOrder(), mappings))

	token, err := o.token(ctx)
	if err != nil {
		return fmt.Errorf("resolve token: %w", err)
	}
	issue, err := o.platform.CreateIssue(ctx, token, cfg.RepoOwner, cfg.RepoName, rec.Title, body, rec.Metadata.Labels)
	if err != nil {
		return err
	}

	wctx.IssueID = issue.NodeID
	wctx.IssueNumber = issue.Number
	wctx.IssueURL = issue.URL
	return nil
}

// AddToProjectWithBacklog adds the issue to the project board in the Backlog
// column. Metadata fields are set best effort; their failure is logged, never
// fatal.
func (o *Orchestrator) AddToProjectWithBacklog(ctx context.Context, wctx *WorkflowContext) error {
	token, err := o.token(ctx)
	if err != nil {
		return fmt.Errorf("resolve token: %w", err)
	}

	itemID, err := o.platform.AddIssueToProject(ctx, token, wctx.ProjectID(), wctx.IssueID)
	if err != nil {
		return err
	}
	wctx.ProjectItemID = itemID

	if err := o.platform.UpdateItemStatusByName(ctx, token, wctx.ProjectID(), itemID, wctx.Config.StatusNames.Backlog); err != nil {
		return err
	}

	if rec := wctx.Recommendation; rec != nil {
		meta := github.IssueMetadata{
			Priority:      rec.Metadata.Priority,
			Size:          rec.Metadata.Size,
			EstimateHours: rec.Metadata.EstimateHours,
			StartDate:     rec.Metadata.StartDate,
			TargetDate:    rec.Metadata.TargetDate,
		}
		if err := o.platform.SetIssueMetadata(ctx, token, wctx.ProjectID(), itemID, meta); err != nil {
			o.logger.Warn("Setting issue metadata failed",
				"issue", wctx.IssueNumber, "error", err)
		}
	}
	return nil
}

// CreateAllSubIssues creates one sub-issue per unique agent across the full
// ordered pipeline, adds each to the project, and records the slug map in
// both the pipeline state and the lifetime sub-issue store.
func (o *Orchestrator) CreateAllSubIssues(ctx context.Context, wctx *WorkflowContext) error {
	token, err := o.token(ctx)
	if err != nil {
		return fmt.Errorf("resolve token: %w", err)
	}

	cfg := wctx.Config
	created := make(map[string]models.SubIssueRef)
	for _, status := range cfg.StatusOrder() {
		for _, slug := range cfg.AgentSlugsForStatus(status) {
			if _, done := created[slug]; done {
				continue
			}
			title := fmt.Sprintf("[%s] %s", slug, wctx.Recommendation.Title)
			body := formatSubIssueBody(wctx.Recommendation, wctx.IssueNumber, slug, status)
			sub, err := o.platform.CreateSubIssue(ctx, token, cfg.RepoOwner, cfg.RepoName, wctx.IssueNumber, title, body, nil)
			if err != nil {
				return fmt.Errorf("create sub-issue for %s: %w", slug, err)
			}
			if _, err := o.platform.AddIssueToProject(ctx, token, cfg.ProjectID, sub.NodeID); err != nil {
				o.logger.Warn("Adding sub-issue to project failed",
					"sub_issue", sub.Number, "error", err)
			}
			created[slug] = models.SubIssueRef{Number: sub.Number, NodeID: sub.NodeID, URL: sub.URL}
		}
	}

	o.stores.SubIssues.Set(wctx.IssueNumber, created)
	o.stores.Pipelines.MergeSubIssues(wctx.IssueNumber, created)
	o.logger.Info("Sub-issues created", "issue", wctx.IssueNumber, "count", len(created))
	return nil
}

// AssignAgentForStatus assigns the agent at (status, agentIndex) to the
// issue. Returns true when the assignment happened or was already in flight;
// an index past the end of the status pipeline is a successful no-op.
func (o *Orchestrator) AssignAgentForStatus(ctx context.Context, wctx *WorkflowContext, status string, agentIndex int) (bool, error) {
	cfg := wctx.Config
	slugs := cfg.AgentSlugsForStatus(status)
	if agentIndex < 0 || agentIndex >= len(slugs) {
		return true, nil
	}
	slug := slugs[agentIndex]

	token, err := o.token(ctx)
	if err != nil {
		return false, fmt.Errorf("resolve token: %w", err)
	}

	baseRef, branchInfo := o.resolveBaseRef(ctx, token, wctx)

	// Sub-issue selection: pipeline-scoped mapping first, then the
	// lifetime map, then the parent issue itself.
	targetNumber, targetNodeID := wctx.IssueNumber, wctx.IssueID
	if ref, ok := o.lookupSubIssue(wctx.IssueNumber, slug); ok {
		targetNumber, targetNodeID = ref.Number, ref.NodeID
	} else {
		o.logger.Warn("No sub-issue for agent, assigning against parent",
			"issue", wctx.IssueNumber, "agent", slug)
	}

	issue, err := o.platform.GetIssueWithComments(ctx, token, cfg.RepoOwner, cfg.RepoName, targetNumber)
	if err != nil {
		return false, fmt.Errorf("fetch issue %d for instructions: %w", targetNumber, err)
	}
	instructions := renderAgentInstructions(slug, issue, branchInfo)

	// Idempotency guard: a pending assignment inside the grace period means
	// another caller already did the work.
	if o.guards.PendingWithinGrace(wctx.IssueNumber, slug, o.pollerCfg.AssignmentGracePeriod) {
		o.logger.Info("Assignment already in flight, skipping",
			"issue", wctx.IssueNumber, "agent", slug)
		return true, nil
	}
	o.guards.TouchRecovery(wctx.IssueNumber)
	o.guards.MarkPending(wctx.IssueNumber, slug)

	assigned, err := o.assignWithRetry(ctx, token, wctx, targetNodeID, targetNumber, baseRef, slug, instructions)
	if err != nil || !assigned {
		o.guards.ClearPending(wctx.IssueNumber, slug)
		o.recordTransition(wctx, status, status, models.TriggerAutomatic, false, err, "")
		return false, err
	}

	o.afterAssignment(ctx, token, wctx, slug)
	o.writePipelineState(wctx, status, slugs, agentIndex, branchInfo)
	o.recordTransition(wctx, status, status, models.TriggerAutomatic, true, nil, "copilot:"+slug)
	return true, nil
}

// resolveBaseRef implements branch lineage: before the first PR exists the
// base is the repository default branch; afterwards it is the issue's main
// branch, so each agent's PR becomes a child of it.
func (o *Orchestrator) resolveBaseRef(ctx context.Context, token string, wctx *WorkflowContext) (string, *models.MainBranchInfo) {
	cfg := wctx.Config
	if info, ok := o.stores.Branches.Get(wctx.IssueNumber); ok {
		// Refresh the head SHA for the assignment audit trail.
		if pr, err := o.platform.GetPullRequest(ctx, token, cfg.RepoOwner, cfg.RepoName, info.PRNumber); err == nil {
			o.stores.Branches.UpdateHeadSHA(wctx.IssueNumber, pr.LastCommitSHA)
			info.HeadSHA = pr.LastCommitSHA
		}
		return info.Branch, info
	}

	ref, err := o.platform.FindExistingPRForIssue(ctx, token, cfg.RepoOwner, cfg.RepoName, wctx.IssueNumber)
	if err != nil {
		if !errors.Is(err, github.ErrNotFound) {
			o.logger.Warn("Looking up existing PR failed",
				"issue", wctx.IssueNumber, "error", err)
		}
		return defaultBaseBranch, nil
	}

	info := models.MainBranchInfo{Branch: ref.HeadRef, PRNumber: ref.Number}
	if pr, err := o.platform.GetPullRequest(ctx, token, cfg.RepoOwner, cfg.RepoName, ref.Number); err == nil {
		info.HeadSHA = pr.LastCommitSHA
	}
	o.stores.Branches.Set(wctx.IssueNumber, info)
	if err := o.platform.LinkPullRequestToIssue(ctx, token, cfg.RepoOwner, cfg.RepoName, ref.Number, wctx.IssueNumber); err != nil {
		o.logger.Warn("Linking PR to issue failed",
			"pr", ref.Number, "issue", wctx.IssueNumber, "error", err)
	}

	// The anchor is recorded, but this agent still works from the default
	// branch: its PR is the one that established the lineage.
	return defaultBaseBranch, nil
}

func (o *Orchestrator) lookupSubIssue(issueNumber int, slug string) (models.SubIssueRef, bool) {
	if ps, ok := o.stores.Pipelines.Get(issueNumber); ok {
		if ref, ok := ps.AgentSubIssues[slug]; ok {
			return ref, true
		}
	}
	return o.stores.SubIssues.Lookup(issueNumber, slug)
}

// assignWithRetry calls the platform assignment with bounded exponential
// backoff (base delay doubling per attempt).
func (o *Orchestrator) assignWithRetry(ctx context.Context, token string, wctx *WorkflowContext, targetNodeID string, targetNumber int, baseRef, slug, instructions string) (bool, error) {
	cfg := wctx.Config
	delay := o.pollerCfg.AssignmentRetryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= o.pollerCfg.MaxAssignmentRetries; attempt++ {
		ok, err := o.platform.AssignCopilotToIssue(ctx, token, cfg.RepoOwner, cfg.RepoName,
			targetNodeID, targetNumber, baseRef, slug, instructions)
		if err == nil && ok {
			return true, nil
		}
		lastErr = err
		o.logger.Warn("Agent assignment attempt failed",
			"issue", wctx.IssueNumber, "agent", slug, "attempt", attempt, "error", err)
		if attempt < o.pollerCfg.MaxAssignmentRetries {
			if err := o.sleep(ctx, delay); err != nil {
				return false, err
			}
			delay *= 2
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("assignment rejected for agent %s", slug)
	}
	return false, fmt.Errorf("assign agent %s to issue %d: %w", slug, wctx.IssueNumber, lastErr)
}

// afterAssignment applies the bookkeeping of a successful assignment: the
// tracking row flips to active, the issue gets an in-progress label, and the
// agent's sub-issue moves to In Progress on the board. All best effort.
func (o *Orchestrator) afterAssignment(ctx context.Context, token string, wctx *WorkflowContext, slug string) {
	cfg := wctx.Config
	if err := o.markTrackingRow(ctx, token, wctx, slug, tracking.StateActive); err != nil {
		o.logger.Warn("Marking tracking row active failed",
			"issue", wctx.IssueNumber, "agent", slug, "error", err)
	}
	if err := o.platform.AddIssueLabels(ctx, token, cfg.RepoOwner, cfg.RepoName, wctx.IssueNumber, []string{labelInProgress}); err != nil {
		o.logger.Warn("Adding in-progress label failed",
			"issue", wctx.IssueNumber, "error", err)
	}
	if ref, ok := o.lookupSubIssue(wctx.IssueNumber, slug); ok {
		// Re-adding an item already on the board returns its existing id.
		if itemID, err := o.platform.AddIssueToProject(ctx, token, cfg.ProjectID, ref.NodeID); err == nil {
			if err := o.platform.UpdateItemStatusByName(ctx, token, cfg.ProjectID, itemID, cfg.StatusNames.InProgress); err != nil {
				o.logger.Warn("Moving sub-issue to In Progress failed",
					"sub_issue", ref.Number, "error", err)
			}
		}
	}
	o.guards.TouchRecovery(wctx.IssueNumber)
}

// markTrackingRow updates one row of the in-body tracking table.
func (o *Orchestrator) markTrackingRow(ctx context.Context, token string, wctx *WorkflowContext, slug string, rowState tracking.StepState) error {
	cfg := wctx.Config
	issue, err := o.platform.GetIssueWithComments(ctx, token, cfg.RepoOwner, cfg.RepoName, wctx.IssueNumber)
	if err != nil {
		return err
	}
	updated := tracking.Mark(issue.Body, slug, rowState)
	if updated == issue.Body {
		return nil
	}
	return o.platform.UpdateIssueBody(ctx, token, cfg.RepoOwner, cfg.RepoName, wctx.IssueNumber, updated)
}

func (o *Orchestrator) writePipelineState(wctx *WorkflowContext, status string, slugs []string, agentIndex int, branchInfo *models.MainBranchInfo) {
	ps, ok := o.stores.Pipelines.Get(wctx.IssueNumber)
	if !ok {
		ps = &models.PipelineState{
			IssueNumber: wctx.IssueNumber,
			ProjectID:   wctx.ProjectID(),
			StartedAt:   time.Now().UTC(),
		}
	}
	ps.Status = status
	ps.Agents = append([]string(nil), slugs...)
	ps.CurrentAgentIndex = agentIndex
	ps.CompletedAgents = append([]string(nil), slugs[:agentIndex]...)
	if branchInfo != nil {
		ps.AgentAssignedSHA = branchInfo.HeadSHA
	}
	if subs := o.stores.SubIssues.Get(wctx.IssueNumber); len(subs) > 0 {
		if ps.AgentSubIssues == nil {
			ps.AgentSubIssues = make(map[string]models.SubIssueRef, len(subs))
		}
		for slug, ref := range subs {
			if _, exists := ps.AgentSubIssues[slug]; !exists {
				ps.AgentSubIssues[slug] = ref
			}
		}
	}
	o.stores.Pipelines.Set(ps)
}

func (o *Orchestrator) recordTransition(wctx *WorkflowContext, from, to, trigger string, success bool, err error, assignedUser string) {
	t := models.WorkflowTransition{
		IssueID:      wctx.IssueID,
		ProjectID:    wctx.ProjectID(),
		FromStatus:   from,
		ToStatus:     to,
		TriggeredBy:  trigger,
		Success:      success,
		AssignedUser: assignedUser,
	}
	if err != nil {
		t.Error = err.Error()
	}
	o.transitions.Record(t)
}

// HandleReadyStatus reacts to an explicit ready event: assign the first In
// Progress agent and move the board item forward. When assignment fails and
// a fallback assignee is configured and valid, a human gets the issue.
func (o *Orchestrator) HandleReadyStatus(ctx context.Context, wctx *WorkflowContext) error {
	cfg := wctx.Config
	token, err := o.token(ctx)
	if err != nil {
		return fmt.Errorf("resolve token: %w", err)
	}

	assigned, assignErr := o.AssignAgentForStatus(ctx, wctx, cfg.StatusNames.InProgress, 0)
	if !assigned && cfg.CopilotAssignee != "" {
		ok, err := o.platform.ValidateAssignee(ctx, token, cfg.RepoOwner, cfg.RepoName, cfg.CopilotAssignee)
		if err == nil && ok {
			if err := o.platform.AssignIssue(ctx, token, cfg.RepoOwner, cfg.RepoName, wctx.IssueNumber, cfg.CopilotAssignee); err != nil {
				o.logger.Warn("Fallback assignment failed",
					"issue", wctx.IssueNumber, "assignee", cfg.CopilotAssignee, "error", err)
			} else {
				o.logger.Info("Fell back to human assignee",
					"issue", wctx.IssueNumber, "assignee", cfg.CopilotAssignee)
				assignErr = nil
			}
		}
	}

	if wctx.ProjectItemID != "" {
		if err := o.platform.UpdateItemStatusByName(ctx, token, cfg.ProjectID, wctx.ProjectItemID, cfg.StatusNames.InProgress); err != nil {
			return fmt.Errorf("move item to %s: %w", cfg.StatusNames.InProgress, err)
		}
	}
	return assignErr
}

// TransitionToReady moves a Backlog issue's board item to Ready, releasing
// any Backlog pipeline state. Used for explicit promotion events; the poller
// reaches the same outcome through its backlog pass.
func (o *Orchestrator) TransitionToReady(ctx context.Context, wctx *WorkflowContext) error {
	cfg := wctx.Config
	token, err := o.token(ctx)
	if err != nil {
		return fmt.Errorf("resolve token: %w", err)
	}

	if err := o.platform.UpdateItemStatusByName(ctx, token, cfg.ProjectID, wctx.ProjectItemID, cfg.StatusNames.Ready); err != nil {
		err = fmt.Errorf("move item to %s: %w", cfg.StatusNames.Ready, err)
		o.recordTransition(wctx, cfg.StatusNames.Backlog, cfg.StatusNames.Ready, models.TriggerManual, false, err, "")
		return err
	}
	o.stores.Pipelines.Remove(wctx.IssueNumber)

	o.recordTransition(wctx, cfg.StatusNames.Backlog, cfg.StatusNames.Ready, models.TriggerManual, true, nil, "")
	o.logger.Info("Issue promoted to ready", "issue", wctx.IssueNumber)
	return nil
}

// HandleInProgressStatus observes PR completion for an In Progress issue:
// when the Copilot PR is finished it is surfaced for review, an implement
// child PR is folded into the main branch, and the item moves to In Review
// with a reviewer assigned.
func (o *Orchestrator) HandleInProgressStatus(ctx context.Context, wctx *WorkflowContext) error {
	cfg := wctx.Config
	token, err := o.token(ctx)
	if err != nil {
		return fmt.Errorf("resolve token: %w", err)
	}

	prStatus, err := o.platform.CheckCopilotPRCompletion(ctx, token, cfg.RepoOwner, cfg.RepoName, wctx.IssueNumber)
	if err != nil {
		if errors.Is(err, github.ErrNotFound) {
			return nil
		}
		return err
	}
	if !prStatus.CopilotFinished {
		return nil
	}

	if prStatus.IsDraft {
		if err := o.platform.MarkPRReadyForReview(ctx, token, prStatus.NodeID); err != nil {
			return fmt.Errorf("mark PR %d ready: %w", prStatus.Number, err)
		}
	}

	if _, ok := o.stores.Branches.Get(wctx.IssueNumber); ok {
		if _, err := o.MergeChildPRIfApplicable(ctx, wctx, "speckit.implement"); err != nil {
			o.logger.Warn("Child PR merge failed",
				"issue", wctx.IssueNumber, "error", err)
		}
	}

	if wctx.ProjectItemID != "" {
		if err := o.platform.UpdateItemStatusByName(ctx, token, cfg.ProjectID, wctx.ProjectItemID, cfg.StatusNames.InReview); err != nil {
			return fmt.Errorf("move item to %s: %w", cfg.StatusNames.InReview, err)
		}
	}

	reviewer := cfg.ReviewAssignee
	if reviewer == "" {
		owner, err := o.platform.GetRepositoryOwner(ctx, token, cfg.RepoOwner, cfg.RepoName)
		if err != nil {
			return fmt.Errorf("resolve reviewer: %w", err)
		}
		reviewer = owner
	}
	if err := o.platform.AssignIssue(ctx, token, cfg.RepoOwner, cfg.RepoName, wctx.IssueNumber, reviewer); err != nil {
		o.logger.Warn("Assigning reviewer failed",
			"issue", wctx.IssueNumber, "reviewer", reviewer, "error", err)
	}
	if err := o.platform.RequestCopilotReview(ctx, token, cfg.RepoOwner, cfg.RepoName, prStatus.Number); err != nil {
		o.logger.Warn("Requesting Copilot review failed",
			"pr", prStatus.Number, "error", err)
	}

	o.recordTransition(wctx, cfg.StatusNames.InProgress, cfg.StatusNames.InReview, models.TriggerDetection, true, nil, reviewer)
	return nil
}

// DetectCompletionSignal reports whether the issue has terminated: closed, or
// carrying the completion label.
func (o *Orchestrator) DetectCompletionSignal(ctx context.Context, wctx *WorkflowContext) (bool, error) {
	token, err := o.token(ctx)
	if err != nil {
		return false, fmt.Errorf("resolve token: %w", err)
	}
	issueState, labels, err := o.platform.GetIssueState(ctx, token, wctx.RepoOwner(), wctx.RepoName(), wctx.IssueNumber)
	if err != nil {
		return false, err
	}
	if strings.EqualFold(issueState, "closed") {
		return true, nil
	}
	for _, l := range labels {
		if strings.EqualFold(l, labelCopilotComplete) {
			return true, nil
		}
	}
	return false, nil
}

// HandleCompletion finalizes a terminated issue: the issue is closed with the
// completion label and all in-process state for it is released.
func (o *Orchestrator) HandleCompletion(ctx context.Context, wctx *WorkflowContext) error {
	token, err := o.token(ctx)
	if err != nil {
		return fmt.Errorf("resolve token: %w", err)
	}
	if err := o.platform.UpdateIssueState(ctx, token, wctx.RepoOwner(), wctx.RepoName(), wctx.IssueNumber, "closed", []string{labelCopilotComplete}); err != nil {
		return fmt.Errorf("close issue %d: %w", wctx.IssueNumber, err)
	}

	o.stores.Pipelines.Remove(wctx.IssueNumber)
	o.stores.Branches.Remove(wctx.IssueNumber)
	o.stores.SubIssues.Remove(wctx.IssueNumber)
	o.guards.Forget(wctx.IssueNumber)

	o.recordTransition(wctx, "", config.DefaultStatusDone, models.TriggerDetection, true, nil, "")
	o.notify(ctx, WorkflowNotification{
		IssueNumber: wctx.IssueNumber,
		IssueURL:    wctx.IssueURL,
		Status:      NotifyCompleted,
	})
	o.logger.Info("Issue completed", "issue", wctx.IssueNumber)
	return nil
}

// MergeChildPRIfApplicable folds a completed agent's child PR into the
// issue's main branch: the first open Copilot PR based on the main branch
// (and distinct from the main PR) is squash-merged, its branch deleted, and
// the recorded head SHA advanced to the merge commit.
func (o *Orchestrator) MergeChildPRIfApplicable(ctx context.Context, wctx *WorkflowContext, slug string) (*github.MergeResult, error) {
	info, ok := o.stores.Branches.Get(wctx.IssueNumber)
	if !ok {
		return nil, nil
	}
	cfg := wctx.Config
	token, err := o.token(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve token: %w", err)
	}

	prs, err := o.platform.ListLinkedPRs(ctx, token, cfg.RepoOwner, cfg.RepoName, wctx.IssueNumber)
	if err != nil {
		return nil, err
	}

	var child *github.PullRequest
	for _, pr := range prs {
		if pr.Number == info.PRNumber || pr.State != "OPEN" {
			continue
		}
		if !github.IsCopilotAuthor(pr.Author) || pr.BaseRef != info.Branch {
			continue
		}
		child = pr
		break
	}
	if child == nil {
		return nil, nil
	}

	if child.IsDraft {
		if err := o.platform.MarkPRReadyForReview(ctx, token, child.NodeID); err != nil {
			return nil, fmt.Errorf("mark child PR %d ready: %w", child.Number, err)
		}
	}

	headline := fmt.Sprintf("Merge %s changes into %s", slug, info.Branch)
	result, err := o.platform.MergePullRequest(ctx, token, child.NodeID, github.MergeMethodSquash, headline)
	if err != nil {
		return nil, fmt.Errorf("merge child PR %d: %w", child.Number, err)
	}

	if err := o.platform.DeleteBranch(ctx, token, cfg.RepoOwner, cfg.RepoName, child.HeadRef); err != nil {
		o.logger.Warn("Deleting child branch failed",
			"branch", child.HeadRef, "error", err)
	}
	o.stores.Branches.UpdateHeadSHA(wctx.IssueNumber, result.MergeCommitSHA)
	o.logger.Info("Child PR merged",
		"issue", wctx.IssueNumber, "pr", child.Number, "agent", slug,
		"merge_commit", result.MergeCommitSHA)
	return result, nil
}

// ExecuteFullWorkflow runs the end-to-end happy path from a confirmed
// recommendation: issue, board placement, sub-issues, first assignment. Any
// failure yields a WorkflowResult with the error; there is no rollback.
func (o *Orchestrator) ExecuteFullWorkflow(ctx context.Context, wctx *WorkflowContext) *models.WorkflowResult {
	var title string
	if wctx.Recommendation != nil {
		title = wctx.Recommendation.Title
	}
	fail := func(err error) *models.WorkflowResult {
		o.logger.Error("Workflow failed",
			"issue", wctx.IssueNumber, "error", err)
		o.notify(ctx, WorkflowNotification{
			IssueNumber: wctx.IssueNumber,
			IssueTitle:  title,
			IssueURL:    wctx.IssueURL,
			Status:      NotifyFailed,
			Error:       err.Error(),
		})
		return &models.WorkflowResult{
			Success:     false,
			IssueID:     wctx.IssueID,
			IssueNumber: wctx.IssueNumber,
			IssueURL:    wctx.IssueURL,
			Error:       err.Error(),
		}
	}

	if err := o.CreateIssueFromRecommendation(ctx, wctx); err != nil {
		return fail(err)
	}
	if err := o.AddToProjectWithBacklog(ctx, wctx); err != nil {
		return fail(err)
	}

	// Pass-through: skip leading statuses that have no agents, moving the
	// board item along with the walk.
	cfg := wctx.Config
	status := cfg.StatusNames.Backlog
	for len(cfg.AgentSlugsForStatus(status)) == 0 {
		next, ok := cfg.NextStatus(status)
		if !ok {
			return fail(fmt.Errorf("no status with agents configured for project %s", cfg.ProjectID))
		}
		status = next
	}
	if !strings.EqualFold(status, cfg.StatusNames.Backlog) {
		token, err := o.token(ctx)
		if err != nil {
			return fail(err)
		}
		if err := o.platform.UpdateItemStatusByName(ctx, token, cfg.ProjectID, wctx.ProjectItemID, status); err != nil {
			return fail(fmt.Errorf("move item to %s: %w", status, err))
		}
	}

	o.guards.TouchRecovery(wctx.IssueNumber)

	if err := o.CreateAllSubIssues(ctx, wctx); err != nil {
		return fail(err)
	}
	o.writePipelineState(wctx, status, cfg.AgentSlugsForStatus(status), 0, nil)

	if _, err := o.AssignAgentForStatus(ctx, wctx, status, 0); err != nil {
		return fail(err)
	}

	o.notify(ctx, WorkflowNotification{
		IssueNumber: wctx.IssueNumber,
		IssueTitle:  title,
		IssueURL:    wctx.IssueURL,
		Status:      NotifyStarted,
	})
	return &models.WorkflowResult{
		Success:       true,
		IssueID:       wctx.IssueID,
		IssueNumber:   wctx.IssueNumber,
		IssueURL:      wctx.IssueURL,
		ProjectItemID: wctx.ProjectItemID,
		CurrentStatus: status,
		Message:       fmt.Sprintf("issue #%d created and first agent assigned", wctx.IssueNumber),
	}
}
