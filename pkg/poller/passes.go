package poller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Boykai/github-workflows/pkg/config"
	"github.com/Boykai/github-workflows/pkg/github"
	"github.com/Boykai/github-workflows/pkg/models"
	"github.com/Boykai/github-workflows/pkg/orchestrator"
	"github.com/Boykai/github-workflows/pkg/tracking"
)

// agentOutputPass posts the markdown outputs of finished document-producing
// agents back to their issues, followed by the completion marker the status
// passes advance on.
func (p *Poller) agentOutputPass(ctx context.Context, token string, cfg *config.WorkflowConfiguration) error {
	var firstErr error
	for _, ps := range p.orch.Stores().Pipelines.All() {
		if ps.ProjectID != cfg.ProjectID {
			continue
		}
		slug, ok := ps.CurrentAgent()
		if !ok || !orchestrator.IsDocumentProducingAgent(slug) {
			continue
		}

		issue, err := p.platform.GetIssueWithComments(ctx, token, cfg.RepoOwner, cfg.RepoName, ps.IssueNumber)
		if err != nil {
			firstErr = keepFirst(firstErr, err)
			continue
		}
		if tracking.CompletedSlugs(issue.Bodies())[slug] {
			continue
		}

		prStatus, err := p.platform.CheckCopilotPRCompletion(ctx, token, cfg.RepoOwner, cfg.RepoName, ps.IssueNumber)
		if err != nil {
			if !errors.Is(err, github.ErrNotFound) {
				firstErr = keepFirst(firstErr, err)
			}
			continue
		}
		if !prStatus.CopilotFinished {
			continue
		}

		key := fmt.Sprintf("%d|%s|%d", ps.IssueNumber, slug, prStatus.Number)
		if _, seen := p.processed.Get(key); seen {
			continue
		}

		// The first finished PR anchors the issue's branch lineage.
		if _, ok := p.orch.Stores().Branches.Get(ps.IssueNumber); !ok {
			p.orch.Stores().Branches.Set(ps.IssueNumber, models.MainBranchInfo{
				Branch:   prStatus.HeadRef,
				PRNumber: prStatus.Number,
				HeadSHA:  prStatus.LastCommitSHA,
			})
		}

		if err := p.postAgentOutputs(ctx, token, cfg, ps.IssueNumber, slug, prStatus); err != nil {
			firstErr = keepFirst(firstErr, err)
			continue
		}
		p.processed.Add(key, struct{}{})
	}
	return firstErr
}

// postAgentOutputs posts every expected markdown file plus any other markdown
// the PR added or modified, then the "<slug>: Done!" marker.
func (p *Poller) postAgentOutputs(ctx context.Context, token string, cfg *config.WorkflowConfiguration, issueNumber int, slug string, prStatus *github.CopilotPRStatus) error {
	files, err := p.platform.GetPRChangedFiles(ctx, token, cfg.RepoOwner, cfg.RepoName, prStatus.Number)
	if err != nil {
		return fmt.Errorf("changed files of PR %d: %w", prStatus.Number, err)
	}

	names := make([]string, 0, len(files))
	seen := make(map[string]bool)
	for _, name := range orchestrator.ExpectedMarkdownOutputs(slug) {
		names = append(names, name)
		seen[baseName(name)] = true
	}
	for _, f := range files {
		if f.Status != "added" && f.Status != "modified" {
			continue
		}
		if !strings.HasSuffix(f.Filename, ".md") || seen[baseName(f.Filename)] {
			continue
		}
		names = append(names, f.Filename)
		seen[baseName(f.Filename)] = true
	}

	posted := 0
	for _, name := range names {
		path := resolvePath(files, name)
		content, err := p.platform.GetFileContentFromRef(ctx, token, cfg.RepoOwner, cfg.RepoName, path, prStatus.HeadRef)
		if err != nil {
			p.logger.Warn("Reading agent output failed",
				"issue", issueNumber, "file", path, "error", err)
			continue
		}
		comment := fmt.Sprintf("### 📄 `%s`\n\n%s", path, content)
		if err := p.platform.CreateIssueComment(ctx, token, cfg.RepoOwner, cfg.RepoName, issueNumber, comment); err != nil {
			return fmt.Errorf("post output %s: %w", path, err)
		}
		posted++
	}

	marker := fmt.Sprintf("%s: Done!", slug)
	if err := p.platform.CreateIssueComment(ctx, token, cfg.RepoOwner, cfg.RepoName, issueNumber, marker); err != nil {
		return fmt.Errorf("post completion marker for %s: %w", slug, err)
	}
	p.logger.Info("Agent outputs posted",
		"issue", issueNumber, "agent", slug, "files", posted)
	return nil
}

func baseName(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// resolvePath maps an expected bare filename to the full path the PR touched,
// falling back to the bare name.
func resolvePath(files []github.ChangedFile, name string) string {
	for _, f := range files {
		if f.Filename == name || strings.HasSuffix(f.Filename, "/"+name) {
			return f.Filename
		}
	}
	return name
}

// statusPass reconciles every item sitting in one status column: it loads or
// reconstructs the pipeline, advances past completed agents, and transitions
// the item when the pipeline is done.
func (p *Poller) statusPass(ctx context.Context, token string, cfg *config.WorkflowConfiguration, items []github.ProjectItem, status string) error {
	agents := cfg.AgentSlugsForStatus(status)
	var firstErr error
	for _, item := range items {
		if item.IssueNumber == 0 || !strings.EqualFold(item.Status, status) {
			continue
		}
		if err := p.reconcileItem(ctx, token, cfg, item, status, agents); err != nil {
			firstErr = keepFirst(firstErr, err)
		}
	}
	return firstErr
}

func (p *Poller) reconcileItem(ctx context.Context, token string, cfg *config.WorkflowConfiguration, item github.ProjectItem, status string, agents []string) error {
	wctx := &orchestrator.WorkflowContext{
		Config:        cfg,
		IssueNumber:   item.IssueNumber,
		IssueID:       item.IssueNodeID,
		ProjectItemID: item.ItemID,
	}

	issue, err := p.platform.GetIssueWithComments(ctx, token, cfg.RepoOwner, cfg.RepoName, item.IssueNumber)
	if err != nil {
		return fmt.Errorf("fetch issue %d: %w", item.IssueNumber, err)
	}

	ps, ok := p.orch.Stores().Pipelines.Get(item.IssueNumber)
	if ok && !strings.EqualFold(ps.Status, status) {
		// Managed by a pipeline from another status; that pass owns it.
		return nil
	}
	if !ok {
		if len(agents) == 0 {
			return nil
		}
		ps = p.reconstructPipeline(cfg, item.IssueNumber, status, agents, issue.Body, issue.Bodies())
	}

	if ps.IsComplete() {
		return p.transitionItem(ctx, token, cfg, wctx, status)
	}

	action := tracking.DetermineNextAction(issue.Body, issue.Bodies())
	switch action.Type {
	case tracking.ActionAdvancePipeline:
		if indexOf(agents, action.Slug) < 0 {
			return nil
		}
		return p.advancePipeline(ctx, token, cfg, wctx, issue.Body, status, action.Slug)

	case tracking.ActionAssignAgent:
		idx := indexOf(agents, action.Slug)
		if idx < 0 {
			return nil
		}
		if p.orch.Guards().RecoveryWithinCooldown(item.IssueNumber, p.pollerCfg.RecoveryCooldown) {
			return nil
		}
		_, err := p.orch.AssignAgentForStatus(ctx, wctx, status, idx)
		return err

	case tracking.ActionTransitionStatus:
		return p.transitionItem(ctx, token, cfg, wctx, status)

	default:
		return nil
	}
}

// reconstructPipeline synthesizes a PipelineState from the comment stream
// after a restart: the completed prefix is the run of "<slug>: Done!"
// markers matching the status's agents in order. An agent whose tracking row
// is still active is not pre-counted; the advance path owns that increment.
func (p *Poller) reconstructPipeline(cfg *config.WorkflowConfiguration, issueNumber int, status string, agents []string, body string, comments []string) *models.PipelineState {
	idx := tracking.CompletionPrefix(comments, agents)
	for _, step := range tracking.Parse(body) {
		if step.State == tracking.StateActive && idx > 0 && step.Slug == agents[idx-1] {
			idx--
			break
		}
	}
	ps := &models.PipelineState{
		IssueNumber:       issueNumber,
		ProjectID:         cfg.ProjectID,
		Status:            status,
		Agents:            append([]string(nil), agents...),
		CurrentAgentIndex: idx,
		CompletedAgents:   append([]string(nil), agents[:idx]...),
		StartedAt:         time.Now().UTC(),
	}
	if subs := p.orch.Stores().SubIssues.Get(issueNumber); len(subs) > 0 {
		ps.AgentSubIssues = subs
	}
	p.orch.Stores().Pipelines.Set(ps)
	p.logger.Info("Pipeline reconstructed from comments",
		"issue", issueNumber, "status", status, "completed", idx)
	return ps
}

// advancePipeline moves past an agent whose completion marker arrived: mark
// its row done, fold its child PR into the main branch, and hand the issue to
// the next agent or the transition logic.
func (p *Poller) advancePipeline(ctx context.Context, token string, cfg *config.WorkflowConfiguration, wctx *orchestrator.WorkflowContext, body, status, slug string) error {
	if updated := tracking.Mark(body, slug, tracking.StateDone); updated != body {
		if err := p.platform.UpdateIssueBody(ctx, token, cfg.RepoOwner, cfg.RepoName, wctx.IssueNumber, updated); err != nil {
			return fmt.Errorf("mark %s done: %w", slug, err)
		}
	}

	if _, err := p.orch.MergeChildPRIfApplicable(ctx, wctx, slug); err != nil {
		p.logger.Warn("Child PR merge failed",
			"issue", wctx.IssueNumber, "agent", slug, "error", err)
	}

	ps, ok := p.orch.Stores().Pipelines.Advance(wctx.IssueNumber)
	if !ok {
		return nil
	}
	if ps.IsComplete() {
		return p.transitionItem(ctx, token, cfg, wctx, status)
	}
	_, err := p.orch.AssignAgentForStatus(ctx, wctx, status, ps.CurrentAgentIndex)
	return err
}

// transitionItem moves a finished item to the next status and starts that
// status's pipeline.
func (p *Poller) transitionItem(ctx context.Context, token string, cfg *config.WorkflowConfiguration, wctx *orchestrator.WorkflowContext, status string) error {
	next, ok := cfg.NextStatus(status)
	if !ok {
		return nil
	}
	if err := p.platform.UpdateItemStatusByName(ctx, token, cfg.ProjectID, wctx.ProjectItemID, next); err != nil {
		return fmt.Errorf("move issue %d to %s: %w", wctx.IssueNumber, next, err)
	}
	p.orch.Stores().Pipelines.Remove(wctx.IssueNumber)
	p.logger.Info("Issue transitioned",
		"issue", wctx.IssueNumber, "from", status, "to", next)

	_, err := p.orch.AssignAgentForStatus(ctx, wctx, next, 0)
	return err
}

// inProgressPass observes PR completion for In Progress items. Items dragged
// forward by external board automation while an earlier status's pipeline is
// still running are moved back.
func (p *Poller) inProgressPass(ctx context.Context, cfg *config.WorkflowConfiguration, items []github.ProjectItem) error {
	token, err := p.token(ctx)
	if err != nil {
		return err
	}

	inProgressIdx := cfg.StatusIndex(cfg.StatusNames.InProgress)
	var firstErr error
	for _, item := range items {
		if item.IssueNumber == 0 || !strings.EqualFold(item.Status, cfg.StatusNames.InProgress) {
			continue
		}

		if ps, ok := p.orch.Stores().Pipelines.Get(item.IssueNumber); ok && !ps.IsComplete() {
			if idx := cfg.StatusIndex(ps.Status); idx >= 0 && idx < inProgressIdx {
				if err := p.platform.UpdateItemStatusByName(ctx, token, cfg.ProjectID, item.ItemID, ps.Status); err != nil {
					firstErr = keepFirst(firstErr, err)
				} else {
					p.logger.Info("Restored item to its pipeline status",
						"issue", item.IssueNumber, "status", ps.Status)
				}
				continue
			}
		}

		wctx := &orchestrator.WorkflowContext{
			Config:        cfg,
			IssueNumber:   item.IssueNumber,
			IssueID:       item.IssueNodeID,
			ProjectItemID: item.ItemID,
		}
		if err := p.orch.HandleInProgressStatus(ctx, wctx); err != nil {
			firstErr = keepFirst(firstErr, err)
		}
	}
	return firstErr
}

// inReviewPass finalizes completed issues and ensures every In Review item
// has a Copilot review request on its PR.
func (p *Poller) inReviewPass(ctx context.Context, token string, cfg *config.WorkflowConfiguration, items []github.ProjectItem) error {
	var firstErr error
	for _, item := range items {
		if item.IssueNumber == 0 || !strings.EqualFold(item.Status, cfg.StatusNames.InReview) {
			continue
		}
		wctx := &orchestrator.WorkflowContext{
			Config:        cfg,
			IssueNumber:   item.IssueNumber,
			IssueID:       item.IssueNodeID,
			ProjectItemID: item.ItemID,
		}

		done, err := p.orch.DetectCompletionSignal(ctx, wctx)
		if err != nil {
			firstErr = keepFirst(firstErr, err)
			continue
		}
		if done {
			if err := p.orch.HandleCompletion(ctx, wctx); err != nil {
				firstErr = keepFirst(firstErr, err)
			}
			continue
		}

		prStatus, err := p.platform.CheckCopilotPRCompletion(ctx, token, cfg.RepoOwner, cfg.RepoName, item.IssueNumber)
		if err != nil {
			if !errors.Is(err, github.ErrNotFound) {
				firstErr = keepFirst(firstErr, err)
			}
			continue
		}
		reviewed, err := p.platform.HasCopilotReviewedPR(ctx, token, cfg.RepoOwner, cfg.RepoName, prStatus.Number)
		if err != nil {
			firstErr = keepFirst(firstErr, err)
			continue
		}
		if !reviewed {
			if err := p.platform.RequestCopilotReview(ctx, token, cfg.RepoOwner, cfg.RepoName, prStatus.Number); err != nil {
				firstErr = keepFirst(firstErr, err)
			}
		}
	}
	return firstErr
}

func indexOf(slugs []string, slug string) int {
	for i, s := range slugs {
		if s == slug {
			return i
		}
	}
	return -1
}

func keepFirst(current, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
