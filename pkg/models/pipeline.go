package models

import "time"

// SubIssueRef identifies the sub-issue created for one agent of an issue's
// pipeline.
type SubIssueRef struct {
	Number int    `json:"number"`
	NodeID string `json:"node_id"`
	URL    string `json:"url"`
}

// MainBranchInfo anchors an issue's branch lineage: the head branch of the
// first PR opened for the issue, which all later agent PRs target.
// Branch and PRNumber are immutable once set; HeadSHA advances after each
// child-PR merge.
type MainBranchInfo struct {
	Branch   string `json:"branch"`
	PRNumber int    `json:"pr_number"`
	HeadSHA  string `json:"head_sha"`
}

// PipelineState tracks the ordered agent pipeline for one issue within one
// project status. It is created when the issue enters a status that has
// agents and discarded when the issue leaves that status.
type PipelineState struct {
	IssueNumber       int                    `json:"issue_number"`
	ProjectID         string                 `json:"project_id"`
	Status            string                 `json:"status"`
	Agents            []string               `json:"agents"`
	CurrentAgentIndex int                    `json:"current_agent_index"`
	CompletedAgents   []string               `json:"completed_agents"`
	StartedAt         time.Time              `json:"started_at"`
	Error             string                 `json:"error,omitempty"`
	AgentAssignedSHA  string                 `json:"agent_assigned_sha,omitempty"`
	AgentSubIssues    map[string]SubIssueRef `json:"agent_sub_issues,omitempty"`
}

// CurrentAgent returns the slug of the agent at the current index, or false
// if the pipeline is complete.
func (p *PipelineState) CurrentAgent() (string, bool) {
	if p.CurrentAgentIndex < 0 || p.CurrentAgentIndex >= len(p.Agents) {
		return "", false
	}
	return p.Agents[p.CurrentAgentIndex], true
}

// NextAgent returns the slug after the current one, or false if none.
func (p *PipelineState) NextAgent() (string, bool) {
	next := p.CurrentAgentIndex + 1
	if next < 0 || next >= len(p.Agents) {
		return "", false
	}
	return p.Agents[next], true
}

// IsComplete reports whether every agent in the pipeline has finished.
func (p *PipelineState) IsComplete() bool {
	return p.CurrentAgentIndex >= len(p.Agents)
}

// Clone returns a deep copy so callers can hand out state snapshots without
// exposing store internals.
func (p *PipelineState) Clone() *PipelineState {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Agents = append([]string(nil), p.Agents...)
	cp.CompletedAgents = append([]string(nil), p.CompletedAgents...)
	if p.AgentSubIssues != nil {
		cp.AgentSubIssues = make(map[string]SubIssueRef, len(p.AgentSubIssues))
		for k, v := range p.AgentSubIssues {
			cp.AgentSubIssues[k] = v
		}
	}
	return &cp
}
