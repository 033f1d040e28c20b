// Package state holds the process-local per-issue stores: pipeline state,
// main-branch lineage, and sub-issue mappings. All stores are safe for
// concurrent readers; writes funnel through the orchestrator and poller,
// which share one write path.
package state

import (
	"log/slog"
	"sync"

	"github.com/Boykai/github-workflows/pkg/models"
)

// PipelineStore tracks the active PipelineState per issue. A state is
// created when an issue enters a status that has agents and removed at
// every status transition.
type PipelineStore struct {
	mu        sync.RWMutex
	pipelines map[int]*models.PipelineState
}

// NewPipelineStore creates an empty pipeline store.
func NewPipelineStore() *PipelineStore {
	return &PipelineStore{pipelines: make(map[int]*models.PipelineState)}
}

// Get returns a copy of the pipeline state for an issue.
func (s *PipelineStore) Get(issueNumber int) (*models.PipelineState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pipelines[issueNumber]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Set stores (or replaces) the pipeline state for an issue.
func (s *PipelineStore) Set(state *models.PipelineState) {
	if state == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipelines[state.IssueNumber] = state.Clone()
}

// Remove drops the pipeline state for an issue. Called at every status
// transition; sub-issue mappings live in their own store and survive.
func (s *PipelineStore) Remove(issueNumber int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pipelines, issueNumber)
}

// All returns copies of every tracked pipeline state.
func (s *PipelineStore) All() []*models.PipelineState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.PipelineState, 0, len(s.pipelines))
	for _, p := range s.pipelines {
		out = append(out, p.Clone())
	}
	return out
}

// MergeSubIssues folds additional slug → sub-issue entries into an issue's
// pipeline state without disturbing existing entries.
func (s *PipelineStore) MergeSubIssues(issueNumber int, subIssues map[string]models.SubIssueRef) {
	if len(subIssues) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pipelines[issueNumber]
	if !ok {
		return
	}
	if p.AgentSubIssues == nil {
		p.AgentSubIssues = make(map[string]models.SubIssueRef, len(subIssues))
	}
	for slug, ref := range subIssues {
		if _, exists := p.AgentSubIssues[slug]; !exists {
			p.AgentSubIssues[slug] = ref
		}
	}
}

// Advance moves the pipeline to the next agent, recording the finished slug
// in the completed prefix. Returns the updated state copy.
func (s *PipelineStore) Advance(issueNumber int) (*models.PipelineState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pipelines[issueNumber]
	if !ok {
		return nil, false
	}
	if slug, active := p.CurrentAgent(); active {
		p.CompletedAgents = append(p.CompletedAgents, slug)
		p.CurrentAgentIndex++
	} else {
		slog.Warn("Advance called on completed pipeline", "issue", issueNumber)
	}
	return p.Clone(), true
}
