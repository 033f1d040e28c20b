package state

import (
	"sync"

	"github.com/Boykai/github-workflows/pkg/models"
)

// SubIssueStore tracks the lifetime slug → sub-issue mapping per issue.
// Unlike pipeline state, entries persist across status transitions; Set
// merges and never overwrites earlier entries.
type SubIssueStore struct {
	mu        sync.RWMutex
	subIssues map[int]map[string]models.SubIssueRef
}

// NewSubIssueStore creates an empty sub-issue store.
func NewSubIssueStore() *SubIssueStore {
	return &SubIssueStore{subIssues: make(map[int]map[string]models.SubIssueRef)}
}

// Get returns a copy of the sub-issue mapping for an issue.
func (s *SubIssueStore) Get(issueNumber int) map[string]models.SubIssueRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.subIssues[issueNumber]
	if !ok {
		return nil
	}
	out := make(map[string]models.SubIssueRef, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Lookup returns the sub-issue for one agent slug.
func (s *SubIssueStore) Lookup(issueNumber int, slug string) (models.SubIssueRef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.subIssues[issueNumber][slug]
	return ref, ok
}

// Set merges entries into the issue's mapping. Existing slugs keep their
// original sub-issue.
func (s *SubIssueStore) Set(issueNumber int, entries map[string]models.SubIssueRef) {
	if len(entries) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.subIssues[issueNumber]
	if !ok {
		m = make(map[string]models.SubIssueRef, len(entries))
		s.subIssues[issueNumber] = m
	}
	for slug, ref := range entries {
		if _, exists := m[slug]; !exists {
			m[slug] = ref
		}
	}
}

// Remove drops the mapping when the issue terminates.
func (s *SubIssueStore) Remove(issueNumber int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subIssues, issueNumber)
}

// Stores bundles the per-issue stores so the orchestrator and poller can
// share one injected set.
type Stores struct {
	Pipelines *PipelineStore
	Branches  *BranchStore
	SubIssues *SubIssueStore
}

// NewStores creates the full store set.
func NewStores() *Stores {
	return &Stores{
		Pipelines: NewPipelineStore(),
		Branches:  NewBranchStore(),
		SubIssues: NewSubIssueStore(),
	}
}
