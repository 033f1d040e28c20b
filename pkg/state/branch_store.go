package state

import (
	"log/slog"
	"sync"

	"github.com/Boykai/github-workflows/pkg/models"
)

// BranchStore tracks the main-branch anchor per issue. First write wins:
// once set, only the head SHA may change until the issue terminates.
type BranchStore struct {
	mu       sync.RWMutex
	branches map[int]*models.MainBranchInfo
}

// NewBranchStore creates an empty branch store.
func NewBranchStore() *BranchStore {
	return &BranchStore{branches: make(map[int]*models.MainBranchInfo)}
}

// Get returns a copy of the main-branch info for an issue.
func (s *BranchStore) Get(issueNumber int) (*models.MainBranchInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.branches[issueNumber]
	if !ok {
		return nil, false
	}
	cp := *info
	return &cp, true
}

// Set records the main branch for an issue. Idempotent: a second call for
// the same issue is logged and ignored.
func (s *BranchStore) Set(issueNumber int, info models.MainBranchInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.branches[issueNumber]; ok {
		slog.Info("Main branch already set, ignoring",
			"issue", issueNumber,
			"existing_branch", existing.Branch,
			"ignored_branch", info.Branch)
		return
	}
	cp := info
	s.branches[issueNumber] = &cp
	slog.Info("Main branch recorded",
		"issue", issueNumber,
		"branch", info.Branch,
		"pr", info.PRNumber)
}

// UpdateHeadSHA advances the head SHA after a child-PR merge. The branch
// and PR number stay untouched.
func (s *BranchStore) UpdateHeadSHA(issueNumber int, sha string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.branches[issueNumber]
	if !ok {
		return false
	}
	info.HeadSHA = sha
	return true
}

// Remove drops the main-branch anchor when the issue terminates.
func (s *BranchStore) Remove(issueNumber int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.branches, issueNumber)
}
