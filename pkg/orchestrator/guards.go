package orchestrator

import (
	"fmt"
	"sync"
	"time"
)

// Guards holds the assignment idempotency state shared by the orchestrator
// and the reconciliation poller: per-(issue, slug) pending-assignment marks
// and per-issue recovery cooldowns. Thread-safe.
type Guards struct {
	mu       sync.Mutex
	pending  map[string]time.Time // "issue|slug" → time the assignment was started
	recovery map[int]time.Time    // issue number → last recovery-driven attempt
	now      func() time.Time
}

// NewGuards creates an empty guard set.
func NewGuards() *Guards {
	return &Guards{
		pending:  make(map[string]time.Time),
		recovery: make(map[int]time.Time),
		now:      time.Now,
	}
}

func pendingKey(issueNumber int, slug string) string {
	return fmt.Sprintf("%d|%s", issueNumber, slug)
}

// PendingWithinGrace reports whether an assignment for (issue, slug) was
// started less than grace ago.
func (g *Guards) PendingWithinGrace(issueNumber int, slug string, grace time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	started, ok := g.pending[pendingKey(issueNumber, slug)]
	return ok && g.now().Sub(started) < grace
}

// MarkPending records that an assignment for (issue, slug) is in flight.
// Called before the platform call so a concurrent caller sees the mark.
func (g *Guards) MarkPending(issueNumber int, slug string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending[pendingKey(issueNumber, slug)] = g.now()
}

// ClearPending removes the in-flight mark, letting recovery retry later.
func (g *Guards) ClearPending(issueNumber int, slug string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.pending, pendingKey(issueNumber, slug))
}

// RecoveryWithinCooldown reports whether the issue saw a recovery attempt
// less than cooldown ago.
func (g *Guards) RecoveryWithinCooldown(issueNumber int, cooldown time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	last, ok := g.recovery[issueNumber]
	return ok && g.now().Sub(last) < cooldown
}

// TouchRecovery refreshes the issue's recovery cooldown timestamp.
func (g *Guards) TouchRecovery(issueNumber int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recovery[issueNumber] = g.now()
}

// Forget drops all guard state for an issue, used when the issue terminates.
func (g *Guards) Forget(issueNumber int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.recovery, issueNumber)
	prefix := fmt.Sprintf("%d|", issueNumber)
	for key := range g.pending {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(g.pending, key)
		}
	}
}
