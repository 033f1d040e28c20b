package services

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Boykai/github-workflows/pkg/models"
)

// defaultTransitionCapacity bounds the in-memory audit log. The oldest
// records are dropped once the capacity is reached.
const defaultTransitionCapacity = 1000

// TransitionLog is the append-only, bounded audit log of workflow
// transitions. In-memory only; records do not survive a restart.
// Thread-safe.
type TransitionLog struct {
	mu       sync.RWMutex
	records  []models.WorkflowTransition
	capacity int
}

// NewTransitionLog creates a transition log with the default capacity.
func NewTransitionLog() *TransitionLog {
	return NewTransitionLogWithCapacity(defaultTransitionCapacity)
}

// NewTransitionLogWithCapacity creates a transition log holding at most
// capacity records.
func NewTransitionLogWithCapacity(capacity int) *TransitionLog {
	if capacity <= 0 {
		capacity = defaultTransitionCapacity
	}
	return &TransitionLog{capacity: capacity}
}

// Record appends a transition, filling in the id and timestamp when unset,
// and returns the stored record.
func (l *TransitionLog) Record(t models.WorkflowTransition) models.WorkflowTransition {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, t)
	if len(l.records) > l.capacity {
		// Drop the oldest overflow in one reslice copy so the backing
		// array does not grow without bound.
		overflow := len(l.records) - l.capacity
		l.records = append(l.records[:0:0], l.records[overflow:]...)
	}
	return t
}

// GetTransitions returns records newest first, optionally filtered to one
// issue. limit <= 0 means no limit.
func (l *TransitionLog) GetTransitions(issueID string, limit int) []models.WorkflowTransition {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.WorkflowTransition
	for i := len(l.records) - 1; i >= 0; i-- {
		if issueID != "" && l.records[i].IssueID != issueID {
			continue
		}
		out = append(out, l.records[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Len returns the number of records currently held.
func (l *TransitionLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
