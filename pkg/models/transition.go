package models

import "time"

// Trigger sources for a workflow transition.
const (
	TriggerAutomatic = "automatic"
	TriggerDetection = "detection"
	TriggerManual    = "manual"
)

// WorkflowTransition is one append-only audit record of a status change (or
// attempted change) on an issue.
type WorkflowTransition struct {
	ID           string    `json:"id"`
	IssueID      string    `json:"issue_id"`
	ProjectID    string    `json:"project_id"`
	FromStatus   string    `json:"from_status,omitempty"`
	ToStatus     string    `json:"to_status"`
	TriggeredBy  string    `json:"triggered_by"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	AssignedUser string    `json:"assigned_user,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// WorkflowResult is the outcome of ExecuteFullWorkflow. Success=false carries
// the error message; there is no partial rollback.
type WorkflowResult struct {
	Success       bool   `json:"success"`
	IssueID       string `json:"issue_id,omitempty"`
	IssueNumber   int    `json:"issue_number,omitempty"`
	IssueURL      string `json:"issue_url,omitempty"`
	ProjectItemID string `json:"project_item_id,omitempty"`
	CurrentStatus string `json:"current_status,omitempty"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
}
