// Package models contains the shared domain types exchanged between the
// orchestrator, the reconciliation poller, and the API layer.
package models

import "fmt"

// Priority buckets for a recommendation, highest first.
const (
	PriorityP0 = "P0"
	PriorityP1 = "P1"
	PriorityP2 = "P2"
	PriorityP3 = "P3"
)

// T-shirt sizes for a recommendation.
const (
	SizeXS = "XS"
	SizeS  = "S"
	SizeM  = "M"
	SizeL  = "L"
	SizeXL = "XL"
)

// RecommendationMetadata carries the project-field values attached to an
// issue when it is added to the board.
type RecommendationMetadata struct {
	Priority      string   `json:"priority,omitempty"`
	Size          string   `json:"size,omitempty"`
	EstimateHours float64  `json:"estimate_hours,omitempty"`
	StartDate     string   `json:"start_date,omitempty"`
	TargetDate    string   `json:"target_date,omitempty"`
	Labels        []string `json:"labels,omitempty"`
}

// IssueRecommendation is a structured feature request produced upstream from
// a natural-language description. Immutable once confirmed by the user.
type IssueRecommendation struct {
	Title                  string                 `json:"title"`
	OriginalRequest        string                 `json:"original_request,omitempty"`
	UserStory              string                 `json:"user_story"`
	UIUXDescription        string                 `json:"uiux_description,omitempty"`
	FunctionalRequirements []string               `json:"functional_requirements"`
	TechnicalNotes         string                 `json:"technical_notes,omitempty"`
	Metadata               RecommendationMetadata `json:"metadata"`
}

const maxTitleLength = 256

// Validate rejects malformed recommendations before any platform mutation.
func (r *IssueRecommendation) Validate() error {
	if r.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(r.Title) > maxTitleLength {
		return fmt.Errorf("title exceeds %d characters", maxTitleLength)
	}
	if len(r.FunctionalRequirements) == 0 {
		return fmt.Errorf("at least one functional requirement is required")
	}
	if h := r.Metadata.EstimateHours; h != 0 && (h < 0.5 || h > 40) {
		return fmt.Errorf("estimate_hours must be between 0.5 and 40, got %v", h)
	}
	switch r.Metadata.Priority {
	case "", PriorityP0, PriorityP1, PriorityP2, PriorityP3:
	default:
		return fmt.Errorf("unknown priority %q", r.Metadata.Priority)
	}
	switch r.Metadata.Size {
	case "", SizeXS, SizeS, SizeM, SizeL, SizeXL:
	default:
		return fmt.Errorf("unknown size %q", r.Metadata.Size)
	}
	return nil
}
