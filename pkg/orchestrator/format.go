package orchestrator

import (
	"fmt"
	"strings"

	"github.com/Boykai/github-workflows/pkg/github"
	"github.com/Boykai/github-workflows/pkg/models"
)

// FormatIssueBody renders a recommendation as the deterministic issue body:
// original request quoted verbatim, user story, UI/UX notes, numbered
// requirements, technical notes, and a metadata table. The agent tracking
// table is appended separately by the caller.
func FormatIssueBody(rec *models.IssueRecommendation) string {
	var sb strings.Builder

	if rec.OriginalRequest != "" {
		sb.WriteString("## Original Request\n\n")
		for _, line := range strings.Split(strings.TrimRight(rec.OriginalRequest, "\n"), "\n") {
			sb.WriteString("> " + line + "\n")
		}
		sb.WriteString("\n")
	}

	if rec.UserStory != "" {
		sb.WriteString("## User Story\n\n")
		sb.WriteString(rec.UserStory + "\n\n")
	}

	if rec.UIUXDescription != "" {
		sb.WriteString("## UI/UX\n\n")
		sb.WriteString(rec.UIUXDescription + "\n\n")
	}

	sb.WriteString("## Functional Requirements\n\n")
	for i, req := range rec.FunctionalRequirements {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, req)
	}
	sb.WriteString("\n")

	if rec.TechnicalNotes != "" {
		sb.WriteString("## Technical Notes\n\n")
		sb.WriteString(rec.TechnicalNotes + "\n\n")
	}

	sb.WriteString("## Metadata\n\n")
	sb.WriteString("| Field | Value |\n|-------|-------|\n")
	meta := rec.Metadata
	if meta.Priority != "" {
		fmt.Fprintf(&sb, "| Priority | %s |\n", meta.Priority)
	}
	if meta.Size != "" {
		fmt.Fprintf(&sb, "| Size | %s |\n", meta.Size)
	}
	if meta.EstimateHours > 0 {
		fmt.Fprintf(&sb, "| Estimate | %gh |\n", meta.EstimateHours)
	}
	if meta.StartDate != "" {
		fmt.Fprintf(&sb, "| Start date | %s |\n", meta.StartDate)
	}
	if meta.TargetDate != "" {
		fmt.Fprintf(&sb, "| Target date | %s |\n", meta.TargetDate)
	}
	sb.WriteString("\n---\n_Created by the workflow orchestrator._\n")

	return sb.String()
}

// formatSubIssueBody narrows the parent issue's scope to one agent's concern.
func formatSubIssueBody(rec *models.IssueRecommendation, parentNumber int, slug, status string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Sub-task of #%d for agent `%s` (status: %s).\n\n", parentNumber, slug, status)
	if rec != nil {
		if rec.UserStory != "" {
			sb.WriteString("## Parent User Story\n\n")
			sb.WriteString(rec.UserStory + "\n\n")
		}
		if len(rec.FunctionalRequirements) > 0 {
			sb.WriteString("## Requirements In Scope\n\n")
			for i, req := range rec.FunctionalRequirements {
				fmt.Fprintf(&sb, "%d. %s\n", i+1, req)
			}
			sb.WriteString("\n")
		}
	}
	fmt.Fprintf(&sb, "Focus only on the `%s` step of the pipeline. "+
		"Post results back to the parent issue.\n", slug)
	return sb.String()
}

// renderAgentInstructions builds the structured prompt handed to an agent at
// assignment time: the issue content, its comment stream, and a hint about
// the existing PR when branch lineage is established.
func renderAgentInstructions(slug string, issue *github.IssueWithComments, branch *models.MainBranchInfo) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are the `%s` agent in a multi-step pipeline.\n\n", slug)
	fmt.Fprintf(&sb, "# %s\n\n%s\n", issue.Title, strings.TrimSpace(issue.Body))

	if len(issue.Comments) > 0 {
		sb.WriteString("\n## Discussion\n")
		for _, c := range issue.Comments {
			fmt.Fprintf(&sb, "\n**%s** (%s):\n%s\n",
				c.Author, c.CreatedAt.Format("2006-01-02 15:04"), strings.TrimSpace(c.Body))
		}
	}

	if branch != nil {
		fmt.Fprintf(&sb, "\nAn open PR #%d already tracks this work on branch `%s`. "+
			"Base your changes on that branch and open a PR targeting it.\n",
			branch.PRNumber, branch.Branch)
	}
	return sb.String()
}

// completionMarker is the comment an agent (or the poller, on its behalf)
// posts when a step finishes.
func completionMarker(slug string) string {
	return slug + ": Done!"
}
