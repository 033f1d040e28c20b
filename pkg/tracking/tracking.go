// Package tracking implements the agent-pipeline tracking table embedded in
// an issue body, and the decision logic that derives the next pipeline
// action from the table plus the issue's comment stream.
package tracking

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// StepState is the lifecycle state of one tracking-table row.
type StepState string

const (
	StatePending StepState = "pending"
	StateActive  StepState = "active"
	StateDone    StepState = "done"
)

// Step is one row of the tracking table: the agent at a given position of
// the status pipeline.
type Step struct {
	Index  int
	Status string
	Slug   string
	State  StepState
}

const (
	sectionSeparator = "---"
	sectionHeader    = "## 🤖 Agent Pipeline"
	tableHeader      = "| # | Status | Agent | State |"
	tableDivider     = "|---|--------|-------|-------|"
)

// stepRowPattern matches a rendered table row: | n | status | `slug` | state |
var stepRowPattern = regexp.MustCompile("^\\|\\s*(\\d+)\\s*\\|\\s*([^|]+?)\\s*\\|\\s*`([^`]+)`\\s*\\|\\s*([^|]+?)\\s*\\|\\s*$")

// doneMarkerPattern matches a completion marker comment: "<slug>: Done!"
var doneMarkerPattern = regexp.MustCompile(`^(.+?):\s*Done!\s*$`)

func renderState(s StepState) string {
	switch s {
	case StateDone:
		return "✅ Done"
	case StateActive:
		return "🔄 Active"
	default:
		return "⏳ Pending"
	}
}

func parseState(raw string) (StepState, bool) {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "done"):
		return StateDone, true
	case strings.Contains(lower, "active"):
		return StateActive, true
	case strings.Contains(lower, "pending"):
		return StatePending, true
	}
	return "", false
}

// BuildSteps expands the status → agent mappings into ordered pending steps,
// walking statuses in pipeline order. Indexes are 1-based.
func BuildSteps(statusOrder []string, mappings map[string][]string) []Step {
	var steps []Step
	idx := 1
	for _, status := range statusOrder {
		for key, slugs := range mappings {
			if !strings.EqualFold(key, status) {
				continue
			}
			for _, slug := range slugs {
				steps = append(steps, Step{Index: idx, Status: status, Slug: slug, State: StatePending})
				idx++
			}
		}
	}
	return steps
}

// Render produces the full tracking section, separator included.
func Render(steps []Step) string {
	var sb strings.Builder
	sb.WriteString(sectionSeparator + "\n")
	sb.WriteString(sectionHeader + "\n")
	sb.WriteString(tableHeader + "\n")
	sb.WriteString(tableDivider + "\n")
	for _, step := range steps {
		fmt.Fprintf(&sb, "| %d | %s | `%s` | %s |\n",
			step.Index, step.Status, step.Slug, renderState(step.State))
	}
	return sb.String()
}

// Append attaches (or replaces) the tracking section at the end of body.
// Idempotent: an existing section is stripped before the new one is added.
func Append(body string, steps []Step) string {
	stripped := strings.TrimRight(stripSection(body), "\n")
	if len(steps) == 0 {
		return stripped
	}
	if stripped == "" {
		return Render(steps)
	}
	return stripped + "\n\n" + Render(steps)
}

// stripSection removes an existing tracking section, including the
// separator line immediately preceding the header.
func stripSection(body string) string {
	headerPos := strings.Index(body, sectionHeader)
	if headerPos < 0 {
		return body
	}

	// Walk back over the separator line if present.
	before := strings.TrimRight(body[:headerPos], "\n")
	if strings.HasSuffix(before, sectionSeparator) {
		before = strings.TrimRight(strings.TrimSuffix(before, sectionSeparator), "\n")
	}

	// The section runs to the first non-blank, non-table line after the
	// header, or the end of the body.
	rest := body[headerPos+len(sectionHeader):]
	lines := strings.Split(rest, "\n")
	end := len(lines)
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "|") {
			continue
		}
		end = i
		break
	}
	after := strings.TrimLeft(strings.Join(lines[end:], "\n"), "\n")

	switch {
	case before == "":
		return after
	case after == "":
		return before
	default:
		return before + "\n\n" + after
	}
}

// Parse extracts tracking steps from an issue body. Returns nil when the
// body carries no tracking table. Surrounding prose is tolerated; only
// well-formed rows are collected.
func Parse(body string) []Step {
	if !strings.Contains(body, sectionHeader) {
		return nil
	}
	var steps []Step
	for _, line := range strings.Split(body, "\n") {
		m := stepRowPattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		state, ok := parseState(m[4])
		if !ok {
			continue
		}
		steps = append(steps, Step{Index: idx, Status: m[2], Slug: m[3], State: state})
	}
	return steps
}

// Mark sets the state of the row with the given slug, preserving every
// other row. No-op when the slug is absent or the body has no table.
func Mark(body, slug string, newState StepState) string {
	steps := Parse(body)
	if steps == nil {
		return body
	}
	found := false
	for i := range steps {
		if steps[i].Slug == slug {
			steps[i].State = newState
			found = true
		}
	}
	if !found {
		return body
	}
	return Append(body, steps)
}

// CheckLastCommentForDone reports the slug of a completion marker in the
// last comment, if any. Only the final comment is considered; earlier
// markers are the reconstruction path's concern.
func CheckLastCommentForDone(comments []string) (string, bool) {
	if len(comments) == 0 {
		return "", false
	}
	m := doneMarkerPattern.FindStringSubmatch(strings.TrimSpace(comments[len(comments)-1]))
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// CompletedSlugs returns the set of slugs with a completion marker anywhere
// in the comment stream.
func CompletedSlugs(comments []string) map[string]bool {
	done := make(map[string]bool)
	for _, c := range comments {
		if m := doneMarkerPattern.FindStringSubmatch(strings.TrimSpace(c)); m != nil {
			done[strings.TrimSpace(m[1])] = true
		}
	}
	return done
}

// CompletionPrefix counts how many agents, in pipeline order, have a
// completion marker. Counting stops at the first agent without one, so the
// result is always a prefix length.
func CompletionPrefix(comments []string, agents []string) int {
	done := CompletedSlugs(comments)
	n := 0
	for _, slug := range agents {
		if !done[slug] {
			break
		}
		n++
	}
	return n
}
