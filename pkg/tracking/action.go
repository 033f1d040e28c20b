package tracking

// ActionType enumerates what the reconciliation loop should do next for an
// issue, derived purely from its body and comments.
type ActionType string

const (
	// ActionNoTracking: the body carries no tracking table; nothing to do.
	ActionNoTracking ActionType = "no_tracking"

	// ActionAssignAgent: no agent is active and at least one is pending.
	ActionAssignAgent ActionType = "assign_agent"

	// ActionWait: an agent is active and has not posted its marker yet.
	ActionWait ActionType = "wait"

	// ActionAdvancePipeline: the active agent posted its completion marker.
	ActionAdvancePipeline ActionType = "advance_pipeline"

	// ActionTransitionStatus: every row is done; move the issue forward.
	ActionTransitionStatus ActionType = "transition_status"
)

// Action is the computed next step plus the row it concerns.
type Action struct {
	Type         ActionType
	Slug         string
	Step         *Step
	TargetStatus string
}

// DetermineNextAction applies the reconciliation decision table to an issue
// body and its comments:
//
//	no tracking table                        → no_tracking
//	active row + "<slug>: Done!" last comment → advance_pipeline(slug)
//	active row otherwise                      → wait(slug)
//	no active, ≥1 pending                     → assign_agent(first pending)
//	all rows done                             → transition_status(last row's status)
//	anything else                             → wait
func DetermineNextAction(body string, comments []string) Action {
	steps := Parse(body)
	if steps == nil {
		return Action{Type: ActionNoTracking}
	}

	for i := range steps {
		if steps[i].State != StateActive {
			continue
		}
		step := steps[i]
		if slug, ok := CheckLastCommentForDone(comments); ok && slug == step.Slug {
			return Action{Type: ActionAdvancePipeline, Slug: step.Slug, Step: &step}
		}
		return Action{Type: ActionWait, Slug: step.Slug, Step: &step}
	}

	for i := range steps {
		if steps[i].State == StatePending {
			step := steps[i]
			return Action{Type: ActionAssignAgent, Slug: step.Slug, Step: &step}
		}
	}

	allDone := true
	for i := range steps {
		if steps[i].State != StateDone {
			allDone = false
			break
		}
	}
	if allDone && len(steps) > 0 {
		return Action{Type: ActionTransitionStatus, TargetStatus: steps[len(steps)-1].Status}
	}

	return Action{Type: ActionWait}
}
