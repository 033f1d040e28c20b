package orchestrator

import "context"

// Notification statuses passed to the Notifier.
const (
	NotifyStarted   = "started"
	NotifyCompleted = "completed"
	NotifyFailed    = "failed"
)

// WorkflowNotification describes a workflow lifecycle event worth telling a
// human about.
type WorkflowNotification struct {
	IssueNumber int
	IssueTitle  string
	IssueURL    string
	Status      string
	Error       string
}

// Notifier receives workflow lifecycle events. Implementations must be
// fail-open; the orchestrator never inspects a delivery outcome.
type Notifier interface {
	Notify(ctx context.Context, n WorkflowNotification)
}

// SetNotifier installs an optional lifecycle notifier. Call before any
// workflow runs; the orchestrator does not synchronize this field.
func (o *Orchestrator) SetNotifier(n Notifier) {
	o.notifier = n
}

func (o *Orchestrator) notify(ctx context.Context, n WorkflowNotification) {
	if o.notifier == nil {
		return
	}
	o.notifier.Notify(ctx, n)
}
