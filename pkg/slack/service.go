// Package slack delivers workflow notifications to a Slack channel. The
// service is optional; a nil *Service is a valid no-op notifier.
package slack

import (
	"context"
	"log/slog"
	"time"
)

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	Token   string
	Channel string
}

// WorkflowStartedInput contains data for a workflow start notification.
type WorkflowStartedInput struct {
	IssueNumber int
	IssueTitle  string
	IssueURL    string

	// Fingerprint is free text identifying the channel message that
	// requested the feature, if any. When found, notifications thread
	// under it.
	Fingerprint string
}

// WorkflowCompletedInput contains data for a terminal workflow notification.
type WorkflowCompletedInput struct {
	IssueNumber int
	IssueTitle  string
	IssueURL    string
	Status      string // completed, failed
	Error       string
	Fingerprint string
	ThreadTS    string // Cached from start notification
}

// Service handles Slack notification delivery.
// Nil-safe: all methods are no-ops when service is nil.
type Service struct {
	client *Client
	logger *slog.Logger
}

// NewService creates a new Slack notification service.
// Returns nil if Token or Channel is empty.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return &Service{
		client: NewClient(cfg.Token, cfg.Channel),
		logger: slog.Default().With("component", "slack-service"),
	}
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewServiceWithClient(client *Client) *Service {
	return &Service{
		client: client,
		logger: slog.Default().With("component", "slack-service"),
	}
}

// NotifyWorkflowStarted sends a "pipeline started" notification and returns
// the resolved threadTS for reuse by the terminal notification.
// Fail-open: errors are logged, never returned.
func (s *Service) NotifyWorkflowStarted(ctx context.Context, input WorkflowStartedInput) string {
	if s == nil {
		return ""
	}

	var threadTS string
	if input.Fingerprint != "" {
		var err error
		threadTS, err = s.client.FindMessageByFingerprint(ctx, input.Fingerprint)
		if err != nil {
			s.logger.Warn("Failed to find Slack thread for fingerprint",
				"issue", input.IssueNumber,
				"fingerprint", input.Fingerprint,
				"error", err)
		}
	}

	blocks := BuildStartedMessage(input)
	if err := s.client.PostMessage(ctx, blocks, threadTS, 5*time.Second); err != nil {
		s.logger.Error("Failed to send Slack start notification",
			"issue", input.IssueNumber,
			"error", err)
	}

	return threadTS
}

// NotifyWorkflowCompleted sends a terminal status notification.
// Fail-open: errors are logged, never returned.
func (s *Service) NotifyWorkflowCompleted(ctx context.Context, input WorkflowCompletedInput) {
	if s == nil {
		return
	}

	threadTS := input.ThreadTS
	if threadTS == "" && input.Fingerprint != "" {
		var err error
		threadTS, err = s.client.FindMessageByFingerprint(ctx, input.Fingerprint)
		if err != nil {
			s.logger.Warn("Failed to find Slack thread for fingerprint",
				"issue", input.IssueNumber,
				"fingerprint", input.Fingerprint,
				"error", err)
		}
	}

	blocks := BuildTerminalMessage(input)
	if err := s.client.PostMessage(ctx, blocks, threadTS, 10*time.Second); err != nil {
		s.logger.Error("Failed to send Slack notification",
			"issue", input.IssueNumber,
			"status", input.Status,
			"error", err)
	}
}
