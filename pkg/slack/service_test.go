package slack

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestService_NilReceiver(t *testing.T) {
	var s *Service

	t.Run("NotifyWorkflowStarted is no-op", func(t *testing.T) {
		result := s.NotifyWorkflowStarted(context.Background(), WorkflowStartedInput{
			IssueNumber: 42,
			Fingerprint: "test fingerprint",
		})
		assert.Empty(t, result)
	})

	t.Run("NotifyWorkflowCompleted is no-op", func(_ *testing.T) {
		// Should not panic
		s.NotifyWorkflowCompleted(context.Background(), WorkflowCompletedInput{
			IssueNumber: 42,
			Status:      "completed",
		})
	})
}

func TestNewService(t *testing.T) {
	t.Run("returns nil when token empty", func(t *testing.T) {
		svc := NewService(ServiceConfig{Token: "", Channel: "C123"})
		assert.Nil(t, svc)
	})

	t.Run("returns nil when channel empty", func(t *testing.T) {
		svc := NewService(ServiceConfig{Token: "xoxb-test", Channel: ""})
		assert.Nil(t, svc)
	})

	t.Run("returns service when configured", func(t *testing.T) {
		svc := NewService(ServiceConfig{Token: "xoxb-test", Channel: "C123"})
		assert.NotNil(t, svc)
	})
}
