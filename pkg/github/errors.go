package github

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the typed empty result for 404 responses. Callers
	// decide whether a missing entity is an error.
	ErrNotFound = errors.New("not found")

	// ErrNoToken indicates a platform call was attempted without a token.
	ErrNoToken = errors.New("no access token provided")
)

// APIError carries the status and message of a non-2xx platform response.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Retryable reports whether the failure is transient (5xx or rate-limit).
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// IsNotFound reports whether err represents a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// GraphQLError carries errors returned in a GraphQL response envelope.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return fmt.Sprintf("github: graphql errors: %v", e.Messages)
}
