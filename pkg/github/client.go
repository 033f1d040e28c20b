// Package github is the typed platform client: every outbound REST and
// GraphQL call to the forge lives here. The client is stateless and holds
// no policy; bearer tokens are passed per call, never stored.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultRESTBaseURL = "https://api.github.com"
	defaultGraphQLURL  = "https://api.github.com/graphql"

	// defaultCallTimeout bounds ordinary calls; long GraphQL queries
	// (project item fan-out, timelines) get the extended budget.
	defaultCallTimeout  = 10 * time.Second
	extendedCallTimeout = 30 * time.Second

	maxTransportRetries = 3
)

// Client performs all platform calls. It owns the HTTP connection pool and
// nothing else.
type Client struct {
	httpClient  *http.Client
	restBaseURL string
	graphQLURL  string
	logger      *slog.Logger
}

// NewClient creates a platform client against the public endpoints.
func NewClient() *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: extendedCallTimeout},
		restBaseURL: defaultRESTBaseURL,
		graphQLURL:  defaultGraphQLURL,
		logger:      slog.Default().With("component", "github-client"),
	}
}

// NewClientWithBaseURL creates a client targeting custom endpoints.
// Useful for testing with a mock server.
func NewClientWithBaseURL(restBaseURL, graphQLURL string) *Client {
	c := NewClient()
	c.restBaseURL = restBaseURL
	c.graphQLURL = graphQLURL
	return c
}

// doREST performs one REST call and decodes the JSON response into out
// (skipped when out is nil). GET requests are retried on transient
// failures; mutations are not. Retry policy for those belongs to the
// call sites that can guarantee idempotency.
func (c *Client) doREST(ctx context.Context, token, method, path string, body, out any) error {
	if token == "" {
		return ErrNoToken
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
	}

	attempt := func() error {
		callCtx, cancel := context.WithTimeout(ctx, defaultCallTimeout)
		defer cancel()

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(callCtx, method, c.restBaseURL+path, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("Authorization", "Bearer "+token)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		if err := c.checkStatus(resp, method, path); err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Retryable() {
				return err
			}
			return backoff.Permanent(err)
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode %s %s response: %w", method, path, err))
		}
		return nil
	}

	if method != http.MethodGet {
		err := attempt()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return perm.Unwrap()
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxTransportRetries), ctx)
	return backoff.Retry(attempt, policy)
}

// graphQLRequest is the standard GraphQL request envelope.
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// doGraphQL performs one GraphQL call and decodes the data field into out.
// GraphQL calls get the extended timeout; they are not retried here.
func (c *Client) doGraphQL(ctx context.Context, token, query string, variables map[string]any, out any) error {
	if token == "" {
		return ErrNoToken
	}

	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal graphql request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, extendedCallTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.graphQLURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graphql call: %w", err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp, http.MethodPost, "/graphql"); err != nil {
		return err
	}

	var envelope graphQLEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode graphql response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		messages := make([]string, len(envelope.Errors))
		for i, e := range envelope.Errors {
			messages[i] = e.Message
		}
		return &GraphQLError{Messages: messages}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode graphql data: %w", err)
	}
	return nil
}

// checkStatus maps non-2xx responses to the error taxonomy: 404 becomes the
// typed ErrNotFound, everything else an APIError.
func (c *Client) checkStatus(resp *http.Response, method, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &APIError{
		StatusCode: resp.StatusCode,
		Method:     method,
		Path:       path,
		Message:    string(bytes.TrimSpace(msg)),
	}
}
