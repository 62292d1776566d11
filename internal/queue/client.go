package queue

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/calebrw/taskgate/internal/auth"
	"github.com/calebrw/taskgate/internal/retry"
)

// TaskPath composes the full task path the queue admin API addresses tasks
// by: projects/{project}/locations/{location}/queues/{queue}/tasks/{task}.
func TaskPath(projectID, location, queueName, taskName string) string {
	return fmt.Sprintf("projects/%s/locations/%s/queues/%s/tasks/%s",
		projectID, location, queueName, taskName)
}

// Deleter acknowledges a queue task by deleting it so it is not redelivered.
type Deleter interface {
	DeleteTask(ctx context.Context, fullTaskPath string) error
}

// Client talks to the push queue's admin API over HTTP with a bearer service
// token. Only deletion is exposed; this service never creates tasks.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  *auth.TokenSource
	policy  retry.Policy
}

// NewClient builds a queue client. tokens may be nil when the queue API is
// unauthenticated (local development against the fake queue).
func NewClient(baseURL string, tokens *auth.TokenSource, policy retry.Policy) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		tokens:  tokens,
		policy:  policy,
	}
}

// DeleteTask issues DELETE {base}/v2/{fullTaskPath}, retrying transient
// failures under the client's policy. A 404 means the task is already gone
// and surfaces as a non-retryable StatusError for the caller to classify.
func (c *Client) DeleteTask(ctx context.Context, fullTaskPath string) error {
	url := fmt.Sprintf("%s/v2/%s", c.baseURL, fullTaskPath)

	return c.policy.Do(ctx, "queue.delete_task", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
		if err != nil {
			return err
		}
		if c.tokens != nil {
			token, err := c.tokens.Token()
			if err != nil {
				return err
			}
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("delete task %s: %w", fullTaskPath, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &retry.StatusError{Code: resp.StatusCode, Body: string(body)}
	})
}
