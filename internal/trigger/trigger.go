package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aivis/backend/pkg/config"
	"github.com/aivis/backend/pkg/logger"
)

// WorkflowRun is one CI execution of the benchmark workflow.
type WorkflowRun struct {
	ID         int64     `json:"id"`
	Status     string    `json:"status"`
	Conclusion string    `json:"conclusion"`
	CreatedAt  time.Time `json:"created_at"`
	HTMLURL    string    `json:"html_url"`
}

// APIError carries the workflow API's status so handlers can surface
// auth and rate-limit failures verbatim, with a retry hint when given.
type APIError struct {
	StatusCode int
	Message    string
	RetryAfter string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("workflow api: %s (status %d)", e.Message, e.StatusCode)
}

// Client lists and dispatches runs of the external benchmark workflow.
type Client struct {
	workflowURL   string
	workflowToken string
	httpClient    *http.Client
}

func NewClient(cfg config.TriggerConfig) (*Client, error) {
	if cfg.WorkflowURL == "" || cfg.WorkflowToken == "" {
		return nil, fmt.Errorf("workflow url and token are required")
	}
	return &Client{
		workflowURL:   strings.TrimRight(cfg.WorkflowURL, "/"),
		workflowToken: cfg.WorkflowToken,
		httpClient:    &http.Client{Timeout: 20 * time.Second},
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal workflow request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.workflowURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build workflow request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.workflowToken)
	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("workflow request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read workflow response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			RetryAfter: resp.Header.Get("Retry-After"),
		}
		var payload struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &payload) == nil && payload.Message != "" {
			apiErr.Message = payload.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		if apiErr.Message == "" {
			apiErr.Message = resp.Status
		}
		return apiErr
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode workflow response: %w", err)
		}
	}
	return nil
}

// RecentRuns lists the latest workflow executions, newest first.
func (c *Client) RecentRuns(ctx context.Context, limit int) ([]WorkflowRun, error) {
	if limit <= 0 {
		limit = 10
	}
	var payload struct {
		WorkflowRuns []WorkflowRun `json:"workflow_runs"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/runs?per_page=%d", limit), nil, &payload); err != nil {
		return nil, fmt.Errorf("failed to list workflow runs: %w", err)
	}
	return payload.WorkflowRuns, nil
}

// Dispatch starts a new benchmark workflow run. The run id is minted here
// and passed as a workflow input, so callers can watch progress before the
// workflow has written anything.
func (c *Client) Dispatch(ctx context.Context, inputs map[string]string) (string, error) {
	if inputs == nil {
		inputs = map[string]string{}
	}
	runID, ok := inputs["run_id"]
	if !ok {
		runID = uuid.NewString()
		inputs["run_id"] = runID
	}

	body := map[string]any{"ref": "main", "inputs": inputs}
	if err := c.do(ctx, http.MethodPost, "/dispatches", body, nil); err != nil {
		return "", fmt.Errorf("failed to dispatch workflow: %w", err)
	}
	logger.Info("Benchmark workflow dispatched",
		zap.String("run_id", runID),
		zap.Any("inputs", inputs),
	)
	return runID, nil
}
