package restapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aivis/backend/internal/aggregate"
	"github.com/aivis/backend/internal/storage/models"
	"github.com/aivis/backend/pkg/logger"
)

// Client talks to the secondary REST API that mirrors the analytical
// endpoints. It is the fallback when the primary store is unreachable or
// unconfigured.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeoutSec int) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("fallback base url is required")
	}

	logger.Info("Fallback REST client initialized", zap.String("url", baseURL))

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fallback request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read fallback response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("fallback %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode fallback response: %w", err)
		}
	}
	return nil
}

func filterValues(tag, month string) url.Values {
	values := url.Values{}
	if tag != "" {
		values.Set("tag", tag)
	}
	if month != "" {
		values.Set("month", month)
	}
	return values
}

func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil, nil)
}

func (c *Client) Dashboard(ctx context.Context, tag, month string) (aggregate.DashboardSummary, error) {
	var out aggregate.DashboardSummary
	if err := c.get(ctx, "/dashboard", filterValues(tag, month), &out); err != nil {
		return aggregate.DashboardSummary{}, err
	}
	return out, nil
}

func (c *Client) Diagnostics(ctx context.Context, month string) (aggregate.Diagnostics, error) {
	var out aggregate.Diagnostics
	if err := c.get(ctx, "/under-the-hood", filterValues("", month), &out); err != nil {
		return aggregate.Diagnostics{}, err
	}
	return out, nil
}

func (c *Client) RunCosts(ctx context.Context, month string) (aggregate.RunCostLedger, error) {
	var out aggregate.RunCostLedger
	if err := c.get(ctx, "/run-costs", filterValues("", month), &out); err != nil {
		return aggregate.RunCostLedger{}, err
	}
	return out, nil
}

func (c *Client) TimeSeries(ctx context.Context, tag string) (aggregate.TimeSeriesResult, error) {
	var out aggregate.TimeSeriesResult
	if err := c.get(ctx, "/timeseries", filterValues(tag, ""), &out); err != nil {
		return aggregate.TimeSeriesResult{}, err
	}
	return out, nil
}

func (c *Client) PromptDrilldown(ctx context.Context, tag, month string) ([]aggregate.PromptDrilldown, error) {
	var out []aggregate.PromptDrilldown
	if err := c.get(ctx, "/prompts/drilldown", filterValues(tag, month), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Runs(ctx context.Context, month string) ([]models.BenchmarkRun, error) {
	var out []models.BenchmarkRun
	if err := c.get(ctx, "/benchmark/runs", filterValues("", month), &out); err != nil {
		return nil, err
	}
	return out, nil
}
