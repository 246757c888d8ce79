package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aivis/backend/pkg/logger"
	"github.com/aivis/backend/pkg/retry"
)

var (
	// ErrNotProvisioned marks missing-relation/missing-column conditions.
	// Callers treat it as "store not yet provisioned" and degrade to empty
	// data instead of failing the request.
	ErrNotProvisioned = errors.New("relation or column not provisioned")

	// ErrPageLimit is returned when a paged select exceeds the hard page
	// ceiling instead of looping indefinitely.
	ErrPageLimit = errors.New("page limit exceeded")
)

var (
	missingRelationPattern = regexp.MustCompile(`relation "[^"]+" does not exist`)
	missingColumnPattern   = regexp.MustCompile(`column "[^"]+" (?:of relation "[^"]+" )?does not exist|Could not find the '[^']+' column`)
)

// APIError is a PostgREST error response with enough context to classify it.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Hint       string
	RetryAfter string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("supabase: %s (status %d)", e.Message, e.StatusCode)
}

// IsNotProvisioned reports whether err means a relation or column is missing.
func IsNotProvisioned(err error) bool {
	if errors.Is(err, ErrNotProvisioned) {
		return true
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == "42P01" || apiErr.Code == "42703" || apiErr.Code == "PGRST205" {
		return true
	}
	return missingRelationPattern.MatchString(apiErr.Message) ||
		missingColumnPattern.MatchString(apiErr.Message)
}

// IsAuthOrRateLimit reports whether err must be surfaced verbatim to the
// caller rather than retried or degraded.
func IsAuthOrRateLimit(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return true
	}
	return false
}

// Client is a typed PostgREST client for the hosted analytical store.
type Client struct {
	baseURL     string
	serviceKey  string
	httpClient  *http.Client
	pageSize    int
	maxPages    int
	retryConfig retry.Config
}

func NewClient(baseURL, serviceKey string, timeoutSec, pageSize, maxPages int) (*Client, error) {
	if baseURL == "" || serviceKey == "" {
		return nil, fmt.Errorf("supabase url and service key are required")
	}
	if pageSize <= 0 {
		pageSize = 1000
	}
	if maxPages <= 0 {
		maxPages = 40
	}

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   250 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		IsRetryable:    isTransient,
		Logger:         logger.L(),
	}

	logger.Info("Supabase client initialized", zap.String("url", baseURL))

	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		serviceKey:  serviceKey,
		httpClient:  &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		pageSize:    pageSize,
		maxPages:    maxPages,
		retryConfig: retryConfig,
	}, nil
}

// Transient failures (network, 5xx) are retried; everything else, including
// auth, rate-limit and not-provisioned conditions, surfaces immediately.
func isTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return true
}

// Query describes one PostgREST request.
type Query struct {
	Select  string
	Filters []Filter
	Order   string
	Limit   int
	Offset  int
}

type Filter struct {
	Column string
	Op     string
	Value  string
}

func Eq(column, value string) Filter { return Filter{Column: column, Op: "eq", Value: value} }
func In(column string, values []string) Filter {
	return Filter{Column: column, Op: "in", Value: "(" + strings.Join(values, ",") + ")"}
}

func (q Query) values() url.Values {
	values := url.Values{}
	if q.Select != "" {
		values.Set("select", q.Select)
	}
	for _, f := range q.Filters {
		values.Add(f.Column, f.Op+"."+f.Value)
	}
	if q.Order != "" {
		values.Set("order", q.Order)
	}
	if q.Limit > 0 {
		values.Set("limit", fmt.Sprintf("%d", q.Limit))
	}
	if q.Offset > 0 {
		values.Set("offset", fmt.Sprintf("%d", q.Offset))
	}
	return values
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, prefer string, body, out any) error {
	return retry.Do(ctx, c.retryConfig, func() error {
		endpoint := c.baseURL + path
		if len(query) > 0 {
			endpoint += "?" + query.Encode()
		}

		var reader io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("failed to marshal request body: %w", err)
			}
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("apikey", c.serviceKey)
		req.Header.Set("Authorization", "Bearer "+c.serviceKey)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if prefer != "" {
			req.Header.Set("Prefer", prefer)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("supabase request failed: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode >= 400 {
			return parseAPIError(resp, data)
		}

		if out != nil && len(data) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return nil
	})
}

func parseAPIError(resp *http.Response, data []byte) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		RetryAfter: resp.Header.Get("Retry-After"),
	}

	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Hint    string `json:"hint"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Message != "" {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Message
		apiErr.Hint = payload.Hint
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	if apiErr.Message == "" {
		apiErr.Message = resp.Status
	}
	return apiErr
}

// Select fetches a single bounded page of rows.
func (c *Client) Select(ctx context.Context, table string, q Query, out any) error {
	return c.do(ctx, http.MethodGet, "/rest/v1/"+table, q.values(), "", nil, out)
}

// SelectAll pages through a table sequentially up to the hard page ceiling.
// Failing past the ceiling is deliberate: a runaway result set should error,
// not spin.
func SelectAll[T any](ctx context.Context, c *Client, table string, q Query) ([]T, error) {
	var all []T
	for page := 0; ; page++ {
		if page >= c.maxPages {
			return nil, fmt.Errorf("select %s: %w (>%d pages)", table, ErrPageLimit, c.maxPages)
		}

		paged := q
		paged.Limit = c.pageSize
		paged.Offset = page * c.pageSize

		var rows []T
		if err := c.Select(ctx, table, paged, &rows); err != nil {
			return nil, err
		}
		all = append(all, rows...)

		if len(rows) < c.pageSize {
			return all, nil
		}
	}
}

// Insert adds rows, returning the representation when out is non-nil.
func (c *Client) Insert(ctx context.Context, table string, rows, out any) error {
	prefer := "return=minimal"
	if out != nil {
		prefer = "return=representation"
	}
	return c.do(ctx, http.MethodPost, "/rest/v1/"+table, nil, prefer, rows, out)
}

// Upsert merges rows on the given conflict target.
func (c *Client) Upsert(ctx context.Context, table, onConflict string, rows, out any) error {
	values := url.Values{}
	if onConflict != "" {
		values.Set("on_conflict", onConflict)
	}
	prefer := "resolution=merge-duplicates,return=minimal"
	if out != nil {
		prefer = "resolution=merge-duplicates,return=representation"
	}
	return c.do(ctx, http.MethodPost, "/rest/v1/"+table, values, prefer, rows, out)
}

// Update patches rows matching the query filters.
func (c *Client) Update(ctx context.Context, table string, q Query, patch any) error {
	return c.do(ctx, http.MethodPatch, "/rest/v1/"+table, q.values(), "return=minimal", patch, nil)
}

// Delete removes rows matching the query filters.
func (c *Client) Delete(ctx context.Context, table string, q Query) error {
	return c.do(ctx, http.MethodDelete, "/rest/v1/"+table, q.values(), "return=minimal", nil, nil)
}

// RPC calls a Postgres function exposed through PostgREST.
func (c *Client) RPC(ctx context.Context, name string, args, out any) error {
	if args == nil {
		args = map[string]any{}
	}
	return c.do(ctx, http.MethodPost, "/rest/v1/rpc/"+name, nil, "", args, out)
}
