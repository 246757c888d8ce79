package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var parsed map[string]any
	if len(body) > 0 {
		require.NoError(t, json.Unmarshal(body, &parsed))
	}
	return resp, parsed
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Health(context.Context) error { return f.err }

func TestHealthEndpoint(t *testing.T) {
	app := fiber.New()
	app.Get("/health", NewHealthHandler("1.2.3", true, nil).Health)

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "1.2.3", body["version"])
	assert.Equal(t, "supabase", body["primary_source"])
	assert.Equal(t, "not-configured", body["fallback"])
}

func TestHealthReportsFallbackSource(t *testing.T) {
	app := fiber.New()
	app.Get("/health", NewHealthHandler("dev", false, nil).Health)

	_, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "rest-fallback", body["primary_source"])
}

func TestHealthProbesFallback(t *testing.T) {
	app := fiber.New()
	app.Get("/health", NewHealthHandler("dev", true, &fakePinger{}).Health)

	_, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "ok", body["fallback"])
}

func TestHealthReportsUnreachableFallback(t *testing.T) {
	app := fiber.New()
	probe := &fakePinger{err: fmt.Errorf("connection refused")}
	app.Get("/health", NewHealthHandler("dev", true, probe).Health)

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode, "a dead fallback does not fail the health check")
	assert.Equal(t, "unreachable", body["fallback"])
}

func TestTriggerRequiresToken(t *testing.T) {
	h := NewTriggerHandler(nil, "secret-token")
	app := fiber.New()
	app.Post("/trigger", h.Trigger)

	// No header at all.
	resp, _ := doRequest(t, app, httptest.NewRequest(http.MethodPost, "/trigger", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Wrong token.
	req := httptest.NewRequest(http.MethodPost, "/trigger", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, _ = doRequest(t, app, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Missing Bearer prefix.
	req = httptest.NewRequest(http.MethodPost, "/trigger", nil)
	req.Header.Set("Authorization", "secret-token")
	resp, _ = doRequest(t, app, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTriggerRejectsWhenNoTokenConfigured(t *testing.T) {
	h := NewTriggerHandler(nil, "")
	app := fiber.New()
	app.Post("/trigger", h.Trigger)

	req := httptest.NewRequest(http.MethodPost, "/trigger", nil)
	req.Header.Set("Authorization", "Bearer ")
	resp, _ := doRequest(t, app, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "an unset token must never authorize")
}

func TestTriggerWithoutDispatchClient(t *testing.T) {
	h := NewTriggerHandler(nil, "secret-token")
	app := fiber.New()
	app.Post("/trigger", h.Trigger)
	app.Get("/workflow-runs", h.WorkflowRuns)

	req := httptest.NewRequest(http.MethodPost, "/trigger", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	resp, _ := doRequest(t, app, req)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/workflow-runs", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	resp, _ = doRequest(t, app, req)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestConfigRoutesWithoutPrimaryStore(t *testing.T) {
	h := NewConfigHandler(nil, nil, nil)
	app := fiber.New()
	app.Get("/config", h.Get)
	app.Put("/config", h.Put)
	app.Post("/prompts/toggle", h.TogglePrompt)

	resp, _ := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/config", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	req := httptest.NewRequest(http.MethodPut, "/config", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = doRequest(t, app, req)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/prompts/toggle", strings.NewReader(`{"query_id":"q1","action":"pause"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = doRequest(t, app, req)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestImportCSVPreview(t *testing.T) {
	h := NewConfigHandler(nil, nil, nil)
	app := fiber.New()
	app.Post("/prompts/import", h.ImportCSV)

	csv := "query\nbest charting library\nbest charting library\njs graph tools\n"
	req := httptest.NewRequest(http.MethodPost, "/prompts/import", strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")

	resp, body := doRequest(t, app, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	parsed, ok := body["parsed_queries"].([]any)
	require.True(t, ok)
	assert.Len(t, parsed, 2)
	assert.Equal(t, float64(1), body["duplicate_rows"])
	assert.Equal(t, true, body["header_row_skipped"])
}

func TestImportCSVRequiresBody(t *testing.T) {
	h := NewConfigHandler(nil, nil, nil)
	app := fiber.New()
	app.Post("/prompts/import", h.ImportCSV)

	resp, _ := doRequest(t, app, httptest.NewRequest(http.MethodPost, "/prompts/import", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
