package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/aivis/backend/internal/datasource"
	"github.com/aivis/backend/internal/metrics"
	"github.com/aivis/backend/internal/storage/supabase"
	"github.com/aivis/backend/pkg/logger"
)

// DashboardHandler serves the read-only aggregate endpoints off the
// datasource chain.
type DashboardHandler struct {
	chain *datasource.Chain
}

func NewDashboardHandler(chain *datasource.Chain) *DashboardHandler {
	return &DashboardHandler{chain: chain}
}

// fail maps chain errors onto HTTP statuses: auth and rate-limit failures
// pass through verbatim with their retry hint, everything else is a 502
// because the failure lives in a backing store, not in this service.
func fail(c *fiber.Ctx, endpoint string, err error) error {
	logger.Error("Data request failed",
		zap.String("endpoint", endpoint),
		zap.Error(err),
	)

	var apiErr *supabase.APIError
	if errors.As(err, &apiErr) && supabase.IsAuthOrRateLimit(err) {
		if apiErr.RetryAfter != "" {
			c.Set("Retry-After", apiErr.RetryAfter)
		}
		return c.Status(apiErr.StatusCode).JSON(fiber.Map{
			"error": apiErr.Message,
		})
	}

	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
		"error": "Data source unavailable: " + err.Error(),
	})
}

func observe(endpoint string, start time.Time, err error) {
	metrics.RequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RequestTotal.WithLabelValues(endpoint, status).Inc()
}

func (h *DashboardHandler) Dashboard(c *fiber.Ctx) error {
	start := time.Now()
	summary, err := h.chain.Dashboard(c.Context(), c.Query("tag"), c.Query("month"))
	observe("dashboard", start, err)
	if err != nil {
		return fail(c, "dashboard", err)
	}
	return c.JSON(summary)
}

func (h *DashboardHandler) UnderTheHood(c *fiber.Ctx) error {
	start := time.Now()
	diagnostics, err := h.chain.Diagnostics(c.Context(), c.Query("month"))
	observe("under-the-hood", start, err)
	if err != nil {
		return fail(c, "under-the-hood", err)
	}
	return c.JSON(diagnostics)
}

func (h *DashboardHandler) RunCosts(c *fiber.Ctx) error {
	start := time.Now()
	ledger, err := h.chain.RunCosts(c.Context(), c.Query("month"))
	observe("run-costs", start, err)
	if err != nil {
		return fail(c, "run-costs", err)
	}
	return c.JSON(ledger)
}

// TimeSeries never errors; the chain degrades it to ok:false.
func (h *DashboardHandler) TimeSeries(c *fiber.Ctx) error {
	start := time.Now()
	result, err := h.chain.TimeSeries(c.Context(), c.Query("tag"))
	observe("timeseries", start, err)
	if err != nil {
		return fail(c, "timeseries", err)
	}
	return c.JSON(result)
}

func (h *DashboardHandler) PromptDrilldown(c *fiber.Ctx) error {
	start := time.Now()
	drilldowns, err := h.chain.PromptDrilldown(c.Context(), c.Query("tag"), c.Query("month"))
	observe("drilldown", start, err)
	if err != nil {
		return fail(c, "drilldown", err)
	}
	return c.JSON(drilldowns)
}

func (h *DashboardHandler) Runs(c *fiber.Ctx) error {
	start := time.Now()
	runs, err := h.chain.Runs(c.Context(), c.Query("month"))
	observe("runs", start, err)
	if err != nil {
		return fail(c, "runs", err)
	}
	return c.JSON(runs)
}
