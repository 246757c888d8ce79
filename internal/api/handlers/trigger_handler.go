package handlers

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/aivis/backend/internal/trigger"
	"github.com/aivis/backend/pkg/logger"
)

// TriggerHandler dispatches benchmark runs on the external CI workflow.
// All routes are gated by the shared trigger token.
type TriggerHandler struct {
	client       *trigger.Client
	triggerToken string
}

func NewTriggerHandler(client *trigger.Client, triggerToken string) *TriggerHandler {
	return &TriggerHandler{client: client, triggerToken: triggerToken}
}

func (h *TriggerHandler) authorized(c *fiber.Ctx) bool {
	if h.triggerToken == "" {
		return false
	}
	header := c.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.triggerToken)) == 1
}

func workflowError(c *fiber.Ctx, err error) error {
	var apiErr *trigger.APIError
	if errors.As(err, &apiErr) {
		if apiErr.RetryAfter != "" {
			c.Set("Retry-After", apiErr.RetryAfter)
		}
		return c.Status(apiErr.StatusCode).JSON(fiber.Map{
			"error": apiErr.Message,
		})
	}
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
		"error": err.Error(),
	})
}

type triggerRequest struct {
	Models    []string `json:"models"`
	WebSearch bool     `json:"web_search"`
}

func (h *TriggerHandler) Trigger(c *fiber.Ctx) error {
	if !h.authorized(c) {
		logger.Warn("Unauthorized trigger attempt", zap.String("ip", c.IP()))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Valid trigger token required",
		})
	}
	if h.client == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Workflow dispatch is not configured",
		})
	}

	var req triggerRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid trigger payload",
		})
	}

	inputs := map[string]string{}
	if len(req.Models) > 0 {
		inputs["models"] = strings.Join(req.Models, ",")
	}
	if req.WebSearch {
		inputs["web_search"] = "true"
	}

	runID, err := h.client.Dispatch(c.Context(), inputs)
	if err != nil {
		return workflowError(c, err)
	}

	runs, err := h.client.RecentRuns(c.Context(), 5)
	if err != nil {
		// Dispatch succeeded; a listing failure should not fail the request.
		logger.Warn("Failed to list workflow runs after dispatch", zap.Error(err))
		runs = nil
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":      "dispatched",
		"run_id":      runID,
		"recent_runs": runs,
	})
}

func (h *TriggerHandler) WorkflowRuns(c *fiber.Ctx) error {
	if !h.authorized(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Valid trigger token required",
		})
	}
	if h.client == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Workflow dispatch is not configured",
		})
	}

	runs, err := h.client.RecentRuns(c.Context(), c.QueryInt("limit", 10))
	if err != nil {
		return workflowError(c, err)
	}
	return c.JSON(runs)
}
