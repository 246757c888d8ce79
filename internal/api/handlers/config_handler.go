package handlers

import (
	"bytes"
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/aivis/backend/internal/configsync"
	"github.com/aivis/backend/internal/datasource"
	"github.com/aivis/backend/internal/storage/models"
	"github.com/aivis/backend/pkg/logger"
)

// ConfigHandler manages the tracked prompt/competitor configuration.
// Mutations go through the reconciler and always hit the primary store.
type ConfigHandler struct {
	store      configsync.Store
	reconciler *configsync.Reconciler
	chain      *datasource.Chain
}

func NewConfigHandler(store configsync.Store, reconciler *configsync.Reconciler, chain *datasource.Chain) *ConfigHandler {
	return &ConfigHandler{store: store, reconciler: reconciler, chain: chain}
}

type configView struct {
	Prompts     []models.PromptQuery     `json:"prompts"`
	Competitors []models.Competitor      `json:"competitors"`
	Aliases     []models.CompetitorAlias `json:"aliases"`
}

func (h *ConfigHandler) Get(c *fiber.Ctx) error {
	if h.store == nil {
		return storeUnavailable(c)
	}

	ctx := c.Context()
	prompts, err := h.store.AllPrompts(ctx)
	if err != nil {
		return fail(c, "config", err)
	}
	competitors, err := h.store.AllCompetitors(ctx)
	if err != nil {
		return fail(c, "config", err)
	}
	aliases, err := h.store.Aliases(ctx)
	if err != nil {
		return fail(c, "config", err)
	}

	return c.JSON(configView{Prompts: prompts, Competitors: competitors, Aliases: aliases})
}

func (h *ConfigHandler) Put(c *fiber.Ctx) error {
	if h.store == nil {
		return storeUnavailable(c)
	}

	var desired configsync.DesiredConfig
	if err := c.BodyParser(&desired); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid config payload",
		})
	}

	if err := configsync.Validate(desired); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	result, err := h.reconciler.Sync(c.Context(), desired)
	if err != nil {
		return fail(c, "config", err)
	}

	h.chain.InvalidateConfigDerived(context.WithoutCancel(c.Context()))

	return c.JSON(result)
}

type togglePromptRequest struct {
	QueryID string `json:"query_id"`
	Action  string `json:"action"` // activate | pause | delete
}

// TogglePrompt moves a prompt through its lifecycle. Activate and pause flip
// is_active; delete applies the reserved sentinel tag on top.
func (h *ConfigHandler) TogglePrompt(c *fiber.Ctx) error {
	if h.store == nil {
		return storeUnavailable(c)
	}

	var req togglePromptRequest
	if err := c.BodyParser(&req); err != nil || req.QueryID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "query_id and action are required",
		})
	}

	ctx := c.Context()
	prompts, err := h.store.AllPrompts(ctx)
	if err != nil {
		return fail(c, "prompts/toggle", err)
	}
	var prompt *models.PromptQuery
	for i := range prompts {
		if prompts[i].ID == req.QueryID {
			prompt = &prompts[i]
			break
		}
	}
	if prompt == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Prompt not found",
		})
	}

	switch req.Action {
	case "activate":
		if prompt.Deleted() {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Deleted prompts can only be restored by re-adding the same query text",
			})
		}
		err = h.store.UpdatePrompt(ctx, prompt.ID, map[string]any{"is_active": true})
	case "pause":
		err = h.store.UpdatePrompt(ctx, prompt.ID, map[string]any{"is_active": false})
	case "delete":
		err = h.reconciler.SoftDeletePrompt(ctx, *prompt)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown action: " + req.Action,
		})
	}
	if err != nil {
		return fail(c, "prompts/toggle", err)
	}

	h.chain.InvalidateConfigDerived(context.WithoutCancel(c.Context()))

	logger.Info("Prompt toggled",
		zap.String("query_id", req.QueryID),
		zap.String("action", req.Action),
	)
	return c.JSON(fiber.Map{"status": "ok"})
}

// ImportCSV parses an uploaded prompt CSV and returns the distinct prompts
// found. It performs no writes; the client folds the result into a config
// save.
func (h *ConfigHandler) ImportCSV(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "CSV body is required",
		})
	}

	result, err := configsync.ParseCSV(bytes.NewReader(body))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(result)
}

func storeUnavailable(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": "Configuration requires the primary store, which is not configured",
	})
}
