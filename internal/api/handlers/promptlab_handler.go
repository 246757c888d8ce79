package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/aivis/backend/internal/llm"
	"github.com/aivis/backend/internal/mentions"
	"github.com/aivis/backend/internal/storage/models"
	"github.com/aivis/backend/pkg/logger"
)

var errNoStore = errors.New("primary store not configured")

// ConfigReader is the slice of the store the prompt lab needs to build
// detection entities.
type ConfigReader interface {
	ActiveCompetitors(ctx context.Context) ([]models.Competitor, error)
	Aliases(ctx context.Context) ([]models.CompetitorAlias, error)
}

// PromptLabHandler runs a one-off prompt against one model and reports which
// tracked entities the answer mentions, without persisting anything.
type PromptLabHandler struct {
	llm   *llm.Client
	store ConfigReader
}

func NewPromptLabHandler(client *llm.Client, store ConfigReader) *PromptLabHandler {
	return &PromptLabHandler{llm: client, store: store}
}

type promptLabRequest struct {
	Prompt    string `json:"prompt"`
	Model     string `json:"model"`
	WebSearch bool   `json:"web_search"`
}

type promptLabResponse struct {
	Text             string              `json:"text"`
	Model            string              `json:"model"`
	DurationMS       int                 `json:"duration_ms"`
	PromptTokens     int                 `json:"prompt_tokens"`
	CompletionTokens int                 `json:"completion_tokens"`
	TotalTokens      int                 `json:"total_tokens"`
	Citations        []models.Citation   `json:"citations"`
	Detections       []mentions.Detection `json:"detections"`
	Evidence         []mentions.Evidence  `json:"evidence"`
}

func (h *PromptLabHandler) Run(c *fiber.Ctx) error {
	if h.llm == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "No LLM provider configured",
		})
	}

	var req promptLabRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid prompt-lab payload",
		})
	}
	if strings.TrimSpace(req.Prompt) == "" || req.Model == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "prompt and model are required",
		})
	}

	ctx := c.Context()
	result, err := h.llm.Complete(ctx, req.Model, req.Prompt, req.WebSearch)
	if err != nil {
		logger.Error("Prompt lab completion failed",
			zap.String("model", req.Model),
			zap.Error(err),
		)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	response := promptLabResponse{
		Text:             result.Text,
		Model:            req.Model,
		DurationMS:       result.DurationMS,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		TotalTokens:      result.TotalTokens,
		Citations:        result.Citations,
	}

	entities, err := h.loadEntities(ctx)
	if err != nil {
		// The completion itself is still useful without detection.
		logger.Warn("Mention detection unavailable", zap.Error(err))
		return c.JSON(response)
	}

	response.Detections = mentions.Detect(result.Text, entities)
	if evidence, evErr := mentions.ExtractEvidence(result.Text, entities); evErr == nil {
		response.Evidence = evidence
	}

	return c.JSON(response)
}

func (h *PromptLabHandler) loadEntities(ctx context.Context) ([]*mentions.EntitySpec, error) {
	if h.store == nil {
		return nil, errNoStore
	}
	competitors, err := h.store.ActiveCompetitors(ctx)
	if err != nil {
		return nil, err
	}
	aliasRows, err := h.store.Aliases(ctx)
	if err != nil {
		return nil, err
	}

	aliasesByID := map[string][]string{}
	for _, a := range aliasRows {
		aliasesByID[a.CompetitorID] = append(aliasesByID[a.CompetitorID], a.Alias)
	}

	specs := make([]*mentions.EntitySpec, 0, len(competitors))
	for _, comp := range competitors {
		spec, err := mentions.NewEntitySpec(comp.ID, comp.Name, comp.IsPrimary, aliasesByID[comp.ID])
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
