package validation

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Config struct {
	MaxPromptLength     int
	MaxBodySize         int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware enforces content-type and size limits on mutating requests,
// plus a length cap on prompt-lab submissions before they reach an LLM.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxPromptLength == 0 {
		cfg.MaxPromptLength = 5000
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = 1024 * 1024
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json", "text/csv", "multipart/form-data"}
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == "POST" || c.Method() == "PUT" {
			contentType := c.Get("Content-Type")
			if contentType != "" {
				allowed := false
				for _, allowedType := range cfg.AllowedContentTypes {
					if strings.Contains(contentType, allowedType) {
						allowed = true
						break
					}
				}
				if !allowed {
					return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
						"error": "Unsupported content type",
					})
				}
			}

			if len(c.Body()) > cfg.MaxBodySize {
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"error": "Request body too large",
				})
			}
		}

		if strings.HasSuffix(c.Path(), "/prompt-lab/run") {
			var req map[string]interface{}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			prompt, ok := req["prompt"].(string)
			if !ok || strings.TrimSpace(prompt) == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Prompt is required and must be a string",
				})
			}

			if len(prompt) > cfg.MaxPromptLength {
				cfg.Logger.Warn("Prompt exceeds maximum length",
					zap.String("ip", c.IP()),
					zap.Int("length", len(prompt)),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Prompt exceeds maximum length",
				})
			}
		}

		return c.Next()
	}
}
