package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// FallbackPinger probes the secondary REST API.
type FallbackPinger interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	startedAt time.Time
	version   string
	primary   bool
	fallback  FallbackPinger
}

func NewHealthHandler(version string, primaryConfigured bool, fallback FallbackPinger) *HealthHandler {
	return &HealthHandler{
		startedAt: time.Now(),
		version:   version,
		primary:   primaryConfigured,
		fallback:  fallback,
	}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	source := "supabase"
	if !h.primary {
		source = "rest-fallback"
	}

	fallback := "not-configured"
	if h.fallback != nil {
		if err := h.fallback.Health(c.Context()); err != nil {
			fallback = "unreachable"
		} else {
			fallback = "ok"
		}
	}

	return c.JSON(fiber.Map{
		"status":         "ok",
		"version":        h.version,
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"primary_source": source,
		"fallback":       fallback,
	})
}
