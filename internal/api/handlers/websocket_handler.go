package handlers

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/aivis/backend/internal/storage/models"
	"github.com/aivis/backend/pkg/logger"
)

// ProgressReader reads job progress for a run.
type ProgressReader interface {
	JobProgress(ctx context.Context, runID string) (*models.JobProgress, error)
}

// WebSocketHandler streams run progress to the dashboard while a benchmark
// executes.
type WebSocketHandler struct {
	store        ProgressReader
	pollInterval time.Duration
}

func NewWebSocketHandler(store ProgressReader) *WebSocketHandler {
	return &WebSocketHandler{
		store:        store,
		pollInterval: 2 * time.Second,
	}
}

// HandleRunProgress polls job progress for the run in the URL and pushes a
// snapshot per tick until every job is terminal or the client goes away.
func (h *WebSocketHandler) HandleRunProgress(c *websocket.Conn) {
	runID := c.Params("id")
	logger.Info("Progress stream opened", zap.String("run_id", runID))

	defer func() {
		c.Close()
		logger.Info("Progress stream closed", zap.String("run_id", runID))
	}()

	if h.store == nil {
		h.sendError(c, "Primary store not configured")
		return
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		progress, err := h.store.JobProgress(context.Background(), runID)
		if err != nil {
			logger.Error("Failed to read run progress",
				zap.String("run_id", runID),
				zap.Error(err),
			)
			h.sendError(c, "Failed to read run progress")
			return
		}
		if progress == nil {
			h.sendError(c, "Run not found")
			return
		}

		if err := c.WriteJSON(map[string]interface{}{
			"type":     "progress",
			"progress": progress,
			"done":     progress.AllTerminal(),
		}); err != nil {
			return
		}
		if progress.AllTerminal() {
			return
		}

		<-ticker.C
	}
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, message string) {
	_ = c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": message,
	})
}
