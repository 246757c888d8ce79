package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aivis/backend/internal/llm"
	"github.com/aivis/backend/internal/mentions"
	"github.com/aivis/backend/internal/metrics"
	"github.com/aivis/backend/internal/pricing"
	"github.com/aivis/backend/internal/storage/models"
	"github.com/aivis/backend/pkg/config"
	"github.com/aivis/backend/pkg/logger"
)

// Completer is the LLM call the worker executes per job.
type Completer interface {
	Complete(ctx context.Context, model, prompt string, webSearch bool) (*llm.Result, error)
}

// Store is the slice of the analytical store the worker needs.
type Store interface {
	ReadQueue(ctx context.Context, queue string, visibilitySec, qty int) ([]models.QueueMessage, error)
	ArchiveMessage(ctx context.Context, queue string, msgID int64) error
	FetchJob(ctx context.Context, jobID int64) (*models.BenchmarkJob, error)
	UpdateJob(ctx context.Context, jobID int64, patch map[string]any) error
	UpsertResponses(ctx context.Context, rows []models.BenchmarkResponse) ([]models.BenchmarkResponse, error)
	UpsertMentions(ctx context.Context, rows []models.ResponseMention) error
	JobProgress(ctx context.Context, runID string) (*models.JobProgress, error)
	FinalizeRun(ctx context.Context, runID string) error
	ActiveCompetitors(ctx context.Context) ([]models.Competitor, error)
	Aliases(ctx context.Context) ([]models.CompetitorAlias, error)
}

// queuePayload is the pgmq message body enqueued per benchmark job.
type queuePayload struct {
	JobID int64 `json:"job_id"`
}

// Worker drains the benchmark job queue: one LLM call per job, responses and
// mention facts persisted, runs finalized when every job is terminal.
type Worker struct {
	store Store
	llm   Completer
	cfg   config.WorkerConfig

	competitors []models.Competitor
	aliasRows   []models.CompetitorAlias
}

func NewWorker(store Store, completer Completer, cfg config.WorkerConfig) *Worker {
	return &Worker{store: store, llm: completer, cfg: cfg}
}

// Run polls until the context is cancelled or the queue stays empty past the
// idle window. Spot workers rely on the idle exit to shut themselves down.
func (w *Worker) Run(ctx context.Context) error {
	logger.Info("Benchmark worker started",
		zap.String("queue", w.cfg.QueueName),
		zap.Int("visibility_sec", w.cfg.VisibilitySec),
	)

	lastWork := time.Now()
	idleWindow := time.Duration(w.cfg.IdleExitSec) * time.Second

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		messages, err := w.store.ReadQueue(ctx, w.cfg.QueueName, w.cfg.VisibilitySec, w.cfg.PollQty)
		if err != nil {
			logger.Error("Queue read failed", zap.Error(err))
			if sleepErr := sleep(ctx, time.Duration(w.cfg.EmptySleepSec)*time.Second); sleepErr != nil {
				return sleepErr
			}
			continue
		}

		if len(messages) == 0 {
			if idleWindow > 0 && time.Since(lastWork) > idleWindow {
				logger.Info("Queue idle, worker exiting",
					zap.Duration("idle", time.Since(lastWork)),
				)
				return nil
			}
			if err := sleep(ctx, time.Duration(w.cfg.EmptySleepSec)*time.Second); err != nil {
				return err
			}
			continue
		}

		lastWork = time.Now()
		for _, msg := range messages {
			if err := w.processMessage(ctx, msg); err != nil {
				logger.Error("Message processing failed",
					zap.Int64("msg_id", msg.MsgID),
					zap.Error(err),
				)
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func (w *Worker) processMessage(ctx context.Context, msg models.QueueMessage) error {
	var payload queuePayload
	if err := json.Unmarshal(msg.Message, &payload); err != nil {
		logger.Warn("Malformed queue message, archiving", zap.Int64("msg_id", msg.MsgID))
		return w.store.ArchiveMessage(ctx, w.cfg.QueueName, msg.MsgID)
	}

	job, err := w.store.FetchJob(ctx, payload.JobID)
	if err != nil {
		return err
	}
	if job == nil {
		logger.Warn("Queue message references missing job, archiving",
			zap.Int64("job_id", payload.JobID),
		)
		return w.store.ArchiveMessage(ctx, w.cfg.QueueName, msg.MsgID)
	}

	// Terminal jobs can be redelivered after a visibility timeout races a
	// slow completion; just drop the message.
	if job.Status == models.JobStatusCompleted || job.Status == models.JobStatusDeadLetter {
		return w.store.ArchiveMessage(ctx, w.cfg.QueueName, msg.MsgID)
	}

	attempt := job.AttemptCount + 1
	err = w.store.UpdateJob(ctx, job.ID, map[string]any{
		"status":        models.JobStatusProcessing,
		"attempt_count": attempt,
	})
	if err != nil {
		return err
	}

	if execErr := w.executeJob(ctx, job); execErr != nil {
		return w.handleFailure(ctx, job, msg.MsgID, attempt, execErr)
	}

	if err := w.store.ArchiveMessage(ctx, w.cfg.QueueName, msg.MsgID); err != nil {
		return err
	}
	return w.maybeFinalize(ctx, job.RunID)
}

func (w *Worker) executeJob(ctx context.Context, job *models.BenchmarkJob) error {
	result, err := w.llm.Complete(ctx, job.Model, job.QueryText, job.WebSearchEnabled)
	if err != nil {
		return err
	}

	entities, err := w.entitiesFor(ctx, job)
	if err != nil {
		return err
	}

	row := models.BenchmarkResponse{
		RunID:            job.RunID,
		QueryID:          job.QueryID,
		RunIteration:     job.RunIteration,
		Model:            job.Model,
		Provider:         string(llm.ProviderFor(job.Model)),
		ModelOwner:       pricing.Owner(job.Model),
		WebSearchEnabled: job.WebSearchEnabled,
		DurationMS:       result.DurationMS,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		TotalTokens:      result.TotalTokens,
		ResponseText:     result.Text,
		Citations:        result.Citations,
	}
	saved, err := w.store.UpsertResponses(ctx, []models.BenchmarkResponse{row})
	if err != nil {
		return err
	}
	if len(saved) == 0 {
		return fmt.Errorf("response upsert returned no row for job %d", job.ID)
	}
	responseID := saved[0].ID

	detections := mentions.Detect(result.Text, entities)
	mentionRows := make([]models.ResponseMention, 0, len(detections))
	for _, d := range detections {
		mentionRows = append(mentionRows, models.ResponseMention{
			ResponseID:   responseID,
			CompetitorID: d.CompetitorID,
			Mentioned:    d.Mentioned,
		})
	}
	if err := w.store.UpsertMentions(ctx, mentionRows); err != nil {
		return err
	}

	err = w.store.UpdateJob(ctx, job.ID, map[string]any{
		"status":      models.JobStatusCompleted,
		"response_id": responseID,
	})
	if err != nil {
		return err
	}

	metrics.JobsProcessed.WithLabelValues(models.JobStatusCompleted).Inc()
	metrics.JobDuration.WithLabelValues(job.Model).Observe(float64(result.DurationMS) / 1000)
	metrics.LLMTokensUsed.WithLabelValues(job.Model, "prompt").Add(float64(result.PromptTokens))
	metrics.LLMTokensUsed.WithLabelValues(job.Model, "completion").Add(float64(result.CompletionTokens))
	if cost, priced := pricing.Estimate(job.Model, result.PromptTokens, result.CompletionTokens); priced {
		metrics.LLMCost.WithLabelValues(job.Model).Add(cost)
	}

	logger.Info("Job completed",
		zap.Int64("job_id", job.ID),
		zap.String("model", job.Model),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return nil
}

// handleFailure marks the job failed for redelivery, or dead-letters it at
// the attempt ceiling. Dead-lettering persists an error response row so the
// run's denominators stay consistent with the planned battery.
func (w *Worker) handleFailure(ctx context.Context, job *models.BenchmarkJob, msgID int64, attempt int, execErr error) error {
	maxAttempts := job.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = w.cfg.DefaultMaxTries
	}

	if attempt < maxAttempts {
		logger.Warn("Job failed, will retry on redelivery",
			zap.Int64("job_id", job.ID),
			zap.Int("attempt", attempt),
			zap.Error(execErr),
		)
		return w.store.UpdateJob(ctx, job.ID, map[string]any{
			"status":     models.JobStatusFailed,
			"last_error": execErr.Error(),
		})
	}

	errText := execErr.Error()
	row := models.BenchmarkResponse{
		RunID:            job.RunID,
		QueryID:          job.QueryID,
		RunIteration:     job.RunIteration,
		Model:            job.Model,
		Provider:         string(llm.ProviderFor(job.Model)),
		ModelOwner:       pricing.Owner(job.Model),
		WebSearchEnabled: job.WebSearchEnabled,
		Error:            &errText,
	}
	saved, err := w.store.UpsertResponses(ctx, []models.BenchmarkResponse{row})
	if err != nil {
		return fmt.Errorf("failed to persist error response for job %d: %w", job.ID, err)
	}

	patch := map[string]any{
		"status":     models.JobStatusDeadLetter,
		"last_error": errText,
	}
	if len(saved) > 0 {
		patch["response_id"] = saved[0].ID
	}
	if err := w.store.UpdateJob(ctx, job.ID, patch); err != nil {
		return err
	}

	metrics.JobsProcessed.WithLabelValues(models.JobStatusDeadLetter).Inc()

	logger.Error("Job dead-lettered",
		zap.Int64("job_id", job.ID),
		zap.Int("attempts", attempt),
		zap.Error(execErr),
	)

	if err := w.store.ArchiveMessage(ctx, w.cfg.QueueName, msgID); err != nil {
		return err
	}
	return w.maybeFinalize(ctx, job.RunID)
}

// maybeFinalize closes the run once every job reached a terminal state.
func (w *Worker) maybeFinalize(ctx context.Context, runID string) error {
	progress, err := w.store.JobProgress(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to check run progress: %w", err)
	}
	if progress == nil || !progress.AllTerminal() {
		return nil
	}
	if err := w.store.FinalizeRun(ctx, runID); err != nil {
		return err
	}
	metrics.RunsFinalized.Inc()
	logger.Info("Run finalized",
		zap.String("run_id", runID),
		zap.Int("completed", progress.CompletedJobs),
		zap.Int("dead_letter", progress.DeadLetterJobs),
	)
	return nil
}

// entitiesFor compiles detection specs, folding the job's extra brand terms
// into the primary competitor's alias set.
func (w *Worker) entitiesFor(ctx context.Context, job *models.BenchmarkJob) ([]*mentions.EntitySpec, error) {
	if w.competitors == nil {
		competitors, err := w.store.ActiveCompetitors(ctx)
		if err != nil {
			return nil, err
		}
		aliasRows, err := w.store.Aliases(ctx)
		if err != nil {
			return nil, err
		}
		w.competitors = competitors
		w.aliasRows = aliasRows
	}

	aliasesByID := map[string][]string{}
	for _, a := range w.aliasRows {
		aliasesByID[a.CompetitorID] = append(aliasesByID[a.CompetitorID], a.Alias)
	}

	specs := make([]*mentions.EntitySpec, 0, len(w.competitors))
	for _, c := range w.competitors {
		aliases := aliasesByID[c.ID]
		if c.IsPrimary && len(job.OurTerms) > 0 {
			aliases = append(append([]string{}, aliases...), job.OurTerms...)
		}
		spec, err := mentions.NewEntitySpec(c.ID, c.Name, c.IsPrimary, aliases)
		if err != nil {
			return nil, fmt.Errorf("failed to build matcher for %q: %w", c.Name, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
