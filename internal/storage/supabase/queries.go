package supabase

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aivis/backend/internal/storage/models"
)

// Typed queries over the benchmark schema. Anything reading a table or
// materialized view that may not be provisioned yet returns the raw error;
// the datasource layer decides whether to degrade.

func (c *Client) ActivePrompts(ctx context.Context) ([]models.PromptQuery, error) {
	rows, err := SelectAll[models.PromptQuery](ctx, c, "prompt_queries", Query{
		Select:  "id,query_text,tags,is_active,sort_order",
		Filters: []Filter{Eq("is_active", "true")},
		Order:   "sort_order.asc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load active prompts: %w", err)
	}
	return rows, nil
}

func (c *Client) AllPrompts(ctx context.Context) ([]models.PromptQuery, error) {
	rows, err := SelectAll[models.PromptQuery](ctx, c, "prompt_queries", Query{
		Select: "id,query_text,tags,is_active,sort_order",
		Order:  "sort_order.asc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}
	return rows, nil
}

func (c *Client) UpsertPrompts(ctx context.Context, rows []models.PromptQuery) error {
	if len(rows) == 0 {
		return nil
	}
	if err := c.Upsert(ctx, "prompt_queries", "query_text", rows, nil); err != nil {
		return fmt.Errorf("failed to upsert prompts: %w", err)
	}
	return nil
}

func (c *Client) UpdatePrompt(ctx context.Context, id string, patch map[string]any) error {
	q := Query{Filters: []Filter{Eq("id", id)}}
	if err := c.Update(ctx, "prompt_queries", q, patch); err != nil {
		return fmt.Errorf("failed to update prompt %s: %w", id, err)
	}
	return nil
}

func (c *Client) ActiveCompetitors(ctx context.Context) ([]models.Competitor, error) {
	rows, err := SelectAll[models.Competitor](ctx, c, "competitors", Query{
		Select:  "id,name,slug,is_primary,is_active,sort_order",
		Filters: []Filter{Eq("is_active", "true")},
		Order:   "sort_order.asc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load active competitors: %w", err)
	}
	return rows, nil
}

func (c *Client) AllCompetitors(ctx context.Context) ([]models.Competitor, error) {
	rows, err := SelectAll[models.Competitor](ctx, c, "competitors", Query{
		Select: "id,name,slug,is_primary,is_active,sort_order",
		Order:  "sort_order.asc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load competitors: %w", err)
	}
	return rows, nil
}

func (c *Client) UpsertCompetitors(ctx context.Context, rows []models.Competitor) error {
	if len(rows) == 0 {
		return nil
	}
	if err := c.Upsert(ctx, "competitors", "slug", rows, nil); err != nil {
		return fmt.Errorf("failed to upsert competitors: %w", err)
	}
	return nil
}

func (c *Client) UpdateCompetitor(ctx context.Context, id string, patch map[string]any) error {
	q := Query{Filters: []Filter{Eq("id", id)}}
	if err := c.Update(ctx, "competitors", q, patch); err != nil {
		return fmt.Errorf("failed to update competitor %s: %w", id, err)
	}
	return nil
}

func (c *Client) Aliases(ctx context.Context) ([]models.CompetitorAlias, error) {
	rows, err := SelectAll[models.CompetitorAlias](ctx, c, "competitor_aliases", Query{
		Select: "competitor_id,alias",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load competitor aliases: %w", err)
	}
	return rows, nil
}

func (c *Client) AliasesFor(ctx context.Context, competitorID string) ([]models.CompetitorAlias, error) {
	rows, err := SelectAll[models.CompetitorAlias](ctx, c, "competitor_aliases", Query{
		Select:  "competitor_id,alias",
		Filters: []Filter{Eq("competitor_id", competitorID)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load aliases for competitor %s: %w", competitorID, err)
	}
	return rows, nil
}

func (c *Client) UpsertAliases(ctx context.Context, rows []models.CompetitorAlias) error {
	if len(rows) == 0 {
		return nil
	}
	if err := c.Upsert(ctx, "competitor_aliases", "competitor_id,alias", rows, nil); err != nil {
		return fmt.Errorf("failed to upsert aliases: %w", err)
	}
	return nil
}

func (c *Client) DeleteAlias(ctx context.Context, competitorID, alias string) error {
	q := Query{Filters: []Filter{Eq("competitor_id", competitorID), Eq("alias", alias)}}
	if err := c.Delete(ctx, "competitor_aliases", q); err != nil {
		return fmt.Errorf("failed to delete stale alias %q: %w", alias, err)
	}
	return nil
}

func (c *Client) Runs(ctx context.Context, runMonth string) ([]models.BenchmarkRun, error) {
	q := Query{
		Select: "id,run_month,model,web_search_enabled,started_at,ended_at,overall_score,query_count,competitor_count,total_responses",
		Order:  "started_at.desc",
	}
	if runMonth != "" {
		q.Filters = append(q.Filters, Eq("run_month", runMonth))
	}
	rows, err := SelectAll[models.BenchmarkRun](ctx, c, "benchmark_runs", q)
	if err != nil {
		return nil, fmt.Errorf("failed to load benchmark runs: %w", err)
	}
	return rows, nil
}

func (c *Client) ResponsesForRun(ctx context.Context, runID string) ([]models.BenchmarkResponse, error) {
	rows, err := SelectAll[models.BenchmarkResponse](ctx, c, "benchmark_responses", Query{
		Select:  "id,run_id,query_id,run_iteration,model,provider,model_owner,web_search_enabled,duration_ms,prompt_tokens,completion_tokens,total_tokens,response_text,citations,error",
		Filters: []Filter{Eq("run_id", runID)},
		Order:   "id.asc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load responses for run %s: %w", runID, err)
	}
	return rows, nil
}

// MentionsForResponses fetches mention facts in bounded id chunks so the
// in-filter stays within URL limits.
func (c *Client) MentionsForResponses(ctx context.Context, responseIDs []int64) ([]models.ResponseMention, error) {
	const chunkSize = 200

	var all []models.ResponseMention
	for start := 0; start < len(responseIDs); start += chunkSize {
		end := start + chunkSize
		if end > len(responseIDs) {
			end = len(responseIDs)
		}

		ids := make([]string, 0, end-start)
		for _, id := range responseIDs[start:end] {
			ids = append(ids, strconv.FormatInt(id, 10))
		}

		rows, err := SelectAll[models.ResponseMention](ctx, c, "response_mentions", Query{
			Select:  "response_id,competitor_id,mentioned",
			Filters: []Filter{In("response_id", ids)},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load response mentions: %w", err)
		}
		all = append(all, rows...)
	}
	return all, nil
}

func (c *Client) RunSummaries(ctx context.Context) ([]models.RunSummaryRow, error) {
	rows, err := SelectAll[models.RunSummaryRow](ctx, c, "mv_run_summary", Query{
		Select: "run_id,run_month,total_responses,error_count,overall_score,started_at,ended_at",
		Order:  "started_at.asc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load run summaries: %w", err)
	}
	return rows, nil
}

func (c *Client) ModelPerformance(ctx context.Context, runID string) ([]models.ModelPerformanceRow, error) {
	q := Query{
		Select: "run_id,model,model_owner,response_count,error_count,avg_duration_ms,p95_duration_ms,prompt_tokens,completion_tokens,total_tokens",
		Order:  "model.asc",
	}
	if runID != "" {
		q.Filters = append(q.Filters, Eq("run_id", runID))
	}
	rows, err := SelectAll[models.ModelPerformanceRow](ctx, c, "mv_model_performance", q)
	if err != nil {
		return nil, fmt.Errorf("failed to load model performance: %w", err)
	}
	return rows, nil
}

func (c *Client) MentionRates(ctx context.Context, runID string) ([]models.CompetitorMentionRateRow, error) {
	q := Query{
		Select: "run_id,competitor_id,competitor_name,is_primary,mentions,total_responses,mention_rate,share_of_voice",
	}
	if runID != "" {
		q.Filters = append(q.Filters, Eq("run_id", runID))
	}
	rows, err := SelectAll[models.CompetitorMentionRateRow](ctx, c, "mv_competitor_mention_rates", q)
	if err != nil {
		return nil, fmt.Errorf("failed to load mention rates: %w", err)
	}
	return rows, nil
}

func (c *Client) UpsertResponses(ctx context.Context, rows []models.BenchmarkResponse) ([]models.BenchmarkResponse, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	var saved []models.BenchmarkResponse
	err := c.Upsert(ctx, "benchmark_responses", "run_id,query_id,run_iteration,model", rows, &saved)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert benchmark responses: %w", err)
	}
	return saved, nil
}

func (c *Client) UpsertMentions(ctx context.Context, rows []models.ResponseMention) error {
	if len(rows) == 0 {
		return nil
	}
	if err := c.Upsert(ctx, "response_mentions", "response_id,competitor_id", rows, nil); err != nil {
		return fmt.Errorf("failed to upsert response mentions: %w", err)
	}
	return nil
}

func (c *Client) UpsertBlogPosts(ctx context.Context, rows []models.CompetitorBlogPost) error {
	if len(rows) == 0 {
		return nil
	}
	if err := c.Upsert(ctx, "competitor_blog_posts", "url", rows, nil); err != nil {
		return fmt.Errorf("failed to upsert blog posts: %w", err)
	}
	return nil
}

// Queue plumbing: pgmq exposed through RPC wrappers.

func (c *Client) ReadQueue(ctx context.Context, queue string, visibilitySec, qty int) ([]models.QueueMessage, error) {
	var messages []models.QueueMessage
	err := c.RPC(ctx, "rpc_pgmq_read", map[string]any{
		"p_queue": queue,
		"p_vt":    visibilitySec,
		"p_qty":   qty,
	}, &messages)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue %s: %w", queue, err)
	}
	return messages, nil
}

func (c *Client) ArchiveMessage(ctx context.Context, queue string, msgID int64) error {
	err := c.RPC(ctx, "rpc_pgmq_archive", map[string]any{
		"p_queue":  queue,
		"p_msg_id": msgID,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to archive queue message %d: %w", msgID, err)
	}
	return nil
}

func (c *Client) FetchJob(ctx context.Context, jobID int64) (*models.BenchmarkJob, error) {
	var rows []models.BenchmarkJob
	err := c.Select(ctx, "benchmark_jobs", Query{
		Select:  "id,run_id,query_id,query_text,model,run_iteration,provider,temperature,web_search_enabled,our_terms,status,attempt_count,max_attempts,response_id,last_error",
		Filters: []Filter{Eq("id", strconv.FormatInt(jobID, 10))},
		Limit:   1,
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to load benchmark job %d: %w", jobID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (c *Client) UpdateJob(ctx context.Context, jobID int64, patch map[string]any) error {
	q := Query{Filters: []Filter{Eq("id", strconv.FormatInt(jobID, 10))}}
	if err := c.Update(ctx, "benchmark_jobs", q, patch); err != nil {
		return fmt.Errorf("failed to update benchmark job %d: %w", jobID, err)
	}
	return nil
}

func (c *Client) JobProgress(ctx context.Context, runID string) (*models.JobProgress, error) {
	var rows []models.JobProgress
	err := c.Select(ctx, "vw_job_progress", Query{
		Select:  "run_id,total_jobs,completed_jobs,processing_jobs,pending_jobs,failed_jobs,dead_letter_jobs",
		Filters: []Filter{Eq("run_id", runID)},
		Limit:   1,
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read job progress for run %s: %w", runID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (c *Client) FinalizeRun(ctx context.Context, runID string) error {
	err := c.RPC(ctx, "finalize_benchmark_run", map[string]any{"p_run_id": runID}, nil)
	if err != nil {
		return fmt.Errorf("failed to finalize run %s: %w", runID, err)
	}
	return nil
}
