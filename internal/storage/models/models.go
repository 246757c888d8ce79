package models

import (
	"encoding/json"
	"time"
)

// PromptQuery is one tracked prompt in the benchmark battery. Prompts are
// soft-deleted by tagging them with TagDeleted; rows are never removed so
// historical runs keep their linkage.
type PromptQuery struct {
	ID        string   `json:"id,omitempty"`
	QueryText string   `json:"query_text"`
	Tags      []string `json:"tags"`
	IsActive  bool     `json:"is_active"`
	SortOrder int      `json:"sort_order"`
}

// TagDeleted is the reserved sentinel tag marking soft-deleted prompts.
const TagDeleted = "deleted"

// HasTag reports whether the prompt carries the given tag.
func (p PromptQuery) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Deleted reports whether the prompt is soft-deleted.
func (p PromptQuery) Deleted() bool {
	return p.HasTag(TagDeleted)
}

// Competitor is a tracked entity. The primary brand is itself a competitor
// row with IsPrimary set.
type Competitor struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	IsPrimary bool   `json:"is_primary"`
	IsActive  bool   `json:"is_active"`
	SortOrder int    `json:"sort_order"`
}

type CompetitorAlias struct {
	CompetitorID string `json:"competitor_id"`
	Alias        string `json:"alias"`
}

type BenchmarkRun struct {
	ID               string     `json:"id,omitempty"`
	RunMonth         string     `json:"run_month"`
	Model            string     `json:"model"`
	WebSearchEnabled bool       `json:"web_search_enabled"`
	StartedAt        *time.Time `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at"`
	OverallScore     float64    `json:"overall_score"`
	QueryCount       int        `json:"query_count"`
	CompetitorCount  int        `json:"competitor_count"`
	TotalResponses   int        `json:"total_responses"`
}

type Citation struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// BenchmarkResponse is one model's answer to one prompt within a run.
// Immutable once written; failed calls are persisted with Error set and
// zeroed token counts so per-run denominators stay consistent.
type BenchmarkResponse struct {
	ID               int64      `json:"id,omitempty"`
	RunID            string     `json:"run_id"`
	QueryID          string     `json:"query_id"`
	RunIteration     int        `json:"run_iteration"`
	Model            string     `json:"model"`
	Provider         string     `json:"provider,omitempty"`
	ModelOwner       string     `json:"model_owner,omitempty"`
	WebSearchEnabled bool       `json:"web_search_enabled"`
	DurationMS       int        `json:"duration_ms"`
	PromptTokens     int        `json:"prompt_tokens"`
	CompletionTokens int        `json:"completion_tokens"`
	TotalTokens      int        `json:"total_tokens"`
	ResponseText     string     `json:"response_text"`
	Citations        []Citation `json:"citations"`
	Error            *string    `json:"error"`
}

// Failed reports whether the underlying LLM call errored.
func (r BenchmarkResponse) Failed() bool {
	return r.Error != nil && *r.Error != ""
}

// EffectiveTotalTokens falls back to input+output when no stored total exists.
func (r BenchmarkResponse) EffectiveTotalTokens() int {
	if r.TotalTokens > 0 {
		return r.TotalTokens
	}
	return r.PromptTokens + r.CompletionTokens
}

// ResponseMention is the boolean fact "response X mentions competitor Y".
type ResponseMention struct {
	ResponseID   int64  `json:"response_id"`
	CompetitorID string `json:"competitor_id"`
	Mentioned    bool   `json:"mentioned"`
}

// Job status values as stored in benchmark_jobs.status.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
	JobStatusDeadLetter = "dead_letter"
)

type BenchmarkJob struct {
	ID               int64    `json:"id"`
	RunID            string   `json:"run_id"`
	QueryID          string   `json:"query_id"`
	QueryText        string   `json:"query_text"`
	Model            string   `json:"model"`
	RunIteration     int      `json:"run_iteration"`
	Provider         string   `json:"provider"`
	Temperature      float64  `json:"temperature"`
	WebSearchEnabled bool     `json:"web_search_enabled"`
	OurTerms         []string `json:"our_terms"`
	Status           string   `json:"status"`
	AttemptCount     int      `json:"attempt_count"`
	MaxAttempts      int      `json:"max_attempts"`
	ResponseID       *int64   `json:"response_id"`
	LastError        *string  `json:"last_error"`
}

// QueueMessage is one pgmq envelope as returned by the read RPC.
type QueueMessage struct {
	MsgID   int64           `json:"msg_id"`
	Message json.RawMessage `json:"message"`
}

// JobProgress mirrors vw_job_progress for one run.
type JobProgress struct {
	RunID          string `json:"run_id"`
	TotalJobs      int    `json:"total_jobs"`
	CompletedJobs  int    `json:"completed_jobs"`
	ProcessingJobs int    `json:"processing_jobs"`
	PendingJobs    int    `json:"pending_jobs"`
	FailedJobs     int    `json:"failed_jobs"`
	DeadLetterJobs int    `json:"dead_letter_jobs"`
}

// AllTerminal reports whether every job reached completed or dead_letter.
func (p JobProgress) AllTerminal() bool {
	return p.TotalJobs > 0 &&
		p.CompletedJobs+p.DeadLetterJobs == p.TotalJobs &&
		p.ProcessingJobs == 0 &&
		p.PendingJobs == 0 &&
		p.FailedJobs == 0
}

type CompetitorBlogPost struct {
	ID          string     `json:"id,omitempty"`
	Source      string     `json:"source"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	PublishedAt *time.Time `json:"published_at"`
}

// RunSummaryRow mirrors mv_run_summary.
type RunSummaryRow struct {
	RunID          string     `json:"run_id"`
	RunMonth       string     `json:"run_month"`
	TotalResponses int        `json:"total_responses"`
	ErrorCount     int        `json:"error_count"`
	OverallScore   float64    `json:"overall_score"`
	StartedAt      *time.Time `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at"`
}

// ModelPerformanceRow mirrors mv_model_performance.
type ModelPerformanceRow struct {
	RunID            string  `json:"run_id"`
	Model            string  `json:"model"`
	ModelOwner       string  `json:"model_owner"`
	ResponseCount    int     `json:"response_count"`
	ErrorCount       int     `json:"error_count"`
	AvgDurationMS    float64 `json:"avg_duration_ms"`
	P95DurationMS    float64 `json:"p95_duration_ms"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
}

// CompetitorMentionRateRow mirrors mv_competitor_mention_rates.
type CompetitorMentionRateRow struct {
	RunID          string  `json:"run_id"`
	CompetitorID   string  `json:"competitor_id"`
	CompetitorName string  `json:"competitor_name"`
	IsPrimary      bool    `json:"is_primary"`
	Mentions       int     `json:"mentions"`
	TotalResponses int     `json:"total_responses"`
	MentionRate    float64 `json:"mention_rate"`
	ShareOfVoice   float64 `json:"share_of_voice"`
}
