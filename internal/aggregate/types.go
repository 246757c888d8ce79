package aggregate

import "time"

// ModelStats is the per-model roll-up shown on the diagnostics page.
type ModelStats struct {
	Model            string  `json:"model"`
	Owner            string  `json:"owner"`
	ResponseCount    int     `json:"response_count"`
	SuccessCount     int     `json:"success_count"`
	ErrorCount       int     `json:"error_count"`
	AvgDurationMS    float64 `json:"avg_duration_ms"`
	P95DurationMS    float64 `json:"p95_duration_ms"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
}

// OwnerStats aggregates ModelStats per vendor.
type OwnerStats struct {
	Owner         string  `json:"owner"`
	ModelCount    int     `json:"model_count"`
	ResponseCount int     `json:"response_count"`
	ErrorCount    int     `json:"error_count"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
	P95DurationMS float64 `json:"p95_duration_ms"`
	TotalTokens   int64   `json:"total_tokens"`
}

// CompetitorStanding is one entity's mention metrics within a scope.
type CompetitorStanding struct {
	CompetitorID   string  `json:"competitor_id"`
	Name           string  `json:"name"`
	Slug           string  `json:"slug"`
	IsPrimary      bool    `json:"is_primary"`
	Mentions       int     `json:"mentions"`
	TotalResponses int     `json:"total_responses"`
	MentionRate    float64 `json:"mention_rate"`
	ShareOfVoice   float64 `json:"share_of_voice"`
}

// HeadToHead compares the primary brand against one rival over the scope's
// pairwise mentions.
type HeadToHead struct {
	Rival        string  `json:"rival"`
	PrimaryShare float64 `json:"primary_share"`
	RivalShare   float64 `json:"rival_share"`
	Winner       string  `json:"winner"`
}

// DashboardSummary is the headline view: standings plus the composite scores.
type DashboardSummary struct {
	RunID           string               `json:"run_id,omitempty"`
	RunMonth        string               `json:"run_month,omitempty"`
	TotalResponses  int                  `json:"total_responses"`
	ErrorCount      int                  `json:"error_count"`
	VisibilityScore float64              `json:"visibility_score"`
	ViabilityRate   float64              `json:"viability_rate"`
	Standings       []CompetitorStanding `json:"standings"`
	HeadToHead      []HeadToHead         `json:"head_to_head"`
}

// PromptDrilldown is the per-prompt breakdown.
type PromptDrilldown struct {
	QueryID            string               `json:"query_id"`
	QueryText          string               `json:"query_text"`
	Tags               []string             `json:"tags"`
	ResponseCount      int                  `json:"response_count"`
	PrimaryMentions    int                  `json:"primary_mentions"`
	PrimaryMentionRate float64              `json:"primary_mention_rate"`
	ViabilityRate      float64              `json:"viability_rate"`
	VisibilityScore    float64              `json:"visibility_score"`
	Standings          []CompetitorStanding `json:"standings"`
}

// CostLine is the cost roll-up for one model.
type CostLine struct {
	Model            string  `json:"model"`
	Owner            string  `json:"owner"`
	ResponseCount    int     `json:"response_count"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
	CostUSD          float64 `json:"cost_usd"`
	Priced           bool    `json:"priced"`
}

// RunCostLedger totals cost lines. Unpriced models contribute tokens but no
// cost, and are called out by name.
type RunCostLedger struct {
	Lines          []CostLine `json:"lines"`
	TotalCostUSD   float64    `json:"total_cost_usd"`
	TotalTokens    int64      `json:"total_tokens"`
	UnpricedModels []string   `json:"unpriced_models"`
}

// TimeSeriesPoint is one run's visibility snapshot.
type TimeSeriesPoint struct {
	RunID           string     `json:"run_id"`
	RunMonth        string     `json:"run_month"`
	StartedAt       *time.Time `json:"started_at"`
	MentionRate     float64    `json:"mention_rate"`
	ShareOfVoice    float64    `json:"share_of_voice"`
	VisibilityScore float64    `json:"visibility_score"`
	TotalResponses  int        `json:"total_responses"`
}

// TimeSeriesResult is soft: OK is false when no source could produce points.
type TimeSeriesResult struct {
	OK     bool              `json:"ok"`
	Points []TimeSeriesPoint `json:"points"`
}

// Diagnostics is the "under the hood" view.
type Diagnostics struct {
	Models         []ModelStats `json:"models"`
	Owners         []OwnerStats `json:"owners"`
	TotalRuns      int          `json:"total_runs"`
	TotalErrors    int          `json:"total_errors"`
	TotalResponses int          `json:"total_responses"`
}
