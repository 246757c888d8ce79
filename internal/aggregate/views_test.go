package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aivis/backend/internal/storage/models"
)

func TestDiagnosticsFromPerformance(t *testing.T) {
	runs := []models.BenchmarkRun{{ID: "r1"}, {ID: "r2"}}
	rows := []models.ModelPerformanceRow{
		{
			RunID: "r1", Model: "gpt-4o", ModelOwner: "OpenAI",
			ResponseCount: 10, ErrorCount: 2,
			AvgDurationMS: 200, P95DurationMS: 350,
			PromptTokens: 100, CompletionTokens: 200, TotalTokens: 300,
		},
		{
			RunID: "r2", Model: "gpt-4o", ModelOwner: "OpenAI",
			ResponseCount: 5, ErrorCount: 0,
			AvgDurationMS: 100, P95DurationMS: 150,
			PromptTokens: 50, CompletionTokens: 60, TotalTokens: 110,
		},
		{
			RunID: "r1", Model: "claude-3-5-sonnet-20241022", ModelOwner: "Anthropic",
			ResponseCount: 4, ErrorCount: 4,
		},
	}

	diag := DiagnosticsFromPerformance(runs, rows)

	assert.Equal(t, 2, diag.TotalRuns)
	assert.Equal(t, 6, diag.TotalErrors)
	assert.Equal(t, 19, diag.TotalResponses)
	require.Len(t, diag.Models, 2)

	// Sorted by model name, so claude first.
	claude := diag.Models[0]
	assert.Equal(t, "Anthropic", claude.Owner)
	assert.Equal(t, 0, claude.SuccessCount)
	assert.Zero(t, claude.AvgDurationMS, "all-error models have no latency figures")

	gpt := diag.Models[1]
	assert.Equal(t, 15, gpt.ResponseCount)
	assert.Equal(t, 13, gpt.SuccessCount)
	assert.Equal(t, 2, gpt.ErrorCount)
	// Success-weighted: (200*8 + 100*5) / 13.
	assert.InDelta(t, 161.54, gpt.AvgDurationMS, 0.001)
	assert.Equal(t, float64(350), gpt.P95DurationMS)
	assert.Equal(t, int64(150), gpt.PromptTokens)
	assert.Equal(t, int64(410), gpt.TotalTokens)

	require.Len(t, diag.Owners, 2)
	assert.Equal(t, "Anthropic", diag.Owners[0].Owner)
	assert.Equal(t, "OpenAI", diag.Owners[1].Owner)
	assert.Equal(t, 15, diag.Owners[1].ResponseCount)
}

func TestDiagnosticsFromPerformanceEmpty(t *testing.T) {
	diag := DiagnosticsFromPerformance(nil, nil)
	assert.Zero(t, diag.TotalRuns)
	assert.Empty(t, diag.Models)
	assert.Empty(t, diag.Owners)
}

func TestTimeSeriesFromSummaries(t *testing.T) {
	early := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	summaries := []models.RunSummaryRow{
		{RunID: "r2", RunMonth: "2026-08", TotalResponses: 20, StartedAt: &late},
		{RunID: "r1", RunMonth: "2026-07", TotalResponses: 20, OverallScore: 71.5, StartedAt: &early},
	}
	rates := []models.CompetitorMentionRateRow{
		{RunID: "r1", CompetitorID: "hc", IsPrimary: true, MentionRate: 60, ShareOfVoice: 66.67},
		{RunID: "r2", CompetitorID: "hc", IsPrimary: true, MentionRate: 50, ShareOfVoice: 40},
		{RunID: "r2", CompetitorID: "cj", IsPrimary: false, MentionRate: 30, ShareOfVoice: 60},
	}

	result := TimeSeriesFromSummaries(summaries, rates)
	require.True(t, result.OK)
	require.Len(t, result.Points, 2)

	// Oldest first; the stored overall score wins over the derived blend.
	first := result.Points[0]
	assert.Equal(t, "r1", first.RunID)
	assert.Equal(t, 71.5, first.VisibilityScore)
	assert.Equal(t, float64(60), first.MentionRate)

	// No stored score: 0.7*50 + 0.3*40.
	second := result.Points[1]
	assert.Equal(t, "r2", second.RunID)
	assert.InDelta(t, 47.0, second.VisibilityScore, 0.001)
	assert.Equal(t, float64(40), second.ShareOfVoice)
}

func TestTimeSeriesFromSummariesWithoutPrimaryRow(t *testing.T) {
	summaries := []models.RunSummaryRow{{RunID: "r1", RunMonth: "2026-08", TotalResponses: 10}}

	result := TimeSeriesFromSummaries(summaries, nil)
	require.Len(t, result.Points, 1)
	assert.Zero(t, result.Points[0].MentionRate)
	assert.Zero(t, result.Points[0].VisibilityScore)
}
