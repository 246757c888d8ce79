package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aivis/backend/internal/storage/models"
)

var testCompetitors = []models.Competitor{
	{ID: "hc", Name: "Highcharts", Slug: "highcharts", IsPrimary: true, IsActive: true},
	{ID: "cj", Name: "Chart.js", Slug: "chart-js", IsActive: true},
}

// tenResponses builds the scenario from the scoring contract: ten responses,
// Highcharts mentioned in six, Chart.js in three.
func tenResponses() ([]models.BenchmarkResponse, []models.ResponseMention) {
	responses := make([]models.BenchmarkResponse, 0, 10)
	var mentionRows []models.ResponseMention
	for i := 1; i <= 10; i++ {
		responses = append(responses, models.BenchmarkResponse{
			ID:      int64(i),
			RunID:   "run-1",
			QueryID: "q1",
			Model:   "gpt-4o-mini",
		})
		mentionRows = append(mentionRows,
			models.ResponseMention{ResponseID: int64(i), CompetitorID: "hc", Mentioned: i <= 6},
			models.ResponseMention{ResponseID: int64(i), CompetitorID: "cj", Mentioned: i <= 3},
		)
	}
	return responses, mentionRows
}

func TestRollupMentions(t *testing.T) {
	responses, mentionRows := tenResponses()
	standings := RollupMentions(responses, mentionRows, testCompetitors)
	require.Len(t, standings, 2)

	hc, cj := standings[0], standings[1]
	assert.Equal(t, 6, hc.Mentions)
	assert.Equal(t, 60.00, hc.MentionRate)
	assert.Equal(t, 66.67, hc.ShareOfVoice)
	assert.Equal(t, 3, cj.Mentions)
	assert.Equal(t, 30.00, cj.MentionRate)
	assert.Equal(t, 33.33, cj.ShareOfVoice)

	sumSoV := hc.ShareOfVoice + cj.ShareOfVoice
	assert.InDelta(t, 100.0, sumSoV, 0.02)
}

func TestRollupMentionsEmptyScope(t *testing.T) {
	standings := RollupMentions(nil, nil, testCompetitors)
	require.Len(t, standings, 2)
	for _, s := range standings {
		assert.Equal(t, 0.0, s.MentionRate)
		assert.Equal(t, 0.0, s.ShareOfVoice)
	}
}

func TestRollupMentionsIgnoresOutOfScopeFacts(t *testing.T) {
	responses := []models.BenchmarkResponse{{ID: 1}}
	mentionRows := []models.ResponseMention{
		{ResponseID: 1, CompetitorID: "hc", Mentioned: true},
		{ResponseID: 99, CompetitorID: "hc", Mentioned: true},
	}
	standings := RollupMentions(responses, mentionRows, testCompetitors)
	assert.Equal(t, 1, standings[0].Mentions)
}

func TestViability(t *testing.T) {
	responses, mentionRows := tenResponses()
	standings := RollupMentions(responses, mentionRows, testCompetitors)

	// One rival with 3 mentions over 10 responses.
	assert.Equal(t, 30.00, Viability(standings, len(responses)))
	assert.Equal(t, 0.0, Viability(standings, 0))
}

func TestVisibilityScore(t *testing.T) {
	// 0.7*60 + 0.3*66.67 rounds back down to 62.0.
	assert.InDelta(t, 62.0, VisibilityScore(60, 66.67), 0.01)
	assert.Equal(t, 0.0, VisibilityScore(0, 0))
	assert.Equal(t, 100.0, VisibilityScore(100, 100))
}

func TestBuildHeadToHead(t *testing.T) {
	responses, mentionRows := tenResponses()
	standings := RollupMentions(responses, mentionRows, testCompetitors)

	h2h := BuildHeadToHead(standings)
	require.Len(t, h2h, 1)
	assert.Equal(t, "Chart.js", h2h[0].Rival)
	assert.Equal(t, 66.67, h2h[0].PrimaryShare)
	assert.Equal(t, 33.33, h2h[0].RivalShare)
	assert.Equal(t, "Highcharts", h2h[0].Winner)
}

func TestBuildHeadToHeadTie(t *testing.T) {
	standings := []CompetitorStanding{
		{Name: "Highcharts", IsPrimary: true, Mentions: 2},
		{Name: "Chart.js", Mentions: 2},
	}
	h2h := BuildHeadToHead(standings)
	require.Len(t, h2h, 1)
	assert.Equal(t, "tie", h2h[0].Winner)
}

func TestRollupModels(t *testing.T) {
	errText := "timeout"
	responses := []models.BenchmarkResponse{
		{ID: 1, Model: "gpt-4o-mini", DurationMS: 100, PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
		{ID: 2, Model: "gpt-4o-mini", DurationMS: 300, PromptTokens: 10, CompletionTokens: 20},
		{ID: 3, Model: "gpt-4o-mini", Error: &errText},
		{ID: 4, Model: "claude-3-5-haiku", DurationMS: 200, PromptTokens: 5, CompletionTokens: 5, TotalTokens: 10},
	}

	stats := RollupModels(responses)
	require.Len(t, stats, 2)

	claude := stats[0]
	assert.Equal(t, "claude-3-5-haiku", claude.Model)
	assert.Equal(t, "Anthropic", claude.Owner)

	gpt := stats[1]
	assert.Equal(t, "OpenAI", gpt.Owner)
	assert.Equal(t, 3, gpt.ResponseCount)
	assert.Equal(t, 2, gpt.SuccessCount)
	assert.Equal(t, 1, gpt.ErrorCount)
	assert.Equal(t, 200.0, gpt.AvgDurationMS)
	assert.Equal(t, 300.0, gpt.P95DurationMS)
	// Second response has no stored total and falls back to prompt+completion.
	assert.Equal(t, int64(60), gpt.TotalTokens)
	assert.GreaterOrEqual(t, gpt.TotalTokens, gpt.PromptTokens+gpt.CompletionTokens)
}

func TestRollupModelsHonorsStoredOwner(t *testing.T) {
	responses := []models.BenchmarkResponse{
		{ID: 1, Model: "custom-model", ModelOwner: "Acme"},
	}
	stats := RollupModels(responses)
	require.Len(t, stats, 1)
	assert.Equal(t, "Acme", stats[0].Owner)
}

func TestBuildCostLedger(t *testing.T) {
	responses := []models.BenchmarkResponse{
		{ID: 1, Model: "gpt-4o-mini", PromptTokens: 1_000_000, CompletionTokens: 1_000_000, TotalTokens: 2_000_000},
		{ID: 2, Model: "mystery-model", PromptTokens: 500, CompletionTokens: 500, TotalTokens: 1000},
	}

	ledger := BuildCostLedger(responses)
	require.Len(t, ledger.Lines, 2)

	priced := ledger.Lines[0]
	assert.Equal(t, "gpt-4o-mini", priced.Model)
	assert.True(t, priced.Priced)
	// 1M in at $0.15/M + 1M out at $0.60/M.
	assert.InDelta(t, 0.75, priced.CostUSD, 0.0001)

	unpriced := ledger.Lines[1]
	assert.False(t, unpriced.Priced)
	assert.Equal(t, 0.0, unpriced.CostUSD)
	assert.Equal(t, int64(1000), unpriced.TotalTokens)

	assert.Equal(t, []string{"mystery-model"}, ledger.UnpricedModels)
	assert.InDelta(t, 0.75, ledger.TotalCostUSD, 0.0001)
	assert.Equal(t, int64(2_001_000), ledger.TotalTokens)
}

func TestBuildDrilldownsAndOverallVisibility(t *testing.T) {
	prompts := []models.PromptQuery{
		{ID: "q1", QueryText: "best charting library", IsActive: true},
		{ID: "q2", QueryText: "never ran", IsActive: true},
	}
	responses, mentionRows := tenResponses()

	drilldowns := BuildDrilldowns(prompts, responses, mentionRows, testCompetitors)
	require.Len(t, drilldowns, 1, "prompts without responses are skipped")

	d := drilldowns[0]
	assert.Equal(t, "q1", d.QueryID)
	assert.Equal(t, 10, d.ResponseCount)
	assert.Equal(t, 6, d.PrimaryMentions)
	assert.Equal(t, 60.00, d.PrimaryMentionRate)
	assert.Equal(t, 30.00, d.ViabilityRate)
	assert.InDelta(t, 62.0, d.VisibilityScore, 0.01)

	assert.InDelta(t, d.VisibilityScore, OverallVisibility(drilldowns), 0.001)
	assert.Equal(t, 0.0, OverallVisibility(nil))
}

func TestBuildDashboard(t *testing.T) {
	prompts := []models.PromptQuery{{ID: "q1", QueryText: "best charting library", IsActive: true}}
	responses, mentionRows := tenResponses()
	errText := "boom"
	responses[9].Error = &errText

	summary := BuildDashboard(prompts, responses, mentionRows, testCompetitors)
	assert.Equal(t, 10, summary.TotalResponses)
	assert.Equal(t, 1, summary.ErrorCount)
	assert.Len(t, summary.Standings, 2)
	assert.Len(t, summary.HeadToHead, 1)
	assert.Equal(t, 30.00, summary.ViabilityRate)
}

func TestBuildDiagnostics(t *testing.T) {
	errText := "boom"
	runs := []models.BenchmarkRun{{ID: "run-1"}, {ID: "run-2"}}
	responses := []models.BenchmarkResponse{
		{ID: 1, Model: "gpt-4o-mini"},
		{ID: 2, Model: "gemini-2.0-flash", Error: &errText},
	}

	diag := BuildDiagnostics(runs, responses)
	assert.Equal(t, 2, diag.TotalRuns)
	assert.Equal(t, 2, diag.TotalResponses)
	assert.Equal(t, 1, diag.TotalErrors)
	assert.Len(t, diag.Models, 2)
	require.Len(t, diag.Owners, 2)
	assert.Equal(t, "Google", diag.Owners[0].Owner)
	assert.Equal(t, "OpenAI", diag.Owners[1].Owner)
}
