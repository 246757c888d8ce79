package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aivis/backend/internal/storage/models"
)

func runScope(runID, month string, startedAt time.Time, overallScore float64) RunScope {
	started := startedAt
	responses, mentionRows := tenResponses()
	for i := range responses {
		responses[i].RunID = runID
	}
	return RunScope{
		Run: models.BenchmarkRun{
			ID:           runID,
			RunMonth:     month,
			StartedAt:    &started,
			OverallScore: overallScore,
		},
		Responses: responses,
		Mentions:  mentionRows,
	}
}

func TestBuildTimeSeriesPrefersStoredScoreWhenUnfiltered(t *testing.T) {
	scope := runScope("run-1", "2026-07", time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), 71.5)

	result := BuildTimeSeries([]RunScope{scope}, testCompetitors, false)
	require.True(t, result.OK)
	require.Len(t, result.Points, 1)

	p := result.Points[0]
	assert.Equal(t, 71.5, p.VisibilityScore, "stored score is authoritative for the full battery")
	assert.Equal(t, 60.00, p.MentionRate)
	assert.Equal(t, 66.67, p.ShareOfVoice)
}

func TestBuildTimeSeriesDerivesScoreUnderTagFilter(t *testing.T) {
	scope := runScope("run-1", "2026-07", time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), 71.5)

	result := BuildTimeSeries([]RunScope{scope}, testCompetitors, true)
	require.Len(t, result.Points, 1)

	// The stored score covers the whole battery, so a narrowed scope must
	// use the derived blend.
	assert.InDelta(t, 62.0, result.Points[0].VisibilityScore, 0.01)
}

func TestBuildTimeSeriesOrdersOldestFirst(t *testing.T) {
	newer := runScope("run-2", "2026-08", time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), 0)
	older := runScope("run-1", "2026-07", time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), 0)

	result := BuildTimeSeries([]RunScope{newer, older}, testCompetitors, false)
	require.Len(t, result.Points, 2)
	assert.Equal(t, "run-1", result.Points[0].RunID)
	assert.Equal(t, "run-2", result.Points[1].RunID)
}

func TestEmptyTimeSeries(t *testing.T) {
	result := EmptyTimeSeries()
	assert.False(t, result.OK)
	assert.Empty(t, result.Points)
}
