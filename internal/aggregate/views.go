package aggregate

import (
	"sort"

	"github.com/aivis/backend/internal/storage/models"
)

// DiagnosticsFromPerformance folds mv_model_performance rows instead of raw
// responses. Rows may span several runs; per-model figures are merged with a
// success-weighted average for latency. Percentiles cannot be recombined, so
// the per-owner p95 is the worst model-level p95.
func DiagnosticsFromPerformance(runs []models.BenchmarkRun, rows []models.ModelPerformanceRow) Diagnostics {
	byModel := map[string]*ModelStats{}
	order := []string{}

	for _, row := range rows {
		m, ok := byModel[row.Model]
		if !ok {
			m = &ModelStats{Model: row.Model, Owner: row.ModelOwner}
			byModel[row.Model] = m
			order = append(order, row.Model)
		}

		successes := row.ResponseCount - row.ErrorCount
		prev := m.SuccessCount
		if successes+prev > 0 {
			m.AvgDurationMS = (m.AvgDurationMS*float64(prev) + row.AvgDurationMS*float64(successes)) / float64(prev+successes)
		}
		if row.P95DurationMS > m.P95DurationMS {
			m.P95DurationMS = row.P95DurationMS
		}

		m.ResponseCount += row.ResponseCount
		m.SuccessCount += successes
		m.ErrorCount += row.ErrorCount
		m.PromptTokens += row.PromptTokens
		m.CompletionTokens += row.CompletionTokens
		m.TotalTokens += row.TotalTokens
	}

	sort.Strings(order)
	modelStats := make([]ModelStats, 0, len(order))
	totalErrors, totalResponses := 0, 0
	for _, model := range order {
		m := byModel[model]
		m.AvgDurationMS = Round2(m.AvgDurationMS)
		totalErrors += m.ErrorCount
		totalResponses += m.ResponseCount
		modelStats = append(modelStats, *m)
	}

	return Diagnostics{
		Models:         modelStats,
		Owners:         RollupOwners(modelStats),
		TotalRuns:      len(runs),
		TotalErrors:    totalErrors,
		TotalResponses: totalResponses,
	}
}

// TimeSeriesFromSummaries builds the series straight from mv_run_summary and
// mv_competitor_mention_rates. The views aggregate the whole battery, so this
// path only serves the unfiltered series; the stored overall score wins when
// present, matching BuildTimeSeries.
func TimeSeriesFromSummaries(summaries []models.RunSummaryRow, rates []models.CompetitorMentionRateRow) TimeSeriesResult {
	primaryByRun := map[string]models.CompetitorMentionRateRow{}
	for _, r := range rates {
		if r.IsPrimary {
			primaryByRun[r.RunID] = r
		}
	}

	points := make([]TimeSeriesPoint, 0, len(summaries))
	for _, s := range summaries {
		point := TimeSeriesPoint{
			RunID:          s.RunID,
			RunMonth:       s.RunMonth,
			StartedAt:      s.StartedAt,
			TotalResponses: s.TotalResponses,
		}
		if p, ok := primaryByRun[s.RunID]; ok {
			point.MentionRate = Round2(p.MentionRate)
			point.ShareOfVoice = Round2(p.ShareOfVoice)
			point.VisibilityScore = VisibilityScore(p.MentionRate, p.ShareOfVoice)
		}
		if s.OverallScore > 0 {
			point.VisibilityScore = Round2(s.OverallScore)
		}
		points = append(points, point)
	}

	sort.Slice(points, func(i, j int) bool {
		a, b := points[i].StartedAt, points[j].StartedAt
		if a == nil || b == nil {
			return points[i].RunMonth < points[j].RunMonth
		}
		return a.Before(*b)
	})

	return TimeSeriesResult{OK: true, Points: points}
}
