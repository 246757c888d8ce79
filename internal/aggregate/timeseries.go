package aggregate

import (
	"sort"

	"github.com/aivis/backend/internal/storage/models"
)

// RunScope bundles one run's rows for time-series construction.
type RunScope struct {
	Run       models.BenchmarkRun
	Responses []models.BenchmarkResponse
	Mentions  []models.ResponseMention
}

// BuildTimeSeries produces one point per run, oldest first. The composite
// visibility blend is always derived from the scope's own rows; the run's
// stored overall score wins only when no tag filter narrowed the scope,
// because the stored score was computed over the full battery.
func BuildTimeSeries(scopes []RunScope, competitors []models.Competitor, tagFiltered bool) TimeSeriesResult {
	points := make([]TimeSeriesPoint, 0, len(scopes))
	for _, scope := range scopes {
		standings := RollupMentions(scope.Responses, scope.Mentions, competitors)

		point := TimeSeriesPoint{
			RunID:          scope.Run.ID,
			RunMonth:       scope.Run.RunMonth,
			StartedAt:      scope.Run.StartedAt,
			TotalResponses: len(scope.Responses),
		}
		for _, s := range standings {
			if !s.IsPrimary {
				continue
			}
			point.MentionRate = s.MentionRate
			point.ShareOfVoice = s.ShareOfVoice
			point.VisibilityScore = VisibilityScore(s.MentionRate, s.ShareOfVoice)
			break
		}
		if !tagFiltered && scope.Run.OverallScore > 0 {
			point.VisibilityScore = Round2(scope.Run.OverallScore)
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

// EmptyTimeSeries is the soft-failure result for the time-series operation.
func EmptyTimeSeries() TimeSeriesResult {
	return TimeSeriesResult{OK: false, Points: []TimeSeriesPoint{}}
}
