package aggregate

import (
	"sort"

	"github.com/aivis/backend/internal/pricing"
	"github.com/aivis/backend/internal/storage/models"
)

// visibility blends presence and share of voice. Both inputs are percentages.
const (
	presenceWeight = 0.7
	shareWeight    = 0.3
)

// VisibilityScore is the composite 0.7*mention rate + 0.3*share-of-voice.
func VisibilityScore(mentionRate, shareOfVoice float64) float64 {
	return Round2(presenceWeight*mentionRate + shareWeight*shareOfVoice)
}

// RollupModels groups responses by model and computes latency and token
// statistics. The owner comes from the stored column when present, otherwise
// it is inferred from the model name.
func RollupModels(responses []models.BenchmarkResponse) []ModelStats {
	type acc struct {
		stats     ModelStats
		durations []int
	}
	byModel := map[string]*acc{}
	order := []string{}

	for _, r := range responses {
		a, ok := byModel[r.Model]
		if !ok {
			owner := r.ModelOwner
			if owner == "" {
				owner = pricing.Owner(r.Model)
			}
			a = &acc{stats: ModelStats{Model: r.Model, Owner: owner}}
			byModel[r.Model] = a
			order = append(order, r.Model)
		}

		a.stats.ResponseCount++
		if r.Failed() {
			a.stats.ErrorCount++
		} else {
			a.stats.SuccessCount++
			a.durations = append(a.durations, r.DurationMS)
		}
		a.stats.PromptTokens += int64(r.PromptTokens)
		a.stats.CompletionTokens += int64(r.CompletionTokens)
		a.stats.TotalTokens += int64(r.EffectiveTotalTokens())
	}

	sort.Strings(order)
	out := make([]ModelStats, 0, len(order))
	for _, model := range order {
		a := byModel[model]
		if len(a.durations) > 0 {
			var sum int
			for _, d := range a.durations {
				sum += d
			}
			a.stats.AvgDurationMS = Round2(float64(sum) / float64(len(a.durations)))
			a.stats.P95DurationMS = NearestRankPercentile(a.durations, 95)
		}
		out = append(out, a.stats)
	}
	return out
}

// RollupOwners buckets per-model stats by vendor. Latency aggregates are
// response-weighted averages of the model-level figures.
func RollupOwners(modelStats []ModelStats) []OwnerStats {
	byOwner := map[string]*OwnerStats{}
	order := []string{}

	for _, m := range modelStats {
		o, ok := byOwner[m.Owner]
		if !ok {
			o = &OwnerStats{Owner: m.Owner}
			byOwner[m.Owner] = o
			order = append(order, m.Owner)
		}
		weight := float64(m.SuccessCount)
		prevWeight := float64(o.ResponseCount - o.ErrorCount)
		if weight+prevWeight > 0 {
			o.AvgDurationMS = (o.AvgDurationMS*prevWeight + m.AvgDurationMS*weight) / (prevWeight + weight)
			if m.P95DurationMS > o.P95DurationMS {
				o.P95DurationMS = m.P95DurationMS
			}
		}
		o.ModelCount++
		o.ResponseCount += m.ResponseCount
		o.ErrorCount += m.ErrorCount
		o.TotalTokens += m.TotalTokens
	}

	sort.Strings(order)
	out := make([]OwnerStats, 0, len(order))
	for _, owner := range order {
		o := byOwner[owner]
		o.AvgDurationMS = Round2(o.AvgDurationMS)
		out = append(out, *o)
	}
	return out
}

// RollupMentions computes standings for one scope. Every tracked competitor
// gets a row whether mentioned or not; the denominator is always the scope's
// own response count.
func RollupMentions(responses []models.BenchmarkResponse, mentionRows []models.ResponseMention, competitors []models.Competitor) []CompetitorStanding {
	inScope := map[int64]struct{}{}
	for _, r := range responses {
		inScope[r.ID] = struct{}{}
	}

	counts := map[string]int{}
	totalMentions := 0
	for _, m := range mentionRows {
		if !m.Mentioned {
			continue
		}
		if _, ok := inScope[m.ResponseID]; !ok {
			continue
		}
		counts[m.CompetitorID]++
		totalMentions++
	}

	out := make([]CompetitorStanding, 0, len(competitors))
	for _, c := range competitors {
		mentions := counts[c.ID]
		out = append(out, CompetitorStanding{
			CompetitorID:   c.ID,
			Name:           c.Name,
			Slug:           c.Slug,
			IsPrimary:      c.IsPrimary,
			Mentions:       mentions,
			TotalResponses: len(responses),
			MentionRate:    SafeRate(mentions, len(responses)),
			ShareOfVoice:   SafeRate(mentions, totalMentions),
		})
	}
	return out
}

// Viability is the normalized rival mention density:
// sum(rival mentions) / (response_count * rival_count) * 100.
func Viability(standings []CompetitorStanding, responseCount int) float64 {
	rivalMentions, rivalCount := 0, 0
	for _, s := range standings {
		if s.IsPrimary {
			continue
		}
		rivalCount++
		rivalMentions += s.Mentions
	}
	return SafeRate(rivalMentions, responseCount*rivalCount)
}

// BuildHeadToHead pits the primary brand against each rival over their
// combined mentions in the scope.
func BuildHeadToHead(standings []CompetitorStanding) []HeadToHead {
	var primary *CompetitorStanding
	for i := range standings {
		if standings[i].IsPrimary {
			primary = &standings[i]
			break
		}
	}
	if primary == nil {
		return nil
	}

	out := []HeadToHead{}
	for _, s := range standings {
		if s.IsPrimary {
			continue
		}
		h := HeadToHead{
			Rival:        s.Name,
			PrimaryShare: SafeRate(primary.Mentions, primary.Mentions+s.Mentions),
			RivalShare:   SafeRate(s.Mentions, primary.Mentions+s.Mentions),
		}
		switch {
		case primary.Mentions > s.Mentions:
			h.Winner = primary.Name
		case s.Mentions > primary.Mentions:
			h.Winner = s.Name
		default:
			h.Winner = "tie"
		}
		out = append(out, h)
	}
	return out
}

// BuildDrilldowns folds responses per prompt. Only prompts with at least one
// response in scope appear.
func BuildDrilldowns(prompts []models.PromptQuery, responses []models.BenchmarkResponse, mentionRows []models.ResponseMention, competitors []models.Competitor) []PromptDrilldown {
	byQuery := map[string][]models.BenchmarkResponse{}
	for _, r := range responses {
		byQuery[r.QueryID] = append(byQuery[r.QueryID], r)
	}

	out := []PromptDrilldown{}
	for _, p := range prompts {
		rows, ok := byQuery[p.ID]
		if !ok {
			continue
		}
		standings := RollupMentions(rows, mentionRows, competitors)

		d := PromptDrilldown{
			QueryID:       p.ID,
			QueryText:     p.QueryText,
			Tags:          p.Tags,
			ResponseCount: len(rows),
			ViabilityRate: Viability(standings, len(rows)),
			Standings:     standings,
		}
		for _, s := range standings {
			if s.IsPrimary {
				d.PrimaryMentions = s.Mentions
				d.PrimaryMentionRate = s.MentionRate
				d.VisibilityScore = VisibilityScore(s.MentionRate, s.ShareOfVoice)
				break
			}
		}
		out = append(out, d)
	}
	return out
}

// OverallVisibility is the mean of per-prompt visibility scores.
func OverallVisibility(drilldowns []PromptDrilldown) float64 {
	scores := make([]float64, 0, len(drilldowns))
	for _, d := range drilldowns {
		scores = append(scores, d.VisibilityScore)
	}
	return Round2(Mean(scores))
}

// BuildDiagnostics assembles the "under the hood" view.
func BuildDiagnostics(runs []models.BenchmarkRun, responses []models.BenchmarkResponse) Diagnostics {
	modelStats := RollupModels(responses)
	totalErrors := 0
	for _, m := range modelStats {
		totalErrors += m.ErrorCount
	}
	return Diagnostics{
		Models:         modelStats,
		Owners:         RollupOwners(modelStats),
		TotalRuns:      len(runs),
		TotalErrors:    totalErrors,
		TotalResponses: len(responses),
	}
}

// BuildDashboard assembles the headline summary for one scope.
func BuildDashboard(prompts []models.PromptQuery, responses []models.BenchmarkResponse, mentionRows []models.ResponseMention, competitors []models.Competitor) DashboardSummary {
	standings := RollupMentions(responses, mentionRows, competitors)
	drilldowns := BuildDrilldowns(prompts, responses, mentionRows, competitors)

	errorCount := 0
	for _, r := range responses {
		if r.Failed() {
			errorCount++
		}
	}

	return DashboardSummary{
		TotalResponses:  len(responses),
		ErrorCount:      errorCount,
		VisibilityScore: OverallVisibility(drilldowns),
		ViabilityRate:   Viability(standings, len(responses)),
		Standings:       standings,
		HeadToHead:      BuildHeadToHead(standings),
	}
}
