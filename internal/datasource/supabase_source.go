package datasource

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aivis/backend/internal/aggregate"
	"github.com/aivis/backend/internal/metrics"
	"github.com/aivis/backend/internal/storage/models"
	"github.com/aivis/backend/internal/storage/supabase"
	"github.com/aivis/backend/pkg/logger"
)

// SupabaseSource is the primary strategy: it pages raw rows out of the
// analytical store and folds them locally. Missing-relation conditions mean
// the store is not provisioned yet and degrade to empty summaries instead of
// erroring into the fallback.
type SupabaseSource struct {
	store *supabase.Client
}

func NewSupabaseSource(store *supabase.Client) *SupabaseSource {
	return &SupabaseSource{store: store}
}

func (s *SupabaseSource) Name() string { return "supabase" }

func degraded(operation string, err error) bool {
	if !supabase.IsNotProvisioned(err) {
		return false
	}
	logger.Warn("Analytical store not provisioned, returning empty data",
		zap.String("operation", operation),
		zap.Error(err),
	)
	return true
}

// scope is the row set one aggregate operation works over.
type scope struct {
	prompts     []models.PromptQuery
	competitors []models.Competitor
	run         *models.BenchmarkRun
	responses   []models.BenchmarkResponse
	mentions    []models.ResponseMention
}

// loadScope gathers the latest run for the month plus its responses and
// mention facts, narrowed to prompts carrying the tag when one is given.
func (s *SupabaseSource) loadScope(ctx context.Context, tag, month string) (*scope, error) {
	prompts, err := s.store.AllPrompts(ctx)
	if err != nil {
		return nil, err
	}
	competitors, err := s.store.ActiveCompetitors(ctx)
	if err != nil {
		return nil, err
	}
	runs, err := s.store.Runs(ctx, month)
	if err != nil {
		return nil, err
	}

	sc := &scope{
		prompts:     filterPrompts(prompts, tag),
		competitors: competitors,
	}
	if len(runs) == 0 {
		return sc, nil
	}
	sc.run = &runs[0]

	responses, err := s.store.ResponsesForRun(ctx, sc.run.ID)
	if err != nil {
		return nil, err
	}
	sc.responses = filterResponses(responses, sc.prompts, tag)

	ids := make([]int64, 0, len(sc.responses))
	for _, r := range sc.responses {
		ids = append(ids, r.ID)
	}
	sc.mentions, err = s.store.MentionsForResponses(ctx, ids)
	if err != nil {
		return nil, err
	}
	return sc, nil
}

func filterPrompts(prompts []models.PromptQuery, tag string) []models.PromptQuery {
	out := make([]models.PromptQuery, 0, len(prompts))
	for _, p := range prompts {
		if p.Deleted() {
			continue
		}
		if tag != "" && !p.HasTag(tag) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// filterResponses keeps responses whose prompt survived the tag filter.
// With no tag every response stays, including ones for deleted prompts, so
// historical run totals do not shift when a prompt is retired.
func filterResponses(responses []models.BenchmarkResponse, prompts []models.PromptQuery, tag string) []models.BenchmarkResponse {
	if tag == "" {
		return responses
	}
	keep := map[string]struct{}{}
	for _, p := range prompts {
		keep[p.ID] = struct{}{}
	}
	out := make([]models.BenchmarkResponse, 0, len(responses))
	for _, r := range responses {
		if _, ok := keep[r.QueryID]; ok {
			out = append(out, r)
		}
	}
	return out
}

func (s *SupabaseSource) Dashboard(ctx context.Context, tag, month string) (aggregate.DashboardSummary, error) {
	sc, err := s.loadScope(ctx, tag, month)
	if err != nil {
		if degraded("dashboard", err) {
			return aggregate.DashboardSummary{Standings: []aggregate.CompetitorStanding{}}, nil
		}
		return aggregate.DashboardSummary{}, err
	}

	summary := aggregate.BuildDashboard(sc.prompts, sc.responses, sc.mentions, sc.competitors)
	if sc.run != nil {
		summary.RunID = sc.run.ID
		summary.RunMonth = sc.run.RunMonth
		if tag == "" && sc.run.OverallScore > 0 {
			summary.VisibilityScore = aggregate.Round2(sc.run.OverallScore)
		}
		if tag == "" {
			for _, st := range summary.Standings {
				if st.IsPrimary {
					metrics.MentionRate.WithLabelValues(sc.run.RunMonth).Set(st.MentionRate)
					break
				}
			}
		}
	}
	return summary, nil
}

func (s *SupabaseSource) Diagnostics(ctx context.Context, month string) (aggregate.Diagnostics, error) {
	runs, err := s.store.Runs(ctx, month)
	if err != nil {
		if degraded("diagnostics", err) {
			return aggregate.Diagnostics{Models: []aggregate.ModelStats{}, Owners: []aggregate.OwnerStats{}}, nil
		}
		return aggregate.Diagnostics{}, err
	}

	// mv_model_performance is the fast path; stores without the views fold
	// the raw responses instead.
	diag, viewErr := s.diagnosticsFromViews(ctx, runs)
	if viewErr == nil {
		return diag, nil
	}
	if !supabase.IsNotProvisioned(viewErr) {
		return aggregate.Diagnostics{}, viewErr
	}
	logger.Warn("Model performance view unavailable, folding raw responses", zap.Error(viewErr))

	var responses []models.BenchmarkResponse
	for _, run := range runs {
		rows, err := s.store.ResponsesForRun(ctx, run.ID)
		if err != nil {
			return aggregate.Diagnostics{}, fmt.Errorf("failed to load responses for diagnostics: %w", err)
		}
		responses = append(responses, rows...)
	}
	return aggregate.BuildDiagnostics(runs, responses), nil
}

func (s *SupabaseSource) diagnosticsFromViews(ctx context.Context, runs []models.BenchmarkRun) (aggregate.Diagnostics, error) {
	var rows []models.ModelPerformanceRow
	for _, run := range runs {
		perf, err := s.store.ModelPerformance(ctx, run.ID)
		if err != nil {
			return aggregate.Diagnostics{}, err
		}
		rows = append(rows, perf...)
	}
	return aggregate.DiagnosticsFromPerformance(runs, rows), nil
}

func (s *SupabaseSource) RunCosts(ctx context.Context, month string) (aggregate.RunCostLedger, error) {
	runs, err := s.store.Runs(ctx, month)
	if err != nil {
		if degraded("run-costs", err) {
			return aggregate.RunCostLedger{Lines: []aggregate.CostLine{}}, nil
		}
		return aggregate.RunCostLedger{}, err
	}

	var responses []models.BenchmarkResponse
	for _, run := range runs {
		rows, err := s.store.ResponsesForRun(ctx, run.ID)
		if err != nil {
			return aggregate.RunCostLedger{}, fmt.Errorf("failed to load responses for cost ledger: %w", err)
		}
		responses = append(responses, rows...)
	}
	return aggregate.BuildCostLedger(responses), nil
}

func (s *SupabaseSource) TimeSeries(ctx context.Context, tag string) (aggregate.TimeSeriesResult, error) {
	// The summary views aggregate the whole battery, so they can only serve
	// the unfiltered series; a tag filter always folds raw rows.
	if tag == "" {
		result, viewErr := s.timeSeriesFromViews(ctx)
		if viewErr == nil {
			return result, nil
		}
		if !supabase.IsNotProvisioned(viewErr) {
			return aggregate.TimeSeriesResult{}, viewErr
		}
		logger.Warn("Run summary views unavailable, folding raw responses", zap.Error(viewErr))
	}

	prompts, err := s.store.AllPrompts(ctx)
	if err != nil {
		if degraded("timeseries", err) {
			return aggregate.EmptyTimeSeries(), nil
		}
		return aggregate.TimeSeriesResult{}, err
	}
	competitors, err := s.store.ActiveCompetitors(ctx)
	if err != nil {
		return aggregate.TimeSeriesResult{}, err
	}
	runs, err := s.store.Runs(ctx, "")
	if err != nil {
		return aggregate.TimeSeriesResult{}, err
	}

	tagged := filterPrompts(prompts, tag)
	scopes := make([]aggregate.RunScope, 0, len(runs))
	for _, run := range runs {
		responses, err := s.store.ResponsesForRun(ctx, run.ID)
		if err != nil {
			return aggregate.TimeSeriesResult{}, fmt.Errorf("failed to load responses for run %s: %w", run.ID, err)
		}
		responses = filterResponses(responses, tagged, tag)

		ids := make([]int64, 0, len(responses))
		for _, r := range responses {
			ids = append(ids, r.ID)
		}
		mentionRows, err := s.store.MentionsForResponses(ctx, ids)
		if err != nil {
			return aggregate.TimeSeriesResult{}, err
		}
		scopes = append(scopes, aggregate.RunScope{Run: run, Responses: responses, Mentions: mentionRows})
	}

	return aggregate.BuildTimeSeries(scopes, competitors, tag != ""), nil
}

func (s *SupabaseSource) timeSeriesFromViews(ctx context.Context) (aggregate.TimeSeriesResult, error) {
	summaries, err := s.store.RunSummaries(ctx)
	if err != nil {
		return aggregate.TimeSeriesResult{}, err
	}
	rates, err := s.store.MentionRates(ctx, "")
	if err != nil {
		return aggregate.TimeSeriesResult{}, err
	}
	return aggregate.TimeSeriesFromSummaries(summaries, rates), nil
}

func (s *SupabaseSource) PromptDrilldown(ctx context.Context, tag, month string) ([]aggregate.PromptDrilldown, error) {
	sc, err := s.loadScope(ctx, tag, month)
	if err != nil {
		if degraded("drilldown", err) {
			return []aggregate.PromptDrilldown{}, nil
		}
		return nil, err
	}
	return aggregate.BuildDrilldowns(sc.prompts, sc.responses, sc.mentions, sc.competitors), nil
}

func (s *SupabaseSource) Runs(ctx context.Context, month string) ([]models.BenchmarkRun, error) {
	runs, err := s.store.Runs(ctx, month)
	if err != nil {
		if degraded("runs", err) {
			return []models.BenchmarkRun{}, nil
		}
		return nil, err
	}
	return runs, nil
}
