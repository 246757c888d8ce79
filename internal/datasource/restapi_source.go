package datasource

import (
	"context"

	"github.com/aivis/backend/internal/aggregate"
	"github.com/aivis/backend/internal/storage/models"
	"github.com/aivis/backend/internal/storage/restapi"
)

// RESTSource adapts the fallback REST API to the Source interface. The
// fallback serves pre-aggregated summaries, so there is nothing to fold.
type RESTSource struct {
	client *restapi.Client
}

func NewRESTSource(client *restapi.Client) *RESTSource {
	return &RESTSource{client: client}
}

func (s *RESTSource) Name() string { return "rest-fallback" }

func (s *RESTSource) Dashboard(ctx context.Context, tag, month string) (aggregate.DashboardSummary, error) {
	return s.client.Dashboard(ctx, tag, month)
}

func (s *RESTSource) Diagnostics(ctx context.Context, month string) (aggregate.Diagnostics, error) {
	return s.client.Diagnostics(ctx, month)
}

func (s *RESTSource) RunCosts(ctx context.Context, month string) (aggregate.RunCostLedger, error) {
	return s.client.RunCosts(ctx, month)
}

func (s *RESTSource) TimeSeries(ctx context.Context, tag string) (aggregate.TimeSeriesResult, error) {
	return s.client.TimeSeries(ctx, tag)
}

func (s *RESTSource) PromptDrilldown(ctx context.Context, tag, month string) ([]aggregate.PromptDrilldown, error) {
	return s.client.PromptDrilldown(ctx, tag, month)
}

func (s *RESTSource) Runs(ctx context.Context, month string) ([]models.BenchmarkRun, error) {
	return s.client.Runs(ctx, month)
}
