package datasource

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aivis/backend/internal/aggregate"
	"github.com/aivis/backend/internal/storage/models"
	"github.com/aivis/backend/internal/storage/supabase"
)

// stubSource answers every operation from canned values or a single error.
type stubSource struct {
	name  string
	err   error
	calls int

	dashboard aggregate.DashboardSummary
	series    aggregate.TimeSeriesResult
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Dashboard(context.Context, string, string) (aggregate.DashboardSummary, error) {
	s.calls++
	return s.dashboard, s.err
}

func (s *stubSource) Diagnostics(context.Context, string) (aggregate.Diagnostics, error) {
	s.calls++
	return aggregate.Diagnostics{}, s.err
}

func (s *stubSource) RunCosts(context.Context, string) (aggregate.RunCostLedger, error) {
	s.calls++
	return aggregate.RunCostLedger{}, s.err
}

func (s *stubSource) TimeSeries(context.Context, string) (aggregate.TimeSeriesResult, error) {
	s.calls++
	return s.series, s.err
}

func (s *stubSource) PromptDrilldown(context.Context, string, string) ([]aggregate.PromptDrilldown, error) {
	s.calls++
	return nil, s.err
}

func (s *stubSource) Runs(context.Context, string) ([]models.BenchmarkRun, error) {
	s.calls++
	return nil, s.err
}

func TestChainUsesPrimaryWhenHealthy(t *testing.T) {
	primary := &stubSource{name: "primary", dashboard: aggregate.DashboardSummary{TotalResponses: 10}}
	secondary := &stubSource{name: "secondary"}
	chain := NewChain(nil, primary, secondary)

	summary, err := chain.Dashboard(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, 10, summary.TotalResponses)
	assert.Zero(t, secondary.calls, "secondary must not be touched when primary succeeds")
}

func TestChainFallsBackOnPrimaryError(t *testing.T) {
	primary := &stubSource{name: "primary", err: fmt.Errorf("connection refused")}
	secondary := &stubSource{name: "secondary", dashboard: aggregate.DashboardSummary{TotalResponses: 5}}
	chain := NewChain(nil, primary, secondary)

	summary, err := chain.Dashboard(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, 5, summary.TotalResponses)
	assert.Equal(t, 1, primary.calls)
}

func TestChainSurfacesPrimaryErrorWhenAllFail(t *testing.T) {
	primaryErr := fmt.Errorf("primary exploded")
	primary := &stubSource{name: "primary", err: primaryErr}
	secondary := &stubSource{name: "secondary", err: fmt.Errorf("secondary also down")}
	chain := NewChain(nil, primary, secondary)

	_, err := chain.Dashboard(context.Background(), "tag", "2026-08")
	require.Error(t, err)
	assert.ErrorIs(t, err, primaryErr, "the primary error wins when every source fails")
	assert.Contains(t, err.Error(), "dashboard")
}

func TestChainDoesNotFallBackOnAuthErrors(t *testing.T) {
	authErr := &supabase.APIError{StatusCode: 401, Message: "bad key"}
	primary := &stubSource{name: "primary", err: authErr}
	secondary := &stubSource{name: "secondary"}
	chain := NewChain(nil, primary, secondary)

	_, err := chain.Dashboard(context.Background(), "", "")
	require.Error(t, err)

	var apiErr *supabase.APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.Zero(t, secondary.calls, "auth failures surface verbatim without fallback")
}

func TestChainTimeSeriesIsSoft(t *testing.T) {
	primary := &stubSource{name: "primary", err: fmt.Errorf("down")}
	secondary := &stubSource{name: "secondary", err: fmt.Errorf("also down")}
	chain := NewChain(nil, primary, secondary)

	result, err := chain.TimeSeries(context.Background(), "")
	require.NoError(t, err, "timeseries degrades instead of erroring")
	assert.False(t, result.OK)
	assert.Empty(t, result.Points)
}

func TestChainWithNoSources(t *testing.T) {
	chain := NewChain(nil)
	_, err := chain.Dashboard(context.Background(), "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data sources")
}
