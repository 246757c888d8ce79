package datasource

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aivis/backend/internal/aggregate"
	"github.com/aivis/backend/internal/cache/redis"
	"github.com/aivis/backend/internal/metrics"
	"github.com/aivis/backend/internal/storage/models"
	"github.com/aivis/backend/internal/storage/supabase"
	"github.com/aivis/backend/pkg/logger"
)

// Source is one data-source strategy. The chain tries sources in order and
// never merges values across them within a single request.
type Source interface {
	Name() string
	Dashboard(ctx context.Context, tag, month string) (aggregate.DashboardSummary, error)
	Diagnostics(ctx context.Context, month string) (aggregate.Diagnostics, error)
	RunCosts(ctx context.Context, month string) (aggregate.RunCostLedger, error)
	TimeSeries(ctx context.Context, tag string) (aggregate.TimeSeriesResult, error)
	PromptDrilldown(ctx context.Context, tag, month string) ([]aggregate.PromptDrilldown, error)
	Runs(ctx context.Context, month string) ([]models.BenchmarkRun, error)
}

// Chain is the ordered list of strategies with an optional result cache.
type Chain struct {
	sources []Source
	cache   *redis.Client
}

func NewChain(cache *redis.Client, sources ...Source) *Chain {
	return &Chain{sources: sources, cache: cache}
}

// run tries each source in order. Auth and rate-limit errors surface
// immediately without falling through; anything else moves to the next
// source. When every source fails the first (primary) error wins, wrapped
// with the operation name.
func run[T any](ctx context.Context, c *Chain, operation string, attempt func(Source) (T, error)) (T, error) {
	var zero T
	var primaryErr error

	for _, source := range c.sources {
		result, err := attempt(source)
		if err == nil {
			metrics.DataSourceQueries.WithLabelValues(source.Name(), "ok").Inc()
			return result, nil
		}
		metrics.DataSourceQueries.WithLabelValues(source.Name(), "error").Inc()
		if supabase.IsAuthOrRateLimit(err) {
			return zero, err
		}
		logger.Warn("Data source failed, trying next",
			zap.String("operation", operation),
			zap.String("source", source.Name()),
			zap.Error(err),
		)
		if primaryErr == nil {
			primaryErr = err
		}
	}

	if primaryErr == nil {
		primaryErr = fmt.Errorf("no data sources configured")
	}
	return zero, fmt.Errorf("%s: %w", operation, primaryErr)
}

// cached wraps run with a read-through cache keyed on operation and filters.
func cached[T any](ctx context.Context, c *Chain, operation string, keyParts []string, attempt func(Source) (T, error)) (T, error) {
	if c.cache == nil {
		return run(ctx, c, operation, attempt)
	}

	key := redis.Key(operation, keyParts...)
	var hit T
	if err := c.cache.Get(ctx, key, &hit); err == nil {
		metrics.CacheHits.WithLabelValues(operation).Inc()
		return hit, nil
	}
	metrics.CacheMisses.WithLabelValues(operation).Inc()

	result, err := run(ctx, c, operation, attempt)
	if err != nil {
		return result, err
	}
	if err := c.cache.Set(ctx, key, result); err != nil {
		logger.Warn("Failed to cache result", zap.String("operation", operation), zap.Error(err))
	}
	return result, nil
}

func (c *Chain) Dashboard(ctx context.Context, tag, month string) (aggregate.DashboardSummary, error) {
	return cached(ctx, c, "dashboard", []string{tag, month}, func(s Source) (aggregate.DashboardSummary, error) {
		return s.Dashboard(ctx, tag, month)
	})
}

func (c *Chain) Diagnostics(ctx context.Context, month string) (aggregate.Diagnostics, error) {
	return cached(ctx, c, "diagnostics", []string{month}, func(s Source) (aggregate.Diagnostics, error) {
		return s.Diagnostics(ctx, month)
	})
}

func (c *Chain) RunCosts(ctx context.Context, month string) (aggregate.RunCostLedger, error) {
	return cached(ctx, c, "run-costs", []string{month}, func(s Source) (aggregate.RunCostLedger, error) {
		return s.RunCosts(ctx, month)
	})
}

// TimeSeries is soft: when every source fails it returns ok:false with no
// points instead of an error.
func (c *Chain) TimeSeries(ctx context.Context, tag string) (aggregate.TimeSeriesResult, error) {
	result, err := cached(ctx, c, "timeseries", []string{tag}, func(s Source) (aggregate.TimeSeriesResult, error) {
		return s.TimeSeries(ctx, tag)
	})
	if err != nil {
		logger.Warn("Time series unavailable from all sources", zap.Error(err))
		return aggregate.EmptyTimeSeries(), nil
	}
	return result, nil
}

func (c *Chain) PromptDrilldown(ctx context.Context, tag, month string) ([]aggregate.PromptDrilldown, error) {
	return cached(ctx, c, "drilldown", []string{tag, month}, func(s Source) ([]aggregate.PromptDrilldown, error) {
		return s.PromptDrilldown(ctx, tag, month)
	})
}

func (c *Chain) Runs(ctx context.Context, month string) ([]models.BenchmarkRun, error) {
	return cached(ctx, c, "runs", []string{month}, func(s Source) ([]models.BenchmarkRun, error) {
		return s.Runs(ctx, month)
	})
}

// InvalidateConfigDerived drops cached aggregates after a config mutation.
func (c *Chain) InvalidateConfigDerived(ctx context.Context) {
	if c.cache == nil {
		return
	}
	for _, operation := range []string{"dashboard", "diagnostics", "run-costs", "timeseries", "drilldown", "runs"} {
		if err := c.cache.Invalidate(ctx, operation); err != nil {
			logger.Warn("Cache invalidation failed", zap.String("operation", operation), zap.Error(err))
		}
	}
}
