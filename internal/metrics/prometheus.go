package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aivis_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"endpoint"},
	)

	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aivis_request_total",
			Help: "Total number of API requests served",
		},
		[]string{"endpoint", "status"},
	)

	DataSourceQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aivis_datasource_queries_total",
			Help: "Queries per data source and outcome",
		},
		[]string{"source", "outcome"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aivis_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"operation"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aivis_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"operation"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aivis_llm_tokens_used",
			Help: "Total LLM tokens used by the benchmark worker",
		},
		[]string{"model", "type"},
	)

	LLMCost = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aivis_llm_cost_usd",
			Help: "Estimated LLM API cost in USD",
		},
		[]string{"model"},
	)

	JobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aivis_jobs_processed_total",
			Help: "Benchmark jobs processed by terminal status",
		},
		[]string{"status"},
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aivis_job_duration_seconds",
			Help:    "Benchmark job execution duration in seconds",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"model"},
	)

	MentionRate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aivis_mention_rate",
			Help: "Latest primary-brand mention rate per run",
		},
		[]string{"run_month"},
	)

	RunsFinalized = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aivis_runs_finalized_total",
			Help: "Total benchmark runs finalized",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(RequestTotal)
	prometheus.MustRegister(DataSourceQueries)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(LLMCost)
	prometheus.MustRegister(JobsProcessed)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(MentionRate)
	prometheus.MustRegister(RunsFinalized)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
