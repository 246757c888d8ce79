package datasource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aivis/backend/internal/metrics"
	"github.com/aivis/backend/internal/storage/supabase"
)

// fakeStore serves canned PostgREST responses per table path and records
// which tables were queried.
type fakeStore struct {
	mu        sync.Mutex
	responses map[string]string
	hits      map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{responses: map[string]string{}, hits: map[string]int{}}
}

func (f *fakeStore) serve(table, body string) { f.responses["/rest/v1/"+table] = body }

func (f *fakeStore) hit(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits["/rest/v1/"+table]
}

func (f *fakeStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.hits[r.URL.Path]++
	body, ok := f.responses[r.URL.Path]
	f.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":"PGRST205","message":"Could not find the table in the schema cache"}`))
		return
	}
	w.Write([]byte(body))
}

func newViewSource(t *testing.T, store *fakeStore) *SupabaseSource {
	t.Helper()
	server := httptest.NewServer(store)
	t.Cleanup(server.Close)

	client, err := supabase.NewClient(server.URL, "service-key", 5, 1000, 40)
	require.NoError(t, err)
	return NewSupabaseSource(client)
}

func TestDiagnosticsPrefersModelPerformanceView(t *testing.T) {
	store := newFakeStore()
	store.serve("benchmark_runs", `[{"id":"r1","run_month":"2026-08"}]`)
	store.serve("mv_model_performance", `[
		{"run_id":"r1","model":"gpt-4o-mini","model_owner":"OpenAI",
		 "response_count":10,"error_count":1,"avg_duration_ms":180,
		 "p95_duration_ms":300,"prompt_tokens":100,"completion_tokens":200,"total_tokens":300}
	]`)
	src := newViewSource(t, store)

	diag, err := src.Diagnostics(context.Background(), "2026-08")
	require.NoError(t, err)

	require.Len(t, diag.Models, 1)
	assert.Equal(t, "gpt-4o-mini", diag.Models[0].Model)
	assert.Equal(t, 9, diag.Models[0].SuccessCount)
	assert.Equal(t, 1, diag.TotalRuns)
	assert.Equal(t, 10, diag.TotalResponses)

	assert.Equal(t, 1, store.hit("mv_model_performance"))
	assert.Zero(t, store.hit("benchmark_responses"), "the view path must not fold raw rows")
}

func TestDiagnosticsFallsBackWhenViewMissing(t *testing.T) {
	store := newFakeStore()
	store.serve("benchmark_runs", `[{"id":"r1","run_month":"2026-08"}]`)
	// mv_model_performance is not served: PGRST205 on first touch.
	store.serve("benchmark_responses", `[
		{"id":1,"run_id":"r1","query_id":"q1","model":"gpt-4o-mini","duration_ms":200,"total_tokens":50},
		{"id":2,"run_id":"r1","query_id":"q1","model":"gpt-4o-mini","duration_ms":100,"error":"timeout"}
	]`)
	src := newViewSource(t, store)

	diag, err := src.Diagnostics(context.Background(), "2026-08")
	require.NoError(t, err)

	require.Len(t, diag.Models, 1)
	assert.Equal(t, 2, diag.Models[0].ResponseCount)
	assert.Equal(t, 1, diag.Models[0].ErrorCount)

	assert.Equal(t, 1, store.hit("mv_model_performance"))
	assert.Equal(t, 1, store.hit("benchmark_responses"))
}

func TestTimeSeriesPrefersSummaryViews(t *testing.T) {
	store := newFakeStore()
	store.serve("mv_run_summary", `[
		{"run_id":"r1","run_month":"2026-08","total_responses":20,"overall_score":71.5}
	]`)
	store.serve("mv_competitor_mention_rates", `[
		{"run_id":"r1","competitor_id":"hc","is_primary":true,"mention_rate":60,"share_of_voice":66.67}
	]`)
	src := newViewSource(t, store)

	result, err := src.TimeSeries(context.Background(), "")
	require.NoError(t, err)
	require.True(t, result.OK)
	require.Len(t, result.Points, 1)
	assert.Equal(t, 71.5, result.Points[0].VisibilityScore)
	assert.Equal(t, float64(60), result.Points[0].MentionRate)

	assert.Zero(t, store.hit("benchmark_runs"), "the view path must not page raw runs")
}

func TestTimeSeriesTagFilterSkipsViews(t *testing.T) {
	store := newFakeStore()
	store.serve("prompt_queries", `[{"id":"p1","query_text":"x","tags":["pricing"],"is_active":true}]`)
	store.serve("competitors", `[{"id":"hc","name":"Highcharts","slug":"highcharts","is_primary":true,"is_active":true}]`)
	store.serve("benchmark_runs", `[]`)
	src := newViewSource(t, store)

	result, err := src.TimeSeries(context.Background(), "pricing")
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Empty(t, result.Points)

	assert.Zero(t, store.hit("mv_run_summary"), "tag-filtered series cannot use battery-wide views")
	assert.Zero(t, store.hit("mv_competitor_mention_rates"))
}

func TestTimeSeriesFallsBackWhenViewsMissing(t *testing.T) {
	store := newFakeStore()
	// No mv_* tables served; raw path takes over.
	store.serve("prompt_queries", `[{"id":"p1","query_text":"x","tags":[],"is_active":true}]`)
	store.serve("competitors", `[{"id":"hc","name":"Highcharts","slug":"highcharts","is_primary":true,"is_active":true}]`)
	store.serve("benchmark_runs", `[]`)
	src := newViewSource(t, store)

	result, err := src.TimeSeries(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Empty(t, result.Points)

	assert.Equal(t, 1, store.hit("mv_run_summary"))
	assert.Equal(t, 1, store.hit("benchmark_runs"))
}

func TestDashboardSetsMentionRateGauge(t *testing.T) {
	store := newFakeStore()
	store.serve("prompt_queries", `[{"id":"p1","query_text":"x","tags":[],"is_active":true}]`)
	store.serve("competitors", `[{"id":"hc","name":"Highcharts","slug":"highcharts","is_primary":true,"is_active":true}]`)
	store.serve("benchmark_runs", `[{"id":"r1","run_month":"2026-08"}]`)
	store.serve("benchmark_responses", `[
		{"id":1,"run_id":"r1","query_id":"p1","model":"gpt-4o-mini"},
		{"id":2,"run_id":"r1","query_id":"p1","model":"gpt-4o-mini"}
	]`)
	store.serve("response_mentions", `[
		{"response_id":1,"competitor_id":"hc","mentioned":true},
		{"response_id":2,"competitor_id":"hc","mentioned":false}
	]`)
	src := newViewSource(t, store)

	summary, err := src.Dashboard(context.Background(), "", "2026-08")
	require.NoError(t, err)
	require.Len(t, summary.Standings, 1)
	assert.Equal(t, float64(50), summary.Standings[0].MentionRate)

	gauge := metrics.MentionRate.WithLabelValues("2026-08")
	assert.Equal(t, float64(50), testutil.ToFloat64(gauge))
}
