package mentions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Highcharts", "highcharts"},
		{"Chart.js", "chart-js"},
		{"  D3  ", "d3"},
		{"amCharts 5", "amcharts-5"},
		{"Plotly.js!!", "plotly-js"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), tt.in)
	}
}

func TestEntitySpecMatching(t *testing.T) {
	spec, err := NewEntitySpec("hc", "Highcharts", true, []string{"Highsoft", "High Charts"})
	require.NoError(t, err)

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"plain mention", "I recommend Highcharts for dashboards.", true},
		{"case insensitive", "HIGHCHARTS is popular.", true},
		{"alias", "Highsoft makes charting tools.", true},
		{"multi-word alias across whitespace", "Try High\n  Charts today.", true},
		{"start of text", "Highcharts wins.", true},
		{"end of text", "The winner is Highcharts", true},
		{"punctuation boundary", "(Highcharts) leads the pack.", true},
		{"embedded in longer token", "HighchartsX is something else.", false},
		{"prefix of longer token", "The xHighcharts fork.", false},
		{"no mention", "Chart.js and D3 are alternatives.", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, spec.Matches(tt.text))
		})
	}
}

func TestEntitySpecMetacharactersQuoted(t *testing.T) {
	spec, err := NewEntitySpec("cj", "Chart.js", false, nil)
	require.NoError(t, err)

	assert.True(t, spec.Matches("Use Chart.js for simple charts."))
	// The dot must not act as a wildcard.
	assert.False(t, spec.Matches("Use Chartsjs for simple charts."))
	assert.False(t, spec.Matches("ChartXjs came up."))
}

func TestNewEntitySpecDedupesAliases(t *testing.T) {
	spec, err := NewEntitySpec("hc", "Highcharts", true, []string{"highcharts", "HIGHCHARTS", "Highsoft"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Highcharts", "Highsoft"}, spec.Aliases)
}

func TestNewEntitySpecRequiresName(t *testing.T) {
	_, err := NewEntitySpec("x", "   ", false, nil)
	assert.Error(t, err)
}

func TestDetectReturnsVerdictPerEntity(t *testing.T) {
	hc, err := NewEntitySpec("hc", "Highcharts", true, nil)
	require.NoError(t, err)
	cj, err := NewEntitySpec("cj", "Chart.js", false, nil)
	require.NoError(t, err)

	detections := Detect("Highcharts is the market leader.", []*EntitySpec{hc, cj})
	require.Len(t, detections, 2)
	assert.True(t, detections[0].Mentioned)
	assert.Equal(t, "highcharts", detections[0].Slug)
	assert.False(t, detections[1].Mentioned)
}
