package configsync

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV(t *testing.T) {
	input := strings.Join([]string{
		"query",
		"best charting library",
		"javascript graph tools",
		"best charting library",
		"dashboard chart comparison",
	}, "\n")

	result, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.True(t, result.HeaderRowSkipped)
	assert.Equal(t, 1, result.DuplicateRows)
	assert.Equal(t, []string{
		"best charting library",
		"javascript graph tools",
		"dashboard chart comparison",
	}, result.ParsedQueries)
}

func TestParseCSVWithoutHeader(t *testing.T) {
	result, err := ParseCSV(strings.NewReader("best charting library\n"))
	require.NoError(t, err)

	assert.False(t, result.HeaderRowSkipped)
	assert.Equal(t, []string{"best charting library"}, result.ParsedQueries)
	assert.Zero(t, result.DuplicateRows)
}

func TestParseCSVSkipsBlankRows(t *testing.T) {
	result, err := ParseCSV(strings.NewReader("query\n\n  \nprompt one\n"))
	require.NoError(t, err)

	assert.True(t, result.HeaderRowSkipped)
	assert.Equal(t, []string{"prompt one"}, result.ParsedQueries)
}

func TestParseCSVEmptyInput(t *testing.T) {
	result, err := ParseCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, result.ParsedQueries)
	assert.False(t, result.HeaderRowSkipped)
}
