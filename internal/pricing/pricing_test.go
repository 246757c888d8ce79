package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwner(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"gpt-4o", "OpenAI"},
		{"gpt-4o-mini", "OpenAI"},
		{"o1", "OpenAI"},
		{"o3-mini", "OpenAI"},
		{"claude-3-5-sonnet-20241022", "Anthropic"},
		{"Claude-3-7-Sonnet", "Anthropic"},
		{"gemini-2.0-flash", "Google"},
		{"llama-3-70b", "Unknown"},
		{"", "Unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Owner(tt.model), tt.model)
	}
}

func TestLookup(t *testing.T) {
	price, ok := Lookup("gpt-4o-mini")
	require.True(t, ok)
	assert.Equal(t, 0.15, price.InputPerMillion)
	assert.Equal(t, 0.60, price.OutputPerMillion)

	// Versioned names resolve by longest prefix: the dated sonnet must not
	// fall back to a shorter sibling.
	price, ok = Lookup("claude-3-5-sonnet-20241022")
	require.True(t, ok)
	assert.Equal(t, 3.00, price.InputPerMillion)

	// gpt-4o-mini must match its own entry, not the gpt-4o prefix.
	price, _ = Lookup("gpt-4o-mini-2024-07-18")
	assert.Equal(t, 0.15, price.InputPerMillion)

	_, ok = Lookup("llama-3-70b")
	assert.False(t, ok)
}

func TestEstimate(t *testing.T) {
	cost, ok := Estimate("gpt-4o-mini", 1_000_000, 1_000_000)
	require.True(t, ok)
	assert.InDelta(t, 0.75, cost, 0.0001)

	cost, ok = Estimate("unknown-model", 1000, 1000)
	assert.False(t, ok)
	assert.Zero(t, cost)

	cost, ok = Estimate("gpt-4o", 0, 0)
	require.True(t, ok)
	assert.Zero(t, cost)
}
