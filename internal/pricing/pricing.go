package pricing

import "strings"

// ModelPrice is the published per-million-token rate for one model.
type ModelPrice struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// Static rate card, in USD per 1M tokens. Benchmarked models not listed
// here produce unpriced cost lines rather than silently costing zero.
var rateCard = map[string]ModelPrice{
	"gpt-4o":            {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"gpt-4o-mini":       {InputPerMillion: 0.15, OutputPerMillion: 0.60},
	"gpt-4.1":           {InputPerMillion: 2.00, OutputPerMillion: 8.00},
	"gpt-4.1-mini":      {InputPerMillion: 0.40, OutputPerMillion: 1.60},
	"o1":                {InputPerMillion: 15.00, OutputPerMillion: 60.00},
	"o3-mini":           {InputPerMillion: 1.10, OutputPerMillion: 4.40},
	"claude-3-5-sonnet": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-3-5-haiku":  {InputPerMillion: 0.80, OutputPerMillion: 4.00},
	"claude-3-7-sonnet": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"gemini-1.5-pro":    {InputPerMillion: 1.25, OutputPerMillion: 5.00},
	"gemini-1.5-flash":  {InputPerMillion: 0.075, OutputPerMillion: 0.30},
	"gemini-2.0-flash":  {InputPerMillion: 0.10, OutputPerMillion: 0.40},
}

// Lookup resolves the rate for a model name. Versioned names resolve by
// longest matching prefix, so "claude-3-5-sonnet-20241022" prices like
// "claude-3-5-sonnet".
func Lookup(model string) (ModelPrice, bool) {
	m := strings.ToLower(strings.TrimSpace(model))
	if price, ok := rateCard[m]; ok {
		return price, true
	}

	var bestKey string
	for key := range rateCard {
		if strings.HasPrefix(m, key) && len(key) > len(bestKey) {
			bestKey = key
		}
	}
	if bestKey == "" {
		return ModelPrice{}, false
	}
	return rateCard[bestKey], true
}

// Estimate computes the USD cost of a call. The second return is false
// when the model has no published rate.
func Estimate(model string, promptTokens, completionTokens int) (float64, bool) {
	price, ok := Lookup(model)
	if !ok {
		return 0, false
	}
	cost := float64(promptTokens)/1e6*price.InputPerMillion +
		float64(completionTokens)/1e6*price.OutputPerMillion
	return cost, true
}

// Owner infers the vendor behind a model name.
func Owner(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(m, "gpt"), strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"):
		return "OpenAI"
	case strings.Contains(m, "claude"):
		return "Anthropic"
	case strings.Contains(m, "gemini"):
		return "Google"
	default:
		return "Unknown"
	}
}
