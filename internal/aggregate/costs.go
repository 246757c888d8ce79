package aggregate

import (
	"math"
	"sort"

	"github.com/aivis/backend/internal/pricing"
	"github.com/aivis/backend/internal/storage/models"
)

// BuildCostLedger joins responses against the static rate card. Models
// without a published rate keep their token totals but carry no cost and are
// listed as unpriced.
func BuildCostLedger(responses []models.BenchmarkResponse) RunCostLedger {
	byModel := map[string]*CostLine{}
	order := []string{}

	for _, r := range responses {
		line, ok := byModel[r.Model]
		if !ok {
			owner := r.ModelOwner
			if owner == "" {
				owner = pricing.Owner(r.Model)
			}
			_, priced := pricing.Lookup(r.Model)
			line = &CostLine{Model: r.Model, Owner: owner, Priced: priced}
			byModel[r.Model] = line
			order = append(order, r.Model)
		}

		line.ResponseCount++
		line.PromptTokens += int64(r.PromptTokens)
		line.CompletionTokens += int64(r.CompletionTokens)
		line.TotalTokens += int64(r.EffectiveTotalTokens())
	}

	sort.Strings(order)

	ledger := RunCostLedger{Lines: make([]CostLine, 0, len(order))}
	for _, model := range order {
		line := byModel[model]
		if line.Priced {
			cost, _ := pricing.Estimate(model, int(line.PromptTokens), int(line.CompletionTokens))
			line.CostUSD = roundCost(cost)
			ledger.TotalCostUSD += cost
		} else {
			ledger.UnpricedModels = append(ledger.UnpricedModels, model)
		}
		ledger.TotalTokens += line.TotalTokens
		ledger.Lines = append(ledger.Lines, *line)
	}
	ledger.TotalCostUSD = roundCost(ledger.TotalCostUSD)
	return ledger
}

// roundCost keeps four decimals; benchmark runs on cheap models cost
// fractions of a cent.
func roundCost(v float64) float64 {
	return math.Round(v*10000) / 10000
}
