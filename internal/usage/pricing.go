package usage

import (
	"os"

	"github.com/shopspring/decimal"
)

// USD per 1K tokens. Models absent from this table are reported with a
// zero estimate rather than priced against a guessed tier.
type modelPricing struct {
	prompt     decimal.Decimal
	completion decimal.Decimal
}

var pricing = map[string]modelPricing{
	"gpt-4o-mini": {
		prompt:     decimal.NewFromFloat(0.000150),
		completion: decimal.NewFromFloat(0.000600),
	},
	"gpt-4o": {
		prompt:     decimal.NewFromFloat(0.005),
		completion: decimal.NewFromFloat(0.015),
	},
	"gpt-4": {
		prompt:     decimal.NewFromFloat(0.03),
		completion: decimal.NewFromFloat(0.06),
	},
}

// priceFor resolves per-1K rates for a model. When both override
// variables are set and parse, they replace the table for every model.
func priceFor(model string) (modelPricing, bool) {
	envPrompt := os.Getenv("OPENAI_PROMPT_COST_PER_1K")
	envCompletion := os.Getenv("OPENAI_COMPLETION_COST_PER_1K")
	if envPrompt != "" && envCompletion != "" {
		p, perr := decimal.NewFromString(envPrompt)
		c, cerr := decimal.NewFromString(envCompletion)
		if perr == nil && cerr == nil {
			return modelPricing{prompt: p, completion: c}, true
		}
	}
	rates, ok := pricing[model]
	return rates, ok
}

const pricingNote = "Estimates based on approximate OpenAI pricing, may not reflect actual costs"

var perThousand = decimal.NewFromInt(1000)

// estimateCosts attributes the session's spend to each model. Exact
// per-model prompt/completion splits are not tracked, so the session
// wide ratio is applied to every model's token count.
func estimateCosts(totals TokenTotals, modelUsage map[string]int) CostEstimates {
	promptRatio := decimal.Zero
	if totals.TotalTokens > 0 {
		promptRatio = decimal.NewFromInt(int64(totals.PromptTokens)).
			Div(decimal.NewFromInt(int64(totals.TotalTokens)))
	}
	completionRatio := decimal.NewFromInt(1).Sub(promptRatio)

	total := decimal.Zero
	byModel := make(map[string]ModelCost, len(modelUsage))
	for model, tokens := range modelUsage {
		cost := decimal.Zero
		if rates, ok := priceFor(model); ok {
			tok := decimal.NewFromInt(int64(tokens))
			cost = tok.Mul(promptRatio).Div(perThousand).Mul(rates.prompt).
				Add(tok.Mul(completionRatio).Div(perThousand).Mul(rates.completion))
		}
		byModel[model] = ModelCost{
			Tokens:           tokens,
			EstimatedCostUSD: cost.Round(4).InexactFloat64(),
		}
		total = total.Add(cost)
	}

	return CostEstimates{
		TotalEstimatedUSD: total.Round(4).InexactFloat64(),
		ByModel:           byModel,
		PricingNote:       pricingNote,
	}
}
