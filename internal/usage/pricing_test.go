package usage

import "testing"

func TestEstimateCosts(t *testing.T) {
	t.Run("known model priced by session ratio", func(t *testing.T) {
		totals := TokenTotals{PromptTokens: 600, CompletionTokens: 400, TotalTokens: 1000}
		costs := estimateCosts(totals, map[string]int{"gpt-4o": 1000})

		// 600 prompt at 0.005/1K plus 400 completion at 0.015/1K.
		if got := costs.ByModel["gpt-4o"].EstimatedCostUSD; got != 0.009 {
			t.Fatalf("gpt-4o cost=%v, want 0.009", got)
		}
		if costs.TotalEstimatedUSD != 0.009 {
			t.Fatalf("total=%v, want 0.009", costs.TotalEstimatedUSD)
		}
		if costs.ByModel["gpt-4o"].Tokens != 1000 {
			t.Fatalf("tokens=%d, want 1000", costs.ByModel["gpt-4o"].Tokens)
		}
	})

	t.Run("unknown model reported at zero", func(t *testing.T) {
		totals := TokenTotals{PromptTokens: 500, CompletionTokens: 500, TotalTokens: 1000}
		costs := estimateCosts(totals, map[string]int{"some-local-model": 1000})

		entry, ok := costs.ByModel["some-local-model"]
		if !ok {
			t.Fatal("unknown model must still be listed")
		}
		if entry.EstimatedCostUSD != 0 || entry.Tokens != 1000 {
			t.Fatalf("entry=%+v, want zero cost with 1000 tokens", entry)
		}
		if costs.TotalEstimatedUSD != 0 {
			t.Fatalf("total=%v, want 0", costs.TotalEstimatedUSD)
		}
	})

	t.Run("mixed models sum only priced ones", func(t *testing.T) {
		totals := TokenTotals{PromptTokens: 1000, CompletionTokens: 1000, TotalTokens: 2000}
		costs := estimateCosts(totals, map[string]int{
			"gpt-4":        1000,
			"mystery-beta": 1000,
		})

		// Half of 1000 tokens at 0.03/1K plus half at 0.06/1K.
		if got := costs.ByModel["gpt-4"].EstimatedCostUSD; got != 0.045 {
			t.Fatalf("gpt-4 cost=%v, want 0.045", got)
		}
		if costs.TotalEstimatedUSD != 0.045 {
			t.Fatalf("total=%v, want 0.045", costs.TotalEstimatedUSD)
		}
	})

	t.Run("empty session", func(t *testing.T) {
		costs := estimateCosts(TokenTotals{}, map[string]int{})
		if costs.TotalEstimatedUSD != 0 {
			t.Fatalf("total=%v, want 0", costs.TotalEstimatedUSD)
		}
		if costs.ByModel == nil {
			t.Fatal("by_model must be non-nil for JSON encoding")
		}
		if costs.PricingNote == "" {
			t.Fatal("pricing note missing")
		}
	})
}

func TestPriceOverrides(t *testing.T) {
	t.Run("overrides price any model", func(t *testing.T) {
		t.Setenv("OPENAI_PROMPT_COST_PER_1K", "0.002")
		t.Setenv("OPENAI_COMPLETION_COST_PER_1K", "0.004")

		totals := TokenTotals{PromptTokens: 500, CompletionTokens: 500, TotalTokens: 1000}
		costs := estimateCosts(totals, map[string]int{"some-local-model": 1000})

		// Half of 1000 tokens at 0.002/1K plus half at 0.004/1K.
		if got := costs.ByModel["some-local-model"].EstimatedCostUSD; got != 0.003 {
			t.Fatalf("override cost=%v, want 0.003", got)
		}
	})

	t.Run("single variable is ignored", func(t *testing.T) {
		t.Setenv("OPENAI_PROMPT_COST_PER_1K", "0.002")

		totals := TokenTotals{PromptTokens: 500, CompletionTokens: 500, TotalTokens: 1000}
		costs := estimateCosts(totals, map[string]int{"some-local-model": 1000})
		if got := costs.TotalEstimatedUSD; got != 0 {
			t.Fatalf("total=%v, want 0 without a full override pair", got)
		}
	})

	t.Run("unparseable overrides fall back to the table", func(t *testing.T) {
		t.Setenv("OPENAI_PROMPT_COST_PER_1K", "cheap")
		t.Setenv("OPENAI_COMPLETION_COST_PER_1K", "free")

		totals := TokenTotals{PromptTokens: 600, CompletionTokens: 400, TotalTokens: 1000}
		costs := estimateCosts(totals, map[string]int{"gpt-4o": 1000})
		if got := costs.ByModel["gpt-4o"].EstimatedCostUSD; got != 0.009 {
			t.Fatalf("gpt-4o cost=%v, want table rate 0.009", got)
		}
	})
}
