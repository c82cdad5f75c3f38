package usage

// TokenTotals accumulates prompt and completion tokens across calls.
type TokenTotals struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add folds one call's token counts into the totals.
func (tt *TokenTotals) Add(prompt, completion int) {
	tt.PromptTokens += prompt
	tt.CompletionTokens += completion
	tt.TotalTokens += prompt + completion
}

// RequestStats summarizes call volume.
type RequestStats struct {
	TotalRequests       int     `json:"total_requests"`
	AvgTokensPerRequest float64 `json:"avg_tokens_per_request"`
}

// ModelCost is the estimated spend attributed to one model.
type ModelCost struct {
	Tokens           int     `json:"tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
}

// CostEstimates breaks the estimated spend down by model.
type CostEstimates struct {
	TotalEstimatedUSD float64              `json:"total_estimated_usd"`
	ByModel           map[string]ModelCost `json:"by_model"`
	PricingNote       string               `json:"pricing_note"`
}

// SessionStats covers the lifetime of one tracker.
type SessionStats struct {
	DurationSeconds float64 `json:"duration_seconds"`
	StartTime       string  `json:"start_time"`
	TokensPerSecond float64 `json:"tokens_per_second"`
}

// Summary is the cost_info payload attached to every response envelope.
type Summary struct {
	Tokens   TokenTotals    `json:"tokens"`
	Requests RequestStats   `json:"requests"`
	Models   map[string]int `json:"models"`
	Agents   map[string]int `json:"agents"`
	Costs    CostEstimates  `json:"costs"`
	Session  SessionStats   `json:"session"`
}

// Execution is one raw agent call captured for debugging, with the
// exact input sent and output received.
type Execution struct {
	AgentName  string         `json:"agent_name"`
	InputData  map[string]any `json:"input_data"`
	OutputData map[string]any `json:"output_data"`
	Timestamp  string         `json:"timestamp"`
	Model      string         `json:"model"`
}
