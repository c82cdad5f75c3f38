// Package usage tracks token consumption, cost estimates, and raw
// agent executions for one scan request. A fresh Tracker is created
// per request and shared by every inference call it spawns.
package usage

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Tracker accumulates usage across concurrent pipeline stages. Safe
// for concurrent use.
type Tracker struct {
	mu         sync.Mutex
	totals     TokenTotals
	requests   int
	modelUsage map[string]int
	agentUsage map[string]int
	executions []Execution

	startTime time.Time
	logger    *zap.Logger

	now func() time.Time // swapped in tests
}

// NewTracker starts a tracking session.
func NewTracker(logger *zap.Logger) *Tracker {
	return &Tracker{
		modelUsage: make(map[string]int),
		agentUsage: make(map[string]int),
		startTime:  time.Now().UTC(),
		logger:     logger,
		now:        time.Now,
	}
}

// RecordUsage folds one call's token counts into the session. The
// agent attribution is skipped when agent is empty.
func (t *Tracker) RecordUsage(prompt, completion int, model, agent string) {
	t.mu.Lock()
	t.totals.Add(prompt, completion)
	t.requests++
	t.modelUsage[model] += prompt + completion
	if agent != "" {
		t.agentUsage[agent] += prompt + completion
	}
	runningTotal := t.totals.TotalTokens
	t.mu.Unlock()

	t.logger.Info("token usage recorded",
		zap.String("agent", agent),
		zap.String("model", model),
		zap.Int("prompt_tokens", prompt),
		zap.Int("completion_tokens", completion),
		zap.Int("running_total", runningTotal))
}

// RecordExecution captures the raw input and output of one agent call.
func (t *Tracker) RecordExecution(agentName string, input, output map[string]any, model string) {
	t.mu.Lock()
	t.executions = append(t.executions, Execution{
		AgentName:  agentName,
		InputData:  input,
		OutputData: output,
		Timestamp:  t.now().UTC().Format(time.RFC3339),
		Model:      model,
	})
	t.mu.Unlock()

	t.logger.Debug("agent execution recorded",
		zap.String("agent", agentName),
		zap.String("model", model))
}

// TotalTokens returns the running token total.
func (t *Tracker) TotalTokens() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totals.TotalTokens
}

// ExecutionCount returns the number of recorded agent calls.
func (t *Tracker) ExecutionCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.executions)
}

// Executions returns a copy of the recorded agent calls in order.
func (t *Tracker) Executions() []Execution {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Execution, len(t.executions))
	copy(out, t.executions)
	return out
}

// Summary snapshots the session for the response envelope.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	duration := t.now().Sub(t.startTime).Seconds()
	requests := t.requests
	if requests < 1 {
		requests = 1
	}
	durationDivisor := duration
	if durationDivisor < 1 {
		durationDivisor = 1
	}

	return Summary{
		Tokens: t.totals,
		Requests: RequestStats{
			TotalRequests:       t.requests,
			AvgTokensPerRequest: float64(t.totals.TotalTokens) / float64(requests),
		},
		Models:  copyCounts(t.modelUsage),
		Agents:  copyCounts(t.agentUsage),
		Costs:   estimateCosts(t.totals, t.modelUsage),
		Session: SessionStats{
			DurationSeconds: round2(duration),
			StartTime:       t.startTime.Format(time.RFC3339),
			TokensPerSecond: round2(float64(t.totals.TotalTokens) / durationDivisor),
		},
	}
}

func copyCounts(src map[string]int) map[string]int {
	dst := make(map[string]int, len(src))
	for key, count := range src {
		dst[key] = count
	}
	return dst
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
