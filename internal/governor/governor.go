// Package governor enforces the OpenAI budget ahead of every inference
// call: a semaphore bounds concurrent requests while two token buckets
// meter tokens per minute and requests per minute.
package governor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Defaults applied when a limit is configured as zero or negative.
const (
	DefaultTPM           = 90000
	DefaultRPM           = 500
	DefaultMaxConcurrent = 3
)

// Backoff bounds while waiting for bucket capacity.
const (
	minWait = 500 * time.Millisecond
	maxWait = 10 * time.Second
)

// Token cost model for vision requests: a low-detail image has a fixed
// cost, prose runs roughly four bytes per token, and the reply gets a
// flat allowance.
const (
	tokensPerImage = 765
	bytesPerToken  = 4
	replyAllowance = 500
)

// EstimateTokens predicts the budget one call will consume, for bucket
// accounting before the real usage is known.
func EstimateTokens(imageCount, promptLen int) int {
	return imageCount*tokensPerImage + promptLen/bytesPerToken + replyAllowance
}

// Status is a point-in-time snapshot of the remaining budget.
type Status struct {
	TPMAvailable   int    `json:"tpm_available"`
	TPMCapacity    int    `json:"tpm_capacity"`
	TPMUtilization string `json:"tpm_utilization"`
	RPMAvailable   int    `json:"rpm_available"`
	RPMCapacity    int    `json:"rpm_capacity"`
	RPMUtilization string `json:"rpm_utilization"`
	SlotsAvailable int    `json:"concurrent_slots_available"`
}

// Governor is safe for concurrent use. Every successful Acquire must be
// paired with a Release.
type Governor struct {
	tpmCapacity float64
	rpmCapacity float64

	mu         sync.Mutex
	tpmTokens  float64
	rpmTokens  float64
	lastRefill time.Time

	slots  chan struct{}
	logger *zap.Logger

	now func() time.Time // swapped in tests
}

// New builds a Governor with the given limits. Non-positive limits fall
// back to the defaults.
func New(tpm, rpm, maxConcurrent int, logger *zap.Logger) *Governor {
	if tpm <= 0 {
		tpm = DefaultTPM
	}
	if rpm <= 0 {
		rpm = DefaultRPM
	}
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	g := &Governor{
		tpmCapacity: float64(tpm),
		rpmCapacity: float64(rpm),
		tpmTokens:   float64(tpm),
		rpmTokens:   float64(rpm),
		lastRefill:  time.Now(),
		slots:       make(chan struct{}, maxConcurrent),
		logger:      logger,
		now:         time.Now,
	}
	g.logger.Info("governor initialized",
		zap.Int("tpm", tpm),
		zap.Int("rpm", rpm),
		zap.Int("max_concurrent", maxConcurrent))
	return g
}

// Acquire blocks until a concurrency slot and bucket capacity are both
// available, then deducts the estimate from both buckets. The slot is
// held until Release; cancellation while waiting returns the slot.
func (g *Governor) Acquire(ctx context.Context, estimatedTokens int, label string) error {
	select {
	case g.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		g.mu.Lock()
		g.refill()
		if g.tpmTokens >= float64(estimatedTokens) && g.rpmTokens >= 1 {
			g.tpmTokens -= float64(estimatedTokens)
			g.rpmTokens--
			remainingTPM, remainingRPM := g.tpmTokens, g.rpmTokens
			g.mu.Unlock()
			g.logger.Debug("budget acquired",
				zap.String("label", label),
				zap.Int("estimated_tokens", estimatedTokens),
				zap.Float64("remaining_tpm", remainingTPM),
				zap.Float64("remaining_rpm", remainingRPM))
			return nil
		}
		wait := g.waitFor(estimatedTokens)
		availableTPM, availableRPM := g.tpmTokens, g.rpmTokens
		g.mu.Unlock()

		g.logger.Warn("budget exhausted, backing off",
			zap.String("label", label),
			zap.Duration("wait", wait),
			zap.Float64("tpm_available", availableTPM),
			zap.Float64("rpm_available", availableRPM))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			<-g.slots
			return ctx.Err()
		}
	}
}

// Release returns the concurrency slot taken by Acquire.
func (g *Governor) Release() {
	<-g.slots
}

// Status refills the buckets and reports the remaining budget.
func (g *Governor) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refill()
	return Status{
		TPMAvailable:   int(g.tpmTokens),
		TPMCapacity:    int(g.tpmCapacity),
		TPMUtilization: utilization(g.tpmTokens, g.tpmCapacity),
		RPMAvailable:   int(g.rpmTokens),
		RPMCapacity:    int(g.rpmCapacity),
		RPMUtilization: utilization(g.rpmTokens, g.rpmCapacity),
		SlotsAvailable: cap(g.slots) - len(g.slots),
	}
}

// refill tops up both buckets in proportion to elapsed time. Callers
// must hold mu.
func (g *Governor) refill() {
	now := g.now()
	elapsed := now.Sub(g.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	g.tpmTokens = math.Min(g.tpmCapacity, g.tpmTokens+(elapsed/60)*g.tpmCapacity)
	g.rpmTokens = math.Min(g.rpmCapacity, g.rpmTokens+(elapsed/60)*g.rpmCapacity)
	g.lastRefill = now
}

// waitFor estimates how long the buckets need to cover the deficit,
// clamped to the backoff bounds. Callers must hold mu.
func (g *Governor) waitFor(needed int) time.Duration {
	var tpmWait, rpmWait float64
	if g.tpmTokens < float64(needed) {
		tpmWait = (float64(needed) - g.tpmTokens) / g.tpmCapacity * 60
	}
	if g.rpmTokens < 1 {
		rpmWait = (1 - g.rpmTokens) / g.rpmCapacity * 60
	}
	wait := time.Duration(math.Max(tpmWait, rpmWait) * float64(time.Second))
	if wait < minWait {
		wait = minWait
	}
	if wait > maxWait {
		wait = maxWait
	}
	return wait
}

func utilization(available, capacity float64) string {
	return fmt.Sprintf("%.1f%%", (1-available/capacity)*100)
}
