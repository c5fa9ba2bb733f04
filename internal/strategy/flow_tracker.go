package strategy

import (
	"math"

	"github.com/nautilus-go/core/pkg/model"
)

// ToxicityMetrics contains calculated adverse-selection indicators.
type ToxicityMetrics struct {
	DirectionalImbalance float64 // [0, 1]: % of fills in dominant direction
	FillVelocity         float64 // fills per second of window
	ToxicityScore        float64 // [0, 1]: composite toxicity score
	IsAverse             bool    // true if likely getting adversely selected
}

// FlowTracker tracks recent fills in a rolling window to detect toxic flow:
// fills that consistently land on one side, suggesting an informed
// counterparty is picking off stale quotes right before price moves.
//
// Every method here takes the current time explicitly as nowNs rather than
// reading a wall clock, since a strategy runs on the kernel's single
// event-loop thread under either a LiveClock or a TestClock — a
// toxicity detector that called time.Now() internally would make backtests
// non-reproducible.
type FlowTracker struct {
	windowNs   int64
	cooldownNs int64
	maxSpread  float64
	threshold  float64

	fills []model.Fill

	lastToxicNs int64
	everToxic   bool
}

// NewFlowTracker creates a flow tracker with the given configuration, all
// durations in nanoseconds.
func NewFlowTracker(windowNs, cooldownNs int64, threshold, maxSpreadMultiple float64) *FlowTracker {
	return &FlowTracker{
		windowNs:   windowNs,
		cooldownNs: cooldownNs,
		threshold:  threshold,
		maxSpread:  maxSpreadMultiple,
		fills:      make([]model.Fill, 0, 100),
	}
}

// AddFill records a fill and evicts entries that have aged out of the window.
func (ft *FlowTracker) AddFill(fill model.Fill, nowNs int64) {
	ft.fills = append(ft.fills, fill)
	ft.evictStale(nowNs)
}

func (ft *FlowTracker) evictStale(nowNs int64) {
	cutoff := nowNs - ft.windowNs
	validIdx := len(ft.fills)
	for i, fill := range ft.fills {
		if fill.TsEvent > cutoff {
			validIdx = i
			break
		}
	}
	ft.fills = ft.fills[validIdx:]
}

// CalculateToxicity computes adverse-selection metrics from fills still
// inside the window as of nowNs.
func (ft *FlowTracker) CalculateToxicity(nowNs int64) ToxicityMetrics {
	ft.evictStale(nowNs)
	if len(ft.fills) == 0 {
		return ToxicityMetrics{}
	}

	var buyCount, sellCount int
	for _, fill := range ft.fills {
		if fill.Side == model.SideBuy {
			buyCount++
		} else {
			sellCount++
		}
	}
	total := len(ft.fills)
	dominant := math.Max(float64(buyCount), float64(sellCount))
	directionalImbalance := dominant / float64(total)

	if total < 2 || ft.windowNs <= 0 {
		return ToxicityMetrics{
			DirectionalImbalance: directionalImbalance,
			ToxicityScore:        directionalImbalance * 0.6,
			IsAverse:             directionalImbalance > ft.threshold,
		}
	}

	windowSeconds := float64(ft.windowNs) / 1e9
	fillVelocity := float64(total) / windowSeconds
	velocityFactor := math.Min(fillVelocity/3.0, 1.0)

	toxicityScore := 0.6*directionalImbalance + 0.4*velocityFactor

	return ToxicityMetrics{
		DirectionalImbalance: directionalImbalance,
		FillVelocity:         fillVelocity,
		ToxicityScore:        toxicityScore,
		IsAverse:             toxicityScore > ft.threshold,
	}
}

// GetSpreadMultiplier returns the spread multiplier to apply given the
// current toxicity as of nowNs: 1.0 under normal conditions, scaling up to
// maxSpreadMultiple while toxic or within the post-toxicity cooldown.
func (ft *FlowTracker) GetSpreadMultiplier(nowNs int64) float64 {
	metrics := ft.CalculateToxicity(nowNs)
	if metrics.IsAverse {
		ft.lastToxicNs = nowNs
		ft.everToxic = true
	}

	if !ft.everToxic {
		return 1.0
	}
	inCooldown := nowNs-ft.lastToxicNs < ft.cooldownNs

	if !metrics.IsAverse && !inCooldown {
		return 1.0
	}

	if metrics.ToxicityScore < ft.threshold {
		timeSinceToxicNs := nowNs - ft.lastToxicNs
		progress := math.Min(float64(timeSinceToxicNs)/float64(ft.cooldownNs), 1.0)
		return 1.0 + (ft.maxSpread-1.0)*(1.0-progress)
	}

	normalized := (metrics.ToxicityScore - ft.threshold) / (1.0 - ft.threshold)
	return 1.0 + (ft.maxSpread-1.0)*math.Min(normalized*2.0, 1.0)
}

// GetFillCount returns the number of fills currently inside the window (as
// of the last evictStale call); callers that need it fresh should call
// CalculateToxicity first.
func (ft *FlowTracker) GetFillCount() int { return len(ft.fills) }
