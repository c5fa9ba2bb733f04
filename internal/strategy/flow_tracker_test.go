package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nautilus-go/core/pkg/model"
)

const nsPerSec = int64(1e9)

func TestFlowTrackerEvictsFillsOutsideWindow(t *testing.T) {
	t.Parallel()
	ft := NewFlowTracker(10*nsPerSec, 5*nsPerSec, 0.6, 3.0)

	ft.AddFill(model.Fill{Side: model.SideBuy, TsEvent: 0}, 0)
	ft.AddFill(model.Fill{Side: model.SideBuy, TsEvent: 5 * nsPerSec}, 5*nsPerSec)
	assert.Equal(t, 2, ft.GetFillCount())

	ft.AddFill(model.Fill{Side: model.SideBuy, TsEvent: 20 * nsPerSec}, 20*nsPerSec)
	assert.Equal(t, 1, ft.GetFillCount(), "fills at t=0 and t=5s should have aged out of a 10s window by t=20s")
}

func TestFlowTrackerDetectsOneSidedFlowAsToxic(t *testing.T) {
	t.Parallel()
	ft := NewFlowTracker(60*nsPerSec, 30*nsPerSec, 0.6, 3.0)

	for i := int64(0); i < 6; i++ {
		ft.AddFill(model.Fill{Side: model.SideSell, TsEvent: i * nsPerSec}, i*nsPerSec)
	}

	metrics := ft.CalculateToxicity(6 * nsPerSec)
	assert.Equal(t, 1.0, metrics.DirectionalImbalance)
	assert.True(t, metrics.IsAverse)
}

func TestFlowTrackerBalancedFlowIsNotToxic(t *testing.T) {
	t.Parallel()
	ft := NewFlowTracker(60*nsPerSec, 30*nsPerSec, 0.6, 3.0)

	sides := []model.Side{model.SideBuy, model.SideSell, model.SideBuy, model.SideSell}
	for i, side := range sides {
		ft.AddFill(model.Fill{Side: side, TsEvent: int64(i) * nsPerSec}, int64(i)*nsPerSec)
	}

	metrics := ft.CalculateToxicity(int64(len(sides)) * nsPerSec)
	assert.False(t, metrics.IsAverse)
	assert.Equal(t, 1.0, ft.GetSpreadMultiplier(int64(len(sides))*nsPerSec))
}

func TestFlowTrackerSpreadMultiplierWidensThenDecaysThroughCooldown(t *testing.T) {
	t.Parallel()
	ft := NewFlowTracker(60*nsPerSec, 10*nsPerSec, 0.6, 3.0)

	for i := int64(0); i < 6; i++ {
		ft.AddFill(model.Fill{Side: model.SideSell, TsEvent: i * nsPerSec}, i*nsPerSec)
	}
	toxicMultiplier := ft.GetSpreadMultiplier(6 * nsPerSec)
	assert.Greater(t, toxicMultiplier, 1.0)

	// well past the cooldown window with no further fills: every fill has
	// also aged out of the 60s window, so toxicity itself has gone quiet
	assert.Equal(t, 1.0, ft.GetSpreadMultiplier(6*nsPerSec+100*nsPerSec))
}
