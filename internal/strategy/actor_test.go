package strategy

import (
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nautilus-go/core/internal/cache"
	"github.com/nautilus-go/core/internal/clock"
	"github.com/nautilus-go/core/internal/execution"
	"github.com/nautilus-go/core/internal/msgbus"
	"github.com/nautilus-go/core/internal/risk"
	"github.com/nautilus-go/core/pkg/model"
)

func testActorHarness(t *testing.T) (*Actor, *cache.Cache, model.Instrument) {
	t.Helper()
	instID, err := model.NewInstrumentId("BTCUSDT", "SIM")
	require.NoError(t, err)
	minQty, err := model.NewQuantity(decimal.NewFromFloat(0.001), 4)
	require.NoError(t, err)
	maxQty, err := model.NewQuantity(decimal.NewFromInt(1000), 4)
	require.NoError(t, err)
	inst := model.Spot{Base: model.Base{
		InstrumentID:    instID,
		PricePrecisionV: 2,
		SizePrecisionV:  4,
		TickSizeV:       decimal.NewFromFloat(0.01),
		MultiplierV:     decimal.NewFromInt(1),
		MinQuantityV:    minQty,
		MaxQuantityV:    maxQty,
		MinNotionalV:    model.NewMoney(decimal.NewFromInt(1), model.USDT),
		MaxNotionalV:    model.NewMoney(decimal.NewFromInt(1000000), model.USDT),
		SettlementCcy:   model.USDT,
	}}

	c := cache.New(model.OmsNetting)
	c.AddInstrument(inst)
	clk := clock.NewTestClock()
	bus := msgbus.New(slog.Default())
	riskEngine := risk.NewEngine(c, clk, risk.RateLimitConfig{}, 0, nil)
	execEngine := execution.NewEngine(c, "T1", bus.Publish, nil)

	traderID, err := model.NewTraderId("TRADER-1")
	require.NoError(t, err)
	strategyID, err := model.NewStrategyId("strat-1")
	require.NoError(t, err)

	actor := NewActor(traderID, strategyID, clk, bus, c, riskEngine, execEngine, nil)
	return actor, c, inst
}

func TestActorLifecycleTransitions(t *testing.T) {
	t.Parallel()
	actor, _, _ := testActorHarness(t)

	assert.Equal(t, StateReady, actor.State())
	require.NoError(t, actor.Start())
	assert.Equal(t, StateRunning, actor.State())
	require.NoError(t, actor.Start()) // idempotent

	actor.Stop()
	assert.Equal(t, StateStopped, actor.State())
	assert.ErrorIs(t, actor.Start(), ErrActorStopped)
}

func TestActorStopUnsubscribesTrackedPatterns(t *testing.T) {
	t.Parallel()
	actor, _, _ := testActorHarness(t)

	var received int
	require.NoError(t, actor.Subscribe("events.foo", func(string, any) { received++ }))
	actor.Publish("events.foo", 1)
	assert.Equal(t, 1, received)

	actor.Stop()
	actor.Publish("events.foo", 2)
	assert.Equal(t, 1, received, "stopped actor must not still be subscribed")
}

func TestActorSubmitOrderRoutesDeniedOrdersAwayFromExecution(t *testing.T) {
	t.Parallel()
	actor, _, inst := testActorHarness(t)

	var denied model.OrderDenied
	var sawDenial bool
	require.NoError(t, actor.Subscribe("events.order.denied", func(_ string, data any) {
		ev, ok := data.(model.OrderDenied)
		if ok {
			denied = ev
			sawDenial = true
		}
	}))

	tooSmall, err := model.NewQuantity(decimal.NewFromFloat(0.0001), 4)
	require.NoError(t, err)
	order := &model.Order{
		InstrumentId: inst.ID(),
		Side:         model.SideBuy,
		Type:         model.OrderTypeMarket,
		Quantity:     tooSmall,
		Status:       model.OrderStatusInitialized,
	}

	accID, err := model.NewAccountId("SIM")
	require.NoError(t, err)
	err = actor.SubmitOrder(order, accID, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrRiskDenied)
	require.True(t, sawDenial)
	assert.Equal(t, model.DeniedQuantityOutOfRange, denied.Reason)
}

func TestActorSubmitOrderAcceptedRoutesToExecution(t *testing.T) {
	t.Parallel()
	actor, c, inst := testActorHarness(t)

	qty, err := model.NewQuantity(decimal.NewFromFloat(1), 4)
	require.NoError(t, err)
	order := &model.Order{
		InstrumentId: inst.ID(),
		Side:         model.SideBuy,
		Type:         model.OrderTypeMarket,
		Quantity:     qty,
		Status:       model.OrderStatusInitialized,
	}
	accID, err := model.NewAccountId("SIM")
	require.NoError(t, err)
	err = actor.SubmitOrder(order, accID, 1)
	require.Error(t, err, "no execution client registered for venue SIM")

	got, lookupErr := c.Order(order.ClientOrderId)
	require.NoError(t, lookupErr)
	assert.Equal(t, model.OrderStatusRejected, got.Status)
}
