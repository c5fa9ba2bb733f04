package kernel

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nautilus-go/core/internal/clock"
	"github.com/nautilus-go/core/internal/risk"
	"github.com/nautilus-go/core/internal/strategy"
	"github.com/nautilus-go/core/pkg/model"
)

func testInstrument(t *testing.T) model.Spot {
	t.Helper()
	instID, err := model.NewInstrumentId("BTCUSDT", "SIM")
	require.NoError(t, err)
	minQty, err := model.NewQuantity(decimal.NewFromFloat(0.001), 4)
	require.NoError(t, err)
	maxQty, err := model.NewQuantity(decimal.NewFromInt(1000), 4)
	require.NoError(t, err)
	return model.Spot{Base: model.Base{
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
}

func TestNewWiresPortfolioToFillEvents(t *testing.T) {
	t.Parallel()
	traderID, err := model.NewTraderId("TRADER-1")
	require.NoError(t, err)

	k := New(traderID, clock.NewTestClock(), model.OmsNetting, risk.RateLimitConfig{}, 0, true, nil)
	assert.NotNil(t, k.Cache())
	assert.NotNil(t, k.Bus())
	assert.NotNil(t, k.DataEngine())
	assert.NotNil(t, k.RiskEngine())
	assert.NotNil(t, k.ExecutionEngine())
	assert.NotNil(t, k.Portfolio())
}

func TestRunRejectsNonLiveClock(t *testing.T) {
	t.Parallel()
	traderID, err := model.NewTraderId("TRADER-1")
	require.NoError(t, err)
	k := New(traderID, clock.NewTestClock(), model.OmsNetting, risk.RateLimitConfig{}, 0, true, nil)

	err = k.Run(context.Background())
	assert.Error(t, err)
}

func TestAdvanceWarnsAndNoOpsWithoutTestClock(t *testing.T) {
	t.Parallel()
	lc := clock.NewLiveClock()
	defer lc.Close()
	traderID, err := model.NewTraderId("TRADER-1")
	require.NoError(t, err)
	k := New(traderID, lc, model.OmsNetting, risk.RateLimitConfig{}, 0, false, nil)

	events := k.Advance(1000)
	assert.Nil(t, events)
}

func TestRegisterBacktestVenueFeedsMatchingEngineFromIngestedQuotes(t *testing.T) {
	t.Parallel()
	traderID, err := model.NewTraderId("TRADER-1")
	require.NoError(t, err)
	k := New(traderID, clock.NewTestClock(), model.OmsNetting, risk.RateLimitConfig{}, 0, true, nil)

	inst := testInstrument(t)
	k.Cache().AddInstrument(inst)

	_, err = k.RegisterBacktestVenue("SIM", nil)
	require.NoError(t, err)

	strategyID, err := model.NewStrategyId("strat-1")
	require.NoError(t, err)
	accID, err := model.NewAccountId("SIM")
	require.NoError(t, err)

	qty, err := model.NewQuantity(decimal.NewFromInt(1), 4)
	require.NoError(t, err)
	order := &model.Order{
		InstrumentId: inst.ID(),
		StrategyId:   strategyID,
		Side:         model.SideBuy,
		Type:         model.OrderTypeMarket,
		Quantity:     qty,
		Status:       model.OrderStatusInitialized,
	}
	require.NoError(t, k.ExecutionEngine().SubmitOrder(order, 1))

	bidPx, err := model.ParsePrice("99.00", inst.PricePrecision())
	require.NoError(t, err)
	askPx, err := model.ParsePrice("101.00", inst.PricePrecision())
	require.NoError(t, err)
	k.DataEngine().IngestQuote("data.quotes.BTCUSDT", model.QuoteTick{
		InstrumentId: inst.ID(),
		BidPrice:     bidPx,
		AskPrice:     askPx,
		BidSize:      qty,
		AskSize:      qty,
		TsEvent:      2,
		TsInit:       2,
	})

	got, err := k.Cache().Order(order.ClientOrderId)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusFilled, got.Status, "a market buy should fill against the simulated venue's best ask once a quote arrives")

	acct, err := k.Cache().Account(accID)
	require.NoError(t, err)
	assert.True(t, acct.Balance(model.USDT).Free.IsNegative(), "the portfolio should have debited the cash account for the fill")
}

func testMakerConfig() strategy.MakerConfig {
	return strategy.MakerConfig{
		RefreshIntervalNs: int64(1_000_000_000),
		Gamma:             0.1,
		Sigma:             0.02,
		K:                 1.5,
		T:                 1.0,
		DefaultSpreadBps:  10,
		OrderNotional:     decimal.NewFromInt(1000),
		MaxPosition:       decimal.NewFromInt(10),
		FlowWindowNs:      int64(60_000_000_000),
		FlowCooldownNs:    int64(30_000_000_000),
	}
}

func TestStartReconcilesThenStartsStrategiesInOrder(t *testing.T) {
	t.Parallel()
	traderID, err := model.NewTraderId("TRADER-1")
	require.NoError(t, err)
	k := New(traderID, clock.NewTestClock(), model.OmsNetting, risk.RateLimitConfig{}, 0, true, nil)

	inst := testInstrument(t)
	k.Cache().AddInstrument(inst)
	_, err = k.RegisterBacktestVenue("SIM", nil)
	require.NoError(t, err)

	strategyID, err := model.NewStrategyId("strat-1")
	require.NoError(t, err)
	accID, err := model.NewAccountId("SIM")
	require.NoError(t, err)
	actor := strategy.NewActor(traderID, strategyID, k.Clock(), k.Bus(), k.Cache(), k.RiskEngine(), k.ExecutionEngine(), k.Logger())
	mm := strategy.NewMarketMaker(actor, testMakerConfig(), inst, accID)
	k.AddStrategy(mm)

	require.NoError(t, k.Start())
	assert.Equal(t, strategy.StateRunning, mm.State())

	k.Stop()
	assert.Equal(t, strategy.StateStopped, mm.State())
}

func TestStartPropagatesStrategyStartError(t *testing.T) {
	t.Parallel()
	traderID, err := model.NewTraderId("TRADER-1")
	require.NoError(t, err)
	k := New(traderID, clock.NewTestClock(), model.OmsNetting, risk.RateLimitConfig{}, 0, true, nil)

	inst := testInstrument(t)
	k.Cache().AddInstrument(inst)

	strategyID, err := model.NewStrategyId("strat-1")
	require.NoError(t, err)
	accID, err := model.NewAccountId("SIM")
	require.NoError(t, err)
	actor := strategy.NewActor(traderID, strategyID, k.Clock(), k.Bus(), k.Cache(), k.RiskEngine(), k.ExecutionEngine(), k.Logger())
	actor.Stop() // already-stopped actors refuse Start
	mm := strategy.NewMarketMaker(actor, testMakerConfig(), inst, accID)

	k.AddStrategy(mm)
	assert.Error(t, k.Start())
}
