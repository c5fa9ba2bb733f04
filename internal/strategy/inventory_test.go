package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nautilus-go/core/internal/cache"
	"github.com/nautilus-go/core/pkg/model"
)

func TestInventoryIsFlatWithNoPosition(t *testing.T) {
	t.Parallel()
	c := cache.New(model.OmsNetting)
	instID, err := model.NewInstrumentId("BTCUSDT", "SIM")
	require.NoError(t, err)
	strategyID, err := model.NewStrategyId("strat-1")
	require.NoError(t, err)

	inv := NewInventory(c, strategyID, instID, decimal.NewFromInt(10))
	assert.True(t, inv.IsFlat())
	assert.Equal(t, 0.0, inv.NetDelta())
	assert.True(t, inv.TotalExposure(decimal.NewFromInt(100)).IsZero())
	assert.Equal(t, model.Money{}, inv.RealizedPnl())
}

func openPosition(t *testing.T, c *cache.Cache, instID model.InstrumentId, strategyID model.StrategyId, side model.Side, qtyVal string) {
	t.Helper()
	qty, err := model.NewQuantity(decimal.RequireFromString(qtyVal), 4)
	require.NoError(t, err)
	price := model.NewPrice(decimal.NewFromInt(100), 2)
	fill := model.Fill{
		InstrumentId: instID,
		Side:         side,
		Quantity:     qty,
		Price:        price,
		Commission:   model.NewMoney(decimal.Zero, model.USDT),
		TsEvent:      1,
	}
	posID, err := model.NewPositionId("P-1")
	require.NoError(t, err)
	_, err = c.Positions().Open(posID, instID, strategyID, fill, 2, model.USDT)
	require.NoError(t, err)
}

func TestInventoryNetDeltaSaturatesAtMaxPosition(t *testing.T) {
	t.Parallel()
	c := cache.New(model.OmsNetting)
	instID, err := model.NewInstrumentId("BTCUSDT", "SIM")
	require.NoError(t, err)
	strategyID, err := model.NewStrategyId("strat-1")
	require.NoError(t, err)

	openPosition(t, c, instID, strategyID, model.SideBuy, "20")

	inv := NewInventory(c, strategyID, instID, decimal.NewFromInt(10))
	// a 20-unit long against a 10-unit max saturates NetDelta to 1, not 2
	assert.Equal(t, 1.0, inv.NetDelta())
	assert.False(t, inv.IsFlat())

	exposure := inv.TotalExposure(decimal.NewFromInt(100))
	assert.True(t, exposure.Equal(decimal.NewFromInt(2000)), "got %s", exposure)
}

func TestInventoryNetDeltaNegativeWhenShort(t *testing.T) {
	t.Parallel()
	c := cache.New(model.OmsNetting)
	instID, err := model.NewInstrumentId("BTCUSDT", "SIM")
	require.NoError(t, err)
	strategyID, err := model.NewStrategyId("strat-1")
	require.NoError(t, err)

	openPosition(t, c, instID, strategyID, model.SideSell, "5")

	inv := NewInventory(c, strategyID, instID, decimal.NewFromInt(10))
	assert.Equal(t, -0.5, inv.NetDelta())

	// TotalExposure reports absolute notional, not signed by side
	exposure := inv.TotalExposure(decimal.NewFromInt(100))
	assert.True(t, exposure.Equal(decimal.NewFromInt(500)), "got %s", exposure)
}

func TestInventoryOtherStrategyOrInstrumentDoesNotLeak(t *testing.T) {
	t.Parallel()
	c := cache.New(model.OmsNetting)
	instID, err := model.NewInstrumentId("BTCUSDT", "SIM")
	require.NoError(t, err)
	otherInstID, err := model.NewInstrumentId("ETHUSDT", "SIM")
	require.NoError(t, err)
	strategyID, err := model.NewStrategyId("strat-1")
	require.NoError(t, err)

	openPosition(t, c, instID, strategyID, model.SideBuy, "3")

	inv := NewInventory(c, strategyID, otherInstID, decimal.NewFromInt(10))
	assert.True(t, inv.IsFlat())
	assert.Equal(t, 0.0, inv.NetDelta())
}
