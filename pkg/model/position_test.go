package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustQty(t *testing.T, v string) Quantity {
	t.Helper()
	q, err := ParseQuantity(v, 8)
	require.NoError(t, err)
	return q
}

func mustPx(t *testing.T, v string) Price {
	t.Helper()
	p, err := ParsePrice(v, 2)
	require.NoError(t, err)
	return p
}

// TestNettingLongShortCollapse is seed scenario S1: submit buy 0.004
// BTC-PERP then sell 0.008 BTC-PERP under NETTING; the book must collapse
// both fills into a single position that ends SHORT 0.004, realizing P&L
// on the 0.004 leg that closed.
func TestNettingLongShortCollapse(t *testing.T) {
	t.Parallel()

	instID, err := NewInstrumentId("BTC-PERP", "BINANCE")
	require.NoError(t, err)
	strategyID, err := NewStrategyId("S-001")
	require.NoError(t, err)

	book := NewPositionBook(OmsNetting)

	buyFill := Fill{Side: SideBuy, Quantity: mustQty(t, "0.004"), Price: mustPx(t, "100.00")}
	pos, err := book.Open(PositionId{stringID{value: "P-1"}}, instID, strategyID, buyFill, 2, USDT)
	require.NoError(t, err)
	assert.Equal(t, PositionLong, pos.Side)

	sellFill := Fill{Side: SideSell, Quantity: mustQty(t, "0.008"), Price: mustPx(t, "110.00")}
	pos2, err := book.Open(PositionId{stringID{value: "P-2"}}, instID, strategyID, sellFill, 2, USDT)
	require.NoError(t, err)

	// Under NETTING, the second fill folds into the same position.
	assert.Same(t, pos, pos2)

	open := book.OpenPositions(strategyID, instID)
	require.Len(t, open, 1, "NETTING must keep at most one open position per (strategy, instrument)")
	assert.Equal(t, PositionShort, open[0].Side)
	assert.True(t, open[0].SignedQty.Equal(mustQty(t, "0.004")))

	// realized = (110 - 100) * 0.004 = 0.04
	assert.Equal(t, "0.040000", open[0].RealizedPnl.Decimal.StringFixed(6))
}

// TestHedgingDistinctPositions is seed scenario S2: the same fill sequence
// under HEDGING must retain two distinct positions rather than collapsing.
func TestHedgingDistinctPositions(t *testing.T) {
	t.Parallel()

	instID, err := NewInstrumentId("BTC-PERP", "BINANCE")
	require.NoError(t, err)
	strategyID, err := NewStrategyId("S-001")
	require.NoError(t, err)

	book := NewPositionBook(OmsHedging)

	buyFill := Fill{Side: SideBuy, Quantity: mustQty(t, "0.004"), Price: mustPx(t, "100.00")}
	longPos, err := book.Open(PositionId{stringID{value: "P-LONG"}}, instID, strategyID, buyFill, 2, USDT)
	require.NoError(t, err)

	sellFill := Fill{Side: SideSell, Quantity: mustQty(t, "0.008"), Price: mustPx(t, "110.00")}
	shortPos, err := book.Open(PositionId{stringID{value: "P-SHORT"}}, instID, strategyID, sellFill, 2, USDT)
	require.NoError(t, err)

	assert.NotSame(t, longPos, shortPos, "HEDGING must never collapse fills into one position")

	// The strategy explicitly closes the long leg against the opposite fill.
	longPos.ApplyFill(Fill{Side: SideSell, Quantity: mustQty(t, "0.004"), Price: mustPx(t, "110.00")}, 2)

	assert.False(t, longPos.IsOpen())
	assert.True(t, shortPos.IsOpen())
	assert.Equal(t, PositionShort, shortPos.Side)
	assert.True(t, shortPos.SignedQty.Equal(mustQty(t, "0.008")))
}

func TestPositionBookGetUnknownReturnsNotFound(t *testing.T) {
	t.Parallel()

	book := NewPositionBook(OmsNetting)
	_, err := book.Get(PositionId{stringID{value: "missing"}})
	assert.ErrorIs(t, err, ErrPositionNotFound)
}
