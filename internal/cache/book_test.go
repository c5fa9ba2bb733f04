package cache

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nautilus-go/core/pkg/model"
)

func mustPrice(t *testing.T, s string) model.Price {
	t.Helper()
	p, err := model.ParsePrice(s, 2)
	require.NoError(t, err)
	return p
}

func mustQty(t *testing.T, s string) model.Quantity {
	t.Helper()
	q, err := model.ParseQuantity(s, 4)
	require.NoError(t, err)
	return q
}

func TestBookApplyAddsAndBestLevels(t *testing.T) {
	t.Parallel()

	id := mustInstrumentId(t, "BTCUSDT", "BINANCE")
	b := NewBook(id)

	b.Apply(model.OrderBookDelta{InstrumentId: id, Action: model.DeltaAdd, Side: model.BookSideBid, Price: mustPrice(t, "100.00"), Size: mustQty(t, "1"), TsEvent: 1})
	b.Apply(model.OrderBookDelta{InstrumentId: id, Action: model.DeltaAdd, Side: model.BookSideBid, Price: mustPrice(t, "99.00"), Size: mustQty(t, "2"), TsEvent: 2})
	b.Apply(model.OrderBookDelta{InstrumentId: id, Action: model.DeltaAdd, Side: model.BookSideAsk, Price: mustPrice(t, "101.00"), Size: mustQty(t, "3"), TsEvent: 3})
	b.Apply(model.OrderBookDelta{InstrumentId: id, Action: model.DeltaAdd, Side: model.BookSideAsk, Price: mustPrice(t, "102.00"), Size: mustQty(t, "1"), TsEvent: 4})

	bidPx, bidSz, ok := b.BestBid()
	require.True(t, ok)
	assert.True(t, bidPx.Equal(mustPrice(t, "100.00")))
	assert.True(t, bidSz.Equal(mustQty(t, "1")))

	askPx, askSz, ok := b.BestAsk()
	require.True(t, ok)
	assert.True(t, askPx.Equal(mustPrice(t, "101.00")))
	assert.True(t, askSz.Equal(mustQty(t, "3")))
}

func TestBookClearResetsBothSides(t *testing.T) {
	t.Parallel()

	id := mustInstrumentId(t, "BTCUSDT", "BINANCE")
	b := NewBook(id)
	b.Apply(model.OrderBookDelta{InstrumentId: id, Action: model.DeltaAdd, Side: model.BookSideBid, Price: mustPrice(t, "100.00"), Size: mustQty(t, "1")})
	b.Apply(model.OrderBookDelta{InstrumentId: id, Action: model.DeltaAdd, Side: model.BookSideAsk, Price: mustPrice(t, "101.00"), Size: mustQty(t, "1")})

	b.Apply(model.OrderBookDelta{InstrumentId: id, Action: model.DeltaClear})

	_, _, bidOk := b.BestBid()
	_, _, askOk := b.BestAsk()
	assert.False(t, bidOk)
	assert.False(t, askOk)
}

func TestBookDeleteRemovesLevel(t *testing.T) {
	t.Parallel()

	id := mustInstrumentId(t, "BTCUSDT", "BINANCE")
	b := NewBook(id)
	px := mustPrice(t, "100.00")
	b.Apply(model.OrderBookDelta{InstrumentId: id, Action: model.DeltaAdd, Side: model.BookSideBid, Price: px, Size: mustQty(t, "1")})
	b.Apply(model.OrderBookDelta{InstrumentId: id, Action: model.DeltaDelete, Side: model.BookSideBid, Price: px})

	_, _, ok := b.BestBid()
	assert.False(t, ok)
}

func TestBookUpdateReplacesSize(t *testing.T) {
	t.Parallel()

	id := mustInstrumentId(t, "BTCUSDT", "BINANCE")
	b := NewBook(id)
	px := mustPrice(t, "100.00")
	b.Apply(model.OrderBookDelta{InstrumentId: id, Action: model.DeltaAdd, Side: model.BookSideBid, Price: px, Size: mustQty(t, "1")})
	b.Apply(model.OrderBookDelta{InstrumentId: id, Action: model.DeltaUpdate, Side: model.BookSideBid, Price: px, Size: mustQty(t, "5")})

	_, size, ok := b.BestBid()
	require.True(t, ok)
	assert.True(t, size.Equal(mustQty(t, "5")))
}

func TestBookDepthOrdersBestFirstAndRespectsLimit(t *testing.T) {
	t.Parallel()

	id := mustInstrumentId(t, "BTCUSDT", "BINANCE")
	b := NewBook(id)
	for _, px := range []string{"98.00", "99.00", "100.00"} {
		b.Apply(model.OrderBookDelta{InstrumentId: id, Action: model.DeltaAdd, Side: model.BookSideBid, Price: mustPrice(t, px), Size: mustQty(t, "1")})
	}

	depth := b.Depth(model.BookSideBid, 2)
	require.Len(t, depth, 2)
	assert.True(t, depth[0].Price.Equal(mustPrice(t, "100.00")))
	assert.True(t, depth[1].Price.Equal(mustPrice(t, "99.00")))
}

func TestBookApplyBatchFromDepth10(t *testing.T) {
	t.Parallel()

	id := mustInstrumentId(t, "BTCUSDT", "BINANCE")
	b := NewBook(id)
	b.Apply(model.OrderBookDelta{InstrumentId: id, Action: model.DeltaAdd, Side: model.BookSideBid, Price: mustPrice(t, "50.00"), Size: mustQty(t, "1")})

	depth := model.OrderBookDepth10{InstrumentId: id, TsEvent: 10, TsInit: 10}
	depth.Bids[0] = model.DepthLevel{Price: mustPrice(t, "100.00"), Size: mustQty(t, "1")}
	depth.Asks[0] = model.DepthLevel{Price: mustPrice(t, "101.00"), Size: mustQty(t, "1")}

	b.ApplyBatch(depth.ToDeltas())

	bidPx, _, ok := b.BestBid()
	require.True(t, ok)
	assert.True(t, bidPx.Equal(mustPrice(t, "100.00")), "the stale 50.00 level from before the Clear must not survive")

	askPx, _, ok := b.BestAsk()
	require.True(t, ok)
	assert.True(t, askPx.Equal(mustPrice(t, "101.00")))
}

func TestMinMaxDecimalSanity(t *testing.T) {
	t.Parallel()
	// Sanity check that decimal comparisons behave as expected for the
	// book's price-ordering logic, independent of any cache machinery.
	a := decimal.RequireFromString("1.00")
	b := decimal.RequireFromString("1.0")
	assert.True(t, a.Equal(b))
}
