package dataengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nautilus-go/core/internal/cache"
	"github.com/nautilus-go/core/internal/msgbus"
	"github.com/nautilus-go/core/pkg/model"
)

func testInstrumentId(t *testing.T) model.InstrumentId {
	t.Helper()
	id, err := model.NewInstrumentId("BTCUSDT", "BINANCE")
	require.NoError(t, err)
	return id
}

func newEngine(t *testing.T, backtest bool) *Engine {
	t.Helper()
	c := cache.New(model.OmsNetting)
	bus := msgbus.New(nil)
	return New(c, bus, backtest, nil)
}

func TestIngestQuoteUpdatesCacheAndPublishes(t *testing.T) {
	t.Parallel()

	e := newEngine(t, false)
	id := testInstrumentId(t)
	var received model.QuoteTick
	require.NoError(t, e.bus.Subscribe("data.quotes.*", "sub-1", func(topic string, data any) {
		received = data.(model.QuoteTick)
	}))

	e.IngestQuote("data.quotes.BTCUSDT", model.QuoteTick{InstrumentId: id, TsEvent: 1, TsInit: 1})

	assert.Equal(t, int64(1), received.TsInit)
	cached, ok := e.cache.Quote(id)
	require.True(t, ok)
	assert.Equal(t, int64(1), cached.TsInit)
}

func TestIngestDropsRegressionInLiveMode(t *testing.T) {
	t.Parallel()

	e := newEngine(t, false)
	id := testInstrumentId(t)
	deliveries := 0
	require.NoError(t, e.bus.Subscribe("data.quotes.*", "sub-1", func(topic string, data any) {
		deliveries++
	}))

	e.IngestQuote("data.quotes.BTCUSDT", model.QuoteTick{InstrumentId: id, TsInit: 100})
	e.IngestQuote("data.quotes.BTCUSDT", model.QuoteTick{InstrumentId: id, TsInit: 50}) // regression
	e.IngestQuote("data.quotes.BTCUSDT", model.QuoteTick{InstrumentId: id, TsInit: 100}) // equal, also a regression

	assert.Equal(t, 1, deliveries, "only the first, non-regressing quote should be delivered")
}

func TestIngestPanicsOnRegressionInBacktestMode(t *testing.T) {
	t.Parallel()

	e := newEngine(t, true)
	id := testInstrumentId(t)

	e.IngestQuote("data.quotes.BTCUSDT", model.QuoteTick{InstrumentId: id, TsInit: 100})
	assert.Panics(t, func() {
		e.IngestQuote("data.quotes.BTCUSDT", model.QuoteTick{InstrumentId: id, TsInit: 99})
	})
}

func TestIngestBookDeltaMaintainsCacheBook(t *testing.T) {
	t.Parallel()

	e := newEngine(t, false)
	id := testInstrumentId(t)
	px, err := model.ParsePrice("100.00", 2)
	require.NoError(t, err)
	qty, err := model.ParseQuantity("1", 4)
	require.NoError(t, err)

	e.IngestBookDelta("data.book.BTCUSDT", model.OrderBookDelta{
		InstrumentId: id, Action: model.DeltaAdd, Side: model.BookSideBid, Price: px, Size: qty, TsInit: 1,
	})

	bidPx, _, ok := e.cache.Book(id).BestBid()
	require.True(t, ok)
	assert.True(t, bidPx.Equal(px))
}

func TestIngestBookDeltasAppliesClearBeforeAdds(t *testing.T) {
	t.Parallel()

	e := newEngine(t, false)
	id := testInstrumentId(t)
	stalePx, _ := model.ParsePrice("1.00", 2)
	staleQty, _ := model.ParseQuantity("1", 4)
	e.cache.Book(id).Apply(model.OrderBookDelta{InstrumentId: id, Action: model.DeltaAdd, Side: model.BookSideBid, Price: stalePx, Size: staleQty})

	depth := model.OrderBookDepth10{InstrumentId: id, TsEvent: 5, TsInit: 5}
	freshPx, _ := model.ParsePrice("100.00", 2)
	depth.Bids[0] = model.DepthLevel{Price: freshPx, Size: staleQty}

	e.IngestBookDeltas("data.book.BTCUSDT", depth.ToDeltas())

	bidPx, _, ok := e.cache.Book(id).BestBid()
	require.True(t, ok)
	assert.True(t, bidPx.Equal(freshPx), "the stale level must not survive the Clear")
}

func TestRegisterClientAndSubscribeWiresLiveFeed(t *testing.T) {
	t.Parallel()

	e := newEngine(t, false)
	fc := &fakeDataClient{}
	e.RegisterClient("BINANCE", fc)

	require.NoError(t, e.Subscribe("data.quotes.BTCUSDT", "sub-1", "BINANCE", func(topic string, data any) {}))
	assert.Equal(t, []string{"data.quotes.BTCUSDT"}, fc.subscribed)
}
