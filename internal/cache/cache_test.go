package cache

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nautilus-go/core/pkg/model"
)

func mustInstrumentId(t *testing.T, symbol, venue string) model.InstrumentId {
	t.Helper()
	id, err := model.NewInstrumentId(symbol, venue)
	require.NoError(t, err)
	return id
}

func testSpot(t *testing.T) model.Spot {
	t.Helper()
	instID := mustInstrumentId(t, "BTCUSDT", "BINANCE")
	minQty, _ := model.NewQuantity(decimal.NewFromFloat(0.0001), 8)
	maxQty, _ := model.NewQuantity(decimal.NewFromFloat(1000), 8)

	return model.Spot{Base: model.Base{
		InstrumentID:    instID,
		PricePrecisionV: 2,
		SizePrecisionV:  8,
		TickSizeV:       decimal.NewFromFloat(0.01),
		MultiplierV:     decimal.NewFromInt(1),
		MinQuantityV:    minQty,
		MaxQuantityV:    maxQty,
		MinNotionalV:    model.NewMoney(decimal.NewFromInt(10), model.USDT),
		MaxNotionalV:    model.NewMoney(decimal.NewFromInt(1000000), model.USDT),
		SettlementCcy:   model.USDT,
	}}
}

func TestCacheInstrumentRoundTrip(t *testing.T) {
	t.Parallel()

	c := New(model.OmsNetting)
	spot := testSpot(t)
	c.AddInstrument(spot)

	got, err := c.Instrument(spot.ID())
	require.NoError(t, err)
	assert.Equal(t, spot.ID(), got.ID())
}

func TestCacheInstrumentNotFound(t *testing.T) {
	t.Parallel()

	c := New(model.OmsNetting)
	_, err := c.Instrument(mustInstrumentId(t, "ETHUSDT", "BINANCE"))
	assert.ErrorIs(t, err, model.ErrInstrumentNotFound)
}

func TestCacheOrderRoundTripAndDuplicateRejected(t *testing.T) {
	t.Parallel()

	c := New(model.OmsNetting)
	coi, err := model.NewClientOrderId("O-1")
	require.NoError(t, err)

	order := &model.Order{ClientOrderId: coi, InstrumentId: testSpot(t).ID()}
	require.NoError(t, c.AddOrder(order))

	got, err := c.Order(coi)
	require.NoError(t, err)
	assert.Same(t, order, got)

	err = c.AddOrder(&model.Order{ClientOrderId: coi})
	assert.ErrorIs(t, err, model.ErrDuplicateClientOrderId)
}

func TestCacheOrderNotFound(t *testing.T) {
	t.Parallel()

	c := New(model.OmsNetting)
	coi, err := model.NewClientOrderId("O-missing")
	require.NoError(t, err)

	_, err = c.Order(coi)
	assert.ErrorIs(t, err, model.ErrOrderNotFound)
}

func TestCacheVenueOrderIdLink(t *testing.T) {
	t.Parallel()

	c := New(model.OmsNetting)
	coi, _ := model.NewClientOrderId("O-1")
	voi, _ := model.NewVenueOrderId("V-1")
	order := &model.Order{ClientOrderId: coi}
	require.NoError(t, c.AddOrder(order))

	c.LinkVenueOrderId(voi, coi)
	got, err := c.OrderByVenueId(voi)
	require.NoError(t, err)
	assert.Same(t, order, got)

	unknown, _ := model.NewVenueOrderId("V-unknown")
	_, err = c.OrderByVenueId(unknown)
	assert.ErrorIs(t, err, model.ErrOrderNotFound)
}

func TestCacheAccountRoundTrip(t *testing.T) {
	t.Parallel()

	c := New(model.OmsNetting)
	acctID, err := model.NewAccountId("ACC-1")
	require.NoError(t, err)

	acct := model.NewAccount(acctID, model.AccountTypeCash, model.USDT)
	c.AddAccount(acct)

	got, err := c.Account(acctID)
	require.NoError(t, err)
	assert.Same(t, acct, got)

	unknown, _ := model.NewAccountId("ACC-unknown")
	_, err = c.Account(unknown)
	assert.ErrorIs(t, err, model.ErrAccountNotFound)
}

func TestCacheBookCreatesOnFirstAccess(t *testing.T) {
	t.Parallel()

	c := New(model.OmsNetting)
	id := testSpot(t).ID()

	book1 := c.Book(id)
	book2 := c.Book(id)
	assert.Same(t, book1, book2, "repeated Book() calls for the same instrument must return the same book")
}

func TestCacheRecentTradesWindowEvicts(t *testing.T) {
	t.Parallel()

	c := New(model.OmsNetting)
	c.recentCapacity = 3
	id := testSpot(t).ID()

	for i := 0; i < 5; i++ {
		c.AddTrade(model.TradeTick{InstrumentId: id, TsEvent: int64(i)})
	}

	trades := c.Trades(id)
	require.Len(t, trades, 3)
	assert.Equal(t, int64(2), trades[0].TsEvent, "oldest two trades must be evicted")
	assert.Equal(t, int64(4), trades[2].TsEvent)
}

func TestCacheQuoteRoundTrip(t *testing.T) {
	t.Parallel()

	c := New(model.OmsNetting)
	id := testSpot(t).ID()

	_, ok := c.Quote(id)
	assert.False(t, ok)

	q := model.QuoteTick{InstrumentId: id, TsEvent: 1}
	c.UpdateQuote(q)

	got, ok := c.Quote(id)
	require.True(t, ok)
	assert.Equal(t, int64(1), got.TsEvent)
}
