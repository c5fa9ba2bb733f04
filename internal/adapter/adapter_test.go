package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nautilus-go/core/internal/cache"
	"github.com/nautilus-go/core/internal/dataengine"
	"github.com/nautilus-go/core/internal/execution"
	"github.com/nautilus-go/core/internal/msgbus"
	"github.com/nautilus-go/core/pkg/model"
)

func testSpot(t *testing.T) model.Spot {
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

func newTestHarness(t *testing.T) (*cache.Cache, *dataengine.Engine, *execution.Engine) {
	t.Helper()
	c := cache.New(model.OmsNetting)
	c.AddInstrument(testSpot(t))
	bus := msgbus.New(nil)
	de := dataengine.New(c, bus, false, nil)
	ee := execution.NewEngine(c, "test", func(string, any) {}, nil)
	return c, de, ee
}

func TestSymbolFromTopicExtractsSymbolSegment(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "BTCUSDT", symbolFromTopic("data.quotes.BTCUSDT.SIM"))
	assert.Equal(t, "", symbolFromTopic("data.quotes"))
}

func TestHandleQuoteIngestsIntoCache(t *testing.T) {
	t.Parallel()
	c, de, ee := newTestHarness(t)
	a := New("SIM", "http://unused", "ws://unused", WSConfig{}, RateLimitConfig{}, c, de, ee, nil)

	a.handleQuote(wireQuote{Symbol: "BTCUSDT", BidPrice: "99.00", AskPrice: "101.00", TsEvent: 1, TsInit: 1})

	instID, err := model.NewInstrumentId("BTCUSDT", "SIM")
	require.NoError(t, err)
	q, ok := c.Quote(instID)
	require.True(t, ok)
	bidPx, err := model.ParsePrice("99.00", 2)
	require.NoError(t, err)
	assert.True(t, q.BidPrice.Equal(bidPx))
}

func TestHandleOrderEventAppliesAcceptedThenFilled(t *testing.T) {
	t.Parallel()
	restSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer restSrv.Close()

	c, de, ee := newTestHarness(t)
	a := New("SIM", restSrv.URL, "ws://unused", WSConfig{}, RateLimitConfig{}, c, de, ee, nil)
	ee.RegisterClient(a)

	instID, err := model.NewInstrumentId("BTCUSDT", "SIM")
	require.NoError(t, err)
	strategyID, err := model.NewStrategyId("strat-1")
	require.NoError(t, err)
	qty, err := model.NewQuantity(decimal.NewFromInt(1), 4)
	require.NoError(t, err)
	order := &model.Order{
		InstrumentId: instID,
		StrategyId:   strategyID,
		Side:         model.SideBuy,
		Type:         model.OrderTypeMarket,
		Quantity:     qty,
		Status:       model.OrderStatusInitialized,
	}
	require.NoError(t, ee.SubmitOrder(order, 1))

	a.handleOrderEvent(wireOrderEvent{
		EventType:     "accepted",
		ClientOrderId: order.ClientOrderId.String(),
		VenueOrderId:  "V-1",
		Symbol:        "BTCUSDT",
		TsEvent:       2,
	})
	got, err := c.Order(order.ClientOrderId)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusAccepted, got.Status)

	a.handleOrderEvent(wireOrderEvent{
		EventType:     "filled",
		ClientOrderId: order.ClientOrderId.String(),
		VenueOrderId:  "V-1",
		Symbol:        "BTCUSDT",
		Side:          "BUY",
		Price:         "100.00",
		Quantity:      "1",
		TradeId:       "T-1",
		TsEvent:       3,
	})
	got, err = c.Order(order.ClientOrderId)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusFilled, got.Status, "a full fill should transition the order to Filled")
}

func TestRequestQuoteTicksHitsHistoryEndpoint(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/quotes", r.URL.Path)
		require.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		json.NewEncoder(w).Encode([]wireQuote{
			{Symbol: "BTCUSDT", BidPrice: "99.00", AskPrice: "101.00", TsEvent: 1, TsInit: 1},
		})
	}))
	defer srv.Close()

	c, de, ee := newTestHarness(t)
	a := New("SIM", srv.URL, "ws://unused", WSConfig{}, RateLimitConfig{}, c, de, ee, nil)

	got, err := a.Request(context.Background(), dataengine.RequestQuoteTicks, dataengine.RequestParams{
		InstrumentId: "BTCUSDT",
		From:         time.Unix(0, 0),
		To:           time.Now(),
		Limit:        10,
	}, time.Now().Add(5*time.Second))
	require.NoError(t, err)

	quotes, ok := got.([]model.QuoteTick)
	require.True(t, ok)
	require.Len(t, quotes, 1)
	assert.Equal(t, int64(1), quotes[0].TsEvent)
}

func TestDisconnectStopsFeedGoroutines(t *testing.T) {
	t.Parallel()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c, de, ee := newTestHarness(t)
	a := New("SIM", srv.URL, wsURL(srv.URL), WSConfig{}, RateLimitConfig{}, c, de, ee, nil)

	require.NoError(t, a.Connect(context.Background()))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, a.Disconnect(context.Background()))
}
