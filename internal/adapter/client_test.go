package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nautilus-go/core/pkg/model"
)

func testOrder(t *testing.T) *model.Order {
	t.Helper()
	instID, err := model.NewInstrumentId("BTCUSDT", "SIM")
	require.NoError(t, err)
	strategyID, err := model.NewStrategyId("strat-1")
	require.NoError(t, err)
	coi, err := model.NewClientOrderId("O-1")
	require.NoError(t, err)
	qty, err := model.NewQuantity(decimal.NewFromInt(1), 4)
	require.NoError(t, err)
	return &model.Order{
		ClientOrderId: coi,
		InstrumentId:  instID,
		StrategyId:    strategyID,
		Side:          model.SideBuy,
		Type:          model.OrderTypeLimit,
		TimeInForce:   model.TimeInForceGTC,
		Quantity:      qty,
		Status:        model.OrderStatusInitialized,
	}
}

func TestClientSubmitOrderPostsExpectedBody(t *testing.T) {
	t.Parallel()
	var got submitOrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/orders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient("SIM", srv.URL, RateLimitConfig{}, nil)
	order := testOrder(t)
	px, err := model.ParsePrice("100.50", 2)
	require.NoError(t, err)
	order.Price = &px

	require.NoError(t, c.SubmitOrder(context.Background(), order))
	assert.Equal(t, "O-1", got.ClientOrderId)
	assert.Equal(t, "BTCUSDT", got.Symbol)
	assert.Equal(t, "BUY", got.Side)
	assert.Equal(t, "LIMIT", got.Type)
	assert.Equal(t, "100.5", got.Price)
}

func TestClientSubmitOrderErrorsOnServerError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient("SIM", srv.URL, RateLimitConfig{}, nil)
	err := c.SubmitOrder(context.Background(), testOrder(t))
	assert.Error(t, err)
}

func TestClientCancelOrderHitsExpectedPath(t *testing.T) {
	t.Parallel()
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient("SIM", srv.URL, RateLimitConfig{}, nil)
	coi, err := model.NewClientOrderId("O-1")
	require.NoError(t, err)
	require.NoError(t, c.CancelOrder(context.Background(), coi))
	assert.Equal(t, "/orders/O-1", gotPath)
	assert.Equal(t, http.MethodDelete, gotMethod)
}

func TestClientCancelAllOrdersPassesSymbolQueryParam(t *testing.T) {
	t.Parallel()
	var gotSymbol string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSymbol = r.URL.Query().Get("symbol")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient("SIM", srv.URL, RateLimitConfig{}, nil)
	instID, err := model.NewInstrumentId("BTCUSDT", "SIM")
	require.NoError(t, err)
	require.NoError(t, c.CancelAllOrders(context.Background(), instID))
	assert.Equal(t, "BTCUSDT", gotSymbol)
}

func TestClientGetBookReturnsParsedLevels(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(bookResponse{
			Symbol: "BTCUSDT",
			Bids:   []bookLevel{{Price: "99.00", Size: "1"}},
			Asks:   []bookLevel{{Price: "101.00", Size: "1"}},
		})
	}))
	defer srv.Close()

	c := NewClient("SIM", srv.URL, RateLimitConfig{}, nil)
	book, err := c.GetBook(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, book.Bids, 1)
	assert.Equal(t, "99.00", book.Bids[0].Price)
}

func TestClientGenerateOrderStatusReportsDecodesResponse(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/reports/orders", r.URL.Path)
		json.NewEncoder(w).Encode([]orderStatusReportWire{
			{ClientOrderId: "O-1", VenueOrderId: "V-1", Symbol: "BTCUSDT", Side: "BUY", Type: "LIMIT", Quantity: "1", FilledQty: "0", AvgPx: "0", Status: "ACCEPTED", TsEvent: 1},
		})
	}))
	defer srv.Close()

	c := NewClient("SIM", srv.URL, RateLimitConfig{}, nil)
	reports, err := c.GenerateOrderStatusReports(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "O-1", reports[0].ClientOrderId)
	assert.Equal(t, "ACCEPTED", reports[0].Status)
}

func TestClientVenueReturnsConfiguredName(t *testing.T) {
	t.Parallel()
	c := NewClient("SIM", "http://localhost", RateLimitConfig{}, nil)
	assert.Equal(t, "SIM", c.Venue())
}
