package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestFeedDispatchesQuoteEvent(t *testing.T) {
	t.Parallel()
	srv := newTestWSServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage() // drain the subscribe frame
		conn.WriteJSON(wireQuote{EventType: "quote", Symbol: "BTCUSDT", BidPrice: "99.00", AskPrice: "101.00", TsEvent: 1, TsInit: 1})
		time.Sleep(100 * time.Millisecond)
	})

	f := NewFeed(wsURL(srv.URL), WSConfig{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, f.Subscribe([]string{"BTCUSDT"}))
	go f.Run(ctx)

	select {
	case q := <-f.QuoteEvents():
		assert.Equal(t, "BTCUSDT", q.Symbol)
		assert.Equal(t, "99.00", q.BidPrice)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for quote event")
	}
}

func TestFeedDispatchesTradeEvent(t *testing.T) {
	t.Parallel()
	srv := newTestWSServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage()
		conn.WriteJSON(wireTrade{EventType: "trade", Symbol: "BTCUSDT", Price: "100.00", Size: "2", Aggressor: "BUYER", TradeId: "T-1", TsEvent: 1, TsInit: 1})
		time.Sleep(100 * time.Millisecond)
	})

	f := NewFeed(wsURL(srv.URL), WSConfig{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, f.Subscribe([]string{"BTCUSDT"}))
	go f.Run(ctx)

	select {
	case tr := <-f.TradeEvents():
		assert.Equal(t, "T-1", tr.TradeId)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for trade event")
	}
}

func TestFeedDispatchesOrderEvent(t *testing.T) {
	t.Parallel()
	srv := newTestWSServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage()
		conn.WriteJSON(wireOrderEvent{EventType: "accepted", ClientOrderId: "O-1", VenueOrderId: "V-1", Symbol: "BTCUSDT", TsEvent: 1})
		time.Sleep(100 * time.Millisecond)
	})

	f := NewFeed(wsURL(srv.URL), WSConfig{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, f.Subscribe([]string{"BTCUSDT"}))
	go f.Run(ctx)

	select {
	case ev := <-f.OrderEvents():
		assert.Equal(t, "accepted", ev.EventType)
		assert.Equal(t, "O-1", ev.ClientOrderId)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for order event")
	}
}

func TestFeedIgnoresUnknownEventType(t *testing.T) {
	t.Parallel()
	gotQuote := make(chan struct{}, 1)
	srv := newTestWSServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage()
		conn.WriteJSON(map[string]string{"event_type": "heartbeat"})
		conn.WriteJSON(wireQuote{EventType: "quote", Symbol: "BTCUSDT", BidPrice: "1", AskPrice: "2", TsEvent: 1, TsInit: 1})
		time.Sleep(100 * time.Millisecond)
	})

	f := NewFeed(wsURL(srv.URL), WSConfig{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, f.Subscribe([]string{"BTCUSDT"}))
	go f.Run(ctx)

	go func() {
		<-f.QuoteEvents()
		gotQuote <- struct{}{}
	}()

	select {
	case <-gotQuote:
	case <-time.After(2 * time.Second):
		t.Fatal("expected the quote following the unknown event to still arrive")
	}
}

func TestFeedSubscribeSendsSubscribeFrame(t *testing.T) {
	t.Parallel()
	received := make(chan struct{ op string }, 1)
	srv := newTestWSServer(t, func(conn *websocket.Conn) {
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg))
		op, _ := msg["op"].(string)
		received <- struct{ op string }{op}
		time.Sleep(50 * time.Millisecond)
	})

	f := NewFeed(wsURL(srv.URL), WSConfig{}, nil)
	require.NoError(t, f.Subscribe([]string{"BTCUSDT"})) // records the symbol before any connection exists
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	select {
	case got := <-received:
		assert.Equal(t, "subscribe", got.op)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscribe frame")
	}
}
