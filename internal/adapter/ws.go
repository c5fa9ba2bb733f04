package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
)

const (
	defaultPingInterval     = 50 * time.Second
	defaultReadTimeout      = 90 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultMaxReconnectWait = 30 * time.Second
	eventBufferSize         = 256
	outboundBufferSize      = 32
)

// WSConfig tunes one Feed's liveness and reconnect behavior. Zero-valued
// fields fall back to the defaults above, so venues that don't override
// anything in config get the same tunings the simulated venue ships with.
type WSConfig struct {
	PingInterval     time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	MaxReconnectWait time.Duration
}

func (c WSConfig) withDefaults() WSConfig {
	if c.PingInterval <= 0 {
		c.PingInterval = defaultPingInterval
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.MaxReconnectWait <= 0 {
		c.MaxReconnectWait = defaultMaxReconnectWait
	}
	return c
}

type wsFrame struct {
	msgType int
	data    []byte
	label   string // for drop logging only
}

// Feed manages the adapter's single WebSocket connection: quotes, trades,
// bars, and order lifecycle events all arrive multiplexed on it, routed by
// the envelope's event_type. A single long-lived writer goroutine owns every
// outbound frame — subscribe/unsubscribe requests and keepalive pings alike
// move through the outbound channel rather than being written directly by
// their callers, so there is never more than one goroutine touching the
// connection's write side even across a reconnect.
type Feed struct {
	url    string
	cfg    WSConfig
	conn   *websocket.Conn
	connMu sync.Mutex

	subscribedMu sync.RWMutex
	subscribed   map[string]bool

	outbound chan wsFrame

	quoteCh chan wireQuote
	tradeCh chan wireTrade
	barCh   chan barWire
	orderCh chan wireOrderEvent

	logger *slog.Logger
}

// NewFeed creates a Feed dialing wsURL. cfg's zero value uses the package
// defaults.
func NewFeed(wsURL string, cfg WSConfig, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		url:        wsURL,
		cfg:        cfg.withDefaults(),
		subscribed: make(map[string]bool),
		outbound:   make(chan wsFrame, outboundBufferSize),
		quoteCh:    make(chan wireQuote, eventBufferSize),
		tradeCh:    make(chan wireTrade, eventBufferSize),
		barCh:      make(chan barWire, eventBufferSize),
		orderCh:    make(chan wireOrderEvent, eventBufferSize),
		logger:     logger.With("component", "adapter_feed"),
	}
}

func (f *Feed) QuoteEvents() <-chan wireQuote      { return f.quoteCh }
func (f *Feed) TradeEvents() <-chan wireTrade      { return f.tradeCh }
func (f *Feed) BarEvents() <-chan barWire          { return f.barCh }
func (f *Feed) OrderEvents() <-chan wireOrderEvent { return f.orderCh }

// Run starts the outbound writer and maintains the connection, reconnecting
// with a jittered exponential backoff (internal/adapter depends on
// github.com/cenkalti/backoff/v5 for this rather than hand-rolling the
// doubling itself) capped at cfg.MaxReconnectWait. Blocks until ctx is
// cancelled.
func (f *Feed) Run(ctx context.Context) error {
	go f.writeLoop(ctx)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = f.cfg.MaxReconnectWait
	b.MaxElapsedTime = 0 // never give up; the kernel owns the adapter's lifetime

	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := b.NextBackOff()
		f.logger.Warn("websocket disconnected, reconnecting", "error", err, "backoff", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Subscribe adds symbols to the live subscription set and enqueues a
// subscribe frame for the writer goroutine. If no connection is currently up
// the frame is dropped silently — resubscribeAll replays the full set once
// connectAndRead succeeds, so nothing is lost.
func (f *Feed) Subscribe(symbols []string) error {
	f.subscribedMu.Lock()
	for _, s := range symbols {
		f.subscribed[s] = true
	}
	f.subscribedMu.Unlock()
	return f.enqueueJSON(map[string]any{"op": "subscribe", "symbols": symbols}, "subscribe")
}

// Unsubscribe removes symbols from the subscription set.
func (f *Feed) Unsubscribe(symbols []string) error {
	f.subscribedMu.Lock()
	for _, s := range symbols {
		delete(f.subscribed, s)
	}
	f.subscribedMu.Unlock()
	return f.enqueueJSON(map[string]any{"op": "unsubscribe", "symbols": symbols}, "unsubscribe")
}

// Close gracefully closes the connection.
func (f *Feed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *Feed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	if err := f.resubscribeAll(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	f.logger.Info("websocket connected")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		f.dispatchMessage(msg)
	}
}

func (f *Feed) resubscribeAll() error {
	f.subscribedMu.RLock()
	symbols := make([]string, 0, len(f.subscribed))
	for s := range f.subscribed {
		symbols = append(symbols, s)
	}
	f.subscribedMu.RUnlock()
	if len(symbols) == 0 {
		return nil
	}
	return f.enqueueJSON(map[string]any{"op": "subscribe", "symbols": symbols}, "resubscribe")
}

func (f *Feed) dispatchMessage(data []byte) {
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		f.logger.Debug("ignoring non-json ws message", "data", string(data))
		return
	}

	switch envelope.EventType {
	case "quote":
		var evt wireQuote
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal quote event", "error", err)
			return
		}
		select {
		case f.quoteCh <- evt:
		default:
			f.logger.Warn("quote channel full, dropping event", "symbol", evt.Symbol)
		}

	case "trade":
		var evt wireTrade
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal trade event", "error", err)
			return
		}
		select {
		case f.tradeCh <- evt:
		default:
			f.logger.Warn("trade channel full, dropping event", "symbol", evt.Symbol)
		}

	case "bar":
		var evt barWire
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal bar event", "error", err)
			return
		}
		select {
		case f.barCh <- evt:
		default:
			f.logger.Warn("bar channel full, dropping event", "symbol", evt.Symbol)
		}

	case "accepted", "rejected", "canceled", "expired", "filled":
		var evt wireOrderEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal order event", "error", err)
			return
		}
		select {
		case f.orderCh <- evt:
		default:
			f.logger.Warn("order channel full, dropping event", "client_order_id", evt.ClientOrderId)
		}

	default:
		f.logger.Debug("unknown ws event type", "type", envelope.EventType)
	}
}

// writeLoop is the feed's only writer: it owns the ping ticker and drains
// every subscribe/unsubscribe frame other goroutines enqueue, so a reconnect
// never has to stop and restart a second goroutine the way a per-connection
// ping loop would. It runs for the lifetime of Run, independent of any single
// connection's lifetime.
func (f *Feed) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(f.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.writeFrame(websocket.TextMessage, []byte("PING")); err != nil {
				f.logger.Debug("ping not sent", "error", err)
			}
		case frame := <-f.outbound:
			if err := f.writeFrame(frame.msgType, frame.data); err != nil {
				f.logger.Debug("frame not sent", "label", frame.label, "error", err)
			}
		}
	}
}

func (f *Feed) enqueueJSON(v any, label string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", label, err)
	}
	select {
	case f.outbound <- wsFrame{msgType: websocket.TextMessage, data: data, label: label}:
	default:
		f.logger.Warn("outbound queue full, dropping frame", "label", label)
	}
	return nil
}

func (f *Feed) writeFrame(msgType int, data []byte) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(f.cfg.WriteTimeout))
	return f.conn.WriteMessage(msgType, data)
}
