package dataengine

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nautilus-go/core/internal/cache"
	"github.com/nautilus-go/core/internal/msgbus"
	"github.com/nautilus-go/core/pkg/model"
)

// DataOutOfOrder counts events dropped for a ts_init regression in live
// mode. The package does not register it with any registry, so
// importing the package never touches the default registry as a side effect.
var DataOutOfOrder = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "nautilus",
	Subsystem: "data_engine",
	Name:      "out_of_order_total",
	Help:      "Market data events dropped for a ts_init regression on their subscription.",
})

// Engine routes normalized market data to subscribers, maintains the cache's
// order books, and serves historical RequestX queries.
type Engine struct {
	cache    *cache.Cache
	bus      *msgbus.Bus
	clients  map[string]DataClient // keyed by venue
	lastTs   map[string]int64      // keyed by topic: last delivered ts_init
	backtest bool
	logger   *slog.Logger
}

// New constructs an Engine. backtest selects the DataOutOfOrder
// propagation mode: live drops and increments a metric, backtest panics
// (the contract that makes backtests deterministic).
func New(c *cache.Cache, bus *msgbus.Bus, backtest bool, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cache:    c,
		bus:      bus,
		clients:  make(map[string]DataClient),
		lastTs:   make(map[string]int64),
		backtest: backtest,
		logger:   logger.With("component", "dataengine"),
	}
}

// RegisterClient associates a DataClient with a venue name, used both for
// live subscription wiring and as the Request target for historical data.
func (e *Engine) RegisterClient(venue string, client DataClient) {
	e.clients[venue] = client
}

// Subscribe registers handler for topic, both on the bus (so other
// in-process components can observe the same stream) and, if venue names a
// registered client, on that client's live feed.
func (e *Engine) Subscribe(topic, subscriberID, venue string, handler msgbus.Handler) error {
	if err := e.bus.Subscribe(topic, subscriberID, handler); err != nil {
		return fmt.Errorf("dataengine subscribe %q: %w", topic, err)
	}
	if client, ok := e.clients[venue]; ok {
		if err := client.Subscribe(topic, nil); err != nil {
			return fmt.Errorf("dataengine subscribe %q on venue %q: %w", topic, venue, err)
		}
	}
	return nil
}

// checkRegression enforces the strictly-increasing ts_init ordering
// contract for one topic's subscription: an event whose ts_init does not
// strictly advance the last delivered value is out of order. Returns
// false if the event must be dropped (live); panics in backtest mode
// instead of returning.
func (e *Engine) checkRegression(topic string, tsInit int64) bool {
	last, seen := e.lastTs[topic]
	if seen && tsInit <= last {
		if e.backtest {
			panic(fmt.Sprintf("dataengine: ts_init regression on %q: %d <= %d", topic, tsInit, last))
		}
		DataOutOfOrder.Inc()
		e.logger.Warn("dropping out-of-order event", "topic", topic, "ts_init", tsInit, "last_ts_init", last)
		return false
	}
	e.lastTs[topic] = tsInit
	return true
}

// IngestQuote applies a quote to the cache and publishes it on topic, if it
// passes the ts_init regression check.
func (e *Engine) IngestQuote(topic string, q model.QuoteTick) {
	if !e.checkRegression(topic, q.TsInit) {
		return
	}
	e.cache.UpdateQuote(q)
	e.bus.Publish(topic, q)
}

// IngestTrade applies a trade print to the cache's recent-trades window and
// publishes it on topic, if it passes the ts_init regression check.
func (e *Engine) IngestTrade(topic string, t model.TradeTick) {
	if !e.checkRegression(topic, t.TsInit) {
		return
	}
	e.cache.AddTrade(t)
	e.bus.Publish(topic, t)
}

// IngestBookDelta applies a single book delta to the cache's authoritative
// book for its instrument and publishes it on topic, in receipt order — the
// caller must never reorder deltas before calling this.
func (e *Engine) IngestBookDelta(topic string, d model.OrderBookDelta) {
	if !e.checkRegression(topic, d.TsInit) {
		return
	}
	e.cache.Book(d.InstrumentId).Apply(d)
	e.bus.Publish(topic, d)
}

// IngestBookDeltas applies an ordered batch (e.g. OrderBookDepth10.ToDeltas)
// and publishes each delta individually, preserving the within-batch Clear-
// before-Add ordering the snapshot-to-deltas contract requires. The ts_init
// regression check runs once for the batch, against its first delta, since
// every delta of a converted snapshot shares the snapshot's ts_init.
func (e *Engine) IngestBookDeltas(topic string, deltas []model.OrderBookDelta) {
	if len(deltas) == 0 || !e.checkRegression(topic, deltas[0].TsInit) {
		return
	}
	for _, d := range deltas {
		e.cache.Book(d.InstrumentId).Apply(d)
		e.bus.Publish(topic, d)
	}
	if last := deltas[len(deltas)-1].TsInit; last > e.lastTs[topic] {
		e.lastTs[topic] = last
	}
}

// IngestBar applies a closed bar to the cache's recent-bars window and
// publishes it on topic, if it passes the ts_init regression check.
func (e *Engine) IngestBar(topic string, b model.Bar) {
	if !e.checkRegression(topic, b.TsInit) {
		return
	}
	e.cache.AddBar(b)
	e.bus.Publish(topic, b)
}
