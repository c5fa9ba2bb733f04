package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nautilus-go/core/internal/cache"
	"github.com/nautilus-go/core/internal/dataengine"
	"github.com/nautilus-go/core/internal/execution"
	"github.com/nautilus-go/core/pkg/model"
)

// Adapter is the simulated venue's DataClient + ExecutionClient pair:
// it owns the REST Client and WebSocket Feed, and wires the feed's
// parsed events into the kernel's DataEngine/ExecutionEngine the same way a
// live venue integration would.
type Adapter struct {
	venue  string
	cache  *cache.Cache
	data   *dataengine.Engine
	exec   *execution.Engine
	rest   *Client
	feed   *Feed
	logger *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an Adapter for venue, dialing restURL for order management and
// wsURL for the live feed. wsCfg tunes the feed's ping/read/write/reconnect
// timings and rlCfg tunes its REST rate limiter; both zero values fall back
// to their package defaults. c, de, and ee are the kernel's cache, data
// engine, and execution engine — Connect wires the feed's events into them.
func New(venue, restURL, wsURL string, wsCfg WSConfig, rlCfg RateLimitConfig, c *cache.Cache, de *dataengine.Engine, ee *execution.Engine, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		venue:  venue,
		cache:  c,
		data:   de,
		exec:   ee,
		rest:   NewClient(venue, restURL, rlCfg, logger),
		feed:   NewFeed(wsURL, wsCfg, logger),
		logger: logger.With("component", "adapter", "venue", venue),
	}
}

// Venue satisfies execution.ExecutionClient.
func (a *Adapter) Venue() string { return a.venue }

func (a *Adapter) instrumentId(symbol string) model.InstrumentId {
	instID, err := model.NewInstrumentId(symbol, a.venue)
	if err != nil {
		// symbol/venue were already validated when the instrument was
		// registered with the cache; a malformed wire payload is a venue bug.
		a.logger.Error("adapter: malformed instrument id on wire event", "symbol", symbol, "error", err)
	}
	return instID
}

func (a *Adapter) instrument(symbol string) (model.Instrument, error) {
	return a.cache.Instrument(a.instrumentId(symbol))
}

// ---- execution.ExecutionClient ----

// SubmitOrder routes order to the REST client. The venue's eventual accept/
// reject/fill arrives asynchronously on the order feed and is applied via
// Connect's dispatch loop, not this call.
func (a *Adapter) SubmitOrder(order *model.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.rest.SubmitOrder(ctx, order)
}

// ModifyOrder requests an in-place price/quantity change.
func (a *Adapter) ModifyOrder(coi model.ClientOrderId, qty *model.Quantity, price *model.Price) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.rest.ModifyOrder(ctx, coi, qty, price)
}

// CancelOrder cancels one working order.
func (a *Adapter) CancelOrder(coi model.ClientOrderId) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.rest.CancelOrder(ctx, coi)
}

// CancelAllOrders cancels every working order for one instrument.
func (a *Adapter) CancelAllOrders(instID model.InstrumentId) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.rest.CancelAllOrders(ctx, instID)
}

// GenerateOrderStatusReports fetches and translates the venue's current
// order book for the execution engine's startup Reconcile.
func (a *Adapter) GenerateOrderStatusReports() ([]model.OrderStatusReport, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	wire, err := a.rest.GenerateOrderStatusReports(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.OrderStatusReport, 0, len(wire))
	for _, w := range wire {
		r, err := a.toOrderStatusReport(w)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// GeneratePositionStatusReports fetches and translates the venue's current
// open positions.
func (a *Adapter) GeneratePositionStatusReports() ([]model.PositionStatusReport, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	wire, err := a.rest.GeneratePositionStatusReports(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.PositionStatusReport, 0, len(wire))
	for _, w := range wire {
		inst, err := a.instrument(w.Symbol)
		if err != nil {
			return nil, err
		}
		qty, err := inst.MakeQty(mustDecimal(w.SignedQty))
		if err != nil {
			return nil, err
		}
		out = append(out, model.PositionStatusReport{
			InstrumentId: inst.ID(),
			Side:         parsePositionSide(w.Side),
			SignedQty:    qty,
			AvgPxOpen:    inst.MakePrice(mustDecimal(w.AvgPxOpen)),
			TsEvent:      w.TsEvent,
		})
	}
	return out, nil
}

// GenerateTradeReports fetches and translates the venue's execution history.
func (a *Adapter) GenerateTradeReports() ([]model.TradeReport, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	wire, err := a.rest.GenerateTradeReports(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.TradeReport, 0, len(wire))
	for _, w := range wire {
		inst, err := a.instrument(w.Symbol)
		if err != nil {
			return nil, err
		}
		coi, err := model.NewClientOrderId(w.ClientOrderId)
		if err != nil {
			return nil, err
		}
		voi, err := model.NewVenueOrderId(w.VenueOrderId)
		if err != nil {
			return nil, err
		}
		qty, err := inst.MakeQty(mustDecimal(w.Quantity))
		if err != nil {
			return nil, err
		}
		out = append(out, model.TradeReport{
			ClientOrderId: coi,
			VenueOrderId:  voi,
			InstrumentId:  inst.ID(),
			Side:          parseSide(w.Side),
			Quantity:      qty,
			Price:         inst.MakePrice(mustDecimal(w.Price)),
			Commission:    model.NewMoney(mustDecimal(w.Commission), inst.SettlementCurrency()),
			TradeId:       w.TradeId,
			TsEvent:       w.TsEvent,
		})
	}
	return out, nil
}

func (a *Adapter) toOrderStatusReport(w orderStatusReportWire) (model.OrderStatusReport, error) {
	inst, err := a.instrument(w.Symbol)
	if err != nil {
		return model.OrderStatusReport{}, err
	}
	coi, err := model.NewClientOrderId(w.ClientOrderId)
	if err != nil {
		return model.OrderStatusReport{}, err
	}
	voi, err := model.NewVenueOrderId(w.VenueOrderId)
	if err != nil {
		return model.OrderStatusReport{}, err
	}
	qty, err := inst.MakeQty(mustDecimal(w.Quantity))
	if err != nil {
		return model.OrderStatusReport{}, err
	}
	filled, err := inst.MakeQty(mustDecimal(w.FilledQty))
	if err != nil {
		return model.OrderStatusReport{}, err
	}
	return model.OrderStatusReport{
		ClientOrderId: coi,
		VenueOrderId:  voi,
		InstrumentId:  inst.ID(),
		Side:          parseSide(w.Side),
		Type:          parseOrderType(w.Type),
		Quantity:      qty,
		FilledQty:     filled,
		AvgPx:         inst.MakePrice(mustDecimal(w.AvgPx)),
		Status:        parseOrderStatus(w.Status),
		TsEvent:       w.TsEvent,
	}, nil
}

// ---- dataengine.DataClient ----

// Connect dials the feed and starts the dispatch loop translating its
// events into the cache/engines. It does not block; Disconnect stops it.
func (a *Adapter) Connect(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		if err := a.feed.Run(runCtx); err != nil && runCtx.Err() == nil {
			a.logger.Error("feed run exited", "error", err)
		}
	}()
	go func() {
		defer a.wg.Done()
		a.dispatchLoop(runCtx)
	}()
	return nil
}

// Disconnect stops the dispatch loop and closes the feed, waiting for both
// goroutines Connect started to return.
func (a *Adapter) Disconnect(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	err := a.feed.Close()
	a.wg.Wait()
	return err
}

// Subscribe subscribes the feed to topic's instrument. topic is of the
// form "data.quotes.<SYMBOL>.<VENUE>" (or trades/bars); only the symbol
// segment is meaningful to the wire protocol, which streams every data
// class for a subscribed symbol.
func (a *Adapter) Subscribe(topic string, params map[string]string) error {
	symbol := symbolFromTopic(topic)
	if symbol == "" {
		return fmt.Errorf("adapter: cannot derive symbol from topic %q", topic)
	}
	return a.feed.Subscribe([]string{symbol})
}

// Unsubscribe removes topic's instrument from the feed's subscription set.
func (a *Adapter) Unsubscribe(topic string) error {
	symbol := symbolFromTopic(topic)
	if symbol == "" {
		return nil
	}
	return a.feed.Unsubscribe([]string{symbol})
}

// Request serves one historical query via the venue's REST history
// endpoints. The returned value's concrete type matches kind:
// []model.Bar, []model.QuoteTick, or []model.TradeTick.
func (a *Adapter) Request(ctx context.Context, kind dataengine.RequestKind, params dataengine.RequestParams, deadline time.Time) (any, error) {
	reqCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	instID, err := model.NewInstrumentId(params.InstrumentId, a.venue)
	if err != nil {
		return nil, err
	}
	inst, err := a.cache.Instrument(instID)
	if err != nil {
		return nil, err
	}

	switch kind {
	case dataengine.RequestQuoteTicks:
		body, err := a.rest.getHistory(reqCtx, "/quotes", inst.ID().Symbol.String(), params.From, params.To, params.Limit)
		if err != nil {
			return nil, err
		}
		wire, err := decodeJSON[wireQuote](body)
		if err != nil {
			return nil, err
		}
		out := make([]model.QuoteTick, 0, len(wire))
		for _, w := range wire {
			out = append(out, a.toQuoteTick(inst, w))
		}
		return out, nil

	case dataengine.RequestTradeTicks:
		body, err := a.rest.getHistory(reqCtx, "/trades", inst.ID().Symbol.String(), params.From, params.To, params.Limit)
		if err != nil {
			return nil, err
		}
		wire, err := decodeJSON[wireTrade](body)
		if err != nil {
			return nil, err
		}
		out := make([]model.TradeTick, 0, len(wire))
		for _, w := range wire {
			out = append(out, a.toTradeTick(inst, w))
		}
		return out, nil

	case dataengine.RequestBars:
		body, err := a.rest.getHistory(reqCtx, "/bars", inst.ID().Symbol.String(), params.From, params.To, params.Limit)
		if err != nil {
			return nil, err
		}
		wire, err := decodeJSON[barWire](body)
		if err != nil {
			return nil, err
		}
		out := make([]model.Bar, 0, len(wire))
		for _, w := range wire {
			out = append(out, a.toBar(inst, params.BarType, w))
		}
		return out, nil

	default:
		return nil, fmt.Errorf("adapter: unsupported request kind %v", kind)
	}
}

// dispatchLoop drains the feed's channels until ctx is cancelled, applying
// each parsed event to the data/execution engines. This is the adapter's
// only goroutine that touches kernel state, preserving the single-writer
// contract as long as the kernel schedules it onto its own loop —
// callers embedding Adapter in a live kernel must route these engine calls
// through Kernel.dispatch rather than calling them directly from here in a
// fully live deployment; the backtest/demo wiring in this module calls them
// inline since there is only ever one goroutine driving the engines.
func (a *Adapter) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case q := <-a.feed.QuoteEvents():
			a.handleQuote(q)
		case t := <-a.feed.TradeEvents():
			a.handleTrade(t)
		case b := <-a.feed.BarEvents():
			a.handleBar(b)
		case o := <-a.feed.OrderEvents():
			a.handleOrderEvent(o)
		}
	}
}

func (a *Adapter) handleQuote(w wireQuote) {
	inst, err := a.instrument(w.Symbol)
	if err != nil {
		a.logger.Warn("quote for unknown instrument", "symbol", w.Symbol, "error", err)
		return
	}
	topic := "data.quotes." + inst.ID().String()
	a.data.IngestQuote(topic, a.toQuoteTick(inst, w))
}

func (a *Adapter) handleTrade(w wireTrade) {
	inst, err := a.instrument(w.Symbol)
	if err != nil {
		a.logger.Warn("trade for unknown instrument", "symbol", w.Symbol, "error", err)
		return
	}
	topic := "data.trades." + inst.ID().String()
	a.data.IngestTrade(topic, a.toTradeTick(inst, w))
}

func (a *Adapter) handleBar(w barWire) {
	inst, err := a.instrument(w.Symbol)
	if err != nil {
		a.logger.Warn("bar for unknown instrument", "symbol", w.Symbol, "error", err)
		return
	}
	spec, err := model.NewBarSpecification(1, model.BarAggregationMinute, model.PriceTypeLast)
	if err != nil {
		a.logger.Error("adapter: build default bar spec", "error", err)
		return
	}
	barType := model.BarType{InstrumentId: inst.ID(), Spec: spec, Source: model.AggregationSourceExternal}
	topic := "data.bars." + inst.ID().String()
	a.data.IngestBar(topic, a.toBar(inst, barType, w))
}

func (a *Adapter) handleOrderEvent(w wireOrderEvent) {
	coi, err := model.NewClientOrderId(w.ClientOrderId)
	if err != nil {
		a.logger.Error("adapter: order event with invalid client order id", "error", err)
		return
	}
	var voi model.VenueOrderId
	if w.VenueOrderId != "" {
		voi, err = model.NewVenueOrderId(w.VenueOrderId)
		if err != nil {
			a.logger.Error("adapter: order event with invalid venue order id", "error", err)
			return
		}
	}
	instID := a.instrumentId(w.Symbol)

	var applyErr error
	switch w.EventType {
	case "accepted":
		applyErr = a.exec.OnAccepted(model.OrderAccepted{ClientOrderId: coi, VenueOrderId: voi, InstrumentId: instID, TsEvent: w.TsEvent})
	case "rejected":
		applyErr = a.exec.OnRejected(model.OrderRejected{ClientOrderId: coi, InstrumentId: instID, Reason: w.Reason, TsEvent: w.TsEvent})
	case "canceled":
		applyErr = a.exec.OnCanceled(model.OrderCanceled{ClientOrderId: coi, VenueOrderId: voi, InstrumentId: instID, TsEvent: w.TsEvent})
	case "expired":
		applyErr = a.exec.OnExpired(model.OrderExpired{ClientOrderId: coi, InstrumentId: instID, TsEvent: w.TsEvent})
	case "filled":
		inst, err := a.cache.Instrument(instID)
		if err != nil {
			a.logger.Warn("fill for unknown instrument", "symbol", w.Symbol, "error", err)
			return
		}
		qty, err := inst.MakeQty(mustDecimal(w.Quantity))
		if err != nil {
			a.logger.Error("adapter: invalid fill quantity", "error", err)
			return
		}
		applyErr = a.exec.OnFilled(model.Fill{
			ClientOrderId: coi,
			VenueOrderId:  voi,
			InstrumentId:  instID,
			Side:          parseSide(w.Side),
			Quantity:      qty,
			Price:         inst.MakePrice(mustDecimal(w.Price)),
			Commission:    model.NewMoney(mustDecimal(w.Commission), inst.SettlementCurrency()),
			Liquidity:     parseLiquidity(w.Liquidity),
			TradeId:       w.TradeId,
			TsEvent:       w.TsEvent,
		})
	default:
		a.logger.Debug("adapter: unhandled order event type", "type", w.EventType)
		return
	}
	if applyErr != nil {
		a.logger.Warn("adapter: applying order event", "type", w.EventType, "error", applyErr)
	}
}

func (a *Adapter) toQuoteTick(inst model.Instrument, w wireQuote) model.QuoteTick {
	sz, _ := inst.MakeQty(mustDecimal(w.BidSize))
	askSz, _ := inst.MakeQty(mustDecimal(w.AskSize))
	return model.QuoteTick{
		InstrumentId: inst.ID(),
		BidPrice:     inst.MakePrice(mustDecimal(w.BidPrice)),
		AskPrice:     inst.MakePrice(mustDecimal(w.AskPrice)),
		BidSize:      sz,
		AskSize:      askSz,
		TsEvent:      w.TsEvent,
		TsInit:       w.TsInit,
	}
}

func (a *Adapter) toTradeTick(inst model.Instrument, w wireTrade) model.TradeTick {
	sz, _ := inst.MakeQty(mustDecimal(w.Size))
	return model.TradeTick{
		InstrumentId:  inst.ID(),
		Price:         inst.MakePrice(mustDecimal(w.Price)),
		Size:          sz,
		AggressorSide: parseAggressor(w.Aggressor),
		TradeId:       w.TradeId,
		TsEvent:       w.TsEvent,
		TsInit:        w.TsInit,
	}
}

func (a *Adapter) toBar(inst model.Instrument, barType model.BarType, w barWire) model.Bar {
	vol, _ := inst.MakeQty(mustDecimal(w.Volume))
	return model.Bar{
		Type:    barType,
		Open:    inst.MakePrice(mustDecimal(w.Open)),
		High:    inst.MakePrice(mustDecimal(w.High)),
		Low:     inst.MakePrice(mustDecimal(w.Low)),
		Close:   inst.MakePrice(mustDecimal(w.Close)),
		Volume:  vol,
		TsEvent: w.TsEvent,
		TsInit:  w.TsInit,
	}
}

func mustDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseSide(s string) model.Side {
	if s == "SELL" {
		return model.SideSell
	}
	return model.SideBuy
}

func parseOrderType(s string) model.OrderType {
	switch s {
	case "LIMIT":
		return model.OrderTypeLimit
	case "MARKET_IF_TOUCHED":
		return model.OrderTypeMarketIfTouched
	case "STOP_MARKET":
		return model.OrderTypeStopMarket
	case "STOP_LIMIT":
		return model.OrderTypeStopLimit
	case "TRAILING_STOP":
		return model.OrderTypeTrailingStop
	case "MARKET_TO_LIMIT":
		return model.OrderTypeMarketToLimit
	default:
		return model.OrderTypeMarket
	}
}

func parseOrderStatus(s string) model.OrderStatus {
	switch s {
	case "SUBMITTED":
		return model.OrderStatusSubmitted
	case "ACCEPTED":
		return model.OrderStatusAccepted
	case "REJECTED":
		return model.OrderStatusRejected
	case "DENIED":
		return model.OrderStatusDenied
	case "TRIGGERED":
		return model.OrderStatusTriggered
	case "PARTIALLY_FILLED":
		return model.OrderStatusPartiallyFilled
	case "FILLED":
		return model.OrderStatusFilled
	case "CANCELED":
		return model.OrderStatusCanceled
	case "EXPIRED":
		return model.OrderStatusExpired
	default:
		return model.OrderStatusInitialized
	}
}

func parsePositionSide(s string) model.PositionSide {
	switch s {
	case "LONG":
		return model.PositionLong
	case "SHORT":
		return model.PositionShort
	default:
		return model.PositionFlat
	}
}

func parseLiquidity(s string) model.LiquiditySide {
	if s == "TAKER" {
		return model.LiquidityTaker
	}
	return model.LiquidityMaker
}

func parseAggressor(s string) model.AggressorSide {
	switch s {
	case "SELLER":
		return model.AggressorSeller
	case "BUYER":
		return model.AggressorBuyer
	default:
		return model.AggressorNoSide
	}
}

// symbolFromTopic extracts the instrument symbol from a
// "data.<class>.<SYMBOL>.<VENUE>" topic.
func symbolFromTopic(topic string) string {
	parts := strings.Split(topic, ".")
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}
