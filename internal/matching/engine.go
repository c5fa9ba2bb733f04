// Package matching implements the kernel's simulated MatchingEngine:
// one order book per active instrument, a queue of working orders
// walked in submission order on every book-affecting event, and a
// pluggable FillModel deciding execution price. It satisfies
// execution.ExecutionClient, so a backtest wires it into the
// ExecutionEngine exactly where a real venue adapter would go.
package matching

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/nautilus-go/core/internal/cache"
	"github.com/nautilus-go/core/internal/clock"
	"github.com/nautilus-go/core/internal/execution"
	"github.com/nautilus-go/core/pkg/model"
)

// Engine is the simulated venue for one venue name: it holds its own book
// per instrument (restored from historical data, never impacted by the
// user's own simulated orders — fills never move the book) and the queue
// of orders currently working against it.
type Engine struct {
	venue string
	cache *cache.Cache
	exec  *execution.Engine
	clk   clock.Clock

	fillModel FillModel

	books   map[model.InstrumentId]*cache.Book
	working map[model.InstrumentId][]*model.Order

	triggered map[model.ClientOrderId]bool
	voiByCOI  map[model.ClientOrderId]model.VenueOrderId

	tradeHistory []model.TradeReport

	venueSeq uint64
	tradeSeq uint64

	logger *slog.Logger
}

// NewEngine constructs a simulated matching engine for venue. c is the
// kernel's shared cache, used read-only for instrument metadata (tick
// size, fee rates) — the engine's own per-instrument books are private
// state, distinct from any book the DataEngine maintains for strategies.
// fillModel defaults to L1BestPriceFill; logger may be nil.
func NewEngine(venue string, c *cache.Cache, exec *execution.Engine, clk clock.Clock, fillModel FillModel, logger *slog.Logger) *Engine {
	if fillModel == nil {
		fillModel = L1BestPriceFill{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		venue:     venue,
		cache:     c,
		exec:      exec,
		clk:       clk,
		fillModel: fillModel,
		books:     make(map[model.InstrumentId]*cache.Book),
		working:   make(map[model.InstrumentId][]*model.Order),
		triggered: make(map[model.ClientOrderId]bool),
		voiByCOI:  make(map[model.ClientOrderId]model.VenueOrderId),
		logger:    logger.With("component", "matching", "venue", venue),
	}
}

// Venue satisfies execution.ExecutionClient.
func (e *Engine) Venue() string { return e.venue }

func (e *Engine) bookFor(id model.InstrumentId) *cache.Book {
	b, ok := e.books[id]
	if !ok {
		b = cache.NewBook(id)
		e.books[id] = b
	}
	return b
}

// SubmitOrder accepts the order immediately (a simulated venue never
// rejects on capacity/risk grounds — the RiskEngine already screened it),
// then tries an immediate fill against the current book.
func (e *Engine) SubmitOrder(order *model.Order) error {
	inst, err := e.cache.Instrument(order.InstrumentId)
	if err != nil {
		return err
	}
	e.venueSeq++
	voi, err := model.NewVenueOrderId(fmt.Sprintf("%s-SIM-%d", e.venue, e.venueSeq))
	if err != nil {
		return err
	}
	e.voiByCOI[order.ClientOrderId] = voi
	ts := e.clk.TimestampNs()
	if err := e.exec.OnAccepted(model.OrderAccepted{
		ClientOrderId: order.ClientOrderId,
		VenueOrderId:  voi,
		InstrumentId:  order.InstrumentId,
		TsEvent:       ts,
	}); err != nil {
		return err
	}
	e.working[order.InstrumentId] = append(e.working[order.InstrumentId], order)
	book := e.bookFor(order.InstrumentId)
	prevBid, prevAsk := snapshotTouch(book)
	e.tryOrder(order, inst, book, ts, prevBid, prevAsk)
	if order.Status.IsTerminal() {
		e.removeWorking(order.InstrumentId, order.ClientOrderId)
	}
	return nil
}

// ModifyOrder updates a working order's quantity and/or price, used by the
// ExecutionEngine's OUO contingency handling to shrink a sibling.
func (e *Engine) ModifyOrder(coi model.ClientOrderId, qty *model.Quantity, price *model.Price) error {
	order, ok := e.findWorking(coi)
	if !ok {
		return fmt.Errorf("modify order %s: %w", coi, model.ErrOrderNotFound)
	}
	if qty != nil {
		order.Quantity = *qty
	}
	if price != nil {
		order.Price = price
	}
	return nil
}

// CancelOrder removes a working order and confirms the cancel.
func (e *Engine) CancelOrder(coi model.ClientOrderId) error {
	for instID, orders := range e.working {
		for _, o := range orders {
			if o.ClientOrderId != coi {
				continue
			}
			e.removeWorking(instID, coi)
			return e.exec.OnCanceled(model.OrderCanceled{
				ClientOrderId: coi,
				VenueOrderId:  e.voiByCOI[coi],
				InstrumentId:  instID,
				TsEvent:       e.clk.TimestampNs(),
			})
		}
	}
	return fmt.Errorf("cancel order %s: %w", coi, model.ErrOrderNotFound)
}

// CancelAllOrders cancels every working order for an instrument.
func (e *Engine) CancelAllOrders(instID model.InstrumentId) error {
	orders := e.working[instID]
	e.working[instID] = nil
	ts := e.clk.TimestampNs()
	for _, o := range orders {
		if err := e.exec.OnCanceled(model.OrderCanceled{
			ClientOrderId: o.ClientOrderId,
			VenueOrderId:  e.voiByCOI[o.ClientOrderId],
			InstrumentId:  instID,
			TsEvent:       ts,
		}); err != nil {
			e.logger.Warn("cancel-all confirmation failed", "client_order_id", o.ClientOrderId, "err", err)
		}
	}
	return nil
}

func (e *Engine) findWorking(coi model.ClientOrderId) (*model.Order, bool) {
	for _, orders := range e.working {
		for _, o := range orders {
			if o.ClientOrderId == coi {
				return o, true
			}
		}
	}
	return nil, false
}

func (e *Engine) removeWorking(instID model.InstrumentId, coi model.ClientOrderId) {
	orders := e.working[instID]
	kept := orders[:0]
	for _, o := range orders {
		if o.ClientOrderId != coi {
			kept = append(kept, o)
		}
	}
	e.working[instID] = kept
}

// GenerateOrderStatusReports reports every order still working against this
// simulated venue — a backtest never runs reconciliation against a state
// the kernel itself didn't produce, so this exists mainly to satisfy the
// ExecutionClient contract symmetrically with a live adapter.
func (e *Engine) GenerateOrderStatusReports() ([]model.OrderStatusReport, error) {
	var reports []model.OrderStatusReport
	for _, orders := range e.working {
		for _, o := range orders {
			reports = append(reports, model.OrderStatusReport{
				ClientOrderId: o.ClientOrderId,
				VenueOrderId:  e.voiByCOI[o.ClientOrderId],
				InstrumentId:  o.InstrumentId,
				Side:          o.Side,
				Type:          o.Type,
				Quantity:      o.Quantity,
				FilledQty:     o.FilledQty,
				AvgPx:         o.AvgPx,
				Status:        o.Status,
				TsEvent:       o.TsLastEvent,
			})
		}
	}
	return reports, nil
}

// GeneratePositionStatusReports always returns empty: the simulated venue
// holds no position view independent of the cache the ExecutionEngine
// already maintains from the fills this engine itself produced.
func (e *Engine) GeneratePositionStatusReports() ([]model.PositionStatusReport, error) {
	return nil, nil
}

// GenerateTradeReports returns every fill this engine has produced, used
// by ExecutionEngine.Reconcile to replay any fill the cache hasn't
// absorbed yet.
func (e *Engine) GenerateTradeReports() ([]model.TradeReport, error) {
	return e.tradeHistory, nil
}

// OnQuote feeds a top-of-book update into the instrument's book and
// re-walks its working orders.
func (e *Engine) OnQuote(q model.QuoteTick) {
	inst, err := e.cache.Instrument(q.InstrumentId)
	if err != nil {
		return
	}
	book := e.bookFor(q.InstrumentId)
	prevBid, prevAsk := snapshotTouch(book)
	book.ApplyBatch(quoteDeltas(q))
	e.processInstrument(q.InstrumentId, inst, q.TsEvent, prevBid, prevAsk)
}

// OnDelta feeds a single L2/L3 book mutation into the instrument's book.
func (e *Engine) OnDelta(d model.OrderBookDelta) {
	inst, err := e.cache.Instrument(d.InstrumentId)
	if err != nil {
		return
	}
	book := e.bookFor(d.InstrumentId)
	prevBid, prevAsk := snapshotTouch(book)
	book.Apply(d)
	e.processInstrument(d.InstrumentId, inst, d.TsEvent, prevBid, prevAsk)
}

// OnDepth feeds a depth-10 snapshot in as a Clear plus Add deltas.
func (e *Engine) OnDepth(d model.OrderBookDepth10) {
	inst, err := e.cache.Instrument(d.InstrumentId)
	if err != nil {
		return
	}
	book := e.bookFor(d.InstrumentId)
	prevBid, prevAsk := snapshotTouch(book)
	book.ApplyBatch(d.ToDeltas())
	e.processInstrument(d.InstrumentId, inst, d.TsEvent, prevBid, prevAsk)
}

// OnTrade is a no-op hook kept for interface symmetry with the data-event
// surface: a trade print carries no book-side information this engine
// acts on directly, only quotes/deltas/bars move the simulated book.
func (e *Engine) OnTrade(model.TradeTick) {}

// OnBar synthesizes an L1 book from a bar for bar-only backtests: bid is
// the close, ask is the close plus one tick.
func (e *Engine) OnBar(b model.Bar) {
	instID := b.Type.InstrumentId
	inst, err := e.cache.Instrument(instID)
	if err != nil {
		return
	}
	book := e.bookFor(instID)
	prevBid, prevAsk := snapshotTouch(book)
	ask := model.NewPrice(b.Close.Decimal.Add(inst.TickSize()), inst.PricePrecision())
	book.ApplyBatch([]model.OrderBookDelta{
		{InstrumentId: instID, Action: model.DeltaClear, TsEvent: b.TsEvent, TsInit: b.TsInit},
		{InstrumentId: instID, Action: model.DeltaAdd, Side: model.BookSideBid, Price: b.Close, Size: b.Volume, TsEvent: b.TsEvent, TsInit: b.TsInit},
		{InstrumentId: instID, Action: model.DeltaAdd, Side: model.BookSideAsk, Price: ask, Size: b.Volume, TsEvent: b.TsEvent, TsInit: b.TsInit},
	})
	e.processInstrument(instID, inst, b.TsEvent, prevBid, prevAsk)
}

// snapshotTouch captures a book's current best bid/ask before it is
// mutated by an incoming event, so the matching engine can compare the
// pre- and post-event touch prices for gap-vs-move-through detection.
func snapshotTouch(book *cache.Book) (model.Price, model.Price) {
	bid, _, _ := book.BestBid()
	ask, _, _ := book.BestAsk()
	return bid, ask
}

func quoteDeltas(q model.QuoteTick) []model.OrderBookDelta {
	return []model.OrderBookDelta{
		{InstrumentId: q.InstrumentId, Action: model.DeltaClear, TsEvent: q.TsEvent, TsInit: q.TsInit},
		{InstrumentId: q.InstrumentId, Action: model.DeltaAdd, Side: model.BookSideBid, Price: q.BidPrice, Size: q.BidSize, TsEvent: q.TsEvent, TsInit: q.TsInit},
		{InstrumentId: q.InstrumentId, Action: model.DeltaAdd, Side: model.BookSideAsk, Price: q.AskPrice, Size: q.AskSize, TsEvent: q.TsEvent, TsInit: q.TsInit},
	}
}

// processInstrument walks an instrument's working-order queue in
// submission order (step 2), removing any order that reaches a
// terminal state this step.
func (e *Engine) processInstrument(instID model.InstrumentId, inst model.Instrument, tsEvent int64, prevBid, prevAsk model.Price) {
	book := e.bookFor(instID)
	orders := e.working[instID]
	remaining := orders[:0]
	for _, o := range orders {
		if o.Status.IsTerminal() {
			continue
		}
		e.tryOrder(o, inst, book, tsEvent, prevBid, prevAsk)
		if !o.Status.IsTerminal() {
			remaining = append(remaining, o)
		}
	}
	e.working[instID] = remaining
}

// tryOrder dispatches one working order against the current book state
// (step 2's per-type rules).
func (e *Engine) tryOrder(o *model.Order, inst model.Instrument, book *cache.Book, tsEvent int64, prevBid, prevAsk model.Price) {
	if o.Type.IsStopLike() && !e.triggered[o.ClientOrderId] {
		if o.Type == model.OrderTypeTrailingStop {
			e.updateTrailingTrigger(o, inst, book)
		}
		if !e.checkTrigger(o, book) {
			return
		}
		if err := e.exec.OnTriggered(model.OrderTriggered{
			ClientOrderId: o.ClientOrderId,
			InstrumentId:  o.InstrumentId,
			TriggerPrice:  *o.TriggerPrice,
			TsEvent:       tsEvent,
		}); err != nil {
			e.logger.Warn("trigger confirmation failed", "client_order_id", o.ClientOrderId, "err", err)
			return
		}
		e.triggered[o.ClientOrderId] = true
		if o.Type == model.OrderTypeStopLimit {
			e.tryLimit(o, inst, book, tsEvent)
			return
		}
		// Stop-Market / MarketIfTouched / TrailingStop: fill at market,
		// preserving the gap-vs-move-through distinction instead of
		// filling every stop-market at its trigger price during a gap.
		px, ok := e.gapAwareTriggerFill(o, book, prevBid, prevAsk, inst)
		if ok {
			e.applyFill(o, inst, px, o.Quantity.Sub(o.FilledQty), model.LiquidityTaker, tsEvent)
		}
		return
	}

	if e.triggered[o.ClientOrderId] {
		// already triggered in an earlier step but left with a remainder;
		// the rest of the order behaves like an ordinary market order.
		e.fillMarket(o, inst, book, tsEvent)
		return
	}

	switch o.Type {
	case model.OrderTypeMarket:
		e.fillMarket(o, inst, book, tsEvent)
	case model.OrderTypeMarketToLimit:
		e.tryMarketToLimit(o, inst, book, tsEvent)
	case model.OrderTypeLimit:
		e.tryLimit(o, inst, book, tsEvent)
	}
}

// touchForOrder returns the book side an order would execute against: the
// ask for a buy, the bid for a sell. Trigger detection for stop-like
// orders uses this same series, rather than a separate mid/last-trade
// reference, so the price path checked for crossing is the one the order
// would actually fill at.
func (e *Engine) touchForOrder(o *model.Order, book *cache.Book) (model.Price, bool) {
	if o.Side == model.SideBuy {
		px, _, ok := book.BestAsk()
		return px, ok
	}
	px, _, ok := book.BestBid()
	return px, ok
}

// triggerDirectionUp reports whether the order's trigger fires on price
// rising through TriggerPrice (true) or falling through it (false).
// Stop-like orders (Stop-Market/Limit/TrailingStop) trigger adversely to
// protect a position or chase a breakout: a buy stop fires on a rise, a
// sell stop on a fall. MarketIfTouched triggers favorably instead, so its
// direction is the opposite of a stop with the same side.
func triggerDirectionUp(o *model.Order) bool {
	if o.Type == model.OrderTypeMarketIfTouched {
		return o.Side == model.SideSell
	}
	return o.Side == model.SideBuy
}

func (e *Engine) checkTrigger(o *model.Order, book *cache.Book) bool {
	if o.TriggerPrice == nil {
		return false
	}
	cur, ok := e.touchForOrder(o, book)
	if !ok {
		return false
	}
	if triggerDirectionUp(o) {
		return cur.GreaterThan(*o.TriggerPrice) || cur.Equal(*o.TriggerPrice)
	}
	return cur.LessThan(*o.TriggerPrice) || cur.Equal(*o.TriggerPrice)
}

// gapAwareTriggerFill computes the fill price for a stop-like order the
// instant its trigger fires: a move-through (the new touch price is at
// most one tick past the trigger) fills at the trigger exactly; a gap (the
// new touch price is more than a tick past the trigger, e.g. a bar opening
// beyond it) fills at the first available level beyond the trigger — the
// new touch price — which is where the slippage shows up. With no previous
// touch price on record the fill is at the trigger.
func (e *Engine) gapAwareTriggerFill(o *model.Order, book *cache.Book, prevBid, prevAsk model.Price, inst model.Instrument) (model.Price, bool) {
	cur, ok := e.touchForOrder(o, book)
	if !ok {
		return model.Price{}, false
	}
	prev := prevAsk
	if o.Side == model.SideSell {
		prev = prevBid
	}
	trigger := *o.TriggerPrice
	tick := inst.TickSize()
	if prev.Decimal.IsZero() {
		return trigger, true
	}
	if triggerDirectionUp(o) {
		if cur.Decimal.Sub(trigger.Decimal).GreaterThan(tick) {
			return cur, true
		}
		return trigger, true
	}
	if trigger.Decimal.Sub(cur.Decimal).GreaterThan(tick) {
		return cur, true
	}
	return trigger, true
}

// updateTrailingTrigger recomputes a TrailingStop's trigger as the market
// moves favorably, using the order's Tags["trail_offset"] as the trailing
// distance (a plain decimal string in price units). A trigger only ever
// ratchets toward the market, never back away from it, matching a
// trailing stop's one-directional-adjustment contract. A missing or
// unparsable offset leaves the trigger untouched, behaving as a fixed stop.
func (e *Engine) updateTrailingTrigger(o *model.Order, inst model.Instrument, book *cache.Book) {
	raw, ok := o.Tags["trail_offset"]
	if !ok {
		return
	}
	offset, err := decimal.NewFromString(raw)
	if err != nil || !offset.IsPositive() {
		return
	}
	px, ok := e.touchForOrder(o, book)
	if !ok {
		return
	}
	if o.Side == model.SideBuy {
		candidate := model.NewPrice(px.Decimal.Add(offset), inst.PricePrecision())
		if o.TriggerPrice == nil || candidate.LessThan(*o.TriggerPrice) {
			o.TriggerPrice = &candidate
		}
		return
	}
	candidate := model.NewPrice(px.Decimal.Sub(offset), inst.PricePrecision())
	if o.TriggerPrice == nil || candidate.GreaterThan(*o.TriggerPrice) {
		o.TriggerPrice = &candidate
	}
}

// fillMarket fills an order's remaining quantity immediately via the
// configured FillModel.
func (e *Engine) fillMarket(o *model.Order, inst model.Instrument, book *cache.Book, tsEvent int64) {
	remaining := o.Quantity.Sub(o.FilledQty)
	if remaining.IsZero() {
		return
	}
	px, qty, liquidity, ok := e.fillModel.Fill(book, o.Side, remaining, inst)
	if !ok {
		return
	}
	e.applyFill(o, inst, px, qty, liquidity, tsEvent)
}

// tryLimit fills a limit order when it is marketable, at the better of its
// limit price and the touched price.
func (e *Engine) tryLimit(o *model.Order, inst model.Instrument, book *cache.Book, tsEvent int64) {
	if o.Price == nil {
		return
	}
	touch, ok := e.touchForOrder(o, book)
	if !ok {
		return
	}
	fillPx := *o.Price
	if o.Side == model.SideBuy {
		if touch.GreaterThan(fillPx) {
			return
		}
		if touch.LessThan(fillPx) {
			fillPx = touch
		}
	} else {
		if touch.LessThan(fillPx) {
			return
		}
		if touch.GreaterThan(fillPx) {
			fillPx = touch
		}
	}
	remaining := o.Quantity.Sub(o.FilledQty)
	e.applyFill(o, inst, fillPx, remaining, model.LiquidityTaker, tsEvent)
}

// tryMarketToLimit converts the order to a resting limit at the first
// touched price, then defers to tryLimit for the actual fill check — a
// Market-to-Limit order that cannot fully fill on arrival rests at the
// price it first touched rather than chasing the book further.
func (e *Engine) tryMarketToLimit(o *model.Order, inst model.Instrument, book *cache.Book, tsEvent int64) {
	if o.Price == nil {
		touch, ok := e.touchForOrder(o, book)
		if !ok {
			return
		}
		o.Price = &touch
	}
	e.tryLimit(o, inst, book, tsEvent)
}

func (e *Engine) applyFill(o *model.Order, inst model.Instrument, px model.Price, qty model.Quantity, liquidity model.LiquiditySide, tsEvent int64) {
	feeRate := inst.TakerFee()
	if liquidity == model.LiquidityMaker {
		feeRate = inst.MakerFee()
	}
	notional := px.Decimal.Mul(qty.Decimal)
	commission := model.NewMoney(notional.Mul(feeRate), inst.SettlementCurrency())
	e.tradeSeq++
	tradeID := fmt.Sprintf("%s-TRD-%d", e.venue, e.tradeSeq)

	fill := model.Fill{
		ClientOrderId: o.ClientOrderId,
		VenueOrderId:  e.voiByCOI[o.ClientOrderId],
		InstrumentId:  o.InstrumentId,
		Side:          o.Side,
		Quantity:      qty,
		Price:         px,
		Commission:    commission,
		Liquidity:     liquidity,
		TradeId:       tradeID,
		TsEvent:       tsEvent,
		TsInit:        tsEvent,
	}
	if err := e.exec.OnFilled(fill); err != nil {
		e.logger.Warn("simulated fill rejected by execution engine", "client_order_id", o.ClientOrderId, "err", err)
		return
	}
	e.tradeHistory = append(e.tradeHistory, model.TradeReport{
		ClientOrderId: fill.ClientOrderId,
		VenueOrderId:  fill.VenueOrderId,
		InstrumentId:  fill.InstrumentId,
		Side:          fill.Side,
		Quantity:      fill.Quantity,
		Price:         fill.Price,
		Commission:    fill.Commission,
		TradeId:       fill.TradeId,
		TsEvent:       tsEvent,
	})
}

var _ execution.ExecutionClient = (*Engine)(nil)
