// Package execution implements the kernel's ExecutionEngine:
// order command routing, ClientOrderId assignment, venue-report
// correlation, OMS-scoped position bookkeeping, contingency order
// handling, and venue reconciliation. Like the cache it depends on, an
// Engine is mutated only from the kernel's single event-loop thread.
package execution

import (
	"fmt"
	"log/slog"

	"github.com/nautilus-go/core/internal/cache"
	"github.com/nautilus-go/core/pkg/model"
)

// ExecutionClient is the venue-side capability the ExecutionEngine routes
// order commands through. Implementations push the
// corresponding OrderX events and reports back via the Engine's On*
// methods; this interface only covers the outbound half.
type ExecutionClient interface {
	Venue() string
	SubmitOrder(order *model.Order) error
	ModifyOrder(coi model.ClientOrderId, qty *model.Quantity, price *model.Price) error
	CancelOrder(coi model.ClientOrderId) error
	CancelAllOrders(instID model.InstrumentId) error
	GenerateOrderStatusReports() ([]model.OrderStatusReport, error)
	GeneratePositionStatusReports() ([]model.PositionStatusReport, error)
	GenerateTradeReports() ([]model.TradeReport, error)
}

// Publisher is the subset of the message bus the engine needs to announce
// domain events — kept narrow so tests can supply a bare func.
type Publisher func(topic string, data any)

// Engine routes order commands to the right ExecutionClient by venue,
// assigns ClientOrderIds, correlates venue reports back to cached orders,
// and maintains positions under the configured OMS.
type Engine struct {
	cache   *cache.Cache
	clients map[string]ExecutionClient
	tag     string
	seq     uint64
	publish Publisher
	logger  *slog.Logger
}

// NewEngine constructs an ExecutionEngine. tag is appended to generated
// ClientOrderIds so external observers can demultiplex strategies sharing
// one kernel instance. logger may be nil.
func NewEngine(c *cache.Cache, tag string, publish Publisher, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if publish == nil {
		publish = func(string, any) {}
	}
	return &Engine{
		cache:   c,
		clients: make(map[string]ExecutionClient),
		tag:     tag,
		publish: publish,
		logger:  logger.With("component", "execution"),
	}
}

// RegisterClient wires an ExecutionClient for the venue it reports.
func (e *Engine) RegisterClient(client ExecutionClient) {
	e.clients[client.Venue()] = client
}

func (e *Engine) clientFor(instID model.InstrumentId) (ExecutionClient, error) {
	client, ok := e.clients[instID.Venue.String()]
	if !ok {
		return nil, fmt.Errorf("execution client for venue %s: %w", instID.Venue, model.ErrNoExecutionClient)
	}
	return client, nil
}

// NextClientOrderId generates a unique, strategy-scoped ClientOrderId.
func (e *Engine) NextClientOrderId(strategyID model.StrategyId) (model.ClientOrderId, error) {
	e.seq++
	return model.NewClientOrderId(fmt.Sprintf("%s-%s-%d", strategyID, e.tag, e.seq))
}

// SubmitOrder indexes order in the cache, transitions it to Submitted, and
// routes it to the venue's ExecutionClient. A routing or venue-side
// rejection transitions the order straight to Rejected and publishes
// OrderRejected rather than leaving it stuck Submitted.
func (e *Engine) SubmitOrder(order *model.Order, tsEvent int64) error {
	if order.ClientOrderId.IsZero() {
		coi, err := e.NextClientOrderId(order.StrategyId)
		if err != nil {
			return err
		}
		order.ClientOrderId = coi
	}
	// a contingency child may already be cached (created alongside its
	// parent, awaiting OTO activation) — only index it if this is its
	// first submission
	if _, err := e.cache.Order(order.ClientOrderId); err != nil {
		if err := e.cache.AddOrder(order); err != nil {
			return err
		}
	}
	if err := order.Transition(model.OrderStatusSubmitted, tsEvent); err != nil {
		return err
	}

	client, err := e.clientFor(order.InstrumentId)
	if err != nil {
		e.reject(order, err.Error(), tsEvent)
		return err
	}
	if err := client.SubmitOrder(order); err != nil {
		e.reject(order, err.Error(), tsEvent)
		return err
	}
	return nil
}

func (e *Engine) reject(order *model.Order, reason string, tsEvent int64) {
	if err := order.Transition(model.OrderStatusRejected, tsEvent); err != nil {
		e.logger.Warn("order rejection transition ignored", "client_order_id", order.ClientOrderId, "err", err)
	}
	e.publish("events.order.rejected", model.OrderRejected{
		ClientOrderId: order.ClientOrderId,
		InstrumentId:  order.InstrumentId,
		Reason:        reason,
		TsEvent:       tsEvent,
	})
}

// CancelOrder routes a cancel command to the order's venue client.
func (e *Engine) CancelOrder(coi model.ClientOrderId) error {
	order, err := e.cache.Order(coi)
	if err != nil {
		return err
	}
	client, err := e.clientFor(order.InstrumentId)
	if err != nil {
		return err
	}
	return client.CancelOrder(coi)
}

// OnAccepted correlates an OrderAccepted report back to its cached order by
// ClientOrderId, links the venue-assigned id, and transitions the FSM.
func (e *Engine) OnAccepted(ev model.OrderAccepted) error {
	order, err := e.resolve(ev.ClientOrderId, model.VenueOrderId{})
	if err != nil {
		return err
	}
	e.cache.LinkVenueOrderId(ev.VenueOrderId, order.ClientOrderId)
	if err := order.Transition(model.OrderStatusAccepted, ev.TsEvent); err != nil {
		e.logger.Warn("ignoring invalid transition on accept", "err", err)
		return nil
	}
	e.publish("events.order.accepted", ev)
	return nil
}

// OnRejected correlates and applies a venue rejection.
func (e *Engine) OnRejected(ev model.OrderRejected) error {
	order, err := e.resolve(ev.ClientOrderId, model.VenueOrderId{})
	if err != nil {
		return err
	}
	if err := order.Transition(model.OrderStatusRejected, ev.TsEvent); err != nil {
		e.logger.Warn("ignoring invalid transition on reject", "err", err)
		return nil
	}
	e.publish("events.order.rejected", ev)
	return nil
}

// OnCanceled correlates and applies a venue cancel confirmation.
func (e *Engine) OnCanceled(ev model.OrderCanceled) error {
	order, err := e.resolve(ev.ClientOrderId, ev.VenueOrderId)
	if err != nil {
		return err
	}
	if err := order.Transition(model.OrderStatusCanceled, ev.TsEvent); err != nil {
		e.logger.Warn("ignoring invalid transition on cancel", "err", err)
		return nil
	}
	e.publish("events.order.canceled", ev)
	return nil
}

// OnExpired correlates and applies a time-in-force expiry.
func (e *Engine) OnExpired(ev model.OrderExpired) error {
	order, err := e.resolve(ev.ClientOrderId, model.VenueOrderId{})
	if err != nil {
		return err
	}
	if err := order.Transition(model.OrderStatusExpired, ev.TsEvent); err != nil {
		e.logger.Warn("ignoring invalid transition on expire", "err", err)
		return nil
	}
	e.publish("events.order.expired", ev)
	return nil
}

// OnTriggered correlates and applies a stop-like order's trigger firing.
func (e *Engine) OnTriggered(ev model.OrderTriggered) error {
	order, err := e.resolve(ev.ClientOrderId, model.VenueOrderId{})
	if err != nil {
		return err
	}
	if err := order.Transition(model.OrderStatusTriggered, ev.TsEvent); err != nil {
		e.logger.Warn("ignoring invalid transition on trigger", "err", err)
		return nil
	}
	e.publish("events.order.triggered", ev)
	return nil
}

// OnFilled applies a fill: updates the order's filled quantity/average
// price (transitioning to PartiallyFilled or Filled), opens or updates the
// OMS-scoped position, and runs contingency handling for the order's
// sibling/child orders (contingency types).
func (e *Engine) OnFilled(fill model.Fill) error {
	order, err := e.resolve(fill.ClientOrderId, fill.VenueOrderId)
	if err != nil {
		return err
	}
	inst, err := e.cache.Instrument(order.InstrumentId)
	if err != nil {
		return err
	}
	if err := order.ApplyFill(fill.Quantity, fill.Price, inst.PricePrecision(), fill.TsEvent); err != nil {
		return err
	}

	posID, err := model.NewPositionId(fmt.Sprintf("%s-%s", order.StrategyId, order.InstrumentId))
	if err != nil {
		return err
	}
	if _, err := e.cache.Positions().Open(posID, order.InstrumentId, order.StrategyId, fill, inst.PricePrecision(), inst.SettlementCurrency()); err != nil {
		return err
	}

	e.publish("events.order.filled", model.OrderFilled{
		Fill:      fill,
		FilledQty: order.FilledQty,
		AvgPx:     order.AvgPx,
		Status:    order.Status,
	})

	e.handleContingency(order, fill.Quantity, fill.TsEvent)
	return nil
}

// resolve looks an order up by ClientOrderId, falling back to VenueOrderId
// when the client id is zero-valued (a venue report that only carries its
// own assigned id) — "ClientOrderId first, VenueOrderId second."
func (e *Engine) resolve(coi model.ClientOrderId, voi model.VenueOrderId) (*model.Order, error) {
	if !coi.IsZero() {
		return e.cache.Order(coi)
	}
	return e.cache.OrderByVenueId(voi)
}

// handleContingency runs the linked-order side effects of a fill, per the
// order's ContingencyType. Linkage is always via the order's own
// LinkedOrderIds, set at creation time — never inferred from instrument or
// strategy — so unrelated bracket groups can never cross-update each other
// (the documented OUO bracket-collapse bug this avoids).
func (e *Engine) handleContingency(order *model.Order, fillQty model.Quantity, tsEvent int64) {
	switch order.ContingencyType {
	case model.ContingencyOTO:
		if order.Status != model.OrderStatusFilled {
			return
		}
		for _, childID := range order.LinkedOrderIds {
			child, err := e.cache.Order(childID)
			if err != nil || child.Status != model.OrderStatusInitialized {
				continue
			}
			if err := e.SubmitOrder(child, tsEvent); err != nil {
				e.logger.Warn("OTO child submission failed", "child", childID, "err", err)
			}
		}
	case model.ContingencyOCO:
		for _, siblingID := range order.LinkedOrderIds {
			e.reduceOrCancelSibling(siblingID, fillQty, tsEvent)
		}
	case model.ContingencyOUO:
		for _, siblingID := range order.LinkedOrderIds {
			e.reduceOrCancelSibling(siblingID, fillQty, tsEvent)
		}
	}
}

// reduceOrCancelSibling shrinks a linked order's resting quantity by the
// amount just filled on its sibling, canceling it outright once that
// leaves nothing left to work (OCO/OUO).
func (e *Engine) reduceOrCancelSibling(siblingID model.ClientOrderId, fillQty model.Quantity, tsEvent int64) {
	sibling, err := e.cache.Order(siblingID)
	if err != nil || sibling.Status.IsTerminal() {
		return
	}
	client, err := e.clientFor(sibling.InstrumentId)
	if err != nil {
		return
	}
	remaining := sibling.Quantity.Sub(sibling.FilledQty)
	newQty := remaining.Sub(fillQty)
	if !newQty.GreaterThan(model.Quantity{}) {
		if err := client.CancelOrder(siblingID); err != nil {
			e.logger.Warn("sibling cancel failed", "sibling", siblingID, "err", err)
		}
		return
	}
	target := sibling.FilledQty.Add(newQty)
	if err := client.ModifyOrder(siblingID, &target, nil); err != nil {
		e.logger.Warn("sibling quantity reduction failed", "sibling", siblingID, "err", err)
	}
}

// Reconcile pulls order and position status reports from every registered
// venue client and merges them against cached state. It must
// run at kernel startup before the first strategy on_start callback.
func (e *Engine) Reconcile() error {
	for venue, client := range e.clients {
		orderReports, err := client.GenerateOrderStatusReports()
		if err != nil {
			return fmt.Errorf("reconcile %s order reports: %w", venue, err)
		}
		reported := make(map[model.ClientOrderId]bool, len(orderReports))
		for _, report := range orderReports {
			reported[report.ClientOrderId] = true
			e.reconcileOrder(report)
		}
		e.markMissingOrdersTerminal(venue, reported)

		positionReports, err := client.GeneratePositionStatusReports()
		if err != nil {
			return fmt.Errorf("reconcile %s position reports: %w", venue, err)
		}
		for _, report := range positionReports {
			e.reconcilePosition(report)
		}

		tradeReports, err := client.GenerateTradeReports()
		if err != nil {
			return fmt.Errorf("reconcile %s trade reports: %w", venue, err)
		}
		for _, report := range tradeReports {
			e.reconcileTrade(report)
		}
	}
	return nil
}

// reconcileTrade replays a venue trade the cached order has not yet
// absorbed — a fill that landed while the kernel was offline, surfaced
// only by the venue's trade history rather than a live event.
func (e *Engine) reconcileTrade(report model.TradeReport) {
	order, err := e.resolve(report.ClientOrderId, report.VenueOrderId)
	if err != nil || order.FilledQty.GreaterThan(report.Quantity) || order.FilledQty.Equal(report.Quantity) {
		return
	}
	inst, err := e.cache.Instrument(report.InstrumentId)
	if err != nil {
		return
	}
	delta, err := model.NewQuantity(report.Quantity.Decimal.Sub(order.FilledQty.Decimal), inst.SizePrecision())
	if err != nil {
		return
	}
	if err := e.OnFilled(model.Fill{
		ClientOrderId: report.ClientOrderId,
		VenueOrderId:  report.VenueOrderId,
		InstrumentId:  report.InstrumentId,
		Side:          report.Side,
		Quantity:      delta,
		Price:         report.Price,
		Commission:    report.Commission,
		TradeId:       report.TradeId,
		TsEvent:       report.TsEvent,
	}); err != nil {
		e.logger.Warn("trade reconciliation fill failed", "client_order_id", report.ClientOrderId, "err", err)
	}
}

// reconcileOrder handles one OrderStatusReport: a cached, non-terminal order
// whose status differs takes the venue's status and fill state; an order
// present at the venue but absent from the cache is inserted as an external
// order owned by the synthetic diff strategy.
func (e *Engine) reconcileOrder(report model.OrderStatusReport) {
	existing, err := e.cache.Order(report.ClientOrderId)
	if err != nil {
		external := &model.Order{
			ClientOrderId: report.ClientOrderId,
			VenueOrderId:  report.VenueOrderId,
			InstrumentId:  report.InstrumentId,
			StrategyId:    model.ExternalStrategyId,
			Side:          report.Side,
			Type:          report.Type,
			Quantity:      report.Quantity,
			FilledQty:     report.FilledQty,
			AvgPx:         report.AvgPx,
			Status:        model.OrderStatusInitialized,
			TsInit:        report.TsEvent,
		}
		_ = external.Transition(model.OrderStatusSubmitted, report.TsEvent)
		if err := e.cache.AddOrder(external); err != nil {
			e.logger.Warn("external order insert failed", "client_order_id", report.ClientOrderId, "err", err)
			return
		}
		e.cache.LinkVenueOrderId(report.VenueOrderId, report.ClientOrderId)
		if err := external.Transition(report.Status, report.TsEvent); err != nil {
			e.logger.Warn("external order status transition ignored", "err", err)
		}
		return
	}

	if existing.Status != report.Status && !existing.Status.IsTerminal() {
		if err := existing.Transition(report.Status, report.TsEvent); err != nil {
			e.logger.Warn("reconciliation status transition ignored", "client_order_id", report.ClientOrderId, "err", err)
		}
		existing.FilledQty = report.FilledQty
		existing.AvgPx = report.AvgPx
	}
}

// markMissingOrdersTerminal closes out cached open orders the venue no
// longer reports at all — the "missing at venue, present in cache as open"
// case, distinct from reconcileOrder's per-report diffing.
func (e *Engine) markMissingOrdersTerminal(venue string, reported map[model.ClientOrderId]bool) {
	for _, order := range e.cache.Orders() {
		if order.Status.IsTerminal() || order.InstrumentId.Venue.String() != venue {
			continue
		}
		if reported[order.ClientOrderId] {
			continue
		}
		if err := order.Transition(model.OrderStatusCanceled, order.TsLastEvent); err != nil {
			e.logger.Warn("reconciliation terminal-mark ignored", "client_order_id", order.ClientOrderId, "err", err)
		}
	}
}

// reconcilePosition inserts a venue position the cache has no record of.
// Under HEDGING, PositionBook.Put keys by PositionId, so distinct
// venue-reported positions on the same instrument all survive rather than
// collapsing into one.
func (e *Engine) reconcilePosition(report model.PositionStatusReport) {
	open := e.cache.Positions().OpenPositions(model.ExternalStrategyId, report.InstrumentId)
	for _, pos := range open {
		if pos.SignedQty.Equal(report.SignedQty) && pos.Side == report.Side {
			return
		}
	}
	inst, err := e.cache.Instrument(report.InstrumentId)
	if err != nil {
		e.logger.Warn("external position on unknown instrument", "instrument_id", report.InstrumentId, "err", err)
		return
	}
	posID, err := model.NewPositionId(fmt.Sprintf("EXTERNAL-%s-%d", report.InstrumentId, report.TsEvent))
	if err != nil {
		e.logger.Warn("external position id failed", "err", err)
		return
	}
	side := model.SideBuy
	if report.Side == model.PositionShort {
		side = model.SideSell
	}
	fill := model.Fill{
		InstrumentId: report.InstrumentId,
		Side:         side,
		Quantity:     report.SignedQty,
		Price:        report.AvgPxOpen,
		TsEvent:      report.TsEvent,
	}
	pos, err := e.cache.Positions().Open(posID, report.InstrumentId, model.ExternalStrategyId, fill, inst.PricePrecision(), inst.SettlementCurrency())
	if err != nil {
		e.logger.Warn("external position open failed", "err", err)
		return
	}
	e.cache.Positions().Put(pos)
}
