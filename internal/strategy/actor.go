// Package strategy hosts the Strategy/Actor lifecycle: the generic
// component wiring (clock, bus, cache, risk, execution) and typed
// submit/subscribe helpers every concrete strategy embeds, plus a sample
// Avellaneda-Stoikov market maker exercising them end to end.
package strategy

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nautilus-go/core/internal/cache"
	"github.com/nautilus-go/core/internal/clock"
	"github.com/nautilus-go/core/internal/execution"
	"github.com/nautilus-go/core/internal/msgbus"
	"github.com/nautilus-go/core/internal/risk"
	"github.com/nautilus-go/core/pkg/model"
)

// ErrActorStopped is returned by Start when called again after Stop — a
// stopped actor's bus subscriptions are already torn down and cannot be
// cheaply re-armed.
var ErrActorStopped = errors.New("actor already stopped")

// State is an Actor's position in its lifecycle state machine.
type State int

const (
	StateReady State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "READY"
	}
}

// Actor is the generic lifecycle host every strategy embeds. It owns the
// wiring into the kernel's shared components and exposes typed
// submit/subscribe helpers so a concrete strategy implements only its own
// OnStart/OnStop/OnData-shaped callbacks, never the plumbing.
type Actor struct {
	TraderId   model.TraderId
	StrategyId model.StrategyId

	clk    clock.Clock
	bus    *msgbus.Bus
	cache  *cache.Cache
	risk   *risk.Engine
	exec   *execution.Engine
	logger *slog.Logger

	state State
	subs  []string
}

// NewActor constructs an Actor in StateReady. logger may be nil.
func NewActor(
	traderID model.TraderId,
	strategyID model.StrategyId,
	clk clock.Clock,
	bus *msgbus.Bus,
	c *cache.Cache,
	riskEngine *risk.Engine,
	exec *execution.Engine,
	logger *slog.Logger,
) *Actor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Actor{
		TraderId:   traderID,
		StrategyId: strategyID,
		clk:        clk,
		bus:        bus,
		cache:      c,
		risk:       riskEngine,
		exec:       exec,
		logger:     logger.With("component", "strategy", "strategy_id", strategyID.String()),
	}
}

// State reports the actor's current lifecycle position.
func (a *Actor) State() State { return a.state }

// Start transitions Ready -> Running. A second call while already running
// is a no-op; calling it after Stop is an error since this actor's bus
// subscriptions are already torn down.
func (a *Actor) Start() error {
	if a.state == StateRunning {
		return nil
	}
	if a.state == StateStopped {
		return fmt.Errorf("actor %s: %w", a.StrategyId, ErrActorStopped)
	}
	a.state = StateRunning
	return nil
}

// Stop transitions to Stopped and unsubscribes every pattern this actor
// registered via Subscribe — the bus holds the only strong reference to a
// subscription record, so this is the only cleanup a stopped actor needs.
func (a *Actor) Stop() {
	if a.state == StateStopped {
		return
	}
	for _, pattern := range a.subs {
		a.bus.Unsubscribe(pattern, a.StrategyId.String())
	}
	a.subs = nil
	a.state = StateStopped
}

// Subscribe registers handler for pattern under this actor's StrategyId and
// remembers the pattern so Stop can unwind it.
func (a *Actor) Subscribe(pattern string, handler msgbus.Handler) error {
	if err := a.bus.Subscribe(pattern, a.StrategyId.String(), handler); err != nil {
		return err
	}
	a.subs = append(a.subs, pattern)
	return nil
}

// Publish announces a domain event on the shared bus.
func (a *Actor) Publish(topic string, data any) { a.bus.Publish(topic, data) }

// timerName namespaces a timer under this actor's StrategyId so two
// strategies sharing one clock never collide on timer names.
func (a *Actor) timerName(name string) string { return a.StrategyId.String() + ":" + name }

// SetTimer wraps clock.Clock.SetTimer with the actor's timer namespace.
func (a *Actor) SetTimer(name string, intervalNs, startNs, stopNs int64, handler clock.Handler) error {
	return a.clk.SetTimer(a.timerName(name), intervalNs, startNs, stopNs, handler)
}

// SetTimeAlert wraps clock.Clock.SetTimeAlert with the actor's timer namespace.
func (a *Actor) SetTimeAlert(name string, atNs int64, handler clock.Handler) error {
	return a.clk.SetTimeAlert(a.timerName(name), atNs, handler)
}

// CancelTimer cancels a previously-set timer or alert by its unnamespaced name.
func (a *Actor) CancelTimer(name string) { a.clk.CancelTimer(a.timerName(name)) }

// SubmitOrder stamps the order with this actor's StrategyId and runs it
// through the RiskEngine's pre-trade checks before routing to the
// ExecutionEngine. A denial is published on "events.order.denied" and
// never reaches execution.
func (a *Actor) SubmitOrder(order *model.Order, accountID model.AccountId, tsEvent int64) error {
	order.StrategyId = a.StrategyId
	if denied := a.risk.Check(order, accountID, tsEvent); denied != nil {
		a.bus.Publish("events.order.denied", *denied)
		return fmt.Errorf("order denied: %s: %w", denied.Reason, model.ErrRiskDenied)
	}
	return a.exec.SubmitOrder(order, tsEvent)
}

// CancelOrder cancels a single working order by its client-assigned id.
func (a *Actor) CancelOrder(coi model.ClientOrderId) error { return a.exec.CancelOrder(coi) }

// CancelAllOrders cancels every non-terminal order this actor holds on an
// instrument. The ExecutionEngine itself has no venue-wide cancel-all (only
// its per-venue ExecutionClient does), so this walks the cache instead.
func (a *Actor) CancelAllOrders(instID model.InstrumentId) {
	for _, o := range a.cache.Orders() {
		if o.StrategyId != a.StrategyId || o.InstrumentId != instID || o.Status.IsTerminal() {
			continue
		}
		if err := a.exec.CancelOrder(o.ClientOrderId); err != nil {
			a.logger.Warn("cancel order failed", "client_order_id", o.ClientOrderId, "err", err)
		}
	}
}

// Cache exposes the shared cache for strategies that need direct reads
// (quotes, positions, instruments) beyond what the typed helpers cover.
func (a *Actor) Cache() *cache.Cache { return a.cache }

// Clock exposes the shared clock for strategies that need TimestampNs
// directly rather than through a timer callback.
func (a *Actor) Clock() clock.Clock { return a.clk }

// Logger returns the actor's scoped logger.
func (a *Actor) Logger() *slog.Logger { return a.logger }
