// Package kernel is the central orchestrator: it wires the Cache, MessageBus,
// DataEngine, RiskEngine, ExecutionEngine and Portfolio together and runs the
// single cooperative event loop every strategy executes on.
//
// Order and book mutation never happens off this loop — a LiveClock's
// reactor goroutine only ever produces Events onto a channel, and Run is
// the one place that drains it and invokes handlers. A goroutine-per-
// concern shape is still used for adapter I/O (internal/adapter's WS
// reconnect loop, REST calls), but never for order or position state.
package kernel

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nautilus-go/core/internal/cache"
	"github.com/nautilus-go/core/internal/clock"
	"github.com/nautilus-go/core/internal/dataengine"
	"github.com/nautilus-go/core/internal/execution"
	"github.com/nautilus-go/core/internal/matching"
	"github.com/nautilus-go/core/internal/msgbus"
	"github.com/nautilus-go/core/internal/portfolio"
	"github.com/nautilus-go/core/internal/risk"
	"github.com/nautilus-go/core/pkg/model"
)

// Strategy is what the kernel needs to manage a strategy's lifecycle; both
// *strategy.Actor and anything embedding it (e.g. *strategy.MarketMaker)
// satisfy this.
type Strategy interface {
	OnStart() error
	Stop()
}

// Kernel owns every shared subsystem and the strategies running against
// them. One Kernel per trader, single-trader-instance scope.
type Kernel struct {
	TraderId model.TraderId

	clk   clock.Clock
	bus   *msgbus.Bus
	cache *cache.Cache

	dataEngine *dataengine.Engine
	riskEngine *risk.Engine
	execEngine *execution.Engine
	portfolio  *portfolio.Portfolio

	strategies []Strategy
	logger     *slog.Logger
}

// New wires a fresh Kernel: Cache, MessageBus, DataEngine, RiskEngine,
// ExecutionEngine, and Portfolio, with the Portfolio's account bookkeeping
// already subscribed to "events.order.filled" and the RiskEngine's kill
// switch subscribed to "events.account.liquidated". backtest selects the
// DataEngine's out-of-order handling mode. killSwitchCooldownNs bounds how
// long an account stays blocked from new submissions after a liquidation;
// 0 disables the cooldown.
func New(traderID model.TraderId, clk clock.Clock, oms model.OmsType, rateLimit risk.RateLimitConfig, killSwitchCooldownNs int64, backtest bool, logger *slog.Logger) *Kernel {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "kernel", "trader_id", traderID.String())

	c := cache.New(oms)
	bus := msgbus.New(logger)
	dataEngine := dataengine.New(c, bus, backtest, logger)
	riskEngine := risk.NewEngine(c, clk, rateLimit, killSwitchCooldownNs, logger)
	execEngine := execution.NewEngine(c, traderID.String(), bus.Publish, logger)
	port := portfolio.NewPortfolio(c, execEngine, bus.Publish, logger)

	k := &Kernel{
		TraderId:   traderID,
		clk:        clk,
		bus:        bus,
		cache:      c,
		dataEngine: dataEngine,
		riskEngine: riskEngine,
		execEngine: execEngine,
		portfolio:  port,
		logger:     logger,
	}

	if err := bus.Subscribe("events.order.filled", "kernel.portfolio", port.HandleOrderFilled); err != nil {
		logger.Error("failed to subscribe portfolio to fills", "err", err)
	}
	if err := bus.Subscribe("events.account.liquidated", "kernel.risk.killswitch", riskEngine.KillSwitch().TripOnLiquidation); err != nil {
		logger.Error("failed to subscribe kill switch to liquidations", "err", err)
	}
	return k
}

func (k *Kernel) Clock() clock.Clock                 { return k.clk }
func (k *Kernel) Bus() *msgbus.Bus                   { return k.bus }
func (k *Kernel) Cache() *cache.Cache                { return k.cache }
func (k *Kernel) DataEngine() *dataengine.Engine     { return k.dataEngine }
func (k *Kernel) RiskEngine() *risk.Engine           { return k.riskEngine }
func (k *Kernel) ExecutionEngine() *execution.Engine { return k.execEngine }
func (k *Kernel) Portfolio() *portfolio.Portfolio    { return k.portfolio }
func (k *Kernel) Logger() *slog.Logger               { return k.logger }

// RegisterExecutionClient wires a live venue adapter (or the simulated
// matching engine) into the ExecutionEngine's routing table.
func (k *Kernel) RegisterExecutionClient(client execution.ExecutionClient) {
	k.execEngine.RegisterClient(client)
}

// RegisterDataClient wires a live venue's market-data half in for both
// live subscription and historical Request calls.
func (k *Kernel) RegisterDataClient(venue string, client dataengine.DataClient) {
	k.dataEngine.RegisterClient(venue, client)
}

// RegisterBacktestVenue builds a simulated matching.Engine for venue,
// registers it as the ExecutionEngine's client for that venue, and feeds it
// every quote/book/bar update the DataEngine publishes so working orders are
// evaluated against the same historical data the strategy quotes from.
// fillModel may be nil for the default L1BestPriceFill.
func (k *Kernel) RegisterBacktestVenue(venue string, fillModel matching.FillModel) (*matching.Engine, error) {
	me := matching.NewEngine(venue, k.cache, k.execEngine, k.clk, fillModel, k.logger)
	k.execEngine.RegisterClient(me)

	subscriberID := "kernel.matching." + venue
	if err := k.bus.Subscribe("data.quotes.*", subscriberID, func(_ string, data any) {
		if q, ok := data.(model.QuoteTick); ok {
			me.OnQuote(q)
		}
	}); err != nil {
		return nil, fmt.Errorf("kernel: subscribe matching engine to quotes: %w", err)
	}
	if err := k.bus.Subscribe("data.book.*", subscriberID, func(_ string, data any) {
		if d, ok := data.(model.OrderBookDelta); ok {
			me.OnDelta(d)
		}
	}); err != nil {
		return nil, fmt.Errorf("kernel: subscribe matching engine to book deltas: %w", err)
	}
	if err := k.bus.Subscribe("data.bars.*", subscriberID, func(_ string, data any) {
		if b, ok := data.(model.Bar); ok {
			me.OnBar(b)
		}
	}); err != nil {
		return nil, fmt.Errorf("kernel: subscribe matching engine to bars: %w", err)
	}
	return me, nil
}

// AddStrategy registers a strategy to be started by Start and stopped by
// Stop. Strategies must be added before Start is called.
func (k *Kernel) AddStrategy(s Strategy) {
	k.strategies = append(k.strategies, s)
}

// Start reconciles execution state against every registered ExecutionClient
// and then starts every registered strategy, in the order they
// were added.
func (k *Kernel) Start() error {
	if err := k.execEngine.Reconcile(); err != nil {
		return fmt.Errorf("kernel: reconcile: %w", err)
	}
	for i, s := range k.strategies {
		if err := s.OnStart(); err != nil {
			return fmt.Errorf("kernel: strategy %d start: %w", i, err)
		}
	}
	return nil
}

// Stop stops every registered strategy and cancels all outstanding timers.
func (k *Kernel) Stop() {
	for _, s := range k.strategies {
		s.Stop()
	}
	k.clk.CancelAll()
}

// Run drains a LiveClock's event channel until ctx is canceled, dispatching
// each fired timer/alert on this single goroutine — the entire runtime's
// concurrency boundary for strategy and order-book state. Backtest
// replay does not call Run: it drives a TestClock directly via Advance.
func (k *Kernel) Run(ctx context.Context) error {
	lc, ok := k.clk.(*clock.LiveClock)
	if !ok {
		return fmt.Errorf("kernel: Run requires a LiveClock, got %T; drive backtests via Advance", k.clk)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-lc.Events():
			k.dispatch(ev)
		}
	}
}

// Advance drives a TestClock forward to toNs and dispatches every event that
// fires, for backtest replay loops that own their own pacing. It is a no-op,
// logged as a warning, if the kernel was not built with a TestClock.
func (k *Kernel) Advance(toNs int64) []clock.Event {
	tc, ok := k.clk.(*clock.TestClock)
	if !ok {
		k.logger.Warn("Advance called without a TestClock", "clock_type", fmt.Sprintf("%T", k.clk))
		return nil
	}
	events := tc.Advance(toNs)
	for _, ev := range events {
		k.dispatch(ev)
	}
	return events
}

// dispatch invokes a single timer/alert handler, recovering a panic into a
// log line rather than crashing the event loop — the same per-handler
// isolation internal/msgbus/bus.go applies to subscriber callbacks.
func (k *Kernel) dispatch(ev clock.Event) {
	defer func() {
		if r := recover(); r != nil {
			k.logger.Error("timer handler panicked", "timer", ev.Name, "panic", r)
		}
	}()
	ev.Handler(ev)
}
