// Package risk implements the kernel's pre-trade RiskEngine: a stateless,
// ordered sequence of checks run against every order command before it
// reaches the ExecutionEngine. "Stateless" describes the checks
// themselves — no check depends on the outcome of a previous order — the
// engine still tracks per-strategy submission timestamps for the rate-limit
// check, which is itself a stateless computation over that rolling window.
package risk

import (
	"log/slog"

	"github.com/nautilus-go/core/internal/cache"
	"github.com/nautilus-go/core/internal/clock"
	"github.com/nautilus-go/core/pkg/model"
)

// RateLimitConfig bounds order submission rate per strategy (the order-
// rate check). WindowNs is the rolling window; MaxOrders is the cap within it.
type RateLimitConfig struct {
	MaxOrders int
	WindowNs  int64
}

// Engine runs seven pre-trade checks in order, short-
// circuiting on first failure. It depends only on the Cache for read-only
// lookups (instruments, positions, accounts) — it never mutates cache state
// itself, leaving that to the ExecutionEngine once a command passes.
type Engine struct {
	cache       *cache.Cache
	clk         clock.Clock
	rateLimit   RateLimitConfig
	submissions map[model.StrategyId][]int64
	killSwitch  *KillSwitch
	logger      *slog.Logger
}

// NewEngine constructs a RiskEngine. logger may be nil, in which case
// slog.Default() is used. killSwitchCooldownNs configures the account-level
// kill switch (tripped through KillSwitch().Trip or its TripOnLiquidation
// bus handler); 0 disables the cooldown.
func NewEngine(c *cache.Cache, clk clock.Clock, rateLimit RateLimitConfig, killSwitchCooldownNs int64, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "risk")
	return &Engine{
		cache:       c,
		clk:         clk,
		rateLimit:   rateLimit,
		submissions: make(map[model.StrategyId][]int64),
		killSwitch:  NewKillSwitch(killSwitchCooldownNs, logger),
		logger:      logger,
	}
}

// KillSwitch exposes the engine's account-level kill switch so the kernel
// can subscribe it to "events.account.liquidated" at construction time.
func (e *Engine) KillSwitch() *KillSwitch { return e.killSwitch }

// Check runs every pre-trade check against order in sequence,
// returning the first failure as an OrderDenied event, or nil if every
// check passes. accountID identifies the account the order would draw
// balance from; empty skips the balance check (margin accounts
// reserve via margin instead, checked by the portfolio layer on fill).
func (e *Engine) Check(order *model.Order, accountID model.AccountId, tsEvent int64) *model.OrderDenied {
	if !accountID.IsZero() {
		if active, reason := e.killSwitch.Active(accountID, tsEvent); active {
			e.logger.Warn("order denied", "client_order_id", order.ClientOrderId, "reason", model.DeniedKillSwitchActive, "detail", reason)
			return &model.OrderDenied{
				ClientOrderId: order.ClientOrderId,
				InstrumentId:  order.InstrumentId,
				Reason:        model.DeniedKillSwitchActive,
				Detail:        reason,
				TsEvent:       tsEvent,
			}
		}
	}
	checks := []func(*model.Order, model.AccountId, int64) (model.DeniedReason, string, bool){
		e.checkInstrumentKnownAndTradable,
		e.checkQuantity,
		e.checkPrice,
		e.checkNotional,
		e.checkReduceOnly,
		e.checkOrderRate,
		e.checkCashBalance,
	}
	for _, check := range checks {
		reason, detail, ok := check(order, accountID, tsEvent)
		if !ok {
			e.logger.Warn("order denied", "client_order_id", order.ClientOrderId, "reason", reason, "detail", detail)
			return &model.OrderDenied{
				ClientOrderId: order.ClientOrderId,
				InstrumentId:  order.InstrumentId,
				Reason:        reason,
				Detail:        detail,
				TsEvent:       tsEvent,
			}
		}
	}
	e.recordSubmission(order.StrategyId, tsEvent)
	return nil
}

// checkInstrumentKnownAndTradable is check 1: the instrument must be known
// to the cache, not expired, and the order's type must be one the
// instrument's class permits. Binary options settle at 0/1 and have no
// meaningful trigger price, so stop-like order types are rejected for them.
func (e *Engine) checkInstrumentKnownAndTradable(order *model.Order, _ model.AccountId, tsEvent int64) (model.DeniedReason, string, bool) {
	inst, err := e.cache.Instrument(order.InstrumentId)
	if err != nil {
		return model.DeniedUnknownInstrument, err.Error(), false
	}
	if exp, has := inst.Expiration(); has && tsEvent >= exp.UnixNano() {
		return model.DeniedUnknownInstrument, "instrument expired", false
	}
	if inst.Class() == model.InstrumentClassBinaryOption && order.Type.IsStopLike() {
		return model.DeniedInvalidOrderKindForInstrument, "stop-like orders are not valid for binary options", false
	}
	return 0, "", true
}

// checkQuantity is check 2: quantity must respect the instrument's min/max
// and already be expressed at its size precision.
func (e *Engine) checkQuantity(order *model.Order, _ model.AccountId, _ int64) (model.DeniedReason, string, bool) {
	inst, err := e.cache.Instrument(order.InstrumentId)
	if err != nil {
		return model.DeniedUnknownInstrument, err.Error(), false
	}
	if order.Quantity.LessThan(inst.MinQuantity()) {
		return model.DeniedQuantityOutOfRange, "quantity below instrument minimum", false
	}
	if order.Quantity.GreaterThan(inst.MaxQuantity()) {
		return model.DeniedQuantityOutOfRange, "quantity above instrument maximum", false
	}
	rounded, err := inst.MakeQty(order.Quantity.Decimal)
	if err != nil || !rounded.Equal(order.Quantity) {
		return model.DeniedQuantityOutOfRange, "quantity not aligned to instrument size precision", false
	}
	return 0, "", true
}

// checkPrice is check 3: a present price must be positive and aligned to
// the instrument's tick size.
func (e *Engine) checkPrice(order *model.Order, _ model.AccountId, _ int64) (model.DeniedReason, string, bool) {
	if order.Price == nil {
		return 0, "", true
	}
	inst, err := e.cache.Instrument(order.InstrumentId)
	if err != nil {
		return model.DeniedUnknownInstrument, err.Error(), false
	}
	if !order.Price.IsPositive() {
		return model.DeniedPriceOutOfRange, "price must be positive", false
	}
	tick := inst.TickSize()
	if !tick.IsZero() && !order.Price.Decimal.Mod(tick).IsZero() {
		return model.DeniedPriceOutOfRange, "price is not aligned to instrument tick size", false
	}
	return 0, "", true
}

// checkNotional is check 4: notional must not exceed the instrument's
// configured maximum. Market orders carry no price, so notional is
// estimated off the cached quote's opposing side when available; with no
// reference price at all, the check is skipped rather than guessed at.
func (e *Engine) checkNotional(order *model.Order, _ model.AccountId, _ int64) (model.DeniedReason, string, bool) {
	inst, err := e.cache.Instrument(order.InstrumentId)
	if err != nil {
		return model.DeniedUnknownInstrument, err.Error(), false
	}
	px := order.Price
	if px == nil {
		quote, ok := e.cache.Quote(order.InstrumentId)
		if !ok {
			return 0, "", true
		}
		ref := quote.AskPrice
		if order.Side == model.SideSell {
			ref = quote.BidPrice
		}
		px = &ref
	}
	notional := px.Decimal.Mul(order.Quantity.Decimal)
	max := inst.MaxNotional()
	if notional.GreaterThan(max.Decimal) {
		return model.DeniedNotionalExceedsMax, "order notional exceeds instrument maximum", false
	}
	return 0, "", true
}

// checkReduceOnly is check 5: a reduce-only order with no opposing open
// position is rejected (REDUCE_ONLY_REJECTED).
func (e *Engine) checkReduceOnly(order *model.Order, _ model.AccountId, _ int64) (model.DeniedReason, string, bool) {
	if !order.ReduceOnly {
		return 0, "", true
	}
	positions := e.cache.Positions().OpenPositions(order.StrategyId, order.InstrumentId)
	for _, pos := range positions {
		opposes := (pos.Side == model.PositionLong && order.Side == model.SideSell) ||
			(pos.Side == model.PositionShort && order.Side == model.SideBuy)
		if opposes {
			return 0, "", true
		}
	}
	return model.DeniedReduceOnlyRejected, "no opposing open position for reduce-only order", false
}

// checkOrderRate is check 6: submissions per strategy within WindowNs must
// stay under MaxOrders. A zero-valued RateLimitConfig disables the check.
func (e *Engine) checkOrderRate(order *model.Order, _ model.AccountId, tsEvent int64) (model.DeniedReason, string, bool) {
	if e.rateLimit.MaxOrders <= 0 {
		return 0, "", true
	}
	recent := e.submissions[order.StrategyId]
	cutoff := tsEvent - e.rateLimit.WindowNs
	count := 0
	for _, ts := range recent {
		if ts > cutoff {
			count++
		}
	}
	if count >= e.rateLimit.MaxOrders {
		return model.DeniedOrderRateExceeded, "order submission rate exceeds configured cap", false
	}
	return 0, "", true
}

// checkCashBalance is check 7: a cash account must hold enough free quote
// currency to cover a buy order's notional. Sells against a cash account
// draw down the position tracked in the Cache, not the currency balance, so
// they are not checked here — this is the fix for the known bug where
// frozen-funds accounting double-counted the same order against both base
// and quote: by only ever reserving the quote side, the base side is never
// touched at all.
func (e *Engine) checkCashBalance(order *model.Order, accountID model.AccountId, _ int64) (model.DeniedReason, string, bool) {
	if order.Side != model.SideBuy {
		return 0, "", true
	}
	account, err := e.cache.Account(accountID)
	if err != nil || account.Type != model.AccountTypeCash {
		return 0, "", true
	}
	inst, err := e.cache.Instrument(order.InstrumentId)
	if err != nil {
		return model.DeniedUnknownInstrument, err.Error(), false
	}
	px := order.Price
	if px == nil {
		quote, ok := e.cache.Quote(order.InstrumentId)
		if !ok {
			return 0, "", true
		}
		px = &quote.AskPrice
	}
	required := px.Decimal.Mul(order.Quantity.Decimal)
	free := account.Balance(inst.SettlementCurrency()).Free
	if free.Decimal.LessThan(required) {
		return model.DeniedInsufficientBalance, "insufficient free balance to cover order notional", false
	}
	return 0, "", true
}

// recordSubmission appends tsEvent to the strategy's rolling window,
// evicting entries older than the window so the slice does not grow
// unbounded over a long session.
func (e *Engine) recordSubmission(strategyID model.StrategyId, tsEvent int64) {
	cutoff := tsEvent - e.rateLimit.WindowNs
	recent := e.submissions[strategyID]
	kept := recent[:0]
	for _, ts := range recent {
		if ts > cutoff {
			kept = append(kept, ts)
		}
	}
	e.submissions[strategyID] = append(kept, tsEvent)
}
