// Package portfolio implements the kernel's Portfolio component: on
// every fill it settles commission and notional against the
// venue account's balances and recomputes margin, and it computes
// unrealized P&L on demand — never on every tick — from the cache's
// latest quote. Like the cache and ExecutionEngine, a Portfolio is mutated
// only from the kernel's single event-loop thread.
package portfolio

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/nautilus-go/core/internal/cache"
	"github.com/nautilus-go/core/internal/execution"
	"github.com/nautilus-go/core/pkg/model"
)

// Portfolio is the sole writer of Account state, mirroring the
// ExecutionEngine's sole-writer role for orders/positions.
type Portfolio struct {
	cache   *cache.Cache
	exec    *execution.Engine
	publish execution.Publisher
	logger  *slog.Logger
}

// NewPortfolio constructs a Portfolio. publish may be nil; logger may be nil.
func NewPortfolio(c *cache.Cache, exec *execution.Engine, publish execution.Publisher, logger *slog.Logger) *Portfolio {
	if publish == nil {
		publish = func(string, any) {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Portfolio{cache: c, exec: exec, publish: publish, logger: logger.With("component", "portfolio")}
}

// accountFor resolves the venue-scoped account for an instrument, lazily
// creating a Cash account on first touch. Strategies that need Margin
// semantics must create that venue's account explicitly before trading —
// Portfolio never guesses account type.
func (p *Portfolio) accountFor(instID model.InstrumentId, settlementCcy model.Currency) (*model.Account, error) {
	accID, err := model.NewAccountId(instID.Venue.String())
	if err != nil {
		return nil, err
	}
	acct, err := p.cache.Account(accID)
	if err != nil {
		acct = model.NewAccount(accID, model.AccountTypeCash, settlementCcy)
		p.cache.AddAccount(acct)
	}
	return acct, nil
}

// HandleOrderFilled adapts the msgbus.Handler signature so the kernel can
// subscribe Portfolio directly to "events.order.filled".
func (p *Portfolio) HandleOrderFilled(_ string, data any) {
	ev, ok := data.(model.OrderFilled)
	if !ok {
		return
	}
	if err := p.OnFilled(ev.Fill); err != nil {
		p.logger.Warn("portfolio fill settlement failed", "client_order_id", ev.Fill.ClientOrderId, "err", err)
	}
}

// OnFilled settles a fill against its venue account: a Cash
// account debits/credits the settlement currency by notional plus
// commission; a Margin account debits commission from free collateral and
// recomputes initial/maintenance margin from the strategy's now-current
// open notional on the instrument. It then checks the account's
// liquidation invariant and flattens everything if breached.
func (p *Portfolio) OnFilled(fill model.Fill) error {
	inst, err := p.cache.Instrument(fill.InstrumentId)
	if err != nil {
		return err
	}
	order, err := p.cache.Order(fill.ClientOrderId)
	if err != nil {
		return err
	}

	acct, err := p.accountFor(fill.InstrumentId, inst.SettlementCurrency())
	if err != nil {
		return err
	}

	notional := fill.Price.Decimal.Mul(fill.Quantity.Decimal)
	switch acct.Type {
	case model.AccountTypeCash:
		p.settleCash(acct, fill, notional, inst)
	case model.AccountTypeMargin:
		p.settleMargin(acct, fill, order.StrategyId, inst)
	}

	hasOpen := len(p.cache.Positions().OpenPositions(order.StrategyId, fill.InstrumentId)) > 0
	unrealized := p.UnrealizedPnl(order.StrategyId, fill.InstrumentId, inst)
	if acct.IsLiquidatable(unrealized, hasOpen) {
		p.publish("events.account.liquidated", model.AccountLiquidated{
			AccountId: acct.AccountId,
			Equity:    acct.Equity(unrealized),
			TsEvent:   fill.TsEvent,
		})
		p.closeAllPositions(order.StrategyId, fill.TsEvent)
	}
	return nil
}

// settleCash moves the full notional plus commission out of (into) the
// account on a buy (sell). The kernel's Instrument has a single settlement
// currency rather than a distinct base/quote pair, so this is the
// single-currency form of "debits/credits base and quote".
func (p *Portfolio) settleCash(acct *model.Account, fill model.Fill, notional decimal.Decimal, inst model.Instrument) {
	ccy := inst.SettlementCurrency()
	sign := decimal.NewFromInt(-1)
	if fill.Side == model.SideSell {
		sign = decimal.NewFromInt(1)
	}
	delta := notional.Mul(sign).Sub(fill.Commission.Decimal)
	acct.ApplyDelta(ccy, delta)
}

// settleMargin debits commission from free collateral, then recomputes
// initial/maintenance margin from scratch off the strategy's current open
// notional on the instrument — recomputing rather than incrementally
// adjusting means a closing fill naturally drops margin to zero as soon as
// OpenPositions reports nothing left open, with no separate release path
// to keep in sync.
func (p *Portfolio) settleMargin(acct *model.Account, fill model.Fill, strategyID model.StrategyId, inst model.Instrument) {
	ccy := inst.SettlementCurrency()
	acct.ApplyDelta(ccy, fill.Commission.Decimal.Neg())

	notional := decimal.Zero
	for _, pos := range p.cache.Positions().OpenPositions(strategyID, fill.InstrumentId) {
		notional = notional.Add(pos.AvgPxOpen.Decimal.Mul(pos.SignedQty.Decimal))
	}
	acct.MarginInit = model.NewMoney(notional.Mul(inst.MarginInit()), ccy)
	acct.MarginMaint = model.NewMoney(notional.Mul(inst.MarginMaint()), ccy)
}

// UnrealizedPnl computes open P&L for a (strategy, instrument) position on
// demand from the cache's latest quote mid price, not recalculated on
// every tick. Returns zero if there is no open position or no quote has
// arrived yet.
func (p *Portfolio) UnrealizedPnl(strategyID model.StrategyId, instID model.InstrumentId, inst model.Instrument) model.Money {
	ccy := inst.SettlementCurrency()
	zero := model.NewMoney(decimal.Zero, ccy)

	positions := p.cache.Positions().OpenPositions(strategyID, instID)
	if len(positions) == 0 {
		return zero
	}
	quote, ok := p.cache.Quote(instID)
	if !ok {
		return zero
	}
	mid := quote.BidPrice.Decimal.Add(quote.AskPrice.Decimal).Div(decimal.NewFromInt(2))

	total := decimal.Zero
	for _, pos := range positions {
		diff := mid.Sub(pos.AvgPxOpen.Decimal)
		if pos.Side == model.PositionShort {
			diff = pos.AvgPxOpen.Decimal.Sub(mid)
		}
		total = total.Add(diff.Mul(pos.SignedQty.Decimal))
	}
	return model.NewMoney(total, ccy)
}

// Equity returns an account's current equity, folding in unrealized P&L
// for the given (strategy, instrument), maintaining the invariant
// `free + used_margin + unrealized_pnl = equity`.
func (p *Portfolio) Equity(accountID model.AccountId, strategyID model.StrategyId, instID model.InstrumentId) (model.Money, error) {
	acct, err := p.cache.Account(accountID)
	if err != nil {
		return model.Money{}, err
	}
	inst, err := p.cache.Instrument(instID)
	if err != nil {
		return model.Money{}, err
	}
	return acct.Equity(p.UnrealizedPnl(strategyID, instID, inst)), nil
}

// closeAllPositions flattens every open position a strategy carries by
// routing opposing reduce-only market orders through the ExecutionEngine —
// close_all_positions, fired when an account breaches its
// liquidation invariant.
func (p *Portfolio) closeAllPositions(strategyID model.StrategyId, tsEvent int64) {
	for _, inst := range p.cache.Instruments() {
		for _, pos := range p.cache.Positions().OpenPositions(strategyID, inst.ID()) {
			side := model.SideSell
			if pos.Side == model.PositionShort {
				side = model.SideBuy
			}
			qty, err := inst.MakeQty(pos.SignedQty.Decimal)
			if err != nil {
				p.logger.Warn("close-all-positions quantity rounding failed", "instrument", inst.ID(), "err", err)
				continue
			}
			order := &model.Order{
				InstrumentId: inst.ID(),
				StrategyId:   strategyID,
				Side:         side,
				Type:         model.OrderTypeMarket,
				Quantity:     qty,
				ReduceOnly:   true,
				Status:       model.OrderStatusInitialized,
			}
			if err := p.exec.SubmitOrder(order, tsEvent); err != nil {
				p.logger.Warn("close-all-positions submission failed", "instrument", inst.ID(), "err", err)
			}
		}
	}
}
