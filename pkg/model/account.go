package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AccountType selects cash vs margin settlement semantics.
type AccountType int

const (
	AccountTypeCash AccountType = iota
	AccountTypeMargin
)

func (t AccountType) String() string {
	if t == AccountTypeMargin {
		return "MARGIN"
	}
	return "CASH"
}

// Balance tracks total/locked/free for one currency within an account.
type Balance struct {
	Total  Money
	Locked Money
	Free   Money
}

func newZeroBalance(ccy Currency) Balance {
	zero := NewMoney(decimal.Zero, ccy)
	return Balance{Total: zero, Locked: zero, Free: zero}
}

// Account is a venue-scoped ledger of balances plus, for margin accounts,
// initial/maintenance margin and free collateral.
type Account struct {
	AccountId      AccountId
	Type           AccountType
	Balances       map[string]Balance // keyed by currency code
	MarginInit     Money
	MarginMaint    Money
	baseCurrency   Currency
}

// NewAccount constructs an empty account. baseCurrency is used to report
// equity when a fill settles in a currency with no existing balance yet.
func NewAccount(id AccountId, accType AccountType, baseCurrency Currency) *Account {
	return &Account{
		AccountId:    id,
		Type:         accType,
		Balances:     make(map[string]Balance),
		MarginInit:   NewMoney(decimal.Zero, baseCurrency),
		MarginMaint:  NewMoney(decimal.Zero, baseCurrency),
		baseCurrency: baseCurrency,
	}
}

// Balance returns the account's balance in ccy, zero-valued if untouched.
func (a *Account) Balance(ccy Currency) Balance {
	if bal, ok := a.Balances[ccy.Code]; ok {
		return bal
	}
	return newZeroBalance(ccy)
}

// ApplyDelta adjusts the free/total balance in ccy by delta (positive credit,
// negative debit). Cash accounts call this directly on settlement.
func (a *Account) ApplyDelta(ccy Currency, delta decimal.Decimal) {
	bal := a.Balance(ccy)
	bal.Total = NewMoney(bal.Total.Decimal.Add(delta), ccy)
	bal.Free = NewMoney(bal.Free.Decimal.Add(delta), ccy)
	a.Balances[ccy.Code] = bal
}

// Lock moves amount from free to locked in ccy, used when an order reserves
// funds before acceptance. Returns ErrInsufficientBalance if free is short.
func (a *Account) Lock(ccy Currency, amount decimal.Decimal) error {
	bal := a.Balance(ccy)
	if bal.Free.Decimal.LessThan(amount) {
		return fmt.Errorf("account %s: lock %s %s: %w", a.AccountId, amount, ccy.Code, ErrInsufficientBalance)
	}
	bal.Free = NewMoney(bal.Free.Decimal.Sub(amount), ccy)
	bal.Locked = NewMoney(bal.Locked.Decimal.Add(amount), ccy)
	a.Balances[ccy.Code] = bal
	return nil
}

// Unlock reverses a prior Lock, e.g. on order cancel.
func (a *Account) Unlock(ccy Currency, amount decimal.Decimal) {
	bal := a.Balance(ccy)
	bal.Locked = NewMoney(bal.Locked.Decimal.Sub(amount), ccy)
	bal.Free = NewMoney(bal.Free.Decimal.Add(amount), ccy)
	a.Balances[ccy.Code] = bal
}

// Equity returns free + used margin + unrealized P&L for a margin account,
// or the base-currency total balance for a cash account (invariant).
func (a *Account) Equity(unrealizedPnl Money) Money {
	if a.Type == AccountTypeCash {
		return a.Balance(a.baseCurrency).Total
	}
	bal := a.Balance(a.baseCurrency)
	equity := bal.Free.Decimal.Add(a.MarginInit.Decimal).Add(unrealizedPnl.Decimal)
	return NewMoney(equity, a.baseCurrency)
}

// IsLiquidatable reports whether a margin account with open exposure has
// breached equity <= 0 (emit AccountLiquidated, close_all_positions).
func (a *Account) IsLiquidatable(unrealizedPnl Money, hasOpenPositions bool) bool {
	if a.Type != AccountTypeMargin || !hasOpenPositions {
		return false
	}
	return !a.Equity(unrealizedPnl).Decimal.IsPositive()
}
