package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Price is a fixed-precision instrument price. It is rounded to a fixed
// number of decimal places at construction so comparisons and arithmetic
// never drift through float rounding; it is not snapped to a tick size.
type Price struct {
	decimal.Decimal
}

// NewPrice constructs a Price rounded to precision decimal places.
func NewPrice(value decimal.Decimal, precision uint8) Price {
	return Price{value.Round(int32(precision))}
}

// ParsePrice parses a decimal string into a Price at the given precision.
func ParsePrice(s string, precision uint8) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, fmt.Errorf("parse price %q: %w", s, err)
	}
	return NewPrice(d, precision), nil
}

func (p Price) Add(other Price) Price      { return Price{p.Decimal.Add(other.Decimal)} }
func (p Price) Sub(other Price) Price      { return Price{p.Decimal.Sub(other.Decimal)} }
func (p Price) GreaterThan(o Price) bool   { return p.Decimal.GreaterThan(o.Decimal) }
func (p Price) LessThan(o Price) bool      { return p.Decimal.LessThan(o.Decimal) }
func (p Price) Equal(o Price) bool         { return p.Decimal.Equal(o.Decimal) }
func (p Price) IsZero() bool               { return p.Decimal.IsZero() }
func (p Price) IsPositive() bool           { return p.Decimal.IsPositive() }

// Quantity is a fixed-precision instrument size, always non-negative.
type Quantity struct {
	decimal.Decimal
}

// NewQuantity constructs a Quantity rounded to precision decimal places.
// Negative input is rejected; orders encode direction via Side, not sign.
func NewQuantity(value decimal.Decimal, precision uint8) (Quantity, error) {
	if value.IsNegative() {
		return Quantity{}, fmt.Errorf("quantity %s: %w", value.String(), ErrReduceOnlyViolation)
	}
	return Quantity{value.Round(int32(precision))}, nil
}

// ParseQuantity parses a decimal string into a Quantity at the given precision.
func ParseQuantity(s string, precision uint8) (Quantity, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Quantity{}, fmt.Errorf("parse quantity %q: %w", s, err)
	}
	return NewQuantity(d, precision)
}

func (q Quantity) Add(other Quantity) Quantity {
	return Quantity{q.Decimal.Add(other.Decimal)}
}

func (q Quantity) Sub(other Quantity) Quantity {
	return Quantity{q.Decimal.Sub(other.Decimal)}
}

func (q Quantity) GreaterThan(o Quantity) bool { return q.Decimal.GreaterThan(o.Decimal) }
func (q Quantity) LessThan(o Quantity) bool    { return q.Decimal.LessThan(o.Decimal) }
func (q Quantity) Equal(o Quantity) bool       { return q.Decimal.Equal(o.Decimal) }
func (q Quantity) IsZero() bool                { return q.Decimal.IsZero() }

// MinQuantity returns the smaller of two quantities, used by
// Position.ApplyFill to size the quantity an opposite-side fill closes.
func MinQuantity(a, b Quantity) Quantity {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Money is a currency-tagged monetary amount. Arithmetic between Money
// values of different currencies panics rather than silently producing a
// nonsensical sum — portfolio code is expected to convert explicitly.
type Money struct {
	decimal.Decimal
	Currency Currency
}

// NewMoney constructs a Money value rounded to the currency's precision.
func NewMoney(value decimal.Decimal, currency Currency) Money {
	return Money{value.Round(int32(currency.Precision)), currency}
}

// ParseMoney parses a decimal string into a Money value.
func ParseMoney(s string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parse money %q: %w", s, err)
	}
	return NewMoney(d, currency), nil
}

func (m Money) mustMatch(other Money) {
	if m.Currency.Code != other.Currency.Code {
		panic(fmt.Sprintf("money currency mismatch: %s vs %s", m.Currency.Code, other.Currency.Code))
	}
}

func (m Money) Add(other Money) Money {
	m.mustMatch(other)
	return NewMoney(m.Decimal.Add(other.Decimal), m.Currency)
}

func (m Money) Sub(other Money) Money {
	m.mustMatch(other)
	return NewMoney(m.Decimal.Sub(other.Decimal), m.Currency)
}

func (m Money) Neg() Money { return NewMoney(m.Decimal.Neg(), m.Currency) }

func (m Money) GreaterThan(o Money) bool {
	m.mustMatch(o)
	return m.Decimal.GreaterThan(o.Decimal)
}

func (m Money) LessThan(o Money) bool {
	m.mustMatch(o)
	return m.Decimal.LessThan(o.Decimal)
}

func (m Money) IsZero() bool     { return m.Decimal.IsZero() }
func (m Money) IsNegative() bool { return m.Decimal.IsNegative() }

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Decimal.StringFixed(int32(m.Currency.Precision)), m.Currency.Code)
}
