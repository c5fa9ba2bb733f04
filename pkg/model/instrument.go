package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// InstrumentClass distinguishes the instrument variants the kernel
// understands. Each variant carries the same essential attributes; the
// class mostly drives margin/settlement semantics in the portfolio layer.
type InstrumentClass int

const (
	InstrumentClassSpot InstrumentClass = iota
	InstrumentClassCryptoPerpetual
	InstrumentClassCryptoFuture
	InstrumentClassFuturesContract
	InstrumentClassOptionContract
	InstrumentClassEquity
	InstrumentClassCurrencyPair
	InstrumentClassBinaryOption
	InstrumentClassSyntheticInstrument
)

func (c InstrumentClass) String() string {
	switch c {
	case InstrumentClassSpot:
		return "SPOT"
	case InstrumentClassCryptoPerpetual:
		return "CRYPTO_PERPETUAL"
	case InstrumentClassCryptoFuture:
		return "CRYPTO_FUTURE"
	case InstrumentClassFuturesContract:
		return "FUTURES_CONTRACT"
	case InstrumentClassOptionContract:
		return "OPTION_CONTRACT"
	case InstrumentClassEquity:
		return "EQUITY"
	case InstrumentClassCurrencyPair:
		return "CURRENCY_PAIR"
	case InstrumentClassBinaryOption:
		return "BINARY_OPTION"
	case InstrumentClassSyntheticInstrument:
		return "SYNTHETIC_INSTRUMENT"
	default:
		return "UNKNOWN"
	}
}

// Instrument is the polymorphic contract every variant below satisfies. The
// RiskEngine and MatchingEngine only ever depend on this interface, never on
// a concrete variant, so a new instrument class needs no changes outside
// pkg/model.
type Instrument interface {
	ID() InstrumentId
	Class() InstrumentClass
	PricePrecision() uint8
	SizePrecision() uint8
	TickSize() decimal.Decimal
	Multiplier() decimal.Decimal
	MinQuantity() Quantity
	MaxQuantity() Quantity
	MinNotional() Money
	MaxNotional() Money
	MarginInit() decimal.Decimal
	MarginMaint() decimal.Decimal
	MakerFee() decimal.Decimal
	TakerFee() decimal.Decimal
	SettlementCurrency() Currency
	Expiration() (time.Time, bool)

	// MakePrice rounds an arbitrary decimal to this instrument's price
	// precision, the only sanctioned way to cross precision domains.
	MakePrice(value decimal.Decimal) Price
	// MakeQty rounds an arbitrary decimal to this instrument's size precision.
	MakeQty(value decimal.Decimal) (Quantity, error)
}

// Base holds the attributes common to every Instrument variant; each
// concrete variant below embeds it and overrides Class().
type Base struct {
	InstrumentID    InstrumentId
	PricePrecisionV uint8
	SizePrecisionV  uint8
	TickSizeV       decimal.Decimal
	MultiplierV     decimal.Decimal
	MinQuantityV    Quantity
	MaxQuantityV    Quantity
	MinNotionalV    Money
	MaxNotionalV    Money
	MarginInitV     decimal.Decimal
	MarginMaintV    decimal.Decimal
	MakerFeeV       decimal.Decimal
	TakerFeeV       decimal.Decimal
	SettlementCcy   Currency
	ExpirationV     time.Time
	HasExpiration   bool
}

func (b Base) ID() InstrumentId               { return b.InstrumentID }
func (b Base) PricePrecision() uint8          { return b.PricePrecisionV }
func (b Base) SizePrecision() uint8           { return b.SizePrecisionV }
func (b Base) TickSize() decimal.Decimal      { return b.TickSizeV }
func (b Base) Multiplier() decimal.Decimal    { return b.MultiplierV }
func (b Base) MinQuantity() Quantity          { return b.MinQuantityV }
func (b Base) MaxQuantity() Quantity          { return b.MaxQuantityV }
func (b Base) MinNotional() Money             { return b.MinNotionalV }
func (b Base) MaxNotional() Money             { return b.MaxNotionalV }
func (b Base) MarginInit() decimal.Decimal    { return b.MarginInitV }
func (b Base) MarginMaint() decimal.Decimal   { return b.MarginMaintV }
func (b Base) MakerFee() decimal.Decimal      { return b.MakerFeeV }
func (b Base) TakerFee() decimal.Decimal      { return b.TakerFeeV }
func (b Base) SettlementCurrency() Currency   { return b.SettlementCcy }
func (b Base) Expiration() (time.Time, bool)  { return b.ExpirationV, b.HasExpiration }

func (b Base) MakePrice(value decimal.Decimal) Price {
	return NewPrice(value, b.PricePrecisionV)
}

func (b Base) MakeQty(value decimal.Decimal) (Quantity, error) {
	return NewQuantity(value, b.SizePrecisionV)
}

// Spot is a physically-settled spot instrument.
type Spot struct{ Base }

func (s Spot) Class() InstrumentClass { return InstrumentClassSpot }

// CryptoPerpetual is a perpetual swap with funding rate settlement.
type CryptoPerpetual struct{ Base }

func (c CryptoPerpetual) Class() InstrumentClass { return InstrumentClassCryptoPerpetual }

// CryptoFuture is a dated, cash- or physically-settled crypto future.
type CryptoFuture struct{ Base }

func (c CryptoFuture) Class() InstrumentClass { return InstrumentClassCryptoFuture }

// FuturesContract is a traditional exchange futures contract.
type FuturesContract struct{ Base }

func (f FuturesContract) Class() InstrumentClass { return InstrumentClassFuturesContract }

// OptionContract is a traditional exchange options contract.
type OptionContract struct {
	Base
	Strike     decimal.Decimal
	IsCall     bool
	Underlying InstrumentId
}

func (o OptionContract) Class() InstrumentClass { return InstrumentClassOptionContract }

// Equity is a listed equity security.
type Equity struct{ Base }

func (e Equity) Class() InstrumentClass { return InstrumentClassEquity }

// CurrencyPair is a foreign-exchange pair.
type CurrencyPair struct {
	Base
	BaseCurrency  Currency
	QuoteCurrency Currency
}

func (c CurrencyPair) Class() InstrumentClass { return InstrumentClassCurrencyPair }

// BinaryOption settles to exactly 0 or 1 of the settlement currency, e.g.
// Polymarket-style prediction-market shares.
type BinaryOption struct{ Base }

func (b BinaryOption) Class() InstrumentClass { return InstrumentClassBinaryOption }

// SyntheticInstrument is derived from a formula over other instruments; the
// kernel treats it like any other instrument for order/risk purposes and
// leaves formula evaluation to the strategy layer.
type SyntheticInstrument struct {
	Base
	Components []InstrumentId
	Formula    string
}

func (s SyntheticInstrument) Class() InstrumentClass { return InstrumentClassSyntheticInstrument }

// ValidateInstrument checks the essential cross-field invariants a concrete
// instrument must satisfy regardless of variant.
func ValidateInstrument(inst Instrument) error {
	if inst.ID().IsZero() {
		return fmt.Errorf("instrument: %w", ErrEmptyIdentifier)
	}
	if inst.MinQuantity().GreaterThan(inst.MaxQuantity()) {
		return fmt.Errorf("instrument %s: min_qty > max_qty", inst.ID())
	}
	if inst.TickSize().IsNegative() || inst.TickSize().IsZero() {
		return fmt.Errorf("instrument %s: tick_size must be positive", inst.ID())
	}
	return nil
}
