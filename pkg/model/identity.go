// Package model defines the shared data vocabulary of the trading kernel —
// identifiers, instruments, market data, orders, positions, and accounts.
// It has no dependency on any internal package, so it can be imported by
// every layer of the kernel and by adapters.
package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// isASCII rejects any non-ASCII codepoint. Constructors below use it to
// enforce that identifiers and currency codes never carry characters a
// venue wire format can silently mangle.
func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}

func validateNonEmptyASCII(kind, s string) error {
	if s == "" {
		return fmt.Errorf("%s: %w", kind, ErrEmptyIdentifier)
	}
	if !isASCII(s) {
		return fmt.Errorf("%s %q: %w", kind, s, ErrNonASCIIIdentifier)
	}
	return nil
}

// Symbol is the venue-local instrument code, e.g. "BTCUSDT".
type Symbol struct{ value string }

// NewSymbol validates and constructs a Symbol. ASCII-only, non-empty.
func NewSymbol(value string) (Symbol, error) {
	if err := validateNonEmptyASCII("symbol", value); err != nil {
		return Symbol{}, err
	}
	return Symbol{value: value}, nil
}

func (s Symbol) String() string { return s.value }
func (s Symbol) IsZero() bool   { return s.value == "" }

// Venue identifies the trading venue, e.g. "BINANCE".
type Venue struct{ value string }

// NewVenue validates and constructs a Venue. ASCII-only, non-empty.
func NewVenue(value string) (Venue, error) {
	if err := validateNonEmptyASCII("venue", value); err != nil {
		return Venue{}, err
	}
	return Venue{value: value}, nil
}

func (v Venue) String() string { return v.value }
func (v Venue) IsZero() bool   { return v.value == "" }

// InstrumentId is the unique (Symbol, Venue) pair identifying an instrument.
type InstrumentId struct {
	Symbol Symbol
	Venue  Venue
}

// NewInstrumentId builds an InstrumentId from raw symbol/venue strings.
func NewInstrumentId(symbol, venue string) (InstrumentId, error) {
	sym, err := NewSymbol(symbol)
	if err != nil {
		return InstrumentId{}, err
	}
	ven, err := NewVenue(venue)
	if err != nil {
		return InstrumentId{}, err
	}
	return InstrumentId{Symbol: sym, Venue: ven}, nil
}

func (id InstrumentId) String() string {
	return fmt.Sprintf("%s.%s", id.Symbol, id.Venue)
}

func (id InstrumentId) IsZero() bool {
	return id.Symbol.IsZero() && id.Venue.IsZero()
}

// stringID is the common representation for the opaque, dash-delimited
// identifier types below (TraderId, StrategyId, ...). Each wraps it so the
// Go type system keeps them from being accidentally interchanged.
type stringID struct{ value string }

func newStringID(kind, value string) (stringID, error) {
	if err := validateNonEmptyASCII(kind, value); err != nil {
		return stringID{}, err
	}
	return stringID{value: value}, nil
}

func (s stringID) String() string { return s.value }
func (s stringID) IsZero() bool   { return s.value == "" }

// TraderId identifies the trader owning a kernel instance, e.g. "TRADER-001".
type TraderId struct{ stringID }

func NewTraderId(value string) (TraderId, error) {
	id, err := newStringID("trader_id", value)
	return TraderId{id}, err
}

// StrategyId identifies a strategy instance, e.g. "EMACross-001".
type StrategyId struct{ stringID }

func NewStrategyId(value string) (StrategyId, error) {
	id, err := newStringID("strategy_id", value)
	return StrategyId{id}, err
}

// ExternalStrategyId is the synthetic strategy bound to reconciled positions
// that reconciliation could not attribute to a running strategy.
var ExternalStrategyId = StrategyId{stringID{value: "EXTERNAL"}}

// ClientOrderId is assigned by the ExecutionEngine, unique per trader.
type ClientOrderId struct{ stringID }

func NewClientOrderId(value string) (ClientOrderId, error) {
	id, err := newStringID("client_order_id", value)
	return ClientOrderId{id}, err
}

// VenueOrderId is assigned by the venue on acceptance.
type VenueOrderId struct{ stringID }

func NewVenueOrderId(value string) (VenueOrderId, error) {
	id, err := newStringID("venue_order_id", value)
	return VenueOrderId{id}, err
}

// PositionId identifies a position. Under HEDGING OMS many can exist for one
// (strategy, instrument) pair; under NETTING at most one is open at a time.
type PositionId struct{ stringID }

func NewPositionId(value string) (PositionId, error) {
	id, err := newStringID("position_id", value)
	return PositionId{id}, err
}

// AccountId identifies an account, e.g. "BINANCE-001".
type AccountId struct{ stringID }

func NewAccountId(value string) (AccountId, error) {
	id, err := newStringID("account_id", value)
	return AccountId{id}, err
}

// UUID4 wraps a random UUID used for correlation ids (requests, commands).
type UUID4 struct{ value uuid.UUID }

// NewUUID4 generates a fresh random UUID4.
func NewUUID4() UUID4 {
	return UUID4{value: uuid.New()}
}

// ParseUUID4 parses a UUID4 from its canonical string form.
func ParseUUID4(s string) (UUID4, error) {
	v, err := uuid.Parse(s)
	if err != nil {
		return UUID4{}, fmt.Errorf("parse uuid4 %q: %w", s, err)
	}
	return UUID4{value: v}, nil
}

func (u UUID4) String() string { return u.value.String() }
func (u UUID4) IsZero() bool   { return u.value == uuid.Nil }

// ClientOrderIdTag composes a strategy-scoped client order id: the
// ExecutionEngine uses this so external observers can demultiplex which
// strategy generated a given order.
func ClientOrderIdTag(strategyTag string, seq uint64) (ClientOrderId, error) {
	strategyTag = strings.TrimSpace(strategyTag)
	if strategyTag == "" {
		return ClientOrderId{}, fmt.Errorf("client order tag: %w", ErrEmptyIdentifier)
	}
	return NewClientOrderId(fmt.Sprintf("O-%s-%d", strategyTag, seq))
}
