package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PositionSide is the current directional exposure of a position.
type PositionSide int

const (
	PositionFlat PositionSide = iota
	PositionLong
	PositionShort
)

func (s PositionSide) String() string {
	switch s {
	case PositionLong:
		return "LONG"
	case PositionShort:
		return "SHORT"
	default:
		return "FLAT"
	}
}

// OmsType selects how fills on the same (strategy, instrument) combine into
// positions.
type OmsType int

const (
	OmsNetting OmsType = iota
	OmsHedging
)

func (o OmsType) String() string {
	if o == OmsHedging {
		return "HEDGING"
	}
	return "NETTING"
}

// Position tracks signed exposure and realized P&L for one (strategy,
// instrument) entry under NETTING, or one discrete entry under HEDGING.
type Position struct {
	PositionId   PositionId
	InstrumentId InstrumentId
	StrategyId   StrategyId
	Side         PositionSide
	SignedQty    Quantity // magnitude only; Side carries direction
	AvgPxOpen    Price
	AvgPxClose   Price
	RealizedPnl  Money
	Commissions  Money
	Events       []Fill
	TsOpened     int64
	TsClosed     int64
	closed       bool
}

// NewPosition opens a position from its first fill.
func NewPosition(id PositionId, instrumentID InstrumentId, strategyID StrategyId, oms OmsType, fill Fill, pricePrecision uint8, settlementCcy Currency) *Position {
	side := PositionLong
	if fill.Side == SideSell {
		side = PositionShort
	}
	return &Position{
		PositionId:   id,
		InstrumentId: instrumentID,
		StrategyId:   strategyID,
		Side:         side,
		SignedQty:    fill.Quantity,
		AvgPxOpen:    fill.Price,
		RealizedPnl:  NewMoney(decimal.Zero, settlementCcy),
		Commissions:  fill.Commission,
		Events:       []Fill{fill},
		TsOpened:     fill.TsEvent,
	}
}

// IsOpen reports whether the position still carries non-zero exposure.
func (p *Position) IsOpen() bool { return !p.closed }

// ApplyFill folds a new fill into the position under NETTING semantics:
// same-side fills extend the position at a weighted-average entry price;
// opposite-side fills reduce it, realizing P&L on the closed quantity, and
// flip the side if the fill's quantity exceeds the remaining exposure.
// pricePrecision rounds avg-price recomputation to the instrument's grid.
func (p *Position) ApplyFill(fill Fill, pricePrecision uint8) {
	p.Events = append(p.Events, fill)
	p.Commissions = p.Commissions.Add(fill.Commission)

	fillSide := PositionLong
	if fill.Side == SideSell {
		fillSide = PositionShort
	}

	if p.Side == PositionFlat {
		p.Side = fillSide
		p.SignedQty = fill.Quantity
		p.AvgPxOpen = fill.Price
		p.TsOpened = fill.TsEvent
		p.closed = false
		return
	}

	if fillSide == p.Side {
		// Same-side fill: extend at weighted-average entry.
		prevNotional := p.AvgPxOpen.Decimal.Mul(p.SignedQty.Decimal)
		fillNotional := fill.Price.Decimal.Mul(fill.Quantity.Decimal)
		newQty := p.SignedQty.Add(fill.Quantity)
		avg := prevNotional.Add(fillNotional).Div(newQty.Decimal)
		p.AvgPxOpen = NewPrice(avg, pricePrecision)
		p.SignedQty = newQty
		return
	}

	// Opposite-side fill: reduce, realize P&L on the closed quantity.
	closedQty := MinQuantity(p.SignedQty, fill.Quantity)
	pnlPerUnit := p.AvgPxOpen.Decimal.Sub(fill.Price.Decimal)
	if p.Side == PositionLong {
		pnlPerUnit = fill.Price.Decimal.Sub(p.AvgPxOpen.Decimal)
	}
	realized := pnlPerUnit.Mul(closedQty.Decimal)
	p.RealizedPnl = NewMoney(p.RealizedPnl.Decimal.Add(realized), p.RealizedPnl.Currency)
	p.AvgPxClose = fill.Price

	remainingOnOpenSide := p.SignedQty.Sub(closedQty)
	remainingOnFillSide := fill.Quantity.Sub(closedQty)

	switch {
	case remainingOnOpenSide.IsZero() && remainingOnFillSide.IsZero():
		p.SignedQty = remainingOnOpenSide
		p.Side = PositionFlat
		p.closed = true
		p.TsClosed = fill.TsEvent
	case remainingOnOpenSide.IsZero():
		// Fill overshoots: position flips to the fill's side.
		p.Side = fillSide
		p.SignedQty = remainingOnFillSide
		p.AvgPxOpen = fill.Price
		p.closed = false
	default:
		p.SignedQty = remainingOnOpenSide
	}
}

// PositionBook keys open/closed positions for reconciliation and lookup.
// Under NETTING at most one entry exists per (strategy, instrument); under
// HEDGING many may.
type PositionBook struct {
	Oms   OmsType
	byKey map[positionKey][]*Position
	byId  map[PositionId]*Position
}

type positionKey struct {
	strategy   string
	instrument string
}

// NewPositionBook constructs an empty book for the given OMS type.
func NewPositionBook(oms OmsType) *PositionBook {
	return &PositionBook{
		Oms:   oms,
		byKey: make(map[positionKey][]*Position),
		byId:  make(map[PositionId]*Position),
	}
}

func keyFor(strategyID StrategyId, instrumentID InstrumentId) positionKey {
	return positionKey{strategy: strategyID.String(), instrument: instrumentID.String()}
}

// Open positions under NETTING returns the existing position (creating it
// on first fill); under HEDGING always starts a fresh one, honoring the
// invariant that NETTING collapses fills to a single open
// position while HEDGING keeps every entry distinct.
func (b *PositionBook) Open(newID PositionId, instrumentID InstrumentId, strategyID StrategyId, fill Fill, pricePrecision uint8, settlementCcy Currency) (*Position, error) {
	key := keyFor(strategyID, instrumentID)

	if b.Oms == OmsNetting {
		for _, pos := range b.byKey[key] {
			if pos.IsOpen() {
				pos.ApplyFill(fill, pricePrecision)
				return pos, nil
			}
		}
	}

	pos := NewPosition(newID, instrumentID, strategyID, b.Oms, fill, pricePrecision, settlementCcy)
	b.byKey[key] = append(b.byKey[key], pos)
	b.byId[newID] = pos
	return pos, nil
}

// OpenPositions returns every currently-open position for a (strategy,
// instrument) pair — at most one under NETTING, any number under HEDGING.
func (b *PositionBook) OpenPositions(strategyID StrategyId, instrumentID InstrumentId) []*Position {
	var open []*Position
	for _, pos := range b.byKey[keyFor(strategyID, instrumentID)] {
		if pos.IsOpen() {
			open = append(open, pos)
		}
	}
	return open
}

// Get looks up a position by id.
func (b *PositionBook) Get(id PositionId) (*Position, error) {
	pos, ok := b.byId[id]
	if !ok {
		return nil, fmt.Errorf("position %s: %w", id, ErrPositionNotFound)
	}
	return pos, nil
}

// Put inserts or overwrites a position by id, used by reconciliation when
// inserting an external position discovered only at the venue.
func (b *PositionBook) Put(pos *Position) {
	key := keyFor(pos.StrategyId, pos.InstrumentId)
	b.byId[pos.PositionId] = pos
	for i, existing := range b.byKey[key] {
		if existing.PositionId == pos.PositionId {
			b.byKey[key][i] = pos
			return
		}
	}
	b.byKey[key] = append(b.byKey[key], pos)
}
