package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/nautilus-go/core/internal/cache"
	"github.com/nautilus-go/core/pkg/model"
)

// Inventory reads a single (strategy, instrument) position straight out of
// the shared cache's PositionBook and derives the skew and exposure figures
// a quoting strategy needs — it carries no bookkeeping of its own, since
// the kernel's ExecutionEngine is already the one authoritative writer of
// position state.
type Inventory struct {
	cache        *cache.Cache
	strategyID   model.StrategyId
	instID       model.InstrumentId
	maxPositionV decimal.Decimal // normalizes NetDelta to [-1, 1]
}

// NewInventory builds an Inventory view over one (strategy, instrument)
// pair. maxPosition is the quantity at which NetDelta saturates to +/-1.
func NewInventory(c *cache.Cache, strategyID model.StrategyId, instID model.InstrumentId, maxPosition decimal.Decimal) *Inventory {
	return &Inventory{cache: c, strategyID: strategyID, instID: instID, maxPositionV: maxPosition}
}

// open returns the single open position for this (strategy, instrument)
// under NETTING, or nil if flat. Under HEDGING this returns the first open
// entry only — a strategy wanting to quote off aggregate HEDGING exposure
// should sum OpenPositions itself.
func (inv *Inventory) open() *model.Position {
	positions := inv.cache.Positions().OpenPositions(inv.strategyID, inv.instID)
	if len(positions) == 0 {
		return nil
	}
	return positions[0]
}

// NetDelta returns inventory skew in [-1, 1]: +1 fully long at maxPosition,
// -1 fully short, 0 flat. This is the "q" parameter in the
// Avellaneda-Stoikov reservation-price adjustment.
func (inv *Inventory) NetDelta() float64 {
	pos := inv.open()
	if pos == nil || inv.maxPositionV.IsZero() {
		return 0
	}
	signed := pos.SignedQty.Decimal
	if pos.Side == model.PositionShort {
		signed = signed.Neg()
	}
	ratio := signed.Div(inv.maxPositionV)
	f, _ := ratio.Float64()
	return clamp(f, -1, 1)
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// TotalExposure returns the absolute notional value of the open position at
// the given mid price.
func (inv *Inventory) TotalExposure(mid decimal.Decimal) decimal.Decimal {
	pos := inv.open()
	if pos == nil {
		return decimal.Zero
	}
	return pos.SignedQty.Decimal.Mul(mid)
}

// RealizedPnl returns the open position's realized P&L so far, zero if flat.
func (inv *Inventory) RealizedPnl() model.Money {
	pos := inv.open()
	if pos == nil {
		return model.Money{}
	}
	return pos.RealizedPnl
}

// IsFlat reports whether there is no open position for this pair.
func (inv *Inventory) IsFlat() bool { return inv.open() == nil }
