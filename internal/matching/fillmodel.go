package matching

import (
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/nautilus-go/core/internal/cache"
	"github.com/nautilus-go/core/pkg/model"
)

// FillModel is the matching engine's fill-price capability:
// given the current book and a marketable order, decide the execution
// price, filled quantity, and which side took liquidity. A false return
// means the relevant side of the book is empty — the order stays working.
type FillModel interface {
	Fill(book *cache.Book, side model.Side, qty model.Quantity, inst model.Instrument) (model.Price, model.Quantity, model.LiquiditySide, bool)
}

// L1BestPriceFill trades the full requested quantity at the best opposing
// L1 price, ignoring the level's resting size — the default, simplest model.
type L1BestPriceFill struct{}

func (L1BestPriceFill) Fill(book *cache.Book, side model.Side, qty model.Quantity, _ model.Instrument) (model.Price, model.Quantity, model.LiquiditySide, bool) {
	var px model.Price
	var ok bool
	if side == model.SideBuy {
		px, _, ok = book.BestAsk()
	} else {
		px, _, ok = book.BestBid()
	}
	if !ok {
		return model.Price{}, model.Quantity{}, 0, false
	}
	return px, qty, model.LiquidityTaker, true
}

// ProbabilisticSlippageFill trades at the L1 best price, but with
// probability P shifts the fill one tick adverse to the order's side. The
// RNG is seeded explicitly so two runs over the same event sequence and
// seed reproduce identical fills (determinism).
type ProbabilisticSlippageFill struct {
	P   float64
	rng *rand.Rand
}

// NewProbabilisticSlippageFill constructs a seeded slippage model.
func NewProbabilisticSlippageFill(p float64, seed int64) *ProbabilisticSlippageFill {
	return &ProbabilisticSlippageFill{P: p, rng: rand.New(rand.NewSource(seed))}
}

func (f *ProbabilisticSlippageFill) Fill(book *cache.Book, side model.Side, qty model.Quantity, inst model.Instrument) (model.Price, model.Quantity, model.LiquiditySide, bool) {
	px, filledQty, liquidity, ok := (L1BestPriceFill{}).Fill(book, side, qty, inst)
	if !ok {
		return px, filledQty, liquidity, ok
	}
	if f.rng.Float64() < f.P {
		tick := inst.TickSize()
		if side == model.SideBuy {
			px = model.NewPrice(px.Decimal.Add(tick), inst.PricePrecision())
		} else {
			px = model.NewPrice(px.Decimal.Sub(tick), inst.PricePrecision())
		}
	}
	return px, filledQty, liquidity, true
}

// BookWalkFill walks progressively deeper levels for quantities exceeding
// top-of-book, returning a size-weighted VWAP fill price across however
// many levels it took to fill (or exhaust the depth it was given).
type BookWalkFill struct {
	// MaxLevels bounds how deep the walk goes; 0 defaults to 10.
	MaxLevels int
}

func (f BookWalkFill) Fill(book *cache.Book, side model.Side, qty model.Quantity, inst model.Instrument) (model.Price, model.Quantity, model.LiquiditySide, bool) {
	bookSide := model.BookSideAsk
	if side == model.SideSell {
		bookSide = model.BookSideBid
	}
	maxLevels := f.MaxLevels
	if maxLevels <= 0 {
		maxLevels = 10
	}
	levels := book.Depth(bookSide, maxLevels)
	if len(levels) == 0 {
		return model.Price{}, model.Quantity{}, 0, false
	}

	remaining := qty.Decimal
	notional := decimal.Zero
	filled := decimal.Zero
	for _, lvl := range levels {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		take := lvl.Size.Decimal
		if take.GreaterThan(remaining) {
			take = remaining
		}
		notional = notional.Add(lvl.Price.Decimal.Mul(take))
		filled = filled.Add(take)
		remaining = remaining.Sub(take)
	}
	if filled.IsZero() {
		return model.Price{}, model.Quantity{}, 0, false
	}
	filledQty, err := model.NewQuantity(filled, inst.SizePrecision())
	if err != nil {
		return model.Price{}, model.Quantity{}, 0, false
	}
	vwap := notional.Div(filled)
	return model.NewPrice(vwap, inst.PricePrecision()), filledQty, model.LiquidityTaker, true
}
