// Package baraggregator builds Bar streams out of ticks or out of
// shorter-period bars, one BarAggregator per active BarType.
// Each aggregator is driven synchronously from the kernel's single event
// loop — same no-internal-locking contract as msgbus.Bus and cache.Cache.
package baraggregator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nautilus-go/core/internal/clock"
	"github.com/nautilus-go/core/pkg/model"
)

var twoDecimal = decimal.NewFromInt(2)

// Handler receives a completed Bar.
type Handler func(model.Bar)

// Aggregator is the capability every bar variant implements. A non-composite
// aggregator is driven by OnQuote/OnTrade; a composite aggregator (BarType
// with CompositeOf set) is driven by OnBar against its child's bar stream
// instead, "chains a child aggregator" composite variant.
type Aggregator interface {
	BarType() model.BarType
	OnQuote(q model.QuoteTick)
	OnTrade(t model.TradeTick)
	OnBar(b model.Bar)
}

// New builds the Aggregator matching barType's aggregation kind: a Time
// aggregator for the time-based units, Tick for BarAggregationTick, Volume
// for BarAggregationVolume, Value for BarAggregationValue.
func New(barType model.BarType, pricePrec, sizePrec uint8, clk clock.Clock, handler Handler) (Aggregator, error) {
	switch {
	case barType.Spec.Aggregation.IsTimeBased():
		return NewTimeAggregator(barType, pricePrec, sizePrec, clk, handler)
	case barType.Spec.Aggregation == model.BarAggregationTick:
		return NewTickAggregator(barType, sizePrec, handler), nil
	case barType.Spec.Aggregation == model.BarAggregationVolume:
		return NewVolumeAggregator(barType, sizePrec, handler)
	case barType.Spec.Aggregation == model.BarAggregationValue:
		return NewValueAggregator(barType, sizePrec, handler), nil
	default:
		return nil, fmt.Errorf("unsupported bar aggregation %s", barType.Spec.Aggregation)
	}
}

// quotePrice selects the side of the market a quote-driven bar is built
// from. Mid is (bid+ask)/2 rounded half away from zero to the configured
// precision, since (bid+ask)/2 can need one more decimal place than either side.
func quotePrice(priceType model.PriceType, q model.QuoteTick, precision uint8) model.Price {
	switch priceType {
	case model.PriceTypeBid:
		return q.BidPrice
	case model.PriceTypeAsk:
		return q.AskPrice
	case model.PriceTypeMid:
		sum := q.BidPrice.Decimal.Add(q.AskPrice.Decimal)
		return model.NewPrice(sum.Div(twoDecimal), precision)
	default:
		return q.BidPrice
	}
}
