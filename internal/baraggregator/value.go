package baraggregator

import (
	"github.com/shopspring/decimal"

	"github.com/nautilus-go/core/pkg/model"
)

// ValueAggregator is VolumeAggregator's price*size sibling: it accumulates
// until summed value reaches Spec.Step, splitting an overshooting input so
// every emitted bar's value is exactly Step. Value has no
// natural currency precision of its own; splits are rounded to sizePrec on
// the quantity side, the same precision the instrument already uses.
type ValueAggregator struct {
	barType     model.BarType
	sizePrec    uint8
	target      decimal.Decimal
	accumulated decimal.Decimal
	handler     Handler
	builder     barBuilder
}

func NewValueAggregator(barType model.BarType, sizePrec uint8, handler Handler) *ValueAggregator {
	return &ValueAggregator{
		barType:  barType,
		sizePrec: sizePrec,
		target:   decimal.NewFromInt(int64(barType.Spec.Step)),
		handler:  handler,
		builder:  newBarBuilder(sizePrec),
	}
}

func (a *ValueAggregator) BarType() model.BarType { return a.barType }

func (a *ValueAggregator) OnQuote(model.QuoteTick) {}

func (a *ValueAggregator) OnTrade(t model.TradeTick) {
	if a.barType.CompositeOf != nil {
		return
	}
	a.ingest(t.Price, t.Size, t.TsEvent, t.TsInit)
}

func (a *ValueAggregator) OnBar(b model.Bar) {
	if a.barType.CompositeOf == nil {
		return
	}
	a.ingest(b.Close, b.Volume, b.TsEvent, b.TsInit)
}

func (a *ValueAggregator) ingest(price model.Price, size model.Quantity, tsEvent, tsInit int64) {
	remaining := size
	for {
		remainingValue := price.Decimal.Mul(remaining.Decimal)
		room := a.target.Sub(a.accumulated)

		if price.IsZero() || remainingValue.LessThanOrEqual(room) {
			a.builder.update(price, remaining, tsEvent)
			a.accumulated = a.accumulated.Add(remainingValue)
			if a.accumulated.GreaterThanOrEqual(a.target) {
				a.emit(tsInit)
			}
			return
		}

		segment, _ := model.NewQuantity(room.Div(price.Decimal), a.sizePrec)
		if segment.IsZero() || segment.GreaterThan(remaining) {
			// room left is too small to express at this instrument's size
			// precision; fold the remainder into the current bar rather
			// than loop forever chasing an unrepresentable split.
			a.builder.update(price, remaining, tsEvent)
			a.accumulated = a.accumulated.Add(remainingValue)
			a.emit(tsInit)
			return
		}

		a.builder.update(price, segment, tsEvent)
		a.accumulated = a.accumulated.Add(price.Decimal.Mul(segment.Decimal))
		a.emit(tsInit)
		remaining = remaining.Sub(segment)
		if remaining.IsZero() {
			return
		}
	}
}

func (a *ValueAggregator) emit(tsInit int64) {
	bar := a.builder.build(a.barType, a.builder.firstTsEvent, tsInit)
	a.handler(bar)
	a.builder.reset()
	a.accumulated = decimal.Zero
}
