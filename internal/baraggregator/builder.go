package baraggregator

import (
	"github.com/shopspring/decimal"

	"github.com/nautilus-go/core/pkg/model"
)

// barBuilder accumulates OHLCV state for one in-progress bar. It has no
// notion of when to close — that decision belongs to the aggregator driving
// it (Time/Tick/Volume/Value each close on a different condition).
type barBuilder struct {
	hasData      bool
	open         model.Price
	high         model.Price
	low          model.Price
	close        model.Price
	volume       model.Quantity
	firstTsEvent int64
	sizePrecision uint8
}

func newBarBuilder(sizePrecision uint8) barBuilder {
	zero, _ := model.NewQuantity(decimal.Zero, sizePrecision)
	return barBuilder{volume: zero, sizePrecision: sizePrecision}
}

// update folds one price/size observation into the in-progress bar.
func (b *barBuilder) update(price model.Price, size model.Quantity, tsEvent int64) {
	if !b.hasData {
		b.open, b.high, b.low = price, price, price
		b.firstTsEvent = tsEvent
		b.hasData = true
	} else {
		if price.GreaterThan(b.high) {
			b.high = price
		}
		if price.LessThan(b.low) {
			b.low = price
		}
	}
	b.close = price
	b.volume = b.volume.Add(size)
}

// build renders the accumulated state as a Bar. tsEvent/tsInit are supplied
// by the caller since the close semantics (interval open vs trigger tick)
// vary by aggregator kind.
func (b *barBuilder) build(barType model.BarType, tsEvent, tsInit int64) model.Bar {
	return model.Bar{
		Type:    barType,
		Open:    b.open,
		High:    b.high,
		Low:     b.low,
		Close:   b.close,
		Volume:  b.volume,
		TsEvent: tsEvent,
		TsInit:  tsInit,
	}
}

// reset clears accumulated OHLCV state for the next bar, with no price
// carried forward — used by Tick/Volume/Value aggregators, which only ever
// open a bar on a real observation.
func (b *barBuilder) reset() {
	zero, _ := model.NewQuantity(decimal.Zero, b.sizePrecision)
	b.hasData = false
	b.volume = zero
}

// carryForward resets accumulated state but opens the next bar flat at
// lastClose, so a Time bar with no data in an interval still has a valid
// OHLC ("empty or partial bars" requirement).
func (b *barBuilder) carryForward(lastClose model.Price) {
	zero, _ := model.NewQuantity(decimal.Zero, b.sizePrecision)
	b.hasData = true
	b.open, b.high, b.low, b.close = lastClose, lastClose, lastClose, lastClose
	b.volume = zero
}
