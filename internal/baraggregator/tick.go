package baraggregator

import "github.com/nautilus-go/core/pkg/model"

// TickAggregator accumulates exactly Spec.Step trades (or, for a composite
// BarType, child bars) and emits. It ignores quotes: a tick bar's volume is
// trade size, which a quote tick does not carry.
type TickAggregator struct {
	barType  model.BarType
	step     int
	count    int
	lastTsInit int64
	handler  Handler
	builder  barBuilder
}

func NewTickAggregator(barType model.BarType, sizePrec uint8, handler Handler) *TickAggregator {
	return &TickAggregator{
		barType: barType,
		step:    barType.Spec.Step,
		handler: handler,
		builder: newBarBuilder(sizePrec),
	}
}

func (a *TickAggregator) BarType() model.BarType { return a.barType }

func (a *TickAggregator) OnQuote(model.QuoteTick) {}

func (a *TickAggregator) OnTrade(t model.TradeTick) {
	if a.barType.CompositeOf != nil {
		return
	}
	a.ingest(t.Price, t.Size, t.TsEvent, t.TsInit)
}

func (a *TickAggregator) OnBar(b model.Bar) {
	if a.barType.CompositeOf == nil {
		return
	}
	a.ingest(b.Close, b.Volume, b.TsEvent, b.TsInit)
}

func (a *TickAggregator) ingest(price model.Price, size model.Quantity, tsEvent, tsInit int64) {
	a.builder.update(price, size, tsEvent)
	a.lastTsInit = tsInit
	a.count++
	if a.count < a.step {
		return
	}
	bar := a.builder.build(a.barType, a.builder.firstTsEvent, a.lastTsInit)
	a.handler(bar)
	a.builder.reset()
	a.count = 0
}
