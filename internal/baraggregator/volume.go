package baraggregator

import (
	"github.com/shopspring/decimal"

	"github.com/nautilus-go/core/pkg/model"
)

// VolumeAggregator accumulates until summed size reaches Spec.Step, splitting
// an overshooting input across the boundary so every emitted bar's volume is
// exactly Step.
type VolumeAggregator struct {
	barType     model.BarType
	target      model.Quantity
	accumulated model.Quantity
	handler     Handler
	builder     barBuilder
}

func NewVolumeAggregator(barType model.BarType, sizePrec uint8, handler Handler) (*VolumeAggregator, error) {
	target, err := model.NewQuantity(decimal.NewFromInt(int64(barType.Spec.Step)), sizePrec)
	if err != nil {
		return nil, err
	}
	zero, err := model.NewQuantity(decimal.Zero, sizePrec)
	if err != nil {
		return nil, err
	}
	return &VolumeAggregator{barType: barType, target: target, accumulated: zero, handler: handler, builder: newBarBuilder(sizePrec)}, nil
}

func (a *VolumeAggregator) BarType() model.BarType { return a.barType }

func (a *VolumeAggregator) OnQuote(model.QuoteTick) {}

func (a *VolumeAggregator) OnTrade(t model.TradeTick) {
	if a.barType.CompositeOf != nil {
		return
	}
	a.ingest(t.Price, t.Size, t.TsEvent, t.TsInit)
}

func (a *VolumeAggregator) OnBar(b model.Bar) {
	if a.barType.CompositeOf == nil {
		return
	}
	a.ingest(b.Close, b.Volume, b.TsEvent, b.TsInit)
}

func (a *VolumeAggregator) ingest(price model.Price, size model.Quantity, tsEvent, tsInit int64) {
	remaining := size
	for {
		room := a.target.Sub(a.accumulated)
		if remaining.LessThan(room) || remaining.Equal(room) {
			a.builder.update(price, remaining, tsEvent)
			a.accumulated = a.accumulated.Add(remaining)
			if a.accumulated.Equal(a.target) {
				a.emit(tsInit)
			}
			return
		}
		a.builder.update(price, room, tsEvent)
		a.accumulated = a.accumulated.Add(room)
		a.emit(tsInit)
		remaining = remaining.Sub(room)
		if remaining.IsZero() {
			return
		}
	}
}

func (a *VolumeAggregator) emit(tsInit int64) {
	bar := a.builder.build(a.barType, a.builder.firstTsEvent, tsInit)
	a.handler(bar)
	a.builder.reset()
	a.accumulated, _ = model.NewQuantity(decimal.Zero, a.builder.sizePrecision)
}
