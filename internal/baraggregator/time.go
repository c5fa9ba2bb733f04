package baraggregator

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nautilus-go/core/internal/clock"
	"github.com/nautilus-go/core/pkg/model"
)

// TimeAggregator partitions the timeline into aligned intervals and emits
// one bar per interval, whether or not any datum arrived in it.
// Quote-driven (Bid/Ask/Mid) price types are fed by OnQuote with no volume
// contribution; PriceTypeLast is fed by OnTrade with trade size. A quote
// tick carries no traded size of its own, so a time bar built from the
// quote side always reports zero volume.
type TimeAggregator struct {
	barType        model.BarType
	pricePrec      uint8
	clk            clock.Clock
	handler        Handler
	timerName      string
	stepNs         int64
	explicitOrigin *int64
	intervalStart  int64
	intervalEnd    int64
	started        bool
	builder        barBuilder
}

// NewTimeAggregator builds a TimeAggregator for barType. barType's
// aggregation must be one of the time units (Millisecond..Week); Month is
// rejected since it has no fixed nanosecond length to align intervals on.
func NewTimeAggregator(barType model.BarType, pricePrec, sizePrec uint8, clk clock.Clock, handler Handler) (*TimeAggregator, error) {
	stepNs, err := timeStepNanos(barType.Spec)
	if err != nil {
		return nil, err
	}
	return &TimeAggregator{
		barType:   barType,
		pricePrec: pricePrec,
		clk:       clk,
		handler:   handler,
		timerName: fmt.Sprintf("bar-close-%s", barType),
		stepNs:    stepNs,
		builder:   newBarBuilder(sizePrec),
	}, nil
}

func timeStepNanos(spec model.BarSpecification) (int64, error) {
	var unit int64
	switch spec.Aggregation {
	case model.BarAggregationMillisecond:
		unit = int64(time.Millisecond)
	case model.BarAggregationSecond:
		unit = int64(time.Second)
	case model.BarAggregationMinute:
		unit = int64(time.Minute)
	case model.BarAggregationHour:
		unit = int64(time.Hour)
	case model.BarAggregationDay:
		unit = int64(24 * time.Hour)
	case model.BarAggregationWeek:
		unit = int64(7 * 24 * time.Hour)
	default:
		return 0, fmt.Errorf("aggregation %s has no fixed nanosecond interval to align on", spec.Aggregation)
	}
	return unit * int64(spec.Step), nil
}

// WithOrigin overrides the default origin (the start of the UTC day
// containing the first datum) with an explicit one. Needed whenever step and aggregation don't evenly divide
// the default alignment period — e.g. a 65-minute bar over a UTC day,
// where the day boundary would otherwise split an interval. Must be
// called before the first OnQuote/OnTrade/OnBar observation; it has no
// effect once the first interval has started.
func (a *TimeAggregator) WithOrigin(originNs int64) *TimeAggregator {
	a.explicitOrigin = &originNs
	return a
}

func (a *TimeAggregator) BarType() model.BarType { return a.barType }

func (a *TimeAggregator) OnQuote(q model.QuoteTick) {
	if a.barType.CompositeOf != nil {
		return
	}
	price := quotePrice(a.barType.Spec.PriceType, q, a.pricePrec)
	zeroSize, _ := model.NewQuantity(decimal.Zero, a.builder.sizePrecision)
	a.ingest(price, zeroSize, q.TsEvent)
}

func (a *TimeAggregator) OnTrade(t model.TradeTick) {
	if a.barType.CompositeOf != nil || a.barType.Spec.PriceType != model.PriceTypeLast {
		return
	}
	a.ingest(t.Price, t.Size, t.TsEvent)
}

func (a *TimeAggregator) OnBar(b model.Bar) {
	if a.barType.CompositeOf == nil {
		return
	}
	a.ingest(b.Close, b.Volume, b.TsEvent)
}

// ingest folds one observation in and closes out any interval boundaries
// the observation has advanced past. Absent an explicit origin, the origin
// is fixed at the start of the UTC day containing the first observed ts_event.
func (a *TimeAggregator) ingest(price model.Price, size model.Quantity, tsEvent int64) {
	if !a.started {
		a.start(tsEvent)
	}
	for tsEvent >= a.intervalEnd {
		a.closeInterval()
	}
	a.builder.update(price, size, tsEvent)
}

func (a *TimeAggregator) start(tsEvent int64) {
	var origin int64
	if a.explicitOrigin != nil {
		origin = *a.explicitOrigin
	} else {
		day := time.Unix(0, tsEvent).UTC()
		origin = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC).UnixNano()
	}
	elapsed := floorDiv(tsEvent-origin, a.stepNs)
	a.intervalStart = origin + elapsed*a.stepNs
	a.intervalEnd = a.intervalStart + a.stepNs
	a.started = true
	a.rescheduleTimer()
}

// floorDiv is integer division rounding toward negative infinity, needed
// because tsEvent can precede an explicit origin (Go's / truncates toward
// zero, which would misalign the very first interval in that case).
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// closeInterval emits the current interval's bar — real if data arrived,
// carried-forward flat otherwise — then advances to the next interval.
func (a *TimeAggregator) closeInterval() {
	bar := a.builder.build(a.barType, a.intervalStart, a.intervalEnd)
	a.handler(bar)
	a.builder.carryForward(bar.Close)
	a.intervalStart = a.intervalEnd
	a.intervalEnd = a.intervalStart + a.stepNs
	a.rescheduleTimer()
}

// onTimer is the clock.Handler backing the boundary guarantee: if no datum
// arrives in an interval, this fires at intervalEnd and closes it anyway.
func (a *TimeAggregator) onTimer(_ clock.Event) {
	a.closeInterval()
}

func (a *TimeAggregator) rescheduleTimer() {
	a.clk.CancelTimer(a.timerName)
	_ = a.clk.SetTimeAlert(a.timerName, a.intervalEnd, a.onTimer)
}
