package cache

import (
	"sort"

	"github.com/nautilus-go/core/pkg/model"
)

// level is one aggregated price level on a Book side.
type level struct {
	price model.Price
	size  model.Quantity
}

// Book is the single authoritative L2 book the DataEngine maintains for an
// instrument. Deltas are applied in receipt order; a Clear
// delta must reset the book before later deltas in the same batch apply —
// dropping a Clear silently stales the book across session boundaries, the
// observed bug calls out by name. Price levels are kept in plain
// maps keyed by the decimal string, aggregated and sorted at query time,
// mirroring the price-map-then-sort idiom mkhoshkam-orderbook's depth
// queries use for the same reason: writes (deltas) vastly outnumber reads
// (best bid/ask, depth snapshots) in a live feed.
type Book struct {
	InstrumentId model.InstrumentId
	bids         map[string]level
	asks         map[string]level
	TsLastEvent  int64
}

// NewBook constructs an empty book for an instrument.
func NewBook(id model.InstrumentId) *Book {
	return &Book{
		InstrumentId: id,
		bids:         make(map[string]level),
		asks:         make(map[string]level),
	}
}

// Clear resets both sides of the book to empty.
func (b *Book) Clear() {
	b.bids = make(map[string]level)
	b.asks = make(map[string]level)
}

// Apply applies a single delta to the book. Deltas must be applied in
// receipt order for the book to remain a faithful mirror of the venue.
func (b *Book) Apply(d model.OrderBookDelta) {
	if d.Action == model.DeltaClear {
		b.Clear()
		b.TsLastEvent = d.TsEvent
		return
	}

	side := b.sideFor(d.Side)
	key := d.Price.String()

	switch d.Action {
	case model.DeltaAdd, model.DeltaUpdate:
		if d.Size.IsZero() {
			delete(side, key)
		} else {
			side[key] = level{price: d.Price, size: d.Size}
		}
	case model.DeltaDelete:
		delete(side, key)
	}
	b.TsLastEvent = d.TsEvent
}

// ApplyBatch applies an ordered sequence of deltas, e.g. the output of
// OrderBookDepth10.ToDeltas.
func (b *Book) ApplyBatch(deltas []model.OrderBookDelta) {
	for _, d := range deltas {
		b.Apply(d)
	}
}

func (b *Book) sideFor(side model.BookSide) map[string]level {
	if side == model.BookSideBid {
		return b.bids
	}
	return b.asks
}

// BestBid returns the highest bid level and whether the bid side is
// non-empty.
func (b *Book) BestBid() (model.Price, model.Quantity, bool) {
	levels := sortedLevels(b.bids, true)
	if len(levels) == 0 {
		return model.Price{}, model.Quantity{}, false
	}
	return levels[0].price, levels[0].size, true
}

// BestAsk returns the lowest ask level and whether the ask side is
// non-empty.
func (b *Book) BestAsk() (model.Price, model.Quantity, bool) {
	levels := sortedLevels(b.asks, false)
	if len(levels) == 0 {
		return model.Price{}, model.Quantity{}, false
	}
	return levels[0].price, levels[0].size, true
}

// Depth returns up to n price levels for a side, best price first.
func (b *Book) Depth(side model.BookSide, n int) []model.DepthLevel {
	var levels []level
	if side == model.BookSideBid {
		levels = sortedLevels(b.bids, true)
	} else {
		levels = sortedLevels(b.asks, false)
	}
	if n > 0 && len(levels) > n {
		levels = levels[:n]
	}
	out := make([]model.DepthLevel, len(levels))
	for i, lvl := range levels {
		out[i] = model.DepthLevel{Price: lvl.price, Size: lvl.size}
	}
	return out
}

// sortedLevels returns a side's levels ordered best-first: descending for
// bids (desc=true), ascending for asks.
func sortedLevels(side map[string]level, desc bool) []level {
	out := make([]level, 0, len(side))
	for _, lvl := range side {
		out = append(out, lvl)
	}
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].price.GreaterThan(out[j].price)
		}
		return out[i].price.LessThan(out[j].price)
	})
	return out
}
