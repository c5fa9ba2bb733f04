package model

// AggressorSide identifies which side of a trade crossed the spread.
type AggressorSide int

const (
	AggressorNoSide AggressorSide = iota
	AggressorBuyer
	AggressorSeller
)

// QuoteTick is a top-of-book bid/ask snapshot.
type QuoteTick struct {
	InstrumentId InstrumentId
	BidPrice     Price
	AskPrice     Price
	BidSize      Quantity
	AskSize      Quantity
	TsEvent      int64
	TsInit       int64
}

// TradeTick is a single executed trade print.
type TradeTick struct {
	InstrumentId  InstrumentId
	Price         Price
	Size          Quantity
	AggressorSide AggressorSide
	TradeId       string
	TsEvent       int64
	TsInit        int64
}

// DeltaAction is the book mutation an OrderBookDelta applies.
type DeltaAction int

const (
	DeltaAdd DeltaAction = iota
	DeltaUpdate
	DeltaDelete
	DeltaClear
)

func (a DeltaAction) String() string {
	switch a {
	case DeltaAdd:
		return "ADD"
	case DeltaUpdate:
		return "UPDATE"
	case DeltaDelete:
		return "DELETE"
	case DeltaClear:
		return "CLEAR"
	default:
		return "UNKNOWN"
	}
}

// BookSide distinguishes bid-side from ask-side book levels/orders.
type BookSide int

const (
	BookSideBid BookSide = iota
	BookSideAsk
)

// OrderBookDelta is a single L2/L3 book mutation. A Clear delta resets the
// book to empty before any subsequent delta in the same batch is applied —
// dropping a Clear silently stales the book across session boundaries.
type OrderBookDelta struct {
	InstrumentId InstrumentId
	Action       DeltaAction
	Side         BookSide
	Price        Price
	Size         Quantity
	OrderId      uint64
	TsEvent      int64
	TsInit       int64
}

// DepthLevel is one price/size level in an OrderBookDepth10 snapshot.
type DepthLevel struct {
	Price Price
	Size  Quantity
}

// OrderBookDepth10 is a top-10-levels-per-side snapshot, converted to a
// Clear + sequence of Add deltas before being applied to a persistent book.
type OrderBookDepth10 struct {
	InstrumentId InstrumentId
	Bids         [10]DepthLevel
	Asks         [10]DepthLevel
	BidCounts    [10]uint32
	AskCounts    [10]uint32
	TsEvent      int64
	TsInit       int64
}

// ToDeltas converts the snapshot into a Clear followed by Add deltas, the
// only sanctioned way to feed a depth snapshot into a delta-driven book.
func (d OrderBookDepth10) ToDeltas() []OrderBookDelta {
	deltas := make([]OrderBookDelta, 0, 21)
	deltas = append(deltas, OrderBookDelta{
		InstrumentId: d.InstrumentId,
		Action:       DeltaClear,
		TsEvent:      d.TsEvent,
		TsInit:       d.TsInit,
	})
	for i, lvl := range d.Bids {
		if lvl.Size.IsZero() {
			continue
		}
		deltas = append(deltas, OrderBookDelta{
			InstrumentId: d.InstrumentId,
			Action:       DeltaAdd,
			Side:         BookSideBid,
			Price:        lvl.Price,
			Size:         lvl.Size,
			OrderId:      uint64(i),
			TsEvent:      d.TsEvent,
			TsInit:       d.TsInit,
		})
	}
	for i, lvl := range d.Asks {
		if lvl.Size.IsZero() {
			continue
		}
		deltas = append(deltas, OrderBookDelta{
			InstrumentId: d.InstrumentId,
			Action:       DeltaAdd,
			Side:         BookSideAsk,
			Price:        lvl.Price,
			Size:         lvl.Size,
			OrderId:      uint64(i),
			TsEvent:      d.TsEvent,
			TsInit:       d.TsInit,
		})
	}
	return deltas
}

// InstrumentStatus reports a venue-level trading-state change for an
// instrument, e.g. a halt or open/close auction transition.
type InstrumentStatus struct {
	InstrumentId InstrumentId
	Status       string
	TsEvent      int64
	TsInit       int64
}

// FundingRateUpdate carries a perpetual's periodic funding rate.
type FundingRateUpdate struct {
	InstrumentId InstrumentId
	Rate         Price
	NextFundingNs int64
	TsEvent      int64
	TsInit       int64
}

// MarkPriceUpdate carries a venue's mark price, used for margin/liquidation.
type MarkPriceUpdate struct {
	InstrumentId InstrumentId
	Price        Price
	TsEvent      int64
	TsInit       int64
}

// IndexPriceUpdate carries a venue's index price reference.
type IndexPriceUpdate struct {
	InstrumentId InstrumentId
	Price        Price
	TsEvent      int64
	TsInit       int64
}

// InstrumentClose reports a final settlement/close price for an expiring
// instrument.
type InstrumentClose struct {
	InstrumentId InstrumentId
	ClosePrice   Price
	TsEvent      int64
	TsInit       int64
}
