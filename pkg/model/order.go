package model

import "fmt"

// Side is the trading direction of an order or aggressor.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	if s == SideSell {
		return "SELL"
	}
	return "BUY"
}

// Opposite returns the other side, used when a contingency order needs to
// close out the position an entry order opened.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType enumerates the order kinds the matching engine and risk engine
// understand.
type OrderType int

const (
	OrderTypeMarket OrderType = iota
	OrderTypeLimit
	OrderTypeMarketIfTouched
	OrderTypeStopMarket
	OrderTypeStopLimit
	OrderTypeTrailingStop
	OrderTypeMarketToLimit
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeMarket:
		return "MARKET"
	case OrderTypeLimit:
		return "LIMIT"
	case OrderTypeMarketIfTouched:
		return "MARKET_IF_TOUCHED"
	case OrderTypeStopMarket:
		return "STOP_MARKET"
	case OrderTypeStopLimit:
		return "STOP_LIMIT"
	case OrderTypeTrailingStop:
		return "TRAILING_STOP"
	case OrderTypeMarketToLimit:
		return "MARKET_TO_LIMIT"
	default:
		return "UNKNOWN"
	}
}

// IsStopLike reports whether the order type triggers rather than resting
// marketable immediately — relevant for the Triggered FSM state.
func (t OrderType) IsStopLike() bool {
	switch t {
	case OrderTypeMarketIfTouched, OrderTypeStopMarket, OrderTypeStopLimit, OrderTypeTrailingStop:
		return true
	default:
		return false
	}
}

// TimeInForce controls how long an order remains working.
type TimeInForce int

const (
	TimeInForceGTC TimeInForce = iota
	TimeInForceIOC
	TimeInForceFOK
	TimeInForceGTD
	TimeInForceDay
)

func (f TimeInForce) String() string {
	switch f {
	case TimeInForceGTC:
		return "GTC"
	case TimeInForceIOC:
		return "IOC"
	case TimeInForceFOK:
		return "FOK"
	case TimeInForceGTD:
		return "GTD"
	case TimeInForceDay:
		return "DAY"
	default:
		return "UNKNOWN"
	}
}

// OrderStatus is the order FSM state.
type OrderStatus int

const (
	OrderStatusInitialized OrderStatus = iota
	OrderStatusSubmitted
	OrderStatusAccepted
	OrderStatusRejected
	OrderStatusDenied
	OrderStatusTriggered
	OrderStatusPartiallyFilled
	OrderStatusFilled
	OrderStatusCanceled
	OrderStatusExpired
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusInitialized:
		return "INITIALIZED"
	case OrderStatusSubmitted:
		return "SUBMITTED"
	case OrderStatusAccepted:
		return "ACCEPTED"
	case OrderStatusRejected:
		return "REJECTED"
	case OrderStatusDenied:
		return "DENIED"
	case OrderStatusTriggered:
		return "TRIGGERED"
	case OrderStatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case OrderStatusFilled:
		return "FILLED"
	case OrderStatusCanceled:
		return "CANCELED"
	case OrderStatusExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether no further transition is legal from this state.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected, OrderStatusDenied, OrderStatusExpired:
		return true
	default:
		return false
	}
}

// orderTransitions encodes the legal edges of the order FSM.
// Invalid transitions are logged and ignored by callers, never panicked on,
// so out-of-order venue reports don't crash the engine.
var orderTransitions = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusInitialized: {
		OrderStatusSubmitted: true,
		OrderStatusDenied:    true,
	},
	OrderStatusSubmitted: {
		OrderStatusAccepted: true,
		OrderStatusRejected: true,
		OrderStatusDenied:   true,
	},
	OrderStatusAccepted: {
		OrderStatusPartiallyFilled: true,
		OrderStatusFilled:          true,
		OrderStatusCanceled:        true,
		OrderStatusExpired:         true,
		OrderStatusTriggered:       true,
	},
	OrderStatusTriggered: {
		OrderStatusPartiallyFilled: true,
		OrderStatusFilled:          true,
		OrderStatusCanceled:        true,
		OrderStatusExpired:         true,
	},
	OrderStatusPartiallyFilled: {
		OrderStatusFilled:   true,
		OrderStatusCanceled: true,
		OrderStatusExpired:  true,
	},
}

// CanTransition reports whether `to` is a legal next state from `from`.
func CanTransition(from, to OrderStatus) bool {
	edges, ok := orderTransitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// ContingencyType links sibling orders created together as a group.
type ContingencyType int

const (
	ContingencyNone ContingencyType = iota
	ContingencyOTO                  // one-triggers-other
	ContingencyOCO                  // one-cancels-other
	ContingencyOUO                  // one-updates-other
)

func (c ContingencyType) String() string {
	switch c {
	case ContingencyOTO:
		return "OTO"
	case ContingencyOCO:
		return "OCO"
	case ContingencyOUO:
		return "OUO"
	default:
		return "NONE"
	}
}

// Order is the kernel's order record. Transitions go through Order.Transition
// so the FSM table is the single source of truth; direct field mutation of
// Status is a bug.
type Order struct {
	ClientOrderId   ClientOrderId
	VenueOrderId    VenueOrderId
	InstrumentId    InstrumentId
	StrategyId      StrategyId
	Side            Side
	Type            OrderType
	TimeInForce     TimeInForce
	Quantity        Quantity
	Price           *Price // nil for Market
	TriggerPrice    *Price // nil unless stop-like
	FilledQty       Quantity
	AvgPx           Price
	Status          OrderStatus
	ContingencyType ContingencyType
	LinkedOrderIds  []ClientOrderId
	ParentOrderId   *ClientOrderId
	ReduceOnly      bool
	Tags            map[string]string
	TsInit          int64
	TsLastEvent     int64
}

// Transition attempts to move the order to `to`. An illegal transition
// returns a wrapped ErrInvalidOrderTransition and leaves Status untouched,
// matching the FSM's no-panic contract for out-of-order venue reports.
func (o *Order) Transition(to OrderStatus, tsEvent int64) error {
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("order %s: %s -> %s: %w", o.ClientOrderId, o.Status, to, ErrInvalidOrderTransition)
	}
	o.Status = to
	o.TsLastEvent = tsEvent
	return nil
}

// ApplyFill records a fill against the order: updates FilledQty and the
// quantity-weighted AvgPx, then transitions to PartiallyFilled or Filled.
// pricePrecision rounds the recomputed average the same way the instrument
// would (crossing precision only via an explicit make_price call).
func (o *Order) ApplyFill(fillQty Quantity, fillPx Price, pricePrecision uint8, tsEvent int64) error {
	totalQty := o.FilledQty.Add(fillQty)
	if totalQty.GreaterThan(o.Quantity) {
		return fmt.Errorf("order %s: fill qty %s exceeds remaining: %w", o.ClientOrderId, fillQty, ErrInvalidOrderTransition)
	}

	prevNotional := o.AvgPx.Decimal.Mul(o.FilledQty.Decimal)
	fillNotional := fillPx.Decimal.Mul(fillQty.Decimal)
	avg := prevNotional.Add(fillNotional).Div(totalQty.Decimal)
	o.AvgPx = NewPrice(avg, pricePrecision)
	o.FilledQty = totalQty

	next := OrderStatusPartiallyFilled
	if o.FilledQty.Equal(o.Quantity) {
		next = OrderStatusFilled
	}
	return o.Transition(next, tsEvent)
}

// IsChild reports whether this order is a contingency child of another.
func (o *Order) IsChild() bool { return o.ParentOrderId != nil }
