package model

// DeniedReason is the closed set of reasons the RiskEngine can tag an
// OrderDenied event with.
type DeniedReason int

const (
	DeniedUnknownInstrument DeniedReason = iota
	DeniedInvalidOrderKindForInstrument
	DeniedQuantityOutOfRange
	DeniedPriceOutOfRange
	DeniedNotionalExceedsMax
	DeniedReduceOnlyRejected
	DeniedOrderRateExceeded
	DeniedInsufficientBalance
	DeniedKillSwitchActive
)

func (r DeniedReason) String() string {
	switch r {
	case DeniedUnknownInstrument:
		return "UNKNOWN_INSTRUMENT"
	case DeniedInvalidOrderKindForInstrument:
		return "INVALID_ORDER_KIND"
	case DeniedQuantityOutOfRange:
		return "QUANTITY_OUT_OF_RANGE"
	case DeniedPriceOutOfRange:
		return "PRICE_OUT_OF_RANGE"
	case DeniedNotionalExceedsMax:
		return "NOTIONAL_EXCEEDS_MAX"
	case DeniedReduceOnlyRejected:
		return "REDUCE_ONLY_REJECTED"
	case DeniedOrderRateExceeded:
		return "ORDER_RATE_EXCEEDED"
	case DeniedInsufficientBalance:
		return "INSUFFICIENT_BALANCE"
	case DeniedKillSwitchActive:
		return "KILL_SWITCH_ACTIVE"
	default:
		return "UNKNOWN"
	}
}

// OrderDenied is published by the RiskEngine when a pre-trade check fails;
// it never reaches the ExecutionEngine.
type OrderDenied struct {
	ClientOrderId ClientOrderId
	InstrumentId  InstrumentId
	Reason        DeniedReason
	Detail        string
	TsEvent       int64
}

// LiquiditySide identifies whether a fill added or removed book liquidity.
type LiquiditySide int

const (
	LiquidityMaker LiquiditySide = iota
	LiquidityTaker
)

func (l LiquiditySide) String() string {
	if l == LiquidityTaker {
		return "TAKER"
	}
	return "MAKER"
}

// Fill is one execution against an order, the unit Position.ApplyFill folds in.
type Fill struct {
	ClientOrderId ClientOrderId
	VenueOrderId  VenueOrderId
	InstrumentId  InstrumentId
	Side          Side
	Quantity      Quantity
	Price         Price
	Commission    Money
	Liquidity     LiquiditySide
	TradeId       string
	TsEvent       int64
	TsInit        int64
}

// OrderAccepted is published when a venue confirms an order is working.
type OrderAccepted struct {
	ClientOrderId ClientOrderId
	VenueOrderId  VenueOrderId
	InstrumentId  InstrumentId
	TsEvent       int64
}

// OrderRejected is published when a venue refuses a submitted order.
type OrderRejected struct {
	ClientOrderId ClientOrderId
	InstrumentId  InstrumentId
	Reason        string
	TsEvent       int64
}

// OrderCanceled is published when a working order is canceled.
type OrderCanceled struct {
	ClientOrderId ClientOrderId
	VenueOrderId  VenueOrderId
	InstrumentId  InstrumentId
	TsEvent       int64
}

// OrderExpired is published when a GTD/DAY order's time in force lapses.
type OrderExpired struct {
	ClientOrderId ClientOrderId
	InstrumentId  InstrumentId
	TsEvent       int64
}

// OrderTriggered is published when a stop-like order's trigger condition fires.
type OrderTriggered struct {
	ClientOrderId ClientOrderId
	InstrumentId  InstrumentId
	TriggerPrice  Price
	TsEvent       int64
}

// OrderFilled is published on every fill, partial or complete.
type OrderFilled struct {
	Fill
	FilledQty Quantity
	AvgPx     Price
	Status    OrderStatus
}

// AccountLiquidated is published when a margin account's equity breaches
// zero with open positions.
type AccountLiquidated struct {
	AccountId AccountId
	Equity    Money
	TsEvent   int64
}

// OrderStatusReport is a venue's view of one order, used during
// reconciliation and for ExecutionClient.GenerateOrderStatusReports.
type OrderStatusReport struct {
	ClientOrderId ClientOrderId
	VenueOrderId  VenueOrderId
	InstrumentId  InstrumentId
	Side          Side
	Type          OrderType
	Quantity      Quantity
	FilledQty     Quantity
	AvgPx         Price
	Status        OrderStatus
	TsEvent       int64
}

// PositionStatusReport is a venue's view of one position, used during
// reconciliation.
type PositionStatusReport struct {
	InstrumentId InstrumentId
	Side         PositionSide
	SignedQty    Quantity
	AvgPxOpen    Price
	TsEvent      int64
}

// TradeReport is a venue's view of one historical execution, used by
// ExecutionClient.GenerateTradeReports for fill reconciliation.
type TradeReport struct {
	ClientOrderId ClientOrderId
	VenueOrderId  VenueOrderId
	InstrumentId  InstrumentId
	Side          Side
	Quantity      Quantity
	Price         Price
	Commission    Money
	TradeId       string
	TsEvent       int64
}

// ClientDegraded is published when an adapter suffers a fatal error and
// disconnects; strategies continue operating on cached state.
type ClientDegraded struct {
	ClientId string
	Reason   string
	TsEvent  int64
}
