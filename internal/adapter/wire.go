package adapter

// wireQuote is the simulated venue's top-of-book snapshot message, sent on
// the market-data feed for every instrument an Adapter has subscribed to.
type wireQuote struct {
	EventType string `json:"event_type"` // "quote"
	Symbol    string `json:"symbol"`
	Venue     string `json:"venue"`
	BidPrice  string `json:"bid_price"`
	AskPrice  string `json:"ask_price"`
	BidSize   string `json:"bid_size"`
	AskSize   string `json:"ask_size"`
	TsEvent   int64  `json:"ts_event"`
	TsInit    int64  `json:"ts_init"`
}

// wireTrade is a single executed trade print.
type wireTrade struct {
	EventType string `json:"event_type"` // "trade"
	Symbol    string `json:"symbol"`
	Venue     string `json:"venue"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Aggressor string `json:"aggressor"` // "BUYER" | "SELLER"
	TradeId   string `json:"trade_id"`
	TsEvent   int64  `json:"ts_event"`
	TsInit    int64  `json:"ts_init"`
}

// wireOrderEvent multiplexes every order lifecycle push the venue sends on
// the private feed: acceptance, rejection, cancellation, expiry, and fills.
// EventType selects which fields are populated.
type wireOrderEvent struct {
	EventType     string `json:"event_type"` // accepted|rejected|canceled|expired|filled
	ClientOrderId string `json:"client_order_id"`
	VenueOrderId  string `json:"venue_order_id,omitempty"`
	Symbol        string `json:"symbol"`
	Venue         string `json:"venue"`
	Reason        string `json:"reason,omitempty"`
	Side          string `json:"side,omitempty"`
	Price         string `json:"price,omitempty"`
	Quantity      string `json:"quantity,omitempty"`
	Commission    string `json:"commission,omitempty"`
	CommissionCcy string `json:"commission_ccy,omitempty"`
	Liquidity     string `json:"liquidity,omitempty"`
	TradeId       string `json:"trade_id,omitempty"`
	TsEvent       int64  `json:"ts_event"`
}

// submitOrderRequest is the REST body of POST /orders.
type submitOrderRequest struct {
	ClientOrderId string `json:"client_order_id"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	TimeInForce   string `json:"time_in_force"`
	Price         string `json:"price,omitempty"`
	Quantity      string `json:"quantity"`
	ReduceOnly    bool   `json:"reduce_only"`
}

// modifyOrderRequest is the REST body of PATCH /orders/{clientOrderId}. A
// zero-value field leaves that side of the order unchanged.
type modifyOrderRequest struct {
	Price    string `json:"price,omitempty"`
	Quantity string `json:"quantity,omitempty"`
}

type bookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// bookResponse is the GET /book response body.
type bookResponse struct {
	Symbol string      `json:"symbol"`
	Bids   []bookLevel `json:"bids"`
	Asks   []bookLevel `json:"asks"`
}

type orderStatusReportWire struct {
	ClientOrderId string `json:"client_order_id"`
	VenueOrderId  string `json:"venue_order_id"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Quantity      string `json:"quantity"`
	FilledQty     string `json:"filled_qty"`
	AvgPx         string `json:"avg_px"`
	Status        string `json:"status"`
	TsEvent       int64  `json:"ts_event"`
}

type positionStatusReportWire struct {
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	SignedQty string `json:"signed_qty"`
	AvgPxOpen string `json:"avg_px_open"`
	TsEvent   int64  `json:"ts_event"`
}

type tradeReportWire struct {
	ClientOrderId string `json:"client_order_id"`
	VenueOrderId  string `json:"venue_order_id"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Quantity      string `json:"quantity"`
	Price         string `json:"price"`
	Commission    string `json:"commission"`
	CommissionCcy string `json:"commission_ccy"`
	TradeId       string `json:"trade_id"`
	TsEvent       int64  `json:"ts_event"`
}

type barWire struct {
	EventType string `json:"event_type"` // "bar"
	Symbol    string `json:"symbol"`
	Open      string `json:"open"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Close     string `json:"close"`
	Volume    string `json:"volume"`
	TsEvent   int64  `json:"ts_event"`
	TsInit    int64  `json:"ts_init"`
}
