// Package dataengine routes normalized market data from registered
// DataClients to subscribers, maintains per-instrument order books in the
// cache, drives the bar aggregation chain, and serves historical
// RequestX calls.
package dataengine

import (
	"context"
	"time"
)

// RequestKind selects the historical-data query a DataClient.Request call
// serves.
type RequestKind int

const (
	RequestBars RequestKind = iota
	RequestQuoteTicks
	RequestTradeTicks
	RequestInstruments
)

// RequestParams carries the query parameters for a historical request; the
// fields a given RequestKind ignores are left zero.
type RequestParams struct {
	InstrumentId string
	BarType      string
	From         time.Time
	To           time.Time
	Limit        int
}

// DataClient is the venue-facing half of an adapter. Connect
// and Subscribe/Unsubscribe push normalized events into the engine via
// whatever channel or callback the concrete client was built with; Request
// serves one historical query and returns before or at deadline.
type DataClient interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Subscribe(topic string, params map[string]string) error
	Unsubscribe(topic string) error
	Request(ctx context.Context, kind RequestKind, params RequestParams, deadline time.Time) (any, error)
}
