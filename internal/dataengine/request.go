package dataengine

import (
	"context"
	"time"

	"github.com/nautilus-go/core/pkg/model"
)

// HistoricalEvent is one element of a RequestX stream. Terminal marks the
// final event on the channel — the requester's on_historical_data handler
// must treat it as the end-of-stream signal, not as data.
type HistoricalEvent struct {
	Data     any
	Terminal bool
}

// requestVenue resolves the venue a historical request targets and
// dispatches it, handling the "no client registered" and "zero rows"
// cases the same way: both resolve with an empty response, never an error.
func (e *Engine) requestVenue(ctx context.Context, venue string, kind RequestKind, params RequestParams, deadline time.Time) (any, bool) {
	client, ok := e.clients[venue]
	if !ok {
		e.logger.Warn("historical request with no client registered for venue", "venue", venue, "kind", kind)
		return nil, false
	}
	result, err := client.Request(ctx, kind, params, deadline)
	if err != nil {
		e.logger.Warn("historical request failed", "venue", venue, "kind", kind, "error", err)
		return nil, false
	}
	return result, true
}

// stream emits each item in items on a HistoricalEvent channel, in order,
// followed by a terminal marker, then closes the channel. Each item is
// routed through the same ingest path live data uses via ingest, so
// aggregators observe historical and live data identically.
func stream[T any](items []T, ingest func(T)) <-chan HistoricalEvent {
	out := make(chan HistoricalEvent, len(items)+1)
	for _, item := range items {
		if ingest != nil {
			ingest(item)
		}
		out <- HistoricalEvent{Data: item}
	}
	out <- HistoricalEvent{Terminal: true}
	close(out)
	return out
}

// RequestBars serves a historical bar query against the venue's DataClient,
// normalizing the result into a buffered stream ending with a terminal
// marker; every bar is ingested before the channel is returned.
func (e *Engine) RequestBars(ctx context.Context, venue, topic string, params RequestParams, deadline time.Time) <-chan HistoricalEvent {
	result, ok := e.requestVenue(ctx, venue, RequestBars, params, deadline)
	if !ok {
		return stream[model.Bar](nil, nil)
	}
	bars, _ := result.([]model.Bar)
	return stream(bars, func(b model.Bar) { e.IngestBar(topic, b) })
}

// RequestQuoteTicks serves a historical quote-tick query.
func (e *Engine) RequestQuoteTicks(ctx context.Context, venue, topic string, params RequestParams, deadline time.Time) <-chan HistoricalEvent {
	result, ok := e.requestVenue(ctx, venue, RequestQuoteTicks, params, deadline)
	if !ok {
		return stream[model.QuoteTick](nil, nil)
	}
	quotes, _ := result.([]model.QuoteTick)
	return stream(quotes, func(q model.QuoteTick) { e.IngestQuote(topic, q) })
}

// RequestTradeTicks serves a historical trade-tick query.
func (e *Engine) RequestTradeTicks(ctx context.Context, venue, topic string, params RequestParams, deadline time.Time) <-chan HistoricalEvent {
	result, ok := e.requestVenue(ctx, venue, RequestTradeTicks, params, deadline)
	if !ok {
		return stream[model.TradeTick](nil, nil)
	}
	trades, _ := result.([]model.TradeTick)
	return stream(trades, func(t model.TradeTick) { e.IngestTrade(topic, t) })
}

// RequestInstruments serves a historical instrument-definition query. There
// is no ts_init ordering contract for instrument definitions, so they skip
// the ingest path: each is added to the cache directly, then streamed.
func (e *Engine) RequestInstruments(ctx context.Context, venue string, params RequestParams, deadline time.Time) <-chan HistoricalEvent {
	result, ok := e.requestVenue(ctx, venue, RequestInstruments, params, deadline)
	if !ok {
		return stream[model.Instrument](nil, nil)
	}
	instruments, _ := result.([]model.Instrument)
	for _, inst := range instruments {
		e.cache.AddInstrument(inst)
	}
	return stream(instruments, nil)
}
