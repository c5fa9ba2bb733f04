package dataengine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nautilus-go/core/pkg/model"
)

func drain(ch <-chan HistoricalEvent) []HistoricalEvent {
	var out []HistoricalEvent
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestRequestBarsWithNoClientReturnsEmptyTerminalOnly(t *testing.T) {
	t.Parallel()

	e := newEngine(t, false)
	events := drain(e.RequestBars(context.Background(), "UNKNOWN", "data.bars.x", RequestParams{}, time.Now()))

	require.Len(t, events, 1)
	assert.True(t, events[0].Terminal)
}

func TestRequestBarsStreamsThenTerminates(t *testing.T) {
	t.Parallel()

	e := newEngine(t, false)
	barType, err := model.ParseBarType("BTCUSDT.BINANCE-1-MINUTE-LAST-EXTERNAL")
	require.NoError(t, err)

	bars := []model.Bar{
		{Type: barType, TsInit: 1},
		{Type: barType, TsInit: 2},
	}
	e.RegisterClient("BINANCE", &fakeDataClient{response: bars})

	events := drain(e.RequestBars(context.Background(), "BINANCE", "data.bars.BTCUSDT", RequestParams{}, time.Now()))

	require.Len(t, events, 3)
	assert.False(t, events[0].Terminal)
	assert.False(t, events[1].Terminal)
	assert.True(t, events[2].Terminal)

	// historical bars must flow through the same ingest path as live ones
	cachedBars := e.cache.Bars(barType)
	assert.Len(t, cachedBars, 2)
}

func TestRequestBarsWithTransportErrorReturnsEmptyTerminalOnly(t *testing.T) {
	t.Parallel()

	e := newEngine(t, false)
	e.RegisterClient("BINANCE", &fakeDataClient{err: errFakeClientTransport})

	events := drain(e.RequestBars(context.Background(), "BINANCE", "data.bars.x", RequestParams{}, time.Now()))
	require.Len(t, events, 1)
	assert.True(t, events[0].Terminal)
}

func TestRequestInstrumentsIndexesIntoCache(t *testing.T) {
	t.Parallel()

	e := newEngine(t, false)
	spot := testSpotForRequest(t)
	e.RegisterClient("BINANCE", &fakeDataClient{response: []model.Instrument{spot}})

	events := drain(e.RequestInstruments(context.Background(), "BINANCE", RequestParams{}, time.Now()))
	require.Len(t, events, 2)

	got, err := e.cache.Instrument(spot.ID())
	require.NoError(t, err)
	assert.Equal(t, spot.ID(), got.ID())
}
