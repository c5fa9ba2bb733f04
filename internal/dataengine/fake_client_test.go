package dataengine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nautilus-go/core/pkg/model"
)

func testSpotForRequest(t *testing.T) model.Spot {
	t.Helper()
	instID, err := model.NewInstrumentId("ETHUSDT", "BINANCE")
	if err != nil {
		t.Fatal(err)
	}
	minQty, _ := model.NewQuantity(decimal.NewFromFloat(0.001), 8)
	maxQty, _ := model.NewQuantity(decimal.NewFromFloat(1000), 8)
	return model.Spot{Base: model.Base{
		InstrumentID:    instID,
		PricePrecisionV: 2,
		SizePrecisionV:  8,
		TickSizeV:       decimal.NewFromFloat(0.01),
		MultiplierV:     decimal.NewFromInt(1),
		MinQuantityV:    minQty,
		MaxQuantityV:    maxQty,
		MinNotionalV:    model.NewMoney(decimal.NewFromInt(10), model.USDT),
		MaxNotionalV:    model.NewMoney(decimal.NewFromInt(1000000), model.USDT),
		SettlementCcy:   model.USDT,
	}}
}

// fakeDataClient is a minimal in-memory DataClient stand-in for tests —
// no network, no goroutines, just recorded calls and a scripted response.
type fakeDataClient struct {
	subscribed []string
	response   any
	err        error
}

func (f *fakeDataClient) Connect(ctx context.Context) error    { return nil }
func (f *fakeDataClient) Disconnect(ctx context.Context) error { return nil }

func (f *fakeDataClient) Subscribe(topic string, params map[string]string) error {
	f.subscribed = append(f.subscribed, topic)
	return nil
}

func (f *fakeDataClient) Unsubscribe(topic string) error { return nil }

func (f *fakeDataClient) Request(ctx context.Context, kind RequestKind, params RequestParams, deadline time.Time) (any, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

var errFakeClientTransport = errors.New("fake client transport error")

var _ DataClient = (*fakeDataClient)(nil)
