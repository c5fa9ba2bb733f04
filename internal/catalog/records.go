package catalog

import (
	"fmt"

	"github.com/nautilus-go/core/pkg/model"
)

type quoteRecord struct {
	BidPrice FixedDecimal `json:"bid_price"`
	AskPrice FixedDecimal `json:"ask_price"`
	BidSize  FixedDecimal `json:"bid_size"`
	AskSize  FixedDecimal `json:"ask_size"`
	TsEvent  int64        `json:"ts_event"`
	TsInit   int64        `json:"ts_init"`
}

func encodeQuote(q model.QuoteTick) (quoteRecord, error) {
	bidPx, err := EncodeFixedDecimal(q.BidPrice.Decimal)
	if err != nil {
		return quoteRecord{}, err
	}
	askPx, err := EncodeFixedDecimal(q.AskPrice.Decimal)
	if err != nil {
		return quoteRecord{}, err
	}
	bidSz, err := EncodeFixedDecimal(q.BidSize.Decimal)
	if err != nil {
		return quoteRecord{}, err
	}
	askSz, err := EncodeFixedDecimal(q.AskSize.Decimal)
	if err != nil {
		return quoteRecord{}, err
	}
	return quoteRecord{BidPrice: bidPx, AskPrice: askPx, BidSize: bidSz, AskSize: askSz, TsEvent: q.TsEvent, TsInit: q.TsInit}, nil
}

func (r quoteRecord) toModel(inst model.Instrument, instID model.InstrumentId) (model.QuoteTick, error) {
	bidSz, err := inst.MakeQty(r.BidSize.Decode())
	if err != nil {
		return model.QuoteTick{}, fmt.Errorf("catalog: quote bid size: %w", err)
	}
	askSz, err := inst.MakeQty(r.AskSize.Decode())
	if err != nil {
		return model.QuoteTick{}, fmt.Errorf("catalog: quote ask size: %w", err)
	}
	return model.QuoteTick{
		InstrumentId: instID,
		BidPrice:     inst.MakePrice(r.BidPrice.Decode()),
		AskPrice:     inst.MakePrice(r.AskPrice.Decode()),
		BidSize:      bidSz,
		AskSize:      askSz,
		TsEvent:      r.TsEvent,
		TsInit:       r.TsInit,
	}, nil
}

type tradeRecord struct {
	Price         FixedDecimal       `json:"price"`
	Size          FixedDecimal       `json:"size"`
	AggressorSide model.AggressorSide `json:"aggressor_side"`
	TradeId       string             `json:"trade_id"`
	TsEvent       int64              `json:"ts_event"`
	TsInit        int64              `json:"ts_init"`
}

func encodeTrade(tr model.TradeTick) (tradeRecord, error) {
	px, err := EncodeFixedDecimal(tr.Price.Decimal)
	if err != nil {
		return tradeRecord{}, err
	}
	sz, err := EncodeFixedDecimal(tr.Size.Decimal)
	if err != nil {
		return tradeRecord{}, err
	}
	return tradeRecord{Price: px, Size: sz, AggressorSide: tr.AggressorSide, TradeId: tr.TradeId, TsEvent: tr.TsEvent, TsInit: tr.TsInit}, nil
}

func (r tradeRecord) toModel(inst model.Instrument, instID model.InstrumentId) (model.TradeTick, error) {
	sz, err := inst.MakeQty(r.Size.Decode())
	if err != nil {
		return model.TradeTick{}, fmt.Errorf("catalog: trade size: %w", err)
	}
	return model.TradeTick{
		InstrumentId:  instID,
		Price:         inst.MakePrice(r.Price.Decode()),
		Size:          sz,
		AggressorSide: r.AggressorSide,
		TradeId:       r.TradeId,
		TsEvent:       r.TsEvent,
		TsInit:        r.TsInit,
	}, nil
}

type barRecord struct {
	Open    FixedDecimal `json:"open"`
	High    FixedDecimal `json:"high"`
	Low     FixedDecimal `json:"low"`
	Close   FixedDecimal `json:"close"`
	Volume  FixedDecimal `json:"volume"`
	TsEvent int64        `json:"ts_event"`
	TsInit  int64        `json:"ts_init"`
}

func encodeBar(b model.Bar) (barRecord, error) {
	open, err := EncodeFixedDecimal(b.Open.Decimal)
	if err != nil {
		return barRecord{}, err
	}
	high, err := EncodeFixedDecimal(b.High.Decimal)
	if err != nil {
		return barRecord{}, err
	}
	low, err := EncodeFixedDecimal(b.Low.Decimal)
	if err != nil {
		return barRecord{}, err
	}
	closePx, err := EncodeFixedDecimal(b.Close.Decimal)
	if err != nil {
		return barRecord{}, err
	}
	vol, err := EncodeFixedDecimal(b.Volume.Decimal)
	if err != nil {
		return barRecord{}, err
	}
	return barRecord{Open: open, High: high, Low: low, Close: closePx, Volume: vol, TsEvent: b.TsEvent, TsInit: b.TsInit}, nil
}

func (r barRecord) toModel(inst model.Instrument, barType model.BarType) (model.Bar, error) {
	vol, err := inst.MakeQty(r.Volume.Decode())
	if err != nil {
		return model.Bar{}, fmt.Errorf("catalog: bar volume: %w", err)
	}
	return model.Bar{
		Type:    barType,
		Open:    inst.MakePrice(r.Open.Decode()),
		High:    inst.MakePrice(r.High.Decode()),
		Low:     inst.MakePrice(r.Low.Decode()),
		Close:   inst.MakePrice(r.Close.Decode()),
		Volume:  vol,
		TsEvent: r.TsEvent,
		TsInit:  r.TsInit,
	}, nil
}
