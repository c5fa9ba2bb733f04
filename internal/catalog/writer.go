package catalog

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nautilus-go/core/pkg/model"
)

// Writer appends day-partitions of historical data under dir, always using
// gzip/NDJSON, one batch per call rather than an append-as-you-go stream.
type Writer struct {
	dir string
}

// NewWriter returns a Writer rooted at dir. dir is created lazily, per
// partition, on the first write.
func NewWriter(dir string) *Writer { return &Writer{dir: dir} }

// WriteQuotes writes every quote in quotes to the day's partition file,
// overwriting any existing file for that instrument/day.
func (w *Writer) WriteQuotes(instID model.InstrumentId, day time.Time, quotes []model.QuoteTick) error {
	records := make([]any, len(quotes))
	for i, q := range quotes {
		rec, err := encodeQuote(q)
		if err != nil {
			return fmt.Errorf("catalog: encode quote %d: %w", i, err)
		}
		records[i] = rec
	}
	return w.writeFile(DataClassQuotes, instID, day, records)
}

// WriteTrades writes every trade in trades to the day's partition file.
func (w *Writer) WriteTrades(instID model.InstrumentId, day time.Time, trades []model.TradeTick) error {
	records := make([]any, len(trades))
	for i, tr := range trades {
		rec, err := encodeTrade(tr)
		if err != nil {
			return fmt.Errorf("catalog: encode trade %d: %w", i, err)
		}
		records[i] = rec
	}
	return w.writeFile(DataClassTrades, instID, day, records)
}

// WriteBars writes every bar in bars to the day's partition file. bars must
// already share a single BarType — the partition layout has no room for a
// mixed aggregation within one file.
func (w *Writer) WriteBars(instID model.InstrumentId, day time.Time, bars []model.Bar) error {
	records := make([]any, len(bars))
	for i, b := range bars {
		rec, err := encodeBar(b)
		if err != nil {
			return fmt.Errorf("catalog: encode bar %d: %w", i, err)
		}
		records[i] = rec
	}
	return w.writeFile(DataClassBars, instID, day, records)
}

func (w *Writer) writeFile(cls DataClass, instID model.InstrumentId, day time.Time, records []any) error {
	path := partitionBase(w.dir, cls, instID, day) + ".gz"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("catalog: mkdir: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := json.NewEncoder(gz)

	header := fileHeader{
		Version:      1,
		DataClass:    cls,
		InstrumentId: instID.String(),
		Codec:        "gzip",
		DecimalWidth: fixedDecimalWidth,
	}
	if err := enc.Encode(header); err != nil {
		gz.Close()
		return fmt.Errorf("catalog: encode header: %w", err)
	}
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			gz.Close()
			return fmt.Errorf("catalog: encode record: %w", err)
		}
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("catalog: gzip close: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("catalog: write %s: %w", path, err)
	}
	return nil
}
