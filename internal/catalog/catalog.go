// Package catalog is the kernel's on-disk historical data store: one
// file per instrument per UTC day, partitioned as
// <dir>/<data_class>/<instrument_id>/<YYYY-MM-DD>.jsonl.<ext>, following
// the same day-partitioned gzip/NDJSON archive pattern a trade archiver
// would use — this is a reduced-schema NDJSON stand-in
// for the upstream Parquet catalog (full Parquet/Arrow support is out of
// scope). The Writer always emits gzip; the Reader additionally accepts
// snappy, zstd and lz4 partitions via a pluggable Decompressor registry, so
// a catalog directory populated by an external ingestion job using any of
// those codecs still opens cleanly. Every record's price and size round
// trip through a 16-byte FixedDecimal; a partition whose header declares
// the legacy 8-byte width is rejected the moment a session opens it.
package catalog

import (
	"path/filepath"
	"time"

	"github.com/nautilus-go/core/pkg/model"
)

// DataClass names the kind of record a partition file holds.
type DataClass string

const (
	DataClassQuotes DataClass = "quotes"
	DataClassTrades DataClass = "trades"
	DataClassBars   DataClass = "bars"
)

// fileHeader is the first NDJSON line of every partition file: enough for
// a reader to validate the file before trusting any record in it.
type fileHeader struct {
	Version      int       `json:"version"`
	DataClass    DataClass `json:"data_class"`
	InstrumentId string    `json:"instrument_id"`
	Codec        string    `json:"codec"`
	DecimalWidth int       `json:"decimal_width"`
}

func partitionBase(dir string, cls DataClass, instID model.InstrumentId, day time.Time) string {
	return filepath.Join(dir, string(cls), instID.String(), day.UTC().Format("2006-01-02")+".jsonl")
}
