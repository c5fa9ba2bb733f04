package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/nautilus-go/core/pkg/model"
)

// ErrUnsupportedDecimalWidth is returned when a partition's header declares
// a coefficient width this reader does not support — the legacy 8-byte
// layout.
var ErrUnsupportedDecimalWidth = errors.New("catalog: unsupported fixed-decimal width")

// ErrNoPartition is returned when no file exists for the requested
// instrument/day under any registered codec extension.
var ErrNoPartition = errors.New("catalog: no partition file")

// Session streams one partition file's records after validating its
// header. Callers use the typed Read* methods on Reader rather than a
// Session directly.
type Session struct {
	header  fileHeader
	dec     *json.Decoder
	cleanup func()
	file    *os.File
}

// Close releases the session's decoder and underlying file.
func (s *Session) Close() error {
	if s.cleanup != nil {
		s.cleanup()
	}
	return s.file.Close()
}

// Reader reads day-partitioned historical data back out of dir.
type Reader struct {
	dir           string
	decompressors map[string]Decompressor
}

// NewReader returns a Reader rooted at dir with the default gzip/snappy/
// zstd/lz4 decompressors registered.
func NewReader(dir string) *Reader {
	return &Reader{dir: dir, decompressors: defaultDecompressors()}
}

// RegisterDecompressor overrides or adds the Decompressor used for codec.
func (r *Reader) RegisterDecompressor(codec string, d Decompressor) {
	r.decompressors[codec] = d
}

func (r *Reader) findPath(cls DataClass, instID model.InstrumentId, day time.Time) (string, error) {
	base := partitionBase(r.dir, cls, instID, day)
	for _, ext := range []string{".gz", ".sz", ".zst", ".lz4"} {
		p := base + ext
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s/%s/%s", ErrNoPartition, cls, instID, day.UTC().Format("2006-01-02"))
}

// openSession opens path, decompresses it per its extension, and decodes
// and validates its header before returning a Session ready for record
// decoding. This is where an 8-byte-width partition is rejected, at
// session open rather than on first read.
func (r *Reader) openSession(path string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	codec, ok := extCodec[filepath.Ext(path)]
	if !ok {
		f.Close()
		return nil, fmt.Errorf("catalog: %s: unrecognized codec extension", path)
	}
	decomp, ok := r.decompressors[codec]
	if !ok {
		f.Close()
		return nil, fmt.Errorf("catalog: no decompressor registered for codec %q", codec)
	}
	stream, cleanup, err := decomp.Decompress(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("catalog: decompress %s: %w", path, err)
	}

	dec := json.NewDecoder(stream)
	var header fileHeader
	if err := dec.Decode(&header); err != nil {
		if cleanup != nil {
			cleanup()
		}
		f.Close()
		return nil, fmt.Errorf("catalog: decode header %s: %w", path, err)
	}
	if header.DecimalWidth != fixedDecimalWidth {
		if cleanup != nil {
			cleanup()
		}
		f.Close()
		return nil, fmt.Errorf("catalog: %s declares %d-byte fixed decimals, only %d-byte is supported: %w",
			path, header.DecimalWidth, fixedDecimalWidth, ErrUnsupportedDecimalWidth)
	}
	return &Session{header: header, dec: dec, cleanup: cleanup, file: f}, nil
}

// ReadQuotes returns every quote in the instrument's day partition, in file
// order. inst supplies the precision MakePrice/MakeQty reconstruct records
// at.
func (r *Reader) ReadQuotes(inst model.Instrument, day time.Time) ([]model.QuoteTick, error) {
	path, err := r.findPath(DataClassQuotes, inst.ID(), day)
	if err != nil {
		return nil, err
	}
	sess, err := r.openSession(path)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	var out []model.QuoteTick
	for {
		var rec quoteRecord
		if err := sess.dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("catalog: decode quote: %w", err)
		}
		q, err := rec.toModel(inst, inst.ID())
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// ReadTrades returns every trade in the instrument's day partition, in
// file order.
func (r *Reader) ReadTrades(inst model.Instrument, day time.Time) ([]model.TradeTick, error) {
	path, err := r.findPath(DataClassTrades, inst.ID(), day)
	if err != nil {
		return nil, err
	}
	sess, err := r.openSession(path)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	var out []model.TradeTick
	for {
		var rec tradeRecord
		if err := sess.dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("catalog: decode trade: %w", err)
		}
		tr, err := rec.toModel(inst, inst.ID())
		if err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, nil
}

// ReadBars returns every bar in the instrument's day partition, tagged with
// barType (the partition itself carries no bar-specification metadata —
// callers request bars the same way RequestBars does, by BarType).
func (r *Reader) ReadBars(inst model.Instrument, barType model.BarType, day time.Time) ([]model.Bar, error) {
	path, err := r.findPath(DataClassBars, inst.ID(), day)
	if err != nil {
		return nil, err
	}
	sess, err := r.openSession(path)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	var out []model.Bar
	for {
		var rec barRecord
		if err := sess.dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("catalog: decode bar: %w", err)
		}
		b, err := rec.toModel(inst, barType)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
