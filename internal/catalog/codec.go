package catalog

import (
	"compress/gzip"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Decompressor wraps a raw partition file's byte stream with the codec's
// decompression. It returns a cleanup func to release any decoder-held
// resources (a no-op for codecs that need none).
type Decompressor interface {
	Decompress(r io.Reader) (io.Reader, func(), error)
}

type gzipDecompressor struct{}

func (gzipDecompressor) Decompress(r io.Reader) (io.Reader, func(), error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, nil, err
	}
	return gz, func() { gz.Close() }, nil
}

// snappyDecompressor backs the "snappy" codec on github.com/golang/snappy,
// the dependency ndrandal-feed-simulator pulls in (indirectly, via its
// Mongo driver) for the same reason: reading snappy-compressed streams
// without panicking on malformed input.
type snappyDecompressor struct{}

func (snappyDecompressor) Decompress(r io.Reader) (io.Reader, func(), error) {
	return snappy.NewReader(r), func() {}, nil
}

// zstdDecompressor backs the "zstd" codec on github.com/klauspost/compress,
// the same package NimbleMarkets-dbn-go uses directly for its own
// catalog-style DBN file reader.
type zstdDecompressor struct{}

func (zstdDecompressor) Decompress(r io.Reader) (io.Reader, func(), error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, nil, err
	}
	return dec.IOReadCloser(), func() { dec.Close() }, nil
}

// lz4Decompressor backs the "lz4" codec on github.com/pierrec/lz4/v4,
// already present in the retrieved pack as an indirect dependency of
// NimbleMarkets-dbn-go.
type lz4Decompressor struct{}

func (lz4Decompressor) Decompress(r io.Reader) (io.Reader, func(), error) {
	return lz4.NewReader(r), func() {}, nil
}

func defaultDecompressors() map[string]Decompressor {
	return map[string]Decompressor{
		"gzip":   gzipDecompressor{},
		"snappy": snappyDecompressor{},
		"zstd":   zstdDecompressor{},
		"lz4":    lz4Decompressor{},
	}
}

var extCodec = map[string]string{
	".gz":  "gzip",
	".sz":  "snappy",
	".zst": "zstd",
	".lz4": "lz4",
}
