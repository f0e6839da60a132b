// Package compress encodes and decodes gzip and zstd streams for report
// files, HTTP request bodies and CLI output.
//
//	c := compress.NewCompressor(compress.AlgorithmZSTD, compress.LevelDefault)
//	out, err := c.Compress(summaryJSON)
//
//	r, err := compress.NewReader(body, compress.Sniff(head))
package compress

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Algorithm names a supported encoding.
type Algorithm string

const (
	AlgorithmZSTD Algorithm = "zstd"
	AlgorithmGzip Algorithm = "gzip"
	AlgorithmNone Algorithm = "none"
)

// Level trades speed for ratio on a 1 (fastest) to 9 (best) scale.
type Level int

const (
	LevelFastest Level = 1
	LevelDefault Level = 3
	LevelBest    Level = 9
)

// maxDecoderMemory bounds the zstd window a hostile stream can request.
const maxDecoderMemory = 256 << 20

type codec struct {
	ext   string
	magic []byte
}

var codecs = map[Algorithm]codec{
	AlgorithmGzip: {ext: ".gz", magic: []byte{0x1f, 0x8b}},
	AlgorithmZSTD: {ext: ".zst", magic: []byte{0x28, 0xb5, 0x2f, 0xfd}},
}

func unsupported(a Algorithm) error {
	return fmt.Errorf("unsupported compression algorithm: %s", a)
}

// ParseAlgorithm maps a config value or Content-Encoding header to an
// Algorithm. Empty and "identity" mean none.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "identity":
		return AlgorithmNone, nil
	case "gzip", "gz", "x-gzip":
		return AlgorithmGzip, nil
	case "zstd", "zst":
		return AlgorithmZSTD, nil
	}
	return "", unsupported(Algorithm(s))
}

// FromExtension returns the algorithm implied by a trailing .gz, .zst or
// .zstd extension and the path without it.
func FromExtension(path string) (Algorithm, string) {
	ext := filepath.Ext(path)
	var alg Algorithm
	switch strings.ToLower(ext) {
	case ".gz":
		alg = AlgorithmGzip
	case ".zst", ".zstd":
		alg = AlgorithmZSTD
	default:
		return AlgorithmNone, path
	}
	return alg, strings.TrimSuffix(path, ext)
}

// Extension returns the file extension for a, including the dot, or "".
func (a Algorithm) Extension() string {
	return codecs[a].ext
}

// Sniff detects gzip or zstd from the leading magic bytes.
func Sniff(head []byte) Algorithm {
	for alg, c := range codecs {
		if bytes.HasPrefix(head, c.magic) {
			return alg
		}
	}
	return AlgorithmNone
}

// NewReader wraps r with a streaming decoder. Closing the returned reader
// releases decoder resources but does not close r.
func NewReader(r io.Reader, a Algorithm) (io.ReadCloser, error) {
	switch a {
	case AlgorithmNone, "":
		return io.NopCloser(r), nil
	case AlgorithmGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		return gz, nil
	case AlgorithmZSTD:
		dec, err := zstd.NewReader(r, zstd.WithDecoderMaxMemory(maxDecoderMemory), zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		return dec.IOReadCloser(), nil
	}
	return nil, unsupported(a)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewWriter wraps w with a streaming encoder. Close flushes the encoder but
// does not close w.
func NewWriter(w io.Writer, a Algorithm, level Level) (io.WriteCloser, error) {
	switch a {
	case AlgorithmNone, "":
		return nopWriteCloser{w}, nil
	case AlgorithmGzip:
		gw, err := gzip.NewWriterLevel(w, gzipLevel(level))
		if err != nil {
			return nil, fmt.Errorf("gzip writer: %w", err)
		}
		return gw, nil
	case AlgorithmZSTD:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(int(level))))
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		return zw, nil
	}
	return nil, unsupported(a)
}

func gzipLevel(l Level) int {
	switch {
	case l <= LevelFastest:
		return gzip.BestSpeed
	case l >= LevelBest:
		return gzip.BestCompression
	}
	return gzip.DefaultCompression
}

// Compressor compresses whole buffers. A zstd Compressor keeps one encoder
// and one decoder and is safe for concurrent use.
type Compressor struct {
	algorithm Algorithm
	level     Level

	zenc *zstd.Encoder
	zdec *zstd.Decoder
}

func NewCompressor(a Algorithm, level Level) *Compressor {
	c := &Compressor{algorithm: a, level: level}
	if a == AlgorithmZSTD {
		// Both constructors only fail on invalid options.
		c.zenc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(int(level))))
		c.zdec, _ = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecoderMemory))
	}
	return c
}

func (c *Compressor) Algorithm() Algorithm {
	return c.algorithm
}

// ContentEncoding returns the HTTP Content-Encoding value, "" for none.
func (c *Compressor) ContentEncoding() string {
	if _, ok := codecs[c.algorithm]; ok {
		return string(c.algorithm)
	}
	return ""
}

func (c *Compressor) Compress(data []byte) ([]byte, error) {
	switch c.algorithm {
	case AlgorithmNone:
		return data, nil
	case AlgorithmZSTD:
		return c.zenc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
	case AlgorithmGzip:
		var buf bytes.Buffer
		w, err := NewWriter(&buf, AlgorithmGzip, c.level)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("gzip write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("gzip close: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, unsupported(c.algorithm)
}

func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	switch c.algorithm {
	case AlgorithmNone:
		return data, nil
	case AlgorithmZSTD:
		out, err := c.zdec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return out, nil
	case AlgorithmGzip:
		r, err := NewReader(bytes.NewReader(data), AlgorithmGzip)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("gzip decompress: %w", err)
		}
		return out, nil
	}
	return nil, unsupported(c.algorithm)
}
