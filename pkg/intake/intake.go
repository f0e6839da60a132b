// Package intake validates and decodes report files at the I/O boundary.
// Only .json and .sarif files up to 50MB are accepted; a trailing .gz or
// .zst extension is decompressed transparently and the limit applies to the
// decompressed size.
package intake

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/exploopio/reportlens/pkg/compress"
	"github.com/exploopio/reportlens/pkg/errors"
)

// MaxReportSize is the largest accepted report, after decompression.
const MaxReportSize int64 = 50 << 20

// AllowedExtensions are the report extensions accepted before an optional
// compression suffix.
var AllowedExtensions = []string{".json", ".sarif"}

// ValidateExtension checks the file name and returns the compression implied
// by its suffix.
func ValidateExtension(name string) (compress.Algorithm, error) {
	alg, base := compress.FromExtension(name)
	ext := strings.ToLower(filepath.Ext(base))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return alg, nil
		}
	}
	return alg, errors.E(errors.KindInvalidInput, "intake.ValidateExtension",
		fmt.Sprintf("unsupported file extension %q: expected .json or .sarif", ext))
}

// ValidateUpload checks a file name and its declared size. A negative size
// means unknown and skips the size check.
func ValidateUpload(name string, size int64) error {
	if _, err := ValidateExtension(name); err != nil {
		return err
	}
	if size > MaxReportSize {
		return errors.Wrap(errors.ErrTooLarge, "intake.ValidateUpload")
	}
	return nil
}

// ReadFile validates path, then reads, decompresses and decodes it.
func ReadFile(path string) (any, error) {
	const op = "intake.ReadFile"

	alg, err := ValidateExtension(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.E(errors.KindInvalidInput, op, "cannot access report file", err)
	}
	if info.IsDir() {
		return nil, errors.E(errors.KindInvalidInput, op, fmt.Sprintf("%s is a directory", path))
	}
	if alg == compress.AlgorithmNone && info.Size() > MaxReportSize {
		return nil, errors.Wrap(errors.ErrTooLarge, op)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.E(errors.KindInvalidInput, op, "cannot open report file", err)
	}
	defer f.Close()

	return Decode(f, alg, MaxReportSize)
}

// Decode decompresses r and unmarshals the JSON it holds. When alg is none
// the stream is sniffed for gzip or zstd magic bytes. More than limit
// decompressed bytes is an error.
func Decode(r io.Reader, alg compress.Algorithm, limit int64) (any, error) {
	data, err := ReadAll(r, alg, limit)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// ReadAll returns the decompressed content of r, bounded by limit.
func ReadAll(r io.Reader, alg compress.Algorithm, limit int64) ([]byte, error) {
	const op = "intake.ReadAll"

	br := bufio.NewReader(r)
	if alg == compress.AlgorithmNone || alg == "" {
		head, _ := br.Peek(4)
		alg = compress.Sniff(head)
	}

	dec, err := compress.NewReader(br, alg)
	if err != nil {
		return nil, errors.E(errors.KindInvalidInput, op, "cannot decompress report", err)
	}
	defer dec.Close()

	data, err := io.ReadAll(io.LimitReader(dec, limit+1))
	if err != nil {
		if errors.IsTooLarge(err) {
			return nil, errors.Wrap(errors.ErrTooLarge, op)
		}
		return nil, errors.E(errors.KindInvalidInput, op, "cannot read report", err)
	}
	if int64(len(data)) > limit {
		return nil, errors.Wrap(errors.ErrTooLarge, op)
	}
	return data, nil
}

// Unmarshal decodes JSON, reporting syntax errors with their byte offset.
func Unmarshal(data []byte) (any, error) {
	const op = "intake.Unmarshal"

	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.E(errors.KindInvalidInput, op, "report is empty")
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return nil, errors.E(errors.KindInvalidInput, op,
				fmt.Sprintf("invalid JSON at offset %d", syntaxErr.Offset), err)
		}
		return nil, errors.E(errors.KindInvalidInput, op, "invalid JSON", err)
	}
	return raw, nil
}
