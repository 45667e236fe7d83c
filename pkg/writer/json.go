// Package writer writes formatted trees as JSON, optionally compressed.
package writer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/size-analysis/pkg/compression"
)

// JSONWriter encodes values of T as JSON and compresses the output with
// Compression.
type JSONWriter[T any] struct {
	// Indent enables pretty printing. Empty means compact output.
	Indent      string
	Compression compression.Type
	Level       compression.Level
}

// NewJSONWriter creates a writer with compact, uncompressed output.
func NewJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{Level: compression.LevelDefault}
}

// NewPrettyJSONWriter creates a writer with indented, uncompressed output.
func NewPrettyJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{Indent: "  ", Level: compression.LevelDefault}
}

// NewCompressedJSONWriter creates a writer with compact output compressed
// by t at level.
func NewCompressedJSONWriter[T any](t compression.Type, level compression.Level) *JSONWriter[T] {
	return &JSONWriter[T]{Compression: t, Level: level}
}

// WriteResult reports the sizes of one write.
type WriteResult struct {
	JSONSize       int64
	CompressedSize int64
}

// Ratio returns the compressed size as a fraction of the JSON size.
func (r *WriteResult) Ratio() float64 {
	if r.JSONSize == 0 {
		return 0
	}
	return float64(r.CompressedSize) / float64(r.JSONSize)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Write encodes data to w and reports the encoded and written sizes.
func (w *JSONWriter[T]) Write(data T, out io.Writer) (*WriteResult, error) {
	compressed := &countingWriter{w: out}
	zw, err := compression.NewWriter(compressed, w.Compression, w.Level)
	if err != nil {
		return nil, err
	}
	plain := &countingWriter{w: zw}

	enc := json.NewEncoder(plain)
	if w.Indent != "" {
		enc.SetIndent("", w.Indent)
	}
	if err := enc.Encode(data); err != nil {
		zw.Close()
		return nil, fmt.Errorf("failed to encode data: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to flush %s stream: %w", w.Compression, err)
	}
	return &WriteResult{JSONSize: plain.n, CompressedSize: compressed.n}, nil
}

// WriteToFile writes data to path, creating or truncating it.
func (w *JSONWriter[T]) WriteToFile(data T, path string) (*WriteResult, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	res, err := w.Write(data, file)
	if cerr := file.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close file: %w", cerr)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}
