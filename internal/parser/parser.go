// Package parser defines the contract between size stream decoders and the
// tree builder: a decoder yields lines, Decode turns them into records.
package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/size-analysis/pkg/model"

	apperrors "github.com/size-analysis/pkg/errors"
)

// LineDecoder yields the lines of a size stream in source order, without
// their trailing newline. fn must not retain line after it returns.
type LineDecoder interface {
	Lines(ctx context.Context, fn func(line []byte) error) error
}

// Handler receives decoded records.
type Handler interface {
	// OnMeta is called once, with the first record.
	OnMeta(meta *model.Meta) error

	// OnFileEntry is called for every later record.
	OnFileEntry(fe *model.FileEntry) error
}

// Stats summarizes a completed or interrupted decode.
type Stats struct {
	Lines       int64
	FileEntries int64
}

// Decode reads every record of dec into h. Blank lines are skipped. A line
// that is not valid JSON stops the decode with an error matching
// ErrMalformedRecord; errors returned by h or dec are passed through.
func Decode(ctx context.Context, dec LineDecoder, h Handler) (Stats, error) {
	var stats Stats
	sawMeta := false

	err := dec.Lines(ctx, func(line []byte) error {
		stats.Lines++
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			return nil
		}

		if !sawMeta {
			if line[0] != '{' {
				return fmt.Errorf("line %d: %w", stats.Lines, ErrMissingMeta)
			}
			var meta model.Meta
			if err := json.Unmarshal(line, &meta); err != nil {
				return malformed(stats.Lines, err)
			}
			sawMeta = true
			return h.OnMeta(&meta)
		}

		var fe model.FileEntry
		if err := json.Unmarshal(line, &fe); err != nil {
			return malformed(stats.Lines, err)
		}
		stats.FileEntries++
		return h.OnFileEntry(&fe)
	})
	if err != nil {
		return stats, err
	}
	if !sawMeta {
		return stats, ErrEmptyInput
	}
	return stats, nil
}

func malformed(line int64, err error) error {
	return fmt.Errorf("line %d: %w", line, apperrors.Wrap(apperrors.CodeParseError, ErrMalformedRecord.Message, err))
}

// HandlerFuncs adapts two functions to a Handler.
type HandlerFuncs struct {
	Meta      func(meta *model.Meta) error
	FileEntry func(fe *model.FileEntry) error
}

// OnMeta implements Handler.
func (h HandlerFuncs) OnMeta(meta *model.Meta) error {
	if h.Meta == nil {
		return nil
	}
	return h.Meta(meta)
}

// OnFileEntry implements Handler.
func (h HandlerFuncs) OnFileEntry(fe *model.FileEntry) error {
	if h.FileEntry == nil {
		return nil
	}
	return h.FileEntry(fe)
}
