// Package ndjson reads newline-delimited size streams. A Decoder fetches its
// source once, caches the decoded bytes and replays them on later passes.
package ndjson

import (
	"bytes"
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/size-analysis/internal/parser"
	"github.com/size-analysis/pkg/compression"
	apperrors "github.com/size-analysis/pkg/errors"
	"github.com/size-analysis/pkg/utils"
)

// DefaultChunkSize is the read size used when none is configured.
const DefaultChunkSize = 64 * 1024

// replayCheckEvery is how many cached lines are replayed between
// cancellation checks.
const replayCheckEvery = 1024

// ByteObserver receives every raw chunk read from the source, before
// decompression. Observers run on the reading goroutine and must not retain
// the chunk.
type ByteObserver func(chunk []byte)

// Option configures a Decoder.
type Option func(*Decoder)

// WithChunkSize sets the read size.
func WithChunkSize(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.chunkSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger utils.Logger) Option {
	return func(d *Decoder) {
		d.logger = utils.OrNull(logger)
	}
}

// Decoder is a restartable line reader over a Source. The first full pass
// streams from the source and fills an in-memory cache; later passes replay
// the cache. Starting a fetch aborts any fetch already running on the same
// Decoder.
type Decoder struct {
	source    Source
	chunkSize int
	logger    utils.Logger
	bytesRead atomic.Int64

	mu        sync.Mutex
	observers []ByteObserver
	cache     []byte
	complete  bool
	gen       uint64
	cancel    context.CancelFunc
}

var _ parser.LineDecoder = (*Decoder)(nil)

// NewDecoder creates a Decoder for src.
func NewDecoder(src Source, opts ...Option) *Decoder {
	d := &Decoder{
		source:    src,
		chunkSize: DefaultChunkSize,
		logger:    &utils.NullLogger{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Source returns the decoder's source.
func (d *Decoder) Source() Source {
	return d.source
}

// Observe registers an observer for raw chunks of future fetches.
func (d *Decoder) Observe(fn ByteObserver) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, fn)
}

// Cached reports whether a complete pass is held in memory.
func (d *Decoder) Cached() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.complete
}

// BytesRead returns the raw bytes read by the most recent fetch.
func (d *Decoder) BytesRead() int64 {
	return d.bytesRead.Load()
}

// Abort cancels any in-flight fetch and drops the cache.
func (d *Decoder) Abort() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.gen++
	d.cache = nil
	d.complete = false
}

// Lines calls fn with every line of the stream. A split line is reassembled
// before fn sees it. Cancellation, by ctx or by a newer fetch, yields an
// error matching parser.ErrAborted; open and read failures match
// parser.ErrTransport. Errors returned by fn stop the pass and are returned
// unchanged.
func (d *Decoder) Lines(ctx context.Context, fn func(line []byte) error) error {
	d.mu.Lock()
	if d.complete {
		data := d.cache
		d.mu.Unlock()
		return replay(ctx, data, fn)
	}

	if d.cancel != nil {
		d.logger.Debug("aborting in-flight fetch of %s", d.source.Key())
		d.cancel()
	}
	d.gen++
	gen := d.gen
	d.cache = nil
	fctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	observers := append([]ByteObserver(nil), d.observers...)
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		if d.gen == gen {
			d.cancel = nil
		}
		d.mu.Unlock()
		cancel()
	}()

	return d.fetch(fctx, gen, observers, fn)
}

func (d *Decoder) fetch(ctx context.Context, gen uint64, observers []ByteObserver, fn func([]byte) error) error {
	d.bytesRead.Store(0)

	rc, err := d.source.Open(ctx)
	if err != nil {
		return classify(ctx, err)
	}
	stop := context.AfterFunc(ctx, func() {
		rc.Close()
	})
	defer stop()
	defer rc.Close()

	src := &observedReader{r: rc, observers: observers, n: &d.bytesRead}
	r, _, err := compression.NewReader(src)
	if err != nil {
		return classify(ctx, err)
	}
	defer r.Close()

	buf := make([]byte, d.chunkSize)
	var holdover []byte
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			d.appendCache(gen, chunk)

			data := chunk
			if len(holdover) > 0 {
				data = append(holdover, chunk...)
			}
			rest, err := emitLines(data, fn)
			if err != nil {
				return err
			}
			holdover = append(holdover[:0:0], rest...)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return classify(ctx, rerr)
		}
		if ctx.Err() != nil {
			return classify(ctx, ctx.Err())
		}
	}

	if len(holdover) > 0 {
		if err := fn(holdover); err != nil {
			return err
		}
	}
	d.markComplete(gen)
	d.logger.Debug("fetched %s: %d bytes", d.source.Key(), d.bytesRead.Load())
	return nil
}

func (d *Decoder) appendCache(gen uint64, chunk []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen == gen {
		d.cache = append(d.cache, chunk...)
	}
}

func (d *Decoder) markComplete(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen == gen {
		d.complete = true
	}
}

// emitLines calls fn for each complete line in data and returns the
// trailing partial line.
func emitLines(data []byte, fn func([]byte) error) ([]byte, error) {
	for {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			return data, nil
		}
		if err := fn(data[:idx]); err != nil {
			return nil, err
		}
		data = data[idx+1:]
	}
}

func replay(ctx context.Context, data []byte, fn func([]byte) error) error {
	for i := 0; len(data) > 0; i++ {
		if i%replayCheckEvery == 0 && ctx.Err() != nil {
			return classify(ctx, ctx.Err())
		}
		line := data
		idx := bytes.IndexByte(data, '\n')
		if idx >= 0 {
			line, data = data[:idx], data[idx+1:]
		} else {
			data = nil
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return nil
}

// classify separates cancellation from transport failure.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return apperrors.Wrap(apperrors.CodeAborted, parser.ErrAborted.Message, ctx.Err())
	}
	return apperrors.Wrap(apperrors.CodeTransportError, parser.ErrTransport.Message, err)
}

type observedReader struct {
	r         io.Reader
	observers []ByteObserver
	n         *atomic.Int64
}

func (o *observedReader) Read(p []byte) (int, error) {
	n, err := o.r.Read(p)
	if n > 0 {
		o.n.Add(int64(n))
		for _, fn := range o.observers {
			fn(p[:n])
		}
	}
	return n, err
}
