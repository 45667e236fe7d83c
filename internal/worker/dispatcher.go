package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/size-analysis/internal/options"
	"github.com/size-analysis/internal/parser"
	"github.com/size-analysis/internal/parser/ndjson"
	"github.com/size-analysis/internal/repository"
	"github.com/size-analysis/internal/sizetree"
	"github.com/size-analysis/internal/storage"
	apperrors "github.com/size-analysis/pkg/errors"
	"github.com/size-analysis/pkg/model"
	"github.com/size-analysis/pkg/utils"
)

// Progress percent bounds for partial snapshots.
const (
	minPercent = 0.1
	maxPercent = 0.99
)

// DefaultProgressInterval is the minimum time between progress messages.
const DefaultProgressInterval = 500 * time.Millisecond

// Config holds dispatcher configuration.
type Config struct {
	ProgressInterval time.Duration
	ChunkSize        int
	DecoderCacheSize int
	// DefaultOptions is used when a load carries no options.
	DefaultOptions string
	// DenyFiles rejects inputs that resolve to local paths.
	DenyFiles bool

	Store      storage.Storage
	HTTPClient *http.Client
	// Recorder persists load history. Optional.
	Recorder repository.LoadRepository

	Clock  utils.Clock
	Logger utils.Logger

	// ErrorHandler receives every request error after it has been posted.
	// Aborted and superseded loads are not errors.
	ErrorHandler func(err error)
}

// Dispatcher executes requests against one Session and posts replies to a
// Sink. Handle may be called concurrently.
type Dispatcher struct {
	cfg     Config
	session *Session
	sink    Sink
	gate    loadGate
	logger  utils.Logger
	clock   utils.Clock
}

// NewDispatcher creates a dispatcher with a fresh session.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = DefaultProgressInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = utils.NewRealClock()
	}
	logger := utils.OrNull(cfg.Logger)
	session := NewSession(uuid.NewString(), cfg.DecoderCacheSize)

	return &Dispatcher{
		cfg:     cfg,
		session: session,
		sink:    sink,
		logger:  logger.WithField("session", session.ID),
		clock:   cfg.Clock,
	}
}

// Session returns the dispatcher's session.
func (d *Dispatcher) Session() *Session {
	return d.session
}

// Handle executes one request. Errors are posted to the sink before they
// are returned; a panic in the request body is recovered, posted and
// returned as an error.
func (d *Dispatcher) Handle(ctx context.Context, req *Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.FromPanic(r)
			d.logger.Error("panic in %s request %d: %v", req.Action, req.ID, r)
			msg := &Message{ID: req.ID}
			if req.Action == ActionLoad {
				msg.ID, msg.Percent = ProgressID, 1
			}
			msg.setError(err)
			d.post(msg)
		}
		if err != nil && d.cfg.ErrorHandler != nil {
			d.cfg.ErrorHandler(err)
		}
	}()

	switch req.Action {
	case ActionLoad:
		load, derr := DecodeLoad(req.Data)
		if derr != nil {
			msg := &Message{ID: ProgressID, Percent: 1}
			msg.setError(derr)
			d.post(msg)
			return derr
		}
		if req.Blob != nil {
			load.Blob = req.Blob
		}
		return d.Load(ctx, load)
	case ActionOpen:
		path, derr := DecodeOpen(req.Data)
		if derr != nil {
			msg := &Message{ID: req.ID}
			msg.setError(derr)
			d.post(msg)
			return derr
		}
		return d.Open(ctx, req.ID, path)
	default:
		uerr := apperrors.New(apperrors.CodeInvalidInput, fmt.Sprintf("unknown action %q", req.Action))
		msg := &Message{ID: req.ID}
		msg.setError(uerr)
		d.post(msg)
		return uerr
	}
}

// Open posts the formatted node at path. A miss is posted as a NOT_FOUND
// error reply.
func (d *Dispatcher) Open(ctx context.Context, id int64, path string) error {
	_, span := startOpenSpan(ctx, path)
	defer span.End()

	node, err := d.session.Open(path, 1)
	if err != nil {
		result := "error"
		if apperrors.IsNotFound(err) {
			result = "not_found"
		}
		opensTotal.WithLabelValues(result).Inc()
		span.SetStatus(codes.Error, err.Error())

		msg := &Message{ID: id}
		msg.setError(err)
		d.post(msg)
		return err
	}

	opensTotal.WithLabelValues("ok").Inc()
	d.post(&Message{ID: id, Result: node})
	return nil
}

// Load builds a new tree from req. Overlapping loads are debounced: the
// running load is aborted and only the most recent waiting load runs; loads
// superseded while waiting return without doing anything. Aborted and
// superseded loads post nothing and return nil.
func (d *Dispatcher) Load(ctx context.Context, req *LoadRequest) error {
	lctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !d.gate.acquire(ctx, cancel) {
		d.logger.Debug("load of %s superseded before it started", req.Input)
		loadsTotal.WithLabelValues(model.LoadStatusSuperseded.String()).Inc()
		return nil
	}
	defer d.gate.release()

	return d.runLoad(lctx, req)
}

// loadRun carries the state of one load body.
type loadRun struct {
	rec      *model.LoadRecord
	builder  *sizetree.Builder
	decoder  *ndjson.Decoder
	throttle *utils.Throttle
	total    float64
	diffMode bool
}

func (d *Dispatcher) runLoad(ctx context.Context, req *LoadRequest) error {
	start := d.clock.Now()

	query := req.Options
	if query == "" {
		query = d.cfg.DefaultOptions
	}
	opts := options.Parse(query)
	for _, w := range opts.Warnings {
		d.logger.Warn("options: %s", w)
	}

	ctx, span := startLoadSpan(ctx, req.Input, opts.Encode())
	defer span.End()

	run := &loadRun{
		rec: &model.LoadRecord{
			ID:        uuid.NewString(),
			SessionID: d.session.ID,
			Input:     req.Input,
			Options:   opts.Encode(),
			Status:    model.LoadStatusRunning,
			StartedAt: start,
		},
		throttle: utils.NewThrottle(d.clock, d.cfg.ProgressInterval),
	}
	d.recordStart(ctx, run.rec)

	err := d.ingest(ctx, req, opts, run)
	status := d.finishLoad(run, err)

	loadsTotal.WithLabelValues(status.String()).Inc()
	loadDuration.WithLabelValues(status.String()).Observe(d.clock.Since(start).Seconds())
	span.SetAttributes(
		attribute.String("load.status", status.String()),
		attribute.Int64("load.file_entries", run.fileEntries()),
	)
	if err != nil && status != model.LoadStatusAborted {
		span.SetStatus(codes.Error, err.Error())
	}

	d.recordFinish(run, status, err)
	if status == model.LoadStatusAborted {
		return nil
	}
	return err
}

// ingest resolves the input and streams it into a new builder.
func (d *Dispatcher) ingest(ctx context.Context, req *LoadRequest, opts *options.BuildOptions, run *loadRun) error {
	var src ndjson.Source
	if req.Blob != nil {
		src = ndjson.NewBlobSource(req.Blob)
	} else {
		var err error
		src, err = ndjson.Resolve(req.Input, d.cfg.Store, d.cfg.HTTPClient)
		if err != nil {
			return err
		}
		if _, local := src.(*ndjson.FileSource); local && d.cfg.DenyFiles {
			return apperrors.New(apperrors.CodeInvalidInput, "local file inputs are disabled")
		}
	}
	if blob, ok := src.(*ndjson.BlobSource); ok {
		run.rec.Fingerprint = blob.Key()
	}

	dec, hit := d.session.decoder(src, ndjson.WithChunkSize(d.cfg.ChunkSize), ndjson.WithLogger(d.logger))
	if hit {
		decoderCacheHits.Inc()
	}
	run.decoder = dec

	h := parser.HandlerFuncs{
		Meta: func(meta *model.Meta) error {
			run.builder = sizetree.NewBuilder(sizetree.ConfigFromOptions(opts, meta))
			run.total = meta.Total
			run.diffMode = meta.DiffMode
			d.session.reset(run.builder, meta.DiffMode)
			return nil
		},
		FileEntry: func(fe *model.FileEntry) error {
			if err := d.session.add(run.builder, fe); err != nil {
				return err
			}
			fileEntriesTotal.Inc()
			if run.throttle.Ready() {
				d.postProgress(run)
			}
			return nil
		},
	}

	_, err := parser.Decode(ctx, dec, h)
	if err != nil && !errors.Is(err, parser.ErrAborted) && !dec.Cached() {
		// A failed pass leaves nothing worth replaying.
		d.session.forget(src.Key())
	}
	return err
}

// finishLoad posts the terminal message for run and classifies err.
func (d *Dispatcher) finishLoad(run *loadRun, err error) model.LoadStatus {
	switch {
	case err == nil:
		root := d.session.finish(run.builder, 1)
		d.post(&Message{ID: ProgressID, Percent: 1, Root: root, DiffMode: run.diffMode, LoadID: run.rec.ID})
		d.logger.Info("load %s completed: %d file entries", run.rec.ID, run.fileEntries())
		return model.LoadStatusCompleted

	case apperrors.IsAborted(err):
		d.logger.Info("load %s aborted: %v", run.rec.ID, err)
		return model.LoadStatusAborted

	case apperrors.IsTransportError(err) && run.builder != nil:
		d.logger.Error("load %s transport failure: %v", run.rec.ID, err)
		msg := &Message{
			ID:       ProgressID,
			Percent:  1,
			Root:     d.session.snapshot(run.builder, 1),
			DiffMode: run.diffMode,
			LoadID:   run.rec.ID,
		}
		msg.setError(err)
		d.post(msg)
		return model.LoadStatusFailed

	default:
		d.logger.Error("load %s failed: %v", run.rec.ID, err)
		msg := &Message{ID: ProgressID, Percent: 1, LoadID: run.rec.ID}
		msg.setError(err)
		d.post(msg)
		return model.LoadStatusFailed
	}
}

func (d *Dispatcher) postProgress(run *loadRun) {
	root := d.session.snapshot(run.builder, 1)
	d.post(&Message{
		ID:       ProgressID,
		Percent:  progressPercent(root.Size, run.total),
		Root:     root,
		DiffMode: run.diffMode,
		LoadID:   run.rec.ID,
	})
}

// progressPercent estimates completion from the ingested size.
func progressPercent(size, total float64) float64 {
	if total == 0 {
		return minPercent
	}
	p := math.Abs(size) / math.Abs(total)
	return math.Max(minPercent, math.Min(maxPercent, p))
}

func (d *Dispatcher) post(msg *Message) {
	if d.sink == nil {
		return
	}
	if err := d.sink.Post(msg); err != nil {
		d.logger.Warn("failed to post message %d: %v", msg.ID, err)
	}
}

func (d *Dispatcher) recordStart(ctx context.Context, rec *model.LoadRecord) {
	if d.cfg.Recorder == nil {
		return
	}
	if err := d.cfg.Recorder.CreateLoad(context.WithoutCancel(ctx), rec); err != nil {
		d.logger.Warn("failed to record load %s: %v", rec.ID, err)
	}
}

func (d *Dispatcher) recordFinish(run *loadRun, status model.LoadStatus, err error) {
	if d.cfg.Recorder == nil {
		return
	}
	outcome := &repository.LoadOutcome{
		Status:      status,
		FileEntries: run.fileEntries(),
		DiffMode:    run.diffMode,
		Fingerprint: run.rec.Fingerprint,
		FinishedAt:  d.clock.Now(),
	}
	if run.builder != nil {
		outcome.RootSize = d.session.rootSize(run.builder)
	}
	if err != nil {
		outcome.Error = err.Error()
	}
	if ferr := d.cfg.Recorder.FinishLoad(context.Background(), run.rec.ID, outcome); ferr != nil {
		d.logger.Warn("failed to finish load record %s: %v", run.rec.ID, ferr)
	}
}

func (r *loadRun) fileEntries() int64 {
	if r.builder == nil {
		return 0
	}
	return r.builder.FileEntries()
}
