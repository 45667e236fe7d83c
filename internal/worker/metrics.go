package worker

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("size-analysis.worker")

var (
	// loadsTotal counts load requests by outcome.
	// Labels: status (completed, failed, aborted, superseded)
	loadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "size_viewer",
		Subsystem: "worker",
		Name:      "loads_total",
		Help:      "Total load requests by outcome",
	}, []string{"status"})

	// loadDuration measures load bodies that ran, by outcome.
	loadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "size_viewer",
		Subsystem: "worker",
		Name:      "load_duration_seconds",
		Help:      "Duration of load bodies in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"status"})

	// fileEntriesTotal counts file entries added to trees.
	fileEntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "size_viewer",
		Subsystem: "worker",
		Name:      "file_entries_total",
		Help:      "Total file entries ingested",
	})

	// opensTotal counts open requests.
	// Labels: result (ok, not_found, error)
	opensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "size_viewer",
		Subsystem: "worker",
		Name:      "opens_total",
		Help:      "Total open requests by result",
	}, []string{"result"})

	// decoderCacheHits counts loads served from a cached decoder.
	decoderCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "size_viewer",
		Subsystem: "worker",
		Name:      "decoder_cache_hits_total",
		Help:      "Loads that reused a cached stream decoder",
	})
)

func startLoadSpan(ctx context.Context, input, opts string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "worker.load",
		trace.WithAttributes(
			attribute.String("load.input", input),
			attribute.String("load.options", opts),
		),
	)
}

func startOpenSpan(ctx context.Context, path string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "worker.open",
		trace.WithAttributes(attribute.String("open.path", path)),
	)
}
