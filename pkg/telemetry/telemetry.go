// Package telemetry sets up OpenTelemetry tracing from the standard OTEL_*
// environment variables:
//
//	OTEL_ENABLED                 enable tracing (default: false)
//	OTEL_SERVICE_NAME            service name (default: size-viewer)
//	OTEL_SERVICE_VERSION         service version (default: unknown)
//	OTEL_EXPORTER_OTLP_ENDPOINT  collector endpoint
//	OTEL_EXPORTER_OTLP_PROTOCOL  grpc or http/protobuf (default: grpc)
//	OTEL_EXPORTER_OTLP_HEADERS   export headers, k1=v1,k2=v2
//	OTEL_EXPORTER_OTLP_INSECURE  plaintext export
//	OTEL_TRACES_SAMPLER          sampler name (default: always_on)
//	OTEL_TRACES_SAMPLER_ARG      sampler argument
//	OTEL_RESOURCE_ATTRIBUTES     extra resource attributes
//
// Packages create spans through otel.Tracer; until Init runs with tracing
// enabled those spans are no-ops.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace"
)

var (
	globalConfig *Config
	configOnce   sync.Once
)

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// Init installs the global TracerProvider. When tracing is disabled it
// returns a no-op shutdown and leaves the default provider in place.
func Init(ctx context.Context, opts ...Option) (ShutdownFunc, error) {
	cfg := *loadConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.Enabled {
		return noopShutdown, nil
	}

	res, err := buildResource(&cfg)
	if err != nil {
		return noopShutdown, err
	}
	exporter, err := createExporter(ctx, &cfg)
	if err != nil {
		return noopShutdown, err
	}

	tp := trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithBatcher(exporter),
		trace.WithSampler(createSampler(&cfg)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// Enabled reports whether OTEL_ENABLED turned tracing on.
func Enabled() bool {
	return loadConfig().Enabled
}

// GetConfig returns the environment configuration.
func GetConfig() *Config {
	return loadConfig()
}

func loadConfig() *Config {
	configOnce.Do(func() {
		globalConfig = LoadFromEnv()
	})
	return globalConfig
}
