// Package telemetry provides OpenTelemetry tracing for skillkit commands,
// installs and registry requests.
package telemetry

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// Sampler names accepted in Config.SamplerType.
const (
	SamplerAlways = "always"
	SamplerNever  = "never"
	SamplerRatio  = "ratio"
)

// Config controls span export.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	// SamplerType is one of always, never or ratio. Empty means always.
	SamplerType  string
	SamplerRatio float64
}

type shutdownFunc func(context.Context) error

// InitTracer installs a global tracer provider exporting over OTLP/HTTP. The
// endpoint and headers come from the standard OTEL_EXPORTER_OTLP_* variables.
// The returned function flushes and stops the exporter; it is a no-op when
// tracing is disabled.
func InitTracer(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	sampler, err := getSampler(cfg)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithOS(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to describe tracing resource")
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create OTLP exporter")
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(time.Second)),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// provider first so buffered spans reach the exporter before it stops
	return shutdownAll(provider.Shutdown, exporter.Shutdown), nil
}

func shutdownAll(fns ...shutdownFunc) func(context.Context) error {
	return func(ctx context.Context) error {
		var merr *multierror.Error
		for _, fn := range fns {
			if err := fn(ctx); err != nil {
				merr = multierror.Append(merr, err)
			}
		}
		return merr.ErrorOrNil()
	}
}

func getSampler(cfg Config) (sdktrace.Sampler, error) {
	switch strings.ToLower(cfg.SamplerType) {
	case "", SamplerAlways:
		return sdktrace.AlwaysSample(), nil
	case SamplerNever:
		return sdktrace.NeverSample(), nil
	case SamplerRatio:
		ratio := min(max(cfg.SamplerRatio, 0), 1)
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio)), nil
	default:
		return nil, errors.Errorf("unknown trace sampler %q, expected always, never or ratio", cfg.SamplerType)
	}
}
