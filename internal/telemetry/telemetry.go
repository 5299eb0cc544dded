// Package telemetry wires OpenTelemetry tracing and Pyroscope profiling for
// the distfs server. Spans are created through the global otel provider, so
// code may start spans before Start runs; they are no-ops until then.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
)

const (
	serviceName = "distfs"

	flushTimeout = 5 * time.Second
)

// ShutdownFunc flushes and stops whatever Start brought up.
type ShutdownFunc func(context.Context) error

// Start brings up the backends enabled in cfg. The returned ShutdownFunc is
// never nil and stops them in reverse order.
func Start(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	var stops []ShutdownFunc
	shutdown := func(ctx context.Context) error {
		var errs []error
		for i := len(stops) - 1; i >= 0; i-- {
			errs = append(errs, stops[i](ctx))
		}
		return errors.Join(errs...)
	}

	if cfg.Tracing.Enabled {
		stop, err := startTracing(ctx, cfg)
		if err != nil {
			return shutdown, err
		}
		stops = append(stops, stop)
	}

	if cfg.Profiling.Enabled {
		stop, err := startProfiling(cfg)
		if err != nil {
			return shutdown, errors.Join(err, shutdown(ctx))
		}
		stops = append(stops, stop)
	}

	return shutdown, nil
}

func startTracing(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Tracing.Endpoint),
		otlptracegrpc.WithDialOption(grpc.WithUserAgent(serviceName + "/" + cfg.Version)),
	}
	if cfg.Tracing.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create span exporter for %s: %w", cfg.Tracing.Endpoint, err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(cfg.Version),
			attribute.String(AttrDevice, cfg.Device),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.Tracing.SampleRate)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, flushTimeout)
		defer cancel()
		return tp.Shutdown(ctx)
	}, nil
}

// sampler honours the caller's decision when a parent span exists, so a
// request traced end to end is never cut in half.
func sampler(rate float64) sdktrace.Sampler {
	var root sdktrace.Sampler
	switch {
	case rate >= 1:
		root = sdktrace.AlwaysSample()
	case rate <= 0:
		root = sdktrace.NeverSample()
	default:
		root = sdktrace.TraceIDRatioBased(rate)
	}
	return sdktrace.ParentBased(root)
}
