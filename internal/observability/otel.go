// Package observability bootstraps OpenTelemetry tracing for the triage
// backend. Spans are emitted by three layers: otelgin on the HTTP surface,
// the gorm plugin on SQL, and explicit spans in the service layer; this
// package wires the OTLP/gRPC export pipeline they all feed into.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"google.golang.org/grpc/credentials"

	"github.com/ihirwe/go-triage-backend/internal/config"
)

// Constructor seams, swappable in tests so no collector is needed.
var (
	newOTLPClient = otlptracegrpc.NewClient

	newOTLPExporterFn = func(ctx context.Context, client otlptrace.Client) (*otlptrace.Exporter, error) {
		return otlptrace.New(ctx, client)
	}

	newServiceResourceFn = func(ctx context.Context, serviceName, version string) (*resource.Resource, error) {
		return resource.New(
			ctx,
			resource.WithAttributes(
				semconv.ServiceName(serviceName),
				semconv.ServiceVersion(version),
			),
		)
	}
)

// clientOptions translates the OTLP config into gRPC client options. TLS is
// the default; WithInsecure is for collectors on a trusted local network.
func clientOptions(cfg config.OTELConfig) []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(
			credentials.NewClientTLSFromCert(nil, "")))
	}
	return opts
}

// SetupOTel installs the global tracer provider and propagators per cfg and
// returns the provider's shutdown function. When tracing is disabled it
// installs nothing and the returned shutdown is a no-op, so callers can
// always defer it unconditionally.
func SetupOTel(ctx context.Context, cfg config.OTELConfig, version string) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := newOTLPExporterFn(ctx, newOTLPClient(clientOptions(cfg)...))
	if err != nil {
		return nil, err
	}

	res, err := newServiceResourceFn(ctx, cfg.ServiceName, version)
	if err != nil {
		return nil, err
	}

	// ParentBased keeps sampling decisions consistent across the
	// dialogue-engine → API call chain; the ratio only applies to roots.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	return tp.Shutdown, nil
}
