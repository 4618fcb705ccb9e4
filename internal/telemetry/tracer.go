// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package telemetry installs the OpenTelemetry tracer provider used by the
// instrumented HTTP transport.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace/noop"

	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

const (
	ExporterGRPC = "grpc"
	ExporterHTTP = "http"

	shutdownTimeout = 5 * time.Second
)

// Config holds tracing configuration.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	// Exporter is ExporterGRPC or ExporterHTTP.
	Exporter string
	// Endpoint is the OTLP collector host:port, e.g. localhost:4318 for HTTP.
	Endpoint string
	// Insecure disables TLS towards the collector.
	Insecure bool
	// SamplingRate is the share of traces kept, from 0 to 1.
	SamplingRate float64
}

// Provider owns the SDK tracer provider. The zero value and a disabled
// provider are no-ops.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// NewProvider builds the tracer provider described by cfg and installs it
// with the W3C trace-context and baggage propagators as the global default.
// A disabled config installs a no-op provider.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return &Provider{}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, sferr.Wrap(err, sferr.CodeTelemetryInitFailure, "creating trace resource")
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SamplingRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{tp: tp}, nil
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case ExporterGRPC:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, sferr.Wrap(err, sferr.CodeTelemetryInitFailure, "creating gRPC trace exporter")
		}
		return exp, nil

	case ExporterHTTP:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, sferr.Wrap(err, sferr.CodeTelemetryInitFailure, "creating HTTP trace exporter")
		}
		return exp, nil

	default:
		return nil, sferr.Errorf(sferr.CodeTelemetryInitFailure,
			"unsupported trace exporter %q (supported: grpc, http)", cfg.Exporter)
	}
}

func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0.0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p != nil && p.tp != nil
}

// Shutdown flushes buffered spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := p.tp.Shutdown(ctx); err != nil {
		return sferr.Wrap(err, sferr.CodeTelemetryInitFailure, "shutting down tracer provider")
	}
	return nil
}
