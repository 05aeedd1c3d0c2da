// Package otel turns on OpenTelemetry tracing when a collector endpoint is
// configured and stays out of the way otherwise.
package otel

import (
	"context"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Tracing is driven entirely by environment so binaries need no flags:
// endpointEnv names the OTLP/HTTP collector, enabledEnv is a kill switch.
const (
	endpointEnv = "MIST_ENGINE_OTEL_ENDPOINT"
	enabledEnv  = "MIST_ENGINE_OTEL_ENABLED"
)

// Setup wires the global tracer provider for serviceName.
//
// Tracing is opt-in: with no endpoint configured, or with the kill switch set
// to "false", Setup returns a no-op shutdown and leaves the global provider
// untouched. The returned function flushes buffered spans and is meant to be
// deferred by the entrypoint.
func Setup(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	endpoint, ok := tracingEndpoint()
	if !ok {
		return noop, nil
	}

	tp, err := newTracerProvider(ctx, endpoint, serviceName)
	if err != nil {
		return noop, err
	}

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}

// tracingEndpoint reports the collector URL and whether tracing should run.
func tracingEndpoint() (string, bool) {
	if strings.EqualFold(os.Getenv(enabledEnv), "false") {
		return "", false
	}
	endpoint := strings.TrimSpace(os.Getenv(endpointEnv))
	return endpoint, endpoint != ""
}

func newTracerProvider(ctx context.Context, endpoint, serviceName string) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	), nil
}
