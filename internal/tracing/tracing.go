// Package tracing bootstraps an OpenTelemetry TracerProvider exporting spans
// over OTLP/HTTP, following the standard OTEL_EXPORTER_OTLP_ENDPOINT
// convention. The teacher's go.mod already carries the full otel/otlptrace/
// sdk stack; this is the first place in the port that exercises it — no file
// in the retrieval pack calls it directly, so the bootstrap shape here
// follows the upstream SDK's own documented Init/Shutdown pattern rather
// than a specific teacher file.
package tracing

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Init configures the global TracerProvider when OTEL_EXPORTER_OTLP_ENDPOINT
// is set. Without it, the otel package's built-in no-op tracer is left in
// place so Start/End calls throughout httpapi and connectorsvc cost nothing.
// Returns a shutdown func that must be called before process exit to flush
// pending spans.
func Init(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// Tracer returns the named tracer off the global provider (no-op unless
// Init configured a real exporter).
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
