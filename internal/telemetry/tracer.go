package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// TracerOptions configures InitTracer.
type TracerOptions struct {
	ServiceName string

	// SampleRatio is the fraction of root traces kept. Spans whose parent was
	// sampled upstream (e.g. by dashctl) follow the parent's decision.
	SampleRatio float64

	// Writer receives the exported spans. Defaults to stderr so spans do not
	// interleave with the JSON request log on stdout.
	Writer io.Writer
}

// Propagator carries W3C trace context and baggage. The server and dashctl
// install the same one so a dashctl run and its stage requests share a trace.
func Propagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

// InitTracer installs a global tracer provider exporting spans as JSON and a
// W3C trace-context propagator. The returned function flushes pending spans.
func InitTracer(opts TracerOptions, logger *slog.Logger) (func(context.Context) error, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", semconv.ServiceName(opts.ServiceName)),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(Propagator())

	logger.Info("tracing enabled",
		slog.String("service", opts.ServiceName),
		slog.Float64("sample_ratio", opts.SampleRatio),
	)
	return tp.Shutdown, nil
}
