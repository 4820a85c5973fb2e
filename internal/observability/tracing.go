package observability

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TracerProvider wraps the SDK provider so callers outside this package
// only need Shutdown.
type TracerProvider struct {
	tp *sdktrace.TracerProvider
}

// NewTracerProvider builds an SDK tracer provider sampling sampleRatio of root spans
// and installs it as the global provider. Extra span processors (exporters) are optional;
// without any, spans still carry trace IDs that are stamped into logs.
func NewTracerProvider(serviceName string, sampleRatio float64, processors ...sdktrace.SpanProcessor) *TracerProvider {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
	}
	for _, p := range processors {
		opts = append(opts, sdktrace.WithSpanProcessor(p))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return &TracerProvider{tp: tp}
}

// SpanProcessors returns the processors for the named exporter. "none" returns no
// processors; "stdout" batches finished spans to w as JSON lines.
func SpanProcessors(exporter string, w io.Writer) ([]sdktrace.SpanProcessor, error) {
	switch exporter {
	case "", "none":
		return nil, nil
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("stdout trace exporter: %w", err)
		}
		return []sdktrace.SpanProcessor{sdktrace.NewBatchSpanProcessor(exp)}, nil
	}
	return nil, fmt.Errorf("unknown trace exporter %q", exporter)
}

// Provider exposes the underlying provider for components that start spans.
func (p *TracerProvider) Provider() trace.TracerProvider {
	return p.tp
}

// Shutdown flushes and stops the provider.
func (p *TracerProvider) Shutdown(ctx context.Context) error {
	return p.tp.Shutdown(ctx)
}

// TraceFields returns zap fields identifying the span in ctx, or nil when ctx has no valid span.
func TraceFields(ctx context.Context) []zap.Field {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}
