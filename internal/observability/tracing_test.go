package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTraceFields_NoSpan verifies that a context without a span yields no fields.
func TestTraceFields_NoSpan(t *testing.T) {
	if fields := TraceFields(context.Background()); fields != nil {
		t.Errorf("TraceFields() = %v, want nil", fields)
	}
}

// TestNewTracerProvider_RecordsSpans verifies the provider is installed globally,
// exports to the supplied processor, and that TraceFields exposes the span IDs.
func TestNewTracerProvider_RecordsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	rec := tracetest.NewSpanRecorder()
	tp := NewTracerProvider("weather-advisor-test", 1.0, rec)

	ctx, span := otel.Tracer("test").Start(context.Background(), "op")
	fields := TraceFields(ctx)
	span.End()

	if len(fields) != 2 {
		t.Fatalf("TraceFields() returned %d fields, want 2", len(fields))
	}
	if got := len(rec.Ended()); got != 1 {
		t.Errorf("recorded %d spans, want 1", got)
	}
	if err := FlushTelemetry(context.Background(), nil, tp); err != nil {
		t.Errorf("FlushTelemetry() error = %v", err)
	}
}

// TestSpanProcessors_Stdout verifies finished spans reach the writer once the provider flushes.
func TestSpanProcessors_Stdout(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	var buf bytes.Buffer
	processors, err := SpanProcessors("stdout", &buf)
	if err != nil {
		t.Fatalf("SpanProcessors() error = %v", err)
	}
	if len(processors) != 1 {
		t.Fatalf("SpanProcessors() returned %d processors, want 1", len(processors))
	}
	tp := NewTracerProvider("weather-advisor-test", 1.0, processors...)

	_, span := otel.Tracer("test").Start(context.Background(), "workflow.run")
	span.End()
	if err := FlushTelemetry(context.Background(), nil, tp); err != nil {
		t.Fatalf("FlushTelemetry() error = %v", err)
	}

	if !strings.Contains(buf.String(), `"Name":"workflow.run"`) {
		t.Errorf("exported output = %q, want span workflow.run", buf.String())
	}
}

func TestSpanProcessors_NoneAndUnknown(t *testing.T) {
	processors, err := SpanProcessors("none", nil)
	if err != nil || processors != nil {
		t.Errorf("SpanProcessors(none) = %v, %v; want nil, nil", processors, err)
	}
	if _, err := SpanProcessors("jaeger", nil); err == nil {
		t.Error("SpanProcessors(jaeger) expected error")
	}
}
