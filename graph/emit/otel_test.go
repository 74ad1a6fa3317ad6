package emit

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestTracer(t *testing.T) (*tracetest.InMemoryExporter, *OTelEmitter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter, NewOTelEmitter(tp.Tracer("test"))
}

func attributeMap(attrs []attribute.KeyValue) map[string]any {
	m := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		m[string(kv.Key)] = kv.Value.AsInterface()
	}
	return m
}

func TestOTelEmitter_Emit(t *testing.T) {
	exporter, emitter := newTestTracer(t)

	emitter.Emit(Event{
		RunID:  "run-001",
		Step:   2,
		NodeID: "chart",
		Msg:    MsgNodeSuccess,
		Meta: map[string]any{
			"latency_ms": int64(12),
			"potential":  3.5,
			"widget":     "bar",
			"elapsed":    1500 * time.Millisecond,
		},
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != MsgNodeSuccess {
		t.Errorf("expected span name %q, got %q", MsgNodeSuccess, span.Name)
	}

	attrs := attributeMap(span.Attributes)
	checks := map[string]any{
		"lazygraph.run_id":          "run-001",
		"lazygraph.step":            int64(2),
		"lazygraph.node_id":         "chart",
		"lazygraph.task.latency_ms": int64(12),
		"lazygraph.task.potential":  3.5,
		"widget":                    "bar",
		"elapsed":                   int64(1500),
	}
	for key, want := range checks {
		if got := attrs[key]; got != want {
			t.Errorf("%s: expected %v, got %v", key, want, got)
		}
	}
	if span.Status.Code == codes.Error {
		t.Error("expected non-error status")
	}
}

func TestOTelEmitter_ErrorStatus(t *testing.T) {
	exporter, emitter := newTestTracer(t)

	emitter.Emit(Event{RunID: "r", NodeID: "a", Msg: MsgNodeFailed, Meta: map[string]any{"error": "boom", "code": "NODE_FAILED"}})

	span := exporter.GetSpans()[0]
	if span.Status.Code != codes.Error || span.Status.Description != "boom" {
		t.Errorf("expected error status boom, got %+v", span.Status)
	}
	if attributeMap(span.Attributes)["lazygraph.task.code"] != "NODE_FAILED" {
		t.Error("expected code attribute")
	}
	if len(span.Events) == 0 {
		t.Error("expected the error to be recorded as a span event")
	}
}

func TestOTelEmitter_EmitBatch(t *testing.T) {
	exporter, emitter := newTestTracer(t)

	events := []Event{
		{RunID: "r", Msg: MsgNodeQueued, NodeID: "a"},
		{RunID: "r", Msg: MsgNodeStart, NodeID: "a"},
		{RunID: "r", Msg: MsgNodeSuccess, NodeID: "a"},
	}
	if err := emitter.EmitBatch(context.Background(), events); err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}
	if got := len(exporter.GetSpans()); got != 3 {
		t.Errorf("expected 3 spans, got %d", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := emitter.EmitBatch(ctx, events); err == nil {
		t.Error("expected error from cancelled context")
	}
	if err := emitter.Flush(context.Background()); err != nil {
		t.Errorf("Flush: %v", err)
	}
}
