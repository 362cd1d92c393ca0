package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
	)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("shutdown tracer provider: %v", err)
		}
		otel.SetTracerProvider(prev)
	})
	return tp, exporter
}

func spanAttributes(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func TestEventMetricsLogEmitsObservabilityEvent(t *testing.T) {
	logger, hook := test.NewNullLogger()
	tp, exporter := setupTestTracer(t)

	metrics, _ := newEventMetrics(context.Background(), logger)
	metrics.start = metrics.start.Add(-50 * time.Millisecond)
	metrics.SetEvent("task:add")
	metrics.SetConn("conn-a")
	metrics.SetRoom("board-1")
	metrics.ObserveApply(5 * time.Millisecond)
	metrics.ObserveBroadcast(3 * time.Millisecond)

	metrics.Log(nil)

	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("force flush spans: %v", err)
	}

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatalf("expected a log entry")
	}
	if entry.Message != "observability.event" {
		t.Fatalf("unexpected message: %s", entry.Message)
	}
	if got := entry.Data["event.name"]; got != syncEventName {
		t.Fatalf("unexpected event name: %v", got)
	}
	if got := entry.Data["event.domain"]; got != syncEventDomain {
		t.Fatalf("unexpected event domain: %v", got)
	}
	if entry.Data["severity_text"] != "INFO" {
		t.Fatalf("unexpected severity text: %v", entry.Data["severity_text"])
	}
	if entry.Data["severity_number"] != 9 {
		t.Fatalf("unexpected severity number: %v", entry.Data["severity_number"])
	}
	if traceID, ok := entry.Data["trace_id"].(string); !ok || traceID == "" {
		t.Fatalf("expected trace_id to be recorded, got %#v", entry.Data["trace_id"])
	}
	attrsVal, ok := entry.Data["attributes"].(map[string]any)
	if !ok {
		t.Fatalf("attributes not logged as map: %#v", entry.Data["attributes"])
	}
	if attrsVal["taskboard.sync.event"] != "task:add" {
		t.Fatalf("unexpected event attribute: %#v", attrsVal["taskboard.sync.event"])
	}
	if attrsVal["taskboard.sync.room"] != "board-1" {
		t.Fatalf("unexpected room attribute: %#v", attrsVal["taskboard.sync.room"])
	}
	if total, ok := attrsVal["taskboard.sync.total_ms"].(float64); !ok || total == 0 {
		t.Fatalf("expected total duration attribute, got %#v", attrsVal["taskboard.sync.total_ms"])
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != syncSpanName {
		t.Fatalf("unexpected span name: %s", span.Name)
	}
	if span.Status.Code != codes.Ok {
		t.Fatalf("expected span status Ok, got %v", span.Status.Code)
	}
	attrs := spanAttributes(span.Attributes)
	if attrs["taskboard.sync.event"] != "task:add" {
		t.Fatalf("span event attribute mismatch: %#v", attrs["taskboard.sync.event"])
	}

	var found bool
	for _, ev := range span.Events {
		if ev.Name == "observability.event" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected observability.event span event, got %#v", span.Events)
	}
}

func TestEventMetricsLogWithErrorSetsSpanStatus(t *testing.T) {
	logger, hook := test.NewNullLogger()
	tp, exporter := setupTestTracer(t)

	metrics, _ := newEventMetrics(context.Background(), logger)
	metrics.SetEvent("task:add")
	boom := errors.New("encode failure")

	metrics.Log(boom)

	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("force flush spans: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Fatalf("expected span status error, got %v", spans[0].Status.Code)
	}
	if spans[0].Status.Description == "" {
		t.Fatalf("expected status description for error")
	}

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatalf("expected a log entry")
	}
	if entry.Data["severity_text"] != "ERROR" {
		t.Fatalf("unexpected severity for error: %v", entry.Data["severity_text"])
	}
	attrsVal, ok := entry.Data["attributes"].(map[string]any)
	if !ok {
		t.Fatalf("attributes not logged as map: %#v", entry.Data["attributes"])
	}
	if attrsVal["error.message"] != boom.Error() {
		t.Fatalf("expected error.message attribute, got %#v", attrsVal["error.message"])
	}
}

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		dropStage  string
		wantText   string
		wantNumber int
	}{
		{name: "ok", wantText: "INFO", wantNumber: 9},
		{name: "drop", dropStage: "unknown_room", wantText: "INFO", wantNumber: 9},
		{name: "decode", dropStage: "decode", wantText: "WARN", wantNumber: 13},
		{name: "decodeWithErr", err: errInvalidPayload, dropStage: "decode", wantText: "WARN", wantNumber: 13},
		{name: "unknownEvent", dropStage: "unknown_event", wantText: "WARN", wantNumber: 13},
		{name: "error", err: errors.New("boom"), wantText: "ERROR", wantNumber: 17},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotText, gotNumber := severityFor(tt.err, tt.dropStage)
			if gotText != tt.wantText || gotNumber != tt.wantNumber {
				t.Fatalf("severityFor(%v, %q) = %s/%d, want %s/%d", tt.err, tt.dropStage, gotText, gotNumber, tt.wantText, tt.wantNumber)
			}
		})
	}
}
