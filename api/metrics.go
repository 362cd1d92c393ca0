package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	syncSpanName    = "taskboard.sync.event"
	syncEventName   = "sync-event-processed"
	syncEventDomain = "taskboard"
)

// eventMetrics collects timings and outcome for one inbound event and emits
// them as a span plus a structured observability log record.
type eventMetrics struct {
	logger            *log.Logger
	span              trace.Span
	start             time.Time
	event             string
	conn              string
	room              string
	applyDuration     time.Duration
	broadcastDuration time.Duration
	dropStage         string
}

func newEventMetrics(ctx context.Context, logger *log.Logger) (*eventMetrics, context.Context) {
	tracer := otel.Tracer("taskboard/api")
	spanCtx, span := tracer.Start(ctx, syncSpanName)
	return &eventMetrics{
		logger: logger,
		span:   span,
		start:  time.Now(),
	}, spanCtx
}

func (m *eventMetrics) SetEvent(event string) {
	m.event = event
}

func (m *eventMetrics) SetConn(connID string) {
	m.conn = connID
}

func (m *eventMetrics) SetRoom(roomID string) {
	m.room = roomID
}

func (m *eventMetrics) ObserveApply(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.applyDuration = duration
}

func (m *eventMetrics) ObserveBroadcast(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.broadcastDuration = duration
}

func (m *eventMetrics) SetDropStage(stage string) {
	if stage == "" {
		return
	}
	m.dropStage = stage
}

// Log finalizes the span and writes the observability event. It must be
// called exactly once.
func (m *eventMetrics) Log(err error) {
	if m == nil || m.logger == nil {
		return
	}

	totalMs := durationToMillis(time.Since(m.start))
	severityText, severityNumber := severityFor(err, m.dropStage)

	attrs := []attribute.KeyValue{
		attribute.String("event.name", syncEventName),
		attribute.String("event.domain", syncEventDomain),
		attribute.String("taskboard.sync.event", m.event),
		attribute.Float64("taskboard.sync.total_ms", totalMs),
		attribute.String("severity_text", severityText),
		attribute.Int("severity_number", severityNumber),
	}
	if m.room != "" {
		attrs = append(attrs, attribute.String("taskboard.sync.room", m.room))
	}
	if m.applyDuration > 0 {
		attrs = append(attrs, attribute.Float64("taskboard.sync.apply_ms", durationToMillis(m.applyDuration)))
	}
	if m.broadcastDuration > 0 {
		attrs = append(attrs, attribute.Float64("taskboard.sync.broadcast_ms", durationToMillis(m.broadcastDuration)))
	}
	if m.dropStage != "" {
		attrs = append(attrs, attribute.String("taskboard.sync.drop_stage", m.dropStage))
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
	}

	m.span.SetAttributes(attrs...)
	m.span.AddEvent("observability.event", trace.WithAttributes(attrs...))
	if err != nil {
		m.span.SetStatus(codes.Error, err.Error())
	} else {
		m.span.SetStatus(codes.Ok, "")
	}
	m.span.End()

	fields := log.Fields{
		"event.name":      syncEventName,
		"event.domain":    syncEventDomain,
		"severity_text":   severityText,
		"severity_number": severityNumber,
		"attributes":      attributesToFields(attrs),
	}
	if sc := m.span.SpanContext(); sc.HasTraceID() {
		fields["trace_id"] = sc.TraceID().String()
	}
	if m.conn != "" {
		fields["conn"] = m.conn
	}

	entry := m.logger.WithFields(fields)
	switch severityText {
	case "ERROR":
		entry.Error("observability.event")
	case "WARN":
		entry.Warn("observability.event")
	default:
		entry.Info("observability.event")
	}
}

func severityFor(err error, dropStage string) (string, int) {
	switch {
	case dropStage == "decode" || dropStage == "unknown_event":
		return "WARN", 13
	case err != nil:
		return "ERROR", 17
	default:
		return "INFO", 9
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}

func attributesToFields(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}
