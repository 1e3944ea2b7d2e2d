package bus

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelSink turns each event into a zero-duration span, the same
// event-to-span rendering this codebase's tracer emitter uses: span name is
// the event name, run_id/sequence become attributes alongside every
// payload field, and error.raised marks the span as errored.
type OTelSink struct {
	tracer trace.Tracer
}

// NewOTelSink wraps an OpenTelemetry tracer, e.g. otel.Tracer("flowgraph").
func NewOTelSink(tracer trace.Tracer) *OTelSink {
	return &OTelSink{tracer: tracer}
}

func (s *OTelSink) Emit(e Event) error {
	_, span := s.tracer.Start(context.Background(), e.Event)
	defer span.End()

	span.SetAttributes(
		attribute.String("run_id", e.RunID),
		attribute.Int("sequence", e.Sequence),
	)
	for k, v := range e.Fields {
		span.SetAttributes(attribute.String(k, toAttrString(v)))
	}
	if e.Event == EventErrorRaised {
		span.SetStatus(codes.Error, e.Event)
	}
	return nil
}

func toAttrString(v interface{}) string {
	switch vv := v.(type) {
	case string:
		return vv
	case fmt.Stringer:
		return vv.String()
	default:
		return fmt.Sprintf("%v", vv)
	}
}
