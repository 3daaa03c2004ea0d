package obs

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns Events into span events on the span found in the
// event's context. Events without a recording span in their context
// (e.g. emitted outside a traced request) are silently dropped, so
// OTelEmitter composes safely with code paths that never start a span.
type OTelEmitter struct{}

// NewOTelEmitter creates an OTelEmitter. It starts no spans of its own;
// it only records events onto whatever span is already active on
// Event.Ctx.
func NewOTelEmitter() *OTelEmitter {
	return &OTelEmitter{}
}

// Emit records the event as a span event on the active span in event.Ctx.
func (o *OTelEmitter) Emit(event Event) {
	if event.Ctx == nil {
		return
	}
	span := trace.SpanFromContext(event.Ctx)
	if !span.IsRecording() {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(event.Meta)+1)
	attrs = append(attrs, attribute.String("job_id", event.JobID))
	for k, v := range event.Meta {
		attrs = append(attrs, attribute.String(k, toString(v)))
	}
	span.AddEvent(event.Msg, trace.WithAttributes(attrs...))
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
