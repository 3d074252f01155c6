package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// spanFields returns trace_id and span_id of the span in ctx, or nil when
// there is no valid span.
func spanFields(ctx context.Context) map[string]interface{} {
	if ctx == nil {
		return nil
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return map[string]interface{}{
		"trace_id": sc.TraceID().String(),
		"span_id":  sc.SpanID().String(),
	}
}

// baseFields merges span fields with the logger's persistent fields.
func (l *Logger) baseFields() map[string]interface{} {
	ctxFields := spanFields(l.ctx)
	if ctxFields == nil && len(l.fields) == 0 {
		return nil
	}
	merged := make(map[string]interface{}, len(ctxFields)+len(l.fields))
	for k, v := range ctxFields {
		merged[k] = v
	}
	for k, v := range l.fields {
		merged[k] = v
	}
	return merged
}
