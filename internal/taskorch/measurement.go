package taskorch

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("aegisrt/taskorch")

// measurement is the scoped measurement token of spec.md §9: starting a
// measurement begins an OTel span, releasing the token ends it and
// records the task's outcome as span attributes.
type measurement struct {
	span trace.Span
}

// startMeasurement begins tracking one task execution under name.
func startMeasurement(ctx context.Context, name string, kind Kind, taskID string) (context.Context, *measurement) {
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("taskorch.kind", string(kind)),
		attribute.String("taskorch.task_id", taskID),
	))
	return ctx, &measurement{span: span}
}

// end releases the token, recording err (if any) before closing the span.
func (m *measurement) end(attempt int, err error) {
	m.span.SetAttributes(attribute.Int("taskorch.attempt", attempt))
	if err != nil {
		m.span.RecordError(err)
		m.span.SetStatus(codes.Error, err.Error())
	} else {
		m.span.SetStatus(codes.Ok, "")
	}
	m.span.End()
}
