package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/meemee/studio/job"
)

// tracerName is the instrumentation scope name for studio tracing.
const tracerName = "github.com/meemee/studio"

// Tracing returns middleware that wraps a job task in an OpenTelemetry span.
// If no TracerProvider is configured globally, the default noop tracer is used.
//
// Start attributes are studio.job.id, studio.job.template_id,
// studio.job.owner_id and studio.job.state (the state the task started
// from). When the task returns the span also gets studio.job.outcome, plus
// studio.job.task_handle and studio.job.failure_reason once they are known.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		ctx, span := tracer.Start(ctx, "studio.job.process",
			trace.WithAttributes(
				attribute.String("studio.job.id", j.ID.String()),
				attribute.String("studio.job.template_id", templateID(j)),
				attribute.Int64("studio.job.owner_id", j.OwnerID),
				attribute.String("studio.job.state", string(j.State)),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)

		span.SetAttributes(attribute.String("studio.job.outcome", string(j.State)))
		if j.TaskHandle != "" {
			span.SetAttributes(attribute.String("studio.job.task_handle", j.TaskHandle))
		}
		if j.FailureReason != "" {
			span.SetAttributes(attribute.String("studio.job.failure_reason", string(j.FailureReason)))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
