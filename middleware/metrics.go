package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/meemee/studio/job"
)

// meterName is the instrumentation scope name for studio metrics.
const meterName = "github.com/meemee/studio"

// Metrics returns middleware that records per-task metrics using the
// global OTel MeterProvider. If no MeterProvider is configured, noop
// instruments are used and this middleware becomes a pass-through.
//
// Instruments:
//   - studio.job.duration (Float64Histogram): task time in seconds
//   - studio.job.executions (Int64Counter): total tasks run
//
// Both carry template_id ("raw" for free-form prompts), status ("ok" or
// "error") and outcome, the job state when the task returned. A task that
// stopped on shutdown reports outcome "processing".
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// On error the API returns noop instruments.
	duration, _ := meter.Float64Histogram( //nolint:errcheck // noop fallback guaranteed by OTel API contract
		"studio.job.duration",
		metric.WithDescription("Duration of job task execution in seconds"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter( //nolint:errcheck // noop fallback guaranteed by OTel API contract
		"studio.job.executions",
		metric.WithDescription("Total number of job task executions"),
		metric.WithUnit("{execution}"),
	)

	return func(ctx context.Context, j *job.Job, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("template_id", templateID(j)),
			attribute.String("status", status),
			attribute.String("outcome", string(j.State)),
		)

		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)

		return err
	}
}

func templateID(j *job.Job) string {
	if j.TemplateID == "" {
		return "raw"
	}
	return j.TemplateID
}
