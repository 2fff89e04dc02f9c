package observability

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/meemee/studio/ext"
	"github.com/meemee/studio/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension    = (*MetricsExtension)(nil)
	_ ext.JobCreated   = (*MetricsExtension)(nil)
	_ ext.JobStarted   = (*MetricsExtension)(nil)
	_ ext.JobSubmitted = (*MetricsExtension)(nil)
	_ ext.JobDone      = (*MetricsExtension)(nil)
	_ ext.JobFailed    = (*MetricsExtension)(nil)
	_ ext.JobNotified  = (*MetricsExtension)(nil)
	_ ext.JobRecovered = (*MetricsExtension)(nil)
)

const meterName = "github.com/meemee/studio/observability"

// MetricsExtension records system-wide lifecycle metrics with OTel
// instruments. Register it as a Studio extension to track creation rates,
// terminal outcomes by reason, notification delivery, and recovery actions.
type MetricsExtension struct {
	JobCreated   metric.Int64Counter
	JobStarted   metric.Int64Counter
	JobSubmitted metric.Int64Counter
	JobDone      metric.Int64Counter
	JobFailed    metric.Int64Counter
	JobNotified  metric.Int64Counter
	JobRecovered metric.Int64Counter
	RenderTime   metric.Float64Histogram
}

// NewMetricsExtension creates a MetricsExtension on the global MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the provided
// meter. Instrument creation errors fall back to noop instruments.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	counter := func(name, desc string) metric.Int64Counter {
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc)) //nolint:errcheck // noop fallback guaranteed by OTel API contract
		return c
	}
	renderTime, _ := meter.Float64Histogram("studio.job.render_time", //nolint:errcheck // noop fallback guaranteed by OTel API contract
		metric.WithDescription("Time from job creation to done in seconds"),
		metric.WithUnit("s"),
	)

	return &MetricsExtension{
		JobCreated:   counter("studio.job.created", "Jobs accepted and queued"),
		JobStarted:   counter("studio.job.started", "Jobs moved to processing"),
		JobSubmitted: counter("studio.job.submitted", "Tasks accepted by the renderer"),
		JobDone:      counter("studio.job.done", "Jobs finished with an asset"),
		JobFailed:    counter("studio.job.failed", "Jobs failed terminally, by reason"),
		JobNotified:  counter("studio.job.notified", "Owner notifications, by delivery result"),
		JobRecovered: counter("studio.job.recovered", "Jobs touched by startup recovery, by action"),
		RenderTime:   renderTime,
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Job lifecycle hooks ─────────────────────────────

// OnJobCreated implements ext.JobCreated.
func (m *MetricsExtension) OnJobCreated(ctx context.Context, j *job.Job) error {
	m.JobCreated.Add(ctx, 1, templateAttr(j))
	return nil
}

// OnJobStarted implements ext.JobStarted.
func (m *MetricsExtension) OnJobStarted(ctx context.Context, j *job.Job) error {
	m.JobStarted.Add(ctx, 1, templateAttr(j))
	return nil
}

// OnJobSubmitted implements ext.JobSubmitted.
func (m *MetricsExtension) OnJobSubmitted(ctx context.Context, j *job.Job) error {
	m.JobSubmitted.Add(ctx, 1, templateAttr(j))
	return nil
}

// OnJobDone implements ext.JobDone.
func (m *MetricsExtension) OnJobDone(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	m.JobDone.Add(ctx, 1, templateAttr(j))
	m.RenderTime.Record(ctx, elapsed.Seconds(), templateAttr(j))
	return nil
}

// OnJobFailed implements ext.JobFailed.
func (m *MetricsExtension) OnJobFailed(ctx context.Context, j *job.Job, _ error) error {
	m.JobFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("template_id", j.TemplateID),
		attribute.String("reason", string(j.FailureReason)),
	))
	return nil
}

// OnJobNotified implements ext.JobNotified.
func (m *MetricsExtension) OnJobNotified(ctx context.Context, j *job.Job, delivered bool) error {
	m.JobNotified.Add(ctx, 1, metric.WithAttributes(
		attribute.String("state", string(j.State)),
		attribute.String("delivered", strconv.FormatBool(delivered)),
	))
	return nil
}

// OnJobRecovered implements ext.JobRecovered.
func (m *MetricsExtension) OnJobRecovered(ctx context.Context, _ *job.Job, action ext.RecoveryAction) error {
	m.JobRecovered.Add(ctx, 1, metric.WithAttributes(attribute.String("action", string(action))))
	return nil
}

func templateAttr(j *job.Job) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("template_id", j.TemplateID))
}
