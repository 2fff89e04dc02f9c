// Package observability provides an OpenTelemetry metrics extension for
// Studio. The MetricsExtension implements lifecycle hooks to record
// counters for job creation, submission, terminal outcomes, notification
// delivery and recovery.
//
// For per-task tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
