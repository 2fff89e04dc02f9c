// Package middleware provides composable middleware for job task execution.
//
// A [Middleware] wraps the task that drives one job from queued to a
// terminal state. Middleware are composed into a chain using [Chain] and
// are applied right-to-left: the first middleware in the slice is the
// outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging] logs job id, template and duration of each task
//   - [Recover] catches panics and converts them to errors wrapping [ErrPanic]
//   - [Tracing] wraps the task in an OpenTelemetry span
//   - [Metrics] records per-task duration and outcome counters
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting.
package middleware
