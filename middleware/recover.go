package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/meemee/studio/job"
)

// ErrPanic is wrapped by the error Recover returns for a panicking task.
var ErrPanic = errors.New("panic in job task")

// Recover returns middleware that recovers from panics in the handler chain.
// Panics are converted to errors wrapping ErrPanic and logged with a stack
// trace.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("job task panicked",
					slog.String("job_id", j.ID.String()),
					slog.String("template_id", j.TemplateID),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				retErr = fmt.Errorf("%w %s: %v", ErrPanic, j.ID.String(), r)
			}
		}()
		return next(ctx)
	}
}
