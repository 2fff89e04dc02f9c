package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/meemee/studio/job"
)

// Logging returns middleware that logs task start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		logger.Info("job task started",
			slog.String("job_id", j.ID.String()),
			slog.String("template_id", j.TemplateID),
			slog.String("state", string(j.State)),
			slog.Int64("owner_id", j.OwnerID),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("job task failed",
				slog.String("job_id", j.ID.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("job task finished",
				slog.String("job_id", j.ID.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
