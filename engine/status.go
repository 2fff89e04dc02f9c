package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/meemee/studio"
	"github.com/meemee/studio/backoff"
	"github.com/meemee/studio/id"
	"github.com/meemee/studio/job"
	"github.com/meemee/studio/poll"
	"github.com/meemee/studio/renderer"
)

// pollPolicy sizes the status loop for j. A job resumed after a restart
// only gets the attempts left of its original budget, counted from its
// last transition, and always at least one.
func (eng *Engine) pollPolicy(j *job.Job) poll.Policy {
	attempts := eng.cfg.MaxPollAttempts
	if eng.cfg.PollInterval > 0 {
		elapsed := eng.now().Sub(j.UpdatedAt)
		if elapsed > 0 {
			attempts -= int(elapsed / eng.cfg.PollInterval)
		}
	}
	if attempts < 1 {
		attempts = 1
	}

	jobID := j.ID.String()
	return poll.Policy{
		Interval:    backoff.NewConstant(eng.cfg.PollInterval),
		MaxAttempts: attempts,
		OnRetry: func(attempt int, err error) {
			eng.logger.Debug("status check failed, retrying",
				slog.String("job_id", jobID),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		},
	}
}

// runPoll asks the renderer for the status of handle until it reports a
// terminal phase or the policy runs out.
func runPoll(ctx context.Context, p poll.Policy, r renderer.Client, handle string) (renderer.Status, error) {
	return poll.Run(ctx, p, func(ctx context.Context, _ int) (renderer.Status, bool, error) {
		st, err := r.Status(ctx, handle)
		if err != nil {
			return renderer.Status{}, false, err
		}
		return st, st.Phase.Terminal(), nil
	})
}

// age reports how long j has been in its current state at now.
func age(j *job.Job, now time.Time) time.Duration {
	return now.Sub(j.UpdatedAt)
}

// updateJob applies p through the store, retrying transient errors. A
// rejected transition or a missing job is returned immediately.
func (eng *Engine) updateJob(ctx context.Context, jobID id.JobID, p job.Patch) (*job.Job, error) {
	key := jobID.String()
	return poll.Run(ctx, poll.Policy{
		Interval:    eng.storeBackoff,
		MaxAttempts: eng.storeAttempts,
		OnRetry: func(attempt int, err error) {
			eng.logger.Warn("job write failed, retrying",
				slog.String("job_id", key),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		},
	}, func(ctx context.Context, _ int) (*job.Job, bool, error) {
		updated, err := eng.store.UpdateJob(ctx, jobID, p)
		switch {
		case err == nil:
			return updated, true, nil
		case errors.Is(err, studio.ErrInvalidState), errors.Is(err, studio.ErrJobNotFound):
			return nil, false, poll.Permanent(err)
		}
		return nil, false, err
	})
}
