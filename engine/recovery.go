package engine

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/meemee/studio/ext"
	"github.com/meemee/studio/job"
)

// RecoveryReport counts what Recover did with each unfinished job.
type RecoveryReport struct {
	// Resumed jobs had a task handle and went back to polling.
	Resumed int `json:"resumed"`
	// Expired jobs were force-failed with recovery-timeout.
	Expired int `json:"expired"`
	// Requeued jobs were still queued and were started again.
	Requeued int `json:"requeued"`
	// Failed jobs were stale but could not be expired. They are left in
	// processing for the next Recover.
	Failed int `json:"failed"`
}

// Recover reconciles every unfinished job with the renderer after a
// restart. Both states are listed before anything is acted on, so jobs
// created concurrently are left to their own tasks.
//
// A processing job resumes polling on its stored task handle, without
// resubmitting, unless it has no handle or has been in processing longer
// than Config.StaleThreshold; those are failed with recovery-timeout
// without contacting the renderer. Queued jobs start processing again.
// Jobs already running in this process are skipped.
//
// A stale job that cannot be expired is logged and counted in
// RecoveryReport.Failed; it does not stop the remaining jobs from being
// recovered. Recover only returns an error when listing jobs fails.
func (eng *Engine) Recover(ctx context.Context) (RecoveryReport, error) {
	var rep RecoveryReport

	processing, err := eng.store.ListJobsByState(ctx, job.StateProcessing, job.ListOpts{})
	if err != nil {
		return rep, fmt.Errorf("list processing jobs: %w", err)
	}
	queued, err := eng.store.ListJobsByState(ctx, job.StateQueued, job.ListOpts{})
	if err != nil {
		return rep, fmt.Errorf("list queued jobs: %w", err)
	}

	now := eng.now()
	var stale []*job.Job
	for _, j := range processing {
		if eng.running(j.ID) {
			continue
		}
		if j.TaskHandle == "" || age(j, now) > eng.cfg.StaleThreshold {
			stale = append(stale, j)
			continue
		}
		if eng.launch(j.Clone(), eng.resume) {
			rep.Resumed++
			eng.extensions.EmitJobRecovered(ctx, j, ext.RecoveryResumed)
		}
	}

	limit := eng.cfg.RecoveryConcurrency
	if limit < 1 {
		limit = 1
	}
	expired := make([]bool, len(stale))
	failed := make([]bool, len(stale))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, j := range stale {
		g.Go(func() error {
			msg := "job expired during recovery"
			if j.TaskHandle == "" {
				msg = "job was never submitted before restart"
			}
			eng.logger.Warn("expiring stale job",
				slog.String("job_id", j.ID.String()),
				slog.Duration("age", age(j, now)),
			)
			if err := eng.fail(ctx, j, job.ReasonRecoveryTimeout, "recovery", msg, nil); err != nil {
				eng.logger.Error("failed to expire stale job",
					slog.String("job_id", j.ID.String()),
					slog.String("error", err.Error()),
				)
				failed[i] = true
				return nil
			}
			expired[i] = j.State == job.StateFailed
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // tasks always return nil
	for i, j := range stale {
		if failed[i] {
			rep.Failed++
			continue
		}
		if expired[i] {
			rep.Expired++
			eng.extensions.EmitJobRecovered(ctx, j, ext.RecoveryExpired)
		}
	}

	for _, j := range queued {
		if eng.launch(j.Clone(), eng.process) {
			rep.Requeued++
			eng.extensions.EmitJobRecovered(ctx, j, ext.RecoveryRequeued)
		}
	}

	return rep, nil
}

// resume continues polling a job that was submitted before a restart.
func (eng *Engine) resume(ctx context.Context, j *job.Job) error {
	eng.logger.Info("resuming job",
		slog.String("job_id", j.ID.String()),
		slog.String("task_handle", j.TaskHandle),
	)
	return eng.poll(ctx, j)
}
