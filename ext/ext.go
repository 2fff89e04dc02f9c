// Package ext defines the extension system for Studio.
// Extensions are notified of job lifecycle events (created, submitted,
// done, failed, etc.) and can react to them.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/meemee/studio/job"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// RecoveryAction says what startup recovery did with a job.
type RecoveryAction string

const (
	// RecoveryResumed means polling restarted on the stored task handle.
	RecoveryResumed RecoveryAction = "resumed"
	// RecoveryExpired means the job was force-failed as stale.
	RecoveryExpired RecoveryAction = "expired"
	// RecoveryRequeued means a queued job was handed back to the engine.
	RecoveryRequeued RecoveryAction = "requeued"
)

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobCreated is called after a job is persisted in queued state.
type JobCreated interface {
	OnJobCreated(ctx context.Context, j *job.Job) error
}

// JobStarted is called when a job moves to processing.
type JobStarted interface {
	OnJobStarted(ctx context.Context, j *job.Job) error
}

// JobSubmitted is called once the renderer accepted the task and the
// handle is stored on the job.
type JobSubmitted interface {
	OnJobSubmitted(ctx context.Context, j *job.Job) error
}

// JobDone is called after a job reaches done.
type JobDone interface {
	OnJobDone(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobFailed is called after a job reaches failed. cause is the error that
// led to the failure and may be nil for renderer-reported failures.
type JobFailed interface {
	OnJobFailed(ctx context.Context, j *job.Job, cause error) error
}

// JobNotified is called after the owner notification attempt for a
// terminal job.
type JobNotified interface {
	OnJobNotified(ctx context.Context, j *job.Job, delivered bool) error
}

// JobRecovered is called for each job touched by startup recovery.
type JobRecovered interface {
	OnJobRecovered(ctx context.Context, j *job.Job, action RecoveryAction) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
