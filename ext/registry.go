package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/meemee/studio/job"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time.
type entry[H any] struct {
	name string
	hook H
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	jobCreated   []entry[JobCreated]
	jobStarted   []entry[JobStarted]
	jobSubmitted []entry[JobSubmitted]
	jobDone      []entry[JobDone]
	jobFailed    []entry[JobFailed]
	jobNotified  []entry[JobNotified]
	jobRecovered []entry[JobRecovered]
	shutdown     []entry[Shutdown]
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(JobCreated); ok {
		r.jobCreated = append(r.jobCreated, entry[JobCreated]{name, h})
	}
	if h, ok := e.(JobStarted); ok {
		r.jobStarted = append(r.jobStarted, entry[JobStarted]{name, h})
	}
	if h, ok := e.(JobSubmitted); ok {
		r.jobSubmitted = append(r.jobSubmitted, entry[JobSubmitted]{name, h})
	}
	if h, ok := e.(JobDone); ok {
		r.jobDone = append(r.jobDone, entry[JobDone]{name, h})
	}
	if h, ok := e.(JobFailed); ok {
		r.jobFailed = append(r.jobFailed, entry[JobFailed]{name, h})
	}
	if h, ok := e.(JobNotified); ok {
		r.jobNotified = append(r.jobNotified, entry[JobNotified]{name, h})
	}
	if h, ok := e.(JobRecovered); ok {
		r.jobRecovered = append(r.jobRecovered, entry[JobRecovered]{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, entry[Shutdown]{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Job event emitters
// ──────────────────────────────────────────────────

// EmitJobCreated notifies all extensions that implement JobCreated.
func (r *Registry) EmitJobCreated(ctx context.Context, j *job.Job) {
	for _, e := range r.jobCreated {
		if err := e.hook.OnJobCreated(ctx, j); err != nil {
			r.logHookError("OnJobCreated", e.name, err)
		}
	}
}

// EmitJobStarted notifies all extensions that implement JobStarted.
func (r *Registry) EmitJobStarted(ctx context.Context, j *job.Job) {
	for _, e := range r.jobStarted {
		if err := e.hook.OnJobStarted(ctx, j); err != nil {
			r.logHookError("OnJobStarted", e.name, err)
		}
	}
}

// EmitJobSubmitted notifies all extensions that implement JobSubmitted.
func (r *Registry) EmitJobSubmitted(ctx context.Context, j *job.Job) {
	for _, e := range r.jobSubmitted {
		if err := e.hook.OnJobSubmitted(ctx, j); err != nil {
			r.logHookError("OnJobSubmitted", e.name, err)
		}
	}
}

// EmitJobDone notifies all extensions that implement JobDone.
func (r *Registry) EmitJobDone(ctx context.Context, j *job.Job, elapsed time.Duration) {
	for _, e := range r.jobDone {
		if err := e.hook.OnJobDone(ctx, j, elapsed); err != nil {
			r.logHookError("OnJobDone", e.name, err)
		}
	}
}

// EmitJobFailed notifies all extensions that implement JobFailed.
func (r *Registry) EmitJobFailed(ctx context.Context, j *job.Job, cause error) {
	for _, e := range r.jobFailed {
		if err := e.hook.OnJobFailed(ctx, j, cause); err != nil {
			r.logHookError("OnJobFailed", e.name, err)
		}
	}
}

// EmitJobNotified notifies all extensions that implement JobNotified.
func (r *Registry) EmitJobNotified(ctx context.Context, j *job.Job, delivered bool) {
	for _, e := range r.jobNotified {
		if err := e.hook.OnJobNotified(ctx, j, delivered); err != nil {
			r.logHookError("OnJobNotified", e.name, err)
		}
	}
}

// EmitJobRecovered notifies all extensions that implement JobRecovered.
func (r *Registry) EmitJobRecovered(ctx context.Context, j *job.Job, action RecoveryAction) {
	for _, e := range r.jobRecovered {
		if err := e.hook.OnJobRecovered(ctx, j, action); err != nil {
			r.logHookError("OnJobRecovered", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Other event emitters
// ──────────────────────────────────────────────────

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Hook errors never reach the job pipeline.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
