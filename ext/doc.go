// Package ext defines the extension system for Studio.
//
// Extensions are notified of job lifecycle events and can react to them,
// for example by recording metrics or writing audit logs. Each lifecycle
// hook is a separate interface so extensions opt in only to the events
// they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	func (e *MyExtension) OnJobDone(ctx context.Context, j *job.Job, elapsed time.Duration) error {
//	    log.Printf("job %s done in %s", j.ID, elapsed)
//	    return nil
//	}
//
// # Job Lifecycle Hooks
//
//   - [JobCreated]: job was accepted and queued
//   - [JobStarted]: job moved to processing
//   - [JobSubmitted]: the renderer returned a task handle
//   - [JobDone]: job finished with an asset
//   - [JobFailed]: job failed terminally
//   - [JobNotified]: the owner notification was attempted
//   - [JobRecovered]: startup recovery resumed, expired or requeued the job
//
// # Other Hooks
//
//   - [Shutdown]: the engine is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package ext
