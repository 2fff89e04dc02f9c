package job

import (
	"context"

	"github.com/meemee/studio/id"
)

// ListOpts controls pagination for job list queries.
type ListOpts struct {
	// Limit is the maximum number of jobs to return. Zero means no limit.
	Limit int
	// Offset is the number of jobs to skip.
	Offset int
}

// CountOpts controls filtering for job count queries.
type CountOpts struct {
	// State filters by job state. Empty means all states.
	State State
	// OwnerID filters by owner. Zero means all owners.
	OwnerID int64
}

// Store defines the persistence contract for jobs.
type Store interface {
	// CreateJob persists a new queued job, appends it to its owner's index
	// and to the tail of the work queue. Returns studio.ErrJobAlreadyExists
	// if the id is taken.
	CreateJob(ctx context.Context, j *Job) error

	// GetJob retrieves a job by ID or returns studio.ErrJobNotFound.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// UpdateJob atomically reads the job, applies p, and writes it back.
	// It returns the updated job, or an error wrapping
	// studio.ErrInvalidState when the patch is rejected. A job leaving
	// queued is removed from the work queue.
	UpdateJob(ctx context.Context, jobID id.JobID, p Patch) (*Job, error)

	// ListJobsByState returns jobs in the given state, oldest first.
	ListJobsByState(ctx context.Context, state State, opts ListOpts) ([]*Job, error)

	// ListUserJobs returns the owner's jobs, newest first.
	ListUserJobs(ctx context.Context, ownerID int64, opts ListOpts) ([]*Job, error)

	// CountJobs returns the number of jobs matching opts.
	CountJobs(ctx context.Context, opts CountOpts) (int64, error)

	// QueueLength returns the number of jobs waiting in the work queue.
	QueueLength(ctx context.Context) (int64, error)
}
