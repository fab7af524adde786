package scheduler

import "context"

// Job is a unit of work executed by the worker pool.
type Job interface {
	// Execute runs the job. The context carries the per-job timeout.
	Execute(ctx context.Context) error

	// UserID returns the user the job works for, for logging.
	UserID() string

	Description() string
}

// JobProvider returns the jobs of one scheduled run
type JobProvider func(ctx context.Context) ([]Job, error)
