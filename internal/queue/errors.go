package queue

import "errors"

var (
	// ErrJobNotFound reports an unknown job id.
	ErrJobNotFound = errors.New("job not found")
	// ErrProjectBusy reports that the project already has a queued or running job.
	ErrProjectBusy = errors.New("project already has an active job")
	// ErrNotRunning reports an update for a job this worker no longer holds,
	// either because it finished or because its claim was reclaimed.
	ErrNotRunning = errors.New("job is not running")
)
