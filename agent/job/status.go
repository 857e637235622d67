// Package job defines the unit of work the warden agent schedules: a Job
// wrapping an Executable, its lifecycle state machine, and the scalar
// Tracker it owns.
package job

// Status is the lifecycle state of a job.
type Status string

const (
	StatusCreated         Status = "CREATED"
	StatusQueued          Status = "QUEUED"
	StatusRunning         Status = "RUNNING"
	StatusFinished        Status = "FINISHED"
	StatusCanceled        Status = "CANCELED"
	StatusFailed          Status = "FAILED"
	StatusCancelledByUser Status = "CANCELLED_BY_USER"
)

// IsValidStatus returns true if the status string is a valid Status
func IsValidStatus(s string) bool {
	switch Status(s) {
	case StatusCreated, StatusQueued, StatusRunning,
		StatusFinished, StatusCanceled, StatusFailed, StatusCancelledByUser:
		return true
	default:
		return false
	}
}

// IsLaunched reports whether the job's process was ever started: it is
// either running now or already ran to completion. CANCELLED_BY_USER is not
// launched; that status only exists for jobs whose process never started.
func (s Status) IsLaunched() bool {
	return s == StatusRunning || s.IsProcessed()
}

// IsRunning reports whether the job's process is executing right now.
func (s Status) IsRunning() bool {
	return s == StatusRunning
}

// IsProcessed reports whether the job ran and reached an exit, whatever the
// outcome.
func (s Status) IsProcessed() bool {
	switch s {
	case StatusFinished, StatusCanceled, StatusFailed:
		return true
	default:
		return false
	}
}

// Stale reports whether the job was cancelled before it ever launched.
// The worker skips stale jobs without sending notifications.
func (s Status) Stale() bool {
	return s == StatusCancelledByUser
}
