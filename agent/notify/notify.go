// Package notify delivers job lifecycle and scalar-update events to
// pluggable sinks.
//
// A Notifier exposes three hooks (job start, job end, scalar update with an
// optional chart image) and is allowed to fail. Collection wraps every
// registered notifier in a never-throws contract: hook errors and panics are
// caught, logged, and recorded as FAILURE outcomes in an append-only per-job
// history, so callers can fire notifications unconditionally without guarding
// each call site.
package notify

import (
	"context"
	"time"

	"github.com/teranos/warden/agent/job"
)

// Event identifies which lifecycle hook produced a notification.
type Event string

const (
	EventStart  Event = "START"
	EventEnd    Event = "END"
	EventUpdate Event = "UPDATE"
)

// Outcome records whether a notifier hook succeeded.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
)

// Record is one entry in a job's notification history. Records are
// append-only; they are never mutated or removed.
type Record struct {
	Notifier  string    `json:"notifier"`
	Event     Event     `json:"event"`
	Outcome   Outcome   `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier is a sink for job events. Implementations may return errors
// freely; Collection contains them.
type Notifier interface {
	// Name identifies the notifier in histories and logs. Names must be
	// unique within a Collection.
	Name() string

	NotifyJobStart(ctx context.Context, j *job.Job) error
	NotifyJobEnd(ctx context.Context, j *job.Job) error

	// NotifyJobUpdate reports new scalar values for a running job.
	// imagePath points at a rendered chart, or is empty when there was
	// nothing to draw.
	NotifyJobUpdate(ctx context.Context, j *job.Job, imagePath string) error
}
