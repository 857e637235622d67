package server

import (
	"github.com/teranos/warden/agent/job"
	"github.com/teranos/warden/agent/monitor"
	"github.com/teranos/warden/agent/notify"
	"github.com/teranos/warden/agent/store"
	"github.com/teranos/warden/agent/tracker"
)

// Request and response shapes for the daemon API. The client package decodes
// into these same types, so the wire format is defined in exactly one place.

// SubmitRequest is the body of POST /api/jobs.
type SubmitRequest struct {
	Args                []string `json:"args"`
	Cwd                 string   `json:"cwd,omitempty"`
	Name                string   `json:"name,omitempty"`
	Description         string   `json:"description,omitempty"`
	PollIntervalSeconds float64  `json:"poll_interval_seconds,omitempty"`
	OutputPath          string   `json:"output_path,omitempty"`
}

// JobListResponse is the live registry listing from GET /api/jobs.
type JobListResponse struct {
	Jobs  []job.Snapshot `json:"jobs"`
	Count int            `json:"count"`
}

// AuditListResponse is the audit-trail listing from GET /api/jobs?all=true.
// Records survive daemon restarts and carry exit codes.
type AuditListResponse struct {
	Jobs  []store.JobRecord `json:"jobs"`
	Count int               `json:"count"`
}

// JobDetailResponse is one job from GET /api/jobs/{id}. Process carries live
// cpu/rss stats and is set only while the job has a running process.
type JobDetailResponse struct {
	Job     job.Snapshot    `json:"job"`
	Process *monitor.Sample `json:"process,omitempty"`
}

// OutputResponse describes where a job's output lives. Stdout and Stderr
// hold the last requested lines of each capture file when a tail was asked
// for.
type OutputResponse struct {
	OutputPath string   `json:"output_path,omitempty"`
	StdoutPath string   `json:"stdout_path,omitempty"`
	StderrPath string   `json:"stderr_path,omitempty"`
	Stdout     []string `json:"stdout,omitempty"`
	Stderr     []string `json:"stderr,omitempty"`
}

// UpdatesResponse is the tracked scalar history from GET /api/jobs/{id}/updates.
// ImagePath names a rendered chart on the daemon host; the caller owns the
// file and removes it when done.
type UpdatesResponse struct {
	Updates   tracker.History `json:"updates"`
	ImagePath string          `json:"image_path,omitempty"`
}

// NotificationsResponse is the notification history from
// GET /api/jobs/{id}/notifications.
type NotificationsResponse struct {
	Notifications []notify.Record `json:"notifications"`
	Count         int             `json:"count"`
}

// FindResponse is the resolved job id from GET /api/find.
type FindResponse struct {
	ID string `json:"id"`
}

// ReportRequest is the body of POST /api/report: one scalar value from a
// running process, routed to the owning job by pid.
type ReportRequest struct {
	Pid   int     `json:"pid"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// ConditionRequest is the body of POST /api/conditions. The target job is
// named by ID or by Pid; exactly one must be set.
type ConditionRequest struct {
	ID              string   `json:"id,omitempty"`
	Pid             int      `json:"pid,omitempty"`
	Expr            string   `json:"expr"`
	Names           []string `json:"names,omitempty"`
	Title           string   `json:"title,omitempty"`
	Default         *float64 `json:"default,omitempty"`
	CooldownSeconds float64  `json:"cooldown_seconds,omitempty"`
	OnlyRelevant    bool     `json:"only_relevant,omitempty"`
}

// ExternalRequest is the body of POST /api/external: a process the agent
// should observe without owning it.
type ExternalRequest struct {
	Pid                 int     `json:"pid"`
	Name                string  `json:"name,omitempty"`
	PollIntervalSeconds float64 `json:"poll_interval_seconds,omitempty"`
}

// StatusResponse is the agent summary from GET /api/status.
type StatusResponse struct {
	Version              string        `json:"version"`
	Commit               string        `json:"commit"`
	State                string        `json:"state"`
	UptimeSeconds        float64       `json:"uptime_seconds"`
	Jobs                 int           `json:"jobs"`
	QueuedJobs           int           `json:"queued_jobs"`
	RunningJob           *job.Snapshot `json:"running_job,omitempty"`
	WatchedProcesses     int           `json:"watched_processes"`
	Notifiers            []string      `json:"notifiers"`
	Clients              int           `json:"clients"`
	AuditedJobs          int           `json:"audited_jobs,omitempty"`
	AuditedNotifications int           `json:"audited_notifications,omitempty"`
}
