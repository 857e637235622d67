package job

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/warden/agent/tracker"
	"github.com/teranos/warden/config"
	"github.com/teranos/warden/errors"
)

// DefaultPollInterval is how often a job's scalars are polled and reported
// when the submitter does not choose an interval.
const DefaultPollInterval = time.Hour

// Exit codes classified as user-initiated cancellation rather than failure.
// These are negated signal numbers: SIGINT, SIGQUIT, SIGKILL, SIGTERM.
var canceledExitCodes = []int{-2, -3, -9, -15}

// classifyExit maps a raw wait status to the terminal state it implies.
func classifyExit(code int) Status {
	if code == 0 {
		return StatusFinished
	}
	for _, c := range canceledExitCodes {
		if code == c {
			return StatusCanceled
		}
	}
	return StatusFailed
}

// Job is one unit of scheduled work. The scheduler owns the Job for its
// registered lifetime; the Job exclusively owns its Executable and Tracker.
type Job struct {
	ID           uuid.UUID
	Number       int
	Name         string
	Description  string
	CreatedAt    time.Time
	PollInterval time.Duration

	// Provenance records the git origin of the submitted work, nil when the
	// submission directory is not inside a repository.
	Provenance *Provenance

	Executable Executable
	Tracker    *tracker.Tracker

	mu     sync.RWMutex
	status Status
}

// Options tunes job construction. The zero value applies all defaults.
type Options struct {
	ID           uuid.UUID     // zero generates a fresh id
	Name         string        // "" defaults to "Job #<number>"
	Description  string        // "" defaults to the executable's command line
	PollInterval time.Duration // 0 defaults to DefaultPollInterval
	OutputPath   string        // Create only: "" defaults to the warden jobs dir keyed by id
}

// New wraps an executable in a Job. The job starts in CREATED and owns a
// fresh Tracker.
func New(executable Executable, number int, opts Options) *Job {
	id := opts.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	name := opts.Name
	if name == "" {
		name = fmt.Sprintf("Job #%d", number)
	}
	description := opts.Description
	if description == "" {
		description = executable.String()
	}
	pollInterval := opts.PollInterval
	if pollInterval == 0 {
		pollInterval = DefaultPollInterval
	}

	return &Job{
		ID:           id,
		Number:       number,
		Name:         name,
		Description:  description,
		CreatedAt:    time.Now(),
		PollInterval: pollInterval,
		Executable:   executable,
		Tracker:      tracker.New(),
		status:       StatusCreated,
	}
}

// Create builds a process-backed job from command arguments. The interpreter
// implied by the first argument is prepended and script arguments are
// resolved against cwd; a script that cannot be resolved fails here with
// ErrExecutableNotFound rather than at launch. Output is captured under
// opts.OutputPath when that names an existing directory, otherwise under the
// warden jobs dir keyed by the new job's id.
func Create(args []string, number int, cwd string, opts Options) (*Job, error) {
	id := opts.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	opts.ID = id

	outputPath := opts.OutputPath
	if outputPath != "" {
		if info, err := os.Stat(outputPath); err != nil || !info.IsDir() {
			outputPath = ""
		}
	}
	if outputPath == "" {
		outputPath = config.JobDir(id.String())
	}

	args = PrependInterpreter(args)
	executable, err := NewProcessExecutable(args, cwd, outputPath)
	if err != nil {
		return nil, err
	}
	return New(executable, number, opts), nil
}

// NewExternal wraps an externally-owned pid in a Job so it can carry a
// Tracker and receive start/end notifications. External jobs always use
// number 0; they are addressed by id or name.
func NewExternal(pid int, opts Options) *Job {
	if opts.Name == "" {
		opts.Name = fmt.Sprintf("External job (pid %d)", pid)
	}
	return New(NewExternalExecutable(pid), 0, opts)
}

// IsExternal reports whether the job observes an external process instead of
// owning one.
func (j *Job) IsExternal() bool {
	_, ok := j.Executable.(*ExternalExecutable)
	return ok
}

// Status returns the job's current lifecycle state.
func (j *Job) Status() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// SetStatus transitions the job's lifecycle state.
func (j *Job) SetStatus(s Status) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = s
}

// Stale reports whether the job was cancelled before launching and should be
// skipped by the worker.
func (j *Job) Stale() bool {
	return j.Status().Stale()
}

// Pid returns the pid of the underlying process, 0 when none is alive.
func (j *Job) Pid() int {
	return j.Executable.Pid()
}

// OutputPath returns the directory the job's output is captured under.
func (j *Job) OutputPath() string { return j.Executable.OutputPath() }

// StdoutPath returns the job's stdout capture file, or "".
func (j *Job) StdoutPath() string { return j.Executable.StdoutPath() }

// StderrPath returns the job's stderr capture file, or "".
func (j *Job) StderrPath() string { return j.Executable.StderrPath() }

// LaunchAndWait runs the executable to completion, moving the job through
// RUNNING into the terminal state its exit code implies: FINISHED on 0,
// CANCELED on a termination signal, FAILED otherwise. A launch or I/O
// failure leaves the job FAILED and returns the error.
func (j *Job) LaunchAndWait() (int, error) {
	j.SetStatus(StatusRunning)
	code, err := j.Executable.LaunchAndWait()
	if err != nil {
		j.SetStatus(StatusFailed)
		return code, errors.Wrapf(err, "job %s", j.ID)
	}
	j.SetStatus(classifyExit(code))
	return code, nil
}

// Cancel terminates the underlying process if one is running; if the job
// never launched, it additionally becomes CANCELLED_BY_USER so the worker
// skips it.
//
// Cancel races the worker's launch on purpose: the worker may flip the job
// to RUNNING right after the check below, in which case the terminate has
// either already killed the fresh process (exit classification then lands on
// CANCELED) or was a no-op on a not-yet-started one. Whichever status write
// lands last wins; every interleaving ends in a terminal or skippable state.
func (j *Job) Cancel() error {
	err := j.Executable.Terminate()
	if !j.Status().IsLaunched() {
		j.SetStatus(StatusCancelledByUser)
	}
	return err
}

func (j *Job) String() string {
	return fmt.Sprintf("Job #%d (%s): %s - %s", j.Number, j.ID, j.Executable, j.Status())
}

// Snapshot is a point-in-time serializable view of a job, shared by the
// HTTP API, the CLI, and the audit store.
type Snapshot struct {
	ID                  string      `json:"id"`
	Number              int         `json:"number"`
	Name                string      `json:"name"`
	Description         string      `json:"description,omitempty"`
	Command             string      `json:"command,omitempty"`
	Status              Status      `json:"status"`
	External            bool        `json:"external,omitempty"`
	Pid                 int         `json:"pid,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	PollIntervalSeconds float64     `json:"poll_interval_seconds,omitempty"`
	OutputPath          string      `json:"output_path,omitempty"`
	Provenance          *Provenance `json:"provenance,omitempty"`
}

// Snapshot captures the job's current state for serialization.
func (j *Job) Snapshot() Snapshot {
	return Snapshot{
		ID:                  j.ID.String(),
		Number:              j.Number,
		Name:                j.Name,
		Description:         j.Description,
		Command:             j.Executable.String(),
		Status:              j.Status(),
		External:            j.IsExternal(),
		Pid:                 j.Pid(),
		CreatedAt:           j.CreatedAt,
		PollIntervalSeconds: j.PollInterval.Seconds(),
		OutputPath:          j.OutputPath(),
		Provenance:          j.Provenance,
	}
}
