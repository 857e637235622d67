// Package scheduler owns job execution for the warden agent: a registry of
// every job the agent knows about, a bounded submission queue drained by a
// single worker, per-job scalar poll tasks, and the notification fanout
// around each run.
//
// The scheduler is the only entry point that mutates jobs or their trackers.
// Submissions, remote stop commands, scalar reports over the RPC boundary,
// and external job registrations all land here and are serialized against
// one mutex; the worker goroutine owns actual execution.
package scheduler

import (
	"context"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/warden/agent/job"
	"github.com/teranos/warden/agent/notify"
	"github.com/teranos/warden/agent/tracker"
	"github.com/teranos/warden/config"
	"github.com/teranos/warden/errors"
	"github.com/teranos/warden/logger"
	"github.com/teranos/warden/sym"
)

// Store receives audit writes as jobs move through their lifecycle. The
// audit trail is write-only from the scheduler's point of view; failures are
// logged and never block job handling. A nil Store disables persistence.
type Store interface {
	InsertJob(snap job.Snapshot) error
	UpdateJobStatus(id string, status job.Status) error
	UpdateJobExit(id string, status job.Status, exitCode int) error
}

// Scheduler composes the job registry, the queue worker, and the notifier
// collection. One scheduler runs per agent process.
type Scheduler struct {
	log       *zap.SugaredLogger
	processor *QueueProcessor
	notifiers *notify.Collection
	store     Store
	queue     chan *job.Job

	mu             sync.Mutex
	jobs           map[uuid.UUID]*job.Job
	order          []uuid.UUID
	running        *job.Job
	activeExternal uuid.UUID
	nextNumber     int
	pollers        map[uuid.UUID]context.CancelFunc
	conditionSpecs []config.ConditionSpec
	subscribers    map[int]chan Event
	nextSub        int

	pollWG sync.WaitGroup
}

// New builds a scheduler wired to the given notifier collection. store may
// be nil to run without an audit trail; notifiers may be nil for a silent
// scheduler.
func New(notifiers *notify.Collection, store Store, log *zap.SugaredLogger) *Scheduler {
	if log == nil {
		log = logger.ComponentLogger("agent.scheduler")
	}
	if notifiers == nil {
		notifiers = notify.NewCollection(log)
	}
	return &Scheduler{
		log:         log,
		processor:   NewQueueProcessor(log),
		notifiers:   notifiers,
		store:       store,
		queue:       make(chan *job.Job, DefaultQueueCapacity),
		jobs:        make(map[uuid.UUID]*job.Job),
		pollers:     make(map[uuid.UUID]context.CancelFunc),
		subscribers: make(map[int]chan Event),
		nextNumber:  1,
	}
}

// Notifiers exposes the collection so callers can register sinks and read
// notification histories.
func (s *Scheduler) Notifiers() *notify.Collection {
	return s.notifiers
}

// SetConditionSpecs installs the declarative conditions applied to matching
// jobs at submission. Replaces any previous set; jobs already submitted keep
// the conditions they were given.
func (s *Scheduler) SetConditionSpecs(specs []config.ConditionSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conditionSpecs = specs
}

// Start launches the queue worker.
func (s *Scheduler) Start() error {
	return s.processor.Start(s.queue, s.handleJob)
}

// Stop drains the agent: flags the worker to exit, cancels the running job
// and every scalar poll task, then waits for the worker and the pollers,
// bounded by DefaultStopTimeout.
func (s *Scheduler) Stop() {
	s.log.Infow(sym.Close+" Scheduler stopping", logger.FieldSymbol, sym.Job)
	s.processor.ScheduleStop()

	s.mu.Lock()
	running := s.running
	cancels := make([]context.CancelFunc, 0, len(s.pollers))
	for _, cancel := range s.pollers {
		cancels = append(cancels, cancel)
	}
	s.pollers = make(map[uuid.UUID]context.CancelFunc)
	s.mu.Unlock()

	if running != nil {
		if err := running.Cancel(); err != nil {
			s.log.Warnw("Failed terminating running job",
				logger.FieldSymbol, sym.Job,
				logger.FieldJobID, running.ID,
				logger.FieldError, err)
		}
	}
	for _, cancel := range cancels {
		cancel()
	}

	if err := s.processor.WaitStop(); err != nil {
		return
	}
	s.pollWG.Wait()
}

// CreateJob builds a process-backed job from command arguments, assigning
// the next job number. Git provenance is detected from the submission
// directory on a best-effort basis. The job is not registered until
// SubmitJob.
func (s *Scheduler) CreateJob(args []string, cwd string, opts job.Options) (*job.Job, error) {
	j, err := job.Create(args, s.claimNumber(), cwd, opts)
	if err != nil {
		return nil, err
	}
	if pe, ok := j.Executable.(*job.ProcessExecutable); ok {
		prov, err := job.DetectProvenance(pe.WorkDir())
		if err != nil {
			s.log.Debugw("Provenance detection failed",
				logger.FieldJobID, j.ID,
				logger.FieldError, err)
		} else {
			j.Provenance = prov
		}
	}
	return j, nil
}

// claimNumber hands out the next job number. Numbers are monotonic and never
// reused, even when the job they were claimed for fails to build.
func (s *Scheduler) claimNumber() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.nextNumber
	s.nextNumber++
	return n
}

// SubmitJob registers the job and queues it for the worker. Declarative
// conditions matching the job's name are compiled onto its tracker first, so
// they are armed before the job can run. Fails with a transient error when
// the queue is full.
func (s *Scheduler) SubmitJob(j *job.Job) error {
	s.applyConditionSpecs(j)
	j.SetStatus(job.StatusQueued)

	s.mu.Lock()
	if _, ok := s.jobs[j.ID]; ok {
		s.mu.Unlock()
		return errors.Wrapf(errors.ErrAlreadyExists, "job %s", j.ID)
	}
	select {
	case s.queue <- j:
	default:
		s.mu.Unlock()
		return errors.Mark(errors.Newf("job queue is full"), errors.ErrTransient)
	}
	s.jobs[j.ID] = j
	s.order = append(s.order, j.ID)
	s.mu.Unlock()

	s.auditInsert(j)
	s.log.Infow("Job submitted",
		logger.FieldSymbol, sym.Job,
		logger.FieldJobID, j.ID,
		logger.FieldJobName, j.Name,
		logger.FieldJobNumber, j.Number)
	s.publish(Event{Type: EventSubmitted, Job: j.Snapshot()})
	return nil
}

// handleJob runs one dequeued job to completion on the worker goroutine.
// This is the only place jobs execute; the deferred recover keeps a handler
// bug from killing the worker, since QueueProcessor does not guard handlers
// itself.
func (s *Scheduler) handleJob(j *job.Job) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("Job handler panicked",
				logger.FieldSymbol, sym.Job,
				logger.FieldJobID, j.ID,
				logger.FieldError, r)
			if !j.Status().IsProcessed() {
				j.SetStatus(job.StatusFailed)
			}
		}
		s.stopPollingFor(j.ID)
		s.setRunning(nil)
	}()

	if j.Stale() {
		s.log.Debugw("Skipping stale job",
			logger.FieldSymbol, sym.Job,
			logger.FieldJobID, j.ID,
			logger.FieldJobNumber, j.Number)
		return
	}

	s.setRunning(j)
	s.startPolling(j)

	ctx := context.Background()
	s.log.Infow("Starting job",
		logger.FieldSymbol, sym.Job,
		logger.FieldJobID, j.ID,
		logger.FieldJobName, j.Name,
		logger.FieldJobNumber, j.Number)
	s.notifiers.NotifyJobStart(ctx, j)
	snap := j.Snapshot()
	snap.Status = job.StatusRunning // announce the state the launch below establishes
	s.publish(Event{Type: EventStarted, Job: snap})
	s.auditStatus(j.ID, job.StatusRunning)

	code, err := j.LaunchAndWait()
	if err != nil {
		s.log.Errorw("Job execution failed",
			logger.FieldSymbol, sym.Job,
			logger.FieldJobID, j.ID,
			logger.FieldError, err)
	} else {
		s.log.Infow("Job exited",
			logger.FieldSymbol, sym.Job,
			logger.FieldJobID, j.ID,
			logger.FieldExitCode, code,
			logger.FieldStatus, j.Status())
	}

	s.stopPollingFor(j.ID)

	s.notifiers.NotifyJobEnd(ctx, j)
	s.auditExit(j.ID, j.Status(), code)
	s.publish(Event{Type: EventFinished, Job: j.Snapshot()})
}

// StopJob cancels the identified job: a queued job becomes stale and is
// skipped by the worker without notifications, a running job's process is
// terminated and classified by its exit. Unknown ids are a logged no-op
// because a stop command can race the job's own completion.
func (s *Scheduler) StopJob(id uuid.UUID) {
	s.mu.Lock()
	j, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		s.log.Warnw("Stop requested for unknown job",
			logger.FieldSymbol, sym.Job,
			logger.FieldJobID, id)
		return
	}

	if err := j.Cancel(); err != nil {
		s.log.Warnw("Failed terminating job process",
			logger.FieldSymbol, sym.Job,
			logger.FieldJobID, id,
			logger.FieldError, err)
	}
	s.log.Infow("Job stop requested",
		logger.FieldSymbol, sym.Job,
		logger.FieldJobID, id,
		logger.FieldStatus, j.Status())

	// A job cancelled before launch reaches its terminal state right here;
	// one cancelled mid-run reaches it when the worker sees the exit.
	if j.Status().Stale() {
		s.auditStatus(j.ID, j.Status())
		s.publish(Event{Type: EventCanceled, Job: j.Snapshot()})
	}
}

// Job returns the registered job with the given id.
func (s *Scheduler) Job(id uuid.UUID) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrJobNotFound, "job %s", id)
	}
	return j, nil
}

// Jobs returns every registered job in submission order, external
// registrations included.
func (s *Scheduler) Jobs() []*job.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*job.Job, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.jobs[id])
	}
	return out
}

// RunningJob returns the job occupying the execution slot, nil when the
// worker is idle.
func (s *Scheduler) RunningJob() *job.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// FindJobID resolves a user-facing query to a registered job id. Resolution
// precedence: exact UUID, then exact job number, then glob match on name.
// Number and name lookups prefer the most recently submitted match; numbers
// are matched only when positive, since every external job carries number
// zero.
func (s *Scheduler) FindJobID(query string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, err := uuid.Parse(query); err == nil {
		if _, ok := s.jobs[id]; ok {
			return id, nil
		}
	}

	if n, err := strconv.Atoi(query); err == nil && n > 0 {
		for i := len(s.order) - 1; i >= 0; i-- {
			if j := s.jobs[s.order[i]]; j.Number == n {
				return j.ID, nil
			}
		}
	}

	for i := len(s.order) - 1; i >= 0; i-- {
		j := s.jobs[s.order[i]]
		if ok, err := path.Match(query, j.Name); err == nil && ok {
			return j.ID, nil
		}
	}

	return uuid.Nil, errors.Wrapf(errors.ErrJobNotFound, "no job matches %q", query)
}

// applyConditionSpecs compiles every declarative condition whose job glob
// matches onto the job's tracker. A spec that fails to compile is skipped
// with a warning rather than blocking the submission.
func (s *Scheduler) applyConditionSpecs(j *job.Job) {
	s.mu.Lock()
	specs := s.conditionSpecs
	s.mu.Unlock()

	for i := range specs {
		spec := &specs[i]
		if !spec.Matches(j.Name) {
			continue
		}
		title := spec.Title
		if title == "" {
			title = spec.Name
		}
		opts := tracker.ConditionOptions{
			Title:        title,
			Default:      spec.Default,
			OnlyRelevant: spec.OnlyRelevant,
		}
		if spec.CooldownSeconds != nil {
			opts.Cooldown = time.Duration(*spec.CooldownSeconds) * time.Second
		}
		cond, err := tracker.NewCondition(spec.Expr, opts)
		if err != nil {
			s.log.Warnw("Skipping invalid condition",
				logger.FieldSymbol, sym.Track,
				logger.FieldCondition, spec.Name,
				logger.FieldError, err)
			continue
		}
		j.Tracker.AddCondition(cond)
		s.log.Debugw("Condition armed",
			logger.FieldSymbol, sym.Track,
			logger.FieldJobID, j.ID,
			logger.FieldCondition, spec.Name)
	}
}

func (s *Scheduler) setRunning(j *job.Job) {
	s.mu.Lock()
	s.running = j
	s.mu.Unlock()
}

// auditInsert mirrors a fresh registration to the store.
func (s *Scheduler) auditInsert(j *job.Job) {
	if s.store == nil {
		return
	}
	if err := s.store.InsertJob(j.Snapshot()); err != nil {
		s.log.Warnw("Failed writing job audit record",
			logger.FieldSymbol, sym.DB,
			logger.FieldJobID, j.ID,
			logger.FieldError, err)
	}
}

// auditStatus mirrors a status transition to the store.
func (s *Scheduler) auditStatus(id uuid.UUID, status job.Status) {
	if s.store == nil {
		return
	}
	if err := s.store.UpdateJobStatus(id.String(), status); err != nil {
		s.log.Warnw("Failed writing job status audit",
			logger.FieldSymbol, sym.DB,
			logger.FieldJobID, id,
			logger.FieldStatus, status,
			logger.FieldError, err)
	}
}

// auditExit mirrors a terminal transition together with the exit status.
func (s *Scheduler) auditExit(id uuid.UUID, status job.Status, exitCode int) {
	if s.store == nil {
		return
	}
	if err := s.store.UpdateJobExit(id.String(), status, exitCode); err != nil {
		s.log.Warnw("Failed writing job exit audit",
			logger.FieldSymbol, sym.DB,
			logger.FieldJobID, id,
			logger.FieldStatus, status,
			logger.FieldError, err)
	}
}
