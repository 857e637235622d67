package scheduler

import (
	"context"

	"github.com/google/uuid"

	"github.com/teranos/warden/agent/job"
	"github.com/teranos/warden/errors"
	"github.com/teranos/warden/logger"
	"github.com/teranos/warden/sym"
)

// RegisterExternalJob wraps an externally-owned pid in a job the agent
// observes rather than launches: it is registered, marked running, given a
// scalar poll task, and announced with a START notification. At most one
// external job may be active per agent; a second registration is rejected
// until the first is unregistered.
func (s *Scheduler) RegisterExternalJob(pid int, opts job.Options) (*job.Job, error) {
	j := job.NewExternal(pid, opts)

	s.mu.Lock()
	if s.activeExternal != uuid.Nil {
		active := s.activeExternal
		s.mu.Unlock()
		return nil, errors.NewInvalidRequestError("external job %s is already active", active)
	}
	s.jobs[j.ID] = j
	s.order = append(s.order, j.ID)
	s.activeExternal = j.ID
	s.mu.Unlock()

	j.SetStatus(job.StatusRunning)
	s.auditInsert(j)
	s.startPolling(j)
	s.notifiers.NotifyJobStart(context.Background(), j)

	s.log.Infow("External job registered",
		logger.FieldSymbol, sym.Watch,
		logger.FieldJobID, j.ID,
		logger.FieldJobName, j.Name,
		logger.FieldPID, pid)
	s.publish(Event{Type: EventStarted, Job: j.Snapshot()})
	return j, nil
}

// UnregisterExternalJob ends an external job's observed run: its poll task
// stops, it is marked finished, and the END notification goes out. The job
// itself stays registered so its history remains queryable.
func (s *Scheduler) UnregisterExternalJob(id uuid.UUID) error {
	s.mu.Lock()
	j, ok := s.jobs[id]
	active := s.activeExternal == id
	if active {
		s.activeExternal = uuid.Nil
	}
	s.mu.Unlock()

	if !ok {
		return errors.Wrapf(errors.ErrJobNotFound, "job %s", id)
	}
	if !j.IsExternal() {
		return errors.NewInvalidRequestError("job %s is not external", id)
	}
	if !active {
		return errors.Wrapf(errors.ErrJobNotFound, "external job %s is not active", id)
	}

	s.stopPollingFor(id)
	j.SetStatus(job.StatusFinished)
	s.notifiers.NotifyJobEnd(context.Background(), j)
	s.auditStatus(id, j.Status())

	s.log.Infow("External job unregistered",
		logger.FieldSymbol, sym.Watch,
		logger.FieldJobID, id,
		logger.FieldJobName, j.Name)
	s.publish(Event{Type: EventFinished, Job: j.Snapshot()})
	return nil
}
