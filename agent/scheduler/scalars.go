package scheduler

import (
	"context"
	"os"

	"github.com/google/uuid"

	"github.com/teranos/warden/agent/job"
	"github.com/teranos/warden/agent/tracker"
	"github.com/teranos/warden/errors"
	"github.com/teranos/warden/logger"
	"github.com/teranos/warden/sym"
)

// ReportScalar routes a (pid, name, value) report to the job owning that
// process and appends it to the job's tracker. When the append fires a
// condition, the full requested history is rendered and delivered as an
// UPDATE notification before the temporary chart is removed.
func (s *Scheduler) ReportScalar(pid int, name string, value float64) error {
	j, err := s.jobForPid(pid)
	if err != nil {
		return err
	}

	cond := j.Tracker.AddTracked(name, value)
	s.log.Debugw("Scalar reported",
		logger.FieldSymbol, sym.Track,
		logger.FieldJobID, j.ID,
		logger.FieldScalar, name,
		logger.FieldValue, value)
	s.publish(Event{Type: EventScalar, Job: j.Snapshot(), Scalar: name, Value: value})

	if cond != nil {
		s.fireCondition(j, cond)
	}
	return nil
}

// AddCondition compiles expr and registers it on the job owning pid. The
// options carry the declared scalar names (validated against the
// expression), the default for missing values, the cooldown, and the
// only-relevant flag.
func (s *Scheduler) AddCondition(pid int, expr string, opts tracker.ConditionOptions) error {
	j, err := s.jobForPid(pid)
	if err != nil {
		return err
	}
	cond, err := tracker.NewCondition(expr, opts)
	if err != nil {
		return err
	}
	j.Tracker.AddCondition(cond)
	s.log.Infow("Condition registered",
		logger.FieldSymbol, sym.Track,
		logger.FieldJobID, j.ID,
		logger.FieldCondition, cond.Title())
	return nil
}

// AddConditionByID is AddCondition for callers that already know the job id.
func (s *Scheduler) AddConditionByID(id uuid.UUID, expr string, opts tracker.ConditionOptions) error {
	j, err := s.Job(id)
	if err != nil {
		return err
	}
	cond, err := tracker.NewCondition(expr, opts)
	if err != nil {
		return err
	}
	j.Tracker.AddCondition(cond)
	s.log.Infow("Condition registered",
		logger.FieldSymbol, sym.Track,
		logger.FieldJobID, j.ID,
		logger.FieldCondition, cond.Title())
	return nil
}

// QueryScalars returns tracked history for a job, optionally trimmed to
// entries newer than the previous query and optionally rendered to a chart.
// Used both by external queries and by the periodic poll task.
func (s *Scheduler) QueryScalars(id uuid.UUID, names []string, latestOnly bool, plot bool) (tracker.History, string, error) {
	j, err := s.Job(id)
	if err != nil {
		return nil, "", err
	}
	return j.Tracker.GetUpdates(names, plot, latestOnly)
}

// jobForPid resolves an OS process id to exactly one unprocessed job.
// Ambiguous matches prefer the active external job; without one they fail
// the same way zero matches do, since the report cannot be routed safely.
func (s *Scheduler) jobForPid(pid int) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []*job.Job
	for _, id := range s.order {
		j := s.jobs[id]
		if j.Status().IsProcessed() {
			continue
		}
		if j.Pid() == pid {
			matches = append(matches, j)
		}
	}

	switch len(matches) {
	case 0:
		return nil, errors.Wrapf(errors.ErrJobNotFound, "no job with pid %d", pid)
	case 1:
		return matches[0], nil
	}
	for _, j := range matches {
		if j.ID == s.activeExternal {
			return j, nil
		}
	}
	return nil, errors.Wrapf(errors.ErrJobNotFound, "pid %d matches %d jobs", pid, len(matches))
}

// fireCondition renders the condition's view of the scalar history and sends
// it as an UPDATE notification. Scoped to the condition's own scalars when
// it asks for that; the rendered chart is deleted once the notifiers had
// their chance at it.
func (s *Scheduler) fireCondition(j *job.Job, cond *tracker.Condition) {
	var names []string
	if cond.OnlyRelevant() {
		names = cond.Names()
	}
	_, imgPath, err := j.Tracker.GetUpdates(names, true, false)
	if err != nil {
		s.log.Warnw("Failed rendering condition update",
			logger.FieldSymbol, sym.Track,
			logger.FieldJobID, j.ID,
			logger.FieldCondition, cond.Title(),
			logger.FieldError, err)
		return
	}

	s.log.Infow("Condition fired",
		logger.FieldSymbol, sym.Track,
		logger.FieldJobID, j.ID,
		logger.FieldCondition, cond.Title())
	s.notifiers.NotifyJobUpdate(context.Background(), j, imgPath)

	if imgPath != "" {
		if err := os.Remove(imgPath); err != nil {
			s.log.Debugw("Failed removing rendered chart",
				logger.FieldSymbol, sym.Track,
				logger.FieldError, err)
		}
	}
}
