package scheduler

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/warden/agent/job"
	"github.com/teranos/warden/logger"
	"github.com/teranos/warden/sym"
)

// startPolling launches the job's periodic scalar report task and registers
// its cancel under the job id. Jobs with a non-positive interval get no
// task. The first report happens one full interval after the start, so a job
// that finishes sooner never produces an empty update.
func (s *Scheduler) startPolling(j *job.Job) {
	if j.PollInterval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.pollers[j.ID] = cancel
	s.mu.Unlock()

	s.log.Debugw("Scalar poll task started",
		logger.FieldSymbol, sym.Track,
		logger.FieldJobID, j.ID,
		logger.FieldInterval, j.PollInterval)

	s.pollWG.Add(1)
	go func() {
		defer s.pollWG.Done()
		s.pollScalars(ctx, j)
	}()
}

// stopPollingFor cancels and forgets the job's poll task. Safe to call when
// none is registered, and safe to call twice.
func (s *Scheduler) stopPollingFor(id uuid.UUID) {
	s.mu.Lock()
	cancel := s.pollers[id]
	delete(s.pollers, id)
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Scheduler) pollScalars(ctx context.Context, j *job.Job) {
	ticker := time.NewTicker(j.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reportRecent(ctx, j)
		}
	}
}

// reportRecent delivers an UPDATE with the entries appended since the last
// poll. Nothing is sent when no scalar moved; the rendered chart is removed
// either way.
func (s *Scheduler) reportRecent(ctx context.Context, j *job.Job) {
	vals, imgPath, err := j.Tracker.GetUpdates(nil, true, true)
	if err != nil {
		s.log.Warnw("Failed collecting scalar updates",
			logger.FieldSymbol, sym.Track,
			logger.FieldJobID, j.ID,
			logger.FieldError, err)
		return
	}

	fresh := false
	for _, entries := range vals {
		if len(entries) > 0 {
			fresh = true
			break
		}
	}

	if fresh && imgPath != "" {
		s.notifiers.NotifyJobUpdate(ctx, j, imgPath)
	}
	if imgPath != "" {
		if err := os.Remove(imgPath); err != nil {
			s.log.Debugw("Failed removing rendered chart",
				logger.FieldSymbol, sym.Track,
				logger.FieldError, err)
		}
	}
}
