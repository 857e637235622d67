// Package monitor watches processes the agent does not own. An external job
// has no LaunchAndWait to observe, so a ProcessMonitor polls pid liveness
// and drives the same end-of-job path a launched job reaches when its
// process exits.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/teranos/warden/agent/job"
	"github.com/teranos/warden/errors"
	"github.com/teranos/warden/logger"
	"github.com/teranos/warden/sym"
)

// DefaultCheckInterval is how often a watched pid is checked for liveness.
const DefaultCheckInterval = 10 * time.Second

// OnExit is called once when a watched process disappears.
type OnExit func(id uuid.UUID)

// ProcessMonitor polls pid liveness for registered external jobs and fires
// the exit callback when a process is gone.
type ProcessMonitor struct {
	log      *zap.SugaredLogger
	interval time.Duration
	onExit   OnExit
	alive    func(pid int) (bool, error)

	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
	wg      sync.WaitGroup
}

// New returns a monitor firing onExit from its poll goroutines. A
// non-positive interval falls back to DefaultCheckInterval.
func New(interval time.Duration, onExit OnExit, log *zap.SugaredLogger) *ProcessMonitor {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	if log == nil {
		log = logger.ComponentLogger("agent.monitor")
	}
	return &ProcessMonitor{
		log:      log,
		interval: interval,
		onExit:   onExit,
		alive:    pidAlive,
		cancels:  make(map[uuid.UUID]context.CancelFunc),
	}
}

// Watch starts liveness polling for an external job. A job that already
// reached a terminal state is skipped.
func (m *ProcessMonitor) Watch(j *job.Job) error {
	if !j.IsExternal() {
		return errors.NewInvalidRequestError("job %s is not external", j.ID)
	}
	if j.Status().IsProcessed() {
		m.log.Debugw("External job already finished",
			logger.FieldSymbol, sym.Watch,
			logger.FieldJobID, j.ID)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	if _, ok := m.cancels[j.ID]; ok {
		m.mu.Unlock()
		cancel()
		return errors.NewInvalidRequestError("job %s is already watched", j.ID)
	}
	m.cancels[j.ID] = cancel
	m.mu.Unlock()

	m.log.Debugw("Process watch started",
		logger.FieldSymbol, sym.Watch,
		logger.FieldJobID, j.ID,
		logger.FieldPID, j.Pid(),
		logger.FieldInterval, m.interval)
	m.wg.Add(1)
	go m.watch(ctx, j)
	return nil
}

func (m *ProcessMonitor) watch(ctx context.Context, j *job.Job) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Debugw("Process watch cancelled",
				logger.FieldSymbol, sym.Watch,
				logger.FieldJobID, j.ID)
			return
		case <-ticker.C:
			alive, err := m.alive(j.Pid())
			if err != nil {
				m.log.Warnw("Failed checking process liveness",
					logger.FieldSymbol, sym.Watch,
					logger.FieldJobID, j.ID,
					logger.FieldPID, j.Pid(),
					logger.FieldError, err)
				continue
			}
			if alive {
				continue
			}
			m.log.Infow("External process exited",
				logger.FieldSymbol, sym.Watch,
				logger.FieldJobID, j.ID,
				logger.FieldPID, j.Pid())
			m.Unwatch(j.ID)
			if m.onExit != nil {
				m.onExit(j.ID)
			}
			return
		}
	}
}

// Unwatch stops polling for the job. Safe for ids that were never watched;
// a manual unregister and a process death can race.
func (m *ProcessMonitor) Unwatch(id uuid.UUID) {
	m.mu.Lock()
	cancel, ok := m.cancels[id]
	delete(m.cancels, id)
	m.mu.Unlock()
	if ok {
		cancel()
	}
}

// Watched returns the number of jobs currently polled.
func (m *ProcessMonitor) Watched() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cancels)
}

// Stop cancels every watch and waits for the poll goroutines to exit.
func (m *ProcessMonitor) Stop() {
	m.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(m.cancels))
	for _, cancel := range m.cancels {
		cancels = append(cancels, cancel)
	}
	m.cancels = make(map[uuid.UUID]context.CancelFunc)
	m.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	m.wg.Wait()
}

func pidAlive(pid int) (bool, error) {
	return process.PidExists(int32(pid))
}
