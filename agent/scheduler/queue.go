package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/warden/agent/job"
	"github.com/teranos/warden/errors"
	"github.com/teranos/warden/logger"
	"github.com/teranos/warden/sym"
)

const (
	// DefaultQueueCapacity bounds how many submitted jobs may wait for the
	// worker before submission starts failing.
	DefaultQueueCapacity = 256

	// DefaultStopTimeout caps how long WaitStop blocks for the worker to
	// finish the job in flight.
	DefaultStopTimeout = 30 * time.Second
)

// queueLogger wraps zap.SugaredLogger with lifecycle markers for the queue
// worker. Uses different log levels to create visual distinction:
// - DEBUG level → STARTING (✿ Opening operations)
// - WARN level → CLOSING (❀ Closing operations)
type queueLogger struct {
	*zap.SugaredLogger
}

// Starting logs an Opening (✿) event - uses DEBUG level for "STARTING" appearance
func (l queueLogger) Starting(msg string, keysAndValues ...interface{}) {
	l.Debugw(sym.Open+" "+msg, keysAndValues...)
}

// Closing logs a Closing (❀) event - uses WARN level for "CLOSING" appearance
func (l queueLogger) Closing(msg string, keysAndValues ...interface{}) {
	l.Warnw(sym.Close+" "+msg, keysAndValues...)
}

// QueueProcessor drains a job channel on a single worker goroutine, handing
// each dequeued job to the handler and letting it run to completion before
// the next read. Shutdown is two-phase: ScheduleStop raises a stop flag and
// wakes a blocked worker with a nil sentinel, WaitStop blocks until the
// worker has exited. A stopped processor is spent; build a new one for a new
// run.
type QueueProcessor struct {
	log queueLogger

	mu      sync.Mutex
	queue   chan *job.Job
	done    chan struct{}
	running bool
	spent   bool

	stopped atomic.Bool
}

// NewQueueProcessor builds an idle processor. Call Start to attach it to a
// queue.
func NewQueueProcessor(log *zap.SugaredLogger) *QueueProcessor {
	if log == nil {
		log = logger.ComponentLogger("agent.queue")
	}
	return &QueueProcessor{log: queueLogger{log}}
}

// Start spawns the worker goroutine reading from queue. Fails when the
// processor is already running or was stopped before.
func (q *QueueProcessor) Start(queue chan *job.Job, handler func(*job.Job)) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return errors.New("queue processor already started")
	}
	if q.spent {
		return errors.New("stopped queue processor cannot be restarted")
	}
	q.running = true
	q.spent = true
	q.queue = queue
	q.done = make(chan struct{})
	q.log.Starting("Queue worker starting", logger.FieldSymbol, sym.Job)
	go q.work(queue, handler)
	return nil
}

// IsRunning reports whether the worker goroutine is alive.
func (q *QueueProcessor) IsRunning() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// ScheduleStop flags the worker to exit and wakes it with a nil sentinel.
// The sentinel send is non-blocking: when the queue is full the flag alone
// stops the worker once the job in flight finishes. Safe to call more than
// once, and before Start.
func (q *QueueProcessor) ScheduleStop() {
	q.mu.Lock()
	queue := q.queue
	running := q.running
	q.mu.Unlock()

	q.stopped.Store(true)
	if !running {
		return
	}
	select {
	case queue <- nil:
	default:
	}
}

// WaitStop blocks until the worker has exited, bounded by
// DefaultStopTimeout. Call ScheduleStop first. On timeout the worker keeps
// draining its current job in the background and ErrTimeout is returned.
func (q *QueueProcessor) WaitStop() error {
	q.mu.Lock()
	done := q.done
	q.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		q.log.Infow(sym.Close + " Queue worker exited cleanly")
		return nil
	case <-time.After(DefaultStopTimeout):
		q.log.Closing("Queue worker still busy at shutdown", "timeout", DefaultStopTimeout)
		return errors.Wrap(errors.ErrTimeout, "queue worker did not stop")
	}
}

// work is the worker loop. The stop flag is checked both before blocking on
// the queue and after every dequeue, mirroring the two ways ScheduleStop can
// reach a worker: the sentinel wakes a blocked read, the flag covers a
// worker that was busy while the sentinel was dropped or lost to a full
// queue.
func (q *QueueProcessor) work(queue chan *job.Job, handler func(*job.Job)) {
	defer close(q.done)
	defer func() {
		q.mu.Lock()
		q.running = false
		q.mu.Unlock()
	}()

	for {
		if q.stopped.Load() {
			return
		}
		item := <-queue
		if item == nil || q.stopped.Load() {
			return
		}
		handler(item)
	}
}
