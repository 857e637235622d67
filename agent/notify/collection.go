package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/warden/agent/job"
	"github.com/teranos/warden/errors"
	"github.com/teranos/warden/logger"
	"github.com/teranos/warden/sym"
)

// Sink receives every Record as it is appended, for persistence. Sinks must
// not block for long; they run on the notifying goroutine.
type Sink func(jobID uuid.UUID, rec Record)

// Collection fans job events out to all registered notifiers and keeps the
// per-job notification history. Each hook call is contained: an error or
// panic from one notifier is logged and recorded, and dispatch continues
// with the next.
type Collection struct {
	log *zap.SugaredLogger

	mu        sync.Mutex
	notifiers []Notifier
	history   map[uuid.UUID][]Record
	sink      Sink
}

// NewCollection returns an empty Collection.
func NewCollection(log *zap.SugaredLogger) *Collection {
	return &Collection{
		log:     log,
		history: make(map[uuid.UUID][]Record),
	}
}

// Register adds a notifier. A second notifier with an already registered
// name is rejected: Register returns false and the collection is unchanged.
func (c *Collection) Register(n Notifier) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.notifiers {
		if existing.Name() == n.Name() {
			c.log.Warnw("Notifier already registered",
				"symbol", sym.Cloud,
				logger.FieldNotifier, n.Name())
			return false
		}
	}
	c.notifiers = append(c.notifiers, n)
	return true
}

// Names returns registered notifier names in registration order.
func (c *Collection) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, len(c.notifiers))
	for i, n := range c.notifiers {
		names[i] = n.Name()
	}
	return names
}

// SetSink installs a callback invoked for every appended Record. Passing nil
// removes the sink.
func (c *Collection) SetSink(sink Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
}

// NotifyJobStart dispatches a START event to every notifier. It reports
// whether all of them succeeded.
func (c *Collection) NotifyJobStart(ctx context.Context, j *job.Job) bool {
	return c.dispatch(j.ID, EventStart, func(n Notifier) error {
		return n.NotifyJobStart(ctx, j)
	})
}

// NotifyJobEnd dispatches an END event to every notifier. It reports whether
// all of them succeeded.
func (c *Collection) NotifyJobEnd(ctx context.Context, j *job.Job) bool {
	return c.dispatch(j.ID, EventEnd, func(n Notifier) error {
		return n.NotifyJobEnd(ctx, j)
	})
}

// NotifyJobUpdate dispatches an UPDATE event to every notifier. imagePath
// may be empty. It reports whether all notifiers succeeded.
func (c *Collection) NotifyJobUpdate(ctx context.Context, j *job.Job, imagePath string) bool {
	return c.dispatch(j.ID, EventUpdate, func(n Notifier) error {
		return n.NotifyJobUpdate(ctx, j, imagePath)
	})
}

// History returns the job's notification records in append order. The
// returned slice is a copy; an unknown job yields an empty history.
func (c *Collection) History(jobID uuid.UUID) []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	records := c.history[jobID]
	out := make([]Record, len(records))
	copy(out, records)
	return out
}

// LastStatus returns the most recent record per notifier for the job. Only
// notifiers that have at least one record for the job appear in the map.
func (c *Collection) LastStatus(jobID uuid.UUID) map[string]Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	last := make(map[string]Record)
	for _, rec := range c.history[jobID] {
		last[rec.Notifier] = rec
	}
	return last
}

func (c *Collection) dispatch(jobID uuid.UUID, event Event, call func(Notifier) error) bool {
	c.mu.Lock()
	notifiers := make([]Notifier, len(c.notifiers))
	copy(notifiers, c.notifiers)
	c.mu.Unlock()

	ok := true
	for _, n := range notifiers {
		rec := Record{
			Notifier:  n.Name(),
			Event:     event,
			Outcome:   OutcomeSuccess,
			Timestamp: time.Now(),
		}
		if err := safeCall(n, call); err != nil {
			ok = false
			rec.Outcome = OutcomeFailure
			rec.Error = err.Error()
			c.log.Warnw("Notifier failed",
				"symbol", sym.Cloud,
				logger.FieldNotifier, n.Name(),
				logger.FieldJobID, jobID.String(),
				"event", string(event),
				logger.FieldError, err)
		}
		c.record(jobID, rec)
	}
	return ok
}

func (c *Collection) record(jobID uuid.UUID, rec Record) {
	c.mu.Lock()
	c.history[jobID] = append(c.history[jobID], rec)
	sink := c.sink
	c.mu.Unlock()
	if sink != nil {
		sink(jobID, rec)
	}
}

// safeCall invokes the hook and converts a panic into an error so a broken
// notifier cannot take down the worker.
func safeCall(n Notifier, call func(Notifier) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("notifier %s panicked: %v", n.Name(), r)
		}
	}()
	return call(n)
}
