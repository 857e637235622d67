package scheduler

import (
	"time"

	"github.com/teranos/warden/agent/job"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls this far behind starts missing events instead of blocking the
// scheduler.
const subscriberBuffer = 16

// EventType labels a job lifecycle change fanned out to subscribers.
type EventType string

const (
	EventSubmitted EventType = "submitted"
	EventStarted   EventType = "started"
	EventFinished  EventType = "finished"
	EventCanceled  EventType = "canceled"
	EventScalar    EventType = "scalar"
)

// Event is one scheduler state change. Scalar and Value are set only for
// EventScalar.
type Event struct {
	Type      EventType    `json:"type"`
	Job       job.Snapshot `json:"job"`
	Scalar    string       `json:"scalar,omitempty"`
	Value     float64      `json:"value,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Subscribe registers a buffered event channel and returns it with an id for
// Unsubscribe. Delivery is best-effort.
func (s *Scheduler) Subscribe() (int, <-chan Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, subscriberBuffer)
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe drops the subscription and closes its channel. Unknown ids are
// ignored.
func (s *Scheduler) Unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.subscribers[id]
	if !ok {
		return
	}
	delete(s.subscribers, id)
	close(ch)
}

// publish stamps and fans ev out to every subscriber. Sends happen under the
// scheduler lock so a concurrent Unsubscribe cannot close a channel
// mid-send; they are non-blocking so no subscriber can stall job handling.
func (s *Scheduler) publish(ev Event) {
	ev.Timestamp = time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}
