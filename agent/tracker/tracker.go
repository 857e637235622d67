// Package tracker records scalar values reported by running jobs and decides
// when those values warrant a notification.
//
// Each job owns one Tracker. Values arrive as (name, value) pairs and are
// stored per name together with a round index: a single counter shared by
// every scalar in the tracker, advanced so that one multi-value report
// ("loss=0.3, acc=0.9") lands in one logical round while a repeated name is
// always pushed into a fresh round. Registered conditions are evaluated on
// every append and surface at most one firing per call.
package tracker

import (
	"sync"
	"time"

	"github.com/teranos/warden/errors"
)

// ScalarEntry is one reported value and the round it was reported in.
type ScalarEntry struct {
	Value float64 `json:"value"`
	Round int     `json:"round"`
}

// History maps scalar names to their recorded series, ordered by round.
type History map[string][]ScalarEntry

// Tracker holds the scalar history for one job. Safe for concurrent use:
// reports arrive over the RPC boundary while the poll task reads.
type Tracker struct {
	mu         sync.Mutex
	history    map[string][]ScalarEntry
	watermark  map[string]int // last entry index handed out by GetUpdates, per name
	conditions []*Condition
	round      int

	now func() time.Time
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{
		history:   make(map[string][]ScalarEntry),
		watermark: make(map[string]int),
		now:       time.Now,
	}
}

// AddTracked appends value to the named series and evaluates every registered
// condition that references the name. Scalars a condition references that have
// no reported value yet evaluate at the condition's default. At most one
// condition is returned per call: the first registered one whose predicate
// holds and whose cooldown has elapsed. Returns nil when nothing fired.
func (t *Tracker) AddTracked(name string, value float64) *Condition {
	t.mu.Lock()
	defer t.mu.Unlock()

	// A scalar never takes two values in the same round, so a repeated name
	// forces the shared round counter forward. Distinct names reported
	// back-to-back share the current round.
	if entries, ok := t.history[name]; ok && entries[len(entries)-1].Round == t.round {
		t.round++
	}
	t.history[name] = append(t.history[name], ScalarEntry{Value: value, Round: t.round})
	if _, ok := t.watermark[name]; !ok {
		t.watermark[name] = -1
	}

	for _, cond := range t.conditions {
		if !cond.references(name) {
			continue
		}
		latest := make(map[string]float64, len(cond.names))
		for _, n := range cond.names {
			if entries, ok := t.history[n]; ok {
				latest[n] = entries[len(entries)-1].Value
			}
		}
		if cond.fire(latest, t.now()) {
			return cond
		}
	}
	return nil
}

// AddCondition registers a condition for evaluation on future reports.
func (t *Tracker) AddCondition(cond *Condition) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conditions = append(t.conditions, cond)
}

// Conditions returns the registered conditions in registration order.
func (t *Tracker) Conditions() []*Condition {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Condition, len(t.conditions))
	copy(out, t.conditions)
	return out
}

// GetUpdates returns recorded history for the requested names, or for every
// tracked name when names is empty. Requesting a name that has never been
// reported returns ErrScalarNotFound.
//
// With latest set, each series is trimmed to the entries appended since the
// previous GetUpdates call that covered that name (a per-name watermark).
// With plot set, the full requested history is rendered to a temporary PNG
// before trimming and its path returned; the caller owns the file and removes
// it when done. An empty path means there was nothing to draw.
func (t *Tracker) GetUpdates(names []string, plot bool, latest bool) (History, string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, name := range names {
		if _, ok := t.history[name]; !ok {
			return nil, "", errors.NewScalarNotFoundError(name)
		}
	}

	data := make(History)
	if len(names) > 0 {
		for _, name := range names {
			data[name] = cloneEntries(t.history[name])
		}
	} else {
		for name, entries := range t.history {
			data[name] = cloneEntries(entries)
		}
	}

	imgPath := ""
	if plot {
		var err error
		imgPath, err = renderTempChart(data, "")
		if err != nil {
			return nil, "", errors.Wrap(err, "render scalar chart")
		}
	}

	if latest {
		for name, entries := range data {
			data[name] = entries[t.watermark[name]+1:]
		}
	}

	for name := range data {
		t.watermark[name] = len(t.history[name]) - 1
	}

	return data, imgPath, nil
}

// Clean drops all scalar history and watermarks. Registered conditions stay,
// and the round counter is not reset so rounds remain strictly increasing
// across a clean.
func (t *Tracker) Clean() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = make(map[string][]ScalarEntry)
	t.watermark = make(map[string]int)
}

// Refresh resets the tracker for reuse. For an in-memory tracker this is
// the same as Clean.
func (t *Tracker) Refresh() {
	t.Clean()
}

func cloneEntries(entries []ScalarEntry) []ScalarEntry {
	out := make([]ScalarEntry, len(entries))
	copy(out, entries)
	return out
}
