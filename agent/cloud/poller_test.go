package cloud

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/warden/errors"
)

// taskScript plays back batches of tasks, one per poll.
type taskScript struct {
	mu      sync.Mutex
	batches [][]Task
	errs    []error
	polls   int
	handled []Task
}

func (s *taskScript) pop(ctx context.Context) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.polls
	s.polls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.batches) {
		return s.batches[i], nil
	}
	return nil, nil
}

func (s *taskScript) handle(ctx context.Context, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handled = append(s.handled, task)
	return nil
}

func (s *taskScript) handledCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handled)
}

func (s *taskScript) pollCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

func runPoller(t *testing.T, p *TaskPoller) (cancel func(), done chan error) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done = make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	cancel = stop
	return cancel, done
}

func waitStopped(t *testing.T, cancel func(), done chan error) {
	t.Helper()
	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestTaskPollerHandlesTasksInOrder(t *testing.T) {
	a := Task{Type: TaskStopJob, JobIdentifier: "a"}
	b := Task{Type: TaskStopJob, JobIdentifier: "b"}
	script := &taskScript{batches: [][]Task{{a, b}}}

	poller := NewTaskPoller(script.pop, script.handle, 10*time.Millisecond, zap.NewNop().Sugar())
	cancel, done := runPoller(t, poller)

	require.Eventually(t, func() bool { return script.handledCount() == 2 },
		5*time.Second, 5*time.Millisecond)
	assert.Equal(t, []Task{a, b}, script.handled)

	waitStopped(t, cancel, done)
}

func TestTaskPollerPollsImmediately(t *testing.T) {
	script := &taskScript{}

	// With an hour between ticks, any poll we observe is the immediate one.
	poller := NewTaskPoller(script.pop, script.handle, time.Hour, zap.NewNop().Sugar())
	cancel, done := runPoller(t, poller)

	require.Eventually(t, func() bool { return script.pollCount() == 1 },
		5*time.Second, 5*time.Millisecond)

	waitStopped(t, cancel, done)
}

func TestTaskPollerSwallowsErrors(t *testing.T) {
	c := Task{Type: TaskStopJob, JobIdentifier: "c"}
	script := &taskScript{
		errs:    []error{errors.New("cloud hiccup")},
		batches: [][]Task{nil, {c}},
	}

	poller := NewTaskPoller(script.pop, script.handle, 10*time.Millisecond, zap.NewNop().Sugar())
	cancel, done := runPoller(t, poller)

	// The failed fetch does not kill the loop; the next poll delivers.
	require.Eventually(t, func() bool { return script.handledCount() == 1 },
		5*time.Second, 5*time.Millisecond)
	assert.Equal(t, []Task{c}, script.handled)

	waitStopped(t, cancel, done)
}

func TestTaskPollerSwallowsHandlerErrors(t *testing.T) {
	a := Task{Type: TaskStopJob, JobIdentifier: "a"}
	b := Task{Type: TaskStopJob, JobIdentifier: "b"}
	script := &taskScript{batches: [][]Task{{a, b}}}

	var mu sync.Mutex
	var handled []string
	handler := func(ctx context.Context, task Task) error {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, task.JobIdentifier)
		if task.JobIdentifier == "a" {
			return errors.New("no such job")
		}
		return nil
	}

	poller := NewTaskPoller(script.pop, handler, 10*time.Millisecond, zap.NewNop().Sugar())
	cancel, done := runPoller(t, poller)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(handled) == 2
	}, 5*time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"a", "b"}, handled)
	mu.Unlock()

	waitStopped(t, cancel, done)
}
