package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/warden/agent/job"
)

func queueJob(name string) *job.Job {
	return job.New(&fakeExec{}, 1, job.Options{Name: name, PollInterval: -1})
}

func TestQueueProcessorHandlesJobsInOrder(t *testing.T) {
	q := NewQueueProcessor(zap.NewNop().Sugar())
	queue := make(chan *job.Job, 8)

	var mu sync.Mutex
	var got []string
	handler := func(j *job.Job) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, j.Name)
	}

	require.NoError(t, q.Start(queue, handler))
	assert.True(t, q.IsRunning())

	queue <- queueJob("a")
	queue <- queueJob("b")
	queue <- queueJob("c")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"a", "b", "c"}, got)
	mu.Unlock()

	q.ScheduleStop()
	require.NoError(t, q.WaitStop())
	assert.False(t, q.IsRunning())
}

func TestQueueProcessorStopWakesBlockedWorker(t *testing.T) {
	q := NewQueueProcessor(zap.NewNop().Sugar())
	queue := make(chan *job.Job, 1)

	require.NoError(t, q.Start(queue, func(*job.Job) {}))

	// The worker is blocked on an empty queue; the sentinel must reach it.
	q.ScheduleStop()
	require.NoError(t, q.WaitStop())
	assert.False(t, q.IsRunning())
}

func TestQueueProcessorStopSkipsPendingJobs(t *testing.T) {
	q := NewQueueProcessor(zap.NewNop().Sugar())
	queue := make(chan *job.Job, 8)

	started := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var handled []string
	handler := func(j *job.Job) {
		mu.Lock()
		handled = append(handled, j.Name)
		mu.Unlock()
		if j.Name == "slow" {
			close(started)
			<-release
		}
	}

	require.NoError(t, q.Start(queue, handler))
	queue <- queueJob("slow")
	waitClosed(t, started, "worker never picked up the job")

	queue <- queueJob("pending")
	q.ScheduleStop()
	close(release)

	require.NoError(t, q.WaitStop())
	mu.Lock()
	assert.Equal(t, []string{"slow"}, handled, "jobs behind the stop flag must not run")
	mu.Unlock()
}

func TestQueueProcessorNotReusable(t *testing.T) {
	q := NewQueueProcessor(zap.NewNop().Sugar())
	queue := make(chan *job.Job, 1)

	require.NoError(t, q.Start(queue, func(*job.Job) {}))
	err := q.Start(queue, func(*job.Job) {})
	assert.ErrorContains(t, err, "already started")

	q.ScheduleStop()
	require.NoError(t, q.WaitStop())

	err = q.Start(queue, func(*job.Job) {})
	assert.ErrorContains(t, err, "cannot be restarted")
}

func TestQueueProcessorStopIsIdempotent(t *testing.T) {
	q := NewQueueProcessor(zap.NewNop().Sugar())
	require.NoError(t, q.WaitStop(), "waiting on a never-started processor is a no-op")

	queue := make(chan *job.Job, 1)
	require.NoError(t, q.Start(queue, func(*job.Job) {}))
	q.ScheduleStop()
	q.ScheduleStop()
	require.NoError(t, q.WaitStop())
	require.NoError(t, q.WaitStop())
}
