package monitor

import (
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/warden/agent/job"
	"github.com/teranos/warden/errors"
)

type fakeLiveness struct {
	mu    sync.Mutex
	alive bool
	err   error
}

func (f *fakeLiveness) check(int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive, f.err
}

func (f *fakeLiveness) set(alive bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive = alive
	f.err = err
}

func newTestMonitor(t *testing.T, liveness *fakeLiveness) (*ProcessMonitor, chan uuid.UUID) {
	t.Helper()
	exits := make(chan uuid.UUID, 4)
	m := New(10*time.Millisecond, func(id uuid.UUID) { exits <- id }, zap.NewNop().Sugar())
	m.alive = liveness.check
	t.Cleanup(m.Stop)
	return m, exits
}

func TestMonitorDetectsProcessExit(t *testing.T) {
	liveness := &fakeLiveness{alive: true}
	m, exits := newTestMonitor(t, liveness)

	j := job.NewExternal(4242, job.Options{Name: "tensorboard"})
	require.NoError(t, m.Watch(j))
	assert.Equal(t, 1, m.Watched())

	// Stays quiet while the process is up.
	select {
	case id := <-exits:
		t.Fatalf("unexpected exit for %s", id)
	case <-time.After(50 * time.Millisecond):
	}

	liveness.set(false, nil)
	select {
	case id := <-exits:
		assert.Equal(t, j.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("process exit never reported")
	}
	assert.Equal(t, 0, m.Watched())
}

func TestMonitorSkipsProcessedJob(t *testing.T) {
	liveness := &fakeLiveness{alive: true}
	m, _ := newTestMonitor(t, liveness)

	j := job.NewExternal(4242, job.Options{})
	j.SetStatus(job.StatusFinished)

	require.NoError(t, m.Watch(j))
	assert.Equal(t, 0, m.Watched())
}

type stubExec struct{}

func (stubExec) LaunchAndWait() (int, error) { return 0, nil }
func (stubExec) Terminate() error            { return nil }
func (stubExec) Pid() int                    { return 0 }
func (stubExec) OutputPath() string          { return "" }
func (stubExec) StdoutPath() string          { return "" }
func (stubExec) StderrPath() string          { return "" }
func (stubExec) String() string              { return "stub" }

func TestMonitorRejectsNonExternal(t *testing.T) {
	liveness := &fakeLiveness{alive: true}
	m, _ := newTestMonitor(t, liveness)

	j := job.New(stubExec{}, 1, job.Options{Name: "launched"})
	err := m.Watch(j)
	assert.True(t, errors.IsInvalidRequestError(err))
	assert.Equal(t, 0, m.Watched())
}

func TestMonitorRejectsDuplicateWatch(t *testing.T) {
	liveness := &fakeLiveness{alive: true}
	m, _ := newTestMonitor(t, liveness)

	j := job.NewExternal(4242, job.Options{})
	require.NoError(t, m.Watch(j))
	err := m.Watch(j)
	assert.True(t, errors.IsInvalidRequestError(err))
	assert.Equal(t, 1, m.Watched())
}

func TestMonitorUnwatchStopsPolling(t *testing.T) {
	liveness := &fakeLiveness{alive: true}
	m, exits := newTestMonitor(t, liveness)

	j := job.NewExternal(4242, job.Options{})
	require.NoError(t, m.Watch(j))

	m.Unwatch(j.ID)
	assert.Equal(t, 0, m.Watched())

	liveness.set(false, nil)
	select {
	case id := <-exits:
		t.Fatalf("exit reported after unwatch for %s", id)
	case <-time.After(100 * time.Millisecond):
	}

	// Unknown ids are a no-op.
	m.Unwatch(uuid.New())
}

func TestMonitorLivenessErrorIsRetried(t *testing.T) {
	liveness := &fakeLiveness{alive: true, err: errors.New("proc unreadable")}
	m, exits := newTestMonitor(t, liveness)

	j := job.NewExternal(4242, job.Options{})
	require.NoError(t, m.Watch(j))

	// Errors keep the watch alive; the next clean check still catches the
	// exit.
	time.Sleep(50 * time.Millisecond)
	liveness.set(false, nil)

	select {
	case id := <-exits:
		assert.Equal(t, j.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("process exit never reported")
	}
}

func TestMonitorStopCancelsAll(t *testing.T) {
	liveness := &fakeLiveness{alive: true}
	m, exits := newTestMonitor(t, liveness)

	require.NoError(t, m.Watch(job.NewExternal(1001, job.Options{})))
	require.NoError(t, m.Watch(job.NewExternal(1002, job.Options{})))
	assert.Equal(t, 2, m.Watched())

	m.Stop()
	assert.Equal(t, 0, m.Watched())

	liveness.set(false, nil)
	select {
	case id := <-exits:
		t.Fatalf("exit reported after stop for %s", id)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSampleProcessSelf(t *testing.T) {
	s, err := SampleProcess(os.Getpid())
	require.NoError(t, err)
	assert.NotZero(t, s.RSSBytes)
}

func TestSampleProcessUnknown(t *testing.T) {
	_, err := SampleProcess(math.MaxInt32)
	assert.Error(t, err)
}
