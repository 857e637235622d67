package client

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/warden/agent/job"
	"github.com/teranos/warden/agent/scheduler"
	"github.com/teranos/warden/agent/store"
	"github.com/teranos/warden/errors"
	wardentest "github.com/teranos/warden/internal/testing"
	"github.com/teranos/warden/server"
)

func freePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()
	return port
}

// startDaemon serves srv on an ephemeral port and returns a client pointed
// at it. The scheduler's worker is never started, so submissions stay
// queued and no process is launched.
func startDaemon(t *testing.T, srv *server.Server) *Client {
	t.Helper()
	port := freePort(t)
	go srv.Start(port)
	t.Cleanup(func() { srv.Stop() })

	c := New(Options{Port: port, Timeout: 5 * time.Second})
	require.Eventually(t, func() bool {
		_, err := c.Status(context.Background())
		return err == nil
	}, 5*time.Second, 20*time.Millisecond, "daemon never came up")
	return c
}

func newDaemon(t *testing.T) *Client {
	t.Helper()
	sched := scheduler.New(nil, nil, zap.NewNop().Sugar())
	t.Cleanup(sched.Stop)
	return startDaemon(t, server.New(sched, server.Options{Logger: zap.NewNop().Sugar()}))
}

func TestSubmitAndList(t *testing.T) {
	c := newDaemon(t)
	ctx := context.Background()

	snap, err := c.Submit(ctx, server.SubmitRequest{Args: []string{"sleep", "60"}, Name: "trainer"})
	require.NoError(t, err)
	assert.Equal(t, "trainer", snap.Name)
	assert.Equal(t, 1, snap.Number)
	assert.Equal(t, job.StatusQueued, snap.Status)

	list, err := c.Jobs(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, snap.ID, list.Jobs[0].ID)
}

func TestFind(t *testing.T) {
	c := newDaemon(t)
	ctx := context.Background()

	snap, err := c.Submit(ctx, server.SubmitRequest{Args: []string{"sleep", "60"}, Name: "trainer"})
	require.NoError(t, err)

	id, err := c.Find(ctx, "trainer")
	require.NoError(t, err)
	assert.Equal(t, snap.ID, id)

	_, err = c.Find(ctx, "no-such-job")
	assert.True(t, errors.Is(err, errors.ErrJobNotFound), "unexpected error: %v", err)
}

func TestCancel(t *testing.T) {
	c := newDaemon(t)
	ctx := context.Background()

	snap, err := c.Submit(ctx, server.SubmitRequest{Args: []string{"sleep", "60"}, Name: "trainer"})
	require.NoError(t, err)

	cancelled, err := c.Cancel(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCancelledByUser, cancelled.Status)
}

func TestJobDetailErrors(t *testing.T) {
	c := newDaemon(t)
	ctx := context.Background()

	snap, err := c.Submit(ctx, server.SubmitRequest{Args: []string{"sleep", "60"}, Name: "trainer"})
	require.NoError(t, err)

	detail, err := c.Job(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, "trainer", detail.Job.Name)
	assert.Nil(t, detail.Process)

	_, err = c.Job(ctx, uuid.NewString())
	assert.True(t, errors.Is(err, errors.ErrJobNotFound), "unexpected error: %v", err)

	_, err = c.Job(ctx, "not-a-uuid")
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "unexpected error: %v", err)
}

func TestOutputTail(t *testing.T) {
	c := newDaemon(t)
	ctx := context.Background()
	outDir := t.TempDir()

	snap, err := c.Submit(ctx, server.SubmitRequest{
		Args:       []string{"sleep", "60"},
		Name:       "writer",
		OutputPath: outDir,
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(outDir, job.StdoutFileName), []byte("one\ntwo\nthree\n"), 0644))

	out, err := c.Output(ctx, snap.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"two", "three"}, out.Stdout)
	assert.Equal(t, filepath.Join(outDir, job.StdoutFileName), out.StdoutPath)
}

func TestExternalReportUpdates(t *testing.T) {
	c := newDaemon(t)
	ctx := context.Background()

	snap, err := c.RegisterExternal(ctx, server.ExternalRequest{
		Pid:                 4242,
		Name:                "notebook",
		PollIntervalSeconds: -1,
	})
	require.NoError(t, err)
	assert.True(t, snap.External)
	assert.Equal(t, job.StatusRunning, snap.Status)

	require.NoError(t, c.Report(ctx, 4242, "loss", 0.5))

	updates, err := c.Updates(ctx, snap.ID, []string{"loss"}, false, false)
	require.NoError(t, err)
	require.Len(t, updates.Updates["loss"], 1)
	assert.Equal(t, 0.5, updates.Updates["loss"][0].Value)

	require.NoError(t, c.AddCondition(ctx, server.ConditionRequest{Pid: 4242, Expr: "loss < 0.1"}))
	err = c.AddCondition(ctx, server.ConditionRequest{Pid: 4242, Expr: "loss <"})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "unexpected error: %v", err)

	require.NoError(t, c.UnregisterExternal(ctx, snap.ID))
	err = c.UnregisterExternal(ctx, snap.ID)
	assert.True(t, errors.Is(err, errors.ErrJobNotFound), "unexpected error: %v", err)
}

func TestAuditJobs(t *testing.T) {
	st := store.New(wardentest.CreateMigratedTestDB(t), zap.NewNop().Sugar())
	sched := scheduler.New(nil, st, zap.NewNop().Sugar())
	t.Cleanup(sched.Stop)
	c := startDaemon(t, server.New(sched, server.Options{Store: st, Logger: zap.NewNop().Sugar()}))
	ctx := context.Background()

	_, err := c.Submit(ctx, server.SubmitRequest{Args: []string{"sleep", "60"}, Name: "first"})
	require.NoError(t, err)
	_, err = c.Submit(ctx, server.SubmitRequest{Args: []string{"sleep", "60"}, Name: "second"})
	require.NoError(t, err)

	audit, err := c.AuditJobs(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 2, audit.Count)
	assert.Equal(t, "second", audit.Jobs[0].Name, "audit trail should list newest first")

	audit, err = c.AuditJobs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, audit.Count)
}

func TestNotificationsEmpty(t *testing.T) {
	c := newDaemon(t)
	ctx := context.Background()

	snap, err := c.Submit(ctx, server.SubmitRequest{Args: []string{"sleep", "60"}, Name: "quiet"})
	require.NoError(t, err)

	resp, err := c.Notifications(ctx, snap.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Count)
}

func TestStatusAndStop(t *testing.T) {
	sched := scheduler.New(nil, nil, zap.NewNop().Sugar())
	t.Cleanup(sched.Stop)
	srv := server.New(sched, server.Options{Logger: zap.NewNop().Sugar()})
	c := startDaemon(t, srv)
	ctx := context.Background()

	status, err := c.Status(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, status.Version)
	assert.Equal(t, "running", status.State)

	require.NoError(t, c.Stop(ctx))
	select {
	case <-srv.StopRequested():
	case <-time.After(time.Second):
		t.Fatal("stop request never reached the server")
	}
}

func TestAgentNotRunning(t *testing.T) {
	c := New(Options{Port: freePort(t), Timeout: time.Second})

	_, err := c.Jobs(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAgentNotRunning), "unexpected error: %v", err)
}

func TestWatch(t *testing.T) {
	c := newDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hello, events, err := c.Watch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", hello.Type)
	assert.NotEmpty(t, hello.Version)

	snap, err := c.Submit(ctx, server.SubmitRequest{Args: []string{"sleep", "60"}, Name: "watched"})
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, scheduler.EventSubmitted, ev.Type)
		assert.Equal(t, snap.ID, ev.Job.ID)
		assert.Equal(t, "watched", ev.Job.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("no event arrived on the stream")
	}

	cancel()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event stream never closed after cancel")
		}
	}
}
