package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/teranos/warden/agent/job"
	"github.com/teranos/warden/agent/scheduler"
)

// newTestServer builds a server around a quiet scheduler. The queue worker
// is never started, so submitted jobs stay QUEUED and handler assertions
// are deterministic.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	sched := scheduler.New(nil, nil, zap.NewNop().Sugar())
	t.Cleanup(sched.Stop)
	return New(sched, Options{Logger: zap.NewNop().Sugar()})
}

// stubExec is an inert executable for jobs that must never run.
type stubExec struct{ pid int }

func (e stubExec) LaunchAndWait() (int, error) { return 0, nil }
func (e stubExec) Terminate() error            { return nil }
func (e stubExec) Pid() int                    { return e.pid }
func (e stubExec) OutputPath() string          { return "" }
func (e stubExec) StdoutPath() string          { return "" }
func (e stubExec) StderrPath() string          { return "" }
func (e stubExec) String() string              { return "stub command" }

// queuedJob submits a job that will sit in the queue for the whole test.
func queuedJob(t *testing.T, srv *Server, name string, number int) *job.Job {
	t.Helper()
	j := job.New(stubExec{}, number, job.Options{Name: name, PollInterval: -1})
	if err := srv.scheduler.SubmitJob(j); err != nil {
		t.Fatalf("Failed to submit job: %v", err)
	}
	return j
}

// Test basic server creation and initialization
func TestNewServer(t *testing.T) {
	srv := newTestServer(t)

	if srv.scheduler == nil {
		t.Error("Server scheduler not set")
	}

	if srv.clients == nil {
		t.Error("Server clients map not initialized")
	}

	if srv.register == nil || srv.unregister == nil {
		t.Error("Server hub channels not initialized")
	}

	if srv.mux == nil {
		t.Error("Server mux not initialized")
	}

	if srv.stopRequest == nil {
		t.Error("Server stop request channel not initialized")
	}

	if srv.store != nil {
		t.Error("Server store should be nil when not configured")
	}

	if got := srv.getState(); got != ServerStateRunning {
		t.Errorf("Server state = %v, want %v", got, ServerStateRunning)
	}
}

// Test that the hub goroutine handles client registration
func TestServerHubRegistration(t *testing.T) {
	srv := newTestServer(t)

	// Start hub in background
	go srv.Run()

	// Create a mock client
	client := &Client{
		server: srv,
		send:   make(chan scheduler.Event, 256),
		id:     "test_client_1",
	}

	// Register the client
	srv.register <- client

	// Give hub time to process
	time.Sleep(10 * time.Millisecond)

	// Verify client was registered
	srv.mu.RLock()
	_, exists := srv.clients[client]
	count := len(srv.clients)
	srv.mu.RUnlock()

	if !exists {
		t.Error("Client was not registered")
	}

	if count != 1 {
		t.Errorf("Server should have 1 client, got %d", count)
	}
}

// Test that the hub goroutine handles client unregistration
func TestServerHubUnregistration(t *testing.T) {
	srv := newTestServer(t)

	// Start hub in background
	go srv.Run()

	// Create and register a client
	client := &Client{
		server: srv,
		send:   make(chan scheduler.Event, 256),
		id:     "test_client_unreg",
	}

	srv.register <- client
	time.Sleep(10 * time.Millisecond)

	// Verify registered
	srv.mu.RLock()
	_, exists := srv.clients[client]
	srv.mu.RUnlock()

	if !exists {
		t.Fatal("Client was not registered")
	}

	// Unregister the client
	srv.unregister <- client
	time.Sleep(10 * time.Millisecond)

	// Verify client was unregistered
	srv.mu.RLock()
	_, exists = srv.clients[client]
	count := len(srv.clients)
	srv.mu.RUnlock()

	if exists {
		t.Error("Client should have been unregistered")
	}

	if count != 0 {
		t.Errorf("Server should have 0 clients, got %d", count)
	}

	// Verify the send channel was closed (reading from a closed channel
	// returns the zero value immediately)
	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("Client send channel should be closed")
		}
	case <-time.After(10 * time.Millisecond):
		t.Error("Client send channel was not closed")
	}
}

// Test concurrent client registration
func TestServerConcurrentRegistration(t *testing.T) {
	srv := newTestServer(t)

	// Start hub
	go srv.Run()

	numClients := 20
	var wg sync.WaitGroup

	// Concurrently register many clients
	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			client := &Client{
				server: srv,
				send:   make(chan scheduler.Event, 256),
				id:     fmt.Sprintf("client_%d", id),
			}
			srv.register <- client
		}(i)
	}

	wg.Wait()

	// Give hub time to process all registrations
	time.Sleep(50 * time.Millisecond)

	// Verify all clients registered
	srv.mu.RLock()
	count := len(srv.clients)
	srv.mu.RUnlock()

	if count != numClients {
		t.Errorf("Expected %d clients, got %d", numClients, count)
	}
}

// Test that registration past the client limit is rejected
func TestServerMaxClientsRejected(t *testing.T) {
	srv := newTestServer(t)

	// Start hub
	go srv.Run()

	// Fill the registry to the limit
	srv.mu.Lock()
	for i := 0; i < MaxClients; i++ {
		filler := &Client{
			server: srv,
			send:   make(chan scheduler.Event, 1),
			id:     fmt.Sprintf("filler_%d", i),
		}
		srv.clients[filler] = true
	}
	srv.mu.Unlock()

	rejected := &Client{
		server: srv,
		send:   make(chan scheduler.Event, 1),
		id:     "one_too_many",
	}
	srv.register <- rejected
	time.Sleep(10 * time.Millisecond)

	srv.mu.RLock()
	_, exists := srv.clients[rejected]
	count := len(srv.clients)
	srv.mu.RUnlock()

	if exists {
		t.Error("Client over the limit should not be registered")
	}

	if count != MaxClients {
		t.Errorf("Expected %d clients, got %d", MaxClients, count)
	}

	// The rejected client's send channel is closed so its write pump exits
	select {
	case _, ok := <-rejected.send:
		if ok {
			t.Error("Rejected client send channel should be closed")
		}
	case <-time.After(10 * time.Millisecond):
		t.Error("Rejected client send channel was not closed")
	}
}

// Test WebSocket upgrade handler
func TestHandleWebSocket(t *testing.T) {
	srv := newTestServer(t)

	// Start hub
	go srv.Run()

	// Create test HTTP server
	testServer := httptest.NewServer(http.HandlerFunc(srv.HandleWebSocket))
	defer testServer.Close()

	// Convert http:// to ws://
	wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http")

	// Connect as WebSocket client
	dialer := websocket.Dialer{}
	conn, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close()

	// The first frame is the hello message with version info
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var hello map[string]interface{}
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("Failed to read hello message: %v", err)
	}
	if hello["type"] != "hello" {
		t.Errorf("First message type = %v, want hello", hello["type"])
	}
	if hello["version"] == "" {
		t.Error("Hello message should carry a version")
	}

	// Give server time to register client
	time.Sleep(50 * time.Millisecond)

	// Verify client was registered
	srv.mu.RLock()
	clientCount := len(srv.clients)
	srv.mu.RUnlock()

	if clientCount != 1 {
		t.Errorf("Expected 1 client after WebSocket connection, got %d", clientCount)
	}

	// Close connection
	conn.Close()

	// Give server time to unregister client
	time.Sleep(50 * time.Millisecond)

	// Verify client was unregistered
	srv.mu.RLock()
	clientCount = len(srv.clients)
	srv.mu.RUnlock()

	if clientCount != 0 {
		t.Errorf("Expected 0 clients after WebSocket disconnect, got %d", clientCount)
	}
}

// Test that a connected WebSocket client receives job lifecycle events
func TestWebSocketReceivesJobEvents(t *testing.T) {
	srv := newTestServer(t)

	// Start hub and event broadcaster
	go srv.Run()
	srv.startEventBroadcaster()

	// Serve the full mux so the /ws route is exercised
	testServer := httptest.NewServer(srv.mux)
	defer testServer.Close()

	wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http") + "/ws"
	dialer := websocket.Dialer{}
	conn, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close()

	// Drain the hello frame
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var hello map[string]interface{}
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("Failed to read hello message: %v", err)
	}

	// Give the hub time to register the client before publishing
	time.Sleep(50 * time.Millisecond)

	j := queuedJob(t, srv, "trainer", 1)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev scheduler.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("Failed to read submit event: %v", err)
	}
	if ev.Type != scheduler.EventSubmitted {
		t.Errorf("Event type = %q, want %q", ev.Type, scheduler.EventSubmitted)
	}
	if ev.Job.ID != j.ID.String() {
		t.Errorf("Event job id = %s, want %s", ev.Job.ID, j.ID)
	}
	if ev.Job.Name != "trainer" {
		t.Errorf("Event job name = %q, want trainer", ev.Job.Name)
	}

	// Cancelling the queued job produces a canceled event
	srv.scheduler.StopJob(j.ID)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("Failed to read cancel event: %v", err)
	}
	if ev.Type != scheduler.EventCanceled {
		t.Errorf("Event type = %q, want %q", ev.Type, scheduler.EventCanceled)
	}
	if ev.Job.Status != job.StatusCancelledByUser {
		t.Errorf("Event job status = %s, want %s", ev.Job.Status, job.StatusCancelledByUser)
	}
}

// Test broadcast fanout to registered clients
func TestBroadcastEventToClients(t *testing.T) {
	srv := newTestServer(t)

	// Start hub
	go srv.Run()

	// Create and register multiple clients
	numClients := 3
	clients := make([]*Client, numClients)
	for i := 0; i < numClients; i++ {
		client := &Client{
			server: srv,
			send:   make(chan scheduler.Event, 256),
			id:     fmt.Sprintf("test_client_%d", i),
		}
		clients[i] = client
		srv.register <- client
	}

	// Wait for registration
	time.Sleep(50 * time.Millisecond)

	ev := scheduler.Event{
		Type: scheduler.EventStarted,
		Job:  job.Snapshot{ID: "job-1", Name: "trainer"},
	}
	srv.broadcastEvent(ev)

	// Verify all clients received the event
	for i, client := range clients {
		select {
		case got := <-client.send:
			if got.Type != scheduler.EventStarted || got.Job.ID != "job-1" {
				t.Errorf("Client %d received incorrect event", i)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("Client %d did not receive broadcast", i)
		}
	}
}

// Test that a slow client misses events instead of stalling the broadcaster
func TestBroadcastDropsEventsForSlowClient(t *testing.T) {
	srv := newTestServer(t)

	// Start hub
	go srv.Run()

	// Create a slow client with tiny buffer
	slowClient := &Client{
		server: srv,
		send:   make(chan scheduler.Event, 1), // Small buffer
		id:     "slow_client",
	}
	srv.register <- slowClient
	time.Sleep(10 * time.Millisecond)

	// Create a normal client
	fastClient := &Client{
		server: srv,
		send:   make(chan scheduler.Event, 256),
		id:     "fast_client",
	}
	srv.register <- fastClient
	time.Sleep(10 * time.Millisecond)

	// Send more events than the slow client can buffer
	numEvents := 5
	for i := 0; i < numEvents; i++ {
		srv.broadcastEvent(scheduler.Event{
			Type:   scheduler.EventScalar,
			Job:    job.Snapshot{ID: "job-1"},
			Scalar: "loss",
			Value:  float64(i),
		})
	}

	// Verify broadcastDrops counter was incremented
	if drops := srv.broadcastDrops.Load(); drops == 0 {
		t.Error("Broadcast drops counter should be > 0")
	}

	// The fast client buffered everything
	if got := len(fastClient.send); got != numEvents {
		t.Errorf("Fast client buffered %d events, want %d", got, numEvents)
	}

	// Dropping events does not disconnect the client; dead peers are
	// detected by the ping/pong cycle instead
	srv.mu.RLock()
	_, slowExists := srv.clients[slowClient]
	_, fastExists := srv.clients[fastClient]
	srv.mu.RUnlock()

	if !slowExists {
		t.Error("Slow client should remain registered")
	}
	if !fastExists {
		t.Error("Fast client should remain registered")
	}
}
