// Package server is the warden daemon's RPC boundary: a localhost HTTP API
// over the scheduler plus a WebSocket event stream. One server runs per
// agent process and owns the listening socket; a second instance fails at
// bind time rather than racing the first.
package server

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/warden/agent/monitor"
	"github.com/teranos/warden/agent/scheduler"
	"github.com/teranos/warden/agent/store"
	"github.com/teranos/warden/logger"
)

const (
	// MaxClients is the maximum number of concurrent WebSocket clients
	MaxClients = 100

	// ShutdownTimeout is how long to wait for goroutines during graceful
	// shutdown
	ShutdownTimeout = 10 * time.Second
)

// ServerState represents the server lifecycle state
type ServerState int32

const (
	ServerStateRunning  ServerState = iota // Normal operation
	ServerStateDraining                    // Graceful shutdown in progress
	ServerStateStopped                     // Shutdown complete
)

// Server exposes the agent over localhost HTTP. The scheduler is required;
// store and procmon may be nil, which disables the audit read paths and the
// live process stats respectively.
type Server struct {
	scheduler *scheduler.Scheduler
	store     *store.Store
	procmon   *monitor.ProcessMonitor
	logger    *zap.SugaredLogger

	mux        *http.ServeMux
	httpServer *http.Server

	allowedOrigins []string

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	// Lifecycle management
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	state          atomic.Int32
	broadcastDrops atomic.Int64
	startedAt      time.Time

	stopOnce    sync.Once
	stopRequest chan struct{}
}

// Options tunes server construction. The zero value is valid.
type Options struct {
	Store          *store.Store            // audit read endpoints; nil disables them
	Monitor        *monitor.ProcessMonitor // live cpu/rss in job detail; nil disables
	AllowedOrigins []string                // ws origin allowlist beyond localhost
	Logger         *zap.SugaredLogger      // nil uses the server component logger
}

// New builds a server around the scheduler. Routes are registered on a
// server-owned mux so multiple servers (tests, restarts) never contend over
// process-global route state.
func New(sched *scheduler.Scheduler, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.ComponentLogger("server")
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		scheduler:      sched,
		store:          opts.Store,
		procmon:        opts.Monitor,
		logger:         log,
		mux:            http.NewServeMux(),
		allowedOrigins: opts.AllowedOrigins,
		clients:        make(map[*Client]bool),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		ctx:            ctx,
		cancel:         cancel,
		stopRequest:    make(chan struct{}),
	}
	s.setupHTTPRoutes()
	return s
}

// StopRequested is closed when a client asks the daemon to shut down via the
// API. The process owner (cmd/warden start) selects on it next to its signal
// channel and drives Stop.
func (s *Server) StopRequested() <-chan struct{} {
	return s.stopRequest
}

// requestStop closes the stop channel exactly once.
func (s *Server) requestStop() {
	s.stopOnce.Do(func() {
		close(s.stopRequest)
	})
}

// getState returns the current server state
func (s *Server) getState() ServerState {
	return ServerState(s.state.Load())
}

// setState atomically updates the server state
func (s *Server) setState(newState ServerState) {
	s.state.Store(int32(newState))
	s.logger.Infow("Server state changed", logger.FieldState, stateString(newState))
}

// stateString returns human-readable state name
func stateString(state ServerState) string {
	switch state {
	case ServerStateRunning:
		return "running"
	case ServerStateDraining:
		return "draining"
	case ServerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// handleClientRegister handles a new client connection
func (s *Server) handleClientRegister(client *Client) {
	s.mu.Lock()

	if len(s.clients) >= MaxClients {
		s.mu.Unlock()
		s.logger.Warnw("Max clients reached, rejecting connection",
			logger.FieldClientID, client.id,
			"max_clients", MaxClients)
		client.close()
		return
	}

	s.clients[client] = true
	totalClients := len(s.clients)
	s.mu.Unlock()

	s.logger.Infow("Client connected",
		logger.FieldClientID, client.id,
		"total_clients", totalClients)
}

// handleClientUnregister handles a client disconnection. The send channel is
// closed while the write lock is held: the broadcaster fans out under the
// read lock, so this ordering keeps it from sending on a closed channel.
func (s *Server) handleClientUnregister(client *Client) {
	s.mu.Lock()
	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		totalClients := len(s.clients)
		client.close()
		s.mu.Unlock()

		s.logger.Infow("Client disconnected",
			logger.FieldClientID, client.id,
			"total_clients", totalClients)
	} else {
		s.mu.Unlock()
	}
}

// clientCount returns the number of connected WebSocket clients.
func (s *Server) clientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Run is the hub event loop: it serializes client registration and
// disconnection until the server context is cancelled.
func (s *Server) Run() {
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debugw("Server hub stopping due to context cancellation")
			return
		case client := <-s.register:
			s.handleClientRegister(client)
		case client := <-s.unregister:
			s.handleClientUnregister(client)
		}
	}
}
