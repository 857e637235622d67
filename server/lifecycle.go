package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/teranos/warden/errors"
	"github.com/teranos/warden/logger"
)

// Start binds the localhost port and serves until Stop is called. The bind
// is the singleton guard: a second daemon fails here instead of racing the
// first. Blocks for the server's lifetime and returns nil after a clean
// shutdown.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.WithHint(
			errors.Wrapf(err, "failed to bind %s", addr),
			"another warden instance may already be running; check 'warden status'")
	}

	s.startedAt = time.Now()

	// Start the hub and the event broadcaster before accepting connections
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run()
	}()
	s.startEventBroadcaster()

	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.AddOpenSymbol(s.logger).Infow("Server listening",
		logger.FieldAddress, addr,
		logger.FieldPort, port)

	if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serve")
	}
	return nil
}

// Stop gracefully shuts down the server and cleans up resources: stop
// accepting requests, drain the scheduler and the process monitor, close
// client connections, then wait for the goroutines.
func (s *Server) Stop() error {
	logger.AddCloseSymbol(s.logger).Infow("Initiating server shutdown")
	s.setState(ServerStateDraining)

	// Stop accepting new requests first. WebSocket connections are hijacked
	// and not covered by Shutdown; they are closed below.
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Warnw("HTTP shutdown incomplete", logger.FieldError, err)
		}
	}

	// Drain the scheduler before tearing down the event stream so terminal
	// events still reach connected clients.
	s.scheduler.Stop()
	if s.procmon != nil {
		s.procmon.Stop()
	}

	// Close all client connections BEFORE cancelling context. This ensures
	// readPump exits cleanly before context cancellation stops writePump.
	s.mu.Lock()
	clientsToClose := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clientsToClose = append(clientsToClose, client)
		delete(s.clients, client)
	}
	s.mu.Unlock()

	if len(clientsToClose) > 0 {
		s.logger.Infow("Closing client connections", logger.FieldCount, len(clientsToClose))
		for _, client := range clientsToClose {
			client.conn.Close()
		}
	}

	// Cancel context to signal the hub, broadcaster, and write pumps to stop
	if s.cancel != nil {
		s.cancel()
	}

	// Wait for goroutines with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Infow("All goroutines stopped cleanly")
	case <-time.After(ShutdownTimeout):
		s.logger.Warnw("Goroutine shutdown timed out, forcing exit",
			"timeout", ShutdownTimeout)
	}

	s.setState(ServerStateStopped)
	s.logger.Infow("Server shutdown complete",
		"broadcast_drops", s.broadcastDrops.Load())

	return nil
}
