package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teranos/warden/agent/scheduler"
	"github.com/teranos/warden/logger"
	"github.com/teranos/warden/version"
)

// WebSocket timeout constants following Gorilla best practices
// See: https://github.com/gorilla/websocket/blob/master/examples/chat/client.go
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer. The event stream is one-way;
	// clients only send control traffic.
	maxMessageSize = 512

	// Per-client event buffer; a client this far behind starts dropping
	// events instead of blocking the broadcaster
	clientSendBuffer = 256
)

// Client represents one WebSocket subscriber to the job event stream
type Client struct {
	server    *Server
	conn      *websocket.Conn
	send      chan scheduler.Event
	id        string
	closeOnce sync.Once
}

// close safely closes the client's send channel using sync.Once to prevent
// double-close panics
func (c *Client) close() {
	c.closeOnce.Do(func() {
		if c.send != nil {
			close(c.send)
		}
	})
}

// readPump drains the connection so control frames are processed and closure
// is detected. Inbound payloads are discarded; the stream is one-way.
func (c *Client) readPump() {
	defer func() {
		c.server.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c.server.logger.Debugw("Read pump started", logger.FieldClientID, c.id)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				c.server.logger.Warnw("WebSocket read error",
					logger.FieldClientID, c.id,
					logger.FieldError, err)
			}
			break
		}
	}
}

// writePump writes job events to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	c.server.logger.Debugw("Write pump started", logger.FieldClientID, c.id)

	for {
		select {
		case <-c.server.ctx.Done():
			c.server.logger.Debugw("Write pump stopping due to server shutdown",
				logger.FieldClientID, c.id)
			return
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(ev); err != nil {
				c.server.logger.Warnw("Event write error",
					logger.FieldClientID, c.id,
					logger.FieldError, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// getUpgrader creates a WebSocket upgrader with origin checking
func (s *Server) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  2048,
		WriteBufferSize: 2048,
		CheckOrigin:     s.checkOrigin,
	}
}

// HandleWebSocket upgrades the connection and attaches it to the job event
// stream
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := s.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("WebSocket upgrade failed", logger.FieldError, err)
		return
	}

	client := &Client{
		server: s,
		conn:   conn,
		send:   make(chan scheduler.Event, clientSendBuffer),
		id:     fmt.Sprintf("%s_%d", r.RemoteAddr, time.Now().UnixNano()),
	}

	// Register before the hello so no event published during the handshake
	// is missed. Buffered events still reach the wire after the hello,
	// because only writePump writes them and it starts last.
	s.register <- client

	// Send version info BEFORE starting writePump (avoid concurrent writes)
	versionInfo := version.Get()
	versionMsg := map[string]interface{}{
		"type":    "hello",
		"version": versionInfo.Version,
		"commit":  versionInfo.Short(),
	}
	if err := conn.WriteJSON(versionMsg); err != nil {
		s.logger.Debugw("Failed to send version info",
			logger.FieldClientID, client.id,
			logger.FieldError, err)
	}

	// Start goroutines for reading and writing
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		client.readPump()
	}()
	go func() {
		defer s.wg.Done()
		client.writePump()
	}()
}

// startEventBroadcaster subscribes to the scheduler's event feed and fans
// every event out to connected clients until the server shuts down.
func (s *Server) startEventBroadcaster() {
	subID, events := s.scheduler.Subscribe()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.scheduler.Unsubscribe(subID)

		for {
			select {
			case <-s.ctx.Done():
				s.logger.Debugw("Event broadcaster stopping due to server shutdown")
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				s.broadcastEvent(ev)
			}
		}
	}()
}

// broadcastEvent delivers one event to every connected client. Sends are
// non-blocking: a client whose buffer is full misses the event rather than
// stalling the broadcaster. The read lock is held across the fanout so an
// unregistering client cannot close its channel mid-send; unregister closes
// under the write lock.
func (s *Server) broadcastEvent(ev scheduler.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for client := range s.clients {
		select {
		case client.send <- ev:
		default:
			s.broadcastDrops.Add(1)
			s.logger.Debugw("Dropping event for slow client",
				logger.FieldClientID, client.id,
				"total_drops", s.broadcastDrops.Load())
		}
	}
}
