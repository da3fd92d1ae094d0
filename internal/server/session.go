// Package server manages individual WebSocket sessions: one blocking read
// loop per connection, mutex-serialized outbound writes, keepalive pings,
// and lifecycle cleanup.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// wsConn is the subset of *websocket.Conn the session touches. Narrowing the
// dependency keeps the transport swappable in tests.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// Session is one live connection belonging to one user. The session owns its
// transport handle exclusively; every outbound write goes through the
// session's private write mutex, so concurrent fan-out callers serialize per
// session but never block each other across sessions. Once the closed flag
// is set (under that same mutex), Send becomes a guaranteed no-op.
type Session struct {
	id           string
	username     string
	conn         wsConn
	hub          *Hub
	limiter      *rateLimiter
	idleTimeout  time.Duration
	writeTimeout time.Duration
	pingInterval time.Duration

	writeMu sync.Mutex
	closed  bool
}

// NewSession wraps an accepted connection for the given, already
// authenticated, username. The session is not registered with the hub until
// Run is called.
func NewSession(conn wsConn, hub *Hub, username string, cfg Config) *Session {
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	return &Session{
		id:           uuid.NewString(),
		username:     username,
		conn:         conn,
		hub:          hub,
		limiter:      newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		idleTimeout:  cfg.IdleTimeout,
		writeTimeout: cfg.WriteTimeout,
		pingInterval: cfg.pingInterval(),
	}
}

// ID returns the session's unique identifier, used for log correlation when
// one user holds several connections.
func (s *Session) ID() string { return s.id }

// Username returns the identity bound to this session at registration.
func (s *Session) Username() string { return s.username }

// Send serializes the event and writes it to the connection. Safe to call
// from any goroutine; a write failure is logged and swallowed so that a slow
// or broken recipient can never abort a caller's broadcast loop.
func (s *Session) Send(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling event for %s: %v", s.username, err)
		return
	}
	s.sendPayload(payload)
}

func (s *Session) sendPayload(payload []byte) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		log.Printf("Error setting write deadline for %s: %v", s.username, err)
		return
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Send error for %s (session %s): %v", s.username, s.id, err)
		}
	}
}

// Close marks the session closed and shuts the transport down. Idempotent;
// the closed flag is flipped under the write mutex so that Close never races
// a concurrent Send mid-write.
func (s *Session) Close() {
	s.writeMu.Lock()
	if s.closed {
		s.writeMu.Unlock()
		return
	}
	s.closed = true
	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing close message to %s: %v", s.username, err)
		}
	}
	s.writeMu.Unlock()

	if err := s.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error closing connection for %s: %v", s.username, err)
		}
	}
}

// Run registers the session with the hub, emits presence and welcome events,
// and then blocks in the read loop until the connection terminates. Cleanup
// runs on every exit path: the session is closed, unregistered exactly once,
// and a user_offline event is broadcast when this was the user's last
// session.
func (s *Session) Run() {
	done := s.hub.track()
	defer done()

	defer func() {
		s.Close()
		if s.hub.Unregister(s.username, s) {
			s.hub.Broadcast(newPresenceEvent(TypeUserOffline, s.username))
			log.Printf("Broadcasting user_offline: %s", s.username)
		}
	}()

	s.setupReadDeadlines()

	stopKeepalive := make(chan struct{})
	defer close(stopKeepalive)
	go s.keepalive(stopKeepalive)

	if s.hub.Register(s.username, s) {
		s.hub.Broadcast(newPresenceEvent(TypeUserOnline, s.username))
		log.Printf("Broadcasting user_online: %s", s.username)
	}
	s.Send(newConnectedEvent(s.username))

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.logReadError(err)
			return
		}
		if s.limiter != nil && !s.limiter.allow() {
			log.Printf("Rate limit exceeded for %s; discarding message", s.username)
			continue
		}
		s.handleMessage(raw)
	}
}

// setupReadDeadlines arms the idle timeout and extends it on every pong, so
// a dead peer surfaces as a read error in the loop.
func (s *Session) setupReadDeadlines() {
	if err := s.conn.SetReadDeadline(time.Now().Add(s.idleTimeout)); err != nil {
		log.Printf("Error setting initial read deadline for %s: %v", s.username, err)
	}
	s.conn.SetPongHandler(func(string) error {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.idleTimeout)); err != nil {
			log.Printf("Error setting read deadline in pong handler for %s: %v", s.username, err)
		}
		return nil
	})
}

// keepalive pings the peer on a ticker until the session closes or a ping
// write fails.
func (s *Session) keepalive(stop <-chan struct{}) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !s.ping() {
				return
			}
		}
	}
}

func (s *Session) ping() bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return false
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return false
	}
	if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing ping to %s: %v", s.username, err)
		}
		return false
	}
	return true
}

// logReadError classifies the error that terminated the read loop. Every
// variant means the same thing for the session (it closes); the distinction
// only affects log noise.
func (s *Session) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Printf("Message from %s exceeded the read limit", s.username)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		log.Printf("Client closed connection: %s", s.username)
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		log.Printf("Connection closed: %s", s.username)
	default:
		log.Printf("Read error for %s: %v", s.username, err)
	}
}
