package server

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeConn is an in-memory wsConn. Reads block until a frame or error is
// queued, or until the conn is closed; text writes are recorded for
// inspection.
type fakeConn struct {
	mu       sync.Mutex
	writes   [][]byte
	writeErr error

	reads     chan readFrame
	closed    chan struct{}
	closeOnce sync.Once
}

type readFrame struct {
	messageType int
	data        []byte
	err         error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		reads:  make(chan readFrame, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) queueFrame(data []byte) {
	c.reads <- readFrame{messageType: websocket.TextMessage, data: data}
}

func (c *fakeConn) queueError(err error) {
	c.reads <- readFrame{err: err}
}

func (c *fakeConn) failWrites(err error) {
	c.mu.Lock()
	c.writeErr = err
	c.mu.Unlock()
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case f := <-c.reads:
		return f.messageType, f.data, f.err
	case <-c.closed:
		return 0, nil, errors.New("use of closed network connection")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeErr != nil {
		return c.writeErr
	}
	if messageType == websocket.TextMessage {
		buf := make([]byte, len(data))
		copy(buf, data)
		c.writes = append(c.writes, buf)
	}
	return nil
}

func (c *fakeConn) SetReadLimit(int64) {}

func (c *fakeConn) SetReadDeadline(time.Time) error { return nil }

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// events decodes every text frame written so far.
func (c *fakeConn) events(t *testing.T) []map[string]any {
	t.Helper()

	c.mu.Lock()
	frames := make([][]byte, len(c.writes))
	copy(frames, c.writes)
	c.mu.Unlock()

	decoded := make([]map[string]any, 0, len(frames))
	for _, frame := range frames {
		var ev map[string]any
		if err := json.Unmarshal(frame, &ev); err != nil {
			t.Fatalf("Undecodable frame %q: %v", frame, err)
		}
		decoded = append(decoded, ev)
	}
	return decoded
}

// countEvents returns how many written frames carry the given type.
func (c *fakeConn) countEvents(t *testing.T, eventType string) int {
	t.Helper()

	n := 0
	for _, ev := range c.events(t) {
		if ev["type"] == eventType {
			n++
		}
	}
	return n
}

// countPresence returns how many written frames carry the given type and
// username. Needed because every session also sees its own user_online.
func (c *fakeConn) countPresence(t *testing.T, eventType, username string) int {
	t.Helper()

	n := 0
	for _, ev := range c.events(t) {
		if ev["type"] == eventType && ev["username"] == username {
			n++
		}
	}
	return n
}

// testConfig returns a config with a rate limit generous enough that unit
// tests never trip it.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RateLimit.Burst = 1000
	return cfg
}

// waitFor polls cond until it holds or the deadline expires.
func waitFor(t *testing.T, cond func() bool, desc string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", desc)
}

// addSession constructs a session and registers it without starting a read
// loop, for tests that drive the hub directly.
func addSession(h *Hub, username string) (*Session, *fakeConn) {
	conn := newFakeConn()
	s := NewSession(conn, h, username, testConfig())
	h.Register(username, s)
	return s, conn
}

// startSession runs a full session lifecycle against a fake conn and waits
// until it is registered. Closing the returned conn terminates the loop.
func startSession(t *testing.T, h *Hub, username string) (*Session, *fakeConn) {
	t.Helper()

	conn := newFakeConn()
	s := NewSession(conn, h, username, testConfig())
	go s.Run()

	waitFor(t, func() bool {
		for _, registered := range h.SessionsFor(username) {
			if registered == s {
				return true
			}
		}
		return false
	}, "session to register")

	return s, conn
}
