// Package testhelpers provides shared utilities for the gateway's
// integration tests: spinning up a test server, dialing authenticated
// WebSocket connections, and reading typed events with deadlines.
package testhelpers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bekord/bekord-server/internal/server"
)

// IdentityHeader is the trusted proxy header the test gateway is wired with.
const IdentityHeader = "X-Bekord-User"

// TestOrigin is the origin the test gateway allows.
const TestOrigin = "http://localhost:8080"

// StartGateway starts a gateway over httptest with default config and a
// header authenticator. The server is closed automatically when the test
// finishes; the hub is returned for direct fan-out and shutdown calls.
func StartGateway(t *testing.T) (*httptest.Server, *server.Hub) {
	t.Helper()

	cfg := server.DefaultConfig()
	cfg.AllowedOrigins = []string{TestOrigin}

	hub := server.NewHub()
	auth := server.HeaderAuthenticator(IdentityHeader)
	ts := httptest.NewServer(server.SetupRoutes(hub, auth, cfg))
	t.Cleanup(ts.Close)

	return ts, hub
}

// WSURL converts an httptest server URL to its WebSocket endpoint.
func WSURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

// Dial connects to the gateway as the given user. The connection is closed
// automatically when the test finishes.
func Dial(t *testing.T, ts *httptest.Server, username string) *websocket.Conn {
	t.Helper()

	conn, err := DialRaw(ts, username, TestOrigin)
	if err != nil {
		t.Fatalf("Dialing as %s: %v", username, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// DialRaw connects with explicit identity and origin headers, returning the
// dial error for tests that expect rejection. An empty username omits the
// identity header.
func DialRaw(ts *httptest.Server, username, origin string) (*websocket.Conn, error) {
	headers := http.Header{}
	if username != "" {
		headers.Set(IdentityHeader, username)
	}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(WSURL(ts), headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// SendJSON writes one JSON frame to the connection.
func SendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("Writing frame: %v", err)
	}
}

// frames holds one reader goroutine per connection. Reads must go through a
// goroutine rather than SetReadDeadline because gorilla/websocket treats any
// read error — including an expired deadline — as permanent, which would make
// the connection unreadable after an ExpectNoEvent window.
var frames sync.Map // *websocket.Conn -> chan frameResult

type frameResult struct {
	data []byte
	err  error
}

func frameChan(conn *websocket.Conn) chan frameResult {
	ch, loaded := frames.LoadOrStore(conn, make(chan frameResult, 64))
	c := ch.(chan frameResult)
	if !loaded {
		go func() {
			for {
				_, data, err := conn.ReadMessage()
				c <- frameResult{data, err}
				if err != nil {
					close(c)
					return
				}
			}
		}()
	}
	return c
}

// ReadEvent reads the next frame within the deadline and decodes it.
func ReadEvent(conn *websocket.Conn, timeout time.Duration) (map[string]any, error) {
	select {
	case res, ok := <-frameChan(conn):
		if !ok {
			return nil, errors.New("read event: connection closed")
		}
		if res.err != nil {
			return nil, res.err
		}
		var ev map[string]any
		if err := json.Unmarshal(res.data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case <-time.After(timeout):
		return nil, errors.New("read event: " + os.ErrDeadlineExceeded.Error())
	}
}

// WaitForEvent reads frames until one with the given type arrives, failing
// the test if none shows up within two seconds. Frames of other types are
// discarded, which keeps tests robust against interleaved presence events.
func WaitForEvent(t *testing.T, conn *websocket.Conn, eventType string) map[string]any {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ev, err := ReadEvent(conn, time.Until(deadline))
		if err != nil {
			t.Fatalf("Waiting for %q event: %v", eventType, err)
		}
		if ev["type"] == eventType {
			return ev
		}
	}
	t.Fatalf("Timed out waiting for %q event", eventType)
	return nil
}

// ExpectNoEvent asserts that no frame of the given type arrives within the
// window. Other frames are tolerated.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, eventType string, window time.Duration) {
	t.Helper()

	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		ev, err := ReadEvent(conn, time.Until(deadline))
		if err != nil {
			return // deadline reached with nothing unexpected
		}
		if ev["type"] == eventType {
			t.Fatalf("Received unexpected %q event: %v", eventType, ev)
		}
	}
}
