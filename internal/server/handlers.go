// Package server exposes the HTTP surface: the WebSocket upgrade endpoint
// and the health check.
package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

// NewWebSocketHandler returns the upgrade handler. Each accepted connection
// is authenticated, upgraded, wrapped in a Session, and then served by a
// blocking read loop on the handler's own goroutine (one goroutine per
// connection).
func NewWebSocketHandler(hub *Hub, auth Authenticator, cfg Config) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: cfg.HandshakeTimeout,
		CheckOrigin:      newOriginPolicy(cfg.AllowedOrigins).check,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		username, err := auth.Authenticate(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed for %s: %v", username, err)
			return
		}

		NewSession(conn, hub, username, cfg).Run()
	}
}

// NewHealthHandler returns a plain-text health check that also reports how
// many users are currently online.
func NewHealthHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprintf(w, "BeKord gateway is running! %d users online", hub.OnlineCount())
	}
}
