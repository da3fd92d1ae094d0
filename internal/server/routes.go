// Package server wires HTTP handlers into a ServeMux for the gateway.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all gateway
// routes: the health check and the WebSocket endpoint.
func SetupRoutes(hub *Hub, auth Authenticator, cfg Config) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", NewHealthHandler(hub))
	mux.HandleFunc("/ws", NewWebSocketHandler(hub, auth, cfg))
	return mux
}
