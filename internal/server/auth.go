// Package server defines the boundary to the out-of-process authentication
// layer. The gateway never verifies credentials or session tokens itself; it
// only consumes an already-verified identity for each new connection.
package server

import (
	"errors"
	"net/http"
)

// ErrUnauthenticated is returned by an Authenticator when no verified
// identity can be established for the request.
var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator resolves an upgrade request to the verified username that
// will own the connection. Implementations typically validate a session
// cookie against the account service.
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

// AuthenticatorFunc adapts a plain function to the Authenticator interface.
type AuthenticatorFunc func(r *http.Request) (string, error)

// Authenticate calls f.
func (f AuthenticatorFunc) Authenticate(r *http.Request) (string, error) {
	return f(r)
}

// HeaderAuthenticator trusts an identity header injected by an upstream
// reverse proxy that has already validated the client's session. The proxy
// must strip the header from client-supplied traffic; this authenticator
// performs no verification of its own.
func HeaderAuthenticator(header string) Authenticator {
	return AuthenticatorFunc(func(r *http.Request) (string, error) {
		username := r.Header.Get(header)
		if username == "" {
			return "", ErrUnauthenticated
		}
		return username, nil
	})
}
