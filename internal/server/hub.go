// Package server coordinates session registration, presence tracking, topic
// subscriptions, and message fan-out for the BeKord gateway via the Hub type.
package server

import (
	"context"
	"log"
	"sync"
	"time"
)

// Hub is the process-wide connection registry. It maps each username to the
// set of that user's live sessions and owns the server-topic and dm-topic
// subscription tables. A user is online iff it has at least one open session;
// empty session sets are never retained.
//
// One mutex guards the registry and both subscription tables. The lock is
// only ever held for map mutations and snapshot copies, never across a
// network write: callers that need to deliver something take a snapshot and
// send after the lock is released.
type Hub struct {
	mu         sync.Mutex
	conns      map[string]map[*Session]struct{}
	serverSubs map[int64]map[string]struct{}
	dmSubs     map[int64]map[string]struct{}
	wg         sync.WaitGroup
}

// NewHub creates an empty Hub. The hub has process-scoped lifetime and is
// passed explicitly to every component that needs it; there is no package
// global.
func NewHub() *Hub {
	return &Hub{
		conns:      make(map[string]map[*Session]struct{}),
		serverSubs: make(map[int64]map[string]struct{}),
		dmSubs:     make(map[int64]map[string]struct{}),
	}
}

// Register adds a session to the user's set and reports whether this was the
// user's first open session, i.e. an offline-to-online transition. The check
// and the insert happen in one critical section; the caller is expected to
// broadcast the user_online event after Register returns, so that no lock is
// held during I/O.
func (h *Hub) Register(username string, s *Session) bool {
	h.mu.Lock()
	set, ok := h.conns[username]
	if !ok {
		set = make(map[*Session]struct{})
		h.conns[username] = set
	}
	wentOnline := len(set) == 0
	set[s] = struct{}{}
	active := len(set)
	h.mu.Unlock()

	log.Printf("User connected: %s (session %s, %d active)", username, s.ID(), active)
	return wentOnline
}

// Unregister removes a session from the user's set and reports whether the
// user went offline. When the last session is removed, the username key is
// deleted and the user is erased from every server-topic and dm-topic
// subscription set, all inside the same critical section. The caller
// broadcasts the user_offline event afterwards.
func (h *Hub) Unregister(username string, s *Session) bool {
	h.mu.Lock()
	set, ok := h.conns[username]
	if !ok {
		h.mu.Unlock()
		return false
	}
	delete(set, s)
	wentOffline := len(set) == 0
	if wentOffline {
		delete(h.conns, username)
		h.removeSubscriberLocked(username)
	}
	h.mu.Unlock()

	log.Printf("User disconnected: %s (session %s)", username, s.ID())
	return wentOffline
}

// SessionsFor returns a snapshot of the user's current sessions, safe to
// iterate without holding the hub lock.
func (h *Hub) SessionsFor(username string) []*Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.conns[username]
	sessions := make([]*Session, 0, len(set))
	for s := range set {
		sessions = append(sessions, s)
	}
	return sessions
}

// OnlineCount returns the number of distinct users with at least one open
// session.
func (h *Hub) OnlineCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// track registers a session read loop with the hub's wait group so Shutdown
// can wait for loops to drain. The returned func must be called when the
// loop exits.
func (h *Hub) track() func() {
	h.wg.Add(1)
	return h.wg.Done
}

// allSessions returns a snapshot of every session of every online user.
func (h *Hub) allSessions() []*Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	var sessions []*Session
	for _, set := range h.conns {
		for s := range set {
			sessions = append(sessions, s)
		}
	}
	return sessions
}

// Shutdown closes every live session and waits for their read loops to
// finish, or until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	sessions := h.allSessions()
	log.Printf("Shutting down hub, closing %d sessions", len(sessions))

	for _, s := range sessions {
		s.Close()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some sessions may still be draining")
		return context.DeadlineExceeded
	}
}
