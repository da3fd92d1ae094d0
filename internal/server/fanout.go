// Package server implements the fan-out operations that resolve a delivery
// target to a concrete set of sessions and push one serialized event to each.
package server

import (
	"encoding/json"
	"log"
)

// SendToUser delivers the event to every session of the named user. A user
// with no open sessions is a silent no-op.
func (h *Hub) SendToUser(username string, event any) {
	h.deliver(h.SessionsFor(username), event)
}

// SendToServer delivers the event to every session of every user subscribed
// to the server topic. Subscribers that have no open sessions at resolution
// time are skipped; this can happen under races with disconnect and is not
// an error.
func (h *Hub) SendToServer(serverID int64, event any) {
	sessions, subscribers := h.topicSessions(h.serverSubs, serverID)
	if subscribers == 0 {
		log.Printf("No subscribers for server %d", serverID)
		return
	}
	log.Printf("Broadcasting %s to server %d (%d subscribers)", eventType(event), serverID, subscribers)
	h.deliver(sessions, event)
}

// SendToDM delivers the event to every session of every user subscribed to
// the dm topic.
func (h *Hub) SendToDM(dmID int64, event any) {
	sessions, _ := h.topicSessions(h.dmSubs, dmID)
	h.deliver(sessions, event)
}

// Broadcast delivers the event to every session of every online user. Used
// for presence events.
func (h *Hub) Broadcast(event any) {
	h.deliver(h.allSessions(), event)
}

// topicSessions resolves a topic to the sessions of its current subscribers
// in one lock acquisition. It also reports the subscriber count so callers
// can distinguish an unknown topic from one whose subscribers are all
// between sessions.
func (h *Hub) topicSessions(subs map[int64]map[string]struct{}, id int64) ([]*Session, int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := subs[id]
	var sessions []*Session
	for username := range set {
		for s := range h.conns[username] {
			sessions = append(sessions, s)
		}
	}
	return sessions, len(set)
}

// deliver serializes the event once and writes it to each session. The hub
// lock is never held here; each session's own write mutex serializes the
// actual writes, and a failure on one session never prevents delivery to the
// rest.
func (h *Hub) deliver(sessions []*Session, event any) {
	if len(sessions) == 0 {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling %s event: %v", eventType(event), err)
		return
	}
	for _, s := range sessions {
		s.sendPayload(payload)
	}
}

// eventType extracts the "type" discriminant for log lines without requiring
// a shared interface across event structs.
func eventType(event any) string {
	raw, err := json.Marshal(event)
	if err != nil {
		return "unknown"
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		return "unknown"
	}
	return env.Type
}
