// Package server maintains the topic subscription tables that decide which
// users receive a given broadcast.
package server

import "log"

// SubscribeServer adds the user to the server topic's subscriber set. The
// insert is idempotent and the topic entry is created lazily; callers are
// responsible for validating that the topic exists and that the user may
// join it.
func (h *Hub) SubscribeServer(username string, serverID int64) {
	h.mu.Lock()
	set, ok := h.serverSubs[serverID]
	if !ok {
		set = make(map[string]struct{})
		h.serverSubs[serverID] = set
	}
	set[username] = struct{}{}
	h.mu.Unlock()

	log.Printf("User %s subscribed to server %d", username, serverID)
}

// SubscribeDM adds the user to the dm topic's subscriber set. Semantics match
// SubscribeServer.
func (h *Hub) SubscribeDM(username string, dmID int64) {
	h.mu.Lock()
	set, ok := h.dmSubs[dmID]
	if !ok {
		set = make(map[string]struct{})
		h.dmSubs[dmID] = set
	}
	set[username] = struct{}{}
	h.mu.Unlock()

	log.Printf("User %s subscribed to DM %d", username, dmID)
}

// UnsubscribeServer removes the user from the server topic's subscriber set.
// Removing a non-member or a member of an unknown topic is a no-op.
func (h *Hub) UnsubscribeServer(username string, serverID int64) {
	h.mu.Lock()
	if set, ok := h.serverSubs[serverID]; ok {
		delete(set, username)
	}
	h.mu.Unlock()
}

// SubscribersOfServer returns a snapshot of the server topic's subscriber
// set, or an empty slice for an unknown topic.
func (h *Hub) SubscribersOfServer(serverID int64) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return subscriberSnapshotLocked(h.serverSubs[serverID])
}

// SubscribersOfDM returns a snapshot of the dm topic's subscriber set, or an
// empty slice for an unknown topic.
func (h *Hub) SubscribersOfDM(dmID int64) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return subscriberSnapshotLocked(h.dmSubs[dmID])
}

// removeSubscriberLocked erases the user from every topic set. Called by
// Unregister when the user's last session closes, under the hub lock, so
// that subscriptions never outlive presence. Topic entries themselves are
// kept; the topic space is caller-controlled and bounded.
func (h *Hub) removeSubscriberLocked(username string) {
	for _, set := range h.serverSubs {
		delete(set, username)
	}
	for _, set := range h.dmSubs {
		delete(set, username)
	}
}

func subscriberSnapshotLocked(set map[string]struct{}) []string {
	usernames := make([]string, 0, len(set))
	for username := range set {
		usernames = append(usernames, username)
	}
	return usernames
}
