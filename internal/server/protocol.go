// Package server defines the wire-level event types exchanged with connected
// clients. Every frame is a single JSON object with a top-level "type" field
// acting as the discriminant.
package server

import "time"

// Inbound control message types.
const (
	TypePing              = "ping"
	TypeSubscribeServer   = "subscribe_server"
	TypeSubscribeDM       = "subscribe_dm"
	TypeUnsubscribeServer = "unsubscribe_server"
	TypeTyping            = "typing"
)

// Outbound event types.
const (
	TypeConnected   = "connected"
	TypeUserOnline  = "user_online"
	TypeUserOffline = "user_offline"
	TypePong        = "pong"
	TypeSubscribed  = "subscribed"
)

// Envelope is the decoded form of an inbound control frame. Fields that do
// not apply to a given type are simply left at their zero values; non-positive
// topic ids are treated as absent.
type Envelope struct {
	Type     string `json:"type"`
	ServerID int64  `json:"server_id,omitempty"`
	DMID     int64  `json:"dm_id,omitempty"`
	Channel  string `json:"channel,omitempty"`
}

// ConnectedEvent is the welcome frame sent to a session once it has been
// registered with the hub.
type ConnectedEvent struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

// PresenceEvent announces a user going online or offline to every connected
// session.
type PresenceEvent struct {
	Type      string `json:"type"`
	Username  string `json:"username"`
	Timestamp int64  `json:"timestamp"`
}

// PongEvent is the reply to an inbound ping.
type PongEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// SubscribedEvent acknowledges a successful topic subscription.
type SubscribedEvent struct {
	Type     string `json:"type"`
	Target   string `json:"target"`
	ServerID int64  `json:"server_id,omitempty"`
	DMID     int64  `json:"dm_id,omitempty"`
}

// TypingEvent is fanned out to a topic when one of its subscribers is typing.
type TypingEvent struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	ServerID int64  `json:"server_id,omitempty"`
	Channel  string `json:"channel,omitempty"`
	DMID     int64  `json:"dm_id,omitempty"`
}

func newConnectedEvent(username string) ConnectedEvent {
	return ConnectedEvent{
		Type:     TypeConnected,
		Username: username,
		Message:  "WebSocket connection established",
	}
}

func newPresenceEvent(eventType, username string) PresenceEvent {
	return PresenceEvent{
		Type:      eventType,
		Username:  username,
		Timestamp: time.Now().Unix(),
	}
}

func newPongEvent() PongEvent {
	return PongEvent{Type: TypePong, Timestamp: time.Now().Unix()}
}
