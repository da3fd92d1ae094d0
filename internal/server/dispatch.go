// Package server decodes inbound control frames and applies them against the
// hub.
package server

import (
	"encoding/json"
	"log"
)

// handleMessage decodes and dispatches one inbound frame. Malformed JSON and
// unknown types are logged and ignored; the session stays open either way.
// Non-positive or missing topic ids are treated as absent and the operation
// is skipped silently.
func (s *Session) handleMessage(raw []byte) {
	var msg Envelope
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("Invalid message from %s: %v", s.username, err)
		return
	}

	switch msg.Type {
	case TypePing:
		s.Send(newPongEvent())

	case TypeSubscribeServer:
		if msg.ServerID <= 0 {
			return
		}
		s.hub.SubscribeServer(s.username, msg.ServerID)
		s.Send(SubscribedEvent{Type: TypeSubscribed, Target: "server", ServerID: msg.ServerID})

	case TypeSubscribeDM:
		if msg.DMID <= 0 {
			return
		}
		s.hub.SubscribeDM(s.username, msg.DMID)
		s.Send(SubscribedEvent{Type: TypeSubscribed, Target: "dm", DMID: msg.DMID})

	case TypeUnsubscribeServer:
		if msg.ServerID <= 0 {
			return
		}
		s.hub.UnsubscribeServer(s.username, msg.ServerID)

	case TypeTyping:
		s.handleTyping(msg)

	default:
		log.Printf("Unknown message type from %s: %q", s.username, msg.Type)
	}
}

// handleTyping fans a typing indicator out to the topic named by the frame.
// A frame that names neither a server+channel nor a dm is dropped.
func (s *Session) handleTyping(msg Envelope) {
	switch {
	case msg.ServerID > 0 && msg.Channel != "":
		s.hub.SendToServer(msg.ServerID, TypingEvent{
			Type:     TypeTyping,
			Username: s.username,
			ServerID: msg.ServerID,
			Channel:  msg.Channel,
		})
	case msg.DMID > 0:
		s.hub.SendToDM(msg.DMID, TypingEvent{
			Type:     TypeTyping,
			Username: s.username,
			DMID:     msg.DMID,
		})
	}
}
