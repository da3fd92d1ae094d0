package server

import (
	"errors"
	"testing"
)

type testEvent struct {
	Type string `json:"type"`
	Body string `json:"body"`
}

func TestSendToUserDeliversToEverySessionOfThatUser(t *testing.T) {
	h := NewHub()
	_, aliceConn1 := addSession(h, "alice")
	_, aliceConn2 := addSession(h, "alice")
	_, bobConn := addSession(h, "bob")

	h.SendToUser("alice", testEvent{Type: "msg", Body: "hi"})

	if got := aliceConn1.countEvents(t, "msg"); got != 1 {
		t.Errorf("First alice session received %d messages, want 1", got)
	}
	if got := aliceConn2.countEvents(t, "msg"); got != 1 {
		t.Errorf("Second alice session received %d messages, want 1", got)
	}
	if got := bobConn.countEvents(t, "msg"); got != 0 {
		t.Errorf("Bob received %d messages, want 0", got)
	}
}

func TestSendToUserWithNoSessionsIsNoop(t *testing.T) {
	h := NewHub()
	h.SendToUser("ghost", testEvent{Type: "msg"})
}

func TestSendToServerDeliversToSubscribersOnly(t *testing.T) {
	h := NewHub()
	_, aliceConn1 := addSession(h, "alice")
	_, aliceConn2 := addSession(h, "alice")
	_, bobConn := addSession(h, "bob")
	_, carolConn := addSession(h, "carol")

	h.SubscribeServer("alice", 42)
	h.SubscribeServer("bob", 42)

	h.SendToServer(42, testEvent{Type: "msg", Body: "hi"})

	for i, conn := range []*fakeConn{aliceConn1, aliceConn2, bobConn} {
		if got := conn.countEvents(t, "msg"); got != 1 {
			t.Errorf("Subscriber conn %d received %d messages, want 1", i, got)
		}
	}
	if got := carolConn.countEvents(t, "msg"); got != 0 {
		t.Errorf("Non-subscriber received %d messages, want 0", got)
	}
}

func TestSendToServerSkipsSubscriberWithoutSessions(t *testing.T) {
	h := NewHub()
	_, aliceConn := addSession(h, "alice")

	h.SubscribeServer("alice", 42)
	h.SubscribeServer("ghost", 42) // subscribed but never connected

	h.SendToServer(42, testEvent{Type: "msg"})

	if got := aliceConn.countEvents(t, "msg"); got != 1 {
		t.Errorf("Alice received %d messages, want 1", got)
	}
}

func TestSendToDMDeliversToThreadSubscribers(t *testing.T) {
	h := NewHub()
	_, aliceConn := addSession(h, "alice")
	_, bobConn := addSession(h, "bob")
	_, carolConn := addSession(h, "carol")

	h.SubscribeDM("alice", 7)
	h.SubscribeDM("bob", 7)

	h.SendToDM(7, testEvent{Type: "msg", Body: "psst"})

	if aliceConn.countEvents(t, "msg") != 1 || bobConn.countEvents(t, "msg") != 1 {
		t.Error("Both DM participants should receive the message")
	}
	if got := carolConn.countEvents(t, "msg"); got != 0 {
		t.Errorf("Carol received %d messages, want 0", got)
	}
}

func TestBroadcastReachesEverySession(t *testing.T) {
	h := NewHub()
	conns := []*fakeConn{}
	for _, username := range []string{"alice", "alice", "bob", "carol"} {
		_, conn := addSession(h, username)
		conns = append(conns, conn)
	}

	h.Broadcast(testEvent{Type: "announce"})

	for i, conn := range conns {
		if got := conn.countEvents(t, "announce"); got != 1 {
			t.Errorf("Session %d received %d broadcasts, want 1", i, got)
		}
	}
}

// TestSendFailureDoesNotPreventDeliveryToOthers injects a faulting session
// into a topic fan-out and asserts the remaining subscribers still receive
// the event.
func TestSendFailureDoesNotPreventDeliveryToOthers(t *testing.T) {
	h := NewHub()
	_, aliceConn := addSession(h, "alice")
	_, bobConn := addSession(h, "bob")
	_, carolConn := addSession(h, "carol")

	bobConn.failWrites(errors.New("connection reset by peer"))

	for _, username := range []string{"alice", "bob", "carol"} {
		h.SubscribeServer(username, 42)
	}

	h.SendToServer(42, testEvent{Type: "msg", Body: "hi"})

	if got := aliceConn.countEvents(t, "msg"); got != 1 {
		t.Errorf("Alice received %d messages despite bob's failure, want 1", got)
	}
	if got := carolConn.countEvents(t, "msg"); got != 1 {
		t.Errorf("Carol received %d messages despite bob's failure, want 1", got)
	}
}

func TestSendAfterCloseIsNoop(t *testing.T) {
	h := NewHub()
	s, conn := addSession(h, "alice")

	s.Close()
	h.SendToUser("alice", testEvent{Type: "msg"})
	s.Send(testEvent{Type: "msg"})

	if got := conn.countEvents(t, "msg"); got != 0 {
		t.Errorf("Closed session recorded %d messages, want 0", got)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	h := NewHub()
	s, _ := addSession(h, "alice")

	s.Close()
	s.Close()
}
