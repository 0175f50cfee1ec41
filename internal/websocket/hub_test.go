package websocket

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

func startTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func registerTestClient(t *testing.T, hub *Hub, userID string) *Client {
	t.Helper()
	client := NewClient(hub, nil, userID)
	hub.register <- client
	waitFor(t, func() bool { return hub.ClientCount() > 0 && clientRegistered(hub, client) })
	return client
}

func clientRegistered(hub *Hub, c *Client) bool {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return hub.clients[c]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func receiveEnvelope(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case data := <-c.send:
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no message received within deadline")
		return Envelope{}
	}
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected message: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGlobalBroadcast(t *testing.T) {
	hub := startTestHub(t)

	client1 := registerTestClient(t, hub, "user-1")
	client2 := registerTestClient(t, hub, "")

	hub.ToAll("poll-created", map[string]string{"id": "p1"})

	for _, c := range []*Client{client1, client2} {
		env := receiveEnvelope(t, c)
		if env.Event != "poll-created" {
			t.Errorf("Expected poll-created, got %s", env.Event)
		}
	}
}

func TestPollTopicBroadcast(t *testing.T) {
	hub := startTestHub(t)

	member := registerTestClient(t, hub, "user-1")
	outsider := registerTestClient(t, hub, "user-2")

	hub.Join(member, "p1")

	hub.ToPoll("p1", "poll-updated", map[string]string{"id": "p1"})

	env := receiveEnvelope(t, member)
	if env.Event != "poll-updated" {
		t.Errorf("Expected poll-updated, got %s", env.Event)
	}
	assertNoMessage(t, outsider)
}

func TestJoinLeaveIdempotent(t *testing.T) {
	hub := startTestHub(t)

	client := registerTestClient(t, hub, "user-1")

	// Joining twice keeps a single membership.
	hub.Join(client, "p1")
	hub.Join(client, "p1")
	if size := hub.TopicSize("p1"); size != 1 {
		t.Errorf("Expected topic size 1 after double join, got %d", size)
	}

	// Leaving twice, and leaving a never-joined topic, are no-ops.
	hub.Leave(client, "p1")
	hub.Leave(client, "p1")
	hub.Leave(client, "never-joined")
	if size := hub.TopicSize("p1"); size != 0 {
		t.Errorf("Expected topic size 0 after leave, got %d", size)
	}

	hub.ToPoll("p1", "poll-updated", nil)
	assertNoMessage(t, client)
}

func TestJoinUnregisteredClientIgnored(t *testing.T) {
	hub := startTestHub(t)

	stray := NewClient(hub, nil, "ghost")
	hub.Join(stray, "p1")

	if size := hub.TopicSize("p1"); size != 0 {
		t.Errorf("Unregistered client must not join topics, got size %d", size)
	}
}

func TestUnregisterDiscardsMembership(t *testing.T) {
	hub := startTestHub(t)

	client := registerTestClient(t, hub, "user-1")
	hub.Join(client, "p1")
	hub.Join(client, "p2")

	hub.unregister <- client
	waitFor(t, func() bool { return hub.ClientCount() == 0 })

	if size := hub.TopicSize("p1"); size != 0 {
		t.Errorf("Topic p1 should be empty after disconnect, got %d", size)
	}
	if size := hub.TopicSize("p2"); size != 0 {
		t.Errorf("Topic p2 should be empty after disconnect, got %d", size)
	}

	// The send channel is closed so the write pump terminates.
	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("Expected closed send channel")
		}
	case <-time.After(time.Second):
		t.Error("Send channel not closed on unregister")
	}
}

func TestPerConnectionOrdering(t *testing.T) {
	hub := startTestHub(t)

	client := registerTestClient(t, hub, "user-1")
	hub.Join(client, "p1")

	const n = 20
	for i := 0; i < n; i++ {
		hub.ToPoll("p1", "poll-updated", map[string]int{"seq": i})
	}

	for i := 0; i < n; i++ {
		env := receiveEnvelope(t, client)
		data := env.Data.(map[string]any)
		if int(data["seq"].(float64)) != i {
			t.Fatalf("Events delivered out of order: expected seq %d, got %v", i, data["seq"])
		}
	}
}

func TestBroadcastAfterDisconnectDoesNotPanic(t *testing.T) {
	hub := startTestHub(t)

	client := registerTestClient(t, hub, "user-1")

	// A publisher may snapshot its targets right before the client drops;
	// delivering to the stale snapshot must not touch the closed channel.
	targets := []*Client{client}
	hub.unregister <- client
	waitFor(t, func() bool { return hub.ClientCount() == 0 })

	hub.deliver(targets, []byte(`{"event":"poll-updated","data":null}`))
}

func TestDisconnectAfterStopReturns(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := registerTestClient(t, hub, "user-1")
	hub.Stop()

	done := make(chan struct{})
	go func() {
		hub.drop(client)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disconnect blocked after hub stop")
	}
}

func TestControlMessageValidation(t *testing.T) {
	if !MessageTypeJoinPoll.IsValid() || !MessageTypeLeavePoll.IsValid() {
		t.Error("join-poll and leave-poll must be valid control types")
	}
	if MessageType("shout").IsValid() {
		t.Error("unknown control types must be rejected")
	}
}

func TestSlowClientDropped(t *testing.T) {
	hub := startTestHub(t)

	client := registerTestClient(t, hub, "user-1")

	// Overflow the send buffer without draining it.
	for i := 0; i < cap(client.send)+8; i++ {
		hub.ToAll("poll-created", fmt.Sprintf("payload-%d", i))
	}

	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}
