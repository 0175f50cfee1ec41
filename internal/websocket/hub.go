// Package websocket implements the broadcast gateway: a process-local hub
// that fans domain events out to connected clients. Every connection
// implicitly belongs to the global topic; clients additionally join and
// leave poll-scoped topics. Delivery is best-effort with no
// acknowledgement or replay; disconnected clients reconcile by refetching.
package websocket

import (
	"context"
	"log/slog"
	"sync"
)

// PollTopic names the broadcast topic scoped to one poll.
func PollTopic(pollID string) string {
	return "poll-" + pollID
}

// Hub coordinates client registration and event fan-out. Topic membership
// is shared mutable state guarded by mu; registration and teardown flow
// through channels consumed by Run.
type Hub struct {
	clients map[*Client]bool
	topics  map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	ctx    context.Context
	cancel context.CancelFunc

	mu sync.RWMutex
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		topics:     make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run processes registration and teardown until Stop is called. Start it
// in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case <-h.ctx.Done():
			slog.Info("WebSocket hub shutting down")
			return
		}
	}
}

func (h *Hub) Stop() {
	h.cancel()
}

// Join subscribes a client to a poll's topic. Joining twice is a no-op.
func (h *Hub) Join(c *Client, pollID string) {
	topic := PollTopic(pollID)

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[c] {
		return
	}
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Client]bool)
	}
	h.topics[topic][c] = true
	slog.Debug("client joined topic", "clientID", c.id, "topic", topic)
}

// Leave unsubscribes a client from a poll's topic. Leaving a topic the
// client never joined is a no-op.
func (h *Hub) Leave(c *Client, pollID string) {
	topic := PollTopic(pollID)

	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.topics[topic], c)
	if len(h.topics[topic]) == 0 {
		delete(h.topics, topic)
	}
	slog.Debug("client left topic", "clientID", c.id, "topic", topic)
}

// ToAll delivers an event to every connected client.
func (h *Hub) ToAll(event string, payload any) {
	data, err := Envelope{Event: event, Data: payload}.encode()
	if err != nil {
		slog.Error("failed to encode event", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	h.deliver(targets, data)
}

// ToPoll delivers an event to the clients subscribed to one poll's topic.
func (h *Hub) ToPoll(pollID string, event string, payload any) {
	data, err := Envelope{Event: event, Data: payload}.encode()
	if err != nil {
		slog.Error("failed to encode event", "event", event, "error", err)
		return
	}

	topic := PollTopic(pollID)

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.topics[topic]))
	for client := range h.topics[topic] {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	h.deliver(targets, data)
}

// deliver enqueues a frame on each target's send channel. The buffered
// channel preserves per-connection FIFO ordering; a client whose buffer
// is full is treated as dead and torn down. Targets are a snapshot, so a
// client may already be unregistered by the time its frame is enqueued;
// trySend skips those instead of hitting a closed channel.
func (h *Hub) deliver(targets []*Client, data []byte) {
	for _, client := range targets {
		if !client.trySend(data) {
			slog.Warn("client send buffer full, dropping connection", "clientID", client.id)
			go h.drop(client)
		}
	}
}

// drop hands a client to the run loop for teardown. Safe to call after
// Stop, when nothing consumes the unregister channel anymore.
func (h *Hub) drop(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

// ClientCount reports how many clients are currently connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TopicSize reports how many clients are subscribed to a poll's topic.
func (h *Hub) TopicSize(pollID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[PollTopic(pollID)])
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = true
	slog.Info("client registered", "clientID", c.id, "userID", c.userID)
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[c] {
		return
	}
	delete(h.clients, c)

	// Membership dies with the connection; nothing is persisted.
	for topic, members := range h.topics {
		delete(members, c)
		if len(members) == 0 {
			delete(h.topics, topic)
		}
	}

	c.closeSend()
	slog.Info("client unregistered", "clientID", c.id, "userID", c.userID)
}
