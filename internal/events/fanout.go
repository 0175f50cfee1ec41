// Package events routes domain events to their sinks: the in-process
// WebSocket hub and, when configured, a Kafka topic for downstream
// consumers. All sinks are best-effort.
package events

import "poll-service/internal/poll"

// Fanout broadcasts every event to each composed sink in order.
type Fanout []poll.Broadcaster

func (f Fanout) ToAll(event string, payload any) {
	for _, b := range f {
		b.ToAll(event, payload)
	}
}

func (f Fanout) ToPoll(pollID string, event string, payload any) {
	for _, b := range f {
		b.ToPoll(pollID, event, payload)
	}
}
