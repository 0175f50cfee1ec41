package websocket

import "encoding/json"

// MessageType identifies a control message sent by a client over the
// socket.
type MessageType string

const (
	MessageTypeJoinPoll  MessageType = "join-poll"
	MessageTypeLeavePoll MessageType = "leave-poll"
)

func (mt MessageType) IsValid() bool {
	switch mt {
	case MessageTypeJoinPoll, MessageTypeLeavePoll:
		return true
	default:
		return false
	}
}

// ControlMessage is the inbound frame: clients only join and leave
// poll-scoped topics; everything else flows server-to-client.
type ControlMessage struct {
	Type MessageType `json:"type"`
	Data struct {
		PollID string `json:"pollId"`
	} `json:"data"`
}

// Envelope is the outbound frame carrying one domain event.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func (e Envelope) encode() ([]byte, error) {
	return json.Marshal(e)
}
