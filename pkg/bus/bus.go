// Package bus provides the typed publish/subscribe message bus that
// swarms and crews use for inter-agent communication. Bus is an
// interface so an in-process implementation and an external-broker
// implementation are interchangeable.
package bus

import (
	"context"
	"time"

	"github.com/lonestarx1/orcgrid/internal/id"
)

// MessageType classifies a Message's purpose.
type MessageType string

const (
	TaskRequest  MessageType = "task_request"
	TaskResponse MessageType = "task_response"
	VoteRequest  MessageType = "vote_request"
	VoteCast     MessageType = "vote_cast"
	Proposal     MessageType = "proposal"
	StatusUpdate MessageType = "status_update"
	Broadcast    MessageType = "broadcast"
	PeerMessage  MessageType = "peer_message"
	Error        MessageType = "error"
)

// Message is a single unit of communication on the bus.
type Message struct {
	ID            string
	Type          MessageType
	SenderID      string
	ReceiverID    string
	CrewID        string
	Payload       any
	CorrelationID string
	Timestamp     time.Time
}

// Bus is the pub/sub interface agents and schedulers depend on.
// Concrete implementations live in subpackages (inproc, wsbus); code
// that only needs to publish or subscribe should depend on this
// interface, not a specific backend.
type Bus interface {
	// Publish delivers msg to every subscriber of channel.
	Publish(ctx context.Context, channel string, msg Message) error
	// Subscribe returns a channel of messages published to channel and
	// an unsubscribe function. bufferSize bounds how many messages can
	// queue before the slowest subscriber starts dropping messages.
	Subscribe(channel string, bufferSize int) (<-chan Message, func())
}

// DirectBus extends Bus with receiver-addressed delivery, used for
// §4.C's direct-delivery mode (as opposed to channel broadcast).
type DirectBus interface {
	Bus
	// Direct delivers msg only to subscribers of channel+"."+receiverID.
	Direct(ctx context.Context, channel, receiverID string, msg Message) error
}

// NewMessage stamps a Message with a fresh ID and timestamp, leaving
// the caller to fill in Type/SenderID/Payload/etc.
func NewMessage(t MessageType, senderID string, payload any) Message {
	return Message{
		ID:        id.New(),
		Type:      t,
		SenderID:  senderID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}
