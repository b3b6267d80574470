package pubsub

import (
	"context"
)

// Message is the structure passed between components on the bus.
// It is intentionally simple to act as a wrapper for raw data.
type Message struct {
	// Topic identifies the channel the message belongs to (e.g., "room.message_accepted").
	Topic string
	// RoomID identifies the room session that produced the message.
	RoomID string
	// Payload contains the raw message data, JSON encoded.
	Payload []byte
	// Metadata can contain arbitrary key-value pairs for context (e.g., timestamps).
	Metadata map[string]string
}

// Handler defines the function signature for processing a received message.
type Handler func(ctx context.Context, msg Message) error

// Publisher defines the contract for sending messages to the Pub/Sub system.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber defines the contract for receiving messages from the Pub/Sub system.
type Subscriber interface {
	// Subscribe starts listening to the given topic, processing messages with the handler.
	// It returns once the subscription is active; delivery stops when ctx is canceled.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}

// Bus is a Publisher that is also a Subscriber.
type Bus interface {
	Publisher
	Subscriber
}

// Discard is a Publisher that drops every message.
type Discard struct{}

// Publish implements Publisher.
func (Discard) Publish(context.Context, Message) error { return nil }

// Close implements Publisher.
func (Discard) Close() error { return nil }
