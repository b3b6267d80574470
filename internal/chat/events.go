package chat

import (
	"time"

	"github.com/nfrund/roomchat/internal/domain"
	"github.com/nfrund/roomchat/internal/pubsub"
)

// Events published by a Room. Every message carries the room ID in its
// metadata.
var (
	EventStateChanged = pubsub.NewEvent[StateChange](
		"room.state_changed",
		"Connection lifecycle transition",
	)
	EventHistoryLoaded = pubsub.NewEvent[HistoryLoaded](
		"room.history_loaded",
		"A history snapshot replaced the message buffer",
	)
	EventMessageAccepted = pubsub.NewEvent[domain.ChatMessage](
		"room.message_accepted",
		"A new message, live or system notice, entered the buffer",
	)
	EventPresenceChanged = pubsub.NewEvent[PresenceChanged](
		"room.presence_changed",
		"Participant list or typing set changed",
	)
	EventStatusChanged = pubsub.NewEvent[StatusChanged](
		"room.status_changed",
		"The user-facing status message changed",
	)
	EventRefresh = pubsub.NewEvent[Refresh](
		"room.refresh",
		"Periodic tick so relative times can be redrawn",
	)
)

// Topics lists every event a Room publishes.
var Topics = pubsub.NewRegistry()

func init() {
	Topics.MustRegister(
		EventStateChanged,
		EventHistoryLoaded,
		EventMessageAccepted,
		EventPresenceChanged,
		EventStatusChanged,
		EventRefresh,
	)
}

// HistoryLoaded is the payload of EventHistoryLoaded.
type HistoryLoaded struct {
	Received int `json:"received"`
	Kept     int `json:"kept"`
}

// PresenceChanged is the payload of EventPresenceChanged.
type PresenceChanged struct {
	Participants []string `json:"participants"`
	Typing       []string `json:"typing"`
}

// StatusChanged is the payload of EventStatusChanged.
type StatusChanged struct {
	Status string `json:"status"`
}

// Refresh is the payload of EventRefresh.
type Refresh struct {
	At time.Time `json:"at"`
}
