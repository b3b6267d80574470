package domain

import (
	"fmt"
	"time"
)

// SystemSender is the sender name carried by locally generated notices
// (join/leave announcements). Server messages never use it.
const SystemSender = "System"

// ChatMessage is a single entry in a room's message timeline.
type ChatMessage struct {
	// ID is the server sequence number rendered in decimal, or a locally
	// generated UUID when System is true.
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	SenderUsername string    `json:"sender_username"`
	Timestamp      time.Time `json:"timestamp"`
	System         bool      `json:"system,omitempty"`
}

// Key returns the identity used for duplicate suppression. It deliberately
// ignores Timestamp: history replays may restamp a message.
func (m ChatMessage) Key() string {
	return fmt.Sprintf("%s-%s-%s", m.ID, m.SenderUsername, m.Content)
}

// IsSystem reports whether the message is a locally generated notice.
func (m ChatMessage) IsSystem() bool {
	return m.System || m.SenderUsername == SystemSender
}
