package chat

import (
	"strings"
	"time"

	"github.com/nfrund/roomchat/internal/domain"
	"github.com/nfrund/roomchat/internal/i18n"
)

// View is a render-ready snapshot of a room. It is a value; holding one never
// blocks the room.
type View struct {
	RoomID   string `json:"room_id"`
	RoomName string `json:"room_name"`
	Self     string `json:"self"`
	State    State  `json:"state"`
	// Status is the current error or notice banner, empty when healthy.
	Status string `json:"status,omitempty"`
	// Reconnecting is set while a backoff run is in progress.
	Reconnecting string `json:"reconnecting,omitempty"`
	Attempt      int    `json:"attempt,omitempty"`
	MaxAttempts  int    `json:"max_attempts,omitempty"`

	Messages         []MessageView     `json:"messages"`
	Participants     []ParticipantView `json:"participants"`
	ParticipantCount string            `json:"participant_count"`
	Typing           []string          `json:"typing,omitempty"`
	TypingLine       string            `json:"typing_line,omitempty"`

	Draft   string    `json:"draft,omitempty"`
	CanSend bool      `json:"can_send"`
	At      time.Time `json:"at"`
}

// MessageView is one rendered message.
type MessageView struct {
	Key          string    `json:"key"`
	ID           string    `json:"id"`
	Sender       string    `json:"sender"`
	Content      string    `json:"content"`
	Timestamp    time.Time `json:"timestamp"`
	RelativeTime string    `json:"relative_time"`
	Own          bool      `json:"own"`
	System       bool      `json:"system"`
}

// ParticipantView is one entry of the participant list.
type ParticipantView struct {
	Username string `json:"username"`
	Self     bool   `json:"self"`
	Typing   bool   `json:"typing"`
}

type viewInput struct {
	roomID, roomName string
	change           StateChange
	status           string
	draft            string
	messages         []domain.ChatMessage
	presence         *PresenceTracker
	now              time.Time
}

func buildView(tr *i18n.Translator, in viewInput) View {
	self := in.presence.Self()
	v := View{
		RoomID:      in.roomID,
		RoomName:    in.roomName,
		Self:        self,
		State:       in.change.To,
		Status:      in.status,
		Attempt:     in.change.Attempt,
		MaxAttempts: in.change.MaxAttempts,
		Draft:       in.draft,
		CanSend:     in.change.To == StateOpen,
		At:          in.now,
	}
	if v.RoomName == "" {
		v.RoomName = in.roomID
	}
	if v.State == StateReconnecting {
		v.Reconnecting = tr.T(i18n.StatusReconnecting, in.change.Attempt, in.change.MaxAttempts)
	}

	v.Messages = make([]MessageView, 0, len(in.messages))
	for _, msg := range in.messages {
		v.Messages = append(v.Messages, MessageView{
			Key:          messageKey(msg),
			ID:           msg.ID,
			Sender:       msg.SenderUsername,
			Content:      msg.Content,
			Timestamp:    msg.Timestamp,
			RelativeTime: tr.TimeAgo(msg.Timestamp, in.now),
			Own:          !msg.IsSystem() && msg.SenderUsername == self,
			System:       msg.IsSystem(),
		})
	}

	participants := in.presence.Participants()
	v.Participants = make([]ParticipantView, 0, len(participants))
	for _, name := range participants {
		v.Participants = append(v.Participants, ParticipantView{
			Username: name,
			Self:     name == self,
			Typing:   in.presence.IsTyping(name),
		})
	}
	v.ParticipantCount = tr.T(i18n.ParticipantsCount, len(participants))

	for _, name := range in.presence.Typing() {
		if name != self {
			v.Typing = append(v.Typing, name)
		}
	}
	v.TypingLine = typingLine(tr, v.Typing)
	return v
}

func messageKey(msg domain.ChatMessage) string {
	if msg.IsSystem() {
		return "system-" + msg.ID
	}
	return "msg-" + msg.ID
}

func typingLine(tr *i18n.Translator, names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return tr.T(i18n.TypingOne, names[0])
	default:
		return tr.T(i18n.TypingMany, strings.Join(names, ", "))
	}
}
