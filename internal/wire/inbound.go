// Package wire defines the JSON frames exchanged with the chat backend and a
// strict decoder for inbound frames.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nfrund/roomchat/internal/domain"
)

// Inbound frame discriminators.
const (
	TypeMessageHistory   = "message_history"
	TypeChatMessage      = "chat_message"
	TypeRoomParticipants = "room_participants"
	TypeUserTyping       = "user_typing"
	TypeTyping           = "typing"
)

// Presence actions carried by room_participants frames.
const (
	ActionJoined = "joined"
	ActionLeft   = "left"
)

var (
	// ErrMalformed is returned for frames that are not JSON objects or that
	// miss a required field.
	ErrMalformed = errors.New("malformed frame")
	// ErrUnknownType is returned for frames whose type is not recognized.
	ErrUnknownType = errors.New("unknown frame type")
)

var validate = validator.New()

// Event is a decoded inbound frame.
type Event interface {
	EventType() string
}

// ErrorEvent is the {"error": "..."} envelope. The connection stays open.
type ErrorEvent struct {
	Message string
}

// HistoryMessage is one entry of a message_history frame.
type HistoryMessage struct {
	ID             MessageID  `json:"id" validate:"required"`
	Content        string     `json:"content" validate:"required"`
	SenderUsername string     `json:"sender_username" validate:"required"`
	Timestamp      *Timestamp `json:"timestamp" validate:"required"`
}

// HistoryEvent replaces the whole timeline.
type HistoryEvent struct {
	Messages []HistoryMessage `json:"messages" validate:"required,dive"`
}

// ChatMessageEvent is a single new message.
type ChatMessageEvent struct {
	MessageID MessageID  `json:"message_id" validate:"required"`
	Message   string     `json:"message" validate:"required"`
	Sender    string     `json:"sender" validate:"required"`
	Timestamp *Timestamp `json:"timestamp" validate:"required"`
}

// ParticipantsEvent carries the full participant list and the delta that
// caused it.
type ParticipantsEvent struct {
	Participants []string `json:"participants" validate:"required,dive,required"`
	Username     string   `json:"username" validate:"required"`
	Action       string   `json:"action" validate:"required,oneof=joined left"`
}

// TypingEvent reports that a user started or stopped composing.
type TypingEvent struct {
	Username string `json:"username" validate:"required"`
	IsTyping *bool  `json:"is_typing" validate:"required"`
}

func (ErrorEvent) EventType() string { return "error" }
func (HistoryEvent) EventType() string { return TypeMessageHistory }
func (ChatMessageEvent) EventType() string { return TypeChatMessage }
func (ParticipantsEvent) EventType() string { return TypeRoomParticipants }
func (TypingEvent) EventType() string { return TypeUserTyping }

// ChatMessages converts the history entries to domain messages.
func (e HistoryEvent) ChatMessages() []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(e.Messages))
	for _, m := range e.Messages {
		out = append(out, domain.ChatMessage{
			ID:             string(m.ID),
			Content:        m.Content,
			SenderUsername: m.SenderUsername,
			Timestamp:      m.Timestamp.Time(),
		})
	}
	return out
}

// ChatMessage converts the frame to a domain message.
func (e ChatMessageEvent) ChatMessage() domain.ChatMessage {
	return domain.ChatMessage{
		ID:             string(e.MessageID),
		Content:        e.Message,
		SenderUsername: e.Sender,
		Timestamp:      e.Timestamp.Time(),
	}
}

// Joined reports whether the delta is a join.
func (e ParticipantsEvent) Joined() bool {
	return e.Action == ActionJoined
}

type envelope struct {
	Type  string          `json:"type"`
	Error json.RawMessage `json:"error"`
}

// Decode parses and validates one inbound frame. It never panics; any
// problem is reported as an error wrapping ErrMalformed or ErrUnknownType.
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if msg, ok := errorMessage(env.Error); ok {
		return ErrorEvent{Message: msg}, nil
	}

	var ev Event
	var err error
	switch env.Type {
	case TypeMessageHistory:
		ev, err = decodeInto[HistoryEvent](data)
	case TypeChatMessage:
		ev, err = decodeInto[ChatMessageEvent](data)
	case TypeRoomParticipants:
		ev, err = decodeInto[ParticipantsEvent](data)
	case TypeUserTyping:
		ev, err = decodeInto[TypingEvent](data)
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
	}
	return ev, nil
}

func decodeInto[T Event](data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, err
	}
	if err := validate.Struct(v); err != nil {
		return v, err
	}
	return v, nil
}

// errorMessage extracts the error of an envelope. Falsy values (null, false,
// zero and blank strings) mean no error. Other non-string values are shown
// as their JSON text so that an unexpected envelope still reaches the user.
func errorMessage(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	switch t := v.(type) {
	case nil:
		return "", false
	case bool:
		if !t {
			return "", false
		}
	case float64:
		if t == 0 {
			return "", false
		}
	case string:
		t = strings.TrimSpace(t)
		return t, t != ""
	}
	return string(raw), true
}

// MessageID accepts numeric or string identifiers and keeps their decimal
// text form.
type MessageID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *MessageID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = MessageID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("message id must be a number or string: %w", err)
	}
	*id = MessageID(n.String())
	return nil
}
