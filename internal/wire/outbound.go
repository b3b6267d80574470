package wire

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrEmptyMessage is returned when a chat message is blank after trimming.
var ErrEmptyMessage = errors.New("message is empty")

// Outbound is a frame sent to the backend.
type Outbound interface {
	OutboundType() string
}

// ChatMessageFrame sends one message to the room.
type ChatMessageFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// TypingFrame announces that the local user started or stopped composing.
type TypingFrame struct {
	Type     string `json:"type"`
	IsTyping bool   `json:"is_typing"`
	Username string `json:"username"`
}

func (ChatMessageFrame) OutboundType() string { return TypeChatMessage }
func (TypingFrame) OutboundType() string { return TypeTyping }

// NewChatMessage trims text and builds a chat_message frame.
func NewChatMessage(text string) (ChatMessageFrame, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ChatMessageFrame{}, ErrEmptyMessage
	}
	return ChatMessageFrame{Type: TypeChatMessage, Message: text}, nil
}

// NewTyping builds a typing frame for username.
func NewTyping(username string, isTyping bool) TypingFrame {
	return TypingFrame{Type: TypeTyping, IsTyping: isTyping, Username: username}
}

// Encode serializes an outbound frame.
func Encode(frame Outbound) ([]byte, error) {
	return json.Marshal(frame)
}
