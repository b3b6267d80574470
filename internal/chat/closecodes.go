package chat

import (
	"fmt"

	"github.com/nfrund/roomchat/internal/domain"
	"github.com/nfrund/roomchat/internal/i18n"
)

// Close codes sent by the backend.
const (
	CodeNormal            = 1000
	CodeAbnormal          = 1006
	CodeInternalError     = 1011
	CodeAuthMissing       = 4001
	CodeInvalidCredential = 4002
	CodeRoomNotFound      = 4003
	CodeAccessDenied      = 4004
	CodeSendForbidden     = 4005
)

// CloseKind says what the client does after a closure.
type CloseKind int

const (
	// CloseGeneric surfaces "connection closed" and does not retry.
	CloseGeneric CloseKind = iota
	// CloseTerminal surfaces a fixed message and fails the room.
	CloseTerminal
	// CloseRetryable schedules a reconnect with backoff.
	CloseRetryable
)

func (k CloseKind) String() string {
	switch k {
	case CloseTerminal:
		return "terminal"
	case CloseRetryable:
		return "retryable"
	default:
		return "generic"
	}
}

type closeRule struct {
	kind CloseKind
	key  i18n.Key
	err  error
}

var closeRules = map[int]closeRule{
	CodeAuthMissing:       {CloseTerminal, i18n.StatusAuthMissing, domain.ErrAuthMissing},
	CodeInvalidCredential: {CloseTerminal, i18n.StatusInvalidCredential, domain.ErrInvalidCredential},
	CodeRoomNotFound:      {CloseTerminal, i18n.StatusRoomNotFound, domain.ErrRoomNotFound},
	CodeAccessDenied:      {CloseTerminal, i18n.StatusAccessDenied, domain.ErrAccessDenied},
	CodeSendForbidden:     {CloseTerminal, i18n.StatusSendForbidden, domain.ErrSendForbidden},
	CodeInternalError:     {CloseRetryable, i18n.StatusServerError, nil},
}

// CloseError is a classified connection closure.
type CloseError struct {
	Code   int
	Reason string
	Kind   CloseKind
	// Key is the catalog entry shown to the user.
	Key i18n.Key

	cause error
}

// Classify maps a close code to the client's reaction.
func Classify(code int, reason string) *CloseError {
	rule, ok := closeRules[code]
	if !ok {
		rule = closeRule{kind: CloseGeneric, key: i18n.StatusConnectionClosed}
	}
	return &CloseError{Code: code, Reason: reason, Kind: rule.kind, Key: rule.key, cause: rule.err}
}

func (e *CloseError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("connection closed (%d, %s): %s", e.Code, e.Kind, e.Reason)
	}
	return fmt.Sprintf("connection closed (%d, %s)", e.Code, e.Kind)
}

// Unwrap returns the domain sentinel for terminal codes.
func (e *CloseError) Unwrap() error {
	return e.cause
}

// CloseFrame is returned by Conn.Read when the peer closed the connection
// with a status code.
type CloseFrame struct {
	Code   int
	Reason string
}

func (f *CloseFrame) Error() string {
	return fmt.Sprintf("websocket closed with status %d: %s", f.Code, f.Reason)
}
