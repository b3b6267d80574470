package domain

import "errors"

// Sentinel errors for the chat client. Closure classification, the session
// store and the API client all wrap these so callers can use errors.Is.
var (
	ErrAuthMissing        = errors.New("credential is missing")
	ErrInvalidCredential  = errors.New("credential is invalid")
	ErrRoomNotFound       = errors.New("room not found")
	ErrAccessDenied       = errors.New("access to room denied")
	ErrSendForbidden      = errors.New("sending messages to room is forbidden")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
	ErrNotFound           = errors.New("requested resource not found")
)
