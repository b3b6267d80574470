package chat

import (
	"fmt"
	"time"
)

// State is the lifecycle state of a room connection.
type State int

const (
	// StateDisconnected means there is no connection and none is pending.
	StateDisconnected State = iota
	// StateConnecting means the first handshake for this room is in flight.
	StateConnecting
	// StateOpen means the handshake succeeded and frames flow.
	StateOpen
	// StateReconnecting means a server error closed the connection and a
	// bounded backoff is in progress.
	StateReconnecting
	// StateFailed is terminal until the user resets the room.
	StateFailed
)

var stateNames = map[State]string{
	StateDisconnected: "disconnected",
	StateConnecting:   "connecting",
	StateOpen:         "open",
	StateReconnecting: "reconnecting",
	StateFailed:       "failed",
}

// String returns the string representation of a State.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown connection state %q", text)
}

// StateChange describes one transition. Observers receive it synchronously
// on the room's event loop.
type StateChange struct {
	RoomID      string        `json:"room_id"`
	From        State         `json:"from"`
	To          State         `json:"to"`
	Attempt     int           `json:"attempt,omitempty"`
	MaxAttempts int           `json:"max_attempts,omitempty"`
	Delay       time.Duration `json:"delay,omitempty"`
	// Status is the user-facing message for the transition, if any.
	Status string `json:"status,omitempty"`
	// Err is the cause: a *CloseError, or an error wrapping
	// domain.ErrReconnectExhausted.
	Err error `json:"-"`
}
