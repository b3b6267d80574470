package chat

import (
	"slices"

	"github.com/nfrund/roomchat/internal/wire"
)

// PresenceNotice is a join or leave worth telling the user about.
type PresenceNotice struct {
	Username string
	Joined   bool
}

// PresenceTracker holds the participant list and the set of users composing
// a message. Both belong to a single connection and are reset with it.
type PresenceTracker struct {
	self         string
	participants []string
	typing       []string
}

// NewPresenceTracker returns a tracker for the local user self.
func NewPresenceTracker(self string) *PresenceTracker {
	return &PresenceTracker{self: self}
}

// OnParticipantSnapshot replaces the participant list. It returns a notice
// when the snapshot was caused by someone other than the local user.
func (p *PresenceTracker) OnParticipantSnapshot(ev wire.ParticipantsEvent) (PresenceNotice, bool) {
	p.participants = slices.Clone(ev.Participants)
	if ev.Username == "" || ev.Username == p.self {
		return PresenceNotice{}, false
	}
	return PresenceNotice{Username: ev.Username, Joined: ev.Joined()}, true
}

// OnTyping records a typing signal.
func (p *PresenceTracker) OnTyping(username string, isTyping bool) {
	idx := slices.Index(p.typing, username)
	switch {
	case isTyping && idx < 0:
		p.typing = append(p.typing, username)
	case !isTyping && idx >= 0:
		p.typing = slices.Delete(p.typing, idx, idx+1)
	}
}

// OnMessageAccepted clears the sender's typing flag.
func (p *PresenceTracker) OnMessageAccepted(sender string) {
	p.OnTyping(sender, false)
}

// SetSelf changes the local username.
func (p *PresenceTracker) SetSelf(self string) {
	p.self = self
}

// Self is the local username.
func (p *PresenceTracker) Self() string {
	return p.self
}

// Participants returns the current list in server order.
func (p *PresenceTracker) Participants() []string {
	return slices.Clone(p.participants)
}

// Typing returns the users currently composing, in the order they started.
func (p *PresenceTracker) Typing() []string {
	return slices.Clone(p.typing)
}

// IsTyping reports whether username is composing.
func (p *PresenceTracker) IsTyping(username string) bool {
	return slices.Contains(p.typing, username)
}

// Reset drops both sets.
func (p *PresenceTracker) Reset() {
	p.participants = nil
	p.typing = nil
}
