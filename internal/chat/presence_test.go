package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nfrund/roomchat/internal/wire"
)

func TestPresenceTracker(t *testing.T) {
	p := NewPresenceTracker("alice")

	notice, ok := p.OnParticipantSnapshot(wire.ParticipantsEvent{
		Participants: []string{"alice"},
		Username:     "alice",
		Action:       wire.ActionJoined,
	})
	assert.False(t, ok, "own join is not announced")
	assert.Equal(t, PresenceNotice{}, notice)

	notice, ok = p.OnParticipantSnapshot(wire.ParticipantsEvent{
		Participants: []string{"alice", "bob"},
		Username:     "bob",
		Action:       wire.ActionJoined,
	})
	assert.True(t, ok)
	assert.Equal(t, PresenceNotice{Username: "bob", Joined: true}, notice)
	assert.Equal(t, []string{"alice", "bob"}, p.Participants())

	p.OnTyping("bob", true)
	p.OnTyping("carol", true)
	p.OnTyping("bob", true)
	assert.Equal(t, []string{"bob", "carol"}, p.Typing())
	assert.True(t, p.IsTyping("carol"))

	p.OnMessageAccepted("bob")
	assert.Equal(t, []string{"carol"}, p.Typing())

	p.OnTyping("carol", false)
	assert.Empty(t, p.Typing())

	notice, ok = p.OnParticipantSnapshot(wire.ParticipantsEvent{
		Participants: []string{"alice"},
		Username:     "bob",
		Action:       wire.ActionLeft,
	})
	assert.True(t, ok)
	assert.False(t, notice.Joined)
	assert.Equal(t, []string{"alice"}, p.Participants())

	p.OnTyping("dave", true)
	p.Reset()
	assert.Empty(t, p.Participants())
	assert.Empty(t, p.Typing())
	assert.Equal(t, "alice", p.Self())
}
