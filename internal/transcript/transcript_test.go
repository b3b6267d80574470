package transcript

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/roomchat/internal/chat"
	"github.com/nfrund/roomchat/internal/domain"
)

func TestRender(t *testing.T) {
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	v := chat.View{
		RoomID:           "42",
		RoomName:         "General",
		State:            chat.StateOpen,
		ParticipantCount: "2 people",
		At:               at,
		Messages: []chat.MessageView{
			{Key: "msg-1", ID: "1", Sender: "bob", Content: "<b>hi</b> & welcome", Timestamp: at, RelativeTime: "just now"},
			{Key: "msg-2", ID: "2", Sender: "alice", Content: "thanks", Timestamp: at, RelativeTime: "just now", Own: true},
			{Key: "system-x", ID: "x", Sender: domain.SystemSender, Content: "carol joined the room", Timestamp: at, System: true},
		},
		Participants: []chat.ParticipantView{{Username: "alice", Self: true}, {Username: "bob"}},
	}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, v))
	out := buf.String()

	assert.Contains(t, out, "<!doctype html>")
	assert.Contains(t, out, "<title>General</title>")
	assert.Contains(t, out, "&lt;b&gt;hi&lt;/b&gt; &amp; welcome", "content is escaped")
	assert.NotContains(t, out, "<b>hi</b>")
	assert.Contains(t, out, `class="message own"`)
	assert.Contains(t, out, `class="message system"`)
	assert.Contains(t, out, `id="msg-1"`)
	assert.Contains(t, out, `title="2024-01-01T10:00:00Z"`)
	assert.Contains(t, out, "alice (you)")
	assert.NotContains(t, out, `class="status"`)
}

func TestRender_Status(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, chat.View{RoomName: "General", Status: "Room not found"}))
	assert.Contains(t, buf.String(), `<p class="status">Room not found</p>`)
	assert.NotContains(t, buf.String(), "Participants:")
}
