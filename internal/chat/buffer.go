package chat

import (
	"cmp"
	"slices"

	"github.com/nfrund/roomchat/internal/domain"
)

type bufferedMessage struct {
	msg domain.ChatMessage
	seq uint64
}

// OrderingBuffer keeps the room's messages sorted by timestamp. Messages with
// equal timestamps stay in arrival order.
type OrderingBuffer struct {
	entries []bufferedMessage
	seq     uint64
}

// NewOrderingBuffer returns an empty buffer.
func NewOrderingBuffer() *OrderingBuffer {
	return &OrderingBuffer{}
}

// IngestHistory discards the buffer and loads batch.
func (b *OrderingBuffer) IngestHistory(batch []domain.ChatMessage) {
	b.entries = b.entries[:0]
	for _, msg := range batch {
		b.push(msg)
	}
	b.sort()
}

// IngestLive adds one message at its sorted position.
func (b *OrderingBuffer) IngestLive(msg domain.ChatMessage) {
	n := len(b.entries)
	b.push(msg)
	if n > 0 && msg.Timestamp.Before(b.entries[n-1].msg.Timestamp) {
		b.sort()
	}
}

// Snapshot returns a copy of the buffer in display order.
func (b *OrderingBuffer) Snapshot() []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(b.entries))
	for i, e := range b.entries {
		out[i] = e.msg
	}
	return out
}

// Len is the number of buffered messages.
func (b *OrderingBuffer) Len() int {
	return len(b.entries)
}

// Reset empties the buffer.
func (b *OrderingBuffer) Reset() {
	b.entries = nil
}

func (b *OrderingBuffer) push(msg domain.ChatMessage) {
	b.seq++
	b.entries = append(b.entries, bufferedMessage{msg: msg, seq: b.seq})
}

func (b *OrderingBuffer) sort() {
	slices.SortFunc(b.entries, func(x, y bufferedMessage) int {
		if c := x.msg.Timestamp.Compare(y.msg.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(x.seq, y.seq)
	})
}
