package chat

import "github.com/nfrund/roomchat/internal/domain"

// Deduplicator remembers message keys seen since the last history snapshot.
type Deduplicator struct {
	seen map[string]struct{}
}

// NewDeduplicator returns an empty Deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{})}
}

// Accept records msg and reports whether it was new.
func (d *Deduplicator) Accept(msg domain.ChatMessage) bool {
	key := msg.Key()
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

// Reset forgets every key.
func (d *Deduplicator) Reset() {
	clear(d.seen)
}

// Len is the number of remembered keys.
func (d *Deduplicator) Len() int {
	return len(d.seen)
}
