package chat

import (
	"context"
	"sync"

	"github.com/nfrund/roomchat/internal/session"
)

// Client opens rooms with shared settings and keeps at most one of them
// alive. Joining another room tears the previous one down first, so no
// timer or dedupe state leaks across rooms.
type Client struct {
	baseURL string
	store   session.Store
	opts    []Option

	mu      sync.Mutex
	current *Room
}

// NewClient returns a Client whose rooms dial wsBaseURL.
func NewClient(wsBaseURL string, store session.Store, opts ...Option) *Client {
	return &Client{baseURL: wsBaseURL, store: store, opts: opts}
}

// Join closes the current room and opens roomID. The room is returned even
// when Open fails so the caller can render its failed state.
func (c *Client) Join(ctx context.Context, roomID string, opts ...Option) (*Room, error) {
	if prev := c.swap(nil); prev != nil {
		_ = prev.Close()
	}

	all := make([]Option, 0, len(c.opts)+len(opts))
	all = append(all, c.opts...)
	all = append(all, opts...)

	room := NewRoom(roomID, c.store, c.baseURL, all...)
	if prev := c.swap(room); prev != nil {
		_ = prev.Close()
	}
	return room, room.Open(ctx)
}

// Current returns the open room, or nil.
func (c *Client) Current() *Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Close closes the current room.
func (c *Client) Close() error {
	prev := c.swap(nil)
	if prev == nil {
		return nil
	}
	return prev.Close()
}

// swap replaces the current room. Rooms are closed outside the lock: closing
// waits for event subscribers, which may call Current.
func (c *Client) swap(room *Room) *Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.current
	c.current = room
	return prev
}
