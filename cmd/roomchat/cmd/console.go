package cmd

import (
	"fmt"
	"io"
	"sync"

	"github.com/nfrund/roomchat/internal/chat"
)

// console serializes writes from the event subscriptions and remembers which
// messages were already printed, so history replays after a reconnect only
// show what is new.
type console struct {
	mu         sync.Mutex
	out        io.Writer
	seen       map[string]bool
	typingLine string
}

func newConsole(out io.Writer) *console {
	return &console{out: out, seen: make(map[string]bool)}
}

func (c *console) println(a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, a...)
}

func (c *console) printf(format string, a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, a...)
}

// messages prints the entries of v not printed before.
func (c *console) messages(v chat.View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range v.Messages {
		if c.seen[m.Key] {
			continue
		}
		c.seen[m.Key] = true
		if m.System {
			fmt.Fprintf(c.out, "* %s\n", m.Content)
			continue
		}
		fmt.Fprintf(c.out, "[%s] %s: %s\n", m.Timestamp.Local().Format("15:04"), m.Sender, m.Content)
	}
}

func (c *console) typing(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if line == c.typingLine {
		return
	}
	c.typingLine = line
	if line != "" {
		fmt.Fprintf(c.out, "  (%s)\n", line)
	}
}

func (c *console) participants(v chat.View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s online:\n", v.ParticipantCount)
	for _, p := range v.Participants {
		name := p.Username
		if p.Self {
			name += " (you)"
		}
		fmt.Fprintf(c.out, "  %s\n", name)
	}
}
