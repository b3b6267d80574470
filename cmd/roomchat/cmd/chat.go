package cmd

import (
	"bufio"
	"context"
	"errors"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nfrund/roomchat/internal/app"
	"github.com/nfrund/roomchat/internal/chat"
	"github.com/nfrund/roomchat/internal/domain"
	"github.com/nfrund/roomchat/internal/pubsub"
	"github.com/nfrund/roomchat/internal/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat <room-id>",
	Short: "Join a room and chat in line mode",
	Long: `Join a room over the websocket. Every line typed is sent as a message.

Commands:
  /who        list participants
  /reconnect  reset the connection (also leaves a failed state)
  /quit       leave the room

The connection is re-established automatically after server errors. Logging
in or out from another terminal is picked up while the room is open.`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	roomID := args[0]
	id, err := parseRoomID(roomID)
	if err != nil {
		return err
	}

	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := newConsole(cmd.OutOrStdout())
	if err := subscribeConsole(ctx, a, roomID, out); err != nil {
		return err
	}

	var roomOpts []chat.Option
	if r, err := a.API.Room(ctx, id); err == nil {
		roomOpts = append(roomOpts, chat.WithRoomName(r.Name))
	}

	room, err := a.Chat.Join(ctx, roomID, roomOpts...)
	if err != nil {
		if v, verr := room.View(); verr == nil && v.Status != "" {
			return errors.New(v.Status)
		}
		return err
	}

	lastToken := a.Session.Credential()
	if err := session.Watch(ctx, a.Session, func(d session.Data) {
		if d.Token == lastToken {
			return
		}
		lastToken = d.Token
		if d.Token == "" {
			out.println("* Session ended in another terminal")
			stop()
			return
		}
		out.println("* Session changed, reconnecting as", d.Username)
		if err := room.Reset(ctx); err != nil {
			a.Logger.Warn("Failed to reset room after session change", "error", err)
		}
	}); err != nil {
		a.Logger.Warn("Session changes will not be picked up", "error", err)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(ctx, room, out, line); quit {
				return nil
			}
		}
	}
}

func handleLine(ctx context.Context, room *chat.Room, out *console, line string) (quit bool) {
	switch strings.TrimSpace(line) {
	case "":
		return false
	case "/quit":
		return true
	case "/reconnect":
		if err := room.Reset(ctx); err != nil {
			out.println("!", err)
		}
		return false
	case "/who":
		if v, err := room.View(); err == nil {
			out.participants(v)
		}
		return false
	}

	if err := room.InputChanged(line); err != nil {
		out.println("!", err)
		return false
	}
	if err := room.SendMessage(ctx, line); err != nil {
		if errors.Is(err, chat.ErrNotOpen) {
			out.println("! Not connected; message not sent")
		}
		// Other failures are reported through the status banner.
	}
	return false
}

// subscribeConsole renders the room's events. Handlers run off the room's
// loop, so they may read a fresh View.
func subscribeConsole(ctx context.Context, a *app.App, roomID string, out *console) error {
	view := func(id string) (chat.View, bool) {
		r := a.Chat.Current()
		if id != roomID || r == nil || r.ID() != id {
			return chat.View{}, false
		}
		v, err := r.View()
		return v, err == nil
	}

	if err := pubsub.Subscribe(ctx, a.Bus, chat.EventHistoryLoaded, func(_ context.Context, id string, _ chat.HistoryLoaded) error {
		if v, ok := view(id); ok {
			out.messages(v)
		}
		return nil
	}); err != nil {
		return err
	}
	if err := pubsub.Subscribe(ctx, a.Bus, chat.EventMessageAccepted, func(_ context.Context, id string, _ domain.ChatMessage) error {
		if v, ok := view(id); ok {
			out.messages(v)
		}
		return nil
	}); err != nil {
		return err
	}
	if err := pubsub.Subscribe(ctx, a.Bus, chat.EventPresenceChanged, func(_ context.Context, id string, _ chat.PresenceChanged) error {
		if v, ok := view(id); ok {
			out.typing(v.TypingLine)
		}
		return nil
	}); err != nil {
		return err
	}
	if err := pubsub.Subscribe(ctx, a.Bus, chat.EventStatusChanged, func(_ context.Context, id string, s chat.StatusChanged) error {
		if id == roomID && s.Status != "" {
			out.println("!", s.Status)
		}
		return nil
	}); err != nil {
		return err
	}
	return pubsub.Subscribe(ctx, a.Bus, chat.EventStateChanged, func(_ context.Context, id string, c chat.StateChange) error {
		if id != roomID {
			return nil
		}
		switch c.To {
		case chat.StateOpen:
			if v, ok := view(id); ok {
				out.printf("* Connected to %s as %s\n", v.RoomName, v.Self)
			}
		case chat.StateReconnecting:
			if v, ok := view(id); ok {
				out.printf("* %s\n", v.Reconnecting)
			}
		case chat.StateFailed:
			out.println("* Connection failed. Type /reconnect to try again or /quit to leave.")
		}
		return nil
	})
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
