package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nfrund/roomchat/internal/chat"
	"github.com/nfrund/roomchat/internal/pubsub"
	"github.com/nfrund/roomchat/internal/transcript"
)

var (
	exportOutput  string
	exportTimeout time.Duration
)

var exportCmd = &cobra.Command{
	Use:   "export <room-id>",
	Short: "Write a room's history as a standalone HTML page",
	Long: `Join a room, wait for its history and write it as an HTML transcript.

Examples:
  roomchat export 3 > general.html
  roomchat export 3 --output general.html --timeout 5s`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRoomID(args[0])
		if err != nil {
			return err
		}
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), exportTimeout)
		defer cancel()

		roomID := args[0]
		ready := make(chan struct{}, 1)
		failed := make(chan string, 1)
		if err := pubsub.Subscribe(ctx, a.Bus, chat.EventHistoryLoaded, func(_ context.Context, rid string, _ chat.HistoryLoaded) error {
			if rid == roomID {
				notify(ready, struct{}{})
			}
			return nil
		}); err != nil {
			return err
		}
		if err := pubsub.Subscribe(ctx, a.Bus, chat.EventStateChanged, func(_ context.Context, rid string, c chat.StateChange) error {
			if rid == roomID && c.To == chat.StateFailed {
				notify(failed, c.Status)
			}
			return nil
		}); err != nil {
			return err
		}

		var opts []chat.Option
		if r, err := a.API.Room(ctx, id); err == nil {
			opts = append(opts, chat.WithRoomName(r.Name))
		}
		room, err := a.Chat.Join(ctx, roomID, opts...)
		if err != nil {
			return err
		}

		select {
		case <-ready:
		case status := <-failed:
			return fmt.Errorf("could not join room %s: %s", roomID, status)
		case <-ctx.Done():
			return errors.New("timed out waiting for the room history")
		}

		v, err := room.View()
		if err != nil {
			return err
		}

		var out io.Writer = cmd.OutOrStdout()
		if exportOutput != "" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", exportOutput, err)
			}
			defer f.Close()
			out = f
		}
		if err := transcript.Render(out, v); err != nil {
			return fmt.Errorf("failed to render transcript: %w", err)
		}
		if exportOutput != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d messages to %s\n", len(v.Messages), exportOutput)
		}
		return nil
	},
}

// notify delivers v unless the channel already holds a value.
func notify[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "file to write (default stdout)")
	exportCmd.Flags().DurationVar(&exportTimeout, "timeout", 10*time.Second, "how long to wait for the history")
	rootCmd.AddCommand(exportCmd)
}
