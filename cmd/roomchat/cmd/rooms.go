package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nfrund/roomchat/internal/domain"
)

var roomsOutputFormat string

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List and manage chat rooms",
	Long: `The rooms command manages the rooms known to the backend.

Available subcommands:
  list    List every room
  create  Create a room owned by you
  join    Become a participant of a room
  leave   Stop being a participant of a room
  delete  Delete a room (admins only)
  show    Print a room's stored history

Examples:
  roomchat rooms list --format json
  roomchat rooms create "Team standup"
  roomchat rooms show 3`,
}

var roomsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every room",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		rooms, err := a.API.Rooms(cmd.Context())
		if err != nil {
			return err
		}
		switch roomsOutputFormat {
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rooms)
		case "table":
			displayRoomsTable(cmd.OutOrStdout(), rooms, a.Session.Username())
			return nil
		default:
			return fmt.Errorf("unsupported output format %q; use 'table' or 'json'", roomsOutputFormat)
		}
	},
}

var roomsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a room owned by you",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		room, err := a.API.CreateRoom(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created room %d %q\n", room.ID, room.Name)
		return nil
	},
}

var roomsJoinCmd = &cobra.Command{
	Use:   "join <room-id>",
	Short: "Become a participant of a room",
	Args:  cobra.ExactArgs(1),
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

		if err := a.API.JoinRoom(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Joined room %d\n", id)
		return nil
	},
}

var roomsLeaveCmd = &cobra.Command{
	Use:   "leave <room-id>",
	Short: "Stop being a participant of a room",
	Args:  cobra.ExactArgs(1),
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

		if err := a.API.LeaveRoom(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Left room %d\n", id)
		return nil
	},
}

var roomsDeleteCmd = &cobra.Command{
	Use:   "delete <room-id>",
	Short: "Delete a room (admins only)",
	Args:  cobra.ExactArgs(1),
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

		if !domain.CanDeleteRooms(a.Session.Role()) {
			return errors.New("only admins can delete rooms")
		}
		if err := a.API.DeleteRoom(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted room %d\n", id)
		return nil
	},
}

var roomsShowCmd = &cobra.Command{
	Use:   "show <room-id>",
	Short: "Print a room's stored history",
	Args:  cobra.ExactArgs(1),
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

		room, err := a.API.Room(cmd.Context(), id)
		if err != nil {
			return err
		}
		msgs, err := a.API.Messages(cmd.Context(), id)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# %s (owner %s)\n", room.Name, room.OwnerUsername)
		if len(msgs) == 0 {
			fmt.Fprintln(out, "No messages yet")
			return nil
		}
		now := time.Now()
		for _, m := range msgs {
			fmt.Fprintf(out, "[%s] %s: %s\n", a.Translator.TimeAgo(m.Timestamp, now), m.SenderUsername, m.Content)
		}
		return nil
	},
}

func displayRoomsTable(out io.Writer, rooms []domain.Room, self string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tNAME\tOWNER\tPARTICIPANTS\tMEMBER")
	fmt.Fprintln(w, "--\t----\t-----\t------------\t------")
	if len(rooms) == 0 {
		fmt.Fprintln(w, "No rooms found")
		return
	}
	for _, r := range rooms {
		member := "no"
		switch {
		case r.IsOwnedBy(self):
			member = "owner"
		case r.IsParticipant:
			member = "yes"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", r.ID, r.Name, r.OwnerUsername, r.ParticipantsCount, member)
	}
}

func parseRoomID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid room id %q", s)
	}
	return id, nil
}

func init() {
	roomsListCmd.Flags().StringVarP(&roomsOutputFormat, "format", "f", "table", "output format: table or json")

	roomsCmd.AddCommand(roomsListCmd, roomsCreateCmd, roomsJoinCmd, roomsLeaveCmd, roomsDeleteCmd, roomsShowCmd)
	rootCmd.AddCommand(roomsCmd)
}
