package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nfrund/roomchat/internal/chat"
)

var eventsOutputFormat string

type eventDisplay struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List the events a joined room publishes",
	Long: `List the topics rooms publish on the in-process event bus. The chat and
export commands render from these events.

Output formats:
  table - Human-readable table format (default)
  json  - Machine-readable JSON format`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		topics := chat.Topics.List()
		switch eventsOutputFormat {
		case "json":
			out := make([]eventDisplay, len(topics))
			for i, t := range topics {
				out[i] = eventDisplay{Name: t.Name(), Description: t.Description()}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		case "table":
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDESCRIPTION")
			fmt.Fprintln(w, "----\t-----------")
			for _, t := range topics {
				fmt.Fprintf(w, "%s\t%s\n", t.Name(), t.Description())
			}
			return w.Flush()
		default:
			return fmt.Errorf("unsupported output format %q; use 'table' or 'json'", eventsOutputFormat)
		}
	},
}

func init() {
	eventsCmd.Flags().StringVarP(&eventsOutputFormat, "format", "f", "table", "output format: table or json")
	rootCmd.AddCommand(eventsCmd)
}
