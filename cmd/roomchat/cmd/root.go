package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nfrund/roomchat/internal/app"
	"github.com/nfrund/roomchat/internal/config"
)

var configPath string

// appOptions is extended by tests.
var appOptions []app.Option

var rootCmd = &cobra.Command{
	Use:   "roomchat",
	Short: "Terminal client for the room chat service",
	Long: `roomchat signs in to the chat backend, manages rooms and joins them
over a websocket with automatic reconnection.

Configuration is read from an optional TOML file (--config or ROOMCHAT_CONFIG)
and overridden by environment variables such as ROOMCHAT_API_URL and
ROOMCHAT_WS_URL. A .env file in the working directory is loaded first.

Use "roomchat [command] --help" for more information about a command.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")
}

// loadApp reads the configuration and wires the services. Callers must Close
// the result.
func loadApp(cmd *cobra.Command) (*app.App, error) {
	if configPath != "" {
		if err := os.Setenv("ROOMCHAT_CONFIG", configPath); err != nil {
			return nil, err
		}
	}
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	opts := append([]app.Option{app.WithLogWriter(cmd.ErrOrStderr())}, appOptions...)
	return app.New(cfg, opts...)
}
