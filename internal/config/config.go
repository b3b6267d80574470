package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the chat client.
type Config struct {
	APIURL       string `toml:"api_url"`
	WebsocketURL string `toml:"websocket_url"`
	SessionFile  string `toml:"session_file"`
	Locale       string `toml:"locale"`

	Reconnect ReconnectConfig `toml:"reconnect"`
	Typing    TypingConfig    `toml:"typing"`

	// TimeRefresh is how often relative message times are recomputed.
	TimeRefresh Duration `toml:"time_refresh"`

	LogFormat string `toml:"log_format"`
	LogLevel  string `toml:"log_level"`
}

// ReconnectConfig bounds automatic reconnection after a server error closure.
type ReconnectConfig struct {
	MaxAttempts int      `toml:"max_attempts"`
	BaseDelay   Duration `toml:"base_delay"`
	MaxDelay    Duration `toml:"max_delay"`
}

// TypingConfig controls outbound typing signals.
type TypingConfig struct {
	StopDelay Duration `toml:"stop_delay"`
	// MinInterval is the minimum spacing between typing=true signals.
	MinInterval Duration `toml:"min_interval"`
}

// Duration lets TOML files use strings such as "2s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		APIURL:       "http://localhost:8000/api",
		WebsocketURL: "ws://localhost:8001",
		SessionFile:  defaultSessionFile(),
		Locale:       "en",
		Reconnect: ReconnectConfig{
			MaxAttempts: 5,
			BaseDelay:   Duration{time.Second},
			MaxDelay:    Duration{10 * time.Second},
		},
		Typing: TypingConfig{
			StopDelay:   Duration{2 * time.Second},
			MinInterval: Duration{250 * time.Millisecond},
		},
		TimeRefresh: Duration{30 * time.Second},
		LogFormat:   "text",
		LogLevel:    "info",
	}
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".roomchat/session.json"
	}
	return filepath.Join(home, ".roomchat", "session.json")
}

// New loads configuration from the optional TOML file named by ROOMCHAT_CONFIG,
// then applies environment variables (after loading a .env file if present).
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}

	cfg := Default()
	if path := os.Getenv("ROOMCHAT_CONFIG"); path != "" {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadTOML decodes the file at path over cfg, keeping values the file omits.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	setString("ROOMCHAT_API_URL", &c.APIURL)
	setString("ROOMCHAT_WS_URL", &c.WebsocketURL)
	setString("ROOMCHAT_SESSION_FILE", &c.SessionFile)
	setString("ROOMCHAT_LOCALE", &c.Locale)
	setString("LOG_FORMAT", &c.LogFormat)
	setString("LOG_LEVEL", &c.LogLevel)

	if v := getenv("ROOMCHAT_RECONNECT_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid ROOMCHAT_RECONNECT_MAX_ATTEMPTS %q: %w", v, err)
		}
		c.Reconnect.MaxAttempts = n
	}

	durations := []struct {
		key string
		dst *Duration
	}{
		{"ROOMCHAT_RECONNECT_BASE_DELAY", &c.Reconnect.BaseDelay},
		{"ROOMCHAT_RECONNECT_MAX_DELAY", &c.Reconnect.MaxDelay},
		{"ROOMCHAT_TYPING_STOP_DELAY", &c.Typing.StopDelay},
		{"ROOMCHAT_TYPING_MIN_INTERVAL", &c.Typing.MinInterval},
		{"ROOMCHAT_TIME_REFRESH", &c.TimeRefresh},
	}
	for _, d := range durations {
		v := getenv(d.key)
		if v == "" {
			continue
		}
		if err := d.dst.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.key, v, err)
		}
	}
	return nil
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.APIURL); err != nil {
		return fmt.Errorf("invalid api url %q: %w", c.APIURL, err)
	}
	u, err := url.Parse(c.WebsocketURL)
	if err != nil {
		return fmt.Errorf("invalid websocket url %q: %w", c.WebsocketURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("websocket url %q must use ws or wss", c.WebsocketURL)
	}
	if c.SessionFile == "" {
		return errors.New("session file path is required")
	}
	if c.Reconnect.MaxAttempts < 0 {
		return errors.New("reconnect max attempts cannot be negative")
	}
	if c.Reconnect.BaseDelay.Duration <= 0 || c.Reconnect.MaxDelay.Duration < c.Reconnect.BaseDelay.Duration {
		return errors.New("reconnect delays must be positive and max delay at least base delay")
	}
	if c.Typing.StopDelay.Duration <= 0 {
		return errors.New("typing stop delay must be positive")
	}
	return nil
}
