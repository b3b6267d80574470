package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"

	"github.com/nfrund/roomchat/internal/config"
	"github.com/nfrund/roomchat/internal/logging"
)

// ConfigForServer returns a validated configuration pointing at srv, with a
// session file under t.TempDir() and reconnect delays short enough for tests.
// Values from an optional .env.test at the module root are applied first.
func ConfigForServer(t *testing.T, srv *ChatServer) *config.Config {
	t.Helper()

	if root, ok := moduleRoot(); ok {
		env, err := godotenv.Read(filepath.Join(root, ".env.test"))
		if err == nil {
			for key, value := range env {
				t.Setenv(key, value)
			}
		}
	}
	logging.New()

	cfg := config.Default()
	cfg.APIURL = srv.APIURL()
	cfg.WebsocketURL = srv.WebsocketURL()
	cfg.SessionFile = filepath.Join(t.TempDir(), "session.json")
	cfg.Reconnect = config.ReconnectConfig{
		MaxAttempts: 3,
		BaseDelay:   config.Duration{Duration: 10 * time.Millisecond},
		MaxDelay:    config.Duration{Duration: 40 * time.Millisecond},
	}
	cfg.Typing.MinInterval = config.Duration{}
	cfg.TimeRefresh = config.Duration{}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config is invalid: %v", err)
	}
	return cfg
}

func moduleRoot() (string, bool) {
	path, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		if _, err := os.Stat(filepath.Join(path, "go.mod")); err == nil {
			return path, true
		}
		if path == filepath.Dir(path) {
			return "", false
		}
		path = filepath.Dir(path)
	}
}
