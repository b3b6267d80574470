package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/roomchat/internal/testutils"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func setupServer(t *testing.T) (*testutils.ChatServer, int64) {
	t.Helper()
	srv := testutils.NewChatServer(t, map[string]string{"alice": "pw", "bob": "pw"})
	roomID := srv.CreateRoom("General", "alice", "bob")
	srv.Seed(roomID, "bob", "welcome aboard", time.Now().Add(-5*time.Minute))

	t.Setenv("ROOMCHAT_API_URL", srv.APIURL())
	t.Setenv("ROOMCHAT_WS_URL", srv.WebsocketURL())
	t.Setenv("ROOMCHAT_SESSION_FILE", filepath.Join(t.TempDir(), "session.json"))
	t.Setenv("ROOMCHAT_RECONNECT_BASE_DELAY", "10ms")
	t.Setenv("ROOMCHAT_RECONNECT_MAX_DELAY", "40ms")
	t.Setenv("LOG_LEVEL", "error")
	return srv, roomID
}

// run executes the command tree once. Flag variables are package state, so
// they are reset to their defaults first.
func run(t *testing.T, stdin io.Reader, out io.Writer, args ...string) error {
	t.Helper()
	configPath = ""
	authPassword, authEmail, authRole = "", "", ""
	roomsOutputFormat, eventsOutputFormat = "table", "table"
	exportOutput, exportTimeout = "", 10*time.Second

	if stdin == nil {
		stdin = strings.NewReader("")
	}
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func runOut(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(t, nil, &out, args...)
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := runOut(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "roomchat v"+version+"\n", out)
}

func TestEvents(t *testing.T) {
	out, err := runOut(t, "events")
	require.NoError(t, err)
	assert.Contains(t, out, "room.message_accepted")
	assert.Contains(t, out, "room.state_changed")

	out, err = runOut(t, "events", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "room.history_loaded"`)
}

func TestLoginWhoamiLogout(t *testing.T) {
	setupServer(t)

	out, err := runOut(t, "login", "-u", "alice", "-p", "pw")
	require.NoError(t, err)
	assert.Equal(t, "Logged in as alice (CUSTOMER)\n", out)

	out, err = runOut(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Username: alice")
	assert.Contains(t, out, "Role:     CUSTOMER")

	_, err = runOut(t, "logout")
	require.NoError(t, err)

	_, err = runOut(t, "whoami")
	assert.ErrorIs(t, err, errNotLoggedIn)
}

func TestLogin_PasswordFromStdin(t *testing.T) {
	setupServer(t)

	var out bytes.Buffer
	require.NoError(t, run(t, strings.NewReader("pw\n"), &out, "login", "-u", "bob"))
	assert.Equal(t, "Logged in as bob (CUSTOMER)\n", out.String())
}

func TestLogin_Rejected(t *testing.T) {
	setupServer(t)

	_, err := runOut(t, "login", "-u", "alice", "-p", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unable to log in with provided credentials.")
}

func TestRooms(t *testing.T) {
	_, roomID := setupServer(t)
	id := strconv.FormatInt(roomID, 10)

	_, err := runOut(t, "login", "-u", "alice", "-p", "pw")
	require.NoError(t, err)

	out, err := runOut(t, "rooms", "create", "Lounge")
	require.NoError(t, err)
	assert.Equal(t, "Created room 2 \"Lounge\"\n", out)

	out, err = runOut(t, "rooms", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "General")
	assert.Contains(t, out, "Lounge")
	assert.Contains(t, out, "owner")

	out, err = runOut(t, "rooms", "list", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "Lounge"`)

	out, err = runOut(t, "rooms", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "# General (owner alice)")
	assert.Contains(t, out, "bob: welcome aboard")

	_, err = runOut(t, "rooms", "delete", id)
	assert.EqualError(t, err, "only admins can delete rooms")

	_, err = runOut(t, "rooms", "show", "abc")
	assert.EqualError(t, err, `invalid room id "abc"`)
}

func TestChat_SendsTypedLines(t *testing.T) {
	srv, roomID := setupServer(t)
	_, err := runOut(t, "login", "-u", "alice", "-p", "pw")
	require.NoError(t, err)

	stdin, input := io.Pipe()
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- run(t, stdin, out, "chat", strconv.FormatInt(roomID, 10)) }()

	require.Eventually(t, func() bool { return strings.Contains(out.String(), "Connected to General as alice") },
		3*time.Second, 10*time.Millisecond, out.String())
	assert.Contains(t, out.String(), "bob: welcome aboard")

	_, err = io.WriteString(input, "hello everyone\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		got := srv.Contents(roomID)
		return len(got) == 2 && got[1] == "alice: hello everyone"
	}, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "alice: hello everyone") },
		3*time.Second, 10*time.Millisecond)

	_, err = io.WriteString(input, "/quit\n")
	require.NoError(t, err)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("chat did not exit on /quit")
	}
	_ = input.Close()
}

func TestChat_NotLoggedIn(t *testing.T) {
	_, roomID := setupServer(t)

	_, err := runOut(t, "chat", strconv.FormatInt(roomID, 10))
	require.Error(t, err)
	assert.Equal(t, "Session error: credential not found", err.Error())
}

func TestExport(t *testing.T) {
	_, roomID := setupServer(t)
	_, err := runOut(t, "login", "-u", "alice", "-p", "pw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "general.html")
	_, err = runOut(t, "export", strconv.FormatInt(roomID, 10), "--output", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(data)
	assert.True(t, strings.HasPrefix(html, "<!doctype html>"), html)
	assert.Contains(t, html, "welcome aboard")
	assert.Contains(t, html, "General")
}
