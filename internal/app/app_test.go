package app

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/roomchat/internal/api"
	"github.com/nfrund/roomchat/internal/chat"
	"github.com/nfrund/roomchat/internal/pubsub"
	"github.com/nfrund/roomchat/internal/testutils"
)

func TestNew_WiresServices(t *testing.T) {
	srv := testutils.NewChatServer(t, map[string]string{"alice": "pw"})
	cfg := testutils.ConfigForServer(t, srv)

	var logs bytes.Buffer
	a, err := New(cfg, WithFs(afero.NewMemMapFs()), WithLogWriter(&logs))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Same(t, cfg, a.Config)
	assert.Equal(t, cfg.SessionFile, a.Session.Path())
	assert.Equal(t, "en", a.Translator.Language().String())
}

func TestApp_LoginThenJoin(t *testing.T) {
	srv := testutils.NewChatServer(t, map[string]string{"alice": "pw"})
	roomID := srv.CreateRoom("General", "alice")
	srv.Seed(roomID, "alice", "first", time.Now().Add(-time.Minute))

	a, err := New(testutils.ConfigForServer(t, srv), WithFs(afero.NewMemMapFs()), WithLogWriter(&bytes.Buffer{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loaded := make(chan chat.HistoryLoaded, 1)
	require.NoError(t, pubsub.Subscribe(ctx, a.Bus, chat.EventHistoryLoaded,
		func(_ context.Context, _ string, h chat.HistoryLoaded) error {
			loaded <- h
			return nil
		}))

	_, err = a.API.Login(ctx, api.Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, srv.Token("alice"), a.Session.Credential())

	room, err := a.Chat.Join(ctx, "1")
	require.NoError(t, err)

	select {
	case h := <-loaded:
		assert.Equal(t, 1, h.Kept)
	case <-time.After(3 * time.Second):
		t.Fatal("history was never published")
	}
	assert.Equal(t, chat.StateOpen, room.State())
}
