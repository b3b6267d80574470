// Package app builds the client's object graph. Every command of the CLI
// starts from one App.
package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/samber/do/v2"
	"github.com/spf13/afero"

	"github.com/nfrund/roomchat/internal/api"
	"github.com/nfrund/roomchat/internal/chat"
	"github.com/nfrund/roomchat/internal/config"
	"github.com/nfrund/roomchat/internal/i18n"
	"github.com/nfrund/roomchat/internal/logging"
	"github.com/nfrund/roomchat/internal/pubsub"
	"github.com/nfrund/roomchat/internal/session"
)

// App holds the services shared by the commands.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Translator *i18n.Translator
	Session    *session.FileStore
	Bus        *pubsub.WatermillBridge
	API        *api.Client
	Chat       *chat.Client

	injector *do.RootScope
}

type options struct {
	fs        afero.Fs
	logWriter io.Writer
	roomOpts  []chat.Option
}

// Option customizes New.
type Option func(*options)

// WithFs stores the session on fs instead of the OS file system.
func WithFs(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

// WithLogWriter sends logs to w instead of stderr.
func WithLogWriter(w io.Writer) Option {
	return func(o *options) { o.logWriter = w }
}

// WithRoomOptions appends options applied to every room the App opens.
func WithRoomOptions(opts ...chat.Option) Option {
	return func(o *options) { o.roomOpts = append(o.roomOpts, opts...) }
}

// New wires every service from cfg.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	o := options{fs: afero.NewOsFs(), logWriter: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	injector := do.New()
	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, o.fs)

	do.Provide(injector, func(i do.Injector) (*slog.Logger, error) {
		c := do.MustInvoke[*config.Config](i)
		return logging.NewWithWriter(o.logWriter, c.LogFormat, c.LogLevel), nil
	})
	do.Provide(injector, func(i do.Injector) (*i18n.Translator, error) {
		return i18n.New(do.MustInvoke[*config.Config](i).Locale), nil
	})
	do.Provide(injector, func(i do.Injector) (*session.FileStore, error) {
		c := do.MustInvoke[*config.Config](i)
		return session.NewFileStore(do.MustInvoke[afero.Fs](i), c.SessionFile)
	})
	do.Provide(injector, func(i do.Injector) (*pubsub.WatermillBridge, error) {
		return pubsub.NewWatermillBridge(), nil
	})
	do.Provide(injector, func(i do.Injector) (*api.Client, error) {
		c := do.MustInvoke[*config.Config](i)
		store := do.MustInvoke[*session.FileStore](i)
		logger := do.MustInvoke[*slog.Logger](i)
		return api.New(c.APIURL, store, api.WithLogger(logger.With("component", "api"))), nil
	})
	do.Provide(injector, func(i do.Injector) (*chat.Client, error) {
		c := do.MustInvoke[*config.Config](i)
		// The logger is installed as the default; rooms derive theirs from it.
		do.MustInvoke[*slog.Logger](i)
		roomOpts := []chat.Option{
			chat.WithPublisher(do.MustInvoke[*pubsub.WatermillBridge](i)),
			chat.WithTranslator(do.MustInvoke[*i18n.Translator](i)),
			chat.WithReconnect(c.Reconnect.BaseDelay.Duration, c.Reconnect.MaxDelay.Duration, c.Reconnect.MaxAttempts),
			chat.WithTyping(c.Typing.StopDelay.Duration, c.Typing.MinInterval.Duration),
			chat.WithRefreshInterval(c.TimeRefresh.Duration),
		}
		roomOpts = append(roomOpts, o.roomOpts...)
		return chat.NewClient(c.WebsocketURL, do.MustInvoke[*session.FileStore](i), roomOpts...), nil
	})

	a := &App{Config: cfg, injector: injector}
	var err error
	if a.Logger, err = do.Invoke[*slog.Logger](injector); err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	if a.Translator, err = do.Invoke[*i18n.Translator](injector); err != nil {
		return nil, fmt.Errorf("failed to build translator: %w", err)
	}
	if a.Session, err = do.Invoke[*session.FileStore](injector); err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	if a.Bus, err = do.Invoke[*pubsub.WatermillBridge](injector); err != nil {
		return nil, fmt.Errorf("failed to build event bus: %w", err)
	}
	if a.API, err = do.Invoke[*api.Client](injector); err != nil {
		return nil, fmt.Errorf("failed to build api client: %w", err)
	}
	if a.Chat, err = do.Invoke[*chat.Client](injector); err != nil {
		return nil, fmt.Errorf("failed to build chat client: %w", err)
	}
	return a, nil
}

// Close tears down the open room, then the event bus.
func (a *App) Close() error {
	err := errors.Join(a.Chat.Close(), a.Bus.Close())
	a.injector.Shutdown()
	return err
}
