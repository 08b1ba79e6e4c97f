// Package app composes the chat client: engine, room lifecycle, live channel
// and signaling, wired with fx.
package app

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/matheus3301/storechat/internal/api"
	"github.com/matheus3301/storechat/internal/bus"
	"github.com/matheus3301/storechat/internal/channel"
	"github.com/matheus3301/storechat/internal/config"
	"github.com/matheus3301/storechat/internal/history"
	"github.com/matheus3301/storechat/internal/logging"
	"github.com/matheus3301/storechat/internal/outbox"
	"github.com/matheus3301/storechat/internal/profile"
	"github.com/matheus3301/storechat/internal/receipt"
	"github.com/matheus3301/storechat/internal/room"
	"github.com/matheus3301/storechat/internal/status"
	chatsync "github.com/matheus3301/storechat/internal/sync"
	"github.com/matheus3301/storechat/internal/typing"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Params holds the resolved client configuration.
type Params struct {
	UserName    string
	Counterpart string // optional name to open once connected
	Config      *config.Config
	LogPath     string // optional override; empty = profile.LogPath("chattui")
	Console     bool
}

// Module returns the fx module for the chat client.
func Module(p Params) fx.Option {
	if p.Config == nil {
		p.Config = config.Default()
	}
	return fx.Module("app",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			bus.New,
			provideClock,
			status.NewMachine,
			provideBackend,
			provideLoader,
			provideEngine,
			provideInbox,
			provideChannel,
			provideReceipts,
			provideTyping,
			provideSender,
			provideRoom,
			NewSession,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	path := p.LogPath
	if path == "" {
		path = profile.LogPath("chattui")
	}
	return logging.New(path, "chattui", p.Console)
}

func provideClock() clock.Clock {
	return clock.New()
}

func provideBackend(p Params) (*api.Client, error) {
	return api.Dial(p.Config.Server.BackendAddr)
}

func provideLoader(p Params, backend *api.Client, logger *zap.Logger) *history.Loader {
	return history.NewLoader(backend, p.Config.Sync.HistoryLimit, logger.Named("history"))
}

func provideEngine(p Params, clk clock.Clock, b *bus.Bus, logger *zap.Logger) *chatsync.Engine {
	return chatsync.NewEngine(chatsync.Options{
		EchoTolerance: p.Config.Sync.EchoTolerance.Duration,
		Clock:         clk,
		Bus:           b,
		Logger:        logger.Named("sync"),
	})
}

func provideInbox(b *bus.Bus) *chatsync.Inbox {
	return chatsync.NewInbox(b)
}

func provideChannel(p Params, m *status.Machine, b *bus.Bus, clk clock.Clock, logger *zap.Logger) *channel.Manager {
	c := p.Config.Channel
	return channel.NewManager(channel.Config{
		URL:               p.Config.Server.ChannelURL,
		ReconnectAttempts: c.ReconnectAttempts,
		ReconnectBackoff:  c.ReconnectBackoff.Duration,
		DialTimeout:       c.DialTimeout.Duration,
	}, m, b, clk, logger.Named("channel"))
}

func provideReceipts(p Params, engine *chatsync.Engine, backend *api.Client, ch *channel.Manager, clk clock.Clock, logger *zap.Logger) *receipt.Debouncer {
	return receipt.NewDebouncer(receipt.Config{
		QuietPeriod: p.Config.Receipts.QuietPeriod.Duration,
		MinInterval: p.Config.Receipts.MinInterval.Duration,
	}, engine, backend, ch, clk, logger.Named("receipt"))
}

func provideTyping(p Params, engine *chatsync.Engine, ch *channel.Manager, clk clock.Clock, b *bus.Bus, logger *zap.Logger) *typing.Controller {
	return typing.NewController(p.Config.Typing.IdleTimeout.Duration, ch, engine, clk, b, logger.Named("typing"))
}

func provideSender(engine *chatsync.Engine, ch *channel.Manager, backend *api.Client, inbox *chatsync.Inbox, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(engine, ch, backend, inbox, b, logger.Named("outbox"))
}

func provideRoom(engine *chatsync.Engine, inbox *chatsync.Inbox, loader *history.Loader, backend *api.Client,
	ch *channel.Manager, receipts *receipt.Debouncer, typ *typing.Controller, sender *outbox.Sender,
	b *bus.Bus, logger *zap.Logger) *room.Controller {
	return room.NewController(room.Deps{
		Engine:   engine,
		Inbox:    inbox,
		Loader:   loader,
		Backend:  backend,
		Channel:  ch,
		Receipts: receipts,
		Typing:   typ,
		Sender:   sender,
		Bus:      b,
		Logger:   logger.Named("room"),
	})
}

func registerLifecycle(lc fx.Lifecycle, s *Session, backend *api.Client, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			s.room.Start(ctx)
			go func() {
				if err := s.Connect(ctx); err != nil {
					logger.Error("session start failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			cancel()
			err := s.Close()
			err = multierr.Append(err, backend.Close())
			if err != nil {
				logger.Warn("client stopped with errors", zap.Error(err))
			}
			_ = logger.Sync()
			return err
		},
	})
}
