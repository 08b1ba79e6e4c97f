package daemon

import (
	"context"

	"github.com/matheus3301/storechat/internal/api"
	"github.com/matheus3301/storechat/internal/hub"
	"github.com/matheus3301/storechat/internal/lock"
	"github.com/matheus3301/storechat/internal/logging"
	"github.com/matheus3301/storechat/internal/profile"
	"github.com/matheus3301/storechat/internal/store"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Params holds the resolved chatd configuration passed to the fx module.
type Params struct {
	DataDir     string
	ListenGRPC  string
	ListenHTTP  string
	JoinHistory int
	LogPath     string // optional override for testing; empty = profile.LogPath("chatd")
	Console     bool
}

// Module returns the fx module for chatd, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideLock,
			provideStore,
			hub.NewRouter,
			provideHub,
			provideBackendService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	path := p.LogPath
	if path == "" {
		path = profile.LogPath("chatd")
	}
	return logging.New(path, "chatd", p.Console)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	dir := profile.DataDir(p.DataDir)
	logger.Info("acquiring data directory lock", zap.String("dir", dir))
	l, err := lock.Acquire(dir)
	if err != nil {
		return nil, err
	}
	logger.Info("data directory lock acquired")
	return l, nil
}

// provideStore depends on the lock so the database is only opened by its owner.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(profile.DataDir(p.DataDir))
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed() {
		logger.Info("migrations applied", zap.Uint("from", result.From), zap.Uint("version", result.To))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.To))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideHub(p Params, router *hub.Router, db *store.DB, logger *zap.Logger) *hub.Hub {
	return hub.New(router, db, p.JoinHistory, logger.Named("hub"))
}

func provideBackendService(db *store.DB, logger *zap.Logger) *api.BackendService {
	return api.NewBackendService(db, logger.Named("api"))
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, h *hub.Hub, db *store.DB, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			srv.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			h.Close()
			err := srv.Stop(ctx)
			err = multierr.Append(err, db.Close())
			err = multierr.Append(err, lk.Release())
			if err != nil {
				logger.Warn("shutdown finished with errors", zap.Error(err))
			} else {
				logger.Info("chatd stopped")
			}
			_ = logger.Sync()
			return err
		},
	})
}
