package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"scoreline/admission"
	"scoreline/api"
	"scoreline/config"
	"scoreline/core"
	"scoreline/gateway"
	"scoreline/service"
	"scoreline/util/goroutine"

	"go.uber.org/zap"
)

// shutdownTimeout bounds each shutdown phase.
const shutdownTimeout = 10 * time.Second

// App represents the scoreline application with all its components.
type App struct {
	// Configuration
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	// Storage
	Storage *StorageComponents
	Redis   *core.RedisCache

	// Services
	Gateway    *gateway.Gateway
	Matches    *service.MatchService
	Commentary *service.CommentaryService
	APIServer  *api.API

	// Lifecycle
	serviceWg    sync.WaitGroup
	serverErr    chan error
	shutdownOnce sync.Once
}

// NewApp loads configuration and the logger, then initializes all components.
func NewApp(ctx context.Context) (*App, error) {
	cfg, err := InitConfig()
	if err != nil {
		return nil, err
	}

	logger, sugar, err := InitLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	sugar.Info("Scoreline starting...")
	logConfig(cfg, sugar)

	app, err := NewAppWithConfig(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return app, nil
}

// NewAppWithConfig initializes all components from an already loaded config.
// Resources opened before a failure are released.
func NewAppWithConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	sugar := logger.Sugar()
	app := &App{
		Config:    cfg,
		Logger:    logger,
		Sugar:     sugar,
		serverErr: make(chan error, 1),
	}

	storageComponents, err := InitSQLite(cfg, sugar)
	if err != nil {
		return nil, err
	}
	app.Storage = storageComponents

	redis, err := InitRedis(ctx, cfg, sugar)
	if err != nil {
		app.closeBackends()
		return nil, err
	}
	app.Redis = redis

	wsPolicy, err := admission.NewPolicyFromConfig(cfg, admission.ProfileWebSocket, redis, sugar)
	if err != nil {
		app.closeBackends()
		return nil, fmt.Errorf("failed to build websocket admission policy: %w", err)
	}
	httpPolicy, err := admission.NewPolicyFromConfig(cfg, admission.ProfileHTTP, redis, sugar)
	if err != nil {
		app.closeBackends()
		return nil, fmt.Errorf("failed to build http admission policy: %w", err)
	}

	app.Gateway = gateway.New(gateway.OptionsFromConfig(cfg), wsPolicy, sugar.With("component", "gateway"))
	publisher := app.Gateway.Broadcaster()
	app.Matches = service.NewMatchService(storageComponents.Matches, publisher, sugar.With("component", "matches"))
	app.Commentary = service.NewCommentaryService(storageComponents.Commentary, publisher, sugar.With("component", "commentary"))

	app.APIServer = api.NewAPI(api.Dependencies{
		Matches:    app.Matches,
		Commentary: app.Commentary,
		Health:     storageComponents.SQLite,
		Gateway:    app.Gateway,
		WSPath:     app.Gateway.Path(),
		Admission:  httpPolicy,
	}, cfg, sugar.With("component", "api"))

	sugar.Info("Application initialized")
	return app, nil
}

// Start starts the liveness monitor and the HTTP server.
func (a *App) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	a.Gateway.Start()

	goroutine.Go("http-server", a.Sugar, &a.serviceWg, func() {
		if err := a.APIServer.Start(a.Config.Addr()); err != nil {
			a.Sugar.Errorw("HTTP server failed", "error", err)
			a.serverErr <- err
		}
	})

	a.Sugar.Infow("Scoreline started",
		"addr", a.Config.Addr(),
		"ws_path", a.Gateway.Path())
	return nil
}

// WaitForShutdown blocks until SIGINT, SIGTERM or an HTTP server failure.
func (a *App) WaitForShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(c)

	select {
	case sig := <-c:
		a.Sugar.Infow("Shutdown signal received", "signal", sig.String())
	case err := <-a.serverErr:
		a.Sugar.Errorw("Stopping after server failure", "error", err)
	}
}

// Shutdown gracefully shuts down all components. It is safe to call more
// than once.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(a.shutdown)
}

func (a *App) shutdown() {
	a.Sugar.Info("Shutting down...")

	// Phase 1 - Stop accepting HTTP requests and upgrades
	a.Sugar.Info("Phase 1: Stopping HTTP server...")
	if a.APIServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.APIServer.Stop(ctx); err != nil {
			a.Sugar.Errorw("Error stopping HTTP server", "error", err)
		}
		cancel()
	}

	// Phase 2 - Stop heartbeat and close every WebSocket client with 1001
	a.Sugar.Info("Phase 2: Stopping gateway...")
	if a.Gateway != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.Gateway.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.Sugar.Warnw("Gateway did not drain before timeout", "error", err)
		}
		cancel()
	}

	// Phase 3 - Wait for background services
	a.Sugar.Info("Phase 3: Waiting for services to stop...")
	a.serviceWg.Wait()

	// Phase 4 - Close admission backends and storage
	a.Sugar.Info("Phase 4: Closing storage...")
	a.closeBackends()

	a.Sugar.Info("Shutdown complete")
	_ = a.Logger.Sync()
}

func (a *App) closeBackends() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Sugar.Errorw("Error closing Redis", "error", err)
		}
		a.Redis = nil
	}
	if a.Storage != nil && a.Storage.SQLite != nil {
		if err := a.Storage.SQLite.Close(); err != nil {
			a.Sugar.Errorw("Error closing SQLite", "error", err)
		}
		a.Storage.SQLite = nil
	}
}
