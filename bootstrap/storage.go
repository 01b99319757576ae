package bootstrap

import (
	"context"
	"fmt"
	"time"

	"scoreline/config"
	"scoreline/core"
	"scoreline/storage"

	"go.uber.org/zap"
)

// redisRetryDelays are the waits between Redis connection attempts.
var redisRetryDelays = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}

// StorageComponents holds all storage-related components.
type StorageComponents struct {
	SQLite     *storage.SQLite
	Matches    *storage.SQLiteMatchStorage
	Commentary *storage.SQLiteCommentaryStorage
}

// InitSQLite opens the database and builds the match and commentary stores.
func InitSQLite(cfg *config.Config, sugar *zap.SugaredLogger) (*StorageComponents, error) {
	path := cfg.Storage.SQLitePath
	if err := storage.ValidateDatabasePath(path); err != nil {
		err = fmt.Errorf("invalid database path: %w", err)
		printFatal("SQLite Initialization Failed", ClassifySQLiteError(err, path))
		return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
	}
	if err := EnsureDataDirectory(path, sugar); err != nil {
		return nil, fmt.Errorf("pre-flight check failed: %w", err)
	}

	sqlite, err := storage.NewSQLite(path, cfg.Storage.QueryTimeout, sugar)
	if err != nil {
		printFatal("SQLite Initialization Failed", ClassifySQLiteError(err, path))
		return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
	}

	sugar.Info("SQLite initialized successfully")
	return &StorageComponents{
		SQLite:     sqlite,
		Matches:    storage.NewSQLiteMatchStorage(sqlite, sugar),
		Commentary: storage.NewSQLiteCommentaryStorage(sqlite, sugar),
	}, nil
}

// InitRedis connects the shared admission window backend with retries. It
// returns nil without error when Redis is disabled.
func InitRedis(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (*core.RedisCache, error) {
	rc := cfg.Admission.Redis
	if !rc.Enabled {
		sugar.Info("Redis admission window disabled, using in-memory windows")
		return nil, nil
	}

	cache := core.NewRedisCache(rc.Addr, rc.Password, rc.DB, rc.PoolSize, sugar)
	var lastErr error
	for attempt := 0; attempt <= len(redisRetryDelays); attempt++ {
		if attempt > 0 {
			delay := redisRetryDelays[attempt-1]
			sugar.Infow("Retrying Redis connection",
				"attempt", attempt,
				"max_retries", len(redisRetryDelays),
				"delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				_ = cache.Close()
				return nil, ctx.Err()
			}
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		lastErr = cache.Ping(pingCtx)
		cancel()
		if lastErr == nil {
			sugar.Infow("Connected to Redis successfully", "addr", rc.Addr)
			return cache, nil
		}
		sugar.Warnw("Redis connection attempt failed", "attempt", attempt+1, "error", lastErr)
	}

	_ = cache.Close()
	printFatal("Redis Connection Failed", ClassifyRedisError(lastErr, rc.Addr))
	return nil, fmt.Errorf("failed to connect to Redis after %d attempts: %w", len(redisRetryDelays)+1, lastErr)
}
