// Package app wires configuration into the shared dependencies both binaries
// run on: the Postgres pool, the file store, Redis, the job locker and the UI
// notifier.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JonMunkholm/royalties/internal/config"
	"github.com/JonMunkholm/royalties/internal/core"
	"github.com/JonMunkholm/royalties/internal/filestore"
	"github.com/JonMunkholm/royalties/internal/jobs"
	"github.com/JonMunkholm/royalties/internal/notify"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// App holds opened dependencies. Close releases them.
type App struct {
	Config   *config.Config
	Pool     *pgxpool.Pool
	Store    *core.PGStore
	Files    core.FileStore
	Redis    *redis.Client
	Locker   jobs.Locker
	Notifier core.Notifier
}

// Open connects to Postgres, the file store and, when REDIS_ADDR is set,
// Redis. Without Redis, job locks are process-local and notifications are
// only logged.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	pool, err := OpenPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.Pool = pool
	a.Store = core.NewPGStore(pool)

	files, err := filestore.New(ctx, filestore.Options{
		Provider:        strings.ToLower(cfg.Storage.Provider),
		LocalDir:        cfg.Storage.LocalDir,
		Bucket:          cfg.Storage.Bucket,
		CredentialsJSON: cfg.Storage.CredentialsJSON,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open file store: %w", err)
	}
	a.Files = files

	a.Locker = jobs.NopLocker{}
	a.Notifier = notify.LogNotifier{}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			a.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		a.Redis = rdb
		a.Locker = jobs.NewRedisLocker(rdb)
		a.Notifier = notify.NewRedisNotifier(rdb, cfg.Redis.Channel)
		slog.Info("connected to redis", "addr", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
	} else {
		slog.Info("redis not configured; using in-process locks and log notifications")
	}

	return a, nil
}

// OpenPool creates and pings a pgx pool sized from cfg.
func OpenPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}

// NewService builds the core service on top of the opened dependencies.
func (a *App) NewService(queue core.Enqueuer) *core.Service {
	return core.NewService(a.Store, a.Files, queue, a.Notifier)
}

// NewRunner builds the job runner for svc with the configured lock and timeout.
func (a *App) NewRunner(svc *core.Service) *jobs.Runner {
	return jobs.NewRunner(svc, a.Locker, jobs.RunnerConfig{
		LockTTL: a.Config.Jobs.LockTTL,
		Timeout: a.Config.Jobs.Timeout,
	})
}

// NewDispatcher creates the configured job backend.
func (a *App) NewDispatcher(ctx context.Context) (jobs.Dispatcher, error) {
	return jobs.New(ctx, jobs.Options{
		Backend:   strings.ToLower(a.Config.Jobs.Backend),
		Workers:   a.Config.Jobs.Workers,
		QueueSize: a.Config.Jobs.QueueSize,
		PubSub: jobs.PubSubOptions{
			ProjectID:       a.Config.PubSub.ProjectID,
			Topic:           a.Config.PubSub.Topic,
			Subscription:    a.Config.PubSub.Subscription,
			CredentialsJSON: a.Config.PubSub.CredentialsJSON,
		},
	})
}

// Close releases everything Open acquired.
func (a *App) Close() {
	if c, ok := a.Files.(io.Closer); ok {
		if err := c.Close(); err != nil {
			slog.Warn("close file store", "error", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			slog.Warn("close redis", "error", err)
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
