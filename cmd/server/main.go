package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/royalties/internal/app"
	"github.com/JonMunkholm/royalties/internal/config"
	"github.com/JonMunkholm/royalties/internal/core"
	"github.com/JonMunkholm/royalties/internal/database"
	"github.com/JonMunkholm/royalties/internal/logging"
	"github.com/JonMunkholm/royalties/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"jobs_backend", cfg.Jobs.Backend,
		"jobs_workers", cfg.Jobs.Workers,
		"storage", cfg.Storage.Provider,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()
	deps, err := app.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer deps.Close()

	applied, err := database.Migrate(ctx, deps.Pool)
	if err != nil {
		slog.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}
	if len(applied) > 0 {
		slog.Info("migrations applied", "versions", applied)
	}

	dispatcher, err := deps.NewDispatcher(ctx)
	if err != nil {
		slog.Error("failed to create job dispatcher", "error", err)
		os.Exit(1)
	}

	service := deps.NewService(dispatcher)
	runner := deps.NewRunner(service)

	// Background work stops when jobCtx is cancelled
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := dispatcher.Start(jobCtx, runner.Handle); err != nil {
			slog.Error("job dispatcher stopped", "error", err)
		}
	}()

	if n, err := service.RequeuePending(ctx); err != nil {
		slog.Warn("failed to requeue pending units", "error", err)
	} else if n > 0 {
		slog.Info("pending units requeued", "count", n)
	}

	if cfg.Reaper.Enabled {
		go service.StartReaper(jobCtx, core.ReaperConfig{
			Interval:   cfg.Reaper.Interval,
			StuckAfter: cfg.Reaper.StuckAfter,
		})
	}

	server := web.NewServer(service, cfg, deps.Pool.Ping)

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		cancelJobs()
		<-workerDone

		slog.Info("waiting for running jobs")
		if err := dispatcher.Close(shutdownCtx); err != nil {
			slog.Warn("jobs did not complete in time", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		cancelJobs()
		os.Exit(1)
	}
	<-stopped
	slog.Info("server stopped")
}
