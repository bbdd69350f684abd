package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryan-buckman/marquee/internal/config"
	"github.com/bryan-buckman/marquee/internal/database"
	"github.com/bryan-buckman/marquee/internal/logger"
	"github.com/bryan-buckman/marquee/internal/presenter"
	"github.com/bryan-buckman/marquee/internal/repository"
	"github.com/bryan-buckman/marquee/internal/server"
	"github.com/bryan-buckman/marquee/internal/tmdb"
)

func main() {
	config.LoadEnvFiles()
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Init(cfg.Env, cfg.Debug)

	store, err := database.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		logger.Error("failed to open database", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("database ready", "type", store.DatabaseType())

	if cfg.TMDBAPIKey == "" {
		logger.Warn("TMDB_API_KEY is empty, catalog requests will be rejected")
	}
	client, err := tmdb.NewClient(tmdb.Options{
		BaseURL:           cfg.TMDBBaseURL,
		APIKey:            cfg.TMDBAPIKey,
		Language:          cfg.TMDBLanguage,
		Timeout:           cfg.HTTPTimeout,
		RequestsPerSecond: cfg.TMDBRPS,
	})
	if err != nil {
		logger.Error("failed to build catalog client", "error", err)
		os.Exit(1)
	}

	favorites := database.NewFavorites(store)
	repo := repository.New(client, favorites, repository.WithIOConcurrency(cfg.IOConcurrency))
	movies := presenter.New(repo)
	defer movies.Close()
	if cfg.RefreshInterval > 0 {
		movies.StartAutoRefresh(cfg.RefreshInterval)
	}

	srv := server.New(repo, favorites, movies)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(cfg.Addr) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			logger.Error("shutdown failed", "error", err)
		}
	}
}
