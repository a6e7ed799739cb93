package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/josh-vincent/roast-me-characters-sub001/ai"
	"github.com/josh-vincent/roast-me-characters-sub001/auth"
	"github.com/josh-vincent/roast-me-characters-sub001/cache"
	"github.com/josh-vincent/roast-me-characters-sub001/config"
	"github.com/josh-vincent/roast-me-characters-sub001/credits"
	"github.com/josh-vincent/roast-me-characters-sub001/database"
	handler "github.com/josh-vincent/roast-me-characters-sub001/handlers"
	"github.com/josh-vincent/roast-me-characters-sub001/health"
	"github.com/josh-vincent/roast-me-characters-sub001/pipeline"
	"github.com/josh-vincent/roast-me-characters-sub001/router"
	"github.com/josh-vincent/roast-me-characters-sub001/shortlink"
	"github.com/josh-vincent/roast-me-characters-sub001/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg)

	if err := run(cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.Config) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var h slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.IsProduction() {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h).With("service", "roast-me-characters", "env", cfg.Environment))
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			slog.Error("closing the database connection", "error", err)
		}
	}()

	if err := database.Migrate(db); err != nil {
		return err
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	cacheStore, err := cache.New(ctx, cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, using in-process cache", "addr", cfg.Redis.Addr, "error", err)
	}
	if closer, ok := cacheStore.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				slog.Error("closing the cache connection", "error", err)
			}
		}()
	}

	client, err := ai.NewClient(ctx, cfg.AI)
	if err != nil {
		return err
	}
	httpClient := ai.NewHTTPClient(cfg.AI.Timeout)
	analyzer := ai.NewAnalyzer(client.Models, cfg.AI, httpClient)
	generator := ai.NewGenerator(client.Models, cfg.AI, store, httpClient)

	ledger := credits.NewLedger(db)
	h := handler.New(handler.Deps{
		DB:       db,
		Pipeline: pipeline.New(db, store, analyzer, generator, ledger, cfg.Credits),
		Links:    shortlink.NewService(db, cacheStore, cfg.BaseURL, cfg.ShortLinkCacheTTL),
		Ledger:   ledger,
		Catalog:  credits.NewCatalog(cfg),
		Health: health.NewChecker(cfg.Environment, health.DefaultTimeout,
			health.DatabaseCheck(db),
			health.StorageCheck(store),
			health.CacheCheck(cacheStore),
		),
	})

	app := router.New(cfg, h, auth.NewTokenService(cfg.JWTSecret))

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server is listening", "port", cfg.Port, "storage", cfg.Storage.Driver, "cache", cacheStore.Name())
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	return app.ShutdownWithTimeout(10 * time.Second)
}
