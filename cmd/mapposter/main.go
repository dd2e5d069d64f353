package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"mapposter/internal/config"
	"mapposter/internal/http/server"
	"mapposter/internal/infra/geocode"
	"mapposter/internal/infra/logging"
	"mapposter/internal/infra/overpass"
	"mapposter/internal/render"
	"mapposter/internal/themes"
)

func main() {
	cfg := config.Load()
	// Allow the common container env var to override the listen port.
	if v := os.Getenv("PORT"); v != "" {
		if !strings.HasPrefix(v, ":") {
			v = ":" + v
		}
		cfg.Server.Port = v
	}
	logging.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)
	logging.SetLogLevel(cfg.Logger.Level)

	if cfg.Poster.KeepArtifacts {
		ensureDir(cfg.Poster.PostersDir)
	}

	store, err := themes.Load(cfg.Poster.ThemesDir)
	if err != nil {
		logging.Error("Failed to load theme catalog", "error", err)
		os.Exit(1)
	}
	logging.Info("Theme catalog loaded", "themes", store.Len())

	var rdb *redis.Client
	if cfg.Cache.RedisHost != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.PosterCacheDB,
		})
	}

	geocoder := geocode.New(cfg, geocode.NewCacheStorage(cfg))
	generator, err := render.NewGenerator(cfg, overpass.New(cfg))
	if err != nil {
		logging.Error("Failed to set up renderer", "error", err)
		os.Exit(1)
	}
	defer generator.Close()

	app := server.New(server.Deps{
		Config:   cfg,
		Themes:   store,
		Geocoder: geocoder,
		Renderer: generator,
		Redis:    rdb,
	})

	idleConnsClosed := make(chan struct{})
	startServer(app, cfg, idleConnsClosed)
	<-idleConnsClosed
}

// startServer starts the Fiber app and listens for shutdown signals.
func startServer(app *fiber.App, cfg config.Config, idleConnsClosed chan struct{}) {
	go func() {
		logging.Info("Server listening", "addr", cfg.Server.Host+cfg.Server.Port)
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			logging.Error("Server error", "error", err)
		}
	}()

	// Listen for OS termination signals
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	<-sigint

	logging.Warn("Shutdown signal received, closing server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	logging.Info("Server stopped cleanly")
}

// ensureDir creates dir when it does not exist yet. Directory paths are
// explicit configuration, checked once here instead of on every request.
func ensureDir(dir string) {
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logging.Error("Cannot create directory", "dir", dir, "error", err)
		os.Exit(1)
	}
}
