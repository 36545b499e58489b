package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Tyrowin/cipherrooms/internal/server"
)

func main() {
	// Local .env is optional.
	_ = godotenv.Load()

	cfg := server.NewConfigFromEnv()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		fileCfg, err := server.LoadConfigFile(path, cfg)
		if err != nil {
			log.Fatal(err)
		}
		cfg = fileCfg
	}
	server.SetConfig(cfg)

	logger := server.NewLogger(cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := server.NewHub(server.WithLogger(logger))
	go hub.Run()
	logger.Info("hub started", "default_room", hub.DefaultRoom(), "eviction_delay", cfg.EvictionDelay)

	httpServer := server.CreateServer(cfg.Port, server.SetupRoutes(hub))
	go func() {
		if err := server.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server crashed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	if err := server.ShutdownServer(httpServer, 10*time.Second); err != nil {
		logger.Error("http shutdown", "err", err)
	}
	if err := hub.Shutdown(5 * time.Second); err != nil {
		logger.Error("hub shutdown", "err", err)
	}
	logger.Info("shutdown complete")
}
