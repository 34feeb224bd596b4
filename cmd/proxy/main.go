// Command proxy serves TMDB and OpenLibrary metadata to the client so the
// TMDB key never leaves the server.
package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/sakif/movi/internal/config"
	"github.com/sakif/movi/internal/server"
)

func main() {
	// === 1. ENVIRONMENT ===
	// A .env file is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to read .env", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. CONFIGURATION ===
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := cfg.Proxy.Validate(); err != nil {
		slog.Error("invalid proxy config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 3. LOGGING ===
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))

	// === 4. START ===
	// Start blocks until SIGINT or SIGTERM.
	if err := server.NewProxy(cfg, logger).Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
