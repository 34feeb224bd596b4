// Command backend is the core movi API: accounts, library lists, reviews,
// the follow graph and the activity log, stored in SQLite.
package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/sakif/movi/internal/config"
	sqliteRepo "github.com/sakif/movi/internal/repository/sqlite"
	"github.com/sakif/movi/internal/server"
)

func main() {
	// === 1. ENVIRONMENT ===
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
	if err := cfg.Backend.Validate(); err != nil {
		slog.Error("invalid backend config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 3. LOGGING ===
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))

	// === 4. DATABASE ===
	// MkdirAll is `mkdir -p`: the data directory may not exist on first run.
	dbDir := filepath.Dir(cfg.Backend.DBPath)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", dbDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	db, err := sqliteRepo.New(cfg.Backend.DBPath)
	if err != nil {
		logger.Error("failed to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 5. START ===
	// The server owns db from here on and closes it on shutdown.
	srv, err := server.NewBackend(cfg, db, logger)
	if err != nil {
		db.Close()
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if !cfg.Backend.CatalogEnabled {
		logger.Info("catalog disabled; list items carry only their id")
	}
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
