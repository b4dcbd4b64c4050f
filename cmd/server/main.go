// Package main is the entry point for the storefront server.
//
// main reads configuration from the environment (optionally seeded from a
// .env file), builds the logger and hands both to internal/server. All
// actual logic lives in the internal packages.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/sakif/storefront/internal/catalog"
	"github.com/sakif/storefront/internal/server"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(os.Getenv("LOG_LEVEL")),
	}))

	cfg, err := loadConfig(logger)
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.Backend == server.BackendSQLite {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	srv, err := server.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func loadConfig(logger *slog.Logger) (server.Config, error) {
	cfg := server.Config{
		Port:            8080,
		Backend:         getenv("STORE_BACKEND", server.BackendSQLite),
		DBPath:          getenv("DB_PATH", "data/storefront.db"),
		RedisURL:        getenv("REDIS_URL", "redis://localhost:6379/0"),
		RedisPrefix:     getenv("REDIS_PREFIX", "storefront:"),
		CatalogURL:      getenv("CATALOG_URL", catalog.DefaultBaseURL),
		CatalogTimeout:  catalog.DefaultTimeout,
		JWTSecret:       os.Getenv("JWT_SECRET"),
		PasswordHashing: getenv("PASSWORD_HASHING", server.PasswordsPlain),
	}

	if s := os.Getenv("PORT"); s != "" {
		port, err := strconv.Atoi(s)
		if err != nil {
			return cfg, fmt.Errorf("PORT %q: %w", s, err)
		}
		cfg.Port = port
	}

	if s := os.Getenv("CATALOG_TIMEOUT"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return cfg, fmt.Errorf("CATALOG_TIMEOUT %q: %w", s, err)
		}
		cfg.CatalogTimeout = d
	}

	if cfg.JWTSecret == "" {
		logger.Info("JWT_SECRET not set; using the secret kept in the store")
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
