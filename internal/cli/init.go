// Package cli provides common initialization utilities shared by
// cmd/kasboek and cmd/kasboek-backup.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kasboek/internal/config"
	"kasboek/internal/journal"
	applog "kasboek/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Configuration load failed", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// SetupLogger installs the file-backed logger for the configured
// directory and level, or exits on failure.
func SetupLogger(cfg *config.Config) *applog.Logger {
	logger, err := applog.Setup(cfg.LogDirectory(), cfg.LogLevel())
	if err != nil {
		slog.Error("Logger setup failed", "error", err, "directory", cfg.LogDirectory())
		os.Exit(1)
	}
	return logger
}

// OpenJournal opens the audit journal database, or exits on failure.
func OpenJournal(dbPath string) *journal.Journal {
	j, err := journal.Open(dbPath)
	if err != nil {
		slog.Error("Failed to open audit journal", "error", err, "path", dbPath)
		os.Exit(1)
	}
	return j
}

// ShutdownSignal returns a context cancelled on SIGINT or SIGTERM, plus
// a cancel func so the quit endpoint can trigger the same path.
func ShutdownSignal() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigChan:
			slog.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// ShutdownTimeout bounds how long a graceful stop may take.
const ShutdownTimeout = 30 * time.Second
