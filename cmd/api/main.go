// Command api is the Matchsheet ingest server.
//
// Usage:
//
//	matchsheet-api
//	SHEET_ID=... GOOGLE_SA_JSON_B64=... PORT=8080 matchsheet-api

// @title Matchsheet Ingest API
// @version 1.0.0
// @description Receives in-game match telemetry, normalizes it into rows and appends them to a spreadsheet.
// @host localhost:8080
// @BasePath /
// @schemes http https
// @contact.name Matchsheet
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/albapepper/matchsheet/internal/api"
	"github.com/albapepper/matchsheet/internal/config"
	"github.com/albapepper/matchsheet/internal/ingest"

	_ "github.com/albapepper/matchsheet/docs" // swagger docs
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Open the append sink
	appender, closeSink, err := ingest.OpenAppender(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open sink", "driver", cfg.SinkDriver, "error", err)
		os.Exit(1)
	}
	defer closeSink()
	logger.Info("Sink configured", "driver", cfg.SinkDriver, "sheet_id", cfg.SheetID, "tab", cfg.SheetName)

	svc := ingest.New(appender, cfg.SheetID, cfg.SheetName, logger)

	// Create router
	router := api.NewRouter(svc, cfg, logger)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting Matchsheet ingest API",
			"addr", addr,
			"environment", cfg.Environment,
			"secret_required", cfg.SharedSecret != "",
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}

// newLogger emits JSON lines in production and text otherwise.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
