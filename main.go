package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-spend/pkg/app"
	"github.com/ekaya-inc/ekaya-spend/pkg/config"
	"github.com/ekaya-inc/ekaya-spend/pkg/handlers"
	"github.com/ekaya-inc/ekaya-spend/pkg/logging"
	"github.com/ekaya-inc/ekaya-spend/pkg/middleware"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	storePath := cfg.Store.Path
	if storePath == "" {
		storePath = ":memory:"
	}
	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("store", storePath),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model),
		zap.String("llm_endpoint", logging.SanitizeText(cfg.LLM.BaseURL)),
		zap.Int("batch_size", cfg.Catalog.BatchSize))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		logger.Fatal("Failed to initialise application", zap.Error(err))
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Error("Failed to close store", zap.Error(err))
		}
	}()

	mux := http.NewServeMux()

	// Register handlers
	handlers.NewHealthHandler(cfg, application.Store, logger).RegisterRoutes(mux)
	handlers.NewCatalogHandler(application.Catalog, logger).RegisterRoutes(mux)
	handlers.NewTablesHandler(application.Uploads, cfg.Upload.MaxBytes, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           middleware.Recoverer(logger)(middleware.RequestLogger(logger)(mux)),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// Builds call the LLM once per batch and can run for minutes.
		WriteTimeout: 30 * time.Minute,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-spend", zap.String("addr", server.Addr), zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
	logger.Info("Server stopped")
}
