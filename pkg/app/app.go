// Package app wires the store, LLM client and services from configuration.
// The HTTP server and the offline CLI share it.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-spend/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/ekaya-spend/pkg/config"
	"github.com/ekaya-inc/ekaya-spend/pkg/llm"
	"github.com/ekaya-inc/ekaya-spend/pkg/logging"
	"github.com/ekaya-inc/ekaya-spend/pkg/repositories"
	"github.com/ekaya-inc/ekaya-spend/pkg/services"
)

// App holds the wired components. Close releases the store.
type App struct {
	Store   *sqlite.Store
	LLM     llm.LLMClient // nil when no client could be configured
	Catalog services.CatalogService
	Uploads services.UploadService
}

// Options override collaborators, mainly for tests.
type Options struct {
	// LLM replaces the client built from configuration.
	LLM llm.LLMClient
}

// New opens the store and builds the services. A missing or invalid LLM
// configuration is not fatal: every batch then takes the fallback category.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	store, err := sqlite.Open(ctx, cfg.Store.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	client := opts.LLM
	if client == nil {
		client, err = llm.NewClientFromConfig(cfg.LLM, logger)
		if err != nil {
			logger.Warn("LLM client unavailable, builds will use the fallback category",
				zap.String("provider", cfg.LLM.Provider),
				zap.String("error", logging.SanitizeError(err)))
		}
	}

	repo := repositories.NewCatalogRepository(store.DB())
	breaker := llm.NewCircuitBreaker(llm.DefaultCircuitBreakerConfig())
	classifier := services.NewCatalogClassifier(client, breaker, repo, services.ClassifierConfigFrom(cfg), logger)

	return &App{
		Store:   store,
		LLM:     client,
		Catalog: services.NewCatalogService(store, store, repo, classifier, nil, logger),
		Uploads: services.NewUploadService(store, logger),
	}, nil
}

// Close closes the store.
func (a *App) Close() error {
	return a.Store.Close()
}
