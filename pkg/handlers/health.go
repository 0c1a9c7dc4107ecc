package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-spend/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-spend/pkg/config"
	"github.com/ekaya-inc/ekaya-spend/pkg/logging"
)

const storeCheckTimeout = 2 * time.Second

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
}

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
	LLMProvider string `json:"llm_provider"`
	LLMModel    string `json:"llm_model"`
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	cfg    *config.Config
	store  datasource.ConnectionTester
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. A nil store skips the store check.
func NewHealthHandler(cfg *config.Config, store datasource.ConnectionTester, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, store: store, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{Status: "ok"}
	status := http.StatusOK

	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), storeCheckTimeout)
		defer cancel()
		if err := h.store.TestConnection(ctx); err != nil {
			h.logger.Warn("Store health check failed", zap.String("error", logging.SanitizeError(err)))
			response = HealthResponse{Status: "degraded", Store: "unavailable"}
			status = http.StatusServiceUnavailable
		} else {
			response.Store = "ok"
		}
	}

	if err := WriteJSON(w, status, response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "ekaya-spend",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
		LLMProvider: h.cfg.LLM.Provider,
		LLMModel:    h.cfg.LLM.Model,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
