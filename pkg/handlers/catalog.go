package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-spend/pkg/models"
	"github.com/ekaya-inc/ekaya-spend/pkg/services"
	sqlutil "github.com/ekaya-inc/ekaya-spend/pkg/sql"
)

// maxImportBytes bounds POST /api/catalog/import bodies.
const maxImportBytes = 64 << 20

// CatalogHandler handles catalogue build, browse and portability requests.
type CatalogHandler struct {
	catalogService services.CatalogService
	logger         *zap.Logger
}

// NewCatalogHandler creates a new catalogue handler.
func NewCatalogHandler(catalogService services.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		logger:         logger.Named("catalog-handler"),
	}
}

// RegisterRoutes registers the catalogue routes on the given mux.
func (h *CatalogHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/api/catalog"

	mux.HandleFunc("POST "+base+"/build", h.Build)
	mux.HandleFunc("GET "+base+"/summary", h.Summary)
	mux.HandleFunc("GET "+base+"/profile", h.Profile)
	mux.HandleFunc("GET "+base+"/export", h.Export)
	mux.HandleFunc("POST "+base+"/import", h.Import)
}

// Build handles POST /api/catalog/build
func (h *CatalogHandler) Build(w http.ResponseWriter, r *http.Request) {
	result, err := h.catalogService.Build(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "Catalog build failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Summary handles GET /api/catalog/summary
func (h *CatalogHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.catalogService.Summary(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "Failed to load catalog summary", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: summary}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Profile handles GET /api/catalog/profile?subcategory=&supplier=
func (h *CatalogHandler) Profile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := map[string]any{
		"subcategory": strings.TrimSpace(q.Get("subcategory")),
		"supplier":    strings.TrimSpace(q.Get("supplier")),
	}

	if hits := sqlutil.CheckAllParameters(params); len(hits) > 0 {
		h.logger.Warn("Rejected profile parameters",
			zap.String("param", hits[0].ParamName),
			zap.String("fingerprint", hits[0].Fingerprint))
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_parameter", "Parameter "+hits[0].ParamName+" is not allowed"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	profile, err := h.catalogService.Profile(r.Context(), params["subcategory"].(string), params["supplier"].(string))
	if err != nil {
		writeServiceError(w, h.logger, "Failed to build profile", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: profile}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Export handles GET /api/catalog/export. The body is the bare export
// document so it can be posted back to /api/catalog/import unchanged.
func (h *CatalogHandler) Export(w http.ResponseWriter, r *http.Request) {
	export, err := h.catalogService.Export(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "Failed to export catalog", err)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="catalog.json"`)
	if err := WriteJSON(w, http.StatusOK, export); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Import handles POST /api/catalog/import
func (h *CatalogHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	var payload models.CatalogExport
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		status, message := http.StatusBadRequest, "Invalid request body"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status, message = http.StatusRequestEntityTooLarge, "Request body too large"
		}
		if err := ErrorResponse(w, status, "invalid_request", message); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result, err := h.catalogService.Import(r.Context(), &payload)
	if err != nil {
		writeServiceError(w, h.logger, "Catalog import failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
