package handlers

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-spend/pkg/models"
	"github.com/ekaya-inc/ekaya-spend/pkg/services"
)

// multipartMemory is the part of a multipart upload kept in memory; the rest spills to disk.
const multipartMemory = 32 << 20

// TablesListResponse for GET /api/tables
type TablesListResponse struct {
	Tables []models.TableSchema `json:"tables"`
	Total  int                  `json:"total"`
}

// TablesHandler handles spreadsheet uploads and table listing.
type TablesHandler struct {
	uploadService services.UploadService
	maxBytes      int64
	logger        *zap.Logger
}

// NewTablesHandler creates a new tables handler. maxBytes bounds one upload request.
func NewTablesHandler(uploadService services.UploadService, maxBytes int64, logger *zap.Logger) *TablesHandler {
	return &TablesHandler{
		uploadService: uploadService,
		maxBytes:      maxBytes,
		logger:        logger.Named("tables-handler"),
	}
}

// RegisterRoutes registers the tables routes on the given mux.
func (h *TablesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tables", h.List)
	mux.HandleFunc("POST /api/tables", h.Upload)
}

// List handles GET /api/tables
func (h *TablesHandler) List(w http.ResponseWriter, r *http.Request) {
	tables, err := h.uploadService.ListTables(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "Failed to list tables", err)
		return
	}
	if tables == nil {
		tables = []models.TableSchema{}
	}

	response := TablesListResponse{Tables: tables, Total: len(tables)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Upload handles POST /api/tables with a multipart "file" field.
func (h *TablesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.uploadError(w, err)
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_file", "Multipart field \"file\" is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.uploadError(w, err)
		return
	}

	tables, err := h.uploadService.Upload(r.Context(), header.Filename, data)
	if err != nil {
		writeServiceError(w, h.logger, "Upload failed", err)
		return
	}

	response := TablesListResponse{Tables: tables, Total: len(tables)}
	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *TablesHandler) uploadError(w http.ResponseWriter, err error) {
	status, message := http.StatusBadRequest, "Invalid multipart upload"
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		status, message = http.StatusRequestEntityTooLarge, "Upload exceeds the size limit"
	}
	h.logger.Info("Rejected upload", zap.Error(err))
	if err := ErrorResponse(w, status, "invalid_upload", message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
