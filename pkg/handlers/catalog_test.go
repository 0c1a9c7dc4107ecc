package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-spend/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-spend/pkg/models"
)

func serveCatalog(t *testing.T, svc *mockCatalogService, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	NewCatalogHandler(svc, zap.NewNop()).RegisterRoutes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}

func TestCatalogHandler_Build(t *testing.T) {
	svc := &mockCatalogService{buildResult: &models.BuildResult{
		Taxonomy:    models.Taxonomy{{Category: "Oficina", Subcategories: []string{"Papelería"}}},
		Diagnostics: models.BuildDiagnostics{BuildID: "b-1", LinesClassified: 3},
	}}

	rec := serveCatalog(t, svc, httptest.NewRequest(http.MethodPost, "/api/catalog/build", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool               `json:"success"`
		Data    models.BuildResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, svc.buildResult.Taxonomy, resp.Data.Taxonomy)
	assert.Equal(t, 3, resp.Data.Diagnostics.LinesClassified)
}

func TestCatalogHandler_BuildErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{apperrors.ErrBuildInProgress, http.StatusConflict, "build_in_progress"},
		{fmt.Errorf("%w: no tables uploaded", apperrors.ErrRoleUnresolved), http.StatusUnprocessableEntity, "role_unresolved"},
		{apperrors.ErrNoDescriptiveColumn, http.StatusUnprocessableEntity, "no_descriptive_column"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := serveCatalog(t, &mockCatalogService{buildErr: tt.err}, httptest.NewRequest(http.MethodPost, "/api/catalog/build", nil))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec))
		})
	}
}

func TestCatalogHandler_BuildRequiresPost(t *testing.T) {
	rec := serveCatalog(t, &mockCatalogService{}, httptest.NewRequest(http.MethodGet, "/api/catalog/build", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCatalogHandler_Profile(t *testing.T) {
	svc := &mockCatalogService{profile: &models.Profile{Subcategory: "Papelería", Supplier: "ACME"}}

	q := url.Values{"subcategory": {" Papelería "}, "supplier": {"ACME"}}
	rec := serveCatalog(t, svc, httptest.NewRequest(http.MethodGet, "/api/catalog/profile?"+q.Encode(), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, [2]string{"Papelería", "ACME"}, svc.profileArgs)
}

func TestCatalogHandler_ProfileMissingParameter(t *testing.T) {
	svc := &mockCatalogService{profileErr: fmt.Errorf("%w: subcategory and supplier are required", apperrors.ErrMissingParameter)}

	rec := serveCatalog(t, svc, httptest.NewRequest(http.MethodGet, "/api/catalog/profile?supplier=ACME", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_parameter", decodeError(t, rec))
}

func TestCatalogHandler_ProfileRejectsInjection(t *testing.T) {
	svc := &mockCatalogService{}

	q := url.Values{"subcategory": {"Papelería"}, "supplier": {"x' OR '1'='1"}}
	rec := serveCatalog(t, svc, httptest.NewRequest(http.MethodGet, "/api/catalog/profile?"+q.Encode(), nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_parameter", decodeError(t, rec))
	assert.Empty(t, svc.profileArgs[0], "service must not be called")
}

func TestCatalogHandler_ExportIsImportable(t *testing.T) {
	export := &models.CatalogExport{
		Taxonomy: models.Taxonomy{{Category: "Oficina", Subcategories: []string{"Papelería"}}},
		Lines:    []models.LineClassification{{OrderNo: "1", LineNo: "1", Category: "Oficina", Subcategory: "Papelería"}},
	}
	svc := &mockCatalogService{export: export, importResult: &models.ImportResult{Categories: 1, Lines: 1}}

	rec := serveCatalog(t, svc, httptest.NewRequest(http.MethodGet, "/api/catalog/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "catalog.json")

	body := rec.Body.Bytes()
	rec = serveCatalog(t, svc, httptest.NewRequest(http.MethodPost, "/api/catalog/import", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.imported)
	assert.Equal(t, export.Taxonomy, svc.imported.Taxonomy)
	assert.Equal(t, export.Lines, svc.imported.Lines)
}

func TestCatalogHandler_ImportErrors(t *testing.T) {
	rec := serveCatalog(t, &mockCatalogService{}, httptest.NewRequest(http.MethodPost, "/api/catalog/import", strings.NewReader("{not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec))

	svc := &mockCatalogService{importErr: fmt.Errorf("%w: taxonomy is required", apperrors.ErrInvalidPayload)}
	rec = serveCatalog(t, svc, httptest.NewRequest(http.MethodPost, "/api/catalog/import", strings.NewReader(`{"lines": []}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_payload", decodeError(t, rec))
}

func TestCatalogHandler_Summary(t *testing.T) {
	svc := &mockCatalogService{summary: &models.CatalogSummary{Suppliers: []string{"ACME"}}}

	rec := serveCatalog(t, svc, httptest.NewRequest(http.MethodGet, "/api/catalog/summary", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"suppliers":["ACME"]`)
}
