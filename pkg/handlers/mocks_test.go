package handlers

import (
	"context"

	"github.com/ekaya-inc/ekaya-spend/pkg/models"
)

// mockCatalogService implements services.CatalogService for handler tests.
type mockCatalogService struct {
	buildResult  *models.BuildResult
	buildErr     error
	summary      *models.CatalogSummary
	profile      *models.Profile
	profileErr   error
	export       *models.CatalogExport
	importResult *models.ImportResult
	importErr    error

	profileArgs [2]string
	imported    *models.CatalogExport
}

func (m *mockCatalogService) Build(ctx context.Context) (*models.BuildResult, error) {
	return m.buildResult, m.buildErr
}

func (m *mockCatalogService) Summary(ctx context.Context) (*models.CatalogSummary, error) {
	return m.summary, nil
}

func (m *mockCatalogService) Profile(ctx context.Context, subcategory, supplier string) (*models.Profile, error) {
	m.profileArgs = [2]string{subcategory, supplier}
	return m.profile, m.profileErr
}

func (m *mockCatalogService) Export(ctx context.Context) (*models.CatalogExport, error) {
	return m.export, nil
}

func (m *mockCatalogService) Import(ctx context.Context, payload *models.CatalogExport) (*models.ImportResult, error) {
	m.imported = payload
	return m.importResult, m.importErr
}

// mockUploadService implements services.UploadService for handler tests.
type mockUploadService struct {
	tables   []models.TableSchema
	err      error
	fileName string
	data     []byte
}

func (m *mockUploadService) Upload(ctx context.Context, fileName string, data []byte) ([]models.TableSchema, error) {
	m.fileName, m.data = fileName, data
	return m.tables, m.err
}

func (m *mockUploadService) ListTables(ctx context.Context) ([]models.TableSchema, error) {
	return m.tables, m.err
}
