package services

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-spend/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-spend/pkg/ingest"
	"github.com/ekaya-inc/ekaya-spend/pkg/models"
)

// UploadService loads spreadsheets into the embedded store.
type UploadService interface {
	// Upload parses a file and replaces every table it contains.
	Upload(ctx context.Context, fileName string, data []byte) ([]models.TableSchema, error)

	// ListTables returns the loaded tables with their schema.
	ListTables(ctx context.Context) ([]models.TableSchema, error)
}

type uploadService struct {
	store  datasource.TableStore
	logger *zap.Logger
}

// NewUploadService creates a new UploadService.
func NewUploadService(store datasource.TableStore, logger *zap.Logger) UploadService {
	return &uploadService{store: store, logger: logger.Named("upload")}
}

var _ UploadService = (*uploadService)(nil)

func (s *uploadService) Upload(ctx context.Context, fileName string, data []byte) ([]models.TableSchema, error) {
	tables, err := ingest.Parse(fileName, data)
	if err != nil {
		return nil, err
	}

	names := make(map[string]int, len(tables))
	loaded := make(map[string]bool, len(tables))
	for _, t := range tables {
		names[t.Name]++
		if n := names[t.Name]; n > 1 {
			t.Name = t.Name + "_" + strconv.Itoa(n)
		}
		if err := s.store.ReplaceTable(ctx, t, fileName); err != nil {
			return nil, fmt.Errorf("load %s: %w", t.Name, err)
		}
		loaded[t.Name] = true
	}

	all, err := s.store.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]models.TableSchema, 0, len(tables))
	for _, t := range all {
		if loaded[t.TableName] {
			result = append(result, t)
		}
	}

	s.logger.Info("File uploaded",
		zap.String("file", fileName),
		zap.Int("tables", len(result)))
	return result, nil
}

func (s *uploadService) ListTables(ctx context.Context) ([]models.TableSchema, error) {
	return s.store.ListTables(ctx)
}
