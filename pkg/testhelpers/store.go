package testhelpers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-spend/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/ekaya-spend/pkg/models"
)

// GetTestStore returns a private in-memory store with migrations applied.
// It is closed when the test finishes.
func GetTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	store, err := sqlite.Open(context.Background(), "", zap.NewNop())
	require.NoError(t, err, "open in-memory store")
	t.Cleanup(func() { _ = store.Close() })

	return store
}

// LoadTables replaces each table in the store, failing the test on error.
func LoadTables(t *testing.T, store *sqlite.Store, tables ...*models.UploadedTable) {
	t.Helper()

	for _, table := range tables {
		require.NoError(t, store.ReplaceTable(context.Background(), table, table.Name+".xlsx"), "load %s", table.Name)
	}
}

// Table builds an uploaded table from (name, label) column pairs and rows.
// Column types are inferred from the first non-nil value of each column.
func Table(name string, columns [][2]string, rows ...[]any) *models.UploadedTable {
	schema := make([]models.ColumnSchema, len(columns))
	for i, c := range columns {
		schema[i] = models.ColumnSchema{Name: c[0], OriginalLabel: c[1], Type: inferType(rows, i)}
	}
	return &models.UploadedTable{Name: name, Columns: schema, Rows: rows}
}

func inferType(rows [][]any, col int) models.ColumnType {
	for _, row := range rows {
		if col >= len(row) || row[col] == nil {
			continue
		}
		switch row[col].(type) {
		case int, int64:
			return models.ColumnTypeInteger
		case float64:
			return models.ColumnTypeReal
		}
		return models.ColumnTypeText
	}
	return models.ColumnTypeText
}
