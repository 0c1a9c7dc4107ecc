package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-spend/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-spend/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ordersTable() *models.UploadedTable {
	return &models.UploadedTable{
		Name: "pedidos",
		Columns: []models.ColumnSchema{
			{Name: "no_pedido", Type: models.ColumnTypeText, OriginalLabel: "Nº Pedido"},
			{Name: "linea", Type: models.ColumnTypeInteger, OriginalLabel: "Línea"},
			{Name: "importe", Type: models.ColumnTypeReal, OriginalLabel: "Importe"},
		},
		Rows: [][]any{
			{"PO-1", int64(1), 10.5},
			{"PO-2", int64(2), nil},
		},
	}
}

func TestOpen_RunsMigrations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, table := range []string{"upload_tables", "upload_columns", "catalog_line_map", "catalog_taxonomy", "catalog_payments"} {
		res, err := s.Query(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
		require.NoError(t, err)
		assert.Equal(t, 1, res.RowCount, table)
	}
	assert.Equal(t, ":memory:", s.Path())
	assert.NoError(t, s.TestConnection(ctx))
}

func TestOpen_FileIsReopenable(t *testing.T) {
	path := t.TempDir() + "/spend.db"
	ctx := context.Background()

	s, err := Open(ctx, path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.ReplaceTable(ctx, ordersTable(), "orders.xlsx"))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, zap.NewNop())
	require.NoError(t, err, "migrations are idempotent")
	defer s.Close()

	tables, err := s.ListTables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 1)
}

func TestReplaceTable_And_GetSchema(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceTable(ctx, ordersTable(), "orders.xlsx"))

	schema, err := s.GetSchema(ctx)
	require.NoError(t, err)
	require.Len(t, schema["pedidos"], 3)
	assert.Equal(t, models.ColumnSchema{Name: "no_pedido", Type: models.ColumnTypeText, OriginalLabel: "Nº Pedido"}, schema["pedidos"][0])
	assert.Equal(t, "importe", schema["pedidos"][2].Name, "upload order preserved")

	res, err := s.Query(ctx, `SELECT * FROM `+s.QuoteIdentifier("pedidos")+` ORDER BY linea`)
	require.NoError(t, err)
	require.Equal(t, 2, res.RowCount)
	assert.Equal(t, "PO-1", res.Rows[0]["no_pedido"])
	assert.Equal(t, int64(1), res.Rows[0]["linea"])
	assert.Equal(t, 10.5, res.Rows[0]["importe"])
	assert.Nil(t, res.Rows[1]["importe"])
}

func TestReplaceTable_ReplacesWholesale(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceTable(ctx, ordersTable(), "v1.xlsx"))

	second := &models.UploadedTable{
		Name:    "pedidos",
		Columns: []models.ColumnSchema{{Name: "folio", Type: models.ColumnTypeText, OriginalLabel: "Folio"}},
		Rows:    [][]any{{"A"}},
	}
	require.NoError(t, s.ReplaceTable(ctx, second, "v2.csv"))

	schema, err := s.GetSchema(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.ColumnSchema{{Name: "folio", Type: models.ColumnTypeText, OriginalLabel: "Folio"}}, schema["pedidos"])

	tables, err := s.ListTables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, int64(1), tables[0].RowCount)
	assert.WithinDuration(t, time.Now(), tables[0].UploadedAt, time.Minute)
}

func TestReplaceTable_Rejects(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.ReplaceTable(ctx, &models.UploadedTable{Name: "catalog_payments", Columns: ordersTable().Columns}, "x.csv")
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	err = s.ReplaceTable(ctx, &models.UploadedTable{Name: "empty"}, "x.csv")
	assert.ErrorIs(t, err, apperrors.ErrInvalidPayload)

	err = s.ReplaceTable(ctx, nil, "x.csv")
	assert.ErrorIs(t, err, apperrors.ErrInvalidPayload)
}

func TestQuoteIdentifier_HostileName(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	hostile := &models.UploadedTable{
		Name:    `x"; DROP TABLE upload_columns; --`,
		Columns: []models.ColumnSchema{{Name: `c"1`, Type: models.ColumnTypeText, OriginalLabel: "c"}},
		Rows:    [][]any{{"v"}},
	}
	require.NoError(t, s.ReplaceTable(ctx, hostile, "x.csv"))

	schema, err := s.GetSchema(ctx)
	require.NoError(t, err)
	assert.Contains(t, schema, hostile.Name)
}

func TestExecute(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceTable(ctx, ordersTable(), "orders.xlsx"))

	res, err := s.Execute(ctx, `DELETE FROM "pedidos" WHERE linea = ?`, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowsAffected)

	_, err = s.Execute(ctx, `DELETE FROM missing_table`)
	assert.Error(t, err)
}
