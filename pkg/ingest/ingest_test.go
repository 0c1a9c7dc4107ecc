package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ekaya-inc/ekaya-spend/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-spend/pkg/models"
)

func TestParseCSV_InfersTypes(t *testing.T) {
	data := []byte("\xEF\xBB\xBFNº Orden;Proveedor;Fecha;Importe;Código\n" +
		"1001;ACME;2024-05-31;1250.50;007\n" +
		"1002;Globex;2024-06-02;99;010\n" +
		";;;;\n")

	table, err := ParseCSV("Pedidos 2024", data)
	require.NoError(t, err)

	assert.Equal(t, "pedidos_2024", table.Name)
	assert.Equal(t, []string{"no_orden", "proveedor", "fecha", "importe", "codigo"}, table.ColumnNames())
	assert.Equal(t, "Nº Orden", table.Columns[0].OriginalLabel)

	types := make([]models.ColumnType, len(table.Columns))
	for i, c := range table.Columns {
		types[i] = c.Type
	}
	assert.Equal(t, []models.ColumnType{
		models.ColumnTypeInteger,
		models.ColumnTypeText,
		models.ColumnTypeDate,
		models.ColumnTypeReal,
		models.ColumnTypeText,
	}, types)

	require.Len(t, table.Rows, 2, "blank rows are skipped")
	assert.Equal(t, []any{int64(1001), "ACME", "2024-05-31", 1250.5, "007"}, table.Rows[0])
	assert.Equal(t, []any{int64(1002), "Globex", "2024-06-02", float64(99), "010"}, table.Rows[1])
}

func TestParseCSV_Windows1252(t *testing.T) {
	// "Descripción" and "Papelería" encoded as Windows-1252
	data := []byte("Pedido,Descripci\xf3n\n1,Papeler\xeda\n")

	table, err := ParseCSV("po", data)
	require.NoError(t, err)

	assert.Equal(t, "Descripción", table.Columns[1].OriginalLabel)
	assert.Equal(t, "descripcion", table.Columns[1].Name)
	assert.Equal(t, "Papelería", table.Rows[0][1])
}

func TestParseCSV_HeaderDedupeAndBlanks(t *testing.T) {
	data := []byte("Fecha,Fecha,,Importe\n2024-01-01,2024-01-02,x,\n")

	table, err := ParseCSV("pagos", data)
	require.NoError(t, err)

	assert.Equal(t, []string{"fecha", "fecha_2", "col_3", "importe"}, table.ColumnNames())
	assert.Equal(t, models.ColumnTypeText, table.Columns[3].Type, "all-empty column stays text")
	assert.Nil(t, table.Rows[0][3])
}

func TestParseCSV_ShortRowsArePadded(t *testing.T) {
	table, err := ParseCSV("t", []byte("a,b,c\n1\n2,3,4\n"))
	require.NoError(t, err)

	require.Len(t, table.Rows, 2)
	assert.Equal(t, []any{int64(1), nil, nil}, table.Rows[0])
}

func TestParseCSV_Empty(t *testing.T) {
	_, err := ParseCSV("t", []byte("\n\n"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidPayload)
}

func TestParse_UnsupportedExtension(t *testing.T) {
	_, err := Parse("report.pdf", []byte("%PDF"))
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedFile)
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "ordenes_de_compra", TableName("Órdenes de Compra"))
	assert.Equal(t, "pagos_hoja1", TableName("Pagos", "Hoja1"))
	assert.Equal(t, "t_2024", TableName("2024"))
	assert.Equal(t, "upload", TableName("!!"))
}

func workbook(t *testing.T, sheets map[string][][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseXLSX_SingleSheetNamedAfterFile(t *testing.T) {
	data := workbook(t, map[string][][]any{
		"Datos": {
			{"Pedido", "Línea", "Fecha Pago", "Monto"},
			{1001, 1, 45443, 500.25},
			{1001, 2, 45444, 10},
		},
	})

	tables, err := Parse("Pagos.xlsx", data)
	require.NoError(t, err)
	require.Len(t, tables, 1)

	table := tables[0]
	assert.Equal(t, "pagos", table.Name)
	assert.Equal(t, []string{"pedido", "linea", "fecha_pago", "monto"}, table.ColumnNames())
	assert.Equal(t, models.ColumnTypeInteger, table.Columns[2].Type, "raw serial dates load as integers")
	assert.Equal(t, models.ColumnTypeReal, table.Columns[3].Type)
	assert.Equal(t, int64(45443), table.Rows[0][2])
}

func TestParseXLSX_MultipleSheets(t *testing.T) {
	data := workbook(t, map[string][][]any{
		"OC":    {{"Pedido"}, {"A-1"}},
		"Pagos": {{"Pedido", "Importe"}, {"A-1", 10}},
	})

	tables, err := ParseXLSX("compras", data)
	require.NoError(t, err)

	names := make([]string, 0, len(tables))
	for _, tb := range tables {
		names = append(names, tb.Name)
	}
	assert.ElementsMatch(t, []string{"compras_oc", "compras_pagos"}, names)
}

func TestParseXLSX_Corrupt(t *testing.T) {
	_, err := ParseXLSX("x", []byte("not a zip"))
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedFile)
}
