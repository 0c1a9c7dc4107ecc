package models

import "time"

// ColumnType is the storage type inferred for an uploaded column.
type ColumnType string

const (
	ColumnTypeInteger ColumnType = "INTEGER"
	ColumnTypeReal    ColumnType = "REAL"
	ColumnTypeDate    ColumnType = "DATE"
	ColumnTypeText    ColumnType = "TEXT"
)

// ColumnSchema is one entry of a table's schema: the normalized physical
// column name, its inferred type and the header label as uploaded.
type ColumnSchema struct {
	Name          string     `json:"name"`
	Type          ColumnType `json:"type"`
	OriginalLabel string     `json:"original_label"`
}

// TableSchema describes a loaded table.
type TableSchema struct {
	TableName  string         `json:"table_name"`
	Columns    []ColumnSchema `json:"columns"`
	RowCount   int64          `json:"row_count"`
	UploadedAt time.Time      `json:"uploaded_at"`
}

// UploadedTable is a parsed spreadsheet sheet ready to be stored.
// Each row holds one value per column, in column order; nil is an empty cell.
type UploadedTable struct {
	Name    string
	Columns []ColumnSchema
	Rows    [][]any
}

// ColumnNames returns the physical column names in order.
func (t *UploadedTable) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}
