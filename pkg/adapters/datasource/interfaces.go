// Package datasource defines the collaborators the catalogue uses to read
// uploaded tables and to run statements against the embedded store.
package datasource

import (
	"context"

	"github.com/ekaya-inc/ekaya-spend/pkg/models"
)

// SchemaProvider reports the currently loaded tables.
// The catalogue treats the result as read-only ground truth at the start of each build.
type SchemaProvider interface {
	// GetSchema returns table name -> columns in upload order.
	GetSchema(ctx context.Context) (map[string][]models.ColumnSchema, error)
}

// QueryExecutor executes SQL against the embedded store.
// Values are always bound as parameters; identifiers go through QuoteIdentifier.
type QueryExecutor interface {
	// Query runs a SELECT and returns every row.
	Query(ctx context.Context, sqlQuery string, params ...any) (*QueryExecutionResult, error)

	// Execute runs a DDL/DML statement.
	Execute(ctx context.Context, sqlStatement string, params ...any) (*ExecuteResult, error)

	// QuoteIdentifier safely quotes a table or column name.
	QuoteIdentifier(name string) string
}

// TableStore loads and lists uploaded tables.
type TableStore interface {
	// ReplaceTable drops any previous table of the same name and stores t
	// together with its schema entry.
	ReplaceTable(ctx context.Context, t *models.UploadedTable, sourceFile string) error

	// ListTables returns the schema entry and row count of every uploaded table.
	ListTables(ctx context.Context) ([]models.TableSchema, error)
}

// ConnectionTester verifies the store is reachable.
type ConnectionTester interface {
	TestConnection(ctx context.Context) error
}

// ExecuteResult holds the results from executing a DDL/DML statement.
type ExecuteResult struct {
	RowsAffected int64 `json:"rows_affected"`
}

// ColumnInfo describes a result column.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // Declared type, e.g. "INTEGER", "TEXT"; empty for expressions
}

// QueryExecutionResult holds the results from executing a query.
type QueryExecutionResult struct {
	Columns  []ColumnInfo     `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}
