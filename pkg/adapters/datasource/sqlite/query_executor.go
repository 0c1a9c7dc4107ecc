package sqlite

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-spend/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-spend/pkg/logging"
	sqlutil "github.com/ekaya-inc/ekaya-spend/pkg/sql"
)

// Query runs a SELECT and returns every row keyed by column name.
func (s *Store) Query(ctx context.Context, sqlQuery string, params ...any) (*datasource.QueryExecutionResult, error) {
	rows, err := s.db.QueryContext(ctx, sqlQuery, params...)
	if err != nil {
		s.logger.Debug("Query failed", zap.String("sql", logging.SanitizeQuery(sqlQuery)), zap.Error(err))
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}
	columns := make([]datasource.ColumnInfo, len(colTypes))
	for i, ct := range colTypes {
		columns[i] = datasource.ColumnInfo{Name: ct.Name(), Type: ct.DatabaseTypeName()}
	}

	resultRows := make([]map[string]any, 0)
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}
		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col.Name] = values[i]
		}
		resultRows = append(resultRows, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &datasource.QueryExecutionResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}

// Execute runs a DDL/DML statement.
func (s *Store) Execute(ctx context.Context, sqlStatement string, params ...any) (*datasource.ExecuteResult, error) {
	res, err := s.db.ExecContext(ctx, sqlStatement, params...)
	if err != nil {
		s.logger.Debug("Execute failed", zap.String("sql", logging.SanitizeQuery(sqlStatement)), zap.Error(err))
		return nil, fmt.Errorf("failed to execute statement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return &datasource.ExecuteResult{RowsAffected: affected}, nil
}

// QuoteIdentifier quotes a table or column name for SQLite.
func (s *Store) QuoteIdentifier(name string) string {
	return sqlutil.QuoteIdentifier(name)
}
