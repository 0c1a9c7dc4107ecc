package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-spend/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-spend/pkg/models"
	sqlutil "github.com/ekaya-inc/ekaya-spend/pkg/sql"
)

// reservedPrefixes are table names owned by the store itself.
var reservedPrefixes = []string{"upload_", "catalog_", "schema_migrations", "sqlite_"}

// IsReservedTableName reports whether name collides with an internal table.
func IsReservedTableName(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range reservedPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// GetSchema returns table name -> columns from the upload registry.
func (s *Store) GetSchema(ctx context.Context) (map[string][]models.ColumnSchema, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT table_name, column_name, column_type, original_label
		FROM upload_columns
		ORDER BY table_name, position`)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema registry: %w", err)
	}
	defer rows.Close()

	schema := make(map[string][]models.ColumnSchema)
	for rows.Next() {
		var table string
		var col models.ColumnSchema
		if err := rows.Scan(&table, &col.Name, &col.Type, &col.OriginalLabel); err != nil {
			return nil, fmt.Errorf("failed to scan schema row: %w", err)
		}
		schema[table] = append(schema[table], col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schema rows: %w", err)
	}
	return schema, nil
}

// ListTables returns every uploaded table with its columns, ordered by name.
func (s *Store) ListTables(ctx context.Context) ([]models.TableSchema, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT table_name, row_count, uploaded_at
		FROM upload_tables
		ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	var tables []models.TableSchema
	for rows.Next() {
		var t models.TableSchema
		var uploadedAt string
		if err := rows.Scan(&t.TableName, &t.RowCount, &uploadedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan table row: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, uploadedAt); err == nil {
			t.UploadedAt = ts
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating table rows: %w", err)
	}
	rows.Close()

	schema, err := s.GetSchema(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tables {
		tables[i].Columns = schema[tables[i].TableName]
	}
	return tables, nil
}

// ReplaceTable drops any previous table named t.Name, recreates it with the
// inferred column types and loads every row. The schema entry is replaced
// wholesale in the same transaction as the DDL.
func (s *Store) ReplaceTable(ctx context.Context, t *models.UploadedTable, sourceFile string) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("%w: table name is required", apperrors.ErrInvalidPayload)
	}
	if IsReservedTableName(t.Name) {
		return fmt.Errorf("%w: table name %q is reserved", apperrors.ErrConflict, t.Name)
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("%w: table %q has no columns", apperrors.ErrInvalidPayload, t.Name)
	}

	quoted := sqlutil.QuoteIdentifier(t.Name)
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = sqlutil.QuoteIdentifier(c.Name) + " " + string(c.Type)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		"DROP TABLE IF EXISTS " + quoted,
		"CREATE TABLE " + quoted + " (" + strings.Join(defs, ", ") + ")",
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to recreate table %s: %w", t.Name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM upload_columns WHERE table_name = ?`, t.Name); err != nil {
		return fmt.Errorf("failed to clear schema entry: %w", err)
	}
	for i, c := range t.Columns {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO upload_columns (table_name, position, column_name, column_type, original_label)
			VALUES (?, ?, ?, ?, ?)`, t.Name, i, c.Name, string(c.Type), c.OriginalLabel); err != nil {
			return fmt.Errorf("failed to register column %s: %w", c.Name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO upload_tables (table_name, source_file, row_count, uploaded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(table_name) DO UPDATE SET
			source_file = excluded.source_file,
			row_count = excluded.row_count,
			uploaded_at = excluded.uploaded_at`,
		t.Name, sourceFile, len(t.Rows), time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to register table: %w", err)
	}

	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoted, sqlutil.QuoteIdentifiers(t.ColumnNames()), sqlutil.Placeholders(len(t.Columns)))

	if err := insertRows(ctx, tx, insertSQL, t.Rows, len(t.Columns)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit table %s: %w", t.Name, err)
	}

	s.logger.Info("Table loaded",
		zap.String("table", t.Name),
		zap.Int("columns", len(t.Columns)),
		zap.Int("rows", len(t.Rows)))
	return nil
}

func insertRows(ctx context.Context, tx *sql.Tx, insertSQL string, rows [][]any, width int) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, width)
	for _, row := range rows {
		for i := range args {
			args[i] = nil
			if i < len(row) {
				args[i] = row[i]
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert row: %w", err)
		}
	}
	return nil
}
