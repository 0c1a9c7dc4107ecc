// Package ingest turns uploaded spreadsheets (xlsx or csv) into typed tables
// with normalized column names.
package ingest

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ekaya-inc/ekaya-spend/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-spend/pkg/models"
	"github.com/ekaya-inc/ekaya-spend/pkg/normalize"
)

// Parse dispatches on the file extension. Each non-empty xlsx sheet becomes
// one table; a csv file is always one table.
func Parse(fileName string, data []byte) ([]*models.UploadedTable, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))

	switch ext {
	case ".xlsx", ".xlsm":
		return ParseXLSX(base, data)
	case ".csv", ".txt", ".tsv":
		t, err := ParseCSV(base, data)
		if err != nil {
			return nil, err
		}
		return []*models.UploadedTable{t}, nil
	default:
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnsupportedFile, ext)
	}
}

// TableName derives a physical table name from a file or sheet name.
func TableName(parts ...string) string {
	var folded []string
	for _, p := range parts {
		if n := normalize.Fold(p); n != "" {
			folded = append(folded, strings.ReplaceAll(n, " ", "_"))
		}
	}
	name := strings.Join(folded, "_")
	if name == "" {
		return "upload"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "t_" + name
	}
	return name
}

// buildTable turns a header row plus data rows of raw strings into a typed table.
func buildTable(name string, header []string, records [][]string) (*models.UploadedTable, error) {
	columns := columnsFromHeader(header)
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: %s has no header row", apperrors.ErrInvalidPayload, name)
	}

	var data [][]string
	for _, rec := range records {
		if isBlank(rec) {
			continue
		}
		row := make([]string, len(columns))
		for i := range row {
			if i < len(rec) {
				row[i] = strings.TrimSpace(rec[i])
			}
		}
		data = append(data, row)
	}

	for i := range columns {
		columns[i].Type = inferType(data, i)
	}

	rows := make([][]any, len(data))
	for r, rec := range data {
		row := make([]any, len(columns))
		for i, c := range columns {
			row[i] = convert(rec[i], c.Type)
		}
		rows[r] = row
	}

	return &models.UploadedTable{Name: name, Columns: columns, Rows: rows}, nil
}

func columnsFromHeader(header []string) []models.ColumnSchema {
	last := len(header) - 1
	for last >= 0 && strings.TrimSpace(header[last]) == "" {
		last--
	}
	if last < 0 {
		return nil
	}

	seen := make(map[string]int)
	columns := make([]models.ColumnSchema, 0, last+1)
	for i := 0; i <= last; i++ {
		label := strings.TrimSpace(header[i])
		name := normalize.NormalizeColumnName(label)
		if name == "" {
			name = "col_" + strconv.Itoa(i+1)
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name = name + "_" + strconv.Itoa(n)
		}
		if label == "" {
			label = name
		}
		columns = append(columns, models.ColumnSchema{Name: name, OriginalLabel: label})
	}
	return columns
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

var (
	integerPattern = regexp.MustCompile(`^-?(0|[1-9][0-9]{0,17})$`)
	realPattern    = regexp.MustCompile(`^-?(0|[1-9][0-9]*)?(\.[0-9]+)?([eE][-+]?[0-9]+)?$`)
	datePattern    = regexp.MustCompile(`^\d{1,4}[-/]\d{1,2}[-/]\d{1,4}([ T].*)?$`)
)

// inferType picks the narrowest type every non-empty cell of column col fits.
// Values with leading zeros stay TEXT so identifiers keep their raw form.
func inferType(rows [][]string, col int) models.ColumnType {
	isInt, isReal, isDate := true, true, true
	nonEmpty := 0
	for _, row := range rows {
		v := row[col]
		if v == "" {
			continue
		}
		nonEmpty++
		if isInt && !integerPattern.MatchString(v) {
			isInt = false
		}
		if isReal && (!realPattern.MatchString(v) || v == "-" || v == ".") {
			isReal = false
		}
		if isDate {
			if !datePattern.MatchString(v) {
				isDate = false
			} else if _, ok := normalize.ParseDate(v); !ok {
				isDate = false
			}
		}
		if !isInt && !isReal && !isDate {
			return models.ColumnTypeText
		}
	}

	switch {
	case nonEmpty == 0:
		return models.ColumnTypeText
	case isInt:
		return models.ColumnTypeInteger
	case isReal:
		return models.ColumnTypeReal
	case isDate:
		return models.ColumnTypeDate
	}
	return models.ColumnTypeText
}

func convert(v string, t models.ColumnType) any {
	if v == "" {
		return nil
	}
	switch t {
	case models.ColumnTypeInteger:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	case models.ColumnTypeReal:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	case models.ColumnTypeDate:
		if d, ok := normalize.ParseDate(v); ok {
			return normalize.FormatDate(d)
		}
	}
	return v
}
