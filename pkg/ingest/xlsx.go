package ingest

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/ekaya-inc/ekaya-spend/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-spend/pkg/models"
)

// ParseXLSX reads every sheet of a workbook. Cells are read raw, so dates
// arrive as spreadsheet serial numbers and are resolved by the normalizer.
// With a single non-empty sheet the table is named after the file, otherwise
// after file and sheet.
func ParseXLSX(baseName string, data []byte) ([]*models.UploadedTable, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open excel: %v", apperrors.ErrUnsupportedFile, err)
	}
	defer func() { _ = f.Close() }()

	type sheetRows struct {
		name string
		rows [][]string
	}
	var sheets []sheetRows
	for _, sh := range f.GetSheetList() {
		rows, err := f.GetRows(sh, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sh, err)
		}
		header := firstNonBlank(rows)
		if header < 0 {
			continue
		}
		sheets = append(sheets, sheetRows{name: sh, rows: rows[header:]})
	}
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no data", apperrors.ErrInvalidPayload)
	}

	tables := make([]*models.UploadedTable, 0, len(sheets))
	for _, sh := range sheets {
		name := TableName(baseName)
		if len(sheets) > 1 {
			name = TableName(baseName, sh.name)
		}
		t, err := buildTable(name, sh.rows[0], sh.rows[1:])
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func firstNonBlank(rows [][]string) int {
	for i, r := range rows {
		if !isBlank(r) {
			return i
		}
	}
	return -1
}
