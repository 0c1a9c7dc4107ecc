package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/ekaya-inc/ekaya-spend/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-spend/pkg/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseCSV reads a delimited text export. The delimiter is sniffed from the
// header line. Input that is not valid UTF-8 is decoded as Windows-1252, the
// encoding spreadsheet tools commonly use for CSV exports.
func ParseCSV(baseName string, data []byte) (*models.UploadedTable, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	var r io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		r = transform.NewReader(r, charmap.Windows1252.NewDecoder())
	}

	reader := csv.NewReader(r)
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records [][]string
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: csv: %v", apperrors.ErrInvalidPayload, err)
		}
		records = append(records, rec)
	}

	header := firstNonBlank(records)
	if header < 0 {
		return nil, fmt.Errorf("%w: csv has no data", apperrors.ErrInvalidPayload)
	}
	return buildTable(TableName(baseName), records[header], records[header+1:])
}

func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, d := range []rune{';', '\t', '|'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
