package rentroll

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
)

// MaxFileSize is the maximum accepted spreadsheet size. Rent rolls are
// bounded at tens to low hundreds of rows; anything near this limit is not a
// rent roll.
var MaxFileSize int64 = 20 * 1024 * 1024

// ParseFile converts an uploaded spreadsheet into a Table: the header list
// from the first non-empty row and one RawRow per data row, in sheet order.
// Every row is coerced to the full header key set, missing cells as empty
// string, because later stages assume uniform row shape.
//
// Supported formats are .csv, .xlsx, and legacy BIFF .xls. The whole file is
// parsed in memory; there is no streaming.
func ParseFile(fileName string, data []byte) (*Table, error) {
	if int64(len(data)) > MaxFileSize {
		return nil, fmt.Errorf("file exceeds %dMB limit", MaxFileSize/(1024*1024))
	}

	var records [][]string
	var err error

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		records, err = parseCSV(data)
	case ".xlsx":
		records, err = parseWorkbook(data)
	case ".xls":
		records, err = parseLegacyWorkbook(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(fileName))
	}
	if err != nil {
		return nil, err
	}

	return buildTable(records)
}

// buildTable shapes raw records into a Table and enforces the empty-file rule.
func buildTable(records [][]string) (*Table, error) {
	// Skip leading blank rows; the header is the first row with content.
	start := 0
	for start < len(records) && isEmptyRow(records[start]) {
		start++
	}
	if start >= len(records) {
		return nil, ErrEmptyFile
	}

	headerRow := records[start]
	headers := make([]string, 0, len(headerRow))
	for _, h := range headerRow {
		headers = append(headers, CleanCell(h))
	}

	rows := make([]RawRow, 0, len(records)-start-1)
	for _, rec := range records[start+1:] {
		if isEmptyRow(rec) {
			continue
		}
		row := make(RawRow, len(headers))
		for i, h := range headers {
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	return &Table{Headers: headers, Rows: rows}, nil
}

// parseCSV reads CSV data with lenient quoting and variable field counts,
// after BOM stripping and UTF-8 sanitization.
func parseCSV(data []byte) ([][]string, error) {
	data = sanitizeUTF8(stripBOM(data))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return records, nil
}

// parseWorkbook reads the first sheet of an Excel workbook. Cell values come
// back as their formatted strings; date cells formatted as numbers surface as
// date serials, which the validator interprets.
func parseWorkbook(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// parseLegacyWorkbook reads the first sheet of a BIFF .xls workbook, which
// excelize does not handle. Numeric and date cells surface as their string
// forms, same as the xlsx path.
func parseLegacyWorkbook(data []byte) ([][]string, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	sh, err := wb.GetSheet(0)
	if err != nil {
		return nil, ErrEmptyFile
	}

	records := make([][]string, 0, sh.GetNumberRows())
	for i := 0; i < sh.GetNumberRows(); i++ {
		r, err := sh.GetRow(i)
		if err != nil {
			continue
		}
		cells := r.GetCols()
		rec := make([]string, len(cells))
		for j, cell := range cells {
			rec[j] = cell.GetString()
		}
		records = append(records, rec)
	}
	return records, nil
}

// stripBOM removes a leading UTF-8 byte order mark, common in Windows
// exports.
func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

// sanitizeUTF8 replaces invalid byte sequences with the Unicode replacement
// character so the CSV reader never chokes on Latin-1 leftovers.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
