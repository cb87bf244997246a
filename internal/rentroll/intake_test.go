package rentroll

import (
	"errors"
	"os"
	"testing"

	"github.com/xuri/excelize/v2"
)

// ============================================================================
// ParseFile (CSV) Tests
// ============================================================================

func TestParseFileCSV(t *testing.T) {
	data := []byte("Full Name,Email,Property,Rent,Due\n" +
		"Jane Doe,jane@example.com,12 Main St,\"$1,200.00\",2025-06-01\n" +
		"Bob Roe,bob@example.com,14 Main St,950,\n")

	table, err := ParseFile("rentroll.csv", data)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}

	wantHeaders := []string{"Full Name", "Email", "Property", "Rent", "Due"}
	if len(table.Headers) != len(wantHeaders) {
		t.Fatalf("got %d headers, want %d", len(table.Headers), len(wantHeaders))
	}
	for i, h := range wantHeaders {
		if table.Headers[i] != h {
			t.Errorf("header[%d] = %q, want %q", i, table.Headers[i], h)
		}
	}

	if len(table.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(table.Rows))
	}
	if got := table.Rows[0]["Full Name"]; got != "Jane Doe" {
		t.Errorf("row 0 name = %q, want %q", got, "Jane Doe")
	}
	if got := table.Rows[0]["Rent"]; got != "$1,200.00" {
		t.Errorf("row 0 rent = %q, want %q", got, "$1,200.00")
	}
	// Ragged row: the missing Due cell must still be present as empty.
	if got, ok := table.Rows[1]["Due"]; !ok || got != "" {
		t.Errorf("row 1 due = %q (present=%v), want empty and present", got, ok)
	}
}

func TestParseFileCSVWithBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Name,Email\nJane,jane@example.com\n")...)

	table, err := ParseFile("export.csv", data)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if table.Headers[0] != "Name" {
		t.Errorf("BOM not stripped: header[0] = %q", table.Headers[0])
	}
}

func TestParseFileSkipsBlankRows(t *testing.T) {
	data := []byte("\n\nName,Email\n\nJane,jane@example.com\n  ,  \n")

	table, err := ParseFile("gaps.csv", data)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if len(table.Rows) != 1 {
		t.Errorf("got %d rows, want 1 (blank rows skipped)", len(table.Rows))
	}
}

// ============================================================================
// ParseFile (XLSX) Tests
// ============================================================================

func TestParseFileXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"Tenant Name", "Email", "Property Address", "Rent Amount"},
		{"Jane Doe", "jane@example.com", "12 Main St", 1200},
		{"Bob Roe", "bob@example.com", "14 Main St", 950.50},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}

	table, err := ParseFile("rentroll.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}

	if len(table.Headers) != 4 {
		t.Fatalf("got %d headers, want 4", len(table.Headers))
	}
	if len(table.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(table.Rows))
	}
	if got := table.Rows[1]["Email"]; got != "bob@example.com" {
		t.Errorf("row 1 email = %q", got)
	}
}

func TestParseFileLegacyXLS(t *testing.T) {
	// A real BIFF8 workbook; excelize only reads the OOXML formats, so the
	// .xls branch goes through its own reader.
	data, err := os.ReadFile("testdata/rentroll.xls")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	table, err := ParseFile("rentroll.xls", data)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}

	wantHeaders := []string{"Tenant Name", "Email", "Property Address", "Unit", "Rent Amount", "Due Date"}
	if len(table.Headers) != len(wantHeaders) {
		t.Fatalf("got %d headers, want %d", len(table.Headers), len(wantHeaders))
	}
	for i, h := range wantHeaders {
		if table.Headers[i] != h {
			t.Errorf("header[%d] = %q, want %q", i, table.Headers[i], h)
		}
	}

	if len(table.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(table.Rows))
	}
	if got := table.Rows[0]["Email"]; got != "jane@example.com" {
		t.Errorf("row 0 email = %q", got)
	}
	if got := table.Rows[1]["Rent Amount"]; got != "950.50" {
		t.Errorf("row 1 rent = %q", got)
	}
	// Bob's row has no due date cell; it must still be present as empty.
	if got, ok := table.Rows[1]["Due Date"]; !ok || got != "" {
		t.Errorf("row 1 due = %q (present=%v), want empty and present", got, ok)
	}
}

// ============================================================================
// Intake Error Tests
// ============================================================================

func TestParseFileErrors(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		data     []byte
		wantErr  error
	}{
		{
			name:     "unsupported extension",
			fileName: "rentroll.pdf",
			data:     []byte("whatever"),
			wantErr:  ErrUnsupportedFormat,
		},
		{
			name:     "empty csv",
			fileName: "empty.csv",
			data:     []byte(""),
			wantErr:  ErrEmptyFile,
		},
		{
			name:     "header only",
			fileName: "headeronly.csv",
			data:     []byte("Name,Email\n"),
			wantErr:  ErrEmptyFile,
		},
		{
			name:     "xlsx garbage",
			fileName: "broken.xlsx",
			data:     []byte("not a zip archive"),
			wantErr:  ErrUnsupportedFormat,
		},
		{
			name:     "xls garbage",
			fileName: "broken.xls",
			data:     []byte("not an ole compound file"),
			wantErr:  ErrUnsupportedFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFile(tt.fileName, tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseFile() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// ============================================================================
// sanitizeUTF8 Tests
// ============================================================================

func TestSanitizeUTF8(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{name: "valid passthrough", input: []byte("hello"), want: "hello"},
		{name: "latin-1 byte replaced", input: []byte("caf\xe9"), want: "caf�"},
		{name: "unicode preserved", input: []byte("caf\xc3\xa9"), want: "café"},
		{name: "empty", input: []byte{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(sanitizeUTF8(tt.input)); got != tt.want {
				t.Errorf("sanitizeUTF8(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
