package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/tealeg/xlsx/v2"
)

// utf8BOM is prepended by Excel and most Windows editors when exporting CSV.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// SupportedExtensions lists the file extensions Parse accepts.
var SupportedExtensions = []string{".csv", ".json", ".xlsx", ".xls"}

// IsSupported reports whether the file name has an extension Parse handles.
func IsSupported(fileName string) bool {
	ext := strings.ToLower(filepath.Ext(fileName))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Parse builds a ParsedTable from raw file bytes, dispatching on the file
// extension.
func Parse(fileName string, data []byte) (*ParsedTable, error) {
	ext := strings.ToLower(filepath.Ext(fileName))

	switch ext {
	case ".csv":
		return parseCSV(fileName, sanitizeText(data))
	case ".json":
		return parseJSON(fileName, []byte(sanitizeText(data)))
	case ".xlsx", ".xls":
		return parseExcel(fileName, data)
	default:
		return nil, &UnsupportedFormatError{FileName: fileName, Extension: ext}
	}
}

// sanitizeText drops a leading BOM and replaces invalid UTF-8 sequences with
// U+FFFD so every downstream string is valid UTF-8.
func sanitizeText(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError))
}

/* ----------------------------------------
	CSV
---------------------------------------- */

// parseCSV splits on newlines and commas. Quoted fields only have their
// quotes stripped; embedded commas are not supported.
func parseCSV(fileName, text string) (*ParsedTable, error) {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}

	if len(lines) < 2 {
		return nil, &ParseError{FileName: fileName, Reason: "file must contain a header line and at least one data line"}
	}

	columns := uniqueColumns(splitCSVLine(lines[0]))
	rows := make([]Row, 0, len(lines)-1)
	for _, line := range lines[1:] {
		cells := splitCSVLine(line)
		row := make(Row, len(columns))
		for i, col := range columns {
			if i < len(cells) {
				row[col] = cells[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}

	return &ParsedTable{Columns: columns, Rows: rows}, nil
}

func splitCSVLine(line string) []string {
	parts := strings.Split(line, ",")
	for i, p := range parts {
		parts[i] = strings.Trim(strings.TrimSpace(p), `"`)
	}
	return parts
}

// uniqueColumns names blank headers by position and suffixes repeated
// headers with _2, _3, ... so the column list stays unique.
func uniqueColumns(header []string) []string {
	seen := make(map[string]bool, len(header))
	out := make([]string, len(header))
	for i, h := range header {
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		name := h
		for n := 2; seen[name]; n++ {
			name = fmt.Sprintf("%s_%d", h, n)
		}
		seen[name] = true
		out[i] = name
	}
	return out
}

/* ----------------------------------------
	JSON
---------------------------------------- */

func parseJSON(fileName string, data []byte) (*ParsedTable, error) {
	fail := func(reason string, err error) (*ParsedTable, error) {
		return nil, &ParseError{FileName: fileName, Reason: reason, Err: err}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fail("invalid JSON", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return fail("JSON root must be an array of objects", nil)
	}

	var columns []string
	known := make(map[string]bool)
	var rows []Row

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fail("invalid JSON", err)
		}
		if d, ok := tok.(json.Delim); !ok || d != '{' {
			return fail(fmt.Sprintf("element %d is not an object", len(rows)+1), nil)
		}

		row := make(Row)
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return fail("invalid JSON", err)
			}
			key, _ := keyTok.(string)

			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return fail("invalid JSON", err)
			}
			row[key] = jsonCell(raw)

			if !known[key] {
				known[key] = true
				columns = append(columns, key)
			}
		}
		if _, err := dec.Token(); err != nil {
			return fail("invalid JSON", err)
		}
		rows = append(rows, row)
	}

	if _, err := dec.Token(); err != nil {
		return fail("invalid JSON", err)
	}
	if len(rows) == 0 {
		return fail("JSON array is empty", nil)
	}

	for _, row := range rows {
		for _, col := range columns {
			if _, ok := row[col]; !ok {
				row[col] = ""
			}
		}
	}

	return &ParsedTable{Columns: columns, Rows: rows}, nil
}

// jsonCell stringifies a JSON value. Strings are unquoted, null becomes ""
// and anything else keeps its compact JSON text.
func jsonCell(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0, bytes.Equal(raw, []byte("null")):
		return ""
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

/* ----------------------------------------
	Excel
---------------------------------------- */

func parseExcel(fileName string, data []byte) (*ParsedTable, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, &ParseError{FileName: fileName, Reason: "unreadable Excel workbook", Err: err}
	}
	if len(f.Sheets) == 0 {
		return nil, &ParseError{FileName: fileName, Reason: "workbook has no sheets"}
	}

	var lines [][]string
	for _, row := range f.Sheets[0].Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		blank := true
		for j, cell := range row.Cells {
			cells[j] = strings.TrimSpace(sanitizeText([]byte(cell.String())))
			if cells[j] != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		lines = append(lines, cells)
	}

	if len(lines) < 2 {
		return nil, &ParseError{FileName: fileName, Reason: "first sheet must contain a header row and at least one data row"}
	}

	columns := uniqueColumns(lines[0])
	rows := make([]Row, 0, len(lines)-1)
	for _, cells := range lines[1:] {
		row := make(Row, len(columns))
		for i, col := range columns {
			if i < len(cells) {
				row[col] = cells[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}

	return &ParsedTable{Columns: columns, Rows: rows}, nil
}
