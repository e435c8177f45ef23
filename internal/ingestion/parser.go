package ingestion

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// Format identifies the container of an uploaded file.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

var (
	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
	zipMagic      = []byte{0x50, 0x4B, 0x03, 0x04}
	oleMagic      = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// ParsedRow is one data row keyed by sanitized header name.
type ParsedRow struct {
	Line     int
	Values   map[string]string
	Mismatch bool
	// Malformed marks a line the CSV tokenizer could not split.
	Malformed bool
	// FieldCount is the number of cells the source row carried.
	FieldCount int
}

// Table is the parser output: a header row and every data row in file order.
type Table struct {
	Format   Format
	Headers  []string
	Rows     []ParsedRow
	Warnings []string
}

// DetectFormat picks the parser from the file name and confirms it with the
// leading bytes, which win when the extension lies.
func DetectFormat(fileName string, payload []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(payload, zipMagic):
		return FormatXLSX, nil
	case bytes.HasPrefix(payload, oleMagic):
		return FormatXLS, nil
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".txt", "":
		return FormatCSV, nil
	case ".xlsx", ".xlsm", ".xls":
		// Spreadsheet extension without a spreadsheet signature: most exports
		// mislabelled this way are plain CSV.
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(fileName))
	}
}

// Parse decodes payload into a Table. It fails only for job level problems:
// an empty or undecodable file.
func Parse(payload []byte, format Format) (Table, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return Table{}, newJobError(KindEmptyInput, "file is empty", nil)
	}

	var (
		table Table
		err   error
	)
	switch format {
	case FormatCSV:
		table, err = parseCSV(payload)
	case FormatXLSX:
		table, err = parseExcel(payload)
	case FormatXLS:
		table, err = parseLegacyExcel(payload)
	default:
		return Table{}, newJobError(KindUnsupportedFormat, "cannot parse file", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format))
	}
	if err != nil {
		return Table{}, err
	}
	table.Format = format

	if len(table.Headers) == 0 {
		return Table{}, newJobError(KindEmptyInput, "file has no header row", nil)
	}
	if len(table.Rows) == 0 {
		return Table{}, newJobError(KindEmptyInput, "file has a header row but no data rows", nil)
	}
	return table, nil
}

func parseCSV(payload []byte) (Table, error) {
	var warnings []string

	if bytes.IndexByte(payload, 0) >= 0 {
		return Table{}, newJobError(KindUnreadableFile, "file contains binary data and is not a text CSV", nil)
	}
	payload = bytes.TrimPrefix(payload, byteOrderMark)
	if !utf8.Valid(payload) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(payload)
		if err != nil {
			return Table{}, newJobError(KindUnreadableFile, "file is not valid UTF-8 or Windows-1252 text", err)
		}
		payload = decoded
		warnings = append(warnings, "file is not UTF-8; decoded as Windows-1252")
	}

	delimiter := sniffDelimiter(payload)
	if delimiter != ',' {
		warnings = append(warnings, fmt.Sprintf("using %q as the column delimiter", delimiter))
	}

	reader := csv.NewReader(bufio.NewReader(bytes.NewReader(payload)))
	reader.Comma = delimiter
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	// The csv reader skips physically empty lines. A line made only of
	// delimiters is still a data row and is rejected downstream.
	table := Table{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if err != nil && !errors.As(err, &parseErr) {
			return Table{}, newJobError(KindUnreadableFile, "failed to read csv", err)
		}
		if parseErr != nil {
			if table.Headers == nil {
				return Table{}, newJobError(KindUnreadableFile, "failed to read csv header", err)
			}
			// Keep the row so it is counted and reported instead of silently lost.
			table.Rows = append(table.Rows, ParsedRow{
				Line:      parseErr.StartLine,
				Values:    map[string]string{},
				Mismatch:  true,
				Malformed: true,
			})
			continue
		}

		line, _ := reader.FieldPos(0)
		if table.Headers == nil {
			if isBlankRow(record) {
				continue
			}
			headers, dupes := sanitizeHeaders(record)
			table.Headers = headers
			warnings = append(warnings, dupes...)
			continue
		}
		table.Rows = append(table.Rows, buildRow(table.Headers, record, line, true))
	}

	table.Warnings = warnings
	return table, nil
}

func parseExcel(payload []byte) (Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return Table{}, newJobError(KindUnreadableFile, "failed to open xlsx", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, newJobError(KindUnreadableFile, "excel file has no sheets", nil)
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return Table{}, newJobError(KindUnreadableFile, "failed to read rows from xlsx", err)
	}

	table := sheetTable(rows)
	if len(sheets) > 1 {
		table.Warnings = append(table.Warnings, fmt.Sprintf("read sheet %q only; %d other sheets ignored", sheets[0], len(sheets)-1))
	}
	return table, nil
}

func parseLegacyExcel(payload []byte) (table Table, err error) {
	// The BIFF reader panics on some malformed workbooks.
	defer func() {
		if r := recover(); r != nil {
			table = Table{}
			err = newJobError(KindUnreadableFile, "failed to read xls", fmt.Errorf("%v", r))
		}
	}()

	book, openErr := xls.OpenReader(bytes.NewReader(payload), "utf-8")
	if openErr != nil {
		return Table{}, newJobError(KindUnreadableFile, "failed to open xls", openErr)
	}
	sheet := book.GetSheet(0)
	if sheet == nil {
		return Table{}, newJobError(KindUnreadableFile, "xls file has no sheets", nil)
	}

	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for c := 0; c < row.LastCol(); c++ {
			if c < row.FirstCol() {
				cells = append(cells, "")
				continue
			}
			cells = append(cells, row.Col(c))
		}
		rows = append(rows, cells)
	}
	return sheetTable(rows), nil
}

// sheetTable turns spreadsheet rows into a Table. Spreadsheet readers drop
// trailing empty cells, so short rows are padded; only extra non-empty cells
// beyond the header count as a mismatch.
func sheetTable(rows [][]string) Table {
	table := Table{}
	blank, pending := 0, 0
	for idx, record := range rows {
		if isBlankRow(record) {
			if table.Headers != nil {
				pending++
			}
			continue
		}
		if table.Headers == nil {
			headers, dupes := sanitizeHeaders(record)
			table.Headers = headers
			table.Warnings = append(table.Warnings, dupes...)
			continue
		}
		table.Rows = append(table.Rows, buildRow(table.Headers, record, idx+1, false))
		blank, pending = blank+pending, 0
	}
	if blank > 0 {
		table.Warnings = append(table.Warnings, fmt.Sprintf("skipped %d blank rows", blank))
	}
	return table
}

func buildRow(headers []string, record []string, line int, strict bool) ParsedRow {
	row := ParsedRow{
		Line:       line,
		Values:     make(map[string]string, len(headers)),
		FieldCount: len(record),
	}
	for i, header := range headers {
		if i >= len(record) {
			break
		}
		if _, seen := row.Values[header]; seen {
			continue
		}
		row.Values[header] = strings.TrimSpace(record[i])
	}

	if strict {
		row.Mismatch = len(record) != len(headers)
		return row
	}
	for _, extra := range record[min(len(headers), len(record)):] {
		if strings.TrimSpace(extra) != "" {
			row.Mismatch = true
			break
		}
	}
	return row
}

// sniffDelimiter switches to semicolons for header lines that use them and
// carry no commas, the default export of spreadsheet tools in comma-decimal locales.
func sniffDelimiter(payload []byte) rune {
	for _, line := range bytes.Split(payload, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if bytes.IndexByte(line, ';') >= 0 && bytes.IndexByte(line, ',') < 0 {
			return ';'
		}
		return ','
	}
	return ','
}

// sanitizeHeaders lower-cases and normalizes header labels. Duplicate labels
// keep their first column and produce a warning.
func sanitizeHeaders(raw []string) ([]string, []string) {
	headers := make([]string, len(raw))
	seen := make(map[string]struct{}, len(raw))
	var warnings []string

	for idx, value := range raw {
		name := strings.TrimSpace(value)
		name = strings.Trim(name, `"'`)
		name = strings.ToLower(strings.TrimSpace(name))
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, "-", "_")
		name = strings.Trim(name, "_")
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}
		if _, dup := seen[name]; dup {
			warnings = append(warnings, fmt.Sprintf("duplicate column %q ignored", name))
		}
		seen[name] = struct{}{}
		headers[idx] = name
	}
	return headers, warnings
}

func isBlankRow(record []string) bool {
	for _, value := range record {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}
