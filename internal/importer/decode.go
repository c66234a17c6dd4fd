package importer

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// DecodeLines splits raw file text into rows of fields. Lines are split on
// LF with a trailing CR stripped, blank lines are dropped. Field splitting
// respects double-quoted fields: a comma inside an open quote is not a
// separator and a doubled quote inside a quoted field is an escaped literal
// quote. An unterminated quote at end of line is tolerated and treated as
// literal text so a single malformed export does not kill the whole import.
func DecodeLines(text string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, splitFields(line))
	}
	return rows
}

// splitFields splits one physical line into fields.
func splitFields(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuote := false

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '"' && inQuote:
			if i+1 < len(runes) && runes[i+1] == '"' {
				// Escaped literal quote
				cur.WriteRune('"')
				i++
			} else {
				inQuote = false
			}
		case c == '"':
			inQuote = true
		case c == ',' && !inQuote:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(c)
		}
	}
	fields = append(fields, cur.String())
	return fields
}

// DecodeXLSX reads the first sheet of an XLSX workbook into the same row
// shape DecodeLines produces, so spreadsheet uploads flow through the same
// pipeline as CSV.
func DecodeXLSX(r io.Reader) ([][]string, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	raw, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}

	var rows [][]string
	for _, row := range raw {
		blank := true
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				blank = false
				break
			}
		}
		if !blank {
			rows = append(rows, row)
		}
	}
	return rows, nil
}
