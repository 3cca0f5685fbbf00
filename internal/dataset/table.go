// Package dataset is the client-side data cache: a two-level (memory +
// persisted key-value) cache in front of the object store gateway, plus the
// tabular parser applied to metric datasets before they are cached.
package dataset

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Table is a parsed tabular dataset: a header row and typed rows. Columns
// whose values are all numeric are parsed as float64, everything else stays
// a string.
type Table struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// ParseTable reads CSV data into a Table. The first row is the header.
func ParseTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // allow variable fields

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("dataset: empty tabular payload")
	}
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read header row")
	}
	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "dataset: read row")
		}
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
		records = append(records, record)
	}

	return tableFromRecords(header, records), nil
}

// tableFromRecords types the parsed records against the header.
func tableFromRecords(header []string, records [][]string) *Table {
	for i, col := range header {
		header[i] = strings.TrimSpace(col)
	}
	numeric := detectNumericColumns(header, records)

	rows := make([]map[string]any, 0, len(records))
	for _, record := range records {
		row := make(map[string]any, len(header))
		for i, col := range header {
			if i >= len(record) {
				continue
			}
			val := record[i]
			if numeric[col] && val != "" {
				f, _ := strconv.ParseFloat(val, 64)
				row[col] = f
			} else {
				row[col] = val
			}
		}
		rows = append(rows, row)
	}
	return &Table{Columns: header, Rows: rows}
}

// detectNumericColumns marks columns where every non-empty value parses as a
// float. Empty cells don't disqualify a column.
func detectNumericColumns(header []string, records [][]string) map[string]bool {
	numeric := make(map[string]bool, len(header))
	for i, col := range header {
		sawValue := false
		allNumeric := true
		for _, record := range records {
			if i >= len(record) {
				continue
			}
			val := strings.TrimSpace(record[i])
			if val == "" {
				continue
			}
			sawValue = true
			if _, err := strconv.ParseFloat(val, 64); err != nil {
				allNumeric = false
				break
			}
		}
		numeric[col] = sawValue && allNumeric
	}
	return numeric
}

// Float returns the float64 value of a cell, handling the string fallback
// for mixed columns. ok is false when the cell is missing or non-numeric.
func (t *Table) Float(row int, col string) (float64, bool) {
	if row < 0 || row >= len(t.Rows) {
		return 0, false
	}
	switch v := t.Rows[row][col].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// String returns the string form of a cell.
func (t *Table) String(row int, col string) string {
	if row < 0 || row >= len(t.Rows) {
		return ""
	}
	switch v := t.Rows[row][col].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
