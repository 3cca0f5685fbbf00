package dataset

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadXLSXTable reads the first sheet of an XLSX workbook into a Table.
// Metric datasets from research partners often arrive as spreadsheets; this
// converts them to the same shape the CSV path produces so they can be
// re-exported for the bucket store.
func ReadXLSXTable(path string) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("dataset: xlsx %s has no sheets", path)
	}
	sheet := f.Sheets[0]

	var records [][]string
	for _, row := range sheet.Rows {
		cells := make([]string, 0, len(row.Cells))
		for _, cell := range row.Cells {
			cells = append(cells, strings.TrimSpace(cell.String()))
		}
		records = append(records, cells)
	}
	if len(records) == 0 {
		return nil, eris.Errorf("dataset: xlsx %s is empty", path)
	}

	return tableFromRecords(records[0], records[1:]), nil
}

// WriteCSV renders the table as CSV text, header first.
func (t *Table) WriteCSV() string {
	var b strings.Builder
	b.WriteString(strings.Join(t.Columns, ","))
	b.WriteByte('\n')
	for i := range t.Rows {
		fields := make([]string, len(t.Columns))
		for j, col := range t.Columns {
			fields[j] = t.String(i, col)
		}
		b.WriteString(strings.Join(fields, ","))
		b.WriteByte('\n')
	}
	return b.String()
}

