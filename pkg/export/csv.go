package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSVRenderer writes RFC 4180 CSV with a header row.
type CSVRenderer struct{}

func (CSVRenderer) ContentType() string { return "text/csv" }
func (CSVRenderer) Extension() string   { return "csv" }

// Render encodes the table.
func (CSVRenderer) Render(t Table) ([]byte, error) {
	if len(t.Columns) == 0 {
		return nil, ErrEmptyHeader
	}
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(t.Columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, fmt.Errorf("write csv rows: %w", err)
	}
	return buf.Bytes(), nil
}
