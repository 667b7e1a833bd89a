package export

import (
	"errors"
	"fmt"
)

// ErrEmptyHeader is returned when a table has no columns to render.
var ErrEmptyHeader = errors.New("table requires at least one column")

// Format names an output encoding.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// Table is an ordered grid of cells; every row has len(Columns) cells.
type Table struct {
	Title   string
	Columns []string
	Rows    [][]string
}

// AddRow appends a row, padding or truncating to the column count.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.Columns))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
}

// Renderer encodes a table into a file body.
type Renderer interface {
	Render(Table) ([]byte, error)
	ContentType() string
	Extension() string
}

// RendererFor returns the renderer for a format.
func RendererFor(format Format) (Renderer, error) {
	switch format {
	case FormatCSV:
		return CSVRenderer{}, nil
	case FormatPDF:
		return PDFRenderer{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
