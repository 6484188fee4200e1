// Package layout defines the page layout boundary: the per-page raw text
// and table geometry that the extraction pipeline consumes. Layout is
// produced outside the core, either by the external layout service (JSON
// documents) or by the native PDF adapter.
package layout

import (
	"fmt"

	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/domain"
)

// Document supplies page layouts for one invoice document.
type Document interface {
	// PageCount returns the number of pages in the document.
	PageCount() int
	// Page returns the layout of a page. Pages are 1-based.
	Page(n int) (Page, error)
	// Close releases any resources held by the source.
	Close() error
}

// Page is the layout of a single page: its full raw text, per-line text
// with vertical positions, and the tables detected on it.
type Page struct {
	Number int
	Text   string
	Lines  []Line
	Tables []Table
}

// Line is one text line with its vertical position on the page. Y grows
// top to bottom.
type Line struct {
	Text string
	Y    float64
}

// Table is a detected table as a grid of cell texts plus its vertical
// extent on the page. Top/Bottom are zero when the source has no geometry.
type Table struct {
	Rows   [][]string
	Top    float64
	Bottom float64
}

// RowCells is a row-bound cell accessor: it exposes the cells of exactly
// one row, so field reads cannot reach into a different row by
// construction.
type RowCells struct {
	cells []string
}

// Row returns the row-bound accessor for row i, or ok=false when out of
// range.
func (t Table) Row(i int) (RowCells, bool) {
	if i < 0 || i >= len(t.Rows) {
		return RowCells{}, false
	}
	return RowCells{cells: t.Rows[i]}, true
}

// RowCount returns the number of rows in the table.
func (t Table) RowCount() int { return len(t.Rows) }

// Cell returns the text of column j in this row, or "" when the row has
// fewer columns.
func (r RowCells) Cell(j int) string {
	if j < 0 || j >= len(r.cells) {
		return ""
	}
	return r.cells[j]
}

// Len returns the number of cells in this row.
func (r RowCells) Len() int { return len(r.cells) }

// Cells returns a copy of the row's cell texts.
func (r RowCells) Cells() []string {
	out := make([]string, len(r.cells))
	copy(out, r.cells)
	return out
}

// CheckPage validates a requested page number against a document.
func CheckPage(doc Document, n int) error {
	if n < 1 || n > doc.PageCount() {
		return fmt.Errorf("%w: page %d out of range (1..%d)",
			domain.ErrParseFailure, n, doc.PageCount())
	}
	return nil
}
