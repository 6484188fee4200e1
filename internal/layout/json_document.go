package layout

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/domain"
)

// jsonDocument is the wire format emitted by the external layout service:
// per page the full text, positioned lines, and table cell grids.
type jsonDocument struct {
	Pages []jsonPage `json:"pages"`
}

type jsonPage struct {
	Number int         `json:"number"`
	Text   string      `json:"text"`
	Lines  []jsonLine  `json:"lines"`
	Tables []jsonTable `json:"tables"`
}

type jsonLine struct {
	Text string  `json:"text"`
	Y    float64 `json:"y"`
}

type jsonTable struct {
	Top    float64    `json:"top"`
	Bottom float64    `json:"bottom"`
	Rows   [][]string `json:"rows"`
}

// JSONDocument is a Document backed by a decoded layout-service payload.
type JSONDocument struct {
	pages []Page
}

// ReadJSON decodes a layout-service document from r.
func ReadJSON(r io.Reader) (*JSONDocument, error) {
	var raw jsonDocument
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode layout document: %v", domain.ErrParseFailure, err)
	}
	if len(raw.Pages) == 0 {
		return nil, fmt.Errorf("%w: layout document has no pages", domain.ErrParseFailure)
	}

	pages := make([]Page, 0, len(raw.Pages))
	for i, rp := range raw.Pages {
		number := rp.Number
		if number == 0 {
			number = i + 1
		}
		page := Page{Number: number, Text: rp.Text}
		for _, rl := range rp.Lines {
			page.Lines = append(page.Lines, Line{Text: rl.Text, Y: rl.Y})
		}
		for _, rt := range rp.Tables {
			page.Tables = append(page.Tables, Table{Rows: rt.Rows, Top: rt.Top, Bottom: rt.Bottom})
		}
		pages = append(pages, page)
	}
	return &JSONDocument{pages: pages}, nil
}

// OpenJSON reads a layout-service document from a file.
func OpenJSON(path string) (*JSONDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open layout document: %v", domain.ErrParseFailure, err)
	}
	defer f.Close()
	return ReadJSON(f)
}

// PageCount returns the number of pages.
func (d *JSONDocument) PageCount() int { return len(d.pages) }

// Page returns the layout of page n (1-based).
func (d *JSONDocument) Page(n int) (Page, error) {
	if err := CheckPage(d, n); err != nil {
		return Page{}, err
	}
	return d.pages[n-1], nil
}

// Close is a no-op for decoded documents.
func (d *JSONDocument) Close() error { return nil }

// NewStaticDocument builds a Document from in-memory pages, mainly for
// tests and synthetic inputs.
func NewStaticDocument(pages ...Page) *JSONDocument {
	copied := make([]Page, len(pages))
	copy(copied, pages)
	for i := range copied {
		if copied[i].Number == 0 {
			copied[i].Number = i + 1
		}
	}
	return &JSONDocument{pages: copied}
}
