package layout

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/domain"
)

// FitzDocument is a native PDF adapter built on go-fitz. It is a
// best-effort fallback for when no layout-service document accompanies the
// upload: raw text is exact, table geometry is reconstructed from
// whitespace runs, so the flexible strategy is usually the one that fires.
type FitzDocument struct {
	doc   *fitz.Document
	pages []Page
}

var cellSplitRe = regexp.MustCompile(`\s{2,}`)

// OpenPDF opens a PDF file and derives page layouts from its text.
func OpenPDF(path string) (*FitzDocument, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %v", domain.ErrParseFailure, err)
	}

	d := &FitzDocument{doc: doc}
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			_ = doc.Close()
			return nil, fmt.Errorf("%w: read page %d text: %v", domain.ErrParseFailure, i+1, err)
		}
		d.pages = append(d.pages, pageFromText(i+1, text))
	}
	if len(d.pages) == 0 {
		_ = doc.Close()
		return nil, fmt.Errorf("%w: pdf has no pages", domain.ErrParseFailure)
	}
	return d, nil
}

// pageFromText rebuilds a Page from linear text. Line index stands in for
// the vertical position; runs of consecutive multi-cell lines become one
// table grid.
func pageFromText(number int, text string) Page {
	page := Page{Number: number, Text: text}

	rawLines := strings.Split(text, "\n")
	var tableRows [][]string
	var tableTop float64

	flush := func(bottom float64) {
		if len(tableRows) >= 2 {
			page.Tables = append(page.Tables, Table{
				Rows:   tableRows,
				Top:    tableTop,
				Bottom: bottom,
			})
		}
		tableRows = nil
	}

	for i, raw := range rawLines {
		y := float64(i)
		line := strings.TrimRight(raw, " \t")
		page.Lines = append(page.Lines, Line{Text: line, Y: y})

		cells := cellSplitRe.Split(strings.TrimSpace(line), -1)
		if len(cells) >= 3 {
			if tableRows == nil {
				tableTop = y
			}
			tableRows = append(tableRows, cells)
		} else {
			flush(y)
		}
	}
	flush(float64(len(rawLines)))

	return page
}

// PageCount returns the number of pages.
func (d *FitzDocument) PageCount() int { return len(d.pages) }

// Page returns the layout of page n (1-based).
func (d *FitzDocument) Page(n int) (Page, error) {
	if err := CheckPage(d, n); err != nil {
		return Page{}, err
	}
	return d.pages[n-1], nil
}

// Close releases the underlying fitz document.
func (d *FitzDocument) Close() error {
	if d.doc == nil {
		return nil
	}
	err := d.doc.Close()
	d.doc = nil
	return err
}
