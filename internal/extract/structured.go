package extract

import (
	"regexp"
	"strings"

	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/domain"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/layout"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/numeric"
)

// columnMap holds the resolved column index per logical field. -1 means the
// column is absent.
type columnMap struct {
	productCode int
	description int
	customsCode int
	unitMeasure int
	quantity    int
	unitPrice   int
	totalPrice  int
}

func newColumnMap() columnMap {
	return columnMap{
		productCode: -1,
		description: -1,
		customsCode: -1,
		unitMeasure: -1,
		quantity:    -1,
		unitPrice:   -1,
		totalPrice:  -1,
	}
}

// complete reports whether all columns required for structured extraction
// are mapped.
func (m columnMap) complete() bool {
	return m.productCode >= 0 && m.quantity >= 0 && m.unitPrice >= 0 && m.totalPrice >= 0
}

// StructuredStrategy extracts product rows from tables whose header row
// carries the known column labels. It is the highest-confidence strategy
// and runs first in the default chain.
type StructuredStrategy struct{}

// NewStructuredStrategy returns the header-mapped extraction strategy.
func NewStructuredStrategy() *StructuredStrategy {
	return &StructuredStrategy{}
}

// Name implements Strategy.
func (s *StructuredStrategy) Name() string { return "structured" }

// Attempt implements Strategy. It claims the page when at least one table
// has a complete header mapping and yields at least one record.
func (s *StructuredStrategy) Attempt(page layout.Page) ([]domain.ProductRecord, bool) {
	var records []domain.ProductRecord

	for _, table := range page.Tables {
		if table.RowCount() < 2 {
			continue
		}
		header, ok := table.Row(0)
		if !ok {
			continue
		}
		colMap := mapHeaderColumns(header)
		if !colMap.complete() {
			colMap = positionalFallback(colMap, header.Len())
		}
		if !colMap.complete() {
			continue
		}
		records = append(records, extractStructuredRows(table, colMap)...)
	}

	return records, len(records) > 0
}

// mapHeaderColumns matches header cell texts against the known labels.
// Matching is case-insensitive and substring-based, since OCR often glues
// neighboring words onto the label.
func mapHeaderColumns(header layout.RowCells) columnMap {
	m := newColumnMap()
	for j := 0; j < header.Len(); j++ {
		text := strings.ToLower(strings.TrimSpace(header.Cell(j)))
		switch {
		case strings.Contains(text, "prodotto"):
			m.productCode = j
		case strings.Contains(text, "voce dog"):
			m.customsCode = j
		case text == "um":
			m.unitMeasure = j
		case strings.Contains(text, "qtà fatt"):
			m.quantity = j
		case strings.Contains(text, "prezzo unitario"):
			m.unitPrice = j
		case strings.Contains(text, "importo"):
			m.totalPrice = j
		}
	}
	return m
}

// positionalFallback fills unmapped columns by their conventional position
// in this invoice family. Only columns that exist are assigned.
func positionalFallback(m columnMap, width int) columnMap {
	assign := func(target *int, idx int) {
		if *target < 0 && idx < width {
			*target = idx
		}
	}
	assign(&m.productCode, 0)
	assign(&m.customsCode, 2)
	assign(&m.unitMeasure, 3)
	assign(&m.quantity, 4)
	assign(&m.unitPrice, 5)
	assign(&m.totalPrice, 6)
	return m
}

func extractStructuredRows(table layout.Table, colMap columnMap) []domain.ProductRecord {
	var records []domain.ProductRecord

	for i := 1; i < table.RowCount(); i++ {
		row, ok := table.Row(i)
		if !ok {
			continue
		}
		productLines := strings.Split(strings.TrimSpace(row.Cell(colMap.productCode)), "\n")
		code := strings.TrimSpace(productLines[0])
		if code == "" || strings.HasPrefix(strings.ToLower(code), "total") {
			continue
		}
		if !articleCodeRe.MatchString(code) {
			// Wrapped description text lands in a row of its own, sometimes
			// with a reprinted amount. It extends the record above and never
			// opens a new one.
			if len(records) > 0 {
				appendContinuation(&records[len(records)-1], productLines)
			}
			continue
		}
		if record, ok := recordFromRow(row, colMap, productLines); ok {
			records = append(records, record)
		}
	}
	return records
}

// appendContinuation folds a continuation row's text into the previous
// record's description.
func appendContinuation(record *domain.ProductRecord, lines []string) {
	for _, line := range lines {
		v := numeric.CleanString(line)
		if v == "" {
			continue
		}
		if record.Description == "" {
			record.Description = v
		} else {
			record.Description += " | " + v
		}
	}
}

// recordFromRow builds one product record from a row-bound accessor. The
// product cell may span multiple lines: the first line is the code, the
// rest feed the description.
func recordFromRow(row layout.RowCells, colMap columnMap, productLines []string) (domain.ProductRecord, bool) {
	totalRaw := numeric.CleanString(row.Cell(colMap.totalPrice))
	if totalRaw == "" {
		return domain.ProductRecord{}, false
	}

	record := domain.ProductRecord{
		ProductCode:   strings.TrimSpace(productLines[0]),
		Description:   buildDescription(row, colMap, productLines),
		CustomsCode:   numeric.CleanString(row.Cell(colMap.customsCode)),
		UnitOfMeasure: numeric.NormalizeUnit(row.Cell(colMap.unitMeasure)),
		Quantity:      numeric.ParseNullDecimal(row.Cell(colMap.quantity)),
		UnitPrice:     numeric.ParseNullDecimal(row.Cell(colMap.unitPrice)),
		TotalPrice:    numeric.ParseNullDecimal(totalRaw),
	}
	return record, true
}

// buildDescription joins the column next to the product code with the
// product cell's continuation lines.
func buildDescription(row layout.RowCells, colMap columnMap, productLines []string) string {
	var parts []string

	descCol := colMap.productCode + 1
	if descCol != colMap.customsCode && descCol < row.Len() {
		if v := numeric.CleanString(row.Cell(descCol)); v != "" {
			parts = append(parts, v)
		}
	}
	for _, line := range productLines[1:] {
		if v := numeric.CleanString(line); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " | ")
}

// articleCodeRe is the shape a product cell must have to open a new row:
// two or three uppercase letters followed by alphanumerics and dots.
var articleCodeRe = regexp.MustCompile(`^[A-Z]{2,3}[A-Z0-9][A-Z0-9.]*`)

// productCodeShapeRe recognizes article codes like "MMA01.234.567" used by
// continuation-row detection in the flexible strategy.
var productCodeShapeRe = regexp.MustCompile(`^MMA\d+\.\d+\.\d+`)
