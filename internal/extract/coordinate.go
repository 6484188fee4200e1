package extract

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/domain"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/layout"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/numeric"
)

// Default marker pair delimiting the goods table in this invoice family.
const (
	DefaultStartMarker = "MS5LH0002 3635"
	DefaultEndMarker   = "MS5LH0002 3636"
)

// endMarkerBuffer extends the table region past the end marker so trailing
// rows printed right under it are still captured.
const endMarkerBuffer = 50.0

// coordProductCodeRe matches a full article code, optionally with variant
// and size suffix ("MMA01.234.567 / BLU / 42").
var coordProductCodeRe = regexp.MustCompile(`MMA\d+\.\d+\.\d+(?:\s*/\s*\w+\s*/\s*\d+)?`)

var leadingPunctRe = regexp.MustCompile(`^[-:\s]+`)

// CoordinateDebug reports what the coordinate strategy saw, for callers
// that need to distinguish "no table between markers" from "table present
// but empty".
type CoordinateDebug struct {
	TableFound      bool            `json:"table_found"`
	HeadersDetected bool            `json:"headers_detected"`
	ColumnMapping   map[string]int  `json:"column_coordinates,omitempty"`
	RowsExtracted   int             `json:"rows_extracted"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
}

// CoordinateResult is the full outcome of a coordinate-based extraction
// run, including per-step diagnostics.
type CoordinateResult struct {
	Products      []domain.ProductRecord
	ParsingErrors []string
	Debug         CoordinateDebug
}

// CoordinateStrategy extracts the table delimited by a marker pair. It
// resolves column positions from the detected header row and merges paired
// rows where a product's numbers print on the line above its code.
type CoordinateStrategy struct {
	startMarker string
	endMarker   string
}

// NewCoordinateStrategy returns the marker-bounded strategy. Empty markers
// fall back to the defaults for this invoice family.
func NewCoordinateStrategy(startMarker, endMarker string) *CoordinateStrategy {
	if startMarker == "" {
		startMarker = DefaultStartMarker
	}
	if endMarker == "" {
		endMarker = DefaultEndMarker
	}
	return &CoordinateStrategy{startMarker: startMarker, endMarker: endMarker}
}

// Name implements Strategy.
func (s *CoordinateStrategy) Name() string { return "coordinate" }

// Attempt implements Strategy.
func (s *CoordinateStrategy) Attempt(page layout.Page) ([]domain.ProductRecord, bool) {
	result := s.extractPage(page)
	return result.Products, len(result.Products) > 0
}

// Extract scans the whole document for the first marker-bounded table.
// Absence of the table is a reported condition, not an error: the result
// always carries debug info and parsing errors instead.
func (s *CoordinateStrategy) Extract(doc layout.Document) CoordinateResult {
	for n := 1; n <= doc.PageCount(); n++ {
		page, err := doc.Page(n)
		if err != nil {
			return CoordinateResult{ParsingErrors: []string{err.Error()}}
		}
		result := s.extractPage(page)
		if result.Debug.TableFound {
			return result
		}
	}
	return CoordinateResult{
		ParsingErrors: []string{"No table found between specified markers"},
	}
}

func (s *CoordinateStrategy) extractPage(page layout.Page) CoordinateResult {
	var result CoordinateResult

	startY, endY, found := s.findRegion(page)
	if !found {
		return result
	}

	table, found := firstTableInRegion(page, startY, endY+endMarkerBuffer)
	if !found {
		return result
	}
	result.Debug.TableFound = true

	if table.RowCount() == 0 {
		result.ParsingErrors = append(result.ParsingErrors, "Could not detect table headers")
		return result
	}
	header, _ := table.Row(0)
	colMap := mapCoordinateHeaders(header)
	if len(colMap) == 0 {
		result.ParsingErrors = append(result.ParsingErrors, "Could not detect table headers")
		return result
	}
	result.Debug.HeadersDetected = true
	result.Debug.ColumnMapping = colMap

	rawRows := readRawRows(table, colMap)
	merged := mergePairedRows(rawRows)
	if len(merged) == 0 {
		result.ParsingErrors = append(result.ParsingErrors, "No data rows extracted")
		return result
	}

	total := decimal.Zero
	for _, raw := range merged {
		record := raw.toRecord()
		result.Products = append(result.Products, record)
		if record.TotalPrice.Valid {
			total = total.Add(record.TotalPrice.Decimal)
		}
	}
	result.Debug.RowsExtracted = len(result.Products)
	result.Debug.TotalAmount = total
	return result
}

// findRegion locates the vertical span between the marker pair. When the
// markers print in reverse order the span is normalized, matching how some
// sources emit text bottom-up.
func (s *CoordinateStrategy) findRegion(page layout.Page) (startY, endY float64, found bool) {
	startY = -1
	for _, line := range page.Lines {
		if strings.Contains(line.Text, s.startMarker) {
			startY = line.Y
			break
		}
	}
	if startY < 0 {
		return 0, 0, false
	}

	for _, line := range page.Lines {
		if strings.Contains(line.Text, s.endMarker) && line.Y > startY {
			return startY, line.Y, true
		}
	}
	for _, line := range page.Lines {
		if strings.Contains(line.Text, s.endMarker) && line.Y < startY {
			return line.Y, startY, true
		}
	}
	return 0, 0, false
}

func firstTableInRegion(page layout.Page, top, bottom float64) (layout.Table, bool) {
	for _, table := range page.Tables {
		if table.Top >= top && table.Top <= bottom {
			return table, true
		}
	}
	return layout.Table{}, false
}

var coordinateHeaderLabels = map[string]string{
	"Prodotto/Var/Tg": "product_code",
	"Voce dog":        "voce_dog",
	"UM":              "unit_of_measure",
	"Qtà fatt":        "quantity",
	"Prezzo unitario": "unit_price",
	"Importo":         "total_price",
}

// mapCoordinateHeaders resolves column indices from the header row. Labels
// match in either containment direction since cell boundaries sometimes
// truncate them. An unlabeled column right after the product code column is
// treated as the description.
func mapCoordinateHeaders(header layout.RowCells) map[string]int {
	colMap := make(map[string]int)

	for j := 0; j < header.Len(); j++ {
		text := strings.TrimSpace(header.Cell(j))
		if text == "" {
			continue
		}
		for label, field := range coordinateHeaderLabels {
			if strings.Contains(text, label) || strings.Contains(label, text) {
				colMap[field] = j
				break
			}
		}
	}

	if idx, ok := colMap["product_code"]; ok && idx == 0 {
		limit := header.Len()
		if limit > 4 {
			limit = 4
		}
		for j := 1; j < limit; j++ {
			if strings.TrimSpace(header.Cell(j)) == "" {
				colMap["description"] = j
				break
			}
		}
	}
	return colMap
}

// coordRow is one raw table row keyed by logical field, before pairing.
type coordRow struct {
	productCode string
	description string
	voceDog     string
	unitMeasure string
	quantity    string
	unitPrice   string
	totalPrice  string
}

func (r coordRow) hasProductCode() bool {
	return strings.TrimSpace(r.productCode) != "" && strings.Contains(r.productCode, "MMA")
}

func (r coordRow) hasNumericData() bool {
	return strings.TrimSpace(r.quantity) != "" ||
		strings.TrimSpace(r.unitPrice) != "" ||
		strings.TrimSpace(r.totalPrice) != ""
}

func readRawRows(table layout.Table, colMap map[string]int) []coordRow {
	cell := func(row layout.RowCells, field string) string {
		idx, ok := colMap[field]
		if !ok {
			return ""
		}
		return strings.TrimSpace(row.Cell(idx))
	}

	var rows []coordRow
	for i := 1; i < table.RowCount(); i++ {
		row, ok := table.Row(i)
		if !ok {
			continue
		}
		rows = append(rows, coordRow{
			productCode: cell(row, "product_code"),
			description: cell(row, "description"),
			voceDog:     cell(row, "voce_dog"),
			unitMeasure: cell(row, "unit_of_measure"),
			quantity:    cell(row, "quantity"),
			unitPrice:   cell(row, "unit_price"),
			totalPrice:  cell(row, "total_price"),
		})
	}
	return rows
}

// mergePairedRows combines split product rows. The table alternates between
// a partial row holding only numbers and the main row holding the product
// code; the numbers belong to the code row that follows them.
func mergePairedRows(rawRows []coordRow) []coordRow {
	var merged []coordRow

	for i := 0; i < len(rawRows); i++ {
		current := rawRows[i]

		if current.hasProductCode() {
			if i > 0 {
				prev := rawRows[i-1]
				if current.quantity == "" {
					current.quantity = prev.quantity
				}
				if current.unitPrice == "" {
					current.unitPrice = prev.unitPrice
				}
				if current.totalPrice == "" {
					current.totalPrice = prev.totalPrice
				}
				if current.unitMeasure == "" {
					current.unitMeasure = prev.unitMeasure
				}
				if current.voceDog == "" {
					current.voceDog = prev.voceDog
				}
			}
			merged = append(merged, current)
			continue
		}

		if i+1 < len(rawRows) {
			if !rawRows[i+1].hasProductCode() {
				// Not a supplement for the next row; keep it as its own
				// product without a clear code.
				merged = append(merged, current)
			}
			continue
		}
		if current.hasNumericData() {
			merged = append(merged, current)
		}
	}
	return merged
}

func (r coordRow) toRecord() domain.ProductRecord {
	code, extractedDesc := splitCodeAndDescription(r.productCode)
	description := r.description
	if description == "" {
		description = extractedDesc
	}

	return domain.ProductRecord{
		ProductCode:   code,
		Description:   description,
		Material:      numeric.CleanString(r.voceDog),
		UnitOfMeasure: numeric.CleanString(r.unitMeasure),
		Quantity:      numeric.ParseNullDecimal(r.quantity),
		UnitPrice:     numeric.ParseNullDecimal(r.unitPrice),
		TotalPrice:    numeric.ParseNullDecimal(r.totalPrice),
	}
}

// splitCodeAndDescription separates the article code from description text
// sharing the same cell. When the code prints on a later line, the lines
// before it become the description.
func splitCodeAndDescription(raw string) (code, description string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}

	if loc := coordProductCodeRe.FindStringIndex(raw); loc != nil {
		code = strings.TrimSpace(raw[loc[0]:loc[1]])
		description = leadingPunctRe.ReplaceAllString(raw[loc[1]:], "")
		return code, strings.TrimSpace(description)
	}

	// No recognizable code anywhere; the whole cell is the identifier.
	return raw, ""
}
