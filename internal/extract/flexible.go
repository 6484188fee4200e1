package extract

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/domain"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/layout"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/numeric"
)

// Known description openings for this invoice family, used to spot a
// product row when no article code is present.
var descriptionRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^Interno adesivo`),
	regexp.MustCompile(`(?i)^Filo per impunture`),
	regexp.MustCompile(`(?i)^Etichetta a nr`),
	regexp.MustCompile(`(?i)^Particolare per confezione`),
	regexp.MustCompile(`(?i)^Sigillo`),
	regexp.MustCompile(`(?i)^Tessuto`),
	regexp.MustCompile(`(?i)^Bottone`),
	regexp.MustCompile(`(?i)^Materiale da imballo`),
}

// FlexibleStrategy reconstructs product rows from tables without a usable
// header: it anchors on article codes or known description prefixes and
// reads the trailing numeric columns as quantity, unit price and total.
type FlexibleStrategy struct{}

// NewFlexibleStrategy returns the pattern-based extraction strategy.
func NewFlexibleStrategy() *FlexibleStrategy {
	return &FlexibleStrategy{}
}

// Name implements Strategy.
func (s *FlexibleStrategy) Name() string { return "flexible" }

// Attempt implements Strategy.
func (s *FlexibleStrategy) Attempt(page layout.Page) ([]domain.ProductRecord, bool) {
	var records []domain.ProductRecord

	for _, table := range page.Tables {
		if table.RowCount() < 2 {
			continue
		}
		for i := 1; i < table.RowCount(); i++ {
			row, ok := table.Row(i)
			if !ok {
				continue
			}
			if record, ok := flexibleRecord(row); ok {
				records = append(records, record)
			}
		}
	}
	return records, len(records) > 0
}

type rowAnchor struct {
	code        string
	description string
	column      int
	found       bool
}

// findAnchor scans the row's cells for an article code or a known
// description line. Article codes win over descriptions.
func findAnchor(row layout.RowCells) rowAnchor {
	anchor := rowAnchor{column: -1}

	for j := 0; j < row.Len(); j++ {
		cell := numeric.CleanString(row.Cell(j))
		if cell == "" {
			continue
		}

		var codes, descriptions []string
		for _, line := range strings.Split(cell, "\n") {
			line = strings.TrimSpace(line)
			if productCodeShapeRe.MatchString(line) {
				codes = append(codes, line)
				continue
			}
			for _, re := range descriptionRes {
				if re.MatchString(line) {
					descriptions = append(descriptions, line)
					break
				}
			}
		}

		if len(codes) > 0 {
			anchor.code = codes[0]
			anchor.column = j
			anchor.found = true
			if len(descriptions) > 0 {
				anchor.description = descriptions[0]
			} else {
				anchor.description = remainingLines(cell, codes[0])
			}
			return anchor
		}
		if len(descriptions) > 0 && !anchor.found {
			anchor.description = descriptions[0]
			anchor.column = j
			anchor.found = true
		}
	}
	return anchor
}

// remainingLines joins the non-code lines of the cell as a description.
func remainingLines(cell, code string) string {
	var parts []string
	for _, line := range strings.Split(cell, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && line != code && !strings.HasPrefix(line, "MMA") {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " | ")
}

func flexibleRecord(row layout.RowCells) (domain.ProductRecord, bool) {
	anchor := findAnchor(row)
	if !anchor.found {
		return domain.ProductRecord{}, false
	}

	type positioned struct {
		col   int
		value decimal.Decimal
	}
	var numbers []positioned
	var unitCandidates []string

	for j := 0; j < row.Len(); j++ {
		if j == anchor.column {
			continue
		}
		cell := numeric.CleanString(row.Cell(j))
		if cell == "" {
			continue
		}
		if d, ok := numeric.ParseDecimal(cell); ok && d.IsPositive() {
			numbers = append(numbers, positioned{col: j, value: d})
		}
		if numeric.ContainsUnitToken(cell) {
			unitCandidates = append(unitCandidates, cell)
		}
	}

	// Cells arrive left to right, so the trailing three numbers are
	// quantity, unit price and line total in that order.
	if len(numbers) < 3 {
		return domain.ProductRecord{}, false
	}
	quantity := numbers[len(numbers)-3].value
	unitPrice := numbers[len(numbers)-2].value
	totalPrice := numbers[len(numbers)-1].value

	record := domain.ProductRecord{
		Quantity:   decimal.NullDecimal{Decimal: quantity, Valid: true},
		UnitPrice:  decimal.NullDecimal{Decimal: unitPrice, Valid: true},
		TotalPrice: decimal.NullDecimal{Decimal: totalPrice, Valid: true},
	}
	if anchor.code != "" {
		record.ProductCode = anchor.code
		record.Description = anchor.description
	} else {
		record.ProductCode = anchor.description
	}
	if len(unitCandidates) > 0 {
		record.UnitOfMeasure = numeric.NormalizeUnit(unitCandidates[0])
	}

	if !plausibleArithmetic(quantity, unitPrice, totalPrice) {
		return domain.ProductRecord{}, false
	}
	return record, true
}

// plausibleArithmetic checks quantity*price against the total with a 5%
// allowance for rounding in the printed values.
func plausibleArithmetic(quantity, unitPrice, totalPrice decimal.Decimal) bool {
	if totalPrice.IsZero() {
		return false
	}
	calculated := quantity.Mul(unitPrice)
	diff := calculated.Sub(totalPrice).Abs()
	return diff.Div(totalPrice).LessThanOrEqual(decimal.NewFromFloat(0.05))
}
