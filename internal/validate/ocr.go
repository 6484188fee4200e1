// Package validate scores extracted page data against the page's own raw
// text and arithmetic invariants, producing per-page confidence and
// auto-corrections.
package validate

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/domain"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/observability"
)

// Confidence weights and penalty. Consistency dominates because arithmetic
// mismatches indicate misread digits, the costliest defect downstream.
const (
	consistencyWeight = 0.6
	textMatchWeight   = 0.4
	perErrorPenalty   = 0.1
	maxErrorPenalty   = 0.5
)

var pointOhOne = decimal.RequireFromString("0.01")
var relTolerance = decimal.RequireFromString("0.001")

// OCRValidator checks a page's product records for internal consistency
// and presence in the source text.
type OCRValidator struct {
	cfg domain.ProcessingConfig
	log *observability.Logger
}

// NewOCRValidator builds a validator for the given configuration.
func NewOCRValidator(cfg domain.ProcessingConfig, log *observability.Logger) *OCRValidator {
	if log == nil {
		log = observability.Nop()
	}
	return &OCRValidator{cfg: cfg, log: log}
}

// ValidatePage validates one page. With validation disabled every page is
// trivially valid at full confidence. A panic inside validation marks the
// page invalid at confidence zero instead of failing the pipeline.
func (v *OCRValidator) ValidatePage(page domain.PageData) (result domain.ValidationResult) {
	result = domain.ValidationResult{
		PageNumber:      page.PageNumber,
		IsValid:         true,
		ConfidenceScore: 1.0,
	}

	if !v.cfg.EnableOCRValidation {
		return result
	}

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("OCR validation failed for page %d: %v", page.PageNumber, r)
			result.Errors = append(result.Errors, msg)
			result.IsValid = false
			result.ConfidenceScore = 0
			result.CorrectedData = nil
			v.log.Error().Int("page", page.PageNumber).Msgf("validation panic: %v", r)
		}
	}()

	consistencyScore, consistencyErrors := v.checkConsistency(page.Products)
	textScore, textErrors := v.crossReferenceText(page.Products, page.RawText)

	result.Errors = append(result.Errors, consistencyErrors...)
	result.Errors = append(result.Errors, textErrors...)
	result.ConfidenceScore = confidenceScore(consistencyScore, textScore, len(result.Errors))
	result.IsValid = result.ConfidenceScore >= v.cfg.OCRConfidenceThreshold && len(page.Products) > 0

	if !result.IsValid {
		result.CorrectedData = v.generateCorrections(page.Products, result.Errors)
	}
	return result
}

// checkConsistency verifies each product's arithmetic. Products whose
// numeric fields do not all parse are non-contributing; products whose
// quantity*price disagrees with the total beyond tolerance record an error
// but keep their data.
func (v *OCRValidator) checkConsistency(products []domain.ProductRecord) (score float64, errors []string) {
	if len(products) == 0 {
		return 0, nil
	}

	valid := 0
	for i, product := range products {
		if !product.Quantity.Valid || !product.UnitPrice.Valid || !product.TotalPrice.Valid {
			errors = append(errors, fmt.Sprintf("Product %d: Invalid numeric fields", i+1))
			continue
		}
		if msg := priceCalculationError(product, i); msg != "" {
			errors = append(errors, msg)
			continue
		}
		valid++
	}
	return float64(valid) / float64(len(products)), errors
}

// priceCalculationError checks quantity*unit_price against total_price
// within max(0.01, 0.1% of total). Returns "" when consistent.
func priceCalculationError(product domain.ProductRecord, index int) string {
	calculated := product.Quantity.Decimal.Mul(product.UnitPrice.Decimal)
	total := product.TotalPrice.Decimal

	diff := calculated.Sub(total).Abs()
	tolerance := total.Mul(relTolerance)
	if tolerance.LessThan(pointOhOne) {
		tolerance = pointOhOne
	}
	if diff.GreaterThan(tolerance) {
		return fmt.Sprintf("Product %d: Price calculation mismatch. Expected: %s, Found: %s, Difference: %s",
			index+1, calculated.String(), total.String(), diff.String())
	}
	return ""
}

// crossReferenceText checks that each product code appears literally in
// the page's raw text, trying generated variants before declaring a miss.
func (v *OCRValidator) crossReferenceText(products []domain.ProductRecord, rawText string) (score float64, errors []string) {
	if rawText == "" {
		return 0, []string{"No raw text available for cross-referencing"}
	}
	if len(products) == 0 {
		return 0, nil
	}

	found := 0
	for i, product := range products {
		if product.ProductCode == "" {
			continue
		}
		matched := false
		for _, variant := range codeVariants(product.ProductCode) {
			if strings.Contains(rawText, variant) {
				matched = true
				break
			}
		}
		if matched {
			found++
		} else {
			errors = append(errors, fmt.Sprintf("Product %d: Code '%s' not found in raw text", i+1, product.ProductCode))
		}
	}
	return float64(found) / float64(len(products)), errors
}

// codeVariants generates plausible renderings of a product code: the code
// itself, alphanumerics only, and dot/space swaps, covering the common
// ways text extraction mangles separators.
func codeVariants(code string) []string {
	seen := map[string]bool{code: true}
	variants := []string{code}

	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			variants = append(variants, v)
		}
	}

	var alnum strings.Builder
	for _, r := range code {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			alnum.WriteRune(r)
		}
	}
	add(alnum.String())

	if strings.Contains(code, ".") {
		add(strings.ReplaceAll(code, ".", " "))
	}
	if strings.Contains(code, " ") {
		add(strings.ReplaceAll(code, " ", "."))
	}
	return variants
}

// confidenceScore combines the two scores and applies the error penalty,
// clamped to [0,1] and rounded to 2 decimals.
func confidenceScore(consistencyScore, textScore float64, errorCount int) float64 {
	overall := consistencyScore*consistencyWeight + textScore*textMatchWeight
	if errorCount > 0 {
		penalty := math.Min(perErrorPenalty*float64(errorCount), maxErrorPenalty)
		overall -= penalty
	}
	if overall < 0 {
		overall = 0
	}
	if overall > 1 {
		overall = 1
	}
	return math.Round(overall*100) / 100
}

// generateCorrections builds the corrected product set for an invalid
// page. Only totals implicated in a calculation mismatch are recomputed;
// everything else is copied through unchanged.
func (v *OCRValidator) generateCorrections(products []domain.ProductRecord, errors []string) *domain.CorrectionSet {
	set := &domain.CorrectionSet{}

	for i, product := range products {
		corrected := product
		if hasCalcMismatch(errors, i) && product.Quantity.Valid && product.UnitPrice.Valid {
			corrected.TotalPrice = decimal.NullDecimal{
				Decimal: product.Quantity.Decimal.Mul(product.UnitPrice.Decimal),
				Valid:   true,
			}
		}
		set.CorrectedProducts = append(set.CorrectedProducts, corrected)
	}

	if anyErrorContains(errors, "price calculation mismatch") {
		set.CorrectionNotes = append(set.CorrectionNotes,
			"Price calculation mismatches detected. Consider manual review of unit prices and totals.")
	}
	if anyErrorContains(errors, "not found in raw text") {
		set.CorrectionNotes = append(set.CorrectionNotes,
			"Some product codes not found in raw text. OCR quality may be poor on this page.")
	}
	return set
}

func hasCalcMismatch(errors []string, productIndex int) bool {
	prefix := fmt.Sprintf("Product %d:", productIndex+1)
	for _, err := range errors {
		if strings.HasPrefix(err, prefix) && strings.Contains(strings.ToLower(err), "calculation mismatch") {
			return true
		}
	}
	return false
}

func anyErrorContains(errors []string, needle string) bool {
	for _, err := range errors {
		if strings.Contains(strings.ToLower(err), needle) {
			return true
		}
	}
	return false
}
