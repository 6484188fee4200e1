// Package compile assembles the final invoice result from metadata, page
// extractions and validation outcomes.
package compile

import (
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/domain"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/extract"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/numeric"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/observability"
)

// Footer patterns, ordered strict to loose per field.
var (
	footerTotalRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Tot\s*importo:\s*\(\s*EUR\s*\)\s*([\d\.,]+)`),
		regexp.MustCompile(`(?i)Tot(?:ale)?\s*importo:\s*\(\s*EUR\s*\)\s*([\d\.,]+)`),
		regexp.MustCompile(`(?i)Tot(?:ale)?\s*importo:\s*([\d\.,]+)`),
		regexp.MustCompile(`(?i)Totale:\s*([\d\.,]+)`),
	}
	footerShippingRe = regexp.MustCompile(`Porto:\s*(.*)`)
	footerPackageRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Numero colli:\s*(\d+)`),
		regexp.MustCompile(`(?i)N\.\s*colli:\s*(\d+)`),
		regexp.MustCompile(`(?i)Colli:\s*(\d+)`),
	}
	footerNetRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Peso\s*netto\s*\(\s*KG\s*\):\s*([\d\.,]+)`),
		regexp.MustCompile(`(?i)Peso\s*netto:\s*([\d\.,]+)`),
	}
	footerGrossRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Peso\s*lordo\s*\(\s*KG\s*\):\s*([\d\.,]+)`),
		regexp.MustCompile(`(?i)Peso\s*lordo:\s*([\d\.,]+)`),
	}
)

var pointOhOne = decimal.RequireFromString("0.01")
var relTolerance = decimal.RequireFromString("0.001")

// crossPageWindow is how much of a following page's text is scanned when
// completing a delivery section truncated by a page break.
const crossPageWindow = 1000

// maxCompletionPages bounds how far ahead the completion scan looks.
const maxCompletionPages = 2

// Compiler merges all pipeline outputs into the final InvoiceResult.
type Compiler struct {
	cfg domain.ProcessingConfig
	log *observability.Logger
}

// NewCompiler builds a result compiler.
func NewCompiler(cfg domain.ProcessingConfig, log *observability.Logger) *Compiler {
	if log == nil {
		log = observability.Nop()
	}
	return &Compiler{cfg: cfg, log: log}
}

// Compile builds the final result. It reports every collected problem but
// never drops extracted data because of one: the contract is report, not
// discard.
func (c *Compiler) Compile(
	bill domain.BillData,
	pages []domain.PageData,
	validations []domain.ValidationResult,
	extractionMethod string,
	stepErrors []string,
) domain.InvoiceResult {
	result := domain.InvoiceResult{
		Success:              true,
		Bill:                 bill,
		Validations:          validations,
		ExtractionMethod:     extractionMethod,
		ValidationChecksumOK: !c.cfg.ValidateChecksums,
		ParsingErrors:        append([]string{}, stepErrors...),
	}

	result.Deliveries = c.compileDeliveries(pages)
	result.Products = compileProducts(pages, validations)

	c.extractFooter(&result.Bill, pages)
	applyHeaderDefaults(&result.Bill)

	// Upstream errors in step and page order: extraction first, then
	// validation, then compile-level checks.
	for _, page := range pages {
		result.ParsingErrors = append(result.ParsingErrors, page.Errors...)
	}
	for _, validation := range validations {
		result.ParsingErrors = append(result.ParsingErrors, validation.Errors...)
	}
	c.validateChecksum(&result)

	result.Stats = buildStats(pages, validations, result.Products)
	result.Message = finalMessage(result)
	return result
}

// compileDeliveries gathers deliveries across pages, completes sections
// truncated by page breaks from the following pages, and merges duplicate
// DDT references into one entry.
func (c *Compiler) compileDeliveries(pages []domain.PageData) []domain.DeliveryData {
	type sourced struct {
		delivery domain.DeliveryData
		page     int
	}
	var all []sourced
	for _, page := range pages {
		for _, delivery := range page.Deliveries {
			all = append(all, sourced{delivery: delivery, page: page.PageNumber})
		}
	}

	if len(all) == 0 {
		// Products without any delivery section still need a home.
		var products []domain.ProductRecord
		for _, page := range pages {
			products = append(products, page.Products...)
		}
		if len(products) == 0 {
			return nil
		}
		c.log.Warn().Msg("no delivery sections found, grouping all products under one entry")
		return []domain.DeliveryData{{Products: products}}
	}

	for i := range all {
		if all[i].delivery.ModelNumber != "" && all[i].delivery.ProductName != "" {
			continue
		}
		c.completeFromFollowingPages(&all[i].delivery, all[i].page, pages)
	}

	var unique []domain.DeliveryData
	index := make(map[string]int)
	for _, s := range all {
		key := s.delivery.Key()
		if at, ok := index[key]; ok {
			unique[at].Products = append(unique[at].Products, s.delivery.Products...)
			continue
		}
		index[key] = len(unique)
		unique = append(unique, s.delivery)
	}
	return unique
}

// completeFromFollowingPages fills a truncated delivery section from the
// opening text of the next pages, where continuation lines land after a
// page break.
func (c *Compiler) completeFromFollowingPages(delivery *domain.DeliveryData, sourcePage int, pages []domain.PageData) {
	for _, page := range pages {
		if page.PageNumber <= sourcePage || page.PageNumber > sourcePage+maxCompletionPages {
			continue
		}
		window := page.RawText
		if len(window) > crossPageWindow {
			window = window[:crossPageWindow]
		}
		before := delivery.ModelNumber + "|" + delivery.ProductName + "|" + delivery.ProductProperties
		extract.FillDeliveryDetails(delivery, window)
		after := delivery.ModelNumber + "|" + delivery.ProductName + "|" + delivery.ProductProperties
		if after != before {
			c.log.Debug().
				Str("ddt", delivery.Key()).
				Int("page", page.PageNumber).
				Msg("completed delivery from following page")
			return
		}
	}
}

// compileProducts flattens page products in page order, substituting the
// validator's corrected set for pages that failed validation.
func compileProducts(pages []domain.PageData, validations []domain.ValidationResult) []domain.ProductRecord {
	byPage := make(map[int]domain.ValidationResult, len(validations))
	for _, v := range validations {
		byPage[v.PageNumber] = v
	}

	var products []domain.ProductRecord
	for _, page := range pages {
		if v, ok := byPage[page.PageNumber]; ok && !v.IsValid && v.CorrectedData != nil {
			products = append(products, v.CorrectedData.CorrectedProducts...)
			continue
		}
		products = append(products, page.Products...)
	}
	return products
}

// extractFooter fills header fields still missing after metadata
// extraction from the closing pages, where totals and weights print.
func (c *Compiler) extractFooter(bill *domain.BillData, pages []domain.PageData) {
	start := len(pages) - 2
	if start < 0 {
		start = 0
	}
	for i := len(pages) - 1; i >= start; i-- {
		text := pages[i].RawText
		if text == "" {
			continue
		}
		if !bill.TotalAmount.Valid {
			for _, re := range footerTotalRes {
				if m := re.FindStringSubmatch(text); m != nil {
					bill.TotalAmount = numeric.ParseNullDecimal(m[1])
					break
				}
			}
		}
		if bill.ShippingTerm == "" {
			if m := footerShippingRe.FindStringSubmatch(text); m != nil {
				bill.ShippingTerm = numeric.CleanString(m[1])
			}
		}
		if bill.PackageCount == 0 {
			for _, re := range footerPackageRes {
				if m := re.FindStringSubmatch(text); m != nil {
					fmt.Sscanf(m[1], "%d", &bill.PackageCount)
					break
				}
			}
		}
		if !bill.NetWeightKG.Valid {
			for _, re := range footerNetRes {
				if m := re.FindStringSubmatch(text); m != nil {
					bill.NetWeightKG = numeric.ParseNullDecimal(m[1])
					break
				}
			}
		}
		if !bill.GrossWeightKG.Valid {
			for _, re := range footerGrossRes {
				if m := re.FindStringSubmatch(text); m != nil {
					bill.GrossWeightKG = numeric.ParseNullDecimal(m[1])
					break
				}
			}
		}
	}
}

// applyHeaderDefaults fills still-empty header fields with documented
// defaults, once, at the boundary.
func applyHeaderDefaults(bill *domain.BillData) {
	if bill.BillNumber == "" {
		bill.BillNumber = "N/A"
	}
	if bill.BillDate == "" {
		bill.BillDate = time.Now().Format("02-01-2006")
	}
	if bill.Currency == "" {
		bill.Currency = "EUR"
	}
	if bill.CustomerName == "" {
		bill.CustomerName = "Unknown Customer"
	}
}

// validateChecksum reconciles the sum of line totals against the declared
// document total within max(0.01, 0.1% of the declared total).
func (c *Compiler) validateChecksum(result *domain.InvoiceResult) {
	if !c.cfg.ValidateChecksums {
		return
	}

	calculated := decimal.Zero
	for _, product := range result.Products {
		if product.TotalPrice.Valid {
			calculated = calculated.Add(product.TotalPrice.Decimal)
		}
	}

	if !result.Bill.TotalAmount.Valid {
		result.ParsingErrors = append(result.ParsingErrors, "No total amount found for checksum validation")
		return
	}
	stated := result.Bill.TotalAmount.Decimal

	diff := stated.Sub(calculated).Abs()
	tolerance := stated.Mul(relTolerance)
	if tolerance.LessThan(pointOhOne) {
		tolerance = pointOhOne
	}
	if diff.LessThanOrEqual(tolerance) {
		result.ValidationChecksumOK = true
		return
	}
	msg := fmt.Sprintf("Checksum Mismatch: Stated Grand Total %s, Calculated Sum %s, Difference: %s",
		stated.String(), calculated.String(), diff.String())
	result.ParsingErrors = append(result.ParsingErrors, msg)
	c.log.Warn().Msg(msg)
}

func buildStats(pages []domain.PageData, validations []domain.ValidationResult, products []domain.ProductRecord) domain.ProcessingStats {
	stats := domain.ProcessingStats{
		PagesProcessed:    len(pages),
		ProductsExtracted: len(products),
	}
	for _, page := range pages {
		if len(page.Errors) > 0 {
			stats.PagesWithErrors++
		}
	}
	var totalConfidence float64
	for _, v := range validations {
		if !v.IsValid {
			stats.ValidationFailures++
		}
		totalConfidence += v.ConfidenceScore
	}
	if len(validations) > 0 {
		stats.AverageConfidence = totalConfidence / float64(len(validations))
	}
	return stats
}

func finalMessage(result domain.InvoiceResult) string {
	if !result.Success {
		return "Invoice parsing failed with errors. Check parsing_errors field for details."
	}
	// A checksum failure always carries a parsing error, so it is covered
	// by the warnings message.
	if len(result.ParsingErrors) > 0 {
		return "Invoice parsing completed with warnings. Check parsing_errors field for details."
	}
	failed := 0
	for _, v := range result.Validations {
		if !v.IsValid {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Sprintf("Invoice parsing completed but %d pages failed OCR validation.", failed)
	}
	return "Invoice parsing completed successfully."
}
