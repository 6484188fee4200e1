// Package domain defines the data model shared by the invoice parsing pipeline.
package domain

import (
	"github.com/shopspring/decimal"
)

// ExtractionFlavor selects the table extraction strategy chain.
type ExtractionFlavor string

const (
	// FlavorStructured runs only the header-mapped strategy.
	FlavorStructured ExtractionFlavor = "structured"
	// FlavorFlexible runs only the pattern-based row reconstruction strategy.
	FlavorFlexible ExtractionFlavor = "flexible"
	// FlavorCoordinate runs only the marker-bounded strategy.
	FlavorCoordinate ExtractionFlavor = "coordinate"
	// FlavorStructuredThenFlexible tries structured first and falls back to
	// flexible when it yields no usable rows. Default.
	FlavorStructuredThenFlexible ExtractionFlavor = "structured-then-flexible"
)

// ProductRecord is one line item of the invoice goods table.
// Numeric fields use NullDecimal: Valid=false means the source cell was
// absent or unparseable, which is distinct from zero.
type ProductRecord struct {
	ProductCode   string              `json:"product_code"`
	Description   string              `json:"description,omitempty"`
	CustomsCode   string              `json:"customs_code,omitempty"`
	Material      string              `json:"material,omitempty"`
	UnitOfMeasure string              `json:"unit_of_measure,omitempty"`
	WidthCM       decimal.NullDecimal `json:"width_cm,omitempty"`
	Quantity      decimal.NullDecimal `json:"quantity"`
	UnitPrice     decimal.NullDecimal `json:"unit_price"`
	TotalPrice    decimal.NullDecimal `json:"total_price"`
}

// HasIdentity reports whether the record carries at least one of the two
// identifying fields. Coordinate extraction can emit records without
// either when a split row has no code row to merge into.
func (p ProductRecord) HasIdentity() bool {
	return p.ProductCode != "" || p.Description != ""
}

// PageData holds everything extracted from a single page. Produced by the
// table extractor; the validator may append errors and swap in corrected
// products.
type PageData struct {
	PageNumber int             `json:"page_number"` // 1-based
	RawText    string          `json:"-"`
	Products   []ProductRecord `json:"products"`
	Deliveries []DeliveryData  `json:"deliveries,omitempty"`
	Errors     []string        `json:"errors,omitempty"`
}

// ValidationResult is the per-page outcome of OCR validation. Immutable
// after creation.
type ValidationResult struct {
	PageNumber      int            `json:"page_number"`
	IsValid         bool           `json:"is_valid"`
	ConfidenceScore float64        `json:"confidence_score"`
	Errors          []string       `json:"validation_errors,omitempty"`
	CorrectedData   *CorrectionSet `json:"corrected_data,omitempty"`
}

// CorrectionSet holds auto-corrected products for a page that failed
// validation, plus human-readable notes about what was corrected.
type CorrectionSet struct {
	CorrectedProducts []ProductRecord `json:"corrected_products"`
	CorrectionNotes   []string        `json:"correction_notes"`
}

// ProcessingConfig is the immutable per-request configuration snapshot.
// Constructed once at the boundary; core packages only read it.
type ProcessingConfig struct {
	EnableOCRValidation    bool
	OCRConfidenceThreshold float64
	TableExtractionFlavor  ExtractionFlavor
	MaxPagesToProcess      int // 0 = unlimited
	ValidateChecksums      bool
	MaxConcurrentPages     int

	// Marker pair delimiting the table region for the coordinate strategy.
	CoordinateStartMarker string
	CoordinateEndMarker   string
}

// DefaultProcessingConfig returns the documented defaults.
func DefaultProcessingConfig() ProcessingConfig {
	return ProcessingConfig{
		EnableOCRValidation:    true,
		OCRConfidenceThreshold: 0.8,
		TableExtractionFlavor:  FlavorStructuredThenFlexible,
		MaxPagesToProcess:      0,
		ValidateChecksums:      true,
		MaxConcurrentPages:     4,
	}
}

// BillData is the invoice header entity.
type BillData struct {
	BillNumber      string              `json:"bill_number"`
	BillDate        string              `json:"bill_date"`
	Currency        string              `json:"currency"`
	CustomerCode    string              `json:"customer_code"`
	CustomerName    string              `json:"customer_name"`
	CustomerAddress string              `json:"customer_address"`
	CustomerVATID   string              `json:"customer_vat_id"`
	GrossWeightKG   decimal.NullDecimal `json:"gross_weight_kg"`
	NetWeightKG     decimal.NullDecimal `json:"net_weight_kg"`
	PackageCount    int                 `json:"package_count"`
	ShippingTerm    string              `json:"shipping_term"`
	TotalAmount     decimal.NullDecimal `json:"total_amount"`
}

// DeliveryData is one delivery note (DDT) with its associated products.
// Products are associated positionally, by document order, not by key.
type DeliveryData struct {
	DDTSeries         string          `json:"ddt_series"`
	DDTNumber         string          `json:"ddt_number"`
	DDTDate           string          `json:"ddt_date,omitempty"`
	DDTReason         string          `json:"ddt_reason,omitempty"`
	ModelNumber       string          `json:"model_number,omitempty"`
	ModelName         string          `json:"model_name,omitempty"`
	OrderSeries       string          `json:"order_series,omitempty"`
	OrderNumber       string          `json:"order_number,omitempty"`
	ProductName       string          `json:"product_name,omitempty"`
	ProductProperties string          `json:"product_properties,omitempty"`
	Products          []ProductRecord `json:"products"`
}

// Key identifies a delivery for duplicate merging across pages.
func (d DeliveryData) Key() string {
	return d.DDTSeries + "_" + d.DDTNumber
}

// ProcessingStats summarizes a pipeline run for monitoring.
type ProcessingStats struct {
	PagesProcessed     int     `json:"total_pages_processed"`
	ProductsExtracted  int     `json:"total_products_extracted"`
	PagesWithErrors    int     `json:"pages_with_errors"`
	ValidationFailures int     `json:"validation_failures"`
	AverageConfidence  float64 `json:"average_confidence"`
}

// InvoiceResult is the final aggregate returned to the caller. Created once
// by the compiler; immutable afterwards.
type InvoiceResult struct {
	Success              bool               `json:"success"`
	Bill                 BillData           `json:"bill"`
	Deliveries           []DeliveryData     `json:"deliveries"`
	Products             []ProductRecord    `json:"products"`
	Validations          []ValidationResult `json:"validations,omitempty"`
	ValidationChecksumOK bool               `json:"validation_checksum_ok"`
	ParsingErrors        []string           `json:"parsing_errors"`
	ExtractionMethod     string             `json:"extraction_method"`
	Message              string             `json:"message"`
	Stats                ProcessingStats    `json:"stats"`
}
