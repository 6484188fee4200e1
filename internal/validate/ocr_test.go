package validate

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/domain"
)

func nd(value string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(value), Valid: true}
}

func product(code, qty, price, total string) domain.ProductRecord {
	return domain.ProductRecord{
		ProductCode: code,
		Quantity:    nd(qty),
		UnitPrice:   nd(price),
		TotalPrice:  nd(total),
	}
}

func validatorWith(cfg domain.ProcessingConfig) *OCRValidator {
	return NewOCRValidator(cfg, nil)
}

func TestValidatePage_Disabled(t *testing.T) {
	cfg := domain.DefaultProcessingConfig()
	cfg.EnableOCRValidation = false

	result := validatorWith(cfg).ValidatePage(domain.PageData{PageNumber: 3})

	assert.True(t, result.IsValid)
	assert.Equal(t, 1.0, result.ConfidenceScore)
	assert.Empty(t, result.Errors)
}

func TestValidatePage_ConsistentPage(t *testing.T) {
	page := domain.PageData{
		PageNumber: 1,
		RawText:    "MMA01.111.111 and MMA02.222.222 appear here",
		Products: []domain.ProductRecord{
			product("MMA01.111.111", "10", "5", "50"),
			product("MMA02.222.222", "2", "3", "6"),
		},
	}

	result := validatorWith(domain.DefaultProcessingConfig()).ValidatePage(page)

	assert.True(t, result.IsValid)
	assert.Equal(t, 1.0, result.ConfidenceScore)
	assert.Empty(t, result.Errors)
	assert.Nil(t, result.CorrectedData)
}

func TestValidatePage_CalculationMismatch(t *testing.T) {
	// One of two products off by 5: consistency 0.5, text match 1.0,
	// one error. 0.5*0.6 + 1.0*0.4 - 0.1 = 0.60.
	page := domain.PageData{
		PageNumber: 1,
		RawText:    "MMA01.111.111 and MMA02.222.222",
		Products: []domain.ProductRecord{
			product("MMA01.111.111", "10", "5", "55"),
			product("MMA02.222.222", "2", "3", "6"),
		},
	}

	result := validatorWith(domain.DefaultProcessingConfig()).ValidatePage(page)

	assert.False(t, result.IsValid)
	assert.Equal(t, 0.6, result.ConfidenceScore)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Product 1: Price calculation mismatch. Expected: 50, Found: 55, Difference: 5", result.Errors[0])
}

func TestValidatePage_CorrectionsRecomputeTotal(t *testing.T) {
	page := domain.PageData{
		PageNumber: 1,
		RawText:    "MMA01.111.111 and MMA02.222.222",
		Products: []domain.ProductRecord{
			product("MMA01.111.111", "10", "5", "55"),
			product("MMA02.222.222", "2", "3", "6"),
		},
	}

	result := validatorWith(domain.DefaultProcessingConfig()).ValidatePage(page)

	require.NotNil(t, result.CorrectedData)
	require.Len(t, result.CorrectedData.CorrectedProducts, 2)
	assert.Equal(t, "50", result.CorrectedData.CorrectedProducts[0].TotalPrice.Decimal.String())
	// Consistent products are copied through unchanged.
	assert.Equal(t, "6", result.CorrectedData.CorrectedProducts[1].TotalPrice.Decimal.String())
	require.Len(t, result.CorrectedData.CorrectionNotes, 1)
	assert.Contains(t, result.CorrectedData.CorrectionNotes[0], "manual review")
}

func TestValidatePage_RelativeTolerance(t *testing.T) {
	// Tolerance is max(0.01, 0.1% of total): a 1.00 difference on a
	// 2000.00 total is within tolerance.
	page := domain.PageData{
		PageNumber: 1,
		RawText:    "MMA01.111.111",
		Products: []domain.ProductRecord{
			product("MMA01.111.111", "400", "5.0025", "2000"),
		},
	}

	result := validatorWith(domain.DefaultProcessingConfig()).ValidatePage(page)
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
}

func TestValidatePage_CodeVariantsMatch(t *testing.T) {
	// The raw text renders the code with spaces instead of dots.
	page := domain.PageData{
		PageNumber: 1,
		RawText:    "MMA01 111 111 printed with spaces",
		Products: []domain.ProductRecord{
			product("MMA01.111.111", "10", "5", "50"),
		},
	}

	result := validatorWith(domain.DefaultProcessingConfig()).ValidatePage(page)
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
}

func TestValidatePage_CodeMissingFromText(t *testing.T) {
	page := domain.PageData{
		PageNumber: 1,
		RawText:    "completely unrelated text",
		Products: []domain.ProductRecord{
			product("MMA01.111.111", "10", "5", "50"),
		},
	}

	result := validatorWith(domain.DefaultProcessingConfig()).ValidatePage(page)

	// Consistency 1.0, text match 0, one error: 0.6 + 0 - 0.1 = 0.5.
	assert.False(t, result.IsValid)
	assert.Equal(t, 0.5, result.ConfidenceScore)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "not found in raw text")
}

func TestValidatePage_NoRawText(t *testing.T) {
	page := domain.PageData{
		PageNumber: 1,
		Products: []domain.ProductRecord{
			product("MMA01.111.111", "10", "5", "50"),
		},
	}

	result := validatorWith(domain.DefaultProcessingConfig()).ValidatePage(page)
	assert.Contains(t, result.Errors, "No raw text available for cross-referencing")
	assert.False(t, result.IsValid)
}

func TestValidatePage_EmptyPage(t *testing.T) {
	page := domain.PageData{PageNumber: 2, RawText: "some text"}

	result := validatorWith(domain.DefaultProcessingConfig()).ValidatePage(page)

	// No products means nothing to trust, regardless of score.
	assert.False(t, result.IsValid)
}

func TestConfidenceScore_PenaltyCapsAndClamps(t *testing.T) {
	// Penalty caps at 0.5 no matter how many errors accumulate.
	assert.Equal(t, 0.5, confidenceScore(1.0, 1.0, 10))
	// Score never goes below zero.
	assert.Equal(t, 0.0, confidenceScore(0, 0, 10))
	// Rounded to two decimals.
	assert.Equal(t, 0.33, confidenceScore(1.0/3.0, 1.0/3.0, 0))
}

func TestConfidenceScore_MonotonicInErrors(t *testing.T) {
	prev := confidenceScore(1.0, 1.0, 0)
	for errs := 1; errs <= 6; errs++ {
		cur := confidenceScore(1.0, 1.0, errs)
		assert.LessOrEqual(t, cur, prev, fmt.Sprintf("errors=%d", errs))
		prev = cur
	}
}

func TestCodeVariants(t *testing.T) {
	variants := codeVariants("MMA01.111.111")
	assert.Contains(t, variants, "MMA01.111.111")
	assert.Contains(t, variants, "MMA01111111")
	assert.Contains(t, variants, "MMA01 111 111")
}
