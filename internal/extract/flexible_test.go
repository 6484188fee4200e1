package extract

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexibleStrategy_CodeAnchor(t *testing.T) {
	page := structuredPage([][]string{
		{"no usable header"},
		{"MMA01.234.567\nFodera interna", "", "MT", "10,00", "5,25", "52,50"},
	})

	records, ok := NewFlexibleStrategy().Attempt(page)
	require.True(t, ok)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "MMA01.234.567", r.ProductCode)
	assert.Equal(t, "Fodera interna", r.Description)
	assert.Equal(t, "MT", r.UnitOfMeasure)
	assert.Equal(t, "10", r.Quantity.Decimal.String())
	assert.Equal(t, "5.25", r.UnitPrice.Decimal.String())
	assert.Equal(t, "52.5", r.TotalPrice.Decimal.String())
}

func TestFlexibleStrategy_DescriptionAnchor(t *testing.T) {
	// No article code: a known description opening identifies the row and
	// becomes the record's identifier.
	page := structuredPage([][]string{
		{"no usable header"},
		{"Tessuto principale cotone", "12,00", "2,00", "24,00"},
	})

	records, ok := NewFlexibleStrategy().Attempt(page)
	require.True(t, ok)
	require.Len(t, records, 1)
	assert.Equal(t, "Tessuto principale cotone", records[0].ProductCode)
	assert.Equal(t, "24", records[0].TotalPrice.Decimal.String())
}

func TestFlexibleStrategy_TrailingNumbersAreQtyPriceTotal(t *testing.T) {
	// Extra leading numeric column (width) must not shift the mapping: the
	// trailing three numbers are quantity, unit price and total.
	page := structuredPage([][]string{
		{"no usable header"},
		{"MMA01.234.567", "150", "4,00", "2,50", "10,00"},
	})

	records, ok := NewFlexibleStrategy().Attempt(page)
	require.True(t, ok)
	require.Len(t, records, 1)
	assert.Equal(t, "4", records[0].Quantity.Decimal.String())
	assert.Equal(t, "2.5", records[0].UnitPrice.Decimal.String())
	assert.Equal(t, "10", records[0].TotalPrice.Decimal.String())
}

func TestFlexibleStrategy_ImplausibleArithmeticRejected(t *testing.T) {
	page := structuredPage([][]string{
		{"no usable header"},
		{"MMA01.234.567", "10,00", "5,00", "100,00"},
	})

	records, ok := NewFlexibleStrategy().Attempt(page)
	assert.False(t, ok)
	assert.Empty(t, records)
}

func TestFlexibleStrategy_NeedsThreeNumbers(t *testing.T) {
	page := structuredPage([][]string{
		{"no usable header"},
		{"MMA01.234.567", "10,00", "5,00"},
	})

	records, ok := NewFlexibleStrategy().Attempt(page)
	assert.False(t, ok)
	assert.Empty(t, records)
}

func TestFlexibleStrategy_NoAnchorNoRecord(t *testing.T) {
	page := structuredPage([][]string{
		{"no usable header"},
		{"random text", "10,00", "5,00", "50,00"},
	})

	records, ok := NewFlexibleStrategy().Attempt(page)
	assert.False(t, ok)
	assert.Empty(t, records)
}

func TestPlausibleArithmetic_RoundingTolerance(t *testing.T) {
	q := decimal.NewFromInt(3)
	p := decimal.NewFromFloat(1.33)
	total := decimal.NewFromInt(4) // 3.99 printed as 4.00

	assert.True(t, plausibleArithmetic(q, p, total))
	assert.False(t, plausibleArithmetic(q, p, decimal.NewFromInt(5)))
	assert.False(t, plausibleArithmetic(q, p, decimal.Zero))
}
