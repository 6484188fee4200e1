package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const headerText = `LISTA VALORIZZATA
N° doc: LV / 123
Del: 05-03-2024
Divisa: Cliente: EUR C0042
P.IVA UE: RO12345678
Spett.le:
ACME CONFEZIONI SRL
STR. INDUSTRIEI 10
123456 BUCURESTI
ROMANIA
`

func TestMetadataExtractor_Header(t *testing.T) {
	bill := NewMetadataExtractor().Extract(headerText, "")

	assert.Equal(t, "123", bill.BillNumber)
	assert.Equal(t, "05-03-2024", bill.BillDate)
	assert.Equal(t, "EUR", bill.Currency)
	assert.Equal(t, "C0042", bill.CustomerCode)
}

func TestMetadataExtractor_CustomerBlock(t *testing.T) {
	bill := NewMetadataExtractor().Extract(headerText, "")

	assert.Equal(t, "RO12345678", bill.CustomerVATID)
	assert.Equal(t, "ACME CONFEZIONI SRL", bill.CustomerName)
	assert.Equal(t, "STR. INDUSTRIEI 10, 123456 BUCURESTI, ROMANIA", bill.CustomerAddress)
}

func TestMetadataExtractor_SeparatedDivisaCliente(t *testing.T) {
	text := "Divisa: EUR\nCliente: C0042\n"
	bill := NewMetadataExtractor().Extract(text, "")

	assert.Equal(t, "EUR", bill.Currency)
	assert.Equal(t, "C0042", bill.CustomerCode)
}

func TestMetadataExtractor_CurrencyCodeSwapFixed(t *testing.T) {
	// The customer code pattern grabs the currency when the labels bleed
	// together; the swap is detected and undone.
	text := "Cliente: EUR\n"
	bill := NewMetadataExtractor().Extract(text, "")

	assert.Equal(t, "EUR", bill.Currency)
	assert.Equal(t, "", bill.CustomerCode)
}

func TestMetadataExtractor_FilenameFallbacks(t *testing.T) {
	filename := "Lista nr. 55 del 05-03 12.345,67 € 10 colli (1.234,56 Kg_N 1.300,00 Kg_B).pdf"
	bill := NewMetadataExtractor().Extract("", filename)

	assert.Equal(t, "55", bill.BillNumber)
	require.True(t, bill.TotalAmount.Valid)
	assert.Equal(t, "12345.67", bill.TotalAmount.Decimal.String())
	assert.Equal(t, 10, bill.PackageCount)
	assert.Equal(t, "1234.56", bill.NetWeightKG.Decimal.String())
	assert.Equal(t, "1300", bill.GrossWeightKG.Decimal.String())
	assert.Equal(t, "EUR", bill.Currency)
}

func TestMetadataExtractor_PageTextWinsOverFilename(t *testing.T) {
	filename := "Lista nr. 99 del 05-03 1,00 €.pdf"
	bill := NewMetadataExtractor().Extract(headerText, filename)

	// Bill number comes from the page; the filename only fills the total
	// that the page lacks.
	assert.Equal(t, "123", bill.BillNumber)
	require.True(t, bill.TotalAmount.Valid)
	assert.Equal(t, "1", bill.TotalAmount.Decimal.String())
}
