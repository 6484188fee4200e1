package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/domain"
)

const deliveryText = `Causale
VEN
Del: 05-03-2024
DDT interno ABC123DEF 1234
MD.100 / ORD123456 789
Tessuto: Cotone 100%
CAMICIA
CLASSIC
`

func TestExtractDeliveries_FullSection(t *testing.T) {
	deliveries := ExtractDeliveries(deliveryText)
	require.Len(t, deliveries, 1)

	d := deliveries[0]
	assert.Equal(t, "ABC123DEF", d.DDTSeries)
	assert.Equal(t, "1234", d.DDTNumber)
	assert.Equal(t, "05-03-2024", d.DDTDate)
	assert.Equal(t, "VEN", d.DDTReason)
	assert.Equal(t, "MD.100", d.ModelNumber)
	assert.Equal(t, "ORD123456", d.OrderSeries)
	assert.Equal(t, "789", d.OrderNumber)
	assert.Equal(t, "Cotone 100%", d.ProductProperties)
	assert.Equal(t, "CAMICIA", d.ProductName)
	assert.Equal(t, "CLASSIC", d.ModelName)
}

func TestExtractDeliveries_DuplicateReferencesCollapse(t *testing.T) {
	text := deliveryText + "\nsome more text\nDDT interno ABC123DEF 1234\n"
	deliveries := ExtractDeliveries(text)
	assert.Len(t, deliveries, 1)
}

func TestExtractDeliveries_MultipleSections(t *testing.T) {
	text := "DDT interno ABC123DEF 1111\nfiller\nDDT interno ABC123DEF 2222\n"
	deliveries := ExtractDeliveries(text)
	require.Len(t, deliveries, 2)

	keys := []string{deliveries[0].Key(), deliveries[1].Key()}
	assert.Contains(t, keys, "ABC123DEF_1111")
	assert.Contains(t, keys, "ABC123DEF_2222")
}

func TestExtractDeliveries_EmptyText(t *testing.T) {
	assert.Empty(t, ExtractDeliveries(""))
	assert.Empty(t, ExtractDeliveries("no delivery references here"))
}

func TestFillDeliveryDetails_OnlyFillsEmptyFields(t *testing.T) {
	d := domain.DeliveryData{ModelNumber: "KEEP.ME"}
	FillDeliveryDetails(&d, "MD.100 / ORD123456 789\nTessuto: Lana")

	assert.Equal(t, "KEEP.ME", d.ModelNumber)
	assert.Equal(t, "", d.OrderSeries)
	assert.Equal(t, "Lana", d.ProductProperties)
}

func TestAssociateProducts_SingleDeliveryTakesAll(t *testing.T) {
	page := domain.PageData{
		RawText:    "DDT interno ABC123DEF 1111",
		Deliveries: []domain.DeliveryData{{DDTSeries: "ABC123DEF", DDTNumber: "1111"}},
		Products: []domain.ProductRecord{
			{ProductCode: "MMA01.111.111"},
			{ProductCode: "MMA02.222.222"},
		},
	}

	AssociateProducts(&page)
	require.Len(t, page.Deliveries[0].Products, 2)
}

func TestAssociateProducts_ClosestPrecedingDelivery(t *testing.T) {
	raw := strings.Join([]string{
		"DDT interno ABC123DEF 1111",
		"MMA01.111.111 row",
		"DDT interno ABC123DEF 2222",
		"MMA02.222.222 row",
	}, "\n")

	page := domain.PageData{
		RawText: raw,
		Deliveries: []domain.DeliveryData{
			{DDTSeries: "ABC123DEF", DDTNumber: "1111"},
			{DDTSeries: "ABC123DEF", DDTNumber: "2222"},
		},
		Products: []domain.ProductRecord{
			{ProductCode: "MMA01.111.111"},
			{ProductCode: "MMA02.222.222"},
		},
	}

	AssociateProducts(&page)
	require.Len(t, page.Deliveries[0].Products, 1)
	assert.Equal(t, "MMA01.111.111", page.Deliveries[0].Products[0].ProductCode)
	require.Len(t, page.Deliveries[1].Products, 1)
	assert.Equal(t, "MMA02.222.222", page.Deliveries[1].Products[0].ProductCode)
}

func TestAssociateProducts_UnlocatableProductFallsToLastDelivery(t *testing.T) {
	raw := "DDT interno ABC123DEF 1111\nDDT interno ABC123DEF 2222\n"
	page := domain.PageData{
		RawText: raw,
		Deliveries: []domain.DeliveryData{
			{DDTSeries: "ABC123DEF", DDTNumber: "1111"},
			{DDTSeries: "ABC123DEF", DDTNumber: "2222"},
		},
		Products: []domain.ProductRecord{{Description: "no code at all"}},
	}

	AssociateProducts(&page)
	assert.Len(t, page.Deliveries[1].Products, 1)
}
